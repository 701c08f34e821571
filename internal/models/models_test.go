// internal/models/models_test.go
package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		seconds int64
		want    string
	}{
		{0, "0m 0s"},
		{5, "0m 5s"},
		{60, "1m 0s"},
		{125, "2m 5s"},
		{3600, "60m 0s"},
		{-10, "0m 0s"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatDuration(tt.seconds))
	}
}

func TestIntensityBucket(t *testing.T) {
	tests := []struct {
		minutes int64
		want    int
	}{
		{0, 0},
		{-5, 0},
		{1, 1},
		{29, 1},
		{30, 2},
		{59, 2},
		{60, 3},
		{119, 3},
		{120, 4},
		{600, 4},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, IntensityBucket(tt.minutes), "minutes=%d", tt.minutes)
	}
}
