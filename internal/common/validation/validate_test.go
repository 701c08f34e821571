// internal/common/validation/validate_test.go
package validation

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"learning-tracker/internal/common/errors"
)

func TestUserID(t *testing.T) {
	tests := []struct {
		name   string
		userID string
		valid  bool
	}{
		{"simple", "user_123", true},
		{"single char", "a", true},
		{"fifty chars", strings.Repeat("a", 50), true},
		{"empty", "", false},
		{"fifty one chars", strings.Repeat("a", 51), false},
		{"hyphen rejected", "user-123", false},
		{"space rejected", "user 123", false},
		{"unicode rejected", "usér", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := UserID(tt.userID)
			if tt.valid {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.True(t, errors.IsCode(err, errors.ErrCodeInvalidUserID))
			}
		})
	}
}

func TestSessionID(t *testing.T) {
	assert.NoError(t, SessionID("3f8a2c1e-9b7d-4a5f-8e2c-1d3b5a7f9e0c"))
	assert.NoError(t, SessionID("sess_01"))
	assert.Error(t, SessionID(""))
	assert.Error(t, SessionID(strings.Repeat("x", 65)))
	assert.Error(t, SessionID("has space"))
}

func TestDateRange(t *testing.T) {
	for _, rng := range []string{"today", "week", "month", "all"} {
		assert.NoError(t, DateRange(rng), rng)
	}
	for _, rng := range []string{"", "yesterday", "Today", "year"} {
		err := DateRange(rng)
		require.Error(t, err, rng)
		assert.True(t, errors.IsCode(err, errors.ErrCodeInvalidDateRange))
	}
}

func TestMonthsBack(t *testing.T) {
	assert.NoError(t, MonthsBack(1))
	assert.NoError(t, MonthsBack(24))
	assert.Error(t, MonthsBack(0))
	assert.Error(t, MonthsBack(25))
	assert.Error(t, MonthsBack(-3))
}

func TestMetadata(t *testing.T) {
	tests := []struct {
		name     string
		metadata map[string]interface{}
		valid    bool
	}{
		{"nil allowed", nil, true},
		{"empty allowed", map[string]interface{}{}, true},
		{"flat scalars", map[string]interface{}{
			"course": "go-101", "lesson": 4, "reviewed": true,
		}, true},
		{"nested object rejected", map[string]interface{}{
			"extra": map[string]interface{}{"deep": 1},
		}, false},
		{"array rejected", map[string]interface{}{
			"tags": []string{"a", "b"},
		}, false},
		{"bad key rejected", map[string]interface{}{
			"key with spaces": "v",
		}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Metadata(tt.metadata)
			if tt.valid {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.True(t, errors.IsCode(err, errors.ErrCodeInvalidMetadata))
			}
		})
	}
}

func TestMetadata_TooManyProperties(t *testing.T) {
	metadata := make(map[string]interface{})
	for i := 0; i < 21; i++ {
		metadata["key_"+strings.Repeat("a", i+1)] = i
	}
	assert.Error(t, Metadata(metadata))
}
