// Package validation holds the pure request-validation rules shared by the
// API layer and the session store.
package validation

import (
	"fmt"
	"regexp"
	"strings"

	"learning-tracker/internal/common/errors"

	"github.com/xeipuuv/gojsonschema"
)

var (
	userIDPattern    = regexp.MustCompile(`^[A-Za-z0-9_]{1,50}$`)
	sessionIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)
)

// UserID checks the accepted identifier format: alphanumeric or underscore,
// 1-50 characters.
func UserID(userID string) error {
	if !userIDPattern.MatchString(userID) {
		return errors.NewInvalidUserIDError(fmt.Sprintf("userId: %q", userID))
	}
	return nil
}

// SessionID checks that a session identifier is plausible before it reaches
// the store. Ids are opaque, so only shape is checked.
func SessionID(sessionID string) error {
	if !sessionIDPattern.MatchString(sessionID) {
		return errors.NewInvalidSessionIDError(fmt.Sprintf("sessionId: %q", sessionID))
	}
	return nil
}

// DateRange checks the aggregation window name.
func DateRange(rng string) error {
	switch rng {
	case "today", "week", "month", "all":
		return nil
	}
	return errors.NewInvalidDateRangeError(fmt.Sprintf("range: %q, want today|week|month|all", rng))
}

// MonthsBack checks the calendar lookback bounds.
func MonthsBack(monthsBack int) error {
	if monthsBack < 1 || monthsBack > 24 {
		return errors.NewInvalidMonthsBackError(monthsBack)
	}
	return nil
}

// metadataSchema constrains the opaque metadata bag: a flat object of scalar
// values. The store never interprets the contents.
const metadataSchema = `{
	"type": "object",
	"maxProperties": 20,
	"additionalProperties": {
		"type": ["string", "number", "boolean"]
	},
	"propertyNames": {
		"pattern": "^[A-Za-z0-9_.-]{1,64}$"
	}
}`

var metadataSchemaLoader = gojsonschema.NewStringLoader(metadataSchema)

// Metadata validates a caller-supplied metadata bag against the schema.
func Metadata(metadata map[string]interface{}) error {
	if len(metadata) == 0 {
		return nil
	}

	result, err := gojsonschema.Validate(metadataSchemaLoader, gojsonschema.NewGoLoader(metadata))
	if err != nil {
		return errors.NewInvalidMetadataError(err.Error())
	}
	if !result.Valid() {
		descs := make([]string, 0, len(result.Errors()))
		for _, resErr := range result.Errors() {
			descs = append(descs, resErr.String())
		}
		return errors.NewInvalidMetadataError(strings.Join(descs, "; "))
	}
	return nil
}
