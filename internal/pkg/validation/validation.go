// Package validation holds small request-parameter validators shared by the
// HTTP handlers: enum membership, boolean query-parameter parsing, and
// ISO 8601 date parsing.
package validation

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ValidateEnum reports an error naming fieldName if value is not one of
// allowed. Comparison is exact (case-sensitive), matching the source_type
// values stored in the database.
func ValidateEnum(value string, allowed []string, fieldName string) error {
	for _, a := range allowed {
		if value == a {
			return nil
		}
	}
	return fmt.Errorf("invalid %s: must be one of %s", fieldName, strings.Join(allowed, ", "))
}

// ParseBool parses a query-parameter boolean ("true"/"false"/"1"/"0") and
// returns a pointer so callers can assign it straight into an optional
// *bool filter field.
func ParseBool(s string) (*bool, error) {
	b, err := strconv.ParseBool(s)
	if err != nil {
		return nil, fmt.Errorf("invalid boolean value %q", s)
	}
	return &b, nil
}

// ParseDateISO8601 parses an ISO 8601 date (YYYY-MM-DD) or full RFC3339
// timestamp and returns a pointer so callers can assign it straight into an
// optional *time.Time filter field.
func ParseDateISO8601(s string) (*time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return &t, nil
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return nil, fmt.Errorf("invalid date %q: expected YYYY-MM-DD or RFC3339", s)
	}
	return &t, nil
}
