package domain

import (
	"fmt"
	"time"
)

// DateLayout is the YYYY-MM-DD format the analysis service expects.
const DateLayout = "2006-01-02"

// ValidationError describes input rejected before any network call is made.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// ParseDate parses a YYYY-MM-DD date in UTC.
func ParseDate(field, s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, &ValidationError{Field: field, Reason: fmt.Sprintf("expected YYYY-MM-DD, got %q", s)}
	}
	return t, nil
}

// ValidateDateRange rejects ranges where end is not after start and ranges
// spanning more than maxDays days.
func ValidateDateRange(start, end time.Time, maxDays int) error {
	if !end.After(start) {
		return &ValidationError{Field: "date_range", Reason: "end date must be after start date"}
	}
	if end.Sub(start) > time.Duration(maxDays)*24*time.Hour {
		return &ValidationError{Field: "date_range", Reason: fmt.Sprintf("range cannot exceed %d days", maxDays)}
	}
	return nil
}
