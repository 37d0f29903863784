package http

import (
	"net/http"
	"time"

	apperrors "roomcal/pkg/errors"
)

const (
	// DateLayout is the wire format for calendar dates in query parameters.
	DateLayout = "2006-01-02"

	// DateTimeLayout is the wire format for timestamps. The calendar has no
	// timezone handling, so timestamps carry no offset.
	DateTimeLayout = "2006-01-02 15:04"
)

// ExtractDateParam parses a required date query parameter.
func ExtractDateParam(r *http.Request, name string) (time.Time, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return time.Time{}, apperrors.InvalidInput("query parameter '" + name + "' is required")
	}

	parsed, err := time.Parse(DateLayout, raw)
	if err != nil {
		return time.Time{}, apperrors.InvalidInput("invalid '" + name + "' parameter, must be " + DateLayout)
	}
	return parsed, nil
}

// ExtractDateTimeParam parses a required timestamp query parameter.
func ExtractDateTimeParam(r *http.Request, name string) (time.Time, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return time.Time{}, apperrors.InvalidInput("query parameter '" + name + "' is required")
	}

	parsed, err := time.Parse(DateTimeLayout, raw)
	if err != nil {
		return time.Time{}, apperrors.InvalidInput("invalid '" + name + "' parameter, must be " + DateTimeLayout)
	}
	return parsed, nil
}
