package server

import (
	"errors"
	"strconv"
	"strings"
	"time"
)

func parseOptionalBool(value string) (*bool, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil, nil
	}
	parsed, err := strconv.ParseBool(trimmed)
	if err != nil {
		return nil, err
	}
	return &parsed, nil
}

// parseDateOnly accepts ISO dates and returns them normalized.
func parseDateOnly(value string) (string, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return "", errors.New("invalid_date")
	}
	parsed, err := time.Parse(time.DateOnly, trimmed)
	if err != nil {
		return "", errors.New("invalid_date")
	}
	return parsed.Format(time.DateOnly), nil
}
