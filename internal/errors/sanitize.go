// Package errors keeps internal failure detail out of HTTP responses.
package errors

import (
	"errors"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
)

var (
	filePathPattern   = regexp.MustCompile(`(/[a-zA-Z0-9_\-./]+)|([A-Z]:\\[a-zA-Z0-9_\-\\ ./]+)`)
	ipPattern         = regexp.MustCompile(`\b(?:\d{1,3}\.){3}\d{1,3}\b`)
	credentialPattern = regexp.MustCompile(`(?i)(sql:|database:|connection string|password=|secret=|token=|api[_-]?key=)`)
)

// ProductionMode controls whether sanitization is applied. Development keeps
// original errors for debugging.
var ProductionMode = false

// SetProductionMode sets the production mode flag during startup.
func SetProductionMode(production bool) {
	ProductionMode = production
}

// Sanitize removes sensitive information from an error before it is written
// to a response.
func Sanitize(err error) error {
	if err == nil {
		return nil
	}
	if !ProductionMode {
		return err
	}
	return errors.New(SanitizeString(err.Error()))
}

// SanitizeString strips paths, addresses, and credential fragments from a
// message.
func SanitizeString(s string) string {
	if !ProductionMode {
		return s
	}

	s = filePathPattern.ReplaceAllStringFunc(s, func(match string) string {
		return filepath.Base(match)
	})

	s = ipPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := strings.Split(match, ".")
		if len(parts) == 4 {
			return fmt.Sprintf("%s.%s.x.x", parts[0], parts[1])
		}
		return "x.x.x.x"
	})

	if credentialPattern.MatchString(s) {
		s = "storage operation failed"
	}

	if strings.Contains(s, "goroutine") || strings.Count(s, "\n") > 3 {
		s = "internal server error"
	}

	return s
}

// userFacingFragments are messages safe to return verbatim.
var userFacingFragments = []string{
	"validation failed",
	"invalid json",
	"policy with this id already exists",
	"policy not found",
	"connector with this id already exists",
	"connector not found",
	"missing api key",
	"invalid api key",
	"is required",
	"invalid operator",
	"invalid data_type",
	"invalid event_type",
}

// SafeMessage returns an error message fit for a response body: known
// user-facing errors pass through, everything else is sanitized.
func SafeMessage(err error) string {
	if err == nil {
		return ""
	}

	msg := err.Error()
	lower := strings.ToLower(msg)
	for _, safe := range userFacingFragments {
		if strings.Contains(lower, safe) {
			return msg
		}
	}
	return SanitizeString(msg)
}
