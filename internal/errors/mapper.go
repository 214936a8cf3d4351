package errors

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// mapRule tags an error whose text contains any of needles. SDK and
// driver errors rarely expose typed values that hold across versions,
// so the text is what we match. Rules are checked in order.
type mapRule struct {
	label    string
	category error
	needles  []string
}

var mapRules = []mapRule{
	{"conflict", ErrConflict, []string{"unique constraint", "already exists", "conflict"}},
	{"resource not found", ErrNotFound, []string{"not found", "no rows", "does not exist"}},
	{"rate limited", ErrTransient, []string{"rate limit", "quota", "too many requests", "status code: 429"}},
	{"store busy", ErrTransient, []string{"database is locked", "busy"}},
	{"invalid request", ErrInvalidInput, []string{"invalid input", "invalid request", "bad request"}},
	{"invalid model output", ErrInvalidModelOutput, []string{"malformed json", "invalid json", "invalid character"}},
	{"request timeout", ErrTransient, []string{"timeout", "deadline exceeded"}},
	{"network error", ErrTransient, []string{"network", "connection", "unreachable", "no such host"}},
}

// categories is ordered most specific first; Category reports the first hit.
var categories = []struct {
	name string
	err  error
}{
	{"ErrDuplicateEvent", ErrDuplicateEvent},
	{"ErrRateLimited", ErrRateLimited},
	{"ErrInvalidInput", ErrInvalidInput},
	{"ErrNotFound", ErrNotFound},
	{"ErrConflict", ErrConflict},
	{"ErrTransient", ErrTransient},
	{"ErrInvalidModelOutput", ErrInvalidModelOutput},
	{"ErrConfig", ErrConfig},
	{"ErrInternal", ErrInternal},
}

// MapError wraps err with the category it most likely belongs to.
// Errors that already carry a category and context.Canceled are
// returned unchanged.
func MapError(err error) error {
	if err == nil || errors.Is(err, context.Canceled) || Category(err) != "Unknown" {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("request timeout: %v: %w", err, ErrTransient)
	}

	text := strings.ToLower(err.Error())
	for _, rule := range mapRules {
		for _, n := range rule.needles {
			if strings.Contains(text, n) {
				return fmt.Errorf("%s: %v: %w", rule.label, err, rule.category)
			}
		}
	}
	return fmt.Errorf("internal error: %v: %w", err, ErrInternal)
}

// Category returns the sentinel name err wraps, "" for nil and
// "Unknown" when it wraps none.
func Category(err error) string {
	if err == nil {
		return ""
	}
	for _, c := range categories {
		if errors.Is(err, c.err) {
			return c.name
		}
	}
	return "Unknown"
}

// IsRetryable reports transient and conflict errors. A cancelled context
// is never retried.
func IsRetryable(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}
	return errors.Is(err, ErrTransient) || errors.Is(err, ErrConflict)
}

func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// WrapWithCategory tags err with category while keeping the cause text.
func WrapWithCategory(err error, message string, category error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %v: %w", message, err, category)
}

func IsCategory(err error, category error) bool {
	return err != nil && errors.Is(err, category)
}

func NotFound(message string) error     { return fmt.Errorf("%s: %w", message, ErrNotFound) }
func InvalidInput(message string) error { return fmt.Errorf("%s: %w", message, ErrInvalidInput) }
func Transient(message string) error    { return fmt.Errorf("%s: %w", message, ErrTransient) }
func Conflict(message string) error     { return fmt.Errorf("%s: %w", message, ErrConflict) }
func Config(message string) error       { return fmt.Errorf("%s: %w", message, ErrConfig) }
func Internal(message string) error     { return fmt.Errorf("%s: %w", message, ErrInternal) }

func InvalidModelOutput(message string) error {
	return fmt.Errorf("%s: %w", message, ErrInvalidModelOutput)
}
