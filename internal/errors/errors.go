package errors

import (
	"errors"
)

// Sentinel errors for different categories
var (
	// ErrDuplicateEvent - webhook delivered twice (acknowledge silently, never process again)
	ErrDuplicateEvent = errors.New("duplicate event")

	// ErrRateLimited - sender exceeded inbound rate (drop message, reply nothing)
	ErrRateLimited = errors.New("rate limited")

	// ErrInvalidInput - invalid input (re-prompt in conversation, 400 on HTTP)
	ErrInvalidInput = errors.New("invalid input")

	// ErrNotFound - record not found (normal lookup outcome, 404 on HTTP)
	ErrNotFound = errors.New("not found")

	// ErrConflict - unique constraint hit (protocol collision, retried with a fresh protocol)
	ErrConflict = errors.New("conflict")

	// ErrTransient - transient error (show retry hint, keep session for retry)
	ErrTransient = errors.New("transient error")

	// ErrInvalidModelOutput - model returned malformed structured output
	ErrInvalidModelOutput = errors.New("invalid model output")

	// ErrConfig - missing or invalid configuration (fatal at startup)
	ErrConfig = errors.New("configuration error")

	// ErrInternal - internal error (generic message + trace id)
	ErrInternal = errors.New("internal error")
)
