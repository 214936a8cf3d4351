package errors

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMapError_Categories(t *testing.T) {
	cases := []struct {
		name string
		in   error
		want error
	}{
		{"sqlite unique", fmt.Errorf("constraint failed: UNIQUE constraint failed: reports.protocol (2067)"), ErrConflict},
		{"no rows", fmt.Errorf("sql: no rows in result set"), ErrNotFound},
		{"openai rate limit", fmt.Errorf("error, status code: 429, message: Rate limit reached"), ErrTransient},
		{"deadline", context.DeadlineExceeded, ErrTransient},
		{"connection", fmt.Errorf("dial tcp: connection refused"), ErrTransient},
		{"unknown", fmt.Errorf("boom"), ErrInternal},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			mapped := MapError(tc.in)
			assert.ErrorIs(t, mapped, tc.want)
		})
	}
}

func TestMapError_KeepsExistingCategory(t *testing.T) {
	err := NotFound("protocol ABC")
	assert.Equal(t, err, MapError(err))
}

func TestMapError_ContextCanceledUnchanged(t *testing.T) {
	assert.Equal(t, context.Canceled, MapError(context.Canceled))
	assert.False(t, IsRetryable(context.Canceled))
}

func TestCategory(t *testing.T) {
	assert.Equal(t, "", Category(nil))
	assert.Equal(t, "ErrConflict", Category(Conflict("protocol taken")))
	assert.Equal(t, "ErrConfig", Category(Config("missing token")))
	assert.Equal(t, "Unknown", Category(fmt.Errorf("plain")))
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, IsRetryable(Transient("store busy")))
	assert.True(t, IsRetryable(Conflict("protocol taken")))
	assert.False(t, IsRetryable(NotFound("protocol")))
	assert.False(t, IsRetryable(nil))
}
