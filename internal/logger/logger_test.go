package logger

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMaskSender(t *testing.T) {
	assert.Equal(t, strings.Repeat("*", 19)+"1234", MaskSender("whatsapp:+5511999991234"))
	assert.Equal(t, "****", MaskSender("123"))
	assert.Equal(t, "****", MaskSender(""))
}

func TestEnsureTraceID(t *testing.T) {
	ctx, id := EnsureTraceID(context.Background())
	assert.NotEmpty(t, id)
	assert.Equal(t, id, GetTraceID(ctx))

	again, sameID := EnsureTraceID(ctx)
	assert.Equal(t, id, sameID)
	assert.Equal(t, ctx, again)
}

func TestSenderID(t *testing.T) {
	ctx := WithSenderID(context.Background(), "whatsapp:+5511")
	assert.Equal(t, "whatsapp:+5511", GetSenderID(ctx))
	assert.Equal(t, "", GetSenderID(context.Background()))
}
