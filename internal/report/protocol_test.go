package report

import (
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

var protocolPattern = regexp.MustCompile(`^\d{8}-[0-9A-HJKMNP-TV-Z]{8}$`)

func TestNewProtocol_Format(t *testing.T) {
	now := time.Date(2024, 3, 7, 15, 0, 0, 0, time.UTC)

	seen := map[string]bool{}
	for i := 0; i < 200; i++ {
		p, err := NewProtocol(now, nil)
		require.NoError(t, err)
		assert.Regexp(t, protocolPattern, p)
		assert.True(t, strings.HasPrefix(p, "20240307-"))
		assert.False(t, seen[p], "duplicate protocol %s", p)
		seen[p] = true
	}
}

func TestNewProtocol_PropagatesEntropyFailure(t *testing.T) {
	_, err := NewProtocol(time.Now(), strings.NewReader(""))
	assert.Error(t, err)
}

func TestNewCredential(t *testing.T) {
	c, err := NewCredential()
	require.NoError(t, err)
	assert.Len(t, c, credentialLen)
	for _, r := range c {
		assert.Contains(t, credentialAlphabet, string(r))
	}
}

func TestCredentialHash(t *testing.T) {
	hash, err := HashCredential("ABCD2345", bcrypt.MinCost)
	require.NoError(t, err)
	assert.NotContains(t, hash, "ABCD2345")

	assert.True(t, VerifyCredential(hash, "ABCD2345"))
	assert.False(t, VerifyCredential(hash, "ABCD2346"))
	assert.False(t, VerifyCredential("", "ABCD2345"))
	assert.False(t, VerifyCredential(hash, ""))
}
