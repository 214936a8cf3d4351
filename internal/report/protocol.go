package report

import (
	"crypto/rand"
	"io"
	"math/big"
	"time"

	"github.com/oklog/ulid/v2"
	"golang.org/x/crypto/bcrypt"
)

const (
	protocolSuffixLen = 8
	credentialLen     = 8
	// no 0/O, 1/I/L
	credentialAlphabet = "ABCDEFGHJKMNPQRSTUVWXYZ23456789"
)

// NewProtocol returns YYYYMMDD- followed by 8 Crockford base32 chars drawn
// from the random half of a ULID. entropy nil means crypto/rand.
func NewProtocol(now time.Time, entropy io.Reader) (string, error) {
	if entropy == nil {
		entropy = rand.Reader
	}
	id, err := ulid.New(ulid.Timestamp(now), entropy)
	if err != nil {
		return "", err
	}
	s := id.String()
	return now.UTC().Format("20060102") + "-" + s[len(s)-protocolSuffixLen:], nil
}

// NewCredential returns a one-time secret shown to the submitter.
func NewCredential() (string, error) {
	max := big.NewInt(int64(len(credentialAlphabet)))
	out := make([]byte, credentialLen)
	for i := range out {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		out[i] = credentialAlphabet[n.Int64()]
	}
	return string(out), nil
}

// HashCredential hashes with cost, or bcrypt.DefaultCost when cost is zero.
func HashCredential(credential string, cost int) (string, error) {
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	h, err := bcrypt.GenerateFromPassword([]byte(credential), cost)
	if err != nil {
		return "", err
	}
	return string(h), nil
}

// VerifyCredential reports whether credential matches hash. An empty hash never matches.
func VerifyCredential(hash, credential string) bool {
	if hash == "" || credential == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(credential)) == nil
}
