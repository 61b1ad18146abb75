// internal/form/csrf.go
//
// Agriportal – Forms subsystem: stateless CSRF tokens.
//
// Context
//   Server-rendered form pages embed a hidden `csrf_token` input.  The page
//   handler verifies it on POST so only forms this process rendered are
//   accepted.  Tokens are stateless:
//
//      base64url( nonce | unixMicro | HMAC_SHA256(key, nonce+unixMicro) )
//
//   •  nonce – 16 random bytes.
//   •  unixMicro – issue time, 8 bytes, big-endian.
//   •  HMAC – keyed with the configured secret.
//
//   Verification checks the signature and that the token is younger than
//   MaxAge.  No session storage is involved, so any instance sharing the key
//   can verify.
//
//------------------------------------------------------------------------------

package form

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/binary"
	"errors"
	"time"
)

const (
	nonceBytes = 16
	tokenBytes = nonceBytes + 8 + sha256.Size
	clockSkew  = time.Minute
)

// DefaultCSRFMaxAge is the validity window when none is configured.
const DefaultCSRFMaxAge = 2 * time.Hour

// CSRF issues and verifies tokens with one key.
type CSRF struct {
	key    []byte
	maxAge time.Duration
	now    func() time.Time
}

// NewCSRF returns a token service.  key must be at least 32 bytes.
func NewCSRF(key []byte, maxAge time.Duration) (*CSRF, error) {
	if len(key) < 32 {
		return nil, errors.New("csrf: key must be at least 32 bytes")
	}
	if maxAge <= 0 {
		maxAge = DefaultCSRFMaxAge
	}
	return &CSRF{key: key, maxAge: maxAge, now: time.Now}, nil
}

// RandomCSRFKey returns 32 random bytes for development runs.
func RandomCSRFKey() []byte {
	k := make([]byte, 32)
	_, _ = rand.Read(k)
	return k
}

// Token creates a new token.  Call once per page render.
func (c *CSRF) Token() (string, error) {
	nonce := make([]byte, nonceBytes)
	if _, err := rand.Read(nonce); err != nil {
		return "", err
	}
	ts := make([]byte, 8)
	binary.BigEndian.PutUint64(ts, uint64(c.now().UnixMicro()))

	buf := make([]byte, 0, tokenBytes)
	buf = append(buf, nonce...)
	buf = append(buf, ts...)
	buf = append(buf, c.sign(nonce, ts)...)
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// Verify reports whether tok is authentic and fresh.
func (c *CSRF) Verify(tok string) bool {
	raw, err := base64.RawURLEncoding.DecodeString(tok)
	if err != nil || len(raw) != tokenBytes {
		return false
	}
	nonce, ts, sig := raw[:nonceBytes], raw[nonceBytes:nonceBytes+8], raw[nonceBytes+8:]

	issued := time.UnixMicro(int64(binary.BigEndian.Uint64(ts)))
	now := c.now()
	if now.Sub(issued) > c.maxAge || issued.Sub(now) > clockSkew {
		return false
	}
	return hmac.Equal(sig, c.sign(nonce, ts))
}

func (c *CSRF) sign(nonce, ts []byte) []byte {
	mac := hmac.New(sha256.New, c.key)
	mac.Write(nonce)
	mac.Write(ts)
	return mac.Sum(nil)
}
