package account

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt"
)

const (
	DefaultAccessTTL  = 15 * time.Minute
	DefaultRefreshTTL = 7 * 24 * time.Hour
)

// ErrInvalidToken covers bad signatures, wrong algorithms, expiry, and
// tokens minted for the other purpose.
var ErrInvalidToken = errors.New("invalid or expired token")

// Claims is the JWT body.  Subject carries the user ID.
type Claims struct {
	Kind string `json:"kind"` // "access" or "refresh"
	jwt.StandardClaims
}

// Tokens signs and parses access and refresh tokens with separate keys.
type Tokens struct {
	accessKey  []byte
	refreshKey []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

// NewTokens returns a signer.  Zero TTLs fall back to 15 minutes and 7 days.
func NewTokens(accessKey, refreshKey []byte, accessTTL, refreshTTL time.Duration) (*Tokens, error) {
	if len(accessKey) == 0 || len(refreshKey) == 0 {
		return nil, errors.New("token keys must not be empty")
	}
	if accessTTL <= 0 {
		accessTTL = DefaultAccessTTL
	}
	if refreshTTL <= 0 {
		refreshTTL = DefaultRefreshTTL
	}
	return &Tokens{
		accessKey:  accessKey,
		refreshKey: refreshKey,
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		now:        time.Now,
	}, nil
}

// RefreshTTL reports the refresh lifetime, used for cookie Max-Age.
func (t *Tokens) RefreshTTL() time.Duration { return t.refreshTTL }

// Access mints an access token for userID.
func (t *Tokens) Access(userID string) (string, error) {
	return t.sign(userID, "access", t.accessKey, t.accessTTL)
}

// Refresh mints a refresh token for userID.
func (t *Tokens) Refresh(userID string) (string, error) {
	return t.sign(userID, "refresh", t.refreshKey, t.refreshTTL)
}

// ParseAccess returns the user ID in an access token.
func (t *Tokens) ParseAccess(tok string) (string, error) {
	return t.parse(tok, "access", t.accessKey)
}

// ParseRefresh returns the user ID in a refresh token.
func (t *Tokens) ParseRefresh(tok string) (string, error) {
	return t.parse(tok, "refresh", t.refreshKey)
}

func (t *Tokens) sign(userID, kind string, key []byte, ttl time.Duration) (string, error) {
	now := t.now()
	claims := Claims{
		Kind: kind,
		StandardClaims: jwt.StandardClaims{
			Subject:   userID,
			IssuedAt:  now.Unix(),
			ExpiresAt: now.Add(ttl).Unix(),
		},
	}
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(key)
	if err != nil {
		return "", fmt.Errorf("sign %s token: %w", kind, err)
	}
	return s, nil
}

func (t *Tokens) parse(tok, kind string, key []byte) (string, error) {
	var claims Claims
	_, err := jwt.ParseWithClaims(tok, &claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return key, nil
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	// Library validation uses the wall clock; check again against ours.
	if !claims.VerifyExpiresAt(t.now().Unix(), true) {
		return "", ErrInvalidToken
	}
	if claims.Kind != kind || claims.Subject == "" {
		return "", ErrInvalidToken
	}
	return claims.Subject, nil
}
