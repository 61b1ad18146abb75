package account

import (
	"errors"
	"fmt"
	"unicode"

	"golang.org/x/crypto/bcrypt"
)

// DefaultBcryptCost matches the salt rounds used for portal accounts.
const DefaultBcryptCost = 10

const (
	minPasswordLength = 8

	// bcrypt hashes at most 72 bytes and rejects anything longer.
	maxPasswordBytes = 72

	maxUsernameLength = 40
)

// FieldError is a user-input problem tied to one field.  Handlers map it to
// the `errors` member of the response envelope.
type FieldError struct {
	Field   string
	Message string
}

func (e *FieldError) Error() string { return fmt.Sprintf("%s: %s", e.Field, e.Message) }

// CheckPasswordStrength requires eight or more characters, no more than 72
// bytes, and at least one lowercase letter, one uppercase letter, and one
// digit.
func CheckPasswordStrength(pw string) error {
	if len([]rune(pw)) < minPasswordLength {
		return &FieldError{"password", "Password must be at least 8 characters long"}
	}
	if len(pw) > maxPasswordBytes {
		return &FieldError{"password", "Password is too long"}
	}
	var lower, upper, digit bool
	for _, r := range pw {
		switch {
		case unicode.IsLower(r):
			lower = true
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsDigit(r):
			digit = true
		}
	}
	switch {
	case !lower:
		return &FieldError{"password", "Password must contain at least one lowercase letter"}
	case !upper:
		return &FieldError{"password", "Password must contain at least one uppercase letter"}
	case !digit:
		return &FieldError{"password", "Password must contain at least one number"}
	}
	return nil
}

// HashPassword returns a bcrypt hash of pw.
func HashPassword(pw string, cost int) ([]byte, error) {
	if cost == 0 {
		cost = DefaultBcryptCost
	}
	h, err := bcrypt.GenerateFromPassword([]byte(pw), cost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	return h, nil
}

// comparePassword returns ErrInvalidCredentials on mismatch.
func comparePassword(hash []byte, pw string) error {
	if err := bcrypt.CompareHashAndPassword(hash, []byte(pw)); err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return ErrInvalidCredentials
		}
		return fmt.Errorf("compare password: %w", err)
	}
	return nil
}
