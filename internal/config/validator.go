// internal/config/validator.go
//
// Thin wrapper around go-playground/validator.
//
// Context
// -------
// `internal/config/loader.go` calls `validateStruct` after it unmarshals the
// merged Koanf tree and fills defaults.  Any validation error aborts
// startup, so the binary never runs with partial or malformed
// configuration.
//
// Besides the struct tags, a configured CSRF key must not equal either token
// secret.

package config

import (
	"errors"

	"github.com/go-playground/validator/v10"
)

//
// validator instance (package-level singleton)
//

var v = validator.New()

//
// public API
//

// validateStruct returns the first validation error, or nil on success.
func validateStruct(c *Config) error {
	if err := v.Struct(c); err != nil {
		return err
	}
	if c.CSRF.Key != "" && (c.CSRF.Key == c.Auth.AccessSecret || c.CSRF.Key == c.Auth.RefreshSecret) {
		return errors.New("csrf.key must differ from the auth secrets")
	}
	return nil
}
