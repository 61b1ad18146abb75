// internal/config/secrets.go
//
// `vault:` reference resolution.
//
// Context
// -------
// A string value such as `vault:secret/agri/db#password` names the key
// `password` of the KV-v2 secret at `secret/agri/db`.  References are
// swapped for their values on the raw Koanf tree, before unmarshal, so the
// typed model never holds a Vault URI.
//
//------------------------------------------------------------------------------

package config

import (
	"context"
	"fmt"
	"strings"
	"time"

	koanf "github.com/knadh/koanf/v2"
	"go.uber.org/zap"

	"github.com/yanizio/agriportal/internal/vault"
)

const secretPrefix = "vault:"

// SecretSource fetches one key of a KV secret.  *vault.Client satisfies it.
type SecretSource interface {
	GetKV(ctx context.Context, path, key string, ttl time.Duration) (string, error)
}

// ParseSecretRef splits `vault:path#key`.  ok is false for plain values.
func ParseSecretRef(s string) (path, key string, ok bool, err error) {
	if !strings.HasPrefix(s, secretPrefix) {
		return "", "", false, nil
	}
	ref := strings.TrimPrefix(s, secretPrefix)
	path, key, found := strings.Cut(ref, "#")
	if !found || path == "" || key == "" {
		return "", "", true, fmt.Errorf("malformed secret reference %q (want vault:path#key)", s)
	}
	return path, key, true, nil
}

func resolveSecrets(ctx context.Context, k *koanf.Koanf, src SecretSource) error {
	var refs []string
	for key, val := range k.All() {
		if s, ok := val.(string); ok && strings.HasPrefix(s, secretPrefix) {
			refs = append(refs, key)
		}
	}
	if len(refs) == 0 {
		return nil
	}

	if src == nil {
		if !k.Bool("vault.enabled") {
			return fmt.Errorf("%s holds a vault reference but vault.enabled is false", refs[0])
		}
		cli, err := vault.New(ctx, zap.S())
		if err != nil {
			return err
		}
		src = cli
	}

	ttl := k.Duration("vault.cache_ttl")
	for _, key := range refs {
		path, name, _, err := ParseSecretRef(k.String(key))
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		val, err := src.GetKV(ctx, path, name, ttl)
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		if err := k.Set(key, val); err != nil {
			return err
		}
		zap.S().Debugw("config secret resolved", "key", key, "path", path)
	}
	return nil
}
