// internal/config/loader.go
//
// Configuration loader and reloader.
//
/*
Context
--------
`Load()` builds one immutable `Config` struct from three layers (highest
precedence last):

  1. Optional `.env` file at `<root>/conf/.env`.
  2. `conf/global.yaml`.
  3. Environment variables prefixed `AGRI_`, where `__` maps to “.”
     (e.g., `AGRI_HTTP__LISTEN_ADDR → http.listen_addr`).

`vault:` references are then swapped for their secrets, the tree is
unmarshalled into typed structs, defaults are filled, the result is
validated, and it is cached in an `atomic.Pointer` for lock-free reads.
`Reload()` calls `Load()` again and swaps the pointer.

Instrumentation
---------------
  • DEBUG spans – root discovery, YAML read, env overlay.
  • ERROR spans – YAML parse, env overlay, secret, unmarshal, and validation
    failures.
  • INFO  span  – final “config loaded” with key highlights.
  • Logs use the global sugared logger (`zap.S()`) so early boot issues
    surface even before the file logger is installed.
*/
package config

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	koanf "github.com/knadh/koanf/v2"
	"go.uber.org/zap"
)

const envPrefix = "AGRI_"

var current atomic.Pointer[Config]

/*──────────────────────────── root discovery ───────────────────────────────*/

// rootDir resolves AGRI_ROOT or climbs directories until conf/global.yaml
// is found.  Falls back to the executable's parent for a bin/ layout.
func rootDir() string {
	if r := os.Getenv(envPrefix + "ROOT"); r != "" {
		return r
	}

	wd, _ := os.Getwd()
	dir := wd
	for {
		if _, err := os.Stat(filepath.Join(dir, "conf", "global.yaml")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	exe, _ := os.Executable()
	if filepath.Base(filepath.Dir(exe)) == "bin" {
		return filepath.Dir(filepath.Dir(exe))
	}
	return wd
}

/*─────────────────────────────── loader ───────────────────────────────────*/

// Load reads configuration from the discovered root.  Vault is contacted
// only when vault.enabled is true.
func Load() (*Config, error) {
	return LoadFrom(context.Background(), rootDir(), nil)
}

// LoadFrom loads configuration rooted at root.  secrets resolves `vault:`
// references; nil means build a Vault client on demand.
func LoadFrom(ctx context.Context, root string, secrets SecretSource) (*Config, error) {
	zap.S().Debugw("config root resolved", "root", root)

	// .env (optional, no error if missing)
	_ = godotenv.Load(filepath.Join(root, "conf", ".env"))

	k := koanf.New(".")

	yamlPath := filepath.Join(root, "conf", "global.yaml")
	if err := k.Load(file.Provider(yamlPath), yaml.Parser()); err != nil {
		zap.S().Errorw("config yaml load failed", "file", yamlPath, "err", err)
		return nil, err
	}
	zap.S().Debugw("config yaml loaded", "file", yamlPath)

	if err := k.Load(env.Provider(envPrefix, ".", envKey), nil); err != nil {
		zap.S().Errorw("config env overlay failed", "err", err)
		return nil, err
	}

	if err := resolveSecrets(ctx, k, secrets); err != nil {
		zap.S().Errorw("config secret resolution failed", "err", err)
		return nil, err
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		zap.S().Errorw("config unmarshal failed", "err", err)
		return nil, err
	}

	cfg.Paths.Root = root
	cfg.applyDefaults()
	if err := validateStruct(&cfg); err != nil {
		zap.S().Errorw("config validation failed", "err", err)
		return nil, err
	}

	current.Store(&cfg)
	zap.S().Infow("config loaded",
		"listen_addr", cfg.HTTP.ListenAddr,
		"force_https", cfg.HTTP.ForceHTTPS,
		"form_dirs", cfg.Forms.Dirs,
		"root", cfg.Paths.Root,
	)
	return &cfg, nil
}

// envKey maps AGRI_HTTP__LISTEN_ADDR to http.listen_addr.
func envKey(s string) string {
	s = strings.TrimPrefix(s, envPrefix)
	return strings.ToLower(strings.ReplaceAll(s, "__", "."))
}

/*──────────────────────────── defaults ────────────────────────────────────*/

func (c *Config) applyDefaults() {
	if c.Database.MaxOpen == 0 {
		c.Database.MaxOpen = 15
	}
	if c.Database.MaxIdle == 0 {
		c.Database.MaxIdle = 5
	}
	if c.Forms.SubmitTimeout == 0 {
		c.Forms.SubmitTimeout = 15 * time.Second
	}
	if c.Forms.RetryMax == 0 {
		c.Forms.RetryMax = 3
	}
	if c.Auth.BcryptCost == 0 {
		c.Auth.BcryptCost = 10
	}
	if c.CSRF.MaxAge == 0 {
		c.CSRF.MaxAge = 2 * time.Hour
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Vault.CacheTTL == 0 {
		c.Vault.CacheTTL = 5 * time.Minute
	}
	for i, d := range c.Forms.Dirs {
		if d != "" && !filepath.IsAbs(d) {
			c.Forms.Dirs[i] = filepath.Join(c.Paths.Root, d)
		}
	}
	if c.Geo.DBPath != "" && !filepath.IsAbs(c.Geo.DBPath) {
		c.Geo.DBPath = filepath.Join(c.Paths.Root, c.Geo.DBPath)
	}
}

/*──────────────────────────── helpers ─────────────────────────────────────*/

func Get() *Config  { return current.Load() }
func Reload() error { _, err := Load(); return err }

// MustGet is Get for code paths that run only after boot.
func MustGet() *Config {
	c := current.Load()
	if c == nil {
		panic("config: MustGet called before Load")
	}
	return c
}
