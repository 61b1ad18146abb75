// internal/config/model.go
//
// Typed configuration model for the portal.
//
// Context
// -------
// These structs define the shape of the configuration tree that
// `internal/config/loader.go` builds from three overlay layers:
//
//   • optional `.env`                        – dotenv values,
//   • `conf/global.yaml`                     – primary static file,
//   • `AGRI_`-prefixed environment overrides – highest precedence.
//
// Any string value of the form `vault:<path>#<key>` is resolved through a
// SecretSource after unmarshalling (see secrets.go), so consumers only ever
// see plain strings.
//
// Notes
// -----
//   • Struct tags use `koanf:"…"`, not `yaml:"…"`.
//   • The `Paths` block is filled at runtime; YAML must not try to set it.
//   • Durations accept Go syntax ("15s", "2h").

package config

import "time"

//
// HTTP section
//

// HTTP holds web-server tunables.
type HTTP struct {
	ListenAddr string `koanf:"listen_addr" validate:"required,hostname_port"`
	ForceHTTPS bool   `koanf:"force_https"`
}

//
// Database section
//

// Database holds the DSN and pool sizes.  When Password is set it replaces
// the DSN's password, so the DSN itself can live in YAML.
type Database struct {
	DSN      string `koanf:"dsn"       validate:"required"`
	Password string `koanf:"password"`
	MaxOpen  int    `koanf:"max_open"  validate:"gte=0"`
	MaxIdle  int    `koanf:"max_idle"  validate:"gte=0"`
}

//
// Forms section
//

// Forms lists definition directories (earlier wins on duplicate IDs) and the
// submitter's network policy.
type Forms struct {
	Dirs          []string      `koanf:"dirs"           validate:"required,min=1,dive,required"`
	SubmitTimeout time.Duration `koanf:"submit_timeout" validate:"gte=0"`
	RetryMax      int           `koanf:"retry_max"      validate:"gte=0,lte=10"`
}

//
// Auth section
//

// Auth configures tokens and password hashing.
type Auth struct {
	AccessSecret  string        `koanf:"access_secret"  validate:"required,min=16"`
	RefreshSecret string        `koanf:"refresh_secret" validate:"required,min=16,nefield=AccessSecret"`
	AccessTTL     time.Duration `koanf:"access_ttl"`
	RefreshTTL    time.Duration `koanf:"refresh_ttl"`
	BcryptCost    int           `koanf:"bcrypt_cost"    validate:"omitempty,gte=4,lte=31"`
	SecureCookies bool          `koanf:"secure_cookies"`
}

//
// CSRF section
//

// CSRF holds the HMAC key for form tokens.  An empty key means a random key
// per process, which breaks tokens across restarts and replicas.
type CSRF struct {
	Key    string        `koanf:"key"     validate:"omitempty,min=32"`
	MaxAge time.Duration `koanf:"max_age"`
}

//
// Log, Geo, and Vault sections
//

type Log struct {
	Level  string `koanf:"level"  validate:"omitempty,oneof=debug info warn error"`
	Stdout bool   `koanf:"stdout"`
}

// Geo points at an optional MaxMind City database.
type Geo struct {
	DBPath string `koanf:"db_path"`
}

// Vault enables `vault:` references.  Address and token come from the
// standard VAULT_ADDR and VAULT_TOKEN variables.
type Vault struct {
	Enabled  bool          `koanf:"enabled"`
	CacheTTL time.Duration `koanf:"cache_ttl"`
}

//
// Paths section (runtime only)
//

// Paths is resolved at runtime, never set in YAML or env.
type Paths struct {
	Root string // AGRI_ROOT or discovered parent
}

//
// Root aggregate
//

// Config is the immutable aggregate returned by Load() and cached in an
// atomic.Pointer for lock-free reads.
type Config struct {
	HTTP     HTTP     `koanf:"http"`
	Database Database `koanf:"database"`
	Forms    Forms    `koanf:"forms"`
	Auth     Auth     `koanf:"auth"`
	CSRF     CSRF     `koanf:"csrf"`
	Log      Log      `koanf:"log"`
	Geo      Geo      `koanf:"geo"`
	Vault    Vault    `koanf:"vault"`
	Paths    Paths    `koanf:"-"`
}
