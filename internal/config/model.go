// internal/config/model.go
//
// Typed configuration model for Modena.
//
// Context
// -------
// These structs define the shape of the configuration tree that
// `internal/config/loader.go` builds from three overlay layers:
//
//   • optional `conf/.env`                     – dotenv values,
//   • `conf/modena.yaml`                       – primary static file,
//   • `MODENA_`-prefixed environment overrides – highest precedence.
//
// Defaults() pre-fills the struct before unmarshal, so a key missing from
// every layer keeps its default.  Relative paths are anchored to the root
// directory once loading finishes.
//
// Notes
// -----
//   • Struct tags use `koanf:"…"`, not `yaml:"…"`.
//   • The `Paths` block is filled at runtime; YAML must not try to set it.

package config

import "time"

//
// HTTP section
//

// HTTP holds the plain-text listener.
type HTTP struct {
	ListenAddr      string `koanf:"listen_addr"      validate:"required,hostname_port"`
	ForceHTTPS      bool   `koanf:"force_https"`
	SecurityHeaders bool   `koanf:"security_headers"`
}

//
// HTTPS section
//

// HTTPS holds the TLS listener.  The listener is skipped when either file
// is missing.
type HTTPS struct {
	Enabled     bool   `koanf:"enabled"`
	ListenAddr  string `koanf:"listen_addr"  validate:"required,hostname_port"`
	CertPath    string `koanf:"cert_path"    validate:"required_if=Enabled true"`
	KeyPath     string `koanf:"key_path"     validate:"required_if=Enabled true"`
	DisableHTTP bool   `koanf:"disable_http"`
}

//
// Apps section
//

// Apps locates the hosted apps and tunes how they are mounted.
type Apps struct {
	Path         string        `koanf:"path"          validate:"required"`
	DefaultApp   string        `koanf:"default_app"`
	MountTimeout time.Duration `koanf:"mount_timeout" validate:"gte=0"`
	ViewsPath    string        `koanf:"views_path"`
	LoadEnv      bool          `koanf:"load_env"`
}

//
// Observability
//

// Metrics configures the Prometheus listener.  An empty address disables it.
type Metrics struct {
	ListenAddr string `koanf:"listen_addr" validate:"omitempty,hostname_port"`
}

// Log configures the file logger.
type Log struct {
	Level string `koanf:"level" validate:"oneof=debug info warn error"`
	Dir   string `koanf:"dir"   validate:"required"`
}

// Vault toggles secret resolution for `vault:` environment values.
type Vault struct {
	Enabled   bool          `koanf:"enabled"`
	SecretTTL time.Duration `koanf:"secret_ttl" validate:"gte=0"`
}

//
// Paths section (runtime only)
//

// Paths is resolved at runtime, never set in YAML or env.
type Paths struct {
	Root string // MODENA_ROOT or discovered parent
}

//
// Root aggregate
//

// Config is the immutable aggregate returned by Load() and cached in an
// atomic.Pointer for lock-free reads.
type Config struct {
	HTTP    HTTP    `koanf:"http"`
	HTTPS   HTTPS   `koanf:"https"`
	Apps    Apps    `koanf:"apps"`
	Metrics Metrics `koanf:"metrics"`
	Log     Log     `koanf:"log"`
	Vault   Vault   `koanf:"vault"`
	Paths   Paths   `koanf:"-"`
}

// Defaults returns the configuration used for keys no layer sets.
func Defaults() Config {
	return Config{
		HTTP:  HTTP{ListenAddr: ":8080", SecurityHeaders: true},
		HTTPS: HTTPS{ListenAddr: ":443"},
		Apps: Apps{
			Path:    "apps",
			LoadEnv: true,
		},
		Log:   Log{Level: "info", Dir: "logs"},
		Vault: Vault{SecretTTL: 5 * time.Minute},
	}
}
