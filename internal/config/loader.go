// internal/config/loader.go
//
// Configuration loader and reloader.
//
/*
Context
--------
`Load()` builds one immutable `Config` struct from three layers (highest
precedence last):

  1. Optional `<root>/conf/.env` file.
  2. `conf/modena.yaml`, when present.
  3. Environment variables prefixed `MODENA_`, where `__` maps to "."
     (e.g., `MODENA_HTTP__LISTEN_ADDR → http.listen_addr`).

The merged tree is unmarshalled over Defaults(), relative paths are
anchored to the root, the result is validated and cached in an
`atomic.Pointer` for lock-free reads.  `Reload()` calls `Load()` again and
swaps the pointer.

Instrumentation
---------------
  • DEBUG spans: root discovery, YAML read, env overlay.
  • ERROR spans: YAML parse, env overlay, unmarshal, validation failures.
  • INFO span: final "config loaded" with key highlights.
  • Logs use the global sugared logger (`zap.S()`) because config loads
    before the file logger exists.
*/
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	koanf "github.com/knadh/koanf/v2"
	"go.uber.org/zap"
)

// EnvPrefix marks process variables that override configuration keys.
const EnvPrefix = "MODENA_"

var current atomic.Pointer[Config]

/*──────────────────────────── root discovery ───────────────────────────────*/

// RootDir resolves MODENA_ROOT or climbs directories until conf/modena.yaml
// is found.  Falls back to the executable layout, then the cwd.
func RootDir() string {
	if r := os.Getenv(EnvPrefix + "ROOT"); r != "" {
		return r
	}

	wd, _ := os.Getwd()
	dir := wd
	for {
		if _, err := os.Stat(filepath.Join(dir, "conf", "modena.yaml")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir { // reached filesystem root
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

// Load reads configuration rooted at RootDir() and caches it.
func Load() (*Config, error) {
	return LoadFrom(RootDir())
}

// LoadFrom reads .env, YAML, and env overrides under root, validates, and
// caches the result.
func LoadFrom(root string) (*Config, error) {
	zap.S().Debugw("config root resolved", "root", root)

	// .env (optional, no error if missing)
	_ = godotenv.Load(filepath.Join(root, "conf", ".env"))

	k := koanf.New(".")

	yamlPath := filepath.Join(root, "conf", "modena.yaml")
	if _, err := os.Stat(yamlPath); err == nil {
		if err := k.Load(file.Provider(yamlPath), yaml.Parser()); err != nil {
			zap.S().Errorw("config yaml load failed", "file", yamlPath, "err", err)
			return nil, fmt.Errorf("config: %s: %w", yamlPath, err)
		}
		zap.S().Debugw("config yaml loaded", "file", yamlPath)
	} else {
		zap.S().Debugw("config yaml absent, using defaults", "file", yamlPath)
	}

	// Env overrides: MODENA_HTTP__LISTEN_ADDR → http.listen_addr
	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		zap.S().Errorw("config env overlay failed", "err", err)
		return nil, err
	}

	cfg := Defaults()
	if err := k.Unmarshal("", &cfg); err != nil {
		zap.S().Errorw("config unmarshal failed", "err", err)
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}

	cfg.Paths.Root = root
	cfg.anchor()
	if err := validateStruct(&cfg); err != nil {
		zap.S().Errorw("config validation failed", "err", err)
		return nil, err
	}

	current.Store(&cfg)
	zap.S().Infow("config loaded",
		"listen_addr", cfg.HTTP.ListenAddr,
		"https", cfg.HTTPS.Enabled,
		"apps_path", cfg.Apps.Path,
		"root", cfg.Paths.Root,
	)
	return &cfg, nil
}

// envKey maps MODENA_APPS__DEFAULT_APP to apps.default_app.
func envKey(s string) string {
	s = strings.TrimPrefix(s, EnvPrefix)
	return strings.ToLower(strings.ReplaceAll(s, "__", "."))
}

// anchor makes every configured path absolute under Paths.Root.
func (c *Config) anchor() {
	for _, p := range []*string{
		&c.Apps.Path,
		&c.Apps.ViewsPath,
		&c.HTTPS.CertPath,
		&c.HTTPS.KeyPath,
		&c.Log.Dir,
	} {
		if *p != "" && !filepath.IsAbs(*p) {
			*p = filepath.Join(c.Paths.Root, *p)
		}
	}
}

/*──────────────────────────── helpers ─────────────────────────────────────*/

func Get() *Config  { return current.Load() }
func Reload() error { _, err := Load(); return err }
