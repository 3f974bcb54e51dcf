// internal/discovery/discovery.go
//
// App discovery: turns the apps directory into tenant descriptors.
//
// Context
// -------
// Every sub-directory of the apps path is one app.  Its name is the
// directory name.  An optional manifest (`modena.json`, YAML accepted)
// supplies the entry point key, public domains, cross-access flag, and
// default flag.  The entry point itself must have been registered from the
// app package's init() under that key (the directory name when the
// manifest is silent).
//
// Environment scoping
// -------------------
// When enabled, process variables named `<APP>__<KEY>` (APP is the app name
// upper-cased with "-" as "_") are moved into that app's private env as
// `<KEY>` and removed from the process.  Values of the form
// `vault:<mount>/<path>#<key>` are resolved through the secret resolver; a
// value that cannot be resolved is logged and dropped.
package discovery

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	koanf "github.com/knadh/koanf/v2"
	"go.uber.org/zap"

	"github.com/yanizio/modena/internal/tenant"
	"github.com/yanizio/modena/internal/vault"
)

// ManifestFile is the per-app manifest name.
const ManifestFile = "modena.json"

// SecretResolver resolves a `vault:` reference to its value.
type SecretResolver interface {
	Resolve(ctx context.Context, ref string) (string, error)
}

// Options tunes Discover.
type Options struct {
	LoadEnv bool                              // scope <APP>__ variables into each app
	Secrets SecretResolver                    // nil drops vault: values
	Lookup  func(key string) tenant.EntryPoint // defaults to tenant.Lookup
}

// Manifest is the parsed modena.json.
type Manifest struct {
	Entry         string   `koanf:"entry"`
	PublicDomains []string `koanf:"publicDomains"`
	CrossAccess   bool     `koanf:"publicDomainCrossAccess"`
	Default       bool     `koanf:"default"`
}

// Discover lists appsPath and returns one descriptor per loadable app, in
// directory order.  Apps with a broken manifest or no registered entry
// point are logged and skipped.
func Discover(ctx context.Context, appsPath string, opts Options, log *zap.Logger) ([]*tenant.Descriptor, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if opts.Lookup == nil {
		opts.Lookup = tenant.Lookup
	}
	if appsPath == "" {
		log.Error("the apps path is not set, no app will be exposed")
		return nil, nil
	}

	entries, err := os.ReadDir(appsPath)
	if err != nil {
		log.Error("error reading the apps path", zap.String("path", appsPath), zap.Error(err))
		return nil, fmt.Errorf("discovery: %w", err)
	}

	var out []*tenant.Descriptor
	for _, de := range entries {
		name := de.Name()
		if !de.IsDir() || strings.HasPrefix(name, ".") {
			continue
		}
		dir := filepath.Join(appsPath, name)
		alog := log.With(zap.String("app", name))

		m, err := ReadManifest(dir)
		if err != nil {
			alog.Error("error reading the app manifest", zap.Error(err))
			continue
		}

		key := m.Entry
		if key == "" {
			key = name
		}
		entry := opts.Lookup(key)
		if entry == nil {
			alog.Warn("no entry point registered for the app", zap.String("entry", key))
			continue
		}

		var envs map[string]string
		if opts.LoadEnv {
			envs = scopeEnv(ctx, name, opts.Secrets, alog)
		}

		d := tenant.NewDescriptor(name, entry, envs)
		d.PublicDomains = m.PublicDomains
		d.CrossAccess = m.CrossAccess
		d.IsDefault = m.Default
		d.Path = dir
		out = append(out, d)

		alog.Debug("app discovered",
			zap.String("entry", key),
			zap.Strings("domains", d.PublicDomains),
			zap.Int("env", len(envs)))
	}
	return out, nil
}

// ReadManifest parses dir/modena.json.  A missing file yields the zero
// Manifest.
func ReadManifest(dir string) (Manifest, error) {
	var m Manifest
	p := filepath.Join(dir, ManifestFile)
	if _, err := os.Stat(p); err != nil {
		if os.IsNotExist(err) {
			return m, nil
		}
		return m, err
	}

	k := koanf.New(".")
	if err := k.Load(file.Provider(p), yaml.Parser()); err != nil {
		return m, fmt.Errorf("%s: %w", p, err)
	}
	if err := k.Unmarshal("", &m); err != nil {
		return m, fmt.Errorf("%s: %w", p, err)
	}
	return m, nil
}

// EnvPrefix is the process variable prefix owned by app name.
func EnvPrefix(name string) string {
	return strings.ToUpper(strings.ReplaceAll(name, "-", "_")) + "__"
}

// scopeEnv moves the app's variables out of the process environment.
func scopeEnv(ctx context.Context, name string, secrets SecretResolver, log *zap.Logger) map[string]string {
	prefix := EnvPrefix(name)

	var taken []string
	k := koanf.New("\x00") // env keys never contain NUL, so nothing nests
	err := k.Load(env.ProviderWithValue(prefix, "\x00", func(key, value string) (string, interface{}) {
		taken = append(taken, key)
		return strings.TrimPrefix(key, prefix), value
	}), nil)
	if err != nil {
		log.Error("error reading the app environment", zap.Error(err))
		return nil
	}

	for _, key := range taken {
		_ = os.Unsetenv(key)
	}

	out := make(map[string]string, len(taken))
	keys := k.Keys()
	sort.Strings(keys)
	for _, key := range keys {
		val := k.String(key)
		if strings.HasPrefix(val, vault.Prefix) {
			resolved, err := resolveSecret(ctx, secrets, val)
			if err != nil {
				log.Error("error resolving the app secret, dropping it",
					zap.String("key", key), zap.Error(err))
				continue
			}
			val = resolved
		}
		out[key] = val
	}
	return out
}

func resolveSecret(ctx context.Context, secrets SecretResolver, ref string) (string, error) {
	if secrets == nil {
		return "", fmt.Errorf("vault is disabled, cannot resolve %q", ref)
	}
	return secrets.Resolve(ctx, ref)
}
