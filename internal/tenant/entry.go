// internal/tenant/entry.go
//
// Entry points and the process-wide entry registry.
//
// A tenant's handler chain is produced by its EntryPoint.  Some apps hand
// back a ready http.Handler, others need to open connections or read
// files first; both shapes satisfy the same Load contract so the mount
// coordinator treats them alike.
//
// Apps register their entry point from an init() function:
//
//	func init() { tenant.Register("blog", tenant.FactoryFunc(newRouter)) }
//
// Discovery maps each app directory to a registered key (the directory
// name unless the manifest says otherwise).
package tenant

import (
	"context"
	"net/http"
	"sort"
	"sync"
)

// EntryPoint builds a tenant handler chain from its scoped environment.
type EntryPoint interface {
	Load(ctx context.Context, env map[string]string) (http.Handler, error)
}

// LoaderFunc is a deferred entry point.  It may block until ctx is done.
type LoaderFunc func(ctx context.Context, env map[string]string) (http.Handler, error)

// Load calls f.
func (f LoaderFunc) Load(ctx context.Context, env map[string]string) (http.Handler, error) {
	return f(ctx, env)
}

// FactoryFunc builds a handler synchronously.
type FactoryFunc func(env map[string]string) http.Handler

// Load calls f and ignores ctx.
func (f FactoryFunc) Load(_ context.Context, env map[string]string) (http.Handler, error) {
	return f(env), nil
}

// Static wraps an already constructed handler.
func Static(h http.Handler) EntryPoint {
	return FactoryFunc(func(map[string]string) http.Handler { return h })
}

//
// registry
//

var (
	mu       sync.RWMutex
	registry = map[string]EntryPoint{}
)

// Register is called from app init() functions.  A later call for the same
// key replaces the earlier one.
func Register(key string, e EntryPoint) {
	mu.Lock()
	registry[key] = e
	mu.Unlock()
}

// Lookup returns the entry point registered under key, or nil.
func Lookup(key string) EntryPoint {
	mu.RLock()
	defer mu.RUnlock()
	return registry[key]
}

// Registered returns every registered key, sorted.
func Registered() []string {
	mu.RLock()
	defer mu.RUnlock()
	out := make([]string, 0, len(registry))
	for k := range registry {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
