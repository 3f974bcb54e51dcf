// apps/debug/debug.go
//
// Demo app that echoes how the front server resolved the request.
package debug

import (
	"encoding/json"
	"net"
	"net/http"
	"sort"

	"github.com/go-chi/chi/v5"

	"github.com/yanizio/modena/internal/mount"
	"github.com/yanizio/modena/internal/tenant"
)

func init() {
	tenant.Register("debug", tenant.FactoryFunc(New))
}

// New builds the debug router.  Only env keys are reported, never values.
func New(env map[string]string) http.Handler {
	keys := make([]string, 0, len(env))
	for k := range env {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	r := chi.NewRouter()
	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		out := map[string]any{
			"rewritten": r.URL.Path,
			"ip":        clientIP(r),
			"ua":        r.UserAgent(),
			"env":       keys,
		}
		if res := mount.FromContext(r.Context()); res != nil {
			out["app"] = res.Tenant.Name
			out["strategy"] = res.Strategy
			out["original"] = res.OriginalURL().String()
		}

		w.Header().Set("Content-Type", "application/json")
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		_ = enc.Encode(out)
	})
	r.Get("/panic", func(http.ResponseWriter, *http.Request) {
		panic("debug: requested panic")
	})
	return r
}

// clientIP grabs the remote address without port.
func clientIP(r *http.Request) string {
	h, _, _ := net.SplitHostPort(r.RemoteAddr)
	return h
}
