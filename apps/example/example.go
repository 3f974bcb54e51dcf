// apps/example/example.go
//
// Example app: renders its own views/index.html through the request
// renderer and hands every other path back to the front server.
package example

import (
	"context"
	"net/http"

	"github.com/yanizio/modena/internal/mount"
	"github.com/yanizio/modena/internal/tenant"
	"github.com/yanizio/modena/internal/view"
)

func init() {
	tenant.Register("example", tenant.LoaderFunc(Load))
}

// Load builds the handler.  GREETING in the app env overrides the default
// heading.
func Load(_ context.Context, env map[string]string) (http.Handler, error) {
	greeting := env["GREETING"]
	if greeting == "" {
		greeting = "Hello from the example app"
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		res := mount.FromContext(r.Context())
		if res == nil || r.URL.Path != res.Tenant.Prefix()+"/" {
			mount.Next(w, r)
			return
		}

		data := map[string]any{
			"Greeting": greeting,
			"App":      res.Tenant.Name,
			"Strategy": res.Strategy,
			"Original": res.OriginalURL().Path,
		}
		if err := view.Render(w, r, "index", data); err != nil {
			http.Error(w, "template error", http.StatusInternalServerError)
		}
	}), nil
}
