// internal/mount/context.go
//
// Resolution is the per-request record of which tenant a request was
// handed to and what must be put back when the request leaves it.
//
// Context
// -------
// The resolver middleware builds one Resolution per resolved request and
// stores it in the request context.  Tenant, the saved URL, and the saved
// renderer are set together at construction.  The restore step retires
// the whole record at once; a retired Resolution is invisible through
// FromContext, so no handler can observe half of it.
package mount

import (
	"context"
	"net/http"
	"net/url"
	"sync/atomic"

	"github.com/yanizio/modena/internal/tenant"
	"github.com/yanizio/modena/internal/view"
)

type ctxKey struct{}

// Resolution describes a request routed into a tenant.
type Resolution struct {
	Tenant   *tenant.Descriptor
	Strategy tenant.Strategy

	originalURL      *url.URL
	originalRenderer view.Renderer
	next             http.HandlerFunc
	restored         atomic.Bool
}

// OriginalURL returns a copy of the URL as it arrived, before rewriting.
func (res *Resolution) OriginalURL() *url.URL { return tenant.CloneURL(res.originalURL) }

// OriginalRenderer returns the renderer that was active before isolation.
func (res *Resolution) OriginalRenderer() view.Renderer { return res.originalRenderer }

// Restored reports whether the restore step already ran.
func (res *Resolution) Restored() bool { return res.restored.Load() }

// FromContext returns the live Resolution for ctx, or nil when the request
// is unresolved or has been restored.
func FromContext(ctx context.Context) *Resolution {
	res := resolutionOf(ctx)
	if res == nil || res.Restored() {
		return nil
	}
	return res
}

// resolutionOf returns the Resolution stored in ctx, retired or not.
func resolutionOf(ctx context.Context) *Resolution {
	res, _ := ctx.Value(ctxKey{}).(*Resolution)
	return res
}

func withResolution(ctx context.Context, res *Resolution) context.Context {
	return context.WithValue(ctx, ctxKey{}, res)
}
