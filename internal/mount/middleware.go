// internal/mount/middleware.go
//
// The three middlewares installed ahead of the tenant mounts, and the
// restore step they share with the trailing handlers.
//
// Requests are never mutated in place.  The resolver hands a shallow copy
// with a cloned URL downstream, and restore builds another copy from the
// saved state, so callers up the chain always hold the request as it
// arrived.
package mount

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/yanizio/modena/internal/metrics"
	"github.com/yanizio/modena/internal/tenant"
	"github.com/yanizio/modena/internal/view"
)

//
// resolver
//

func (c *Coordinator) resolve(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m := c.resolver.ResolveHTTP(r)
		if !m.Resolved() {
			next.ServeHTTP(w, r)
			return
		}

		res := &Resolution{
			Tenant:           m.Tenant,
			Strategy:         m.Strategy,
			originalURL:      tenant.CloneURL(r.URL),
			originalRenderer: c.renderer(r),
			next:             c.notFound,
		}

		u, changed := tenant.Rewrite(r.URL, m.Tenant.Name)
		if changed {
			c.log.Debug("request url updated",
				zap.String("app", m.Tenant.Name),
				zap.String("from", r.URL.Path),
				zap.String("to", u.Path))
		}

		r2 := r.WithContext(withResolution(r.Context(), res))
		r2.URL = u
		next.ServeHTTP(w, r2)
	})
}

//
// render isolation
//

func (c *Coordinator) isolate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rd := c.renderer(r)
		if res := FromContext(r.Context()); res != nil {
			rd = view.Scoped(res.originalRenderer, c.viewDir(res.Tenant))
		}
		if rd == nil {
			next.ServeHTTP(w, r)
			return
		}
		next.ServeHTTP(w, r.WithContext(view.WithRenderer(r.Context(), rd)))
	})
}

// renderer is the request's renderer before any tenant scoping.
func (c *Coordinator) renderer(r *http.Request) view.Renderer {
	if rd := view.FromContext(r.Context()); rd != nil {
		return rd
	}
	return c.opts.Renderer
}

//
// error handler
//

func (c *Coordinator) catch(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			v := recover()
			if v == nil {
				return
			}
			if res := resolutionOf(r.Context()); res != nil {
				c.log.Warn("an error occurred serving the requested resource in the app, restoring the original request",
					zap.String("app", res.Tenant.Name),
					zap.String("url", r.URL.Path),
					zap.Any("error", v))
			}
			restored := c.restore(r, "error")
			if v == http.ErrAbortHandler || c.opts.OnError == nil {
				panic(v)
			}
			c.opts.OnError(w, restored, v)
		}()
		next.ServeHTTP(w, r)
	})
}

//
// not found inside tenant
//

func (c *Coordinator) notFound(w http.ResponseWriter, r *http.Request) {
	if res := FromContext(r.Context()); res != nil {
		c.log.Info("unable to find the requested resource in the app, restoring the original request",
			zap.String("app", res.Tenant.Name),
			zap.String("url", r.URL.Path))
		r = c.restore(r, "not_found")
	}
	c.opts.Fallback.ServeHTTP(w, r)
}

// Next hands a request that a tenant does not handle back to the shared
// server.  chi tenants fall through on their own; other handlers call Next.
func Next(w http.ResponseWriter, r *http.Request) {
	res := FromContext(r.Context())
	if res == nil || res.next == nil {
		http.NotFound(w, r)
		return
	}
	res.next(w, r)
}

//
// restore
//

// restore retires the request's Resolution and returns a copy of r with
// the original URL and renderer and a fresh chi routing state.  A
// Resolution retired earlier (a panic raised by the fallback after
// notFound) still yields the restored copy but is counted once.  Requests
// that were never resolved are returned unchanged.
func (c *Coordinator) restore(r *http.Request, reason string) *http.Request {
	res := resolutionOf(r.Context())
	if res == nil {
		return r
	}
	if res.restored.CompareAndSwap(false, true) {
		metrics.RestoresTotal.WithLabelValues(reason).Inc()
	}

	ctx := context.WithValue(r.Context(), chi.RouteCtxKey, nil)
	ctx = withResolution(ctx, nil)
	ctx = view.WithRenderer(ctx, res.originalRenderer)

	r2 := r.WithContext(ctx)
	r2.URL = res.OriginalURL()
	return r2
}
