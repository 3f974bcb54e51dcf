// internal/mount/coordinator.go
//
// Mount coordinator: attaches every tenant to the shared router.
//
// Boot protocol
// -------------
//
//  1. Use the resolver middleware (first in the chain).
//  2. Use render isolation.
//  3. Use the panic catcher, which restores the request before the panic
//     travels on.
//  4. Load every tenant concurrently and Mount("/<name>", handler) as each
//     one settles.  A failing tenant is logged and counted; the others
//     carry on.
//  5. After the barrier, install NotFound and MethodNotAllowed.  chi copies
//     them into every mounted chi sub-router that has none of its own, so
//     a request that runs off the end of its tenant lands in notFound,
//     gets restored, and reaches Options.Fallback.
//
// The router must not serve traffic until Mount returns.
package mount

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/yanizio/modena/internal/metrics"
	"github.com/yanizio/modena/internal/tenant"
	"github.com/yanizio/modena/internal/view"
)

var (
	// ErrAlreadyMounted is returned by every Mount call after the first.
	ErrAlreadyMounted = errors.New("mount: tenants already mounted")

	// ErrNoEntryPoint marks a tenant without an entry point.
	ErrNoEntryPoint = errors.New("mount: tenant has no entry point")

	// ErrNoHandler marks an entry point that produced a nil handler.
	ErrNoHandler = errors.New("mount: entry point returned no handler")
)

// Options configures a Coordinator.  The zero value is usable.
type Options struct {
	// AppsPath is the directory holding "<name>/views" for every tenant.
	AppsPath string

	// Renderer is the shared server's renderer.  A renderer already on the
	// request context takes precedence.
	Renderer view.Renderer

	// Fallback receives requests that no tenant handled, after restore.
	// Defaults to http.NotFoundHandler().
	Fallback http.Handler

	// OnError receives panics raised inside the chain, with the restored
	// request.  When nil the panic is re-raised for net/http to report.
	OnError func(w http.ResponseWriter, r *http.Request, recovered any)

	// MountTimeout bounds each tenant's load.  Zero waits indefinitely.
	MountTimeout time.Duration
}

// Exposure is the outcome of mounting one tenant.
type Exposure struct {
	Tenant  *tenant.Descriptor
	Err     error
	Elapsed time.Duration
}

// OK reports whether the tenant was mounted.
func (e Exposure) OK() bool { return e.Err == nil }

// Report lists one Exposure per tenant, in set order.
type Report struct {
	Exposures []Exposure
}

// Exposed counts successfully mounted tenants.
func (r Report) Exposed() int {
	n := 0
	for _, e := range r.Exposures {
		if e.OK() {
			n++
		}
	}
	return n
}

// Failed returns the exposures that did not mount.
func (r Report) Failed() []Exposure {
	var out []Exposure
	for _, e := range r.Exposures {
		if !e.OK() {
			out = append(out, e)
		}
	}
	return out
}

// Coordinator owns the tenant lifecycle on one shared router.
type Coordinator struct {
	router   chi.Router
	set      *tenant.Set
	resolver *tenant.Resolver
	opts     Options
	log      *zap.Logger

	mu      sync.Mutex // serializes router registration
	mounted atomic.Bool
}

// New prepares a Coordinator.  Nothing touches router until Mount.
func New(router chi.Router, set *tenant.Set, opts Options, log *zap.Logger) *Coordinator {
	if log == nil {
		log = zap.NewNop()
	}
	if opts.Fallback == nil {
		opts.Fallback = http.NotFoundHandler()
	}
	return &Coordinator{
		router:   router,
		set:      set,
		resolver: tenant.NewResolver(set, log.Named("resolver")),
		opts:     opts,
		log:      log,
	}
}

// Mount wires the middleware, loads and mounts every tenant, installs the
// trailing handlers, and reports per-tenant outcomes.  Tenant failures are
// never returned as an error.
func (c *Coordinator) Mount(ctx context.Context) (Report, error) {
	if !c.mounted.CompareAndSwap(false, true) {
		return Report{}, ErrAlreadyMounted
	}
	if err := c.use(c.resolve, c.isolate, c.catch); err != nil {
		return Report{}, err
	}

	tenants := c.set.Tenants()
	rep := Report{Exposures: make([]Exposure, len(tenants))}

	var g errgroup.Group
	for i, t := range tenants {
		i, t := i, t
		g.Go(func() error {
			rep.Exposures[i] = c.expose(ctx, t)
			return nil
		})
	}
	_ = g.Wait()

	c.mu.Lock()
	c.router.NotFound(c.notFound)
	c.router.MethodNotAllowed(c.notFound)
	c.mu.Unlock()

	exposed := rep.Exposed()
	metrics.ExposedTenants.Set(float64(exposed))
	c.log.Info("tenants exposed",
		zap.Int("exposed", exposed),
		zap.Int("total", len(tenants)))
	return rep, nil
}

// use installs middleware, turning chi's "routes already defined" panic
// into an error.
func (c *Coordinator) use(mws ...func(http.Handler) http.Handler) (err error) {
	defer func() {
		if v := recover(); v != nil {
			err = fmt.Errorf("mount: install middleware: %v", v)
		}
	}()
	c.router.Use(mws...)
	return nil
}

// expose loads and mounts one tenant.
func (c *Coordinator) expose(ctx context.Context, t *tenant.Descriptor) Exposure {
	start := time.Now()
	log := c.log.With(zap.String("app", t.Name))

	if c.opts.MountTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.opts.MountTimeout)
		defer cancel()
	}

	h, err := c.load(ctx, t)
	if err == nil {
		err = c.attach(t, h)
	}

	exp := Exposure{Tenant: t, Err: err, Elapsed: time.Since(start)}
	if err != nil {
		metrics.TenantMountsTotal.WithLabelValues("failed").Inc()
		log.Error("error exposing app", zap.Error(err))
		return exp
	}
	metrics.TenantMountsTotal.WithLabelValues("ok").Inc()
	log.Info("successfully exposed app",
		zap.String("mount", t.Prefix()),
		zap.Duration("elapsed", exp.Elapsed))
	return exp
}

// load runs the entry point, capturing errors and panics.  It gives up when
// ctx is done even if the entry point never returns.
func (c *Coordinator) load(ctx context.Context, t *tenant.Descriptor) (http.Handler, error) {
	if t.Entry == nil {
		return nil, ErrNoEntryPoint
	}

	type result struct {
		h   http.Handler
		err error
	}
	done := make(chan result, 1)
	go func() {
		defer func() {
			if v := recover(); v != nil {
				done <- result{err: fmt.Errorf("entry point panicked: %v", v)}
			}
		}()
		h, err := t.Entry.Load(ctx, t.Env())
		done <- result{h: h, err: err}
	}()

	select {
	case res := <-done:
		if res.err != nil {
			return nil, res.err
		}
		if res.h == nil {
			return nil, ErrNoHandler
		}
		return res.h, nil
	case <-ctx.Done():
		return nil, fmt.Errorf("load interrupted: %w", ctx.Err())
	}
}

// attach mounts h under the tenant prefix.
func (c *Coordinator) attach(t *tenant.Descriptor, h http.Handler) (err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	defer func() {
		if v := recover(); v != nil {
			err = fmt.Errorf("mount %s: %v", t.Prefix(), v)
		}
	}()
	c.router.Mount(t.Prefix(), h)
	return nil
}

// viewDir is where a tenant's templates live.
func (c *Coordinator) viewDir(t *tenant.Descriptor) string {
	return filepath.Join(c.opts.AppsPath, t.Name, "views")
}
