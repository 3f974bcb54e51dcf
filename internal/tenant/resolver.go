// internal/tenant/resolver.go
//
// Request → tenant resolution.
//
// Strategy chain (first authoritative hit wins)
// ---------------------------------------------
//
//  1. domain   Host header equals one of a tenant's PublicDomains.  A single
//     hit is exclusive unless the tenant allows cross access, in which case
//     steps 2 and 3 may still pick a tenant and step 4 is never tried.
//  2. query    The reserved "$modena" parameter names a tenant.
//  3. path     "/<name>" is a literal prefix of the URL path.
//  4. default  The tenant flagged IsDefault.
//
// Several tenants claiming the same domain, or several defaults, are
// configuration conflicts.  They are logged and counted, and the first
// tenant in set order wins so the outcome is reproducible.
//
// The resolver never touches the request.  Rewriting happens in the mount
// middleware via Rewrite.
package tenant

import (
	"net/http"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"github.com/yanizio/modena/internal/metrics"
)

// QueryParam is the reserved query parameter that force-routes a request.
const QueryParam = "$modena"

// Strategy names the rule that selected a tenant.
type Strategy string

const (
	StrategyNone    Strategy = "none"
	StrategyDomain  Strategy = "domain"
	StrategyQuery   Strategy = "query"
	StrategyPath    Strategy = "path"
	StrategyDefault Strategy = "default"
)

// Request is the subset of an inbound request that resolution reads.
type Request struct {
	Host  string
	Query url.Values
	Path  string
}

// RequestFrom extracts the resolution inputs from r.
func RequestFrom(r *http.Request) Request {
	return Request{
		Host:  r.Host,
		Query: r.URL.Query(),
		Path:  r.URL.Path,
	}
}

// Match is the outcome of one resolution.  Tenant is nil when unresolved.
type Match struct {
	Tenant   *Descriptor
	Strategy Strategy
}

// Resolved reports whether a tenant was selected.
func (m Match) Resolved() bool { return m.Tenant != nil }

// Resolver selects tenants from a frozen Set.  Safe for concurrent use.
type Resolver struct {
	set *Set
	log *zap.Logger
}

// NewResolver binds a Resolver to set.
func NewResolver(set *Set, log *zap.Logger) *Resolver {
	if log == nil {
		log = zap.NewNop()
	}
	return &Resolver{set: set, log: log}
}

// ResolveHTTP resolves r without modifying it.
func (rv *Resolver) ResolveHTTP(r *http.Request) Match {
	return rv.Resolve(RequestFrom(r))
}

// Resolve runs the strategy chain for req.
func (rv *Resolver) Resolve(req Request) Match {
	log := rv.log.With(zap.String("host", req.Host), zap.String("path", req.Path))
	log.Debug("accessing")

	m := rv.resolve(req, log)
	metrics.ResolutionsTotal.WithLabelValues(string(m.Strategy)).Inc()
	if !m.Resolved() {
		log.Info("the request could not be resolved to any app")
	}
	return m
}

func (rv *Resolver) resolve(req Request, log *zap.Logger) Match {
	tenants := rv.set.list

	if t := rv.byDomain(tenants, req.Host, log); t != nil {
		if !t.CrossAccess {
			return Match{Tenant: t, Strategy: StrategyDomain}
		}
		// Cross access: query and path may still claim the request, but
		// the default app must never take over a domain-scoped request.
		if t := rv.byQuery(tenants, req.Query, log); t != nil {
			return Match{Tenant: t, Strategy: StrategyQuery}
		}
		if t := rv.byPath(tenants, req.Path, log); t != nil {
			return Match{Tenant: t, Strategy: StrategyPath}
		}
		return Match{Strategy: StrategyNone}
	}

	if t := rv.byQuery(tenants, req.Query, log); t != nil {
		return Match{Tenant: t, Strategy: StrategyQuery}
	}
	if t := rv.byPath(tenants, req.Path, log); t != nil {
		return Match{Tenant: t, Strategy: StrategyPath}
	}
	if t := rv.byDefault(tenants, log); t != nil {
		return Match{Tenant: t, Strategy: StrategyDefault}
	}
	return Match{Strategy: StrategyNone}
}

//
// strategies
//

func (rv *Resolver) byDomain(tenants []*Descriptor, host string, log *zap.Logger) *Descriptor {
	matching := filter(tenants, func(d *Descriptor) bool { return d.ServesDomain(host) })
	if len(matching) > 1 {
		metrics.ConfigConflictsTotal.WithLabelValues("domain").Inc()
		log.Warn("conflict: several apps match the public domain",
			zap.Strings("apps", names(matching)))
	}
	if len(matching) == 0 {
		log.Debug("unable to match the public domain to any app")
		return nil
	}
	log.Debug("request resolved through public domain",
		zap.String("app", matching[0].Name),
		zap.Bool("cross_access", matching[0].CrossAccess))
	return matching[0]
}

func (rv *Resolver) byQuery(tenants []*Descriptor, q url.Values, log *zap.Logger) *Descriptor {
	name := q.Get(QueryParam)
	if name == "" {
		log.Debug("no $modena query parameter was provided")
		return nil
	}
	for _, d := range tenants {
		if d.Name == name {
			log.Debug("request resolved through $modena query parameter",
				zap.String("app", d.Name))
			return d
		}
	}
	log.Info("unable to match the $modena query parameter to any app",
		zap.String("query", name))
	return nil
}

func (rv *Resolver) byPath(tenants []*Descriptor, path string, log *zap.Logger) *Descriptor {
	for _, d := range tenants {
		if strings.HasPrefix(path, d.Prefix()) {
			log.Debug("request resolved through url pathname", zap.String("app", d.Name))
			return d
		}
	}
	log.Debug("unable to match the url pathname to any app")
	return nil
}

func (rv *Resolver) byDefault(tenants []*Descriptor, log *zap.Logger) *Descriptor {
	matching := filter(tenants, func(d *Descriptor) bool { return d.IsDefault })
	if len(matching) > 1 {
		metrics.ConfigConflictsTotal.WithLabelValues("default").Inc()
		log.Warn("conflict: several apps are set as default",
			zap.Strings("apps", names(matching)))
	}
	if len(matching) == 0 {
		log.Debug("no default app was set")
		return nil
	}
	log.Debug("request resolved through default app", zap.String("app", matching[0].Name))
	return matching[0]
}

//
// helpers
//

func filter(tenants []*Descriptor, keep func(*Descriptor) bool) []*Descriptor {
	var out []*Descriptor
	for _, d := range tenants {
		if keep(d) {
			out = append(out, d)
		}
	}
	return out
}

func names(tenants []*Descriptor) []string {
	out := make([]string, len(tenants))
	for i, d := range tenants {
		out[i] = d.Name
	}
	return out
}
