package tenant

import (
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

// blogShop is the two-tenant set used throughout: blog owns a domain, shop
// is the default.
func blogShop(t *testing.T, crossAccess bool) *Set {
	t.Helper()
	blog := &Descriptor{Name: "blog", PublicDomains: []string{"blog.example.com"}, CrossAccess: crossAccess}
	shop := &Descriptor{Name: "shop", IsDefault: true}
	set, err := NewSet([]*Descriptor{blog, shop}, "", nil)
	require.NoError(t, err)
	return set
}

func req(host, path string, query url.Values) Request {
	return Request{Host: host, Path: path, Query: query}
}

func TestResolve_Scenarios(t *testing.T) {
	rv := NewResolver(blogShop(t, false), nil)

	t.Run("domain match selects blog", func(t *testing.T) {
		m := rv.Resolve(req("blog.example.com", "/posts", nil))
		require.True(t, m.Resolved())
		assert.Equal(t, "blog", m.Tenant.Name)
		assert.Equal(t, StrategyDomain, m.Strategy)
	})

	t.Run("unknown host falls back to default", func(t *testing.T) {
		m := rv.Resolve(req("unknown.example.com", "/x", url.Values{}))
		require.True(t, m.Resolved())
		assert.Equal(t, "shop", m.Tenant.Name)
		assert.Equal(t, StrategyDefault, m.Strategy)
	})

	t.Run("path prefix selects blog", func(t *testing.T) {
		m := rv.Resolve(req("unknown.example.com", "/blog/posts", nil))
		require.True(t, m.Resolved())
		assert.Equal(t, "blog", m.Tenant.Name)
		assert.Equal(t, StrategyPath, m.Strategy)
	})
}

func TestResolve_DomainIsExclusive(t *testing.T) {
	rv := NewResolver(blogShop(t, false), nil)

	m := rv.Resolve(req("blog.example.com", "/shop/cart", url.Values{QueryParam: {"shop"}}))
	require.True(t, m.Resolved())
	assert.Equal(t, "blog", m.Tenant.Name)
	assert.Equal(t, StrategyDomain, m.Strategy)
}

func TestResolve_CrossAccess(t *testing.T) {
	rv := NewResolver(blogShop(t, true), nil)

	t.Run("query overrides the domain", func(t *testing.T) {
		m := rv.Resolve(req("blog.example.com", "/", url.Values{QueryParam: {"shop"}}))
		require.True(t, m.Resolved())
		assert.Equal(t, "shop", m.Tenant.Name)
		assert.Equal(t, StrategyQuery, m.Strategy)
	})

	t.Run("path overrides the domain", func(t *testing.T) {
		m := rv.Resolve(req("blog.example.com", "/shop/cart", nil))
		require.True(t, m.Resolved())
		assert.Equal(t, "shop", m.Tenant.Name)
		assert.Equal(t, StrategyPath, m.Strategy)
	})

	t.Run("default is never consulted", func(t *testing.T) {
		m := rv.Resolve(req("blog.example.com", "/posts", nil))
		assert.False(t, m.Resolved())
		assert.Equal(t, StrategyNone, m.Strategy)
	})
}

func TestResolve_QueryOverridesPath(t *testing.T) {
	rv := NewResolver(blogShop(t, false), nil)

	m := rv.Resolve(req("unknown.example.com", "/blog/posts", url.Values{QueryParam: {"shop"}}))
	require.True(t, m.Resolved())
	assert.Equal(t, "shop", m.Tenant.Name)
	assert.Equal(t, StrategyQuery, m.Strategy)
}

func TestResolve_UnknownQueryContinues(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	rv := NewResolver(blogShop(t, false), zap.New(core))

	m := rv.Resolve(req("unknown.example.com", "/blog/posts", url.Values{QueryParam: {"nope"}}))
	require.True(t, m.Resolved())
	assert.Equal(t, "blog", m.Tenant.Name)
	assert.Equal(t, 1, logs.FilterMessage("unable to match the $modena query parameter to any app").Len())
}

func TestResolve_NoDefaultIsUnresolved(t *testing.T) {
	set, err := NewSet([]*Descriptor{{Name: "blog"}, {Name: "shop"}}, "", nil)
	require.NoError(t, err)

	core, logs := observer.New(zap.InfoLevel)
	m := NewResolver(set, zap.New(core)).Resolve(req("example.com", "/x", nil))

	assert.False(t, m.Resolved())
	assert.Nil(t, m.Tenant)
	assert.Equal(t, 1, logs.FilterMessage("the request could not be resolved to any app").Len())
}

func TestResolve_DefaultConflictIsDeterministic(t *testing.T) {
	set, err := NewSet([]*Descriptor{
		{Name: "alpha"},
		{Name: "beta", IsDefault: true},
		{Name: "gamma", IsDefault: true},
	}, "", nil)
	require.NoError(t, err)

	core, logs := observer.New(zap.WarnLevel)
	rv := NewResolver(set, zap.New(core))

	for i := 0; i < 20; i++ {
		m := rv.Resolve(req("example.com", "/x", nil))
		require.True(t, m.Resolved())
		require.Equal(t, "beta", m.Tenant.Name)
	}

	conflicts := logs.FilterMessage("conflict: several apps are set as default")
	require.Equal(t, 20, conflicts.Len())
	assert.Equal(t, []interface{}{"beta", "gamma"}, conflicts.All()[0].ContextMap()["apps"])
}

func TestResolve_DomainConflictPicksFirst(t *testing.T) {
	set, err := NewSet([]*Descriptor{
		{Name: "one", PublicDomains: []string{"a.example.com"}},
		{Name: "two", PublicDomains: []string{"b.example.com", "a.example.com"}},
	}, "", nil)
	require.NoError(t, err)

	core, logs := observer.New(zap.WarnLevel)
	m := NewResolver(set, zap.New(core)).Resolve(req("a.example.com", "/two", nil))

	require.True(t, m.Resolved())
	assert.Equal(t, "one", m.Tenant.Name)
	assert.Equal(t, 1, logs.FilterMessage("conflict: several apps match the public domain").Len())
}

func TestResolve_HostIsMatchedWithPort(t *testing.T) {
	rv := NewResolver(blogShop(t, false), nil)

	m := rv.Resolve(req("blog.example.com:8080", "/posts", nil))
	require.True(t, m.Resolved())
	assert.Equal(t, "shop", m.Tenant.Name, "the port is part of the host compared against domains")
}

func TestResolve_Deterministic(t *testing.T) {
	rv := NewResolver(blogShop(t, false), nil)
	inputs := []Request{
		req("blog.example.com", "/posts", nil),
		req("x.example.com", "/blog", nil),
		req("x.example.com", "/", url.Values{QueryParam: {"blog"}}),
		req("", "", nil),
	}
	for _, in := range inputs {
		first := rv.Resolve(in)
		for i := 0; i < 10; i++ {
			assert.Equal(t, first, rv.Resolve(in))
		}
	}
}

func TestResolveHTTP_ReadsRequest(t *testing.T) {
	rv := NewResolver(blogShop(t, false), nil)

	r := httptest.NewRequest("GET", "http://other.example.com/anything?$modena=blog", nil)
	m := rv.ResolveHTTP(r)

	require.True(t, m.Resolved())
	assert.Equal(t, "blog", m.Tenant.Name)
	assert.Equal(t, "/anything", r.URL.Path, "resolution must not mutate the request")
}
