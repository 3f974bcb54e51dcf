package tenant

import (
	"errors"
	"net/url"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestNewSet_DefaultAppClearsOthers(t *testing.T) {
	descs := []*Descriptor{
		{Name: "blog", IsDefault: true},
		{Name: "shop"},
		{Name: "docs", IsDefault: true},
	}
	set, err := NewSet(descs, "shop", nil)
	if err != nil {
		t.Fatalf("NewSet: %v", err)
	}

	for _, d := range set.Tenants() {
		if want := d.Name == "shop"; d.IsDefault != want {
			t.Fatalf("%s.IsDefault = %v, want %v", d.Name, d.IsDefault, want)
		}
	}
	if !descs[0].IsDefault {
		t.Fatal("NewSet must not mutate the caller's descriptors")
	}
}

func TestNewSet_UnknownDefaultLogged(t *testing.T) {
	core, logs := observer.New(zap.ErrorLevel)
	set, err := NewSet([]*Descriptor{{Name: "blog", IsDefault: true}}, "nope", zap.New(core))
	if err != nil {
		t.Fatalf("NewSet: %v", err)
	}
	if set.Lookup("blog").IsDefault {
		t.Fatal("unknown default app must still clear existing defaults")
	}
	if logs.FilterMessage("error setting the default app").Len() != 1 {
		t.Fatalf("expected one error log, got %v", logs.All())
	}
}

func TestNewSet_RejectsBadNames(t *testing.T) {
	cases := map[string][]*Descriptor{
		"empty":     {{Name: ""}},
		"slash":     {{Name: "a/b"}},
		"space":     {{Name: "a b"}},
		"dot-dot":   {{Name: ".."}},
		"duplicate": {{Name: "a"}, {Name: "a"}},
	}
	for name, descs := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := NewSet(descs, "", nil)
			if !errors.Is(err, ErrInvalidName) && !errors.Is(err, ErrDuplicateName) {
				t.Fatalf("err = %v, want invalid or duplicate name", err)
			}
		})
	}
}

func TestNewSet_KeepsOrderAndCopiesEnv(t *testing.T) {
	env := map[string]string{"DB": "blog.db"}
	a := NewDescriptor("blog", nil, env)
	env["DB"] = "changed"

	set, err := NewSet([]*Descriptor{a, {Name: "shop"}, {Name: "docs"}}, "", nil)
	if err != nil {
		t.Fatalf("NewSet: %v", err)
	}
	got := set.Names()
	if len(got) != 3 || got[0] != "blog" || got[1] != "shop" || got[2] != "docs" {
		t.Fatalf("order = %v", got)
	}

	blogEnv := set.Lookup("blog").Env()
	if blogEnv["DB"] != "blog.db" {
		t.Fatalf("env leaked caller mutation: %v", blogEnv)
	}
	blogEnv["DB"] = "x"
	if set.Lookup("blog").Env()["DB"] != "blog.db" {
		t.Fatal("Env must return a copy")
	}
}

func TestRewrite(t *testing.T) {
	cases := []struct {
		in, name, want string
		changed        bool
	}{
		{"/posts", "blog", "/blog/posts", true},
		{"/", "shop", "/shop/", true},
		{"", "shop", "/shop", true},
		{"/blog/posts", "blog", "/blog/posts", false},
		{"/blogger", "blog", "/blogger", false},
	}
	for _, c := range cases {
		u := &url.URL{Path: c.in, RawQuery: "a=1"}
		got, changed := Rewrite(u, c.name)
		if got.Path != c.want || changed != c.changed {
			t.Errorf("Rewrite(%q, %q) = %q, %v; want %q, %v", c.in, c.name, got.Path, changed, c.want, c.changed)
		}
		if u.Path != c.in {
			t.Errorf("input mutated: %q", u.Path)
		}
		if got.RawQuery != "a=1" {
			t.Errorf("query lost: %q", got.RawQuery)
		}
	}
}

func TestRewrite_RawPath(t *testing.T) {
	u, err := url.Parse("/a%2Fb")
	if err != nil {
		t.Fatal(err)
	}
	got, _ := Rewrite(u, "blog")
	if got.EscapedPath() != "/blog/a%2Fb" {
		t.Fatalf("escaped path = %q", got.EscapedPath())
	}
}

func TestRegistry(t *testing.T) {
	e := Static(nil)
	Register("registry-test", e)
	if Lookup("registry-test") == nil {
		t.Fatal("registered entry not found")
	}
	if Lookup("registry-missing") != nil {
		t.Fatal("unexpected entry")
	}
}
