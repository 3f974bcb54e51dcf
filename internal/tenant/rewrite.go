package tenant

import (
	"net/url"
	"strings"
)

// Rewrite returns a copy of u whose path starts with the tenant prefix
// "/<name>".  Paths that already carry the prefix are copied unchanged.
// RawPath, when present, is prefixed the same way so escaped paths stay
// consistent.  u itself is never modified.
func Rewrite(u *url.URL, name string) (*url.URL, bool) {
	out := CloneURL(u)
	prefix := "/" + name
	if strings.HasPrefix(out.Path, prefix) {
		return out, false
	}
	out.Path = prefix + out.Path
	if out.RawPath != "" {
		out.RawPath = prefix + out.RawPath
	}
	return out, true
}

// CloneURL deep-copies u, including its User info.
func CloneURL(u *url.URL) *url.URL {
	if u == nil {
		return &url.URL{}
	}
	cp := *u
	if u.User != nil {
		user := *u.User
		cp.User = &user
	}
	return &cp
}
