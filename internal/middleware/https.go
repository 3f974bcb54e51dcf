// Package middleware holds small, composable HTTP wrappers for the shared
// front server.
package middleware

import (
	"net"
	"net/http"
	"strings"
)

// RedirectHTTPS wraps h.  A plain-HTTP request for any host but localhost
// gets a 308 Permanent Redirect to the same URI over HTTPS on the default
// port.  TLS requests reach h unchanged.
func RedirectHTTPS(h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		host := stripPort(r.Host)
		if r.TLS != nil || host == "" || host == "localhost" {
			h.ServeHTTP(w, r)
			return
		}
		target := "https://" + host + r.URL.RequestURI()
		http.Redirect(w, r, target, http.StatusPermanentRedirect)
	})
}

// stripPort removes the :port suffix from Host when present.  Bracketed
// IPv6 literals keep their brackets.
func stripPort(h string) string {
	if host, _, err := net.SplitHostPort(h); err == nil {
		if strings.Contains(host, ":") {
			return "[" + host + "]"
		}
		return host
	}
	return h
}
