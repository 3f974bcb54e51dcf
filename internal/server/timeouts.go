// internal/server/timeouts.go
//
// HTTP server helper with fixed timeouts.
//
//   • ReadTimeout   – abort slow-loris headers (10 s)
//   • WriteTimeout  – cap total response time (15 s)
//   • IdleTimeout   – close keep-alives on idle clients (60 s)
//
// Every listener Plan builds goes through New.

package server

import (
	"net/http"
	"time"

	"go.uber.org/zap"
)

// ShutdownTimeout bounds graceful shutdown of all listeners.
const ShutdownTimeout = 10 * time.Second

// New constructs an *http.Server with the default timeouts.  Server errors
// are routed to log.
func New(addr string, handler http.Handler, log *zap.Logger) *http.Server {
	srv := &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	if log != nil {
		if el, err := zap.NewStdLogAt(log.Named("http"), zap.WarnLevel); err == nil {
			srv.ErrorLog = el
		}
	}
	return srv
}
