// internal/server/listen.go
//
// Listener planning and lifecycle.
//
// Context
// -------
// Plan turns the configuration into the set of servers the process runs:
//
//   • HTTPS on https.listen_addr when enabled and both PEM files exist.
//   • HTTP on http.listen_addr unless HTTPS is active and
//     https.disable_http is set.  With http.force_https and an active HTTPS
//     listener, the plain listener only redirects.
//   • Prometheus on metrics.listen_addr when set.
//
// Run starts every listener in one errgroup.  Cancelling ctx, or any
// listener failing, shuts all of them down gracefully.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/yanizio/modena/internal/config"
	"github.com/yanizio/modena/internal/middleware"
)

// ErrNoListener is returned by Run when nothing was planned.
var ErrNoListener = errors.New("server: no listener planned")

// Listener is one server plus its TLS material.
type Listener struct {
	Name     string // http, https, or metrics
	Server   *http.Server
	CertFile string
	KeyFile  string
}

// TLS reports whether the listener serves HTTPS.
func (l Listener) TLS() bool { return l.CertFile != "" }

// Plan builds the listeners described by cfg.  h is the shared router.
func Plan(cfg *config.Config, h http.Handler, log *zap.Logger) []Listener {
	if log == nil {
		log = zap.NewNop()
	}
	var out []Listener

	httpsOn := false
	if cfg.HTTPS.Enabled {
		if fileExists(cfg.HTTPS.CertPath) && fileExists(cfg.HTTPS.KeyPath) {
			httpsOn = true
			out = append(out, Listener{
				Name:     "https",
				Server:   New(cfg.HTTPS.ListenAddr, h, log),
				CertFile: cfg.HTTPS.CertPath,
				KeyFile:  cfg.HTTPS.KeyPath,
			})
		} else {
			log.Error("unable to find the certificate files, https is disabled",
				zap.String("cert", cfg.HTTPS.CertPath),
				zap.String("key", cfg.HTTPS.KeyPath))
		}
	}

	if !httpsOn || !cfg.HTTPS.DisableHTTP {
		plain := h
		if httpsOn && cfg.HTTP.ForceHTTPS {
			plain = middleware.RedirectHTTPS(h)
		}
		out = append(out, Listener{Name: "http", Server: New(cfg.HTTP.ListenAddr, plain, log)})
	}

	if cfg.Metrics.ListenAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		out = append(out, Listener{Name: "metrics", Server: New(cfg.Metrics.ListenAddr, mux, log)})
	}
	return out
}

// Run serves every listener until ctx is done or one of them fails.
func Run(ctx context.Context, log *zap.Logger, ls ...Listener) error {
	if len(ls) == 0 {
		return ErrNoListener
	}
	if log == nil {
		log = zap.NewNop()
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, l := range ls {
		l := l
		g.Go(func() error {
			log.Info("listener starting",
				zap.String("listener", l.Name),
				zap.String("addr", l.Server.Addr))
			var err error
			if l.TLS() {
				err = l.Server.ListenAndServeTLS(l.CertFile, l.KeyFile)
			} else {
				err = l.Server.ListenAndServe()
			}
			if errors.Is(err, http.ErrServerClosed) {
				return nil
			}
			log.Error("listener failed", zap.String("listener", l.Name), zap.Error(err))
			return fmt.Errorf("%s listener on %s: %w", l.Name, l.Server.Addr, err)
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
		defer cancel()

		var errs error
		for _, l := range ls {
			if err := l.Server.Shutdown(sctx); err != nil {
				errs = errors.Join(errs, fmt.Errorf("%s shutdown: %w", l.Name, err))
			}
		}
		log.Info("listeners stopped")
		return errs
	})

	return g.Wait()
}

func fileExists(p string) bool {
	if p == "" {
		return false
	}
	fi, err := os.Stat(p)
	return err == nil && !fi.IsDir()
}
