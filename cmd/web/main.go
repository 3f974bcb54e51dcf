// cmd/web/main.go
//
// Modena – front server entry point.
//
// Boot sequence
// -------------
//
//  1. Console logger for the boot phase, then configuration (conf/.env,
//     conf/modena.yaml, MODENA_* overrides).
//
//  2. Daily rotating file logger (tees to console when running in a TTY).
//
//  3. Optional Vault client for `vault:` values in app environments.
//
//  4. Discover the apps directory and build the tenant set, applying
//     apps.default_app when configured.
//
//  5. Shared chi router: the mount coordinator (resolver, render
//     isolation, restore), every app under /<name>, and the shared
//     fallback, wrapped in the security headers.
//
//  6. Plan and run the HTTP, HTTPS, and metrics listeners until SIGINT or
//     SIGTERM.
//
// Large comment blocks are framed by blank "//" lines; inline comments use
// a single "//".
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/yanizio/modena/internal/config"
	"github.com/yanizio/modena/internal/discovery"
	"github.com/yanizio/modena/internal/logger"
	"github.com/yanizio/modena/internal/middleware"
	"github.com/yanizio/modena/internal/mount"
	"github.com/yanizio/modena/internal/server"
	"github.com/yanizio/modena/internal/tenant"
	"github.com/yanizio/modena/internal/vault"
	"github.com/yanizio/modena/internal/view"

	_ "github.com/yanizio/modena/apps/debug"   // demo app
	_ "github.com/yanizio/modena/apps/example" // demo app
)

func main() {
	boot := logger.Bootstrap()

	cfg, err := config.Load()
	if err != nil {
		boot.Fatal("load config", zap.Error(err))
	}

	log, err := logger.New(cfg.Log.Dir, cfg.Log.Level, logger.IsTTY())
	if err != nil {
		boot.Fatal("start logger", zap.Error(err))
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Fatal("server stopped", zap.Error(err))
	}
}

func run(ctx context.Context, cfg *config.Config, log *zap.Logger) error {
	h, err := handler(ctx, cfg, log)
	if err != nil {
		return err
	}

	//
	// ── 4.  Listeners ───────────────────────────────────────────────────
	//
	err = server.Run(ctx, log.Named("server"), server.Plan(cfg, h, log)...)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// handler discovers the apps and returns the shared front handler with every
// app mounted.
func handler(ctx context.Context, cfg *config.Config, log *zap.Logger) (http.Handler, error) {
	//
	// ── 1.  Secrets ─────────────────────────────────────────────────────
	//
	opts := discovery.Options{LoadEnv: cfg.Apps.LoadEnv}
	if cfg.Vault.Enabled {
		vc, err := vault.New(ctx, cfg.Vault.SecretTTL, log.Named("vault"))
		if err != nil {
			return nil, err
		}
		opts.Secrets = vc
	}

	//
	// ── 2.  Apps ────────────────────────────────────────────────────────
	//
	descs, err := discovery.Discover(ctx, cfg.Apps.Path, opts, log.Named("discovery"))
	if err != nil {
		return nil, err
	}
	set, err := tenant.NewSet(descs, cfg.Apps.DefaultApp, log.Named("tenant"))
	if err != nil {
		return nil, err
	}
	log.Info("apps discovered", zap.Strings("apps", set.Names()))

	//
	// ── 3.  Shared router ───────────────────────────────────────────────
	//
	router := chi.NewRouter()
	coord := mount.New(router, set, mount.Options{
		AppsPath:     cfg.Apps.Path,
		Renderer:     renderer(cfg, log),
		MountTimeout: cfg.Apps.MountTimeout,
		OnError:      onError(log),
	}, log.Named("mount"))

	if _, err := coord.Mount(ctx); err != nil {
		return nil, err
	}

	// Security wraps the router from outside so the resolver stays the
	// first middleware chi runs.
	if cfg.HTTP.SecurityHeaders {
		return middleware.Security(router), nil
	}
	return router, nil
}

// renderer is the shared engine.  Tenant views reach it through absolute
// paths, so it is built even when apps.views_path is unset.
func renderer(cfg *config.Config, log *zap.Logger) view.Renderer {
	root := cfg.Apps.ViewsPath
	if root == "" {
		root = cfg.Paths.Root
	}
	return view.NewEngine(root, view.WithLogger(log.Named("view")))
}

// onError answers a panicking request with a bare 500.  The panic value is
// logged, never sent to the client.
func onError(log *zap.Logger) func(http.ResponseWriter, *http.Request, any) {
	return func(w http.ResponseWriter, r *http.Request, v any) {
		log.Error("request panicked",
			zap.String("host", r.Host),
			zap.String("url", r.URL.RequestURI()),
			zap.Any("panic", v),
			zap.Stack("stack"))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}
}
