// Package internal provides the main application initialization and runtime logic.
package internal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/starford/certhub/internal/api"
	"github.com/starford/certhub/internal/auth"
	"github.com/starford/certhub/internal/certstore"
	"github.com/starford/certhub/internal/directory"
	"github.com/starford/certhub/internal/fixtures"
	"github.com/starford/certhub/internal/kvstore"
	"github.com/starford/certhub/internal/latency"
	"github.com/starford/certhub/internal/manager"
	"github.com/starford/certhub/internal/mcpserver"
	"github.com/starford/certhub/internal/obs"
	"github.com/starford/certhub/internal/sse"
	"github.com/starford/certhub/internal/toast"
	"github.com/starford/certhub/internal/upload"
)

// components is the wired object graph shared by the HTTP and MCP runners.
type components struct {
	logger   *slog.Logger
	kv       kvstore.Provider
	broker   *sse.Broker
	metrics  *obs.Metrics
	store    *certstore.Store
	users    *directory.Directory
	auth     *auth.Provider
	toasts   *toast.Queue
	manager  *manager.Service
	uploader upload.Uploader
	catalog  fixtures.Catalog
}

func newApplication(opts []Option) (*application, error) {
	app := &application{logOutput: os.Stdout}
	for _, opt := range opts {
		opt(app)
	}
	if app.config == nil {
		return nil, fmt.Errorf("config is required")
	}
	if app.loader == nil {
		app.loader = fixtures.Embedded()
		if app.config.Store.SeedPath != "" {
			app.loader = fixtures.File(app.config.Store.SeedPath)
		}
	}
	return app, nil
}

func (a *application) newLogger() *slog.Logger {
	logger := slog.New(slog.NewJSONHandler(a.logOutput, &slog.HandlerOptions{
		Level: a.config.App.LogLevel,
	}))
	slog.SetDefault(logger)
	return logger
}

func newSimulator(cfg LatencyConfig) latency.Simulator {
	if cfg.Max <= 0 && cfg.ErrorRate <= 0 {
		return latency.None()
	}
	return latency.NewRandom(cfg.Min, cfg.Max, cfg.ErrorRate, rand.New(rand.NewSource(time.Now().UnixNano())))
}

// build opens the kv store, loads the seed and wires every state container.
// On error everything opened so far is closed.
func build(ctx context.Context, cfg *Config, loader fixtures.Loader, logger *slog.Logger) (*components, error) {
	kv, err := kvstore.Open(cfg.KV.Driver, cfg.KV.Path)
	if err != nil {
		return nil, fmt.Errorf("init kv: %w", err)
	}

	c := &components{
		logger:  logger,
		kv:      kv,
		metrics: obs.New(),
		broker:  sse.NewBroker(cfg.Events.FeedThrottle, sse.WithHeartbeat(cfg.Events.Heartbeat)),
		catalog: fixtures.DefaultCatalog(),
	}

	sim := newSimulator(cfg.Latency)
	c.store = certstore.New(
		certstore.WithLatency(sim),
		certstore.WithPageSize(cfg.Store.PageSize),
		certstore.WithEventSink(func(kind certstore.EventKind, id string) {
			c.broker.PublishCertEvent(string(kind), id)
		}),
		certstore.WithObserver(c.metrics.ObserveMutation),
		certstore.WithLogger(logger),
	)

	seed, err := c.store.Load(ctx, loader)
	if err != nil {
		c.close()
		return nil, fmt.Errorf("load seed: %w", err)
	}
	c.users = directory.New(seed.Users)

	authOpts := []auth.Option{auth.WithLatency(sim), auth.WithLogger(logger)}
	if cfg.Auth.Secret != "" {
		authOpts = append(authOpts, auth.WithSigningKey(cfg.Auth.Secret, cfg.Auth.SessionTTL))
	}
	if cfg.Auth.DemoUser != "" {
		authOpts = append(authOpts, auth.WithDemoUser(cfg.Auth.DemoUser))
	}
	c.auth = auth.New(kv, c.users, authOpts...)
	restored, err := c.auth.Restore(ctx)
	if err != nil {
		logger.Warn("session restore failed", slog.String("error", err.Error()))
	}

	c.toasts = toast.New(
		toast.WithDefaultDuration(cfg.Toast.DefaultDuration),
		toast.WithListener(func(event string, t toast.Toast) {
			c.broker.PublishToastEvent(event, t)
			c.metrics.SetToastsActive(c.toasts.Len())
		}),
	)
	c.manager = manager.New(c.store, c.users)
	c.uploader = upload.NewSimulated(sim)

	logger.Info("State loaded",
		slog.Int("certificates", c.store.Len()),
		slog.Int("users", len(seed.Users)),
		slog.Bool("session_restored", restored))

	return c, nil
}

// reloadSeed replaces the collection and the user table after the seed file changes.
func (c *components) reloadSeed(seed fixtures.Seed) {
	c.store.Reload(seed.Certificates)
	c.users.Replace(seed.Users)
	c.logger.Info("seed reloaded", slog.Int("certificates", len(seed.Certificates)))
}

func (c *components) close() {
	if c.toasts != nil {
		c.toasts.Close()
	}
	c.broker.Close()
	if err := c.kv.Close(); err != nil {
		c.logger.Error("kv close error", slog.String("error", err.Error()))
	}
}

// routes builds the root router: health probes, metrics and the API under /api.
func (c *components) routes(cfg *Config, h *api.Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(c.metrics.Instrument)

	// Health check endpoints (unauthenticated).
	r.Get("/health/live", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Get("/health/ready", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if !c.store.State().Loaded {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"status":"loading"}`))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Handle("/metrics", c.metrics.Handler())

	r.Mount("/api", api.NewRouter(h, api.RouterConfig{
		AuthMode:  cfg.Auth.Mode,
		Token:     cfg.Auth.Token,
		RateRPS:   cfg.RateLimit.RPS,
		RateBurst: cfg.RateLimit.Burst,
		Events:    c.broker,
	}))
	return r
}

func (c *components) handler(cfg *Config) *api.Handler {
	return api.NewHandler(api.Deps{
		Store:    c.store,
		Auth:     c.auth,
		Users:    c.users,
		Manager:  c.manager,
		Toasts:   c.toasts,
		Uploader: c.uploader,
		Catalog:  c.catalog,
	}, api.WithSearchDebounce(cfg.Search.Debounce))
}

// Run starts the HTTP server with the given options.
func Run(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	cfg := app.config
	logger := app.newLogger()

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("auth_mode", cfg.Auth.Mode),
		slog.String("kv_driver", cfg.KV.Driver),
		slog.String("seed_path", cfg.Store.SeedPath),
		slog.String("log_level", cfg.App.LogLevel.String()))

	c, err := build(ctx, cfg, app.loader, logger)
	if err != nil {
		return err
	}
	defer c.close()

	h := c.handler(cfg)
	defer h.Close()

	httpServer := &http.Server{
		Addr:              cfg.App.HTTP.Address(),
		Handler:           c.routes(cfg, h),
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Info("Server starting...", slog.String("http_address", cfg.App.HTTP.Address()))

	g, gCtx := errgroup.WithContext(ctx)

	// Reload the collection when the seed file changes.
	if cfg.Store.WatchSeed {
		g.Go(func() error {
			if err := fixtures.Watch(gCtx, cfg.Store.SeedPath, logger, c.reloadSeed); err != nil {
				logger.Error("seed watcher stopped", slog.String("error", err.Error()))
			}
			return nil
		})
	}

	// Start HTTP server.
	g.Go(func() error {
		logger.Info("Starting HTTP server", slog.String("address", cfg.App.HTTP.Address()))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	// Handle shutdown signals.
	g.Go(func() error {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(quit)

		select {
		case sig := <-quit:
			logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
		case <-gCtx.Done():
			logger.Info("Context cancelled, initiating shutdown")
		}

		logger.Info("Shutting down server...")

		// Close SSE streams first so Shutdown does not wait on them.
		c.broker.Close()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
		}

		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}

// RunMCP serves the certificate tools over MCP stdio. Logs go to stderr.
func RunMCP(ctx context.Context, opts ...Option) error {
	opts = append([]Option{WithLogOutput(os.Stderr)}, opts...)
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	logger := app.newLogger()

	c, err := build(ctx, app.config, app.loader, logger)
	if err != nil {
		return err
	}
	defer c.close()

	logger.Info("MCP server starting on stdio")
	if err := mcpserver.New(c.store, c.catalog, c.uploader).ServeStdio(); err != nil {
		return fmt.Errorf("mcp serve: %w", err)
	}
	return nil
}
