package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/frahmantamala/opsboard/internal"
	"github.com/frahmantamala/opsboard/internal/core/i18n"
	"github.com/frahmantamala/opsboard/internal/rbac"
	"github.com/frahmantamala/opsboard/internal/store"
	"github.com/frahmantamala/opsboard/internal/transport/middleware"
	"github.com/frahmantamala/opsboard/internal/transport/rest"
	"github.com/frahmantamala/opsboard/internal/transport/swagger"

	"github.com/go-chi/chi"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 30 * time.Second

var httpServerCmd = &cobra.Command{
	Use:   "server",
	Short: "Start HTTP server",
	Long:  `Start the HTTP server to handle API requests`,
	Run: func(cmd *cobra.Command, args []string) {
		startHTTPServer()
	},
}

type Dependencies struct {
	Config   *internal.Config
	Store    *store.Store
	Services *Services
	Router   *chi.Mux
	Logger   *slog.Logger
	limiter  *middleware.IPRateLimiter
}

func startHTTPServer() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	deps, err := initializeDependencies(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize dependencies: %v\n", err)
		os.Exit(1)
	}
	defer deps.Store.Close()

	go deps.Services.LogBuffer.Run(ctx, deps.Config.Logs.SweepInterval)
	go deps.limiter.Sweep(ctx, time.Minute)

	addr := fmt.Sprintf(":%d", deps.Config.Server.Port)
	deps.Logger.Info("Starting HTTP server", "address", addr)

	server := &http.Server{
		Addr:              addr,
		Handler:           deps.Router,
		ReadHeaderTimeout: deps.Config.Server.ReadHeaderTimeout,
		ReadTimeout:       deps.Config.Server.ReadTimeout,
		WriteTimeout:      deps.Config.Server.WriteTimeout,
		IdleTimeout:       deps.Config.Server.IdleTimeout,
	}

	serverErrChan := make(chan error, 1)
	go func() {
		serverErrChan <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		deps.Logger.Info("Received signal, shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			deps.Logger.Error("Server shutdown error", "error", err)
		}
	case err := <-serverErrChan:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			deps.Logger.Error("Server failed to start", "error", err)
			os.Exit(1)
		}
	}

	deps.Logger.Info("Server stopped")
}

func initializeDependencies(ctx context.Context) (*Dependencies, error) {
	config, lg := mustLoadConfig()

	s, err := openStore(ctx, config, lg)
	if err != nil {
		return nil, err
	}

	spec, err := swagger.Load(ctx, config.Server.OpenAPIPath)
	if err != nil {
		_ = s.Close()
		return nil, err
	}
	lg.Info("openapi document loaded", "path", config.Server.OpenAPIPath, "operations", spec.Operations())

	services := buildServices(config, s, lg)
	limiter := middleware.NewIPRateLimiter(config.Security.LoginRatePerMin, config.Security.LoginBurst)

	router := chi.NewRouter()
	rest.RegisterAllRoutes(router, buildHandlers(config, services, lg), rest.Options{
		Spec:          spec,
		Metrics:       config.Observability.Metrics,
		Health:        map[string]rest.Pinger{"postgres": s},
		LoginLimiter:  limiter,
		DefaultLocale: i18n.Parse(config.Server.DefaultLocale),
	}, lg)

	return &Dependencies{
		Config:   config,
		Store:    s,
		Services: services,
		Router:   router,
		Logger:   lg,
		limiter:  limiter,
	}, nil
}

// openStore connects and brings the schema and RBAC catalog up to date.
func openStore(ctx context.Context, cfg *internal.Config, lg *slog.Logger) (*store.Store, error) {
	s, err := store.Open(cfg.Database, lg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	if err := s.Bootstrap(ctx); err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("failed to bootstrap store: %w", err)
	}
	if err := rbac.Bootstrap(ctx, s, lg); err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("failed to bootstrap rbac: %w", err)
	}
	return s, nil
}
