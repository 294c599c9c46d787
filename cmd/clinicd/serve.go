// AngelaMos | 2026
// serve.go

package main

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/carterperez-dev/clinic-session/internal/admin"
	"github.com/carterperez-dev/clinic-session/internal/api"
	"github.com/carterperez-dev/clinic-session/internal/authclient"
	"github.com/carterperez-dev/clinic-session/internal/claims"
	"github.com/carterperez-dev/clinic-session/internal/config"
	"github.com/carterperez-dev/clinic-session/internal/core"
	"github.com/carterperez-dev/clinic-session/internal/gate"
	"github.com/carterperez-dev/clinic-session/internal/health"
	"github.com/carterperez-dev/clinic-session/internal/middleware"
	"github.com/carterperez-dev/clinic-session/internal/poller"
	"github.com/carterperez-dev/clinic-session/internal/server"
	"github.com/carterperez-dev/clinic-session/internal/session"
)

const (
	drainDelay = 2 * time.Second
)

func newServeCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Restore the stored session and serve it on loopback",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), *configPath)
		},
	}
}

//nolint:funlen // bootstrap code is inherently verbose
func run(parent context.Context, configPath string) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	logger := setupLogger(cfg.Log)
	slog.SetDefault(logger)

	instanceID := cfg.Storage.InstanceID
	if instanceID == "" {
		instanceID = uuid.NewString()
	}

	logger.Info("starting clinicd",
		"version", cfg.App.Version,
		"environment", cfg.App.Environment,
		"storage", cfg.Storage.Driver,
		"namespace", cfg.Storage.Namespace,
		"instance", instanceID,
	)

	telemetry, err := core.NewTelemetry(ctx, cfg.Otel, cfg.App, instanceID)
	if err != nil {
		logger.Warn("failed to initialize telemetry", "error", err)
	} else if telemetry.Exporting() {
		logger.Info("OpenTelemetry tracer initialized", "endpoint", cfg.Otel.Endpoint)
	}

	be, err := openBackend(ctx, cfg, instanceID, logger)
	if err != nil {
		return err
	}
	defer be.close(logger)

	apiClient := authclient.New(cfg.API.BaseURL, cfg.API.Timeout, logger)
	decoder := claims.NewCachingDecoder(claims.Default, cfg.Session.ClaimsCacheSize, cfg.Session.ClaimsCacheTTL)

	mgr := session.NewManager(be.store, apiClient, session.Options{
		Decoder:           decoder,
		Logger:            logger,
		RevalidateTimeout: cfg.Session.RevalidateTimeout,
		LogoutTimeout:     cfg.Session.LogoutTimeout,
		Origin:            instanceID,
	})
	defer mgr.Close()

	sources := make([]poller.Source, 0, len(cfg.Badges.Sources))
	for _, src := range cfg.Badges.Sources {
		sources = append(sources, poller.Source{Module: src.Module, Path: src.Path})
	}
	badges := poller.New(apiClient, sources, cfg.Badges.Interval, logger)
	mgr.OnSession(badges.Run)

	navigation, err := gate.FromConfig(cfg.Navigation)
	if err != nil {
		return fmt.Errorf("navigation: %w", err)
	}

	healthHandler := health.NewHandler(
		health.Dependency{Name: "storage", Checker: be.store, Critical: true},
		health.Dependency{Name: "clinic_api", Checker: apiClient},
	)
	healthHandler.ReportPhase(func() string { return string(mgr.Phase()) })

	apiHandler := api.NewHandler(api.Config{
		Sessions:   mgr,
		Navigation: navigation,
		Badges:     badges,
	})

	adminCfg := be.admin
	adminCfg.Driver = cfg.Storage.Driver
	adminCfg.Namespace = cfg.Storage.Namespace
	adminCfg.StoragePing = be.store.Ping
	adminCfg.CacheLen = decoder.Len
	adminCfg.Session = mgr
	adminHandler := admin.NewHandler(adminCfg)

	srv := server.New(server.Config{
		ServerConfig:  cfg.Server,
		HealthHandler: healthHandler,
		Logger:        logger,
	})

	router := srv.Router()
	router.Use(middleware.RequestID)
	router.Use(middleware.Tracing(cfg.Otel.ServiceName))
	router.Use(middleware.Logger(logger))
	router.Use(middleware.SecurityHeaders(cfg.IsProduction()))
	router.Use(middleware.CORS(cfg.CORS))

	srv.MountOps()

	authLimiter := middleware.NewAttemptLimiter(ctx, be.redis, middleware.AttemptLimitConfig{
		Limit: middleware.Per(cfg.RateLimit.Requests, cfg.RateLimit.Burst, cfg.RateLimit.Window),
	})

	router.Route("/v1", func(r chi.Router) {
		apiHandler.RegisterRoutes(r, authLimiter.Handler)
		adminHandler.RegisterRoutes(r, apiHandler.Guard().RequireAdmin)
	})

	if err := mgr.Restore(ctx); err != nil {
		logger.Warn("could not restore stored session", "error", err)
	}
	healthHandler.SetReady(true)

	if cfg.Session.SyncEnabled {
		go func() {
			if err := mgr.Sync(ctx); err != nil {
				logger.Warn("storage change feed unavailable", "error", err)
			}
		}()
	}

	errChan := make(chan error, 1)
	go func() {
		errChan <- srv.Start()
	}()

	select {
	case err := <-errChan:
		return err
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(
		context.Background(),
		cfg.Server.ShutdownTimeout+drainDelay,
	)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx, drainDelay); err != nil {
		logger.Error("server shutdown error", "error", err)
	}

	if telemetry != nil {
		if err := telemetry.Shutdown(shutdownCtx); err != nil {
			logger.Error("telemetry shutdown error", "error", err)
		}
	}

	logger.Info("clinicd stopped")
	return nil
}
