package connector

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	productshttp "github.com/Apurer/product-sync-connector/internal/domains/products/adapters/http"
	"github.com/Apurer/product-sync-connector/internal/domains/products/ports"
	"github.com/Apurer/product-sync-connector/internal/platform/config"
	"github.com/Apurer/product-sync-connector/internal/platform/metrics"
	platformobservability "github.com/Apurer/product-sync-connector/internal/platform/observability"
)

const serviceName = "product-sync-connector"

// Run boots the connector HTTP surface and blocks until ctx is cancelled or the server fails.
func Run(ctx context.Context) error {
	env, err := LoadConfig()
	if err != nil {
		return err
	}
	instruments, shutdown, err := platformobservability.Init(ctx, platformobservability.Settings{
		ServiceName:  serviceName,
		Environment:  env.Environment,
		LogDir:       env.LogDir,
		LogLevel:     env.LogLevel,
		OTLPEndpoint: env.OTLPEndpoint,
		OTLPInsecure: env.OTLPInsecure,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize observability: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdown(shutdownCtx); err != nil {
			instruments.Logger.Error("failed to shutdown observability", slog.String("error", err.Error()))
		}
	}()
	logger := instruments.Logger

	cfg, err := config.Load(env.ConfigPath)
	if err != nil {
		logger.Error("invalid connector configuration", slog.String("path", env.ConfigPath), slog.String("error", err.Error()))
		return err
	}
	logger.Debug("connector configuration loaded", slog.String("config", cfg.String()))

	registry := metrics.New()
	service, err := BuildSyncService(cfg, instruments, registry)
	if err != nil {
		return err
	}

	server := &http.Server{
		Addr:              ":" + env.Port,
		Handler:           NewRouter(service, registry),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		logger.Info("connector listening", slog.String("addr", server.Addr))
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		logger.Error("connector server exited", slog.String("addr", server.Addr), slog.String("error", err.Error()))
		return err
	case <-ctx.Done():
		logger.Info("connector shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	}
}

// NewRouter mounts the sync routes, health check, and metrics endpoint.
func NewRouter(service ports.SyncService, registry *metrics.Registry) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), otelgin.Middleware(serviceName))
	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if registry != nil {
		router.GET("/metrics", gin.WrapH(registry.Handler()))
	}
	productshttp.NewHandler(service).Register(router)
	return router
}
