// AgriConnect - farm community client services
// Entry point for the API server
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/findosh/agriconnect/internal/config"
	"github.com/findosh/agriconnect/internal/handlers"
	"github.com/findosh/agriconnect/internal/logging"
	"github.com/findosh/agriconnect/internal/middleware"
	"github.com/findosh/agriconnect/internal/services/auth"
	"github.com/findosh/agriconnect/internal/services/experiments"
	"github.com/findosh/agriconnect/internal/services/locale"
	"github.com/findosh/agriconnect/internal/storage"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "agriconnect: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// Load configuration
	cfg := config.Load()

	logger, err := logging.New(cfg.Environment, cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize durable store
	store, err := storage.New(cfg.Store())
	if err != nil {
		return fmt.Errorf("failed to open %s store: %w", cfg.StoreDriver, err)
	}
	defer store.Close()

	// Initialize services
	simulated := auth.SimulatedConfig{SecretKey: cfg.SecretKey}
	if cfg.SimulatedLatency {
		simulated.Latency = auth.DefaultLatency()
	}
	backend, err := auth.NewSimulatedBackend(simulated)
	if err != nil {
		return fmt.Errorf("failed to create auth backend: %w", err)
	}

	sessions := auth.NewManager(store, backend, auth.Options{
		CheckInterval:    cfg.RefreshCheckInterval,
		RefreshThreshold: cfg.RefreshThreshold,
		Logger:           logger.Named("auth"),
	})
	defer sessions.Close()

	experimentService := experiments.NewService(ctx, store, experiments.Options{
		Logger: logger.Named("experiments"),
	})
	if cfg.ExperimentsFile != "" {
		n, err := experimentService.LoadCatalog(cfg.ExperimentsFile)
		if err != nil {
			return fmt.Errorf("failed to load experiments: %w", err)
		}
		logger.Info("loaded experiment catalog", zap.String("file", cfg.ExperimentsFile), zap.Int("experiments", n))
	}

	language := locale.NewPreference(store, logger.Named("locale"))

	// Initialize handlers
	h := handlers.New(cfg, sessions, experimentService, language, logger.Named("http"))

	// Apply global middleware
	handler := middleware.Chain(
		h.Routes(),
		middleware.Recover(logger),
		middleware.SecurityHeaders,
		middleware.Logger(logger),
	)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("AgriConnect server starting",
			zap.String("addr", "http://localhost"+srv.Addr),
			zap.String("environment", cfg.Environment),
			zap.String("store", cfg.StoreDriver))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
