package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"batchd/internal/backend"
	"batchd/internal/config"
	"batchd/internal/httpapi"
	"batchd/internal/manager"
	"batchd/internal/metrics"
	"batchd/internal/registry"
	"batchd/pkg/types"
)

// buildManager wires the backend, the model registry and the metrics
// observer into a manager.
func buildManager(cfg config.Config, log zerolog.Logger) (*manager.Manager, []types.Model, error) {
	be, err := backend.New(backend.Options{
		Kind:        cfg.Backend,
		URL:         cfg.BackendURL,
		APIKey:      cfg.BackendAPIKey,
		Timeout:     config.Millis(cfg.BackendTimeoutMS),
		EchoLatency: config.Millis(cfg.EchoLatencyMS),
	})
	if err != nil {
		return nil, nil, fmt.Errorf("backend: %w", err)
	}

	declared := registry.FromConfig(cfg.Models)
	var scanned []types.Model
	if cfg.ModelsDir != "" {
		if scanned, err = registry.LoadDir(cfg.ModelsDir); err != nil {
			return nil, nil, fmt.Errorf("load models: %w", err)
		}
	}
	reg := registry.Merge(declared, scanned)

	defaultModel := cfg.DefaultModel
	if defaultModel == "" && len(reg) == 1 {
		defaultModel = reg[0].ID
	}
	mgr := manager.NewWithConfig(manager.ManagerConfig{
		Registry:        reg,
		DefaultModel:    defaultModel,
		Backend:         be,
		MaxBatchSize:    cfg.MaxBatchSize,
		MaxLatency:      cfg.MaxLatency(),
		MaxInFlight:     cfg.MaxInFlight,
		DispatchTimeout: config.Millis(cfg.DispatchTimeoutMS),
		DrainTimeout:    config.Millis(cfg.ShutdownTimeoutMS),
		Logger:          &log,
		Observer:        metrics.Observer{},
		Publisher:       manager.LogPublisher{Logger: log},
	})
	return mgr, declared, nil
}

func configureHTTP(cfg config.Config, log zerolog.Logger) {
	httpapi.SetLogger(log)
	httpapi.SetMaxBodyBytes(cfg.MaxBodyBytes)
	httpapi.SetInferTimeout(config.Millis(cfg.InferTimeoutMS))
	httpapi.SetCORSOptions(cfg.CORSEnabled, cfg.CORSAllowedOrigins, nil, nil)
}

// serve runs the HTTP server until SIGINT/SIGTERM or ctx is done, then
// drains the batchers and shuts the server down.
func serve(ctx context.Context, cfg config.Config, log zerolog.Logger) error {
	mgr, declared, err := buildManager(cfg, log)
	if err != nil {
		return err
	}
	if err := prometheus.Register(metrics.NewStatsCollector(mgr.Stats)); err != nil {
		return fmt.Errorf("register metrics: %w", err)
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	baseCtx, cancelBase := context.WithCancel(context.Background())
	defer cancelBase()

	configureHTTP(cfg, log)
	httpapi.SetBaseContext(baseCtx)

	if cfg.WatchModels && cfg.ModelsDir != "" {
		w := registry.NewWatcher(cfg.ModelsDir, 250*time.Millisecond, log, func(scanned []types.Model) {
			reg := registry.Merge(declared, scanned)
			log.Info().Int("models", len(reg)).Msg("registry reloaded")
			mgr.SetRegistry(reg)
		})
		go func() {
			if err := w.Run(ctx); err != nil {
				log.Error().Err(err).Msg("registry watcher stopped")
			}
		}()
	}

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           httpapi.NewMux(mgr),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		log.Info().
			Str("addr", cfg.Addr).
			Str("backend", cfg.Backend).
			Int("models", len(mgr.ListModels())).
			Str("default_model", mgr.DefaultModel()).
			Msg("batchd listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}
	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), config.Millis(cfg.ShutdownTimeoutMS))
	defer cancel()
	// Stop admissions and flush pending batches first so waiting handlers
	// get their results before the server stops.
	if err := mgr.Close(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("batchers did not drain in time")
	}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		cancelBase()
		log.Warn().Err(err).Msg("graceful shutdown error")
	}
	return nil
}
