package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/gilchrisn/community-detection/pkg/api"
	"github.com/gilchrisn/community-detection/pkg/config"
	"github.com/gilchrisn/community-detection/pkg/service"
)

const shutdownTimeout = 30 * time.Second

// New wires the job service and router into an HTTP server. The returned
// service must be closed after the server stops.
func New(cfg *config.Config) (*http.Server, *service.JobService) {
	options := service.DefaultOptions()
	options.MaxWorkers = cfg.Jobs.MaxWorkers
	options.JobTTL = cfg.Jobs.ResultTTL
	options.CleanupInterval = cfg.Jobs.CleanupInterval
	options.AlgorithmLogLevel = cfg.Logging.AlgorithmLevel

	jobService := service.NewJobService(options)
	handlers := api.NewHandlers(jobService, cfg.Server.MaxBodyBytes)

	server := &http.Server{
		Addr:         cfg.Server.Address,
		Handler:      api.NewRouter(handlers, cfg.Server.AllowedOrigins),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
	return server, jobService
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func Run(ctx context.Context, cfg *config.Config) error {
	server, jobService := New(cfg)
	defer jobService.Close()

	errCh := make(chan error, 1)
	go func() {
		log.Info().
			Str("address", cfg.Server.Address).
			Int("max_workers", cfg.Jobs.MaxWorkers).
			Msg("HTTP server starting")

		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return err
	}

	log.Info().Msg("Server shutdown complete")
	return nil
}
