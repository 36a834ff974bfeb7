package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/coffee-shop/drinks-api/internal/config"
	"github.com/rs/zerolog/log"
)

// DrinksServer is the subset of http.Server used to run and stop the API.
type DrinksServer interface {
	ListenAndServe() error
	Shutdown(ctx context.Context) error
}

// serveHTTP runs the server until it fails or ctx is cancelled, then drains
// in-flight requests for at most the configured shutdown timeout. A listener
// failure takes precedence over a clean shutdown in the returned error.
func serveHTTP(ctx context.Context, cfg config.ServerConfig, server DrinksServer) error {
	listening := make(chan error, 1)
	go func() {
		log.Info().Int("port", cfg.Port).Msg("starting server")
		listening <- server.ListenAndServe()
	}()

	var listenErr error

	select {
	case err := <-listening:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("server stopped unexpectedly")
			listenErr = err
		}
	case <-ctx.Done():
		log.Info().Msg("server shutdown requested")
	}

	if err := drain(server, time.Duration(cfg.ShutdownTimeoutSeconds)*time.Second); err != nil {
		return errors.Join(listenErr, err)
	}

	return listenErr
}

func drain(server DrinksServer, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	log.Info().Msg("server shutdown complete")
	return nil
}
