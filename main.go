package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/coffee-shop/drinks-api/internal/audit"
	"github.com/coffee-shop/drinks-api/internal/config"
	"github.com/coffee-shop/drinks-api/internal/drinks"
	"github.com/coffee-shop/drinks-api/internal/jwt"
	"github.com/coffee-shop/drinks-api/internal/observe"
	"github.com/coffee-shop/drinks-api/internal/store"
	"github.com/rs/zerolog/log"

	"github.com/justinas/alice"
)

// Permissions required by the protected routes.
const (
	PermissionGetDrinksDetail = "get:drinks-detail"
	PermissionPostDrinks      = "post:drinks"
	PermissionPatchDrinks     = "patch:drinks"
	PermissionDeleteDrinks    = "delete:drinks"
)

const maxRequestBytes = 20 << 10

func configureServerRoutes(cfg config.Config, repo drinks.Repository, opts ...jwt.Option) (http.Handler, error) {
	routes := http.NewServeMux()
	mux := observe.NewMux(routes)

	auditor := audit.Middleware()

	authorizer, err := jwt.Middleware(cfg.Authorization, append([]jwt.Option{jwt.WithErrorHandler(jwt.LogErrorHandler())}, opts...)...)
	if err != nil {
		return nil, fmt.Errorf("authorizer configuration failed: %w", err)
	}

	// drink payloads are small; the limit is fixed
	public := alice.New(maxRequestSize(maxRequestBytes), auditor)

	authorized := func(permission string) alice.Chain {
		return public.Append(authorizer.Require(permission))
	}

	mux.Handle("GET /drinks", public.Then(handleGetDrinks(repo)))
	mux.Handle("GET /drinks-detail", authorized(PermissionGetDrinksDetail).Then(handleGetDrinksDetail(repo)))
	mux.Handle("POST /drinks", authorized(PermissionPostDrinks).Then(handlePostDrink(repo)))
	mux.Handle("PATCH /drinks/{id}", authorized(PermissionPatchDrinks).Then(handlePatchDrink(repo)))
	mux.Handle("DELETE /drinks/{id}", authorized(PermissionDeleteDrinks).Then(handleDeleteDrink(repo)))

	// known paths answer other methods with 405; anything else is a 404
	mux.Handle("/drinks", public.Then(handleMethodNotAllowed(http.MethodGet, http.MethodPost)))
	mux.Handle("/drinks-detail", public.Then(handleMethodNotAllowed(http.MethodGet)))
	mux.Handle("/drinks/{id}", public.Then(handleMethodNotAllowed(http.MethodPatch, http.MethodDelete)))
	mux.Handle("/", public.Then(handleNotFound()))

	// registered on the inner mux: no spans, no audit
	routes.Handle("GET /healthcheck", handleHealthCheck())

	return mux, nil
}

func main() {
	configureLogging()

	logBuildInfo()

	err := launchServer()
	if err != nil {
		log.Fatal().Err(err).Msg("server failed to start")
	}
}

func launchServer() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(ctx)
	if err != nil {
		return fmt.Errorf("configuration load failed: %w", err)
	}

	shutdownTelemetry, err := observe.Configure(ctx, cfg.Observe)
	if err != nil {
		return fmt.Errorf("telemetry bootstrap failed: %w", err)
	}

	// key set fetches use the default client, so it carries the tracing
	http.DefaultTransport = observe.HttpTransport(
		configureHttpTransport(cfg.Server),
		cfg.Observe,
	)
	http.DefaultClient = &http.Client{
		Transport: http.DefaultTransport,
	}

	db, err := openStore(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("database configuration failed: %w", err)
	}

	handler, err := configureServerRoutes(cfg, store.NewDrinkRepository(db.DB))
	if err != nil {
		return errors.Join(
			fmt.Errorf("server routing configuration failed: %w", err),
			db.Close(),
		)
	}

	server := &http.Server{
		Addr:           fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:        handler,
		MaxHeaderBytes: 20 << 10,
	}

	server.RegisterOnShutdown(func() {
		if err := shutdownTelemetry(context.Background()); err != nil {
			log.Warn().Err(err).Msg("telemetry: shutdown failed")
			return
		}
		log.Info().Msg("telemetry: flushed")
	})

	err = serveHTTP(ctx, cfg.Server, server)

	// in-flight requests have completed once serveHTTP returns
	if closeErr := db.Close(); closeErr != nil {
		log.Warn().Err(closeErr).Msg("database: close failed")
	}

	if err != nil {
		return fmt.Errorf("server failed: %w", err)
	}

	return nil
}

// openStore connects to the database and populates an empty catalog from
// the configured seed file.
func openStore(ctx context.Context, cfg config.DatabaseConfig) (*store.Store, error) {
	db, err := store.Open(cfg)
	if err != nil {
		return nil, err
	}

	if cfg.SeedFile == "" {
		return db, nil
	}

	seed, err := drinks.LoadSeed(cfg.SeedFile)
	if err != nil {
		return nil, errors.Join(fmt.Errorf("seed file %s: %w", cfg.SeedFile, err), db.Close())
	}

	inserted, err := db.Seed(ctx, seed)
	if err != nil {
		return nil, errors.Join(fmt.Errorf("seeding failed: %w", err), db.Close())
	}

	log.Info().Int("drinks", inserted).Str("file", cfg.SeedFile).Msg("catalog seeded")

	return db, nil
}
