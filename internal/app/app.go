// Package app wires configuration, storage, the service layer and the HTTP server together.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/httplog/v2"
	"github.com/vadimbarashkov/xurl/internal/config"
	"github.com/vadimbarashkov/xurl/internal/database/postgres"
	"github.com/vadimbarashkov/xurl/internal/service"
	"github.com/vadimbarashkov/xurl/migrations"
	"golang.org/x/sync/errgroup"

	delivery "github.com/vadimbarashkov/xurl/internal/api/http"
	pgpkg "github.com/vadimbarashkov/xurl/pkg/postgres"
)

const serviceName = "url-shortener"

// NewLogger builds the request logger. Its embedded *slog.Logger is shared with the service layer.
func NewLogger(cfg *config.Config) *httplog.Logger {
	return httplog.NewLogger(serviceName, httplog.Options{
		JSON:            cfg.Logger.JSON,
		LogLevel:        cfg.Logger.SlogLevel(),
		Concise:         cfg.Logger.Concise,
		Tags:            map[string]string{"env": cfg.Env},
		QuietDownRoutes: []string{"/healthz"},
		QuietDownPeriod: 10 * time.Second,
	})
}

// Migrate applies the embedded schema migrations and returns.
func Migrate(cfg *config.Config) error {
	const op = "app.Migrate"

	if err := pgpkg.RunMigrations(migrations.FS, cfg.Postgres.DSN()); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// Run migrates the database and serves HTTP until ctx is cancelled.
func Run(ctx context.Context, cfg *config.Config, logger *httplog.Logger) error {
	const op = "app.Run"

	db, err := pgpkg.New(
		ctx,
		cfg.Postgres.DSN(),
		pgpkg.WithConnMaxIdleTime(cfg.Postgres.ConnMaxIdleTime),
		pgpkg.WithConnMaxLifetime(cfg.Postgres.ConnMaxLifetime),
		pgpkg.WithMaxIdleConns(cfg.Postgres.MaxIdleConns),
		pgpkg.WithMaxOpenConns(cfg.Postgres.MaxOpenConns),
	)
	if err != nil {
		return fmt.Errorf("%s: failed to connect to database: %w", op, err)
	}
	defer db.Close()

	if err := Migrate(cfg); err != nil {
		return fmt.Errorf("%s: failed to run migrations: %w", op, err)
	}

	urlRepo := postgres.NewURLRepository(db)
	urlSvc := service.NewURLService(
		urlRepo,
		logger.Logger,
		service.WithCodeGenerator(service.NewCodeGenerator(cfg.Shortener.CodeLength, cfg.Shortener.MaxAttempts)),
		service.WithRateLimiter(service.NewRateLimiter(cfg.Shortener.RateLimit.Limit, cfg.Shortener.RateLimit.Window)),
		service.WithTTL(cfg.Shortener.TTL),
	)

	router := delivery.NewRouter(
		logger,
		urlSvc,
		delivery.WithBaseURL(cfg.BaseURL),
		delivery.WithAllowedOrigins(cfg.HTTPServer.AllowedOrigins),
		delivery.WithRetryAfter(cfg.Shortener.RateLimit.Window),
	)

	server := &http.Server{
		Addr:           cfg.HTTPServer.Addr(),
		Handler:        router,
		ReadTimeout:    cfg.HTTPServer.ReadTimeout,
		WriteTimeout:   cfg.HTTPServer.WriteTimeout,
		IdleTimeout:    cfg.HTTPServer.IdleTimeout,
		MaxHeaderBytes: cfg.HTTPServer.MaxHeaderBytes,
		BaseContext: func(_ net.Listener) context.Context {
			return ctx
		},
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("starting server", slog.String("addr", server.Addr), slog.String("env", cfg.Env))

		var err error

		switch cfg.Env {
		case config.EnvProd:
			err = server.ListenAndServeTLS(cfg.HTTPServer.CertFile, cfg.HTTPServer.KeyFile)
		default:
			err = server.ListenAndServe()
		}

		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("%s: server error occurred: %w", op, err)
		}

		return nil
	})

	g.Go(func() error {
		<-ctx.Done()

		logger.Info("shutting down server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPServer.ShutdownTimeout)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("%s: failed to shutdown server: %w", op, err)
		}

		return nil
	})

	return g.Wait()
}
