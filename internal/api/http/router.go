// Package http provides the HTTP delivery layer of the URL shortener: the shorten API,
// the redirect endpoint, stats and the service pages around them.
package http

import (
	"context"
	"net/http"
	"reflect"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httplog/v2"
	"github.com/go-playground/validator/v10"
	httpSwagger "github.com/swaggo/http-swagger"
	"github.com/vadimbarashkov/xurl/docs"
	"github.com/vadimbarashkov/xurl/internal/models"
	"github.com/vadimbarashkov/xurl/internal/service"
)

// URLService is the business logic the handlers delegate to.
type URLService interface {
	// ShortenURL assigns a short code to a URL, honoring an optional alias.
	ShortenURL(ctx context.Context, in service.ShortenInput) (*service.ShortenResult, error)

	// ResolveShortCode returns the redirect target of a live short code and records the click.
	ResolveShortCode(ctx context.Context, code string, meta models.RequestMeta) (string, error)

	// GetURLStats returns the mapping of a short code without counting a click.
	GetURLStats(ctx context.Context, code string) (*models.ShortMapping, error)
}

type routerConfig struct {
	baseURL        string
	allowedOrigins []string
	retryAfter     time.Duration
}

// Option configures the router.
type Option func(*routerConfig)

// WithBaseURL fixes the prefix of issued short URLs. Without it the prefix is
// derived from the incoming request.
func WithBaseURL(baseURL string) Option {
	return func(c *routerConfig) {
		c.baseURL = strings.TrimRight(baseURL, "/")
	}
}

func WithAllowedOrigins(origins []string) Option {
	return func(c *routerConfig) {
		if len(origins) > 0 {
			c.allowedOrigins = origins
		}
	}
}

// WithRetryAfter sets the Retry-After hint sent with rate limited responses.
func WithRetryAfter(d time.Duration) Option {
	return func(c *routerConfig) {
		if d > 0 {
			c.retryAfter = d
		}
	}
}

func getValidate() *validator.Validate {
	validate := validator.New()

	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	return validate
}

// NewRouter initializes and returns a chi router with all routes and middleware configured.
func NewRouter(logger *httplog.Logger, urlSvc URLService, opts ...Option) http.Handler {
	cfg := routerConfig{
		allowedOrigins: []string{"*"},
		retryAfter:     service.DefaultRateWindow,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	r := chi.NewRouter()

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.allowedOrigins,
		AllowedMethods:   []string{"POST", "GET", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Accept"},
		AllowCredentials: false,
		MaxAge:           84600,
	}))
	r.Use(middleware.RequestID)
	r.Use(httplog.RequestLogger(logger))
	r.Use(middleware.Recoverer)

	h := newURLHandler(urlSvc, getValidate(), cfg)

	r.Get("/", handleIndex)
	r.Get("/healthz", handleHealthz)
	r.Get("/status/{status}", handleStatusPage)

	r.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL("/docs/swagger.yml"),
	))
	r.Get("/docs/swagger.yml", handleOpenAPIDocument)

	r.Route("/api", func(r chi.Router) {
		r.Post("/shorten", h.shortenURL)
		r.Get("/stats/{code}", h.getURLStats)
	})

	r.Get("/{code}", h.resolveShortCode)

	return r
}

func handleOpenAPIDocument(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/yaml")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(docs.Swagger)
}
