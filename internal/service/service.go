package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/vadimbarashkov/xurl/internal/database"
	"github.com/vadimbarashkov/xurl/internal/models"
)

// DefaultTTL is how long a mapping stays resolvable after it is created or renewed.
const DefaultTTL = 90 * 24 * time.Hour

// ShortenInput is the request to shorten a URL.
type ShortenInput struct {
	// URL is the destination. It must start with http:// or https://.
	URL string
	// Alias is an optional caller-chosen code. Empty means a code is generated.
	Alias string
	// ClientID identifies the caller for rate limiting.
	ClientID string
	// BaseURL is prefixed to the code to build the short URL.
	BaseURL string
}

// ShortenResult is the outcome of a successful ShortenURL call.
type ShortenResult struct {
	Code      string
	ShortURL  string
	ExpiresAt time.Time
	// Renewed is true when an existing mapping was renewed or reused instead of created.
	Renewed bool
}

// Option configures a URLService.
type Option func(*URLService)

// WithCodeGenerator replaces the default code generator.
func WithCodeGenerator(g *CodeGenerator) Option {
	return func(s *URLService) {
		s.generator = g
	}
}

// WithRateLimiter replaces the default rate limiter.
func WithRateLimiter(l *RateLimiter) Option {
	return func(s *URLService) {
		s.limiter = l
	}
}

// WithTTL sets the lifetime of created and renewed mappings.
func WithTTL(ttl time.Duration) Option {
	return func(s *URLService) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

// WithClock sets the time source.
func WithClock(now func() time.Time) Option {
	return func(s *URLService) {
		s.now = now
	}
}

// URLService assigns short codes to URLs and resolves them back.
// All state lives in the database.Store it is given.
type URLService struct {
	store     database.Store
	logger    *slog.Logger
	generator *CodeGenerator
	limiter   *RateLimiter
	ttl       time.Duration
	now       func() time.Time
}

// NewURLService creates a new instance of URLService backed by the provided store.
func NewURLService(store database.Store, logger *slog.Logger, opts ...Option) *URLService {
	s := &URLService{
		store:     store,
		logger:    logger,
		generator: NewCodeGenerator(DefaultCodeLength, DefaultMaxAttempts),
		limiter:   NewRateLimiter(DefaultRateLimit, DefaultRateWindow),
		ttl:       DefaultTTL,
		now:       time.Now,
	}

	for _, opt := range opts {
		opt(s)
	}

	if s.logger == nil {
		s.logger = slog.Default()
	}

	return s
}

// ShortenURL assigns a short code to the URL.
//
// With an alias, the alias is created, or reused in place if its previous mapping is
// expired or inactive. Without one, an existing mapping of the same URL is renewed,
// otherwise a fresh code is generated. The whole sequence, including the rate limit
// check and the creation event, runs in one store transaction.
func (s *URLService) ShortenURL(ctx context.Context, in ShortenInput) (*ShortenResult, error) {
	const op = "service.URLService.ShortenURL"

	originalURL := strings.TrimSpace(in.URL)
	if !isHTTPURL(originalURL) {
		return nil, fmt.Errorf("%s: %w", op, ErrInvalidURL)
	}

	alias := strings.TrimSpace(in.Alias)
	now := s.now().UTC()

	var (
		mapping *models.ShortMapping
		renewed bool
	)

	err := s.store.InTx(ctx, func(tx database.Tx) error {
		allowed, err := s.limiter.Admit(ctx, tx, in.ClientID, now)
		if err != nil {
			return err
		}
		if !allowed {
			return ErrRateLimited
		}

		if alias != "" {
			mapping, renewed, err = s.assignAlias(ctx, tx, alias, originalURL, now)
		} else {
			mapping, renewed, err = s.assignByURL(ctx, tx, originalURL, now)
		}
		if err != nil {
			return err
		}

		return tx.AddCreationEvent(ctx, models.CreationEvent{IP: in.ClientID, CreatedAt: now})
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, classify(err))
	}

	return &ShortenResult{
		Code:      mapping.Code,
		ShortURL:  strings.TrimRight(in.BaseURL, "/") + "/" + mapping.Code,
		ExpiresAt: mapping.ExpiresAt.UTC(),
		Renewed:   renewed,
	}, nil
}

func (s *URLService) assignAlias(
	ctx context.Context,
	tx database.Tx,
	alias, originalURL string,
	now time.Time,
) (*models.ShortMapping, bool, error) {
	if err := ValidateAlias(alias); err != nil {
		return nil, false, err
	}

	if err := tx.Lock(ctx, "code:"+alias); err != nil {
		return nil, false, err
	}

	existing, err := tx.GetByCode(ctx, alias)
	if err != nil {
		if !errors.Is(err, database.ErrMappingNotFound) {
			return nil, false, err
		}

		mapping, err := tx.Insert(ctx, s.newMapping(alias, originalURL, now))
		if errors.Is(err, database.ErrCodeExists) {
			return nil, false, ErrAliasTaken
		}

		return mapping, false, err
	}

	if existing.Live(now) {
		return nil, false, ErrAliasTaken
	}

	existing.OriginalURL = originalURL
	existing.ExpiresAt = now.Add(s.ttl)
	existing.IsActive = true
	existing.Clicks = 0

	mapping, err := tx.Update(ctx, existing)
	return mapping, true, err
}

func (s *URLService) assignByURL(
	ctx context.Context,
	tx database.Tx,
	originalURL string,
	now time.Time,
) (*models.ShortMapping, bool, error) {
	if err := tx.Lock(ctx, "url:"+originalURL); err != nil {
		return nil, false, err
	}

	existing, err := tx.FindByURL(ctx, originalURL)
	if err == nil {
		existing.ExpiresAt = now.Add(s.ttl)
		existing.IsActive = true

		mapping, err := tx.Update(ctx, existing)
		return mapping, true, err
	}
	if !errors.Is(err, database.ErrMappingNotFound) {
		return nil, false, err
	}

	code, err := s.generator.Generate(ctx, tx.CodeExists)
	if err != nil {
		return nil, false, err
	}

	mapping, err := tx.Insert(ctx, s.newMapping(code, originalURL, now))
	if errors.Is(err, database.ErrCodeExists) {
		return nil, false, fmt.Errorf("%w: %w", ErrGenerationExhausted, err)
	}

	return mapping, false, err
}

func (s *URLService) newMapping(code, originalURL string, now time.Time) *models.ShortMapping {
	return &models.ShortMapping{
		Code:        code,
		OriginalURL: originalURL,
		CreatedAt:   now,
		ExpiresAt:   now.Add(s.ttl),
		IsActive:    true,
	}
}

// ResolveShortCode returns the original URL of a live mapping and records the click.
//
// It returns ErrNotFound for unknown codes and ErrGone for expired or inactive ones.
// An expired mapping that is still marked active is deactivated on the way out.
func (s *URLService) ResolveShortCode(ctx context.Context, code string, meta models.RequestMeta) (string, error) {
	const op = "service.URLService.ResolveShortCode"

	if code == "" || len(code) > MaxCodeLength || !isCode(code) {
		return "", fmt.Errorf("%s: %w", op, ErrNotFound)
	}

	now := s.now().UTC()

	mapping, counted, err := s.store.RecordClick(ctx, models.ClickEvent{
		Code:        code,
		CreatedAt:   now,
		RequestMeta: meta,
	})
	switch {
	case err == nil && counted:
		return mapping.OriginalURL, nil
	case errors.Is(err, database.ErrMappingNotFound):
		return "", fmt.Errorf("%s: %w", op, ErrNotFound)
	case err != nil:
		s.logger.Error("failed to record click",
			slog.String("op", op),
			slog.String("code", code),
			slog.Any("err", err),
		)

		mapping, err = s.store.GetByCode(ctx, code)
		if err != nil {
			if errors.Is(err, database.ErrMappingNotFound) {
				return "", fmt.Errorf("%s: %w", op, ErrNotFound)
			}

			return "", fmt.Errorf("%s: %w: %w", op, ErrStoreFailure, err)
		}

		if mapping.Live(now) {
			return mapping.OriginalURL, nil
		}
	}

	if mapping.IsActive {
		if err := s.store.Deactivate(ctx, code, now); err != nil {
			s.logger.Error("failed to deactivate expired mapping",
				slog.String("op", op),
				slog.String("code", code),
				slog.Any("err", err),
			)
		}
	}

	return "", fmt.Errorf("%s: %w", op, ErrGone)
}

// GetURLStats retrieves the mapping of a short code without touching its counters.
func (s *URLService) GetURLStats(ctx context.Context, code string) (*models.ShortMapping, error) {
	const op = "service.URLService.GetURLStats"

	mapping, err := s.store.GetByCode(ctx, code)
	if err != nil {
		if errors.Is(err, database.ErrMappingNotFound) {
			return nil, fmt.Errorf("%s: %w", op, ErrNotFound)
		}

		return nil, fmt.Errorf("%s: %w: %w", op, ErrStoreFailure, err)
	}

	return mapping, nil
}

func isHTTPURL(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}
