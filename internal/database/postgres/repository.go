package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/vadimbarashkov/xurl/internal/database"
	"github.com/vadimbarashkov/xurl/internal/models"
)

type mappingRecord struct {
	Code        string    `db:"code"`
	OriginalURL string    `db:"original_url"`
	CreatedAt   time.Time `db:"created_at"`
	ExpiresAt   time.Time `db:"expires_at"`
	Clicks      int64     `db:"clicks"`
	IsActive    bool      `db:"is_active"`
}

func (r *mappingRecord) ToMapping() *models.ShortMapping {
	return &models.ShortMapping{
		Code:        r.Code,
		OriginalURL: r.OriginalURL,
		CreatedAt:   r.CreatedAt.UTC(),
		ExpiresAt:   r.ExpiresAt.UTC(),
		Clicks:      r.Clicks,
		IsActive:    r.IsActive,
	}
}

type clickRecord struct {
	Counted bool `db:"counted"`
	mappingRecord
}

// URLRepository implements database.Store on top of PostgreSQL.
type URLRepository struct {
	db *sqlx.DB
}

var _ database.Store = (*URLRepository)(nil)

func NewURLRepository(db *sqlx.DB) *URLRepository {
	return &URLRepository{
		db: db,
	}
}

func (r *URLRepository) InTx(ctx context.Context, fn func(tx database.Tx) error) error {
	const op = "database.postgres.URLRepository.InTx"

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%s: failed to begin transaction: %w", op, err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(&urlTx{tx: tx}); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			return errors.Join(err, fmt.Errorf("%s: failed to rollback transaction: %w", op, rbErr))
		}

		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%s: failed to commit transaction: %w", op, err)
	}

	return nil
}

func (r *URLRepository) GetByCode(ctx context.Context, code string) (*models.ShortMapping, error) {
	const op = "database.postgres.URLRepository.GetByCode"

	rec := new(mappingRecord)
	query := `SELECT * FROM short_mappings WHERE code = $1`

	if err := r.db.GetContext(ctx, rec, query, code); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, database.ErrMappingNotFound)
		}

		return nil, fmt.Errorf("%s: failed to get mapping record: %w", op, err)
	}

	return rec.ToMapping(), nil
}

func (r *URLRepository) RecordClick(ctx context.Context, ev models.ClickEvent) (*models.ShortMapping, bool, error) {
	const op = "database.postgres.URLRepository.RecordClick"

	rec := new(clickRecord)
	query := `WITH hit AS (
			UPDATE short_mappings
			SET clicks = clicks + 1
			WHERE code = $1 AND is_active AND expires_at > $2
			RETURNING *
		), logged AS (
			INSERT INTO click_events(code, created_at, ip, user_agent, referer, accept_language)
			SELECT code, $2, $3, $4, $5, $6 FROM hit
		)
		SELECT true AS counted, hit.* FROM hit
		UNION ALL
		SELECT false AS counted, m.* FROM short_mappings m
		WHERE m.code = $1 AND NOT EXISTS (SELECT 1 FROM hit)`

	err := r.db.GetContext(ctx, rec, query,
		ev.Code, ev.CreatedAt.UTC(), ev.IP, ev.UserAgent, ev.Referer, ev.AcceptLanguage)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, fmt.Errorf("%s: %w", op, database.ErrMappingNotFound)
		}

		return nil, false, fmt.Errorf("%s: failed to record click: %w", op, err)
	}

	return rec.ToMapping(), rec.Counted, nil
}

func (r *URLRepository) Deactivate(ctx context.Context, code string, now time.Time) error {
	const op = "database.postgres.URLRepository.Deactivate"

	query := `UPDATE short_mappings SET is_active = false
		WHERE code = $1 AND is_active AND expires_at <= $2`

	if _, err := r.db.ExecContext(ctx, query, code, now.UTC()); err != nil {
		return fmt.Errorf("%s: failed to deactivate mapping record: %w", op, err)
	}

	return nil
}

// urlTx implements database.Tx. Lookups lock the rows they return until the
// transaction ends.
type urlTx struct {
	tx *sqlx.Tx
}

func (t *urlTx) Lock(ctx context.Context, key string) error {
	const op = "database.postgres.urlTx.Lock"

	if _, err := t.tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, key); err != nil {
		return fmt.Errorf("%s: failed to acquire advisory lock: %w", op, err)
	}

	return nil
}

func (t *urlTx) GetByCode(ctx context.Context, code string) (*models.ShortMapping, error) {
	const op = "database.postgres.urlTx.GetByCode"

	rec := new(mappingRecord)
	query := `SELECT * FROM short_mappings WHERE code = $1 FOR UPDATE`

	if err := t.tx.GetContext(ctx, rec, query, code); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, database.ErrMappingNotFound)
		}

		return nil, fmt.Errorf("%s: failed to get mapping record: %w", op, err)
	}

	return rec.ToMapping(), nil
}

func (t *urlTx) FindByURL(ctx context.Context, originalURL string) (*models.ShortMapping, error) {
	const op = "database.postgres.urlTx.FindByURL"

	rec := new(mappingRecord)
	query := `SELECT * FROM short_mappings
		WHERE original_url = $1
		ORDER BY created_at, code
		LIMIT 1
		FOR UPDATE`

	if err := t.tx.GetContext(ctx, rec, query, originalURL); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, database.ErrMappingNotFound)
		}

		return nil, fmt.Errorf("%s: failed to find mapping record: %w", op, err)
	}

	return rec.ToMapping(), nil
}

func (t *urlTx) CodeExists(ctx context.Context, code string) (bool, error) {
	const op = "database.postgres.urlTx.CodeExists"

	var exists bool
	query := `SELECT EXISTS(SELECT 1 FROM short_mappings WHERE code = $1)`

	if err := t.tx.GetContext(ctx, &exists, query, code); err != nil {
		return false, fmt.Errorf("%s: failed to check code: %w", op, err)
	}

	return exists, nil
}

func (t *urlTx) Insert(ctx context.Context, m *models.ShortMapping) (*models.ShortMapping, error) {
	const op = "database.postgres.urlTx.Insert"

	rec := new(mappingRecord)
	query := `INSERT INTO short_mappings(code, original_url, created_at, expires_at, clicks, is_active)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING *`

	err := t.tx.GetContext(ctx, rec, query,
		m.Code, m.OriginalURL, m.CreatedAt.UTC(), m.ExpiresAt.UTC(), m.Clicks, m.IsActive)
	if err != nil {
		if isUniqueViolationError(err) {
			return nil, fmt.Errorf("%s: %w", op, database.ErrCodeExists)
		}

		return nil, fmt.Errorf("%s: failed to insert mapping record: %w", op, err)
	}

	return rec.ToMapping(), nil
}

func (t *urlTx) Update(ctx context.Context, m *models.ShortMapping) (*models.ShortMapping, error) {
	const op = "database.postgres.urlTx.Update"

	rec := new(mappingRecord)
	query := `UPDATE short_mappings
		SET original_url = $2, expires_at = $3, clicks = $4, is_active = $5
		WHERE code = $1
		RETURNING *`

	err := t.tx.GetContext(ctx, rec, query,
		m.Code, m.OriginalURL, m.ExpiresAt.UTC(), m.Clicks, m.IsActive)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, database.ErrMappingNotFound)
		}

		return nil, fmt.Errorf("%s: failed to update mapping record: %w", op, err)
	}

	return rec.ToMapping(), nil
}

func (t *urlTx) CountCreationEvents(ctx context.Context, ip string, since time.Time) (int, error) {
	const op = "database.postgres.urlTx.CountCreationEvents"

	var count int
	query := `SELECT COUNT(*) FROM creation_events WHERE ip = $1 AND created_at >= $2`

	if err := t.tx.GetContext(ctx, &count, query, ip, since.UTC()); err != nil {
		return 0, fmt.Errorf("%s: failed to count creation events: %w", op, err)
	}

	return count, nil
}

func (t *urlTx) AddCreationEvent(ctx context.Context, ev models.CreationEvent) error {
	const op = "database.postgres.urlTx.AddCreationEvent"

	query := `INSERT INTO creation_events(ip, created_at) VALUES ($1, $2)`

	if _, err := t.tx.ExecContext(ctx, query, ev.IP, ev.CreatedAt.UTC()); err != nil {
		return fmt.Errorf("%s: failed to insert creation event: %w", op, err)
	}

	return nil
}
