package database

import (
	"context"
	"time"

	"github.com/vadimbarashkov/xurl/internal/models"
)

// Store is the durable home of short mappings, creation events and click events.
type Store interface {
	// InTx runs fn inside a single transaction. The transaction is committed when fn
	// returns nil and rolled back otherwise, including when ctx is cancelled.
	InTx(ctx context.Context, fn func(tx Tx) error) error

	// GetByCode retrieves a mapping by its short code.
	// Returns ErrMappingNotFound if there is none.
	GetByCode(ctx context.Context, code string) (*models.ShortMapping, error)

	// RecordClick increments the click counter of ev.Code and appends the click event
	// in one atomic step, but only if the mapping is active and unexpired at ev.CreatedAt.
	// It returns the mapping as seen by the statement and whether the click was counted.
	// Returns ErrMappingNotFound if there is no mapping for ev.Code.
	RecordClick(ctx context.Context, ev models.ClickEvent) (*models.ShortMapping, bool, error)

	// Deactivate marks the mapping inactive if it is still active and expired at now.
	// A mapping renewed or reused since it was seen expired is left untouched.
	// Deactivating an inactive, live or missing mapping is a no-op.
	Deactivate(ctx context.Context, code string, now time.Time) error
}

// Tx exposes the store operations that must run inside a transaction.
type Tx interface {
	// Lock takes a transaction scoped lock on an arbitrary key. It serializes
	// read-modify-write sequences on rows that may not exist yet.
	Lock(ctx context.Context, key string) error

	// GetByCode retrieves and locks a mapping by its short code.
	// Returns ErrMappingNotFound if there is none.
	GetByCode(ctx context.Context, code string) (*models.ShortMapping, error)

	// FindByURL retrieves and locks the oldest mapping pointing at originalURL.
	// Returns ErrMappingNotFound if there is none.
	FindByURL(ctx context.Context, originalURL string) (*models.ShortMapping, error)

	// CodeExists reports whether a mapping with the given code exists.
	CodeExists(ctx context.Context, code string) (bool, error)

	// Insert stores a new mapping. Returns ErrCodeExists if the code is taken.
	Insert(ctx context.Context, m *models.ShortMapping) (*models.ShortMapping, error)

	// Update rewrites the mutable fields of an existing mapping in place.
	// Returns ErrMappingNotFound if there is none.
	Update(ctx context.Context, m *models.ShortMapping) (*models.ShortMapping, error)

	// CountCreationEvents counts the creation events of ip at or after since.
	CountCreationEvents(ctx context.Context, ip string, since time.Time) (int, error)

	// AddCreationEvent appends a creation event.
	AddCreationEvent(ctx context.Context, ev models.CreationEvent) error
}
