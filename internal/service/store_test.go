package service

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/vadimbarashkov/xurl/internal/database"
	"github.com/vadimbarashkov/xurl/internal/models"
)

// memStore is an in-memory database.Store. Transactions are serialized and
// rolled back by restoring a snapshot.
type memStore struct {
	mu        sync.Mutex
	mappings  map[string]models.ShortMapping
	creations []models.CreationEvent
	clicks    []models.ClickEvent

	errBegin       error
	errRecordClick error
	errGetByCode   error
	errDeactivate  error
	codeExists     func(code string) bool

	// beforeDeactivate runs without the lock held, ahead of the flip.
	beforeDeactivate func()
}

func newMemStore() *memStore {
	return &memStore{
		mappings: make(map[string]models.ShortMapping),
	}
}

type memSnapshot struct {
	mappings  map[string]models.ShortMapping
	creations []models.CreationEvent
}

func (s *memStore) snapshot() memSnapshot {
	mappings := make(map[string]models.ShortMapping, len(s.mappings))
	for k, v := range s.mappings {
		mappings[k] = v
	}

	return memSnapshot{
		mappings:  mappings,
		creations: append([]models.CreationEvent(nil), s.creations...),
	}
}

func (s *memStore) InTx(ctx context.Context, fn func(tx database.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.errBegin != nil {
		return s.errBegin
	}

	snap := s.snapshot()

	err := fn(&memTx{s: s})
	if err == nil {
		err = ctx.Err()
	}
	if err != nil {
		s.mappings = snap.mappings
		s.creations = snap.creations
		return err
	}

	return nil
}

func (s *memStore) GetByCode(_ context.Context, code string) (*models.ShortMapping, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.errGetByCode != nil {
		return nil, s.errGetByCode
	}

	m, ok := s.mappings[code]
	if !ok {
		return nil, database.ErrMappingNotFound
	}

	return &m, nil
}

func (s *memStore) RecordClick(_ context.Context, ev models.ClickEvent) (*models.ShortMapping, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.errRecordClick != nil {
		return nil, false, s.errRecordClick
	}

	m, ok := s.mappings[ev.Code]
	if !ok {
		return nil, false, database.ErrMappingNotFound
	}
	if !m.Live(ev.CreatedAt) {
		return &m, false, nil
	}

	m.Clicks++
	s.mappings[ev.Code] = m
	s.clicks = append(s.clicks, ev)

	return &m, true, nil
}

func (s *memStore) Deactivate(_ context.Context, code string, now time.Time) error {
	if s.beforeDeactivate != nil {
		s.beforeDeactivate()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.errDeactivate != nil {
		return s.errDeactivate
	}

	if m, ok := s.mappings[code]; ok && m.IsActive && !m.ExpiresAt.After(now) {
		m.IsActive = false
		s.mappings[code] = m
	}

	return nil
}

// mapping reads a mapping for assertions.
func (s *memStore) mapping(code string) (models.ShortMapping, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.mappings[code]
	return m, ok
}

func (s *memStore) put(m models.ShortMapping) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.mappings[m.Code] = m
}

func (s *memStore) counts() (creations, clicks int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.creations), len(s.clicks)
}

// memTx runs with memStore.mu held.
type memTx struct {
	s *memStore
}

func (t *memTx) Lock(context.Context, string) error {
	return nil
}

func (t *memTx) GetByCode(_ context.Context, code string) (*models.ShortMapping, error) {
	m, ok := t.s.mappings[code]
	if !ok {
		return nil, database.ErrMappingNotFound
	}

	return &m, nil
}

func (t *memTx) FindByURL(_ context.Context, originalURL string) (*models.ShortMapping, error) {
	var found []models.ShortMapping
	for _, m := range t.s.mappings {
		if m.OriginalURL == originalURL {
			found = append(found, m)
		}
	}
	if len(found) == 0 {
		return nil, database.ErrMappingNotFound
	}

	sort.Slice(found, func(i, j int) bool {
		if !found[i].CreatedAt.Equal(found[j].CreatedAt) {
			return found[i].CreatedAt.Before(found[j].CreatedAt)
		}
		return found[i].Code < found[j].Code
	})

	return &found[0], nil
}

func (t *memTx) CodeExists(_ context.Context, code string) (bool, error) {
	if t.s.codeExists != nil {
		return t.s.codeExists(code), nil
	}

	_, ok := t.s.mappings[code]
	return ok, nil
}

func (t *memTx) Insert(_ context.Context, m *models.ShortMapping) (*models.ShortMapping, error) {
	if _, ok := t.s.mappings[m.Code]; ok {
		return nil, fmt.Errorf("insert: %w", database.ErrCodeExists)
	}

	t.s.mappings[m.Code] = *m
	out := *m
	return &out, nil
}

func (t *memTx) Update(_ context.Context, m *models.ShortMapping) (*models.ShortMapping, error) {
	prev, ok := t.s.mappings[m.Code]
	if !ok {
		return nil, database.ErrMappingNotFound
	}

	prev.OriginalURL = m.OriginalURL
	prev.ExpiresAt = m.ExpiresAt
	prev.Clicks = m.Clicks
	prev.IsActive = m.IsActive
	t.s.mappings[m.Code] = prev

	out := prev
	return &out, nil
}

func (t *memTx) CountCreationEvents(_ context.Context, ip string, since time.Time) (int, error) {
	var n int
	for _, ev := range t.s.creations {
		if ev.IP == ip && !ev.CreatedAt.Before(since) {
			n++
		}
	}
	return n, nil
}

func (t *memTx) AddCreationEvent(_ context.Context, ev models.CreationEvent) error {
	t.s.creations = append(t.s.creations, ev)
	return nil
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, time.March, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}
