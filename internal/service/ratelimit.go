package service

import (
	"context"
	"fmt"
	"time"
)

const (
	DefaultRateLimit  = 10
	DefaultRateWindow = time.Minute
)

// EventCounter counts the creation events recorded for a client.
type EventCounter interface {
	CountCreationEvents(ctx context.Context, ip string, since time.Time) (int, error)
}

// RateLimiter admits a client while it has fewer than limit creation events inside
// the sliding window. It keeps no state of its own: the event log is the state.
//
// Admission and the following event write happen in one transaction but nothing
// serializes two transactions of the same client, so a concurrent burst may be
// admitted slightly past the limit.
type RateLimiter struct {
	limit  int
	window time.Duration
}

func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	if limit <= 0 {
		limit = DefaultRateLimit
	}
	if window <= 0 {
		window = DefaultRateWindow
	}

	return &RateLimiter{
		limit:  limit,
		window: window,
	}
}

func (l *RateLimiter) Admit(ctx context.Context, counter EventCounter, clientID string, now time.Time) (bool, error) {
	const op = "service.RateLimiter.Admit"

	count, err := counter.CountCreationEvents(ctx, clientID, now.Add(-l.window))
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}

	return count < l.limit, nil
}
