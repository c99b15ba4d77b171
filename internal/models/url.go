package models

import "time"

// ShortMapping represents a short code and the original URL it redirects to.
type ShortMapping struct {
	// Code is the short code, also the primary identity of the mapping.
	Code string
	// OriginalURL is the destination the short code redirects to.
	OriginalURL string
	// CreatedAt is set once when the mapping is first created and never changes,
	// not even when the code is reused.
	CreatedAt time.Time
	// ExpiresAt is the moment the mapping stops resolving.
	ExpiresAt time.Time
	// Clicks counts successful resolutions since the mapping was (re)created.
	Clicks int64
	// IsActive is false once the mapping has been deactivated.
	IsActive bool
}

// Live reports whether the mapping can be resolved at the given moment.
func (m *ShortMapping) Live(now time.Time) bool {
	return m.IsActive && now.Before(m.ExpiresAt)
}

// CreationEvent records that a client created or renewed a mapping.
// Creation events are only used for rate limiting.
type CreationEvent struct {
	IP        string
	CreatedAt time.Time
}

// ClickEvent records a single successful resolution of a short code.
type ClickEvent struct {
	Code      string
	CreatedAt time.Time
	RequestMeta
}

// RequestMeta carries the client metadata captured when resolving a short code.
type RequestMeta struct {
	IP             string
	UserAgent      string
	Referer        string
	AcceptLanguage string
}
