package http

import (
	"time"

	"github.com/vadimbarashkov/xurl/internal/models"
	"github.com/vadimbarashkov/xurl/internal/service"
)

// shortenRequest is the body of POST /api/shorten. Code is the optional custom alias.
type shortenRequest struct {
	URL  string `json:"url" validate:"required"`
	Code string `json:"code"`
}

type shortenResponse struct {
	Code      string `json:"code"`
	ShortURL  string `json:"short_url"`
	ExpiresAt string `json:"expires_at"`
	Renewed   bool   `json:"renewed"`
}

func toShortenResponse(res *service.ShortenResult) shortenResponse {
	return shortenResponse{
		Code:      res.Code,
		ShortURL:  res.ShortURL,
		ExpiresAt: formatTime(res.ExpiresAt),
		Renewed:   res.Renewed,
	}
}

type statsResponse struct {
	Code        string `json:"code"`
	OriginalURL string `json:"original_url"`
	Clicks      int64  `json:"clicks"`
	CreatedAt   string `json:"created_at"`
	ExpiresAt   string `json:"expires_at"`
	IsActive    bool   `json:"is_active"`
}

func toStatsResponse(m *models.ShortMapping) statsResponse {
	return statsResponse{
		Code:        m.Code,
		OriginalURL: m.OriginalURL,
		Clicks:      m.Clicks,
		CreatedAt:   formatTime(m.CreatedAt),
		ExpiresAt:   formatTime(m.ExpiresAt),
		IsActive:    m.IsActive,
	}
}

// formatTime renders t as RFC 3339 in UTC, which always ends in "Z".
func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}
