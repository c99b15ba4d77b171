package http

import (
	"errors"
	"fmt"
	"html"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httplog/v2"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"
	"github.com/vadimbarashkov/xurl/internal/service"
	"github.com/vadimbarashkov/xurl/pkg/response"
)

func handleHealthz(w http.ResponseWriter, r *http.Request) {
	render.Status(r, http.StatusOK)
	render.JSON(w, r, map[string]bool{"ok": true})
}

func handleIndex(w http.ResponseWriter, r *http.Request) {
	render.Status(r, http.StatusOK)
	render.HTML(w, r, "<html><body><h1>x-url</h1><p>POST /api/shorten to create a short link.</p></body></html>")
}

// handleStatusPage is the landing page the redirect endpoint sends unknown and
// expired codes to.
func handleStatusPage(w http.ResponseWriter, r *http.Request) {
	status := chi.URLParam(r, "status")

	var desc string
	switch status {
	case "404":
		desc = "This short link does not exist."
	case "410":
		desc = "This short link has expired. Please create a new one."
	default:
		desc = "Something went wrong."
	}

	render.Status(r, http.StatusOK)
	render.HTML(w, r, fmt.Sprintf("<html><body><h1>Status %s</h1><p>%s</p></body></html>",
		html.EscapeString(status), desc))
}

type urlHandler struct {
	svc      URLService
	validate *validator.Validate
	cfg      routerConfig
}

func newURLHandler(svc URLService, validate *validator.Validate, cfg routerConfig) *urlHandler {
	return &urlHandler{
		svc:      svc,
		validate: validate,
		cfg:      cfg,
	}
}

func (h *urlHandler) shortenURL(w http.ResponseWriter, r *http.Request) {
	const op = "api.http.urlHandler.shortenURL"

	var req shortenRequest

	if err := render.DecodeJSON(r.Body, &req); err != nil {
		if errors.Is(err, io.EOF) {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, response.EmptyRequestBodyResponse)
			return
		}

		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, response.BadRequestResponse)
		return
	}

	if err := h.validate.Struct(req); err != nil {
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, response.ValidationErrorResponse(err))
		return
	}

	baseURL := h.cfg.baseURL
	if baseURL == "" {
		baseURL = requestBaseURL(r)
	}

	res, err := h.svc.ShortenURL(r.Context(), service.ShortenInput{
		URL:      req.URL,
		Alias:    req.Code,
		ClientID: clientIP(r),
		BaseURL:  baseURL,
	})
	if err != nil {
		var aliasErr *service.InvalidAliasError

		switch {
		case errors.Is(err, service.ErrInvalidURL):
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, response.InvalidURLResponse)
		case errors.As(err, &aliasErr):
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, response.InvalidAliasResponse(aliasErr.Reason))
		case errors.Is(err, service.ErrAliasTaken):
			render.Status(r, http.StatusConflict)
			render.JSON(w, r, response.AliasTakenResponse)
		case errors.Is(err, service.ErrRateLimited):
			w.Header().Set("Retry-After", strconv.Itoa(int(h.cfg.retryAfter.Seconds())))
			render.Status(r, http.StatusTooManyRequests)
			render.JSON(w, r, response.RateLimitedResponse)
		default:
			httplog.LogEntrySetFields(r.Context(), map[string]any{"op": op, "err": err})

			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, response.ServerErrorResponse)
		}
		return
	}

	render.Status(r, http.StatusCreated)
	render.JSON(w, r, toShortenResponse(res))
}

func (h *urlHandler) resolveShortCode(w http.ResponseWriter, r *http.Request) {
	const op = "api.http.urlHandler.resolveShortCode"

	code := chi.URLParam(r, "code")

	target, err := h.svc.ResolveShortCode(r.Context(), code, requestMeta(r))
	if err != nil {
		switch {
		case errors.Is(err, service.ErrNotFound):
			http.Redirect(w, r, "/status/404", http.StatusFound)
		case errors.Is(err, service.ErrGone):
			http.Redirect(w, r, "/status/410", http.StatusFound)
		default:
			httplog.LogEntrySetFields(r.Context(), map[string]any{"op": op, "err": err})

			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, response.ServerErrorResponse)
		}
		return
	}

	httplog.LogEntrySetField(r.Context(), "code", slog.StringValue(code))
	http.Redirect(w, r, target, http.StatusFound)
}

func (h *urlHandler) getURLStats(w http.ResponseWriter, r *http.Request) {
	const op = "api.http.urlHandler.getURLStats"

	code := chi.URLParam(r, "code")

	m, err := h.svc.GetURLStats(r.Context(), code)
	if err != nil {
		if errors.Is(err, service.ErrNotFound) {
			render.Status(r, http.StatusNotFound)
			render.JSON(w, r, response.ResourceNotFoundResponse)
			return
		}

		httplog.LogEntrySetFields(r.Context(), map[string]any{"op": op, "err": err})

		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, response.ServerErrorResponse)
		return
	}

	render.Status(r, http.StatusOK)
	render.JSON(w, r, toStatsResponse(m))
}
