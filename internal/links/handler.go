package links

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/sundayezeilo/customlinks/internal/errx"
	"github.com/sundayezeilo/customlinks/internal/httpx"
)

// ListResponse is the body returned by the list endpoints.
type ListResponse struct {
	Links []Entry `json:"links"`
}

// CreateLinkResponse is returned after a link is created.
type CreateLinkResponse struct {
	ID   string `json:"id"`
	Link *Entry `json:"link,omitempty"`
}

// Handler exposes the link registry over HTTP.
type Handler struct {
	service Service
	logger  *slog.Logger
}

// HandlerConfig holds the handler's collaborators.
type HandlerConfig struct {
	Service Service
	Logger  *slog.Logger
}

// NewHandler creates a Handler.
func NewHandler(cfg HandlerConfig) *Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		service: cfg.Service,
		logger:  logger,
	}
}

// ListLinks handles GET /api/links. The id, location and active query
// parameters filter the result; a repeated parameter matches any of its values.
func (h *Handler) ListLinks(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	q, err := parseQuery(r.URL.Query())
	if err != nil {
		h.requestLogger(r).WarnContext(ctx, "invalid link query", "error", err.Error())
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	httpx.WriteJSON(w, http.StatusOK, ListResponse{Links: h.service.List(ctx, q)})
}

// NavLinks handles GET /api/links/nav.
func (h *Handler) NavLinks(w http.ResponseWriter, r *http.Request) {
	httpx.WriteJSON(w, http.StatusOK, ListResponse{Links: h.service.NavLinks(r.Context())})
}

// MenuLinks handles GET /api/links/menu.
func (h *Handler) MenuLinks(w http.ResponseWriter, r *http.Request) {
	httpx.WriteJSON(w, http.StatusOK, ListResponse{Links: h.service.MenuLinks(r.Context())})
}

// GetLink handles GET /api/links/{id}.
func (h *Handler) GetLink(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := r.PathValue("id")

	entry, err := h.service.Get(ctx, id)
	if err != nil {
		h.handleError(ctx, w, h.requestLogger(r), err, id)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, entry)
}

// CreateLink handles POST /api/links.
func (h *Handler) CreateLink(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := h.requestLogger(r)

	body, err := httpx.DecodeObject(r)
	if err != nil {
		logger.WarnContext(ctx, "failed to decode request", "error", err.Error())
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	id, err := h.service.Add(ctx, Fields(body))
	if err != nil {
		h.handleError(ctx, w, logger, err, "")
		return
	}

	resp := CreateLinkResponse{ID: id}
	// A concurrent delete may already have removed it.
	if entry, err := h.service.Get(ctx, id); err == nil {
		resp.Link = &entry
	}
	httpx.WriteJSON(w, http.StatusCreated, resp)
}

// UpdateLink handles PATCH /api/links/{id}. The body holds the overrides.
func (h *Handler) UpdateLink(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := h.requestLogger(r)
	id := r.PathValue("id")

	body, err := httpx.DecodeObject(r)
	if err != nil {
		logger.WarnContext(ctx, "failed to decode request", "error", err.Error(), "link_id", id)
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	entry, err := h.service.Update(ctx, id, Fields(body))
	if err != nil {
		h.handleError(ctx, w, logger, err, id)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, entry)
}

// DeleteLink handles DELETE /api/links/{id}.
func (h *Handler) DeleteLink(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := h.requestLogger(r)
	id := r.PathValue("id")

	removed, err := h.service.Delete(ctx, id)
	if err != nil {
		h.handleError(ctx, w, logger, err, id)
		return
	}
	if !removed {
		logger.WarnContext(ctx, "link not found", "link_id", id)
		httpx.WriteError(w, http.StatusNotFound, "not_found", fmt.Sprintf("link %q not found", id))
		return
	}
	httpx.WriteNoContent(w)
}

func (h *Handler) requestLogger(r *http.Request) *slog.Logger {
	return h.logger.With(
		"request_id", httpx.GetRequestID(r.Context()),
		"method", r.Method,
		"path", r.URL.Path,
	)
}

// handleError logs err at a level matching its kind and writes the response.
func (h *Handler) handleError(ctx context.Context, w http.ResponseWriter, logger *slog.Logger, err error, id string) {
	kind := errx.KindOf(err)

	attrs := []any{
		"error", err.Error(),
		"error_kind", kind,
		"operation", errx.OpOf(err),
	}
	if id != "" {
		attrs = append(attrs, "link_id", id)
	}

	switch kind {
	case errx.Invalid:
		logger.WarnContext(ctx, "invalid link", attrs...)
	case errx.NotFound:
		logger.WarnContext(ctx, "link not found", attrs...)
	case errx.Unavailable:
		logger.ErrorContext(ctx, "link store unavailable", attrs...)
	default:
		logger.ErrorContext(ctx, "unexpected link registry error", attrs...)
	}

	httpx.WriteErr(w, err)
}

// parseQuery builds a Query from URL parameters. A parameter given once is
// an exact match; given several times it matches any of the values.
func parseQuery(values url.Values) (Query, error) {
	var q Query
	q.ID = stringFilter(values["id"])
	q.Location = stringFilter(values["location"])

	raw := values["active"]
	flags := make([]bool, 0, len(raw))
	for _, s := range raw {
		b, err := strconv.ParseBool(strings.TrimSpace(s))
		if err != nil {
			return Query{}, fmt.Errorf("active must be a boolean, got %q", s)
		}
		flags = append(flags, b)
	}
	q.Active = filterOf(flags)

	return q, nil
}

func stringFilter(vs []string) Filter[string] {
	out := make([]string, 0, len(vs))
	for _, v := range vs {
		out = append(out, strings.TrimSpace(v))
	}
	return filterOf(out)
}

func filterOf[T comparable](vs []T) Filter[T] {
	switch len(vs) {
	case 0:
		return Any[T]()
	case 1:
		return Exact(vs[0])
	default:
		return AnyOf(vs...)
	}
}
