// Package handler serves the audit log and the recent activity feed.
package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"supplydash/internal/events/listeners"
	"supplydash/pkg/domain"
	dErrors "supplydash/pkg/domain-errors"
	"supplydash/pkg/platform/audit"
	"supplydash/pkg/platform/httputil"
	"supplydash/pkg/platform/middleware/auth"
	"supplydash/pkg/platform/sentinel"
	"supplydash/pkg/requestcontext"
)

// Lister is the read side of the audit store.
type Lister interface {
	List(ctx context.Context, limit, offset int) ([]audit.Entry, error)
}

// Feed exposes recent bus activity.
type Feed interface {
	Snapshot(limit int) []listeners.Activity
}

type Handler struct {
	store  Lister
	feed   Feed
	logger *slog.Logger
}

func New(store Lister, feed Feed, logger *slog.Logger) *Handler {
	return &Handler{store: store, feed: feed, logger: logger}
}

func (h *Handler) Register(r chi.Router) {
	r.With(auth.RequireRole(h.logger, domain.RoleAdmin)).Get("/api/audit", h.HandleList)
	if h.feed != nil {
		r.Get("/api/activity", h.HandleActivity)
	}
}

// HandleList handles GET /api/audit?limit=&offset=.
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	limit, err := queryInt(r, "limit")
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	offset, err := queryInt(r, "offset")
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	limit, offset = audit.NormalizePage(limit, offset)

	entries, err := h.store.List(ctx, limit, offset)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to list audit entries",
			"request_id", requestID,
			"error", err,
		)
		if errors.Is(err, sentinel.ErrUnavailable) {
			httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeUnavailable, "audit store unavailable"))
			return
		}
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list audit entries"))
		return
	}
	if entries == nil {
		entries = []audit.Entry{}
	}

	httputil.WriteOK(w, http.StatusOK, map[string]any{
		"entries": entries,
		"limit":   limit,
		"offset":  offset,
	})
}

// HandleActivity handles GET /api/activity?limit=.
func (h *Handler) HandleActivity(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit")
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	items := h.feed.Snapshot(limit)
	if items == nil {
		items = []listeners.Activity{}
	}
	httputil.WriteOK(w, http.StatusOK, map[string]any{"activity": items})
}

func queryInt(r *http.Request, key string) (int, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, dErrors.New(dErrors.CodeBadRequest, "invalid "+key).
			WithDetails(map[string]any{key: raw})
	}
	return n, nil
}
