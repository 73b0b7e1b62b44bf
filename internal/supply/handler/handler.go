// Package handler exposes the approval, forecast and replenishment routes.
// Each successful request publishes exactly one domain event.
package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"supplydash/internal/events/emit"
	"supplydash/pkg/domain"
	"supplydash/pkg/platform/httputil"
	"supplydash/pkg/platform/middleware/auth"
	"supplydash/pkg/requestcontext"
)

//go:generate mockgen -source=handler.go -destination=mocks/handler-mocks.go -package=mocks Emitter

// Emitter is the set of typed domain event emitters the handlers call.
type Emitter interface {
	ApprovalRequested(ctx context.Context, r emit.ApprovalRequest)
	ApprovalGranted(ctx context.Context, d emit.ApprovalDecision)
	ApprovalDenied(ctx context.Context, d emit.ApprovalDecision)
	ForecastRunStarted(ctx context.Context, r emit.ForecastRunStart)
	ForecastRunCompleted(ctx context.Context, r emit.ForecastRunResult)
	ReplenishmentDraftCreated(ctx context.Context, d emit.ReplenishmentDraft)
}

type Handler struct {
	emitter Emitter
	logger  *slog.Logger
	newID   func() string
}

type Option func(*Handler)

// WithIDGenerator overrides uuid generation for run, draft and approval ids.
func WithIDGenerator(fn func() string) Option {
	return func(h *Handler) {
		if fn != nil {
			h.newID = fn
		}
	}
}

func New(emitter Emitter, logger *slog.Logger, opts ...Option) *Handler {
	h := &Handler{emitter: emitter, logger: logger, newID: uuid.NewString}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Register mounts the routes with their role requirements.
func (h *Handler) Register(r chi.Router) {
	r.With(auth.RequireRole(h.logger, domain.RolePlanner, domain.RoleApprover)).
		Post("/api/approvals", h.HandleRequestApproval)
	r.With(auth.RequireRole(h.logger, domain.RoleApprover)).
		Post("/api/approvals/{id}/grant", h.HandleGrantApproval)
	r.With(auth.RequireRole(h.logger, domain.RoleApprover)).
		Post("/api/approvals/{id}/deny", h.HandleDenyApproval)

	r.Group(func(r chi.Router) {
		r.Use(auth.RequireRole(h.logger, domain.RolePlanner))
		r.Post("/api/forecasts/runs", h.HandleStartForecastRun)
		r.Post("/api/forecasts/runs/{id}/complete", h.HandleCompleteForecastRun)
		r.Post("/api/replenishment/drafts", h.HandleCreateDraft)
	})
}

// HandleRequestApproval handles POST /api/approvals.
func (h *Handler) HandleRequestApproval(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[ApprovalRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	id := h.newID()
	h.emitter.ApprovalRequested(ctx, emit.ApprovalRequest{
		ID:   id,
		By:   actor(ctx),
		Kind: req.Kind,
	})
	h.logger.InfoContext(ctx, "approval requested",
		"request_id", requestID,
		"approval_id", id,
		"kind", req.Kind,
	)
	httputil.WriteOK(w, http.StatusAccepted, map[string]any{"id": id})
}

// HandleGrantApproval handles POST /api/approvals/{id}/grant.
func (h *Handler) HandleGrantApproval(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	id, err := parseApprovalID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	h.emitter.ApprovalGranted(ctx, emit.ApprovalDecision{TargetID: id, By: actor(ctx)})
	h.logger.InfoContext(ctx, "approval granted",
		"request_id", requestID,
		"approval_id", id,
	)
	httputil.WriteOK(w, http.StatusOK, map[string]any{"id": id, "status": "granted"})
}

// HandleDenyApproval handles POST /api/approvals/{id}/deny. The body is
// optional and may carry a reason.
func (h *Handler) HandleDenyApproval(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	id, err := parseApprovalID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	req := &DenyRequest{}
	if r.ContentLength != 0 && r.Body != http.NoBody {
		var ok bool
		req, ok = httputil.DecodeAndPrepare[DenyRequest](w, r, h.logger, ctx, requestID)
		if !ok {
			return
		}
	}

	h.emitter.ApprovalDenied(ctx, emit.ApprovalDecision{
		TargetID: id,
		By:       actor(ctx),
		Reason:   req.Reason,
	})
	h.logger.InfoContext(ctx, "approval denied",
		"request_id", requestID,
		"approval_id", id,
	)
	httputil.WriteOK(w, http.StatusOK, map[string]any{"id": id, "status": "denied"})
}

// HandleStartForecastRun handles POST /api/forecasts/runs.
func (h *Handler) HandleStartForecastRun(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[ForecastRunRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	id := h.newID()
	h.emitter.ForecastRunStarted(ctx, emit.ForecastRunStart{ID: id, Params: req.Params})
	h.logger.InfoContext(ctx, "forecast run started",
		"request_id", requestID,
		"run_id", id,
	)
	httputil.WriteOK(w, http.StatusAccepted, map[string]any{"id": id})
}

// HandleCompleteForecastRun handles POST /api/forecasts/runs/{id}/complete.
func (h *Handler) HandleCompleteForecastRun(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	id, err := parseRunID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	req, ok := httputil.DecodeAndPrepare[ForecastCompleteRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	h.emitter.ForecastRunCompleted(ctx, emit.ForecastRunResult{ID: id, Result: req.Result})
	h.logger.InfoContext(ctx, "forecast run completed",
		"request_id", requestID,
		"run_id", id,
	)
	httputil.WriteOK(w, http.StatusOK, map[string]any{"id": id})
}

// HandleCreateDraft handles POST /api/replenishment/drafts.
func (h *Handler) HandleCreateDraft(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[DraftRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	draftID := h.newID()
	h.emitter.ReplenishmentDraftCreated(ctx, emit.ReplenishmentDraft{DraftID: draftID, Items: req.Items})
	h.logger.InfoContext(ctx, "replenishment draft created",
		"request_id", requestID,
		"draft_id", draftID,
		"items", len(req.Items),
	)
	httputil.WriteOK(w, http.StatusCreated, map[string]any{"draftId": draftID, "items": len(req.Items)})
}

func actor(ctx context.Context) string {
	return requestcontext.Role(ctx).String()
}
