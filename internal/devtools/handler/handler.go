// Package handler serves the development role simulator and the caller's
// resolved identity.
package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	dErrors "supplydash/pkg/domain-errors"
	"supplydash/pkg/platform/httputil"
	"supplydash/pkg/platform/middleware/auth"
	"supplydash/pkg/platform/sentinel"
	"supplydash/pkg/requestcontext"
)

// ActionRoleSimulated is the audit action written when a role is simulated.
const ActionRoleSimulated = "RoleSimulated"

// Auditor records handler actions. It fails closed.
type Auditor interface {
	Record(ctx context.Context, action string, payload map[string]any, reason string) error
}

type Handler struct {
	signer   *auth.Signer
	auditor  Auditor
	logger   *slog.Logger
	devTools bool
}

func New(signer *auth.Signer, auditor Auditor, logger *slog.Logger, devTools bool) *Handler {
	return &Handler{signer: signer, auditor: auditor, logger: logger, devTools: devTools}
}

// Register mounts /api/me always and /dev/role only when dev tools are on.
func (h *Handler) Register(r chi.Router) {
	r.Get("/api/me", h.HandleMe)
	if h.devTools {
		r.Post("/dev/role", h.HandleSimulateRole)
	}
}

// HandleMe handles GET /api/me.
func (h *Handler) HandleMe(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	httputil.WriteOK(w, http.StatusOK, map[string]any{
		"role":    requestcontext.Role(ctx).String(),
		"traceId": requestcontext.TraceID(ctx),
	})
}

// HandleSimulateRole handles POST /dev/role. The audit record is written
// before the cookie is issued; if it fails no cookie is set.
func (h *Handler) HandleSimulateRole(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[SimulateRoleRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	from := requestcontext.Role(ctx)
	to := req.ParsedRole()

	err := h.auditor.Record(ctx, ActionRoleSimulated, map[string]any{
		"from": from.String(),
		"to":   to.String(),
	}, req.Reason)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to audit role simulation",
			"request_id", requestID,
			"from", from.String(),
			"to", to.String(),
			"error", err,
		)
		if errors.Is(err, sentinel.ErrUnavailable) {
			httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeUnavailable, "audit log unavailable"))
			return
		}
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeInternal, "failed to record audit entry"))
		return
	}

	cookie, err := h.signer.Cookie(to)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to sign role cookie",
			"request_id", requestID,
			"error", err,
		)
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeInternal, "failed to issue role cookie"))
		return
	}
	http.SetCookie(w, cookie)

	h.logger.InfoContext(ctx, "role simulated",
		"request_id", requestID,
		"from", from.String(),
		"to", to.String(),
	)
	httputil.WriteOK(w, http.StatusOK, map[string]any{"role": to.String()})
}
