package testutil

import (
	"io"
	"log/slog"
	"net/http"
	"time"

	"supplydash/pkg/domain"
	"supplydash/pkg/requestcontext"
)

// DiscardLogger returns a logger that drops everything.
func DiscardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// WithRole simulates the auth middleware resolving role.
func WithRole(req *http.Request, role domain.Role) *http.Request {
	return req.WithContext(requestcontext.WithRole(req.Context(), role))
}

// WithTraceID simulates the trace middleware.
func WithTraceID(req *http.Request, traceID string) *http.Request {
	return req.WithContext(requestcontext.WithTraceID(req.Context(), traceID))
}

// WithTime pins the request clock.
func WithTime(req *http.Request, t time.Time) *http.Request {
	return req.WithContext(requestcontext.WithTime(req.Context(), t))
}
