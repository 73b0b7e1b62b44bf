package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"supplydash/pkg/requestcontext"
)

// Recorder writes handler-initiated actions to the audit store with
// fail-closed semantics: the caller blocks until the append succeeds and must
// fail its own operation when Record returns an error.
//
// Bus-published domain events are audited by the bus itself; Recorder is for
// actions that are not domain events (role simulation and similar).
type Recorder struct {
	store   Appender
	logger  *slog.Logger
	metrics *Metrics
}

type RecorderOption func(*Recorder)

func WithLogger(logger *slog.Logger) RecorderOption {
	return func(r *Recorder) {
		r.logger = logger
	}
}

func WithMetrics(m *Metrics) RecorderOption {
	return func(r *Recorder) {
		r.metrics = m
	}
}

func NewRecorder(store Appender, opts ...RecorderOption) *Recorder {
	r := &Recorder{store: store}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Record appends action with the request's role as actor. The trace id, when
// present, is added to the payload under "traceId". An empty reason is
// stored as null.
func (r *Recorder) Record(ctx context.Context, action string, payload map[string]any, reason string) error {
	start := time.Now()

	if action == "" {
		return ErrMissingAction
	}

	body := make(map[string]any, len(payload)+1)
	for k, v := range payload {
		body[k] = v
	}
	if traceID := requestcontext.TraceID(ctx); traceID != "" {
		body["traceId"] = traceID
	}
	raw, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal audit payload: %w", err)
	}

	entry := Entry{
		Timestamp: requestcontext.Now(ctx),
		Actor:     string(requestcontext.Role(ctx)),
		Action:    action,
		Category:  CategorySecurity,
		Payload:   raw,
	}
	if reason != "" {
		entry.Reason = &reason
	}

	if err := r.store.Append(ctx, entry); err != nil {
		r.metrics.IncPersistFailures()
		if r.logger != nil {
			r.logger.ErrorContext(ctx, "audit record failed",
				"action", action,
				"actor", entry.Actor,
				"error", err,
			)
		}
		return fmt.Errorf("audit record persistence failed: %w", err)
	}

	r.metrics.ObservePersistDuration(time.Since(start).Seconds())
	r.metrics.IncRecorded(action)
	return nil
}
