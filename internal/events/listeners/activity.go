// Package listeners contains the bus listeners registered at startup.
package listeners

import (
	"context"
	"log/slog"
	"maps"
	"slices"

	"supplydash/internal/events"
	"supplydash/pkg/requestcontext"
)

// ActivityLogger logs every sampled domain event at INFO. It never fails.
type ActivityLogger struct {
	logger  *slog.Logger
	sampler *Sampler
}

func NewActivityLogger(logger *slog.Logger, sampler *Sampler) *ActivityLogger {
	if sampler == nil {
		sampler = NewSampler(1)
	}
	return &ActivityLogger{logger: logger, sampler: sampler}
}

// Register subscribes the logger to every known event.
func (a *ActivityLogger) Register(bus *events.Bus) (unsubscribe func()) {
	return bus.SubscribeAll(a.Handle)
}

func (a *ActivityLogger) Handle(ctx context.Context, name events.Name, payload events.Payload) error {
	if !a.sampler.ShouldSample(name) {
		return nil
	}
	keys := slices.Sorted(maps.Keys(payload))
	a.logger.InfoContext(ctx, "domain event",
		"event", string(name),
		"keys", keys,
		"role", string(requestcontext.Role(ctx)),
		"request_id", requestcontext.TraceID(ctx),
	)
	return nil
}
