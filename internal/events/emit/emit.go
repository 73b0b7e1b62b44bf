// Package emit holds one typed emitter per domain event. Emitters only shape
// payloads and default the timestamp; callers validate input.
package emit

import (
	"context"
	"time"

	"supplydash/internal/events"
	"supplydash/pkg/requestcontext"
)

//go:generate mockgen -source=emit.go -destination=mocks/emit-mocks.go -package=mocks Publisher

// Publisher is the subset of *events.Bus the emitters need.
type Publisher interface {
	Publish(ctx context.Context, name events.Name, payload events.Payload)
}

type ApprovalRequest struct {
	ID   string
	By   string
	Kind string
	TS   time.Time
}

type ApprovalDecision struct {
	TargetID string
	By       string
	Reason   string
	TS       time.Time
}

type ForecastRunStart struct {
	ID     string
	Params map[string]any
	TS     time.Time
}

type ForecastRunResult struct {
	ID     string
	Result map[string]any
	TS     time.Time
}

type DraftItem struct {
	SKU      string `json:"sku"`
	Quantity int    `json:"quantity"`
	Location string `json:"location,omitempty"`
}

type ReplenishmentDraft struct {
	DraftID string
	Items   []DraftItem
	TS      time.Time
}

type Emitter struct {
	bus Publisher
	now func(ctx context.Context) time.Time
}

type Option func(*Emitter)

// WithClock overrides the request-scoped clock used for missing timestamps.
func WithClock(now func(ctx context.Context) time.Time) Option {
	return func(e *Emitter) {
		if now != nil {
			e.now = now
		}
	}
}

func New(bus Publisher, opts ...Option) *Emitter {
	e := &Emitter{bus: bus, now: requestcontext.Now}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// ts formats the event time, defaulting a zero value to the emitter clock.
func (e *Emitter) ts(ctx context.Context, t time.Time) string {
	if t.IsZero() {
		t = e.now(ctx)
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func (e *Emitter) ApprovalRequested(ctx context.Context, r ApprovalRequest) {
	p := events.Payload{
		"id": r.ID,
		"by": r.By,
		"ts": e.ts(ctx, r.TS),
	}
	if r.Kind != "" {
		p["kind"] = r.Kind
	}
	e.bus.Publish(ctx, events.ApprovalRequested, p)
}

func (e *Emitter) ApprovalGranted(ctx context.Context, d ApprovalDecision) {
	e.bus.Publish(ctx, events.ApprovalGranted, events.Payload{
		"targetId": d.TargetID,
		"by":       d.By,
		"ts":       e.ts(ctx, d.TS),
	})
}

func (e *Emitter) ApprovalDenied(ctx context.Context, d ApprovalDecision) {
	p := events.Payload{
		"targetId": d.TargetID,
		"by":       d.By,
		"ts":       e.ts(ctx, d.TS),
	}
	if d.Reason != "" {
		p["reason"] = d.Reason
	}
	e.bus.Publish(ctx, events.ApprovalDenied, p)
}

func (e *Emitter) ForecastRunStarted(ctx context.Context, r ForecastRunStart) {
	params := r.Params
	if params == nil {
		params = map[string]any{}
	}
	e.bus.Publish(ctx, events.ForecastRunStarted, events.Payload{
		"id":     r.ID,
		"params": params,
		"ts":     e.ts(ctx, r.TS),
	})
}

func (e *Emitter) ForecastRunCompleted(ctx context.Context, r ForecastRunResult) {
	result := r.Result
	if result == nil {
		result = map[string]any{}
	}
	e.bus.Publish(ctx, events.ForecastRunCompleted, events.Payload{
		"id":     r.ID,
		"result": result,
		"ts":     e.ts(ctx, r.TS),
	})
}

func (e *Emitter) ReplenishmentDraftCreated(ctx context.Context, d ReplenishmentDraft) {
	items := d.Items
	if items == nil {
		items = []DraftItem{}
	}
	e.bus.Publish(ctx, events.ReplenishmentDraftCreated, events.Payload{
		"draftId": d.DraftID,
		"items":   items,
		"ts":      e.ts(ctx, d.TS),
	})
}
