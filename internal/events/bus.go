// Package events is the in-process domain event bus.
//
// Every Publish appends exactly one audit entry (actor SYSTEM, action = event
// name) and then invokes the listeners registered for that name at publish
// time. Audit and listener failures, including panics, stop at the bus: they
// are logged and counted but never returned to the publisher.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"maps"
	"runtime/debug"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	audit "supplydash/pkg/platform/audit"
)

const tracerName = "supplydash/internal/events"

// Payload is the event body. Values must be JSON-serializable.
type Payload map[string]any

// Listener handles one event. A returned error or a panic is isolated to this
// listener.
type Listener func(ctx context.Context, payload Payload) error

// PanicError wraps a value recovered from a panicking listener or sink.
type PanicError struct {
	Value any
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic: %v", e.Value)
}

type registration struct {
	id     uint64
	name   Name
	fn     Listener
	active atomic.Bool
}

// Bus fans events out to listeners after auditing them. The zero value is not
// usable; construct with New.
type Bus struct {
	mu        sync.RWMutex
	listeners map[Name][]*registration
	nextID    atomic.Uint64

	sink         audit.Appender
	logger       *slog.Logger
	metrics      *Metrics
	tracer       trace.Tracer
	now          func() time.Time
	auditTimeout time.Duration
	concurrency  int
}

type Option func(*Bus)

func WithLogger(logger *slog.Logger) Option {
	return func(b *Bus) {
		if logger != nil {
			b.logger = logger
		}
	}
}

func WithMetrics(m *Metrics) Option {
	return func(b *Bus) {
		b.metrics = m
	}
}

func WithTracer(t trace.Tracer) Option {
	return func(b *Bus) {
		if t != nil {
			b.tracer = t
		}
	}
}

// WithClock sets the clock used for audit entry timestamps.
func WithClock(now func() time.Time) Option {
	return func(b *Bus) {
		if now != nil {
			b.now = now
		}
	}
}

// WithAuditTimeout bounds each audit append. Zero means no bound beyond the
// sink's own.
func WithAuditTimeout(d time.Duration) Option {
	return func(b *Bus) {
		b.auditTimeout = d
	}
}

// WithConcurrentDispatch runs up to limit listeners of one publish in
// parallel. Publish still waits for all of them. A limit below 2 keeps
// sequential dispatch in registration order.
func WithConcurrentDispatch(limit int) Option {
	return func(b *Bus) {
		b.concurrency = limit
	}
}

// New creates a bus that audits through sink. It panics if sink is nil.
func New(sink audit.Appender, opts ...Option) *Bus {
	if sink == nil {
		panic("events: New with nil audit sink")
	}
	b := &Bus{
		listeners: make(map[Name][]*registration),
		sink:      sink,
		logger:    slog.Default(),
		tracer:    otel.Tracer(tracerName),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Subscribe registers listener for name and returns a function that removes
// exactly this registration. The returned function is safe to call more than
// once. Subscribe panics on an empty name or nil listener.
func (b *Bus) Subscribe(name Name, listener Listener) (unsubscribe func()) {
	if name == "" {
		panic("events: Subscribe with empty event name")
	}
	if listener == nil {
		panic("events: Subscribe with nil listener")
	}

	reg := &registration{id: b.nextID.Add(1), name: name, fn: listener}
	reg.active.Store(true)

	b.mu.Lock()
	b.listeners[name] = append(b.listeners[name], reg)
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			reg.active.Store(false)
			b.remove(reg)
		})
	}
}

// SubscribeAll registers fn for every known event name. The returned function
// removes all of those registrations.
func (b *Bus) SubscribeAll(fn func(ctx context.Context, name Name, payload Payload) error) (unsubscribe func()) {
	if fn == nil {
		panic("events: SubscribeAll with nil listener")
	}
	names := All()
	unsubs := make([]func(), 0, len(names))
	for _, name := range names {
		unsubs = append(unsubs, b.Subscribe(name, func(ctx context.Context, p Payload) error {
			return fn(ctx, name, p)
		}))
	}
	return func() {
		for _, u := range unsubs {
			u()
		}
	}
}

// ListenerCount returns the number of live registrations for name.
func (b *Bus) ListenerCount(name Name) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.listeners[name])
}

func (b *Bus) remove(target *registration) {
	b.mu.Lock()
	defer b.mu.Unlock()

	regs := b.listeners[target.name]
	kept := make([]*registration, 0, len(regs))
	for _, r := range regs {
		if r != target {
			kept = append(kept, r)
		}
	}
	if len(kept) == 0 {
		delete(b.listeners, target.name)
		return
	}
	b.listeners[target.name] = kept
}

// Publish audits the event and then dispatches it to the listeners registered
// for name when Publish was called. It returns once the audit attempt and every
// listener have finished. Failures are logged and counted, never returned.
func (b *Bus) Publish(ctx context.Context, name Name, payload Payload) {
	start := time.Now()
	ctx, span := b.tracer.Start(ctx, "events.Publish",
		trace.WithAttributes(attribute.String("event.name", string(name))),
	)
	defer span.End()

	b.metrics.IncPublished(name)
	if !name.Known() {
		b.logger.WarnContext(ctx, "publishing unknown event name", "event", string(name))
	}

	if err := b.attemptAudit(ctx, name, payload); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "audit append failed")
	}

	regs := b.snapshot(name)
	span.SetAttributes(attribute.Int("event.listeners", len(regs)))
	if failed := b.dispatch(ctx, name, payload, regs); failed > 0 {
		span.SetAttributes(attribute.Int("event.listener_failures", int(failed)))
	}

	b.metrics.ObservePublishDuration(name, time.Since(start).Seconds())
}

// attemptAudit performs the single audit append for a publish. The append is
// detached from the caller's cancellation so an aborted request still leaves
// its audit trace.
func (b *Bus) attemptAudit(ctx context.Context, name Name, payload Payload) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &PanicError{Value: r, Stack: debug.Stack()}
		}
		if err != nil {
			b.metrics.IncAuditFailures(name)
			b.logger.ErrorContext(ctx, "event audit append failed",
				"event", string(name),
				"error", err,
			)
			return
		}
		b.metrics.IncAudited(name)
	}()

	raw, err := marshalPayload(payload)
	if err != nil {
		return fmt.Errorf("marshal event payload: %w", err)
	}

	auditCtx := context.WithoutCancel(ctx)
	if b.auditTimeout > 0 {
		var cancel context.CancelFunc
		auditCtx, cancel = context.WithTimeout(auditCtx, b.auditTimeout)
		defer cancel()
	}

	return b.sink.Append(auditCtx, audit.Entry{
		Timestamp: b.now(),
		Actor:     audit.ActorSystem,
		Action:    string(name),
		Category:  name.Category(),
		Payload:   raw,
	})
}

func marshalPayload(payload Payload) (json.RawMessage, error) {
	if payload == nil {
		return json.RawMessage("{}"), nil
	}
	return json.Marshal(payload)
}

func (b *Bus) snapshot(name Name) []*registration {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return slices.Clone(b.listeners[name])
}

// dispatch invokes every registration and reports how many failed.
func (b *Bus) dispatch(ctx context.Context, name Name, payload Payload, regs []*registration) int32 {
	var failed atomic.Int32
	if b.concurrency < 2 || len(regs) < 2 {
		for _, reg := range regs {
			if !b.invoke(ctx, name, payload, reg) {
				failed.Add(1)
			}
		}
		return failed.Load()
	}

	var g errgroup.Group
	g.SetLimit(b.concurrency)
	for _, reg := range regs {
		g.Go(func() error {
			if !b.invoke(ctx, name, payload, reg) {
				failed.Add(1)
			}
			return nil
		})
	}
	_ = g.Wait()
	return failed.Load()
}

// invoke runs one listener and reports whether it succeeded. Listeners
// unsubscribed after the snapshot are skipped and count as success.
func (b *Bus) invoke(ctx context.Context, name Name, payload Payload, reg *registration) bool {
	if !reg.active.Load() {
		return true
	}
	if err := call(ctx, reg.fn, payload); err != nil {
		b.metrics.IncListenerFailures(name)
		b.logger.ErrorContext(ctx, "event listener failed",
			"event", string(name),
			"listener_id", reg.id,
			"error", err,
		)
		return false
	}
	return true
}

// call gives each listener its own shallow copy of the payload.
func call(ctx context.Context, fn Listener, payload Payload) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &PanicError{Value: r, Stack: debug.Stack()}
		}
	}()
	return fn(ctx, maps.Clone(payload))
}
