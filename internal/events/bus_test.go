package events

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	audit "supplydash/pkg/platform/audit"
	"supplydash/pkg/platform/audit/mocks"
)

type recordingSink struct {
	mu       sync.Mutex
	entries  []audit.Entry
	ctxErrs  []error
	err      error
	panicVal any
	onAppend func(context.Context)
}

func (s *recordingSink) Append(ctx context.Context, e audit.Entry) error {
	if s.onAppend != nil {
		s.onAppend(ctx)
	}
	s.mu.Lock()
	s.entries = append(s.entries, e)
	s.ctxErrs = append(s.ctxErrs, ctx.Err())
	s.mu.Unlock()
	if s.panicVal != nil {
		panic(s.panicVal)
	}
	return s.err
}

func (s *recordingSink) Entries() []audit.Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]audit.Entry(nil), s.entries...)
}

type counter struct {
	n        atomic.Int32
	mu       sync.Mutex
	payloads []Payload
}

func (c *counter) listener(err error) Listener {
	return func(_ context.Context, p Payload) error {
		c.n.Add(1)
		c.mu.Lock()
		c.payloads = append(c.payloads, p)
		c.mu.Unlock()
		return err
	}
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

var dispatchModes = []struct {
	name string
	opts []Option
}{
	{"sequential", nil},
	{"concurrent", []Option{WithConcurrentDispatch(4)}},
}

func newBus(sink audit.Appender, opts ...Option) *Bus {
	return New(sink, append([]Option{WithLogger(quietLogger())}, opts...)...)
}

func decodePayload(t *testing.T, e audit.Entry) map[string]any {
	t.Helper()
	var m map[string]any
	require.NoError(t, json.Unmarshal(e.Payload, &m))
	return m
}

func TestPublishAuditsExactlyOnce(t *testing.T) {
	for _, mode := range dispatchModes {
		for _, listeners := range []int{0, 1, 5} {
			t.Run(mode.name, func(t *testing.T) {
				sink := &recordingSink{}
				bus := newBus(sink, mode.opts...)
				c := &counter{}
				for range listeners {
					bus.Subscribe(ApprovalRequested, c.listener(nil))
				}

				bus.Publish(context.Background(), ApprovalRequested, Payload{"id": "1"})

				entries := sink.Entries()
				require.Len(t, entries, 1)
				assert.Equal(t, audit.ActorSystem, entries[0].Actor)
				assert.Equal(t, "ApprovalRequested", entries[0].Action)
				assert.Equal(t, audit.CategoryCompliance, entries[0].Category)
				assert.Equal(t, map[string]any{"id": "1"}, decodePayload(t, entries[0]))
				assert.Equal(t, int32(listeners), c.n.Load())
			})
		}
	}
}

func TestFailingListenerDoesNotStopSiblings(t *testing.T) {
	for _, mode := range dispatchModes {
		t.Run(mode.name, func(t *testing.T) {
			sink := &recordingSink{}
			bus := newBus(sink, mode.opts...)
			a, b, c := &counter{}, &counter{}, &counter{}

			bus.Subscribe(ReplenishmentDraftCreated, a.listener(nil))
			bus.Subscribe(ReplenishmentDraftCreated, b.listener(errors.New("listener failed")))
			bus.Subscribe(ReplenishmentDraftCreated, func(context.Context, Payload) error {
				panic("boom")
			})
			bus.Subscribe(ReplenishmentDraftCreated, c.listener(nil))

			require.NotPanics(t, func() {
				bus.Publish(context.Background(), ReplenishmentDraftCreated, Payload{"draftId": "d-1"})
			})

			assert.Equal(t, int32(1), a.n.Load())
			assert.Equal(t, int32(1), b.n.Load())
			assert.Equal(t, int32(1), c.n.Load())
			assert.Len(t, sink.Entries(), 1)
		})
	}
}

func TestPublishNeverPanicsWhenEverythingFails(t *testing.T) {
	for _, mode := range dispatchModes {
		t.Run(mode.name, func(t *testing.T) {
			sink := &recordingSink{panicVal: "sink exploded"}
			bus := newBus(sink, mode.opts...)
			bus.Subscribe(ApprovalDenied, func(context.Context, Payload) error { panic(errors.New("x")) })
			bus.Subscribe(ApprovalDenied, func(context.Context, Payload) error { return errors.New("y") })

			assert.NotPanics(t, func() {
				bus.Publish(context.Background(), ApprovalDenied, Payload{"targetId": "a-1"})
			})
		})
	}
}

func TestUnsubscribeRemovesExactlyOneRegistration(t *testing.T) {
	sink := &recordingSink{}
	bus := newBus(sink)
	a, b := &counter{}, &counter{}

	unsubA := bus.Subscribe(ForecastRunStarted, a.listener(nil))
	bus.Subscribe(ForecastRunStarted, b.listener(nil))
	require.Equal(t, 2, bus.ListenerCount(ForecastRunStarted))

	unsubA()
	assert.Equal(t, 1, bus.ListenerCount(ForecastRunStarted))

	bus.Publish(context.Background(), ForecastRunStarted, Payload{"id": "run-1"})
	assert.Equal(t, int32(0), a.n.Load())
	assert.Equal(t, int32(1), b.n.Load())

	assert.NotPanics(t, unsubA, "second unsubscribe is a no-op")
	assert.Equal(t, 1, bus.ListenerCount(ForecastRunStarted))
}

func TestSameListenerRegisteredTwiceIsRemovedOnce(t *testing.T) {
	bus := newBus(&recordingSink{})
	c := &counter{}
	l := c.listener(nil)

	unsub := bus.Subscribe(ApprovalGranted, l)
	bus.Subscribe(ApprovalGranted, l)
	unsub()

	bus.Publish(context.Background(), ApprovalGranted, nil)
	assert.Equal(t, int32(1), c.n.Load())
}

func TestTwoListenersReceivePayloadScenario(t *testing.T) {
	ctrl := gomock.NewController(t)
	sink := mocks.NewMockAppender(ctrl)
	sink.EXPECT().Append(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, e audit.Entry) error {
			assert.Equal(t, audit.ActorSystem, e.Actor)
			assert.Equal(t, "ApprovalRequested", e.Action)
			assert.JSONEq(t, `{"id":"1"}`, string(e.Payload))
			return nil
		}).Times(1)

	bus := newBus(sink)
	a, b := &counter{}, &counter{}
	bus.Subscribe(ApprovalRequested, a.listener(nil))
	bus.Subscribe(ApprovalRequested, b.listener(nil))

	bus.Publish(context.Background(), ApprovalRequested, Payload{"id": "1"})

	require.Len(t, a.payloads, 1)
	require.Len(t, b.payloads, 1)
	assert.Equal(t, Payload{"id": "1"}, a.payloads[0])
	assert.Equal(t, Payload{"id": "1"}, b.payloads[0])
}

func TestNoListenersStillAudits(t *testing.T) {
	sink := &recordingSink{}
	bus := newBus(sink)

	bus.Publish(context.Background(), ForecastRunCompleted, Payload{})

	entries := sink.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, "ForecastRunCompleted", entries[0].Action)
	assert.JSONEq(t, `{}`, string(entries[0].Payload))
}

func TestSinkFailureStillDispatches(t *testing.T) {
	for _, mode := range dispatchModes {
		t.Run(mode.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			sink := mocks.NewMockAppender(ctrl)
			sink.EXPECT().Append(gomock.Any(), gomock.Any()).Return(errors.New("db down")).Times(1)

			reg := prometheus.NewRegistry()
			metrics := NewMetrics(reg)
			bus := newBus(sink, append(mode.opts, WithMetrics(metrics))...)
			a, b := &counter{}, &counter{}
			bus.Subscribe("X", a.listener(nil))
			bus.Subscribe("X", b.listener(nil))

			assert.NotPanics(t, func() { bus.Publish(context.Background(), "X", Payload{}) })
			assert.Equal(t, int32(1), a.n.Load())
			assert.Equal(t, int32(1), b.n.Load())
			assert.Equal(t, 1.0, testutil.ToFloat64(metrics.AuditFailures.WithLabelValues("X")))
			assert.Equal(t, 0.0, testutil.ToFloat64(metrics.Audited.WithLabelValues("X")))
		})
	}
}

func TestUnserializablePayloadCountsAsAuditFailure(t *testing.T) {
	sink := &recordingSink{}
	metrics := NewMetrics(prometheus.NewRegistry())
	bus := newBus(sink, WithMetrics(metrics))
	c := &counter{}
	bus.Subscribe(ForecastRunStarted, c.listener(nil))

	bus.Publish(context.Background(), ForecastRunStarted, Payload{"params": make(chan int)})

	assert.Empty(t, sink.Entries(), "sink is not called when the payload cannot be encoded")
	assert.Equal(t, int32(1), c.n.Load())
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.AuditFailures.WithLabelValues("ForecastRunStarted")))
}

func TestListenerUnsubscribedBeforeItsTurnIsSkipped(t *testing.T) {
	bus := newBus(&recordingSink{})
	b := &counter{}

	var unsubB func()
	bus.Subscribe(ApprovalGranted, func(context.Context, Payload) error {
		unsubB()
		return nil
	})
	unsubB = bus.Subscribe(ApprovalGranted, b.listener(nil))

	bus.Publish(context.Background(), ApprovalGranted, Payload{"targetId": "a-1"})
	assert.Equal(t, int32(0), b.n.Load())
}

func TestListenerSubscribedDuringDispatchWaitsForNextPublish(t *testing.T) {
	bus := newBus(&recordingSink{})
	late := &counter{}

	var once sync.Once
	bus.Subscribe(ApprovalGranted, func(context.Context, Payload) error {
		once.Do(func() { bus.Subscribe(ApprovalGranted, late.listener(nil)) })
		return nil
	})

	bus.Publish(context.Background(), ApprovalGranted, Payload{})
	assert.Equal(t, int32(0), late.n.Load())

	bus.Publish(context.Background(), ApprovalGranted, Payload{})
	assert.Equal(t, int32(1), late.n.Load())
}

func TestAuditPrecedesDispatch(t *testing.T) {
	var order []string
	var mu sync.Mutex
	record := func(s string) {
		mu.Lock()
		order = append(order, s)
		mu.Unlock()
	}

	sink := &recordingSink{onAppend: func(context.Context) { record("audit") }}
	bus := newBus(sink)
	bus.Subscribe(ApprovalRequested, func(context.Context, Payload) error {
		record("listener")
		return nil
	})

	bus.Publish(context.Background(), ApprovalRequested, Payload{})
	assert.Equal(t, []string{"audit", "listener"}, order)
}

func TestAuditIgnoresCallerCancellation(t *testing.T) {
	sink := &recordingSink{}
	bus := newBus(sink)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	bus.Publish(ctx, ApprovalRequested, Payload{"id": "1"})

	require.Len(t, sink.ctxErrs, 1)
	assert.NoError(t, sink.ctxErrs[0])
}

func TestAuditTimeoutBoundsAppend(t *testing.T) {
	var deadline time.Time
	var hasDeadline bool
	sink := &recordingSink{onAppend: func(ctx context.Context) {
		deadline, hasDeadline = ctx.Deadline()
	}}
	bus := newBus(sink, WithAuditTimeout(50*time.Millisecond))

	before := time.Now()
	bus.Publish(context.Background(), ApprovalRequested, Payload{})

	require.True(t, hasDeadline)
	assert.WithinDuration(t, before.Add(50*time.Millisecond), deadline, time.Second)
}

func TestAuditTimestampUsesClock(t *testing.T) {
	fixed := time.Date(2026, 6, 1, 10, 0, 0, 0, time.UTC)
	sink := &recordingSink{}
	bus := newBus(sink, WithClock(func() time.Time { return fixed }))

	bus.Publish(context.Background(), ForecastRunStarted, Payload{})

	require.Len(t, sink.Entries(), 1)
	assert.Equal(t, fixed, sink.Entries()[0].Timestamp)
	assert.Equal(t, audit.CategoryOperations, sink.Entries()[0].Category)
}

func TestListenersGetIndependentPayloadCopies(t *testing.T) {
	bus := newBus(&recordingSink{})
	var seen any
	bus.Subscribe(ApprovalRequested, func(_ context.Context, p Payload) error {
		p["id"] = "mutated"
		return nil
	})
	bus.Subscribe(ApprovalRequested, func(_ context.Context, p Payload) error {
		seen = p["id"]
		return nil
	})

	original := Payload{"id": "1"}
	bus.Publish(context.Background(), ApprovalRequested, original)

	assert.Equal(t, "1", seen)
	assert.Equal(t, "1", original["id"])
}

func TestConcurrentDispatchWaitsForAllListeners(t *testing.T) {
	bus := newBus(&recordingSink{}, WithConcurrentDispatch(2))
	var done atomic.Int32
	for range 6 {
		bus.Subscribe(ForecastRunCompleted, func(context.Context, Payload) error {
			time.Sleep(10 * time.Millisecond)
			done.Add(1)
			return nil
		})
	}

	bus.Publish(context.Background(), ForecastRunCompleted, Payload{})
	assert.Equal(t, int32(6), done.Load())
}

func TestConcurrentPublishAndSubscribe(t *testing.T) {
	sink := &recordingSink{}
	bus := newBus(sink, WithConcurrentDispatch(3))

	var wg sync.WaitGroup
	for range 20 {
		wg.Add(2)
		go func() {
			defer wg.Done()
			unsub := bus.Subscribe(ApprovalRequested, func(context.Context, Payload) error { return nil })
			unsub()
		}()
		go func() {
			defer wg.Done()
			bus.Publish(context.Background(), ApprovalRequested, Payload{"id": "1"})
		}()
	}
	wg.Wait()

	assert.Len(t, sink.Entries(), 20)
	assert.Equal(t, 0, bus.ListenerCount(ApprovalRequested))
}

func TestListenerFailuresAreCounted(t *testing.T) {
	metrics := NewMetrics(prometheus.NewRegistry())
	bus := newBus(&recordingSink{}, WithMetrics(metrics))
	bus.Subscribe(ApprovalDenied, func(context.Context, Payload) error { return errors.New("nope") })
	bus.Subscribe(ApprovalDenied, func(context.Context, Payload) error { panic("nope") })
	bus.Subscribe(ApprovalDenied, func(context.Context, Payload) error { return nil })

	bus.Publish(context.Background(), ApprovalDenied, Payload{})

	assert.Equal(t, 2.0, testutil.ToFloat64(metrics.ListenerFailures.WithLabelValues("ApprovalDenied")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.Published.WithLabelValues("ApprovalDenied")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.Audited.WithLabelValues("ApprovalDenied")))
}

func TestSubscribeAll(t *testing.T) {
	bus := newBus(&recordingSink{})
	var got []Name
	unsub := bus.SubscribeAll(func(_ context.Context, name Name, _ Payload) error {
		got = append(got, name)
		return nil
	})

	for _, name := range All() {
		bus.Publish(context.Background(), name, Payload{})
	}
	assert.Equal(t, All(), got)

	unsub()
	for _, name := range All() {
		assert.Zero(t, bus.ListenerCount(name))
	}
}

func TestSubscribePanicsOnInvalidRegistration(t *testing.T) {
	bus := newBus(&recordingSink{})
	assert.Panics(t, func() { bus.Subscribe("", func(context.Context, Payload) error { return nil }) })
	assert.Panics(t, func() { bus.Subscribe(ApprovalRequested, nil) })
	assert.Panics(t, func() { New(nil) })
}
