// Package outbox relays audit entries from the transactional outbox table to
// Kafka, one topic per audit category.
package outbox

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

type Config struct {
	TopicPrefix string
	PollEvery   time.Duration
	BatchSize   int
}

// Relay polls the outbox and produces pending records. Delivery is at least
// once: a crash between produce and commit republishes the batch.
type Relay struct {
	source    Source
	producer  Producer
	logger    *slog.Logger
	metrics   *Metrics
	tracer    trace.Tracer
	prefix    string
	pollEvery time.Duration
	batchSize int
}

type Option func(*Relay)

func WithLogger(logger *slog.Logger) Option {
	return func(r *Relay) {
		if logger != nil {
			r.logger = logger
		}
	}
}

func WithMetrics(m *Metrics) Option {
	return func(r *Relay) {
		r.metrics = m
	}
}

func NewRelay(source Source, producer Producer, cfg Config, opts ...Option) *Relay {
	if cfg.PollEvery <= 0 {
		cfg.PollEvery = 2 * time.Second
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 50
	}
	r := &Relay{
		source:    source,
		producer:  producer,
		logger:    slog.Default(),
		tracer:    otel.Tracer("supplydash/pkg/platform/audit/outbox"),
		prefix:    cfg.TopicPrefix,
		pollEvery: cfg.PollEvery,
		batchSize: cfg.BatchSize,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run polls until ctx is cancelled. Batch failures are logged and retried on
// the next tick.
func (r *Relay) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.pollEvery)
	defer ticker.Stop()

	r.logger.InfoContext(ctx, "audit outbox relay started",
		"poll_every", r.pollEvery.String(),
		"batch_size", r.batchSize,
	)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if _, err := r.Drain(ctx); err != nil && ctx.Err() == nil {
				r.logger.ErrorContext(ctx, "audit outbox publish failed", "error", err)
			}
		}
	}
}

// Drain publishes batches until the outbox is empty or a batch fails.
func (r *Relay) Drain(ctx context.Context) (int, error) {
	total := 0
	for {
		n, err := r.PublishBatch(ctx)
		total += n
		if err != nil || n < r.batchSize {
			return total, err
		}
	}
}

// PublishBatch produces at most one batch and returns how many records were
// published.
func (r *Relay) PublishBatch(ctx context.Context) (int, error) {
	start := time.Now()
	ctx, span := r.tracer.Start(ctx, "outbox.PublishBatch")
	defer span.End()

	n, err := r.source.Process(ctx, r.batchSize, func(ctx context.Context, records []Record) error {
		msgs := make([]Message, 0, len(records))
		for _, rec := range records {
			msgs = append(msgs, r.message(rec))
		}
		if err := r.producer.Produce(ctx, msgs); err != nil {
			return err
		}
		for _, m := range msgs {
			r.metrics.IncPublished(m.Topic)
		}
		return nil
	})
	r.metrics.ObserveBatchDuration(time.Since(start).Seconds())
	span.SetAttributes(attribute.Int("outbox.published", n))
	if err != nil {
		r.metrics.IncBatchFailures()
		span.RecordError(err)
		span.SetStatus(codes.Error, "outbox batch failed")
		return 0, err
	}
	return n, nil
}

func (r *Relay) message(rec Record) Message {
	headers := map[string]string{
		"event_id":   rec.ID,
		"event_type": rec.EventType,
		"entry_id":   strconv.FormatInt(rec.EntryID, 10),
	}
	if rec.Traceparent != "" {
		headers["traceparent"] = rec.Traceparent
	}
	if rec.Tracestate != "" {
		headers["tracestate"] = rec.Tracestate
	}
	return Message{
		Topic:   Topic(r.prefix, rec.Category),
		Key:     []byte(strconv.FormatInt(rec.EntryID, 10)),
		Value:   rec.Payload,
		Headers: headers,
	}
}
