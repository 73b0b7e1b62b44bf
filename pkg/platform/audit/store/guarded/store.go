// Package guarded decorates an audit store with a circuit breaker so a failing
// backend is not hammered by every publish while it is down.
package guarded

import (
	"context"
	"fmt"
	"log/slog"

	audit "supplydash/pkg/platform/audit"
	"supplydash/pkg/platform/circuit"
	"supplydash/pkg/platform/sentinel"
)

// Store fails fast with sentinel.ErrUnavailable while its breaker is open.
// Reads pass through unguarded.
type Store struct {
	inner   audit.Store
	breaker *circuit.Breaker
	logger  *slog.Logger
	metrics *Metrics
}

type Option func(*Store)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		s.logger = logger
	}
}

func WithMetrics(m *Metrics) Option {
	return func(s *Store) {
		s.metrics = m
	}
}

func New(inner audit.Store, breaker *circuit.Breaker, opts ...Option) *Store {
	s := &Store{inner: inner, breaker: breaker}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) Append(ctx context.Context, entry audit.Entry) error {
	if !s.breaker.Allow() {
		s.metrics.IncRejected()
		return fmt.Errorf("audit store %s circuit open: %w", s.breaker.Name(), sentinel.ErrUnavailable)
	}

	if err := s.inner.Append(ctx, entry); err != nil {
		s.metrics.IncPersistFailures()
		if _, change := s.breaker.RecordFailure(); change.Opened {
			s.metrics.SetCircuitBreakerState(true)
			if s.logger != nil {
				s.logger.WarnContext(ctx, "audit store circuit opened",
					"breaker", s.breaker.Name(),
					"error", err,
				)
			}
		}
		return err
	}

	if _, change := s.breaker.RecordSuccess(); change.Closed {
		s.metrics.SetCircuitBreakerState(false)
		if s.logger != nil {
			s.logger.InfoContext(ctx, "audit store circuit closed", "breaker", s.breaker.Name())
		}
	}
	s.metrics.IncAppended()
	return nil
}

func (s *Store) List(ctx context.Context, limit, offset int) ([]audit.Entry, error) {
	return s.inner.List(ctx, limit, offset)
}
