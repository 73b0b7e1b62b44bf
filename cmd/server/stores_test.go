package main

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"supplydash/internal/platform/config"
	"supplydash/pkg/platform/audit"
	"supplydash/pkg/platform/audit/store/guarded"
	auditmemory "supplydash/pkg/platform/audit/store/memory"
	"supplydash/pkg/platform/circuit"
)

// outageStore fails the first failFor appends, then delegates.
type outageStore struct {
	*auditmemory.InMemoryStore
	failFor int
	calls   int
}

func (s *outageStore) Append(ctx context.Context, entry audit.Entry) error {
	s.calls++
	if s.calls <= s.failFor {
		return errors.New("connection refused")
	}
	return s.InMemoryStore.Append(ctx, entry)
}

func TestAuditBreakerAdmitsAppendsOnceBackendRecovers(t *testing.T) {
	cfg := config.Defaults().Audit
	now := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	backend := &outageStore{InMemoryStore: auditmemory.NewInMemoryStore(), failFor: cfg.BreakerThreshold}
	store := guarded.New(backend, newAuditBreaker(cfg, circuit.WithClock(func() time.Time { return now })))
	ctx := context.Background()
	e := audit.Entry{Actor: audit.ActorSystem, Action: "ApprovalRequested"}

	for i := 0; i < cfg.BreakerThreshold; i++ {
		require.Error(t, store.Append(ctx, e))
	}

	now = now.Add(cfg.BreakerCooldown + time.Second)
	for i := 0; i < 10; i++ {
		assert.NoError(t, store.Append(ctx, e), "append %d", i)
		now = now.Add(time.Second)
	}
	assert.Equal(t, 10, backend.Len())
}
