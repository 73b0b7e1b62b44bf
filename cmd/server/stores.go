package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"

	httpapi "supplydash/internal/http"
	"supplydash/internal/platform/config"
	"supplydash/internal/platform/postgres"
	"supplydash/pkg/platform/audit"
	"supplydash/pkg/platform/audit/store/guarded"
	auditmemory "supplydash/pkg/platform/audit/store/memory"
	auditpostgres "supplydash/pkg/platform/audit/store/postgres"
	auditsqlite "supplydash/pkg/platform/audit/store/sqlite"
	"supplydash/pkg/platform/circuit"
)

// auditBackend is the selected audit store plus the resources it owns.
type auditBackend struct {
	store audit.Store
	db    *postgres.DB
	ready map[string]httpapi.ReadyCheck
	close func() error
}

// openAuditStore builds the configured store and wraps it in the circuit
// breaker decorator.
func openAuditStore(ctx context.Context, cfg config.Server, reg prometheus.Registerer, log *slog.Logger) (*auditBackend, error) {
	b := &auditBackend{
		ready: map[string]httpapi.ReadyCheck{},
		close: func() error { return nil },
	}

	var inner audit.Store
	switch cfg.Audit.Store {
	case config.StorePostgres:
		db, err := postgres.Open(ctx, cfg.Audit.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		pg := auditpostgres.New(db.DB, auditpostgres.WithOutbox(cfg.Kafka.Enabled()))
		if err := pg.Migrate(ctx); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("migrate audit schema: %w", err)
		}
		inner = pg
		b.db = db
		b.ready["postgres"] = postgres.ReadyCheck(db)
		b.close = db.Close
	case config.StoreSQLite:
		lite, err := auditsqlite.Open(ctx, cfg.Audit.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("open sqlite: %w", err)
		}
		inner = lite
		b.close = lite.Close
	default:
		inner = auditmemory.NewInMemoryStore()
	}

	b.store = guarded.New(inner, newAuditBreaker(cfg.Audit),
		guarded.WithLogger(log),
		guarded.WithMetrics(guarded.NewMetrics(reg)),
	)
	log.Info("audit store ready", "kind", cfg.Audit.Store, "outbox", cfg.Kafka.Enabled())
	return b, nil
}

func newAuditBreaker(cfg config.AuditConfig, opts ...circuit.Option) *circuit.Breaker {
	base := []circuit.Option{
		circuit.WithFailureThreshold(cfg.BreakerThreshold),
		circuit.WithSuccessThreshold(cfg.BreakerSuccesses),
		circuit.WithCooldown(cfg.BreakerCooldown),
	}
	return circuit.New("audit-store", append(base, opts...)...)
}
