package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	auditlog "supplydash/internal/auditlog/handler"
	devtools "supplydash/internal/devtools/handler"
	"supplydash/internal/events"
	"supplydash/internal/events/emit"
	"supplydash/internal/events/listeners"
	httpapi "supplydash/internal/http"
	"supplydash/internal/idempotency"
	"supplydash/internal/platform/config"
	"supplydash/internal/platform/httpserver"
	"supplydash/internal/platform/logger"
	"supplydash/internal/platform/metrics"
	platformredis "supplydash/internal/platform/redis"
	"supplydash/internal/platform/tracing"
	supply "supplydash/internal/supply/handler"
	"supplydash/pkg/platform/audit"
	"supplydash/pkg/platform/audit/outbox"
	"supplydash/pkg/platform/middleware/auth"
)

const serviceName = "supplydash"

// main wires high-level dependencies and keeps the process lifecycle small.
// Business logic lives in internal packages.
func main() {
	cfg, err := config.FromEnv()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	log := logger.New(serviceName, cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("server exited with error", "error", err)
		os.Exit(1)
	}
	log.Info("server stopped")
}

func run(ctx context.Context, cfg config.Server, log *slog.Logger) error {
	shutdownTracing, err := tracing.Setup(ctx, serviceName, cfg.Environment, cfg.Tracing)
	if err != nil {
		return fmt.Errorf("setup tracing: %w", err)
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(flushCtx); err != nil {
			log.Warn("tracer shutdown failed", "error", err)
		}
	}()

	reg := metrics.NewRegistry()

	backend, err := openAuditStore(ctx, cfg, reg, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := backend.close(); err != nil {
			log.Warn("failed to close audit store", "error", err)
		}
	}()

	bus := events.New(backend.store,
		events.WithLogger(log),
		events.WithMetrics(events.NewMetrics(reg)),
		events.WithAuditTimeout(cfg.Audit.Timeout),
		events.WithConcurrentDispatch(cfg.Events.DispatchConcurrency),
	)
	listeners.NewActivityLogger(log, listeners.NewSampler(1)).Register(bus)
	feed := listeners.NewRecentActivity(200)
	feed.Register(bus)

	signer, err := auth.NewSigner([]byte(cfg.RoleSigningKey), cfg.RoleCookieTTL,
		auth.WithSecureCookie(cfg.IsProduction()),
	)
	if err != nil {
		return fmt.Errorf("role signer: %w", err)
	}

	idemStore, closeRedis, ready, err := idempotencyStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeRedis()
	for name, check := range backend.ready {
		ready[name] = check
	}

	recorder := audit.NewRecorder(backend.store,
		audit.WithLogger(log),
		audit.WithMetrics(audit.NewMetrics(reg)),
	)

	g, gctx := errgroup.WithContext(ctx)

	if cfg.Kafka.Enabled() {
		client, err := outbox.NewKafkaClient(cfg.Kafka.Brokers, serviceName)
		if err != nil {
			return err
		}
		defer client.Close()
		if err := outbox.EnsureTopics(ctx, client, cfg.Kafka.TopicPrefix, cfg.Kafka.Partitions, cfg.Kafka.Replication); err != nil {
			return fmt.Errorf("ensure topics: %w", err)
		}
		producer := outbox.NewKafkaProducer(client)
		relay := outbox.NewRelay(outbox.NewPostgresSource(backend.db.DB), producer, outbox.Config{
			TopicPrefix: cfg.Kafka.TopicPrefix,
			PollEvery:   cfg.Kafka.PollEvery,
			BatchSize:   cfg.Kafka.BatchSize,
		}, outbox.WithLogger(log), outbox.WithMetrics(outbox.NewMetrics(reg)))
		ready["kafka"] = producer.Ping

		g.Go(func() error {
			log.Info("outbox relay started", "topic_prefix", cfg.Kafka.TopicPrefix)
			return relay.Run(gctx)
		})
	}

	if mem, ok := idemStore.(*idempotency.MemoryStore); ok {
		g.Go(func() error {
			sweepEvery(gctx, mem, time.Minute)
			return nil
		})
	}

	router := httpapi.NewRouter(httpapi.Deps{
		Logger:   log,
		Signer:   signer,
		Metrics:  metrics.New(reg),
		Registry: reg,
		Idempotency: idempotency.New(idemStore, cfg.Idempotency.TTL,
			idempotency.WithLogger(log),
			idempotency.WithMetrics(idempotency.NewMetrics(reg)),
			idempotency.WithPendingTTL(cfg.Idempotency.PendingTTL),
		),
		TrustProxy: cfg.TrustProxy,
		OpsToken:   cfg.OpsToken,
		Ready:      ready,
		Routes: []httpapi.Registrar{
			supply.New(emit.New(bus), log),
			auditlog.New(backend.store, feed, log),
			devtools.New(signer, recorder, log, cfg.DevTools),
		},
	})

	srv := httpserver.New(cfg.Addr, router)
	g.Go(func() error {
		log.Info("starting supplydash", "addr", cfg.Addr, "environment", cfg.Environment, "dev_tools", cfg.DevTools)
		return httpserver.Serve(gctx, srv)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// idempotencyStore prefers Redis and falls back to process memory.
func idempotencyStore(ctx context.Context, cfg config.Server, log *slog.Logger) (idempotency.Store, func(), map[string]httpapi.ReadyCheck, error) {
	ready := map[string]httpapi.ReadyCheck{}
	client, err := platformredis.New(ctx, cfg.Redis)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("connect redis: %w", err)
	}
	if client == nil {
		log.Info("redis not configured, idempotency keys kept in memory")
		return idempotency.NewMemoryStore(), func() {}, ready, nil
	}
	ready["redis"] = client.Health
	closeFn := func() {
		if err := client.Close(); err != nil {
			log.Warn("failed to close redis", "error", err)
		}
	}
	return idempotency.NewRedisStore(client.Client, "supplydash:idem"), closeFn, ready, nil
}

func sweepEvery(ctx context.Context, store *idempotency.MemoryStore, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			store.Sweep()
		}
	}
}
