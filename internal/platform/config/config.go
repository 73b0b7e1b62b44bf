package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Audit store kinds.
const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"
	StoreSQLite   = "sqlite"
)

const devRoleSigningKey = "dev-role-signing-key-change-me"

// Server captures process level configuration.
type Server struct {
	Addr        string `yaml:"addr"`
	Environment string `yaml:"environment"`
	LogLevel    string `yaml:"log_level"`
	DevTools    bool   `yaml:"dev_tools"`
	TrustProxy  bool   `yaml:"trust_proxy"`
	OpsToken    string `yaml:"ops_token"`

	RoleSigningKey string        `yaml:"role_signing_key"`
	RoleCookieTTL  time.Duration `yaml:"role_cookie_ttl"`

	Audit       AuditConfig       `yaml:"audit"`
	Events      EventsConfig      `yaml:"events"`
	Redis       RedisConfig       `yaml:"redis"`
	Kafka       KafkaConfig       `yaml:"kafka"`
	Tracing     TracingConfig     `yaml:"tracing"`
	Idempotency IdempotencyConfig `yaml:"idempotency"`
}

type AuditConfig struct {
	Store            string        `yaml:"store"`
	DatabaseURL      string        `yaml:"database_url"`
	SQLitePath       string        `yaml:"sqlite_path"`
	Timeout          time.Duration `yaml:"timeout"`
	BreakerThreshold int           `yaml:"breaker_threshold"`
	BreakerCooldown  time.Duration `yaml:"breaker_cooldown"`
	// BreakerSuccesses is how many successful appends close an open breaker.
	BreakerSuccesses int `yaml:"breaker_successes"`
}

type EventsConfig struct {
	// DispatchConcurrency > 1 runs listeners concurrently with that limit.
	DispatchConcurrency int `yaml:"dispatch_concurrency"`
}

// RedisConfig is optional; an empty URL disables Redis.
type RedisConfig struct {
	URL          string        `yaml:"url"`
	PoolSize     int           `yaml:"pool_size"`
	MinIdleConns int           `yaml:"min_idle_conns"`
	DialTimeout  time.Duration `yaml:"dial_timeout"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

type KafkaConfig struct {
	Brokers     []string      `yaml:"brokers"`
	TopicPrefix string        `yaml:"topic_prefix"`
	PollEvery   time.Duration `yaml:"poll_every"`
	BatchSize   int           `yaml:"batch_size"`
	Partitions  int32         `yaml:"partitions"`
	Replication int16         `yaml:"replication"`
}

type TracingConfig struct {
	Endpoint    string  `yaml:"endpoint"`
	Insecure    bool    `yaml:"insecure"`
	SampleRatio float64 `yaml:"sample_ratio"`
}

type IdempotencyConfig struct {
	TTL time.Duration `yaml:"ttl"`
	// PendingTTL bounds how long an unfinished request reserves its key.
	PendingTTL time.Duration `yaml:"pending_ttl"`
}

// Enabled reports whether the outbox relay should run.
func (k KafkaConfig) Enabled() bool { return len(k.Brokers) > 0 }

func (t TracingConfig) Enabled() bool { return t.Endpoint != "" }

// IsProduction reports whether dev-only surfaces must stay disabled.
func (s Server) IsProduction() bool {
	return strings.EqualFold(s.Environment, "production")
}

// Defaults returns the configuration used when nothing is overridden.
func Defaults() Server {
	return Server{
		Addr:           ":8080",
		Environment:    "development",
		LogLevel:       "info",
		DevTools:       true,
		RoleSigningKey: devRoleSigningKey,
		RoleCookieTTL:  12 * time.Hour,
		Audit: AuditConfig{
			Store:            StoreMemory,
			SQLitePath:       "supplydash-audit.db",
			Timeout:          2 * time.Second,
			BreakerThreshold: 5,
			BreakerCooldown:  30 * time.Second,
			BreakerSuccesses: 1,
		},
		Events: EventsConfig{DispatchConcurrency: 1},
		Redis: RedisConfig{
			PoolSize:     10,
			MinIdleConns: 2,
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
		},
		Kafka: KafkaConfig{
			TopicPrefix: "supplydash.audit",
			PollEvery:   time.Second,
			BatchSize:   100,
			Partitions:  3,
			Replication: 1,
		},
		Tracing:     TracingConfig{Insecure: true, SampleRatio: 1},
		Idempotency: IdempotencyConfig{TTL: 24 * time.Hour, PendingTTL: time.Minute},
	}
}

// FromEnv builds a Server config from defaults, an optional YAML file named by
// SUPPLYDASH_CONFIG, and environment variables, in that order.
func FromEnv() (Server, error) {
	return load(os.Getenv)
}

func load(getenv func(string) string) (Server, error) {
	cfg := Defaults()

	if path := getenv("SUPPLYDASH_CONFIG"); path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return Server{}, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return Server{}, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}

	e := envReader{get: getenv}
	e.str("SUPPLYDASH_ADDR", &cfg.Addr)
	e.str("SUPPLYDASH_ENV", &cfg.Environment)
	e.str("LOG_LEVEL", &cfg.LogLevel)
	e.boolean("DEV_TOOLS", &cfg.DevTools)
	e.boolean("TRUST_PROXY", &cfg.TrustProxy)
	e.str("OPS_TOKEN", &cfg.OpsToken)
	e.str("ROLE_SIGNING_KEY", &cfg.RoleSigningKey)
	e.duration("ROLE_COOKIE_TTL", &cfg.RoleCookieTTL)

	e.str("AUDIT_STORE", &cfg.Audit.Store)
	e.str("DATABASE_URL", &cfg.Audit.DatabaseURL)
	e.str("AUDIT_SQLITE_PATH", &cfg.Audit.SQLitePath)
	e.duration("AUDIT_TIMEOUT", &cfg.Audit.Timeout)
	e.integer("AUDIT_BREAKER_THRESHOLD", &cfg.Audit.BreakerThreshold)
	e.duration("AUDIT_BREAKER_COOLDOWN", &cfg.Audit.BreakerCooldown)
	e.integer("AUDIT_BREAKER_SUCCESSES", &cfg.Audit.BreakerSuccesses)

	e.integer("EVENT_DISPATCH_CONCURRENCY", &cfg.Events.DispatchConcurrency)

	e.str("REDIS_URL", &cfg.Redis.URL)
	e.integer("REDIS_POOL_SIZE", &cfg.Redis.PoolSize)
	e.duration("IDEMPOTENCY_TTL", &cfg.Idempotency.TTL)
	e.duration("IDEMPOTENCY_PENDING_TTL", &cfg.Idempotency.PendingTTL)

	if brokers := getenv("KAFKA_BROKERS"); brokers != "" {
		cfg.Kafka.Brokers = splitList(brokers)
	}
	e.str("KAFKA_TOPIC_PREFIX", &cfg.Kafka.TopicPrefix)
	e.duration("OUTBOX_POLL_INTERVAL", &cfg.Kafka.PollEvery)
	e.integer("OUTBOX_BATCH_SIZE", &cfg.Kafka.BatchSize)

	e.str("OTEL_EXPORTER_OTLP_ENDPOINT", &cfg.Tracing.Endpoint)
	e.float("OTEL_TRACES_SAMPLER_ARG", &cfg.Tracing.SampleRatio)

	if e.err != nil {
		return Server{}, e.err
	}
	if err := cfg.Validate(); err != nil {
		return Server{}, err
	}
	return cfg, nil
}

// Validate rejects combinations the server cannot start with.
func (s Server) Validate() error {
	switch s.Audit.Store {
	case StoreMemory, StoreSQLite:
	case StorePostgres:
		if s.Audit.DatabaseURL == "" {
			return fmt.Errorf("config: DATABASE_URL is required for the postgres audit store")
		}
	default:
		return fmt.Errorf("config: unknown audit store %q", s.Audit.Store)
	}
	if len(s.RoleSigningKey) < 16 {
		return fmt.Errorf("config: role signing key must be at least 16 bytes")
	}
	if s.IsProduction() {
		if s.DevTools {
			return fmt.Errorf("config: dev tools cannot be enabled in production")
		}
		if s.RoleSigningKey == devRoleSigningKey {
			return fmt.Errorf("config: ROLE_SIGNING_KEY must be set in production")
		}
	}
	if s.Kafka.Enabled() && s.Audit.Store != StorePostgres {
		return fmt.Errorf("config: the kafka outbox relay requires the postgres audit store")
	}
	if s.Tracing.SampleRatio < 0 || s.Tracing.SampleRatio > 1 {
		return fmt.Errorf("config: sample ratio must be within [0,1]")
	}
	return nil
}

type envReader struct {
	get func(string) string
	err error
}

func (e *envReader) str(key string, dst *string) {
	if v := e.get(key); v != "" {
		*dst = v
	}
}

func (e *envReader) boolean(key string, dst *bool) {
	v := e.get(key)
	if v == "" || e.err != nil {
		return
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		e.err = fmt.Errorf("config: %s: %w", key, err)
		return
	}
	*dst = b
}

func (e *envReader) integer(key string, dst *int) {
	v := e.get(key)
	if v == "" || e.err != nil {
		return
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		e.err = fmt.Errorf("config: %s: %w", key, err)
		return
	}
	*dst = n
}

func (e *envReader) float(key string, dst *float64) {
	v := e.get(key)
	if v == "" || e.err != nil {
		return
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		e.err = fmt.Errorf("config: %s: %w", key, err)
		return
	}
	*dst = f
}

func (e *envReader) duration(key string, dst *time.Duration) {
	v := e.get(key)
	if v == "" || e.err != nil {
		return
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		e.err = fmt.Errorf("config: %s: %w", key, err)
		return
	}
	*dst = d
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
