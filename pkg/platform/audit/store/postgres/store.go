package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"go.opentelemetry.io/otel/propagation"

	audit "supplydash/pkg/platform/audit"
	"supplydash/pkg/platform/sentinel"
	txcontext "supplydash/pkg/platform/tx"
)

// Schema creates the audit log and its outbox. Both are append-only from the
// application's point of view; the relay only sets outbox.published_at.
const Schema = `
CREATE TABLE IF NOT EXISTS audit_log (
	id        BIGSERIAL PRIMARY KEY,
	ts        TIMESTAMPTZ NOT NULL,
	actor     TEXT NOT NULL,
	action    TEXT NOT NULL,
	category  TEXT NOT NULL,
	payload   JSONB NOT NULL,
	reason    TEXT
);
CREATE INDEX IF NOT EXISTS audit_log_action_idx ON audit_log (action, id DESC);

CREATE TABLE IF NOT EXISTS audit_outbox (
	id             UUID PRIMARY KEY,
	entry_id       BIGINT NOT NULL REFERENCES audit_log (id),
	aggregate_type TEXT NOT NULL,
	category       TEXT NOT NULL,
	event_type     TEXT NOT NULL,
	payload        JSONB NOT NULL,
	traceparent    TEXT NOT NULL DEFAULT '',
	tracestate     TEXT NOT NULL DEFAULT '',
	created_at     TIMESTAMPTZ NOT NULL DEFAULT now(),
	published_at   TIMESTAMPTZ
);
CREATE INDEX IF NOT EXISTS audit_outbox_unpublished_idx ON audit_outbox (created_at) WHERE published_at IS NULL;
`

// Store implements audit.Store on PostgreSQL. With the outbox enabled every
// appended entry is also written to audit_outbox in the same transaction so
// the relay can publish it to Kafka.
type Store struct {
	db     *sql.DB
	outbox bool
	now    func() time.Time
}

type Option func(*Store)

// WithOutbox enables the transactional outbox row per append.
func WithOutbox(enabled bool) Option {
	return func(s *Store) {
		s.outbox = enabled
	}
}

func New(db *sql.DB, opts ...Option) *Store {
	s := &Store{db: db, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Migrate applies Schema. It is idempotent.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("migrate audit schema: %w", err)
	}
	return nil
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *Store) execer(ctx context.Context) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

// Append inserts the entry, and its outbox row when enabled, atomically.
func (s *Store) Append(ctx context.Context, entry audit.Entry) error {
	if err := entry.Validate(); err != nil {
		return fmt.Errorf("%w: %w", sentinel.ErrInvalidInput, err)
	}
	entry = entry.Normalize(s.now())

	if !s.outbox {
		_, err := s.insertEntry(ctx, s.execer(ctx), entry)
		return err
	}

	return txcontext.Run(ctx, s.db, func(ctx context.Context, tx *sql.Tx) error {
		id, err := s.insertEntry(ctx, tx, entry)
		if err != nil {
			return err
		}
		entry.ID = id
		return s.insertOutbox(ctx, tx, entry)
	})
}

func (s *Store) insertEntry(ctx context.Context, exec dbExecutor, entry audit.Entry) (int64, error) {
	query := `
		INSERT INTO audit_log (ts, actor, action, category, payload, reason)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`
	var id int64
	err := exec.QueryRowContext(ctx, query,
		entry.Timestamp,
		entry.Actor,
		entry.Action,
		string(entry.Category),
		[]byte(entry.Payload),
		nullString(entry.Reason),
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert audit entry: %w", err)
	}
	return id, nil
}

func (s *Store) insertOutbox(ctx context.Context, exec dbExecutor, entry audit.Entry) error {
	payload, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal outbox payload: %w", err)
	}
	carrier := propagation.MapCarrier{}
	propagation.TraceContext{}.Inject(ctx, carrier)

	query := `
		INSERT INTO audit_outbox (id, entry_id, aggregate_type, category, event_type, payload, traceparent, tracestate, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err = exec.ExecContext(ctx, query,
		uuid.New(),
		entry.ID,
		"audit",
		string(entry.Category),
		entry.Action,
		payload,
		carrier.Get("traceparent"),
		carrier.Get("tracestate"),
		s.now(),
	)
	if err != nil {
		return fmt.Errorf("insert outbox entry: %w", err)
	}
	return nil
}

const selectColumns = `SELECT id, ts, actor, action, category, payload, reason FROM audit_log`

// List returns entries ordered by id descending.
func (s *Store) List(ctx context.Context, limit, offset int) ([]audit.Entry, error) {
	limit, offset = audit.NormalizePage(limit, offset)
	rows, err := s.db.QueryContext(ctx, selectColumns+`
		ORDER BY id DESC
		LIMIT $1 OFFSET $2
	`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("query audit entries: %w", err)
	}
	defer rows.Close()
	return scanEntries(rows)
}

// ListByActions returns entries whose action is one of actions, newest first.
// Duplicate actions are ignored; an empty set yields no entries.
func (s *Store) ListByActions(ctx context.Context, actions []string, limit, offset int) ([]audit.Entry, error) {
	actions = dedupe(actions)
	if len(actions) == 0 {
		return []audit.Entry{}, nil
	}
	limit, offset = audit.NormalizePage(limit, offset)
	rows, err := s.db.QueryContext(ctx, selectColumns+`
		WHERE action = ANY($1)
		ORDER BY id DESC
		LIMIT $2 OFFSET $3
	`, pq.Array(actions), limit, offset)
	if err != nil {
		return nil, fmt.Errorf("query audit entries by action: %w", err)
	}
	defer rows.Close()
	return scanEntries(rows)
}

// Get returns a single entry by id.
func (s *Store) Get(ctx context.Context, id int64) (audit.Entry, error) {
	rows, err := s.db.QueryContext(ctx, selectColumns+` WHERE id = $1`, id)
	if err != nil {
		return audit.Entry{}, fmt.Errorf("query audit entry: %w", err)
	}
	defer rows.Close()
	entries, err := scanEntries(rows)
	if err != nil {
		return audit.Entry{}, err
	}
	if len(entries) == 0 {
		return audit.Entry{}, sentinel.ErrNotFound
	}
	return entries[0], nil
}

func scanEntries(rows *sql.Rows) ([]audit.Entry, error) {
	entries := []audit.Entry{}
	for rows.Next() {
		var (
			e        audit.Entry
			category string
			payload  []byte
			reason   sql.NullString
		)
		if err := rows.Scan(&e.ID, &e.Timestamp, &e.Actor, &e.Action, &category, &payload, &reason); err != nil {
			return nil, fmt.Errorf("scan audit entry: %w", err)
		}
		e.Category = audit.Category(category)
		e.Payload = json.RawMessage(payload)
		e.Timestamp = e.Timestamp.UTC()
		if reason.Valid {
			r := reason.String
			e.Reason = &r
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit entries: %w", err)
	}
	return entries, nil
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func dedupe(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
