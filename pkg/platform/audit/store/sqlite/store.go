// Package sqlite is a file-backed audit store for single-node development.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	audit "supplydash/pkg/platform/audit"
	"supplydash/pkg/platform/sentinel"
)

type Store struct {
	db  *sql.DB
	now func() time.Time
}

// Open opens (or creates) the database at path and applies the schema.
func Open(ctx context.Context, path string) (*Store, error) {
	db, err := sql.Open("sqlite", path+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// A single writer keeps id assignment and WAL mode simple.
	db.SetMaxOpenConns(1)
	if err := createSchema(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{db: db, now: time.Now}, nil
}

func createSchema(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS audit_log (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		ts TEXT NOT NULL,
		actor TEXT NOT NULL,
		action TEXT NOT NULL,
		category TEXT NOT NULL,
		payload TEXT NOT NULL,
		reason TEXT
	);`)
	if err != nil {
		return fmt.Errorf("create sqlite schema: %w", err)
	}
	return nil
}

func (s *Store) Append(ctx context.Context, entry audit.Entry) error {
	if err := entry.Validate(); err != nil {
		return fmt.Errorf("%w: %w", sentinel.ErrInvalidInput, err)
	}
	entry = entry.Normalize(s.now())

	var reason sql.NullString
	if entry.Reason != nil {
		reason = sql.NullString{String: *entry.Reason, Valid: true}
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO audit_log(ts, actor, action, category, payload, reason) VALUES (?, ?, ?, ?, ?, ?)`,
		entry.Timestamp.Format(time.RFC3339Nano),
		entry.Actor,
		entry.Action,
		string(entry.Category),
		string(entry.Payload),
		reason,
	)
	if err != nil {
		return fmt.Errorf("insert audit entry: %w", err)
	}
	return nil
}

func (s *Store) List(ctx context.Context, limit, offset int) ([]audit.Entry, error) {
	limit, offset = audit.NormalizePage(limit, offset)
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, ts, actor, action, category, payload, reason FROM audit_log ORDER BY id DESC LIMIT ? OFFSET ?`,
		limit, offset)
	if err != nil {
		return nil, fmt.Errorf("query audit entries: %w", err)
	}
	defer rows.Close()

	out := []audit.Entry{}
	for rows.Next() {
		var (
			e        audit.Entry
			ts       string
			category string
			payload  string
			reason   sql.NullString
		)
		if err := rows.Scan(&e.ID, &ts, &e.Actor, &e.Action, &category, &payload, &reason); err != nil {
			return nil, fmt.Errorf("scan audit entry: %w", err)
		}
		e.Timestamp, err = time.Parse(time.RFC3339Nano, ts)
		if err != nil {
			return nil, fmt.Errorf("parse audit timestamp %q: %w", ts, err)
		}
		e.Category = audit.Category(category)
		e.Payload = json.RawMessage(payload)
		if reason.Valid {
			r := reason.String
			e.Reason = &r
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit entries: %w", err)
	}
	return out, nil
}

func (s *Store) Close() error { return s.db.Close() }
