package outbox

import (
	"context"
	"database/sql"

	txcontext "supplydash/pkg/platform/tx"
)

// Source hands batches of unpublished records to fn. Records are marked
// published only when fn succeeds; otherwise they stay pending for the next
// poll.
type Source interface {
	Process(ctx context.Context, limit int, fn func(ctx context.Context, records []Record) error) (int, error)
}

// PostgresSource claims rows with FOR UPDATE SKIP LOCKED so several relays can
// run against one database.
type PostgresSource struct {
	db   *sql.DB
	repo *Repository
}

func NewPostgresSource(db *sql.DB) *PostgresSource {
	return &PostgresSource{db: db, repo: NewRepository()}
}

func (s *PostgresSource) Process(ctx context.Context, limit int, fn func(ctx context.Context, records []Record) error) (int, error) {
	var n int
	err := txcontext.Run(ctx, s.db, func(ctx context.Context, tx *sql.Tx) error {
		records, err := s.repo.FetchUnpublished(ctx, tx, limit)
		if err != nil {
			return err
		}
		if len(records) == 0 {
			return nil
		}
		if err := fn(ctx, records); err != nil {
			return err
		}
		ids := make([]string, 0, len(records))
		for _, r := range records {
			ids = append(ids, r.ID)
		}
		if err := s.repo.MarkPublished(ctx, tx, ids); err != nil {
			return err
		}
		n = len(records)
		return nil
	})
	if err != nil {
		return 0, err
	}
	return n, nil
}

// Pending reports how many rows await publishing.
func (s *PostgresSource) Pending(ctx context.Context) (int64, error) {
	return s.repo.Pending(ctx, s.db)
}
