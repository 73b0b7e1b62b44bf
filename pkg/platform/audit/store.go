package audit

import "context"

const (
	DefaultPageSize = 50
	MaxPageSize     = 500
)

//go:generate mockgen -source=store.go -destination=mocks/audit-mocks.go -package=mocks Appender,Store

// Appender persists a single audit entry. Append is all-or-nothing.
type Appender interface {
	Append(ctx context.Context, entry Entry) error
}

// Store is an append-only audit sink. List returns entries newest first.
type Store interface {
	Appender
	List(ctx context.Context, limit, offset int) ([]Entry, error)
}

// NormalizePage clamps list pagination to sane bounds.
func NormalizePage(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = DefaultPageSize
	}
	if limit > MaxPageSize {
		limit = MaxPageSize
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
