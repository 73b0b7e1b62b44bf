package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	audit "supplydash/pkg/platform/audit"
	"supplydash/pkg/platform/sentinel"
)

// InMemoryStore is an append-only audit store backed by a slice. IDs start at
// 1 and strictly increase in append order.
type InMemoryStore struct {
	mu      sync.RWMutex
	entries []audit.Entry
	nextID  int64
	now     func() time.Time
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{nextID: 1, now: time.Now}
}

func (s *InMemoryStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = nil
	s.nextID = 1
}

func (s *InMemoryStore) Append(ctx context.Context, entry audit.Entry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := entry.Validate(); err != nil {
		return fmt.Errorf("%w: %w", sentinel.ErrInvalidInput, err)
	}
	entry = entry.Normalize(s.now())

	s.mu.Lock()
	defer s.mu.Unlock()
	entry.ID = s.nextID
	s.nextID++
	entry.Payload = append([]byte(nil), entry.Payload...)
	s.entries = append(s.entries, entry)
	return nil
}

// List returns entries ordered by ID descending.
func (s *InMemoryStore) List(_ context.Context, limit, offset int) ([]audit.Entry, error) {
	limit, offset = audit.NormalizePage(limit, offset)

	s.mu.RLock()
	defer s.mu.RUnlock()

	total := len(s.entries)
	if offset >= total {
		return []audit.Entry{}, nil
	}
	out := make([]audit.Entry, 0, min(limit, total-offset))
	for i := total - 1 - offset; i >= 0 && len(out) < limit; i-- {
		out = append(out, s.entries[i])
	}
	return out, nil
}

// ListAll returns every entry newest first.
func (s *InMemoryStore) ListAll(_ context.Context) ([]audit.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]audit.Entry, len(s.entries))
	for i, e := range s.entries {
		out[len(s.entries)-1-i] = e
	}
	return out, nil
}

func (s *InMemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}
