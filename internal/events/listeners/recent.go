package listeners

import (
	"context"
	"sync"
	"time"

	"supplydash/internal/events"
)

// Activity is one entry of the recent activity feed.
type Activity struct {
	Event   events.Name    `json:"event"`
	Payload events.Payload `json:"payload"`
	At      time.Time      `json:"at"`
}

// RecentActivity keeps the last N domain events in a bounded ring buffer for
// the dashboard feed. When full the oldest entry is dropped.
type RecentActivity struct {
	mu       sync.Mutex
	items    []Activity
	head     int
	count    int
	capacity int
	dropped  int64
	now      func() time.Time
}

func NewRecentActivity(capacity int) *RecentActivity {
	if capacity <= 0 {
		capacity = 100
	}
	return &RecentActivity{
		items:    make([]Activity, capacity),
		capacity: capacity,
		now:      time.Now,
	}
}

func (r *RecentActivity) Register(bus *events.Bus) (unsubscribe func()) {
	return bus.SubscribeAll(r.Handle)
}

func (r *RecentActivity) Handle(_ context.Context, name events.Name, payload events.Payload) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.count == r.capacity {
		r.dropped++
	} else {
		r.count++
	}
	r.items[r.head] = Activity{Event: name, Payload: payload, At: r.now().UTC()}
	r.head = (r.head + 1) % r.capacity
	return nil
}

// Snapshot returns up to limit entries, newest first.
func (r *RecentActivity) Snapshot(limit int) []Activity {
	r.mu.Lock()
	defer r.mu.Unlock()

	if limit <= 0 || limit > r.count {
		limit = r.count
	}
	out := make([]Activity, 0, limit)
	for i := 1; i <= limit; i++ {
		idx := (r.head - i + r.capacity) % r.capacity
		out = append(out, r.items[idx])
	}
	return out
}

// Dropped returns how many entries were evicted to make room.
func (r *RecentActivity) Dropped() int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.dropped
}
