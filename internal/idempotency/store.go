// Package idempotency replays the first response of a POST for repeated
// requests carrying the same Idempotency-Key.
package idempotency

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrInFlight means another request with the same key has not finished.
	ErrInFlight = errors.New("idempotent request in flight")
)

// Record is a stored response.
type Record struct {
	Fingerprint string `json:"fingerprint"`
	Status      int    `json:"status"`
	ContentType string `json:"content_type,omitempty"`
	Body        []byte `json:"body"`
}

// Store reserves keys and persists completed responses.
//
// Begin returns (nil, nil) when the caller now owns key and must call Complete
// or Abandon. It returns the stored record when key has already completed and
// ErrInFlight when another owner holds it.
type Store interface {
	Begin(ctx context.Context, key string, ttl time.Duration) (*Record, error)
	Complete(ctx context.Context, key string, rec Record, ttl time.Duration) error
	Abandon(ctx context.Context, key string) error
}
