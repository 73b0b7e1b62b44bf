package idempotency

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMiniredisStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisStore(client, "test"), mr
}

func TestRedisStore_Lifecycle(t *testing.T) {
	ctx := context.Background()
	store, mr := newMiniredisStore(t)

	rec, err := store.Begin(ctx, "k1", time.Minute)
	require.NoError(t, err)
	assert.Nil(t, rec)
	assert.True(t, mr.Exists("test:k1"))

	_, err = store.Begin(ctx, "k1", time.Minute)
	assert.ErrorIs(t, err, ErrInFlight)

	want := Record{Fingerprint: "fp", Status: 202, ContentType: "application/json", Body: []byte(`{"ok":true}`)}
	require.NoError(t, store.Complete(ctx, "k1", want, time.Minute))

	got, err := store.Begin(ctx, "k1", time.Minute)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, want, *got)
}

func TestRedisStore_AbandonReleasesPendingOnly(t *testing.T) {
	ctx := context.Background()
	store, mr := newMiniredisStore(t)

	_, err := store.Begin(ctx, "pending", time.Minute)
	require.NoError(t, err)
	require.NoError(t, store.Abandon(ctx, "pending"))
	assert.False(t, mr.Exists("test:pending"))

	_, err = store.Begin(ctx, "done", time.Minute)
	require.NoError(t, err)
	require.NoError(t, store.Complete(ctx, "done", Record{Status: 200}, time.Minute))
	require.NoError(t, store.Abandon(ctx, "done"))
	assert.True(t, mr.Exists("test:done"))
}

func TestRedisStore_TTLExpiry(t *testing.T) {
	ctx := context.Background()
	store, mr := newMiniredisStore(t)

	_, err := store.Begin(ctx, "k", time.Second)
	require.NoError(t, err)
	mr.FastForward(2 * time.Second)

	rec, err := store.Begin(ctx, "k", time.Second)
	require.NoError(t, err)
	assert.Nil(t, rec)
}

func TestRedisStore_UnavailableReturnsError(t *testing.T) {
	store, mr := newMiniredisStore(t)
	mr.Close()

	_, err := store.Begin(context.Background(), "k", time.Minute)
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrInFlight)
}

func TestMemoryStore_Lifecycle(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	store := NewMemoryStore()
	store.now = func() time.Time { return now }

	rec, err := store.Begin(ctx, "k", time.Minute)
	require.NoError(t, err)
	assert.Nil(t, rec)

	_, err = store.Begin(ctx, "k", time.Minute)
	assert.ErrorIs(t, err, ErrInFlight)

	require.NoError(t, store.Complete(ctx, "k", Record{Status: 201, Body: []byte("x")}, time.Minute))
	rec, err = store.Begin(ctx, "k", time.Minute)
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, 201, rec.Status)

	now = now.Add(2 * time.Minute)
	store.Sweep()
	rec, err = store.Begin(ctx, "k", time.Minute)
	require.NoError(t, err)
	assert.Nil(t, rec)
}
