package kv

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	_, ok, err := s.Get(ctx, "a")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.Set(ctx, "a", "1"))
	v, ok, err := s.Get(ctx, "a")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "1", v)

	require.NoError(t, s.Delete(ctx, "a"))
	_, ok, _ = s.Get(ctx, "a")
	assert.False(t, ok)
}

func TestMemoryLocker_ExclusiveUntilReleaseOrExpiry(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	l := NewMemoryLocker()
	l.now = func() time.Time { return now }

	release, ok, err := l.TryLock(ctx, "seed:run:lock", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	_, ok, err = l.TryLock(ctx, "seed:run:lock", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, release(ctx))
	release2, ok, _ := l.TryLock(ctx, "seed:run:lock", time.Minute)
	require.True(t, ok)

	// a stale release must not drop the new holder's lease
	require.NoError(t, release(ctx))
	_, ok, _ = l.TryLock(ctx, "seed:run:lock", time.Minute)
	assert.False(t, ok)

	now = now.Add(2 * time.Minute)
	_, ok, _ = l.TryLock(ctx, "seed:run:lock", time.Minute)
	assert.True(t, ok)
	_ = release2
}

func TestPrefixed(t *testing.T) {
	assert.Equal(t, "catalog-seeder:seed.markers.didSeed", prefixed("catalog-seeder", "seed.markers.didSeed"))
	assert.Equal(t, "catalog-seeder:seed:run:lock", prefixed("catalog-seeder:", "seed:run:lock"))
	assert.Equal(t, "k", prefixed("", "k"))

	s := NewRedisStore(nil, "catalog-seeder:")
	assert.Equal(t, "catalog-seeder:k", s.key("k"))
}

// TestRedisStore runs against a live server when REDIS_TEST_URL is set.
func TestRedisStore(t *testing.T) {
	url := os.Getenv("REDIS_TEST_URL")
	if url == "" {
		t.Skip("REDIS_TEST_URL not set")
	}
	opts, err := redis.ParseURL(url)
	require.NoError(t, err)
	client := redis.NewClient(opts)
	defer client.Close()

	ctx := context.Background()
	s := NewRedisStore(client, "seeder-test")
	require.NoError(t, s.Set(ctx, "k", "v"))
	v, ok, err := s.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "v", v)
	require.NoError(t, s.Delete(ctx, "k"))

	l := NewRedisLocker(client, "seeder-test")
	release, ok, err := l.TryLock(ctx, "lock", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)
	_, ok, err = l.TryLock(ctx, "lock", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)
	require.NoError(t, release(ctx))
}
