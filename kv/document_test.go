package kv

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yashrajoria/catalog-seeder/repository"
)

func TestDocumentStore(t *testing.T) {
	ctx := context.Background()
	remote := repository.NewMemoryStore()
	s := NewDocumentStore(remote, "")
	assert.Equal(t, DefaultStateCollection, s.Collection())

	_, ok, err := s.Get(ctx, "seed.markers.didSeed")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.Set(ctx, "seed.markers.didSeed", "true"))
	assert.Equal(t, 1, remote.Len(DefaultStateCollection))

	// a second handle on the same remote store sees the value
	v, ok, err := NewDocumentStore(remote, "").Get(ctx, "seed.markers.didSeed")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "true", v)

	require.NoError(t, s.Set(ctx, "seed.markers.didSeed", "false"))
	v, _, _ = s.Get(ctx, "seed.markers.didSeed")
	assert.Equal(t, "false", v)

	require.NoError(t, s.Delete(ctx, "seed.markers.didSeed"))
	_, ok, _ = s.Get(ctx, "seed.markers.didSeed")
	assert.False(t, ok)
	assert.Equal(t, 0, remote.Len(DefaultStateCollection))
}

func TestDocumentStore_IgnoresNonStringValues(t *testing.T) {
	remote := repository.NewMemoryStore()
	remote.Put(DefaultStateCollection, "k", repository.Document{"value": 3})

	_, ok, err := NewDocumentStore(remote, "").Get(context.Background(), "k")
	require.NoError(t, err)
	assert.False(t, ok)
}
