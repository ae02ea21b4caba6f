package checksum

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yashrajoria/catalog-seeder/kv"
)

func TestStore_NamespacesAreIsolated(t *testing.T) {
	ctx := context.Background()
	backend := kv.NewMemoryStore()
	v1 := New(backend, "")
	v2 := New(backend, "seed.v2")

	assert.Equal(t, DefaultNamespace, v1.Namespace())

	_, ok, err := v1.Get(ctx, "brands")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, v1.Set(ctx, "brands", "abc"))
	got, ok, err := v1.Get(ctx, "brands")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "abc", got)

	_, ok, _ = v2.Get(ctx, "brands")
	assert.False(t, ok)

	assert.ElementsMatch(t, []string{"seed.checksum.seed.v1.brands"}, backend.Keys())

	require.NoError(t, v1.Clear(ctx, "brands"))
	_, ok, _ = v1.Get(ctx, "brands")
	assert.False(t, ok)
}

func TestFactory(t *testing.T) {
	backend := kv.NewMemoryStore()
	newStore := Factory(backend)
	assert.Equal(t, "x", newStore("x").Namespace())
}
