package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/yashrajoria/catalog-seeder/errors"
	"github.com/yashrajoria/catalog-seeder/kv"
	"github.com/yashrajoria/catalog-seeder/markers"
)

func ptr[T any](v T) *T { return &v }

func TestSettingsService_Apply(t *testing.T) {
	ctx := context.Background()
	svc := NewSettingsService(markers.New(kv.NewMemoryStore(), markers.DefaultValues), nil)

	st, err := svc.Apply(ctx, SettingsUpdate{Enabled: ptr(false), Overwrite: ptr(true), RequiredSeedVersion: ptr(3)})
	require.NoError(t, err)
	assert.False(t, st.Enabled)
	assert.True(t, st.Overwrite)
	assert.Equal(t, 3, st.RequiredSeedVersion)

	st, err = svc.Apply(ctx, SettingsUpdate{BumpSeedVersion: ptr(2)})
	require.NoError(t, err)
	assert.Equal(t, 5, st.RequiredSeedVersion)
	assert.False(t, st.Enabled, "untouched fields keep their value")

	st, err = svc.Apply(ctx, SettingsUpdate{BumpSeedVersion: ptr(-10)})
	require.NoError(t, err)
	assert.Equal(t, 1, st.RequiredSeedVersion)
}

func TestSettingsService_ApplyRejectsInvalid(t *testing.T) {
	ctx := context.Background()
	svc := NewSettingsService(markers.New(kv.NewMemoryStore(), markers.DefaultValues), nil)

	_, err := svc.Apply(ctx, SettingsUpdate{RequiredSeedVersion: ptr(0)})
	assert.True(t, apperrors.IsKind(err, apperrors.KindValidation))

	_, err = svc.Apply(ctx, SettingsUpdate{RequiredSeedVersion: ptr(2), BumpSeedVersion: ptr(1)})
	assert.True(t, apperrors.IsKind(err, apperrors.KindValidation))

	st, err := svc.Markers(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, st.RequiredSeedVersion)
}
