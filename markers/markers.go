package markers

import (
	"context"
	"fmt"
	"strconv"

	"github.com/yashrajoria/catalog-seeder/kv"
	"github.com/yashrajoria/catalog-seeder/models"
)

const (
	keyEnabled             = "seed.markers.enabled"
	keyOverwrite           = "seed.markers.overwrite"
	keyDidSeed             = "seed.markers.didSeed"
	keySeedVersion         = "seed.markers.seedVersion"
	keyRequiredSeedVersion = "seed.markers.requiredSeedVersion"
)

// Defaults are returned for markers that were never written.
type Defaults struct {
	Enabled             bool
	Overwrite           bool
	RequiredSeedVersion int
}

var DefaultValues = Defaults{Enabled: true, Overwrite: false, RequiredSeedVersion: 1}

// Store persists the run markers that decide whether a seed run is due.
type Store struct {
	kv       kv.Store
	defaults Defaults
}

func New(backend kv.Store, defaults Defaults) *Store {
	if defaults.RequiredSeedVersion < 1 {
		defaults.RequiredSeedVersion = 1
	}
	return &Store{kv: backend, defaults: defaults}
}

func (s *Store) getBool(ctx context.Context, key string, def bool) (bool, error) {
	v, ok, err := s.kv.Get(ctx, key)
	if err != nil {
		return false, fmt.Errorf("read marker %s: %w", key, err)
	}
	if !ok {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def, nil
	}
	return b, nil
}

func (s *Store) getInt(ctx context.Context, key string, def int) (int, error) {
	v, ok, err := s.kv.Get(ctx, key)
	if err != nil {
		return 0, fmt.Errorf("read marker %s: %w", key, err)
	}
	if !ok {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def, nil
	}
	return n, nil
}

func (s *Store) setBool(ctx context.Context, key string, v bool) error {
	if err := s.kv.Set(ctx, key, strconv.FormatBool(v)); err != nil {
		return fmt.Errorf("write marker %s: %w", key, err)
	}
	return nil
}

func (s *Store) setInt(ctx context.Context, key string, v int) error {
	if err := s.kv.Set(ctx, key, strconv.Itoa(v)); err != nil {
		return fmt.Errorf("write marker %s: %w", key, err)
	}
	return nil
}

func (s *Store) Enabled(ctx context.Context) (bool, error) {
	return s.getBool(ctx, keyEnabled, s.defaults.Enabled)
}

func (s *Store) SetEnabled(ctx context.Context, v bool) error {
	return s.setBool(ctx, keyEnabled, v)
}

func (s *Store) Overwrite(ctx context.Context) (bool, error) {
	return s.getBool(ctx, keyOverwrite, s.defaults.Overwrite)
}

func (s *Store) SetOverwrite(ctx context.Context, v bool) error {
	return s.setBool(ctx, keyOverwrite, v)
}

func (s *Store) DidSeed(ctx context.Context) (bool, error) {
	return s.getBool(ctx, keyDidSeed, false)
}

// DidRunOnce is a read-only view of DidSeed.
func (s *Store) DidRunOnce(ctx context.Context) (bool, error) {
	return s.DidSeed(ctx)
}

func (s *Store) SeedVersion(ctx context.Context) (int, error) {
	return s.getInt(ctx, keySeedVersion, 0)
}

func (s *Store) RequiredSeedVersion(ctx context.Context) (int, error) {
	return s.getInt(ctx, keyRequiredSeedVersion, s.defaults.RequiredSeedVersion)
}

// SetRequiredSeedVersion stores v, clamped to at least 1.
func (s *Store) SetRequiredSeedVersion(ctx context.Context, v int) error {
	if v < 1 {
		v = 1
	}
	return s.setInt(ctx, keyRequiredSeedVersion, v)
}

// BumpRequiredSeedVersion adds delta to the required version and returns the new value.
func (s *Store) BumpRequiredSeedVersion(ctx context.Context, delta int) (int, error) {
	cur, err := s.RequiredSeedVersion(ctx)
	if err != nil {
		return 0, err
	}
	next := cur + delta
	if next < 1 {
		next = 1
	}
	if err := s.setInt(ctx, keyRequiredSeedVersion, next); err != nil {
		return 0, err
	}
	return next, nil
}

// MarkSeeded records a successful (or no-op) run at the given version.
func (s *Store) MarkSeeded(ctx context.Context, version int) error {
	if err := s.setBool(ctx, keyDidSeed, true); err != nil {
		return err
	}
	return s.setInt(ctx, keySeedVersion, version)
}

// Reset clears the seeded flag so the next run is due again.
func (s *Store) Reset(ctx context.Context) error {
	if err := s.kv.Delete(ctx, keyDidSeed); err != nil {
		return fmt.Errorf("reset markers: %w", err)
	}
	return nil
}

// State reads every marker at once.
func (s *Store) State(ctx context.Context) (models.MarkerState, error) {
	var st models.MarkerState
	var err error
	if st.Enabled, err = s.Enabled(ctx); err != nil {
		return st, err
	}
	if st.Overwrite, err = s.Overwrite(ctx); err != nil {
		return st, err
	}
	if st.DidSeed, err = s.DidSeed(ctx); err != nil {
		return st, err
	}
	st.DidRunOnce = st.DidSeed
	if st.SeedVersion, err = s.SeedVersion(ctx); err != nil {
		return st, err
	}
	if st.RequiredSeedVersion, err = s.RequiredSeedVersion(ctx); err != nil {
		return st, err
	}
	return st, nil
}
