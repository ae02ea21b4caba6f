package kv

import (
	"context"
	"time"
)

// Store is a flat string key-value store for markers and checksums.
type Store interface {
	// Get returns the value and whether the key exists.
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
}

// ReleaseFunc gives up a held lease.
type ReleaseFunc func(ctx context.Context) error

// Locker hands out exclusive, expiring leases.
type Locker interface {
	// TryLock returns ok=false without error when the lease is held elsewhere.
	TryLock(ctx context.Context, key string, ttl time.Duration) (release ReleaseFunc, ok bool, err error)
}
