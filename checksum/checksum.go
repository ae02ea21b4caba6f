package checksum

import (
	"context"
	"fmt"

	"github.com/yashrajoria/catalog-seeder/kv"
)

// DefaultNamespace scopes checksums for the current seed data set.
const DefaultNamespace = "seed.v1"

const keyPrefix = "seed.checksum"

// Store maps a section key to the digest of the last source that was written
// for it, within one namespace.
type Store struct {
	kv        kv.Store
	namespace string
}

// New returns the checksum store for namespace, falling back to DefaultNamespace.
func New(backend kv.Store, namespace string) *Store {
	if namespace == "" {
		namespace = DefaultNamespace
	}
	return &Store{kv: backend, namespace: namespace}
}

// Factory builds namespaced stores over one backend.
func Factory(backend kv.Store) func(namespace string) *Store {
	return func(namespace string) *Store {
		return New(backend, namespace)
	}
}

func (s *Store) Namespace() string { return s.namespace }

func (s *Store) key(section string) string {
	return fmt.Sprintf("%s.%s.%s", keyPrefix, s.namespace, section)
}

// Get returns the stored digest; ok is false if none was ever recorded.
func (s *Store) Get(ctx context.Context, section string) (string, bool, error) {
	v, ok, err := s.kv.Get(ctx, s.key(section))
	if err != nil {
		return "", false, fmt.Errorf("get checksum %s: %w", section, err)
	}
	return v, ok, nil
}

func (s *Store) Set(ctx context.Context, section, digest string) error {
	if err := s.kv.Set(ctx, s.key(section), digest); err != nil {
		return fmt.Errorf("set checksum %s: %w", section, err)
	}
	return nil
}

func (s *Store) Clear(ctx context.Context, section string) error {
	if err := s.kv.Delete(ctx, s.key(section)); err != nil {
		return fmt.Errorf("clear checksum %s: %w", section, err)
	}
	return nil
}
