package kv

import (
	"context"
	"fmt"

	"github.com/yashrajoria/catalog-seeder/repository"
)

// DefaultStateCollection holds seeder state when it lives in the remote store.
const DefaultStateCollection = "seed_state"

// DocumentStore keeps each key as a one-field document in a collection of
// the remote store, so markers and checksums outlive the process and sit
// next to the data they describe.
type DocumentStore struct {
	store      repository.DocumentStore
	collection string
}

func NewDocumentStore(store repository.DocumentStore, collection string) *DocumentStore {
	if collection == "" {
		collection = DefaultStateCollection
	}
	return &DocumentStore{store: store, collection: collection}
}

// Collection is the collection entries are written to.
func (d *DocumentStore) Collection() string { return d.collection }

func (d *DocumentStore) Get(ctx context.Context, key string) (string, bool, error) {
	doc, ok, err := d.store.Get(ctx, d.collection, key)
	if err != nil {
		return "", false, fmt.Errorf("state get %s: %w", key, err)
	}
	if !ok {
		return "", false, nil
	}
	v, ok := doc["value"].(string)
	return v, ok, nil
}

func (d *DocumentStore) Set(ctx context.Context, key, value string) error {
	err := d.store.CommitUpserts(ctx, []repository.Upsert{{
		Collection: d.collection,
		ID:         key,
		Data: repository.Document{
			"value":     value,
			"updatedAt": repository.ServerTimestamp,
		},
	}})
	if err != nil {
		return fmt.Errorf("state set %s: %w", key, err)
	}
	return nil
}

func (d *DocumentStore) Delete(ctx context.Context, key string) error {
	err := d.store.CommitDeletes(ctx, []repository.DocRef{{Collection: d.collection, ID: key}})
	if err != nil {
		return fmt.Errorf("state delete %s: %w", key, err)
	}
	return nil
}
