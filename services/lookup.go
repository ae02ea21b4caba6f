package services

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/yashrajoria/catalog-seeder/repository"
)

// DefaultLookupConcurrency bounds concurrent point lookups per fan-out.
const DefaultLookupConcurrency = 16

type lookupResult struct {
	doc    repository.Document
	exists bool
}

// lookupAll fetches every id concurrently, at most limit in flight, and
// returns the results in the order of ids.
func lookupAll(ctx context.Context, store repository.DocumentStore, collection string, ids []string, limit int) ([]lookupResult, error) {
	results := make([]lookupResult, len(ids))
	if len(ids) == 0 {
		return results, nil
	}
	if limit < 1 {
		limit = DefaultLookupConcurrency
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for i, id := range ids {
		i, id := i, id
		g.Go(func() error {
			doc, ok, err := store.Get(gctx, collection, id)
			if err != nil {
				return fmt.Errorf("get %s/%s: %w", collection, id, err)
			}
			results[i] = lookupResult{doc: doc, exists: ok}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
