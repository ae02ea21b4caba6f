package services

import (
	"context"
	"errors"
	"sync"
	"testing/fstest"
	"time"

	"github.com/yashrajoria/catalog-seeder/checksum"
	apperrors "github.com/yashrajoria/catalog-seeder/errors"
	"github.com/yashrajoria/catalog-seeder/kv"
	"github.com/yashrajoria/catalog-seeder/loader"
	"github.com/yashrajoria/catalog-seeder/repository"
)

var (
	errUnavailable = apperrors.Wrap(apperrors.ErrTransientRemote, errors.New("unavailable"))
	errRejected    = apperrors.Wrap(apperrors.ErrPermanentRemote, errors.New("invalid argument"))
)

// faultyStore is a MemoryStore whose commits fail with queued errors first.
type faultyStore struct {
	*repository.MemoryStore

	mu          sync.Mutex
	upsertErrs  []error
	deleteErrs  []error
	upsertCalls int
	deleteCalls int
	batches     [][]repository.Upsert
	limit       int
}

func newFaultyStore() *faultyStore {
	return &faultyStore{MemoryStore: repository.NewMemoryStore()}
}

func (f *faultyStore) CommitUpserts(ctx context.Context, ops []repository.Upsert) error {
	f.mu.Lock()
	f.upsertCalls++
	f.batches = append(f.batches, ops)
	var err error
	if len(f.upsertErrs) > 0 {
		err, f.upsertErrs = f.upsertErrs[0], f.upsertErrs[1:]
	}
	f.mu.Unlock()
	if err != nil {
		return err
	}
	return f.MemoryStore.CommitUpserts(ctx, ops)
}

func (f *faultyStore) CommitDeletes(ctx context.Context, refs []repository.DocRef) error {
	f.mu.Lock()
	f.deleteCalls++
	var err error
	if len(f.deleteErrs) > 0 {
		err, f.deleteErrs = f.deleteErrs[0], f.deleteErrs[1:]
	}
	f.mu.Unlock()
	if err != nil {
		return err
	}
	return f.MemoryStore.CommitDeletes(ctx, refs)
}

func (f *faultyStore) MaxBatchSize() int { return f.limit }

// noSleep records requested backoffs without waiting.
type noSleep struct {
	mu    sync.Mutex
	waits []time.Duration
}

func (n *noSleep) Sleep(_ context.Context, d time.Duration) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.waits = append(n.waits, d)
	return nil
}

func seedFS(brands, categories, products string) loader.Source {
	return loader.NewFSSource(fstest.MapFS{
		"seed/brands.json":     {Data: []byte(brands)},
		"seed/categories.json": {Data: []byte(categories)},
		"seed/products.json":   {Data: []byte(products)},
	}, "seed")
}

type testEnv struct {
	store   *repository.MemoryStore
	sums    *kv.MemoryStore
	service *ImportService
}

func newTestEnv(store repository.DocumentStore, mem *repository.MemoryStore, src loader.Source) *testEnv {
	sums := kv.NewMemoryStore()
	svc := NewImportService(ImportServiceConfig{
		Store:     store,
		Source:    src,
		Checksums: checksum.Factory(sums),
		Executor:  NewBatchExecutor(store, WithSleeper((&noSleep{}).Sleep)),
	})
	return &testEnv{store: mem, sums: sums, service: svc}
}
