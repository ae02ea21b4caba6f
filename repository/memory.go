package repository

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// MemoryStats counts calls made against a MemoryStore.
type MemoryStats struct {
	Gets          int64
	Lists         int64
	UpsertCommits int64
	DeleteCommits int64
}

// MemoryStore is an in-process DocumentStore.
type MemoryStore struct {
	mu          sync.RWMutex
	collections map[string]map[string]Document
	now         Clock

	gets, lists, upserts, deletes atomic.Int64
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		collections: make(map[string]map[string]Document),
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// WithClock sets the time used to resolve ServerTimestamp.
func (m *MemoryStore) WithClock(now Clock) *MemoryStore {
	m.now = now
	return m
}

func copyDoc(d Document) Document {
	out := make(Document, len(d))
	for k, v := range d {
		out[k] = v
	}
	return out
}

func (m *MemoryStore) Get(ctx context.Context, collection, id string) (Document, bool, error) {
	m.gets.Add(1)
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	doc, ok := m.collections[collection][id]
	if !ok {
		return nil, false, nil
	}
	return copyDoc(doc), true, nil
}

func (m *MemoryStore) ListIDs(ctx context.Context, collection string) ([]string, error) {
	m.lists.Add(1)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([]string, 0, len(m.collections[collection]))
	for id := range m.collections[collection] {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

func (m *MemoryStore) CommitUpserts(ctx context.Context, ops []Upsert) error {
	m.upserts.Add(1)
	if err := ctx.Err(); err != nil {
		return err
	}
	stamp := m.now()

	m.mu.Lock()
	defer m.mu.Unlock()
	for _, op := range ops {
		coll, ok := m.collections[op.Collection]
		if !ok {
			coll = make(map[string]Document)
			m.collections[op.Collection] = coll
		}
		data := resolveTimestamps(op.Data, stamp)
		if existing, ok := coll[op.ID]; ok && op.Merge {
			merged := copyDoc(existing)
			for k, v := range data {
				merged[k] = v
			}
			coll[op.ID] = merged
			continue
		}
		coll[op.ID] = data
	}
	return nil
}

func (m *MemoryStore) CommitDeletes(ctx context.Context, refs []DocRef) error {
	m.deletes.Add(1)
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, ref := range refs {
		delete(m.collections[ref.Collection], ref.ID)
	}
	return nil
}

// Put seeds a document directly, bypassing stats and timestamps.
func (m *MemoryStore) Put(collection, id string, doc Document) {
	m.mu.Lock()
	defer m.mu.Unlock()
	coll, ok := m.collections[collection]
	if !ok {
		coll = make(map[string]Document)
		m.collections[collection] = coll
	}
	coll[id] = copyDoc(doc)
}

// Len returns the number of documents in collection.
func (m *MemoryStore) Len(collection string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.collections[collection])
}

func (m *MemoryStore) Stats() MemoryStats {
	return MemoryStats{
		Gets:          m.gets.Load(),
		Lists:         m.lists.Load(),
		UpsertCommits: m.upserts.Load(),
		DeleteCommits: m.deletes.Load(),
	}
}

// ResetStats zeroes the call counters.
func (m *MemoryStore) ResetStats() {
	m.gets.Store(0)
	m.lists.Store(0)
	m.upserts.Store(0)
	m.deletes.Store(0)
}
