package repository

import (
	"context"
	"time"
)

// Document is a field map as stored in a remote collection, without its id.
type Document map[string]interface{}

type serverTimestamp struct{}

// ServerTimestamp marks a field the store sets to its commit time.
var ServerTimestamp = serverTimestamp{}

// IsServerTimestamp reports whether v is the ServerTimestamp sentinel.
func IsServerTimestamp(v interface{}) bool {
	_, ok := v.(serverTimestamp)
	return ok
}

// Upsert writes Data to Collection/ID. Merge keeps fields not present in
// Data; otherwise the document is replaced.
type Upsert struct {
	Collection string
	ID         string
	Data       Document
	Merge      bool
}

// DocRef addresses one document.
type DocRef struct {
	Collection string
	ID         string
}

// DocumentStore is the remote document database seed data is reconciled into.
type DocumentStore interface {
	// Get returns the document and whether it exists.
	Get(ctx context.Context, collection, id string) (Document, bool, error)
	// ListIDs returns every document id in collection.
	ListIDs(ctx context.Context, collection string) ([]string, error)
	// CommitUpserts applies all ops atomically.
	CommitUpserts(ctx context.Context, ops []Upsert) error
	// CommitDeletes removes all refs atomically.
	CommitDeletes(ctx context.Context, refs []DocRef) error
}

// BatchLimiter is implemented by stores that cap operations per atomic batch.
type BatchLimiter interface {
	MaxBatchSize() int
}

// MaxBatchSize returns the store's cap, or 0 when it declares none.
func MaxBatchSize(s DocumentStore) int {
	if bl, ok := s.(BatchLimiter); ok {
		return bl.MaxBatchSize()
	}
	return 0
}

// resolveTimestamps returns a copy of doc with every ServerTimestamp replaced by stamp.
func resolveTimestamps(doc Document, stamp interface{}) Document {
	out := make(Document, len(doc))
	for k, v := range doc {
		if IsServerTimestamp(v) {
			out[k] = stamp
			continue
		}
		out[k] = v
	}
	return out
}

// Clock returns the commit time; tests replace it.
type Clock func() time.Time
