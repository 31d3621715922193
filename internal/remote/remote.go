// Package remote provides the client contract for the remote replicated
// store: a schemaless multi-writer tree of JSON documents addressed by
// path ("posts/{id}", "followers/{uid}"), with live snapshot subscriptions
// and an atomic counter primitive.
//
// Writes are last-write-wins at the path; there is no merge. Subscriptions
// deliver a full snapshot of a collection on every change, not a diff.
//
// Two implementations ship here: a Redis-backed client for production
// (redis.go) and an in-memory client for tests and offline development
// (memory.go).
package remote

import (
	"context"
	"encoding/json"
)

// Doc is one document in a collection snapshot.
type Doc struct {
	// Path is the full document path, e.g. "posts/abc123".
	Path string
	// Data is the raw JSON value stored at the path.
	Data json.RawMessage
}

// SnapshotFunc receives a full collection snapshot. Order is unspecified.
type SnapshotFunc func(docs []Doc)

// Client is the remote replicated store contract consumed by the sync
// engine and the social operations.
type Client interface {
	// WriteAtPath stores v as JSON at path, overwriting any existing
	// value (last write wins). Writing the same content twice is safe.
	WriteAtPath(ctx context.Context, path string, v any) error

	// DeleteAtPath removes the document at path. Idempotent.
	DeleteAtPath(ctx context.Context, path string) error

	// Subscribe registers fn for snapshots of the given collection
	// ("posts" matches every "posts/*" document). fn is called once with
	// the current snapshot and again after every change. The returned
	// function detaches the subscription and is safe to call twice.
	Subscribe(ctx context.Context, collection string, fn SnapshotFunc) (func(), error)

	// AtomicIncrement adds delta to the integer counter at path and
	// returns the new value. Missing counters start at zero.
	AtomicIncrement(ctx context.Context, path string, delta int64) (int64, error)

	// CountCollection returns the number of documents in the collection
	// using a server-side aggregate; documents are not downloaded.
	CountCollection(ctx context.Context, collection string) (int64, error)

	// ExistsAtPath reports whether a document exists at path.
	ExistsAtPath(ctx context.Context, path string) (bool, error)
}
