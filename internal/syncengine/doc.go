// Package syncengine drives bidirectional synchronization between the
// device-local store and the remote replicated store.
//
// # Overview
//
// Two independent loops run against the same pair of stores:
//
//	Local store (SQLite)                    Remote store (document tree)
//	     posts not in synced_posts  --->    posts/{id}        (upsync)
//	     insert-if-absent           <---    posts snapshot    (downsync)
//
// Upsync is timer-driven: every tick it selects up to a fixed batch of
// local posts whose ids are not yet in the synced-marker set, oldest
// created first, writes each to its deterministic remote path, and marks
// it synced. The remote write and the local marker insert are not atomic;
// an interruption between the two re-sends the row next tick, which is
// safe because the write is an idempotent overwrite at the same path.
//
// Downsync is subscription-driven: the remote store delivers a full
// snapshot of the posts collection on every change. Each record gets a
// local placeholder author if one is missing, then an insert-if-absent.
// Replication is insert-only: remote edits and deletes of a post the
// device already has are never applied locally. The engine can see its own
// just-upsynced rows echo back through the subscription; insert-if-absent
// makes that a no-op.
//
// # Error handling
//
// Sync errors never reach a user action. A failed upsync batch is logged
// and retried on the next tick with no backoff; an unreachable remote
// store grows the local backlog without bound until connectivity returns.
//
// # Lifecycle
//
//	engine, err := syncengine.New(st, rc, idp, nil)
//	if err != nil { ... }
//	if err := engine.Start(ctx); err != nil { ... }
//	defer engine.Stop()
//
// Start runs the schema migration before anything else and fails fatally
// if it cannot complete. Stop is idempotent and leaves no dangling timers,
// subscriptions or identity listeners.
package syncengine
