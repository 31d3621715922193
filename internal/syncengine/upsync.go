package syncengine

import (
	"context"
	"fmt"
)

// UpsyncOnce pushes one batch of unsynced posts to the remote store.
//
// Posts are selected oldest-created-first so a backlog drains in creation
// order. Each post is written to posts/{id} (last write wins at that
// path), then recorded in the synced-marker set. Marking is per-row and
// not atomic with the remote write: a crash between the two re-sends the
// row next cycle, which the idempotent overwrite absorbs.
//
// A remote write error aborts the rest of the batch; the loop retries the
// whole selection on the next tick.
func (e *Engine) UpsyncOnce(ctx context.Context) error {
	posts, err := e.store.ListUnsynced(ctx, e.config.UpsyncBatchSize)
	if err != nil {
		return fmt.Errorf("failed to select unsynced posts: %w", err)
	}
	if len(posts) == 0 {
		return nil
	}

	sent := 0
	for _, p := range posts {
		path := postsCollection + "/" + p.ID
		if err := e.remote.WriteAtPath(ctx, path, toRecord(p)); err != nil {
			return fmt.Errorf("remote write of %s failed after %d of %d: %w",
				p.ID, sent, len(posts), err)
		}
		if err := e.store.MarkSynced(ctx, p.ID); err != nil {
			return fmt.Errorf("failed to mark %s synced: %w", p.ID, err)
		}
		sent++
	}

	e.config.Logger.Printf("Upsynced %d posts", sent)
	return nil
}
