package syncengine

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/Dantrux22/no-border-app-sub000/internal/remote"
	"github.com/Dantrux22/no-border-app-sub000/internal/store"
)

// handleSnapshot applies one full snapshot of the remote posts collection.
//
// For each record: make sure a local author row exists (creating a minimal
// stub when absent), then insert the post if its id is not already present.
// Insert-only: records for ids the device already has are skipped, so
// remote edits and deletes never propagate and the engine's own upsynced
// rows echo back harmlessly. Individual record failures are logged and do
// not stop the rest of the snapshot.
func (e *Engine) handleSnapshot(ctx context.Context, docs []remote.Doc) {
	inserted := 0
	for _, doc := range docs {
		var rec PostRecord
		if err := json.Unmarshal(doc.Data, &rec); err != nil {
			e.config.Logger.Printf("Skipping malformed record at %s: %v", doc.Path, err)
			continue
		}
		if err := rec.Validate(); err != nil {
			e.config.Logger.Printf("Skipping invalid record at %s: %v", doc.Path, err)
			continue
		}

		if err := e.ensureAuthor(ctx, rec.UserID); err != nil {
			e.config.Logger.Printf("Failed to stub author %s: %v", rec.UserID, err)
			continue
		}

		ok, err := e.store.InsertPostIfAbsent(ctx, rec.toPost())
		if err != nil {
			e.config.Logger.Printf("Failed to insert post %s: %v", rec.ID, err)
			continue
		}
		if ok {
			// Already remote by definition; mark it so upsync never
			// pushes it back.
			if err := e.store.MarkSynced(ctx, rec.ID); err != nil {
				e.config.Logger.Printf("Failed to mark %s synced: %v", rec.ID, err)
			}
			inserted++
		}
	}

	if inserted > 0 {
		e.config.Logger.Printf("Downsynced %d new posts", inserted)
	}
}

// ensureAuthor creates a minimal placeholder user for a remote author the
// device has never seen: username from a truncated id fragment, empty
// credentials. Falls back to the full id if the fragment collides.
func (e *Engine) ensureAuthor(ctx context.Context, userID string) error {
	_, err := e.store.GetUserByID(ctx, userID)
	if err == nil {
		return nil
	}
	if !errors.Is(err, store.ErrUserNotFound) {
		return err
	}

	stub := &store.User{
		ID:       userID,
		Username: "user-" + shortID(userID),
	}
	err = e.store.CreateUser(ctx, stub)
	if errors.Is(err, store.ErrUsernameInUse) {
		stub.Username = "user-" + userID
		err = e.store.CreateUser(ctx, stub)
	}
	return err
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
