// Package social implements the toggle-style mutation operations of the
// data core: like, save, repost and follow.
//
// Each operation is a strict toggle: check current membership, then delete
// or insert. The returned count is always a fresh aggregate, never a
// client-maintained counter, so concurrent togglers converge on the right
// number. Toggles are not atomic test-and-set across the whole
// read-check-write sequence; the primary key on the join row is what
// collapses a duplicate-insert race.
package social

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"

	"github.com/google/uuid"

	"github.com/Dantrux22/no-border-app-sub000/internal/remote"
	"github.com/Dantrux22/no-border-app-sub000/internal/store"
)

// followersCollection holds one presence document per follower of the root
// entity; cardinality is the follower count.
const followersCollection = "followers"

// followerCounterPath is a best-effort mirror counter bumped on every
// follow/unfollow. The authoritative count is CountCollection, not this.
const followerCounterPath = "counters/followers"

// Toggle is the result of a toggle operation.
type Toggle struct {
	// NewState is the membership after the toggle: true means now
	// liked/saved/reposted/following.
	NewState bool
	// Count is the authoritative count after the toggle, obtained by a
	// fresh aggregate query.
	Count int64
}

// Service runs the social mutations against the local store; follow state
// lives in the remote replicated store.
type Service struct {
	store  *store.Store
	remote remote.Client
	logger *log.Logger
}

// New creates a social service. remote may be nil when follow is unused
// (every other toggle is local-only). If logger is nil, a default logger
// writing to stderr is used.
func New(st *store.Store, rc remote.Client, logger *log.Logger) *Service {
	if logger == nil {
		logger = log.New(os.Stderr, "[social] ", log.LstdFlags)
	}
	return &Service{store: st, remote: rc, logger: logger}
}

// ToggleLike flips the (userID, postID) like row and returns the fresh
// like count of the post.
func (s *Service) ToggleLike(ctx context.Context, userID, postID string) (Toggle, error) {
	liked, err := s.store.HasLike(ctx, userID, postID)
	if err != nil {
		return Toggle{}, err
	}

	if liked {
		err = s.store.DeleteLike(ctx, userID, postID)
	} else {
		err = s.store.InsertLike(ctx, userID, postID)
	}
	if err != nil {
		return Toggle{}, err
	}

	count, err := s.store.CountLikes(ctx, postID)
	if err != nil {
		return Toggle{}, err
	}
	return Toggle{NewState: !liked, Count: count}, nil
}

// ToggleSave flips the (userID, postID) saved-post row and returns the
// fresh save count of the post.
func (s *Service) ToggleSave(ctx context.Context, userID, postID string) (Toggle, error) {
	saved, err := s.store.HasSave(ctx, userID, postID)
	if err != nil {
		return Toggle{}, err
	}

	if saved {
		err = s.store.DeleteSave(ctx, userID, postID)
	} else {
		err = s.store.InsertSave(ctx, userID, postID)
	}
	if err != nil {
		return Toggle{}, err
	}

	count, err := s.store.CountSaves(ctx, postID)
	if err != nil {
		return Toggle{}, err
	}
	return Toggle{NewState: !saved, Count: count}, nil
}

// ToggleRepost creates or removes the caller's repost wrapper of
// originalID. A repost is itself a posts row, so the membership check is
// "does my wrapper of this original exist", not a join-table lookup.
// Returns original-not-found when originalID is not a local post.
func (s *Service) ToggleRepost(ctx context.Context, userID, originalID string) (Toggle, error) {
	original, err := s.store.GetPost(ctx, originalID)
	if err != nil {
		if errors.Is(err, store.ErrPostNotFound) {
			return Toggle{}, store.ErrOriginalNotFound
		}
		return Toggle{}, err
	}
	// Reposting a wrapper reposts its original so wrappers never chain.
	targetID := original.ID
	if original.RepostOf != "" {
		targetID = original.RepostOf
	}

	var reposted bool
	existing, err := s.store.FindRepostBy(ctx, userID, targetID)
	switch {
	case err == nil:
		if err := s.store.DeletePost(ctx, existing.ID); err != nil {
			return Toggle{}, err
		}
	case errors.Is(err, store.ErrPostNotFound):
		wrapper := &store.Post{
			ID:       uuid.NewString(),
			UserID:   userID,
			RepostOf: targetID,
		}
		if err := s.store.CreatePost(ctx, wrapper, nil); err != nil {
			return Toggle{}, err
		}
		reposted = true
	default:
		return Toggle{}, err
	}

	count, err := s.store.CountReposts(ctx, targetID)
	if err != nil {
		return Toggle{}, err
	}
	return Toggle{NewState: reposted, Count: count}, nil
}

// ToggleFollow flips the caller's presence document in the remote
// followers collection. The count comes from a server-side aggregate;
// the mirror counter is bumped best-effort and never read back.
func (s *Service) ToggleFollow(ctx context.Context, userID string) (Toggle, error) {
	if s.remote == nil {
		return Toggle{}, fmt.Errorf("no remote store configured")
	}

	path := followersCollection + "/" + userID
	following, err := s.remote.ExistsAtPath(ctx, path)
	if err != nil {
		return Toggle{}, err
	}

	if following {
		if err := s.remote.DeleteAtPath(ctx, path); err != nil {
			return Toggle{}, err
		}
		if _, err := s.remote.AtomicIncrement(ctx, followerCounterPath, -1); err != nil {
			s.logger.Printf("follower counter decrement failed: %v", err)
		}
	} else {
		doc := map[string]any{"userId": userID}
		if err := s.remote.WriteAtPath(ctx, path, doc); err != nil {
			return Toggle{}, err
		}
		if _, err := s.remote.AtomicIncrement(ctx, followerCounterPath, 1); err != nil {
			s.logger.Printf("follower counter increment failed: %v", err)
		}
	}

	count, err := s.remote.CountCollection(ctx, followersCollection)
	if err != nil {
		return Toggle{}, err
	}
	return Toggle{NewState: !following, Count: count}, nil
}
