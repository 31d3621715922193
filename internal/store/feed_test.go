package store

import (
	"context"
	"testing"
	"time"
)

func TestFeedRepostProjection(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	createTestUser(t, s, "u1", "alice")
	createTestUser(t, s, "u2", "bob")

	base := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	createTestPost(t, s, "a", "u1", "hello", base, "m1")

	// Bob's repost wrapper of A: no body, no media of its own.
	wrapper := &Post{ID: "b", UserID: "u2", RepostOf: "a", CreatedAt: base.Add(time.Minute)}
	if err := s.CreatePost(ctx, wrapper, nil); err != nil {
		t.Fatalf("failed to create repost wrapper: %v", err)
	}

	feed, err := s.ListFeed(ctx, "u2", 0)
	if err != nil {
		t.Fatalf("ListFeed failed: %v", err)
	}
	if len(feed) != 2 {
		t.Fatalf("expected 2 feed rows, got %d", len(feed))
	}

	// Newest first: the wrapper leads.
	got := feed[0]
	if got.ID != "b" {
		t.Fatalf("expected wrapper b first, got %s", got.ID)
	}
	if got.ContentID != "a" {
		t.Errorf("expected content resolved to a, got %s", got.ContentID)
	}
	if got.Body != "hello" {
		t.Errorf("expected original body %q, got %q", "hello", got.Body)
	}
	if len(got.Media) != 1 || got.Media[0] != "m1" {
		t.Errorf("expected original media [m1], got %v", got.Media)
	}
	if got.AuthorUsername != "alice" {
		t.Errorf("expected original author alice, got %s", got.AuthorUsername)
	}
	if got.RepostedBy != "bob" {
		t.Errorf("expected reposted-by bob, got %s", got.RepostedBy)
	}
	if got.RepostCount != 1 {
		t.Errorf("expected repost count 1, got %d", got.RepostCount)
	}

	// The original row shows itself and no reposted-by.
	orig := feed[1]
	if orig.ID != "a" || orig.ContentID != "a" {
		t.Errorf("expected original row a, got %s/%s", orig.ID, orig.ContentID)
	}
	if orig.RepostedBy != "" {
		t.Errorf("expected no reposted-by on original, got %s", orig.RepostedBy)
	}
}

func TestFeedViewerFlagsAndCounts(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	createTestUser(t, s, "u1", "alice")
	createTestUser(t, s, "u2", "bob")
	createTestPost(t, s, "a", "u1", "hello", time.Now())

	if err := s.InsertLike(ctx, "u1", "a"); err != nil {
		t.Fatalf("InsertLike failed: %v", err)
	}
	if err := s.InsertLike(ctx, "u2", "a"); err != nil {
		t.Fatalf("InsertLike failed: %v", err)
	}
	if err := s.InsertSave(ctx, "u2", "a"); err != nil {
		t.Fatalf("InsertSave failed: %v", err)
	}

	feed, err := s.ListFeed(ctx, "u2", 0)
	if err != nil {
		t.Fatalf("ListFeed failed: %v", err)
	}
	if len(feed) != 1 {
		t.Fatalf("expected 1 feed row, got %d", len(feed))
	}
	got := feed[0]
	if got.LikeCount != 2 {
		t.Errorf("expected like count 2, got %d", got.LikeCount)
	}
	if !got.LikedByViewer {
		t.Errorf("expected liked-by-viewer for u2")
	}
	if !got.SavedByViewer {
		t.Errorf("expected saved-by-viewer for u2")
	}

	// A different viewer sees the same count but different flags.
	feed, err = s.ListFeed(ctx, "u1", 0)
	if err != nil {
		t.Fatalf("ListFeed failed: %v", err)
	}
	if feed[0].SavedByViewer {
		t.Errorf("expected u1 not to have saved the post")
	}
}

func TestListUserPostsAndReposts(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	createTestUser(t, s, "u1", "alice")
	createTestUser(t, s, "u2", "bob")

	base := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	createTestPost(t, s, "a", "u1", "hello", base)
	wrapper := &Post{ID: "b", UserID: "u2", RepostOf: "a", CreatedAt: base.Add(time.Minute)}
	if err := s.CreatePost(ctx, wrapper, nil); err != nil {
		t.Fatalf("failed to create wrapper: %v", err)
	}

	posts, err := s.ListUserPosts(ctx, "u2", "u2")
	if err != nil {
		t.Fatalf("ListUserPosts failed: %v", err)
	}
	if len(posts) != 0 {
		t.Errorf("expected no original posts for u2, got %d", len(posts))
	}

	reposts, err := s.ListUserReposts(ctx, "u2", "u2")
	if err != nil {
		t.Fatalf("ListUserReposts failed: %v", err)
	}
	if len(reposts) != 1 || reposts[0].ID != "b" || reposts[0].Body != "hello" {
		t.Errorf("expected wrapper b projecting hello, got %+v", reposts)
	}
}

func TestListSaved(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	createTestUser(t, s, "u1", "alice")
	base := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	createTestPost(t, s, "a", "u1", "first", base)
	createTestPost(t, s, "b", "u1", "second", base.Add(time.Second))

	if err := s.InsertSave(ctx, "u1", "a"); err != nil {
		t.Fatalf("InsertSave failed: %v", err)
	}

	saved, err := s.ListSaved(ctx, "u1")
	if err != nil {
		t.Fatalf("ListSaved failed: %v", err)
	}
	if len(saved) != 1 || saved[0].ID != "a" {
		t.Fatalf("expected saved list [a], got %+v", saved)
	}
	if !saved[0].SavedByViewer {
		t.Errorf("expected saved flag set")
	}
}
