package social

import (
	"context"
	"errors"
	"io"
	"log"
	"path/filepath"
	"testing"
	"time"

	"github.com/Dantrux22/no-border-app-sub000/internal/remote"
	"github.com/Dantrux22/no-border-app-sub000/internal/store"
)

func setupService(t *testing.T) (*Service, *store.Store, *remote.Memory) {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "test.db")
	st, err := store.Open(dbPath)
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	ctx := context.Background()
	if err := st.EnsureSchema(ctx); err != nil {
		t.Fatalf("failed to ensure schema: %v", err)
	}

	mem := remote.NewMemory()
	svc := New(st, mem, log.New(io.Discard, "", 0))

	// Two users and one post to toggle against.
	for _, u := range []*store.User{
		{ID: "u1", Email: "a@x.com", Username: "alice"},
		{ID: "u2", Email: "b@x.com", Username: "bob"},
	} {
		if err := st.CreateUser(ctx, u); err != nil {
			t.Fatalf("failed to create user %s: %v", u.ID, err)
		}
	}
	p := &store.Post{ID: "p1", UserID: "u1", Body: "hello", CreatedAt: time.Now()}
	if err := st.CreatePost(ctx, p, nil); err != nil {
		t.Fatalf("failed to create post: %v", err)
	}

	return svc, st, mem
}

func TestToggleLikeSymmetry(t *testing.T) {
	svc, st, _ := setupService(t)
	ctx := context.Background()

	before, err := st.CountLikes(ctx, "p1")
	if err != nil {
		t.Fatalf("CountLikes failed: %v", err)
	}

	on, err := svc.ToggleLike(ctx, "u2", "p1")
	if err != nil {
		t.Fatalf("first ToggleLike failed: %v", err)
	}
	if !on.NewState || on.Count != before+1 {
		t.Errorf("expected liked with count %d, got %+v", before+1, on)
	}

	off, err := svc.ToggleLike(ctx, "u2", "p1")
	if err != nil {
		t.Fatalf("second ToggleLike failed: %v", err)
	}
	if off.NewState || off.Count != before {
		t.Errorf("expected unliked with count %d, got %+v", before, off)
	}
}

func TestToggleLikeCountsConcurrentLikers(t *testing.T) {
	svc, _, _ := setupService(t)
	ctx := context.Background()

	if _, err := svc.ToggleLike(ctx, "u1", "p1"); err != nil {
		t.Fatalf("ToggleLike u1 failed: %v", err)
	}
	res, err := svc.ToggleLike(ctx, "u2", "p1")
	if err != nil {
		t.Fatalf("ToggleLike u2 failed: %v", err)
	}
	// Fresh aggregate, not my-own-count: both likes visible.
	if res.Count != 2 {
		t.Errorf("expected count 2 after two likers, got %d", res.Count)
	}
}

func TestToggleSaveSymmetry(t *testing.T) {
	svc, _, _ := setupService(t)
	ctx := context.Background()

	on, err := svc.ToggleSave(ctx, "u2", "p1")
	if err != nil {
		t.Fatalf("ToggleSave failed: %v", err)
	}
	if !on.NewState || on.Count != 1 {
		t.Errorf("expected saved with count 1, got %+v", on)
	}

	off, err := svc.ToggleSave(ctx, "u2", "p1")
	if err != nil {
		t.Fatalf("second ToggleSave failed: %v", err)
	}
	if off.NewState || off.Count != 0 {
		t.Errorf("expected unsaved with count 0, got %+v", off)
	}
}

func TestToggleRepost(t *testing.T) {
	svc, st, _ := setupService(t)
	ctx := context.Background()

	on, err := svc.ToggleRepost(ctx, "u2", "p1")
	if err != nil {
		t.Fatalf("ToggleRepost failed: %v", err)
	}
	if !on.NewState || on.Count != 1 {
		t.Errorf("expected reposted with count 1, got %+v", on)
	}

	wrapper, err := st.FindRepostBy(ctx, "u2", "p1")
	if err != nil {
		t.Fatalf("expected wrapper row: %v", err)
	}
	if wrapper.Body != "" {
		t.Errorf("expected wrapper without body, got %q", wrapper.Body)
	}

	// Toggling again removes my wrapper, not the original.
	off, err := svc.ToggleRepost(ctx, "u2", "p1")
	if err != nil {
		t.Fatalf("second ToggleRepost failed: %v", err)
	}
	if off.NewState || off.Count != 0 {
		t.Errorf("expected un-reposted with count 0, got %+v", off)
	}
	if _, err := st.GetPost(ctx, "p1"); err != nil {
		t.Errorf("original vanished: %v", err)
	}
	if _, err := st.FindRepostBy(ctx, "u2", "p1"); !errors.Is(err, store.ErrPostNotFound) {
		t.Errorf("expected wrapper gone, got %v", err)
	}
}

func TestToggleRepostOfWrapperTargetsOriginal(t *testing.T) {
	svc, st, _ := setupService(t)
	ctx := context.Background()

	if _, err := svc.ToggleRepost(ctx, "u2", "p1"); err != nil {
		t.Fatalf("ToggleRepost failed: %v", err)
	}
	wrapper, err := st.FindRepostBy(ctx, "u2", "p1")
	if err != nil {
		t.Fatalf("expected wrapper: %v", err)
	}

	// Reposting bob's wrapper makes alice repost the original, not chain.
	res, err := svc.ToggleRepost(ctx, "u1", wrapper.ID)
	if err != nil {
		t.Fatalf("ToggleRepost of wrapper failed: %v", err)
	}
	if !res.NewState {
		t.Fatalf("expected repost created")
	}
	mine, err := st.FindRepostBy(ctx, "u1", "p1")
	if err != nil {
		t.Fatalf("expected alice's wrapper of the original: %v", err)
	}
	if mine.RepostOf != "p1" {
		t.Errorf("expected repost_of p1, got %s", mine.RepostOf)
	}
}

func TestToggleRepostUnknownOriginal(t *testing.T) {
	svc, _, _ := setupService(t)

	_, err := svc.ToggleRepost(context.Background(), "u2", "ghost")
	if !errors.Is(err, store.ErrOriginalNotFound) {
		t.Errorf("expected original-not-found, got %v", err)
	}
}

func TestToggleFollow(t *testing.T) {
	svc, _, mem := setupService(t)
	ctx := context.Background()

	on, err := svc.ToggleFollow(ctx, "u2")
	if err != nil {
		t.Fatalf("ToggleFollow failed: %v", err)
	}
	if !on.NewState || on.Count != 1 {
		t.Errorf("expected following with count 1, got %+v", on)
	}
	if ok, _ := mem.ExistsAtPath(ctx, "followers/u2"); !ok {
		t.Errorf("expected presence document at followers/u2")
	}

	// Another follower bumps the aggregate.
	if _, err := svc.ToggleFollow(ctx, "u1"); err != nil {
		t.Fatalf("ToggleFollow u1 failed: %v", err)
	}

	off, err := svc.ToggleFollow(ctx, "u2")
	if err != nil {
		t.Fatalf("second ToggleFollow failed: %v", err)
	}
	if off.NewState || off.Count != 1 {
		t.Errorf("expected unfollowed with count 1, got %+v", off)
	}
	if ok, _ := mem.ExistsAtPath(ctx, "followers/u2"); ok {
		t.Errorf("expected presence document removed")
	}
}
