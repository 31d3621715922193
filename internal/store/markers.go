package store

import (
	"context"
	"fmt"
	"time"
)

// Synced-post markers form the upsync cursor: once a post id is marked,
// upsync never re-sends it, even if the row is later edited locally.

// MarkSynced records that postID has been pushed to the remote store.
// Idempotent: marking twice is not an error.
func (s *Store) MarkSynced(ctx context.Context, postID string) error {
	_, err := s.conn.ExecContext(ctx,
		"INSERT OR IGNORE INTO synced_posts (post_id, synced_at) VALUES (?, ?)",
		postID, formatTime(time.Now()))
	if err != nil {
		return fmt.Errorf("failed to mark post %s synced: %w", postID, err)
	}
	return nil
}

// IsSynced reports whether postID is in the synced-marker set.
func (s *Store) IsSynced(ctx context.Context, postID string) (bool, error) {
	var n int
	err := s.conn.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM synced_posts WHERE post_id = ?", postID).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("failed to check synced marker: %w", err)
	}
	return n > 0, nil
}

// ListUnsynced returns up to limit posts not yet marked synced, oldest
// created first so a backlog drains in creation order.
func (s *Store) ListUnsynced(ctx context.Context, limit int) ([]*Post, error) {
	query := `
	SELECT ` + postColumns + `
	FROM posts
	WHERE id NOT IN (SELECT post_id FROM synced_posts)
	ORDER BY created_at ASC, rowid ASC
	LIMIT ?
	`
	rows, err := s.conn.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list unsynced posts: %w", err)
	}
	defer rows.Close()

	var posts []*Post
	for rows.Next() {
		p, err := scanPost(rows)
		if err != nil {
			return nil, err
		}
		posts = append(posts, p)
	}
	return posts, rows.Err()
}

// CountUnsynced returns the size of the upsync backlog.
func (s *Store) CountUnsynced(ctx context.Context) (int64, error) {
	var n int64
	err := s.conn.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM posts WHERE id NOT IN (SELECT post_id FROM synced_posts)").Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count unsynced posts: %w", err)
	}
	return n, nil
}
