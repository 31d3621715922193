package store

import (
	"context"
	"fmt"
	"time"
)

// Likes and saves are composite-key join rows: presence means liked/saved.
// Inserts use OR IGNORE so a race between two concurrent toggles collapses
// on the primary key instead of surfacing a constraint error.

// HasLike reports whether (userID, postID) is in the likes relation.
func (s *Store) HasLike(ctx context.Context, userID, postID string) (bool, error) {
	return s.hasRelation(ctx, "likes", userID, postID)
}

// InsertLike adds a like row. Idempotent.
func (s *Store) InsertLike(ctx context.Context, userID, postID string) error {
	return s.insertRelation(ctx, "likes", userID, postID)
}

// DeleteLike removes a like row. Idempotent.
func (s *Store) DeleteLike(ctx context.Context, userID, postID string) error {
	return s.deleteRelation(ctx, "likes", userID, postID)
}

// CountLikes re-aggregates the like count for a post. Callers use this
// fresh count after every toggle rather than maintaining a counter.
func (s *Store) CountLikes(ctx context.Context, postID string) (int64, error) {
	return s.countRelation(ctx, "likes", postID)
}

// HasSave reports whether (userID, postID) is in the saved_posts relation.
func (s *Store) HasSave(ctx context.Context, userID, postID string) (bool, error) {
	return s.hasRelation(ctx, "saved_posts", userID, postID)
}

// InsertSave adds a saved-post row. Idempotent.
func (s *Store) InsertSave(ctx context.Context, userID, postID string) error {
	return s.insertRelation(ctx, "saved_posts", userID, postID)
}

// DeleteSave removes a saved-post row. Idempotent.
func (s *Store) DeleteSave(ctx context.Context, userID, postID string) error {
	return s.deleteRelation(ctx, "saved_posts", userID, postID)
}

// CountSaves re-aggregates the save count for a post.
func (s *Store) CountSaves(ctx context.Context, postID string) (int64, error) {
	return s.countRelation(ctx, "saved_posts", postID)
}

func (s *Store) hasRelation(ctx context.Context, table, userID, postID string) (bool, error) {
	var n int
	query := fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE user_id = ? AND post_id = ?", table)
	if err := s.conn.QueryRowContext(ctx, query, userID, postID).Scan(&n); err != nil {
		return false, fmt.Errorf("failed to check %s: %w", table, err)
	}
	return n > 0, nil
}

func (s *Store) insertRelation(ctx context.Context, table, userID, postID string) error {
	query := fmt.Sprintf(
		"INSERT OR IGNORE INTO %s (user_id, post_id, created_at) VALUES (?, ?, ?)", table)
	if _, err := s.conn.ExecContext(ctx, query, userID, postID, formatTime(time.Now())); err != nil {
		return fmt.Errorf("failed to insert into %s: %w", table, err)
	}
	return nil
}

func (s *Store) deleteRelation(ctx context.Context, table, userID, postID string) error {
	query := fmt.Sprintf("DELETE FROM %s WHERE user_id = ? AND post_id = ?", table)
	if _, err := s.conn.ExecContext(ctx, query, userID, postID); err != nil {
		return fmt.Errorf("failed to delete from %s: %w", table, err)
	}
	return nil
}

func (s *Store) countRelation(ctx context.Context, table, postID string) (int64, error) {
	var n int64
	query := fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE post_id = ?", table)
	if err := s.conn.QueryRowContext(ctx, query, postID).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count %s: %w", table, err)
	}
	return n, nil
}
