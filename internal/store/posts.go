package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Post is a row in the posts table. A row with a non-empty RepostOf is a
// repost wrapper: it has no body or media of its own and resolves to the
// original at read time.
type Post struct {
	ID            string
	UserID        string
	Body          string
	RepostOf      string
	Latitude      *float64
	Longitude     *float64
	LocationLabel string
	CreatedAt     time.Time
}

// MaxMediaPerPost bounds how many media rows one post may carry.
const MaxMediaPerPost = 4

// CreatePost inserts a post and its media rows in one transaction.
//
// The author must exist locally (author-not-found otherwise) and an
// original post must carry a body or at least one media item
// (missing-fields). Repost wrappers are created through social.ToggleRepost
// and bypass the body check.
func (s *Store) CreatePost(ctx context.Context, p *Post, mediaURIs []string) error {
	if p.ID == "" || p.UserID == "" {
		return ErrMissingFields
	}
	if p.RepostOf == "" && p.Body == "" && len(mediaURIs) == 0 {
		return ErrMissingFields
	}
	if len(mediaURIs) > MaxMediaPerPost {
		return fmt.Errorf("post %s has %d media items, maximum is %d",
			p.ID, len(mediaURIs), MaxMediaPerPost)
	}

	if _, err := s.GetUserByID(ctx, p.UserID); err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return ErrAuthorNotFound
		}
		return err
	}

	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now()
	}

	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `
	INSERT INTO posts (id, user_id, body, repost_of, latitude, longitude, location_label, created_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err = tx.ExecContext(ctx, query,
		p.ID,
		p.UserID,
		nullIfEmpty(p.Body),
		nullIfEmpty(p.RepostOf),
		nullFloat(p.Latitude),
		nullFloat(p.Longitude),
		nullIfEmpty(p.LocationLabel),
		formatTime(p.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to insert post %s: %w", p.ID, err)
	}

	now := formatTime(time.Now())
	for _, uri := range mediaURIs {
		_, err = tx.ExecContext(ctx,
			"INSERT INTO post_media (post_id, uri, type, created_at) VALUES (?, ?, 'image', ?)",
			p.ID, uri, now)
		if err != nil {
			return fmt.Errorf("failed to insert media for post %s: %w", p.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit post %s: %w", p.ID, err)
	}

	return nil
}

// InsertPostIfAbsent inserts a post row only when its id is not already
// present. This is the downsync entry point: no body validation (remote
// wrappers have none) and no error on duplicates, so repeated snapshot
// deliveries stay idempotent. Returns true if a row was inserted.
func (s *Store) InsertPostIfAbsent(ctx context.Context, p *Post) (bool, error) {
	if p.ID == "" || p.UserID == "" {
		return false, ErrMissingFields
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now()
	}

	query := `
	INSERT OR IGNORE INTO posts (id, user_id, body, repost_of, latitude, longitude, location_label, created_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`
	res, err := s.conn.ExecContext(ctx, query,
		p.ID,
		p.UserID,
		nullIfEmpty(p.Body),
		nullIfEmpty(p.RepostOf),
		nullFloat(p.Latitude),
		nullFloat(p.Longitude),
		nullIfEmpty(p.LocationLabel),
		formatTime(p.CreatedAt),
	)
	if err != nil {
		return false, fmt.Errorf("failed to insert post %s: %w", p.ID, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

const postColumns = "id, user_id, body, repost_of, latitude, longitude, location_label, created_at"

func scanPost(sc interface{ Scan(...any) error }) (*Post, error) {
	var (
		p                          Post
		body, repostOf, label      sql.NullString
		lat, lng                   sql.NullFloat64
		createdAt                  string
	)
	err := sc.Scan(&p.ID, &p.UserID, &body, &repostOf, &lat, &lng, &label, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrPostNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan post: %w", err)
	}
	p.Body = body.String
	p.RepostOf = repostOf.String
	p.Latitude = floatPtr(lat)
	p.Longitude = floatPtr(lng)
	p.LocationLabel = label.String
	p.CreatedAt = parseTime(createdAt)
	return &p, nil
}

// GetPost retrieves a single post by id. Returns ErrPostNotFound if absent.
func (s *Store) GetPost(ctx context.Context, id string) (*Post, error) {
	row := s.conn.QueryRowContext(ctx,
		"SELECT "+postColumns+" FROM posts WHERE id = ?", id)
	return scanPost(row)
}

// HasPost reports whether a post with the given id exists locally.
func (s *Store) HasPost(ctx context.Context, id string) (bool, error) {
	var n int
	err := s.conn.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM posts WHERE id = ?", id).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("failed to check post: %w", err)
	}
	return n > 0, nil
}

// DeletePost removes a post row. Media rows cascade. Idempotent.
func (s *Store) DeletePost(ctx context.Context, id string) error {
	if _, err := s.conn.ExecContext(ctx, "DELETE FROM posts WHERE id = ?", id); err != nil {
		return fmt.Errorf("failed to delete post %s: %w", id, err)
	}
	return nil
}

// PostMedia returns the media URIs of a post in insertion order.
func (s *Store) PostMedia(ctx context.Context, postID string) ([]string, error) {
	rows, err := s.conn.QueryContext(ctx,
		"SELECT uri FROM post_media WHERE post_id = ? ORDER BY id ASC", postID)
	if err != nil {
		return nil, fmt.Errorf("failed to query media: %w", err)
	}
	defer rows.Close()

	var uris []string
	for rows.Next() {
		var uri string
		if err := rows.Scan(&uri); err != nil {
			return nil, fmt.Errorf("failed to scan media: %w", err)
		}
		uris = append(uris, uri)
	}
	return uris, rows.Err()
}

// FindRepostBy returns the caller's repost wrapper of originalID, or
// ErrPostNotFound when the user has not reposted it. At most one wrapper
// per (user, original) pair exists by toggle contract.
func (s *Store) FindRepostBy(ctx context.Context, userID, originalID string) (*Post, error) {
	row := s.conn.QueryRowContext(ctx,
		"SELECT "+postColumns+" FROM posts WHERE user_id = ? AND repost_of = ? LIMIT 1",
		userID, originalID)
	return scanPost(row)
}

// CountReposts returns the number of repost wrappers referencing originalID.
func (s *Store) CountReposts(ctx context.Context, originalID string) (int64, error) {
	var n int64
	err := s.conn.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM posts WHERE repost_of = ?", originalID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count reposts: %w", err)
	}
	return n, nil
}
