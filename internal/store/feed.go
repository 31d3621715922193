package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"
)

// FeedPost is a derived read row: a post resolved for display to a viewer.
// For repost wrappers every content field (body, media, counts, viewer
// flags) comes from the original post, never from the wrapper itself.
type FeedPost struct {
	// ID is the feed row's own id: the wrapper id for reposts.
	ID string
	// ContentID is the id of the post whose content is shown. Equal to ID
	// for originals, the original's id for reposts.
	ContentID string
	// RepostOf is non-empty when this row is a repost wrapper.
	RepostOf string
	// RepostedBy is the username of the reposting user, set only for wrappers.
	RepostedBy string

	AuthorID        string
	AuthorUsername  string
	AuthorAvatar    string
	AuthorAvatarURL string

	Body          string
	Media         []string
	Latitude      *float64
	Longitude     *float64
	LocationLabel string
	CreatedAt     time.Time

	LikeCount     int64
	RepostCount   int64
	LikedByViewer bool
	SavedByViewer bool
}

// mediaSep joins per-post media URIs inside the feed query; the list is
// split back apart in scanFeedPost. U+001F cannot appear in a URI.
const mediaSep = "\x1f"

// feedSelect resolves each row against its effective post: the row itself
// for originals, the referenced original for repost wrappers. Counts and
// viewer flags are correlated subqueries against the effective post so a
// repost never shows its own (empty) content or counts.
const feedSelect = `
SELECT
	p.id,
	p.repost_of,
	p.created_at,
	ru.username,
	eff.id,
	eff.body,
	eff.latitude,
	eff.longitude,
	eff.location_label,
	au.id,
	au.username,
	au.avatar,
	au.avatar_url,
	(SELECT group_concat(uri, char(31)) FROM
		(SELECT uri FROM post_media WHERE post_id = eff.id ORDER BY id ASC)),
	(SELECT COUNT(*) FROM likes WHERE post_id = eff.id),
	(SELECT COUNT(*) FROM posts r WHERE r.repost_of = eff.id),
	EXISTS(SELECT 1 FROM likes WHERE post_id = eff.id AND user_id = ?1),
	EXISTS(SELECT 1 FROM saved_posts WHERE post_id = eff.id AND user_id = ?1)
FROM posts p
JOIN users ru ON ru.id = p.user_id
JOIN posts eff ON eff.id = COALESCE(p.repost_of, p.id)
JOIN users au ON au.id = eff.user_id
`

func scanFeedPost(rows *sql.Rows) (*FeedPost, error) {
	var (
		fp                      FeedPost
		repostOf, body, label   sql.NullString
		avatarURL, mediaJoined  sql.NullString
		rowUsername             string
		lat, lng                sql.NullFloat64
		createdAt               string
		liked, saved            int
	)
	err := rows.Scan(
		&fp.ID,
		&repostOf,
		&createdAt,
		&rowUsername,
		&fp.ContentID,
		&body,
		&lat,
		&lng,
		&label,
		&fp.AuthorID,
		&fp.AuthorUsername,
		&fp.AuthorAvatar,
		&avatarURL,
		&mediaJoined,
		&fp.LikeCount,
		&fp.RepostCount,
		&liked,
		&saved,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to scan feed post: %w", err)
	}

	fp.RepostOf = repostOf.String
	if fp.RepostOf != "" {
		fp.RepostedBy = rowUsername
	}
	fp.Body = body.String
	fp.Latitude = floatPtr(lat)
	fp.Longitude = floatPtr(lng)
	fp.LocationLabel = label.String
	fp.AuthorAvatarURL = avatarURL.String
	fp.CreatedAt = parseTime(createdAt)
	if mediaJoined.Valid && mediaJoined.String != "" {
		fp.Media = strings.Split(mediaJoined.String, mediaSep)
	}
	fp.LikedByViewer = liked != 0
	fp.SavedByViewer = saved != 0
	return &fp, nil
}

func (s *Store) queryFeed(ctx context.Context, query string, args ...any) ([]*FeedPost, error) {
	rows, err := s.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query feed: %w", err)
	}
	defer rows.Close()

	var feed []*FeedPost
	for rows.Next() {
		fp, err := scanFeedPost(rows)
		if err != nil {
			return nil, err
		}
		feed = append(feed, fp)
	}
	return feed, rows.Err()
}

// ListFeed returns all posts newest first, resolved for viewerID.
// limit <= 0 means no limit.
func (s *Store) ListFeed(ctx context.Context, viewerID string, limit int) ([]*FeedPost, error) {
	query := feedSelect + " ORDER BY p.created_at DESC, p.rowid DESC"
	args := []any{viewerID}
	if limit > 0 {
		query += " LIMIT ?2"
		args = append(args, limit)
	}
	return s.queryFeed(ctx, query, args...)
}

// ListUserPosts returns userID's original posts (no repost wrappers),
// newest first, resolved for viewerID.
func (s *Store) ListUserPosts(ctx context.Context, viewerID, userID string) ([]*FeedPost, error) {
	query := feedSelect + `
	WHERE p.user_id = ?2 AND p.repost_of IS NULL
	ORDER BY p.created_at DESC, p.rowid DESC`
	return s.queryFeed(ctx, query, viewerID, userID)
}

// ListUserReposts returns userID's repost wrappers, newest first, each
// projected onto its original's content.
func (s *Store) ListUserReposts(ctx context.Context, viewerID, userID string) ([]*FeedPost, error) {
	query := feedSelect + `
	WHERE p.user_id = ?2 AND p.repost_of IS NOT NULL
	ORDER BY p.created_at DESC, p.rowid DESC`
	return s.queryFeed(ctx, query, viewerID, userID)
}

// ListSaved returns the posts viewerID has saved, most recently saved first.
func (s *Store) ListSaved(ctx context.Context, viewerID string) ([]*FeedPost, error) {
	query := feedSelect + `
	JOIN saved_posts sp ON sp.post_id = p.id AND sp.user_id = ?1
	ORDER BY sp.created_at DESC, p.rowid DESC`
	return s.queryFeed(ctx, query, viewerID)
}
