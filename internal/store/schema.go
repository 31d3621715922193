package store

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// createTables is the final-form schema. CREATE TABLE IF NOT EXISTS leaves
// older shapes alone; ensureColumns and rebuildPosts patch those afterwards.
const createTables = `
CREATE TABLE IF NOT EXISTS users (
	id TEXT PRIMARY KEY,
	email TEXT UNIQUE,
	password TEXT NOT NULL DEFAULT '',
	salt TEXT NOT NULL DEFAULT '',
	username TEXT NOT NULL UNIQUE,
	avatar TEXT NOT NULL DEFAULT '',
	avatar_url TEXT,
	profile_completed INTEGER NOT NULL DEFAULT 0,
	created_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS posts (
	id TEXT PRIMARY KEY,
	user_id TEXT NOT NULL REFERENCES users(id),
	body TEXT,
	repost_of TEXT REFERENCES posts(id),
	latitude REAL,
	longitude REAL,
	location_label TEXT,
	created_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS post_media (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	post_id TEXT NOT NULL REFERENCES posts(id) ON DELETE CASCADE,
	uri TEXT NOT NULL,
	type TEXT NOT NULL DEFAULT 'image',
	created_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS likes (
	user_id TEXT NOT NULL REFERENCES users(id),
	post_id TEXT NOT NULL REFERENCES posts(id) ON DELETE CASCADE,
	created_at TEXT NOT NULL,
	PRIMARY KEY (user_id, post_id)
);

CREATE TABLE IF NOT EXISTS saved_posts (
	user_id TEXT NOT NULL REFERENCES users(id),
	post_id TEXT NOT NULL REFERENCES posts(id) ON DELETE CASCADE,
	created_at TEXT NOT NULL,
	PRIMARY KEY (user_id, post_id)
);

CREATE TABLE IF NOT EXISTS session (
	key TEXT PRIMARY KEY,
	user_id TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS synced_posts (
	post_id TEXT PRIMARY KEY,
	synced_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_posts_user ON posts(user_id);
CREATE INDEX IF NOT EXISTS idx_posts_repost_of ON posts(repost_of);
CREATE INDEX IF NOT EXISTS idx_posts_created ON posts(created_at);
CREATE INDEX IF NOT EXISTS idx_post_media_post ON post_media(post_id);
CREATE INDEX IF NOT EXISTS idx_likes_post ON likes(post_id);
CREATE INDEX IF NOT EXISTS idx_saved_post ON saved_posts(post_id);
`

// columnPatch is an additive migration: a column introduced after the table
// first shipped, plus the backfill applied to pre-existing rows.
type columnPatch struct {
	table    string
	column   string
	ddl      string // ALTER TABLE ... ADD COLUMN fragment
	backfill string // optional UPDATE run once after the add
}

func columnPatches(now string) []columnPatch {
	return []columnPatch{
		{"users", "salt", "salt TEXT NOT NULL DEFAULT ''", ""},
		{"users", "avatar_url", "avatar_url TEXT", ""},
		{"users", "profile_completed", "profile_completed INTEGER NOT NULL DEFAULT 0",
			"UPDATE users SET profile_completed = 0 WHERE profile_completed IS NULL"},
		{"users", "created_at", "created_at TEXT NOT NULL DEFAULT ''",
			"UPDATE users SET created_at = '" + now + "' WHERE created_at = ''"},
		{"posts", "latitude", "latitude REAL", ""},
		{"posts", "longitude", "longitude REAL", ""},
		{"posts", "location_label", "location_label TEXT", ""},
		{"post_media", "type", "type TEXT NOT NULL DEFAULT 'image'",
			"UPDATE post_media SET type = 'image' WHERE type IS NULL OR type = ''"},
	}
}

// EnsureSchema brings the database to the current schema. It is idempotent
// and safe to call before every operation; in practice the sync engine calls
// it once at startup.
//
// Order matters: foreign keys first, then base tables, then additive column
// patches for tables created by older versions, then the guarded rebuild for
// a posts table whose shape is too divergent to patch additively.
//
// Any failure here is fatal for the session; the store must not be used
// after EnsureSchema returns an error.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.conn.ExecContext(ctx, "PRAGMA foreign_keys=ON"); err != nil {
		return fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	// The posts rebuild runs before CREATE TABLE so the shadow copy sees
	// the old shape, and before column patches so they apply to the
	// rebuilt table only when still needed.
	if err := s.rebuildPostsIfDivergent(ctx); err != nil {
		return fmt.Errorf("posts rebuild failed: %w", err)
	}

	if _, err := s.conn.ExecContext(ctx, createTables); err != nil {
		return fmt.Errorf("failed to create tables: %w", err)
	}

	now := formatTime(time.Now())
	for _, p := range columnPatches(now) {
		if err := s.ensureColumn(ctx, p); err != nil {
			return fmt.Errorf("migration of %s.%s failed: %w", p.table, p.column, err)
		}
	}

	return nil
}

// tableColumns returns the column names of table, or nil if it doesn't exist.
func (s *Store) tableColumns(ctx context.Context, table string) (map[string]bool, error) {
	rows, err := s.conn.QueryContext(ctx, fmt.Sprintf("PRAGMA table_info(%s)", table))
	if err != nil {
		return nil, fmt.Errorf("failed to read table info for %s: %w", table, err)
	}
	defer rows.Close()

	cols := make(map[string]bool)
	for rows.Next() {
		var (
			cid        int
			name, typ  string
			notNull    int
			defaultVal any
			pk         int
		)
		if err := rows.Scan(&cid, &name, &typ, &notNull, &defaultVal, &pk); err != nil {
			return nil, fmt.Errorf("failed to scan table info: %w", err)
		}
		cols[name] = true
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(cols) == 0 {
		return nil, nil
	}
	return cols, nil
}

func (s *Store) ensureColumn(ctx context.Context, p columnPatch) error {
	cols, err := s.tableColumns(ctx, p.table)
	if err != nil {
		return err
	}
	if cols == nil || cols[p.column] {
		return nil
	}

	if _, err := s.conn.ExecContext(ctx,
		fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s", p.table, p.ddl)); err != nil {
		return fmt.Errorf("failed to add column: %w", err)
	}

	if p.backfill != "" {
		if _, err := s.conn.ExecContext(ctx, p.backfill); err != nil {
			return fmt.Errorf("failed to backfill: %w", err)
		}
	}

	return nil
}

// postsFinalColumns is the rebuild target shape, in DDL order.
var postsFinalColumns = []string{
	"id", "user_id", "body", "repost_of",
	"latitude", "longitude", "location_label", "created_at",
}

// rebuildPostsIfDivergent replaces a posts table that predates the body
// column. An older schema stored a different row shape entirely, so the
// table is rebuilt rather than patched: shadow table with the final shape,
// copy of the intersecting columns, drop, rename. The whole rebuild runs in
// one transaction; on any failure it rolls back and the old table stays
// visible untouched.
func (s *Store) rebuildPostsIfDivergent(ctx context.Context) error {
	cols, err := s.tableColumns(ctx, "posts")
	if err != nil {
		return err
	}
	if cols == nil || cols["body"] {
		return nil
	}

	// Pin one connection: foreign keys must be off on the connection that
	// runs the drop/rename dance, otherwise the implicit DELETE on DROP
	// TABLE cascades into child tables. The pragma cannot change inside a
	// transaction, so toggle it around the tx on the same connection.
	conn, err := s.conn.Conn(ctx)
	if err != nil {
		return fmt.Errorf("failed to acquire connection: %w", err)
	}
	defer conn.Close()

	if _, err := conn.ExecContext(ctx, "PRAGMA foreign_keys=OFF"); err != nil {
		return fmt.Errorf("failed to disable foreign keys: %w", err)
	}
	defer conn.ExecContext(ctx, "PRAGMA foreign_keys=ON")

	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	// NOT NULL columns carry defaults so rows copied from shapes missing
	// them still land; the backfill below patches created_at.
	shadow := `
	CREATE TABLE posts_rebuild (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL DEFAULT '' REFERENCES users(id),
		body TEXT,
		repost_of TEXT REFERENCES posts_rebuild(id),
		latitude REAL,
		longitude REAL,
		location_label TEXT,
		created_at TEXT NOT NULL DEFAULT ''
	)`
	if _, err := tx.ExecContext(ctx, shadow); err != nil {
		return fmt.Errorf("failed to create shadow table: %w", err)
	}

	var keep []string
	for _, c := range postsFinalColumns {
		if cols[c] {
			keep = append(keep, c)
		}
	}
	if len(keep) > 0 {
		colList := strings.Join(keep, ", ")
		copyStmt := fmt.Sprintf("INSERT INTO posts_rebuild (%s) SELECT %s FROM posts", colList, colList)
		if _, err := tx.ExecContext(ctx, copyStmt); err != nil {
			return fmt.Errorf("failed to copy rows into shadow table: %w", err)
		}
	}

	if !cols["created_at"] {
		backfill := "UPDATE posts_rebuild SET created_at = ?"
		if _, err := tx.ExecContext(ctx, backfill, formatTime(time.Now())); err != nil {
			return fmt.Errorf("failed to backfill created_at: %w", err)
		}
	}

	if _, err := tx.ExecContext(ctx, "DROP TABLE posts"); err != nil {
		return fmt.Errorf("failed to drop old posts table: %w", err)
	}

	if _, err := tx.ExecContext(ctx, "ALTER TABLE posts_rebuild RENAME TO posts"); err != nil {
		return fmt.Errorf("failed to rename shadow table: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit rebuild: %w", err)
	}

	return nil
}
