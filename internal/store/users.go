package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// User is a row in the users table. Password holds a salted digest, never
// the plaintext; Salt is the per-user random salt used to compute it.
type User struct {
	ID               string
	Email            string
	Password         string
	Salt             string
	Username         string
	Avatar           string
	AvatarURL        string
	ProfileCompleted bool
	CreatedAt        time.Time
}

// CreateUser inserts a new user row.
//
// Email and username uniqueness are checked up front so callers get the
// stable validation codes instead of a raw constraint error. Stub users
// created by downsync pass an empty email; NULL emails don't collide on
// the unique index.
func (s *Store) CreateUser(ctx context.Context, u *User) error {
	if u.ID == "" || u.Username == "" {
		return ErrMissingFields
	}

	if u.Email != "" {
		if _, err := s.GetUserByEmail(ctx, u.Email); err == nil {
			return ErrEmailInUse
		} else if !errors.Is(err, ErrUserNotFound) {
			return err
		}
	}

	taken, err := s.usernameTaken(ctx, u.Username)
	if err != nil {
		return err
	}
	if taken {
		return ErrUsernameInUse
	}

	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now()
	}

	query := `
	INSERT INTO users (id, email, password, salt, username, avatar, avatar_url, profile_completed, created_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err = s.conn.ExecContext(ctx, query,
		u.ID,
		nullIfEmpty(u.Email),
		u.Password,
		u.Salt,
		u.Username,
		u.Avatar,
		nullIfEmpty(u.AvatarURL),
		boolToInt(u.ProfileCompleted),
		formatTime(u.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to insert user %s: %w", u.ID, err)
	}

	return nil
}

func (s *Store) usernameTaken(ctx context.Context, username string) (bool, error) {
	var n int
	err := s.conn.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM users WHERE username = ?", username).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("failed to check username: %w", err)
	}
	return n > 0, nil
}

const userColumns = "id, email, password, salt, username, avatar, avatar_url, profile_completed, created_at"

func scanUser(row *sql.Row) (*User, error) {
	var (
		u                User
		email, avatarURL sql.NullString
		profileCompleted int
		createdAt        string
	)
	err := row.Scan(&u.ID, &email, &u.Password, &u.Salt, &u.Username,
		&u.Avatar, &avatarURL, &profileCompleted, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan user: %w", err)
	}
	u.Email = email.String
	u.AvatarURL = avatarURL.String
	u.ProfileCompleted = profileCompleted != 0
	u.CreatedAt = parseTime(createdAt)
	return &u, nil
}

// GetUserByID retrieves a user by id. Returns ErrUserNotFound if absent.
func (s *Store) GetUserByID(ctx context.Context, id string) (*User, error) {
	row := s.conn.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE id = ?", id)
	return scanUser(row)
}

// GetUserByEmail retrieves a user by email. Returns ErrUserNotFound if absent.
func (s *Store) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	row := s.conn.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE email = ?", email)
	return scanUser(row)
}

// GetUserByUsername retrieves a user by username. Returns ErrUserNotFound if absent.
func (s *Store) GetUserByUsername(ctx context.Context, username string) (*User, error) {
	row := s.conn.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE username = ?", username)
	return scanUser(row)
}

// UpdateAvatar sets the avatar string and/or external avatar URL.
func (s *Store) UpdateAvatar(ctx context.Context, userID, avatar, avatarURL string) error {
	res, err := s.conn.ExecContext(ctx,
		"UPDATE users SET avatar = ?, avatar_url = ? WHERE id = ?",
		avatar, nullIfEmpty(avatarURL), userID)
	if err != nil {
		return fmt.Errorf("failed to update avatar: %w", err)
	}
	return requireRow(res, ErrUserNotFound)
}

// CompleteProfile marks the user's profile as completed.
func (s *Store) CompleteProfile(ctx context.Context, userID string) error {
	res, err := s.conn.ExecContext(ctx,
		"UPDATE users SET profile_completed = 1 WHERE id = ?", userID)
	if err != nil {
		return fmt.Errorf("failed to complete profile: %w", err)
	}
	return requireRow(res, ErrUserNotFound)
}

// sessionKey is the fixed key of the singleton session row.
const sessionKey = "active"

// SessionUserID returns the currently active user id, or "" when logged out.
func (s *Store) SessionUserID(ctx context.Context) (string, error) {
	var userID string
	err := s.conn.QueryRowContext(ctx,
		"SELECT user_id FROM session WHERE key = ?", sessionKey).Scan(&userID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to read session: %w", err)
	}
	return userID, nil
}

// SetSession makes userID the active session.
func (s *Store) SetSession(ctx context.Context, userID string) error {
	query := `
	INSERT INTO session (key, user_id) VALUES (?, ?)
	ON CONFLICT(key) DO UPDATE SET user_id = excluded.user_id
	`
	if _, err := s.conn.ExecContext(ctx, query, sessionKey, userID); err != nil {
		return fmt.Errorf("failed to set session: %w", err)
	}
	return nil
}

// ClearSession removes the active session row. Idempotent.
func (s *Store) ClearSession(ctx context.Context) error {
	if _, err := s.conn.ExecContext(ctx,
		"DELETE FROM session WHERE key = ?", sessionKey); err != nil {
		return fmt.Errorf("failed to clear session: %w", err)
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func requireRow(res sql.Result, notFound error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return notFound
	}
	return nil
}
