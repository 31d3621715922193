// Package identity provides the identity surface of the data core: who is
// signed in, registration and login against the local store, and change
// notification for components (like the sync engine) that care when the
// active user flips.
//
// Passwords are stored as salted SHA-1 digests; the plaintext never touches
// the users table.
package identity

import (
	"context"
	"crypto/rand"
	"crypto/sha1"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path"
	"sync"

	"github.com/google/uuid"

	"github.com/Dantrux22/no-border-app-sub000/internal/blob"
	"github.com/Dantrux22/no-border-app-sub000/internal/store"
)

// Provider answers "who is signed in" and notifies on changes. The sync
// engine consumes this interface; it never sees the auth operations.
type Provider interface {
	// CurrentUserID returns the active user id, or "" when logged out.
	CurrentUserID(ctx context.Context) (string, error)

	// OnIdentityChange registers fn to be called with the new user id
	// ("" on logout) after every identity change. The returned function
	// detaches the listener and is safe to call twice.
	OnIdentityChange(fn func(userID string)) func()
}

// Credentials are the register/login inputs.
type Credentials struct {
	Email    string
	Password string
	Username string // required for register only
}

// Service implements Provider backed by the local store's session row, and
// carries the register/login/logout operations that mutate it.
type Service struct {
	store  *store.Store
	blobs  blob.Store
	logger *log.Logger

	mu        sync.Mutex
	listeners map[int]func(string)
	nextID    int
}

// NewService creates an identity service. blobs may be nil if avatar
// upload is not needed; logger nil defaults to stderr.
func NewService(st *store.Store, blobs blob.Store, logger *log.Logger) *Service {
	if logger == nil {
		logger = log.New(os.Stderr, "[identity] ", log.LstdFlags)
	}
	return &Service{
		store:     st,
		blobs:     blobs,
		logger:    logger,
		listeners: make(map[int]func(string)),
	}
}

// CurrentUserID implements Provider.
func (s *Service) CurrentUserID(ctx context.Context) (string, error) {
	return s.store.SessionUserID(ctx)
}

// OnIdentityChange implements Provider.
func (s *Service) OnIdentityChange(fn func(userID string)) func() {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.listeners, id)
			s.mu.Unlock()
		})
	}
}

func (s *Service) notify(userID string) {
	s.mu.Lock()
	fns := make([]func(string), 0, len(s.listeners))
	for _, fn := range s.listeners {
		fns = append(fns, fn)
	}
	s.mu.Unlock()

	for _, fn := range fns {
		fn(userID)
	}
}

// Register creates a new user, signs them in, and returns the user row.
//
// Failures carry the stable store codes: missing-fields,
// email-already-in-use, username-already-in-use.
func (s *Service) Register(ctx context.Context, creds Credentials) (*store.User, error) {
	if creds.Email == "" || creds.Password == "" || creds.Username == "" {
		return nil, store.ErrMissingFields
	}

	salt, err := newSalt()
	if err != nil {
		return nil, fmt.Errorf("failed to generate salt: %w", err)
	}

	u := &store.User{
		ID:       uuid.NewString(),
		Email:    creds.Email,
		Password: hashPassword(creds.Password, salt),
		Salt:     salt,
		Username: creds.Username,
	}
	if err := s.store.CreateUser(ctx, u); err != nil {
		return nil, err
	}

	if err := s.store.SetSession(ctx, u.ID); err != nil {
		return nil, err
	}

	s.logger.Printf("Registered user %s (%s)", u.Username, u.ID)
	s.notify(u.ID)
	return u, nil
}

// Login verifies the password digest and activates the session.
//
// A wrong password returns the wrong-password code and leaves the session
// untouched; an unknown email returns user-not-found.
func (s *Service) Login(ctx context.Context, creds Credentials) (*store.User, error) {
	if creds.Email == "" || creds.Password == "" {
		return nil, store.ErrMissingFields
	}

	u, err := s.store.GetUserByEmail(ctx, creds.Email)
	if err != nil {
		return nil, err
	}

	if hashPassword(creds.Password, u.Salt) != u.Password {
		return nil, store.ErrWrongPassword
	}

	if err := s.store.SetSession(ctx, u.ID); err != nil {
		return nil, err
	}

	s.logger.Printf("Logged in user %s (%s)", u.Username, u.ID)
	s.notify(u.ID)
	return u, nil
}

// Logout clears the session. Idempotent.
func (s *Service) Logout(ctx context.Context) error {
	if err := s.store.ClearSession(ctx); err != nil {
		return err
	}
	s.notify("")
	return nil
}

// SetAvatar uploads the avatar bytes to the blob store and records the
// public URL (plus the short avatar string) on the user row.
func (s *Service) SetAvatar(ctx context.Context, userID, avatar string, r io.Reader, filename string) error {
	var url string
	if r != nil {
		if s.blobs == nil {
			return errors.New("no blob store configured")
		}
		var err error
		url, err = s.blobs.Put(ctx, r, path.Join("avatars", userID, filename))
		if err != nil {
			return fmt.Errorf("failed to upload avatar: %w", err)
		}
	}
	return s.store.UpdateAvatar(ctx, userID, avatar, url)
}

// CompleteProfile marks the user's profile as completed.
func (s *Service) CompleteProfile(ctx context.Context, userID string) error {
	return s.store.CompleteProfile(ctx, userID)
}

func newSalt() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

func hashPassword(password, salt string) string {
	h := sha1.New()
	h.Write([]byte(salt))
	h.Write([]byte(password))
	return base64.URLEncoding.EncodeToString(h.Sum(nil))
}
