package identity

import (
	"context"
	"errors"
	"io"
	"log"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Dantrux22/no-border-app-sub000/internal/blob"
	"github.com/Dantrux22/no-border-app-sub000/internal/store"
)

func testLogger(t *testing.T) *log.Logger {
	t.Helper()
	return log.New(io.Discard, "", 0)
}

func setupService(t *testing.T) (*Service, *store.Store) {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "test.db")
	st, err := store.Open(dbPath)
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	if err := st.EnsureSchema(context.Background()); err != nil {
		t.Fatalf("failed to ensure schema: %v", err)
	}

	return NewService(st, &blob.LocalDir{Base: t.TempDir()}, testLogger(t)), st
}

func TestRegisterLoginRoundTrip(t *testing.T) {
	svc, st := setupService(t)
	ctx := context.Background()

	creds := Credentials{Email: "a@x.com", Password: "p", Username: "a"}
	registered, err := svc.Register(ctx, creds)
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if registered.Password == "p" {
		t.Errorf("password stored in plaintext")
	}

	loggedIn, err := svc.Login(ctx, Credentials{Email: "a@x.com", Password: "p"})
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	if loggedIn.ID != registered.ID {
		t.Errorf("expected matching user id, got %s vs %s", loggedIn.ID, registered.ID)
	}

	active, err := st.SessionUserID(ctx)
	if err != nil {
		t.Fatalf("SessionUserID failed: %v", err)
	}
	if active != registered.ID {
		t.Errorf("expected session %s, got %s", registered.ID, active)
	}
}

func TestLoginWrongPassword(t *testing.T) {
	svc, st := setupService(t)
	ctx := context.Background()

	registered, err := svc.Register(ctx, Credentials{Email: "a@x.com", Password: "p", Username: "a"})
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	_, err = svc.Login(ctx, Credentials{Email: "a@x.com", Password: "wrong"})
	if !errors.Is(err, store.ErrWrongPassword) {
		t.Fatalf("expected wrong-password, got %v", err)
	}
	if store.CodeOf(err) != "wrong-password" {
		t.Errorf("expected stable code wrong-password, got %q", store.CodeOf(err))
	}

	// The failed login left the session untouched.
	active, err := st.SessionUserID(ctx)
	if err != nil {
		t.Fatalf("SessionUserID failed: %v", err)
	}
	if active != registered.ID {
		t.Errorf("expected session still %s, got %q", registered.ID, active)
	}
}

func TestLoginUnknownEmail(t *testing.T) {
	svc, _ := setupService(t)

	_, err := svc.Login(context.Background(), Credentials{Email: "nobody@x.com", Password: "p"})
	if !errors.Is(err, store.ErrUserNotFound) {
		t.Errorf("expected user-not-found, got %v", err)
	}
}

func TestRegisterValidation(t *testing.T) {
	svc, _ := setupService(t)
	ctx := context.Background()

	if _, err := svc.Register(ctx, Credentials{Email: "a@x.com", Password: "p", Username: "a"}); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	tests := []struct {
		name  string
		creds Credentials
		want  error
	}{
		{"missing password", Credentials{Email: "b@x.com", Username: "b"}, store.ErrMissingFields},
		{"duplicate email", Credentials{Email: "a@x.com", Password: "p", Username: "b"}, store.ErrEmailInUse},
		{"duplicate username", Credentials{Email: "b@x.com", Password: "p", Username: "a"}, store.ErrUsernameInUse},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Register(ctx, tt.creds)
			if !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestIdentityChangeNotifications(t *testing.T) {
	svc, _ := setupService(t)
	ctx := context.Background()

	var events []string
	unsub := svc.OnIdentityChange(func(userID string) {
		events = append(events, userID)
	})

	u, err := svc.Register(ctx, Credentials{Email: "a@x.com", Password: "p", Username: "a"})
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if err := svc.Logout(ctx); err != nil {
		t.Fatalf("Logout failed: %v", err)
	}

	if len(events) != 2 || events[0] != u.ID || events[1] != "" {
		t.Errorf("expected events [%s, \"\"], got %v", u.ID, events)
	}

	unsub()
	unsub() // idempotent

	if _, err := svc.Login(ctx, Credentials{Email: "a@x.com", Password: "p"}); err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	if len(events) != 2 {
		t.Errorf("expected no events after unsubscribe, got %v", events)
	}
}

func TestSetAvatarUploads(t *testing.T) {
	svc, st := setupService(t)
	ctx := context.Background()

	u, err := svc.Register(ctx, Credentials{Email: "a@x.com", Password: "p", Username: "a"})
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	err = svc.SetAvatar(ctx, u.ID, "🙂", strings.NewReader("image-bytes"), "avatar.png")
	if err != nil {
		t.Fatalf("SetAvatar failed: %v", err)
	}

	got, err := st.GetUserByID(ctx, u.ID)
	if err != nil {
		t.Fatalf("GetUserByID failed: %v", err)
	}
	if got.Avatar != "🙂" {
		t.Errorf("expected avatar set, got %q", got.Avatar)
	}
	if !strings.HasPrefix(got.AvatarURL, "file://") {
		t.Errorf("expected file:// avatar URL, got %q", got.AvatarURL)
	}
}
