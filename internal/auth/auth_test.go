package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/mmynk/lifeboard/internal/apperr"
	"github.com/mmynk/lifeboard/internal/models"
)

type memoryUsers struct {
	mu    sync.Mutex
	users map[string]*models.User
}

func (m *memoryUsers) CreateUser(_ context.Context, user *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.users == nil {
		m.users = map[string]*models.User{}
	}
	m.users[user.Email] = user
	return nil
}

func (m *memoryUsers) GetUserByEmail(_ context.Context, email string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.users[email], nil
}

func (m *memoryUsers) GetUserByID(_ context.Context, id string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.ID == id {
			return u, nil
		}
	}
	return nil, nil
}

func TestPasswordAuthenticator(t *testing.T) {
	ctx := context.Background()
	a := NewPasswordAuthenticator(&memoryUsers{}).WithCost(bcrypt.MinCost)

	user, err := a.Register(ctx, "  Alice@Example.com ", "", "correct horse")
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if user.Email != "alice@example.com" {
		t.Errorf("Email = %q, want normalized", user.Email)
	}
	if user.DisplayName != "alice" {
		t.Errorf("DisplayName = %q, want alice", user.DisplayName)
	}

	tests := []struct {
		name     string
		email    string
		password string
		wantErr  error
	}{
		{"weak password", "bob@example.com", "short", ErrWeakPassword},
		{"bad email", "not-an-email", "long enough", ErrInvalidEmail},
		{"duplicate", "alice@example.com", "long enough", ErrEmailExists},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := a.Register(ctx, tt.email, "", tt.password)
			if err != tt.wantErr {
				t.Errorf("Register error = %v, want %v", err, tt.wantErr)
			}
		})
	}

	if _, err := a.Authenticate(ctx, "ALICE@example.com", "correct horse"); err != nil {
		t.Errorf("Authenticate failed: %v", err)
	}
	if _, err := a.Authenticate(ctx, "alice@example.com", "wrong"); err != ErrInvalidCredentials {
		t.Errorf("wrong password error = %v", err)
	}
	if _, err := a.Authenticate(ctx, "nobody@example.com", "whatever1"); err != ErrInvalidCredentials {
		t.Errorf("unknown user error = %v", err)
	}
}

func TestJWTManager(t *testing.T) {
	m := NewJWTManager("test-secret-key-that-is-long-enough", time.Hour)
	user := models.NewUser("alice@example.com", "Alice", "hash")

	token, expires, err := m.Generate(user)
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if time.Until(expires) <= 0 {
		t.Error("expected expiry in the future")
	}

	claims, err := m.Validate(token)
	if err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
	if claims.UserID != user.ID || claims.DisplayName != "Alice" {
		t.Errorf("claims = %+v", claims)
	}

	other := NewJWTManager("a-different-secret-entirely-here", time.Hour)
	if _, err := other.Validate(token); err == nil {
		t.Error("expected error for token signed with another key")
	}

	expired := NewJWTManager("test-secret-key-that-is-long-enough", -time.Minute)
	old, _, _ := expired.Generate(user)
	if _, err := m.Validate(old); err == nil {
		t.Error("expected error for expired token")
	}
}

func TestTokenFromRequest(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	if got := TokenFromRequest(r); got != "" {
		t.Errorf("empty request token = %q", got)
	}

	r.AddCookie(&http.Cookie{Name: SessionCookie, Value: "cookie-token"})
	if got := TokenFromRequest(r); got != "cookie-token" {
		t.Errorf("cookie token = %q", got)
	}

	r.Header.Set("Authorization", "Bearer header-token")
	if got := TokenFromRequest(r); got != "header-token" {
		t.Errorf("bearer token = %q", got)
	}

	h := http.Header{}
	h.Set("Authorization", "Basic abc")
	if _, ok, err := BearerToken(h); !ok || err == nil {
		t.Error("expected malformed header error")
	}
}

func TestSessionCookieFor(t *testing.T) {
	expires := time.Now().Add(time.Hour)
	c := SessionCookieFor("tok", expires, true)
	if c.Name != SessionCookie || c.Value != "tok" || !c.HttpOnly || !c.Secure || c.MaxAge != 0 {
		t.Errorf("cookie = %+v", c)
	}
	if cleared := SessionCookieFor("", time.Unix(0, 0), false); cleared.MaxAge >= 0 {
		t.Errorf("clearing cookie MaxAge = %d", cleared.MaxAge)
	}
}

func TestAdminCodeMatches(t *testing.T) {
	tests := []struct {
		configured, given string
		want              bool
	}{
		{"let-me-in", "let-me-in", true},
		{"let-me-in", "let-me-out", false},
		{"", "", false},
		{"", "anything", false},
	}
	for _, tt := range tests {
		if got := AdminCodeMatches(tt.configured, tt.given); got != tt.want {
			t.Errorf("AdminCodeMatches(%q, %q) = %v, want %v", tt.configured, tt.given, got, tt.want)
		}
	}
}

func TestSignInError(t *testing.T) {
	if err := SignInError(ErrWeakPassword); err != ErrInvalidCredentials {
		t.Errorf("validation failure = %v, want ErrInvalidCredentials", err)
	}
	fault := errors.New("disk on fire")
	if err := SignInError(fault); err != fault {
		t.Errorf("store fault = %v, want passthrough", err)
	}
	if !apperr.Is(SignInError(apperr.NotFound("no such user")), apperr.KindAuth) {
		t.Error("not found should read as invalid credentials")
	}
}
