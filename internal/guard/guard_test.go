package guard

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmynk/lifeboard/internal/apperr"
	"github.com/mmynk/lifeboard/internal/auth"
	"github.com/mmynk/lifeboard/internal/backend"
	"github.com/mmynk/lifeboard/internal/models"
	"github.com/mmynk/lifeboard/internal/service"
	"github.com/mmynk/lifeboard/internal/storage/sqlite"
	"github.com/mmynk/lifeboard/pkg/logging"
)

type fakeIdentity struct {
	session    *backend.Session
	sessionErr error
	roles      []string
	release    chan struct{}
	roleCalls  atomic.Int32
}

func (f *fakeIdentity) Session(ctx context.Context) (*backend.Session, error) {
	if f.release != nil {
		select {
		case <-f.release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return f.session, f.sessionErr
}

func (f *fakeIdentity) Roles(context.Context) ([]string, error) {
	f.roleCalls.Add(1)
	return f.roles, nil
}

func signedIn(roles ...string) *fakeIdentity {
	return &fakeIdentity{session: &backend.Session{UserID: "u1", Email: "u1@example.com"}, roles: roles}
}

func newGate(t *testing.T) *Gate {
	t.Helper()
	routes, err := DefaultRoutes()
	require.NoError(t, err)
	return New(routes, logging.Discard())
}

func TestDefaultRoutes(t *testing.T) {
	routes, err := DefaultRoutes()
	require.NoError(t, err)

	tests := []struct {
		path      string
		protected bool
		user      bool
		admin     bool
	}{
		{path: "/login", protected: false},
		{path: "/assets/app.js", protected: false},
		{path: "/", protected: true, user: true, admin: true},
		{path: "/finance/wallets", protected: true, user: true, admin: true},
		{path: "/tv/universes/42", protected: true, user: true, admin: true},
		{path: "/admin", protected: true, user: false, admin: true},
		{path: "/admin/users", protected: true, user: false, admin: true},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.protected, routes.Protected(tt.path))
			if !tt.protected {
				return
			}
			ok, err := routes.Allows(nil, tt.path)
			require.NoError(t, err)
			assert.Equal(t, tt.user, ok, "plain user")
			ok, err = routes.Allows([]string{models.RoleAdmin}, tt.path)
			require.NoError(t, err)
			assert.Equal(t, tt.admin, ok, "admin")
		})
	}
}

func TestLoadRoutes_Invalid(t *testing.T) {
	tests := map[string]string{
		"bad yaml":        "routes: [",
		"missing role":    "routes:\n  - paths: [/x]\n",
		"undeclared role": "routes:\n  - role: editor\n    paths: [/x]\n",
		"relative path":   "routes:\n  - role: authenticated\n    paths: [x]\n",
	}
	for name, data := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := LoadRoutes([]byte(data))
			assert.Error(t, err)
		})
	}
}

func TestGate_Resolve(t *testing.T) {
	gate := newGate(t)
	ctx := context.Background()

	tests := []struct {
		name     string
		target   string
		identity *fakeIdentity
		state    State
		reason   Reason
	}{
		{"public route", "/login", &fakeIdentity{}, Allowed, NoReason},
		{"no session", "/finance/wallets", &fakeIdentity{}, Denied, Unauthenticated},
		{"rejected session", "/finance", &fakeIdentity{sessionErr: apperr.Auth("expired")}, Denied, Unauthenticated},
		{"signed in", "/finance/wallets", signedIn(), Allowed, NoReason},
		{"non-admin on admin route", "/admin/users", signedIn(), Denied, Unauthorized},
		{"admin on admin route", "/admin/users", signedIn(models.RoleAdmin), Allowed, NoReason},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := gate.Resolve(ctx, tt.target, tt.identity)
			require.NoError(t, err)
			assert.Equal(t, tt.state, d.State)
			assert.Equal(t, tt.reason, d.Reason)
		})
	}
}

func TestGate_UnauthenticatedRedirectKeepsLocation(t *testing.T) {
	d, err := newGate(t).Resolve(context.Background(), "/finance/wallets?month=10", &fakeIdentity{})
	require.NoError(t, err)

	u, err := url.Parse(d.Redirect)
	require.NoError(t, err)
	assert.Equal(t, LoginPath, u.Path)
	assert.Equal(t, "/finance/wallets?month=10", u.Query().Get(RedirectParam))
}

func TestGate_SessionFailureIsAnError(t *testing.T) {
	_, err := newGate(t).Resolve(context.Background(), "/tv", &fakeIdentity{sessionErr: apperr.Transient(errors.New("offline"))})
	assert.True(t, apperr.Is(err, apperr.KindTransientNetwork))
}

func TestGate_RolesAreFetchedEveryTime(t *testing.T) {
	gate := newGate(t)
	id := signedIn()
	for range 3 {
		_, err := gate.Resolve(context.Background(), "/settings", id)
		require.NoError(t, err)
	}
	assert.Equal(t, int32(3), id.roleCalls.Load())
}

func TestCheck_LoadingUntilResolved(t *testing.T) {
	id := signedIn()
	id.release = make(chan struct{})

	check := newGate(t).Start(context.Background(), "/tv", id)
	assert.Equal(t, Loading, check.Decision().State)

	close(id.release)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	d, err := check.Wait(ctx)
	require.NoError(t, err)
	assert.Equal(t, Allowed, d.State)
	assert.Equal(t, Allowed, check.Decision().State)
}

func TestSafeRedirect(t *testing.T) {
	tests := map[string]string{
		"":                     "/",
		"/finance/wallets":     "/finance/wallets",
		"/tv?show=1":           "/tv?show=1",
		"https://evil.example": "/",
		"//evil.example/path":  "/",
		`/\evil.example`:       "/",
		"finance":              "/",
	}
	for in, want := range tests {
		assert.Equal(t, want, SafeRedirect(in), "SafeRedirect(%q)", in)
	}
}

func serve(gate *Gate, id Identity, target string) *httptest.ResponseRecorder {
	page := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("page"))
	})
	handler := gate.Middleware(func(*http.Request) Identity { return id })(page)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func TestMiddleware_UnauthenticatedIsRedirected(t *testing.T) {
	rec := serve(newGate(t), &fakeIdentity{}, "/finance/wallets")

	require.Equal(t, http.StatusFound, rec.Code)
	loc, err := url.Parse(rec.Header().Get("Location"))
	require.NoError(t, err)
	assert.Equal(t, "/login", loc.Path)
	assert.Equal(t, "/finance/wallets", loc.Query().Get("redirect"))
}

func TestMiddleware_NonAdminSeesNotice(t *testing.T) {
	rec := serve(newGate(t), signedIn(), "/admin/users")

	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Empty(t, rec.Header().Get("Location"))
	assert.Contains(t, rec.Body.String(), NotPermittedMessage)
}

func TestMiddleware_AllowedAndPublic(t *testing.T) {
	gate := newGate(t)

	rec := serve(gate, signedIn(models.RoleAdmin), "/admin/users")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "page", rec.Body.String())

	rec = serve(gate, &fakeIdentity{}, "/login")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestTokenIdentity(t *testing.T) {
	store, err := sqlite.New(filepath.Join(t.TempDir(), "guard.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	ctx := context.Background()

	user := models.NewUser("admin@example.com", "Admin", "hash")
	require.NoError(t, store.CreateUser(ctx, user))
	require.NoError(t, service.GrantRole(ctx, store, user.ID, models.RoleAdmin))

	jwt := auth.NewJWTManager("guard-secret", time.Hour)
	token, _, err := jwt.Generate(user)
	require.NoError(t, err)
	identify := RequestIdentity(jwt, store)

	req := httptest.NewRequest(http.MethodGet, "/admin", nil)
	req.AddCookie(&http.Cookie{Name: auth.SessionCookie, Value: token})
	id := identify(req)
	s, err := id.Session(ctx)
	require.NoError(t, err)
	require.NotNil(t, s)
	assert.Equal(t, user.ID, s.UserID)
	roles, err := id.Roles(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{models.RoleAdmin}, roles)

	rec := httptest.NewRecorder()
	newGate(t).Middleware(identify)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})).ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	bogus := identify(httptest.NewRequest(http.MethodGet, "/admin", nil))
	s, err = bogus.Session(ctx)
	require.NoError(t, err)
	assert.Nil(t, s)
}
