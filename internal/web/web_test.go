package web

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/mmynk/lifeboard/internal/auth"
	"github.com/mmynk/lifeboard/internal/storage/sqlite"
	"github.com/mmynk/lifeboard/pkg/logging"
)

func newLoginHandler(t *testing.T) (*LoginHandler, *auth.JWTManager) {
	t.Helper()
	store, err := sqlite.New(filepath.Join(t.TempDir(), "web.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	authenticator := auth.NewPasswordAuthenticator(store).WithCost(bcrypt.MinCost)
	_, err = authenticator.Register(context.Background(), "alice@example.com", "Alice", "correct-horse")
	require.NoError(t, err)

	jwtManager := auth.NewJWTManager("web-secret", time.Hour)
	return NewLoginHandler(authenticator, jwtManager, false, logging.Discard()), jwtManager
}

func postLogin(h http.Handler, form url.Values) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func sessionCookie(rec *httptest.ResponseRecorder) *http.Cookie {
	for _, c := range rec.Result().Cookies() {
		if c.Name == auth.SessionCookie {
			return c
		}
	}
	return nil
}

func TestLogin_FormKeepsRedirect(t *testing.T) {
	h, _ := newLoginHandler(t)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/login?redirect=%2Ffinance%2Fwallets", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `value="/finance/wallets"`)
}

func TestLogin_ReturnsToOriginalLocation(t *testing.T) {
	h, jwtManager := newLoginHandler(t)
	rec := postLogin(h, url.Values{
		"email":    {"alice@example.com"},
		"password": {"correct-horse"},
		"redirect": {"/finance/wallets"},
	})

	require.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/finance/wallets", rec.Header().Get("Location"))
	cookie := sessionCookie(rec)
	require.NotNil(t, cookie)
	assert.True(t, cookie.HttpOnly)
	claims, err := jwtManager.Validate(cookie.Value)
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", claims.Email)
}

func TestLogin_RejectsForeignRedirect(t *testing.T) {
	h, _ := newLoginHandler(t)
	rec := postLogin(h, url.Values{
		"email":    {"alice@example.com"},
		"password": {"correct-horse"},
		"redirect": {"https://evil.example/"},
	})
	require.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/", rec.Header().Get("Location"))
}

func TestLogin_WrongPassword(t *testing.T) {
	h, _ := newLoginHandler(t)
	rec := postLogin(h, url.Values{
		"email":    {"alice@example.com"},
		"password": {"wrong-password"},
		"redirect": {"/tv"},
	})

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Nil(t, sessionCookie(rec))
	assert.Contains(t, rec.Body.String(), auth.ErrInvalidCredentials.Message)
	assert.Contains(t, rec.Body.String(), `value="/tv"`)
}

func TestLogin_SignedInUserSkipsForm(t *testing.T) {
	h, jwtManager := newLoginHandler(t)
	rec := postLogin(h, url.Values{"email": {"alice@example.com"}, "password": {"correct-horse"}})
	cookie := sessionCookie(rec)
	require.NotNil(t, cookie)
	_, err := jwtManager.Validate(cookie.Value)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/login?redirect=/tv", nil)
	req.AddCookie(cookie)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/tv", rec.Header().Get("Location"))
}

func TestLogout(t *testing.T) {
	rec := httptest.NewRecorder()
	LogoutHandler(false).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/logout", nil))

	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/login", rec.Header().Get("Location"))
	cookie := sessionCookie(rec)
	require.NotNil(t, cookie)
	assert.Empty(t, cookie.Value)
	assert.Less(t, cookie.MaxAge, 0)
}

func TestStatic(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "index.html"), []byte("<app>"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "app.js"), []byte("console.log(1)"), 0o644))

	h, err := Static(dir, logging.Discard())
	require.NoError(t, err)

	tests := []struct {
		path   string
		status int
		body   string
	}{
		{"/", http.StatusOK, "<app>"},
		{"/app.js", http.StatusOK, "console.log(1)"},
		{"/finance/wallets", http.StatusOK, "<app>"},
		{"/lifeboard.v1.Unknown/Call", http.StatusNotFound, ""},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			rec := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.URL.Path = tt.path
			h.ServeHTTP(rec, req)
			assert.Equal(t, tt.status, rec.Code)
			if tt.body != "" {
				assert.Equal(t, tt.body, rec.Body.String())
			}
		})
	}
}
