package app

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/mmynk/lifeboard/internal/backend"
	"github.com/mmynk/lifeboard/internal/guard"
	"github.com/mmynk/lifeboard/internal/localstore"
	"github.com/mmynk/lifeboard/internal/models"
	"github.com/mmynk/lifeboard/internal/notify"
	"github.com/mmynk/lifeboard/internal/settings"
	"github.com/mmynk/lifeboard/internal/storage/sqlite"
	"github.com/mmynk/lifeboard/pkg/logging"
)

const testOrigin = "http://localhost:5173"

func newServer(t *testing.T) *httptest.Server {
	t.Helper()
	store, err := sqlite.New(filepath.Join(t.TempDir(), "app.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	handler, err := NewServer(store, ServerConfig{
		JWTSecret:   "app-test-secret",
		TokenTTL:    time.Hour,
		AdminCode:   "let-me-in",
		CORSOrigins: []string{testOrigin},
		BcryptCost:  bcrypt.MinCost,
	}, prometheus.NewRegistry(), logging.Discard())
	require.NoError(t, err)

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return server
}

func newClient(t *testing.T, server *httptest.Server) (*Client, *notify.Recorder) {
	t.Helper()
	recorder := &notify.Recorder{}
	c, err := NewRemoteClient(server.Client(), server.URL, localstore.NewMemory(), ClientOptions{
		Notifier: recorder,
		Logger:   logging.Discard(),
	})
	require.NoError(t, err)
	return c, recorder
}

func TestClientAgainstServer(t *testing.T) {
	server := newServer(t)
	c, recorder := newClient(t, server)
	ctx := context.Background()

	d, err := c.Open(ctx, "/finance/wallets")
	require.NoError(t, err)
	assert.Equal(t, guard.Unauthenticated, d.Reason)
	assert.Equal(t, "/login?redirect=%2Ffinance%2Fwallets", d.Redirect)

	wallets, err := c.Resources.Wallets.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, wallets)

	_, err = c.Backend.SignUp(ctx, backend.SignUpParams{Email: "alice@example.com", Password: "correct-horse"})
	require.NoError(t, err)

	d, err = c.Open(ctx, "/finance/wallets")
	require.NoError(t, err)
	assert.Equal(t, guard.Allowed, d.State)
	d, err = c.Open(ctx, "/admin/users")
	require.NoError(t, err)
	assert.Equal(t, guard.Denied, d.State)
	assert.Equal(t, guard.Unauthorized, d.Reason)

	wallet, err := c.Resources.Wallets.Create(ctx, models.WalletDraft{
		Name: "Cash", Currency: "USD", InitialBalance: decimal.RequireFromString("20"),
	})
	require.NoError(t, err)
	assert.Nil(t, wallet.OrganizationID)

	wallets, err = c.Resources.Wallets.List(ctx)
	require.NoError(t, err)
	require.Len(t, wallets, 1)
	assert.Equal(t, "Cash", wallets[0].Name)
	assert.Empty(t, recorder.Errors())

	org, err := c.Resources.Organizations.Create(ctx, models.OrganizationDraft{Name: "Household"})
	require.NoError(t, err)
	assert.Equal(t, org.ID, c.Tenancy.Current().ID())

	wallets, err = c.Resources.Wallets.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, wallets, "organization scope hides personal wallets")
}

func TestSettingsToggleSignsOut(t *testing.T) {
	server := newServer(t)
	c, _ := newClient(t, server)
	ctx := context.Background()

	_, err := c.Backend.SignUp(ctx, backend.SignUpParams{Email: "bob@example.com", Password: "correct-horse"})
	require.NoError(t, err)

	require.NoError(t, c.Settings.SetEnabled(ctx, settings.TVShows, false))
	s, err := c.Backend.Session(ctx)
	require.NoError(t, err)
	assert.Nil(t, s)
}

func TestPages(t *testing.T) {
	server := newServer(t)
	httpClient := server.Client()
	httpClient.CheckRedirect = func(*http.Request, []*http.Request) error { return http.ErrUseLastResponse }

	resp, err := httpClient.Get(server.URL + "/finance/wallets")
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusFound, resp.StatusCode)
	loc, err := url.Parse(resp.Header.Get("Location"))
	require.NoError(t, err)
	assert.Equal(t, "/login", loc.Path)
	assert.Equal(t, "/finance/wallets", loc.Query().Get("redirect"))

	resp, err = httpClient.Get(server.URL + "/login?redirect=%2Ffinance%2Fwallets")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestMetricsAndCORS(t *testing.T) {
	server := newServer(t)
	c, _ := newClient(t, server)
	_, err := c.Backend.SignIn(context.Background(), "nobody@example.com", "whatever-password")
	require.Error(t, err)

	resp, err := server.Client().Get(server.URL + "/metrics")
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)
	assert.Contains(t, string(body), "lifeboard_rpc_requests_total")

	req, err := http.NewRequest(http.MethodOptions, server.URL+"/lifeboard.v1.DataService/Select", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", testOrigin)
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	req.Header.Set("Access-Control-Request-Headers", "authorization,content-type")
	resp, err = server.Client().Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, testOrigin, resp.Header.Get("Access-Control-Allow-Origin"))
}
