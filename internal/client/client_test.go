package client

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"connectrpc.com/connect"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/mmynk/lifeboard/internal/apperr"
	"github.com/mmynk/lifeboard/internal/auth"
	"github.com/mmynk/lifeboard/internal/backend"
	"github.com/mmynk/lifeboard/internal/localstore"
	"github.com/mmynk/lifeboard/internal/middleware"
	"github.com/mmynk/lifeboard/internal/models"
	"github.com/mmynk/lifeboard/internal/policy"
	"github.com/mmynk/lifeboard/internal/service"
	"github.com/mmynk/lifeboard/internal/storage"
	"github.com/mmynk/lifeboard/internal/storage/sqlite"
	"github.com/mmynk/lifeboard/pkg/logging"
)

const adminCode = "open-sesame"

func newTestServer(t *testing.T) (*httptest.Server, *sqlite.SQLiteStore) {
	t.Helper()
	store, err := sqlite.New(filepath.Join(t.TempDir(), "client.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	logger := logging.Discard()
	jwtManager := auth.NewJWTManager("client-test-secret", time.Hour)
	authenticator := auth.NewPasswordAuthenticator(store).WithCost(bcrypt.MinCost)
	required := connect.WithInterceptors(middleware.RequireAuth(jwtManager))
	optional := connect.WithInterceptors(middleware.OptionalAuth(jwtManager))

	mux := http.NewServeMux()
	mux.Handle(service.NewDataServiceHandler(service.NewDataService(policy.New(store, logger), logger), required))
	mux.Handle(service.NewRoleServiceHandler(service.NewRoleService(store, logger), required))
	mux.Handle(service.NewAuthServiceHandler(service.NewAuthService(authenticator, jwtManager, store,
		service.AuthConfig{AdminCode: adminCode}, logger), optional))

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server, store
}

func TestRemote_SessionLifecycle(t *testing.T) {
	server, _ := newTestServer(t)
	ctx := context.Background()
	storage := localstore.NewMemory()
	remote := NewRemote(server.Client(), server.URL, storage, logging.Discard())

	s, err := remote.Session(ctx)
	require.NoError(t, err)
	assert.Nil(t, s)

	signedUp, err := remote.SignUp(ctx, backend.SignUpParams{
		Email: "alice@example.com", DisplayName: "Alice", Password: "correct-horse", AdminCode: adminCode,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, signedUp.AccessToken)

	_, ok, _ := storage.Get(SessionKey)
	assert.True(t, ok, "session is persisted")

	restored := NewRemote(server.Client(), server.URL, storage, logging.Discard())
	s, err = restored.Session(ctx)
	require.NoError(t, err)
	require.NotNil(t, s)
	assert.Equal(t, signedUp.UserID, s.UserID)

	roles, err := restored.Roles(ctx, s.UserID)
	require.NoError(t, err)
	assert.Equal(t, []string{models.RoleAdmin}, roles)

	require.NoError(t, restored.SignOut(ctx))
	_, ok, _ = storage.Get(SessionKey)
	assert.False(t, ok)
	s, err = restored.Session(ctx)
	require.NoError(t, err)
	assert.Nil(t, s)
}

func TestRemote_ExpiredSessionIsDropped(t *testing.T) {
	server, _ := newTestServer(t)
	ctx := context.Background()
	storage := localstore.NewMemory()
	remote := NewRemote(server.Client(), server.URL, storage, logging.Discard())

	_, err := remote.SignUp(ctx, backend.SignUpParams{Email: "bob@example.com", Password: "correct-horse"})
	require.NoError(t, err)

	remote.now = func() time.Time { return time.Now().Add(48 * time.Hour) }
	s, err := remote.Session(ctx)
	require.NoError(t, err)
	assert.Nil(t, s)
	_, ok, _ := storage.Get(SessionKey)
	assert.False(t, ok)
}

func TestRemote_Tables(t *testing.T) {
	server, _ := newTestServer(t)
	ctx := context.Background()
	remote := NewRemote(server.Client(), server.URL, localstore.NewMemory(), logging.Discard())

	_, err := remote.Select(ctx, backend.Query{Table: storage.TableWallets})
	assert.True(t, apperr.Is(err, apperr.KindAuth), "anonymous select: %v", err)

	_, err = remote.SignIn(ctx, "nobody@example.com", "whatever-password")
	assert.True(t, apperr.Is(err, apperr.KindAuth), "unknown user: %v", err)

	_, err = remote.SignUp(ctx, backend.SignUpParams{Email: "carol@example.com", Password: "correct-horse"})
	require.NoError(t, err)

	wallet, err := remote.Insert(ctx, storage.TableWallets, backend.Row{
		"name": "Cash", "currency": "USD", "initial_balance": "12.5",
	})
	require.NoError(t, err)
	decoded, err := backend.DecodeRow[models.Wallet](wallet)
	require.NoError(t, err)
	assert.Equal(t, "12.5", decoded.InitialBalance.String())
	assert.False(t, decoded.CreatedAt.IsZero())

	rows, err := remote.Select(ctx, backend.Query{
		Table:   storage.TableWallets,
		Filters: []backend.Filter{backend.IsNull("organization_id")},
	})
	require.NoError(t, err)
	assert.Len(t, rows, 1)

	_, err = remote.Update(ctx, storage.TableWallets, []backend.Filter{backend.Eq("id", decoded.ID)}, backend.Row{"bogus": 1})
	var appErr *apperr.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, apperr.KindValidation, appErr.Kind)
	assert.Equal(t, "bogus", appErr.Field)

	_, err = remote.Select(ctx, backend.Query{
		Table:   storage.TableWallets,
		Filters: []backend.Filter{backend.Eq("organization_id", "not-mine")},
	})
	assert.True(t, apperr.Is(err, apperr.KindAccess), "foreign org: %v", err)

	n, err := remote.Delete(ctx, storage.TableWallets, []backend.Filter{backend.Eq("id", decoded.ID)})
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestRemote_UnreachableServerIsTransient(t *testing.T) {
	remote := NewRemote(nil, "http://127.0.0.1:1", localstore.NewMemory(), logging.Discard())
	_, err := remote.SignIn(context.Background(), "a@example.com", "password1")
	assert.True(t, apperr.Is(err, apperr.KindTransientNetwork), "got %v", err)
}

func TestLocal_AdminCode(t *testing.T) {
	_, store := newTestServer(t)
	ctx := context.Background()
	local := NewLocal(store, logging.Discard(), WithAdminCode(adminCode),
		WithAuthenticator(auth.NewPasswordAuthenticator(store).WithCost(bcrypt.MinCost)))

	_, err := local.SignUp(ctx, backend.SignUpParams{Email: "eve@example.com", Password: "correct-horse", AdminCode: "nope"})
	assert.True(t, apperr.Is(err, apperr.KindAccess))

	s, err := local.SignUp(ctx, backend.SignUpParams{Email: "eve@example.com", Password: "correct-horse", AdminCode: adminCode})
	require.NoError(t, err)
	roles, err := local.Roles(ctx, s.UserID)
	require.NoError(t, err)
	assert.Equal(t, []string{models.RoleAdmin}, roles)

	require.NoError(t, local.SignOut(ctx))
	_, err = local.Roles(ctx, s.UserID)
	assert.True(t, apperr.Is(err, apperr.KindAuth))
}
