package service

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"connectrpc.com/connect"
	"golang.org/x/crypto/bcrypt"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/mmynk/lifeboard/internal/apperr"
	"github.com/mmynk/lifeboard/internal/auth"
	"github.com/mmynk/lifeboard/internal/backend"
	"github.com/mmynk/lifeboard/internal/middleware"
	"github.com/mmynk/lifeboard/internal/models"
	"github.com/mmynk/lifeboard/internal/policy"
	"github.com/mmynk/lifeboard/internal/storage"
	"github.com/mmynk/lifeboard/internal/storage/sqlite"
	"github.com/mmynk/lifeboard/internal/wire"
	"github.com/mmynk/lifeboard/pkg/logging"
)

const testAdminCode = "let-me-in"

type testServer struct {
	url   string
	store *sqlite.SQLiteStore
}

// setupTestServer creates a test server with all services over a temp database.
func setupTestServer(t *testing.T) (*testServer, func()) {
	t.Helper()

	tmpFile, err := os.CreateTemp("", "test-*.db")
	if err != nil {
		t.Fatalf("failed to create temp file: %v", err)
	}
	tmpFile.Close()

	store, err := sqlite.New(tmpFile.Name())
	if err != nil {
		os.Remove(tmpFile.Name())
		t.Fatalf("failed to create store: %v", err)
	}

	logger := logging.Discard()
	jwtManager := auth.NewJWTManager("test-secret", time.Hour)
	authenticator := auth.NewPasswordAuthenticator(store).WithCost(bcrypt.MinCost)

	required := connect.WithInterceptors(middleware.RequireAuth(jwtManager))
	optional := connect.WithInterceptors(middleware.OptionalAuth(jwtManager))

	mux := http.NewServeMux()
	mux.Handle(NewDataServiceHandler(NewDataService(policy.New(store, logger), logger), required))
	mux.Handle(NewRoleServiceHandler(NewRoleService(store, logger), required))
	mux.Handle(NewAuthServiceHandler(NewAuthService(authenticator, jwtManager, store,
		AuthConfig{AdminCode: testAdminCode}, logger), optional))

	server := httptest.NewServer(mux)
	cleanup := func() {
		server.Close()
		store.Close()
		os.Remove(tmpFile.Name())
	}
	return &testServer{url: server.URL, store: store}, cleanup
}

func (s *testServer) call(t *testing.T, procedure, token string, fields map[string]*structpb.Value) (*structpb.Struct, *connect.Response[structpb.Struct], error) {
	t.Helper()
	client := connect.NewClient[structpb.Struct, structpb.Struct](http.DefaultClient, s.url+procedure)
	req := connect.NewRequest(&structpb.Struct{Fields: fields})
	if token != "" {
		req.Header().Set("Authorization", "Bearer "+token)
	}
	resp, err := client.CallUnary(context.Background(), req)
	if err != nil {
		return nil, nil, err
	}
	return resp.Msg, resp, nil
}

func (s *testServer) signUp(t *testing.T, email, adminCode string) *backend.Session {
	t.Helper()
	msg, _, err := s.call(t, wire.SignUpProcedure, "", map[string]*structpb.Value{
		wire.FieldEmail:     structpb.NewStringValue(email),
		wire.FieldName:      structpb.NewStringValue("Tester"),
		wire.FieldPassword:  structpb.NewStringValue("correct-horse"),
		wire.FieldAdminCode: structpb.NewStringValue(adminCode),
	})
	if err != nil {
		t.Fatalf("SignUp failed: %v", err)
	}
	session, err := wire.DecodeSession(msg.GetFields()[wire.FieldSession])
	if err != nil || session == nil {
		t.Fatalf("SignUp session = %v, %v", session, err)
	}
	return session
}

func TestSignUpAndSignIn(t *testing.T) {
	srv, cleanup := setupTestServer(t)
	defer cleanup()

	session := srv.signUp(t, "alice@example.com", "")
	if session.AccessToken == "" {
		t.Error("expected access token")
	}

	msg, resp, err := srv.call(t, wire.SignInProcedure, "", map[string]*structpb.Value{
		wire.FieldEmail:    structpb.NewStringValue("ALICE@example.com"),
		wire.FieldPassword: structpb.NewStringValue("correct-horse"),
	})
	if err != nil {
		t.Fatalf("SignIn failed: %v", err)
	}
	signedIn, _ := wire.DecodeSession(msg.GetFields()[wire.FieldSession])
	if signedIn == nil || signedIn.UserID != session.UserID {
		t.Errorf("SignIn session = %+v, want user %s", signedIn, session.UserID)
	}
	if resp.Header().Get("Set-Cookie") == "" {
		t.Error("expected session cookie")
	}

	_, _, err = srv.call(t, wire.SignInProcedure, "", map[string]*structpb.Value{
		wire.FieldEmail:    structpb.NewStringValue("alice@example.com"),
		wire.FieldPassword: structpb.NewStringValue("wrong-password"),
	})
	if connect.CodeOf(err) != connect.CodeUnauthenticated {
		t.Errorf("bad password code = %v, want unauthenticated", connect.CodeOf(err))
	}
}

func TestSignUpValidation(t *testing.T) {
	srv, cleanup := setupTestServer(t)
	defer cleanup()

	_, _, err := srv.call(t, wire.SignUpProcedure, "", map[string]*structpb.Value{
		wire.FieldEmail:    structpb.NewStringValue("bob@example.com"),
		wire.FieldPassword: structpb.NewStringValue("short"),
	})
	if connect.CodeOf(err) != connect.CodeInvalidArgument {
		t.Fatalf("weak password code = %v, want invalid argument", connect.CodeOf(err))
	}
	classified := apperr.FromConnect(err)
	var appErr *apperr.Error
	if !errors.As(classified, &appErr) || appErr.Field != "password" {
		t.Errorf("expected password field error, got %v", classified)
	}
}

func TestGetSession(t *testing.T) {
	srv, cleanup := setupTestServer(t)
	defer cleanup()

	msg, _, err := srv.call(t, wire.GetSessionProcedure, "", nil)
	if err != nil {
		t.Fatalf("GetSession failed: %v", err)
	}
	if s, _ := wire.DecodeSession(msg.GetFields()[wire.FieldSession]); s != nil {
		t.Errorf("anonymous session = %+v, want nil", s)
	}

	session := srv.signUp(t, "carol@example.com", "")
	msg, _, err = srv.call(t, wire.GetSessionProcedure, session.AccessToken, nil)
	if err != nil {
		t.Fatalf("GetSession failed: %v", err)
	}
	s, _ := wire.DecodeSession(msg.GetFields()[wire.FieldSession])
	if s == nil || s.Email != "carol@example.com" || s.DisplayName != "Tester" {
		t.Errorf("session = %+v", s)
	}
}

func TestAdminSignUp(t *testing.T) {
	srv, cleanup := setupTestServer(t)
	defer cleanup()

	_, _, err := srv.call(t, wire.SignUpProcedure, "", map[string]*structpb.Value{
		wire.FieldEmail:     structpb.NewStringValue("mallory@example.com"),
		wire.FieldPassword:  structpb.NewStringValue("correct-horse"),
		wire.FieldAdminCode: structpb.NewStringValue("guess"),
	})
	if connect.CodeOf(err) != connect.CodePermissionDenied {
		t.Fatalf("wrong admin code = %v, want permission denied", connect.CodeOf(err))
	}
	if u, _ := srv.store.GetUserByEmail(context.Background(), "mallory@example.com"); u != nil {
		t.Error("user must not be created with a wrong admin code")
	}

	admin := srv.signUp(t, "root@example.com", testAdminCode)
	user := srv.signUp(t, "dave@example.com", "")

	roles := func(token, userID string) ([]string, error) {
		msg, _, err := srv.call(t, wire.ListRolesProcedure, token, map[string]*structpb.Value{
			wire.FieldUserID: structpb.NewStringValue(userID),
		})
		if err != nil {
			return nil, err
		}
		return wire.Strings(msg.GetFields()[wire.FieldRoles]), nil
	}

	got, err := roles(admin.AccessToken, admin.UserID)
	if err != nil || len(got) != 1 || got[0] != models.RoleAdmin {
		t.Errorf("admin roles = %v, %v", got, err)
	}
	got, err = roles(user.AccessToken, "")
	if err != nil || len(got) != 0 {
		t.Errorf("user roles = %v, %v", got, err)
	}
	if _, err := roles(user.AccessToken, admin.UserID); connect.CodeOf(err) != connect.CodePermissionDenied {
		t.Errorf("reading others' roles = %v, want permission denied", err)
	}
	if _, err := roles(admin.AccessToken, user.UserID); err != nil {
		t.Errorf("admin reading roles failed: %v", err)
	}
}

func TestDataService(t *testing.T) {
	srv, cleanup := setupTestServer(t)
	defer cleanup()
	session := srv.signUp(t, "erin@example.com", "")
	token := session.AccessToken

	_, _, err := srv.call(t, wire.SelectProcedure, "", map[string]*structpb.Value{
		wire.FieldTable: structpb.NewStringValue(storage.TableWallets),
	})
	if connect.CodeOf(err) != connect.CodeUnauthenticated {
		t.Fatalf("anonymous select code = %v, want unauthenticated", connect.CodeOf(err))
	}

	row, _ := wire.EncodeRow(backend.Row{"name": "Cash", "currency": "USD", "initial_balance": "25.50"})
	msg, _, err := srv.call(t, wire.InsertProcedure, token, map[string]*structpb.Value{
		wire.FieldTable: structpb.NewStringValue(storage.TableWallets),
		wire.FieldRow:   structpb.NewStructValue(row),
	})
	if err != nil {
		t.Fatalf("Insert failed: %v", err)
	}
	inserted := wire.DecodeRow(msg.GetFields()[wire.FieldRow].GetStructValue())
	if inserted["user_id"] != session.UserID || inserted["organization_id"] != nil {
		t.Errorf("inserted wallet = %v", inserted)
	}
	walletID := inserted["id"].(string)

	query, _ := wire.EncodeQuery(backend.Query{
		Table:   storage.TableWallets,
		Filters: []backend.Filter{backend.IsNull("organization_id")},
		Order:   []backend.Order{backend.Desc("created_at")},
	})
	msg, _, err = srv.call(t, wire.SelectProcedure, token, query.GetFields())
	if err != nil {
		t.Fatalf("Select failed: %v", err)
	}
	rows, _ := wire.DecodeRows(msg.GetFields()[wire.FieldRows])
	if len(rows) != 1 || rows[0]["initial_balance"] != "25.5" && rows[0]["initial_balance"] != "25.50" {
		t.Errorf("rows = %v", rows)
	}

	filters, _ := wire.EncodeFilters([]backend.Filter{backend.Eq("id", walletID)})
	values, _ := wire.EncodeRow(backend.Row{"name": "Petty cash"})
	msg, _, err = srv.call(t, wire.UpdateProcedure, token, map[string]*structpb.Value{
		wire.FieldTable:   structpb.NewStringValue(storage.TableWallets),
		wire.FieldFilters: filters,
		wire.FieldValues:  structpb.NewStructValue(values),
	})
	if err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	updated, _ := wire.DecodeRows(msg.GetFields()[wire.FieldRows])
	if len(updated) != 1 || updated[0]["name"] != "Petty cash" {
		t.Errorf("updated = %v", updated)
	}

	msg, _, err = srv.call(t, wire.DeleteProcedure, token, map[string]*structpb.Value{
		wire.FieldTable:   structpb.NewStringValue(storage.TableWallets),
		wire.FieldFilters: filters,
	})
	if err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if n := msg.GetFields()[wire.FieldCount].GetNumberValue(); n != 1 {
		t.Errorf("deleted %v rows, want 1", n)
	}

	_, _, err = srv.call(t, wire.DeleteProcedure, token, map[string]*structpb.Value{
		wire.FieldTable:   structpb.NewStringValue(storage.TableWallets),
		wire.FieldFilters: filters,
	})
	if connect.CodeOf(err) != connect.CodeNotFound {
		t.Errorf("second delete code = %v, want not found", connect.CodeOf(err))
	}
}

func TestGrantRoleIsIdempotent(t *testing.T) {
	srv, cleanup := setupTestServer(t)
	defer cleanup()
	session := srv.signUp(t, "frank@example.com", "")

	for i := 0; i < 2; i++ {
		if err := GrantRole(context.Background(), srv.store, session.UserID, models.RoleAdmin); err != nil {
			t.Fatalf("GrantRole failed: %v", err)
		}
	}
	roles, err := Roles(context.Background(), srv.store, session.UserID)
	if err != nil || len(roles) != 1 {
		t.Errorf("roles = %v, %v", roles, err)
	}
}
