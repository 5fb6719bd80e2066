// Package client implements backend.Backend for the client core: Remote
// talks to a lifeboard server over Connect, Local runs the same policy
// in-process against a store.
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"connectrpc.com/connect"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/mmynk/lifeboard/internal/apperr"
	"github.com/mmynk/lifeboard/internal/backend"
	"github.com/mmynk/lifeboard/internal/localstore"
	"github.com/mmynk/lifeboard/internal/wire"
)

// SessionKey is where Remote persists the signed-in session.
const SessionKey = "session"

type rpc = connect.Client[structpb.Struct, structpb.Struct]

// Remote is a backend.Backend reached over Connect.
type Remote struct {
	storage localstore.Storage
	logger  *slog.Logger
	now     func() time.Time

	mu      sync.RWMutex
	session *backend.Session

	selectRows *rpc
	insert     *rpc
	update     *rpc
	remove     *rpc
	upsert     *rpc
	signUp     *rpc
	signIn     *rpc
	signOut    *rpc
	getSession *rpc
	listRoles  *rpc
}

var _ backend.Backend = (*Remote)(nil)

// NewRemote returns a client for the server at baseURL. The session is
// restored from storage and persisted there on sign-in.
func NewRemote(httpClient connect.HTTPClient, baseURL string, storage localstore.Storage, logger *slog.Logger, opts ...connect.ClientOption) *Remote {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if logger == nil {
		logger = slog.Default()
	}
	r := &Remote{storage: storage, logger: logger, now: time.Now}
	r.session = r.restore()

	baseURL = strings.TrimRight(baseURL, "/")
	opts = append([]connect.ClientOption{connect.WithInterceptors(connect.UnaryInterceptorFunc(r.authorize))}, opts...)
	client := func(procedure string) *rpc {
		return connect.NewClient[structpb.Struct, structpb.Struct](httpClient, baseURL+procedure, opts...)
	}
	r.selectRows = client(wire.SelectProcedure)
	r.insert = client(wire.InsertProcedure)
	r.update = client(wire.UpdateProcedure)
	r.remove = client(wire.DeleteProcedure)
	r.upsert = client(wire.UpsertProcedure)
	r.signUp = client(wire.SignUpProcedure)
	r.signIn = client(wire.SignInProcedure)
	r.signOut = client(wire.SignOutProcedure)
	r.getSession = client(wire.GetSessionProcedure)
	r.listRoles = client(wire.ListRolesProcedure)
	return r
}

// authorize adds the bearer token of the current session.
func (r *Remote) authorize(next connect.UnaryFunc) connect.UnaryFunc {
	return func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
		if s := r.current(); s != nil && s.AccessToken != "" {
			req.Header().Set("Authorization", "Bearer "+s.AccessToken)
		}
		return next(ctx, req)
	}
}

func (r *Remote) current() *backend.Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.session
}

func (r *Remote) restore() *backend.Session {
	if r.storage == nil {
		return nil
	}
	raw, ok, err := r.storage.Get(SessionKey)
	if err != nil || !ok {
		return nil
	}
	var s backend.Session
	if err := json.Unmarshal([]byte(raw), &s); err != nil || s.UserID == "" {
		r.logger.Warn("Discarding unreadable session", "error", err)
		_ = r.storage.Remove(SessionKey)
		return nil
	}
	return &s
}

func (r *Remote) setSession(s *backend.Session) error {
	r.mu.Lock()
	r.session = s
	r.mu.Unlock()

	if r.storage == nil {
		return nil
	}
	if s == nil {
		return r.storage.Remove(SessionKey)
	}
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to encode session: %w", err)
	}
	return r.storage.Set(SessionKey, string(data))
}

func (r *Remote) call(ctx context.Context, c *rpc, msg *structpb.Struct) (*structpb.Struct, error) {
	resp, err := c.CallUnary(ctx, connect.NewRequest(msg))
	if err != nil {
		return nil, apperr.FromConnect(err)
	}
	return resp.Msg, nil
}

// Select implements backend.Tables.
func (r *Remote) Select(ctx context.Context, q backend.Query) ([]backend.Row, error) {
	msg, err := wire.EncodeQuery(q)
	if err != nil {
		return nil, err
	}
	resp, err := r.call(ctx, r.selectRows, msg)
	if err != nil {
		return nil, err
	}
	return wire.DecodeRows(resp.GetFields()[wire.FieldRows])
}

// Insert implements backend.Tables.
func (r *Remote) Insert(ctx context.Context, table string, row backend.Row) (backend.Row, error) {
	s, err := wire.EncodeRow(row)
	if err != nil {
		return nil, err
	}
	resp, err := r.call(ctx, r.insert, &structpb.Struct{Fields: map[string]*structpb.Value{
		wire.FieldTable: structpb.NewStringValue(table),
		wire.FieldRow:   structpb.NewStructValue(s),
	}})
	if err != nil {
		return nil, err
	}
	return wire.DecodeRow(resp.GetFields()[wire.FieldRow].GetStructValue()), nil
}

// Update implements backend.Tables.
func (r *Remote) Update(ctx context.Context, table string, filters []backend.Filter, values backend.Row) ([]backend.Row, error) {
	f, err := wire.EncodeFilters(filters)
	if err != nil {
		return nil, err
	}
	v, err := wire.EncodeRow(values)
	if err != nil {
		return nil, err
	}
	resp, err := r.call(ctx, r.update, &structpb.Struct{Fields: map[string]*structpb.Value{
		wire.FieldTable:   structpb.NewStringValue(table),
		wire.FieldFilters: f,
		wire.FieldValues:  structpb.NewStructValue(v),
	}})
	if err != nil {
		return nil, err
	}
	return wire.DecodeRows(resp.GetFields()[wire.FieldRows])
}

// Delete implements backend.Tables.
func (r *Remote) Delete(ctx context.Context, table string, filters []backend.Filter) (int, error) {
	f, err := wire.EncodeFilters(filters)
	if err != nil {
		return 0, err
	}
	resp, err := r.call(ctx, r.remove, &structpb.Struct{Fields: map[string]*structpb.Value{
		wire.FieldTable:   structpb.NewStringValue(table),
		wire.FieldFilters: f,
	}})
	if err != nil {
		return 0, err
	}
	return int(resp.GetFields()[wire.FieldCount].GetNumberValue()), nil
}

// Upsert implements backend.Tables.
func (r *Remote) Upsert(ctx context.Context, table string, row backend.Row, conflict []string) (backend.Row, error) {
	s, err := wire.EncodeRow(row)
	if err != nil {
		return nil, err
	}
	resp, err := r.call(ctx, r.upsert, &structpb.Struct{Fields: map[string]*structpb.Value{
		wire.FieldTable:    structpb.NewStringValue(table),
		wire.FieldRow:      structpb.NewStructValue(s),
		wire.FieldConflict: wire.StringList(conflict),
	}})
	if err != nil {
		return nil, err
	}
	return wire.DecodeRow(resp.GetFields()[wire.FieldRow].GetStructValue()), nil
}

// Session returns the persisted session after checking it with the server.
// An expired or rejected session is dropped and reported as nil.
func (r *Remote) Session(ctx context.Context) (*backend.Session, error) {
	s := r.current()
	if s == nil {
		return nil, nil
	}
	if !s.ExpiresAt.IsZero() && r.now().After(s.ExpiresAt) {
		r.logger.Debug("Session expired", "user_id", s.UserID)
		return nil, r.setSession(nil)
	}

	resp, err := r.call(ctx, r.getSession, &structpb.Struct{})
	if err != nil {
		return nil, err
	}
	fresh, err := wire.DecodeSession(resp.GetFields()[wire.FieldSession])
	if err != nil {
		return nil, err
	}
	if fresh == nil {
		r.logger.Info("Server rejected stored session", "user_id", s.UserID)
		return nil, r.setSession(nil)
	}
	return s, nil
}

func (r *Remote) signedIn(resp *structpb.Struct) (*backend.Session, error) {
	s, err := wire.DecodeSession(resp.GetFields()[wire.FieldSession])
	if err != nil {
		return nil, err
	}
	if s == nil {
		return nil, apperr.Auth("server returned no session")
	}
	if err := r.setSession(s); err != nil {
		return nil, err
	}
	return s, nil
}

// SignUp implements backend.Auth.
func (r *Remote) SignUp(ctx context.Context, p backend.SignUpParams) (*backend.Session, error) {
	resp, err := r.call(ctx, r.signUp, &structpb.Struct{Fields: map[string]*structpb.Value{
		wire.FieldEmail:     structpb.NewStringValue(p.Email),
		wire.FieldName:      structpb.NewStringValue(p.DisplayName),
		wire.FieldPassword:  structpb.NewStringValue(p.Password),
		wire.FieldAdminCode: structpb.NewStringValue(p.AdminCode),
	}})
	if err != nil {
		return nil, err
	}
	return r.signedIn(resp)
}

// SignIn implements backend.Auth.
func (r *Remote) SignIn(ctx context.Context, email, password string) (*backend.Session, error) {
	resp, err := r.call(ctx, r.signIn, &structpb.Struct{Fields: map[string]*structpb.Value{
		wire.FieldEmail:    structpb.NewStringValue(email),
		wire.FieldPassword: structpb.NewStringValue(password),
	}})
	if err != nil {
		return nil, err
	}
	return r.signedIn(resp)
}

// SignOut forgets the local session even when the server call fails.
func (r *Remote) SignOut(ctx context.Context) error {
	_, callErr := r.call(ctx, r.signOut, &structpb.Struct{})
	if err := r.setSession(nil); err != nil {
		return err
	}
	if callErr != nil {
		r.logger.Warn("Server sign-out failed", "error", callErr)
	}
	return nil
}

// Roles implements backend.Auth.
func (r *Remote) Roles(ctx context.Context, userID string) ([]string, error) {
	resp, err := r.call(ctx, r.listRoles, &structpb.Struct{Fields: map[string]*structpb.Value{
		wire.FieldUserID: structpb.NewStringValue(userID),
	}})
	if err != nil {
		return nil, err
	}
	return wire.Strings(resp.GetFields()[wire.FieldRoles]), nil
}
