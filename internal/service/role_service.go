package service

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"slices"

	"connectrpc.com/connect"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/mmynk/lifeboard/internal/apperr"
	"github.com/mmynk/lifeboard/internal/backend"
	"github.com/mmynk/lifeboard/internal/middleware"
	"github.com/mmynk/lifeboard/internal/models"
	"github.com/mmynk/lifeboard/internal/storage"
	"github.com/mmynk/lifeboard/internal/wire"
)

// Roles returns the roles assigned to userID, sorted.
func Roles(ctx context.Context, tables backend.Tables, userID string) ([]string, error) {
	rows, err := tables.Select(ctx, backend.Query{
		Table:   storage.TableUserRoles,
		Filters: []backend.Filter{backend.Eq(storage.ColUserID, userID)},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load roles: %w", err)
	}
	roles := backend.Strings(rows, "role")
	slices.Sort(roles)
	return roles, nil
}

// GrantRole assigns role to userID. Granting a role the user already has is
// a no-op.
func GrantRole(ctx context.Context, tables backend.Tables, userID, role string) error {
	roles, err := Roles(ctx, tables, userID)
	if err != nil {
		return err
	}
	if slices.Contains(roles, role) {
		return nil
	}
	if _, err := tables.Insert(ctx, storage.TableUserRoles, backend.Row{
		storage.ColUserID: userID,
		"role":            role,
	}); err != nil {
		return fmt.Errorf("failed to grant role %s: %w", role, err)
	}
	return nil
}

// RoleService answers role queries. Users read their own roles; admins may
// read anyone's.
type RoleService struct {
	store  storage.Store
	logger *slog.Logger
}

// NewRoleService creates a new RoleService.
func NewRoleService(store storage.Store, logger *slog.Logger) *RoleService {
	if logger == nil {
		logger = slog.Default()
	}
	return &RoleService{store: store, logger: logger}
}

// NewRoleServiceHandler returns the mount path and handler of svc.
func NewRoleServiceHandler(svc *RoleService, opts ...connect.HandlerOption) (string, http.Handler) {
	m := newServiceMux()
	m.handle(wire.ListRolesProcedure, svc.ListRoles, opts...)
	return "/" + wire.RoleServiceName + "/", m
}

// ListRoles returns the roles of the requested user, the caller by default.
func (s *RoleService) ListRoles(ctx context.Context, req *connect.Request[structpb.Struct]) (*connect.Response[structpb.Struct], error) {
	caller := middleware.GetUserID(ctx)
	target := wire.String(req.Msg, wire.FieldUserID)
	if target == "" {
		target = caller
	}

	if target != caller {
		own, err := Roles(ctx, s.store, caller)
		if err != nil {
			s.logger.Error("ListRoles failed", "user_id", caller, "error", err)
			return nil, apperr.ToConnect(err)
		}
		if !slices.Contains(own, models.RoleAdmin) {
			return nil, apperr.ToConnect(apperr.Access("only admins can read other users' roles"))
		}
	}

	roles, err := Roles(ctx, s.store, target)
	if err != nil {
		s.logger.Error("ListRoles failed", "user_id", target, "error", err)
		return nil, apperr.ToConnect(err)
	}
	return message(map[string]*structpb.Value{wire.FieldRoles: wire.StringList(roles)}), nil
}
