package service

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"connectrpc.com/connect"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/mmynk/lifeboard/internal/apperr"
	"github.com/mmynk/lifeboard/internal/auth"
	"github.com/mmynk/lifeboard/internal/backend"
	"github.com/mmynk/lifeboard/internal/middleware"
	"github.com/mmynk/lifeboard/internal/models"
	"github.com/mmynk/lifeboard/internal/storage"
	"github.com/mmynk/lifeboard/internal/wire"
)

// ErrInvalidAdminCode is returned when a signup presents the wrong admin code.
var ErrInvalidAdminCode = apperr.Access("invalid admin code")

// AuthConfig configures signup and session cookies.
type AuthConfig struct {
	// AdminCode grants the admin role to signups that present it. Empty
	// disables admin signup.
	AdminCode string
	// SecureCookies marks the session cookie Secure.
	SecureCookies bool
}

// AuthService implements the AuthService RPC interface.
type AuthService struct {
	authenticator auth.Authenticator
	jwtManager    *auth.JWTManager
	store         storage.Store
	cfg           AuthConfig
	logger        *slog.Logger
}

// NewAuthService creates a new authentication service.
func NewAuthService(authenticator auth.Authenticator, jwtManager *auth.JWTManager, store storage.Store, cfg AuthConfig, logger *slog.Logger) *AuthService {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuthService{
		authenticator: authenticator,
		jwtManager:    jwtManager,
		store:         store,
		cfg:           cfg,
		logger:        logger,
	}
}

// NewAuthServiceHandler returns the mount path and handler of svc.
func NewAuthServiceHandler(svc *AuthService, opts ...connect.HandlerOption) (string, http.Handler) {
	m := newServiceMux()
	m.handle(wire.SignUpProcedure, svc.SignUp, opts...)
	m.handle(wire.SignInProcedure, svc.SignIn, opts...)
	m.handle(wire.SignOutProcedure, svc.SignOut, opts...)
	m.handle(wire.GetSessionProcedure, svc.GetSession, opts...)
	return "/" + wire.AuthServiceName + "/", m
}

// SignUp creates a new user account and signs it in.
func (s *AuthService) SignUp(ctx context.Context, req *connect.Request[structpb.Struct]) (*connect.Response[structpb.Struct], error) {
	email := wire.String(req.Msg, wire.FieldEmail)
	adminCode := wire.String(req.Msg, wire.FieldAdminCode)
	s.logger.Info("SignUp request", "email", email, "admin", adminCode != "")

	if adminCode != "" && !auth.AdminCodeMatches(s.cfg.AdminCode, adminCode) {
		s.logger.Warn("SignUp with invalid admin code", "email", email)
		return nil, apperr.ToConnect(ErrInvalidAdminCode)
	}

	user, err := s.authenticator.Register(ctx, email,
		wire.String(req.Msg, wire.FieldName), wire.String(req.Msg, wire.FieldPassword))
	if err != nil {
		s.logger.Warn("Registration failed", "email", email, "error", err)
		return nil, apperr.ToConnect(err)
	}

	if adminCode != "" {
		if err := GrantRole(ctx, s.store, user.ID, models.RoleAdmin); err != nil {
			s.logger.Error("Failed to grant admin role", "user_id", user.ID, "error", err)
			return nil, apperr.ToConnect(err)
		}
		s.logger.Info("Admin role granted", "user_id", user.ID)
	}

	s.logger.Info("User registered successfully", "user_id", user.ID, "email", user.Email)
	return s.issue(user)
}

// SignIn authenticates a user and returns a session.
func (s *AuthService) SignIn(ctx context.Context, req *connect.Request[structpb.Struct]) (*connect.Response[structpb.Struct], error) {
	email := wire.String(req.Msg, wire.FieldEmail)
	s.logger.Info("SignIn request", "email", email)

	user, err := s.authenticator.Authenticate(ctx, email, wire.String(req.Msg, wire.FieldPassword))
	if err != nil {
		s.logger.Warn("Login failed", "email", email, "error", err)
		return nil, apperr.ToConnect(auth.SignInError(err))
	}

	s.logger.Info("User logged in successfully", "user_id", user.ID, "email", user.Email)
	return s.issue(user)
}

func (s *AuthService) issue(user *models.User) (*connect.Response[structpb.Struct], error) {
	token, expires, err := s.jwtManager.Generate(user)
	if err != nil {
		s.logger.Error("Failed to generate token", "user_id", user.ID, "error", err)
		return nil, apperr.ToConnect(err)
	}

	resp := message(map[string]*structpb.Value{wire.FieldSession: wire.EncodeSession(&backend.Session{
		UserID:      user.ID,
		Email:       user.Email,
		DisplayName: user.DisplayName,
		AccessToken: token,
		ExpiresAt:   expires,
	})})
	resp.Header().Add("Set-Cookie", s.cookie(token, expires).String())
	return resp, nil
}

func (s *AuthService) cookie(token string, expires time.Time) *http.Cookie {
	return auth.SessionCookieFor(token, expires, s.cfg.SecureCookies)
}

// SignOut clears the session cookie. Tokens are stateless, so clients
// discard theirs.
func (s *AuthService) SignOut(ctx context.Context, req *connect.Request[structpb.Struct]) (*connect.Response[structpb.Struct], error) {
	s.logger.Info("SignOut request", "user_id", middleware.GetUserID(ctx))
	resp := message(map[string]*structpb.Value{})
	resp.Header().Add("Set-Cookie", s.cookie("", time.Unix(0, 0)).String())
	return resp, nil
}

// GetSession returns the caller's session, or a null session for anonymous
// callers.
func (s *AuthService) GetSession(ctx context.Context, req *connect.Request[structpb.Struct]) (*connect.Response[structpb.Struct], error) {
	userID := middleware.GetUserID(ctx)
	if userID == "" {
		return message(map[string]*structpb.Value{wire.FieldSession: wire.EncodeSession(nil)}), nil
	}

	user, err := s.store.GetUserByID(ctx, userID)
	if err != nil {
		s.logger.Error("Failed to load user", "user_id", userID, "error", err)
		return nil, apperr.ToConnect(err)
	}
	if user == nil {
		return message(map[string]*structpb.Value{wire.FieldSession: wire.EncodeSession(nil)}), nil
	}

	token := middleware.GetToken(ctx)
	session := &backend.Session{
		UserID:      user.ID,
		Email:       user.Email,
		DisplayName: user.DisplayName,
		AccessToken: token,
	}
	if claims, err := s.jwtManager.Validate(token); err == nil && claims.ExpiresAt != nil {
		session.ExpiresAt = claims.ExpiresAt.Time
	}
	return message(map[string]*structpb.Value{wire.FieldSession: wire.EncodeSession(session)}), nil
}
