package client

import (
	"context"
	"log/slog"
	"sync"

	"github.com/mmynk/lifeboard/internal/apperr"
	"github.com/mmynk/lifeboard/internal/auth"
	"github.com/mmynk/lifeboard/internal/backend"
	"github.com/mmynk/lifeboard/internal/models"
	"github.com/mmynk/lifeboard/internal/policy"
	"github.com/mmynk/lifeboard/internal/service"
	"github.com/mmynk/lifeboard/internal/storage"
)

// Local is a backend.Backend that runs the row policy in-process against a
// store. The session lives in memory only.
type Local struct {
	store         storage.Store
	policy        *policy.Policy
	authenticator auth.Authenticator
	adminCode     string
	logger        *slog.Logger

	mu      sync.RWMutex
	session *backend.Session
}

var _ backend.Backend = (*Local)(nil)

// LocalOption configures a Local backend.
type LocalOption func(*Local)

// WithAdminCode sets the code that grants the admin role at signup.
func WithAdminCode(code string) LocalOption {
	return func(l *Local) { l.adminCode = code }
}

// WithAuthenticator replaces the default password authenticator.
func WithAuthenticator(a auth.Authenticator) LocalOption {
	return func(l *Local) { l.authenticator = a }
}

// NewLocal returns a backend over store.
func NewLocal(store storage.Store, logger *slog.Logger, opts ...LocalOption) *Local {
	if logger == nil {
		logger = slog.Default()
	}
	l := &Local{
		store:         store,
		policy:        policy.New(store, logger),
		authenticator: auth.NewPasswordAuthenticator(store),
		logger:        logger,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func (l *Local) tables() backend.Tables {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.session == nil {
		return l.policy.For("")
	}
	return l.policy.For(l.session.UserID)
}

func (l *Local) Select(ctx context.Context, q backend.Query) ([]backend.Row, error) {
	return l.tables().Select(ctx, q)
}

func (l *Local) Insert(ctx context.Context, table string, row backend.Row) (backend.Row, error) {
	return l.tables().Insert(ctx, table, row)
}

func (l *Local) Update(ctx context.Context, table string, filters []backend.Filter, values backend.Row) ([]backend.Row, error) {
	return l.tables().Update(ctx, table, filters, values)
}

func (l *Local) Delete(ctx context.Context, table string, filters []backend.Filter) (int, error) {
	return l.tables().Delete(ctx, table, filters)
}

func (l *Local) Upsert(ctx context.Context, table string, row backend.Row, conflict []string) (backend.Row, error) {
	return l.tables().Upsert(ctx, table, row, conflict)
}

func (l *Local) Session(context.Context) (*backend.Session, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.session == nil {
		return nil, nil
	}
	s := *l.session
	return &s, nil
}

func (l *Local) signIn(user *models.User) *backend.Session {
	s := &backend.Session{UserID: user.ID, Email: user.Email, DisplayName: user.DisplayName}
	l.mu.Lock()
	l.session = s
	l.mu.Unlock()
	out := *s
	return &out
}

func (l *Local) SignUp(ctx context.Context, p backend.SignUpParams) (*backend.Session, error) {
	admin := p.AdminCode != ""
	if admin && !auth.AdminCodeMatches(l.adminCode, p.AdminCode) {
		return nil, service.ErrInvalidAdminCode
	}
	user, err := l.authenticator.Register(ctx, p.Email, p.DisplayName, p.Password)
	if err != nil {
		return nil, err
	}
	if admin {
		if err := service.GrantRole(ctx, l.store, user.ID, models.RoleAdmin); err != nil {
			return nil, err
		}
	}
	l.logger.Info("User registered", "user_id", user.ID, "admin", admin)
	return l.signIn(user), nil
}

func (l *Local) SignIn(ctx context.Context, email, password string) (*backend.Session, error) {
	user, err := l.authenticator.Authenticate(ctx, email, password)
	if err != nil {
		return nil, auth.SignInError(err)
	}
	return l.signIn(user), nil
}

func (l *Local) SignOut(context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.session = nil
	return nil
}

// Roles returns the roles of userID. Only the signed-in user's own roles
// are readable.
func (l *Local) Roles(ctx context.Context, userID string) ([]string, error) {
	s, _ := l.Session(ctx)
	if s == nil {
		return nil, policy.ErrNotSignedIn
	}
	if s.UserID != userID {
		return nil, apperr.Access("you can only read your own roles")
	}
	return service.Roles(ctx, l.store, userID)
}
