// Package guard decides whether a page route may be shown: it resolves the
// caller's session and roles and checks them against the route table.
package guard

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/mmynk/lifeboard/internal/apperr"
	"github.com/mmynk/lifeboard/internal/backend"
)

// LoginPath is where unauthenticated users are sent.
const LoginPath = "/login"

// RedirectParam carries the originating location through sign-in.
const RedirectParam = "redirect"

// State is the stage of one guard check.
type State int

const (
	Loading State = iota
	Denied
	Allowed
)

func (s State) String() string {
	switch s {
	case Denied:
		return "denied"
	case Allowed:
		return "allowed"
	default:
		return "loading"
	}
}

// Reason says why a check was denied.
type Reason int

const (
	NoReason Reason = iota
	Unauthenticated
	Unauthorized
)

func (r Reason) String() string {
	switch r {
	case Unauthenticated:
		return "unauthenticated"
	case Unauthorized:
		return "unauthorized"
	default:
		return ""
	}
}

// Decision is the outcome of a check.
type Decision struct {
	State  State
	Reason Reason
	// Redirect is the sign-in location for unauthenticated denials.
	Redirect string
}

// Identity supplies the caller's session and roles. Roles must not be
// served from a cache.
type Identity interface {
	Session(ctx context.Context) (*backend.Session, error)
	Roles(ctx context.Context) ([]string, error)
}

// RoleLister lists the signed-in user's roles.
type RoleLister interface {
	List(ctx context.Context) ([]string, error)
}

type clientIdentity struct {
	auth  backend.Auth
	roles RoleLister
}

// ClientIdentity is the Identity of a client core: its backend session and
// the role query.
func ClientIdentity(auth backend.Auth, roles RoleLister) Identity {
	return clientIdentity{auth: auth, roles: roles}
}

func (c clientIdentity) Session(ctx context.Context) (*backend.Session, error) {
	return c.auth.Session(ctx)
}

func (c clientIdentity) Roles(ctx context.Context) ([]string, error) {
	return c.roles.List(ctx)
}

// LoginRedirect returns the sign-in location that returns to target.
func LoginRedirect(target string) string {
	return LoginPath + "?" + url.Values{RedirectParam: {target}}.Encode()
}

// SafeRedirect returns target when it is a local path, "/" otherwise.
func SafeRedirect(target string) string {
	if target == "" || !strings.HasPrefix(target, "/") || strings.HasPrefix(target, "//") || strings.Contains(target, `\`) {
		return "/"
	}
	u, err := url.Parse(target)
	if err != nil || u.IsAbs() || u.Host != "" {
		return "/"
	}
	return target
}

// Gate checks routes against the route table.
type Gate struct {
	routes *Routes
	logger *slog.Logger
}

// New returns a gate over routes.
func New(routes *Routes, logger *slog.Logger) *Gate {
	if logger == nil {
		logger = slog.Default()
	}
	return &Gate{routes: routes, logger: logger}
}

// Routes returns the compiled route table.
func (g *Gate) Routes() *Routes {
	return g.routes
}

// Check is one in-flight resolution. Until it finishes its decision is
// Loading.
type Check struct {
	done     chan struct{}
	decision Decision
	err      error
}

// Decision returns the current decision without blocking.
func (c *Check) Decision() Decision {
	select {
	case <-c.done:
		return c.decision
	default:
		return Decision{State: Loading}
	}
}

// Wait blocks until the check finishes or ctx ends.
func (c *Check) Wait(ctx context.Context) (Decision, error) {
	select {
	case <-c.done:
		return c.decision, c.err
	case <-ctx.Done():
		return Decision{State: Loading}, ctx.Err()
	}
}

// Start begins checking target (path plus query) for id.
func (g *Gate) Start(ctx context.Context, target string, id Identity) *Check {
	c := &Check{done: make(chan struct{})}
	go func() {
		defer close(c.done)
		c.decision, c.err = g.resolve(ctx, target, id)
	}()
	return c
}

// Resolve checks target for id and waits for the result.
func (g *Gate) Resolve(ctx context.Context, target string, id Identity) (Decision, error) {
	return g.Start(ctx, target, id).Wait(ctx)
}

func (g *Gate) resolve(ctx context.Context, target string, id Identity) (Decision, error) {
	path, _, _ := strings.Cut(target, "?")
	if !g.routes.Protected(path) {
		return Decision{State: Allowed}, nil
	}

	session, err := id.Session(ctx)
	if err != nil && !apperr.Is(err, apperr.KindAuth) {
		return Decision{State: Loading}, fmt.Errorf("failed to load session: %w", err)
	}
	if session == nil {
		return Decision{State: Denied, Reason: Unauthenticated, Redirect: LoginRedirect(target)}, nil
	}

	roles, err := id.Roles(ctx)
	if err != nil {
		return Decision{State: Loading}, fmt.Errorf("failed to load roles: %w", err)
	}
	ok, err := g.routes.Allows(roles, path)
	if err != nil {
		return Decision{State: Loading}, err
	}
	if !ok {
		g.logger.Info("Route not permitted", "path", path, "user_id", session.UserID, "roles", roles)
		return Decision{State: Denied, Reason: Unauthorized}, nil
	}
	return Decision{State: Allowed}, nil
}
