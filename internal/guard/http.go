package guard

import (
	"context"
	"html/template"
	"net/http"

	"github.com/mmynk/lifeboard/internal/apperr"
	"github.com/mmynk/lifeboard/internal/auth"
	"github.com/mmynk/lifeboard/internal/backend"
	"github.com/mmynk/lifeboard/internal/service"
)

// NotPermittedMessage is shown to signed-in users who lack a route's role.
const NotPermittedMessage = "You are not permitted to view this page."

var noticePage = template.Must(template.New("notice").Parse(`<!doctype html>
<html lang="en">
<head><meta charset="utf-8"><title>Not permitted</title></head>
<body>
<main class="notice" role="alert">
<h1>Not permitted</h1>
<p>{{.Message}}</p>
<p><code>{{.Path}}</code></p>
<p><a href="/">Back to home</a></p>
</main>
</body>
</html>
`))

// TokenIdentity is the Identity behind a server request's session token.
// Roles are read from the store on every call.
type TokenIdentity struct {
	Token  string
	JWT    *auth.JWTManager
	Tables backend.Tables

	claims *auth.Claims
}

// Session implements Identity. A missing, invalid or expired token is no
// session.
func (t *TokenIdentity) Session(context.Context) (*backend.Session, error) {
	if t.Token == "" {
		return nil, nil
	}
	if t.claims == nil {
		claims, err := t.JWT.Validate(t.Token)
		if err != nil {
			return nil, nil
		}
		t.claims = claims
	}
	s := &backend.Session{
		UserID:      t.claims.UserID,
		Email:       t.claims.Email,
		DisplayName: t.claims.DisplayName,
		AccessToken: t.Token,
	}
	if t.claims.ExpiresAt != nil {
		s.ExpiresAt = t.claims.ExpiresAt.Time
	}
	return s, nil
}

// Roles implements Identity.
func (t *TokenIdentity) Roles(ctx context.Context) ([]string, error) {
	s, err := t.Session(ctx)
	if err != nil || s == nil {
		return nil, err
	}
	return service.Roles(ctx, t.Tables, s.UserID)
}

// RequestIdentity returns a func building a TokenIdentity from the bearer
// header or session cookie of a request.
func RequestIdentity(jwt *auth.JWTManager, tables backend.Tables) func(*http.Request) Identity {
	return func(r *http.Request) Identity {
		return &TokenIdentity{Token: auth.TokenFromRequest(r), JWT: jwt, Tables: tables}
	}
}

// Middleware guards page routes: unauthenticated requests are redirected
// to sign-in with their location, unauthorized ones get a 403 notice.
func (g *Gate) Middleware(identify func(*http.Request) Identity) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !g.routes.Protected(r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}

			decision, err := g.Resolve(r.Context(), r.URL.RequestURI(), identify(r))
			if err != nil {
				g.logger.Error("Route check failed", "path", r.URL.Path, "error", err)
				status := http.StatusInternalServerError
				if apperr.Is(err, apperr.KindTransientNetwork) {
					status = http.StatusServiceUnavailable
				}
				http.Error(w, http.StatusText(status), status)
				return
			}

			switch {
			case decision.State == Allowed:
				next.ServeHTTP(w, r)
			case decision.Reason == Unauthenticated:
				http.Redirect(w, r, decision.Redirect, http.StatusFound)
			default:
				w.Header().Set("Content-Type", "text/html; charset=utf-8")
				w.WriteHeader(http.StatusForbidden)
				if err := noticePage.Execute(w, struct{ Message, Path string }{NotPermittedMessage, r.URL.Path}); err != nil {
					g.logger.Warn("Failed to render notice", "error", err)
				}
			}
		})
	}
}
