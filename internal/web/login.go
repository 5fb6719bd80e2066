// Package web serves the browser-facing pages: the sign-in form and the
// single-page app behind the route guard.
package web

import (
	"html/template"
	"log/slog"
	"net/http"
	"time"

	"github.com/mmynk/lifeboard/internal/apperr"
	"github.com/mmynk/lifeboard/internal/auth"
	"github.com/mmynk/lifeboard/internal/guard"
)

var loginPage = template.Must(template.New("login").Parse(`<!doctype html>
<html lang="en">
<head><meta charset="utf-8"><title>Sign in</title></head>
<body>
<main>
<h1>Sign in</h1>
{{if .Error}}<p class="notice" role="alert">{{.Error}}</p>{{end}}
<form method="post" action="/login">
<input type="hidden" name="redirect" value="{{.Redirect}}">
<label>Email <input type="email" name="email" value="{{.Email}}" required></label>
<label>Password <input type="password" name="password" required></label>
<button type="submit">Sign in</button>
</form>
</main>
</body>
</html>
`))

type loginView struct {
	Redirect string
	Email    string
	Error    string
}

// LoginHandler serves the sign-in form and sets the session cookie.
type LoginHandler struct {
	authenticator auth.Authenticator
	jwtManager    *auth.JWTManager
	secure        bool
	logger        *slog.Logger
}

// NewLoginHandler returns the handler for guard.LoginPath.
func NewLoginHandler(authenticator auth.Authenticator, jwtManager *auth.JWTManager, secureCookies bool, logger *slog.Logger) *LoginHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &LoginHandler{
		authenticator: authenticator,
		jwtManager:    jwtManager,
		secure:        secureCookies,
		logger:        logger,
	}
}

func (h *LoginHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet, http.MethodHead:
		redirect := guard.SafeRedirect(r.URL.Query().Get(guard.RedirectParam))
		if token := auth.TokenFromRequest(r); token != "" {
			if _, err := h.jwtManager.Validate(token); err == nil {
				http.Redirect(w, r, redirect, http.StatusSeeOther)
				return
			}
		}
		h.render(w, http.StatusOK, loginView{Redirect: redirect})
	case http.MethodPost:
		h.signIn(w, r)
	default:
		w.Header().Set("Allow", "GET, HEAD, POST")
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
	}
}

func (h *LoginHandler) signIn(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}
	view := loginView{
		Redirect: guard.SafeRedirect(r.PostForm.Get(guard.RedirectParam)),
		Email:    r.PostForm.Get("email"),
	}

	user, err := h.authenticator.Authenticate(r.Context(), view.Email, r.PostForm.Get("password"))
	if err != nil {
		h.logger.Warn("Web sign-in failed", "email", view.Email, "error", err)
		view.Error = auth.ErrInvalidCredentials.Message
		if apperr.Is(err, apperr.KindInternal) {
			view.Error = "sign-in is unavailable, try again later"
		}
		h.render(w, http.StatusUnauthorized, view)
		return
	}

	token, expires, err := h.jwtManager.Generate(user)
	if err != nil {
		h.logger.Error("Failed to generate token", "user_id", user.ID, "error", err)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	http.SetCookie(w, auth.SessionCookieFor(token, expires, h.secure))
	h.logger.Info("Web sign-in", "user_id", user.ID)
	http.Redirect(w, r, view.Redirect, http.StatusSeeOther)
}

func (h *LoginHandler) render(w http.ResponseWriter, status int, view loginView) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := loginPage.Execute(w, view); err != nil {
		h.logger.Warn("Failed to render login page", "error", err)
	}
}

// LogoutHandler clears the session cookie and returns to sign-in.
func LogoutHandler(secureCookies bool) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.Header().Set("Allow", "POST")
			http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
			return
		}
		http.SetCookie(w, auth.SessionCookieFor("", time.Unix(0, 0), secureCookies))
		http.Redirect(w, r, guard.LoginPath, http.StatusSeeOther)
	})
}
