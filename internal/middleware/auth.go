package middleware

import (
	"context"

	"connectrpc.com/connect"

	"github.com/mmynk/lifeboard/internal/apperr"
	"github.com/mmynk/lifeboard/internal/auth"
)

// contextKey is a custom type for context keys to avoid collisions.
type contextKey string

const (
	// UserIDKey is the context key for storing the authenticated user ID.
	UserIDKey contextKey = "user_id"
	// EmailKey is the context key for storing the authenticated user's email.
	EmailKey contextKey = "email"
	// TokenKey is the context key for the raw session token.
	TokenKey contextKey = "token"
)

// GetUserID extracts the user ID from the context.
// Returns empty string if not found.
func GetUserID(ctx context.Context) string {
	userID, _ := ctx.Value(UserIDKey).(string)
	return userID
}

// GetEmail extracts the user email from the context.
// Returns empty string if not found.
func GetEmail(ctx context.Context) string {
	email, _ := ctx.Value(EmailKey).(string)
	return email
}

// GetToken extracts the session token from the context.
func GetToken(ctx context.Context) string {
	token, _ := ctx.Value(TokenKey).(string)
	return token
}

// WithClaims returns a context carrying the identity in claims.
func WithClaims(ctx context.Context, claims *auth.Claims, token string) context.Context {
	recordCaller(ctx, claims.UserID)
	ctx = context.WithValue(ctx, UserIDKey, claims.UserID)
	ctx = context.WithValue(ctx, EmailKey, claims.Email)
	return context.WithValue(ctx, TokenKey, token)
}

// RequireAuth returns a middleware that validates JWT tokens and requires authentication.
// It extracts the token from the Authorization header, validates it, and adds
// the user ID and email to the request context.
func RequireAuth(jwtManager *auth.JWTManager) connect.UnaryInterceptorFunc {
	return func(next connect.UnaryFunc) connect.UnaryFunc {
		return func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
			token, ok, err := auth.BearerToken(req.Header())
			if !ok {
				return nil, apperr.ToConnect(auth.ErrMissingToken)
			}
			if err != nil {
				return nil, apperr.ToConnect(err)
			}

			claims, err := jwtManager.Validate(token)
			if err != nil {
				return nil, apperr.ToConnect(err)
			}

			return next(WithClaims(ctx, claims, token), req)
		}
	}
}

// OptionalAuth returns a middleware that validates JWT tokens if present, but allows
// requests without authentication. Handlers decide what an anonymous caller
// may do.
func OptionalAuth(jwtManager *auth.JWTManager) connect.UnaryInterceptorFunc {
	return func(next connect.UnaryFunc) connect.UnaryFunc {
		return func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
			if token, ok, err := auth.BearerToken(req.Header()); ok && err == nil {
				// Validate token (ignore errors - optional auth)
				if claims, err := jwtManager.Validate(token); err == nil {
					ctx = WithClaims(ctx, claims, token)
				}
			}

			// Call the next handler (with or without user context)
			return next(ctx, req)
		}
	}
}
