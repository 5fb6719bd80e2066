package auth

import (
	"context"
	"crypto/subtle"

	"github.com/mmynk/lifeboard/internal/apperr"
	"github.com/mmynk/lifeboard/internal/models"
)

// Authenticator verifies who a user is. The Connect auth service, the web
// sign-in form and the in-process client share one.
type Authenticator interface {
	// Register creates an account. Emails are unique after NormalizeEmail.
	Register(ctx context.Context, email, displayName, credential string) (*models.User, error)

	// Authenticate returns the user whose credential matches.
	Authenticate(ctx context.Context, email, credential string) (*models.User, error)

	// ValidateCredential checks if the credential meets the implementation's requirements.
	ValidateCredential(credential string) error
}

var _ Authenticator = (*PasswordAuthenticator)(nil)

// SignInError is the error a failed Authenticate surfaces to the caller:
// store faults pass through, anything else becomes ErrInvalidCredentials so
// callers cannot probe which emails exist.
func SignInError(err error) error {
	if apperr.KindOf(err) == apperr.KindInternal {
		return err
	}
	return ErrInvalidCredentials
}

// AdminCodeMatches reports whether given equals the configured admin code.
// An empty configured code never matches.
func AdminCodeMatches(configured, given string) bool {
	return configured != "" && subtle.ConstantTimeCompare([]byte(given), []byte(configured)) == 1
}
