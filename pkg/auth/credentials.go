package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
)

// UserStore is the read-only identity lookup the auth core depends on.
// Implementations return ErrUserNotFound when no identity matches.
type UserStore interface {
	GetByEmail(ctx context.Context, email string) (*User, error)
}

// CredentialVerifier checks an email/password pair against the user store
type CredentialVerifier struct {
	users  UserStore
	logger logrus.FieldLogger
}

// NewCredentialVerifier creates a verifier backed by users
func NewCredentialVerifier(users UserStore, logger logrus.FieldLogger) *CredentialVerifier {
	return &CredentialVerifier{
		users:  users,
		logger: logger.WithField("component", "credential_verifier"),
	}
}

// Verify returns the identity for email when password matches.
// Failures are ErrUserNotFound or ErrInvalidCredentials; lookup errors are wrapped.
func (v *CredentialVerifier) Verify(ctx context.Context, email, password string) (*User, error) {
	email = NormalizeEmail(email)
	if email == "" || password == "" {
		return nil, ErrInvalidCredentials
	}

	user, err := v.users.GetByEmail(ctx, email)
	if errors.Is(err, ErrUserNotFound) {
		v.logger.WithField("email", email).Warn("login attempt for unknown user")
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("looking up user: %w", err)
	}

	ok, err := VerifyPassword(password, user.PasswordHash)
	if err != nil {
		v.logger.WithError(err).WithField("user_id", user.ID).Error("stored password hash is unusable")
		return nil, ErrInvalidCredentials
	}
	if !ok {
		v.logger.WithField("user_id", user.ID).Warn("login attempt with wrong password")
		return nil, ErrInvalidCredentials
	}
	if !user.Enabled {
		v.logger.WithField("user_id", user.ID).Warn("login attempt for disabled account")
		return nil, ErrInvalidCredentials
	}

	return user, nil
}

// NormalizeEmail lowercases and trims an email login handle
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
