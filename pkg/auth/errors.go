package auth

import (
	"errors"
	"net/http"
)

var (
	// ErrUserNotFound is returned when no identity exists for an email
	ErrUserNotFound = errors.New("user not found")
	// ErrInvalidCredentials is returned when the password does not match
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrTokenMalformed is returned for tokens that are not structurally JWTs
	ErrTokenMalformed = errors.New("token malformed")
	// ErrTokenInvalid is returned for a bad signature, unexpected algorithm or missing claims
	ErrTokenInvalid = errors.New("token invalid")
	// ErrTokenExpired is returned for a signature-valid token past its expiry
	ErrTokenExpired = errors.New("token expired")
	// ErrSigningKey is returned when the signing secret is missing or shorter than 256 bits
	ErrSigningKey = errors.New("signing key must be at least 256 bits")
)

// ErrorKind classifies failures surfaced to API callers
type ErrorKind int

const (
	KindInvalidCredentials ErrorKind = iota + 1
	KindUserNotFound
	KindTokenInvalid
	KindTokenExpired
	KindTokenRevoked
	KindWrongTokenType
	KindNoActiveSessions
	KindForbidden
	KindUnauthenticated
	KindUnavailable
	KindRateLimited
)

type kindInfo struct {
	code    string
	message string
	status  int
}

var kinds = map[ErrorKind]kindInfo{
	KindInvalidCredentials: {"INVALID_CREDENTIALS", "invalid credentials", http.StatusUnauthorized},
	KindUserNotFound:       {"USER_NOT_FOUND", "user not found", http.StatusUnauthorized},
	KindTokenInvalid:       {"TOKEN_INVALID", "invalid or revoked token", http.StatusUnauthorized},
	KindTokenExpired:       {"TOKEN_EXPIRED", "token expired", http.StatusUnauthorized},
	// revoked tokens are indistinguishable from invalid ones to callers
	KindTokenRevoked:     {"TOKEN_INVALID", "invalid or revoked token", http.StatusUnauthorized},
	KindWrongTokenType:   {"WRONG_TOKEN_TYPE", "token is not a refresh token", http.StatusUnauthorized},
	KindNoActiveSessions: {"NO_ACTIVE_SESSIONS", "no active sessions", http.StatusUnauthorized},
	KindForbidden:        {"FORBIDDEN", "access denied", http.StatusForbidden},
	KindUnauthenticated:  {"UNAUTHENTICATED", "authentication required", http.StatusUnauthorized},
	KindUnavailable:      {"UNAVAILABLE", "service temporarily unavailable", http.StatusServiceUnavailable},
	KindRateLimited:      {"RATE_LIMITED", "too many requests", http.StatusTooManyRequests},
}

// Code returns the stable machine-readable code of the kind
func (k ErrorKind) Code() string {
	if info, ok := kinds[k]; ok {
		return info.code
	}
	return "INTERNAL"
}

// HTTPStatus returns the HTTP status used for the kind
func (k ErrorKind) HTTPStatus() int {
	if info, ok := kinds[k]; ok {
		return info.status
	}
	return http.StatusInternalServerError
}

func (k ErrorKind) String() string {
	return k.Code()
}

// AuthError is the error type returned by the orchestrator and policy engine.
// Message is safe to show callers; Err carries the internal cause.
type AuthError struct {
	Kind    ErrorKind
	Message string
	Err     error
}

// NewError builds an AuthError with the default message of kind
func NewError(kind ErrorKind, cause error) *AuthError {
	return &AuthError{Kind: kind, Message: kinds[kind].message, Err: cause}
}

// Forbidden builds a FORBIDDEN error with a specific reason
func Forbidden(reason string) *AuthError {
	return &AuthError{Kind: KindForbidden, Message: reason}
}

func (e *AuthError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return kinds[e.Kind].message
}

func (e *AuthError) Unwrap() error {
	return e.Err
}

// Extensions exposes the error code to GraphQL clients
func (e *AuthError) Extensions() map[string]interface{} {
	return map[string]interface{}{
		"code": e.Kind.Code(),
	}
}

// KindOf returns the kind of err, or 0 if err is not an AuthError
func KindOf(err error) ErrorKind {
	var authErr *AuthError
	if errors.As(err, &authErr) {
		return authErr.Kind
	}
	return 0
}

// IsKind reports whether err is an AuthError of kind
func IsKind(err error, kind ErrorKind) bool {
	return KindOf(err) == kind
}
