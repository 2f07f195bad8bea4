package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/udea/innosistemas/pkg/auth"

// RevocationStore records revoked tokens until their natural expiry
type RevocationStore interface {
	Revoke(ctx context.Context, token string, expiresAt time.Time) error
	IsRevoked(ctx context.Context, token string) (bool, error)
}

// SessionRegistry tracks active login sessions per user
type SessionRegistry interface {
	Register(ctx context.Context, email, sessionID string) error
	InvalidateAll(ctx context.Context, email string) (int64, error)
	HasActive(ctx context.Context, email string) (bool, error)
}

// OutcomeRecorder receives one event per orchestrator operation
type OutcomeRecorder interface {
	RecordAuthOperation(operation, result string)
}

type nopRecorder struct{}

func (nopRecorder) RecordAuthOperation(string, string) {}

// Service orchestrates login, refresh, logout and per-request authentication
type Service struct {
	verifier     *CredentialVerifier
	users        UserStore
	codec        *TokenCodec
	revocations  RevocationStore
	sessions     SessionRegistry
	recorder     OutcomeRecorder
	logger       logrus.FieldLogger
	tracer       trace.Tracer
	newSessionID func() string
}

// ServiceOption configures a Service
type ServiceOption func(*Service)

// WithRecorder sets the outcome recorder (metrics)
func WithRecorder(r OutcomeRecorder) ServiceOption {
	return func(s *Service) {
		if r != nil {
			s.recorder = r
		}
	}
}

// WithSessionIDGenerator replaces the session id source
func WithSessionIDGenerator(gen func() string) ServiceOption {
	return func(s *Service) {
		s.newSessionID = gen
	}
}

// NewService wires the orchestrator to its collaborators
func NewService(users UserStore, codec *TokenCodec, revocations RevocationStore, sessions SessionRegistry, logger logrus.FieldLogger, opts ...ServiceOption) *Service {
	logger = logger.WithField("component", "auth_service")
	s := &Service{
		verifier:     NewCredentialVerifier(users, logger),
		users:        users,
		codec:        codec,
		revocations:  revocations,
		sessions:     sessions,
		recorder:     nopRecorder{},
		logger:       logger,
		tracer:       otel.Tracer(tracerName),
		newSessionID: uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Codec exposes the token codec used by the service
func (s *Service) Codec() *TokenCodec {
	return s.codec
}

// Login verifies credentials, issues an access/refresh pair and registers a session
func (s *Service) Login(ctx context.Context, email, password string) (*AuthResponse, error) {
	ctx, span := s.tracer.Start(ctx, "auth.Login")
	defer span.End()

	log := s.logger.WithField("email", NormalizeEmail(email))
	log.WithField("state", StateAuthenticating).Debug("login attempt")

	user, err := s.verifier.Verify(ctx, email, password)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) || errors.Is(err, ErrInvalidCredentials) {
			log.WithField("state", StateRejected).WithField("reason", err.Error()).Warn("login rejected")
			return nil, s.fail(span, "login", NewError(KindInvalidCredentials, err))
		}
		log.WithError(err).WithField("state", StateRejected).Error("login failed")
		return nil, s.fail(span, "login", NewError(KindUnavailable, err))
	}

	resp, err := s.issuePair(user)
	if err != nil {
		log.WithError(err).Error("token issuance failed")
		return nil, s.fail(span, "login", NewError(KindUnavailable, err))
	}

	sessionID := s.newSessionID()
	if err := s.sessions.Register(ctx, user.Email, sessionID); err != nil {
		log.WithError(err).Error("session registration failed")
		return nil, s.fail(span, "login", NewError(KindUnavailable, err))
	}

	span.SetAttributes(attribute.String("user.role", string(user.Role)))
	log.WithFields(logrus.Fields{
		"state":      StateAuthenticated,
		"user_id":    user.ID,
		"session_id": sessionID,
	}).Info("login succeeded")
	s.recorder.RecordAuthOperation("login", "success")
	return resp, nil
}

// Refresh exchanges a refresh token for a new pair and revokes the old refresh token.
// Gates run in order: revocation, validity, type, identity, active session.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (*AuthResponse, error) {
	ctx, span := s.tracer.Start(ctx, "auth.Refresh")
	defer span.End()

	revoked, err := s.revocations.IsRevoked(ctx, refreshToken)
	if err != nil {
		s.logger.WithError(err).Error("revocation check failed during refresh")
	}
	if revoked {
		s.logger.Warn("refresh with revoked token")
		return nil, s.fail(span, "refresh", NewError(KindTokenRevoked, err))
	}

	claims, err := s.codec.Parse(refreshToken)
	if err != nil {
		s.logger.WithError(err).Warn("refresh with invalid token")
		return nil, s.fail(span, "refresh", tokenError(err))
	}

	if claims.Type != TokenTypeRefresh {
		s.logger.WithField("email", claims.Subject).Warn("refresh with non-refresh token")
		return nil, s.fail(span, "refresh", NewError(KindWrongTokenType, nil))
	}

	log := s.logger.WithField("email", claims.Subject)

	user, err := s.users.GetByEmail(ctx, claims.Subject)
	if errors.Is(err, ErrUserNotFound) {
		log.Warn("refresh for unknown user")
		return nil, s.fail(span, "refresh", NewError(KindUserNotFound, err))
	}
	if err != nil {
		log.WithError(err).Error("user lookup failed during refresh")
		return nil, s.fail(span, "refresh", NewError(KindUnavailable, err))
	}

	active, err := s.sessions.HasActive(ctx, user.Email)
	if err != nil {
		log.WithError(err).Error("session check failed during refresh")
		return nil, s.fail(span, "refresh", NewError(KindUnavailable, err))
	}
	if !active {
		log.Warn("refresh without active sessions")
		return nil, s.fail(span, "refresh", NewError(KindNoActiveSessions, nil))
	}

	resp, err := s.issuePair(user)
	if err != nil {
		log.WithError(err).Error("token issuance failed")
		return nil, s.fail(span, "refresh", NewError(KindUnavailable, err))
	}

	// the old refresh token must be revoked before the new pair leaves
	if err := s.revocations.Revoke(ctx, refreshToken, claims.ExpiresAt.Time); err != nil {
		log.WithError(err).Error("revoking rotated refresh token failed")
		return nil, s.fail(span, "refresh", NewError(KindUnavailable, err))
	}

	log.WithField("user_id", user.ID).Info("token refreshed")
	s.recorder.RecordAuthOperation("refresh", "success")
	return resp, nil
}

// Logout revokes token and invalidates every session of its subject.
// It never returns an error; an unusable token yields Success=false.
func (s *Service) Logout(ctx context.Context, token string) *LogoutResponse {
	ctx, span := s.tracer.Start(ctx, "auth.Logout")
	defer span.End()

	claims, err := s.codec.Parse(token)
	if err != nil {
		s.logger.WithError(err).Warn("logout with invalid token")
		s.recorder.RecordAuthOperation("logout", "invalid_token")
		return &LogoutResponse{Success: false, Message: "invalid token"}
	}

	log := s.logger.WithField("email", claims.Subject)

	if err := s.revocations.Revoke(ctx, token, claims.ExpiresAt.Time); err != nil {
		log.WithError(err).Error("revoking token during logout failed")
		span.SetStatus(codes.Error, err.Error())
		s.recorder.RecordAuthOperation("logout", "error")
		return &LogoutResponse{Success: false, Message: "error during logout"}
	}

	count, err := s.sessions.InvalidateAll(ctx, claims.Subject)
	if err != nil {
		log.WithError(err).Error("invalidating sessions during logout failed")
		span.SetStatus(codes.Error, err.Error())
		s.recorder.RecordAuthOperation("logout", "error")
		return &LogoutResponse{Success: false, Message: "error during logout"}
	}

	log.WithField("sessions_invalidated", count).Info("logout succeeded")
	s.recorder.RecordAuthOperation("logout", "success")
	return &LogoutResponse{Success: true, Message: "logout successful", SessionsInvalidated: count}
}

// LogoutEverywhere invalidates all sessions of email. Calling it again reports 0.
func (s *Service) LogoutEverywhere(ctx context.Context, email string) *LogoutResponse {
	ctx, span := s.tracer.Start(ctx, "auth.LogoutEverywhere")
	defer span.End()

	log := s.logger.WithField("email", email)

	count, err := s.sessions.InvalidateAll(ctx, email)
	if err != nil {
		log.WithError(err).Error("logout from all devices failed")
		span.SetStatus(codes.Error, err.Error())
		s.recorder.RecordAuthOperation("logout_all", "error")
		return &LogoutResponse{Success: false, Message: "error during logout"}
	}

	log.WithField("sessions_invalidated", count).Info("logged out from all devices")
	s.recorder.RecordAuthOperation("logout_all", "success")
	return &LogoutResponse{Success: true, Message: "logged out from all devices", SessionsInvalidated: count}
}

// ValidateCredentials reports whether email/password would pass login verification
func (s *Service) ValidateCredentials(ctx context.Context, email, password string) bool {
	_, err := s.verifier.Verify(ctx, email, password)
	return err == nil
}

// Authenticate resolves the principal of an access token for a request
func (s *Service) Authenticate(ctx context.Context, token string) (*Principal, error) {
	ctx, span := s.tracer.Start(ctx, "auth.Authenticate")
	defer span.End()

	if strings.TrimSpace(token) == "" {
		return nil, s.fail(span, "authenticate", NewError(KindUnauthenticated, nil))
	}

	claims, err := s.codec.Parse(token)
	if err != nil {
		return nil, s.fail(span, "authenticate", tokenError(err))
	}
	if claims.Type != TokenTypeAccess {
		return nil, s.fail(span, "authenticate", NewError(KindTokenInvalid, errors.New("refresh token used as access token")))
	}

	revoked, err := s.revocations.IsRevoked(ctx, token)
	if err != nil {
		s.logger.WithError(err).Error("revocation check failed during authentication")
	}
	if revoked {
		return nil, s.fail(span, "authenticate", NewError(KindTokenRevoked, err))
	}

	user, err := s.users.GetByEmail(ctx, claims.Subject)
	if errors.Is(err, ErrUserNotFound) {
		return nil, s.fail(span, "authenticate", NewError(KindUserNotFound, err))
	}
	if err != nil {
		return nil, s.fail(span, "authenticate", NewError(KindUnavailable, err))
	}
	if !user.Enabled {
		return nil, s.fail(span, "authenticate", NewError(KindTokenInvalid, errors.New("account disabled")))
	}

	return NewPrincipal(user, claims), nil
}

func (s *Service) issuePair(user *User) (*AuthResponse, error) {
	access, err := s.codec.Issue(user, TokenTypeAccess)
	if err != nil {
		return nil, err
	}
	refresh, err := s.codec.Issue(user, TokenTypeRefresh)
	if err != nil {
		return nil, err
	}
	return &AuthResponse{
		Token:        access,
		RefreshToken: refresh,
		TokenType:    "Bearer",
		ExpiresIn:    int64(s.codec.TTL(TokenTypeAccess).Seconds()),
		UserInfo:     NewUserInfo(user),
	}, nil
}

func (s *Service) fail(span trace.Span, operation string, err *AuthError) error {
	span.SetStatus(codes.Error, err.Kind.Code())
	s.recorder.RecordAuthOperation(operation, strings.ToLower(err.Kind.Code()))
	return err
}

func tokenError(err error) *AuthError {
	if errors.Is(err, ErrTokenExpired) {
		return NewError(KindTokenExpired, err)
	}
	return NewError(KindTokenInvalid, err)
}
