package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// MinSecretLength is the minimum HS512 secret size in bytes (256 bits)
const MinSecretLength = 32

// Claims is the JWT payload: sub=email, role, type, iat, exp
type Claims struct {
	jwt.RegisteredClaims
	Role     Role      `json:"role"`
	Type     TokenType `json:"type"`
	UserID   int64     `json:"userId,omitempty"`
	TeamID   *int64    `json:"teamId,omitempty"`
	CourseID *int64    `json:"courseId,omitempty"`
}

// Email returns the subject of the token
func (c *Claims) Email() string {
	return c.Subject
}

// TokenCodec issues and validates HS512-signed access and refresh tokens
type TokenCodec struct {
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

// CodecOption configures a TokenCodec
type CodecOption func(*TokenCodec)

// WithClock replaces the time source used for iat/exp and validation
func WithClock(now func() time.Time) CodecOption {
	return func(c *TokenCodec) {
		c.now = now
	}
}

// NewTokenCodec creates a codec. A secret shorter than 256 bits is rejected.
func NewTokenCodec(secret string, accessTTL, refreshTTL time.Duration, opts ...CodecOption) (*TokenCodec, error) {
	if len(secret) < MinSecretLength {
		return nil, fmt.Errorf("%w: got %d bytes", ErrSigningKey, len(secret))
	}
	if accessTTL <= 0 || refreshTTL <= 0 {
		return nil, fmt.Errorf("token lifetimes must be positive")
	}

	c := &TokenCodec{
		secret:     []byte(secret),
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// TTL returns the configured lifetime for a token type
func (c *TokenCodec) TTL(t TokenType) time.Duration {
	if t == TokenTypeRefresh {
		return c.refreshTTL
	}
	return c.accessTTL
}

// Issue mints a signed token of type t for user
func (c *TokenCodec) Issue(user *User, t TokenType) (string, error) {
	if user == nil || user.Email == "" {
		return "", fmt.Errorf("cannot issue token without subject")
	}
	if t != TokenTypeAccess && t != TokenTypeRefresh {
		return "", fmt.Errorf("unknown token type %q", t)
	}

	now := c.now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.Email,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(c.TTL(t))),
			ID:        uuid.NewString(),
		},
		Role:     user.Role,
		Type:     t,
		UserID:   user.ID,
		TeamID:   user.TeamID,
		CourseID: user.CourseID,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS512, claims)
	signed, err := token.SignedString(c.secret)
	if err != nil {
		return "", fmt.Errorf("signing %s token: %w", t, err)
	}
	return signed, nil
}

// Parse validates signature and expiry, in that order, and returns the claims
func (c *TokenCodec) Parse(tokenString string) (*Claims, error) {
	return c.parse(tokenString, jwt.WithTimeFunc(c.now), jwt.WithExpirationRequired())
}

// ExpiresAt returns the expiry of a signature-valid token, expired or not
func (c *TokenCodec) ExpiresAt(tokenString string) (time.Time, error) {
	claims, err := c.parse(tokenString, jwt.WithoutClaimsValidation())
	if err != nil {
		return time.Time{}, err
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, fmt.Errorf("%w: missing exp", ErrTokenInvalid)
	}
	return claims.ExpiresAt.Time, nil
}

// IsRefreshToken reports whether tokenString is a valid refresh token
func (c *TokenCodec) IsRefreshToken(tokenString string) bool {
	claims, err := c.Parse(tokenString)
	return err == nil && claims.Type == TokenTypeRefresh
}

func (c *TokenCodec) parse(tokenString string, opts ...jwt.ParserOption) (*Claims, error) {
	opts = append(opts, jwt.WithValidMethods([]string{jwt.SigningMethodHS512.Alg()}))

	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(_ *jwt.Token) (any, error) {
		return c.secret, nil
	}, opts...)
	if err != nil {
		return nil, classifyParseError(err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrTokenInvalid
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: missing subject", ErrTokenInvalid)
	}
	if claims.Type != TokenTypeAccess && claims.Type != TokenTypeRefresh {
		return nil, fmt.Errorf("%w: unknown token type %q", ErrTokenInvalid, claims.Type)
	}
	if !claims.Role.Valid() {
		return nil, fmt.Errorf("%w: unknown role %q", ErrTokenInvalid, claims.Role)
	}

	return claims, nil
}

func classifyParseError(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenMalformed):
		return fmt.Errorf("%w: %w", ErrTokenMalformed, err)
	case errors.Is(err, jwt.ErrTokenExpired):
		return fmt.Errorf("%w: %w", ErrTokenExpired, err)
	default:
		return fmt.Errorf("%w: %w", ErrTokenInvalid, err)
	}
}
