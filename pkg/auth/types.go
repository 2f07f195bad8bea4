package auth

import (
	"fmt"
	"strings"
	"time"
)

// Role is the single role carried by every identity
type Role string

const (
	RoleStudent   Role = "STUDENT"
	RoleProfessor Role = "PROFESSOR"
	RoleTA        Role = "TA"
	RoleAdmin     Role = "ADMIN"
)

// AllRoles lists every known role in declaration order
var AllRoles = []Role{RoleStudent, RoleProfessor, RoleTA, RoleAdmin}

// Valid reports whether r is one of the known roles
func (r Role) Valid() bool {
	for _, known := range AllRoles {
		if r == known {
			return true
		}
	}
	return false
}

// ParseRole parses a role name case-insensitively
func ParseRole(s string) (Role, error) {
	r := Role(strings.ToUpper(strings.TrimSpace(s)))
	if !r.Valid() {
		return "", fmt.Errorf("unknown role %q", s)
	}
	return r, nil
}

// TokenType distinguishes access tokens from refresh tokens
type TokenType string

const (
	TokenTypeAccess  TokenType = "ACCESS"
	TokenTypeRefresh TokenType = "REFRESH"
)

// User is an identity record owned by the persistence layer.
// The auth core reads it and never mutates credentials.
type User struct {
	ID           int64     `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Role         Role      `json:"role"`
	TeamID       *int64    `json:"team_id,omitempty"`
	CourseID     *int64    `json:"course_id,omitempty"`
	FirstName    string    `json:"first_name,omitempty"`
	LastName     string    `json:"last_name,omitempty"`
	Enabled      bool      `json:"enabled"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// FullName joins first and last name
func (u *User) FullName() string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

// UserInfo is the public view of a user returned after authentication
type UserInfo struct {
	ID        int64  `json:"id"`
	Email     string `json:"email"`
	Role      Role   `json:"role"`
	TeamID    *int64 `json:"teamId,omitempty"`
	CourseID  *int64 `json:"courseId,omitempty"`
	FirstName string `json:"firstName,omitempty"`
	LastName  string `json:"lastName,omitempty"`
	FullName  string `json:"fullName,omitempty"`
}

// NewUserInfo builds the public view of u
func NewUserInfo(u *User) *UserInfo {
	return &UserInfo{
		ID:        u.ID,
		Email:     u.Email,
		Role:      u.Role,
		TeamID:    u.TeamID,
		CourseID:  u.CourseID,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		FullName:  u.FullName(),
	}
}

// AuthResponse is returned by login and refresh
type AuthResponse struct {
	Token        string    `json:"token"`
	RefreshToken string    `json:"refreshToken"`
	TokenType    string    `json:"tokenType"`
	ExpiresIn    int64     `json:"expiresIn"` // seconds
	UserInfo     *UserInfo `json:"userInfo"`
}

// LogoutResponse is returned by logout operations. Logout never fails with an error.
type LogoutResponse struct {
	Success             bool   `json:"success"`
	Message             string `json:"message"`
	SessionsInvalidated int64  `json:"sessionsInvalidated"`
}

// Principal is the authenticated identity of a request.
// It is built once per request and never modified.
type Principal struct {
	UserID    int64
	Email     string
	Role      Role
	TeamID    *int64
	CourseID  *int64
	FirstName string
	LastName  string
	TokenID   string
	ExpiresAt time.Time
}

// NewPrincipal builds a principal from a resolved user and its access-token claims
func NewPrincipal(u *User, claims *Claims) *Principal {
	p := &Principal{
		UserID:    u.ID,
		Email:     u.Email,
		Role:      u.Role,
		TeamID:    u.TeamID,
		CourseID:  u.CourseID,
		FirstName: u.FirstName,
		LastName:  u.LastName,
	}
	if claims != nil {
		p.TokenID = claims.ID
		if claims.ExpiresAt != nil {
			p.ExpiresAt = claims.ExpiresAt.Time
		}
	}
	return p
}

// HasRole reports whether the principal holds any of roles
func (p *Principal) HasRole(roles ...Role) bool {
	for _, r := range roles {
		if p.Role == r {
			return true
		}
	}
	return false
}

// User returns the identity view of the principal
func (p *Principal) User() *User {
	return &User{
		ID:        p.UserID,
		Email:     p.Email,
		Role:      p.Role,
		TeamID:    p.TeamID,
		CourseID:  p.CourseID,
		FirstName: p.FirstName,
		LastName:  p.LastName,
		Enabled:   true,
	}
}

// AttemptState tracks a single login attempt
type AttemptState string

const (
	StateUnauthenticated AttemptState = "UNAUTHENTICATED"
	StateAuthenticating  AttemptState = "AUTHENTICATING"
	StateAuthenticated   AttemptState = "AUTHENTICATED"
	StateRejected        AttemptState = "REJECTED"
)
