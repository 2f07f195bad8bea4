package graph

import (
	"context"
	"errors"
	"strings"

	graphql "github.com/graph-gophers/graphql-go"
	"github.com/sirupsen/logrus"

	"github.com/udea/innosistemas/pkg/auth"
	"github.com/udea/innosistemas/pkg/contextkeys"
	"github.com/udea/innosistemas/pkg/observability"
	"github.com/udea/innosistemas/pkg/rbac"
)

// Authenticator is the orchestrator surface used by the mutations. *auth.Service implements it.
type Authenticator interface {
	Login(ctx context.Context, email, password string) (*auth.AuthResponse, error)
	Refresh(ctx context.Context, refreshToken string) (*auth.AuthResponse, error)
	Logout(ctx context.Context, token string) *auth.LogoutResponse
	LogoutEverywhere(ctx context.Context, email string) *auth.LogoutResponse
}

// Directory lists team and course members
type Directory interface {
	ListByTeam(ctx context.Context, teamID int64) ([]*auth.User, error)
	ListByCourse(ctx context.Context, courseID int64) ([]*auth.User, error)
}

// Limiter throttles the public mutations. *middleware.RateLimiter implements it.
type Limiter interface {
	Check(ctx context.Context, scope string) error
}

// Resolver is the root resolver for both Query and Mutation
type Resolver struct {
	auth      Authenticator
	directory Directory
	policy    *rbac.Policy
	audit     *auth.AuditLogger
	limiter   Limiter
	logger    logrus.FieldLogger
}

// Option configures a Resolver
type Option func(*Resolver)

// WithLimiter rate limits login and refreshToken
func WithLimiter(l Limiter) Option {
	return func(r *Resolver) { r.limiter = l }
}

// WithAuditLogger records authentication events
func WithAuditLogger(a *auth.AuditLogger) Option {
	return func(r *Resolver) { r.audit = a }
}

// NewResolver creates the root resolver
func NewResolver(authn Authenticator, directory Directory, policy *rbac.Policy, logger logrus.FieldLogger, opts ...Option) *Resolver {
	r := &Resolver{
		auth:      authn,
		directory: directory,
		policy:    policy,
		logger:    logger.WithField("component", "graphql"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func principalFrom(ctx context.Context) (*auth.Principal, error) {
	if p, ok := ctx.Value(contextkeys.PrincipalKey).(*auth.Principal); ok && p != nil {
		return p, nil
	}
	return nil, auth.NewError(auth.KindUnauthenticated, nil)
}

// publicError keeps infrastructure detail out of responses
func (r *Resolver) publicError(ctx context.Context, op string, err error) error {
	var authErr *auth.AuthError
	if errors.As(err, &authErr) {
		return authErr
	}
	observability.FromContext(ctx).WithError(err).WithField("operation", op).Error("resolver failed")
	return auth.NewError(auth.KindUnavailable, err)
}

func (r *Resolver) record(ctx context.Context, action, email string, err error) {
	if r.audit == nil {
		return
	}
	ev := &auth.AuditEvent{
		Action:    action,
		Email:     email,
		Status:    auth.StatusSuccess,
		IPAddress: contextkeys.GetClientIP(ctx),
		Resource:  "/graphql",
	}
	if err != nil {
		ev.Status = auth.StatusFailure
		if auth.IsKind(err, auth.KindForbidden) {
			ev.Status = auth.StatusDenied
		}
		ev.Reason = auth.KindOf(err).Code()
	}
	r.audit.Record(ctx, ev)
}

func (r *Resolver) throttle(ctx context.Context, scope string) error {
	if r.limiter == nil {
		return nil
	}
	return r.limiter.Check(ctx, scope)
}

// Hello is a smoke query open to students only
func (r *Resolver) Hello(ctx context.Context) (string, error) {
	p, err := principalFrom(ctx)
	if err != nil {
		return "", err
	}
	if err := r.policy.RequireRole(p, auth.RoleStudent); err != nil {
		return "", err
	}
	return "Hello from InnoSistemas GraphQL API!", nil
}

// GetCurrentUser returns the caller's public profile
func (r *Resolver) GetCurrentUser(ctx context.Context) (*userInfoResolver, error) {
	p, err := principalFrom(ctx)
	if err != nil {
		return nil, err
	}
	return &userInfoResolver{u: auth.NewUserInfo(p.User())}, nil
}

// GetUserPermissions returns the caller's permission view
func (r *Resolver) GetUserPermissions(ctx context.Context) (*permissionsResolver, error) {
	p, err := principalFrom(ctx)
	if err != nil {
		return nil, err
	}
	return &permissionsResolver{p: r.policy.Permissions(p.User())}, nil
}

// GetTeamMembers lists a team the caller may read
func (r *Resolver) GetTeamMembers(ctx context.Context, args struct{ TeamID graphql.ID }) ([]*memberResolver, error) {
	p, err := principalFrom(ctx)
	if err != nil {
		return nil, err
	}
	teamID, err := parseID(args.TeamID)
	if err != nil {
		return nil, auth.Forbidden(rbac.MsgWrongTeam)
	}
	if err := r.policy.AuthorizeTeam(p.User(), teamID); err != nil {
		r.record(ctx, auth.ActionAccessDenied, p.Email, err)
		return nil, err
	}

	users, err := r.directory.ListByTeam(ctx, teamID)
	if err != nil {
		return nil, r.publicError(ctx, "getTeamMembers", err)
	}
	return members(users), nil
}

// GetCourseMembers lists a course the caller may read
func (r *Resolver) GetCourseMembers(ctx context.Context, args struct{ CourseID graphql.ID }) ([]*memberResolver, error) {
	p, err := principalFrom(ctx)
	if err != nil {
		return nil, err
	}
	courseID, err := parseID(args.CourseID)
	if err != nil {
		return nil, auth.Forbidden(rbac.MsgWrongCourse)
	}
	if err := r.policy.AuthorizeCourse(p.User(), courseID); err != nil {
		r.record(ctx, auth.ActionAccessDenied, p.Email, err)
		return nil, err
	}

	users, err := r.directory.ListByCourse(ctx, courseID)
	if err != nil {
		return nil, r.publicError(ctx, "getCourseMembers", err)
	}
	return members(users), nil
}

// Login exchanges credentials for a token pair
func (r *Resolver) Login(ctx context.Context, args struct {
	Email    string
	Password string
}) (*authResponseResolver, error) {
	email := auth.NormalizeEmail(args.Email)
	if err := r.throttle(ctx, "graphql.login"); err != nil {
		return nil, err
	}

	resp, err := r.auth.Login(ctx, email, args.Password)
	r.record(ctx, auth.ActionLogin, email, err)
	if err != nil {
		return nil, r.publicError(ctx, "login", err)
	}
	return &authResponseResolver{resp: resp}, nil
}

// RefreshToken rotates a refresh token
func (r *Resolver) RefreshToken(ctx context.Context, args struct{ RefreshToken string }) (*authResponseResolver, error) {
	if err := r.throttle(ctx, "graphql.refresh"); err != nil {
		return nil, err
	}

	resp, err := r.auth.Refresh(ctx, strings.TrimSpace(args.RefreshToken))
	email := ""
	if resp != nil {
		email = resp.UserInfo.Email
	}
	r.record(ctx, auth.ActionRefresh, email, err)
	if err != nil {
		return nil, r.publicError(ctx, "refreshToken", err)
	}
	return &authResponseResolver{resp: resp}, nil
}

// Logout revokes the given token, or the bearer token of the request, and ends every session of its owner
func (r *Resolver) Logout(ctx context.Context, args struct{ Token *string }) (*logoutResponseResolver, error) {
	p, err := principalFrom(ctx)
	if err != nil {
		return nil, err
	}

	token := ""
	if args.Token != nil {
		token = strings.TrimSpace(*args.Token)
	}
	if token == "" {
		token = contextkeys.GetBearerToken(ctx)
	}
	if token == "" {
		return &logoutResponseResolver{resp: &auth.LogoutResponse{Success: false, Message: "token not provided"}}, nil
	}

	resp := r.auth.Logout(ctx, token)
	var outcome error
	if !resp.Success {
		outcome = auth.NewError(auth.KindTokenInvalid, nil)
	}
	r.record(ctx, auth.ActionLogout, p.Email, outcome)
	return &logoutResponseResolver{resp: resp}, nil
}

// LogoutFromAllDevices ends every session of the caller
func (r *Resolver) LogoutFromAllDevices(ctx context.Context) (*logoutResponseResolver, error) {
	p, err := principalFrom(ctx)
	if err != nil {
		return nil, err
	}

	resp := r.auth.LogoutEverywhere(ctx, p.Email)
	var outcome error
	if !resp.Success {
		outcome = auth.NewError(auth.KindUnavailable, nil)
	}
	r.record(ctx, auth.ActionLogoutAll, p.Email, outcome)
	return &logoutResponseResolver{resp: resp}, nil
}
