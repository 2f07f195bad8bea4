package graph

import (
	"strconv"

	graphql "github.com/graph-gophers/graphql-go"

	"github.com/udea/innosistemas/pkg/auth"
	"github.com/udea/innosistemas/pkg/rbac"
)

func toID(v int64) graphql.ID {
	return graphql.ID(strconv.FormatInt(v, 10))
}

func optionalID(v *int64) *graphql.ID {
	if v == nil {
		return nil
	}
	id := toID(*v)
	return &id
}

func optionalString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func parseID(id graphql.ID) (int64, error) {
	return strconv.ParseInt(string(id), 10, 64)
}

type userInfoResolver struct {
	u *auth.UserInfo
}

func (r *userInfoResolver) ID() graphql.ID { return toID(r.u.ID) }
func (r *userInfoResolver) Email() string { return r.u.Email }
func (r *userInfoResolver) Role() string { return string(r.u.Role) }
func (r *userInfoResolver) TeamID() *graphql.ID { return optionalID(r.u.TeamID) }
func (r *userInfoResolver) CourseID() *graphql.ID { return optionalID(r.u.CourseID) }
func (r *userInfoResolver) FirstName() *string { return optionalString(r.u.FirstName) }
func (r *userInfoResolver) LastName() *string { return optionalString(r.u.LastName) }
func (r *userInfoResolver) FullName() string { return r.u.FullName }

type authResponseResolver struct {
	resp *auth.AuthResponse
}

func (r *authResponseResolver) Token() string { return r.resp.Token }
func (r *authResponseResolver) RefreshToken() string { return r.resp.RefreshToken }
func (r *authResponseResolver) TokenType() string { return r.resp.TokenType }
func (r *authResponseResolver) ExpiresIn() int32 { return int32(r.resp.ExpiresIn) }
func (r *authResponseResolver) UserInfo() *userInfoResolver {
	return &userInfoResolver{u: r.resp.UserInfo}
}

type logoutResponseResolver struct {
	resp *auth.LogoutResponse
}

func (r *logoutResponseResolver) Success() bool { return r.resp.Success }
func (r *logoutResponseResolver) Message() string { return r.resp.Message }
func (r *logoutResponseResolver) SessionsInvalidated() int32 {
	return int32(r.resp.SessionsInvalidated)
}

type permissionsResolver struct {
	p *rbac.UserPermissions
}

func (r *permissionsResolver) UserID() graphql.ID { return toID(r.p.UserID) }
func (r *permissionsResolver) Role() string { return string(r.p.Role) }
func (r *permissionsResolver) Permissions() []string { return r.p.Permissions }
func (r *permissionsResolver) TeamID() *graphql.ID { return optionalID(r.p.TeamID) }
func (r *permissionsResolver) CourseID() *graphql.ID { return optionalID(r.p.CourseID) }
func (r *permissionsResolver) CanManageTeam() bool { return r.p.CanManageTeam }
func (r *permissionsResolver) CanManageCourse() bool { return r.p.CanManageCourse }
func (r *permissionsResolver) CanViewAllTeams() bool { return r.p.CanViewAllTeams }
func (r *permissionsResolver) CanSendNotifications() bool { return r.p.CanSendNotifications }

type memberResolver struct {
	u *auth.User
}

func (r *memberResolver) ID() graphql.ID { return toID(r.u.ID) }
func (r *memberResolver) Email() string { return r.u.Email }
func (r *memberResolver) FirstName() *string { return optionalString(r.u.FirstName) }
func (r *memberResolver) LastName() *string { return optionalString(r.u.LastName) }
func (r *memberResolver) FullName() string { return r.u.FullName() }
func (r *memberResolver) Role() string { return string(r.u.Role) }
func (r *memberResolver) TeamID() *graphql.ID { return optionalID(r.u.TeamID) }
func (r *memberResolver) CourseID() *graphql.ID { return optionalID(r.u.CourseID) }

func members(users []*auth.User) []*memberResolver {
	out := make([]*memberResolver, 0, len(users))
	for _, u := range users {
		out = append(out, &memberResolver{u: u})
	}
	return out
}
