package rbac

import (
	"io"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/udea/innosistemas/pkg/auth"
)

type denialCounter struct {
	roles []string
}

func (d *denialCounter) RecordAccessDenied(role string) {
	d.roles = append(d.roles, role)
}

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func id(v int64) *int64 { return &v }

func newPolicy(t *testing.T) (*Policy, *denialCounter) {
	t.Helper()
	counter := &denialCounter{}
	return NewPolicy(DefaultPermissionTable(), quietLogger(), WithDenialRecorder(counter)), counter
}

func TestPolicy_PermissionsByRole(t *testing.T) {
	p, _ := newPolicy(t)

	tests := []struct {
		role   auth.Role
		has    []string
		hasNot []string
		caps   Capabilities
		nPerms int
	}{
		{
			role:   auth.RoleAdmin,
			has:    []string{"user:create", "user:delete", "team:create", "course:delete", "notification:send", "system:configure"},
			hasNot: []string{"project:submit", "grade:assign"},
			caps:   Capabilities{CanManageTeam: true, CanManageCourse: true, CanViewAllTeams: true, CanSendNotifications: true},
			nPerms: 14,
		},
		{
			role:   auth.RoleProfessor,
			has:    []string{"user:read", "team:read", "team:update", "course:create", "course:read", "course:update", "notification:send", "grade:assign"},
			hasNot: []string{"team:create", "user:create", "system:configure"},
			caps:   Capabilities{CanManageCourse: true, CanViewAllTeams: true, CanSendNotifications: true},
			nPerms: 8,
		},
		{
			role:   auth.RoleTA,
			has:    []string{"user:read", "team:read", "course:read", "notification:send", "grade:view"},
			hasNot: []string{"grade:assign", "team:update"},
			caps:   Capabilities{CanSendNotifications: true},
			nPerms: 5,
		},
		{
			role:   auth.RoleStudent,
			has:    []string{"team:read", "course:read", "project:submit", "grade:view"},
			hasNot: []string{"team:create", "user:read", "notification:send"},
			caps:   Capabilities{},
			nPerms: 4,
		},
	}

	for _, tt := range tests {
		t.Run(string(tt.role), func(t *testing.T) {
			perms := p.Permissions(&auth.User{ID: 9, Role: tt.role, TeamID: id(5)})

			assert.Equal(t, int64(9), perms.UserID)
			assert.Equal(t, tt.role, perms.Role)
			assert.Equal(t, id(5), perms.TeamID)
			assert.Equal(t, tt.caps, perms.Capabilities)
			assert.Len(t, perms.Permissions, tt.nPerms)
			assert.IsIncreasing(t, perms.Permissions)
			for _, h := range tt.has {
				assert.True(t, perms.Has(h), "%s should have %s", tt.role, h)
			}
			for _, h := range tt.hasNot {
				assert.False(t, perms.Has(h), "%s should not have %s", tt.role, h)
			}
		})
	}
}

func TestPolicy_UnknownRoleHasNothing(t *testing.T) {
	p, _ := newPolicy(t)
	perms := p.Permissions(&auth.User{ID: 1, Role: auth.Role("GUEST")})
	assert.Empty(t, perms.Permissions)
	assert.Equal(t, Capabilities{}, perms.Capabilities)
}

func TestPolicy_TableIsCopied(t *testing.T) {
	table := DefaultPermissionTable()
	p := NewPolicy(table, quietLogger())

	grant := table[auth.RoleStudent]
	grant.Permissions[0] = Permission{Resource: ResourceSystem, Action: ActionConfigure}
	table[auth.RoleStudent] = grant

	assert.False(t, p.HasPermission(auth.RoleStudent, Permission{Resource: ResourceSystem, Action: ActionConfigure}))
	assert.True(t, p.HasPermission(auth.RoleStudent, Permission{Resource: ResourceTeam, Action: ActionRead}))
}

func TestPolicy_AuthorizeTeam(t *testing.T) {
	p, counter := newPolicy(t)

	tests := []struct {
		name    string
		user    *auth.User
		teamID  int64
		wantErr string
	}{
		{"student own team", &auth.User{Role: auth.RoleStudent, TeamID: id(5)}, 5, ""},
		{"student other team", &auth.User{Role: auth.RoleStudent, TeamID: id(5)}, 6, MsgWrongTeam},
		{"student without team", &auth.User{Role: auth.RoleStudent}, 5, MsgNoTeam},
		{"ta other team", &auth.User{Role: auth.RoleTA, TeamID: id(1)}, 2, MsgWrongTeam},
		{"ta own team", &auth.User{Role: auth.RoleTA, TeamID: id(2)}, 2, ""},
		{"professor any team", &auth.User{Role: auth.RoleProfessor, TeamID: id(1)}, 6, ""},
		{"professor without team", &auth.User{Role: auth.RoleProfessor}, 6, ""},
		{"admin any team", &auth.User{Role: auth.RoleAdmin}, 99, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := p.AuthorizeTeam(tt.user, tt.teamID)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, auth.IsKind(err, auth.KindForbidden))
			assert.Equal(t, tt.wantErr, err.Error())
		})
	}
	assert.Len(t, counter.roles, 3)
}

func TestPolicy_AuthorizeCourse(t *testing.T) {
	p, _ := newPolicy(t)

	assert.NoError(t, p.AuthorizeCourse(&auth.User{Role: auth.RoleStudent, CourseID: id(3)}, 3))

	err := p.AuthorizeCourse(&auth.User{Role: auth.RoleStudent, CourseID: id(3)}, 4)
	assert.EqualError(t, err, MsgWrongCourse)

	err = p.AuthorizeCourse(&auth.User{Role: auth.RoleTA}, 4)
	assert.EqualError(t, err, MsgNoCourse)

	noTeam := p.AuthorizeTeam(&auth.User{Role: auth.RoleStudent}, 1)
	assert.Equal(t, auth.KindOf(err), auth.KindOf(noTeam), "no assignment and wrong assignment share one error class")
	assert.Equal(t, 403, auth.KindOf(err).HTTPStatus())

	assert.NoError(t, p.AuthorizeCourse(&auth.User{Role: auth.RoleProfessor}, 4))
	assert.True(t, auth.IsKind(p.AuthorizeCourse(nil, 4), auth.KindUnauthenticated))
}

func TestPolicy_RequireRole(t *testing.T) {
	p, counter := newPolicy(t)
	student := &auth.Principal{Email: "ana@udea.edu.co", Role: auth.RoleStudent}

	assert.NoError(t, p.RequireRole(student, auth.RoleStudent))
	assert.NoError(t, p.RequireRole(student, auth.RoleAdmin, auth.RoleStudent))

	err := p.RequireRole(student, auth.RoleAdmin)
	assert.True(t, auth.IsKind(err, auth.KindForbidden))
	assert.Equal(t, []string{"STUDENT"}, counter.roles)

	assert.True(t, auth.IsKind(p.RequireRole(nil, auth.RoleStudent), auth.KindUnauthenticated))
}

func TestPolicy_RequirePermission(t *testing.T) {
	p, _ := newPolicy(t)
	ta := &auth.Principal{Role: auth.RoleTA}

	assert.NoError(t, p.RequirePermission(ta, Permission{Resource: ResourceNotification, Action: ActionSend}))
	err := p.RequirePermission(ta, Permission{Resource: ResourceGrade, Action: ActionAssign})
	assert.True(t, auth.IsKind(err, auth.KindForbidden))
	assert.Contains(t, err.Error(), "grade:assign")
}
