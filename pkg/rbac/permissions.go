package rbac

import (
	"sort"

	"github.com/udea/innosistemas/pkg/auth"
)

// Resource represents a resource type in the system
type Resource string

const (
	ResourceUser         Resource = "user"
	ResourceTeam         Resource = "team"
	ResourceCourse       Resource = "course"
	ResourceProject      Resource = "project"
	ResourceGrade        Resource = "grade"
	ResourceNotification Resource = "notification"
	ResourceSystem       Resource = "system"
)

// Action represents an action that can be performed on a resource
type Action string

const (
	ActionCreate    Action = "create"
	ActionRead      Action = "read"
	ActionUpdate    Action = "update"
	ActionDelete    Action = "delete"
	ActionSubmit    Action = "submit"
	ActionAssign    Action = "assign"
	ActionView      Action = "view"
	ActionSend      Action = "send"
	ActionConfigure Action = "configure"
)

// Permission represents a specific permission (resource + action)
type Permission struct {
	Resource Resource `json:"resource"`
	Action   Action   `json:"action"`
}

// String returns the "resource:action" form of the permission
func (p Permission) String() string {
	return string(p.Resource) + ":" + string(p.Action)
}

func perm(r Resource, a Action) Permission {
	return Permission{Resource: r, Action: a}
}

func crud(r Resource) []Permission {
	return []Permission{perm(r, ActionCreate), perm(r, ActionRead), perm(r, ActionUpdate), perm(r, ActionDelete)}
}

// Capabilities are the coarse booleans exposed next to the permission list
type Capabilities struct {
	CanManageTeam        bool `json:"canManageTeam"`
	CanManageCourse      bool `json:"canManageCourse"`
	CanViewAllTeams      bool `json:"canViewAllTeams"`
	CanSendNotifications bool `json:"canSendNotifications"`
}

// RoleGrant is what a role is allowed to do
type RoleGrant struct {
	Permissions  []Permission
	Capabilities Capabilities
	// BypassOwnership lets the role read any team or course
	BypassOwnership bool
}

// PermissionTable maps each role to its grant. A role missing from the table has no permissions.
type PermissionTable map[auth.Role]RoleGrant

// DefaultPermissionTable returns the built-in grants of the four roles
func DefaultPermissionTable() PermissionTable {
	var admin []Permission
	for _, r := range []Resource{ResourceUser, ResourceTeam, ResourceCourse} {
		admin = append(admin, crud(r)...)
	}
	admin = append(admin, perm(ResourceNotification, ActionSend), perm(ResourceSystem, ActionConfigure))

	return PermissionTable{
		auth.RoleAdmin: {
			Permissions: admin,
			Capabilities: Capabilities{
				CanManageTeam:        true,
				CanManageCourse:      true,
				CanViewAllTeams:      true,
				CanSendNotifications: true,
			},
			BypassOwnership: true,
		},
		auth.RoleProfessor: {
			Permissions: []Permission{
				perm(ResourceUser, ActionRead),
				perm(ResourceTeam, ActionRead),
				perm(ResourceTeam, ActionUpdate),
				perm(ResourceCourse, ActionCreate),
				perm(ResourceCourse, ActionRead),
				perm(ResourceCourse, ActionUpdate),
				perm(ResourceNotification, ActionSend),
				perm(ResourceGrade, ActionAssign),
			},
			Capabilities: Capabilities{
				CanManageCourse:      true,
				CanViewAllTeams:      true,
				CanSendNotifications: true,
			},
			BypassOwnership: true,
		},
		auth.RoleTA: {
			Permissions: []Permission{
				perm(ResourceUser, ActionRead),
				perm(ResourceTeam, ActionRead),
				perm(ResourceCourse, ActionRead),
				perm(ResourceNotification, ActionSend),
				perm(ResourceGrade, ActionView),
			},
			Capabilities: Capabilities{
				CanSendNotifications: true,
			},
		},
		auth.RoleStudent: {
			Permissions: []Permission{
				perm(ResourceTeam, ActionRead),
				perm(ResourceCourse, ActionRead),
				perm(ResourceProject, ActionSubmit),
				perm(ResourceGrade, ActionView),
			},
		},
	}
}

// clone copies the table so callers cannot mutate a policy after construction
func (t PermissionTable) clone() PermissionTable {
	out := make(PermissionTable, len(t))
	for role, grant := range t {
		perms := make([]Permission, len(grant.Permissions))
		copy(perms, grant.Permissions)
		grant.Permissions = perms
		out[role] = grant
	}
	return out
}

// UserPermissions is the permission view of one user
type UserPermissions struct {
	UserID      int64     `json:"userId"`
	Role        auth.Role `json:"role"`
	Permissions []string  `json:"permissions"`
	TeamID      *int64    `json:"teamId,omitempty"`
	CourseID    *int64    `json:"courseId,omitempty"`
	Capabilities
}

// Has reports whether the view contains the "resource:action" permission p
func (u *UserPermissions) Has(p string) bool {
	i := sort.SearchStrings(u.Permissions, p)
	return i < len(u.Permissions) && u.Permissions[i] == p
}
