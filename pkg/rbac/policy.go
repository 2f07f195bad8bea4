package rbac

import (
	"sort"

	"github.com/sirupsen/logrus"

	"github.com/udea/innosistemas/pkg/auth"
)

// Ownership denial messages shown to callers
const (
	MsgNoTeam      = "not a member of any team"
	MsgWrongTeam   = "not your team"
	MsgNoCourse    = "not enrolled in any course"
	MsgWrongCourse = "not your course"
)

// DenialRecorder counts authorization denials
type DenialRecorder interface {
	RecordAccessDenied(role string)
}

type nopDenials struct{}

func (nopDenials) RecordAccessDenied(string) {}

// Policy answers permission and ownership questions from an immutable table
type Policy struct {
	table    PermissionTable
	logger   logrus.FieldLogger
	recorder DenialRecorder
}

// PolicyOption configures a Policy
type PolicyOption func(*Policy)

// WithDenialRecorder sets the denial counter
func WithDenialRecorder(rec DenialRecorder) PolicyOption {
	return func(p *Policy) {
		if rec != nil {
			p.recorder = rec
		}
	}
}

// NewPolicy builds a policy over a private copy of table
func NewPolicy(table PermissionTable, logger logrus.FieldLogger, opts ...PolicyOption) *Policy {
	p := &Policy{
		table:    table.clone(),
		logger:   logger.WithField("component", "rbac_policy"),
		recorder: nopDenials{},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Permissions computes the permission view of user
func (p *Policy) Permissions(user *auth.User) *UserPermissions {
	grant := p.table[user.Role]

	names := make([]string, 0, len(grant.Permissions))
	for _, perm := range grant.Permissions {
		names = append(names, perm.String())
	}
	sort.Strings(names)

	return &UserPermissions{
		UserID:       user.ID,
		Role:         user.Role,
		Permissions:  names,
		TeamID:       user.TeamID,
		CourseID:     user.CourseID,
		Capabilities: grant.Capabilities,
	}
}

// HasPermission reports whether role holds perm
func (p *Policy) HasPermission(role auth.Role, perm Permission) bool {
	for _, granted := range p.table[role].Permissions {
		if granted == perm {
			return true
		}
	}
	return false
}

// RequireRole fails with UNAUTHENTICATED for a nil principal and FORBIDDEN when
// the principal holds none of roles
func (p *Policy) RequireRole(principal *auth.Principal, roles ...auth.Role) error {
	if principal == nil {
		return auth.NewError(auth.KindUnauthenticated, nil)
	}
	if principal.HasRole(roles...) {
		return nil
	}
	return p.deny(principal.Email, principal.Role, "insufficient role", logrus.Fields{"required": roles})
}

// RequirePermission fails with FORBIDDEN unless the principal's role holds perm
func (p *Policy) RequirePermission(principal *auth.Principal, perm Permission) error {
	if principal == nil {
		return auth.NewError(auth.KindUnauthenticated, nil)
	}
	if p.HasPermission(principal.Role, perm) {
		return nil
	}
	return p.deny(principal.Email, principal.Role, "missing permission "+perm.String(), nil)
}

// AuthorizeTeam checks that user may read team teamID
func (p *Policy) AuthorizeTeam(user *auth.User, teamID int64) error {
	return p.authorizeOwned(user, user.TeamID, teamID, MsgNoTeam, MsgWrongTeam, "team")
}

// AuthorizeCourse checks that user may read course courseID
func (p *Policy) AuthorizeCourse(user *auth.User, courseID int64) error {
	return p.authorizeOwned(user, user.CourseID, courseID, MsgNoCourse, MsgWrongCourse, "course")
}

func (p *Policy) authorizeOwned(user *auth.User, assigned *int64, requested int64, none, wrong, resource string) error {
	if user == nil {
		return auth.NewError(auth.KindUnauthenticated, nil)
	}
	if p.table[user.Role].BypassOwnership {
		return nil
	}

	fields := logrus.Fields{"resource": resource, "requested_id": requested}
	if assigned == nil {
		return p.deny(user.Email, user.Role, none, fields)
	}
	if *assigned != requested {
		fields["assigned_id"] = *assigned
		return p.deny(user.Email, user.Role, wrong, fields)
	}
	return nil
}

func (p *Policy) deny(email string, role auth.Role, reason string, fields logrus.Fields) error {
	p.logger.WithFields(fields).WithFields(logrus.Fields{
		"email":  email,
		"role":   role,
		"reason": reason,
	}).Warn("access denied")
	p.recorder.RecordAccessDenied(string(role))
	return auth.Forbidden(reason)
}
