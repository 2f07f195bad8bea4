package api

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/udea/innosistemas/pkg/auth"
	"github.com/udea/innosistemas/pkg/graph"
	"github.com/udea/innosistemas/pkg/httputil"
	"github.com/udea/innosistemas/pkg/middleware"
	"github.com/udea/innosistemas/pkg/observability"
	"github.com/udea/innosistemas/pkg/rbac"
)

// MemberHandlers serves the REST view of team and course membership.
// Ownership follows the same policy as the GraphQL queries.
type MemberHandlers struct {
	directory graph.Directory
	policy    *rbac.Policy
	logger    logrus.FieldLogger
}

// NewMemberHandlers creates the member handlers
func NewMemberHandlers(directory graph.Directory, policy *rbac.Policy, logger logrus.FieldLogger) *MemberHandlers {
	return &MemberHandlers{
		directory: directory,
		policy:    policy,
		logger:    logger,
	}
}

// RegisterRoutes registers the member routes
func (h *MemberHandlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/api/v1/me", h.me).Methods("GET")
	router.HandleFunc("/api/v1/teams/{teamId}/members", h.teamMembers).Methods("GET")
	router.HandleFunc("/api/v1/courses/{courseId}/members", h.courseMembers).Methods("GET")
}

// me handles GET /api/v1/me
func (h *MemberHandlers) me(w http.ResponseWriter, r *http.Request) {
	principal, err := middleware.RequirePrincipal(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	h.respond(w, r, map[string]interface{}{
		"user":        auth.NewUserInfo(principal.User()),
		"permissions": h.policy.Permissions(principal.User()),
	})
}

// teamMembers handles GET /api/v1/teams/{teamId}/members
func (h *MemberHandlers) teamMembers(w http.ResponseWriter, r *http.Request) {
	principal, err := middleware.RequirePrincipal(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	teamID, ok := httputil.ParsePathInt64OrError(w, r, "teamId")
	if !ok {
		return
	}
	if err := h.policy.AuthorizeTeam(principal.User(), teamID); err != nil {
		writeError(w, r, err)
		return
	}

	users, err := h.directory.ListByTeam(r.Context(), teamID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	h.respond(w, r, userInfos(users))
}

// courseMembers handles GET /api/v1/courses/{courseId}/members
func (h *MemberHandlers) courseMembers(w http.ResponseWriter, r *http.Request) {
	principal, err := middleware.RequirePrincipal(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	courseID, ok := httputil.ParsePathInt64OrError(w, r, "courseId")
	if !ok {
		return
	}
	if err := h.policy.AuthorizeCourse(principal.User(), courseID); err != nil {
		writeError(w, r, err)
		return
	}

	users, err := h.directory.ListByCourse(r.Context(), courseID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	h.respond(w, r, userInfos(users))
}

func (h *MemberHandlers) respond(w http.ResponseWriter, r *http.Request, data interface{}) {
	if err := httputil.WriteSuccess(w, data); err != nil {
		observability.FromContext(r.Context()).WithError(err).Warn("failed to write response")
	}
}

func userInfos(users []*auth.User) []*auth.UserInfo {
	out := make([]*auth.UserInfo, 0, len(users))
	for _, u := range users {
		out = append(out, auth.NewUserInfo(u))
	}
	return out
}
