package rbac

import (
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/udea/innosistemas/pkg/auth"
	"github.com/udea/innosistemas/pkg/contextkeys"
	"github.com/udea/innosistemas/pkg/httputil"
)

// RouteGuard enforces the current AccessRules on each request.
// It must run after the authenticator has placed the principal on the context.
type RouteGuard struct {
	rules    *RuleSet
	audit    *auth.AuditLogger
	recorder DenialRecorder
	logger   logrus.FieldLogger
}

// NewRouteGuard creates the guard. audit and recorder may be nil.
func NewRouteGuard(rules *RuleSet, audit *auth.AuditLogger, recorder DenialRecorder, logger logrus.FieldLogger) *RouteGuard {
	if recorder == nil {
		recorder = nopDenials{}
	}
	return &RouteGuard{
		rules:    rules,
		audit:    audit,
		recorder: recorder,
		logger:   logger.WithField("component", "route_guard"),
	}
}

// Handler rejects requests whose principal holds none of the roles of the matching rule.
// Unmatched paths and rules without roles pass through.
func (g *RouteGuard) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rule, ok := g.rules.Current().Match(r.URL.Path)
		if !ok || len(rule.Roles) == 0 {
			next.ServeHTTP(w, r)
			return
		}

		principal, _ := r.Context().Value(contextkeys.PrincipalKey).(*auth.Principal)
		if principal == nil {
			w.Header().Set("WWW-Authenticate", `Bearer realm="innosistemas"`)
			httputil.RespondErrorCode(w, http.StatusUnauthorized, auth.KindUnauthenticated.Code(), "authentication required")
			return
		}

		if !principal.HasRole(rule.Roles...) {
			g.logger.WithFields(logrus.Fields{
				"email":    principal.Email,
				"role":     principal.Role,
				"path":     r.URL.Path,
				"rule":     rule.Pattern,
				"required": rule.Roles,
			}).Warn("route access denied")
			g.recorder.RecordAccessDenied(string(principal.Role))
			if g.audit != nil {
				g.audit.RecordFromRequest(r, auth.ActionAccessDenied, principal.Email, auth.StatusDenied, nil)
			}
			httputil.WriteForbidden(w, "insufficient permissions")
			return
		}

		next.ServeHTTP(w, r)
	})
}
