package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/udea/innosistemas/pkg/auth"
	"github.com/udea/innosistemas/pkg/httputil"
	"github.com/udea/innosistemas/pkg/middleware"
	"github.com/udea/innosistemas/pkg/observability"
)

// HealthMessage is the body of GET /auth/health
const HealthMessage = "Auth service is running"

// LoginRequest is the body of POST /auth/login
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// AuthHandlers handles the REST authentication endpoints
type AuthHandlers struct {
	auth    AuthService
	audit   *auth.AuditLogger
	limiter *middleware.RateLimiter
	logger  logrus.FieldLogger
}

// NewAuthHandlers creates the REST auth handlers. limiter may be nil.
func NewAuthHandlers(authn AuthService, audit *auth.AuditLogger, limiter *middleware.RateLimiter, logger logrus.FieldLogger) *AuthHandlers {
	return &AuthHandlers{
		auth:    authn,
		audit:   audit,
		limiter: limiter,
		logger:  logger,
	}
}

// RegisterRoutes registers the authentication routes
func (h *AuthHandlers) RegisterRoutes(router *mux.Router) {
	login := httputil.Chain(httputil.ContentTypeMiddleware, httputil.MaxBytesMiddleware(maxBodyBytes))(http.HandlerFunc(h.login))
	if h.limiter != nil {
		login = h.limiter.Handler("auth.login")(login)
	}

	router.Handle("/auth/login", login).Methods("POST")
	router.HandleFunc("/auth/health", h.health).Methods("GET")
}

// login handles POST /auth/login
func (h *AuthHandlers) login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	req.Email = strings.TrimSpace(req.Email)
	if req.Email == "" || req.Password == "" {
		httputil.WriteBadRequest(w, "email and password are required")
		return
	}
	if !strings.Contains(req.Email, "@") {
		httputil.WriteBadRequest(w, "email is not valid")
		return
	}

	resp, err := h.auth.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		h.audit.RecordFromRequest(r, auth.ActionLogin, auth.NormalizeEmail(req.Email), auth.StatusFailure, errors.New(auth.KindOf(err).Code()))
		writeError(w, r, err)
		return
	}

	h.audit.RecordFromRequest(r, auth.ActionLogin, resp.UserInfo.Email, auth.StatusSuccess, nil)
	if err := httputil.WriteSuccess(w, resp); err != nil {
		observability.FromContext(r.Context()).WithError(err).Warn("failed to write login response")
	}
}

// health handles GET /auth/health
func (h *AuthHandlers) health(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(HealthMessage))
}

// writeError answers with the status and code of an *auth.AuthError. Anything else is logged and hidden.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var authErr *auth.AuthError
	if !errors.As(err, &authErr) {
		observability.FromContext(r.Context()).WithError(err).Error("request failed")
		authErr = auth.NewError(auth.KindUnavailable, err)
	}
	if authErr.Kind.HTTPStatus() == http.StatusUnauthorized {
		w.Header().Set("WWW-Authenticate", `Bearer realm="innosistemas"`)
	}
	httputil.RespondErrorCode(w, authErr.Kind.HTTPStatus(), authErr.Kind.Code(), authErr.Error())
}
