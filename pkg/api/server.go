package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/sync/errgroup"

	"github.com/udea/innosistemas/pkg/auth"
	"github.com/udea/innosistemas/pkg/config"
	"github.com/udea/innosistemas/pkg/graph"
	"github.com/udea/innosistemas/pkg/httputil"
	"github.com/udea/innosistemas/pkg/middleware"
	"github.com/udea/innosistemas/pkg/observability"
	"github.com/udea/innosistemas/pkg/rbac"
)

// maxBodyBytes caps JSON request bodies on the REST and GraphQL endpoints
const maxBodyBytes = 1 << 20

// AuthService is what the HTTP layer needs from the orchestrator. *auth.Service implements it.
type AuthService interface {
	graph.Authenticator
	middleware.TokenAuthenticator
}

// Deps are the collaborators wired into the server
type Deps struct {
	Auth      AuthService
	Directory graph.Directory
	Policy    *rbac.Policy
	Rules     *rbac.RuleSet
	Audit     *auth.AuditLogger
	Health    *observability.HealthChecker

	// Limiter is optional; nil disables rate limiting
	Limiter *middleware.RateLimiter

	// Metrics and Gatherer are optional; nil disables /metrics and request metrics
	Metrics  *observability.Metrics
	Gatherer prometheus.Gatherer
}

// Server serves the public API and the ops endpoints on separate listeners
type Server struct {
	cfg    config.ServerConfig
	deps   Deps
	router *mux.Router
	ops    *mux.Router
	logger logrus.FieldLogger
}

// NewServer builds both routers
func NewServer(cfg config.ServerConfig, deps Deps, logger logrus.FieldLogger) (*Server, error) {
	if deps.Auth == nil || deps.Directory == nil || deps.Policy == nil || deps.Rules == nil {
		return nil, fmt.Errorf("api server requires auth service, directory, policy and access rules")
	}
	if deps.Audit == nil {
		deps.Audit = auth.NewAuditLogger(logger)
	}

	s := &Server{
		cfg:    cfg,
		deps:   deps,
		router: mux.NewRouter(),
		ops:    mux.NewRouter(),
		logger: logger.WithField("component", "api"),
	}

	if err := s.setupRoutes(); err != nil {
		return nil, err
	}
	s.setupOpsRoutes()
	return s, nil
}

// setupRoutes configures the public router
func (s *Server) setupRoutes() error {
	s.router.Use(
		middleware.RequestContext(s.logger),
		middleware.AccessLog,
		observability.RecoveryMiddleware(s.logger),
	)
	if s.deps.Metrics != nil {
		s.router.Use(observability.HTTPMetricsMiddleware(s.deps.Metrics))
	}

	authn := middleware.NewAuthenticator(s.deps.Auth, s.logger)
	var denials rbac.DenialRecorder
	if s.deps.Metrics != nil {
		denials = s.deps.Metrics
	}
	guard := rbac.NewRouteGuard(s.deps.Rules, s.deps.Audit, denials, s.logger)
	s.router.Use(authn.Handler, guard.Handler)

	// GraphQL
	opts := []graph.Option{graph.WithAuditLogger(s.deps.Audit)}
	if s.deps.Limiter != nil {
		opts = append(opts, graph.WithLimiter(s.deps.Limiter))
	}
	resolver := graph.NewResolver(s.deps.Auth, s.deps.Directory, s.deps.Policy, s.logger, opts...)
	gql, err := graph.NewHandler(resolver)
	if err != nil {
		return fmt.Errorf("failed to build graphql handler: %w", err)
	}
	jsonBody := httputil.Chain(httputil.ContentTypeMiddleware, httputil.MaxBytesMiddleware(maxBodyBytes))
	s.router.Handle("/graphql", jsonBody(gql)).Methods("POST")

	// REST auth endpoints
	authHandlers := NewAuthHandlers(s.deps.Auth, s.deps.Audit, s.deps.Limiter, s.logger)
	authHandlers.RegisterRoutes(s.router)

	// Member directory and admin endpoints
	memberHandlers := NewMemberHandlers(s.deps.Directory, s.deps.Policy, s.logger)
	memberHandlers.RegisterRoutes(s.router)
	s.router.HandleFunc("/api/v1/admin/access-rules", s.listAccessRules).Methods("GET")

	if s.deps.Gatherer != nil {
		s.router.Handle("/metrics", observability.MetricsHandler(s.deps.Gatherer)).Methods("GET")
	}
	return nil
}

// setupOpsRoutes configures the probe listener. It carries no authentication.
func (s *Server) setupOpsRoutes() {
	if s.deps.Health != nil {
		s.ops.HandleFunc("/healthz", s.deps.Health.Liveness).Methods("GET")
		s.ops.HandleFunc("/readyz", s.deps.Health.Readiness).Methods("GET")
	}
	if s.deps.Gatherer != nil {
		s.ops.Handle("/metrics", observability.MetricsHandler(s.deps.Gatherer)).Methods("GET")
	}
}

// ServeHTTP implements http.Handler for the public router
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// OpsHandler returns the probe and metrics router
func (s *Server) OpsHandler() http.Handler {
	return s.ops
}

// listAccessRules handles GET /api/v1/admin/access-rules
func (s *Server) listAccessRules(w http.ResponseWriter, r *http.Request) {
	rules := s.deps.Rules.Current().Rules()
	if err := httputil.WriteSuccess(w, map[string]interface{}{"rules": rules}); err != nil {
		s.logger.WithError(err).Warn("failed to write access rules")
	}
}

// Run serves both listeners until ctx is cancelled, then shuts them down within ShutdownTimeout
func (s *Server) Run(ctx context.Context) error {
	servers := []*http.Server{
		{
			Addr:         net.JoinHostPort(s.cfg.Host, s.cfg.Port),
			Handler:      otelhttp.NewHandler(s.router, "innosistemas-api"),
			ReadTimeout:  s.cfg.ReadTimeout,
			WriteTimeout: s.cfg.WriteTimeout,
			IdleTimeout:  s.cfg.IdleTimeout,
		},
		{
			Addr:         net.JoinHostPort(s.cfg.Host, s.cfg.HealthPort),
			Handler:      s.ops,
			ReadTimeout:  s.cfg.ReadTimeout,
			WriteTimeout: s.cfg.WriteTimeout,
		},
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, srv := range servers {
		srv := srv
		g.Go(func() error {
			s.logger.WithField("addr", srv.Addr).Info("http server listening")
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("listen on %s: %w", srv.Addr, err)
			}
			return nil
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		s.logger.Info("shutting down http servers")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
		defer cancel()

		var errs []error
		for _, srv := range servers {
			if err := srv.Shutdown(shutdownCtx); err != nil {
				errs = append(errs, fmt.Errorf("shutdown %s: %w", srv.Addr, err))
			}
		}
		return errors.Join(errs...)
	})

	return g.Wait()
}
