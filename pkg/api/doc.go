// Package api wires the HTTP surface of the InnoSistemas auth service.
//
// # Overview
//
// Server owns two gorilla/mux routers. The public router serves:
//
//	POST /graphql                          GraphQL queries and mutations
//	POST /auth/login                       REST login, rate limited per client address
//	GET  /auth/health                      plain-text liveness message
//	GET  /api/v1/me                        caller info and permission view
//	GET  /api/v1/teams/{teamId}/members    team roster, team ownership enforced
//	GET  /api/v1/courses/{courseId}/members course roster, course ownership enforced
//	GET  /api/v1/admin/access-rules        current route rules (ADMIN)
//	GET  /metrics                          Prometheus exposition (ADMIN)
//
// Every public request passes through request-id and logger injection, access
// logging, panic recovery, HTTP metrics, bearer-token authentication and the
// route guard, in that order. Authentication is optional at the router level;
// handlers and resolvers demand a principal where they need one.
//
// The ops router listens on its own port and serves /healthz, /readyz and
// /metrics without authentication, for probes and scraping inside the cluster.
//
// # Usage
//
//	srv, err := api.NewServer(cfg.Server, api.Deps{...}, logger)
//	if err != nil {
//		log.Fatal(err)
//	}
//	if err := srv.Run(ctx); err != nil {
//		log.Fatal(err)
//	}
//
// Run returns once ctx is cancelled and both listeners have drained, or as soon
// as either listener fails.
package api
