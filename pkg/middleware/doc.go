// Package middleware holds the HTTP middleware in front of the API.
//
// RequestContext assigns a request id and a request-scoped logger.
// Authenticator resolves "Authorization: Bearer <token>" to an
// *auth.Principal on the request context; Handler lets anonymous requests
// through for the resolvers to decide, Require answers 401 itself.
// RateLimiter is a fixed-window counter in Redis keyed by route and client
// address. It fails open when Redis is unreachable.
//
//	r.Use(middleware.RequestContext(logger), middleware.AccessLog)
//	r.Use(authn.Handler)
//	r.Handle("/auth/login", limiter.Handler("/auth/login")(loginHandler))
package middleware
