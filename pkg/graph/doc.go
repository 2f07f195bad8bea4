// Package graph serves the GraphQL API on top of the auth service and the
// authorization policy.
//
// Resolvers read the principal that middleware.Authenticator placed on the
// request context; nothing here parses tokens. Errors returned to clients
// are *auth.AuthError values, whose Extensions method puts the machine
// readable code under "extensions.code":
//
//	{"errors":[{"message":"not your team","path":["getTeamMembers"],"extensions":{"code":"FORBIDDEN"}}]}
//
// Any other error is logged and replaced by UNAVAILABLE.
package graph
