// Package rbac decides what an authenticated user may do.
//
// Policy is built from a PermissionTable mapping each role to its
// permissions, capability booleans and whether it may read any team or
// course. Everything is data; adding a role means adding a table entry.
//
//	policy := rbac.NewPolicy(rbac.DefaultPermissionTable(), logger)
//	perms := policy.Permissions(user)
//	if err := policy.AuthorizeTeam(user, teamID); err != nil {
//		return nil, err // FORBIDDEN
//	}
//
// # Ownership
//
// ADMIN and PROFESSOR read any team or course. STUDENT and TA need an
// assignment equal to the requested id. Having no assignment and having a
// different one produce different messages but the same FORBIDDEN code.
//
// # Route rules
//
// AccessRules is an ordered, immutable list of Ant-style path patterns and
// the roles allowed on them; the first match wins. RuleSet publishes the
// current snapshot through an atomic pointer and Replace swaps in a new one.
// RulesWatcher reloads a YAML file into the RuleSet on change:
//
//	rules:
//	  - pattern: /api/v1/admin/**
//	    roles: [ADMIN]
//	  - pattern: /graphql
//	    roles: []
//
// RouteGuard enforces the current snapshot as HTTP middleware.
package rbac
