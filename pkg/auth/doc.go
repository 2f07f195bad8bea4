// Package auth implements token-based authentication for InnoSistemas.
//
// # Overview
//
// The package issues and validates HS512-signed JWTs, verifies credentials
// against a UserStore and orchestrates the login, refresh and logout flows on
// top of a revocation store and a session registry.
//
// # Key Components
//
// TokenCodec: issues ACCESS (24h) and REFRESH (7d) tokens and parses them,
// distinguishing malformed, invalid-signature and expired tokens.
//
//	codec, err := auth.NewTokenCodec(secret, 24*time.Hour, 7*24*time.Hour)
//	token, err := codec.Issue(user, auth.TokenTypeAccess)
//	claims, err := codec.Parse(token)
//
// CredentialVerifier: looks up a user by email and checks the stored Argon2id
// or bcrypt hash in constant time.
//
// Service: the orchestrator.
//
//	svc := auth.NewService(users, codec, blacklistStore, sessionRegistry, logger)
//	resp, err := svc.Login(ctx, email, password)
//	resp, err = svc.Refresh(ctx, resp.RefreshToken)
//	out := svc.Logout(ctx, resp.Token)
//
// Refresh gates run in a fixed order: revocation, validity, token type,
// identity, active session. The rotated refresh token is revoked before the
// new pair is returned.
//
// # Errors
//
// Operations return *AuthError values. Kind selects the GraphQL extension code
// and HTTP status; Message is safe for callers. Unknown-user and wrong-password
// failures share one message, and revoked tokens are reported exactly like
// invalid ones.
package auth
