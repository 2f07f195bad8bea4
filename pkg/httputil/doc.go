// Package httputil holds the small JSON helpers shared by the REST handlers.
//
// Every error body has the shape {"error": "...", "code": "..."} so REST
// clients can branch on the same codes the GraphQL extensions carry.
//
//	httputil.RespondErrorCode(w, http.StatusUnauthorized, "TOKEN_INVALID", "invalid or revoked token")
//
// Request helpers decode strict JSON and parse mux path variables:
//
//	var req LoginRequest
//	if !httputil.ParseJSONOrError(w, r, &req) {
//		return
//	}
package httputil
