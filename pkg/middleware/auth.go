package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/udea/innosistemas/pkg/auth"
	"github.com/udea/innosistemas/pkg/contextkeys"
	"github.com/udea/innosistemas/pkg/httputil"
)

// TokenAuthenticator resolves an access token to a principal. *auth.Service implements it.
type TokenAuthenticator interface {
	Authenticate(ctx context.Context, token string) (*auth.Principal, error)
}

// Authenticator turns the bearer token of a request into a principal on the request context
type Authenticator struct {
	tokens TokenAuthenticator
	logger logrus.FieldLogger
}

// NewAuthenticator creates the bearer-token middleware
func NewAuthenticator(tokens TokenAuthenticator, logger logrus.FieldLogger) *Authenticator {
	return &Authenticator{
		tokens: tokens,
		logger: logger.WithField("component", "authenticator"),
	}
}

// Handler attaches a principal when the request carries a valid access token.
// Requests without one continue anonymously; resolvers and RouteGuard decide whether that is allowed.
func (a *Authenticator) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, _ := a.authenticate(r)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// Require rejects requests without a valid access token with 401
func (a *Authenticator) Require(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, err := a.authenticate(r)
		if err != nil {
			writeAuthError(w, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (a *Authenticator) authenticate(r *http.Request) (context.Context, error) {
	ctx := r.Context()

	token, ok := BearerToken(r)
	if !ok {
		return ctx, auth.NewError(auth.KindUnauthenticated, nil)
	}
	// kept even when invalid so logout can report on it
	ctx = contextkeys.WithBearerToken(ctx, token)

	principal, err := a.tokens.Authenticate(ctx, token)
	if err != nil {
		a.logger.WithFields(logrus.Fields{
			"path":  r.URL.Path,
			"error": auth.KindOf(err).Code(),
		}).Debug("bearer token rejected")
		return ctx, err
	}

	ctx = contextkeys.WithPrincipal(ctx, principal)
	ctx = contextkeys.WithUserEmail(ctx, principal.Email)
	return ctx, nil
}

// BearerToken extracts the token of an "Authorization: Bearer <token>" header
func BearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

// PrincipalFrom returns the authenticated principal of ctx, or nil
func PrincipalFrom(ctx context.Context) *auth.Principal {
	p, _ := ctx.Value(contextkeys.PrincipalKey).(*auth.Principal)
	return p
}

// RequirePrincipal returns the principal of ctx or an UNAUTHENTICATED error
func RequirePrincipal(ctx context.Context) (*auth.Principal, error) {
	if p := PrincipalFrom(ctx); p != nil {
		return p, nil
	}
	return nil, auth.NewError(auth.KindUnauthenticated, nil)
}

func writeAuthError(w http.ResponseWriter, err error) {
	var authErr *auth.AuthError
	if !errors.As(err, &authErr) {
		authErr = auth.NewError(auth.KindUnauthenticated, err)
	}

	if authErr.Kind.HTTPStatus() == http.StatusUnauthorized {
		w.Header().Set("WWW-Authenticate", `Bearer realm="innosistemas"`)
	}
	httputil.RespondErrorCode(w, authErr.Kind.HTTPStatus(), authErr.Kind.Code(), authErr.Error())
}
