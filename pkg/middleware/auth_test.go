package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/udea/innosistemas/pkg/auth"
	"github.com/udea/innosistemas/pkg/contextkeys"
)

type fakeTokens struct {
	principals map[string]*auth.Principal
	err        error
}

func (f *fakeTokens) Authenticate(_ context.Context, token string) (*auth.Principal, error) {
	if f.err != nil {
		return nil, f.err
	}
	if p, ok := f.principals[token]; ok {
		return p, nil
	}
	return nil, auth.NewError(auth.KindTokenInvalid, nil)
}

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func newTestAuthenticator() *Authenticator {
	return NewAuthenticator(&fakeTokens{principals: map[string]*auth.Principal{
		"good": {UserID: 1, Email: "ana@udea.edu.co", Role: auth.RoleStudent},
	}}, quietLogger())
}

func TestBearerToken(t *testing.T) {
	tests := []struct {
		header string
		want   string
		ok     bool
	}{
		{"Bearer abc", "abc", true},
		{"bearer abc", "abc", true},
		{"Bearer   abc  ", "abc", true},
		{"Basic abc", "", false},
		{"Bearer", "", false},
		{"Bearer ", "", false},
		{"", "", false},
	}

	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		if tt.header != "" {
			req.Header.Set("Authorization", tt.header)
		}
		got, ok := BearerToken(req)
		assert.Equal(t, tt.ok, ok, "header %q", tt.header)
		assert.Equal(t, tt.want, got, "header %q", tt.header)
	}
}

func TestAuthenticator_Handler(t *testing.T) {
	a := newTestAuthenticator()

	t.Run("valid token attaches principal", func(t *testing.T) {
		var got *auth.Principal
		var email string
		h := a.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got = PrincipalFrom(r.Context())
			email = contextkeys.GetUserEmail(r.Context())
		}))

		req := httptest.NewRequest(http.MethodPost, "/graphql", nil)
		req.Header.Set("Authorization", "Bearer good")
		h.ServeHTTP(httptest.NewRecorder(), req)

		require.NotNil(t, got)
		assert.Equal(t, int64(1), got.UserID)
		assert.Equal(t, "ana@udea.edu.co", email)
	})

	t.Run("invalid token continues anonymously with the raw token kept", func(t *testing.T) {
		called := false
		h := a.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			called = true
			assert.Nil(t, PrincipalFrom(r.Context()))
			assert.Equal(t, "bad", contextkeys.GetBearerToken(r.Context()))
		}))

		req := httptest.NewRequest(http.MethodPost, "/graphql", nil)
		req.Header.Set("Authorization", "Bearer bad")
		h.ServeHTTP(httptest.NewRecorder(), req)
		assert.True(t, called)
	})

	t.Run("no header continues anonymously", func(t *testing.T) {
		called := false
		h := a.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			called = true
			_, err := RequirePrincipal(r.Context())
			assert.True(t, auth.IsKind(err, auth.KindUnauthenticated))
		}))
		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/graphql", nil))
		assert.True(t, called)
	})
}

func TestAuthenticator_Require(t *testing.T) {
	a := newTestAuthenticator()
	h := a.Require(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	tests := []struct {
		name   string
		header string
		status int
		code   string
	}{
		{"missing", "", http.StatusUnauthorized, "UNAUTHENTICATED"},
		{"invalid", "Bearer bad", http.StatusUnauthorized, "TOKEN_INVALID"},
		{"valid", "Bearer good", http.StatusNoContent, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/v1/teams/1/members", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			h.ServeHTTP(w, req)

			assert.Equal(t, tt.status, w.Code)
			if tt.code == "" {
				return
			}
			var body map[string]string
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			assert.Equal(t, tt.code, body["code"])
			assert.Contains(t, w.Header().Get("WWW-Authenticate"), "Bearer")
		})
	}
}

func TestAuthenticator_RequireStoreOutage(t *testing.T) {
	a := NewAuthenticator(&fakeTokens{err: auth.NewError(auth.KindUnavailable, errors.New("redis down"))}, quietLogger())
	h := a.Require(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not run")
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer good")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Empty(t, w.Header().Get("WWW-Authenticate"))
	assert.NotContains(t, w.Body.String(), "redis down")
}

func TestWriteAuthError_PlainError(t *testing.T) {
	w := httptest.NewRecorder()
	writeAuthError(w, errors.New("boom"))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.NotContains(t, w.Body.String(), "boom")
}
