package auth

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRole(t *testing.T) {
	tests := []struct {
		input   string
		want    Role
		wantErr bool
	}{
		{"STUDENT", RoleStudent, false},
		{"professor", RoleProfessor, false},
		{" ta ", RoleTA, false},
		{"Admin", RoleAdmin, false},
		{"guest", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseRole(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestUser_FullName(t *testing.T) {
	assert.Equal(t, "Ana Gómez", (&User{FirstName: "Ana", LastName: "Gómez"}).FullName())
	assert.Equal(t, "Ana", (&User{FirstName: "Ana"}).FullName())
	assert.Equal(t, "", (&User{}).FullName())
}

func TestNewUserInfo(t *testing.T) {
	info := NewUserInfo(testUser())

	assert.Equal(t, int64(7), info.ID)
	assert.Equal(t, "ana@udea.edu.co", info.Email)
	assert.Equal(t, RoleStudent, info.Role)
	assert.Equal(t, "Ana Gómez", info.FullName)
	require.NotNil(t, info.CourseID)
	assert.Equal(t, int64(11), *info.CourseID)
}

func TestPrincipal_HasRole(t *testing.T) {
	p := NewPrincipal(testUser(), nil)

	assert.True(t, p.HasRole(RoleStudent))
	assert.True(t, p.HasRole(RoleAdmin, RoleStudent))
	assert.False(t, p.HasRole(RoleAdmin, RoleProfessor))
	assert.False(t, p.HasRole())
	assert.Equal(t, p.Email, p.User().Email)
}

func TestAuthError(t *testing.T) {
	t.Run("revoked and invalid look the same to callers", func(t *testing.T) {
		revoked := NewError(KindTokenRevoked, nil)
		invalid := NewError(KindTokenInvalid, nil)

		assert.Equal(t, invalid.Error(), revoked.Error())
		assert.Equal(t, invalid.Extensions(), revoked.Extensions())
	})

	t.Run("forbidden carries its reason", func(t *testing.T) {
		err := Forbidden("not your team")
		assert.Equal(t, "not your team", err.Error())
		assert.Equal(t, "FORBIDDEN", err.Extensions()["code"])
		assert.Equal(t, http.StatusForbidden, err.Kind.HTTPStatus())
	})

	t.Run("unwraps its cause", func(t *testing.T) {
		err := NewError(KindTokenExpired, ErrTokenExpired)
		assert.ErrorIs(t, err, ErrTokenExpired)
	})

	t.Run("kind survives wrapping", func(t *testing.T) {
		wrapped := fmt.Errorf("resolver: %w", NewError(KindNoActiveSessions, nil))
		assert.Equal(t, KindNoActiveSessions, KindOf(wrapped))
		assert.True(t, IsKind(wrapped, KindNoActiveSessions))
		assert.Equal(t, ErrorKind(0), KindOf(errors.New("plain")))
	})

	t.Run("unknown kind", func(t *testing.T) {
		assert.Equal(t, "INTERNAL", ErrorKind(99).Code())
		assert.Equal(t, http.StatusInternalServerError, ErrorKind(99).HTTPStatus())
	})
}
