package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatus(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"validation", Invalid("name is required"), http.StatusBadRequest},
		{"not found", NotFound("category"), http.StatusNotFound},
		{"conflict", fmt.Errorf("slug taken: %w", ErrConflict), http.StatusConflict},
		{"missing token", ErrUnauthenticated, http.StatusUnauthorized},
		{"expired", fmt.Errorf("parse: %w", ErrTokenExpired), http.StatusUnauthorized},
		{"blocked", ErrBlocked, http.StatusForbidden},
		{"unavailable", ErrUnavailable, http.StatusServiceUnavailable},
		{"timeout", ErrTimeout, http.StatusGatewayTimeout},
		{"other", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Status(tt.err))
		})
	}
}

func TestSlugCollisionMatchesBothKinds(t *testing.T) {
	err := fmt.Errorf("slug %q already exists: %w %w", "web", ErrConflict, ErrValidation)
	assert.ErrorIs(t, err, ErrConflict)
	assert.ErrorIs(t, err, ErrValidation)
	assert.Equal(t, http.StatusConflict, Status(err))
}

func TestMessages(t *testing.T) {
	err := fmt.Errorf("settings: %w", Invalid("a", "b"))
	assert.Equal(t, []string{"a", "b"}, Messages(err))
	assert.Nil(t, Messages(ErrNotFound))
	assert.ErrorIs(t, err, ErrValidation)
}

func TestPublic(t *testing.T) {
	msg, ok := Public(fmt.Errorf("lookup: %w", NotFound("writeup")))
	assert.True(t, ok)
	assert.Equal(t, "writeup not found", msg)

	msg, ok = Public(ErrBlocked)
	assert.True(t, ok)
	assert.Equal(t, "Your account has been blocked. Please contact support.", msg)
	assert.ErrorIs(t, ErrBlocked, ErrForbidden)

	_, ok = Public(errors.New("driver exploded"))
	assert.False(t, ok)
}
