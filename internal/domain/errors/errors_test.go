package errors

import (
	"net/http"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
)

func TestBaseError_WrapMessageKeepsIdentity(t *testing.T) {
	wrapped := ErrRefreshTokenReused.WrapMessage("presented token found in history")

	assert.True(t, errors.Is(wrapped, ErrRefreshTokenReused))
	assert.False(t, errors.Is(wrapped, ErrRefreshTokenNotFound))

	var appErr AppError
	assert.True(t, errors.As(wrapped, &appErr))
	assert.Equal(t, http.StatusUnauthorized, appErr.HTTPCode())
	assert.Equal(t, "REFRESH_TOKEN_REUSED", appErr.ErrorCode())
}

func TestBaseError_WithDetailsMatchesOriginal(t *testing.T) {
	detailed := ErrMissingRequiredProfileField.WithDetails("email")

	assert.True(t, errors.Is(detailed, ErrMissingRequiredProfileField))
	assert.Equal(t, "email", detailed.Details())
	assert.Empty(t, ErrMissingRequiredProfileField.Details())
}

func TestErrorTaxonomy_HTTPCodes(t *testing.T) {
	tests := []struct {
		err  *BaseError
		code int
	}{
		{ErrInvalidCredentials, http.StatusUnauthorized},
		{ErrAccountNotFound, http.StatusNotFound},
		{ErrUsernameTaken, http.StatusConflict},
		{ErrTokenInvalid, http.StatusUnauthorized},
		{ErrTokenExpired, http.StatusUnauthorized},
		{ErrRefreshTokenNotFound, http.StatusUnauthorized},
		{ErrRefreshTokenExpired, http.StatusUnauthorized},
		{ErrRefreshTokenReused, http.StatusUnauthorized},
		{ErrOAuthGatewayTimeout, http.StatusGatewayTimeout},
		{ErrOAuthGatewayError, http.StatusBadGateway},
		{ErrMissingRequiredProfileField, http.StatusUnprocessableEntity},
	}

	for _, tt := range tests {
		t.Run(tt.err.ErrorCode(), func(t *testing.T) {
			assert.Equal(t, tt.code, tt.err.HTTPCode())
			assert.NotEmpty(t, tt.err.Message())
		})
	}
}

func TestDatabaseExecuteError_Unwrap(t *testing.T) {
	cause := errors.New("connection reset")
	err := NewDatabaseExecuteError(cause, "failed to append history")

	assert.True(t, errors.Is(err, cause))
	assert.Equal(t, http.StatusInternalServerError, err.HTTPCode())
	assert.Contains(t, err.Error(), "connection reset")
}
