package services

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAuthMessage(t *testing.T) {
	assert.Equal(t, "This email is already registered. Please sign in instead.", AuthMessage(CodeEmailInUse))
	assert.Equal(t, "Password should be at least 6 characters.", AuthMessage("weak-password"))
	assert.Equal(t, genericAuthMessage, AuthMessage("auth/quota-exceeded"))
	assert.Equal(t, genericAuthMessage, AuthMessage(""))

	for code := range authMessages {
		assert.NotEqual(t, genericAuthMessage, AuthMessage(code), code)
	}
}

func TestAuthErrorWrapping(t *testing.T) {
	cause := errors.New("dial tcp: timeout")
	err := error(&AuthError{Code: CodeNetworkFailed, Err: cause})

	var ae *AuthError
	assert.True(t, errors.As(err, &ae))
	assert.Equal(t, CodeNetworkFailed, ae.Code)
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "Network error. Please check your connection.", ae.Message())
}

func TestCheckCredentialsShape(t *testing.T) {
	var ae *AuthError

	assert.True(t, errors.As(checkCredentialsShape("not-an-email", "secret1"), &ae))
	assert.Equal(t, CodeInvalidEmail, ae.Code)

	assert.True(t, errors.As(checkCredentialsShape("asha@example.com", "12345"), &ae))
	assert.Equal(t, CodeWeakPassword, ae.Code)

	assert.NoError(t, checkCredentialsShape("asha@example.com", "123456"))
	assert.Equal(t, "asha@example.com", normalizeEmail("  Asha@Example.COM "))
}
