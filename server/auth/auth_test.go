package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoginSucceedsWithCorrectPassword(t *testing.T) {
	op, err := NewOperator([]byte("test-secret"), "hunter2")
	require.NoError(t, err)

	tok, err := op.Login("hunter2")
	require.NoError(t, err)
	assert.NotEmpty(t, tok)
	assert.NoError(t, op.Validate(tok))
}

func TestLoginFailsWithWrongPassword(t *testing.T) {
	op, err := NewOperator([]byte("test-secret"), "hunter2")
	require.NoError(t, err)

	_, err = op.Login("wrong")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrBadCredentials)
}

func TestValidateRejectsGarbageToken(t *testing.T) {
	op, err := NewOperator([]byte("test-secret"), "hunter2")
	require.NoError(t, err)

	err = op.Validate("not.a.jwt")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrBadToken)
}

func TestValidateRejectsTokenSignedWithDifferentSecret(t *testing.T) {
	opA, err := NewOperator([]byte("secret-a"), "hunter2")
	require.NoError(t, err)
	opB, err := NewOperator([]byte("secret-b"), "hunter2")
	require.NoError(t, err)

	tok, err := opA.Login("hunter2")
	require.NoError(t, err)

	err = opB.Validate(tok)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrBadToken)
}

func TestValidateRejectsExpiredToken(t *testing.T) {
	op, err := NewOperator([]byte("test-secret"), "hunter2")
	require.NoError(t, err)

	claims := jwt.MapClaims{
		"iss": issuer,
		"exp": time.Now().Add(-time.Hour).Unix(),
		"iat": time.Now().Add(-2 * time.Hour).Unix(),
	}
	expired := jwt.NewWithClaims(jwt.SigningMethodHS512, claims)
	tok, err := expired.SignedString([]byte("test-secret"))
	require.NoError(t, err)

	err = op.Validate(tok)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrBadToken)
}
