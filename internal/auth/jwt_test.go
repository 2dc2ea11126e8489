package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenRoundTrip(t *testing.T) {
	svc := NewTokenService("test-secret")

	tok, err := svc.GenerateToken("ana")
	require.NoError(t, err)

	claims, err := svc.ValidateToken(tok)
	require.NoError(t, err)
	assert.Equal(t, "ana", claims.Operator)
}

func TestValidateRejectsWrongSecret(t *testing.T) {
	tok, err := NewTokenService("secret-a").GenerateToken("ana")
	require.NoError(t, err)

	_, err = NewTokenService("secret-b").ValidateToken(tok)
	assert.Error(t, err)
}

func TestEmptySecretRefused(t *testing.T) {
	svc := NewTokenService("")
	_, err := svc.GenerateToken("ana")
	assert.Error(t, err)
}
