package token

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "trustledger/pkg/domain-errors"
)

func TestGenerateAndValidate(t *testing.T) {
	svc := NewService("test-key", "trustledger")

	tokenString, err := svc.Generate("platform-1", "did:key:platform", time.Hour)
	require.NoError(t, err)

	claims, err := svc.Validate(tokenString)
	require.NoError(t, err)
	assert.Equal(t, "platform-1", claims.Subject)
	assert.Equal(t, "did:key:platform", claims.ClientDID)
	assert.Equal(t, "trustledger", claims.Issuer)
}

func TestValidate_Expired(t *testing.T) {
	svc := NewService("test-key", "trustledger")

	tokenString, err := svc.Generate("platform-1", "", -time.Minute)
	require.NoError(t, err)

	_, err = svc.Validate(tokenString)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
}

func TestValidate_WrongKey(t *testing.T) {
	tokenString, err := NewService("key-a", "trustledger").Generate("platform-1", "", time.Hour)
	require.NoError(t, err)

	_, err = NewService("key-b", "trustledger").Validate(tokenString)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
}

func TestValidate_Garbage(t *testing.T) {
	_, err := NewService("test-key", "trustledger").Validate("not.a.jwt")
	assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
}

func TestValidatorAdapter(t *testing.T) {
	svc := NewService("test-key", "trustledger")
	validator := NewValidator(svc)

	tokenString, err := svc.Generate("platform-1", "did:key:platform", time.Hour)
	require.NoError(t, err)

	claims, err := validator.Validate(tokenString)
	require.NoError(t, err)
	assert.Equal(t, "platform-1", claims.Subject)
	assert.Equal(t, "did:key:platform", claims.ClientDID)
}
