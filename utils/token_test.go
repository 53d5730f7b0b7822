package utils_test

import (
	"testing"
	"time"

	"github.com/mmdatafocus/boarding_backend/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJwtRoundTrip(t *testing.T) {
	token, expiresAt, err := utils.JwtGenerate(12, "manager", 3)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(utils.TokenLifespan()), expiresAt, time.Minute)

	claims, err := utils.ParseClaims(token)
	require.NoError(t, err)
	assert.Equal(t, 12, claims.ID)
	assert.Equal(t, "manager", claims.Role)
	assert.Equal(t, 3, claims.BoardingHouseId)
	assert.NotEmpty(t, claims.Id)

	_, err = utils.ParseClaims(token + "x")
	assert.Error(t, err)
	_, err = utils.ParseClaims("not-a-token")
	assert.Error(t, err)
}

func TestTokenLifespan(t *testing.T) {
	t.Setenv("TOKEN_HOUR_LIFESPAN", "2")
	assert.Equal(t, 2*time.Hour, utils.TokenLifespan())
	t.Setenv("TOKEN_HOUR_LIFESPAN", "zero")
	assert.Equal(t, 12*time.Hour, utils.TokenLifespan())
}

func TestPasswords(t *testing.T) {
	hashed, err := utils.HashPassword("letmein42")
	require.NoError(t, err)
	assert.NoError(t, utils.ComparePassword(string(hashed), "letmein42"))
	assert.Error(t, utils.ComparePassword(string(hashed), "letmein43"))

	assert.NoError(t, utils.ValidatePasswordStrength("letmein42"))
	assert.ErrorIs(t, utils.ValidatePasswordStrength("short1"), utils.ErrValidation)
	assert.ErrorIs(t, utils.ValidatePasswordStrength("onlyletters"), utils.ErrValidation)
	assert.ErrorIs(t, utils.ValidatePasswordStrength("1234567890"), utils.ErrValidation)
}
