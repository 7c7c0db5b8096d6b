package auth

import (
	"context"
	"testing"

	"github.com/findosh/agriconnect/internal/models"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSimulatedBackend_RequiresSecret(t *testing.T) {
	_, err := NewSimulatedBackend(SimulatedConfig{})
	assert.Error(t, err)
}

func TestSimulatedBackend_TokensAreSignedJWTs(t *testing.T) {
	clock := newFakeClock()
	b := newBackend(t, clock)

	_, tokens, err := b.Login(context.Background(), models.LoginCredentials{Email: DemoEmail, Password: DemoPassword})
	require.NoError(t, err)

	claims, err := b.parse(tokens.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "1", claims["sub"])
	assert.Equal(t, "access", claims["typ"])

	exp, err := claims.GetExpirationTime()
	require.NoError(t, err)
	assert.Equal(t, clock.Now().Add(accessTokenTTL).Unix(), exp.Unix())
}

func TestSimulatedBackend_RefreshRotation(t *testing.T) {
	clock := newFakeClock()
	b := newBackend(t, clock)
	ctx := context.Background()

	_, tokens, err := b.Login(ctx, models.LoginCredentials{Email: DemoEmail, Password: DemoPassword})
	require.NoError(t, err)

	next, err := b.Refresh(ctx, tokens.RefreshToken)
	require.NoError(t, err)
	assert.NotEqual(t, tokens.RefreshToken, next.RefreshToken)

	// The old refresh token is spent
	_, err = b.Refresh(ctx, tokens.RefreshToken)
	assert.True(t, IsBackendError(err))

	// Access tokens cannot be used to refresh
	_, err = b.Refresh(ctx, next.AccessToken)
	assert.True(t, IsBackendError(err))

	_, err = b.Refresh(ctx, next.RefreshToken)
	assert.NoError(t, err)
}

func TestSimulatedBackend_RejectsForeignTokens(t *testing.T) {
	clock := newFakeClock()
	b := newBackend(t, clock)

	forged, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "1",
		"typ": "refresh",
		"exp": clock.Now().Add(accessTokenTTL).Unix(),
		"jti": "forged",
	}).SignedString([]byte("another-secret"))
	require.NoError(t, err)

	_, err = b.Refresh(context.Background(), forged)
	assert.True(t, IsBackendError(err))

	_, err = b.Refresh(context.Background(), "mock-refresh-token-123")
	assert.True(t, IsBackendError(err))

	// Logout ignores tokens it cannot read
	assert.NoError(t, b.Logout(context.Background(), "garbage"))
}

func TestSimulatedBackend_UpdateProfile(t *testing.T) {
	b := newBackend(t, newFakeClock())
	current := models.User{ID: "7", Email: "a@b.c", Name: "Old", Role: models.RoleFarmer}

	expert := models.RoleExpert
	verified := true
	got, err := b.UpdateProfile(context.Background(), current, models.ProfileUpdate{Role: &expert, IsVerified: &verified})
	require.NoError(t, err)
	assert.Equal(t, models.RoleExpert, got.Role)
	assert.True(t, got.IsVerified)
	assert.Equal(t, "Old", got.Name)
	assert.Equal(t, "a@b.c", got.Email)
}
