package service

import (
	"context"
	"testing"

	"posterminal/internal/apierror"
	"posterminal/internal/config"
	"posterminal/internal/dto"
	"posterminal/internal/seed"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() *config.Config {
	return &config.Config{JWTSecret: "test-secret", JWTExpirationHours: 1, JWTRefreshHours: 2}
}

func TestLogin_ReportsOpenSession(t *testing.T) {
	env := newTestEnv(t, seed.Options{})
	ctx := context.Background()
	auth := NewAuthService(env.perms, env.cash, env.binding, testConfig())

	res, err := auth.Login(ctx, dto.LoginRequest{Username: seed.OperatorUsername, Password: seed.OperatorPassword})
	require.NoError(t, err)
	assert.Equal(t, "bearer", res.TokenType)
	assert.Equal(t, 3600, res.ExpiresIn)
	assert.Equal(t, env.fx.Terminal.Name, res.Terminal)
	assert.Equal(t, "5.00", res.Operator.MaxDiscountPercent)
	assert.Nil(t, res.SessionID)

	sess := env.openEngine(t, "0").Session()
	res, err = auth.Login(ctx, dto.LoginRequest{Username: seed.OperatorUsername, Password: seed.OperatorPassword})
	require.NoError(t, err)
	require.NotNil(t, res.SessionID)
	assert.Equal(t, sess.ID.String(), *res.SessionID)

	_, err = auth.Login(ctx, dto.LoginRequest{Username: seed.OperatorUsername, Password: "wrong"})
	requireCode(t, err, apierror.CategoryAuthorization, apierror.CodeInvalidCredentials)
}

func TestRefresh(t *testing.T) {
	env := newTestEnv(t, seed.Options{})
	ctx := context.Background()
	cfg := testConfig()
	auth := NewAuthService(env.perms, env.cash, nil, cfg)

	res, err := auth.Login(ctx, dto.LoginRequest{Username: seed.SupervisorUsername, Password: seed.SupervisorPassword})
	require.NoError(t, err)
	assert.Empty(t, res.Terminal)

	refreshed, err := auth.Refresh(ctx, res.RefreshToken)
	require.NoError(t, err)
	assert.Equal(t, res.Operator.ID, refreshed.Operator.ID)

	_, err = auth.Refresh(ctx, res.AccessToken)
	assert.ErrorIs(t, err, errInvalidRefresh)

	_, err = auth.Refresh(ctx, "not-a-token")
	assert.ErrorIs(t, err, errInvalidRefresh)

	forged := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"kind": TokenKindRefresh, "user_id": res.Operator.ID})
	signed, err := forged.SignedString([]byte("another-secret"))
	require.NoError(t, err)
	_, err = auth.Refresh(ctx, signed)
	assert.ErrorIs(t, err, errInvalidRefresh)
}
