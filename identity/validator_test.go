package identity

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

func newTestValidator(t *testing.T) *HMACValidator {
	t.Helper()
	v, err := NewHMACValidator(Config{Secret: testSecret, Issuer: "placement"})
	require.NoError(t, err)
	return v
}

func signClaims(t *testing.T, method jwt.SigningMethod, key interface{}, claims jwt.Claims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(method, claims).SignedString(key)
	require.NoError(t, err)
	return token
}

func TestNewHMACValidator(t *testing.T) {
	_, err := NewHMACValidator(Config{})
	assert.Error(t, err)
}

func TestHMACValidator_ValidateToken(t *testing.T) {
	v := newTestValidator(t)
	ctx := context.Background()
	sub := uuid.New()

	t.Run("valid token", func(t *testing.T) {
		token, err := SignToken(testSecret, "placement", sub, RoleCompany, time.Hour)
		require.NoError(t, err)

		claims, err := v.ValidateToken(ctx, token)
		require.NoError(t, err)
		assert.Equal(t, sub, claims.Sub)
		assert.Equal(t, RoleCompany, claims.Role)
		assert.WithinDuration(t, time.Now().Add(time.Hour), claims.ExpiresAt, 5*time.Second)
	})

	t.Run("expired token", func(t *testing.T) {
		token, err := SignToken(testSecret, "placement", sub, RoleStudent, -time.Minute)
		require.NoError(t, err)

		_, err = v.ValidateToken(ctx, token)
		assert.ErrorIs(t, err, ErrTokenExpired)
	})

	t.Run("wrong secret", func(t *testing.T) {
		token, err := SignToken("other", "placement", sub, RoleStudent, time.Hour)
		require.NoError(t, err)

		_, err = v.ValidateToken(ctx, token)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("wrong issuer", func(t *testing.T) {
		token, err := SignToken(testSecret, "someone-else", sub, RoleStudent, time.Hour)
		require.NoError(t, err)

		_, err = v.ValidateToken(ctx, token)
		assert.ErrorIs(t, err, ErrInvalidIssuer)
	})

	t.Run("missing expiry", func(t *testing.T) {
		token := signClaims(t, jwt.SigningMethodHS256, []byte(testSecret), Claims{
			RegisteredClaims: jwt.RegisteredClaims{Subject: sub.String(), Issuer: "placement"},
			Role:             RoleAdmin,
		})

		_, err := v.ValidateToken(ctx, token)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("other signing method", func(t *testing.T) {
		token := signClaims(t, jwt.SigningMethodHS512, []byte(testSecret), Claims{
			RegisteredClaims: jwt.RegisteredClaims{
				Subject:   sub.String(),
				Issuer:    "placement",
				ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
			},
			Role: RoleAdmin,
		})

		_, err := v.ValidateToken(ctx, token)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("unknown role", func(t *testing.T) {
		token, err := SignToken(testSecret, "placement", sub, "janitor", time.Hour)
		require.NoError(t, err)

		_, err = v.ValidateToken(ctx, token)
		assert.ErrorIs(t, err, ErrUnknownRole)
	})

	t.Run("missing role", func(t *testing.T) {
		token, err := SignToken(testSecret, "placement", sub, "", time.Hour)
		require.NoError(t, err)

		_, err = v.ValidateToken(ctx, token)
		assert.ErrorIs(t, err, ErrMissingClaim)
	})

	t.Run("subject is not a uuid", func(t *testing.T) {
		token := signClaims(t, jwt.SigningMethodHS256, []byte(testSecret), Claims{
			RegisteredClaims: jwt.RegisteredClaims{
				Subject:   "student-42",
				Issuer:    "placement",
				ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
			},
			Role: RoleStudent,
		})

		_, err := v.ValidateToken(ctx, token)
		assert.Error(t, err)
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := v.ValidateToken(ctx, "not.a.jwt")
		assert.ErrorIs(t, err, ErrInvalidToken)
	})
}

func TestHMACValidator_NoIssuerConfigured(t *testing.T) {
	v, err := NewHMACValidator(Config{Secret: testSecret})
	require.NoError(t, err)

	token, err := SignToken(testSecret, "anyone", uuid.New(), RoleStudent, time.Hour)
	require.NoError(t, err)

	_, err = v.ValidateToken(context.Background(), token)
	assert.NoError(t, err)
}
