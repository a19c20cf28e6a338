package auth

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helixir/research-survey-service/internal/config"
	"github.com/helixir/research-survey-service/internal/domain"
)

func testManager() *Manager {
	return NewManager(&config.AuthConfig{
		JWTSecret: "test-secret-do-not-use-in-production",
		Issuer:    "research-survey-service",
		TokenTTL:  time.Hour,
	})
}

func TestManager_IssueAndValidate(t *testing.T) {
	m := testManager()
	userID := uuid.New()

	token, err := m.IssueToken(userID)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	got, err := m.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, userID, got)
}

func TestManager_ValidateToken(t *testing.T) {
	m := testManager()
	userID := uuid.New()

	t.Run("garbage token", func(t *testing.T) {
		_, err := m.ValidateToken("not.a.token")
		assert.ErrorIs(t, err, domain.ErrUnauthorized)
	})

	t.Run("wrong secret", func(t *testing.T) {
		other := NewManager(&config.AuthConfig{
			JWTSecret: "different-secret",
			Issuer:    "research-survey-service",
			TokenTTL:  time.Hour,
		})
		token, err := other.IssueToken(userID)
		require.NoError(t, err)

		_, err = m.ValidateToken(token)
		assert.ErrorIs(t, err, domain.ErrUnauthorized)
	})

	t.Run("wrong issuer", func(t *testing.T) {
		other := NewManager(&config.AuthConfig{
			JWTSecret: "test-secret-do-not-use-in-production",
			Issuer:    "someone-else",
			TokenTTL:  time.Hour,
		})
		token, err := other.IssueToken(userID)
		require.NoError(t, err)

		_, err = m.ValidateToken(token)
		assert.ErrorIs(t, err, domain.ErrUnauthorized)
	})

	t.Run("expired token", func(t *testing.T) {
		expired := NewManager(&config.AuthConfig{
			JWTSecret: "test-secret-do-not-use-in-production",
			Issuer:    "research-survey-service",
			TokenTTL:  -time.Minute,
		})
		token, err := expired.IssueToken(userID)
		require.NoError(t, err)

		_, err = m.ValidateToken(token)
		assert.ErrorIs(t, err, domain.ErrUnauthorized)
	})

	t.Run("non-uuid subject", func(t *testing.T) {
		claims := jwt.RegisteredClaims{
			Issuer:    "research-survey-service",
			Subject:   "admin",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		}
		token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
		signed, err := token.SignedString([]byte("test-secret-do-not-use-in-production"))
		require.NoError(t, err)

		_, err = m.ValidateToken(signed)
		assert.ErrorIs(t, err, domain.ErrUnauthorized)
	})
}

func TestUserIDContext(t *testing.T) {
	userID := uuid.New()

	ctx := ContextWithUserID(context.Background(), userID)
	got, ok := UserIDFromContext(ctx)
	require.True(t, ok)
	assert.Equal(t, userID, got)

	_, ok = UserIDFromContext(context.Background())
	assert.False(t, ok)
}
