package auth_test

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taskhub-notify/internal/domain"
	"taskhub-notify/internal/service/auth"
)

func TestValidateAccessToken(t *testing.T) {
	svc := auth.NewService("test-secret")
	userID := uuid.New()

	t.Run("Valid", func(t *testing.T) {
		token, err := svc.IssueAccessToken(userID, domain.RoleSystem, time.Minute)
		require.NoError(t, err)

		principal, err := svc.ValidateAccessToken(token)
		require.NoError(t, err)
		assert.Equal(t, userID, principal.UserID)
		assert.Equal(t, domain.RoleSystem, principal.Role)
	})

	t.Run("Unknown role falls back to member", func(t *testing.T) {
		token, err := svc.IssueAccessToken(userID, "superuser", time.Minute)
		require.NoError(t, err)

		principal, err := svc.ValidateAccessToken(token)
		require.NoError(t, err)
		assert.Equal(t, domain.RoleMember, principal.Role)
	})

	t.Run("Expired", func(t *testing.T) {
		token, err := svc.IssueAccessToken(userID, domain.RoleMember, -time.Minute)
		require.NoError(t, err)

		_, err = svc.ValidateAccessToken(token)
		assert.ErrorIs(t, err, auth.ErrInvalidToken)
	})

	t.Run("Wrong secret", func(t *testing.T) {
		token, err := auth.NewService("other-secret").IssueAccessToken(userID, domain.RoleMember, time.Minute)
		require.NoError(t, err)

		_, err = svc.ValidateAccessToken(token)
		assert.ErrorIs(t, err, auth.ErrInvalidToken)
	})

	t.Run("Unsigned", func(t *testing.T) {
		token, err := jwt.NewWithClaims(jwt.SigningMethodNone, &auth.Claims{
			UserID: userID,
			RegisteredClaims: jwt.RegisteredClaims{
				ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
			},
		}).SignedString(jwt.UnsafeAllowNoneSignatureType)
		require.NoError(t, err)

		_, err = svc.ValidateAccessToken(token)
		assert.ErrorIs(t, err, auth.ErrInvalidToken)
	})

	t.Run("No secret configured", func(t *testing.T) {
		token, err := svc.IssueAccessToken(userID, domain.RoleMember, time.Minute)
		require.NoError(t, err)

		_, err = auth.NewService("").ValidateAccessToken(token)
		assert.ErrorIs(t, err, auth.ErrInvalidToken)
	})
}
