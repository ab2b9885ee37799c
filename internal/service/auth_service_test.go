package service

import (
	"context"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/require"

	"github.com/examdesk/examdesk-api/internal/dto"
	"github.com/examdesk/examdesk-api/internal/models"
)

func newAuthFixture(t *testing.T) (*authService, *memoryUserRepo, models.User) {
	t.Helper()
	users := newMemoryUserRepo()

	hash, err := HashPassword("secret123")
	require.NoError(t, err)
	user := models.User{
		Username: "alice", PasswordHash: hash, Role: models.RoleInstructor,
		TenantID: 3, Timezone: "Asia/Jakarta",
	}
	require.NoError(t, users.Create(context.Background(), &user))

	validate := validator.New(validator.WithRequiredStructEnabled())
	svc := NewAuthService(users, validate, "access-secret", "refresh-secret", 15*time.Minute, 24*time.Hour, testLogger()).(*authService)
	return svc, users, user
}

func TestAuthServiceLoginIssuesTokenPair(t *testing.T) {
	svc, _, user := newAuthFixture(t)

	pair, err := svc.Login(context.Background(), dto.LoginRequest{Username: "alice", Password: "secret123"})
	require.NoError(t, err)
	require.NotEmpty(t, pair.AccessToken)
	require.NotEmpty(t, pair.RefreshToken)
	require.Equal(t, "bearer", pair.TokenType)
	require.Equal(t, int64(900), pair.ExpiresIn)
	require.Equal(t, user.ID, pair.User.ID)

	claims, err := svc.parse(pair.AccessToken, svc.secret)
	require.NoError(t, err)
	require.Equal(t, "access", claims.TokenUse)
	require.Equal(t, models.RoleInstructor, claims.Role)
	require.Equal(t, uint(3), claims.TenantID)
	require.Equal(t, "Asia/Jakarta", claims.Timezone)
	require.Equal(t, "1", claims.Subject)
}

func TestAuthServiceLoginRejectsBadCredentials(t *testing.T) {
	svc, _, _ := newAuthFixture(t)

	_, err := svc.Login(context.Background(), dto.LoginRequest{Username: "alice", Password: "wrong"})
	require.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = svc.Login(context.Background(), dto.LoginRequest{Username: "nobody", Password: "secret123"})
	require.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestAuthServiceRefreshRotatesPair(t *testing.T) {
	svc, _, _ := newAuthFixture(t)

	pair, err := svc.Login(context.Background(), dto.LoginRequest{Username: "alice", Password: "secret123"})
	require.NoError(t, err)

	renewed, err := svc.Refresh(context.Background(), dto.RefreshRequest{RefreshToken: pair.RefreshToken})
	require.NoError(t, err)
	require.NotEmpty(t, renewed.AccessToken)
	require.Equal(t, pair.User.ID, renewed.User.ID)
}

func TestAuthServiceRefreshRejectsAccessToken(t *testing.T) {
	svc, _, _ := newAuthFixture(t)

	pair, err := svc.Login(context.Background(), dto.LoginRequest{Username: "alice", Password: "secret123"})
	require.NoError(t, err)

	// An access token is signed with the wrong key and carries the wrong use.
	_, err = svc.Refresh(context.Background(), dto.RefreshRequest{RefreshToken: pair.AccessToken})
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestAuthServiceRefreshRejectsExpiredToken(t *testing.T) {
	svc, _, _ := newAuthFixture(t)

	pair, err := svc.Login(context.Background(), dto.LoginRequest{Username: "alice", Password: "secret123"})
	require.NoError(t, err)

	svc.now = func() time.Time { return time.Now().Add(25 * time.Hour) }
	_, err = svc.Refresh(context.Background(), dto.RefreshRequest{RefreshToken: pair.RefreshToken})
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestAuthServiceChangePassword(t *testing.T) {
	svc, _, user := newAuthFixture(t)
	ctx := context.Background()

	err := svc.ChangePassword(ctx, user.ID, dto.ChangePasswordRequest{
		CurrentPassword: "wrong", NewPassword: "brandnew1", ConfirmPassword: "brandnew1",
	})
	require.ErrorIs(t, err, ErrPasswordMismatch)

	err = svc.ChangePassword(ctx, user.ID, dto.ChangePasswordRequest{
		CurrentPassword: "secret123", NewPassword: "brandnew1", ConfirmPassword: "different",
	})
	require.Error(t, err)

	err = svc.ChangePassword(ctx, user.ID, dto.ChangePasswordRequest{
		CurrentPassword: "secret123", NewPassword: "brandnew1", ConfirmPassword: "brandnew1",
	})
	require.NoError(t, err)

	_, err = svc.Login(ctx, dto.LoginRequest{Username: "alice", Password: "secret123"})
	require.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = svc.Login(ctx, dto.LoginRequest{Username: "alice", Password: "brandnew1"})
	require.NoError(t, err)
}

func TestAuthServiceUpdateTimezone(t *testing.T) {
	svc, users, user := newAuthFixture(t)
	ctx := context.Background()

	_, err := svc.UpdateTimezone(ctx, user.ID, dto.TimezoneUpdateRequest{Timezone: "Mars/Olympus"})
	require.ErrorIs(t, err, ErrInvalidTimezone)

	updated, err := svc.UpdateTimezone(ctx, user.ID, dto.TimezoneUpdateRequest{Timezone: "Europe/Berlin"})
	require.NoError(t, err)
	require.Equal(t, "Europe/Berlin", updated.Timezone)

	stored, err := users.GetByID(ctx, user.ID)
	require.NoError(t, err)
	require.Equal(t, "Europe/Berlin", stored.Timezone)
}
