package auth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/entrelaunch/platform/internal/database/testutil"
	"github.com/entrelaunch/platform/internal/models"
)

func newTestRefreshService(t *testing.T) (*RefreshService, *gorm.DB) {
	t.Helper()

	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	svc, err := NewRefreshService(db)
	require.NoError(t, err)
	return svc, db
}

func TestRefreshIssueStoresOnlyHash(t *testing.T) {
	svc, db := newTestRefreshService(t)

	token, err := svc.Issue(context.Background(), "user-1")
	require.NoError(t, err)
	require.NotEmpty(t, token)

	var record models.RefreshToken
	require.NoError(t, db.First(&record).Error)
	require.Equal(t, "user-1", record.UserID)
	require.NotEqual(t, token, record.TokenHash)
	require.Equal(t, hashToken(token), record.TokenHash)
}

func TestRefreshExchangeRotates(t *testing.T) {
	svc, _ := newTestRefreshService(t)
	ctx := context.Background()

	token, err := svc.Issue(ctx, "user-1")
	require.NoError(t, err)

	userID, next, err := svc.Exchange(ctx, token)
	require.NoError(t, err)
	require.Equal(t, "user-1", userID)
	require.NotEqual(t, token, next)

	// The original token is spent.
	_, _, err = svc.Exchange(ctx, token)
	require.ErrorIs(t, err, ErrInvalidRefreshToken)

	// The replacement still works.
	userID, _, err = svc.Exchange(ctx, next)
	require.NoError(t, err)
	require.Equal(t, "user-1", userID)
}

func TestRefreshExchangeUnknownToken(t *testing.T) {
	svc, _ := newTestRefreshService(t)

	_, _, err := svc.Exchange(context.Background(), "never-issued")
	require.ErrorIs(t, err, ErrInvalidRefreshToken)
}

func TestRefreshExpiredToken(t *testing.T) {
	svc, _ := newTestRefreshService(t)
	ctx := context.Background()

	now := time.Now()
	svc.WithClock(func() time.Time { return now })

	token, err := svc.Issue(ctx, "user-1")
	require.NoError(t, err)

	now = now.Add(DefaultRefreshTokenTTL + time.Hour)

	_, _, err = svc.Exchange(ctx, token)
	require.ErrorIs(t, err, ErrInvalidRefreshToken)
}

func TestRefreshRevoke(t *testing.T) {
	svc, _ := newTestRefreshService(t)
	ctx := context.Background()

	token, err := svc.Issue(ctx, "user-1")
	require.NoError(t, err)

	require.NoError(t, svc.Revoke(ctx, token))

	_, _, err = svc.Exchange(ctx, token)
	require.ErrorIs(t, err, ErrInvalidRefreshToken)

	// Revoking an unknown token is a no-op.
	require.NoError(t, svc.Revoke(ctx, "never-issued"))
}

func TestRefreshRevokeAll(t *testing.T) {
	svc, _ := newTestRefreshService(t)
	ctx := context.Background()

	first, err := svc.Issue(ctx, "user-1")
	require.NoError(t, err)
	second, err := svc.Issue(ctx, "user-1")
	require.NoError(t, err)
	other, err := svc.Issue(ctx, "user-2")
	require.NoError(t, err)

	require.NoError(t, svc.RevokeAll(ctx, "user-1"))

	_, _, err = svc.Exchange(ctx, first)
	require.ErrorIs(t, err, ErrInvalidRefreshToken)
	_, _, err = svc.Exchange(ctx, second)
	require.ErrorIs(t, err, ErrInvalidRefreshToken)

	userID, _, err := svc.Exchange(ctx, other)
	require.NoError(t, err)
	require.Equal(t, "user-2", userID)
}
