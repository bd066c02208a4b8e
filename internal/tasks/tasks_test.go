package tasks

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/entrelaunch/platform/internal/database/testutil"
	"github.com/entrelaunch/platform/internal/models"
)

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func countRows(t *testing.T, db *gorm.DB, model any) int64 {
	t.Helper()

	var count int64
	require.NoError(t, db.Model(model).Count(&count).Error)
	return count
}

func TestTokenCleanupRemovesDeadCredentials(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	now := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)

	revoked := now.Add(-time.Hour)
	consumed := now.Add(-time.Minute)
	require.NoError(t, db.Create(&models.RefreshToken{
		UserID: "u1", TokenHash: "expired", ExpiresAt: now.Add(-time.Hour),
	}).Error)
	require.NoError(t, db.Create(&models.RefreshToken{
		UserID: "u1", TokenHash: "revoked", ExpiresAt: now.Add(time.Hour), RevokedAt: &revoked,
	}).Error)
	require.NoError(t, db.Create(&models.RefreshToken{
		UserID: "u1", TokenHash: "live", ExpiresAt: now.Add(time.Hour),
	}).Error)

	require.NoError(t, db.Create(&models.OtpCode{
		Phone: "+15550001111", CodeHash: "h1", ExpiresAt: now.Add(-time.Minute),
	}).Error)
	require.NoError(t, db.Create(&models.OtpCode{
		Phone: "+15550001111", CodeHash: "h2", ExpiresAt: now.Add(time.Minute), ConsumedAt: &consumed,
	}).Error)
	require.NoError(t, db.Create(&models.OtpCode{
		Phone: "+15550001111", CodeHash: "h3", ExpiresAt: now.Add(time.Minute),
	}).Error)

	task, err := NewTokenCleanupTask(db, fixedClock(now))
	require.NoError(t, err)

	log := &models.TaskExecutionLog{}
	ok, err := task.Execute(context.Background(), log)
	require.NoError(t, err)
	require.True(t, ok)

	require.EqualValues(t, 1, countRows(t, db, &models.RefreshToken{}))
	require.EqualValues(t, 1, countRows(t, db, &models.OtpCode{}))
	require.Contains(t, string(log.Detail), `"refresh_tokens":2`)
	require.Contains(t, string(log.Detail), `"otp_codes":2`)
}

func TestSubscriptionCleanupExpiresLapsedPlans(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	now := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, db.Create(&models.Subscription{
		UserID: "u1", Plan: "starter", Status: models.SubscriptionActive, ExpiresAt: now.Add(-time.Hour),
	}).Error)
	require.NoError(t, db.Create(&models.Subscription{
		UserID: "u2", Plan: "pro", Status: models.SubscriptionActive, ExpiresAt: now.Add(time.Hour),
	}).Error)

	task, err := NewSubscriptionCleanupTask(db, fixedClock(now))
	require.NoError(t, err)

	ok, err := task.Execute(context.Background(), nil)
	require.NoError(t, err)
	require.True(t, ok)

	var expired, active int64
	require.NoError(t, db.Model(&models.Subscription{}).
		Where("status = ?", models.SubscriptionExpired).Count(&expired).Error)
	require.NoError(t, db.Model(&models.Subscription{}).
		Where("status = ?", models.SubscriptionActive).Count(&active).Error)
	require.EqualValues(t, 1, expired)
	require.EqualValues(t, 1, active)
}

func TestTombstoneSweepPurgesOnlyExpiredTombstones(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	now := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)

	overdue := models.Subscription{UserID: "u1", Plan: "starter", Status: models.SubscriptionCanceled}
	overdue.MarkDeleted(now.Add(-48*time.Hour), time.Hour)
	require.NoError(t, db.Create(&overdue).Error)

	pending := models.Subscription{UserID: "u2", Plan: "pro", Status: models.SubscriptionCanceled}
	pending.MarkDeleted(now, time.Hour)
	require.NoError(t, db.Create(&pending).Error)

	live := models.Subscription{UserID: "u3", Plan: "pro", Status: models.SubscriptionActive}
	require.NoError(t, db.Create(&live).Error)

	task, err := NewTombstoneSweepTask(db, fixedClock(now))
	require.NoError(t, err)

	log := &models.TaskExecutionLog{}
	ok, err := task.Execute(context.Background(), log)
	require.NoError(t, err)
	require.True(t, ok)

	require.EqualValues(t, 2, countRows(t, db, &models.Subscription{}))
	require.Contains(t, string(log.Detail), `"subscriptions":1`)

	var remaining []models.Subscription
	require.NoError(t, db.Find(&remaining).Error)
	for _, sub := range remaining {
		require.NotEqual(t, overdue.ID, sub.ID)
	}
}

func TestTombstoneSweepPurgesUsersHoldingRoles(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithSeedData())
	now := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)

	var role models.Role
	require.NoError(t, db.First(&role, "id = ?", "user").Error)

	gone := models.User{
		Username: "leaver", Email: "leaver@example.com", Password: "x",
		Roles: []models.Role{role},
	}
	gone.MarkDeleted(now.Add(-48*time.Hour), time.Hour)
	require.NoError(t, db.Create(&gone).Error)

	stays := models.User{
		Username: "stayer", Email: "stayer@example.com", Password: "x",
		Roles: []models.Role{role},
	}
	require.NoError(t, db.Create(&stays).Error)

	task, err := NewTombstoneSweepTask(db, fixedClock(now))
	require.NoError(t, err)

	log := &models.TaskExecutionLog{}
	ok, err := task.Execute(context.Background(), log)
	require.NoError(t, err)
	require.True(t, ok)
	require.Contains(t, string(log.Detail), `"users":1`)

	require.ErrorIs(t, db.First(&models.User{}, "id = ?", gone.ID).Error, gorm.ErrRecordNotFound)

	var assignments int64
	require.NoError(t, db.Table("user_roles").Where("user_id = ?", gone.ID).Count(&assignments).Error)
	require.Zero(t, assignments)

	require.NoError(t, db.First(&models.User{}, "id = ?", stays.ID).Error)
	require.NoError(t, db.Table("user_roles").Where("user_id = ?", stays.ID).Count(&assignments).Error)
	require.EqualValues(t, 1, assignments)
}

func TestLogPruneKeepsRecentLogs(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	now := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, db.Create(&models.TaskExecutionLog{
		TaskName: "old", StartedAt: now.AddDate(0, 0, -120),
	}).Error)
	require.NoError(t, db.Create(&models.TaskExecutionLog{
		TaskName: "recent", StartedAt: now.AddDate(0, 0, -5),
	}).Error)

	task, err := NewLogPruneTask(db, 90, fixedClock(now))
	require.NoError(t, err)

	ok, err := task.Execute(context.Background(), nil)
	require.NoError(t, err)
	require.True(t, ok)

	var logs []models.TaskExecutionLog
	require.NoError(t, db.Find(&logs).Error)
	require.Len(t, logs, 1)
	require.Equal(t, "recent", logs[0].TaskName)
}
