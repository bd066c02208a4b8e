package permissions_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/entrelaunch/platform/internal/cache"
	"github.com/entrelaunch/platform/internal/database/testutil"
	"github.com/entrelaunch/platform/internal/permissions"
)

func TestCachedCheckServesStaleSetUntilExpiry(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	user := seedUserWithPermissions(t, db, "cached", "user.view")

	now := time.Date(2026, 6, 1, 10, 0, 0, 0, time.UTC)
	store := cache.NewMemoryStore().WithClock(func() time.Time { return now })

	checker, err := permissions.NewChecker(db)
	require.NoError(t, err)
	cached, err := permissions.NewCachedChecker(checker, store)
	require.NoError(t, err)
	ctx := context.Background()

	ok, err := cached.Check(ctx, user.ID, "user.view")
	require.NoError(t, err)
	require.True(t, ok)

	// Revoke everything in the database; the cached set keeps answering.
	require.NoError(t, db.Exec("DELETE FROM user_roles WHERE user_id = ?", user.ID).Error)

	ok, err = cached.Check(ctx, user.ID, "user.view")
	require.NoError(t, err)
	require.True(t, ok)

	// Past the TTL the next check reloads and sees the revocation.
	now = now.Add(permissions.DefaultCacheTTL + time.Second)

	ok, err = cached.Check(ctx, user.ID, "user.view")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestCachedCheckInvalidate(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	user := seedUserWithPermissions(t, db, "revoked", "user.view")

	store := cache.NewMemoryStore()
	checker, err := permissions.NewChecker(db)
	require.NoError(t, err)
	cached, err := permissions.NewCachedChecker(checker, store)
	require.NoError(t, err)
	ctx := context.Background()

	ok, err := cached.Check(ctx, user.ID, "user.view")
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, db.Exec("DELETE FROM user_roles WHERE user_id = ?", user.ID).Error)
	require.NoError(t, cached.Invalidate(ctx, user.ID))

	ok, err = cached.Check(ctx, user.ID, "user.view")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestCachedCheckCorruptEntryReloads(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	user := seedUserWithPermissions(t, db, "corrupt", "user.view")

	store := cache.NewMemoryStore()
	checker, err := permissions.NewChecker(db)
	require.NoError(t, err)
	cached, err := permissions.NewCachedChecker(checker, store)
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "permissions:user:"+user.ID, []byte("{not json"), 0))

	ok, err := cached.Check(ctx, user.ID, "user.view")
	require.NoError(t, err)
	require.True(t, ok)
}

func TestCachedCheckUnknownPermission(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())

	checker, err := permissions.NewChecker(db)
	require.NoError(t, err)
	cached, err := permissions.NewCachedChecker(checker, cache.NewMemoryStore())
	require.NoError(t, err)

	_, err = cached.Check(context.Background(), "someone", "user.teleport")
	require.ErrorIs(t, err, permissions.ErrUnknownPermission)
}

func TestCachedCheckDependencyDenied(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	user := seedUserWithPermissions(t, db, "cachedpartial", "user.delete")

	checker, err := permissions.NewChecker(db)
	require.NoError(t, err)
	cached, err := permissions.NewCachedChecker(checker, cache.NewMemoryStore())
	require.NoError(t, err)

	ok, err := cached.Check(context.Background(), user.ID, "user.delete")
	require.NoError(t, err)
	require.False(t, ok)
}
