package permissions

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/entrelaunch/platform/internal/cache"
)

// DefaultCacheTTL bounds how long a cached permission set may serve checks
// before a database reload.
const DefaultCacheTTL = 10 * time.Minute

// CachedChecker layers a read-through TTL cache over a Checker. Grants and
// revocations become visible once the cached set expires or is invalidated.
type CachedChecker struct {
	checker *Checker
	store   cache.Store
	ttl     time.Duration
}

// NewCachedChecker wraps checker with the provided cache store.
func NewCachedChecker(checker *Checker, store cache.Store) (*CachedChecker, error) {
	if checker == nil {
		return nil, errors.New("permission cache: checker is required")
	}
	if store == nil {
		return nil, errors.New("permission cache: store is required")
	}
	return &CachedChecker{checker: checker, store: store, ttl: DefaultCacheTTL}, nil
}

// WithTTL overrides the cache lifetime, primarily for tests.
func (c *CachedChecker) WithTTL(ttl time.Duration) *CachedChecker {
	if ttl > 0 {
		c.ttl = ttl
	}
	return c
}

// Check evaluates the permission against the user's cached permission set,
// loading it from the database on a miss.
func (c *CachedChecker) Check(ctx context.Context, userID, permissionID string) (bool, error) {
	if _, ok := Get(permissionID); !ok {
		return false, fmt.Errorf("%w %q", ErrUnknownPermission, permissionID)
	}

	ids, err := c.GetUserPermissions(ctx, userID)
	if err != nil {
		return false, err
	}

	granted := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		granted[id] = struct{}{}
	}
	return HasWithDependencies(granted, permissionID)
}

// GetUserPermissions returns the user's expanded permission set, serving from
// the cache when a fresh entry exists.
func (c *CachedChecker) GetUserPermissions(ctx context.Context, userID string) ([]string, error) {
	key := cacheKey(userID)

	if raw, ok, err := c.store.Get(ctx, key); err == nil && ok {
		var ids []string
		if err := json.Unmarshal(raw, &ids); err == nil {
			return ids, nil
		}
		// Corrupt entries fall through to a reload.
		_ = c.store.Delete(ctx, key)
	}

	ids, err := c.checker.GetUserPermissions(ctx, userID)
	if err != nil {
		return nil, err
	}

	if raw, err := json.Marshal(ids); err == nil {
		// A write failure only costs the next request a reload.
		_ = c.store.Set(ctx, key, raw, c.ttl)
	}
	return ids, nil
}

// Invalidate drops the cached permission set for the given users. Call it
// after role assignment changes so the next check reloads from the database.
func (c *CachedChecker) Invalidate(ctx context.Context, userIDs ...string) error {
	if len(userIDs) == 0 {
		return nil
	}
	keys := make([]string, 0, len(userIDs))
	for _, id := range userIDs {
		keys = append(keys, cacheKey(id))
	}
	return c.store.Delete(ctx, keys...)
}

func cacheKey(userID string) string {
	return "permissions:user:" + userID
}
