package tasks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/entrelaunch/platform/internal/models"
)

// SubscriptionCleanupName is the config key suffix for subscription cleanup.
const SubscriptionCleanupName = "subscription_cleanup"

// SubscriptionCleanupTask marks lapsed subscriptions as expired so access
// checks stop honouring them.
type SubscriptionCleanupTask struct {
	db  *gorm.DB
	now func() time.Time
}

// NewSubscriptionCleanupTask constructs the task.
func NewSubscriptionCleanupTask(db *gorm.DB, now func() time.Time) (*SubscriptionCleanupTask, error) {
	if db == nil {
		return nil, errors.New("tasks: subscription cleanup: db is required")
	}
	if now == nil {
		now = time.Now
	}
	return &SubscriptionCleanupTask{db: db, now: now}, nil
}

func (t *SubscriptionCleanupTask) Name() string { return SubscriptionCleanupName }

// Execute flips active subscriptions past their expiry to expired.
func (t *SubscriptionCleanupTask) Execute(ctx context.Context, log *models.TaskExecutionLog) (bool, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	result := t.db.WithContext(ctx).
		Model(&models.Subscription{}).
		Where("status = ? AND expires_at < ? AND deleted_at IS NULL", models.SubscriptionActive, t.now()).
		Update("status", models.SubscriptionExpired)
	if result.Error != nil {
		return false, fmt.Errorf("subscription cleanup: %w", result.Error)
	}

	if log != nil {
		if detail, err := json.Marshal(map[string]int64{"expired": result.RowsAffected}); err == nil {
			log.Detail = detail
		}
	}
	return true, nil
}
