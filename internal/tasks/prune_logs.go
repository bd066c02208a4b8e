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

// LogPruneName is the config key suffix for execution log pruning.
const LogPruneName = "log_prune"

const defaultLogRetentionDays = 90

// LogPruneTask deletes old task execution logs so the table stays bounded.
type LogPruneTask struct {
	db            *gorm.DB
	now           func() time.Time
	retentionDays int
}

// NewLogPruneTask constructs the pruning task. Days at or below zero fall
// back to the default retention.
func NewLogPruneTask(db *gorm.DB, retentionDays int, now func() time.Time) (*LogPruneTask, error) {
	if db == nil {
		return nil, errors.New("tasks: log prune: db is required")
	}
	if retentionDays <= 0 {
		retentionDays = defaultLogRetentionDays
	}
	if now == nil {
		now = time.Now
	}
	return &LogPruneTask{db: db, now: now, retentionDays: retentionDays}, nil
}

func (t *LogPruneTask) Name() string { return LogPruneName }

// Execute removes execution logs older than the retention window.
func (t *LogPruneTask) Execute(ctx context.Context, log *models.TaskExecutionLog) (bool, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	cutoff := t.now().AddDate(0, 0, -t.retentionDays)
	result := t.db.WithContext(ctx).
		Where("started_at < ?", cutoff).
		Delete(&models.TaskExecutionLog{})
	if result.Error != nil {
		return false, fmt.Errorf("log prune: %w", result.Error)
	}

	if log != nil {
		if detail, err := json.Marshal(map[string]int64{"pruned": result.RowsAffected}); err == nil {
			log.Detail = detail
		}
	}
	return true, nil
}
