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

// TombstoneSweepName is the config key suffix for the hard-delete sweeper.
const TombstoneSweepName = "tombstone_sweep"

// TombstoneSweepTask permanently removes soft-deleted rows whose retention
// window has passed. This is the second phase of the two-phase delete:
// rows remain recoverable until their purge deadline, then disappear.
type TombstoneSweepTask struct {
	db  *gorm.DB
	now func() time.Time
}

// NewTombstoneSweepTask constructs the sweeper.
func NewTombstoneSweepTask(db *gorm.DB, now func() time.Time) (*TombstoneSweepTask, error) {
	if db == nil {
		return nil, errors.New("tasks: tombstone sweep: db is required")
	}
	if now == nil {
		now = time.Now
	}
	return &TombstoneSweepTask{db: db, now: now}, nil
}

func (t *TombstoneSweepTask) Name() string { return TombstoneSweepName }

// Execute purges expired tombstones table by table, children before parents
// so foreign keys stay satisfied.
func (t *TombstoneSweepTask) Execute(ctx context.Context, log *models.TaskExecutionLog) (bool, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	now := t.now()
	purged := make(map[string]int64)

	sweep := func(model any, table string) error {
		result := t.db.WithContext(ctx).
			Where("deleted_at IS NOT NULL AND purge_after < ?", now).
			Delete(model)
		if result.Error != nil {
			return fmt.Errorf("tombstone sweep: %s: %w", table, result.Error)
		}
		if result.RowsAffected > 0 {
			purged[table] = result.RowsAffected
		}
		return nil
	}

	ordered := []struct {
		model any
		table string
	}{
		{&models.ExamQuestion{}, "exam_questions"},
		{&models.Exam{}, "exams"},
		{&models.OtpCode{}, "otp_codes"},
		{&models.RefreshToken{}, "refresh_tokens"},
		{&models.Subscription{}, "subscriptions"},
		{&models.User{}, "users"},
	}

	// Role assignments carry no tombstone of their own; the join rows of
	// purge-due users must go first or the users delete trips the foreign key.
	err := t.db.WithContext(ctx).Exec(
		"DELETE FROM user_roles WHERE user_id IN (SELECT id FROM users WHERE deleted_at IS NOT NULL AND purge_after < ?)",
		now,
	).Error
	if err != nil {
		return false, fmt.Errorf("tombstone sweep: user_roles: %w", err)
	}

	for _, entry := range ordered {
		if err := sweep(entry.model, entry.table); err != nil {
			return false, err
		}
	}

	if log != nil && len(purged) > 0 {
		if detail, err := json.Marshal(purged); err == nil {
			log.Detail = detail
		}
	}
	return true, nil
}
