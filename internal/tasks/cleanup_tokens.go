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

// TokenCleanupName is the config key suffix for the token cleanup task.
const TokenCleanupName = "token_cleanup"

// TokenCleanupStats captures the number of records removed per token type.
type TokenCleanupStats struct {
	RefreshTokens int64 `json:"refresh_tokens"`
	OtpCodes      int64 `json:"otp_codes"`
}

// TokenCleanupTask removes refresh tokens and OTP codes that can no longer
// be used: expired, revoked, or consumed.
type TokenCleanupTask struct {
	db  *gorm.DB
	now func() time.Time
}

// NewTokenCleanupTask constructs the task.
func NewTokenCleanupTask(db *gorm.DB, now func() time.Time) (*TokenCleanupTask, error) {
	if db == nil {
		return nil, errors.New("tasks: token cleanup: db is required")
	}
	if now == nil {
		now = time.Now
	}
	return &TokenCleanupTask{db: db, now: now}, nil
}

func (t *TokenCleanupTask) Name() string { return TokenCleanupName }

// Execute deletes dead credentials and records counts on the execution log.
func (t *TokenCleanupTask) Execute(ctx context.Context, log *models.TaskExecutionLog) (bool, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	now := t.now()
	stats := TokenCleanupStats{}

	result := t.db.WithContext(ctx).
		Where("expires_at < ? OR revoked_at IS NOT NULL", now).
		Delete(&models.RefreshToken{})
	if result.Error != nil {
		return false, fmt.Errorf("token cleanup: refresh tokens: %w", result.Error)
	}
	stats.RefreshTokens = result.RowsAffected

	result = t.db.WithContext(ctx).
		Where("expires_at < ? OR consumed_at IS NOT NULL", now).
		Delete(&models.OtpCode{})
	if result.Error != nil {
		return false, fmt.Errorf("token cleanup: otp codes: %w", result.Error)
	}
	stats.OtpCodes = result.RowsAffected

	if log != nil {
		if detail, err := json.Marshal(stats); err == nil {
			log.Detail = detail
		}
	}
	return true, nil
}
