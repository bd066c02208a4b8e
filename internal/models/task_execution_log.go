package models

import (
	"time"

	"gorm.io/datatypes"
)

// TaskExecutionLog records one invocation of a background task. Rows are
// immutable after completion except for the outcome fields set by Finish.
type TaskExecutionLog struct {
	BaseModel

	TaskName   string         `gorm:"not null;index" json:"task_name"`
	StartedAt  time.Time      `gorm:"not null" json:"started_at"`
	FinishedAt *time.Time     `json:"finished_at"`
	Succeeded  *bool          `json:"succeeded"`
	Detail     datatypes.JSON `json:"detail,omitempty"`
	Error      string         `json:"error,omitempty"`
}

// Finish stamps the completion time and outcome.
func (l *TaskExecutionLog) Finish(now time.Time, succeeded bool, errMsg string) {
	l.FinishedAt = &now
	l.Succeeded = &succeeded
	l.Error = errMsg
}
