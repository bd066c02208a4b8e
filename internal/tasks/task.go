package tasks

import (
	"context"
	"errors"

	"github.com/entrelaunch/platform/internal/models"
)

// ErrTaskDisabled distinguishes "intentionally not running" from a real
// failure: a disabled task is a configuration state, not an error to retry.
var ErrTaskDisabled = errors.New("tasks: task disabled by configuration")

// ErrUnknownTask reports a run request for a name that was never registered.
var ErrUnknownTask = errors.New("tasks: unknown task")

// Task is one named unit of scheduled background work.
//
// Execute reports true on success and false on a handled no-op or failure.
// Implementations must not panic past their own boundary; the runner still
// recovers as a last resort so one task cannot halt the scheduler loop.
type Task interface {
	Name() string
	Execute(ctx context.Context, log *models.TaskExecutionLog) (bool, error)
}
