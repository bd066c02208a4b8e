package handlers

import (
	stderrors "errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/entrelaunch/platform/internal/models"
	"github.com/entrelaunch/platform/internal/tasks"
	"github.com/entrelaunch/platform/pkg/errors"
	"github.com/entrelaunch/platform/pkg/response"
)

// TaskHandler exposes background task status, history and manual runs.
type TaskHandler struct {
	db     *gorm.DB
	runner *tasks.Runner
	status *tasks.StatusService
}

func NewTaskHandler(db *gorm.DB, runner *tasks.Runner, status *tasks.StatusService) *TaskHandler {
	return &TaskHandler{db: db, runner: runner, status: status}
}

// Register mounts the task routes onto the group.
func (h *TaskHandler) Register(group *gin.RouterGroup, guard func(permission string) gin.HandlerFunc) {
	group.GET("/all", guard("task.view"), h.List)
	group.GET("/history/:name", guard("task.view"), h.History)
	group.POST("/run/:name", guard("task.run"), h.Run)
}

// GET /api/tasks/all
func (h *TaskHandler) List(c *gin.Context) {
	names := h.runner.Names()
	out := make([]gin.H, 0, len(names))
	for _, name := range names {
		out = append(out, gin.H{
			"name":    name,
			"running": h.status.IsRunning(name),
		})
	}
	response.Success(c, http.StatusOK, out)
}

// GET /api/tasks/history/:name
func (h *TaskHandler) History(c *gin.Context) {
	name := strings.TrimSpace(c.Param("name"))

	var logs []models.TaskExecutionLog
	err := h.db.WithContext(c.Request.Context()).
		Where("task_name = ?", name).
		Order("started_at DESC").
		Limit(50).
		Find(&logs).Error
	if err != nil {
		response.Error(c, errors.ErrInternalServer.WithInternal(err))
		return
	}
	response.Success(c, http.StatusOK, logs)
}

// POST /api/tasks/run/:name
func (h *TaskHandler) Run(c *gin.Context) {
	name := strings.TrimSpace(c.Param("name"))

	ran, err := h.runner.RunByName(c.Request.Context(), name)
	if err != nil {
		switch {
		case stderrors.Is(err, tasks.ErrUnknownTask):
			response.Error(c, errors.ErrNotFound)
		case stderrors.Is(err, tasks.ErrTaskDisabled):
			response.Error(c, errors.NewBadRequest("task is disabled"))
		default:
			response.Error(c, errors.ErrInternalServer.WithInternal(err))
		}
		return
	}
	if !ran {
		response.SuccessWithMessage(c, http.StatusOK, "task already running elsewhere", gin.H{"ran": false})
		return
	}
	response.SuccessWithMessage(c, http.StatusOK, "task completed", gin.H{"ran": true})
}
