package handlers

import (
	"context"
	stderrors "errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/entrelaunch/platform/internal/models"
	"github.com/entrelaunch/platform/pkg/errors"
	"github.com/entrelaunch/platform/pkg/response"
)

// RoleCacheInvalidator drops cached permission sets so a role change takes
// effect before the read-through TTL would expire it.
type RoleCacheInvalidator interface {
	Invalidate(ctx context.Context, userIDs ...string) error
}

// RoleHandler exposes the role catalogue and user role assignment.
type RoleHandler struct {
	db    *gorm.DB
	cache RoleCacheInvalidator
}

// NewRoleHandler constructs the handler. The invalidator is optional; without
// it assignments become visible only after the permission cache expires.
func NewRoleHandler(db *gorm.DB, cache RoleCacheInvalidator) *RoleHandler {
	return &RoleHandler{db: db, cache: cache}
}

// Register mounts the role routes onto the group.
func (h *RoleHandler) Register(group *gin.RouterGroup, guard func(permission string) gin.HandlerFunc) {
	group.GET("/all", guard("role.view"), h.List)
	group.PUT("/assign/:userId", guard("role.manage"), h.Assign)
}

// GET /api/roles/all
func (h *RoleHandler) List(c *gin.Context) {
	var roles []models.Role
	err := h.db.WithContext(c.Request.Context()).
		Preload("Permissions").
		Order("id").
		Find(&roles).Error
	if err != nil {
		response.Error(c, errors.ErrInternalServer.WithInternal(err))
		return
	}
	response.Success(c, http.StatusOK, roles)
}

type assignRolesRequest struct {
	Roles []string `json:"roles" validate:"required,min=1"`
}

// PUT /api/roles/assign/:userId
//
// Replaces the user's role set wholesale.
func (h *RoleHandler) Assign(c *gin.Context) {
	var req assignRolesRequest
	if !bindAndValidate(c, &req) {
		return
	}

	ctx := c.Request.Context()
	var user models.User
	err := h.db.WithContext(ctx).
		First(&user, "id = ? AND deleted_at IS NULL", c.Param("userId")).Error
	if stderrors.Is(err, gorm.ErrRecordNotFound) {
		response.Error(c, errors.ErrNotFound)
		return
	}
	if err != nil {
		response.Error(c, errors.ErrInternalServer.WithInternal(err))
		return
	}

	var roles []models.Role
	if err := h.db.WithContext(ctx).Find(&roles, "id IN ?", req.Roles).Error; err != nil {
		response.Error(c, errors.ErrInternalServer.WithInternal(err))
		return
	}
	if len(roles) != len(req.Roles) {
		response.Error(c, errors.NewBadRequest("unknown role in assignment"))
		return
	}

	err = h.db.WithContext(ctx).
		Model(&user).
		Association("Roles").
		Replace(roles)
	if err != nil {
		response.Error(c, errors.ErrInternalServer.WithInternal(err))
		return
	}

	if h.cache != nil {
		_ = h.cache.Invalidate(ctx, user.ID)
	}
	response.SuccessWithMessage(c, http.StatusOK, "roles assigned", gin.H{
		"user_id": user.ID,
		"roles":   req.Roles,
	})
}
