package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/entrelaunch/platform/internal/middleware"
	"github.com/entrelaunch/platform/internal/services"
	"github.com/entrelaunch/platform/pkg/errors"
	"github.com/entrelaunch/platform/pkg/response"
)

// UserHandler exposes user management endpoints.
type UserHandler struct {
	users *services.UserService
}

func NewUserHandler(users *services.UserService) *UserHandler {
	return &UserHandler{users: users}
}

// Register mounts the user routes onto the group. The guard argument applies
// the permission middleware per route.
func (h *UserHandler) Register(group *gin.RouterGroup, guard func(permission string) gin.HandlerFunc) {
	group.POST("/create", guard("user.create"), h.Create)
	group.PATCH("/edit/:id", guard("user.edit"), h.Update)
	group.GET("/all", guard("user.view"), h.List)
	group.GET("/get-one/:id", guard("user.view"), h.Get)
	group.DELETE("/delete/:id", guard("user.delete"), h.Delete)
}

type createUserRequest struct {
	Username  string   `json:"username" validate:"required,min=3,max=64"`
	Email     string   `json:"email" validate:"required,email"`
	Password  string   `json:"password" validate:"required,min=8"`
	FirstName string   `json:"first_name"`
	LastName  string   `json:"last_name"`
	Phone     string   `json:"phone"`
	Country   string   `json:"country"`
	Roles     []string `json:"roles"`
}

// POST /api/users/create
func (h *UserHandler) Create(c *gin.Context) {
	var req createUserRequest
	if !bindAndValidate(c, &req) {
		return
	}

	user, err := h.users.Create(c.Request.Context(), services.CreateUserInput{
		Username:  req.Username,
		Email:     req.Email,
		Password:  req.Password,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Phone:     req.Phone,
		Country:   req.Country,
		Roles:     req.Roles,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusCreated, user)
}

type updateUserRequest struct {
	Email     *string `json:"email" validate:"omitempty,email"`
	FirstName *string `json:"first_name"`
	LastName  *string `json:"last_name"`
	Phone     *string `json:"phone"`
	Country   *string `json:"country"`
	IsActive  *bool   `json:"is_active"`
}

// PATCH /api/users/edit/:id
func (h *UserHandler) Update(c *gin.Context) {
	var req updateUserRequest
	if !bindAndValidate(c, &req) {
		return
	}

	user, err := h.users.Update(c.Request.Context(), c.Param("id"), services.UpdateUserInput{
		Email:     req.Email,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Phone:     req.Phone,
		Country:   req.Country,
		IsActive:  req.IsActive,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, user)
}

// GET /api/users/all
func (h *UserHandler) List(c *gin.Context) {
	users, err := h.users.List(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, users)
}

// GET /api/users/get-one/:id
func (h *UserHandler) Get(c *gin.Context) {
	user, err := h.users.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, user)
}

// DELETE /api/users/delete/:id
func (h *UserHandler) Delete(c *gin.Context) {
	if id, ok := middleware.UserID(c); ok && id == c.Param("id") {
		response.Error(c, errors.NewBadRequest("users cannot delete their own account"))
		return
	}

	if err := h.users.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.SuccessWithMessage(c, http.StatusOK, "user deleted", nil)
}
