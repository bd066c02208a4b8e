package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	iauth "github.com/entrelaunch/platform/internal/auth"
	"github.com/entrelaunch/platform/internal/middleware"
	"github.com/entrelaunch/platform/internal/services"
	"github.com/entrelaunch/platform/pkg/errors"
	"github.com/entrelaunch/platform/pkg/response"
)

// AuthHandler manages authentication flows (login/refresh/logout/me).
type AuthHandler struct {
	users   *services.UserService
	jwt     *iauth.JWTService
	refresh *iauth.RefreshService
}

func NewAuthHandler(users *services.UserService, jwt *iauth.JWTService, refresh *iauth.RefreshService) *AuthHandler {
	return &AuthHandler{users: users, jwt: jwt, refresh: refresh}
}

type loginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// POST /api/auth/login
func (h *AuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if !bindAndValidate(c, &req) {
		return
	}

	user, err := h.users.Authenticate(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		response.Error(c, errors.ErrInvalidCredentials)
		return
	}

	access, err := h.jwt.GenerateAccessToken(user.ID, user.Username)
	if err != nil {
		response.Error(c, errors.ErrInternalServer.WithInternal(err))
		return
	}
	refresh, err := h.refresh.Issue(c.Request.Context(), user.ID)
	if err != nil {
		response.Error(c, errors.ErrInternalServer.WithInternal(err))
		return
	}

	response.Success(c, http.StatusOK, gin.H{
		"tokens": tokenResponse{AccessToken: access, RefreshToken: refresh},
		"user": gin.H{
			"id":         user.ID,
			"username":   user.Username,
			"email":      user.Email,
			"is_root":    user.IsRoot,
			"first_name": user.FirstName,
			"last_name":  user.LastName,
		},
	})
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

// POST /api/auth/refresh
func (h *AuthHandler) Refresh(c *gin.Context) {
	var req refreshRequest
	if !bindAndValidate(c, &req) {
		return
	}

	userID, next, err := h.refresh.Exchange(c.Request.Context(), req.RefreshToken)
	if err != nil {
		response.Error(c, errors.ErrUnauthorized)
		return
	}

	user, err := h.users.Get(c.Request.Context(), userID)
	if err != nil {
		response.Error(c, errors.ErrUnauthorized)
		return
	}

	access, err := h.jwt.GenerateAccessToken(user.ID, user.Username)
	if err != nil {
		response.Error(c, errors.ErrInternalServer.WithInternal(err))
		return
	}

	response.Success(c, http.StatusOK, tokenResponse{AccessToken: access, RefreshToken: next})
}

// POST /api/auth/logout
func (h *AuthHandler) Logout(c *gin.Context) {
	var req refreshRequest
	if err := c.ShouldBindJSON(&req); err == nil && req.RefreshToken != "" {
		_ = h.refresh.Revoke(c.Request.Context(), req.RefreshToken)
	}
	response.SuccessWithMessage(c, http.StatusOK, "logged out", nil)
}

// GET /api/auth/me
func (h *AuthHandler) Me(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		response.Error(c, errors.ErrUnauthorized)
		return
	}

	user, err := h.users.Get(c.Request.Context(), userID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, user)
}
