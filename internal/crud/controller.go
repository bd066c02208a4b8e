package crud

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "github.com/entrelaunch/platform/pkg/errors"
	"github.com/entrelaunch/platform/pkg/export"
	"github.com/entrelaunch/platform/pkg/response"
)

// Controller exposes a Service over HTTP with the standard resource routes:
//
//	POST   create
//	PATCH  edit/:id
//	GET    all
//	GET    get-one/:id
//	DELETE delete/:id
//	GET    export/:format
type Controller[T any, PT Entity[T], C any, U any, D any] struct {
	svc      *Service[T, PT, C, U, D]
	resource string
	schema   export.Schema[D]
}

// NewController wires a CRUD controller for one resource.
func NewController[T any, PT Entity[T], C any, U any, D any](
	svc *Service[T, PT, C, U, D],
	resource string,
	schema export.Schema[D],
) (*Controller[T, PT, C, U, D], error) {
	if svc == nil {
		return nil, errors.New("crud: service is required")
	}
	if resource == "" {
		return nil, errors.New("crud: resource name is required")
	}
	return &Controller[T, PT, C, U, D]{svc: svc, resource: resource, schema: schema}, nil
}

// Register mounts the resource routes on the group. Permission middleware is
// supplied by the caller so each route set declares its own gate.
func (h *Controller[T, PT, C, U, D]) Register(rg *gin.RouterGroup, guards ...gin.HandlerFunc) {
	grp := rg.Group("/"+h.resource, guards...)
	grp.POST("/create", h.Create)
	grp.PATCH("/edit/:id", h.Patch)
	grp.GET("/all", h.GetAll)
	grp.GET("/get-one/:id", h.GetOne)
	grp.DELETE("/delete/:id", h.Delete)
	grp.GET("/export/:format", h.Export)
}

// RegisterGuarded mounts the resource routes with one permission per
// operation: <prefix>.view for reads and exports, <prefix>.create,
// <prefix>.edit and <prefix>.delete for the mutating routes.
func (h *Controller[T, PT, C, U, D]) RegisterGuarded(rg *gin.RouterGroup, prefix string, guard func(permission string) gin.HandlerFunc) {
	grp := rg.Group("/" + h.resource)
	grp.POST("/create", guard(prefix+".create"), h.Create)
	grp.PATCH("/edit/:id", guard(prefix+".edit"), h.Patch)
	grp.GET("/all", guard(prefix+".view"), h.GetAll)
	grp.GET("/get-one/:id", guard(prefix+".view"), h.GetOne)
	grp.DELETE("/delete/:id", guard(prefix+".delete"), h.Delete)
	grp.GET("/export/:format", guard(prefix+".view"), h.Export)
}

// Create handles POST /api/<resource>/create.
func (h *Controller[T, PT, C, U, D]) Create(c *gin.Context) {
	var input C
	if err := c.ShouldBindJSON(&input); err != nil {
		response.Error(c, apperrors.NewBadRequest("invalid payload"))
		return
	}

	dto, err := h.svc.Create(c.Request.Context(), input)
	if err != nil {
		response.Error(c, mapServiceError(err))
		return
	}

	response.Success(c, http.StatusCreated, dto)
}

// Patch handles PATCH /api/<resource>/edit/:id.
func (h *Controller[T, PT, C, U, D]) Patch(c *gin.Context) {
	var input U
	if err := c.ShouldBindJSON(&input); err != nil {
		response.Error(c, apperrors.NewBadRequest("invalid payload"))
		return
	}

	dto, err := h.svc.Patch(c.Request.Context(), c.Param("id"), input)
	if err != nil {
		response.Error(c, mapServiceError(err))
		return
	}

	response.Success(c, http.StatusOK, dto)
}

// GetAll handles GET /api/<resource>/all.
func (h *Controller[T, PT, C, U, D]) GetAll(c *gin.Context) {
	dtos, err := h.svc.GetAll(c.Request.Context())
	if err != nil {
		response.Error(c, mapServiceError(err))
		return
	}

	response.Success(c, http.StatusOK, dtos)
}

// GetOne handles GET /api/<resource>/get-one/:id.
func (h *Controller[T, PT, C, U, D]) GetOne(c *gin.Context) {
	dto, err := h.svc.GetOne(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, mapServiceError(err))
		return
	}

	response.Success(c, http.StatusOK, dto)
}

// Delete handles DELETE /api/<resource>/delete/:id.
func (h *Controller[T, PT, C, U, D]) Delete(c *gin.Context) {
	if err := h.svc.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, mapServiceError(err))
		return
	}

	response.SuccessWithMessage(c, http.StatusOK, "deleted", gin.H{"deleted": true})
}

// Export handles GET /api/<resource>/export/:format.
func (h *Controller[T, PT, C, U, D]) Export(c *gin.Context) {
	format, err := export.ParseFormat(c.Param("format"))
	if err != nil {
		response.Error(c, apperrors.NewBadRequest("unsupported export format"))
		return
	}

	dtos, err := h.svc.GetAll(c.Request.Context())
	if err != nil {
		response.Error(c, mapServiceError(err))
		return
	}

	data, err := h.schema.Render(format, dtos)
	if err != nil {
		if errors.Is(err, export.ErrNoRows) {
			response.Error(c, apperrors.ErrExportEmpty)
			return
		}
		response.Error(c, apperrors.Wrap(err, "export failed"))
		return
	}

	filename := fmt.Sprintf("%s.%s", h.resource, format.Extension())
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, format.ContentType(), data)
}

func mapServiceError(err error) error {
	switch {
	case errors.Is(err, ErrNotFound):
		return apperrors.ErrNotFound
	case errors.Is(err, ErrAlreadyDeleted):
		return apperrors.ErrNotFound
	default:
		return err
	}
}
