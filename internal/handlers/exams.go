package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/entrelaunch/platform/internal/crud"
	"github.com/entrelaunch/platform/internal/middleware"
	"github.com/entrelaunch/platform/internal/models"
	"github.com/entrelaunch/platform/internal/services"
	apperrors "github.com/entrelaunch/platform/pkg/errors"
	"github.com/entrelaunch/platform/pkg/export"
	"github.com/entrelaunch/platform/pkg/response"
)

// CreateExamInput is the create DTO for manually authored exams.
type CreateExamInput struct {
	OwnerID     string `json:"owner_id" binding:"required"`
	Title       string `json:"title" binding:"required"`
	Subject     string `json:"subject"`
	Difficulty  string `json:"difficulty"`
	Description string `json:"description"`
}

// UpdateExamInput is the patch DTO for exams. Nil fields are left untouched.
type UpdateExamInput struct {
	Title       *string `json:"title"`
	Subject     *string `json:"subject"`
	Difficulty  *string `json:"difficulty"`
	Description *string `json:"description"`
}

// ExamDetails is the read DTO for exams.
type ExamDetails struct {
	ID          string    `json:"id"`
	OwnerID     string    `json:"owner_id"`
	Title       string    `json:"title"`
	Subject     string    `json:"subject"`
	Difficulty  string    `json:"difficulty"`
	Source      string    `json:"source"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
}

// ExamController is the generic CRUD controller for exams.
type ExamController = crud.Controller[models.Exam, *models.Exam, CreateExamInput, UpdateExamInput, ExamDetails]

// NewExamController builds the exam resource on the generic CRUD layer.
func NewExamController(db *gorm.DB, opts ...crud.Option) (*ExamController, error) {
	bindings := crud.Bindings[*models.Exam, CreateExamInput, UpdateExamInput, ExamDetails]{
		ApplyCreate: func(ctx context.Context, exam *models.Exam, input CreateExamInput) error {
			var count int64
			err := db.WithContext(ctx).Model(&models.User{}).
				Where("id = ? AND deleted_at IS NULL", input.OwnerID).
				Count(&count).Error
			if err != nil {
				return err
			}
			if count == 0 {
				return apperrors.NewBadRequest("owner does not exist")
			}

			exam.OwnerID = input.OwnerID
			exam.Title = input.Title
			exam.Subject = input.Subject
			exam.Difficulty = input.Difficulty
			exam.Description = input.Description
			exam.Source = models.ExamSourceManual
			return nil
		},
		ApplyPatch: func(_ context.Context, exam *models.Exam, input UpdateExamInput) error {
			if input.Title != nil {
				exam.Title = *input.Title
			}
			if input.Subject != nil {
				exam.Subject = *input.Subject
			}
			if input.Difficulty != nil {
				exam.Difficulty = *input.Difficulty
			}
			if input.Description != nil {
				exam.Description = *input.Description
			}
			return nil
		},
		Present: func(exam *models.Exam) ExamDetails {
			return ExamDetails{
				ID:          exam.ID,
				OwnerID:     exam.OwnerID,
				Title:       exam.Title,
				Subject:     exam.Subject,
				Difficulty:  exam.Difficulty,
				Source:      exam.Source,
				Description: exam.Description,
				CreatedAt:   exam.CreatedAt,
			}
		},
	}

	svc, err := crud.NewService[models.Exam](db, bindings, opts...)
	if err != nil {
		return nil, err
	}
	return crud.NewController(svc, "exams", examExportSchema())
}

func examExportSchema() export.Schema[ExamDetails] {
	return export.Schema[ExamDetails]{
		Sheet: "Exams",
		Fields: []export.Field[ExamDetails]{
			{Name: "ID", Value: func(d ExamDetails) string { return d.ID }},
			{Name: "Owner", Value: func(d ExamDetails) string { return d.OwnerID }},
			{Name: "Title", Value: func(d ExamDetails) string { return d.Title }},
			{Name: "Subject", Value: func(d ExamDetails) string { return d.Subject }},
			{Name: "Difficulty", Value: func(d ExamDetails) string { return d.Difficulty }},
			{Name: "Source", Value: func(d ExamDetails) string { return d.Source }},
			{Name: "Created", Value: func(d ExamDetails) string { return d.CreatedAt.Format(time.RFC3339) }},
		},
	}
}

// ExamGenerationHandler exposes the AI generation endpoint alongside the
// generic exam CRUD routes.
type ExamGenerationHandler struct {
	exams *services.ExamService
}

func NewExamGenerationHandler(exams *services.ExamService) *ExamGenerationHandler {
	return &ExamGenerationHandler{exams: exams}
}

type generateExamRequest struct {
	Title         string `json:"title"`
	Subject       string `json:"subject" validate:"required"`
	Difficulty    string `json:"difficulty"`
	QuestionCount int    `json:"question_count" validate:"omitempty,min=1,max=50"`
}

// POST /api/exams/generate
func (h *ExamGenerationHandler) Generate(c *gin.Context) {
	var req generateExamRequest
	if !bindAndValidate(c, &req) {
		return
	}

	userID, ok := middleware.UserID(c)
	if !ok {
		response.Error(c, apperrors.ErrUnauthorized)
		return
	}

	exam, err := h.exams.Generate(c.Request.Context(), services.GenerateExamInput{
		OwnerID:       userID,
		Title:         req.Title,
		Subject:       req.Subject,
		Difficulty:    req.Difficulty,
		QuestionCount: req.QuestionCount,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusCreated, exam)
}
