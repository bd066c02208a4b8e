package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/entrelaunch/platform/internal/ai"
	"github.com/entrelaunch/platform/internal/models"
	apperrors "github.com/entrelaunch/platform/pkg/errors"
	"github.com/entrelaunch/platform/pkg/logger"
)

// ErrGenerationFailed covers assistant responses that could not be parsed
// into questions.
var ErrGenerationFailed = apperrors.New("EXAM_GENERATION_FAILED", "The assistant did not return usable questions", http.StatusBadGateway)

// GenerateExamInput describes an AI generation request.
type GenerateExamInput struct {
	OwnerID       string
	Title         string
	Subject       string
	Difficulty    string
	QuestionCount int
}

// generatedQuestion is the shape each question takes in the assistant's
// JSON answer.
type generatedQuestion struct {
	Prompt      string   `json:"question"`
	Choices     []string `json:"choices"`
	Answer      string   `json:"answer"`
	Explanation string   `json:"explanation,omitempty"`
}

// ExamService creates exams from assistant completions. Manual exam CRUD
// goes through the generic layer; this service only owns generation.
type ExamService struct {
	db   *gorm.DB
	dify *ai.DifyClient
	log  *zap.Logger
}

// NewExamService constructs an ExamService.
func NewExamService(db *gorm.DB, dify *ai.DifyClient) (*ExamService, error) {
	if db == nil {
		return nil, errors.New("exam service: db is required")
	}
	if dify == nil {
		return nil, errors.New("exam service: dify client is required")
	}
	return &ExamService{db: db, dify: dify, log: logger.WithModule("exams")}, nil
}

// Generate asks the assistant for questions and stores the exam with its
// question rows in one transaction.
func (s *ExamService) Generate(ctx context.Context, input GenerateExamInput) (*models.Exam, error) {
	subject := strings.TrimSpace(input.Subject)
	if subject == "" {
		return nil, apperrors.NewBadRequest("subject is required")
	}
	count := input.QuestionCount
	if count <= 0 {
		count = 10
	}

	answer, err := s.dify.Complete(ctx, ai.CompletionRequest{
		Inputs: map[string]any{
			"subject":    subject,
			"difficulty": input.Difficulty,
			"count":      count,
		},
		User: input.OwnerID,
	})
	if err != nil {
		return nil, apperrors.ErrGatewayUnavailable.WithInternal(err)
	}

	questions, err := parseQuestions(answer)
	if err != nil {
		s.log.Warn("unparsable completion",
			zap.String("subject", subject),
			zap.Error(err),
		)
		return nil, ErrGenerationFailed.WithInternal(err)
	}

	title := strings.TrimSpace(input.Title)
	if title == "" {
		title = subject
	}

	exam := models.Exam{
		OwnerID:     input.OwnerID,
		Title:       title,
		Subject:     subject,
		Difficulty:  strings.TrimSpace(input.Difficulty),
		Source:      models.ExamSourceAI,
		Description: fmt.Sprintf("Generated exam with %d questions", len(questions)),
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&exam).Error; err != nil {
			return fmt.Errorf("exam service: create exam: %w", err)
		}
		for i, q := range questions {
			payload, err := json.Marshal(q)
			if err != nil {
				return fmt.Errorf("exam service: encode question: %w", err)
			}
			row := models.ExamQuestion{
				ExamID:   exam.ID,
				Position: i + 1,
				Prompt:   q.Prompt,
				Payload:  datatypes.JSON(payload),
			}
			if err := tx.Create(&row).Error; err != nil {
				return fmt.Errorf("exam service: create question: %w", err)
			}
			exam.Questions = append(exam.Questions, row)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &exam, nil
}

// parseQuestions extracts the question array from the assistant's answer.
// Assistants often wrap JSON in a markdown code fence, so the fence is
// stripped before decoding.
func parseQuestions(answer string) ([]generatedQuestion, error) {
	trimmed := strings.TrimSpace(answer)
	if strings.HasPrefix(trimmed, "```") {
		trimmed = strings.TrimPrefix(trimmed, "```json")
		trimmed = strings.TrimPrefix(trimmed, "```")
		trimmed = strings.TrimSuffix(strings.TrimSpace(trimmed), "```")
		trimmed = strings.TrimSpace(trimmed)
	}

	var questions []generatedQuestion
	if err := json.Unmarshal([]byte(trimmed), &questions); err != nil {
		return nil, fmt.Errorf("decode questions: %w", err)
	}

	valid := questions[:0]
	for _, q := range questions {
		if strings.TrimSpace(q.Prompt) == "" {
			continue
		}
		valid = append(valid, q)
	}
	if len(valid) == 0 {
		return nil, errors.New("no questions in completion")
	}
	return valid, nil
}
