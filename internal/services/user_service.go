package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/entrelaunch/platform/internal/cascade"
	"github.com/entrelaunch/platform/internal/models"
	apperrors "github.com/entrelaunch/platform/pkg/errors"
	"github.com/entrelaunch/platform/pkg/metrics"
)

var (
	// ErrUserNotFound indicates the requested user does not exist.
	ErrUserNotFound = apperrors.New("USER_NOT_FOUND", "User not found", http.StatusNotFound)
	// ErrUserExists indicates a username or email collision on create.
	ErrUserExists = apperrors.New("USER_EXISTS", "Username or email already in use", http.StatusConflict)
	// ErrRootUserImmutable ensures the root account cannot be deactivated or deleted.
	ErrRootUserImmutable = apperrors.New("USER_ROOT_IMMUTABLE", "Root user cannot perform this operation", http.StatusBadRequest)
)

// CreateUserInput describes the fields accepted when creating a user.
type CreateUserInput struct {
	Username  string
	Email     string
	Password  string
	FirstName string
	LastName  string
	Phone     string
	Country   string
	Roles     []string
}

// UpdateUserInput enumerates mutable user attributes.
type UpdateUserInput struct {
	Email     *string
	FirstName *string
	LastName  *string
	Phone     *string
	Country   *string
	IsActive  *bool
}

// UserService manages the user lifecycle. Deleting a user cascades to the
// records it owns through the cascade service.
type UserService struct {
	db      *gorm.DB
	cascade *cascade.Service
}

// NewUserService constructs a UserService and registers the user cascade.
func NewUserService(db *gorm.DB, cascadeSvc *cascade.Service) (*UserService, error) {
	if db == nil {
		return nil, errors.New("user service: db is required")
	}
	if cascadeSvc == nil {
		return nil, errors.New("user service: cascade service is required")
	}

	cascadeSvc.Register("users",
		cascade.TombstoneStep("subscriptions", "user_id"),
		cascade.TombstoneStep("refresh_tokens", "user_id"),
		cascade.SubqueryStep("exam_questions", "exam_id", "exams", "owner_id"),
		cascade.TombstoneStep("exams", "owner_id"),
		otpCodesStep,
	)

	return &UserService{db: db, cascade: cascadeSvc}, nil
}

// otpCodesStep tombstones OTP codes issued to the deleted user's phone.
// Codes are keyed by phone number, not user id, so the phone is resolved
// inside the cascade transaction.
func otpCodesStep(tx *gorm.DB, rootID string, deletedAt, purgeAfter time.Time) error {
	sub := tx.Table("users").Select("phone").Where("id = ? AND phone <> ''", rootID)
	err := tx.Table("otp_codes").
		Where("phone IN (?) AND deleted_at IS NULL", sub).
		Updates(map[string]any{"deleted_at": deletedAt, "purge_after": purgeAfter}).Error
	if err != nil {
		return fmt.Errorf("user service: delete otp codes: %w", err)
	}
	return nil
}

// Create provisions a new user with a hashed password and role assignments.
func (s *UserService) Create(ctx context.Context, input CreateUserInput) (*models.User, error) {
	username := strings.TrimSpace(input.Username)
	email := strings.ToLower(strings.TrimSpace(input.Email))
	if username == "" || email == "" {
		return nil, apperrors.NewBadRequest("username and email are required")
	}
	if input.Password == "" {
		return nil, apperrors.NewBadRequest("password is required")
	}

	var count int64
	err := s.db.WithContext(ctx).Model(&models.User{}).
		Where("username = ? OR email = ?", username, email).
		Count(&count).Error
	if err != nil {
		return nil, fmt.Errorf("user service: check uniqueness: %w", err)
	}
	if count > 0 {
		return nil, ErrUserExists
	}

	user := models.User{
		Username:  username,
		Email:     email,
		FirstName: strings.TrimSpace(input.FirstName),
		LastName:  strings.TrimSpace(input.LastName),
		Phone:     strings.TrimSpace(input.Phone),
		Country:   strings.TrimSpace(input.Country),
		IsActive:  true,
	}
	if err := user.SetPassword(input.Password); err != nil {
		return nil, fmt.Errorf("user service: hash password: %w", err)
	}

	roleIDs := input.Roles
	if len(roleIDs) == 0 {
		roleIDs = []string{"user"}
	}
	var roles []models.Role
	if err := s.db.WithContext(ctx).Find(&roles, "id IN ?", roleIDs).Error; err != nil {
		return nil, fmt.Errorf("user service: load roles: %w", err)
	}
	user.Roles = roles

	if err := s.db.WithContext(ctx).Create(&user).Error; err != nil {
		return nil, fmt.Errorf("user service: create user: %w", err)
	}
	return &user, nil
}

// Get returns a single live user with roles preloaded.
func (s *UserService) Get(ctx context.Context, id string) (*models.User, error) {
	var user models.User
	err := s.db.WithContext(ctx).
		Preload("Roles").
		First(&user, "id = ? AND deleted_at IS NULL", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("user service: load user: %w", err)
	}
	return &user, nil
}

// GetByUsername returns a live user located by username.
func (s *UserService) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	var user models.User
	err := s.db.WithContext(ctx).
		Preload("Roles").
		First(&user, "username = ? AND deleted_at IS NULL", strings.TrimSpace(username)).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("user service: load user: %w", err)
	}
	return &user, nil
}

// List returns every live user ordered by creation time.
func (s *UserService) List(ctx context.Context) ([]models.User, error) {
	var users []models.User
	err := s.db.WithContext(ctx).
		Preload("Roles").
		Where("deleted_at IS NULL").
		Order("created_at").
		Find(&users).Error
	if err != nil {
		return nil, fmt.Errorf("user service: list users: %w", err)
	}
	return users, nil
}

// Update applies the provided patch to a live user.
func (s *UserService) Update(ctx context.Context, id string, input UpdateUserInput) (*models.User, error) {
	user, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if input.Email != nil {
		user.Email = strings.ToLower(strings.TrimSpace(*input.Email))
	}
	if input.FirstName != nil {
		user.FirstName = strings.TrimSpace(*input.FirstName)
	}
	if input.LastName != nil {
		user.LastName = strings.TrimSpace(*input.LastName)
	}
	if input.Phone != nil {
		user.Phone = strings.TrimSpace(*input.Phone)
	}
	if input.Country != nil {
		user.Country = strings.TrimSpace(*input.Country)
	}
	if input.IsActive != nil {
		if user.IsRoot && !*input.IsActive {
			return nil, ErrRootUserImmutable
		}
		user.IsActive = *input.IsActive
	}

	if err := s.db.WithContext(ctx).Save(user).Error; err != nil {
		return nil, fmt.Errorf("user service: update user: %w", err)
	}
	return user, nil
}

// Delete tombstones a user and everything the user owns. Deleting a missing
// or already deleted user returns ErrUserNotFound.
func (s *UserService) Delete(ctx context.Context, id string) error {
	user, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if user.IsRoot {
		return ErrRootUserImmutable
	}

	deleted, err := s.cascade.SoftDeleteCascade(ctx, "users", id)
	if err != nil {
		return fmt.Errorf("user service: delete user: %w", err)
	}
	if !deleted {
		return ErrUserNotFound
	}
	return nil
}

// Authenticate verifies the credentials and returns the matching user.
func (s *UserService) Authenticate(ctx context.Context, username, password string) (*models.User, error) {
	user, err := s.GetByUsername(ctx, username)
	if err != nil {
		metrics.AuthAttempts.WithLabelValues("failure").Inc()
		if errors.Is(err, ErrUserNotFound) {
			return nil, apperrors.ErrInvalidCredentials
		}
		return nil, err
	}

	if !user.IsActive || !user.CheckPassword(password) {
		metrics.AuthAttempts.WithLabelValues("failure").Inc()
		return nil, apperrors.ErrInvalidCredentials
	}

	metrics.AuthAttempts.WithLabelValues("success").Inc()
	return user, nil
}
