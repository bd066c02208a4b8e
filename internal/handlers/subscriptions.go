package handlers

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/entrelaunch/platform/internal/crud"
	"github.com/entrelaunch/platform/internal/models"
	apperrors "github.com/entrelaunch/platform/pkg/errors"
	"github.com/entrelaunch/platform/pkg/export"
)

// CreateSubscriptionInput is the create DTO for subscriptions.
type CreateSubscriptionInput struct {
	UserID    string    `json:"user_id" binding:"required"`
	Plan      string    `json:"plan" binding:"required"`
	ExpiresAt time.Time `json:"expires_at" binding:"required"`
}

// UpdateSubscriptionInput is the patch DTO for subscriptions. Nil fields are
// left untouched.
type UpdateSubscriptionInput struct {
	Plan      *string    `json:"plan"`
	Status    *string    `json:"status"`
	ExpiresAt *time.Time `json:"expires_at"`
}

// SubscriptionDetails is the read DTO for subscriptions.
type SubscriptionDetails struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Plan      string    `json:"plan"`
	Status    string    `json:"status"`
	ExpiresAt time.Time `json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
}

// SubscriptionController is the generic CRUD controller for subscriptions.
type SubscriptionController = crud.Controller[models.Subscription, *models.Subscription, CreateSubscriptionInput, UpdateSubscriptionInput, SubscriptionDetails]

// NewSubscriptionController builds the subscription resource on the generic
// CRUD layer.
func NewSubscriptionController(db *gorm.DB, opts ...crud.Option) (*SubscriptionController, error) {
	bindings := crud.Bindings[*models.Subscription, CreateSubscriptionInput, UpdateSubscriptionInput, SubscriptionDetails]{
		ApplyCreate: func(ctx context.Context, sub *models.Subscription, input CreateSubscriptionInput) error {
			var count int64
			err := db.WithContext(ctx).Model(&models.User{}).
				Where("id = ? AND deleted_at IS NULL", input.UserID).
				Count(&count).Error
			if err != nil {
				return err
			}
			if count == 0 {
				return apperrors.NewBadRequest("user does not exist")
			}

			sub.UserID = input.UserID
			sub.Plan = input.Plan
			sub.Status = models.SubscriptionActive
			sub.ExpiresAt = input.ExpiresAt
			return nil
		},
		ApplyPatch: func(_ context.Context, sub *models.Subscription, input UpdateSubscriptionInput) error {
			if input.Plan != nil {
				sub.Plan = *input.Plan
			}
			if input.Status != nil {
				if !validSubscriptionStatus(*input.Status) {
					return apperrors.NewBadRequest("invalid subscription status")
				}
				sub.Status = *input.Status
			}
			if input.ExpiresAt != nil {
				sub.ExpiresAt = *input.ExpiresAt
			}
			return nil
		},
		Present: func(sub *models.Subscription) SubscriptionDetails {
			return SubscriptionDetails{
				ID:        sub.ID,
				UserID:    sub.UserID,
				Plan:      sub.Plan,
				Status:    sub.Status,
				ExpiresAt: sub.ExpiresAt,
				CreatedAt: sub.CreatedAt,
			}
		},
	}

	svc, err := crud.NewService[models.Subscription](db, bindings, opts...)
	if err != nil {
		return nil, err
	}
	return crud.NewController(svc, "subscriptions", subscriptionExportSchema())
}

func validSubscriptionStatus(status string) bool {
	switch status {
	case models.SubscriptionActive, models.SubscriptionExpired, models.SubscriptionCanceled:
		return true
	}
	return false
}

func subscriptionExportSchema() export.Schema[SubscriptionDetails] {
	return export.Schema[SubscriptionDetails]{
		Sheet: "Subscriptions",
		Fields: []export.Field[SubscriptionDetails]{
			{Name: "ID", Value: func(d SubscriptionDetails) string { return d.ID }},
			{Name: "User", Value: func(d SubscriptionDetails) string { return d.UserID }},
			{Name: "Plan", Value: func(d SubscriptionDetails) string { return d.Plan }},
			{Name: "Status", Value: func(d SubscriptionDetails) string { return d.Status }},
			{Name: "Expires", Value: func(d SubscriptionDetails) string { return d.ExpiresAt.Format(time.RFC3339) }},
			{Name: "Created", Value: func(d SubscriptionDetails) string { return d.CreatedAt.Format(time.RFC3339) }},
		},
	}
}
