package models

import "time"

// Subscription statuses.
const (
	SubscriptionActive   = "active"
	SubscriptionExpired  = "expired"
	SubscriptionCanceled = "canceled"
)

// Subscription ties a user to a paid plan with an expiry date.
type Subscription struct {
	BaseModel

	UserID string `gorm:"type:uuid;not null;index" json:"user_id"`
	User   *User  `json:"-"`

	Plan      string    `gorm:"not null" json:"plan"`
	Status    string    `gorm:"not null;default:active;index" json:"status"`
	ExpiresAt time.Time `gorm:"index" json:"expires_at"`

	Tombstone
}

// Expired reports whether the subscription's paid period has lapsed.
func (s *Subscription) Expired(now time.Time) bool {
	return now.After(s.ExpiresAt)
}
