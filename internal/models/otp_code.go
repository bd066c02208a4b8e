package models

import "time"

// OtpCode is a single-use SMS verification code bound to a phone number.
type OtpCode struct {
	BaseModel

	Phone      string     `gorm:"not null;index" json:"phone"`
	CodeHash   string     `gorm:"not null" json:"-"`
	Counter    uint64     `gorm:"not null" json:"-"`
	ExpiresAt  time.Time  `gorm:"index" json:"expires_at"`
	ConsumedAt *time.Time `json:"-"`
	Attempts   int        `gorm:"default:0" json:"-"`

	Tombstone
}

// Usable reports whether the code can still be verified.
func (o *OtpCode) Usable(now time.Time) bool {
	return o.ConsumedAt == nil && now.Before(o.ExpiresAt) && !o.Deleted()
}
