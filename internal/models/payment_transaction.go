package models

// Payment transaction statuses.
const (
	PaymentPending  = "pending"
	PaymentPaid     = "paid"
	PaymentDeclined = "declined"
	PaymentRefunded = "refunded"
)

// PaymentTransaction tracks one payment attempt through the gateway.
// Rows are never soft-deleted; they form the payment audit trail.
type PaymentTransaction struct {
	BaseModel

	UserID string `gorm:"type:uuid;not null;index" json:"user_id"`

	CartID      string  `gorm:"uniqueIndex;not null" json:"cart_id"`
	Description string  `json:"description"`
	Amount      float64 `gorm:"not null" json:"amount"`
	Currency    string  `gorm:"not null" json:"currency"`

	Status      string `gorm:"not null;default:pending;index" json:"status"`
	TranRef     string `gorm:"index" json:"tran_ref"`
	RedirectURL string `gorm:"-" json:"redirect_url,omitempty"`

	GatewayCode    string `json:"gateway_code,omitempty"`
	GatewayMessage string `json:"gateway_message,omitempty"`
}
