package models

import (
	"time"
)

// PaymentStatus tracks the tenant's payment at the provider.
type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "pending"
	PaymentCompleted PaymentStatus = "completed"
	PaymentFailed    PaymentStatus = "failed"
)

// EscrowStatus tracks who the viewing fee belongs to.
// It only moves pending -> held -> released|refunded.
type EscrowStatus string

const (
	EscrowPending  EscrowStatus = "pending"
	EscrowHeld     EscrowStatus = "held"
	EscrowReleased EscrowStatus = "released"
	EscrowRefunded EscrowStatus = "refunded"
)

// IsTerminal reports whether the escrow has been paid out or refunded.
func (s EscrowStatus) IsTerminal() bool {
	return s == EscrowReleased || s == EscrowRefunded
}

// Transaction is the viewing fee owned 1:1 by a ViewingRequest.
// Amounts are in the smallest currency unit.
type Transaction struct {
	ID                string        `gorm:"primaryKey;type:varchar(36)" json:"id"`
	ViewingRequestID  string        `gorm:"type:varchar(36);not null;uniqueIndex" json:"viewing_request_id"`
	TenantID          string        `gorm:"type:varchar(64);not null;index" json:"tenant_id"`
	Amount            int64         `gorm:"not null" json:"amount"`
	Currency          string        `gorm:"type:varchar(3);not null" json:"currency"`
	PaymentStatus     PaymentStatus `gorm:"type:varchar(16);not null" json:"payment_status"`
	EscrowStatus      EscrowStatus  `gorm:"type:varchar(16);not null" json:"escrow_status"`
	ProviderReference string        `gorm:"type:varchar(255);index" json:"provider_reference,omitempty"`
	RefundAmount      int64         `gorm:"not null;default:0" json:"refund_amount"`
	PayoutAmount      int64         `gorm:"not null;default:0" json:"payout_amount"`
	ResolvedAt        *time.Time    `json:"resolved_at,omitempty"`
	CreatedAt         time.Time     `json:"created_at"`
	UpdatedAt         time.Time     `json:"updated_at"`
}

func (Transaction) TableName() string {
	return "viewing_transactions"
}
