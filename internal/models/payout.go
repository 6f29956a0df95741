package models

import "time"

// PayoutStatus is driven by the external disbursement process once a payout exists.
type PayoutStatus string

const (
	PayoutPending   PayoutStatus = "pending"
	PayoutCompleted PayoutStatus = "completed"
	PayoutFailed    PayoutStatus = "failed"
)

// Payout is an instruction to pay a landlord. At most one exists per transaction.
type Payout struct {
	ID              string       `gorm:"primaryKey;type:varchar(36)" json:"id"`
	TransactionID   string       `gorm:"type:varchar(36);not null;uniqueIndex" json:"transaction_id"`
	LandlordID      string       `gorm:"type:varchar(64);not null;index" json:"landlord_id"`
	Amount          int64        `gorm:"not null" json:"amount"`
	Method          string       `gorm:"type:varchar(32)" json:"method"`
	Account         string       `gorm:"type:varchar(128)" json:"account,omitempty"`
	Status          PayoutStatus `gorm:"type:varchar(16);not null" json:"status"`
	ReferenceNumber string       `gorm:"type:varchar(64)" json:"reference_number"`
	ProcessedAt     *time.Time   `json:"processed_at,omitempty"`
	CreatedAt       time.Time    `json:"created_at"`
	UpdatedAt       time.Time    `json:"updated_at"`
}
