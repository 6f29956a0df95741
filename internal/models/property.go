package models

import "time"

// Property is the local record of a listed property: who owns it and what a
// viewing costs. A zero ViewingFee means the configured default applies.
type Property struct {
	ID         string    `gorm:"primaryKey;type:varchar(64)" json:"id"`
	LandlordID string    `gorm:"type:varchar(64);not null;index" json:"landlord_id"`
	ViewingFee int64     `gorm:"not null" json:"viewing_fee"`
	Currency   string    `gorm:"type:varchar(3)" json:"currency,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}
