package models

import (
	"time"
)

// ViewingStatus is the lifecycle state of a viewing request.
type ViewingStatus string

const (
	StatusPending             ViewingStatus = "pending"
	StatusScheduled           ViewingStatus = "scheduled"
	StatusCompleted           ViewingStatus = "completed"
	StatusCancelledByLandlord ViewingStatus = "cancelled_by_landlord"
	StatusCancelledByTenant   ViewingStatus = "cancelled_by_tenant"
	StatusTenantNoShow        ViewingStatus = "tenant_no_show"
	StatusDisputed            ViewingStatus = "disputed"
	StatusExpired             ViewingStatus = "expired"
)

// ActiveStatuses are the statuses covered by the one-active-request-per-property rule.
var ActiveStatuses = []ViewingStatus{StatusPending, StatusScheduled}

// IsActive reports whether the request still blocks a new request for the same property.
func (s ViewingStatus) IsActive() bool {
	return s == StatusPending || s == StatusScheduled
}

// IsValid reports whether s is a known status.
func (s ViewingStatus) IsValid() bool {
	switch s {
	case StatusPending, StatusScheduled, StatusCompleted, StatusCancelledByLandlord,
		StatusCancelledByTenant, StatusTenantNoShow, StatusDisputed, StatusExpired:
		return true
	}
	return false
}

// Party identifies one side of a viewing.
type Party string

const (
	PartyTenant   Party = "tenant"
	PartyLandlord Party = "landlord"
)

// PreferredDateCount is the number of distinct dates a tenant must offer.
const PreferredDateCount = 3

// ViewingRequest is the aggregate root for one requested property viewing.
type ViewingRequest struct {
	ID                  string        `gorm:"primaryKey;type:varchar(36)" json:"id"`
	PropertyID          string        `gorm:"type:varchar(64);not null;index" json:"property_id"`
	TenantID            string        `gorm:"type:varchar(64);not null;index" json:"tenant_id"`
	LandlordID          string        `gorm:"type:varchar(64);not null;index" json:"landlord_id"`
	PreferredDates      DateList      `gorm:"type:text;not null" json:"preferred_dates"`
	ScheduledDate       *time.Time    `json:"scheduled_date,omitempty"`
	Status              ViewingStatus `gorm:"type:varchar(32);not null;index" json:"status"`
	TenantConfirmed     bool          `gorm:"not null" json:"tenant_confirmed"`
	TenantConfirmedAt   *time.Time    `json:"tenant_confirmed_at,omitempty"`
	LandlordConfirmed   bool          `gorm:"not null" json:"landlord_confirmed"`
	LandlordConfirmedAt *time.Time    `json:"landlord_confirmed_at,omitempty"`
	CancellationReason  string        `gorm:"type:text" json:"cancellation_reason,omitempty"`
	CancelledBy         *Party        `gorm:"type:varchar(16)" json:"cancelled_by,omitempty"`
	DisputeDeadline     *time.Time    `json:"dispute_deadline,omitempty"`
	DisputeEvidence     string        `gorm:"type:text" json:"dispute_evidence,omitempty"`
	Version             int64         `gorm:"not null" json:"version"`
	CreatedAt           time.Time     `json:"created_at"`
	UpdatedAt           time.Time     `json:"updated_at"`
}

func (ViewingRequest) TableName() string {
	return "viewing_requests"
}

// PartyOf returns the side userID is on, if any.
func (r *ViewingRequest) PartyOf(userID string) (Party, bool) {
	switch userID {
	case r.TenantID:
		return PartyTenant, true
	case r.LandlordID:
		return PartyLandlord, true
	}
	return "", false
}

// HasPreferredDate reports whether t matches one of the tenant's preferred dates.
func (r *ViewingRequest) HasPreferredDate(t time.Time) bool {
	for _, d := range r.PreferredDates {
		if d.Equal(t) {
			return true
		}
	}
	return false
}
