package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"viewly/internal/models"

	"gorm.io/gorm"
)

// ViewingRequestRepository persists viewing requests together with their transaction.
type ViewingRequestRepository interface {
	Create(ctx context.Context, v *models.Viewing) error
	GetByID(ctx context.Context, id string) (*models.Viewing, error)
	// Update writes v if the stored version still equals expectedVersion, and
	// creates payout in the same database transaction when it is non-nil.
	Update(ctx context.Context, v *models.Viewing, expectedVersion int64, payout *models.Payout) error
	Delete(ctx context.Context, id string) error
	FindActiveByTenantAndProperty(ctx context.Context, tenantID, propertyID string) (*models.ViewingRequest, error)
	FindByProviderReference(ctx context.Context, ref string) (*models.Viewing, error)
	AttachProviderReference(ctx context.Context, transactionID, ref string) error
	ListForUser(ctx context.Context, userID string, limit, offset int) ([]models.ViewingRequest, error)
	ListAll(ctx context.Context, limit, offset int) ([]models.ViewingRequest, error)
	ListStalePending(ctx context.Context, createdBefore time.Time, limit int) ([]string, error)
	ListLapsedNoShows(ctx context.Context, now time.Time, limit int) ([]string, error)
	GetPayoutByTransaction(ctx context.Context, transactionID string) (*models.Payout, error)
}

type viewingRequestRepository struct {
	db *gorm.DB
}

func NewViewingRequestRepository(db *gorm.DB) ViewingRequestRepository {
	return &viewingRequestRepository{db: db}
}

func (r *viewingRequestRepository) Create(ctx context.Context, v *models.Viewing) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&v.Request).Error; err != nil {
			return err
		}
		return tx.Create(&v.Transaction).Error
	})
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrDuplicateActiveRequest
	}
	return err
}

func (r *viewingRequestRepository) GetByID(ctx context.Context, id string) (*models.Viewing, error) {
	return r.load(r.db.WithContext(ctx), id)
}

func (r *viewingRequestRepository) load(db *gorm.DB, id string) (*models.Viewing, error) {
	var v models.Viewing
	if err := db.Where("id = ?", id).First(&v.Request).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrViewingNotFound
		}
		return nil, fmt.Errorf("failed to get viewing request: %w", err)
	}
	if err := db.Where("viewing_request_id = ?", id).First(&v.Transaction).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrViewingNotFound
		}
		return nil, fmt.Errorf("failed to get transaction: %w", err)
	}
	return &v, nil
}

func (r *viewingRequestRepository) Update(ctx context.Context, v *models.Viewing, expectedVersion int64, payout *models.Payout) error {
	req := &v.Request
	txn := &v.Transaction
	now := time.Now().UTC()

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.ViewingRequest{}).
			Where("id = ? AND version = ?", req.ID, expectedVersion).
			Updates(map[string]interface{}{
				"scheduled_date":        req.ScheduledDate,
				"status":                req.Status,
				"tenant_confirmed":      req.TenantConfirmed,
				"tenant_confirmed_at":   req.TenantConfirmedAt,
				"landlord_confirmed":    req.LandlordConfirmed,
				"landlord_confirmed_at": req.LandlordConfirmedAt,
				"cancellation_reason":   req.CancellationReason,
				"cancelled_by":          req.CancelledBy,
				"dispute_deadline":      req.DisputeDeadline,
				"dispute_evidence":      req.DisputeEvidence,
				"version":               expectedVersion + 1,
				"updated_at":            now,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			var count int64
			if err := tx.Model(&models.ViewingRequest{}).Where("id = ?", req.ID).Count(&count).Error; err != nil {
				return err
			}
			if count == 0 {
				return ErrViewingNotFound
			}
			return ErrConcurrentModification
		}

		// terminal escrow rows are never rewritten
		res = tx.Model(&models.Transaction{}).
			Where("id = ? AND escrow_status NOT IN ?", txn.ID, []models.EscrowStatus{models.EscrowReleased, models.EscrowRefunded}).
			Updates(map[string]interface{}{
				"payment_status":     txn.PaymentStatus,
				"escrow_status":      txn.EscrowStatus,
				"provider_reference": txn.ProviderReference,
				"refund_amount":      txn.RefundAmount,
				"payout_amount":      txn.PayoutAmount,
				"resolved_at":        txn.ResolvedAt,
				"updated_at":         now,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("%w: escrow for transaction %s is already settled", ErrConcurrentModification, txn.ID)
		}

		if payout != nil {
			if err := tx.Create(payout).Error; err != nil {
				if errors.Is(err, gorm.ErrDuplicatedKey) {
					return ErrPayoutExists
				}
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	req.Version = expectedVersion + 1
	req.UpdatedAt = now
	txn.UpdatedAt = now
	return nil
}

func (r *viewingRequestRepository) Delete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("viewing_request_id = ?", id).Delete(&models.Transaction{}).Error; err != nil {
			return err
		}
		return tx.Where("id = ?", id).Delete(&models.ViewingRequest{}).Error
	})
}

func (r *viewingRequestRepository) FindActiveByTenantAndProperty(ctx context.Context, tenantID, propertyID string) (*models.ViewingRequest, error) {
	var req models.ViewingRequest
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND property_id = ? AND status IN ?", tenantID, propertyID, models.ActiveStatuses).
		Order("created_at DESC").
		First(&req).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &req, nil
}

func (r *viewingRequestRepository) FindByProviderReference(ctx context.Context, ref string) (*models.Viewing, error) {
	var txn models.Transaction
	if err := r.db.WithContext(ctx).Where("provider_reference = ?", ref).First(&txn).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrViewingNotFound
		}
		return nil, err
	}
	return r.GetByID(ctx, txn.ViewingRequestID)
}

func (r *viewingRequestRepository) AttachProviderReference(ctx context.Context, transactionID, ref string) error {
	res := r.db.WithContext(ctx).Model(&models.Transaction{}).
		Where("id = ?", transactionID).
		Update("provider_reference", ref)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrViewingNotFound
	}
	return nil
}

func (r *viewingRequestRepository) ListForUser(ctx context.Context, userID string, limit, offset int) ([]models.ViewingRequest, error) {
	var reqs []models.ViewingRequest
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? OR landlord_id = ?", userID, userID).
		Order("created_at DESC").
		Limit(limit).Offset(offset).
		Find(&reqs).Error
	return reqs, err
}

func (r *viewingRequestRepository) ListAll(ctx context.Context, limit, offset int) ([]models.ViewingRequest, error) {
	var reqs []models.ViewingRequest
	err := r.db.WithContext(ctx).Order("created_at DESC").Limit(limit).Offset(offset).Find(&reqs).Error
	return reqs, err
}

func (r *viewingRequestRepository) ListStalePending(ctx context.Context, createdBefore time.Time, limit int) ([]string, error) {
	var ids []string
	err := r.db.WithContext(ctx).Model(&models.ViewingRequest{}).
		Where("status = ? AND created_at < ?", models.StatusPending, createdBefore).
		Order("created_at ASC").
		Limit(limit).
		Pluck("id", &ids).Error
	return ids, err
}

func (r *viewingRequestRepository) ListLapsedNoShows(ctx context.Context, now time.Time, limit int) ([]string, error) {
	held := r.db.Model(&models.Transaction{}).
		Select("viewing_request_id").
		Where("escrow_status = ?", models.EscrowHeld)

	var ids []string
	err := r.db.WithContext(ctx).Model(&models.ViewingRequest{}).
		Where("status = ? AND dispute_deadline < ? AND id IN (?)", models.StatusTenantNoShow, now, held).
		Order("dispute_deadline ASC").
		Limit(limit).
		Pluck("id", &ids).Error
	return ids, err
}

func (r *viewingRequestRepository) GetPayoutByTransaction(ctx context.Context, transactionID string) (*models.Payout, error) {
	var p models.Payout
	err := r.db.WithContext(ctx).Where("transaction_id = ?", transactionID).First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}
