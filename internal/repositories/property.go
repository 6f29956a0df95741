package repositories

import (
	"context"
	"errors"

	"viewly/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// PropertyRepository stores property ownership and viewing fees.
type PropertyRepository interface {
	GetByID(ctx context.Context, id string) (*models.Property, error)
	// Save creates the property or replaces its owner and fee.
	Save(ctx context.Context, p *models.Property) error
}

type propertyRepository struct {
	db *gorm.DB
}

func NewPropertyRepository(db *gorm.DB) PropertyRepository {
	return &propertyRepository{db: db}
}

func (r *propertyRepository) GetByID(ctx context.Context, id string) (*models.Property, error) {
	var p models.Property
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrPropertyNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *propertyRepository) Save(ctx context.Context, p *models.Property) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"landlord_id", "viewing_fee", "currency", "updated_at"}),
	}).Create(p).Error
}
