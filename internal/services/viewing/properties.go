package viewing

import (
	"context"
	"fmt"
	"strings"

	"viewly/internal/models"
	"viewly/internal/repositories"
)

// PropertyCatalog is the database-backed PropertyDirectory. Properties
// without their own fee are charged the default.
type PropertyCatalog struct {
	repo            repositories.PropertyRepository
	defaultFee      int64
	defaultCurrency string
}

func NewPropertyCatalog(repo repositories.PropertyRepository, defaultFee int64, defaultCurrency string) *PropertyCatalog {
	return &PropertyCatalog{repo: repo, defaultFee: defaultFee, defaultCurrency: defaultCurrency}
}

func (c *PropertyCatalog) Lookup(ctx context.Context, propertyID string) (*Listing, error) {
	p, err := c.repo.GetByID(ctx, propertyID)
	if err != nil {
		return nil, err
	}
	l := &Listing{LandlordID: p.LandlordID, Amount: p.ViewingFee, Currency: p.Currency}
	if l.Amount <= 0 {
		l.Amount = c.defaultFee
	}
	if l.Currency == "" {
		l.Currency = c.defaultCurrency
	}
	return l, nil
}

// Register records or updates who owns a property. A zero fee keeps the default.
func (c *PropertyCatalog) Register(ctx context.Context, p *models.Property) error {
	p.ID = strings.TrimSpace(p.ID)
	p.LandlordID = strings.TrimSpace(p.LandlordID)
	p.Currency = strings.ToUpper(strings.TrimSpace(p.Currency))
	switch {
	case p.ID == "":
		return fmt.Errorf("%w: property id is required", ErrValidation)
	case p.LandlordID == "":
		return fmt.Errorf("%w: landlord id is required", ErrValidation)
	case p.ViewingFee < 0:
		return fmt.Errorf("%w: viewing fee cannot be negative", ErrValidation)
	case p.Currency != "" && len(p.Currency) != 3:
		return fmt.Errorf("%w: currency must be a three-letter code", ErrValidation)
	}
	if err := c.repo.Save(ctx, p); err != nil {
		return fmt.Errorf("save property: %w", err)
	}
	return nil
}
