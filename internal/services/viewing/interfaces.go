package viewing

import (
	"context"

	"viewly/internal/models"
)

// ViewCache is the read-through cache in front of the repository.
// SetViewing must refuse a viewing older than the last committedVersion
// passed to InvalidateViewing.
type ViewCache interface {
	GetViewing(ctx context.Context, id string) (*models.Viewing, bool, error)
	SetViewing(ctx context.Context, v *models.Viewing) (bool, error)
	InvalidateViewing(ctx context.Context, id string, committedVersion int64) error
}

// Dispatcher delivers notifications without blocking the caller.
type Dispatcher interface {
	Dispatch(events ...models.NotificationEvent)
}

// Listing is what creating a request needs to know about a property.
type Listing struct {
	LandlordID string
	Amount     int64
	Currency   string
}

// PropertyDirectory resolves the owner and viewing fee of a property.
// Unknown properties yield repositories.ErrPropertyNotFound.
type PropertyDirectory interface {
	Lookup(ctx context.Context, propertyID string) (*Listing, error)
}

type noopCache struct{}

func (noopCache) GetViewing(context.Context, string) (*models.Viewing, bool, error) {
	return nil, false, nil
}
func (noopCache) SetViewing(context.Context, *models.Viewing) (bool, error) { return true, nil }
func (noopCache) InvalidateViewing(context.Context, string, int64) error    { return nil }
