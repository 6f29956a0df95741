package viewing

import (
	"context"
	"fmt"

	"viewly/internal/models"
	"viewly/internal/repositories"
)

// DuplicateRequestError points at the request that blocks a new one.
// It matches ErrDuplicateRequest.
type DuplicateRequestError struct {
	ExistingID     string
	ExistingStatus models.ViewingStatus
}

func (e *DuplicateRequestError) Error() string {
	return fmt.Sprintf("%s: %s (%s)", ErrDuplicateRequest, e.ExistingID, e.ExistingStatus)
}

func (e *DuplicateRequestError) Is(target error) bool {
	return target == ErrDuplicateRequest
}

// Guard enforces one active request per tenant and property.
type Guard struct {
	repo repositories.ViewingRequestRepository
}

func NewGuard(repo repositories.ViewingRequestRepository) *Guard {
	return &Guard{repo: repo}
}

// Check returns a *DuplicateRequestError when the tenant already has a pending
// or scheduled request for the property.
func (g *Guard) Check(ctx context.Context, tenantID, propertyID string) error {
	existing, err := g.repo.FindActiveByTenantAndProperty(ctx, tenantID, propertyID)
	if err != nil {
		return fmt.Errorf("check active requests: %w", err)
	}
	if existing != nil {
		return &DuplicateRequestError{ExistingID: existing.ID, ExistingStatus: existing.Status}
	}
	return nil
}
