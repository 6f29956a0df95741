package viewing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"viewly/internal/models"
	"viewly/internal/repositories"
	"viewly/internal/services/escrow"
	"viewly/internal/services/payment"
)

const (
	defaultListLimit = 20
	maxListLimit     = 100
)

// Config tunes the orchestrator.
type Config struct {
	ProviderTimeout time.Duration
	MaxRetries      int
	DisputeWindow   time.Duration
	CallbackURL     string
	ReturnURL       string
	CancelURL       string
}

// CreateInput is a tenant's request to view a property. The landlord and
// the fee come from the property directory, never from the tenant.
type CreateInput struct {
	PropertyID     string
	PreferredDates []time.Time
}

// CreateResult carries the new request and where the tenant pays for it.
type CreateResult struct {
	Viewing    *models.Viewing
	PaymentURL string
}

// Service coordinates loading, authorizing, transitioning and committing
// viewing requests, and runs side effects once a transition is durable.
type Service struct {
	repo       repositories.ViewingRequestRepository
	guard      *Guard
	machine    *escrow.Machine
	provider   payment.Provider
	dispatcher Dispatcher
	cache      ViewCache
	properties PropertyDirectory
	cfg        Config
	logger     *slog.Logger
	now        func() time.Time
}

// Option customises a Service.
type Option func(*Service)

// WithCache puts a read-through cache in front of GetViewing.
func WithCache(c ViewCache) Option {
	return func(s *Service) {
		if c != nil {
			s.cache = c
		}
	}
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithMachine overrides the transition machine.
func WithMachine(m *escrow.Machine) Option {
	return func(s *Service) { s.machine = m }
}

func NewService(
	repo repositories.ViewingRequestRepository,
	properties PropertyDirectory,
	provider payment.Provider,
	dispatcher Dispatcher,
	cfg Config,
	logger *slog.Logger,
	opts ...Option,
) *Service {
	if cfg.ProviderTimeout <= 0 {
		cfg.ProviderTimeout = 30 * time.Second
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if logger == nil {
		logger = slog.Default()
	}

	machine := escrow.NewMachine()
	if cfg.DisputeWindow > 0 {
		machine.DisputeWindow = cfg.DisputeWindow
	}

	s := &Service{
		repo:       repo,
		guard:      NewGuard(repo),
		machine:    machine,
		provider:   provider,
		dispatcher: dispatcher,
		cache:      noopCache{},
		properties: properties,
		cfg:        cfg,
		logger:     logger.With("component", "viewing"),
		now:        func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateViewingRequest validates the tenant's dates, persists a pending
// request with its escrow, and opens a payment with the provider. If the
// provider cannot be reached nothing is left behind.
func (s *Service) CreateViewingRequest(ctx context.Context, caller models.Caller, in CreateInput) (*CreateResult, error) {
	if caller.Role != models.RoleTenant {
		return nil, ErrUnauthorized
	}
	now := s.now()
	dates, err := validateCreate(in, now)
	if err != nil {
		return nil, err
	}

	listing, err := s.properties.Lookup(ctx, in.PropertyID)
	if err != nil {
		if errors.Is(err, repositories.ErrPropertyNotFound) {
			return nil, ErrPropertyNotFound
		}
		return nil, fmt.Errorf("look up property: %w", err)
	}
	if listing.LandlordID == caller.UserID {
		return nil, fmt.Errorf("%w: cannot request a viewing of your own property", ErrValidation)
	}
	if listing.Amount <= 0 {
		return nil, fmt.Errorf("%w: viewing fee must be positive", ErrValidation)
	}
	amount, currency := listing.Amount, listing.Currency

	if err := s.guard.Check(ctx, caller.UserID, in.PropertyID); err != nil {
		return nil, err
	}

	requestID := uuid.NewString()
	v := &models.Viewing{
		Request: models.ViewingRequest{
			ID:             requestID,
			PropertyID:     in.PropertyID,
			TenantID:       caller.UserID,
			LandlordID:     listing.LandlordID,
			PreferredDates: dates,
			Status:         models.StatusPending,
			Version:        1,
			CreatedAt:      now,
			UpdatedAt:      now,
		},
		Transaction: models.Transaction{
			ID:               uuid.NewString(),
			ViewingRequestID: requestID,
			TenantID:         caller.UserID,
			Amount:           amount,
			Currency:         currency,
			PaymentStatus:    models.PaymentPending,
			EscrowStatus:     models.EscrowPending,
			CreatedAt:        now,
			UpdatedAt:        now,
		},
	}

	if err := s.repo.Create(ctx, v); err != nil {
		if errors.Is(err, repositories.ErrDuplicateActiveRequest) {
			// lost a race with another create; report the winner
			if gerr := s.guard.Check(ctx, caller.UserID, in.PropertyID); gerr != nil {
				return nil, gerr
			}
			return nil, ErrDuplicateRequest
		}
		return nil, fmt.Errorf("persist viewing request: %w", err)
	}

	pctx, cancel := context.WithTimeout(ctx, s.cfg.ProviderTimeout)
	defer cancel()
	init, err := s.provider.Initialize(pctx, payment.InitializeRequest{
		Amount:      amount,
		Currency:    currency,
		Reference:   v.Transaction.ID,
		Description: "Property viewing fee",
		CallbackURL: s.cfg.CallbackURL,
		ReturnURL:   s.cfg.ReturnURL,
		CancelURL:   s.cfg.CancelURL,
	})
	if err != nil {
		s.compensate(ctx, v.Request.ID)
		return nil, fmt.Errorf("%w: %v", ErrPaymentProvider, err)
	}

	if err := s.repo.AttachProviderReference(ctx, v.Transaction.ID, init.ProviderReference); err != nil {
		s.compensate(ctx, v.Request.ID)
		return nil, fmt.Errorf("attach provider reference: %w", err)
	}
	v.Transaction.ProviderReference = init.ProviderReference

	s.logger.InfoContext(ctx, "viewing request created",
		"viewing_request_id", v.Request.ID,
		"tenant_id", v.Request.TenantID,
		"property_id", v.Request.PropertyID,
	)
	s.dispatch(models.NotificationEvent{
		RecipientID:      v.Request.LandlordID,
		Type:             models.EventViewingRequested,
		ViewingRequestID: v.Request.ID,
		Payload: map[string]interface{}{
			"property_id":     v.Request.PropertyID,
			"preferred_dates": []time.Time(dates),
		},
		OccurredAt: now,
	})
	return &CreateResult{Viewing: v, PaymentURL: init.PaymentURL}, nil
}

func validateCreate(in CreateInput, now time.Time) (models.DateList, error) {
	if strings.TrimSpace(in.PropertyID) == "" {
		return nil, fmt.Errorf("%w: property_id is required", ErrValidation)
	}
	if len(in.PreferredDates) != models.PreferredDateCount {
		return nil, fmt.Errorf("%w: exactly %d preferred dates are required", ErrValidation, models.PreferredDateCount)
	}

	dates := make(models.DateList, 0, len(in.PreferredDates))
	for _, d := range in.PreferredDates {
		d = d.UTC()
		if !d.After(now) {
			return nil, fmt.Errorf("%w: preferred dates must be in the future", ErrValidation)
		}
		for _, seen := range dates {
			if seen.Equal(d) {
				return nil, fmt.Errorf("%w: preferred dates must be distinct", ErrValidation)
			}
		}
		dates = append(dates, d)
	}
	return dates, nil
}

func (s *Service) compensate(ctx context.Context, id string) {
	dctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.ProviderTimeout)
	defer cancel()
	if err := s.repo.Delete(dctx, id); err != nil {
		s.logger.ErrorContext(ctx, "failed to roll back viewing request", "viewing_request_id", id, "error", err)
	}
}

// CancelViewingRequest cancels a pending or scheduled request. Admins cancel
// on behalf of a party, landlord by default.
func (s *Service) CancelViewingRequest(ctx context.Context, caller models.Caller, id, reason string, onBehalfOf escrow.Actor) (*escrow.Result, error) {
	return s.act(ctx, caller, id, escrow.Command{
		Action:     escrow.ActionCancel,
		Reason:     reason,
		OnBehalfOf: onBehalfOf,
	})
}

// ReportNoShow records the landlord's claim and opens the dispute window.
func (s *Service) ReportNoShow(ctx context.Context, caller models.Caller, id, reason string) (*escrow.Result, error) {
	return s.act(ctx, caller, id, escrow.Command{Action: escrow.ActionReportNoShow, Reason: reason})
}

// DisputeNoShow contests a no-show claim while the window is open.
func (s *Service) DisputeNoShow(ctx context.Context, caller models.Caller, id, evidence string) (*escrow.Result, error) {
	return s.act(ctx, caller, id, escrow.Command{Action: escrow.ActionDisputeNoShow, Evidence: evidence})
}

// ConfirmViewing records one party's confirmation; the second one completes the viewing.
func (s *Service) ConfirmViewing(ctx context.Context, caller models.Caller, id string) (*escrow.Result, error) {
	return s.act(ctx, caller, id, escrow.Command{Action: escrow.ActionConfirm})
}

// ScheduleViewing fixes the viewing on one of the tenant's preferred dates.
func (s *Service) ScheduleViewing(ctx context.Context, caller models.Caller, id string, date time.Time) (*escrow.Result, error) {
	return s.act(ctx, caller, id, escrow.Command{Action: escrow.ActionSchedule, ScheduledDate: date})
}

// ResolveDispute closes a disputed no-show with the given outcome.
func (s *Service) ResolveDispute(ctx context.Context, caller models.Caller, id string, outcome models.ViewingStatus, note string) (*escrow.Result, error) {
	return s.act(ctx, caller, id, escrow.Command{Action: escrow.ActionResolveDispute, Outcome: outcome, Reason: note})
}

// Expire closes a pending request that was never scheduled and refunds any fee.
func (s *Service) Expire(ctx context.Context, caller models.Caller, id string) (*escrow.Result, error) {
	return s.act(ctx, caller, id, escrow.Command{Action: escrow.ActionExpire, Reason: "request expired"})
}

// FinalizeNoShow pays out an uncontested no-show claim once the window has lapsed.
func (s *Service) FinalizeNoShow(ctx context.Context, caller models.Caller, id string) (*escrow.Result, error) {
	return s.act(ctx, caller, id, escrow.Command{Action: escrow.ActionFinalizeNoShow})
}

// act authorizes caller on the freshest copy of the request and applies cmd.
func (s *Service) act(ctx context.Context, caller models.Caller, id string, cmd escrow.Command) (*escrow.Result, error) {
	return s.commit(ctx, id, func(v *models.Viewing) (*escrow.Result, error) {
		actor, err := authorize(caller, &v.Request, cmd.Action)
		if err != nil {
			return nil, err
		}
		c := cmd
		c.Actor = actor
		c.Now = s.now()
		return s.machine.Apply(v, c)
	})
}

// HandlePaymentEvent applies the provider's verdict for a payment reference.
// Repeated deliveries are harmless.
func (s *Service) HandlePaymentEvent(ctx context.Context, providerReference string, succeeded bool) error {
	v, err := s.repo.FindByProviderReference(ctx, providerReference)
	if err != nil {
		return mapRepoError(err)
	}

	_, err = s.commit(ctx, v.Request.ID, func(v *models.Viewing) (*escrow.Result, error) {
		res, err := s.machine.ApplyPayment(v, succeeded, s.now())
		if err != nil {
			return nil, err
		}
		if res.Viewing.Transaction.PaymentStatus == v.Transaction.PaymentStatus &&
			res.Viewing.Transaction.EscrowStatus == v.Transaction.EscrowStatus {
			return nil, errUnchanged
		}
		return res, nil
	})
	if errors.Is(err, errUnchanged) {
		return nil
	}
	return err
}

var errUnchanged = errors.New("no change")

// commit runs step against the stored viewing and writes the result with an
// optimistic version check, reloading and retrying when another writer got
// there first.
func (s *Service) commit(ctx context.Context, id string, step func(*models.Viewing) (*escrow.Result, error)) (*escrow.Result, error) {
	for attempt := 0; ; attempt++ {
		current, err := s.repo.GetByID(ctx, id)
		if err != nil {
			return nil, mapRepoError(err)
		}

		res, err := step(current)
		if err != nil {
			if errors.Is(err, escrow.ErrInvalidCommand) {
				return nil, fmt.Errorf("%w: %v", ErrValidation, err)
			}
			return nil, err
		}

		err = s.repo.Update(ctx, res.Viewing, current.Request.Version, res.Payout)
		if err == nil {
			s.afterCommit(ctx, res)
			return res, nil
		}
		if !errors.Is(err, repositories.ErrConcurrentModification) && !errors.Is(err, repositories.ErrPayoutExists) {
			return nil, mapRepoError(err)
		}
		if attempt >= s.cfg.MaxRetries {
			s.logger.WarnContext(ctx, "giving up after concurrent modifications", "viewing_request_id", id, "attempts", attempt+1)
			return nil, ErrConcurrentModification
		}
		s.logger.DebugContext(ctx, "retrying after concurrent modification", "viewing_request_id", id, "attempt", attempt+1)
	}
}

func (s *Service) afterCommit(ctx context.Context, res *escrow.Result) {
	v := res.Viewing
	if err := s.cache.InvalidateViewing(ctx, v.Request.ID, v.Request.Version); err != nil {
		s.logger.WarnContext(ctx, "cache invalidation failed", "viewing_request_id", v.Request.ID, "error", err)
	}

	if res.Resolved {
		s.logger.InfoContext(ctx, "escrow settled",
			"viewing_request_id", v.Request.ID,
			"status", string(v.Request.Status),
			"escrow_status", string(v.Transaction.EscrowStatus),
			"refund", res.Split.Refund,
			"payout", res.Split.Payout,
		)
	}
	if res.RefundDue > 0 {
		s.refund(ctx, v, res.RefundDue)
	}
	s.dispatch(res.Events...)
}

// refund returns money through the provider. The committed state is the
// source of truth; a failed refund is logged for reconciliation.
func (s *Service) refund(ctx context.Context, v *models.Viewing, amount int64) {
	ref := v.Transaction.ProviderReference
	if ref == "" {
		s.logger.ErrorContext(ctx, "refund owed without provider reference", "viewing_request_id", v.Request.ID, "amount", amount)
		return
	}
	rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.ProviderTimeout)
	defer cancel()
	if err := s.provider.Refund(rctx, ref, amount); err != nil {
		s.logger.ErrorContext(ctx, "provider refund failed",
			"viewing_request_id", v.Request.ID,
			"transaction_id", v.Transaction.ID,
			"amount", amount,
			"error", err,
		)
	}
}

func (s *Service) dispatch(events ...models.NotificationEvent) {
	if s.dispatcher == nil || len(events) == 0 {
		return
	}
	s.dispatcher.Dispatch(events...)
}

// GetViewing returns a request the caller is party to.
func (s *Service) GetViewing(ctx context.Context, caller models.Caller, id string) (*models.Viewing, error) {
	v, hit, err := s.cache.GetViewing(ctx, id)
	if err != nil {
		s.logger.WarnContext(ctx, "cache read failed", "viewing_request_id", id, "error", err)
		hit = false
	}
	if !hit {
		v, err = s.repo.GetByID(ctx, id)
		if err != nil {
			return nil, mapRepoError(err)
		}
		if stored, err := s.cache.SetViewing(ctx, v); err != nil {
			s.logger.WarnContext(ctx, "cache write failed", "viewing_request_id", id, "error", err)
		} else if !stored {
			s.logger.DebugContext(ctx, "skipped caching superseded viewing", "viewing_request_id", id, "version", v.Request.Version)
		}
	}

	if !canRead(caller, &v.Request) {
		return nil, ErrUnauthorized
	}
	return v, nil
}

// ListViewings returns the caller's requests, or every request for admins.
func (s *Service) ListViewings(ctx context.Context, caller models.Caller, limit, offset int) ([]models.ViewingRequest, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	if offset < 0 {
		offset = 0
	}

	var (
		reqs []models.ViewingRequest
		err  error
	)
	switch caller.Role {
	case models.RoleAdmin:
		reqs, err = s.repo.ListAll(ctx, limit, offset)
	case models.RoleTenant, models.RoleLandlord:
		reqs, err = s.repo.ListForUser(ctx, caller.UserID, limit, offset)
	default:
		return nil, ErrUnauthorized
	}
	if err != nil {
		return nil, fmt.Errorf("list viewing requests: %w", err)
	}
	return reqs, nil
}

// Payout returns the payout created for a request, if any.
func (s *Service) Payout(ctx context.Context, caller models.Caller, id string) (*models.Payout, error) {
	v, err := s.GetViewing(ctx, caller, id)
	if err != nil {
		return nil, err
	}
	p, err := s.repo.GetPayoutByTransaction(ctx, v.Transaction.ID)
	if err != nil {
		return nil, fmt.Errorf("load payout: %w", err)
	}
	if p == nil {
		return nil, ErrNotFound
	}
	return p, nil
}

func mapRepoError(err error) error {
	switch {
	case errors.Is(err, repositories.ErrViewingNotFound):
		return ErrNotFound
	case errors.Is(err, repositories.ErrConcurrentModification):
		return ErrConcurrentModification
	}
	return err
}
