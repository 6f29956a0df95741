package viewing

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"viewly/internal/services/escrow"
)

// SweepReport counts what one sweep did.
type SweepReport struct {
	Expired   int
	Finalized int
	Skipped   int
	Failed    int
}

// Sweeper expires stale pending requests and finalizes no-show claims whose
// dispute window has lapsed.
type Sweeper struct {
	svc        *Service
	interval   time.Duration
	pendingTTL time.Duration
	batchSize  int
	logger     *slog.Logger
}

func NewSweeper(svc *Service, interval, pendingTTL time.Duration, batchSize int, logger *slog.Logger) *Sweeper {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	if pendingTTL <= 0 {
		pendingTTL = 72 * time.Hour
	}
	if batchSize <= 0 {
		batchSize = 100
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Sweeper{
		svc:        svc,
		interval:   interval,
		pendingTTL: pendingTTL,
		batchSize:  batchSize,
		logger:     logger.With("component", "sweeper"),
	}
}

// Run sweeps immediately and then on every tick until ctx is cancelled.
func (w *Sweeper) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		report, err := w.SweepOnce(ctx)
		if err != nil {
			w.logger.ErrorContext(ctx, "sweep failed", "error", err)
		} else if report != (SweepReport{}) {
			w.logger.InfoContext(ctx, "sweep finished",
				"expired", report.Expired,
				"finalized", report.Finalized,
				"skipped", report.Skipped,
				"failed", report.Failed,
			)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// SweepOnce processes one batch of each kind of overdue request.
func (w *Sweeper) SweepOnce(ctx context.Context) (SweepReport, error) {
	var report SweepReport
	now := w.svc.now()

	stale, err := w.svc.repo.ListStalePending(ctx, now.Add(-w.pendingTTL), w.batchSize)
	if err != nil {
		return report, err
	}
	for _, id := range stale {
		_, err := w.svc.Expire(ctx, SystemCaller, id)
		w.record(ctx, &report.Expired, &report, "expire", id, err)
	}

	lapsed, err := w.svc.repo.ListLapsedNoShows(ctx, now, w.batchSize)
	if err != nil {
		return report, err
	}
	for _, id := range lapsed {
		_, err := w.svc.FinalizeNoShow(ctx, SystemCaller, id)
		w.record(ctx, &report.Finalized, &report, "finalize_no_show", id, err)
	}
	return report, nil
}

func (w *Sweeper) record(ctx context.Context, done *int, report *SweepReport, op, id string, err error) {
	switch {
	case err == nil:
		*done++
	case errors.Is(err, escrow.ErrInvalidTransition), errors.Is(err, ErrNotFound), errors.Is(err, ErrConcurrentModification):
		// someone else moved the request first
		report.Skipped++
		w.logger.DebugContext(ctx, "sweep skipped request", "operation", op, "viewing_request_id", id, "error", err)
	default:
		report.Failed++
		w.logger.ErrorContext(ctx, "sweep could not process request", "operation", op, "viewing_request_id", id, "error", err)
	}
}
