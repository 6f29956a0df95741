package notification

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"viewly/internal/models"
)

const defaultDispatchTimeout = 10 * time.Second

// Dispatcher sends events in the background. Delivery failures are logged
// and never reach the caller.
type Dispatcher struct {
	notifier Notifier
	timeout  time.Duration
	logger   *slog.Logger
	wg       sync.WaitGroup
}

func NewDispatcher(notifier Notifier, timeout time.Duration, logger *slog.Logger) *Dispatcher {
	if timeout <= 0 {
		timeout = defaultDispatchTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{notifier: notifier, timeout: timeout, logger: logger.With("component", "dispatcher")}
}

// Dispatch returns immediately; events are delivered in order on a separate goroutine.
func (d *Dispatcher) Dispatch(events ...models.NotificationEvent) {
	if len(events) == 0 {
		return
	}
	batch := make([]models.NotificationEvent, len(events))
	copy(batch, events)

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
		defer cancel()

		for _, ev := range batch {
			if err := d.notifier.Notify(ctx, ev); err != nil {
				d.logger.Warn("notification delivery failed",
					"type", string(ev.Type),
					"recipient_id", ev.RecipientID,
					"viewing_request_id", ev.ViewingRequestID,
					"error", err,
				)
			}
		}
	}()
}

// Wait blocks until every dispatched batch has finished.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}
