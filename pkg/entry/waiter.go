package entry

import (
	"context"
	"errors"
	"time"

	"go.temporal.io/sdk/log"

	"dev/bravebird/airline-entry/pkg/browser"
	"dev/bravebird/airline-entry/pkg/models"
)

// Waiter blocks while a person submits the search by hand
type Waiter struct {
	Selector models.Selector
	Timeout  time.Duration
	Settle   time.Duration
	Logger   log.Logger
}

// NewWaiter creates a waiter. An empty selector waits for the body tag.
func NewWaiter(selector models.Selector, timing models.Timing, logger log.Logger) *Waiter {
	if selector.Value == "" {
		selector = models.Selector{By: models.ByTag, Value: "body"}
	}
	return &Waiter{
		Selector: selector,
		Timeout:  timing.ResultsTimeout,
		Settle:   timing.SettleDelay,
		Logger:   logger,
	}
}

// Wait returns once the selector is present and the settle delay has passed
func (w *Waiter) Wait(ctx context.Context, page browser.Page) models.PhaseResult {
	result := models.NewPhaseResult(models.PhaseWait, time.Now())

	w.Logger.Info("Waiting for results page to load after your click...",
		"selector", w.Selector.String(), "timeout", w.Timeout.String())

	if _, err := page.WaitElement(ctx, w.Selector.CSS(), w.Timeout); err != nil {
		if !errors.Is(err, context.Canceled) {
			err = models.NewEntryError(models.ErrCodePageNotLoaded, "results page never appeared", err)
		}
		w.Logger.Error("Error waiting for results", "error", err)
		return result.Complete(err)
	}

	if err := sleep(ctx, w.Settle); err != nil {
		return result.Complete(err)
	}

	return result.Complete(nil)
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
