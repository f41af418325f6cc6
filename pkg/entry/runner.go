package entry

import (
	"context"
	"time"

	"go.temporal.io/sdk/log"

	"dev/bravebird/airline-entry/pkg/browser"
	"dev/bravebird/airline-entry/pkg/models"
	"dev/bravebird/airline-entry/pkg/snapshot"
)

// Runner drives one entry run: open, autofill, human-gated wait, capture
type Runner struct {
	RunID    string
	Params   models.SearchParams
	Filler   *FormFiller
	Waiter   *Waiter
	Capturer *snapshot.Capturer
	Logger   log.Logger
}

// NewRunner builds a runner for input
func NewRunner(input models.EntryInput, logger log.Logger) *Runner {
	return &Runner{
		RunID:    input.RunID,
		Params:   input.Params,
		Filler:   NewFormFiller(input.Form, input.Timing, logger),
		Waiter:   NewWaiter(input.ResultsSelector, input.Timing, logger),
		Capturer: snapshot.NewCapturer(input.Output),
		Logger:   logger,
	}
}

// Open navigates to the booking page
func (r *Runner) Open(ctx context.Context, page browser.Page) models.PhaseResult {
	result := models.NewPhaseResult(models.PhaseBootstrap, time.Now())
	r.Logger.Info("Opening booking page...", "url", r.Params.URL)

	if err := page.Navigate(ctx, r.Params.URL); err != nil {
		r.Logger.Error("Error opening booking page", "url", r.Params.URL, "error", err)
		return result.Complete(err)
	}
	return result.Complete(nil)
}

// Autofill fills the search form
func (r *Runner) Autofill(ctx context.Context, page browser.Page) models.PhaseResult {
	return r.Filler.Fill(ctx, page, r.Params)
}

// Wait hands control to the person at the keyboard
func (r *Runner) Wait(ctx context.Context, page browser.Page) models.PhaseResult {
	return r.Waiter.Wait(ctx, page)
}

// Capture writes the snapshot of whatever the page shows now
func (r *Runner) Capture(ctx context.Context, page browser.Page) (models.PhaseResult, *models.Snapshot) {
	result := models.NewPhaseResult(models.PhaseCapture, time.Now())

	snap, err := r.Capturer.Capture(ctx, page)
	if err != nil {
		r.Logger.Error("Error capturing snapshot", "error", err)
		return result.Complete(err), nil
	}

	r.Logger.Info("Screenshot saved", "path", snap.ScreenshotPath, "bytes", snap.ScreenshotBytes)
	r.Logger.Info("HTML saved", "path", snap.HTMLPath, "bytes", snap.HTMLBytes)
	return result.Complete(nil), snap
}

// Run executes every phase in order against page. Autofill is skipped when
// the page never opened, capture when the results page never appeared, and
// every remaining phase once ctx is done.
func (r *Runner) Run(ctx context.Context, page browser.Page) models.RunResult {
	start := time.Now()
	result := models.RunResult{
		RunID:  r.RunID,
		Status: models.StatusRunning,
	}

	open := r.Open(ctx, page)
	result.Phases = append(result.Phases, open)

	switch {
	case ctx.Err() != nil:
		result.Phases = append(result.Phases, models.SkippedPhase(models.PhaseAutofill, "run canceled"))
	case !open.Succeeded():
		result.Phases = append(result.Phases, models.SkippedPhase(models.PhaseAutofill, "booking page did not open"))
	default:
		result.Phases = append(result.Phases, r.Autofill(ctx, page))
	}

	if ctx.Err() != nil {
		result.Phases = append(result.Phases,
			models.SkippedPhase(models.PhaseWait, "run canceled"),
			models.SkippedPhase(models.PhaseCapture, "run canceled"))
	} else {
		wait := r.Wait(ctx, page)
		result.Phases = append(result.Phases, wait)
		switch {
		case ctx.Err() != nil:
			result.Phases = append(result.Phases, models.SkippedPhase(models.PhaseCapture, "run canceled"))
		case !wait.Succeeded():
			result.Phases = append(result.Phases, models.SkippedPhase(models.PhaseCapture, "results page never appeared"))
		default:
			capture, snap := r.Capture(ctx, page)
			result.Phases = append(result.Phases, capture)
			result.Snapshot = snap
		}
	}

	result.TotalDuration = time.Since(start).Milliseconds()
	result.Finalize()

	if result.Snapshot != nil {
		r.Logger.Info("Scan complete. You may now close the browser tab.", "status", result.Status)
	} else {
		r.Logger.Warn("Scan finished without a snapshot", "status", result.Status, "error", result.ErrorMessage)
	}
	return result
}
