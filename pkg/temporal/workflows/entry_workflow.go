package workflows

import (
	"errors"
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"dev/bravebird/airline-entry/pkg/models"
)

// ProgressQuery returns the RunResult recorded so far
const ProgressQuery = "getProgress"

const (
	defaultActivityTimeout = 2 * time.Minute
	closeTimeout           = time.Minute
	persistTimeout         = 30 * time.Second
	heartbeatTimeout       = 30 * time.Second
	// slack added on top of the configured waits of a phase
	phaseMargin = time.Minute
)

// EntryWorkflow runs one airline entry: launch a browser, open the booking
// page, autofill the search form, wait for the person at the keyboard and
// capture a snapshot. Phase failures are recorded in the result, never
// returned as workflow errors.
func EntryWorkflow(ctx workflow.Context, input models.EntryInput) (models.RunResult, error) {
	logger := workflow.GetLogger(ctx)
	logger.Info("Starting entry workflow", "runID", input.RunID, "origin", input.Params.Origin, "destination", input.Params.Destination)

	result := models.RunResult{
		RunID:  input.RunID,
		Status: models.StatusRunning,
		Phases: make([]models.PhaseResult, 0, len(models.Phases)),
	}

	// Register query handler for real-time progress
	err := workflow.SetQueryHandler(ctx, ProgressQuery, func() (models.RunResult, error) {
		return result, nil
	})
	if err != nil {
		logger.Error("Failed to register query handler", "error", err)
	}

	startTime := workflow.Now(ctx)
	runPhases(ctx, input, &result)
	finish(ctx, &result, startTime)

	return result, nil
}

// runPhases records one result per phase. The browser session is closed
// before it returns.
func runPhases(ctx workflow.Context, input models.EntryInput, result *models.RunResult) {
	logger := workflow.GetLogger(ctx)

	var session BrowserSession
	launchStart := workflow.Now(ctx)
	err := workflow.ExecuteActivity(withTimeout(ctx, defaultActivityTimeout, false), "InitializeBrowserActivity", BrowserInitInput{
		RunID:   input.RunID,
		Browser: input.Browser,
	}).Get(ctx, &session)
	if err != nil {
		logger.Error("Failed to initialize browser", "error", err)
		result.Phases = append(result.Phases, activityFailure(ctx, models.PhaseBootstrap, launchStart, err))
		result.Phases = skipRemaining(result.Phases, "browser did not start")
		return
	}

	defer func() {
		// Cleanup browser session, even when the run was canceled
		closeCtx, _ := workflow.NewDisconnectedContext(ctx)
		closeCtx = withTimeout(closeCtx, closeTimeout, false)
		if err := workflow.ExecuteActivity(closeCtx, "CloseBrowserActivity", session.SessionID).Get(closeCtx, nil); err != nil {
			logger.Warn("Failed to close browser session", "sessionID", session.SessionID, "error", err)
		}
	}()

	phaseInput := PhaseInput{SessionID: session.SessionID, Input: input}
	timing := input.Timing

	open := runPhase(withTimeout(ctx, defaultActivityTimeout, false), "OpenSearchPageActivity", models.PhaseBootstrap, phaseInput)
	result.Phases = append(result.Phases, open)

	switch {
	case ctx.Err() != nil:
		result.Phases = skipRemaining(result.Phases, "run canceled")
		return
	case !open.Succeeded():
		result.Phases = append(result.Phases, models.SkippedPhase(models.PhaseAutofill, "booking page did not open"))
	default:
		autofillTimeout := timing.OriginTimeout + 3*timing.FieldTimeout + phaseMargin
		result.Phases = append(result.Phases, runPhase(withTimeout(ctx, autofillTimeout, false), "AutofillActivity", models.PhaseAutofill, phaseInput))
	}

	if ctx.Err() != nil {
		result.Phases = skipRemaining(result.Phases, "run canceled")
		return
	}

	logger.Info("Waiting for search results", "timeout", timing.ResultsTimeout)
	waitTimeout := timing.ResultsTimeout + timing.SettleDelay + phaseMargin
	wait := runPhase(withTimeout(ctx, waitTimeout, true), "WaitForResultsActivity", models.PhaseWait, phaseInput)
	result.Phases = append(result.Phases, wait)

	switch {
	case ctx.Err() != nil:
		result.Phases = skipRemaining(result.Phases, "run canceled")
		return
	case !wait.Succeeded():
		result.Phases = skipRemaining(result.Phases, "results page never appeared")
		return
	}

	var capture CaptureResult
	captureStart := workflow.Now(ctx)
	err = workflow.ExecuteActivity(withTimeout(ctx, defaultActivityTimeout, false), "CaptureSnapshotActivity", phaseInput).Get(ctx, &capture)
	if err != nil {
		capture.Phase = activityFailure(ctx, models.PhaseCapture, captureStart, err)
	}
	result.Phases = append(result.Phases, capture.Phase)
	result.Snapshot = capture.Snapshot
}

// finish derives the final status and stores the result. It runs in a
// disconnected context so a canceled run is still persisted.
func finish(ctx workflow.Context, result *models.RunResult, startTime time.Time) {
	logger := workflow.GetLogger(ctx)

	result.TotalDuration = workflow.Now(ctx).Sub(startTime).Milliseconds()
	result.Finalize()

	persistCtx, _ := workflow.NewDisconnectedContext(ctx)
	persistCtx = withTimeout(persistCtx, persistTimeout, false)
	if err := workflow.ExecuteActivity(persistCtx, "PersistRunActivity", *result).Get(persistCtx, nil); err != nil {
		logger.Warn("Failed to persist run", "runID", result.RunID, "error", err)
	}

	logger.Info("Workflow completed", "status", result.Status, "duration", result.TotalDuration)
}

func runPhase(ctx workflow.Context, activityName string, phase models.Phase, input PhaseInput) models.PhaseResult {
	var pr models.PhaseResult
	started := workflow.Now(ctx)
	if err := workflow.ExecuteActivity(ctx, activityName, input).Get(ctx, &pr); err != nil {
		return activityFailure(ctx, phase, started, err)
	}
	return pr
}

// activityFailure turns an activity error into the result of phase. The code
// travels as the application error type.
func activityFailure(ctx workflow.Context, phase models.Phase, started time.Time, err error) models.PhaseResult {
	pr := models.PhaseResult{
		Phase:        phase,
		Status:       models.StatusFailed,
		ErrorCode:    models.ErrCodeInternal,
		ErrorMessage: err.Error(),
		StartedAt:    started,
		Duration:     workflow.Now(ctx).Sub(started).Milliseconds(),
	}

	var appErr *temporal.ApplicationError
	switch {
	case temporal.IsCanceledError(err):
		pr.Status = models.StatusCanceled
		pr.ErrorCode = models.ErrCodeCanceled
	case errors.As(err, &appErr) && appErr.Type() != "":
		pr.ErrorCode = appErr.Type()
	}
	return pr
}

// skipRemaining appends a skipped result for every phase not yet recorded
func skipRemaining(phases []models.PhaseResult, reason string) []models.PhaseResult {
	for _, p := range models.Phases[len(phases):] {
		phases = append(phases, models.SkippedPhase(p, reason))
	}
	return phases
}

// withTimeout applies the options shared by every entry activity. Each one
// runs at most once.
func withTimeout(ctx workflow.Context, timeout time.Duration, heartbeat bool) workflow.Context {
	opts := workflow.ActivityOptions{
		StartToCloseTimeout: timeout,
		RetryPolicy: &temporal.RetryPolicy{
			MaximumAttempts: 1,
		},
	}
	if heartbeat {
		opts.HeartbeatTimeout = heartbeatTimeout
	}
	return workflow.WithActivityOptions(ctx, opts)
}

// BrowserSession holds browser session information
type BrowserSession struct {
	SessionID string `json:"session_id"`
}

// BrowserInitInput is the input for browser initialization
type BrowserInitInput struct {
	RunID   string                `json:"run_id"`
	Browser models.BrowserOptions `json:"browser"`
}

// PhaseInput is the input of every phase activity
type PhaseInput struct {
	SessionID string            `json:"session_id"`
	Input     models.EntryInput `json:"input"`
}

// CaptureResult is the output of CaptureSnapshotActivity
type CaptureResult struct {
	Phase    models.PhaseResult `json:"phase"`
	Snapshot *models.Snapshot   `json:"snapshot,omitempty"`
}
