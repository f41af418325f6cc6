package activities

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/temporal"

	"dev/bravebird/airline-entry/pkg/browser"
	"dev/bravebird/airline-entry/pkg/entry"
	"dev/bravebird/airline-entry/pkg/models"
	"dev/bravebird/airline-entry/pkg/temporal/workflows"
)

// heartbeatInterval must stay well below the workflow's heartbeat timeout
const heartbeatInterval = 10 * time.Second

// Store persists finished runs
type Store interface {
	SaveResult(ctx context.Context, result models.RunResult) error
}

// SessionPool manages browser sessions
type SessionPool struct {
	sessions map[string]*SessionData
	mu       sync.RWMutex
}

// SessionData holds data for a browser session
type SessionData struct {
	Session   browser.Session
	RunID     string
	CreatedAt time.Time
}

// NewSessionPool returns an empty pool
func NewSessionPool() *SessionPool {
	return &SessionPool{sessions: make(map[string]*SessionData)}
}

func (p *SessionPool) add(id string, data *SessionData) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sessions[id] = data
}

func (p *SessionPool) get(id string) (*SessionData, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	data, ok := p.sessions[id]
	return data, ok
}

func (p *SessionPool) remove(id string) (*SessionData, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	data, ok := p.sessions[id]
	delete(p.sessions, id)
	return data, ok
}

// Len returns the number of live sessions
func (p *SessionPool) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.sessions)
}

// Activities holds activity implementations
type Activities struct {
	Launcher browser.Launcher
	Store    Store
	Pool     *SessionPool
}

// NewActivities creates new activities. store may be nil, in which case runs
// are not persisted.
func NewActivities(launcher browser.Launcher, store Store) *Activities {
	return &Activities{
		Launcher: launcher,
		Store:    store,
		Pool:     NewSessionPool(),
	}
}

// InitializeBrowserActivity launches a browser and registers its session
func (a *Activities) InitializeBrowserActivity(ctx context.Context, input workflows.BrowserInitInput) (workflows.BrowserSession, error) {
	logger := activity.GetLogger(ctx)
	logger.Info("Initializing browser session", "runID", input.RunID, "headless", input.Browser.Headless)

	session, err := a.Launcher(ctx, input.Browser)
	if err != nil {
		if models.ErrorCode(err) == models.ErrCodeInternal {
			err = models.NewEntryError(models.ErrCodeBrowserLaunch, "failed to launch browser", err)
		}
		logger.Error("Failed to launch browser", "error", err)
		return workflows.BrowserSession{}, toApplicationError(err)
	}

	sessionID := uuid.New().String()
	a.Pool.add(sessionID, &SessionData{
		Session:   session,
		RunID:     input.RunID,
		CreatedAt: time.Now(),
	})

	logger.Info("Browser session created", "sessionID", sessionID)
	return workflows.BrowserSession{SessionID: sessionID}, nil
}

// OpenSearchPageActivity navigates the session to the booking page
func (a *Activities) OpenSearchPageActivity(ctx context.Context, input workflows.PhaseInput) (models.PhaseResult, error) {
	page, err := a.page(input.SessionID)
	if err != nil {
		return models.PhaseResult{}, err
	}
	return a.runner(ctx, input).Open(ctx, page), nil
}

// AutofillActivity fills the search form
func (a *Activities) AutofillActivity(ctx context.Context, input workflows.PhaseInput) (models.PhaseResult, error) {
	page, err := a.page(input.SessionID)
	if err != nil {
		return models.PhaseResult{}, err
	}
	return a.runner(ctx, input).Autofill(ctx, page), nil
}

// WaitForResultsActivity blocks until the results page shows up or the
// results timeout expires, heartbeating meanwhile
func (a *Activities) WaitForResultsActivity(ctx context.Context, input workflows.PhaseInput) (models.PhaseResult, error) {
	page, err := a.page(input.SessionID)
	if err != nil {
		return models.PhaseResult{}, err
	}

	done := make(chan struct{})
	defer close(done)
	go func() {
		ticker := time.NewTicker(heartbeatInterval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ctx.Done():
				return
			case <-ticker.C:
				activity.RecordHeartbeat(ctx, "waiting for results")
			}
		}
	}()

	return a.runner(ctx, input).Wait(ctx, page), nil
}

// CaptureSnapshotActivity writes the screenshot and the HTML of the page
func (a *Activities) CaptureSnapshotActivity(ctx context.Context, input workflows.PhaseInput) (workflows.CaptureResult, error) {
	page, err := a.page(input.SessionID)
	if err != nil {
		return workflows.CaptureResult{}, err
	}

	phase, snap := a.runner(ctx, input).Capture(ctx, page)
	return workflows.CaptureResult{Phase: phase, Snapshot: snap}, nil
}

// CloseBrowserActivity closes a browser session
func (a *Activities) CloseBrowserActivity(ctx context.Context, sessionID string) error {
	logger := activity.GetLogger(ctx)
	logger.Info("Closing browser session", "sessionID", sessionID)

	data, ok := a.Pool.remove(sessionID)
	if !ok {
		return nil // Already closed
	}

	if err := data.Session.Close(); err != nil {
		logger.Warn("Browser did not close cleanly", "sessionID", sessionID, "error", err)
	}
	return nil
}

// PersistRunActivity stores the final result of a run
func (a *Activities) PersistRunActivity(ctx context.Context, result models.RunResult) error {
	logger := activity.GetLogger(ctx)

	if a.Store == nil {
		logger.Debug("No run store configured, skipping persistence", "runID", result.RunID)
		return nil
	}

	if err := a.Store.SaveResult(ctx, result); err != nil {
		return fmt.Errorf("failed to persist run %s: %w", result.RunID, err)
	}
	logger.Info("Run persisted", "runID", result.RunID, "status", result.Status)
	return nil
}

func (a *Activities) page(sessionID string) (browser.Page, error) {
	data, ok := a.Pool.get(sessionID)
	if !ok {
		return nil, toApplicationError(models.NewEntryError(models.ErrCodeSessionNotFound, "browser session "+sessionID+" not found", nil))
	}
	return data.Session.Page(), nil
}

func (a *Activities) runner(ctx context.Context, input workflows.PhaseInput) *entry.Runner {
	return entry.NewRunner(input.Input, activity.GetLogger(ctx))
}

// toApplicationError carries the error code across the Temporal boundary as
// the application error type
func toApplicationError(err error) error {
	return temporal.NewNonRetryableApplicationError(err.Error(), models.ErrorCode(err), err)
}
