package activities

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/testsuite"

	"dev/bravebird/airline-entry/pkg/browser/browsertest"
	"dev/bravebird/airline-entry/pkg/models"
	"dev/bravebird/airline-entry/pkg/temporal/workflows"
)

type mockStore struct {
	mock.Mock
}

func (m *mockStore) SaveResult(ctx context.Context, result models.RunResult) error {
	args := m.Called(ctx, result)
	return args.Error(0)
}

func phaseInput(sessionID, dir string) workflows.PhaseInput {
	return workflows.PhaseInput{
		SessionID: sessionID,
		Input: models.EntryInput{
			RunID:  "run-1",
			Params: models.DefaultSearchParams(),
			Form:   models.DefaultFormSelectors(),
			Timing: models.Timing{
				OriginTimeout:  50 * time.Millisecond,
				ResultsTimeout: 50 * time.Millisecond,
				SettleDelay:    time.Millisecond,
			},
			Output: models.OutputOptions{Dir: dir, BaseName: "aa_dfw_nrt"},
		},
	}
}

func TestActivitiesRunAllPhases(t *testing.T) {
	var suite testsuite.WorkflowTestSuite
	env := suite.NewTestActivityEnvironment()

	page := browsertest.NewAAPage()
	session := browsertest.NewSession(page)
	acts := NewActivities(browsertest.Launcher(session, nil), nil)
	env.RegisterActivity(acts)

	val, err := env.ExecuteActivity(acts.InitializeBrowserActivity, workflows.BrowserInitInput{RunID: "run-1"})
	require.NoError(t, err)
	var bs workflows.BrowserSession
	require.NoError(t, val.Get(&bs))
	require.NotEmpty(t, bs.SessionID)
	require.Equal(t, 1, acts.Pool.Len())

	input := phaseInput(bs.SessionID, t.TempDir())

	for _, fn := range []interface{}{acts.OpenSearchPageActivity, acts.AutofillActivity, acts.WaitForResultsActivity} {
		val, err := env.ExecuteActivity(fn, input)
		require.NoError(t, err)
		var pr models.PhaseResult
		require.NoError(t, val.Get(&pr))
		require.Equal(t, models.StatusSuccess, pr.Status, pr.ErrorMessage)
	}
	require.Equal(t, input.Input.Params.URL, page.URL())
	require.Equal(t, "DFW", page.Element(models.DefaultFormSelectors().Origin.CSS()).Value())

	val, err = env.ExecuteActivity(acts.CaptureSnapshotActivity, input)
	require.NoError(t, err)
	var capture workflows.CaptureResult
	require.NoError(t, val.Get(&capture))
	require.Equal(t, models.StatusSuccess, capture.Phase.Status)
	require.NotNil(t, capture.Snapshot)
	for _, path := range []string{capture.Snapshot.ScreenshotPath, capture.Snapshot.HTMLPath} {
		info, err := os.Stat(path)
		require.NoError(t, err)
		require.NotZero(t, info.Size())
	}

	_, err = env.ExecuteActivity(acts.CloseBrowserActivity, bs.SessionID)
	require.NoError(t, err)
	require.True(t, session.Closed())
	require.Zero(t, acts.Pool.Len())

	// closing twice is fine
	_, err = env.ExecuteActivity(acts.CloseBrowserActivity, bs.SessionID)
	require.NoError(t, err)
}

func TestAutofillReportsMissingOrigin(t *testing.T) {
	var suite testsuite.WorkflowTestSuite
	env := suite.NewTestActivityEnvironment()

	page := browsertest.NewAAPage()
	page.Remove(models.DefaultFormSelectors().Origin.CSS())
	acts := NewActivities(browsertest.Launcher(browsertest.NewSession(page), nil), nil)
	env.RegisterActivity(acts)

	val, err := env.ExecuteActivity(acts.InitializeBrowserActivity, workflows.BrowserInitInput{RunID: "run-1"})
	require.NoError(t, err)
	var bs workflows.BrowserSession
	require.NoError(t, val.Get(&bs))

	val, err = env.ExecuteActivity(acts.AutofillActivity, phaseInput(bs.SessionID, t.TempDir()))
	require.NoError(t, err)
	var pr models.PhaseResult
	require.NoError(t, val.Get(&pr))
	require.Equal(t, models.StatusFailed, pr.Status)
	require.Equal(t, models.ErrCodeFieldNotFound, pr.ErrorCode)
}

func TestInitializeBrowserLaunchFailure(t *testing.T) {
	var suite testsuite.WorkflowTestSuite
	env := suite.NewTestActivityEnvironment()

	acts := NewActivities(browsertest.Launcher(nil, errors.New("chrome not found")), nil)
	env.RegisterActivity(acts)

	_, err := env.ExecuteActivity(acts.InitializeBrowserActivity, workflows.BrowserInitInput{RunID: "run-1"})
	require.Error(t, err)

	var appErr *temporal.ApplicationError
	require.True(t, errors.As(err, &appErr))
	require.Equal(t, models.ErrCodeBrowserLaunch, appErr.Type())
	require.True(t, appErr.NonRetryable())
	require.Zero(t, acts.Pool.Len())
}

func TestPhaseActivityUnknownSession(t *testing.T) {
	var suite testsuite.WorkflowTestSuite
	env := suite.NewTestActivityEnvironment()

	acts := NewActivities(browsertest.Launcher(nil, nil), nil)
	env.RegisterActivity(acts)

	_, err := env.ExecuteActivity(acts.OpenSearchPageActivity, phaseInput("missing", t.TempDir()))
	require.Error(t, err)

	var appErr *temporal.ApplicationError
	require.True(t, errors.As(err, &appErr))
	require.Equal(t, models.ErrCodeSessionNotFound, appErr.Type())
}

func TestPersistRunActivity(t *testing.T) {
	var suite testsuite.WorkflowTestSuite
	result := models.RunResult{RunID: "run-1", Status: models.StatusSuccess}

	t.Run("no store", func(t *testing.T) {
		env := suite.NewTestActivityEnvironment()
		acts := NewActivities(nil, nil)
		env.RegisterActivity(acts)

		_, err := env.ExecuteActivity(acts.PersistRunActivity, result)
		require.NoError(t, err)
	})

	t.Run("saves result", func(t *testing.T) {
		env := suite.NewTestActivityEnvironment()
		store := &mockStore{}
		store.On("SaveResult", mock.Anything, mock.MatchedBy(func(r models.RunResult) bool {
			return r.RunID == "run-1" && r.Status == models.StatusSuccess
		})).Return(nil).Once()
		acts := NewActivities(nil, store)
		env.RegisterActivity(acts)

		_, err := env.ExecuteActivity(acts.PersistRunActivity, result)
		require.NoError(t, err)
		store.AssertExpectations(t)
	})

	t.Run("store error", func(t *testing.T) {
		env := suite.NewTestActivityEnvironment()
		store := &mockStore{}
		store.On("SaveResult", mock.Anything, mock.Anything).Return(errors.New("connection refused"))
		acts := NewActivities(nil, store)
		env.RegisterActivity(acts)

		_, err := env.ExecuteActivity(acts.PersistRunActivity, result)
		require.Error(t, err)
	})
}
