package workflows_test

import (
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
	"dev/bravebird/airline-entry/pkg/temporal/activities"
	"dev/bravebird/airline-entry/pkg/temporal/workflows"
)

func entryInput(dir string) models.EntryInput {
	return models.EntryInput{
		RunID:  "run-1",
		Params: models.DefaultSearchParams(),
		Form:   models.DefaultFormSelectors(),
		Timing: models.Timing{
			OriginTimeout:  50 * time.Millisecond,
			ResultsTimeout: 50 * time.Millisecond,
			SettleDelay:    time.Millisecond,
		},
		ResultsSelector: models.Selector{By: models.ByTag, Value: "body"},
		Output:          models.OutputOptions{Dir: dir, BaseName: "aa_dfw_nrt"},
	}
}

func newEnv(t *testing.T, session *browsertest.Session, launchErr error) (*testsuite.TestWorkflowEnvironment, *activities.Activities) {
	t.Helper()
	var suite testsuite.WorkflowTestSuite
	env := suite.NewTestWorkflowEnvironment()
	acts := activities.NewActivities(browsertest.Launcher(session, launchErr), nil)
	env.RegisterWorkflow(workflows.EntryWorkflow)
	env.RegisterActivity(acts)
	return env, acts
}

func runResult(t *testing.T, env *testsuite.TestWorkflowEnvironment) models.RunResult {
	t.Helper()
	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())
	var result models.RunResult
	require.NoError(t, env.GetWorkflowResult(&result))
	return result
}

func phaseStatuses(result models.RunResult) []models.RunStatus {
	var statuses []models.RunStatus
	for _, pr := range result.Phases {
		statuses = append(statuses, pr.Status)
	}
	return statuses
}

func TestEntryWorkflowSuccess(t *testing.T) {
	session := browsertest.NewSession(browsertest.NewAAPage())
	env, acts := newEnv(t, session, nil)

	env.ExecuteWorkflow(workflows.EntryWorkflow, entryInput(t.TempDir()))
	result := runResult(t, env)

	require.Equal(t, models.StatusSuccess, result.Status)
	require.Len(t, result.Phases, 4)
	for i, pr := range result.Phases {
		require.Equal(t, models.Phases[i], pr.Phase)
		require.Equal(t, models.StatusSuccess, pr.Status, pr.ErrorMessage)
	}

	require.NotNil(t, result.Snapshot)
	for _, path := range []string{result.Snapshot.ScreenshotPath, result.Snapshot.HTMLPath} {
		info, err := os.Stat(path)
		require.NoError(t, err)
		require.NotZero(t, info.Size())
	}

	require.True(t, session.Closed())
	require.Zero(t, acts.Pool.Len())
}

func TestEntryWorkflowContinuesAfterAutofillFailure(t *testing.T) {
	page := browsertest.NewAAPage()
	page.Remove(models.DefaultFormSelectors().Origin.CSS())
	session := browsertest.NewSession(page)
	env, _ := newEnv(t, session, nil)

	env.ExecuteWorkflow(workflows.EntryWorkflow, entryInput(t.TempDir()))
	result := runResult(t, env)

	require.Equal(t, models.StatusFailed, result.Status)
	require.Equal(t, []models.RunStatus{
		models.StatusSuccess, models.StatusFailed, models.StatusSuccess, models.StatusSuccess,
	}, phaseStatuses(result))

	autofill, ok := result.Find(models.PhaseAutofill)
	require.True(t, ok)
	require.Equal(t, models.ErrCodeFieldNotFound, autofill.ErrorCode)
	require.NotNil(t, result.Snapshot)
	require.True(t, session.Closed())
}

func TestEntryWorkflowSkipsAutofillWhenPageDoesNotOpen(t *testing.T) {
	page := browsertest.NewAAPage()
	page.NavigateErr = models.NewEntryError(models.ErrCodeNavigation, "net::ERR_NAME_NOT_RESOLVED", nil)
	session := browsertest.NewSession(page)
	env, _ := newEnv(t, session, nil)

	env.ExecuteWorkflow(workflows.EntryWorkflow, entryInput(t.TempDir()))
	result := runResult(t, env)

	require.Equal(t, []models.RunStatus{
		models.StatusFailed, models.StatusSkipped, models.StatusSuccess, models.StatusSuccess,
	}, phaseStatuses(result))
	require.Equal(t, models.ErrCodeNavigation, result.Phases[0].ErrorCode)
	require.True(t, session.Closed())
}

func TestEntryWorkflowSkipsCaptureWhenResultsNeverAppear(t *testing.T) {
	page := browsertest.NewAAPage()
	page.Remove("body")
	session := browsertest.NewSession(page)
	env, _ := newEnv(t, session, nil)

	env.ExecuteWorkflow(workflows.EntryWorkflow, entryInput(t.TempDir()))
	result := runResult(t, env)

	require.Equal(t, []models.RunStatus{
		models.StatusSuccess, models.StatusSuccess, models.StatusFailed, models.StatusSkipped,
	}, phaseStatuses(result))
	require.Equal(t, models.ErrCodePageNotLoaded, result.Phases[2].ErrorCode)
	require.Equal(t, models.StatusFailed, result.Status)
	require.Nil(t, result.Snapshot)
	require.True(t, session.Closed())
}

func TestEntryWorkflowLaunchFailure(t *testing.T) {
	env, _ := newEnv(t, nil, errors.New("exec: chrome: not found"))

	env.ExecuteWorkflow(workflows.EntryWorkflow, entryInput(t.TempDir()))
	result := runResult(t, env)

	require.Equal(t, models.StatusFailed, result.Status)
	require.Equal(t, []models.RunStatus{
		models.StatusFailed, models.StatusSkipped, models.StatusSkipped, models.StatusSkipped,
	}, phaseStatuses(result))
	require.Equal(t, models.ErrCodeBrowserLaunch, result.Phases[0].ErrorCode)
	require.Nil(t, result.Snapshot)
}

func TestEntryWorkflowCaptureActivityError(t *testing.T) {
	session := browsertest.NewSession(browsertest.NewAAPage())
	env, acts := newEnv(t, session, nil)

	env.OnActivity(acts.CaptureSnapshotActivity, mock.Anything, mock.Anything).
		Return(workflows.CaptureResult{}, temporal.NewNonRetryableApplicationError("browser session gone", models.ErrCodeSessionNotFound, nil))

	env.ExecuteWorkflow(workflows.EntryWorkflow, entryInput(t.TempDir()))
	result := runResult(t, env)

	capture, ok := result.Find(models.PhaseCapture)
	require.True(t, ok)
	require.Equal(t, models.StatusFailed, capture.Status)
	require.Equal(t, models.ErrCodeSessionNotFound, capture.ErrorCode)
	require.Equal(t, models.StatusFailed, result.Status)
	require.Nil(t, result.Snapshot)
	require.True(t, session.Closed())
}

func TestEntryWorkflowPersistsResult(t *testing.T) {
	session := browsertest.NewSession(browsertest.NewAAPage())
	env, acts := newEnv(t, session, nil)

	env.OnActivity(acts.PersistRunActivity, mock.Anything, mock.MatchedBy(func(r models.RunResult) bool {
		return r.RunID == "run-1" && r.Status == models.StatusSuccess && len(r.Phases) == 4
	})).Return(nil).Once()

	env.ExecuteWorkflow(workflows.EntryWorkflow, entryInput(t.TempDir()))
	runResult(t, env)
	env.AssertExpectations(t)
}

func TestEntryWorkflowProgressQuery(t *testing.T) {
	session := browsertest.NewSession(browsertest.NewAAPage())
	env, _ := newEnv(t, session, nil)

	env.ExecuteWorkflow(workflows.EntryWorkflow, entryInput(t.TempDir()))
	runResult(t, env)

	val, err := env.QueryWorkflow(workflows.ProgressQuery)
	require.NoError(t, err)
	var progress models.RunResult
	require.NoError(t, val.Get(&progress))
	require.Equal(t, "run-1", progress.RunID)
	require.Equal(t, models.StatusSuccess, progress.Status)
	require.Len(t, progress.Phases, 4)
}
