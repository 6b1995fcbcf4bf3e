package workflows

import (
	"context"
	"errors"
	"testing"

	"examsearch/internal/activities"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/testsuite"
)

func registerActivityName[T any](env *testsuite.TestWorkflowEnvironment, name string, fn T) {
	env.RegisterActivityWithOptions(fn, activity.RegisterOptions{Name: name})
}

func newRebuildEnv(t *testing.T) *testsuite.TestWorkflowEnvironment {
	t.Helper()
	var ts testsuite.WorkflowTestSuite
	env := ts.NewTestWorkflowEnvironment()
	env.RegisterWorkflow(RebuildIndexWorkflow)
	registerActivityName(env, "RebuildScopeActivity", func(context.Context, activities.RebuildScopeInput) (activities.RebuildScopeOutput, error) {
		return activities.RebuildScopeOutput{}, nil
	})
	return env
}

func TestRebuildIndexWorkflowRebuildsEveryScope(t *testing.T) {
	env := newRebuildEnv(t)
	env.OnActivity("RebuildScopeActivity", mock.Anything, activities.RebuildScopeInput{Scope: "a@example.com"}).
		Return(activities.RebuildScopeOutput{Scope: "a@example.com", ExamCount: 3, BuildID: "ba"}, nil)
	env.OnActivity("RebuildScopeActivity", mock.Anything, activities.RebuildScopeInput{Scope: "b@example.com"}).
		Return(activities.RebuildScopeOutput{Scope: "b@example.com", ExamCount: 5, BuildID: "bb"}, nil)
	env.OnActivity("RebuildScopeActivity", mock.Anything, activities.RebuildScopeInput{Scope: "c@example.com"}).
		Return(activities.RebuildScopeOutput{Scope: "c@example.com", ExamCount: 1, BuildID: "bc"}, nil)

	env.ExecuteWorkflow(RebuildIndexWorkflow, RebuildIndexInput{
		Scopes:        []string{"a@example.com", "b@example.com", "c@example.com"},
		MaxConcurrent: 2,
	})
	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())

	var out RebuildProgress
	require.NoError(t, env.GetWorkflowResult(&out))
	require.Equal(t, 3, out.Total)
	require.Equal(t, 3, out.Done)
	require.Equal(t, 0, out.Failed)
	require.Equal(t, 9, out.ExamCount)
	require.Equal(t, "bb", out.BuildIDs["b@example.com"])
	require.Equal(t, "rebuilt", out.PerScope["c@example.com"])
}

func TestRebuildIndexWorkflowToleratesScopeFailure(t *testing.T) {
	env := newRebuildEnv(t)
	env.OnActivity("RebuildScopeActivity", mock.Anything, activities.RebuildScopeInput{Scope: "ok"}).
		Return(activities.RebuildScopeOutput{Scope: "ok", ExamCount: 2, BuildID: "b1"}, nil)
	env.OnActivity("RebuildScopeActivity", mock.Anything, activities.RebuildScopeInput{Scope: "denied"}).
		Return(activities.RebuildScopeOutput{}, temporal.NewNonRetryableApplicationError("denied", "unauthorized", errors.New("403")))

	env.ExecuteWorkflow(RebuildIndexWorkflow, RebuildIndexInput{Scopes: []string{"denied", "ok"}})
	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())

	var out RebuildProgress
	require.NoError(t, env.GetWorkflowResult(&out))
	require.Equal(t, 1, out.Done)
	require.Equal(t, 1, out.Failed)
	require.Equal(t, "failed", out.PerScope["denied"])
	require.Equal(t, 2, out.ExamCount)
}

func TestRebuildIndexWorkflowProgressQuery(t *testing.T) {
	env := newRebuildEnv(t)
	env.OnActivity("RebuildScopeActivity", mock.Anything, mock.Anything).
		Return(activities.RebuildScopeOutput{ExamCount: 4, BuildID: "b"}, nil)

	env.ExecuteWorkflow(RebuildIndexWorkflow, RebuildIndexInput{Scopes: []string{"only"}})
	require.True(t, env.IsWorkflowCompleted())

	res, err := env.QueryWorkflow(QueryGetRebuildProgress)
	require.NoError(t, err)
	var progress RebuildProgress
	require.NoError(t, res.Get(&progress))
	require.Equal(t, 1, progress.Done)
	require.Equal(t, "rebuilt", progress.PerScope["only"])
}

func TestWorkflowID(t *testing.T) {
	require.Equal(t, "rebuild-index-dr-a-at-example-com", WorkflowID("Dr_A@example.com"))
}
