package workflows

import (
	"strings"
	"time"

	"examsearch/internal/activities"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"
)

const (
	QueryGetRebuildProgress = "GetRebuildProgress"

	defaultMaxConcurrent = 4
)

// RebuildIndexWorkflow rebuilds every listed scope, a batch at a time. A scope
// that fails is recorded and the rest continue.
func RebuildIndexWorkflow(ctx workflow.Context, input RebuildIndexInput) (RebuildProgress, error) {
	progress := RebuildProgress{
		Total:    len(input.Scopes),
		PerScope: map[string]string{},
		BuildIDs: map[string]string{},
	}
	for _, scope := range input.Scopes {
		progress.PerScope[scope] = "pending"
	}
	if err := workflow.SetQueryHandler(ctx, QueryGetRebuildProgress, func() (RebuildProgress, error) {
		return progress, nil
	}); err != nil {
		return progress, err
	}

	ao := workflow.ActivityOptions{
		StartToCloseTimeout: 10 * time.Minute,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:    5 * time.Second,
			BackoffCoefficient: 2,
			MaximumInterval:    time.Minute,
			MaximumAttempts:    3,
		},
	}
	ctx = workflow.WithActivityOptions(ctx, ao)

	batch := input.MaxConcurrent
	if batch <= 0 {
		batch = defaultMaxConcurrent
	}
	for i := 0; i < len(input.Scopes); i += batch {
		end := min(i+batch, len(input.Scopes))
		futures := make([]workflow.Future, 0, end-i)
		for _, scope := range input.Scopes[i:end] {
			progress.PerScope[scope] = "rebuilding"
			futures = append(futures, workflow.ExecuteActivity(ctx, "RebuildScopeActivity", activities.RebuildScopeInput{Scope: scope}))
		}
		for idx, f := range futures {
			scope := input.Scopes[i+idx]
			var out activities.RebuildScopeOutput
			if err := f.Get(ctx, &out); err != nil {
				workflow.GetLogger(ctx).Warn("scope rebuild failed", "scope", scope, "error", err)
				progress.Failed++
				progress.PerScope[scope] = "failed"
				continue
			}
			progress.Done++
			progress.ExamCount += out.ExamCount
			progress.PerScope[scope] = "rebuilt"
			progress.BuildIDs[scope] = out.BuildID
		}
	}
	return progress, nil
}

// WorkflowID names the rebuild workflow of one scope so concurrent starts collide.
func WorkflowID(scope string) string {
	return "rebuild-index-" + sanitizeID(scope)
}

func sanitizeID(s string) string {
	s = strings.ToLower(s)
	s = strings.ReplaceAll(s, "_", "-")
	s = strings.ReplaceAll(s, ".", "-")
	s = strings.ReplaceAll(s, "/", "-")
	s = strings.ReplaceAll(s, "@", "-at-")
	return s
}
