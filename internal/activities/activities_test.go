package activities

import (
	"context"
	"errors"
	"testing"
	"time"

	"examsearch/internal/index"
	"examsearch/internal/models"
	"examsearch/internal/providers"

	"github.com/stretchr/testify/require"
	"go.temporal.io/sdk/temporal"
)

type fakeRebuilder struct {
	got index.Scope
	err error
}

func (f *fakeRebuilder) ForceRebuild(_ context.Context, scope index.Scope) (*index.Snapshot, error) {
	f.got = scope
	if f.err != nil {
		return nil, f.err
	}
	return &index.Snapshot{
		Scope:   scope.Key,
		Exams:   []models.Exam{{ID: "DR2401_001"}, {ID: "DR2401_002"}},
		BuiltAt: time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC),
		BuildID: "b-1",
	}, nil
}

func TestRebuildScopeActivityUsesServiceCredentials(t *testing.T) {
	r := &fakeRebuilder{}
	a := New(r, providers.Credentials{AccessToken: "svc"}, nil)

	out, err := a.RebuildScopeActivity(context.Background(), RebuildScopeInput{Scope: "a@example.com"})
	require.NoError(t, err)
	require.Equal(t, 2, out.ExamCount)
	require.Equal(t, "b-1", out.BuildID)
	require.Equal(t, "svc", r.got.Credentials.AccessToken)
	require.Equal(t, "a@example.com", r.got.Key)
}

func TestRebuildScopeActivityErrors(t *testing.T) {
	var appErr *temporal.ApplicationError

	_, err := New(&fakeRebuilder{}, providers.Credentials{}, nil).RebuildScopeActivity(context.Background(), RebuildScopeInput{Scope: "s"})
	require.ErrorAs(t, err, &appErr)
	require.True(t, appErr.NonRetryable())

	denied := &fakeRebuilder{err: &providers.StatusError{API: "drive", Code: 403, Body: "denied"}}
	_, err = New(denied, providers.Credentials{AccessToken: "svc"}, nil).RebuildScopeActivity(context.Background(), RebuildScopeInput{Scope: "s"})
	require.ErrorAs(t, err, &appErr)
	require.True(t, appErr.NonRetryable())

	flaky := &fakeRebuilder{err: &providers.StatusError{API: "sheets", Code: 503, Body: "busy"}}
	_, err = New(flaky, providers.Credentials{AccessToken: "svc"}, nil).RebuildScopeActivity(context.Background(), RebuildScopeInput{Scope: "s"})
	require.Error(t, err)
	require.False(t, errors.As(err, &appErr))
}
