package activities

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"examsearch/internal/index"
	"examsearch/internal/providers"

	"go.temporal.io/sdk/temporal"
)

// Rebuilder is the part of index.Manager the activities drive.
type Rebuilder interface {
	ForceRebuild(ctx context.Context, scope index.Scope) (*index.Snapshot, error)
}

type Activities struct {
	rebuilder Rebuilder
	creds     providers.Credentials
	logger    *slog.Logger
}

// New binds the activities to the service credentials used for every rebuild.
func New(r Rebuilder, creds providers.Credentials, logger *slog.Logger) *Activities {
	if logger == nil {
		logger = slog.Default()
	}
	return &Activities{rebuilder: r, creds: creds, logger: logger}
}

func (a *Activities) RebuildScopeActivity(ctx context.Context, in RebuildScopeInput) (RebuildScopeOutput, error) {
	if in.Scope == "" {
		return RebuildScopeOutput{}, temporal.NewNonRetryableApplicationError("scope is required", "InvalidInput", nil)
	}
	if a.creds.AccessToken == "" {
		return RebuildScopeOutput{}, temporal.NewNonRetryableApplicationError("service access token is not configured", "Config", nil)
	}
	snap, err := a.rebuilder.ForceRebuild(ctx, index.Scope{Key: in.Scope, Credentials: a.creds})
	if err != nil {
		a.logger.Warn("scope rebuild failed", "scope", in.Scope, "error", err)
		if isPermanent(err) {
			return RebuildScopeOutput{}, temporal.NewNonRetryableApplicationError(
				fmt.Sprintf("rebuild %s: %v", in.Scope, err), string(providers.ClassifyError(err)), err)
		}
		return RebuildScopeOutput{}, fmt.Errorf("rebuild %s: %w", in.Scope, err)
	}
	a.logger.Info("scope rebuilt", "scope", in.Scope, "exams", len(snap.Exams), "build_id", snap.BuildID)
	return RebuildScopeOutput{
		Scope:     in.Scope,
		ExamCount: len(snap.Exams),
		BuildID:   snap.BuildID,
		BuiltAt:   snap.BuiltAt,
	}, nil
}

// isPermanent reports upstream answers that a retry cannot change.
func isPermanent(err error) bool {
	if providers.ClassifyError(err) == providers.ErrorUnauthorized {
		return true
	}
	var se *providers.StatusError
	return errors.As(err, &se) && se.Code >= 400 && se.Code < 500 && se.Code != 429
}
