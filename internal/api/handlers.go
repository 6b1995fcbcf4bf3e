package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"examsearch/internal/auth"
	"examsearch/internal/index"
	"examsearch/internal/models"
	"examsearch/internal/providers"
	"examsearch/internal/query"
	"examsearch/internal/workflows"

	"github.com/danielgtaylor/huma/v2"
	enumspb "go.temporal.io/api/enums/v1"
	"go.temporal.io/api/serviceerror"
	tclient "go.temporal.io/sdk/client"
)

type PlainOutput struct {
	ContentType string `header:"Content-Type"`
	Body        []byte
}

type SearchInput struct {
	Body models.QuerySpec `required:"false"`
}

type SearchOutput struct {
	SearchTime string `header:"X-Search-Time"`
	Body       models.ResultPage
}

type HistoryOutput struct {
	Body struct {
		History []models.HistoryEntry `json:"history"`
	}
}

type ExamInput struct {
	ID string `path:"id" minLength:"1" doc:"Exam id such as DR2401_001"`
}

type ExamOutput struct {
	CacheHit string `header:"X-Cache-Hit"`
	Body     models.Exam
}

type RebuildOutput struct {
	Body models.RebuildStatus
}

type AsyncRebuildOutput struct {
	Body struct {
		WorkflowID string `json:"workflowId"`
		RunID      string `json:"runId"`
	}
}

type RebuildProgressOutput struct {
	Body workflows.RebuildProgress
}

func scopeFor(p auth.Principal) index.Scope {
	return index.Scope{Key: p.Email, Credentials: providers.Credentials{AccessToken: p.AccessToken}}
}

func (s *Server) search(ctx context.Context, in *SearchInput) (*SearchOutput, error) {
	scope, err := s.scopeFrom(ctx)
	if err != nil {
		return nil, err
	}
	snap, err := s.manager.GetOrBuild(ctx, scope)
	if err != nil {
		s.logger.Error("search index unavailable", "scope", scope.Key, "error", err)
		return &SearchOutput{Body: failedPage(in.Body, err)}, nil
	}
	page := query.Query(snap.Exams, in.Body)
	if strings.TrimSpace(in.Body.Keyword) != "" {
		s.recordSearch(ctx, scope.Key, in.Body, page.Total)
	}
	return &SearchOutput{
		SearchTime: strconv.FormatInt(page.SearchTimeMs, 10) + "ms",
		Body:       page,
	}, nil
}

// failedPage is the empty answer a search gets when the index cannot be built,
// so clients keep rendering.
func failedPage(spec models.QuerySpec, err error) models.ResultPage {
	page := spec.Page
	if page < 1 {
		page = 1
	}
	size := spec.PageSize
	if size <= 0 {
		size = query.DefaultPageSize
	}
	return models.ResultPage{
		Results:  []models.Exam{},
		Page:     page,
		PageSize: size,
		Error:    err.Error(),
	}
}

func (s *Server) searchHistory(ctx context.Context, _ *struct{}) (*HistoryOutput, error) {
	scope, err := s.scopeFrom(ctx)
	if err != nil {
		return nil, err
	}
	history, err := s.loadHistory(ctx, scope.Key)
	if err != nil {
		return nil, huma.Error500InternalServerError("", err)
	}
	out := &HistoryOutput{}
	out.Body.History = history
	return out, nil
}

func (s *Server) examDetail(ctx context.Context, in *ExamInput) (*ExamOutput, error) {
	scope, err := s.scopeFrom(ctx)
	if err != nil {
		return nil, err
	}
	key := detailKey(in.ID, scope.Key)
	if raw, ok, err := s.cache.Get(ctx, key); err != nil {
		s.logger.Warn("detail cache read failed", "key", key, "error", err)
	} else if ok {
		var entry detailEntry
		switch err := json.Unmarshal(raw, &entry); {
		case err != nil || entry.Exam.ID == "":
			s.logger.Warn("detail cache entry undecodable", "key", key)
		case s.isCurrentBuild(scope.Key, entry.BuildID):
			return &ExamOutput{CacheHit: "true", Body: entry.Exam}, nil
		}
	}

	exam, found, err := s.manager.GetByID(ctx, scope, in.ID)
	if err != nil {
		s.logger.Error("exam lookup failed", "id", in.ID, "error", err)
		return nil, upstreamError(err)
	}
	if !found {
		return nil, huma.Error404NotFound(fmt.Sprintf("Exam %s was not found.", in.ID))
	}
	entry := detailEntry{Exam: exam}
	if snap := s.manager.Current(scope.Key); snap != nil {
		entry.BuildID = snap.BuildID
	}
	if raw, err := json.Marshal(entry); err == nil {
		if err := s.cache.Put(ctx, key, raw, s.cfg.DetailTTL()); err != nil {
			s.logger.Warn("detail cache write failed", "key", key, "error", err)
		}
	}
	return &ExamOutput{CacheHit: "false", Body: exam}, nil
}

// detailEntry is a cached exam tagged with the index build it came from.
type detailEntry struct {
	BuildID string      `json:"buildId"`
	Exam    models.Exam `json:"exam"`
}

// isCurrentBuild reports whether a cached detail may be served. Without an
// in-process index there is nothing newer to compare against.
func (s *Server) isCurrentBuild(scope, buildID string) bool {
	snap := s.manager.Current(scope)
	return snap == nil || snap.BuildID == buildID
}

func (s *Server) rebuildIndex(ctx context.Context, _ *struct{}) (*RebuildOutput, error) {
	scope, err := s.scopeFrom(ctx)
	if err != nil {
		return nil, err
	}
	snap, err := s.manager.ForceRebuild(ctx, scope)
	if err != nil {
		s.logger.Error("index rebuild failed", "scope", scope.Key, "error", err)
		return nil, upstreamError(err)
	}
	s.logger.Info("index rebuilt", "scope", scope.Key, "exams", len(snap.Exams), "build_id", snap.BuildID)
	return &RebuildOutput{Body: models.RebuildStatus{
		Status:    "success",
		Message:   "Index rebuilt successfully",
		ExamCount: len(snap.Exams),
		Timestamp: s.now().UTC(),
		BuildID:   snap.BuildID,
	}}, nil
}

func (s *Server) rebuildIndexAsync(ctx context.Context, _ *struct{}) (*AsyncRebuildOutput, error) {
	scope, err := s.scopeFrom(ctx)
	if err != nil {
		return nil, err
	}
	if s.temporal == nil {
		return nil, huma.Error503ServiceUnavailable("Background rebuilds are not configured.")
	}
	wfID := workflows.WorkflowID(scope.Key)
	we, err := s.temporal.ExecuteWorkflow(ctx, tclient.StartWorkflowOptions{
		ID:                                       wfID,
		TaskQueue:                                s.cfg.TemporalTaskQueue,
		WorkflowIDReusePolicy:                    enumspb.WORKFLOW_ID_REUSE_POLICY_ALLOW_DUPLICATE,
		WorkflowExecutionErrorWhenAlreadyStarted: true,
	}, workflows.RebuildIndexWorkflow, workflows.RebuildIndexInput{Scopes: []string{scope.Key}})
	if err != nil {
		var started *serviceerror.WorkflowExecutionAlreadyStarted
		if errors.As(err, &started) {
			return nil, huma.Error409Conflict("A rebuild is already running for this account.", err)
		}
		return nil, huma.Error500InternalServerError("", err)
	}
	out := &AsyncRebuildOutput{}
	out.Body.WorkflowID = we.GetID()
	out.Body.RunID = we.GetRunID()
	return out, nil
}

func (s *Server) rebuildIndexProgress(ctx context.Context, _ *struct{}) (*RebuildProgressOutput, error) {
	scope, err := s.scopeFrom(ctx)
	if err != nil {
		return nil, err
	}
	if s.temporal == nil {
		return nil, huma.Error503ServiceUnavailable("Background rebuilds are not configured.")
	}
	resp, err := s.temporal.QueryWorkflow(ctx, workflows.WorkflowID(scope.Key), "", workflows.QueryGetRebuildProgress)
	if err != nil {
		return nil, huma.Error404NotFound("No background rebuild found for this account.", err)
	}
	out := &RebuildProgressOutput{}
	if err := resp.Get(&out.Body); err != nil {
		return nil, huma.Error500InternalServerError("", err)
	}
	return out, nil
}
