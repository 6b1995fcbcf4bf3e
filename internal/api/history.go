package api

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"

	"examsearch/internal/models"
)

func historyKey(scope string) string { return "search_history:" + scope }

// detailKey encodes the scope last so an id containing ':' cannot reach into
// another scope's keys.
func detailKey(id, scope string) string {
	return "exam_detail:" + id + ":" + base64.RawURLEncoding.EncodeToString([]byte(scope))
}

func (s *Server) loadHistory(ctx context.Context, scope string) ([]models.HistoryEntry, error) {
	raw, ok, err := s.cache.Get(ctx, historyKey(scope))
	if err != nil {
		return nil, fmt.Errorf("read search history: %w", err)
	}
	history := []models.HistoryEntry{}
	if !ok {
		return history, nil
	}
	if err := json.Unmarshal(raw, &history); err != nil {
		s.logger.Warn("search history undecodable", "scope", scope, "error", err)
		return []models.HistoryEntry{}, nil
	}
	return history, nil
}

// recordSearch puts the search at the front of the scope's history, dropping
// an earlier entry with the same keyword. Failures are logged only.
func (s *Server) recordSearch(ctx context.Context, scope string, spec models.QuerySpec, total int) {
	s.historyMu.Lock()
	defer s.historyMu.Unlock()

	history, err := s.loadHistory(ctx, scope)
	if err != nil {
		s.logger.Warn("search history not recorded", "scope", scope, "error", err)
		return
	}
	entry := models.HistoryEntry{
		Keyword:    strings.TrimSpace(spec.Keyword),
		GroupCodes: spec.GroupCodes,
		Subjects:   spec.Subjects,
		Total:      total,
		SearchedAt: s.now().UTC(),
	}
	next := make([]models.HistoryEntry, 0, len(history)+1)
	next = append(next, entry)
	for _, h := range history {
		if h.Keyword != entry.Keyword {
			next = append(next, h)
		}
	}
	if limit := s.cfg.HistoryLimit; limit > 0 && len(next) > limit {
		next = next[:limit]
	}
	raw, err := json.Marshal(next)
	if err != nil {
		s.logger.Warn("search history not recorded", "scope", scope, "error", err)
		return
	}
	if err := s.cache.Put(ctx, historyKey(scope), raw, s.cfg.HistoryTTL()); err != nil {
		s.logger.Warn("search history not recorded", "scope", scope, "error", err)
	}
}
