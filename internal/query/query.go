// Package query filters, ranks and paginates an exam index snapshot.
package query

import (
	"cmp"
	"regexp"
	"slices"
	"strings"
	"time"

	"examsearch/internal/models"
)

const DefaultPageSize = 20

const (
	weightTitle    = 10
	weightKeywords = 5
	weightSubject  = 3
	weightBody     = 2
	weightTag      = 1
)

var groupPrefixPattern = regexp.MustCompile(`^[A-Z]{2}\d{4}`)

// GroupCode derives the exam group from an id: the part before the first "_"
// when present, otherwise a two-letter four-digit prefix such as DR2401.
func GroupCode(id string) (string, bool) {
	if head, _, found := strings.Cut(id, "_"); found {
		return head, head != ""
	}
	if m := groupPrefixPattern.FindString(id); m != "" {
		return m, true
	}
	return "", false
}

// Query runs spec against exams. It never modifies exams.
func Query(exams []models.Exam, spec models.QuerySpec) models.ResultPage {
	start := time.Now()
	page, pageSize := spec.Page, spec.PageSize
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = DefaultPageSize
	}
	keyword := strings.ToLower(strings.TrimSpace(spec.Keyword))

	groups := toSet(spec.GroupCodes)
	subjects := toSet(spec.Subjects)

	type hit struct {
		exam  *models.Exam
		score int
	}
	hits := make([]hit, 0, len(exams))
	for i := range exams {
		e := &exams[i]
		if len(groups) > 0 {
			code, ok := GroupCode(e.ID)
			if !ok {
				continue
			}
			if _, ok := groups[code]; !ok {
				continue
			}
		}
		if keyword != "" && !matchesKeyword(e, keyword) {
			continue
		}
		if spec.YearFrom > 0 && e.Year < spec.YearFrom {
			continue
		}
		if spec.YearTo > 0 && e.Year > spec.YearTo {
			continue
		}
		if len(subjects) > 0 {
			if _, ok := subjects[e.Subject]; !ok {
				continue
			}
		}
		h := hit{exam: e}
		if keyword != "" {
			h.score = Score(e, keyword)
		}
		hits = append(hits, h)
	}

	slices.SortStableFunc(hits, func(a, b hit) int {
		if c := cmp.Compare(b.score, a.score); c != 0 {
			return c
		}
		return cmp.Compare(b.exam.Year, a.exam.Year)
	})

	total := len(hits)
	from := total
	if page-1 <= total/pageSize {
		from = min((page-1)*pageSize, total)
	}
	to := from + min(pageSize, total-from)
	results := make([]models.Exam, 0, to-from)
	for _, h := range hits[from:to] {
		results = append(results, *h.exam)
	}
	totalPages := total / pageSize
	if total%pageSize != 0 {
		totalPages++
	}
	return models.ResultPage{
		Results:      results,
		Total:        total,
		Page:         page,
		PageSize:     pageSize,
		TotalPages:   totalPages,
		SearchTimeMs: time.Since(start).Milliseconds(),
	}
}

// Score weighs where a lowercased keyword occurs in e. Tags count one each.
func Score(e *models.Exam, keyword string) int {
	score := 0
	if contains(e.Title, keyword) {
		score += weightTitle
	}
	if contains(e.Keywords, keyword) {
		score += weightKeywords
	}
	if contains(e.Subject, keyword) {
		score += weightSubject
	}
	if contains(e.QuestionText, keyword) {
		score += weightBody
	}
	for _, tag := range e.Tags {
		if contains(tag, keyword) {
			score += weightTag
		}
	}
	return score
}

func matchesKeyword(e *models.Exam, keyword string) bool {
	if contains(e.Title, keyword) ||
		contains(e.QuestionText, keyword) ||
		contains(e.Keywords, keyword) ||
		contains(e.Subject, keyword) ||
		contains(e.ID, keyword) {
		return true
	}
	for _, tag := range e.Tags {
		if contains(tag, keyword) {
			return true
		}
	}
	return false
}

func contains(field, keyword string) bool {
	return field != "" && strings.Contains(strings.ToLower(field), keyword)
}

func toSet(values []string) map[string]struct{} {
	if len(values) == 0 {
		return nil
	}
	out := make(map[string]struct{}, len(values))
	for _, v := range values {
		out[v] = struct{}{}
	}
	return out
}
