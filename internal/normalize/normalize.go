// Package normalize turns raw spreadsheet rows into models.Exam records.
//
// Two column schemas exist in the source sheets. Current sheets name choices
// 問題選択肢a..問題選択肢v, older ones 選択肢A..選択肢E. Both feed the same
// choice list, keyed by lowercase label.
package normalize

import (
	"regexp"
	"slices"
	"strconv"
	"strings"

	"examsearch/internal/models"
	"examsearch/internal/util"
)

const (
	colID                   = "問題ID"
	colTitle                = "問題タイトル"
	colQuestion             = "問題文"
	colSubjectCode          = "分野"
	colKeywords             = "KEYWORD"
	colDiagnosis            = "診断"
	colAnswer               = "正答選択肢"
	colExplanation          = "解法の要点"
	colMajorFindings        = "主要所見"
	colImageDiagnosis       = "画像診断"
	colPoints               = "ポイント"
	colAllChoiceExplanation = "選択肢解説all"
)

const previewRunes = 200

var (
	choicePattern       = regexp.MustCompile(`^問題選択肢([a-v])$`)
	legacyChoicePattern = regexp.MustCompile(`^選択肢([A-E])$`)
	explanationPattern  = regexp.MustCompile(`^選択肢解説([a-v])$`)
	yearPattern         = regexp.MustCompile(`DR(\d{2})`)
)

type Normalizer struct {
	// DefaultYear is used when the id carries no DRyy fragment.
	DefaultYear int
}

func New(defaultYear int) *Normalizer {
	return &Normalizer{DefaultYear: defaultYear}
}

// Normalize maps one row onto an Exam. It returns false when the first cell is
// empty. Headers without a mapping are ignored.
func (n *Normalizer) Normalize(row, headers []string, source string, rowNumber int) (models.Exam, bool) {
	if len(row) == 0 {
		return models.Exam{}, false
	}
	first := util.SanitizeText(row[0])
	if first == "" {
		return models.Exam{}, false
	}

	exam := models.Exam{
		FileName:  source,
		RowNumber: rowNumber,
		Choices:   []models.Choice{},
	}
	for i, header := range headers {
		if i >= len(row) {
			break
		}
		value := util.SanitizeText(row[i])
		if value == "" {
			continue
		}
		apply(&exam, strings.TrimSpace(header), value)
	}

	if exam.ID == "" {
		exam.ID = first
	}
	exam.Year = n.yearFor(exam.ID)
	exam.Subject = SubjectFor(exam.SubjectCode, exam.ID)
	slices.SortStableFunc(exam.Choices, func(a, b models.Choice) int {
		return strings.Compare(a.Label, b.Label)
	})
	if exam.Title == "" {
		exam.Title = exam.ID
	}
	if len(exam.Tags) == 0 {
		exam.Tags = []string{exam.Subject}
	}
	return exam, true
}

func apply(exam *models.Exam, header, value string) {
	switch header {
	case colID:
		exam.ID = value
	case colTitle:
		exam.Title = value
	case colQuestion:
		exam.QuestionText = ResolveImages(value)
		exam.Preview = util.TruncateRunes(util.StripTags(value), previewRunes) + "..."
		exam.HasImage = HasImage(value)
	case colSubjectCode:
		exam.SubjectCode = value
	case colKeywords:
		exam.Keywords = value
		exam.Tags = splitTags(value)
	case colDiagnosis:
		exam.Diagnosis = value
	case colAnswer:
		exam.Answer = value
	case colExplanation:
		exam.Explanation = ResolveImages(value)
	case colMajorFindings:
		exam.MajorFindings = ResolveImages(value)
	case colImageDiagnosis:
		exam.ImageDiagnosis = ResolveImages(value)
	case colPoints:
		exam.Points = ResolveImages(value)
	case colAllChoiceExplanation:
		exam.AllChoiceExplanation = ResolveImages(value)
	default:
		applyPattern(exam, header, value)
	}
}

func applyPattern(exam *models.Exam, header, value string) {
	if m := choicePattern.FindStringSubmatch(header); m != nil {
		exam.Choices = append(exam.Choices, models.Choice{Label: m[1], Text: ResolveImages(value)})
		return
	}
	if m := legacyChoicePattern.FindStringSubmatch(header); m != nil {
		exam.Choices = append(exam.Choices, models.Choice{Label: strings.ToLower(m[1]), Text: ResolveImages(value)})
		return
	}
	if m := explanationPattern.FindStringSubmatch(header); m != nil {
		if exam.ChoiceExplanations == nil {
			exam.ChoiceExplanations = map[string]string{}
		}
		exam.ChoiceExplanations[m[1]] = ResolveImages(value)
	}
}

func (n *Normalizer) yearFor(id string) int {
	if m := yearPattern.FindStringSubmatch(id); m != nil {
		if yy, err := strconv.Atoi(m[1]); err == nil {
			return 2000 + yy
		}
	}
	return n.DefaultYear
}

func splitTags(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// DuplicateChoiceLabels lists labels that occur more than once in exam.Choices,
// which happens when a sheet fills both the current and legacy choice columns.
func DuplicateChoiceLabels(exam models.Exam) []string {
	seen := make(map[string]int, len(exam.Choices))
	var dups []string
	for _, c := range exam.Choices {
		seen[c.Label]++
		if seen[c.Label] == 2 {
			dups = append(dups, c.Label)
		}
	}
	return dups
}
