package models

import "time"

// Choice is one answer option. Label is a single lowercase letter.
type Choice struct {
	Label string `json:"label"`
	Text  string `json:"text"`
}

// Exam is one normalized question record.
type Exam struct {
	ID                   string            `json:"id"`
	FileName             string            `json:"fileName"`
	RowNumber            int               `json:"rowNumber"`
	Year                 int               `json:"year"`
	Subject              string            `json:"subject"`
	SubjectCode          string            `json:"subjectCode,omitempty"`
	Title                string            `json:"title"`
	QuestionText         string            `json:"questionText,omitempty"`
	Preview              string            `json:"preview,omitempty"`
	HasImage             bool              `json:"hasImage"`
	Choices              []Choice          `json:"choices"`
	ChoiceExplanations   map[string]string `json:"choiceExplanations,omitempty"`
	Keywords             string            `json:"keywords,omitempty"`
	Tags                 []string          `json:"tags"`
	Diagnosis            string            `json:"diagnosis,omitempty"`
	Answer               string            `json:"answer,omitempty"`
	Explanation          string            `json:"explanation,omitempty"`
	MajorFindings        string            `json:"majorFindings,omitempty"`
	ImageDiagnosis       string            `json:"imageDiagnosis,omitempty"`
	Points               string            `json:"points,omitempty"`
	AllChoiceExplanation string            `json:"allChoiceExplanation,omitempty"`
}

// QuerySpec describes one search. Zero values mean no constraint.
type QuerySpec struct {
	GroupCodes []string `json:"groupCodes,omitempty" doc:"Exam-group prefixes such as DR2401"`
	Keyword    string   `json:"keyword,omitempty" doc:"Case-insensitive substring"`
	YearFrom   int      `json:"yearFrom,omitempty"`
	YearTo     int      `json:"yearTo,omitempty"`
	Subjects   []string `json:"subjects,omitempty"`
	Page       int      `json:"page,omitempty" doc:"1-based page, defaults to 1"`
	PageSize   int      `json:"pageSize,omitempty" maximum:"500" doc:"Defaults to 20"`
}

type ResultPage struct {
	Results      []Exam `json:"results"`
	Total        int    `json:"total"`
	Page         int    `json:"page"`
	PageSize     int    `json:"pageSize"`
	TotalPages   int    `json:"totalPages"`
	SearchTimeMs int64  `json:"searchTime"`
	Error        string `json:"error,omitempty"`
}

type RebuildStatus struct {
	Status    string    `json:"status"`
	Message   string    `json:"message"`
	ExamCount int       `json:"examCount"`
	Timestamp time.Time `json:"timestamp"`
	BuildID   string    `json:"buildId,omitempty"`
}

// HistoryEntry records one keyword search for the search-history list.
type HistoryEntry struct {
	Keyword    string    `json:"keyword"`
	GroupCodes []string  `json:"groupCodes,omitempty"`
	Subjects   []string  `json:"subjects,omitempty"`
	Total      int       `json:"total"`
	SearchedAt time.Time `json:"searchedAt"`
}
