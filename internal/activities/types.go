package activities

import "time"

type RebuildScopeInput struct {
	Scope string `json:"scope"`
}

type RebuildScopeOutput struct {
	Scope     string    `json:"scope"`
	ExamCount int       `json:"exam_count"`
	BuildID   string    `json:"build_id"`
	BuiltAt   time.Time `json:"built_at"`
}
