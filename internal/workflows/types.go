package workflows

type RebuildIndexInput struct {
	Scopes        []string `json:"scopes"`
	MaxConcurrent int      `json:"max_concurrent"`
}

type RebuildProgress struct {
	Total     int               `json:"total"`
	Done      int               `json:"done"`
	Failed    int               `json:"failed"`
	ExamCount int               `json:"exam_count"`
	PerScope  map[string]string `json:"per_scope_status"`
	BuildIDs  map[string]string `json:"build_ids,omitempty"`
}
