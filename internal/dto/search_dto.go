package dto

// ContextSearchRequest runs retrieval without the workflow. Intent defaults
// to a general control query; Category is required for query_controls_by_category.
type ContextSearchRequest struct {
	Query    string   `json:"query" validate:"required,max=4000"`
	Intent   string   `json:"intent" validate:"omitempty,oneof=query_controls_general query_controls_by_category relationship_query"`
	Category string   `json:"category" validate:"required_if=Intent query_controls_by_category"`
	Domain   string   `json:"domain" validate:"omitempty,oneof=Organizational People Physical Technological"`
	Keywords []string `json:"keywords" validate:"omitempty,dive,required"`
}

type GuidanceResponse struct {
	Reference string  `json:"reference"`
	Title     string  `json:"title"`
	Domain    string  `json:"domain"`
	Score     float64 `json:"score,omitempty"`
}

type ContextSearchResponse struct {
	Intent         string             `json:"intent"`
	Items          []ArtifactResponse `json:"items"`
	Guidance       []GuidanceResponse `json:"guidance"`
	SourcesChecked []string           `json:"sources_checked"`
	SourceErrors   map[string]string  `json:"source_errors,omitempty"`
	Threshold      float64            `json:"threshold"`
	NoContext      bool               `json:"no_context"`
}

type GraphStatsResponse struct {
	Categories     []CategoryStatResponse `json:"categories"`
	UncoveredRisks int                    `json:"uncovered_risks"`
	TotalRisks     int                    `json:"total_risks"`
	TotalControls  int                    `json:"total_controls"`
}

type CategoryStatResponse struct {
	Category string `json:"category"`
	Risks    int    `json:"risks"`
	Controls int    `json:"controls"`
}
