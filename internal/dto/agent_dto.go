package dto

import "time"

type ChatRequest struct {
	Message string `json:"message" validate:"required,max=4000"`
}

// SelectControlsRequest resumes a paused generation. An empty ControlIds
// discards every candidate.
type SelectControlsRequest struct {
	SessionId  string   `json:"session_id" validate:"required,uuid"`
	ControlIds []string `json:"control_ids" validate:"dive,required"`
}

type ArtifactResponse struct {
	Kind        string   `json:"kind"`
	Id          string   `json:"id"`
	ControlId   string   `json:"control_id,omitempty"`
	Title       string   `json:"title"`
	Description string   `json:"description,omitempty"`
	Category    string   `json:"category,omitempty"`
	Reference   string   `json:"reference,omitempty"`
	Source      string   `json:"source"`
	Score       *float64 `json:"score,omitempty"`
}

type CommitResponse struct {
	SavedIds      []string `json:"saved_ids"`
	Skipped       []string `json:"skipped,omitempty"`
	GraphFailed   []string `json:"graph_failed,omitempty"`
	VectorFailed  []string `json:"vector_failed,omitempty"`
	PartialCommit bool     `json:"partial_commit"`
}

type ChatResponse struct {
	Intent            string             `json:"intent"`
	Answer            string             `json:"answer"`
	SessionId         string             `json:"session_id,omitempty"`
	AwaitingSelection bool               `json:"awaiting_selection"`
	Candidates        []*ControlResponse `json:"candidates,omitempty"`
	Artifacts         []ArtifactResponse `json:"artifacts,omitempty"`
	Commit            *CommitResponse    `json:"commit,omitempty"`
	SourcesFailed     []string           `json:"sources_failed,omitempty"`
	CreatedAt         time.Time          `json:"created_at"`
}
