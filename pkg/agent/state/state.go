package state

import (
	"encoding/json"
	"time"

	"iso-risk-agent-be/internal/entity"
)

type Node string

const (
	NodeClassifyIntent      Node = "classify_intent"
	NodeRetrieveContext     Node = "retrieve_context"
	NodeGenerateControls    Node = "generate_controls"
	NodeAnswerQuery         Node = "answer_query"
	NodeHandleSelection     Node = "handle_selection"
	NodeStoreData           Node = "store_data"
	NodeStoreQueryEmbedding Node = "store_query_embedding"
	NodeSynthesizeResponse  Node = "synthesize_response"
	NodeDone                Node = "done"
	NodePaused              Node = "paused"
)

// Terminal nodes end a run.
func (n Node) Terminal() bool { return n == NodeDone || n == NodePaused }

// AgentState is the unit of work for one request. It is serialized as-is
// into the session store when the workflow pauses.
type AgentState struct {
	SessionId string       `json:"session_id,omitempty"`
	Query     string       `json:"query"`
	UserId    string       `json:"user_id"`
	User      *entity.User `json:"user,omitempty"`

	Intent  Intent         `json:"intent"`
	Context *ContextBundle `json:"context,omitempty"`

	TargetRisks        []*entity.Risk    `json:"target_risks,omitempty"`
	GeneratedControls  []*entity.Control `json:"generated_controls,omitempty"`
	SelectedControlIds []string          `json:"selected_control_ids,omitempty"`
	PendingSelection   bool              `json:"pending_selection"`
	Resumed            bool              `json:"resumed"`

	// Artifacts are what the answer enumerates for query intents.
	Artifacts []ContextItem `json:"artifacts,omitempty"`
	Commit    *CommitResult `json:"commit,omitempty"`
	Notices   []string      `json:"notices,omitempty"`
	Failure   string        `json:"failure,omitempty"`

	Current       Node      `json:"current"`
	Steps         int       `json:"steps"`
	FinalResponse string    `json:"final_response,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

func New(userId, query string) *AgentState {
	return &AgentState{
		UserId:    userId,
		Query:     query,
		Intent:    OtherIntent(),
		Current:   NodeClassifyIntent,
		CreatedAt: time.Now().UTC(),
	}
}

func (s *AgentState) Marshal() ([]byte, error) {
	return json.Marshal(s)
}

func Unmarshal(data []byte) (*AgentState, error) {
	var s AgentState
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// SelectedControls filters GeneratedControls by the selected identifiers,
// matching either control_id or id.
func (s *AgentState) SelectedControls() []*entity.Control {
	if len(s.SelectedControlIds) == 0 {
		return nil
	}
	want := make(map[string]bool, len(s.SelectedControlIds))
	for _, id := range s.SelectedControlIds {
		want[id] = true
	}
	var out []*entity.Control
	for _, c := range s.GeneratedControls {
		if want[c.ControlId] || want[c.Id] {
			out = append(out, c)
		}
	}
	return out
}
