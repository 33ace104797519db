package workflow

import (
	"fmt"

	"iso-risk-agent-be/pkg/agent/state"
)

// Guard decides whether a transition applies. A nil guard always applies.
type Guard func(*state.AgentState) bool

type Transition struct {
	From state.Node
	When Guard
	To   state.Node
}

func isGeneration(s *state.AgentState) bool { return s.Intent.Kind.IsGeneration() }
func awaitingSelection(s *state.AgentState) bool {
	return s.PendingSelection && len(s.GeneratedControls) > 0
}
func hasSelection(s *state.AgentState) bool { return len(s.SelectedControls()) > 0 }

// Transitions is evaluated top to bottom; the first matching row for a node wins.
var Transitions = []Transition{
	{From: state.NodeClassifyIntent, To: state.NodeRetrieveContext},
	{From: state.NodeRetrieveContext, When: isGeneration, To: state.NodeGenerateControls},
	{From: state.NodeRetrieveContext, To: state.NodeAnswerQuery},
	{From: state.NodeGenerateControls, When: awaitingSelection, To: state.NodePaused},
	{From: state.NodeGenerateControls, To: state.NodeSynthesizeResponse},
	{From: state.NodeAnswerQuery, To: state.NodeHandleSelection},
	{From: state.NodeHandleSelection, When: hasSelection, To: state.NodeStoreData},
	{From: state.NodeHandleSelection, To: state.NodeStoreQueryEmbedding},
	{From: state.NodeStoreData, To: state.NodeStoreQueryEmbedding},
	{From: state.NodeStoreQueryEmbedding, To: state.NodeSynthesizeResponse},
	{From: state.NodeSynthesizeResponse, To: state.NodeDone},
}

// Next looks up the node that follows from for the given state.
func Next(from state.Node, s *state.AgentState) (state.Node, error) {
	for _, t := range Transitions {
		if t.From != from {
			continue
		}
		if t.When == nil || t.When(s) {
			return t.To, nil
		}
	}
	return "", fmt.Errorf("no transition out of %s", from)
}
