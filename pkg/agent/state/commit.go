package state

// StoreOutcome counts writes against one store.
type StoreOutcome struct {
	Attempted int      `json:"attempted"`
	Succeeded int      `json:"succeeded"`
	FailedIds []string `json:"failed_ids,omitempty"`
	Error     string   `json:"error,omitempty"`
}

func (o StoreOutcome) Failed() int { return o.Attempted - o.Succeeded }

// CommitResult reports each store separately; a control can be saved
// without being linked or searchable.
type CommitResult struct {
	SavedIds  []string     `json:"saved_ids"`
	Skipped   []string     `json:"skipped,omitempty"`
	Documents StoreOutcome `json:"documents"`
	Graph     StoreOutcome `json:"graph"`
	Vector    StoreOutcome `json:"vector"`
}

func (r *CommitResult) Saved() int      { return len(r.SavedIds) }
func (r *CommitResult) Linked() int     { return r.Graph.Succeeded }
func (r *CommitResult) Searchable() int { return r.Vector.Succeeded }

// Partial is true when the authoritative write succeeded but a secondary store lagged.
func (r *CommitResult) Partial() bool {
	return r.Graph.Failed() > 0 || r.Vector.Failed() > 0
}
