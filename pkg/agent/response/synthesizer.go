// Package response turns a finished workflow state into the user-facing answer.
package response

import (
	"context"
	"fmt"
	"strings"
	"time"

	"iso-risk-agent-be/internal/entity"
	"iso-risk-agent-be/internal/pkg/logger"
	"iso-risk-agent-be/pkg/agent/state"
	"iso-risk-agent-be/pkg/llm"
)

const module = "ResponseSynthesizer"

type Synthesizer struct {
	llm        llm.LLMProvider
	logger     logger.ILogger
	llmTimeout time.Duration
}

func NewSynthesizer(llmProvider llm.LLMProvider, log logger.ILogger, llmTimeout time.Duration) *Synthesizer {
	if llmTimeout <= 0 {
		llmTimeout = 60 * time.Second
	}
	return &Synthesizer{llm: llmProvider, logger: log, llmTimeout: llmTimeout}
}

// Synthesize always returns text. The model only writes the opening
// narrative; listings, thresholds and failure notes are deterministic.
func (s *Synthesizer) Synthesize(ctx context.Context, st *state.AgentState) string {
	var b strings.Builder

	switch {
	case st.PendingSelection:
		writeSelectionPrompt(&b, st)
	case st.Commit != nil || st.Failure != "":
		writeCommitSummary(&b, st)
	case st.Intent.Kind.IsGeneration():
		writeNotices(&b, st.Notices)
	case st.Intent.Kind == state.IntentOther:
		b.WriteString(s.smallTalk(ctx, st))
	case st.Intent.Kind == state.IntentRelationshipQuery:
		s.writeRelationshipAnswer(ctx, &b, st)
	default:
		s.writeQueryAnswer(ctx, &b, st)
	}
	return strings.TrimSpace(b.String())
}

func writeSelectionPrompt(b *strings.Builder, st *state.AgentState) {
	writeNotices(b, st.Notices)
	b.WriteString(fmt.Sprintf("I drafted %d candidate controls. Select the ones you want to keep:\n\n", len(st.GeneratedControls)))

	titles := map[string]string{}
	for _, r := range st.TargetRisks {
		titles[r.Id] = r.DisplayName()
	}
	current := ""
	n := 0
	for _, c := range st.GeneratedControls {
		if c.RiskId != current {
			current = c.RiskId
			name := titles[c.RiskId]
			if name == "" {
				name = c.RiskId
			}
			b.WriteString(fmt.Sprintf("Risk: %s\n", name))
		}
		n++
		b.WriteString(fmt.Sprintf("%d. [%s] %s (%s, %s)\n", n, c.ControlId, c.Title, c.DomainCategory, orDash(c.AnnexReference)))
		if c.ControlStatement != "" {
			b.WriteString("   " + c.ControlStatement + "\n")
		}
	}
	b.WriteString("\nReply with the control IDs to save. Controls you leave out are discarded.")
}

func writeCommitSummary(b *strings.Builder, st *state.AgentState) {
	writeNotices(b, st.Notices)
	if st.Failure != "" {
		b.WriteString(st.Failure)
		b.WriteString("\n")
	}
	r := st.Commit
	if r == nil {
		return
	}
	if r.Saved() > 0 {
		b.WriteString(fmt.Sprintf("Saved %d %s to your register.", r.Saved(), plural(r.Saved(), "control", "controls")))
	}
	if failed := r.Graph.Failed(); failed > 0 {
		b.WriteString(fmt.Sprintf(" Saved, but the relationship graph update failed for %d %s.", failed, plural(failed, "control", "controls")))
	}
	if failed := r.Vector.Failed(); failed > 0 {
		b.WriteString(fmt.Sprintf(" %d %s will not appear in semantic search until re-indexed.", failed, plural(failed, "control", "controls")))
	}
	if len(r.Skipped) > 0 {
		b.WriteString(fmt.Sprintf("\nSkipped %d incomplete %s: %s.", len(r.Skipped), plural(len(r.Skipped), "control", "controls"), strings.Join(r.Skipped, ", ")))
	}
}

func writeNotices(b *strings.Builder, notices []string) {
	for _, n := range notices {
		b.WriteString(n)
		b.WriteString("\n\n")
	}
}

func (s *Synthesizer) writeQueryAnswer(ctx context.Context, b *strings.Builder, st *state.AgentState) {
	bundle := st.Context
	writeNotices(b, st.Notices)

	if bundle != nil && bundle.NoContext {
		b.WriteString("I couldn't reach any of my knowledge sources, so I can't answer this reliably right now. Please try again in a moment.")
		return
	}

	if len(st.Artifacts) == 0 {
		b.WriteString("I didn't find any controls matching your request.")
		if bundle != nil {
			b.WriteString(" I checked " + joinLabels(bundle.HealthySources()) + ".")
		}
		writeUnavailable(b, bundle)
		writeGuidanceHint(b, bundle)
		return
	}

	b.WriteString(s.narrative(ctx, st))
	b.WriteString("\n\n")
	writeListing(b, st.Artifacts)
	if bundle != nil {
		b.WriteString(fmt.Sprintf("\nSemantic matches are included only when their relevance score is above %.2f; your own controls are always listed.", bundle.Threshold))
	}
	writeUnavailable(b, bundle)
}

func (s *Synthesizer) writeRelationshipAnswer(ctx context.Context, b *strings.Builder, st *state.AgentState) {
	bundle := st.Context
	writeNotices(b, st.Notices)
	if bundle != nil && bundle.NoContext {
		b.WriteString("I couldn't reach any of my knowledge sources, so I can't describe your risk and control relationships right now.")
		return
	}
	if bundle == nil || len(bundle.CategoryStats) == 0 {
		s.writeQueryAnswer(ctx, b, st)
		return
	}

	b.WriteString("Here is how your risks and controls connect, by risk category:\n")
	for _, cs := range bundle.CategoryStats {
		name := cs.Category
		if name == "" {
			name = "Uncategorised"
		}
		b.WriteString(fmt.Sprintf("- %s: %d %s, %d mitigating %s\n", name,
			cs.Risks, plural(cs.Risks, "risk", "risks"), cs.Controls, plural(cs.Controls, "control", "controls")))
	}
	uncovered := 0
	for _, cs := range bundle.CategoryStats {
		if cs.Controls == 0 {
			uncovered += cs.Risks
		}
	}
	if uncovered > 0 {
		b.WriteString(fmt.Sprintf("\n%d %s in categories without any control. Ask me to generate controls for them.", uncovered, plural(uncovered, "risk sits", "risks sit")))
	}
	writeUnavailable(b, bundle)
}

func writeListing(b *strings.Builder, items []state.ContextItem) {
	for i, it := range items {
		b.WriteString(fmt.Sprintf("%d. ", i+1))
		if it.Control != nil && it.Control.ControlId != "" {
			b.WriteString("[" + it.Control.ControlId + "] ")
		}
		b.WriteString(it.Title)
		var meta []string
		if it.Kind == entity.ArtifactRisk {
			meta = append(meta, "risk")
		}
		if it.Category != "" {
			meta = append(meta, it.Category)
		}
		if it.Reference != "" {
			meta = append(meta, it.Reference)
		}
		if it.Score != nil {
			meta = append(meta, fmt.Sprintf("relevance %.2f", *it.Score))
		} else {
			meta = append(meta, "from "+it.Source.Label())
		}
		b.WriteString(" (" + strings.Join(meta, ", ") + ")\n")
	}
}

func writeUnavailable(b *strings.Builder, bundle *state.ContextBundle) {
	failed := bundle.FailedSources()
	if len(failed) == 0 {
		return
	}
	b.WriteString(fmt.Sprintf("\nNote: %s %s unavailable, so results may be incomplete.", joinLabels(failed), plural(len(failed), "was", "were")))
}

func writeGuidanceHint(b *strings.Builder, bundle *state.ContextBundle) {
	if bundle == nil || len(bundle.Guidance) == 0 {
		return
	}
	b.WriteString("\n\nRelevant ISO 27001 Annex A references you could start from:\n")
	for _, g := range bundle.Guidance {
		b.WriteString(fmt.Sprintf("- %s %s\n", g.Reference, g.Title))
	}
}

func (s *Synthesizer) narrative(ctx context.Context, st *state.AgentState) string {
	fallback := fmt.Sprintf("I found %d %s related to your request:", len(st.Artifacts), plural(len(st.Artifacts), "item", "items"))
	if s.llm == nil {
		return fallback
	}

	var prompt strings.Builder
	prompt.WriteString("<system>\n")
	prompt.WriteString("You are an ISO 27001 compliance assistant. Write two or three sentences introducing the results below.\n")
	prompt.WriteString("Use ONLY the results. Do not list them one by one; the list is appended after your text.\n")
	prompt.WriteString("</system>\n\n<user_query>\n")
	prompt.WriteString(st.Query)
	prompt.WriteString("\n</user_query>\n\n<results>\n")
	for _, it := range st.Artifacts {
		prompt.WriteString(fmt.Sprintf("- %s (%s %s): %s\n", it.Title, it.Category, it.Reference, it.Description))
	}
	prompt.WriteString("</results>")

	ctx, cancel := context.WithTimeout(ctx, s.llmTimeout)
	defer cancel()
	text, err := s.llm.Generate(ctx, prompt.String(), llm.WithTemperature(0.3))
	if err != nil || strings.TrimSpace(text) == "" {
		if err != nil {
			s.logger.Warn(module, "Narrative unavailable, using template", map[string]interface{}{"error": err.Error()})
		}
		return fallback
	}
	return strings.TrimSpace(text)
}

const helpText = "I can help you manage ISO 27001 controls for your risk register. Try:\n" +
	"- \"Generate controls for risk <risk id>\"\n" +
	"- \"Generate controls for all my risks\"\n" +
	"- \"Show me the controls related to supply chain\"\n" +
	"- \"Show controls by risk category Operational Risk\"\n" +
	"- \"How many of my risks have controls?\""

func (s *Synthesizer) smallTalk(ctx context.Context, st *state.AgentState) string {
	if s.llm == nil {
		return helpText
	}
	ctx, cancel := context.WithTimeout(ctx, s.llmTimeout)
	defer cancel()
	text, err := s.llm.Chat(ctx, []llm.Message{
		{Role: "system", Content: "You are an ISO 27001 risk and control assistant. Answer briefly. If the request is unrelated to risk or control management, say what you can help with instead."},
		{Role: "user", Content: st.Query},
	}, llm.WithTemperature(0.3))
	if err != nil || strings.TrimSpace(text) == "" {
		return helpText
	}
	return strings.TrimSpace(text)
}

func joinLabels(kinds []state.SourceKind) string {
	labels := make([]string, 0, len(kinds))
	for _, k := range kinds {
		labels = append(labels, k.Label())
	}
	switch len(labels) {
	case 0:
		return "no sources"
	case 1:
		return labels[0]
	}
	return strings.Join(labels[:len(labels)-1], ", ") + " and " + labels[len(labels)-1]
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
