// Package generation drafts candidate controls for risks with the language model.
package generation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"iso-risk-agent-be/internal/entity"
	"iso-risk-agent-be/internal/pkg/logger"
	"iso-risk-agent-be/internal/repository/contract"
	"iso-risk-agent-be/pkg/agent/guidance"
	"iso-risk-agent-be/pkg/agent/state"
	"iso-risk-agent-be/pkg/llm"
)

const (
	module        = "ControlGenerator"
	MinCandidates = 3
	MaxCandidates = 5
)

var ErrNoCandidates = errors.New("model returned no usable controls")

type Settings struct {
	MaxRisksPerRun int
	LLMTimeout     time.Duration
}

type Generator struct {
	llm      llm.LLMProvider
	docs     contract.DocumentStore
	catalog  *guidance.Catalog
	logger   logger.ILogger
	settings Settings
}

func NewGenerator(llmProvider llm.LLMProvider, docs contract.DocumentStore, catalog *guidance.Catalog, log logger.ILogger, settings Settings) *Generator {
	if settings.MaxRisksPerRun <= 0 {
		settings.MaxRisksPerRun = 3
	}
	if settings.LLMTimeout <= 0 {
		settings.LLMTimeout = 60 * time.Second
	}
	return &Generator{llm: llmProvider, docs: docs, catalog: catalog, logger: log, settings: settings}
}

// Targets are the risks a generation run will draft controls for.
// Existing holds the number of stored controls per risk and seeds the
// control_id sequence. Notice explains an empty target list.
type Targets struct {
	Risks    []*entity.Risk
	Existing map[string]int
	Notice   string
}

// ResolveTargets skips risks that already carry controls. Store errors are returned.
func (g *Generator) ResolveTargets(ctx context.Context, in state.Intent, userId string) (*Targets, error) {
	t := &Targets{Existing: map[string]int{}}

	switch in.Kind {
	case state.IntentGenerateForRisk:
		risks, err := g.docs.FindRisks(ctx, contract.RiskFilter{UserId: userId, Ids: []string{in.Risk.RiskId}})
		if err != nil {
			return nil, fmt.Errorf("find risk %s: %w", in.Risk.RiskId, err)
		}
		if len(risks) == 0 {
			t.Notice = fmt.Sprintf("I couldn't find risk %s in your risk register.", in.Risk.RiskId)
			return t, nil
		}
		risk := risks[0]
		n, err := g.countControls(ctx, userId, risk.Id)
		if err != nil {
			return nil, err
		}
		if n > 0 {
			t.Existing[risk.Id] = n
			t.Notice = fmt.Sprintf("You already have %d controls for risk \"%s\". Ask me to show them, or delete them first if you want new suggestions.", n, risk.DisplayName())
			return t, nil
		}
		t.Risks = []*entity.Risk{risk}

	case state.IntentGenerateForAllRisks:
		risks, err := g.docs.FindRisks(ctx, contract.RiskFilter{UserId: userId, Category: in.AllRisks.Category})
		if err != nil {
			return nil, fmt.Errorf("find risks: %w", err)
		}
		if len(risks) == 0 {
			t.Notice = "Your risk register has no risks to generate controls for yet."
			if in.AllRisks.Category != "" {
				t.Notice = fmt.Sprintf("Your risk register has no %s entries yet.", in.AllRisks.Category)
			}
			return t, nil
		}
		for _, r := range risks {
			n, err := g.countControls(ctx, userId, r.Id)
			if err != nil {
				return nil, err
			}
			if n > 0 {
				t.Existing[r.Id] = n
				continue
			}
			if len(t.Risks) < g.settings.MaxRisksPerRun {
				t.Risks = append(t.Risks, r)
			}
		}
		if len(t.Risks) == 0 {
			t.Notice = fmt.Sprintf("All %d of your risks already have controls.", len(risks))
		}

	default:
		return nil, fmt.Errorf("%w: %s is not a generation intent", state.ErrInvalidIntent, in.Kind)
	}
	return t, nil
}

func (g *Generator) countControls(ctx context.Context, userId, riskId string) (int, error) {
	controls, err := g.docs.FindControls(ctx, contract.ControlFilter{UserId: userId, RiskId: riskId})
	if err != nil {
		return 0, fmt.Errorf("find controls for risk %s: %w", riskId, err)
	}
	return len(controls), nil
}

// Failure records a risk the model could not draft controls for.
type Failure struct {
	RiskId string
	Err    error
}

// Generate drafts candidates for every target risk. A risk that fails is
// reported and skipped; the others still produce candidates.
func (g *Generator) Generate(ctx context.Context, targets *Targets, user *entity.User, userId string, bundle *state.ContextBundle) ([]*entity.Control, []Failure) {
	var (
		out      []*entity.Control
		failures []Failure
	)
	for _, risk := range targets.Risks {
		controls, err := g.generateFor(ctx, risk, user, bundle)
		if err != nil {
			g.logger.Warn(module, "Generation failed for risk", map[string]interface{}{
				"risk_id": risk.Id,
				"error":   err.Error(),
			})
			failures = append(failures, Failure{RiskId: risk.Id, Err: err})
			continue
		}
		Backfill(controls, risk, userId, targets.Existing[risk.Id]+1)
		out = append(out, controls...)
	}
	g.logger.Info(module, "Candidates generated", map[string]interface{}{
		"risks":      len(targets.Risks),
		"candidates": len(out),
		"failures":   len(failures),
	})
	return out, failures
}

type candidate struct {
	ControlId              string `json:"control_id"`
	Title                  string `json:"title"`
	Description            string `json:"description"`
	DomainCategory         string `json:"domain_category"`
	AnnexReference         string `json:"annex_reference"`
	ControlStatement       string `json:"control_statement"`
	ImplementationGuidance string `json:"implementation_guidance"`
}

func (g *Generator) generateFor(ctx context.Context, risk *entity.Risk, user *entity.User, bundle *state.ContextBundle) ([]*entity.Control, error) {
	if g.llm == nil {
		return nil, llm.ErrGenerationUnavailable
	}
	ctx, cancel := context.WithTimeout(ctx, g.settings.LLMTimeout)
	defer cancel()

	raw, err := g.llm.Generate(ctx, g.buildPrompt(risk, user, bundle), llm.WithTemperature(0.7))
	if err != nil {
		return nil, err
	}
	return g.parse(raw, risk)
}

func (g *Generator) parse(raw string, risk *entity.Risk) ([]*entity.Control, error) {
	body, err := llm.ExtractJSONArray(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoCandidates, err)
	}
	var cands []candidate
	if err := json.Unmarshal([]byte(body), &cands); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoCandidates, err)
	}

	var out []*entity.Control
	for _, c := range cands {
		if strings.TrimSpace(c.Title) == "" {
			continue
		}
		out = append(out, &entity.Control{
			ControlId:              strings.TrimSpace(c.ControlId),
			Title:                  strings.TrimSpace(c.Title),
			Description:            strings.TrimSpace(c.Description),
			DomainCategory:         g.domainFor(c, risk),
			AnnexReference:         strings.ToUpper(strings.TrimSpace(c.AnnexReference)),
			ControlStatement:       strings.TrimSpace(c.ControlStatement),
			ImplementationGuidance: strings.TrimSpace(c.ImplementationGuidance),
		})
		if len(out) == MaxCandidates {
			break
		}
	}
	if len(out) == 0 {
		return nil, ErrNoCandidates
	}
	return out, nil
}

// domainFor trusts the model's category, then the Annex reference, then the
// risk category's usual domain.
func (g *Generator) domainFor(c candidate, risk *entity.Risk) entity.DomainCategory {
	if d, ok := entity.ParseDomainCategory(c.DomainCategory); ok {
		return d
	}
	if d, ok := entity.ParseDomainCategory(c.AnnexReference); ok {
		return d
	}
	return g.catalog.DomainsForCategory(risk.Category)[0]
}

func (g *Generator) buildPrompt(risk *entity.Risk, user *entity.User, bundle *state.ContextBundle) string {
	var prompt strings.Builder

	prompt.WriteString("<system>\n")
	prompt.WriteString(fmt.Sprintf("You are an ISO/IEC 27001:2022 consultant. Propose %d to %d Annex A controls that treat the risk below.\n", MinCandidates, MaxCandidates))
	prompt.WriteString("Prefer controls that fit the organisation and do not duplicate the existing ones.\n")
	prompt.WriteString("</system>\n\n")

	prompt.WriteString("<risk>\n")
	prompt.WriteString(fmt.Sprintf("Title: %s\nDescription: %s\nCategory: %s\nLikelihood: %s\nImpact: %s\n",
		risk.DisplayName(), risk.Description, risk.Category, risk.Likelihood, risk.Impact))
	if risk.TreatmentStrategy != "" {
		prompt.WriteString(fmt.Sprintf("Treatment strategy: %s\n", risk.TreatmentStrategy))
	}
	prompt.WriteString("</risk>\n\n")

	if user != nil {
		prompt.WriteString("<organization>\n")
		prompt.WriteString(fmt.Sprintf("Name: %s\nDomain: %s\nLocation: %s\n", user.OrganizationName, user.Domain, user.Location))
		prompt.WriteString("</organization>\n\n")
	}

	if bundle != nil {
		similar := 0
		for _, it := range bundle.Items {
			if it.Kind != entity.ArtifactControl {
				continue
			}
			if similar == 0 {
				prompt.WriteString("<similar_controls>\n")
			}
			prompt.WriteString(fmt.Sprintf("- %s (%s) %s\n", it.Title, it.Reference, it.Description))
			if similar++; similar == 3 {
				break
			}
		}
		if similar > 0 {
			prompt.WriteString("</similar_controls>\n\n")
		}

		if len(bundle.PeerControls) > 0 {
			prompt.WriteString("<peer_controls>\n")
			for _, p := range bundle.PeerControls {
				prompt.WriteString(fmt.Sprintf("- %s (%s), chosen by %d organisations in the same domain\n", p.Title, p.AnnexReference, p.UsageCount))
			}
			prompt.WriteString("</peer_controls>\n\n")
		}
	}

	prompt.WriteString("<annex_guidance>\n")
	for _, gi := range g.guidanceFor(risk, bundle) {
		prompt.WriteString(fmt.Sprintf("- %s %s (%s)\n", gi.Reference, gi.Title, gi.Domain))
	}
	prompt.WriteString("</annex_guidance>\n\n")

	prompt.WriteString("<output_format>\n")
	prompt.WriteString("Respond with ONLY a JSON array:\n")
	prompt.WriteString(`[{"title": "...", "description": "...", "domain_category": "Organizational|People|Physical|Technological", "annex_reference": "A.x.y", "control_statement": "...", "implementation_guidance": "..."}]`)
	prompt.WriteString("\n</output_format>")

	return prompt.String()
}

// guidanceFor uses the retrieved guidance, topped up with the first
// controls of the domains that usually treat the risk category.
func (g *Generator) guidanceFor(risk *entity.Risk, bundle *state.ContextBundle) []state.GuidanceItem {
	var items []state.GuidanceItem
	if bundle != nil {
		items = append(items, bundle.Guidance...)
	}
	for _, d := range g.catalog.DomainsForCategory(risk.Category) {
		for i, ctl := range g.catalog.ByDomain(d) {
			if i == 3 {
				break
			}
			items = append(items, state.GuidanceItem{Reference: ctl.Reference, Title: ctl.Title, Domain: string(ctl.Domain)})
		}
	}
	return guidance.Dedupe(items)
}
