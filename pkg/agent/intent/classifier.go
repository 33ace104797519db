// Package intent maps a free-text request onto the agent's closed set of intents.
package intent

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"iso-risk-agent-be/internal/entity"
	"iso-risk-agent-be/internal/pkg/logger"
	"iso-risk-agent-be/pkg/agent/guidance"
	"iso-risk-agent-be/pkg/agent/state"
	"iso-risk-agent-be/pkg/llm"
)

const module = "IntentClassifier"

var (
	reGenerate      = regexp.MustCompile(`(?i)\b(generate|create|suggest|recommend|propose|draft)\b`)
	reControlWord   = regexp.MustCompile(`(?i)\bcontrols?\b`)
	reUUID          = regexp.MustCompile(`(?i)\b[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}\b`)
	reRiskId        = regexp.MustCompile(`(?i)\brisk\s*(?:id)?\s*[:#]?\s*([a-z0-9][a-z0-9_-]*\d[a-z0-9_-]*)\b`)
	reCategoryWord  = regexp.MustCompile(`(?i)\b(by|per|in|for|under)\s+(the\s+)?(risk\s+)?categor(y|ies)\b|\brisk\s+categor(y|ies)\b|\bcategory\s*[:=]`)
	reCategoryValue = regexp.MustCompile(`(?i)categor(?:y|ies)\s*(?:[:=]|of|is|named)?\s*["']?([a-z][a-z -]{2,40}?)["']?\s*(?:$|[?.!,])`)
	reRelationship  = regexp.MustCompile(`(?i)\b(relationships?|graph|linked\s+to|connected|mitigat(?:es|ing|ed|ion)|coverage|how\s+many|statistics|stats|overview|breakdown)\b`)
	reAnnexCode     = regexp.MustCompile(`(?i)\b(?:annex\s+)?a\.([5-8])(?:\.\d+)?\b`)
)

// Classifier runs ordered rules first and asks the model only when none fire.
type Classifier struct {
	llm     llm.LLMProvider
	catalog *guidance.Catalog
	logger  logger.ILogger
}

func NewClassifier(llmProvider llm.LLMProvider, catalog *guidance.Catalog, log logger.ILogger) *Classifier {
	return &Classifier{llm: llmProvider, catalog: catalog, logger: log}
}

// Classify never fails; anything it cannot place is IntentOther.
func (c *Classifier) Classify(ctx context.Context, query string, user *entity.User) state.Intent {
	q := strings.TrimSpace(query)
	if q == "" {
		return state.OtherIntent()
	}

	if in, ok := c.byRules(q); ok {
		c.logger.Debug(module, "Classified by rule", map[string]interface{}{"intent": in.Kind})
		return in
	}

	in, err := c.byModel(ctx, q, user)
	if err != nil {
		c.logger.Warn(module, "ClassificationMiss", map[string]interface{}{
			"query": q,
			"error": err.Error(),
		})
		return state.OtherIntent()
	}
	c.logger.Debug(module, "Classified by model", map[string]interface{}{"intent": in.Kind})
	return in
}

// byRules is order sensitive. Generation beats everything, then explicit
// category phrasing, then relationship questions, then domain vocabulary.
// Domain phrasing ("supply chain controls") must never reach the category rule,
// which only fires on the literal word category.
func (c *Classifier) byRules(q string) (state.Intent, bool) {
	if reGenerate.MatchString(q) && reControlWord.MatchString(q) {
		if id := riskIdIn(q); id != "" {
			return state.GenerateForRisk(id), true
		}
		return state.GenerateForAllRisks(c.knownCategory(q)), true
	}

	if reCategoryWord.MatchString(q) {
		if cat := c.categoryIn(q); cat != "" {
			return state.QueryByCategory(cat), true
		}
	}

	if reRelationship.MatchString(q) {
		return state.RelationshipQuery(), true
	}

	params := c.queryParams(q)
	if params.Domain != "" || len(params.Keywords) > 0 || len(params.AnnexPrefixes) > 0 {
		return state.QueryGeneral(params), true
	}

	if reControlWord.MatchString(q) {
		return state.QueryGeneral(params), true
	}
	return state.Intent{}, false
}

func (c *Classifier) queryParams(q string) state.QueryParams {
	p := state.QueryParams{Keywords: c.catalog.MatchedKeywords(q)}

	lower := strings.ToLower(q)
	for _, d := range []entity.DomainCategory{entity.DomainOrganizational, entity.DomainPeople, entity.DomainPhysical, entity.DomainTechnological} {
		if strings.Contains(lower, strings.ToLower(string(d))+" control") {
			p.Domain = string(d)
			break
		}
	}

	seen := map[string]bool{}
	for _, m := range reAnnexCode.FindAllStringSubmatch(q, -1) {
		prefix := "A." + m[1] + "."
		if !seen[prefix] {
			seen[prefix] = true
			p.AnnexPrefixes = append(p.AnnexPrefixes, prefix)
		}
	}
	if p.Domain == "" && len(p.AnnexPrefixes) == 1 {
		if d, ok := entity.ParseDomainCategory(p.AnnexPrefixes[0]); ok {
			p.Domain = string(d)
		}
	}
	return p
}

// categoryIn prefers a catalog category and falls back to the words after "category".
func (c *Classifier) categoryIn(q string) string {
	if cat := c.knownCategory(q); cat != "" {
		return cat
	}
	if m := reCategoryValue.FindStringSubmatch(q); m != nil {
		return strings.TrimSpace(m[1])
	}
	return ""
}

func (c *Classifier) knownCategory(q string) string {
	lower := strings.ToLower(q)
	for _, cat := range c.catalog.Categories() {
		name := strings.ToLower(cat)
		if strings.Contains(lower, name) || strings.Contains(lower, strings.TrimSuffix(name, " risk")+" risks") {
			return cat
		}
	}
	return ""
}

func riskIdIn(q string) string {
	if id := reUUID.FindString(q); id != "" {
		return id
	}
	if m := reRiskId.FindStringSubmatch(q); m != nil {
		return m[1]
	}
	return ""
}

type modelAnswer struct {
	Intent   string   `json:"intent"`
	RiskId   string   `json:"risk_id"`
	Category string   `json:"category"`
	Domain   string   `json:"domain"`
	Keywords []string `json:"keywords"`
}

func (c *Classifier) byModel(ctx context.Context, q string, user *entity.User) (state.Intent, error) {
	if c.llm == nil {
		return state.Intent{}, llm.ErrGenerationUnavailable
	}
	raw, err := c.llm.Generate(ctx, buildPrompt(q, user), llm.WithTemperature(0))
	if err != nil {
		return state.Intent{}, err
	}
	body, err := llm.ExtractJSONObject(raw)
	if err != nil {
		return state.Intent{}, err
	}
	var ans modelAnswer
	if err := json.Unmarshal([]byte(body), &ans); err != nil {
		return state.Intent{}, fmt.Errorf("decode intent: %w", err)
	}

	var in state.Intent
	switch state.IntentKind(strings.ToLower(strings.TrimSpace(ans.Intent))) {
	case state.IntentGenerateForRisk:
		in = state.GenerateForRisk(strings.TrimSpace(ans.RiskId))
	case state.IntentGenerateForAllRisks:
		in = state.GenerateForAllRisks(strings.TrimSpace(ans.Category))
	case state.IntentQueryByCategory:
		in = state.QueryByCategory(strings.TrimSpace(ans.Category))
	case state.IntentQueryGeneral:
		in = state.QueryGeneral(state.QueryParams{Domain: ans.Domain, Keywords: ans.Keywords})
	case state.IntentRelationshipQuery:
		in = state.RelationshipQuery()
	case state.IntentOther:
		in = state.OtherIntent()
	default:
		return state.Intent{}, fmt.Errorf("%w: %q", state.ErrInvalidIntent, ans.Intent)
	}
	if err := in.Validate(); err != nil {
		return state.Intent{}, err
	}
	return in, nil
}

func buildPrompt(q string, user *entity.User) string {
	var prompt strings.Builder

	prompt.WriteString("<system>\n")
	prompt.WriteString("You classify requests sent to an ISO 27001 risk and control assistant.\n")
	prompt.WriteString("You do NOT answer the request. You only classify it.\n")
	prompt.WriteString("</system>\n\n")

	if user != nil {
		prompt.WriteString("<organization>\n")
		prompt.WriteString(fmt.Sprintf("Name: %s\nDomain: %s\n", user.OrganizationName, user.Domain))
		prompt.WriteString("</organization>\n\n")
	}

	prompt.WriteString("<user_query>\n")
	prompt.WriteString(q)
	prompt.WriteString("\n</user_query>\n\n")

	prompt.WriteString("<intent_definitions>\n")
	prompt.WriteString("generate_controls_for_risk: create controls for ONE risk. Requires risk_id.\n")
	prompt.WriteString("generate_controls_for_all_risks: create controls for the whole risk register. Optional category.\n")
	prompt.WriteString("query_controls_by_category: list controls filtered by a RISK CATEGORY the user names explicitly.\n")
	prompt.WriteString("query_controls_general: any other question about controls, including topics such as supply chain or security.\n")
	prompt.WriteString("relationship_query: questions about how risks and controls relate, coverage or counts.\n")
	prompt.WriteString("other: anything else.\n")
	prompt.WriteString("</intent_definitions>\n\n")

	prompt.WriteString("<output_format>\n")
	prompt.WriteString("Respond with ONLY valid JSON:\n")
	prompt.WriteString(`{"intent": "...", "risk_id": "", "category": "", "domain": "Organizational|People|Physical|Technological or empty", "keywords": []}`)
	prompt.WriteString("\n</output_format>")

	return prompt.String()
}
