// Package planner turns a natural-language research question into keyword
// variants and an ordered action plan using an LLM completion.
//
// Planning is best-effort. When the completion call fails, returns malformed
// JSON, or produces an unusable plan, the planner degrades to the raw query
// text as the single keyword variant and a generic action plan. A request is
// never rejected because planning failed.
package planner

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/helixir/research-survey-service/internal/domain"
	"github.com/helixir/research-survey-service/internal/llm"
	"github.com/helixir/research-survey-service/internal/observability"
)

const (
	// MinKeywords and MaxKeywords bound the keyword variants requested
	// from and accepted back out of the model.
	MinKeywords = 2
	MaxKeywords = 5

	// MinPlanSteps and MaxPlanSteps bound the action plan length. A plan
	// shorter than MinPlanSteps is treated as a planning failure.
	MinPlanSteps = 3
	MaxPlanSteps = 8

	// maxCompletionTokens bounds planner completions; plans are short.
	maxCompletionTokens = 1024
)

// Planner derives search keywords and an action plan from a raw query.
type Planner struct {
	completer llm.Completer
	metrics   *observability.Metrics
	logger    zerolog.Logger
}

// New creates a Planner. metrics may be nil.
func New(completer llm.Completer, metrics *observability.Metrics, logger zerolog.Logger) *Planner {
	return &Planner{
		completer: completer,
		metrics:   metrics,
		logger:    logger.With().Str("component", "planner").Logger(),
	}
}

// planResponse is the JSON structure requested from the model.
type planResponse struct {
	Keywords []string `json:"keywords"`
	Plan     []string `json:"plan"`
}

// Plan expands the query into keyword variants and an action plan.
// The returned plan always carries usable keywords; on any planning failure
// it falls back to the raw query text and sets Degraded.
func (p *Planner) Plan(ctx context.Context, query domain.Query) *domain.Plan {
	start := time.Now()

	result, err := p.completer.Complete(ctx, llm.Request{
		System:     systemPrompt,
		Prompt:     buildUserPrompt(query),
		JSONOutput: true,
		MaxTokens:  maxCompletionTokens,
	})
	p.observe(time.Since(start), err)
	if err != nil {
		p.logger.Warn().Err(err).Msg("plan completion failed, degrading to raw query")
		return p.degrade(query)
	}

	parsed, err := parsePlanResponse(result.Content)
	if err != nil {
		p.logger.Warn().Err(err).Msg("plan response unusable, degrading to raw query")
		return p.degrade(query)
	}

	query.Keywords = parsed.Keywords
	return &domain.Plan{
		Query: query,
		Steps: parsed.Plan,
	}
}

// degrade builds the fallback plan from the raw query text.
func (p *Planner) degrade(query domain.Query) *domain.Plan {
	if p.metrics != nil {
		p.metrics.SearchesDegraded.Inc()
	}
	query.Keywords = nil
	query.Keywords = query.EffectiveKeywords()
	return &domain.Plan{
		Query:    query,
		Steps:    fallbackSteps(query),
		Degraded: true,
	}
}

func (p *Planner) observe(elapsed time.Duration, err error) {
	if p.metrics == nil {
		return
	}
	provider := p.completer.Provider()
	p.metrics.LLMRequests.WithLabelValues("plan", provider).Inc()
	p.metrics.LLMRequestDuration.WithLabelValues("plan", provider).Observe(elapsed.Seconds())
	if err != nil {
		p.metrics.LLMRequestsFailed.WithLabelValues("plan", provider).Inc()
	}
}

// parsePlanResponse validates the model output. Keywords are trimmed,
// deduplicated case-insensitively and capped at MaxKeywords; the plan is
// capped at MaxPlanSteps. An empty keyword list or a plan shorter than
// MinPlanSteps is an error, which callers treat as a degrade signal.
func parsePlanResponse(content string) (*planResponse, error) {
	var parsed planResponse
	if err := json.Unmarshal([]byte(content), &parsed); err != nil {
		return nil, fmt.Errorf("parsing plan response: %w", err)
	}

	seen := make(map[string]struct{}, len(parsed.Keywords))
	keywords := make([]string, 0, len(parsed.Keywords))
	for _, kw := range parsed.Keywords {
		kw = strings.TrimSpace(kw)
		if kw == "" {
			continue
		}
		lower := strings.ToLower(kw)
		if _, dup := seen[lower]; dup {
			continue
		}
		seen[lower] = struct{}{}
		keywords = append(keywords, kw)
		if len(keywords) == MaxKeywords {
			break
		}
	}
	if len(keywords) == 0 {
		return nil, fmt.Errorf("plan response contains no keywords")
	}

	steps := make([]string, 0, len(parsed.Plan))
	for _, step := range parsed.Plan {
		if step = strings.TrimSpace(step); step != "" {
			steps = append(steps, step)
		}
		if len(steps) == MaxPlanSteps {
			break
		}
	}
	if len(steps) < MinPlanSteps {
		return nil, fmt.Errorf("plan response has %d steps, need at least %d", len(steps), MinPlanSteps)
	}

	parsed.Keywords = keywords
	parsed.Plan = steps
	return &parsed, nil
}

// fallbackSteps describes the pipeline a degraded request will follow.
func fallbackSteps(query domain.Query) domain.ActionPlan {
	keyword := ""
	if kws := query.EffectiveKeywords(); len(kws) > 0 {
		keyword = kws[0]
	}
	return domain.ActionPlan{
		fmt.Sprintf("Search academic sources for %q.", keyword),
		"Merge results and remove duplicate records.",
		"Rank papers by relevance to the original question.",
	}
}

const systemPrompt = `You are a research librarian planning a literature search across academic databases (arXiv, Semantic Scholar, OpenAlex).

You MUST respond with valid JSON in exactly this format:
{"keywords": ["variant 1", "variant 2"], "plan": ["step 1", "step 2", "step 3"]}

Guidelines for keywords:
1. Produce between 2 and 5 search query variants covering the question from different angles.
2. Each variant is a short phrase suitable as a database search query, not a full sentence.
3. Include both abbreviated and expanded forms of technical terms when relevant.
4. Avoid generic terms such as "study", "research" or "analysis".

Guidelines for the plan:
1. Produce between 3 and 8 ordered steps describing how the search will be carried out and the results evaluated.
2. Each step is one concise sentence a user can follow.`

// buildUserPrompt renders the query and its filters for the model.
func buildUserPrompt(query domain.Query) string {
	var sb strings.Builder

	sb.WriteString("Plan a literature search for the following research question.\n\n")

	if query.YearFrom > 0 && query.YearTo > 0 {
		fmt.Fprintf(&sb, "Restrict to papers published between %d and %d.\n", query.YearFrom, query.YearTo)
	} else if query.YearFrom > 0 {
		fmt.Fprintf(&sb, "Restrict to papers published in %d or later.\n", query.YearFrom)
	} else if query.YearTo > 0 {
		fmt.Fprintf(&sb, "Restrict to papers published in %d or earlier.\n", query.YearTo)
	}
	if query.FullTextOnly {
		sb.WriteString("Only papers with retrievable full text are wanted.\n")
	}

	sb.WriteString("\nResearch question:\n---\n")
	sb.WriteString(query.Text)
	sb.WriteString("\n---")

	return sb.String()
}
