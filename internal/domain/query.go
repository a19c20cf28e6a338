package domain

import "strings"

// MaxQueryLength bounds the raw query text accepted by the planner.
const MaxQueryLength = 2000

// Query is a planned search request. It is immutable once the planner has
// derived the keyword variants; downstream stages only read it.
type Query struct {
	// Text is the user's raw natural-language question.
	Text string `json:"text"`

	// Keywords are the planner-derived search variants. When the planner
	// degrades, this contains exactly the raw text.
	Keywords []string `json:"keywords"`

	// YearFrom and YearTo bound publication years when non-zero.
	YearFrom int `json:"year_from,omitempty"`
	YearTo   int `json:"year_to,omitempty"`

	// Sources lists the providers to fan out to. Empty means all enabled.
	Sources []SourceType `json:"sources,omitempty"`

	// MaxPapers is the requested result count after ranking.
	MaxPapers int `json:"max_papers"`

	// FullTextOnly restricts results to papers with retrievable full text.
	FullTextOnly bool `json:"full_text_only,omitempty"`
}

// EffectiveKeywords returns the keyword variants to search with, falling
// back to the raw text when planning produced nothing usable.
func (q *Query) EffectiveKeywords() []string {
	out := make([]string, 0, len(q.Keywords))
	for _, k := range q.Keywords {
		if s := strings.TrimSpace(k); s != "" {
			out = append(out, s)
		}
	}
	if len(out) == 0 && strings.TrimSpace(q.Text) != "" {
		out = append(out, strings.TrimSpace(q.Text))
	}
	return out
}

// ActionPlan is the ordered, human-readable trace of planner reasoning.
// It is shown to the user and never consumed by later pipeline stages.
type ActionPlan []string

// Plan is the Query Planner's full output for one request.
type Plan struct {
	Query Query      `json:"query"`
	Steps ActionPlan `json:"steps"`

	// Degraded is true when the planner fell back to the raw query because
	// the completion call failed or returned unparsable content.
	Degraded bool `json:"degraded"`
}
