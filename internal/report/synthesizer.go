// Package report synthesizes literature review reports from ranked papers
// using an LLM completion.
//
// Synthesis is all-or-nothing: either the full report body comes back from
// the model, or the caller gets domain.ErrSynthesisFailed. Partial reports
// are never returned.
package report

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/helixir/research-survey-service/internal/domain"
	"github.com/helixir/research-survey-service/internal/llm"
	"github.com/helixir/research-survey-service/internal/observability"
)

const (
	// maxAbstractChars truncates long abstracts in the prompt so a full
	// batch of papers stays within the model's context window.
	maxAbstractChars = 1500

	// maxCompletionTokens bounds the synthesized report length.
	maxCompletionTokens = 8192
)

// Synthesizer turns a titled set of papers into a literature review report.
type Synthesizer struct {
	completer llm.Completer
	metrics   *observability.Metrics
	logger    zerolog.Logger
}

// NewSynthesizer creates a Synthesizer. metrics may be nil.
func NewSynthesizer(completer llm.Completer, metrics *observability.Metrics, logger zerolog.Logger) *Synthesizer {
	return &Synthesizer{
		completer: completer,
		metrics:   metrics,
		logger:    logger.With().Str("component", "report").Logger(),
	}
}

// Synthesize generates a report over the given papers.
//
// The paper set must be non-empty and at most domain.MaxReportPapers long;
// anything else is an input validation error. Completion failures map to
// domain.ErrSynthesisFailed.
func (s *Synthesizer) Synthesize(ctx context.Context, userID uuid.UUID, title string, papers []domain.Paper) (*domain.Report, error) {
	if len(papers) == 0 {
		return nil, domain.NewValidationError("papers", "at least one paper is required")
	}
	if len(papers) > domain.MaxReportPapers {
		return nil, domain.NewValidationError("papers",
			fmt.Sprintf("at most %d papers per report, got %d", domain.MaxReportPapers, len(papers)))
	}
	if strings.TrimSpace(title) == "" {
		return nil, domain.NewValidationError("title", "title is required")
	}

	start := time.Now()
	result, err := s.completer.Complete(ctx, llm.Request{
		System:    synthesisSystemPrompt,
		Prompt:    buildSynthesisPrompt(title, papers),
		MaxTokens: maxCompletionTokens,
	})
	s.observe(time.Since(start), err)
	if err != nil {
		s.logger.Error().Err(err).Int("papers", len(papers)).Msg("report synthesis failed")
		return nil, fmt.Errorf("completing report: %w", domain.ErrSynthesisFailed)
	}

	body := strings.TrimSpace(result.Content)
	if body == "" {
		return nil, fmt.Errorf("empty completion: %w", domain.ErrSynthesisFailed)
	}

	report := &domain.Report{
		ID:        uuid.New(),
		UserID:    userID,
		Title:     title,
		Papers:    papers,
		Body:      body,
		CreatedAt: time.Now().UTC(),
	}
	if s.metrics != nil {
		s.metrics.ReportsGenerated.Inc()
	}
	return report, nil
}

func (s *Synthesizer) observe(elapsed time.Duration, err error) {
	if s.metrics == nil {
		return
	}
	provider := s.completer.Provider()
	s.metrics.LLMRequests.WithLabelValues("synthesize", provider).Inc()
	s.metrics.LLMRequestDuration.WithLabelValues("synthesize", provider).Observe(elapsed.Seconds())
	if err != nil {
		s.metrics.LLMRequestsFailed.WithLabelValues("synthesize", provider).Inc()
		s.metrics.ReportsFailed.Inc()
	}
}

const synthesisSystemPrompt = `You are a research analyst writing literature review reports for an academic audience.

Write in Markdown with exactly these sections:
1. "## Introduction" — frame the topic and why it matters.
2. "## Themes" — group the papers into 2-5 thematic clusters and discuss each, citing papers by title.
3. "## Synthesis" — connect findings across themes: agreements, contradictions, trends over time.
4. "## Research Gaps" — open questions the reviewed papers leave unanswered.

Ground every claim in the provided papers. Do not invent papers, authors or findings. Cite papers by their bracketed number, e.g. [3].`

// buildSynthesisPrompt renders the report title and the paper set.
func buildSynthesisPrompt(title string, papers []domain.Paper) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "Write a literature review report titled %q based on the following %d papers.\n", title, len(papers))

	for i, p := range papers {
		fmt.Fprintf(&sb, "\n[%d] %s\n", i+1, p.Title)
		if names := authorNames(p.Authors); names != "" {
			fmt.Fprintf(&sb, "Authors: %s\n", names)
		}
		if p.PublicationDate != nil {
			fmt.Fprintf(&sb, "Published: %s\n", p.PublicationDate.Format("2006-01-02"))
		}
		if p.Abstract != "" {
			fmt.Fprintf(&sb, "Abstract: %s\n", truncate(p.Abstract, maxAbstractChars))
		}
	}

	return sb.String()
}

func authorNames(authors []domain.Author) string {
	names := make([]string, 0, len(authors))
	for _, a := range authors {
		if a.Name != "" {
			names = append(names, a.Name)
		}
	}
	return strings.Join(names, ", ")
}

// truncate cuts s to at most max bytes without splitting a rune.
func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}
