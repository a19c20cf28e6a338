// Package search runs the retrieval pipeline for one planned query: fan out
// to every enabled paper source, merge and deduplicate the results, then
// rank them against the original question.
package search

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/helixir/research-survey-service/internal/dedup"
	"github.com/helixir/research-survey-service/internal/domain"
	"github.com/helixir/research-survey-service/internal/observability"
	"github.com/helixir/research-survey-service/internal/papersources"
)

// Config bounds one retrieval run.
type Config struct {
	// OverallTimeout caps the whole fan-out, distinct from the per-source
	// HTTP timeouts. Zero means no additional deadline.
	OverallTimeout time.Duration

	// DefaultMaxPapers applies when the query does not request a count.
	DefaultMaxPapers int

	// MaxPapersLimit caps the requested count.
	MaxPapersLimit int
}

// SourceOutcome reports how one source fared during the fan-out.
type SourceOutcome struct {
	Source     domain.SourceType `json:"source"`
	PaperCount int               `json:"paper_count"`
	Duration   time.Duration     `json:"duration"`
	Failed     bool              `json:"failed"`
	Error      string            `json:"error,omitempty"`
}

// Result is the outcome of one retrieval run.
type Result struct {
	// Papers is the ranked, deduplicated result set, at most MaxPapers long.
	Papers []domain.RankedPaper

	// Sources reports the per-source outcomes, including failures.
	Sources []SourceOutcome

	// RawCount is the number of records retrieved before deduplication;
	// UniqueCount the number after.
	RawCount    int
	UniqueCount int

	// DedupStats breaks the removed duplicates down by stage.
	DedupStats dedup.Stats
}

// Orchestrator coordinates source fan-out, deduplication and ranking.
type Orchestrator struct {
	registry *papersources.Registry
	ranker   *Ranker
	metrics  *observability.Metrics
	logger   zerolog.Logger
	cfg      Config
}

// NewOrchestrator creates an Orchestrator. metrics may be nil.
func NewOrchestrator(registry *papersources.Registry, ranker *Ranker, cfg Config, metrics *observability.Metrics, logger zerolog.Logger) *Orchestrator {
	if cfg.DefaultMaxPapers <= 0 {
		cfg.DefaultMaxPapers = 10
	}
	if cfg.MaxPapersLimit <= 0 {
		cfg.MaxPapersLimit = 100
	}
	return &Orchestrator{
		registry: registry,
		ranker:   ranker,
		metrics:  metrics,
		logger:   logger.With().Str("component", "search").Logger(),
		cfg:      cfg,
	}
}

// Run executes the retrieval pipeline for a planned query.
//
// The run succeeds as long as at least one source returned papers; individual
// source failures are reported in Result.Sources but do not abort the run.
// When every source failed or returned nothing, Run returns
// domain.ErrTotalRetrievalFailure so the caller can refund the charge.
func (o *Orchestrator) Run(ctx context.Context, plan *domain.Plan) (*Result, error) {
	start := time.Now()
	if o.metrics != nil {
		o.metrics.SearchesStarted.Inc()
		defer func() {
			o.metrics.SearchDuration.Observe(time.Since(start).Seconds())
		}()
	}

	if o.cfg.OverallTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.cfg.OverallTimeout)
		defer cancel()
	}

	query := plan.Query
	maxPapers := o.NormalizeMaxPapers(query.MaxPapers)

	params := buildSearchParams(&query, maxPapers)
	sourceResults := o.registry.SearchSources(ctx, params, query.Sources)

	var (
		raw      []*domain.Paper
		outcomes = make([]SourceOutcome, 0, len(sourceResults))
	)
	for _, sr := range sourceResults {
		outcome := SourceOutcome{Source: sr.Source}
		switch {
		case sr.Error != nil:
			outcome.Failed = true
			outcome.Error = sr.Error.Error()
			o.observeSource(sr.Source, "error", 0, sr.Error)
			o.logger.Warn().Err(sr.Error).Str("source", string(sr.Source)).Msg("source search failed")
		default:
			outcome.PaperCount = len(sr.Result.Papers)
			outcome.Duration = sr.Result.SearchDuration
			raw = append(raw, sr.Result.Papers...)
			o.observeSource(sr.Source, "success", len(sr.Result.Papers), nil)
		}
		outcomes = append(outcomes, outcome)
	}

	if len(raw) == 0 {
		if o.metrics != nil {
			o.metrics.SearchesFailed.Inc()
		}
		if len(sourceResults) == 0 {
			return nil, fmt.Errorf("no sources available: %w", domain.ErrTotalRetrievalFailure)
		}
		return nil, fmt.Errorf("all %d sources failed or returned nothing: %w",
			len(sourceResults), domain.ErrTotalRetrievalFailure)
	}

	unique, stats := dedup.Deduplicate(raw)
	if o.metrics != nil {
		o.metrics.PapersDeduplicated.WithLabelValues("identifier").Add(float64(stats.IdentifierDups))
		o.metrics.PapersDeduplicated.WithLabelValues("fuzzy").Add(float64(stats.FuzzyDups))
	}

	ranked, err := o.ranker.Rank(ctx, query.Text, unique, maxPapers)
	if err != nil {
		if o.metrics != nil {
			o.metrics.SearchesFailed.Inc()
		}
		return nil, fmt.Errorf("ranking results: %w", err)
	}

	if o.metrics != nil {
		o.metrics.SearchesCompleted.Inc()
	}
	o.logger.Info().
		Int("raw", len(raw)).
		Int("unique", len(unique)).
		Int("returned", len(ranked)).
		Dur("elapsed", time.Since(start)).
		Msg("search completed")

	return &Result{
		Papers:      ranked,
		Sources:     outcomes,
		RawCount:    len(raw),
		UniqueCount: len(unique),
		DedupStats:  stats,
	}, nil
}

// NormalizeMaxPapers resolves a requested count to the value a run will
// use, applying the default and the cap. Billing must use the same value,
// so the charged count and the retrieved count never diverge.
func (o *Orchestrator) NormalizeMaxPapers(requested int) int {
	if requested <= 0 {
		return o.cfg.DefaultMaxPapers
	}
	if requested > o.cfg.MaxPapersLimit {
		return o.cfg.MaxPapersLimit
	}
	return requested
}

func (o *Orchestrator) observeSource(source domain.SourceType, outcome string, papers int, err error) {
	if o.metrics == nil {
		return
	}
	o.metrics.SourceSearches.WithLabelValues(string(source), outcome).Inc()
	if papers > 0 {
		o.metrics.PapersRetrieved.WithLabelValues(string(source)).Add(float64(papers))
	}
	if err != nil && errors.Is(err, domain.ErrRateLimited) {
		o.metrics.SourceRateLimited.WithLabelValues(string(source)).Inc()
	}
}

// buildSearchParams translates query filters to source search parameters.
// Year bounds expand to whole calendar years; each source asks for the full
// requested count since any subset of sources may fail.
func buildSearchParams(query *domain.Query, maxPapers int) papersources.SearchParams {
	params := papersources.SearchParams{
		Keywords:     query.EffectiveKeywords(),
		MaxResults:   maxPapers,
		FullTextOnly: query.FullTextOnly,
	}
	if query.YearFrom > 0 {
		from := time.Date(query.YearFrom, time.January, 1, 0, 0, 0, 0, time.UTC)
		params.DateFrom = &from
	}
	if query.YearTo > 0 {
		to := time.Date(query.YearTo, time.December, 31, 23, 59, 59, 0, time.UTC)
		params.DateTo = &to
	}
	return params
}
