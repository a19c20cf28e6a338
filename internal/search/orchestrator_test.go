package search

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helixir/research-survey-service/internal/domain"
	"github.com/helixir/research-survey-service/internal/embedding"
	"github.com/helixir/research-survey-service/internal/papersources"
)

// stubSource serves canned results for orchestrator tests.
type stubSource struct {
	sourceType domain.SourceType
	papers     []*domain.Paper
	err        error
	gotParams  papersources.SearchParams
}

func (s *stubSource) Search(ctx context.Context, params papersources.SearchParams) (*papersources.SearchResult, error) {
	s.gotParams = params
	if s.err != nil {
		return nil, s.err
	}
	return &papersources.SearchResult{
		Papers:       s.papers,
		TotalResults: len(s.papers),
		Source:       s.sourceType,
	}, nil
}

func (s *stubSource) SourceType() domain.SourceType { return s.sourceType }
func (s *stubSource) Name() string                  { return string(s.sourceType) }
func (s *stubSource) IsEnabled() bool               { return true }

// flatEmbedder gives every text the same vector, so ranking is score-neutral.
type flatEmbedder struct{}

func (flatEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return []float32{1, 0}, nil
}
func (flatEmbedder) Dimensions() int { return 2 }

func sourcePaper(id, title, firstAuthor string, year int) *domain.Paper {
	date := time.Date(year, time.March, 1, 0, 0, 0, 0, time.UTC)
	return &domain.Paper{
		CanonicalID:     id,
		Title:           title,
		Abstract:        "About " + title,
		Authors:         []domain.Author{{Name: firstAuthor}},
		PublicationDate: &date,
	}
}

func newTestOrchestrator(cfg Config, sources ...papersources.PaperSource) *Orchestrator {
	registry := papersources.NewRegistry()
	for _, s := range sources {
		registry.Register(s)
	}
	ranker := NewRanker(embedding.NewCache(flatEmbedder{}, nil), zerolog.Nop())
	return NewOrchestrator(registry, ranker, cfg, nil, zerolog.Nop())
}

func testPlan(text string, maxPapers int) *domain.Plan {
	return &domain.Plan{
		Query: domain.Query{
			Text:      text,
			Keywords:  []string{text},
			MaxPapers: maxPapers,
		},
	}
}

func TestOrchestrator_Run(t *testing.T) {
	t.Run("deduplicates across sources and truncates", func(t *testing.T) {
		// Eight raw records across two sources: one identifier duplicate
		// and one preprint/published pair collapse to six unique papers,
		// of which the top five are returned.
		arxiv := &stubSource{
			sourceType: domain.SourceTypeArXiv,
			papers: []*domain.Paper{
				sourcePaper("arxiv:2301.1", "Paper A", "Jane Doe", 2023),
				sourcePaper("arxiv:2301.2", "Paper B", "John Smith", 2022),
				sourcePaper("arxiv:2301.3", "Paper C", "Alice Johnson", 2021),
				sourcePaper("arxiv:2301.4", "Paper D", "Bob Brown", 2020),
			},
		}
		openalex := &stubSource{
			sourceType: domain.SourceTypeOpenAlex,
			papers: []*domain.Paper{
				sourcePaper("arxiv:2301.1", "Paper A", "Jane Doe", 2023), // same id
				sourcePaper("doi:10.1/c", "Paper C", "A. Johnson", 2021), // fuzzy dup
				sourcePaper("doi:10.1/e", "Paper E", "Carol White", 2019),
				sourcePaper("doi:10.1/f", "Paper F", "Dan Black", 2018),
			},
		}

		o := newTestOrchestrator(Config{DefaultMaxPapers: 10, MaxPapersLimit: 100}, arxiv, openalex)
		result, err := o.Run(context.Background(), testPlan("test", 5))

		require.NoError(t, err)
		assert.Equal(t, 8, result.RawCount)
		assert.Equal(t, 6, result.UniqueCount)
		assert.Len(t, result.Papers, 5)
		assert.Equal(t, 1, result.DedupStats.IdentifierDups)
		assert.Equal(t, 1, result.DedupStats.FuzzyDups)

		seen := make(map[string]bool)
		for _, rp := range result.Papers {
			assert.False(t, seen[rp.Paper.CanonicalID], "duplicate %s in output", rp.Paper.CanonicalID)
			seen[rp.Paper.CanonicalID] = true
		}
	})

	t.Run("partial source failure still succeeds", func(t *testing.T) {
		healthy := &stubSource{
			sourceType: domain.SourceTypeArXiv,
			papers:     []*domain.Paper{sourcePaper("arxiv:1", "Paper A", "Jane Doe", 2023)},
		}
		broken := &stubSource{
			sourceType: domain.SourceTypeOpenAlex,
			err:        domain.NewExternalAPIError("OpenAlex", 503, "down", nil),
		}

		o := newTestOrchestrator(Config{}, healthy, broken)
		result, err := o.Run(context.Background(), testPlan("test", 10))

		require.NoError(t, err)
		assert.Len(t, result.Papers, 1)

		require.Len(t, result.Sources, 2)
		byType := make(map[domain.SourceType]SourceOutcome)
		for _, outcome := range result.Sources {
			byType[outcome.Source] = outcome
		}
		assert.False(t, byType[domain.SourceTypeArXiv].Failed)
		assert.True(t, byType[domain.SourceTypeOpenAlex].Failed)
		assert.NotEmpty(t, byType[domain.SourceTypeOpenAlex].Error)
	})

	t.Run("all sources failing is a total retrieval failure", func(t *testing.T) {
		a := &stubSource{sourceType: domain.SourceTypeArXiv, err: domain.NewExternalAPIError("arXiv", 500, "boom", nil)}
		b := &stubSource{sourceType: domain.SourceTypeOpenAlex, err: domain.NewExternalAPIError("OpenAlex", 503, "down", nil)}

		o := newTestOrchestrator(Config{}, a, b)
		_, err := o.Run(context.Background(), testPlan("test", 10))

		require.Error(t, err)
		assert.ErrorIs(t, err, domain.ErrTotalRetrievalFailure)
	})

	t.Run("all sources empty is a total retrieval failure", func(t *testing.T) {
		a := &stubSource{sourceType: domain.SourceTypeArXiv}
		b := &stubSource{sourceType: domain.SourceTypeOpenAlex}

		o := newTestOrchestrator(Config{}, a, b)
		_, err := o.Run(context.Background(), testPlan("test", 10))

		require.Error(t, err)
		assert.ErrorIs(t, err, domain.ErrTotalRetrievalFailure)
	})

	t.Run("no registered sources is a total retrieval failure", func(t *testing.T) {
		o := newTestOrchestrator(Config{})
		_, err := o.Run(context.Background(), testPlan("test", 10))

		require.Error(t, err)
		assert.ErrorIs(t, err, domain.ErrTotalRetrievalFailure)
	})

	t.Run("passes filters through to sources", func(t *testing.T) {
		source := &stubSource{
			sourceType: domain.SourceTypeArXiv,
			papers:     []*domain.Paper{sourcePaper("arxiv:1", "Paper A", "Jane Doe", 2023)},
		}

		o := newTestOrchestrator(Config{}, source)
		plan := &domain.Plan{
			Query: domain.Query{
				Text:         "question",
				Keywords:     []string{"kw one", "kw two"},
				YearFrom:     2020,
				YearTo:       2023,
				MaxPapers:    7,
				FullTextOnly: true,
			},
		}

		_, err := o.Run(context.Background(), plan)
		require.NoError(t, err)

		assert.Equal(t, []string{"kw one", "kw two"}, source.gotParams.Keywords)
		assert.Equal(t, 7, source.gotParams.MaxResults)
		assert.True(t, source.gotParams.FullTextOnly)
		require.NotNil(t, source.gotParams.DateFrom)
		assert.Equal(t, 2020, source.gotParams.DateFrom.Year())
		require.NotNil(t, source.gotParams.DateTo)
		assert.Equal(t, 2023, source.gotParams.DateTo.Year())
	})

	t.Run("caps requested count at the configured limit", func(t *testing.T) {
		source := &stubSource{
			sourceType: domain.SourceTypeArXiv,
			papers:     []*domain.Paper{sourcePaper("arxiv:1", "Paper A", "Jane Doe", 2023)},
		}

		o := newTestOrchestrator(Config{MaxPapersLimit: 50}, source)
		_, err := o.Run(context.Background(), testPlan("test", 500))

		require.NoError(t, err)
		assert.Equal(t, 50, source.gotParams.MaxResults)
	})
}
