package search

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/helixir/research-survey-service/internal/domain"
	"github.com/helixir/research-survey-service/internal/embedding"
)

// noAbstractPenalty scales the score of papers that only have a title to
// embed. A title alone matches queries too eagerly, so the penalty keeps
// abstract-backed candidates ahead at equal similarity.
const noAbstractPenalty = 0.85

// Ranker orders papers by semantic similarity to the query text.
type Ranker struct {
	cache  *embedding.Cache
	logger zerolog.Logger
}

// NewRanker creates a Ranker using the given embedding cache.
func NewRanker(cache *embedding.Cache, logger zerolog.Logger) *Ranker {
	return &Ranker{
		cache:  cache,
		logger: logger.With().Str("component", "ranker").Logger(),
	}
}

// Rank scores every paper against queryText and returns the top limit papers
// ordered by score descending, ties broken by newer publication date. Papers
// whose embedding cannot be computed stay in the result with score zero
// rather than disappearing after the user paid for their retrieval, and a
// failure to embed the query itself degrades to retrieval order the same
// way. An empty input yields an empty result without calling the embedder.
func (r *Ranker) Rank(ctx context.Context, queryText string, papers []*domain.Paper, limit int) ([]domain.RankedPaper, error) {
	if len(papers) == 0 {
		return []domain.RankedPaper{}, nil
	}

	queryVec, err := r.cache.Embed(ctx, queryText)
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("embedding query: %w", ctx.Err())
		}
		r.logger.Warn().Err(err).Msg("query embedding failed, returning retrieval order")
		return unranked(papers, limit), nil
	}

	ranked := make([]domain.RankedPaper, 0, len(papers))
	for _, p := range papers {
		score, err := r.score(ctx, queryVec, p)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			r.logger.Warn().Err(err).Str("canonical_id", p.CanonicalID).
				Msg("paper embedding failed, keeping with zero score")
			score = 0
		}
		ranked = append(ranked, domain.RankedPaper{Paper: *p, Score: score})
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].Score != ranked[j].Score {
			return ranked[i].Score > ranked[j].Score
		}
		return newerThan(ranked[i].Paper.PublicationDate, ranked[j].Paper.PublicationDate)
	})

	if limit > 0 && len(ranked) > limit {
		ranked = ranked[:limit]
	}
	return ranked, nil
}

// score embeds the paper's text and computes normalized similarity,
// applying the penalty when no abstract is available.
func (r *Ranker) score(ctx context.Context, queryVec []float32, p *domain.Paper) (float64, error) {
	text := p.Title
	if p.Abstract != "" {
		text = p.Title + "\n\n" + p.Abstract
	}

	vec, err := r.cache.EmbedPaper(ctx, p.CanonicalID, text)
	if err != nil {
		return 0, err
	}

	score := embedding.Similarity(queryVec, vec)
	if p.Abstract == "" {
		score *= noAbstractPenalty
	}
	return score, nil
}

// unranked preserves retrieval order with zero scores.
func unranked(papers []*domain.Paper, limit int) []domain.RankedPaper {
	if limit > 0 && len(papers) > limit {
		papers = papers[:limit]
	}
	ranked := make([]domain.RankedPaper, 0, len(papers))
	for _, p := range papers {
		ranked = append(ranked, domain.RankedPaper{Paper: *p})
	}
	return ranked
}

// newerThan orders publication dates descending with nil dates last.
func newerThan(a, b *time.Time) bool {
	switch {
	case a == nil:
		return false
	case b == nil:
		return true
	default:
		return a.After(*b)
	}
}
