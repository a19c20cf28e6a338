// Package papersources defines the abstraction shared by all academic paper
// source clients. Each external database (arXiv, Semantic Scholar, OpenAlex)
// implements the PaperSource interface, so the retrieval pipeline can fan out
// across sources concurrently through a single API.
//
// Example usage:
//
//	source := arxiv.New(arxiv.Config{Enabled: true})
//	params := papersources.SearchParams{
//		Keywords:   []string{"CRISPR gene editing", "Cas9 off-target"},
//		MaxResults: 50,
//	}
//	result, err := source.Search(ctx, params)
package papersources

import (
	"context"
	"time"

	"github.com/helixir/research-survey-service/internal/domain"
)

// SearchParams defines the parameters for searching academic papers.
// All fields except Keywords are optional filters.
type SearchParams struct {
	// Keywords are the query variants to search for. Sources combine them
	// with an OR-style operator in their native query syntax. At least one
	// keyword is required.
	Keywords []string

	// DateFrom filters papers published on or after this date.
	// If nil, no lower bound is applied.
	DateFrom *time.Time

	// DateTo filters papers published on or before this date.
	// If nil, no upper bound is applied.
	DateTo *time.Time

	// MaxResults caps the number of papers returned across all pages.
	// Sources page through their result sets internally until this many
	// papers are collected or the result set is exhausted. A value of 0
	// uses the source's configured default.
	MaxResults int

	// FullTextOnly restricts results to papers with a retrievable full
	// text (an open access PDF or equivalent).
	FullTextOnly bool
}

// SearchResult contains the outcome of a paper source search.
type SearchResult struct {
	// Papers holds the retrieved papers, already normalized to the domain
	// record shape. May be empty when nothing matched.
	Papers []*domain.Paper

	// TotalResults is the total number of papers matching the query as
	// reported by the source, regardless of MaxResults. May be an
	// estimate for large result sets.
	TotalResults int

	// Source identifies which paper source produced these results.
	Source domain.SourceType

	// SearchDuration is the wall time of the search, including paging,
	// network latency and parsing.
	SearchDuration time.Duration
}

// PaperSource is implemented by every external paper database client.
type PaperSource interface {
	// Search queries the source for papers matching the given parameters,
	// paging through the source's result set as needed. Implementations
	// must respect context cancellation, apply their own rate limiting,
	// and normalize responses to domain.Paper records with canonical IDs.
	Search(ctx context.Context, params SearchParams) (*SearchResult, error)

	// SourceType returns the type identifier for this source.
	// Used for attribution, deduplication and metrics labels.
	SourceType() domain.SourceType

	// Name returns a human-readable name for logging and error messages.
	Name() string

	// IsEnabled reports whether this source participates in searches.
	// A source may be disabled by configuration or a missing API key.
	IsEnabled() bool
}
