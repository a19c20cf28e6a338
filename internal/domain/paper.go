// Package domain provides domain models and business logic for the Research Survey Service.
package domain

import (
	"strings"
	"time"
)

// SourceType represents the external provider that supplied paper data.
type SourceType string

const (
	SourceTypeArXiv           SourceType = "arxiv"
	SourceTypeSemanticScholar SourceType = "semantic_scholar"
	SourceTypeOpenAlex        SourceType = "openalex"
)

// AllSourceTypes lists every supported provider in default fan-out order.
func AllSourceTypes() []SourceType {
	return []SourceType{SourceTypeArXiv, SourceTypeSemanticScholar, SourceTypeOpenAlex}
}

// IsValid returns true if the source type is a known provider.
func (s SourceType) IsValid() bool {
	switch s {
	case SourceTypeArXiv, SourceTypeSemanticScholar, SourceTypeOpenAlex:
		return true
	default:
		return false
	}
}

// PaperIdentifiers holds the external identifiers a provider may report for a paper.
type PaperIdentifiers struct {
	DOI               string
	ArXivID           string
	SemanticScholarID string
	OpenAlexID        string
}

// GenerateCanonicalID generates a source-qualified canonical identifier.
// Priority order: DOI > ArXiv > SemanticScholar > OpenAlex.
// Returns empty string if no identifiers are available.
func GenerateCanonicalID(ids PaperIdentifiers) string {
	if doi := strings.TrimSpace(ids.DOI); doi != "" {
		// DOIs are case-insensitive; normalize to lowercase so the same
		// paper reported by two providers collapses to one identifier.
		return "doi:" + strings.ToLower(doi)
	}
	if arxiv := strings.TrimSpace(ids.ArXivID); arxiv != "" {
		return "arxiv:" + arxiv
	}
	if s2 := strings.TrimSpace(ids.SemanticScholarID); s2 != "" {
		return "s2:" + s2
	}
	if openalex := strings.TrimSpace(ids.OpenAlexID); openalex != "" {
		return "openalex:" + openalex
	}
	return ""
}

// Author represents a paper author with an optional affiliation.
type Author struct {
	Name        string `json:"name"`
	Affiliation string `json:"affiliation,omitempty"`
}

// Paper is the normalized record shape every source adapter produces.
// Records are never mutated after retrieval; a re-fetch creates a new record.
type Paper struct {
	// CanonicalID is the source-qualified identifier, e.g. "doi:10.1000/x"
	// or "arxiv:2101.00001". Two records with the same CanonicalID are the
	// same paper.
	CanonicalID string `json:"canonical_id"`

	Title           string     `json:"title"`
	Authors         []Author   `json:"authors"`
	Abstract        string     `json:"abstract,omitempty"`
	PublicationDate *time.Time `json:"publication_date,omitempty"`
	Source          SourceType `json:"source"`
	URL             string     `json:"url,omitempty"`
	PDFURL          string     `json:"pdf_url,omitempty"`
	CitationCount   int        `json:"citation_count,omitempty"`
	FullText        bool       `json:"full_text"`
}

// FirstAuthor returns the name of the first listed author, or empty string.
func (p *Paper) FirstAuthor() string {
	if len(p.Authors) == 0 {
		return ""
	}
	return p.Authors[0].Name
}

// Richness counts populated fields. Used when fuzzy deduplication must pick
// one of two records describing the same paper: the richer record wins.
func (p *Paper) Richness() int {
	n := 0
	if p.Title != "" {
		n++
	}
	if len(p.Authors) > 0 {
		n++
	}
	if p.Abstract != "" {
		n++
	}
	if p.PublicationDate != nil {
		n++
	}
	if p.URL != "" {
		n++
	}
	if p.PDFURL != "" {
		n++
	}
	if p.CitationCount > 0 {
		n++
	}
	if p.FullText {
		n++
	}
	return n
}

// RankedPaper pairs a paper with its similarity score against a query.
// Score is cosine similarity normalized to [0, 1].
type RankedPaper struct {
	Paper Paper   `json:"paper"`
	Score float64 `json:"score"`
}
