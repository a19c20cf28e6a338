// Package semanticscholar provides a client for the Semantic Scholar Graph API.
//
// Semantic Scholar is a free research tool for scientific literature. This
// package implements the papersources.PaperSource interface for searching
// papers through the Graph API's relevance search endpoint.
//
// API documentation: https://api.semanticscholar.org/api-docs/
package semanticscholar

// SearchResponse represents the response from the paper search endpoint.
type SearchResponse struct {
	// Total is the total number of papers matching the query.
	Total int `json:"total"`

	// Offset is the current offset in the result set.
	Offset int `json:"offset"`

	// Next is the offset for the next page of results.
	// A value of 0 indicates no more results.
	Next int `json:"next"`

	// Data contains the papers returned by the search.
	Data []PaperResult `json:"data"`
}

// PaperResult represents a single paper in the API response.
type PaperResult struct {
	// PaperID is the Semantic Scholar identifier for the paper.
	PaperID string `json:"paperId"`

	// Title is the paper title.
	Title string `json:"title"`

	// Abstract is the paper's abstract text. Often null for papers whose
	// publishers do not license abstract redistribution.
	Abstract string `json:"abstract"`

	// Year is the publication year.
	Year int `json:"year"`

	// PublicationDate is the full publication date in YYYY-MM-DD format.
	PublicationDate string `json:"publicationDate"`

	// URL is the Semantic Scholar landing page for the paper.
	URL string `json:"url"`

	// Authors lists the paper authors.
	Authors []Author `json:"authors"`

	// CitationCount is the number of citations the paper has received.
	CitationCount int `json:"citationCount"`

	// OpenAccessPDF describes the open access PDF if one exists.
	OpenAccessPDF *OpenAccessPDF `json:"openAccessPdf,omitempty"`

	// ExternalIDs contains external identifiers (DOI, ArXiv, ...).
	ExternalIDs *ExternalIDs `json:"externalIds,omitempty"`
}

// ExternalIDs contains external identifiers for a paper.
type ExternalIDs struct {
	DOI   string `json:"DOI,omitempty"`
	ArXiv string `json:"ArXiv,omitempty"`
}

// Author represents a paper author in the API response.
type Author struct {
	AuthorID string `json:"authorId,omitempty"`
	Name     string `json:"name"`
}

// OpenAccessPDF describes an open access PDF.
type OpenAccessPDF struct {
	URL    string `json:"url,omitempty"`
	Status string `json:"status,omitempty"`
}

// ErrorResponse represents an error payload from the API.
type ErrorResponse struct {
	Error   string `json:"error,omitempty"`
	Message string `json:"message,omitempty"`
}
