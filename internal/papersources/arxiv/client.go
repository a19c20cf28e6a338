// Package arxiv provides a client for the arXiv Atom API.
//
// arXiv serves preprints across physics, mathematics, computer science and
// related fields. Results come back as an Atom feed; this package implements
// the papersources.PaperSource interface over it, paging through the feed
// until the requested number of papers is collected.
//
// API documentation: https://info.arxiv.org/help/api/
package arxiv

import (
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/helixir/research-survey-service/internal/domain"
	"github.com/helixir/research-survey-service/internal/papersources"
)

const (
	// DefaultBaseURL is the default arXiv API base URL.
	DefaultBaseURL = "https://export.arxiv.org/api"

	// DefaultRateLimit follows the arXiv courtesy guideline of one request
	// every few seconds.
	DefaultRateLimit = 1.0

	// DefaultBurstSize is the default burst size for rate limiting.
	DefaultBurstSize = 1

	// DefaultTimeout is the default request timeout.
	DefaultTimeout = 30 * time.Second

	// DefaultMaxResults is the default cap on papers per search.
	DefaultMaxResults = 100

	// pageSize is the number of entries requested per API call.
	pageSize = 50

	// sourceName is the human-readable name for this source.
	sourceName = "arXiv"
)

// arxivIDRegex extracts the arXiv ID from the entry URL, dropping any version
// suffix. Matches "http://arxiv.org/abs/2301.12345v1" and the older
// "http://arxiv.org/abs/hep-th/9901001v1" form.
var arxivIDRegex = regexp.MustCompile(`arxiv\.org/abs/(.+?)(?:v\d+)?$`)

// Config holds configuration for the arXiv client.
type Config struct {
	// BaseURL is the arXiv API base URL.
	BaseURL string

	// Timeout is the request timeout.
	Timeout time.Duration

	// RateLimit is the maximum requests per second.
	RateLimit float64

	// BurstSize is the maximum burst of requests allowed.
	BurstSize int

	// MaxResults is the default cap on papers returned per search.
	MaxResults int

	// Enabled indicates whether this source participates in searches.
	Enabled bool
}

func (c *Config) applyDefaults() {
	if c.BaseURL == "" {
		c.BaseURL = DefaultBaseURL
	}
	if c.Timeout == 0 {
		c.Timeout = DefaultTimeout
	}
	if c.RateLimit == 0 {
		c.RateLimit = DefaultRateLimit
	}
	if c.BurstSize == 0 {
		c.BurstSize = DefaultBurstSize
	}
	if c.MaxResults == 0 {
		c.MaxResults = DefaultMaxResults
	}
}

// Client implements the papersources.PaperSource interface for arXiv.
type Client struct {
	config     Config
	httpClient *papersources.HTTPClient
}

var _ papersources.PaperSource = (*Client)(nil)

// New creates a new arXiv client with the given configuration.
func New(cfg Config) *Client {
	cfg.applyDefaults()

	httpClient := papersources.NewHTTPClient(papersources.HTTPClientConfig{
		Timeout:   cfg.Timeout,
		RateLimit: cfg.RateLimit,
		BurstSize: cfg.BurstSize,
	})

	return &Client{
		config:     cfg,
		httpClient: httpClient,
	}
}

// NewWithHTTPClient creates an arXiv client with a custom HTTP client.
// Used by tests to point the client at a mock server.
func NewWithHTTPClient(cfg Config, httpClient *papersources.HTTPClient) *Client {
	cfg.applyDefaults()

	return &Client{
		config:     cfg,
		httpClient: httpClient,
	}
}

// Search queries arXiv for papers matching the given parameters, paging
// through the feed until MaxResults papers are collected or the result set
// is exhausted.
func (c *Client) Search(ctx context.Context, params papersources.SearchParams) (*papersources.SearchResult, error) {
	start := time.Now()

	maxResults := params.MaxResults
	if maxResults <= 0 {
		maxResults = c.config.MaxResults
	}

	var papers []*domain.Paper
	totalResults := 0
	offset := 0

	for len(papers) < maxResults {
		limit := maxResults - len(papers)
		if limit > pageSize {
			limit = pageSize
		}

		feed, err := c.fetchPage(ctx, params, offset, limit)
		if err != nil {
			return nil, err
		}

		totalResults = feed.TotalResults
		for i := range feed.Entries {
			if paper := c.entryToPaper(&feed.Entries[i]); paper != nil {
				papers = append(papers, paper)
			}
		}

		offset += len(feed.Entries)
		if len(feed.Entries) < limit || offset >= feed.TotalResults {
			break
		}
	}

	if len(papers) > maxResults {
		papers = papers[:maxResults]
	}

	return &papersources.SearchResult{
		Papers:         papers,
		TotalResults:   totalResults,
		Source:         domain.SourceTypeArXiv,
		SearchDuration: time.Since(start),
	}, nil
}

// SourceType returns the source type identifier.
func (c *Client) SourceType() domain.SourceType {
	return domain.SourceTypeArXiv
}

// Name returns the human-readable name for this source.
func (c *Client) Name() string {
	return sourceName
}

// IsEnabled returns whether this source is enabled.
func (c *Client) IsEnabled() bool {
	return c.config.Enabled
}

// fetchPage retrieves one page of the Atom feed.
func (c *Client) fetchPage(ctx context.Context, params papersources.SearchParams, offset, limit int) (*Feed, error) {
	searchURL, err := c.buildSearchURL(params, offset, limit)
	if err != nil {
		return nil, fmt.Errorf("building search URL: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, searchURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		var exhausted *papersources.RetryExhaustedError
		if errors.As(err, &exhausted) && exhausted.StatusCode == http.StatusTooManyRequests {
			return nil, domain.NewRateLimitError(sourceName, 0)
		}
		return nil, fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		return nil, domain.NewExternalAPIError(sourceName, resp.StatusCode, string(body), nil)
	}

	// Limit body to 10MB to prevent resource exhaustion.
	var feed Feed
	if err := xml.NewDecoder(io.LimitReader(resp.Body, 10<<20)).Decode(&feed); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}

	return &feed, nil
}

// buildSearchURL constructs the arXiv search API URL for one page.
func (c *Client) buildSearchURL(params papersources.SearchParams, offset, limit int) (string, error) {
	baseURL, err := url.Parse(c.config.BaseURL)
	if err != nil {
		return "", fmt.Errorf("parsing base URL: %w", err)
	}

	baseURL.Path = strings.TrimRight(baseURL.Path, "/") + "/query"

	searchQuery := buildKeywordQuery(params.Keywords)
	if params.DateFrom != nil || params.DateTo != nil {
		if dateFilter := buildDateFilter(params.DateFrom, params.DateTo); dateFilter != "" {
			searchQuery = "(" + searchQuery + ") AND " + dateFilter
		}
	}

	query := url.Values{}
	query.Set("search_query", searchQuery)
	query.Set("max_results", strconv.Itoa(limit))
	if offset > 0 {
		query.Set("start", strconv.Itoa(offset))
	}

	// Newest first, so date-bounded queries surface recent work.
	query.Set("sortBy", "submittedDate")
	query.Set("sortOrder", "descending")

	baseURL.RawQuery = query.Encode()
	return baseURL.String(), nil
}

// buildKeywordQuery combines keyword variants into an arXiv boolean query.
// Each variant searches all fields; variants are alternatives, not
// conjunctions.
func buildKeywordQuery(keywords []string) string {
	terms := make([]string, 0, len(keywords))
	for _, kw := range keywords {
		kw = strings.TrimSpace(kw)
		if kw == "" {
			continue
		}
		terms = append(terms, `all:"`+kw+`"`)
	}
	return strings.Join(terms, " OR ")
}

// buildDateFilter constructs the arXiv submittedDate range filter.
func buildDateFilter(from, to *time.Time) string {
	fromStr := "*"
	if from != nil {
		fromStr = from.Format("20060102") + "0000"
	}

	toStr := "*"
	if to != nil {
		toStr = to.Format("20060102") + "2359"
	}

	return fmt.Sprintf("submittedDate:[%s TO %s]", fromStr, toStr)
}

// entryToPaper converts an arXiv Atom entry to a domain Paper.
func (c *Client) entryToPaper(entry *Entry) *domain.Paper {
	if entry == nil {
		return nil
	}

	arxivID := extractArXivID(entry.ID)
	if arxivID == "" {
		return nil
	}

	canonicalID := domain.GenerateCanonicalID(domain.PaperIdentifiers{
		DOI:     strings.TrimSpace(entry.DOI),
		ArXivID: arxivID,
	})
	if canonicalID == "" {
		return nil
	}

	var pubDate *time.Time
	if entry.Published != "" {
		if t, err := time.Parse(time.RFC3339, entry.Published); err == nil {
			pubDate = &t
		}
	}

	authors := make([]domain.Author, 0, len(entry.Authors))
	for _, a := range entry.Authors {
		name := strings.TrimSpace(a.Name)
		if name == "" {
			continue
		}
		authors = append(authors, domain.Author{
			Name:        name,
			Affiliation: strings.TrimSpace(a.Affiliation),
		})
	}

	// arXiv wraps titles and abstracts with newlines and padding.
	title := normalizeWhitespace(entry.Title)
	abstract := normalizeWhitespace(entry.Summary)

	pdfURL := ""
	for _, link := range entry.Links {
		if link.Title == "pdf" || link.Type == "application/pdf" {
			pdfURL = link.Href
			break
		}
	}
	if pdfURL == "" {
		pdfURL = "http://arxiv.org/pdf/" + arxivID
	}

	return &domain.Paper{
		CanonicalID:     canonicalID,
		Title:           title,
		Abstract:        abstract,
		Authors:         authors,
		PublicationDate: pubDate,
		Source:          domain.SourceTypeArXiv,
		URL:             entry.ID,
		PDFURL:          pdfURL,
		FullText:        true, // every arXiv paper has a full-text PDF
	}
}

// extractArXivID extracts the bare arXiv ID from the full entry URL.
// "http://arxiv.org/abs/2301.12345v1" becomes "2301.12345".
func extractArXivID(entryURL string) string {
	matches := arxivIDRegex.FindStringSubmatch(entryURL)
	if len(matches) < 2 {
		return ""
	}
	return matches[1]
}

// normalizeWhitespace trims and collapses runs of whitespace.
func normalizeWhitespace(s string) string {
	return strings.Join(strings.Fields(strings.TrimSpace(s)), " ")
}
