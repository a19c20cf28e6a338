package semanticscholar

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/helixir/research-survey-service/internal/domain"
	"github.com/helixir/research-survey-service/internal/papersources"
)

const (
	// DefaultBaseURL is the default base URL for the Graph API.
	DefaultBaseURL = "https://api.semanticscholar.org/graph/v1"

	// DefaultRateLimit is conservative for unauthenticated requests.
	// With an API key the limit can be raised via configuration.
	DefaultRateLimit = 1.0

	// DefaultBurstSize is the default burst size for rate limiting.
	DefaultBurstSize = 1

	// DefaultTimeout is the default HTTP request timeout.
	DefaultTimeout = 30 * time.Second

	// DefaultMaxResults is the default cap on papers per search.
	DefaultMaxResults = 100

	// pageSize is the number of papers requested per API call.
	// The search endpoint allows at most 100.
	pageSize = 100

	// apiKeyHeader is the header name for the API key.
	apiKeyHeader = "x-api-key"

	// paperFields lists the fields requested from the API.
	paperFields = "paperId,externalIds,url,title,abstract,year,publicationDate,authors,citationCount,openAccessPdf"

	// sourceName is the human-readable name for this source.
	sourceName = "Semantic Scholar"
)

// Config contains configuration options for the Semantic Scholar client.
type Config struct {
	// BaseURL is the base URL for the API.
	BaseURL string

	// APIKey is the optional key for authenticated requests, which have
	// higher rate limits.
	APIKey string

	// Timeout is the HTTP request timeout.
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

// Client implements the papersources.PaperSource interface for Semantic Scholar.
type Client struct {
	httpClient *papersources.HTTPClient
	config     Config
}

var _ papersources.PaperSource = (*Client)(nil)

// NewClient creates a new Semantic Scholar client. If httpClient is nil, one
// is created from the configuration settings.
func NewClient(cfg Config, httpClient *papersources.HTTPClient) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.RateLimit == 0 {
		cfg.RateLimit = DefaultRateLimit
	}
	if cfg.BurstSize == 0 {
		cfg.BurstSize = DefaultBurstSize
	}
	if cfg.MaxResults == 0 {
		cfg.MaxResults = DefaultMaxResults
	}

	if httpClient == nil {
		httpClient = papersources.NewHTTPClient(papersources.HTTPClientConfig{
			Timeout:      cfg.Timeout,
			RateLimit:    cfg.RateLimit,
			BurstSize:    cfg.BurstSize,
			APIKey:       cfg.APIKey,
			APIKeyHeader: apiKeyHeader,
		})
	}

	return &Client{
		httpClient: httpClient,
		config:     cfg,
	}
}

// Search queries Semantic Scholar for papers matching the given parameters,
// following the API's next-offset paging until enough papers are collected.
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

		page, err := c.fetchPage(ctx, params, offset, limit)
		if err != nil {
			return nil, err
		}

		totalResults = page.Total
		converted := c.convertToPapers(page.Data)

		// The API filters by year only; apply exact date bounds here.
		if params.DateFrom != nil || params.DateTo != nil {
			converted = filterByDate(converted, params.DateFrom, params.DateTo)
		}
		papers = append(papers, converted...)

		if page.Next <= 0 || len(page.Data) == 0 {
			break
		}
		offset = page.Next
	}

	if len(papers) > maxResults {
		papers = papers[:maxResults]
	}

	return &papersources.SearchResult{
		Papers:         papers,
		TotalResults:   totalResults,
		Source:         domain.SourceTypeSemanticScholar,
		SearchDuration: time.Since(start),
	}, nil
}

// SourceType returns the source type identifier.
func (c *Client) SourceType() domain.SourceType {
	return domain.SourceTypeSemanticScholar
}

// Name returns the human-readable name for this source.
func (c *Client) Name() string {
	return sourceName
}

// IsEnabled returns whether this source is currently enabled.
func (c *Client) IsEnabled() bool {
	return c.config.Enabled
}

// fetchPage retrieves one page of search results.
func (c *Client) fetchPage(ctx context.Context, params papersources.SearchParams, offset, limit int) (*SearchResponse, error) {
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

	if err := c.handleErrorResponse(resp); err != nil {
		return nil, err
	}

	// Limit body to 10MB to prevent resource exhaustion.
	var searchResp SearchResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 10<<20)).Decode(&searchResp); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}

	return &searchResp, nil
}

// buildSearchURL constructs the search API URL for one page.
func (c *Client) buildSearchURL(params papersources.SearchParams, offset, limit int) (string, error) {
	baseURL, err := url.Parse(c.config.BaseURL)
	if err != nil {
		return "", fmt.Errorf("parsing base URL: %w", err)
	}

	searchURL := baseURL.JoinPath("paper", "search")

	q := searchURL.Query()
	q.Set("query", buildKeywordQuery(params.Keywords))
	q.Set("fields", paperFields)
	q.Set("limit", strconv.Itoa(limit))
	if offset > 0 {
		q.Set("offset", strconv.Itoa(offset))
	}

	if params.FullTextOnly {
		q.Set("openAccessPdf", "")
	}

	// The API supports year-granularity filtering only.
	if params.DateFrom != nil && params.DateTo != nil {
		q.Set("year", fmt.Sprintf("%d-%d", params.DateFrom.Year(), params.DateTo.Year()))
	} else if params.DateFrom != nil {
		q.Set("year", fmt.Sprintf("%d-", params.DateFrom.Year()))
	} else if params.DateTo != nil {
		q.Set("year", fmt.Sprintf("-%d", params.DateTo.Year()))
	}

	searchURL.RawQuery = q.Encode()
	return searchURL.String(), nil
}

// buildKeywordQuery combines keyword variants with the OR operator supported
// by the relevance search endpoint.
func buildKeywordQuery(keywords []string) string {
	terms := make([]string, 0, len(keywords))
	for _, kw := range keywords {
		kw = strings.TrimSpace(kw)
		if kw == "" {
			continue
		}
		terms = append(terms, kw)
	}
	return strings.Join(terms, " | ")
}

// handleErrorResponse maps non-2xx responses to domain errors.
func (c *Client) handleErrorResponse(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return domain.NewExternalAPIError(sourceName, resp.StatusCode, "failed to read error response", err)
	}

	var errResp ErrorResponse
	if err := json.Unmarshal(body, &errResp); err == nil {
		message := errResp.Error
		if message == "" {
			message = errResp.Message
		}
		if message == "" {
			message = string(body)
		}
		return domain.NewExternalAPIError(sourceName, resp.StatusCode, message, nil)
	}

	return domain.NewExternalAPIError(sourceName, resp.StatusCode, string(body), nil)
}

// convertToPapers converts API paper results to domain papers, dropping
// records without any usable identifier.
func (c *Client) convertToPapers(results []PaperResult) []*domain.Paper {
	papers := make([]*domain.Paper, 0, len(results))
	for i := range results {
		if paper := c.convertToPaper(&results[i]); paper != nil {
			papers = append(papers, paper)
		}
	}
	return papers
}

func (c *Client) convertToPaper(result *PaperResult) *domain.Paper {
	ids := domain.PaperIdentifiers{SemanticScholarID: result.PaperID}
	if result.ExternalIDs != nil {
		ids.DOI = result.ExternalIDs.DOI
		ids.ArXivID = result.ExternalIDs.ArXiv
	}
	canonicalID := domain.GenerateCanonicalID(ids)
	if canonicalID == "" {
		return nil
	}

	paper := &domain.Paper{
		CanonicalID:   canonicalID,
		Title:         result.Title,
		Abstract:      result.Abstract,
		Source:        domain.SourceTypeSemanticScholar,
		URL:           result.URL,
		CitationCount: result.CitationCount,
	}

	if result.PublicationDate != "" {
		if pubDate, err := time.Parse("2006-01-02", result.PublicationDate); err == nil {
			paper.PublicationDate = &pubDate
		}
	}
	if paper.PublicationDate == nil && result.Year > 0 {
		// Year is all the API knows for some papers.
		pubDate := time.Date(result.Year, time.January, 1, 0, 0, 0, 0, time.UTC)
		paper.PublicationDate = &pubDate
	}

	if result.OpenAccessPDF != nil && result.OpenAccessPDF.URL != "" {
		paper.PDFURL = result.OpenAccessPDF.URL
		paper.FullText = true
	}

	paper.Authors = make([]domain.Author, 0, len(result.Authors))
	for _, a := range result.Authors {
		if a.Name == "" {
			continue
		}
		paper.Authors = append(paper.Authors, domain.Author{Name: a.Name})
	}

	return paper
}

// filterByDate drops papers outside the requested date bounds. Papers
// without any date information are kept.
func filterByDate(papers []*domain.Paper, dateFrom, dateTo *time.Time) []*domain.Paper {
	if dateFrom == nil && dateTo == nil {
		return papers
	}

	filtered := make([]*domain.Paper, 0, len(papers))
	for _, paper := range papers {
		if paper.PublicationDate == nil {
			filtered = append(filtered, paper)
			continue
		}
		if dateFrom != nil && paper.PublicationDate.Before(*dateFrom) {
			continue
		}
		if dateTo != nil && paper.PublicationDate.After(*dateTo) {
			continue
		}
		filtered = append(filtered, paper)
	}

	return filtered
}
