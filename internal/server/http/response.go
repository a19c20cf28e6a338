package httpserver

import (
	"time"

	"github.com/helixir/research-survey-service/internal/domain"
	"github.com/helixir/research-survey-service/internal/search"
)

// Response types for JSON serialization. Monetary amounts cross the API
// boundary in yuan; the ledger works in fen internally.

type searchResponse struct {
	TransactionID     string                 `json:"transaction_id"`
	Charged           float64                `json:"charged"`
	Plan              planResponse           `json:"plan"`
	Papers            []rankedPaperResponse  `json:"papers"`
	Sources           []search.SourceOutcome `json:"sources"`
	RawCount          int                    `json:"raw_count"`
	UniqueCount       int                    `json:"unique_count"`
	DuplicatesRemoved duplicatesResponse     `json:"duplicates_removed"`
}

type planResponse struct {
	Keywords []string `json:"keywords"`
	Steps    []string `json:"steps"`
	Degraded bool     `json:"degraded"`
}

type duplicatesResponse struct {
	Identifier int `json:"identifier"`
	Fuzzy      int `json:"fuzzy"`
}

type rankedPaperResponse struct {
	paperResponse
	Score float64 `json:"score"`
}

type paperResponse struct {
	CanonicalID     string           `json:"canonical_id"`
	Title           string           `json:"title"`
	Authors         []authorResponse `json:"authors,omitempty"`
	Abstract        string           `json:"abstract,omitempty"`
	PublicationDate *time.Time       `json:"publication_date,omitempty"`
	Source          string           `json:"source"`
	URL             string           `json:"url,omitempty"`
	PdfURL          string           `json:"pdf_url,omitempty"`
	CitationCount   int              `json:"citation_count"`
	FullText        bool             `json:"full_text"`
}

type authorResponse struct {
	Name        string `json:"name"`
	Affiliation string `json:"affiliation,omitempty"`
}

type balanceResponse struct {
	UserID              string    `json:"user_id"`
	Balance             float64   `json:"balance"`
	TotalPapersSearched int64     `json:"total_papers_searched"`
	TotalAmountSpent    float64   `json:"total_amount_spent"`
	UpdatedAt           time.Time `json:"updated_at"`
}

type usageRecordResponse struct {
	TransactionID   string    `json:"transaction_id"`
	QueryText       string    `json:"query_text"`
	PapersRequested int       `json:"papers_requested"`
	Amount          float64   `json:"amount"`
	Refunded        bool      `json:"refunded"`
	CreatedAt       time.Time `json:"created_at"`
}

type listUsageResponse struct {
	Records       []usageRecordResponse `json:"records"`
	NextPageToken string                `json:"next_page_token,omitempty"`
	TotalCount    int                   `json:"total_count"`
}

type rechargeOrderResponse struct {
	OrderID     string     `json:"order_id"`
	Amount      float64    `json:"amount"`
	Status      string     `json:"status"`
	CreatedAt   time.Time  `json:"created_at"`
	ConfirmedAt *time.Time `json:"confirmed_at,omitempty"`
}

type reportResponse struct {
	ID        string          `json:"id"`
	Title     string          `json:"title"`
	Papers    []paperResponse `json:"papers,omitempty"`
	Body      string          `json:"body,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

type listReportsResponse struct {
	Reports       []reportResponse `json:"reports"`
	NextPageToken string           `json:"next_page_token,omitempty"`
	TotalCount    int              `json:"total_count"`
}

// Converter functions

func domainPaperToResponse(p *domain.Paper) paperResponse {
	authors := make([]authorResponse, len(p.Authors))
	for i, a := range p.Authors {
		authors[i] = authorResponse{
			Name:        a.Name,
			Affiliation: a.Affiliation,
		}
	}
	return paperResponse{
		CanonicalID:     p.CanonicalID,
		Title:           p.Title,
		Authors:         authors,
		Abstract:        p.Abstract,
		PublicationDate: p.PublicationDate,
		Source:          string(p.Source),
		URL:             p.URL,
		PdfURL:          p.PDFURL,
		CitationCount:   p.CitationCount,
		FullText:        p.FullText,
	}
}

func searchResultToResponse(txnID string, cost domain.Money, plan *domain.Plan, result *search.Result) searchResponse {
	papers := make([]rankedPaperResponse, len(result.Papers))
	for i := range result.Papers {
		papers[i] = rankedPaperResponse{
			paperResponse: domainPaperToResponse(&result.Papers[i].Paper),
			Score:         result.Papers[i].Score,
		}
	}
	return searchResponse{
		TransactionID: txnID,
		Charged:       cost.Yuan(),
		Plan: planResponse{
			Keywords: plan.Query.Keywords,
			Steps:    plan.Steps,
			Degraded: plan.Degraded,
		},
		Papers:      papers,
		Sources:     result.Sources,
		RawCount:    result.RawCount,
		UniqueCount: result.UniqueCount,
		DuplicatesRemoved: duplicatesResponse{
			Identifier: result.DedupStats.IdentifierDups,
			Fuzzy:      result.DedupStats.FuzzyDups,
		},
	}
}

func domainBalanceToResponse(b *domain.UserBalance) balanceResponse {
	return balanceResponse{
		UserID:              b.UserID.String(),
		Balance:             b.Balance.Yuan(),
		TotalPapersSearched: b.TotalPapersSearched,
		TotalAmountSpent:    b.TotalAmountSpent.Yuan(),
		UpdatedAt:           b.UpdatedAt,
	}
}

func domainUsageToResponse(u *domain.UsageRecord) usageRecordResponse {
	return usageRecordResponse{
		TransactionID:   u.TransactionID.String(),
		QueryText:       u.QueryText,
		PapersRequested: u.PapersRequested,
		Amount:          u.Amount.Yuan(),
		Refunded:        u.Refunded,
		CreatedAt:       u.CreatedAt,
	}
}

func domainRechargeToResponse(o *domain.RechargeRecord) rechargeOrderResponse {
	return rechargeOrderResponse{
		OrderID:     o.OrderID,
		Amount:      o.Amount.Yuan(),
		Status:      string(o.Status),
		CreatedAt:   o.CreatedAt,
		ConfirmedAt: o.ConfirmedAt,
	}
}

func domainReportToResponse(rep *domain.Report, includeBody bool) reportResponse {
	resp := reportResponse{
		ID:        rep.ID.String(),
		Title:     rep.Title,
		CreatedAt: rep.CreatedAt,
	}
	if includeBody {
		resp.Body = rep.Body
		resp.Papers = make([]paperResponse, len(rep.Papers))
		for i := range rep.Papers {
			resp.Papers[i] = domainPaperToResponse(&rep.Papers[i])
		}
	}
	return resp
}
