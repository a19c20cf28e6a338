package httpserver

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/helixir/research-survey-service/internal/domain"
)

// Pagination and validation constants.
const (
	defaultPageSize    = 20
	maxPageSize        = 100
	maxRequestBodySize = 1 << 20 // 1 MB limit for request bodies
)

// searchRequest is the JSON request body for POST /search.
type searchRequest struct {
	Query        string   `json:"query"`
	MaxPapers    int      `json:"max_papers,omitempty"`
	YearFrom     int      `json:"year_from,omitempty"`
	YearTo       int      `json:"year_to,omitempty"`
	Sources      []string `json:"sources,omitempty"`
	FullTextOnly bool     `json:"full_text_only,omitempty"`
}

// rechargeOrderRequest is the JSON request body for POST /recharge/orders.
// Amount is in yuan.
type rechargeOrderRequest struct {
	Amount float64 `json:"amount"`
}

// rechargeConfirmRequest is the JSON request body for POST /recharge/confirm.
type rechargeConfirmRequest struct {
	OrderID string `json:"order_id"`
}

// runSearch handles POST /search: charge the account up front, plan the
// query, fan out to the paper sources, and return the ranked result set.
// The charge is reversed only when retrieval fails in its entirety.
func (s *Server) runSearch(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, ok := userIDFromRequest(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req searchRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}

	req.Query = strings.TrimSpace(req.Query)
	if req.Query == "" {
		writeError(w, http.StatusBadRequest, "query is required")
		return
	}
	if len(req.Query) > domain.MaxQueryLength {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("query must be at most %d characters", domain.MaxQueryLength))
		return
	}
	if req.MaxPapers < 0 {
		writeError(w, http.StatusBadRequest, "max_papers must be positive")
		return
	}
	if req.YearFrom < 0 || req.YearTo < 0 || (req.YearFrom > 0 && req.YearTo > 0 && req.YearFrom > req.YearTo) {
		writeError(w, http.StatusBadRequest, "invalid year range")
		return
	}
	sources := make([]domain.SourceType, len(req.Sources))
	for i, src := range req.Sources {
		st := domain.SourceType(src)
		if !st.IsValid() {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("unsupported source: %s", src))
			return
		}
		sources[i] = st
	}

	// The charge happens before any retrieval work, on the requested count,
	// and never changes with the actual result size.
	maxPapers := s.orchestrator.NormalizeMaxPapers(req.MaxPapers)
	cost := domain.SearchCost(maxPapers)

	txnID, err := s.ledger.Charge(ctx, userID, cost, maxPapers, req.Query)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	// Planning never fails; a degraded plan searches the raw query text.
	plan := s.planner.Plan(ctx, domain.Query{
		Text:         req.Query,
		YearFrom:     req.YearFrom,
		YearTo:       req.YearTo,
		Sources:      sources,
		MaxPapers:    maxPapers,
		FullTextOnly: req.FullTextOnly,
	})

	result, err := s.orchestrator.Run(ctx, plan)
	if err != nil {
		// Any failure after the debit releases the charge; the user pays
		// only for a completed search.
		s.refund(r, txnID, userID)
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, searchResultToResponse(txnID.String(), cost, plan, result))
}

// refund reverses a charge after a failed search. The search may have failed
// because the request context died, so the refund runs detached from it. A
// refund failure leaves the user charged for nothing, so it is logged loudly
// and counted.
func (s *Server) refund(r *http.Request, txnID, userID uuid.UUID) {
	ctx := context.WithoutCancel(r.Context())
	if err := s.ledger.Refund(ctx, txnID); err != nil {
		if s.metrics != nil {
			s.metrics.LedgerRefundFailures.Inc()
		}
		s.logger.Error().
			Err(err).
			Str("transaction_id", txnID.String()).
			Str("user_id", userID.String()).
			Msg("refund after failed search did not complete")
	}
}

// getBalance handles GET /balance.
func (s *Server) getBalance(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFromRequest(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	balance, err := s.ledger.GetBalance(r.Context(), userID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, domainBalanceToResponse(balance))
}

// listUsage handles GET /usage.
func (s *Server) listUsage(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFromRequest(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	limit, offset := parsePaginationParams(r)
	records, total, err := s.ledger.ListUsage(r.Context(), userID, limit, offset)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	out := make([]usageRecordResponse, len(records))
	for i := range records {
		out[i] = domainUsageToResponse(&records[i])
	}
	writeJSON(w, http.StatusOK, listUsageResponse{
		Records:       out,
		NextPageToken: encodePageToken(offset, limit, total),
		TotalCount:    total,
	})
}

// createRechargeOrder handles POST /recharge/orders.
func (s *Server) createRechargeOrder(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFromRequest(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req rechargeOrderRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}

	order, err := s.ledger.CreateRechargeOrder(r.Context(), userID, domain.MoneyFromYuan(req.Amount))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, domainRechargeToResponse(order))
}

// confirmRecharge handles POST /recharge/confirm. Confirming an already
// confirmed order succeeds without crediting twice.
func (s *Server) confirmRecharge(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, ok := userIDFromRequest(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req rechargeConfirmRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}
	if req.OrderID == "" {
		writeError(w, http.StatusBadRequest, "order_id is required")
		return
	}

	order, err := s.ledger.GetRechargeOrder(ctx, req.OrderID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if order.UserID != userID {
		// Do not reveal other users' order IDs.
		writeError(w, http.StatusNotFound, "resource not found")
		return
	}

	if err := s.ledger.Credit(ctx, userID, order.OrderID, order.Amount); err != nil {
		writeDomainError(w, err)
		return
	}

	confirmed, err := s.ledger.GetRechargeOrder(ctx, req.OrderID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, domainRechargeToResponse(confirmed))
}

// decodeJSONBody reads and decodes a bounded JSON request body, writing a
// 400 response on failure.
func decodeJSONBody(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	defer r.Body.Close()
	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBodySize))
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read request body")
		return false
	}
	if err := json.Unmarshal(body, v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON request body")
		return false
	}
	return true
}

// writeDomainError maps domain errors to HTTP status codes and writes a
// JSON error response. Internal error details are not leaked to clients.
func writeDomainError(w http.ResponseWriter, err error) {
	if err == nil {
		return
	}

	var insufficientErr *domain.InsufficientBalanceError
	if errors.As(err, &insufficientErr) {
		writeInsufficientBalance(w, insufficientErr)
		return
	}

	switch {
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, "resource not found")
	case errors.Is(err, domain.ErrInvalidInput):
		var ve *domain.ValidationError
		if errors.As(err, &ve) {
			writeError(w, http.StatusBadRequest, ve.Error())
		} else {
			writeError(w, http.StatusBadRequest, "invalid input")
		}
	case errors.Is(err, domain.ErrAlreadyExists):
		writeError(w, http.StatusConflict, "resource already exists")
	case errors.Is(err, domain.ErrUnauthorized):
		writeError(w, http.StatusUnauthorized, "unauthorized")
	case errors.Is(err, domain.ErrInsufficientBalance):
		writeError(w, http.StatusPaymentRequired, "insufficient balance")
	case errors.Is(err, domain.ErrRateLimited):
		writeError(w, http.StatusTooManyRequests, "rate limited")
	case errors.Is(err, domain.ErrTotalRetrievalFailure):
		writeError(w, http.StatusBadGateway, "all paper sources failed; the charge has been refunded")
	case errors.Is(err, domain.ErrSourceUnavailable):
		writeError(w, http.StatusBadGateway, "paper source unavailable")
	case errors.Is(err, domain.ErrSynthesisFailed):
		writeError(w, http.StatusBadGateway, "report synthesis failed")
	default:
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

// parsePaginationParams extracts page_size and page_token from query
// parameters, applying default and maximum bounds to the page size.
func parsePaginationParams(r *http.Request) (limit, offset int) {
	limit = defaultPageSize
	if pageSizeStr := r.URL.Query().Get("page_size"); pageSizeStr != "" {
		if parsed, err := strconv.Atoi(pageSizeStr); err == nil && parsed > 0 {
			limit = parsed
		}
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}

	if pageToken := r.URL.Query().Get("page_token"); pageToken != "" {
		decoded, err := base64.StdEncoding.DecodeString(pageToken)
		if err == nil {
			if parsed, parseErr := strconv.Atoi(string(decoded)); parseErr == nil && parsed > 0 {
				offset = parsed
			}
		}
	}

	return limit, offset
}

// encodePageToken encodes the next offset as a base64 page token. Returns
// an empty string when there are no more results.
func encodePageToken(offset, limit, totalCount int) string {
	nextOffset := offset + limit
	if nextOffset < totalCount {
		return base64.StdEncoding.EncodeToString([]byte(strconv.Itoa(nextOffset)))
	}
	return ""
}
