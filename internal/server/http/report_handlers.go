package httpserver

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/helixir/research-survey-service/internal/domain"
)

// createReportRequest is the JSON request body for POST /reports. The
// papers come from a prior search response; synthesis itself is not billed.
type createReportRequest struct {
	Title  string         `json:"title"`
	Papers []domain.Paper `json:"papers"`
}

// createReport handles POST /reports: synthesize a literature review from
// the submitted papers and persist it. Synthesis is all-or-nothing; a
// failed completion stores nothing.
func (s *Server) createReport(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, ok := userIDFromRequest(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req createReportRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}
	req.Title = strings.TrimSpace(req.Title)

	rep, err := s.synthesizer.Synthesize(ctx, userID, req.Title, req.Papers)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	if err := s.reportRepo.Create(ctx, rep); err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, domainReportToResponse(rep, true))
}

// getReport handles GET /reports/{reportID}.
func (s *Server) getReport(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFromRequest(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	reportID, err := uuid.Parse(chi.URLParam(r, "reportID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "report_id must be a valid UUID")
		return
	}

	rep, err := s.reportRepo.Get(r.Context(), userID, reportID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, domainReportToResponse(rep, true))
}

// listReports handles GET /reports. Bodies are omitted from listings.
func (s *Server) listReports(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFromRequest(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	limit, offset := parsePaginationParams(r)
	reports, total, err := s.reportRepo.ListByUser(r.Context(), userID, limit, offset)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	out := make([]reportResponse, len(reports))
	for i := range reports {
		out[i] = domainReportToResponse(&reports[i], false)
	}
	writeJSON(w, http.StatusOK, listReportsResponse{
		Reports:       out,
		NextPageToken: encodePageToken(offset, limit, total),
		TotalCount:    total,
	})
}
