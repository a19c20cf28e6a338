package repository

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/helixir/research-survey-service/internal/domain"
)

// Compile-time interface verification.
var _ ReportRepository = (*MemoryReportRepository)(nil)

// MemoryReportRepository is an in-memory ReportRepository backing the
// memory ledger mode for local development. Contents are lost on restart.
type MemoryReportRepository struct {
	mu      sync.Mutex
	reports map[uuid.UUID]domain.Report
	byUser  map[uuid.UUID][]uuid.UUID
}

// NewMemoryReportRepository creates an empty in-memory report repository.
func NewMemoryReportRepository() *MemoryReportRepository {
	return &MemoryReportRepository{
		reports: make(map[uuid.UUID]domain.Report),
		byUser:  make(map[uuid.UUID][]uuid.UUID),
	}
}

// Create implements ReportRepository.
func (r *MemoryReportRepository) Create(_ context.Context, report *domain.Report) error {
	if report == nil {
		return domain.NewValidationError("report", "report cannot be nil")
	}
	if report.ID == uuid.Nil {
		return domain.NewValidationError("id", "report ID is required")
	}
	if report.UserID == uuid.Nil {
		return domain.NewValidationError("user_id", "user ID is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.reports[report.ID]; ok {
		return fmt.Errorf("report %s: %w", report.ID, domain.ErrAlreadyExists)
	}

	stored := *report
	stored.Papers = make([]domain.Paper, len(report.Papers))
	copy(stored.Papers, report.Papers)

	r.reports[report.ID] = stored
	r.byUser[report.UserID] = append(r.byUser[report.UserID], report.ID)
	return nil
}

// Get implements ReportRepository.
func (r *MemoryReportRepository) Get(_ context.Context, userID, id uuid.UUID) (*domain.Report, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.reports[id]
	if !ok || stored.UserID != userID {
		return nil, domain.NewNotFoundError("report", id.String())
	}

	report := stored
	report.Papers = make([]domain.Paper, len(stored.Papers))
	copy(report.Papers, stored.Papers)
	return &report, nil
}

// ListByUser implements ReportRepository.
func (r *MemoryReportRepository) ListByUser(_ context.Context, userID uuid.UUID, limit, offset int) ([]domain.Report, int, error) {
	normalizePagination(&limit, &offset)

	r.mu.Lock()
	defer r.mu.Unlock()

	ids := r.byUser[userID]
	total := len(ids)

	reports := make([]domain.Report, 0, limit)
	// Insertion order is creation order, so walk backwards for newest first.
	for i := total - 1 - offset; i >= 0 && len(reports) < limit; i-- {
		stored := r.reports[ids[i]]
		reports = append(reports, domain.Report{
			ID:        stored.ID,
			UserID:    stored.UserID,
			Title:     stored.Title,
			CreatedAt: stored.CreatedAt,
		})
	}
	return reports, total, nil
}
