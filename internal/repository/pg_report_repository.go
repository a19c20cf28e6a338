package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/helixir/research-survey-service/internal/domain"
)

// ReportRepository persists synthesized literature review reports.
type ReportRepository interface {
	// Create stores a new report. Reports are write-once.
	Create(ctx context.Context, report *domain.Report) error

	// Get retrieves a report by ID scoped to its owner.
	Get(ctx context.Context, userID, id uuid.UUID) (*domain.Report, error)

	// ListByUser returns the user's reports newest first, without bodies,
	// plus the total count for pagination.
	ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]domain.Report, int, error)
}

// Compile-time interface verification.
var _ ReportRepository = (*PgReportRepository)(nil)

// PgReportRepository is a PostgreSQL implementation of ReportRepository.
// Source papers are stored as JSONB alongside the generated body.
type PgReportRepository struct {
	db DBTX
}

// NewPgReportRepository creates a new PostgreSQL report repository.
func NewPgReportRepository(db DBTX) *PgReportRepository {
	return &PgReportRepository{db: db}
}

// Create implements ReportRepository.
func (r *PgReportRepository) Create(ctx context.Context, report *domain.Report) error {
	if report == nil {
		return domain.NewValidationError("report", "report cannot be nil")
	}
	if report.ID == uuid.Nil {
		return domain.NewValidationError("id", "report ID is required")
	}
	if report.UserID == uuid.Nil {
		return domain.NewValidationError("user_id", "user ID is required")
	}

	papersJSON, err := json.Marshal(report.Papers)
	if err != nil {
		return fmt.Errorf("failed to marshal report papers: %w", err)
	}

	query := `
		INSERT INTO reports (id, user_id, title, papers, body, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`

	_, err = r.db.Exec(ctx, query,
		report.ID, report.UserID, report.Title, papersJSON, report.Body, report.CreatedAt,
	)
	if err != nil {
		if isPgUniqueViolation(err) {
			return fmt.Errorf("report %s: %w", report.ID, domain.ErrAlreadyExists)
		}
		return fmt.Errorf("failed to create report: %w", err)
	}
	return nil
}

// Get implements ReportRepository.
func (r *PgReportRepository) Get(ctx context.Context, userID, id uuid.UUID) (*domain.Report, error) {
	query := `
		SELECT id, user_id, title, papers, body, created_at
		FROM reports
		WHERE id = $1 AND user_id = $2`

	var (
		report     domain.Report
		papersJSON []byte
	)
	err := r.db.QueryRow(ctx, query, id, userID).Scan(
		&report.ID, &report.UserID, &report.Title, &papersJSON, &report.Body, &report.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.NewNotFoundError("report", id.String())
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get report: %w", err)
	}

	if len(papersJSON) > 0 {
		if err := json.Unmarshal(papersJSON, &report.Papers); err != nil {
			return nil, fmt.Errorf("failed to unmarshal report papers: %w", err)
		}
	}
	return &report, nil
}

// ListByUser implements ReportRepository.
func (r *PgReportRepository) ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]domain.Report, int, error) {
	normalizePagination(&limit, &offset)

	var total int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM reports WHERE user_id = $1`, userID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count reports: %w", err)
	}

	query := `
		SELECT id, user_id, title, created_at
		FROM reports
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`

	rows, err := r.db.Query(ctx, query, userID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list reports: %w", err)
	}
	defer rows.Close()

	reports := make([]domain.Report, 0, limit)
	for rows.Next() {
		var report domain.Report
		if err := rows.Scan(&report.ID, &report.UserID, &report.Title, &report.CreatedAt); err != nil {
			return nil, 0, fmt.Errorf("failed to scan report: %w", err)
		}
		reports = append(reports, report)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("error iterating reports: %w", err)
	}

	return reports, total, nil
}
