package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/helixir/research-survey-service/internal/domain"
	"github.com/helixir/research-survey-service/internal/ledger"
	"github.com/helixir/research-survey-service/internal/observability"
)

// pgUniqueViolation is the PostgreSQL error code for unique_violation.
const pgUniqueViolation = "23505"

// Compile-time interface verification.
var _ ledger.Ledger = (*PgLedger)(nil)

// PgLedger is the PostgreSQL quota ledger. Balance mutations run inside
// transactions with guarded UPDATEs, so concurrent charges against the
// same balance serialize on the row and at most the affordable number
// succeed.
type PgLedger struct {
	db      DBTX
	metrics *observability.Metrics
}

// NewPgLedger creates a ledger backed by db. db must support Begin (a pool,
// not an open transaction). metrics may be nil.
func NewPgLedger(db DBTX, metrics *observability.Metrics) *PgLedger {
	return &PgLedger{db: db, metrics: metrics}
}

// Charge atomically debits cost from the user's balance and records the
// usage entry, in one transaction. The debit is guarded by balance_fen >=
// cost; when the guard fails the balance is re-read and an
// InsufficientBalanceError carrying the current balance is returned.
func (l *PgLedger) Charge(ctx context.Context, userID uuid.UUID, cost domain.Money, papersRequested int, queryText string) (uuid.UUID, error) {
	if cost <= 0 {
		return uuid.Nil, domain.NewValidationError("cost", "must be positive")
	}

	beginner, ok := l.db.(txBeginner)
	if !ok {
		return uuid.Nil, fmt.Errorf("charge requires a transaction-capable db: %w", domain.ErrInternalError)
	}
	tx, err := beginner.Begin(ctx)
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to begin charge transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := ensureBalanceRow(ctx, tx, userID); err != nil {
		return uuid.Nil, err
	}

	debit := `
		UPDATE user_balances
		SET balance_fen = balance_fen - $1,
			total_papers_searched = total_papers_searched + $2,
			total_amount_spent_fen = total_amount_spent_fen + $1,
			updated_at = now()
		WHERE user_id = $3 AND balance_fen >= $1`

	tag, err := tx.Exec(ctx, debit, int64(cost), papersRequested, userID)
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to debit balance: %w", err)
	}
	if tag.RowsAffected() == 0 {
		var current int64
		if err := tx.QueryRow(ctx, `SELECT balance_fen FROM user_balances WHERE user_id = $1`, userID).Scan(&current); err != nil {
			return uuid.Nil, fmt.Errorf("failed to read balance after rejected debit: %w", err)
		}
		if l.metrics != nil {
			l.metrics.LedgerRejections.Inc()
		}
		return uuid.Nil, domain.NewInsufficientBalanceError(cost, domain.Money(current))
	}

	txnID := uuid.New()
	insert := `
		INSERT INTO usage_records (transaction_id, user_id, query_text, papers_requested, amount_fen)
		VALUES ($1, $2, $3, $4, $5)`
	if _, err := tx.Exec(ctx, insert, txnID, userID, queryText, papersRequested, int64(cost)); err != nil {
		return uuid.Nil, fmt.Errorf("failed to record usage: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return uuid.Nil, fmt.Errorf("failed to commit charge: %w", err)
	}

	if l.metrics != nil {
		l.metrics.LedgerCharges.Inc()
		l.metrics.AmountChargedFen.Add(float64(cost))
	}
	return txnID, nil
}

// Refund reverses a charge by transaction ID. The refunded flag flips
// exactly once; repeat calls are no-ops.
func (l *PgLedger) Refund(ctx context.Context, txnID uuid.UUID) error {
	beginner, ok := l.db.(txBeginner)
	if !ok {
		return fmt.Errorf("refund requires a transaction-capable db: %w", domain.ErrInternalError)
	}
	tx, err := beginner.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin refund transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	flip := `
		UPDATE usage_records
		SET refunded = TRUE
		WHERE transaction_id = $1 AND refunded = FALSE
		RETURNING user_id, amount_fen, papers_requested`

	var (
		userID    uuid.UUID
		amountFen int64
		papers    int
	)
	err = tx.QueryRow(ctx, flip, txnID).Scan(&userID, &amountFen, &papers)
	if errors.Is(err, pgx.ErrNoRows) {
		// Either unknown or already refunded; only the former is an error.
		var refunded bool
		lookupErr := tx.QueryRow(ctx, `SELECT refunded FROM usage_records WHERE transaction_id = $1`, txnID).Scan(&refunded)
		if errors.Is(lookupErr, pgx.ErrNoRows) {
			return domain.NewNotFoundError("usage record", txnID.String())
		}
		if lookupErr != nil {
			return fmt.Errorf("failed to look up usage record: %w", lookupErr)
		}
		return tx.Commit(ctx)
	}
	if err != nil {
		return fmt.Errorf("failed to mark usage refunded: %w", err)
	}

	restore := `
		UPDATE user_balances
		SET balance_fen = balance_fen + $1,
			total_papers_searched = total_papers_searched - $2,
			total_amount_spent_fen = total_amount_spent_fen - $1,
			updated_at = now()
		WHERE user_id = $3`
	if _, err := tx.Exec(ctx, restore, amountFen, papers, userID); err != nil {
		return fmt.Errorf("failed to restore balance: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit refund: %w", err)
	}

	if l.metrics != nil {
		l.metrics.LedgerRefunds.Inc()
	}
	return nil
}

// Credit confirms a pending recharge order and credits the user's balance.
// The status flip is guarded, so confirming the same order twice credits
// the balance only once.
func (l *PgLedger) Credit(ctx context.Context, userID uuid.UUID, orderID string, amount domain.Money) error {
	beginner, ok := l.db.(txBeginner)
	if !ok {
		return fmt.Errorf("credit requires a transaction-capable db: %w", domain.ErrInternalError)
	}
	tx, err := beginner.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin credit transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	lock := `
		SELECT user_id, amount_fen, status
		FROM recharge_records
		WHERE order_id = $1
		FOR UPDATE`

	var (
		orderUser uuid.UUID
		amountFen int64
		status    string
	)
	err = tx.QueryRow(ctx, lock, orderID).Scan(&orderUser, &amountFen, &status)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.NewNotFoundError("recharge order", orderID)
	}
	if err != nil {
		return fmt.Errorf("failed to look up recharge order: %w", err)
	}

	if orderUser != userID {
		return domain.NewNotFoundError("recharge order", orderID)
	}
	if domain.RechargeStatus(status) == domain.RechargeStatusConfirmed {
		return tx.Commit(ctx)
	}
	if domain.Money(amountFen) != amount {
		return domain.NewValidationError("amount", fmt.Sprintf("order amount is %s", domain.Money(amountFen)))
	}

	confirm := `
		UPDATE recharge_records
		SET status = $1, confirmed_at = now()
		WHERE order_id = $2`
	if _, err := tx.Exec(ctx, confirm, string(domain.RechargeStatusConfirmed), orderID); err != nil {
		return fmt.Errorf("failed to confirm recharge order: %w", err)
	}

	credit := `
		UPDATE user_balances
		SET balance_fen = balance_fen + $1, updated_at = now()
		WHERE user_id = $2`
	if _, err := tx.Exec(ctx, credit, amountFen, userID); err != nil {
		return fmt.Errorf("failed to credit balance: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit credit: %w", err)
	}

	if l.metrics != nil {
		l.metrics.LedgerCredits.Inc()
	}
	return nil
}

// GetBalance returns the user's balance, creating a zero balance on first
// sight.
func (l *PgLedger) GetBalance(ctx context.Context, userID uuid.UUID) (*domain.UserBalance, error) {
	if err := ensureBalanceRow(ctx, l.db, userID); err != nil {
		return nil, err
	}

	query := `
		SELECT user_id, balance_fen, total_papers_searched, total_amount_spent_fen, created_at, updated_at
		FROM user_balances
		WHERE user_id = $1`

	var (
		balance  domain.UserBalance
		fen      int64
		spentFen int64
	)
	err := l.db.QueryRow(ctx, query, userID).Scan(
		&balance.UserID, &fen, &balance.TotalPapersSearched, &spentFen,
		&balance.CreatedAt, &balance.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get balance: %w", err)
	}
	balance.Balance = domain.Money(fen)
	balance.TotalAmountSpent = domain.Money(spentFen)
	return &balance, nil
}

// CreateRechargeOrder creates a pending top-up order for an accepted
// denomination.
func (l *PgLedger) CreateRechargeOrder(ctx context.Context, userID uuid.UUID, amount domain.Money) (*domain.RechargeRecord, error) {
	if !domain.IsValidRechargeAmount(amount) {
		return nil, domain.NewValidationError("amount", fmt.Sprintf("%s is not an accepted denomination", amount))
	}

	if err := ensureBalanceRow(ctx, l.db, userID); err != nil {
		return nil, err
	}

	insert := `
		INSERT INTO recharge_records (order_id, user_id, amount_fen, status, created_at)
		VALUES ($1, $2, $3, $4, $5)`

	// Order IDs are second-granular per user; on collision nudge the
	// timestamp forward and retry.
	now := time.Now().UTC()
	for attempt := 0; attempt < 3; attempt++ {
		orderID := domain.NewRechargeOrderID(userID, now)
		_, err := l.db.Exec(ctx, insert, orderID, userID, int64(amount), string(domain.RechargeStatusPending), now)
		if err == nil {
			return &domain.RechargeRecord{
				OrderID:   orderID,
				UserID:    userID,
				Amount:    amount,
				Status:    domain.RechargeStatusPending,
				CreatedAt: now,
			}, nil
		}
		if !isPgUniqueViolation(err) {
			return nil, fmt.Errorf("failed to create recharge order: %w", err)
		}
		now = now.Add(time.Second)
	}
	return nil, fmt.Errorf("failed to allocate recharge order id for user %s: %w", userID, domain.ErrAlreadyExists)
}

// GetRechargeOrder returns one top-up order by its ID.
func (l *PgLedger) GetRechargeOrder(ctx context.Context, orderID string) (*domain.RechargeRecord, error) {
	query := `
		SELECT order_id, user_id, amount_fen, status, created_at, confirmed_at
		FROM recharge_records
		WHERE order_id = $1`

	var (
		order     domain.RechargeRecord
		amountFen int64
		status    string
	)
	err := l.db.QueryRow(ctx, query, orderID).Scan(
		&order.OrderID, &order.UserID, &amountFen, &status,
		&order.CreatedAt, &order.ConfirmedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.NewNotFoundError("recharge order", orderID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get recharge order: %w", err)
	}
	order.Amount = domain.Money(amountFen)
	order.Status = domain.RechargeStatus(status)
	return &order, nil
}

// ListUsage returns the user's usage records newest first, with the total
// count for pagination.
func (l *PgLedger) ListUsage(ctx context.Context, userID uuid.UUID, limit, offset int) ([]domain.UsageRecord, int, error) {
	normalizePagination(&limit, &offset)

	var total int
	if err := l.db.QueryRow(ctx, `SELECT COUNT(*) FROM usage_records WHERE user_id = $1`, userID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count usage records: %w", err)
	}

	query := `
		SELECT transaction_id, user_id, query_text, papers_requested, amount_fen, refunded, created_at
		FROM usage_records
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`

	rows, err := l.db.Query(ctx, query, userID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list usage records: %w", err)
	}
	defer rows.Close()

	records := make([]domain.UsageRecord, 0, limit)
	for rows.Next() {
		var (
			record    domain.UsageRecord
			amountFen int64
		)
		if err := rows.Scan(
			&record.TransactionID, &record.UserID, &record.QueryText,
			&record.PapersRequested, &amountFen, &record.Refunded, &record.CreatedAt,
		); err != nil {
			return nil, 0, fmt.Errorf("failed to scan usage record: %w", err)
		}
		record.Amount = domain.Money(amountFen)
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("error iterating usage records: %w", err)
	}

	return records, total, nil
}

// ensureBalanceRow creates the zero-balance row for a user if missing.
func ensureBalanceRow(ctx context.Context, db DBTX, userID uuid.UUID) error {
	upsert := `
		INSERT INTO user_balances (user_id)
		VALUES ($1)
		ON CONFLICT (user_id) DO NOTHING`
	if _, err := db.Exec(ctx, upsert, userID); err != nil {
		return fmt.Errorf("failed to ensure balance row: %w", err)
	}
	return nil
}

// isPgUniqueViolation checks for a PostgreSQL unique constraint violation.
func isPgUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgUniqueViolation
	}
	return false
}
