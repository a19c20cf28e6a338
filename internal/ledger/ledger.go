// Package ledger implements the pay-per-paper quota ledger gating every
// billed search.
//
// A search is charged before retrieval starts. The charge is a single atomic
// step: either the user's balance covers the cost and one usage record is
// written, or nothing changes and the caller gets an
// InsufficientBalanceError. When the pipeline then fails entirely, the
// caller refunds the charge by transaction ID; refunds and recharge credits
// are idempotent, so retries never move a balance twice.
package ledger

import (
	"context"

	"github.com/google/uuid"

	"github.com/helixir/research-survey-service/internal/domain"
)

// Ledger is the quota ledger contract. All implementations must keep
// balances non-negative under concurrent charges and make Refund and Credit
// idempotent by transaction ID and order ID respectively.
type Ledger interface {
	// Charge atomically debits cost from the user's balance, increments
	// usage counters and records a usage entry, returning the transaction
	// ID for a later refund. Returns an InsufficientBalanceError (wrapping
	// domain.ErrInsufficientBalance) without changing any state when the
	// balance cannot cover the cost.
	Charge(ctx context.Context, userID uuid.UUID, cost domain.Money, papersRequested int, queryText string) (uuid.UUID, error)

	// Refund returns a charged amount to the user's balance and reverses
	// the usage counters. Refunding a transaction that was already
	// refunded is a no-op; an unknown transaction is domain.ErrNotFound.
	Refund(ctx context.Context, txnID uuid.UUID) error

	// Credit confirms the recharge order and adds its amount to the
	// user's balance. Crediting an order that was already confirmed is a
	// no-op; an unknown order is domain.ErrNotFound.
	Credit(ctx context.Context, userID uuid.UUID, orderID string, amount domain.Money) error

	// GetBalance returns the user's balance record, creating a zero
	// balance for a user not seen before.
	GetBalance(ctx context.Context, userID uuid.UUID) (*domain.UserBalance, error)

	// CreateRechargeOrder records a pending top-up order for the amount.
	// The amount must be one of domain.ValidRechargeAmounts.
	CreateRechargeOrder(ctx context.Context, userID uuid.UUID, amount domain.Money) (*domain.RechargeRecord, error)

	// GetRechargeOrder returns one recharge order by its ID.
	GetRechargeOrder(ctx context.Context, orderID string) (*domain.RechargeRecord, error)

	// ListUsage returns the user's usage records newest first, plus the
	// total count for pagination.
	ListUsage(ctx context.Context, userID uuid.UUID, limit, offset int) ([]domain.UsageRecord, int, error)
}
