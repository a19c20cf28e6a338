package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Money is an amount in fen (¥0.01). All ledger arithmetic is integer
// arithmetic in fen; yuan values appear only at the API boundary.
type Money int64

// Billing constants, in fen.
const (
	// UnitPricePerPaper is charged per requested paper (¥0.10).
	UnitPricePerPaper Money = 10

	// MinimumSearchCharge is the floor for any billed search (¥0.50).
	MinimumSearchCharge Money = 50
)

// MoneyFromYuan converts a yuan amount to fen, rounding to the nearest fen.
func MoneyFromYuan(yuan float64) Money {
	if yuan >= 0 {
		return Money(yuan*100 + 0.5)
	}
	return Money(yuan*100 - 0.5)
}

// Yuan returns the amount in yuan for display and JSON encoding.
func (m Money) Yuan() float64 {
	return float64(m) / 100
}

// String formats the amount as yuan, e.g. "¥0.50".
func (m Money) String() string {
	return fmt.Sprintf("¥%.2f", m.Yuan())
}

// SearchCost computes the fixed cost of one search request:
// max(paperCount × UnitPricePerPaper, MinimumSearchCharge).
// The cost is computed before retrieval and does not change regardless of
// how many papers are actually returned.
func SearchCost(paperCount int) Money {
	cost := Money(paperCount) * UnitPricePerPaper
	if cost < MinimumSearchCharge {
		return MinimumSearchCharge
	}
	return cost
}

// ValidRechargeAmounts are the accepted top-up denominations, in fen.
var ValidRechargeAmounts = []Money{1000, 5000, 10000, 20000}

// IsValidRechargeAmount reports whether amount is an accepted denomination.
func IsValidRechargeAmount(amount Money) bool {
	for _, v := range ValidRechargeAmounts {
		if amount == v {
			return true
		}
	}
	return false
}

// ChargeState tracks one billed search through the quota ledger.
type ChargeState string

const (
	ChargeStatePending   ChargeState = "pending"
	ChargeStateDebited   ChargeState = "debited"
	ChargeStateCommitted ChargeState = "committed"
	ChargeStateRefunded  ChargeState = "refunded"
	ChargeStateRejected  ChargeState = "rejected"
)

// UserBalance is the prepaid account state for one user. The balance is
// never negative after a successful debit; it is mutated only through the
// quota ledger's charge, refund, and credit operations.
type UserBalance struct {
	UserID              uuid.UUID
	Balance             Money
	TotalPapersSearched int64
	TotalAmountSpent    Money
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// UsageRecord is one billed search debit. TransactionID is the idempotency
// key for refunds: refunding the same transaction twice changes the balance
// only once.
type UsageRecord struct {
	TransactionID   uuid.UUID
	UserID          uuid.UUID
	QueryText       string
	PapersRequested int
	Amount          Money
	Refunded        bool
	CreatedAt       time.Time
}

// RechargeStatus is the lifecycle state of a top-up order.
type RechargeStatus string

const (
	RechargeStatusPending   RechargeStatus = "pending"
	RechargeStatusConfirmed RechargeStatus = "confirmed"
)

// RechargeRecord is one top-up order. OrderID is the idempotency key for
// credits: confirming the same order twice credits the balance only once.
type RechargeRecord struct {
	OrderID     string
	UserID      uuid.UUID
	Amount      Money
	Status      RechargeStatus
	CreatedAt   time.Time
	ConfirmedAt *time.Time
}

// NewRechargeOrderID builds the order identifier for a pending top-up.
func NewRechargeOrderID(userID uuid.UUID, createdAt time.Time) string {
	return fmt.Sprintf("recharge_%s_%d", userID, createdAt.Unix())
}
