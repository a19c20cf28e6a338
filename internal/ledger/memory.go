package ledger

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/helixir/research-survey-service/internal/domain"
	"github.com/helixir/research-survey-service/internal/observability"
)

// MemoryLedger is an in-process Ledger for development mode and pipeline
// tests. One mutex serializes all operations, which trivially gives the
// same atomicity the Postgres implementation gets from row-level locking.
type MemoryLedger struct {
	mu       sync.Mutex
	balances map[uuid.UUID]*domain.UserBalance
	usage    map[uuid.UUID]*domain.UsageRecord
	byUser   map[uuid.UUID][]uuid.UUID // usage transaction IDs, oldest first
	orders   map[string]*domain.RechargeRecord
	metrics  *observability.Metrics
	now      func() time.Time
}

var _ Ledger = (*MemoryLedger)(nil)

// NewMemoryLedger creates an empty in-memory ledger. metrics may be nil.
func NewMemoryLedger(metrics *observability.Metrics) *MemoryLedger {
	return &MemoryLedger{
		balances: make(map[uuid.UUID]*domain.UserBalance),
		usage:    make(map[uuid.UUID]*domain.UsageRecord),
		byUser:   make(map[uuid.UUID][]uuid.UUID),
		orders:   make(map[string]*domain.RechargeRecord),
		metrics:  metrics,
		now:      time.Now,
	}
}

// Charge implements Ledger.
func (m *MemoryLedger) Charge(ctx context.Context, userID uuid.UUID, cost domain.Money, papersRequested int, queryText string) (uuid.UUID, error) {
	if cost <= 0 {
		return uuid.Nil, domain.NewValidationError("cost", "must be positive")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	balance := m.ensureBalanceLocked(userID)
	if balance.Balance < cost {
		if m.metrics != nil {
			m.metrics.LedgerRejections.Inc()
		}
		return uuid.Nil, domain.NewInsufficientBalanceError(cost, balance.Balance)
	}

	now := m.now().UTC()
	balance.Balance -= cost
	balance.TotalPapersSearched += int64(papersRequested)
	balance.TotalAmountSpent += cost
	balance.UpdatedAt = now

	txnID := uuid.New()
	record := &domain.UsageRecord{
		TransactionID:   txnID,
		UserID:          userID,
		QueryText:       queryText,
		PapersRequested: papersRequested,
		Amount:          cost,
		CreatedAt:       now,
	}
	m.usage[txnID] = record
	m.byUser[userID] = append(m.byUser[userID], txnID)

	if m.metrics != nil {
		m.metrics.LedgerCharges.Inc()
		m.metrics.AmountChargedFen.Add(float64(cost))
	}
	return txnID, nil
}

// Refund implements Ledger.
func (m *MemoryLedger) Refund(ctx context.Context, txnID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	record, ok := m.usage[txnID]
	if !ok {
		return domain.NewNotFoundError("usage record", txnID.String())
	}
	if record.Refunded {
		return nil
	}

	record.Refunded = true
	balance := m.ensureBalanceLocked(record.UserID)
	balance.Balance += record.Amount
	balance.TotalPapersSearched -= int64(record.PapersRequested)
	balance.TotalAmountSpent -= record.Amount
	balance.UpdatedAt = m.now().UTC()

	if m.metrics != nil {
		m.metrics.LedgerRefunds.Inc()
	}
	return nil
}

// Credit implements Ledger.
func (m *MemoryLedger) Credit(ctx context.Context, userID uuid.UUID, orderID string, amount domain.Money) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	order, ok := m.orders[orderID]
	if !ok {
		return domain.NewNotFoundError("recharge order", orderID)
	}
	if order.UserID != userID {
		return domain.NewNotFoundError("recharge order", orderID)
	}
	if order.Status == domain.RechargeStatusConfirmed {
		return nil
	}
	if order.Amount != amount {
		return domain.NewValidationError("amount", fmt.Sprintf("order amount is %s", order.Amount))
	}

	now := m.now().UTC()
	order.Status = domain.RechargeStatusConfirmed
	order.ConfirmedAt = &now

	balance := m.ensureBalanceLocked(userID)
	balance.Balance += amount
	balance.UpdatedAt = now

	if m.metrics != nil {
		m.metrics.LedgerCredits.Inc()
	}
	return nil
}

// GetBalance implements Ledger.
func (m *MemoryLedger) GetBalance(ctx context.Context, userID uuid.UUID) (*domain.UserBalance, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	balance := *m.ensureBalanceLocked(userID)
	return &balance, nil
}

// CreateRechargeOrder implements Ledger.
func (m *MemoryLedger) CreateRechargeOrder(ctx context.Context, userID uuid.UUID, amount domain.Money) (*domain.RechargeRecord, error) {
	if !domain.IsValidRechargeAmount(amount) {
		return nil, domain.NewValidationError("amount", fmt.Sprintf("%s is not an accepted denomination", amount))
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now().UTC()
	orderID := domain.NewRechargeOrderID(userID, now)
	// Two orders from the same user within one second collide on the
	// timestamped ID; nudge forward until free.
	for _, exists := m.orders[orderID]; exists; _, exists = m.orders[orderID] {
		now = now.Add(time.Second)
		orderID = domain.NewRechargeOrderID(userID, now)
	}

	order := &domain.RechargeRecord{
		OrderID:   orderID,
		UserID:    userID,
		Amount:    amount,
		Status:    domain.RechargeStatusPending,
		CreatedAt: now,
	}
	m.orders[orderID] = order

	copied := *order
	return &copied, nil
}

// GetRechargeOrder implements Ledger.
func (m *MemoryLedger) GetRechargeOrder(ctx context.Context, orderID string) (*domain.RechargeRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	order, ok := m.orders[orderID]
	if !ok {
		return nil, domain.NewNotFoundError("recharge order", orderID)
	}
	copied := *order
	return &copied, nil
}

// ListUsage implements Ledger.
func (m *MemoryLedger) ListUsage(ctx context.Context, userID uuid.UUID, limit, offset int) ([]domain.UsageRecord, int, error) {
	if limit <= 0 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	ids := m.byUser[userID]
	total := len(ids)

	records := make([]domain.UsageRecord, 0, limit)
	// Newest first: walk the per-user list backwards from the offset.
	for i := total - 1 - offset; i >= 0 && len(records) < limit; i-- {
		records = append(records, *m.usage[ids[i]])
	}
	return records, total, nil
}

// ensureBalanceLocked returns the user's balance record, creating a zero
// balance on first sight. Callers must hold m.mu.
func (m *MemoryLedger) ensureBalanceLocked(userID uuid.UUID) *domain.UserBalance {
	if balance, ok := m.balances[userID]; ok {
		return balance
	}
	now := m.now().UTC()
	balance := &domain.UserBalance{
		UserID:    userID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	m.balances[userID] = balance
	return balance
}
