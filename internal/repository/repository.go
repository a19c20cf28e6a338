// Package repository provides PostgreSQL persistence for the research
// survey service: the quota ledger tables (user balances, usage records,
// recharge orders) and the synthesized reports store.
//
// All implementations are safe for concurrent use; the underlying pgxpool
// handles connection pooling. Methods return domain errors (ErrNotFound,
// ErrInsufficientBalance, ErrInvalidInput) wrapped with query context.
//
// Repositories accept the DBTX interface so the same code runs against a
// pool, an open transaction, or a pgxmock pool in tests. Operations that
// must be atomic (charge, refund, credit) additionally require the DBTX to
// support Begin and open their own transaction.
package repository

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/helixir/research-survey-service/internal/database"
)

// DBTX is the database interface supporting both pool and transaction
// contexts. See database.DBTX.
type DBTX = database.DBTX

// txBeginner is satisfied by connection pools (and pgxmock pools) that can
// open transactions. The ledger's mutating operations require it.
type txBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Pagination defaults for list queries.
const (
	defaultListLimit = 20
	maxListLimit     = 100
)

// normalizePagination clamps limit to [1, maxListLimit] and offset to >= 0.
func normalizePagination(limit, offset *int) {
	if *limit <= 0 {
		*limit = defaultListLimit
	}
	if *limit > maxListLimit {
		*limit = maxListLimit
	}
	if *offset < 0 {
		*offset = 0
	}
}
