package repository

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helixir/research-survey-service/internal/domain"
)

func expectEnsureBalance(mock pgxmock.PgxPoolIface, userID uuid.UUID) {
	mock.ExpectExec("INSERT INTO user_balances").
		WithArgs(userID).
		WillReturnResult(pgxmock.NewResult("INSERT", 0))
}

func TestPgLedger_Charge(t *testing.T) {
	ctx := context.Background()
	userID := uuid.New()

	t.Run("debits balance and records usage in one transaction", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		mock.ExpectBegin()
		expectEnsureBalance(mock, userID)
		mock.ExpectExec("UPDATE user_balances").
			WithArgs(int64(200), 20, userID).
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))
		mock.ExpectExec("INSERT INTO usage_records").
			WithArgs(pgxmock.AnyArg(), userID, "transformer architectures", 20, int64(200)).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))
		mock.ExpectCommit()

		l := NewPgLedger(mock, nil)
		txnID, err := l.Charge(ctx, userID, 200, 20, "transformer architectures")
		require.NoError(t, err)
		assert.NotEqual(t, uuid.Nil, txnID)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("guarded debit miss returns insufficient balance", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		mock.ExpectBegin()
		expectEnsureBalance(mock, userID)
		mock.ExpectExec("UPDATE user_balances").
			WithArgs(int64(1500), 150, userID).
			WillReturnResult(pgxmock.NewResult("UPDATE", 0))
		mock.ExpectQuery("SELECT balance_fen FROM user_balances").
			WithArgs(userID).
			WillReturnRows(pgxmock.NewRows([]string{"balance_fen"}).AddRow(int64(1000)))
		mock.ExpectRollback()

		l := NewPgLedger(mock, nil)
		_, err = l.Charge(ctx, userID, 1500, 150, "survey of everything")
		require.Error(t, err)
		assert.ErrorIs(t, err, domain.ErrInsufficientBalance)

		var insufficientErr *domain.InsufficientBalanceError
		require.ErrorAs(t, err, &insufficientErr)
		assert.Equal(t, domain.Money(1500), insufficientErr.Required)
		assert.Equal(t, domain.Money(1000), insufficientErr.Current)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("rejects non-positive cost without touching the db", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		l := NewPgLedger(mock, nil)
		_, err = l.Charge(ctx, userID, 0, 0, "free lunch")
		assert.ErrorIs(t, err, domain.ErrInvalidInput)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestPgLedger_Refund(t *testing.T) {
	ctx := context.Background()
	userID := uuid.New()
	txnID := uuid.New()

	t.Run("flips refunded flag and restores balance", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		mock.ExpectBegin()
		mock.ExpectQuery("UPDATE usage_records").
			WithArgs(txnID).
			WillReturnRows(pgxmock.NewRows([]string{"user_id", "amount_fen", "papers_requested"}).
				AddRow(userID, int64(200), 20))
		mock.ExpectExec("UPDATE user_balances").
			WithArgs(int64(200), 20, userID).
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))
		mock.ExpectCommit()

		l := NewPgLedger(mock, nil)
		require.NoError(t, l.Refund(ctx, txnID))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("already refunded is a no-op", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		mock.ExpectBegin()
		mock.ExpectQuery("UPDATE usage_records").
			WithArgs(txnID).
			WillReturnRows(pgxmock.NewRows([]string{"user_id", "amount_fen", "papers_requested"}))
		mock.ExpectQuery("SELECT refunded FROM usage_records").
			WithArgs(txnID).
			WillReturnRows(pgxmock.NewRows([]string{"refunded"}).AddRow(true))
		mock.ExpectCommit()

		l := NewPgLedger(mock, nil)
		require.NoError(t, l.Refund(ctx, txnID))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("unknown transaction", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		mock.ExpectBegin()
		mock.ExpectQuery("UPDATE usage_records").
			WithArgs(txnID).
			WillReturnRows(pgxmock.NewRows([]string{"user_id", "amount_fen", "papers_requested"}))
		mock.ExpectQuery("SELECT refunded FROM usage_records").
			WithArgs(txnID).
			WillReturnRows(pgxmock.NewRows([]string{"refunded"}))
		mock.ExpectRollback()

		l := NewPgLedger(mock, nil)
		err = l.Refund(ctx, txnID)
		assert.ErrorIs(t, err, domain.ErrNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestPgLedger_Credit(t *testing.T) {
	ctx := context.Background()
	userID := uuid.New()
	orderID := domain.NewRechargeOrderID(userID, time.Now())

	t.Run("confirms pending order and credits balance", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		mock.ExpectBegin()
		mock.ExpectQuery("SELECT user_id, amount_fen, status").
			WithArgs(orderID).
			WillReturnRows(pgxmock.NewRows([]string{"user_id", "amount_fen", "status"}).
				AddRow(userID, int64(5000), "pending"))
		mock.ExpectExec("UPDATE recharge_records").
			WithArgs("confirmed", orderID).
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))
		mock.ExpectExec("UPDATE user_balances").
			WithArgs(int64(5000), userID).
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))
		mock.ExpectCommit()

		l := NewPgLedger(mock, nil)
		require.NoError(t, l.Credit(ctx, userID, orderID, 5000))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("already confirmed credits nothing", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		mock.ExpectBegin()
		mock.ExpectQuery("SELECT user_id, amount_fen, status").
			WithArgs(orderID).
			WillReturnRows(pgxmock.NewRows([]string{"user_id", "amount_fen", "status"}).
				AddRow(userID, int64(5000), "confirmed"))
		mock.ExpectCommit()

		l := NewPgLedger(mock, nil)
		require.NoError(t, l.Credit(ctx, userID, orderID, 5000))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("unknown order", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		mock.ExpectBegin()
		mock.ExpectQuery("SELECT user_id, amount_fen, status").
			WithArgs(orderID).
			WillReturnRows(pgxmock.NewRows([]string{"user_id", "amount_fen", "status"}))
		mock.ExpectRollback()

		l := NewPgLedger(mock, nil)
		err = l.Credit(ctx, userID, orderID, 5000)
		assert.ErrorIs(t, err, domain.ErrNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("another user's order looks unknown", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		mock.ExpectBegin()
		mock.ExpectQuery("SELECT user_id, amount_fen, status").
			WithArgs(orderID).
			WillReturnRows(pgxmock.NewRows([]string{"user_id", "amount_fen", "status"}).
				AddRow(uuid.New(), int64(5000), "pending"))
		mock.ExpectRollback()

		l := NewPgLedger(mock, nil)
		err = l.Credit(ctx, userID, orderID, 5000)
		assert.ErrorIs(t, err, domain.ErrNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("amount mismatch rejected", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		mock.ExpectBegin()
		mock.ExpectQuery("SELECT user_id, amount_fen, status").
			WithArgs(orderID).
			WillReturnRows(pgxmock.NewRows([]string{"user_id", "amount_fen", "status"}).
				AddRow(userID, int64(1000), "pending"))
		mock.ExpectRollback()

		l := NewPgLedger(mock, nil)
		err = l.Credit(ctx, userID, orderID, 5000)
		assert.ErrorIs(t, err, domain.ErrInvalidInput)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestPgLedger_GetBalance(t *testing.T) {
	ctx := context.Background()
	userID := uuid.New()
	now := time.Now().UTC()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	expectEnsureBalance(mock, userID)
	mock.ExpectQuery("SELECT user_id, balance_fen").
		WithArgs(userID).
		WillReturnRows(pgxmock.NewRows([]string{
			"user_id", "balance_fen", "total_papers_searched", "total_amount_spent_fen", "created_at", "updated_at",
		}).AddRow(userID, int64(800), int64(20), int64(200), now, now))

	l := NewPgLedger(mock, nil)
	balance, err := l.GetBalance(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, domain.Money(800), balance.Balance)
	assert.Equal(t, int64(20), balance.TotalPapersSearched)
	assert.Equal(t, domain.Money(200), balance.TotalAmountSpent)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPgLedger_CreateRechargeOrder(t *testing.T) {
	ctx := context.Background()
	userID := uuid.New()

	t.Run("inserts pending order", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		expectEnsureBalance(mock, userID)
		mock.ExpectExec("INSERT INTO recharge_records").
			WithArgs(pgxmock.AnyArg(), userID, int64(5000), "pending", pgxmock.AnyArg()).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))

		l := NewPgLedger(mock, nil)
		order, err := l.CreateRechargeOrder(ctx, userID, 5000)
		require.NoError(t, err)
		assert.Equal(t, domain.RechargeStatusPending, order.Status)
		assert.Equal(t, domain.Money(5000), order.Amount)
		assert.Contains(t, order.OrderID, "recharge_"+userID.String())
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("rejects unlisted denomination without touching the db", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		l := NewPgLedger(mock, nil)
		_, err = l.CreateRechargeOrder(ctx, userID, 1234)
		assert.ErrorIs(t, err, domain.ErrInvalidInput)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestPgLedger_ListUsage(t *testing.T) {
	ctx := context.Background()
	userID := uuid.New()
	now := time.Now().UTC()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery("SELECT COUNT").
		WithArgs(userID).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(5))

	rows := pgxmock.NewRows([]string{
		"transaction_id", "user_id", "query_text", "papers_requested", "amount_fen", "refunded", "created_at",
	}).
		AddRow(uuid.New(), userID, "newest", 10, int64(100), false, now).
		AddRow(uuid.New(), userID, "older", 5, int64(50), true, now.Add(-time.Hour))
	mock.ExpectQuery("SELECT transaction_id").
		WithArgs(userID, 2, 0).
		WillReturnRows(rows)

	l := NewPgLedger(mock, nil)
	records, total, err := l.ListUsage(ctx, userID, 2, 0)
	require.NoError(t, err)
	assert.Equal(t, 5, total)
	require.Len(t, records, 2)
	assert.Equal(t, "newest", records[0].QueryText)
	assert.Equal(t, domain.Money(100), records[0].Amount)
	assert.True(t, records[1].Refunded)
	assert.NoError(t, mock.ExpectationsWereMet())
}
