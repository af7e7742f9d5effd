package ledger

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// anyArgs returns n pgxmock.AnyArg matchers; pgxmock requires the expected
// argument count to match even when the values are irrelevant to the test.
func anyArgs(n int) []interface{} {
	args := make([]interface{}, n)
	for i := range args {
		args[i] = pgxmock.AnyArg()
	}
	return args
}

func testRow() *Transaction {
	return &Transaction{
		ID:               uuid.New(),
		DedupKey:         "abc123",
		AmountMinor:      4250,
		Currency:         "USD",
		Direction:        DirectionDebit,
		Vendor:           "Acme Coffee",
		Category:         "Food & Drink",
		OccurredAt:       time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
		Status:           StatusPendingReview,
		SourceMessageIDs: []string{"msg-1"},
	}
}

func TestPostgresInsert(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	now := time.Now()
	mock.ExpectQuery("INSERT INTO ledger_transactions").
		WithArgs(anyArgs(16)...).
		WillReturnRows(pgxmock.NewRows([]string{"revision", "created_at", "updated_at"}).
			AddRow(int64(1), now, now))

	store := NewPostgresStore(mock)
	tx := testRow()

	require.NoError(t, store.Insert(context.Background(), tx))
	assert.Equal(t, int64(1), tx.Revision)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresInsertDuplicateKey(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery("INSERT INTO ledger_transactions").
		WithArgs(anyArgs(16)...).
		WillReturnError(&pgconn.PgError{Code: uniqueViolation})

	store := NewPostgresStore(mock)

	err = store.Insert(context.Background(), testRow())
	assert.ErrorIs(t, err, ErrDuplicateKey)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresUpdateStaleRevision(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectExec("UPDATE ledger_transactions").
		WithArgs(anyArgs(13)...).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	store := NewPostgresStore(mock)
	tx := testRow()
	tx.Revision = 3

	err = store.Update(context.Background(), tx)
	assert.ErrorIs(t, err, ErrStaleRevision)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresUpdateBumpsRevision(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectExec("UPDATE ledger_transactions").
		WithArgs(anyArgs(13)...).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	store := NewPostgresStore(mock)
	tx := testRow()
	tx.Revision = 3

	require.NoError(t, store.Update(context.Background(), tx))
	assert.Equal(t, int64(4), tx.Revision)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresGetByDedupKeyMissing(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery("SELECT").
		WithArgs("missing").
		WillReturnError(pgx.ErrNoRows)

	store := NewPostgresStore(mock)

	row, err := store.GetByDedupKey(context.Background(), "missing")
	require.NoError(t, err)
	assert.Nil(t, row)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresVersion(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery("SELECT COALESCE").
		WillReturnRows(pgxmock.NewRows([]string{"sum"}).AddRow(int64(42)))

	store := NewPostgresStore(mock)

	v, err := store.Version(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(42), v)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresCategorySeries(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	jan := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	feb := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery("SELECT date_trunc").
		WithArgs(anyArgs(2)...).
		WillReturnRows(pgxmock.NewRows([]string{"period", "total_minor", "tx_count"}).
			AddRow(jan, int64(12000), 4).
			AddRow(feb, int64(9000), 3))

	store := NewPostgresStore(mock)

	series, err := store.CategorySeries(context.Background(), "Groceries", time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Len(t, series, 2)
	assert.Equal(t, jan, series[0].Period)
	assert.Equal(t, int64(12000), series[0].TotalMinor)
	require.NoError(t, mock.ExpectationsWereMet())
}
