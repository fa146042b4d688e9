package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"agile-bank/internal/core/domain"
	"agile-bank/internal/core/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestTransaction(sourceID, destID uuid.UUID) *domain.Transaction {
	return &domain.Transaction{
		ID:              uuid.New(),
		SourceAccountID: sourceID,
		DestAccountID:   destID,
		SourceCurrency:  "USD",
		DestCurrency:    "EUR",
		Amount:          decimal.RequireFromString("40.00"),
		ConvertedAmount: decimal.RequireFromString("36.00"),
		Rate:            decimal.RequireFromString("0.9"),
		CreatedAt:       time.Now().UTC().Truncate(time.Microsecond),
	}
}

func txColumns() []string {
	return []string{"id", "source_account_id", "dest_account_id", "source_currency", "dest_currency",
		"amount", "converted_amount", "rate", "created_at"}
}

func addTxRow(rows *pgxmock.Rows, t *domain.Transaction) *pgxmock.Rows {
	return rows.AddRow(
		t.ID, t.SourceAccountID, t.DestAccountID, t.SourceCurrency, t.DestCurrency,
		t.Amount, t.ConvertedAmount, t.Rate, t.CreatedAt,
	)
}

func TestTransactionRepo_Create(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewTransactionRepo(mock)
	txn := newTestTransaction(uuid.New(), uuid.New())

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO transactions").
		WithArgs(
			txn.ID, txn.SourceAccountID, txn.DestAccountID, txn.SourceCurrency, txn.DestCurrency,
			txn.Amount, txn.ConvertedAmount, txn.Rate, txn.CreatedAt,
		).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	dbTx, err := mock.Begin(context.Background())
	require.NoError(t, err)

	err = repo.Create(context.Background(), dbTx, txn)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransactionRepo_Create_SerializationFailure(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewTransactionRepo(mock)
	txn := newTestTransaction(uuid.New(), uuid.New())

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO transactions").
		WillReturnError(&pgconn.PgError{Code: "40001"})

	dbTx, err := mock.Begin(context.Background())
	require.NoError(t, err)

	err = repo.Create(context.Background(), dbTx, txn)
	assert.ErrorIs(t, err, domain.ErrConcurrentUpdate)
}

func TestTransactionRepo_GetByID(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewTransactionRepo(mock)
	txn := newTestTransaction(uuid.New(), uuid.New())

	mock.ExpectQuery("SELECT .+ FROM transactions WHERE id").
		WithArgs(txn.ID).
		WillReturnRows(addTxRow(pgxmock.NewRows(txColumns()), txn))

	result, err := repo.GetByID(context.Background(), txn.ID)
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, txn.SourceAccountID, result.SourceAccountID)
	assert.Equal(t, domain.Currency("EUR"), result.DestCurrency)
	assert.True(t, result.ConvertedAmount.Equal(decimal.RequireFromString("36")))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransactionRepo_GetByID_NotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewTransactionRepo(mock)
	id := uuid.New()

	mock.ExpectQuery("SELECT .+ FROM transactions WHERE id").
		WithArgs(id).
		WillReturnRows(pgxmock.NewRows(txColumns()))

	result, err := repo.GetByID(context.Background(), id)
	assert.NoError(t, err)
	assert.Nil(t, result)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransactionRepo_List(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewTransactionRepo(mock)
	sourceID, destID := uuid.New(), uuid.New()
	t1 := newTestTransaction(sourceID, destID)
	t2 := newTestTransaction(sourceID, destID)

	mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM transactions WHERE source_account_id .+ AND dest_account_id").
		WithArgs(sourceID, destID).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(int64(2)))

	rows := pgxmock.NewRows(txColumns())
	addTxRow(rows, t1)
	addTxRow(rows, t2)
	mock.ExpectQuery("SELECT .+ FROM transactions WHERE .+ ORDER BY created_at DESC, id DESC LIMIT").
		WithArgs(sourceID, destID, 20, 0).
		WillReturnRows(rows)

	txns, total, err := repo.List(context.Background(), ports.TransactionListParams{
		SourceAccountID: &sourceID,
		DestAccountID:   &destID,
		SortBy:          "created_at",
		Order:           ports.SortDesc,
		Page:            1,
		PageSize:        20,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	require.Len(t, txns, 2)
	assert.Equal(t, t1.ID, txns[0].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransactionRepo_List_SortByID(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewTransactionRepo(mock)
	destID := uuid.New()

	mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM transactions WHERE dest_account_id").
		WithArgs(destID).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(int64(0)))
	mock.ExpectQuery("ORDER BY id ASC LIMIT").
		WithArgs(destID, 5, 10).
		WillReturnRows(pgxmock.NewRows(txColumns()))

	_, _, err = repo.List(context.Background(), ports.TransactionListParams{
		DestAccountID: &destID, SortBy: "id", Order: ports.SortAsc, Page: 3, PageSize: 5,
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransactionRepo_List_CountError(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewTransactionRepo(mock)

	mock.ExpectQuery("SELECT COUNT").WillReturnError(errors.New("connection reset"))

	_, _, err = repo.List(context.Background(), ports.TransactionListParams{SortBy: "amount", Page: 1, PageSize: 20})
	assert.ErrorContains(t, err, "count transactions")
}

func TestTransactionRepo_ExistsForAccount(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewTransactionRepo(mock)
	id := uuid.New()

	mock.ExpectQuery("SELECT EXISTS").
		WithArgs(id).
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(true))

	exists, err := repo.ExistsForAccount(context.Background(), id)
	require.NoError(t, err)
	assert.True(t, exists)
	assert.NoError(t, mock.ExpectationsWereMet())
}
