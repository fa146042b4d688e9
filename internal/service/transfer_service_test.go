package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"agile-bank/internal/core/domain"
	"agile-bank/internal/core/ports"
	"agile-bank/internal/core/ports/mocks"
	"agile-bank/pkg/apperror"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

type transferTestDeps struct {
	svc         *TransferServiceImpl
	accountRepo *mocks.MockAccountRepository
	txRepo      *mocks.MockTransactionRepository
	idempRepo   *mocks.MockIdempotencyRepository
	idempCache  *mocks.MockIdempotencyCache
	transactor  *mocks.MockDBTransactor
	ctrl        *gomock.Controller
}

func setupTransferService(t *testing.T, cfg TransferConfig) *transferTestDeps {
	ctrl := gomock.NewController(t)
	d := &transferTestDeps{
		accountRepo: mocks.NewMockAccountRepository(ctrl),
		txRepo:      mocks.NewMockTransactionRepository(ctrl),
		idempRepo:   mocks.NewMockIdempotencyRepository(ctrl),
		idempCache:  mocks.NewMockIdempotencyCache(ctrl),
		transactor:  mocks.NewMockDBTransactor(ctrl),
		ctrl:        ctrl,
	}
	d.svc = NewTransferService(
		d.accountRepo, d.txRepo, d.idempRepo, d.idempCache,
		d.transactor, newTestLedger(t), nil, cfg, newTestLogger(),
	)
	return d
}

func account(cur domain.Currency, balance string) *domain.Account {
	return &domain.Account{ID: uuid.New(), Currency: cur, Balance: dec(balance), Version: 1}
}

// expectLocks registers both ForUpdate reads in ascending id order.
func (d *transferTestDeps) expectLocks(tx *mockTx, accounts ...*domain.Account) {
	a, b := accounts[0], accounts[1]
	if bytes.Compare(a.ID[:], b.ID[:]) > 0 {
		a, b = b, a
	}
	gomock.InOrder(
		d.accountRepo.EXPECT().GetByIDForUpdate(gomock.Any(), tx, a.ID).Return(a, nil),
		d.accountRepo.EXPECT().GetByIDForUpdate(gomock.Any(), tx, b.ID).Return(b, nil),
	)
}

// ==================== Transfer Tests ====================

func TestTransferService_Transfer_CrossCurrency(t *testing.T) {
	d := setupTransferService(t, TransferConfig{})
	defer d.ctrl.Finish()

	ctx := context.Background()
	tx := &mockTx{}
	src := account("USD", "100")
	dst := account("EUR", "0")

	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.expectLocks(tx, src, dst)
	d.accountRepo.EXPECT().UpdateBalance(ctx, tx, src.ID, decEq("60"), int64(1)).Return(nil)
	d.accountRepo.EXPECT().UpdateBalance(ctx, tx, dst.ID, decEq("36.00"), int64(1)).Return(nil)
	d.txRepo.EXPECT().Create(ctx, tx, gomock.Any()).Return(nil)

	txn, err := d.svc.Transfer(ctx, ports.TransferRequest{
		SourceAccountID: src.ID,
		DestAccountID:   dst.ID,
		Amount:          dec("40"),
	})
	require.NoError(t, err)
	require.NotNil(t, txn)
	assert.Equal(t, src.ID, txn.SourceAccountID)
	assert.Equal(t, dst.ID, txn.DestAccountID)
	assert.Equal(t, domain.Currency("USD"), txn.SourceCurrency)
	assert.Equal(t, domain.Currency("EUR"), txn.DestCurrency)
	assert.Equal(t, "40", txn.Amount.String())
	assert.Equal(t, "36", txn.ConvertedAmount.String())
	assert.True(t, txn.Rate.Equal(dec("0.9")))
	assert.Equal(t, uuid.Version(7), txn.ID.Version())
	assert.True(t, txn.IsCrossCurrency())

	// Accounts handed out by the repository are not mutated in place.
	assert.True(t, src.Balance.Equal(dec("100")))
}

func TestTransferService_Transfer_SameCurrency(t *testing.T) {
	d := setupTransferService(t, TransferConfig{})
	defer d.ctrl.Finish()

	ctx := context.Background()
	tx := &mockTx{}
	src := account("USD", "10.50")
	dst := account("USD", "1.25")

	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.expectLocks(tx, src, dst)
	d.accountRepo.EXPECT().UpdateBalance(ctx, tx, src.ID, decEq("0"), int64(1)).Return(nil)
	d.accountRepo.EXPECT().UpdateBalance(ctx, tx, dst.ID, decEq("11.75"), int64(1)).Return(nil)
	d.txRepo.EXPECT().Create(ctx, tx, gomock.Any()).Return(nil)

	txn, err := d.svc.Transfer(ctx, ports.TransferRequest{
		SourceAccountID: src.ID,
		DestAccountID:   dst.ID,
		Amount:          dec("10.50"),
		Currency:        "USD",
	})
	require.NoError(t, err)
	assert.True(t, txn.Rate.Equal(decimal.NewFromInt(1)))
	assert.True(t, txn.ConvertedAmount.Equal(dec("10.50")))
	assert.False(t, txn.IsCrossCurrency())
}

func TestTransferService_Transfer_ReverseDirectionUsesReciprocal(t *testing.T) {
	d := setupTransferService(t, TransferConfig{})
	defer d.ctrl.Finish()

	ctx := context.Background()
	tx := &mockTx{}
	src := account("EUR", "100")
	dst := account("USD", "0")

	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.expectLocks(tx, src, dst)
	d.accountRepo.EXPECT().UpdateBalance(ctx, tx, src.ID, decEq("91"), int64(1)).Return(nil)
	// 9 / 0.9 = 10
	d.accountRepo.EXPECT().UpdateBalance(ctx, tx, dst.ID, decEq("10"), int64(1)).Return(nil)
	d.txRepo.EXPECT().Create(ctx, tx, gomock.Any()).Return(nil)

	txn, err := d.svc.Transfer(ctx, ports.TransferRequest{
		SourceAccountID: src.ID, DestAccountID: dst.ID, Amount: dec("9"),
	})
	require.NoError(t, err)
	assert.Equal(t, "10", txn.ConvertedAmount.String())
}

func TestTransferService_Transfer_LocksInAscendingIDOrder(t *testing.T) {
	d := setupTransferService(t, TransferConfig{})
	defer d.ctrl.Finish()

	ctx := context.Background()
	tx := &mockTx{}
	low := &domain.Account{ID: uuid.MustParse("00000000-0000-0000-0000-000000000001"), Currency: "USD", Balance: dec("5")}
	high := &domain.Account{ID: uuid.MustParse("ffffffff-0000-0000-0000-000000000001"), Currency: "USD", Balance: dec("5")}

	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	gomock.InOrder(
		d.accountRepo.EXPECT().GetByIDForUpdate(ctx, tx, low.ID).Return(low, nil),
		d.accountRepo.EXPECT().GetByIDForUpdate(ctx, tx, high.ID).Return(high, nil),
	)
	gomock.InOrder(
		d.accountRepo.EXPECT().UpdateBalance(ctx, tx, high.ID, decEq("4"), int64(0)).Return(nil),
		d.accountRepo.EXPECT().UpdateBalance(ctx, tx, low.ID, decEq("6"), int64(0)).Return(nil),
	)
	d.txRepo.EXPECT().Create(ctx, tx, gomock.Any()).Return(nil)

	// high -> low still locks low first.
	_, err := d.svc.Transfer(ctx, ports.TransferRequest{
		SourceAccountID: high.ID, DestAccountID: low.ID, Amount: dec("1"),
	})
	require.NoError(t, err)
}

func TestTransferService_Transfer_RejectedBeforeStorage(t *testing.T) {
	id := uuid.New()

	tests := []struct {
		name string
		req  ports.TransferRequest
		code string
	}{
		{"same account", ports.TransferRequest{SourceAccountID: id, DestAccountID: id, Amount: dec("1")}, "TXN_001"},
		{"zero amount", ports.TransferRequest{SourceAccountID: id, DestAccountID: uuid.New(), Amount: decimal.Zero}, "TXN_002"},
		{"negative amount", ports.TransferRequest{SourceAccountID: id, DestAccountID: uuid.New(), Amount: dec("-3")}, "TXN_002"},
		{"unknown currency", ports.TransferRequest{SourceAccountID: id, DestAccountID: uuid.New(), Amount: dec("1"), Currency: "ABC"}, "LDG_001"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// No storage expectations: any repository call fails the test.
			d := setupTransferService(t, TransferConfig{})
			defer d.ctrl.Finish()

			txn, err := d.svc.Transfer(context.Background(), tt.req)
			assert.Nil(t, txn)
			assertAppError(t, err, tt.code)
		})
	}
}

func TestTransferService_Transfer_AccountNotFound(t *testing.T) {
	d := setupTransferService(t, TransferConfig{})
	defer d.ctrl.Finish()

	ctx := context.Background()
	tx := &mockTx{}
	srcID, dstID := uuid.New(), uuid.New()

	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.accountRepo.EXPECT().GetByIDForUpdate(ctx, tx, gomock.Any()).Return(nil, nil).Times(2)

	_, err := d.svc.Transfer(ctx, ports.TransferRequest{SourceAccountID: srcID, DestAccountID: dstID, Amount: dec("1")})
	assertAppError(t, err, "ACC_001")

	var notFound *domain.AccountNotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, srcID, notFound.AccountID, "source is reported before destination")

	var appErr *apperror.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, srcID.String(), appErr.Details["account_id"])
}

func TestTransferService_Transfer_DestinationNotFound(t *testing.T) {
	d := setupTransferService(t, TransferConfig{})
	defer d.ctrl.Finish()

	ctx := context.Background()
	tx := &mockTx{}
	src := account("USD", "10")
	dstID := uuid.New()

	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.accountRepo.EXPECT().GetByIDForUpdate(ctx, tx, src.ID).Return(src, nil)
	d.accountRepo.EXPECT().GetByIDForUpdate(ctx, tx, dstID).Return(nil, nil)

	_, err := d.svc.Transfer(ctx, ports.TransferRequest{SourceAccountID: src.ID, DestAccountID: dstID, Amount: dec("1")})
	var notFound *domain.AccountNotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, dstID, notFound.AccountID)
}

func TestTransferService_Transfer_InsufficientBalance(t *testing.T) {
	d := setupTransferService(t, TransferConfig{})
	defer d.ctrl.Finish()

	ctx := context.Background()
	tx := &mockTx{}
	src := account("USD", "100")
	dst := account("EUR", "0")

	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.expectLocks(tx, src, dst)
	// No UpdateBalance: nothing may be written.

	_, err := d.svc.Transfer(ctx, ports.TransferRequest{SourceAccountID: src.ID, DestAccountID: dst.ID, Amount: dec("100.01")})
	assertAppError(t, err, "TXN_003")

	var insufficient *domain.InsufficientBalanceError
	require.ErrorAs(t, err, &insufficient)
	assert.Equal(t, src.ID, insufficient.AccountID)
	assert.True(t, insufficient.Available.Equal(dec("100")))
	assert.True(t, insufficient.Requested.Equal(dec("100.01")))
}

func TestTransferService_Transfer_DrainsToZero(t *testing.T) {
	d := setupTransferService(t, TransferConfig{})
	defer d.ctrl.Finish()

	ctx := context.Background()
	tx := &mockTx{}
	src := account("USD", "100")
	dst := account("JPY", "0")

	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.expectLocks(tx, src, dst)
	d.accountRepo.EXPECT().UpdateBalance(ctx, tx, src.ID, decEq("0"), int64(1)).Return(nil)
	d.accountRepo.EXPECT().UpdateBalance(ctx, tx, dst.ID, decEq("15000"), int64(1)).Return(nil)
	d.txRepo.EXPECT().Create(ctx, tx, gomock.Any()).Return(nil)

	txn, err := d.svc.Transfer(ctx, ports.TransferRequest{SourceAccountID: src.ID, DestAccountID: dst.ID, Amount: dec("100")})
	require.NoError(t, err)
	assert.Equal(t, "15000", txn.ConvertedAmount.String())
}

func TestTransferService_Transfer_CurrencyRules(t *testing.T) {
	tests := []struct {
		name     string
		src, dst *domain.Account
		amount   string
		currency domain.Currency
		code     string
	}{
		{"stated currency is not the source's", account("USD", "10"), account("EUR", "0"), "1", "EUR", "TXN_004"},
		{"amount finer than minor units", account("USD", "10"), account("EUR", "0"), "1.005", "", "TXN_005"},
		{"no rate between pair", account("USD", "10"), account("GBP", "0"), "1", "", "LDG_002"},
		{"account currency unknown", account("XAU", "10"), account("USD", "0"), "1", "", "LDG_001"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := setupTransferService(t, TransferConfig{})
			defer d.ctrl.Finish()

			ctx := context.Background()
			tx := &mockTx{}
			d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
			d.expectLocks(tx, tt.src, tt.dst)

			_, err := d.svc.Transfer(ctx, ports.TransferRequest{
				SourceAccountID: tt.src.ID,
				DestAccountID:   tt.dst.ID,
				Amount:          dec(tt.amount),
				Currency:        tt.currency,
			})
			assertAppError(t, err, tt.code)
		})
	}
}

func TestTransferService_Transfer_RetriesLostRace(t *testing.T) {
	d := setupTransferService(t, TransferConfig{MaxRetries: 2})
	defer d.ctrl.Finish()

	ctx := context.Background()
	tx := &mockTx{}
	src := account("USD", "50")
	dst := account("USD", "0")
	srcAfterRace := &domain.Account{ID: src.ID, Currency: "USD", Balance: dec("45"), Version: 2}

	d.transactor.EXPECT().Begin(ctx).Return(tx, nil).Times(2)

	// First attempt loses the version check on the destination.
	d.expectLocks(tx, src, dst)
	d.accountRepo.EXPECT().UpdateBalance(ctx, tx, src.ID, decEq("40"), int64(1)).Return(nil)
	d.accountRepo.EXPECT().UpdateBalance(ctx, tx, dst.ID, decEq("10"), int64(1)).Return(domain.ErrConcurrentUpdate)

	// Second attempt sees fresh state.
	d.expectLocks(tx, srcAfterRace, dst)
	d.accountRepo.EXPECT().UpdateBalance(ctx, tx, src.ID, decEq("35"), int64(2)).Return(nil)
	d.accountRepo.EXPECT().UpdateBalance(ctx, tx, dst.ID, decEq("10"), int64(1)).Return(nil)
	d.txRepo.EXPECT().Create(ctx, tx, gomock.Any()).Return(nil)

	txn, err := d.svc.Transfer(ctx, ports.TransferRequest{SourceAccountID: src.ID, DestAccountID: dst.ID, Amount: dec("10")})
	require.NoError(t, err)
	assert.True(t, txn.Amount.Equal(dec("10")))
}

func TestTransferService_Transfer_RetriesExhausted(t *testing.T) {
	d := setupTransferService(t, TransferConfig{MaxRetries: 1})
	defer d.ctrl.Finish()

	ctx := context.Background()
	tx := &failingTx{err: domain.ErrConcurrentUpdate}
	src := account("USD", "50")
	dst := account("USD", "0")

	d.transactor.EXPECT().Begin(ctx).Return(tx, nil).Times(2)
	d.accountRepo.EXPECT().GetByIDForUpdate(ctx, tx, src.ID).Return(src, nil).Times(2)
	d.accountRepo.EXPECT().GetByIDForUpdate(ctx, tx, dst.ID).Return(dst, nil).Times(2)
	d.accountRepo.EXPECT().UpdateBalance(ctx, tx, gomock.Any(), gomock.Any(), gomock.Any()).Return(nil).Times(4)
	d.txRepo.EXPECT().Create(ctx, tx, gomock.Any()).Return(nil).Times(2)

	_, err := d.svc.Transfer(ctx, ports.TransferRequest{SourceAccountID: src.ID, DestAccountID: dst.ID, Amount: dec("10")})
	assertAppError(t, err, "SYS_003")

	var commitErr *domain.StorageCommitError
	require.ErrorAs(t, err, &commitErr)
	assert.Equal(t, 2, commitErr.Attempts)
	assert.ErrorIs(t, err, domain.ErrConcurrentUpdate)
}

func TestTransferService_Transfer_BackoffStopsOnCancel(t *testing.T) {
	d := setupTransferService(t, TransferConfig{MaxRetries: 3, RetryBaseDelay: time.Hour})
	defer d.ctrl.Finish()

	ctx, cancel := context.WithCancel(context.Background())
	tx := &failingTx{err: domain.ErrConcurrentUpdate}
	src := account("USD", "50")
	dst := account("USD", "0")

	// Only the first attempt runs; the hour-long backoff is cut short.
	d.transactor.EXPECT().Begin(gomock.Any()).Return(tx, nil)
	d.accountRepo.EXPECT().GetByIDForUpdate(gomock.Any(), tx, src.ID).Return(src, nil)
	d.accountRepo.EXPECT().GetByIDForUpdate(gomock.Any(), tx, dst.ID).Return(dst, nil)
	d.accountRepo.EXPECT().UpdateBalance(gomock.Any(), tx, gomock.Any(), gomock.Any(), gomock.Any()).Return(nil).Times(2)
	d.txRepo.EXPECT().Create(gomock.Any(), tx, gomock.Any()).DoAndReturn(
		func(context.Context, pgx.Tx, *domain.Transaction) error {
			cancel()
			return nil
		},
	)

	start := time.Now()
	_, err := d.svc.Transfer(ctx, ports.TransferRequest{SourceAccountID: src.ID, DestAccountID: dst.ID, Amount: dec("10")})
	assert.Less(t, time.Since(start), time.Minute)
	assertAppError(t, err, "SYS_003")

	var commitErr *domain.StorageCommitError
	require.ErrorAs(t, err, &commitErr)
	assert.Equal(t, 1, commitErr.Attempts)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestTransferService_Transfer_CommitFailureIsNotRetried(t *testing.T) {
	d := setupTransferService(t, TransferConfig{MaxRetries: 3})
	defer d.ctrl.Finish()

	ctx := context.Background()
	diskFull := errors.New("could not extend file")
	tx := &failingTx{err: diskFull}
	src := account("USD", "50")
	dst := account("USD", "0")

	d.transactor.EXPECT().Begin(ctx).Return(tx, nil).Times(1)
	d.accountRepo.EXPECT().GetByIDForUpdate(ctx, tx, src.ID).Return(src, nil)
	d.accountRepo.EXPECT().GetByIDForUpdate(ctx, tx, dst.ID).Return(dst, nil)
	d.accountRepo.EXPECT().UpdateBalance(ctx, tx, gomock.Any(), gomock.Any(), gomock.Any()).Return(nil).Times(2)
	d.txRepo.EXPECT().Create(ctx, tx, gomock.Any()).Return(nil)

	_, err := d.svc.Transfer(ctx, ports.TransferRequest{SourceAccountID: src.ID, DestAccountID: dst.ID, Amount: dec("10")})
	assertAppError(t, err, "SYS_003")
	assert.ErrorIs(t, err, diskFull)

	var commitErr *domain.StorageCommitError
	require.ErrorAs(t, err, &commitErr)
	assert.Equal(t, 1, commitErr.Attempts)
}

func TestTransferService_Transfer_BeginFails(t *testing.T) {
	d := setupTransferService(t, TransferConfig{})
	defer d.ctrl.Finish()

	ctx := context.Background()
	d.transactor.EXPECT().Begin(ctx).Return(nil, errors.New("pool closed"))

	_, err := d.svc.Transfer(ctx, ports.TransferRequest{SourceAccountID: uuid.New(), DestAccountID: uuid.New(), Amount: dec("1")})
	assertAppError(t, err, "SYS_001")
}

func TestTransferService_Transfer_LockTimeout(t *testing.T) {
	d := setupTransferService(t, TransferConfig{})
	defer d.ctrl.Finish()

	ctx := context.Background()
	tx := &mockTx{}
	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.accountRepo.EXPECT().GetByIDForUpdate(ctx, tx, gomock.Any()).Return(nil, context.DeadlineExceeded)

	_, err := d.svc.Transfer(ctx, ports.TransferRequest{SourceAccountID: uuid.New(), DestAccountID: uuid.New(), Amount: dec("1")})
	assertAppError(t, err, "SYS_002")
}

// ==================== Idempotency Tests ====================

func TestTransferService_Transfer_IdempotencyKeyStored(t *testing.T) {
	d := setupTransferService(t, TransferConfig{IdempotencyTTL: time.Hour})
	defer d.ctrl.Finish()

	ctx := context.Background()
	tx := &mockTx{}
	src := account("USD", "100")
	dst := account("EUR", "0")
	key := domain.BuildTransferIdempotencyKey("req-1")

	d.idempCache.EXPECT().Get(ctx, key).Return(nil, nil)
	d.idempRepo.EXPECT().Get(ctx, key).Return(nil, nil)
	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.expectLocks(tx, src, dst)
	d.accountRepo.EXPECT().UpdateBalance(ctx, tx, gomock.Any(), gomock.Any(), gomock.Any()).Return(nil).Times(2)
	d.txRepo.EXPECT().Create(ctx, tx, gomock.Any()).Return(nil)

	var stored *domain.IdempotencyLog
	d.idempRepo.EXPECT().Create(ctx, tx, gomock.Any()).DoAndReturn(
		func(_ context.Context, _ pgx.Tx, entry *domain.IdempotencyLog) error {
			stored = entry
			return nil
		})
	d.idempCache.EXPECT().Set(ctx, key, gomock.Any(), time.Hour).Return(errors.New("redis down"))

	txn, err := d.svc.Transfer(ctx, ports.TransferRequest{
		SourceAccountID: src.ID, DestAccountID: dst.ID, Amount: dec("40"), IdempotencyKey: "req-1",
	})
	require.NoError(t, err, "cache failures are best-effort")
	require.NotNil(t, stored)
	assert.Equal(t, key, stored.Key)
	assert.Equal(t, txn.ID, stored.TransactionID)

	var decoded domain.Transaction
	require.NoError(t, json.Unmarshal(stored.ResponseJSON, &decoded))
	assert.True(t, decoded.ConvertedAmount.Equal(dec("36")))
}

func TestTransferService_Transfer_IdempotentRedisHit(t *testing.T) {
	d := setupTransferService(t, TransferConfig{})
	defer d.ctrl.Finish()

	ctx := context.Background()
	cached := &domain.Transaction{
		ID:              uuid.New(),
		SourceAccountID: uuid.New(),
		DestAccountID:   uuid.New(),
		Amount:          dec("40"),
		ConvertedAmount: dec("36"),
	}
	cachedJSON, _ := json.Marshal(cached)

	d.idempCache.EXPECT().Get(ctx, "transfer:req-2").Return(cachedJSON, nil)

	txn, err := d.svc.Transfer(ctx, ports.TransferRequest{
		SourceAccountID: cached.SourceAccountID,
		DestAccountID:   cached.DestAccountID,
		Amount:          dec("40.00"),
		IdempotencyKey:  "req-2",
	})
	require.NoError(t, err)
	assert.Equal(t, cached.ID, txn.ID)
}

func TestTransferService_Transfer_IdempotentDBHitAfterRedisError(t *testing.T) {
	d := setupTransferService(t, TransferConfig{})
	defer d.ctrl.Finish()

	ctx := context.Background()
	prior := &domain.Transaction{ID: uuid.New(), SourceAccountID: uuid.New(), DestAccountID: uuid.New(), Amount: dec("5")}
	priorJSON, _ := json.Marshal(prior)

	d.idempCache.EXPECT().Get(ctx, "transfer:req-3").Return(nil, errors.New("circuit open"))
	d.idempRepo.EXPECT().Get(ctx, "transfer:req-3").Return(&domain.IdempotencyLog{
		Key: "transfer:req-3", TransactionID: prior.ID, ResponseJSON: priorJSON,
	}, nil)

	txn, err := d.svc.Transfer(ctx, ports.TransferRequest{
		SourceAccountID: prior.SourceAccountID, DestAccountID: prior.DestAccountID, Amount: dec("5"), IdempotencyKey: "req-3",
	})
	require.NoError(t, err)
	assert.Equal(t, prior.ID, txn.ID)
}

func TestTransferService_Transfer_IdempotencyKeyReused(t *testing.T) {
	d := setupTransferService(t, TransferConfig{})
	defer d.ctrl.Finish()

	ctx := context.Background()
	prior := &domain.Transaction{ID: uuid.New(), SourceAccountID: uuid.New(), DestAccountID: uuid.New(), Amount: dec("5")}
	priorJSON, _ := json.Marshal(prior)

	d.idempCache.EXPECT().Get(ctx, "transfer:req-4").Return(priorJSON, nil)

	_, err := d.svc.Transfer(ctx, ports.TransferRequest{
		SourceAccountID: prior.SourceAccountID, DestAccountID: prior.DestAccountID, Amount: dec("6"), IdempotencyKey: "req-4",
	})
	assertAppError(t, err, "TXN_007")
}

func TestTransferService_Transfer_IdempotencyKeyReusedWithOtherCurrency(t *testing.T) {
	d := setupTransferService(t, TransferConfig{})
	defer d.ctrl.Finish()

	ctx := context.Background()
	prior := &domain.Transaction{
		ID: uuid.New(), SourceAccountID: uuid.New(), DestAccountID: uuid.New(),
		SourceCurrency: "USD", DestCurrency: "EUR", Amount: dec("5"),
	}
	priorJSON, _ := json.Marshal(prior)
	d.idempCache.EXPECT().Get(ctx, "transfer:req-6").Return(priorJSON, nil).Times(3)

	req := ports.TransferRequest{
		SourceAccountID: prior.SourceAccountID, DestAccountID: prior.DestAccountID, Amount: dec("5"),
		Currency: "EUR", IdempotencyKey: "req-6",
	}
	_, err := d.svc.Transfer(ctx, req)
	assertAppError(t, err, "TXN_007")

	req.Currency = "USD"
	txn, err := d.svc.Transfer(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, prior.ID, txn.ID)

	req.Currency = ""
	txn, err = d.svc.Transfer(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, prior.ID, txn.ID)
}

func TestTransferService_Transfer_RacingKeyResolvedOnRetry(t *testing.T) {
	d := setupTransferService(t, TransferConfig{MaxRetries: 1})
	defer d.ctrl.Finish()

	ctx := context.Background()
	tx := &mockTx{}
	src := account("USD", "100")
	dst := account("USD", "0")
	key := "transfer:req-5"
	winner := &domain.Transaction{ID: uuid.New(), SourceAccountID: src.ID, DestAccountID: dst.ID, Amount: dec("1")}
	winnerJSON, _ := json.Marshal(winner)

	gomock.InOrder(
		d.idempRepo.EXPECT().Get(ctx, key).Return(nil, nil),
		d.idempRepo.EXPECT().Get(ctx, key).Return(&domain.IdempotencyLog{Key: key, ResponseJSON: winnerJSON}, nil),
	)
	d.idempCache.EXPECT().Get(ctx, key).Return(nil, nil).Times(2)
	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.expectLocks(tx, src, dst)
	d.accountRepo.EXPECT().UpdateBalance(ctx, tx, gomock.Any(), gomock.Any(), gomock.Any()).Return(nil).Times(2)
	d.txRepo.EXPECT().Create(ctx, tx, gomock.Any()).Return(nil)
	// Another request committed the same key first.
	d.idempRepo.EXPECT().Create(ctx, tx, gomock.Any()).Return(domain.ErrConcurrentUpdate)

	txn, err := d.svc.Transfer(ctx, ports.TransferRequest{
		SourceAccountID: src.ID, DestAccountID: dst.ID, Amount: dec("1"), IdempotencyKey: "req-5",
	})
	require.NoError(t, err)
	assert.Equal(t, winner.ID, txn.ID)
}

func TestTransferService_Transfer_NilCacheAndMetrics(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	accountRepo := mocks.NewMockAccountRepository(ctrl)
	txRepo := mocks.NewMockTransactionRepository(ctrl)
	idempRepo := mocks.NewMockIdempotencyRepository(ctrl)
	transactor := mocks.NewMockDBTransactor(ctrl)
	svc := NewTransferService(accountRepo, txRepo, idempRepo, nil, transactor,
		newTestLedger(t), nil, TransferConfig{}, newTestLogger())

	ctx := context.Background()
	tx := &mockTx{}
	src := account("USD", "1")
	dst := account("USD", "0")

	idempRepo.EXPECT().Get(ctx, "transfer:k").Return(nil, nil)
	transactor.EXPECT().Begin(ctx).Return(tx, nil)
	accountRepo.EXPECT().GetByIDForUpdate(ctx, tx, src.ID).Return(src, nil)
	accountRepo.EXPECT().GetByIDForUpdate(ctx, tx, dst.ID).Return(dst, nil)
	accountRepo.EXPECT().UpdateBalance(ctx, tx, gomock.Any(), gomock.Any(), gomock.Any()).Return(nil).Times(2)
	txRepo.EXPECT().Create(ctx, tx, gomock.Any()).Return(nil)
	idempRepo.EXPECT().Create(ctx, tx, gomock.Any()).Return(nil)

	_, err := svc.Transfer(ctx, ports.TransferRequest{SourceAccountID: src.ID, DestAccountID: dst.ID, Amount: dec("1"), IdempotencyKey: "k"})
	require.NoError(t, err)
}

func TestTransferService_Transfer_ReportsMetrics(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	idempCache := mocks.NewMockIdempotencyCache(ctrl)
	metrics := mocks.NewMockTransferMetrics(ctrl)
	svc := NewTransferService(
		mocks.NewMockAccountRepository(ctrl), mocks.NewMockTransactionRepository(ctrl),
		mocks.NewMockIdempotencyRepository(ctrl), idempCache, mocks.NewMockDBTransactor(ctrl),
		newTestLedger(t), metrics, TransferConfig{}, newTestLogger(),
	)

	ctx := context.Background()
	cached := &domain.Transaction{
		ID: uuid.New(), SourceAccountID: uuid.New(), DestAccountID: uuid.New(),
		SourceCurrency: "USD", DestCurrency: "EUR", Amount: dec("2"),
	}
	cachedJSON, _ := json.Marshal(cached)

	idempCache.EXPECT().Get(ctx, "transfer:m").Return(cachedJSON, nil)
	gomock.InOrder(
		metrics.EXPECT().ObserveTransfer(OutcomeRejected, false, gomock.Any()),
		metrics.EXPECT().ObserveTransfer(OutcomeReplayed, true, gomock.Any()),
	)

	_, err := svc.Transfer(ctx, ports.TransferRequest{SourceAccountID: cached.SourceAccountID, DestAccountID: cached.SourceAccountID, Amount: dec("2")})
	assertAppError(t, err, "TXN_001")

	_, err = svc.Transfer(ctx, ports.TransferRequest{
		SourceAccountID: cached.SourceAccountID, DestAccountID: cached.DestAccountID, Amount: dec("2"), IdempotencyKey: "m",
	})
	require.NoError(t, err)
}

func TestOutcomeOf(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		replayed bool
		want     string
	}{
		{"success", nil, false, OutcomeSuccess},
		{"replayed", nil, true, OutcomeReplayed},
		{"business rejection", toAppError(&domain.SameAccountError{}), false, OutcomeRejected},
		{"commit failure", toAppError(&domain.StorageCommitError{Attempts: 1, Err: errors.New("x")}), false, OutcomeCommitFailed},
		{"internal", apperror.InternalError(errors.New("x")), false, OutcomeError},
		{"plain error", errors.New("x"), false, OutcomeError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, outcomeOf(tt.err, tt.replayed))
		})
	}
}
