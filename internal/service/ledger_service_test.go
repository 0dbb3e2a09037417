package service

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"wallet-ledger/internal/core/domain"
	"wallet-ledger/internal/core/ports"
	"wallet-ledger/internal/core/ports/mocks"
	"wallet-ledger/pkg/apperror"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

type ledgerTestDeps struct {
	svc         *LedgerServiceImpl
	accountRepo *mocks.MockAccountRepository
	walletRepo  *mocks.MockWalletRepository
	txRepo      *mocks.MockTransactionRepository
	idempRepo   *mocks.MockIdempotencyRepository
	idempCache  *mocks.MockIdempotencyCache
	pinSvc      *mocks.MockPinService
	transactor  *mocks.MockDBTransactor
	ctrl        *gomock.Controller
}

func setupLedgerService(t *testing.T) *ledgerTestDeps {
	ctrl := gomock.NewController(t)
	d := &ledgerTestDeps{
		accountRepo: mocks.NewMockAccountRepository(ctrl),
		walletRepo:  mocks.NewMockWalletRepository(ctrl),
		txRepo:      mocks.NewMockTransactionRepository(ctrl),
		idempRepo:   mocks.NewMockIdempotencyRepository(ctrl),
		idempCache:  mocks.NewMockIdempotencyCache(ctrl),
		pinSvc:      mocks.NewMockPinService(ctrl),
		transactor:  mocks.NewMockDBTransactor(ctrl),
		ctrl:        ctrl,
	}
	d.svc = NewLedgerService(
		d.accountRepo, d.walletRepo, d.txRepo, d.idempRepo, d.idempCache,
		d.pinSvc, d.transactor, 5*time.Second, 24*time.Hour, zerolog.Nop(),
	)
	return d
}

// mockTx implements pgx.Tx for testing
type mockTx struct{ pgx.Tx }

func (m *mockTx) Rollback(_ context.Context) error { return nil }
func (m *mockTx) Commit(_ context.Context) error   { return nil }

func assertAppError(t *testing.T, err error, code string) {
	t.Helper()
	require.Error(t, err)
	var appErr *apperror.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, code, appErr.Code)
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// ==================== Deposit Tests ====================

func TestLedgerService_Deposit_Success(t *testing.T) {
	d := setupLedgerService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	walletID := uuid.New()
	ownerID := uuid.New()
	tx := &mockTx{}

	req := ports.DepositRequest{
		WalletID: walletID,
		Amount:   dec("25.50"),
		Pin:      "1234",
	}

	d.transactor.EXPECT().Begin(gomock.Any()).Return(tx, nil)
	d.walletRepo.EXPECT().GetByIDForUpdate(gomock.Any(), tx, walletID).Return(&domain.Wallet{
		ID:      walletID,
		OwnerID: ownerID,
		Balance: dec("100.00"),
	}, nil)
	d.accountRepo.EXPECT().GetByID(gomock.Any(), ownerID).Return(&domain.Account{
		ID:      ownerID,
		Email:   "alice@example.com",
		PinHash: "hash",
	}, nil)
	d.pinSvc.EXPECT().Verify("1234", "hash").Return(true)
	d.walletRepo.EXPECT().UpdateBalance(gomock.Any(), tx, walletID, gomock.Any()).
		DoAndReturn(func(_ context.Context, _ pgx.Tx, _ uuid.UUID, balance decimal.Decimal) error {
			assert.True(t, balance.Equal(dec("125.50")))
			return nil
		})
	d.txRepo.EXPECT().Create(gomock.Any(), tx, gomock.Any()).
		DoAndReturn(func(_ context.Context, _ pgx.Tx, record *domain.Transaction) error {
			assert.Equal(t, walletID, record.WalletID)
			assert.Equal(t, domain.TransactionTypeDeposit, record.Type)
			assert.Equal(t, domain.TransactionStatusSuccess, record.Status)
			require.NotNil(t, record.Counterparty)
			assert.Equal(t, domain.SystemCounterparty, *record.Counterparty)
			assert.True(t, record.Amount.Equal(dec("25.50")))
			return nil
		})

	wallet, err := d.svc.Deposit(ctx, req)
	require.NoError(t, err)
	require.NotNil(t, wallet)
	assert.True(t, wallet.Balance.Equal(dec("125.50")))
}

func TestLedgerService_Deposit_WithIdempotencyKey(t *testing.T) {
	d := setupLedgerService(t)
	defer d.ctrl.Finish()

	walletID := uuid.New()
	ownerID := uuid.New()
	tx := &mockTx{}
	idempKey := domain.BuildDepositKey(walletID, "client-key-1")

	req := ports.DepositRequest{
		WalletID:       walletID,
		Amount:         dec("10.00"),
		Pin:            "1234",
		IdempotencyKey: "client-key-1",
	}

	// Redis cache miss
	d.idempCache.EXPECT().Get(gomock.Any(), idempKey).Return(nil, nil)
	// DB idempotency miss
	d.idempRepo.EXPECT().Get(gomock.Any(), idempKey).Return(nil, nil)
	d.transactor.EXPECT().Begin(gomock.Any()).Return(tx, nil)
	d.walletRepo.EXPECT().GetByIDForUpdate(gomock.Any(), tx, walletID).Return(&domain.Wallet{
		ID: walletID, OwnerID: ownerID, Balance: dec("0.00"),
	}, nil)
	d.accountRepo.EXPECT().GetByID(gomock.Any(), ownerID).Return(&domain.Account{
		ID: ownerID, Email: "alice@example.com", PinHash: "hash",
	}, nil)
	d.pinSvc.EXPECT().Verify("1234", "hash").Return(true)
	d.walletRepo.EXPECT().UpdateBalance(gomock.Any(), tx, walletID, gomock.Any()).Return(nil)
	d.txRepo.EXPECT().Create(gomock.Any(), tx, gomock.Any()).Return(nil)
	// Durable idempotency record inside the same tx
	d.idempRepo.EXPECT().Create(gomock.Any(), tx, gomock.Any()).
		DoAndReturn(func(_ context.Context, _ pgx.Tx, record *domain.IdempotencyRecord) error {
			assert.Equal(t, idempKey, record.Key)
			assert.NotEmpty(t, record.ResponseJSON)
			return nil
		})
	// Best-effort cache after commit
	d.idempCache.EXPECT().Set(gomock.Any(), idempKey, gomock.Any(), 24*time.Hour).Return(nil)

	wallet, err := d.svc.Deposit(context.Background(), req)
	require.NoError(t, err)
	assert.True(t, wallet.Balance.Equal(dec("10.00")))
}

func TestLedgerService_Deposit_ReplayFromCache(t *testing.T) {
	d := setupLedgerService(t)
	defer d.ctrl.Finish()

	walletID := uuid.New()
	idempKey := domain.BuildDepositKey(walletID, "dup")
	cached := &domain.Wallet{ID: walletID, Balance: dec("42.00")}
	cachedJSON, err := json.Marshal(cached)
	require.NoError(t, err)

	d.idempCache.EXPECT().Get(gomock.Any(), idempKey).Return(cachedJSON, nil)

	wallet, err := d.svc.Deposit(context.Background(), ports.DepositRequest{
		WalletID:       walletID,
		Amount:         dec("42.00"),
		Pin:            "1234",
		IdempotencyKey: "dup",
	})
	require.NoError(t, err)
	assert.Equal(t, walletID, wallet.ID)
	assert.True(t, wallet.Balance.Equal(dec("42.00")))
}

func TestLedgerService_Deposit_ReplayFromDB(t *testing.T) {
	d := setupLedgerService(t)
	defer d.ctrl.Finish()

	walletID := uuid.New()
	idempKey := domain.BuildDepositKey(walletID, "dup")
	cached := &domain.Wallet{ID: walletID, Balance: dec("42.00")}
	cachedJSON, err := json.Marshal(cached)
	require.NoError(t, err)

	// Cache down, durable log answers.
	d.idempCache.EXPECT().Get(gomock.Any(), idempKey).Return(nil, assert.AnError)
	d.idempRepo.EXPECT().Get(gomock.Any(), idempKey).Return(&domain.IdempotencyRecord{
		Key:          idempKey,
		ResponseJSON: cachedJSON,
	}, nil)

	wallet, err := d.svc.Deposit(context.Background(), ports.DepositRequest{
		WalletID:       walletID,
		Amount:         dec("42.00"),
		Pin:            "1234",
		IdempotencyKey: "dup",
	})
	require.NoError(t, err)
	assert.True(t, wallet.Balance.Equal(dec("42.00")))
}

func TestLedgerService_Deposit_InvalidAmount(t *testing.T) {
	d := setupLedgerService(t)
	defer d.ctrl.Finish()

	for _, amount := range []string{"0", "-5.00", "1.999"} {
		_, err := d.svc.Deposit(context.Background(), ports.DepositRequest{
			WalletID: uuid.New(),
			Amount:   dec(amount),
			Pin:      "1234",
		})
		assertAppError(t, err, "VAL_001")
	}
}

func TestLedgerService_Deposit_MalformedPin(t *testing.T) {
	d := setupLedgerService(t)
	defer d.ctrl.Finish()

	_, err := d.svc.Deposit(context.Background(), ports.DepositRequest{
		WalletID: uuid.New(),
		Amount:   dec("10.00"),
		Pin:      "12a4",
	})
	assertAppError(t, err, "VAL_002")
}

func TestLedgerService_Deposit_WalletNotFound(t *testing.T) {
	d := setupLedgerService(t)
	defer d.ctrl.Finish()

	walletID := uuid.New()
	tx := &mockTx{}

	d.transactor.EXPECT().Begin(gomock.Any()).Return(tx, nil)
	d.walletRepo.EXPECT().GetByIDForUpdate(gomock.Any(), tx, walletID).Return(nil, nil)

	_, err := d.svc.Deposit(context.Background(), ports.DepositRequest{
		WalletID: walletID,
		Amount:   dec("10.00"),
		Pin:      "1234",
	})
	assertAppError(t, err, "LED_002")
}

func TestLedgerService_Deposit_WrongPin(t *testing.T) {
	d := setupLedgerService(t)
	defer d.ctrl.Finish()

	walletID := uuid.New()
	ownerID := uuid.New()
	tx := &mockTx{}

	d.transactor.EXPECT().Begin(gomock.Any()).Return(tx, nil)
	d.walletRepo.EXPECT().GetByIDForUpdate(gomock.Any(), tx, walletID).Return(&domain.Wallet{
		ID: walletID, OwnerID: ownerID, Balance: dec("100.00"),
	}, nil)
	d.accountRepo.EXPECT().GetByID(gomock.Any(), ownerID).Return(&domain.Account{
		ID: ownerID, Email: "alice@example.com", PinHash: "hash",
	}, nil)
	d.pinSvc.EXPECT().Verify("9999", "hash").Return(false)
	// No UpdateBalance, no Create: the rollback discards everything.

	_, err := d.svc.Deposit(context.Background(), ports.DepositRequest{
		WalletID: walletID,
		Amount:   dec("10.00"),
		Pin:      "9999",
	})
	assertAppError(t, err, "AUTH_001")
}

// ==================== Transfer Tests ====================

type transferFixture struct {
	senderWallet   *domain.Wallet
	receiverWallet *domain.Wallet
	sender         *domain.Account
	receiver       *domain.Account
}

func newTransferFixture(senderBalance string) *transferFixture {
	senderID, receiverID := uuid.New(), uuid.New()
	f := &transferFixture{
		sender:   &domain.Account{ID: senderID, Email: "alice@example.com", PinHash: "hash_alice"},
		receiver: &domain.Account{ID: receiverID, Email: "bob@example.com", PinHash: "hash_bob"},
	}
	f.senderWallet = &domain.Wallet{ID: uuid.New(), OwnerID: senderID, Balance: dec(senderBalance)}
	f.receiverWallet = &domain.Wallet{ID: uuid.New(), OwnerID: receiverID, Balance: dec("5.00")}
	return f
}

func expectTransferPreamble(d *ledgerTestDeps, f *transferFixture, pin string, pinOK bool) {
	d.walletRepo.EXPECT().GetByID(gomock.Any(), f.senderWallet.ID).Return(f.senderWallet, nil)
	d.accountRepo.EXPECT().GetByEmail(gomock.Any(), f.receiver.Email).Return(f.receiver, nil)
	d.walletRepo.EXPECT().GetByOwnerID(gomock.Any(), f.receiver.ID).Return(f.receiverWallet, nil)
	d.accountRepo.EXPECT().GetByID(gomock.Any(), f.sender.ID).Return(f.sender, nil)
	d.pinSvc.EXPECT().Verify(pin, f.sender.PinHash).Return(pinOK)
}

func TestLedgerService_Transfer_Success(t *testing.T) {
	d := setupLedgerService(t)
	defer d.ctrl.Finish()

	f := newTransferFixture("100.00")
	tx := &mockTx{}

	expectTransferPreamble(d, f, "1234", true)
	d.transactor.EXPECT().Begin(gomock.Any()).Return(tx, nil)
	// Both rows re-read under lock, regardless of order.
	d.walletRepo.EXPECT().GetByIDForUpdate(gomock.Any(), tx, f.senderWallet.ID).Return(f.senderWallet, nil)
	d.walletRepo.EXPECT().GetByIDForUpdate(gomock.Any(), tx, f.receiverWallet.ID).Return(f.receiverWallet, nil)
	d.walletRepo.EXPECT().UpdateBalance(gomock.Any(), tx, f.senderWallet.ID, gomock.Any()).
		DoAndReturn(func(_ context.Context, _ pgx.Tx, _ uuid.UUID, balance decimal.Decimal) error {
			assert.True(t, balance.Equal(dec("40.00")))
			return nil
		})
	d.walletRepo.EXPECT().UpdateBalance(gomock.Any(), tx, f.receiverWallet.ID, gomock.Any()).
		DoAndReturn(func(_ context.Context, _ pgx.Tx, _ uuid.UUID, balance decimal.Decimal) error {
			assert.True(t, balance.Equal(dec("65.00")))
			return nil
		})

	var records []*domain.Transaction
	d.txRepo.EXPECT().Create(gomock.Any(), tx, gomock.Any()).Times(2).
		DoAndReturn(func(_ context.Context, _ pgx.Tx, record *domain.Transaction) error {
			records = append(records, record)
			return nil
		})

	wallet, err := d.svc.Transfer(context.Background(), ports.TransferRequest{
		SenderWalletID: f.senderWallet.ID,
		ReceiverEmail:  "bob@example.com",
		Amount:         dec("60.00"),
		Pin:            "1234",
	})
	require.NoError(t, err)
	assert.True(t, wallet.Balance.Equal(dec("40.00")))

	require.Len(t, records, 2)
	out, in := records[0], records[1]
	assert.Equal(t, domain.TransactionTypeTransferOut, out.Type)
	assert.Equal(t, f.senderWallet.ID, out.WalletID)
	assert.Equal(t, "bob@example.com", *out.Counterparty)
	assert.Equal(t, domain.TransactionTypeTransferIn, in.Type)
	assert.Equal(t, f.receiverWallet.ID, in.WalletID)
	assert.Equal(t, "alice@example.com", *in.Counterparty)
	assert.Equal(t, domain.TransactionStatusSuccess, out.Status)
	assert.Equal(t, domain.TransactionStatusSuccess, in.Status)
}

func TestLedgerService_Transfer_InsufficientFunds_RecordsFailure(t *testing.T) {
	d := setupLedgerService(t)
	defer d.ctrl.Finish()

	f := newTransferFixture("30.00")
	tx := &mockTx{}

	expectTransferPreamble(d, f, "1234", true)
	d.transactor.EXPECT().Begin(gomock.Any()).Return(tx, nil)
	d.walletRepo.EXPECT().GetByIDForUpdate(gomock.Any(), tx, f.senderWallet.ID).Return(f.senderWallet, nil)
	d.walletRepo.EXPECT().GetByIDForUpdate(gomock.Any(), tx, f.receiverWallet.ID).Return(f.receiverWallet, nil)
	// Exactly one FAILED record on the sender; no balance writes.
	d.txRepo.EXPECT().Create(gomock.Any(), tx, gomock.Any()).
		DoAndReturn(func(_ context.Context, _ pgx.Tx, record *domain.Transaction) error {
			assert.Equal(t, f.senderWallet.ID, record.WalletID)
			assert.Equal(t, domain.TransactionTypeTransferOut, record.Type)
			assert.Equal(t, domain.TransactionStatusFailed, record.Status)
			assert.Equal(t, "bob@example.com", *record.Counterparty)
			return nil
		})

	_, err := d.svc.Transfer(context.Background(), ports.TransferRequest{
		SenderWalletID: f.senderWallet.ID,
		ReceiverEmail:  "bob@example.com",
		Amount:         dec("60.00"),
		Pin:            "1234",
	})
	assertAppError(t, err, "LED_001")
}

func TestLedgerService_Transfer_SelfTransfer(t *testing.T) {
	d := setupLedgerService(t)
	defer d.ctrl.Finish()

	f := newTransferFixture("100.00")
	// Receiver resolves back to the sender's own wallet.
	d.walletRepo.EXPECT().GetByID(gomock.Any(), f.senderWallet.ID).Return(f.senderWallet, nil)
	d.accountRepo.EXPECT().GetByEmail(gomock.Any(), "alice@example.com").Return(f.sender, nil)
	d.walletRepo.EXPECT().GetByOwnerID(gomock.Any(), f.sender.ID).Return(f.senderWallet, nil)

	_, err := d.svc.Transfer(context.Background(), ports.TransferRequest{
		SenderWalletID: f.senderWallet.ID,
		ReceiverEmail:  "alice@example.com",
		Amount:         dec("10.00"),
		Pin:            "1234",
	})
	assertAppError(t, err, "VAL_003")
}

func TestLedgerService_Transfer_ReceiverNotFound(t *testing.T) {
	d := setupLedgerService(t)
	defer d.ctrl.Finish()

	f := newTransferFixture("100.00")
	d.walletRepo.EXPECT().GetByID(gomock.Any(), f.senderWallet.ID).Return(f.senderWallet, nil)
	d.accountRepo.EXPECT().GetByEmail(gomock.Any(), "ghost@example.com").Return(nil, nil)

	_, err := d.svc.Transfer(context.Background(), ports.TransferRequest{
		SenderWalletID: f.senderWallet.ID,
		ReceiverEmail:  "ghost@example.com",
		Amount:         dec("10.00"),
		Pin:            "1234",
	})
	assertAppError(t, err, "LED_002")
}

func TestLedgerService_Transfer_WrongPin(t *testing.T) {
	d := setupLedgerService(t)
	defer d.ctrl.Finish()

	f := newTransferFixture("100.00")
	expectTransferPreamble(d, f, "0000", false)
	// No transaction is ever begun.

	_, err := d.svc.Transfer(context.Background(), ports.TransferRequest{
		SenderWalletID: f.senderWallet.ID,
		ReceiverEmail:  "bob@example.com",
		Amount:         dec("10.00"),
		Pin:            "0000",
	})
	assertAppError(t, err, "AUTH_001")
}

func TestLedgerService_Transfer_WithIdempotencyKey_Replay(t *testing.T) {
	d := setupLedgerService(t)
	defer d.ctrl.Finish()

	f := newTransferFixture("100.00")
	idempKey := domain.BuildTransferKey(f.senderWallet.ID, "xfer-1")
	cachedJSON, err := json.Marshal(&domain.Wallet{ID: f.senderWallet.ID, Balance: dec("40.00")})
	require.NoError(t, err)

	expectTransferPreamble(d, f, "1234", true)
	d.idempCache.EXPECT().Get(gomock.Any(), idempKey).Return(cachedJSON, nil)

	wallet, err := d.svc.Transfer(context.Background(), ports.TransferRequest{
		SenderWalletID: f.senderWallet.ID,
		ReceiverEmail:  "bob@example.com",
		Amount:         dec("60.00"),
		Pin:            "1234",
		IdempotencyKey: "xfer-1",
	})
	require.NoError(t, err)
	assert.True(t, wallet.Balance.Equal(dec("40.00")))
}

// ==================== GetWallet Tests ====================

func TestLedgerService_GetWallet(t *testing.T) {
	d := setupLedgerService(t)
	defer d.ctrl.Finish()

	walletID := uuid.New()
	d.walletRepo.EXPECT().GetByID(gomock.Any(), walletID).Return(&domain.Wallet{
		ID: walletID, Balance: dec("12.34"),
	}, nil)

	wallet, err := d.svc.GetWallet(context.Background(), walletID)
	require.NoError(t, err)
	assert.Equal(t, walletID, wallet.ID)
}

func TestLedgerService_GetWallet_NotFound(t *testing.T) {
	d := setupLedgerService(t)
	defer d.ctrl.Finish()

	walletID := uuid.New()
	d.walletRepo.EXPECT().GetByID(gomock.Any(), walletID).Return(nil, nil)

	_, err := d.svc.GetWallet(context.Background(), walletID)
	assertAppError(t, err, "LED_002")
}
