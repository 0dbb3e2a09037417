package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"wallet-ledger/internal/core/domain"
	"wallet-ledger/internal/core/ports"
	"wallet-ledger/pkg/apperror"
	"wallet-ledger/pkg/money"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
)

// LedgerServiceImpl implements ports.LedgerService with pessimistic row
// locking. Wallet balances and the transaction log are mutated only here,
// and only inside a single database transaction per operation.
type LedgerServiceImpl struct {
	accountRepo ports.AccountRepository
	walletRepo  ports.WalletRepository
	txRepo      ports.TransactionRepository
	idempRepo   ports.IdempotencyRepository
	idempCache  ports.IdempotencyCache
	pinSvc      ports.PinService
	transactor  ports.DBTransactor
	opTimeout   time.Duration
	idempTTL    time.Duration
	log         zerolog.Logger
}

// NewLedgerService creates a new LedgerServiceImpl.
func NewLedgerService(
	accountRepo ports.AccountRepository,
	walletRepo ports.WalletRepository,
	txRepo ports.TransactionRepository,
	idempRepo ports.IdempotencyRepository,
	idempCache ports.IdempotencyCache,
	pinSvc ports.PinService,
	transactor ports.DBTransactor,
	opTimeout time.Duration,
	idempTTL time.Duration,
	log zerolog.Logger,
) *LedgerServiceImpl {
	return &LedgerServiceImpl{
		accountRepo: accountRepo,
		walletRepo:  walletRepo,
		txRepo:      txRepo,
		idempRepo:   idempRepo,
		idempCache:  idempCache,
		pinSvc:      pinSvc,
		transactor:  transactor,
		opTimeout:   opTimeout,
		idempTTL:    idempTTL,
		log:         log,
	}
}

// Deposit credits a wallet as one atomic unit: lock wallet, verify PIN,
// raise balance, append a DEPOSIT/SUCCESS record, commit.
func (s *LedgerServiceImpl) Deposit(ctx context.Context, req ports.DepositRequest) (*domain.Wallet, error) {
	if err := money.ValidateAmount(req.Amount); err != nil {
		return nil, err
	}
	if !ValidPinFormat(req.Pin) {
		return nil, apperror.ErrInvalidPinFormat()
	}

	ctx, cancel := context.WithTimeout(ctx, s.opTimeout)
	defer cancel()

	idempKey := ""
	if req.IdempotencyKey != "" {
		idempKey = domain.BuildDepositKey(req.WalletID, req.IdempotencyKey)
		if cached, done, err := s.replayIfSeen(ctx, idempKey); done {
			return cached, err
		}
	}

	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	// Lock & get wallet
	wallet, err := s.walletRepo.GetByIDForUpdate(ctx, dbTx, req.WalletID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("lock wallet: %w", err))
	}
	if wallet == nil {
		return nil, apperror.ErrNotFound("wallet")
	}

	owner, err := s.accountRepo.GetByID(ctx, wallet.OwnerID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("load owner: %w", err))
	}
	if owner == nil {
		return nil, apperror.ErrNotFound("account")
	}

	// PIN failure leaves no trace: the deferred rollback releases the lock
	// without any write having happened.
	if !s.pinSvc.Verify(req.Pin, owner.PinHash) {
		return nil, apperror.ErrInvalidPin()
	}

	wallet.Balance = wallet.Balance.Add(req.Amount)
	wallet.UpdatedAt = time.Now().UTC()
	if err := s.walletRepo.UpdateBalance(ctx, dbTx, wallet.ID, wallet.Balance); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("update balance: %w", err))
	}

	counterparty := domain.SystemCounterparty
	record := &domain.Transaction{
		ID:           uuid.New(),
		WalletID:     wallet.ID,
		Amount:       req.Amount,
		Type:         domain.TransactionTypeDeposit,
		Status:       domain.TransactionStatusSuccess,
		Counterparty: &counterparty,
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.txRepo.Create(ctx, dbTx, record); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("create transaction: %w", err))
	}

	respJSON, err := s.saveIdempotency(ctx, dbTx, idempKey, wallet)
	if err != nil {
		return nil, err
	}

	if err := dbTx.Commit(ctx); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}

	s.cacheIdempotency(ctx, idempKey, respJSON)

	s.log.Info().
		Str("wallet_id", wallet.ID.String()).
		Str("tx_id", record.ID.String()).
		Str("amount", money.Format(req.Amount)).
		Msg("deposit applied")

	return wallet, nil
}

// Transfer moves money between two wallets. Both rows are locked in
// canonical ascending-UUID order so two opposite-direction transfers
// between the same pair cannot deadlock. An insufficient balance is a
// recorded business outcome: one FAILED record on the sender, committed.
func (s *LedgerServiceImpl) Transfer(ctx context.Context, req ports.TransferRequest) (*domain.Wallet, error) {
	if err := money.ValidateAmount(req.Amount); err != nil {
		return nil, err
	}
	if !ValidPinFormat(req.Pin) {
		return nil, apperror.ErrInvalidPinFormat()
	}

	ctx, cancel := context.WithTimeout(ctx, s.opTimeout)
	defer cancel()

	senderWallet, err := s.walletRepo.GetByID(ctx, req.SenderWalletID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("load sender wallet: %w", err))
	}
	if senderWallet == nil {
		return nil, apperror.ErrNotFound("wallet")
	}

	receiver, err := s.accountRepo.GetByEmail(ctx, req.ReceiverEmail)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("resolve receiver: %w", err))
	}
	if receiver == nil {
		return nil, apperror.ErrNotFound("receiver")
	}
	receiverWallet, err := s.walletRepo.GetByOwnerID(ctx, receiver.ID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("load receiver wallet: %w", err))
	}
	if receiverWallet == nil {
		return nil, apperror.ErrNotFound("receiver wallet")
	}

	if receiverWallet.ID == senderWallet.ID {
		return nil, apperror.ErrSelfTransfer()
	}

	sender, err := s.accountRepo.GetByID(ctx, senderWallet.OwnerID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("load sender account: %w", err))
	}
	if sender == nil {
		return nil, apperror.ErrNotFound("account")
	}

	if !s.pinSvc.Verify(req.Pin, sender.PinHash) {
		return nil, apperror.ErrInvalidPin()
	}

	idempKey := ""
	if req.IdempotencyKey != "" {
		idempKey = domain.BuildTransferKey(senderWallet.ID, req.IdempotencyKey)
		if cached, done, err := s.replayIfSeen(ctx, idempKey); done {
			return cached, err
		}
	}

	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	// Re-read both balances under row locks; the snapshots above may be stale.
	senderWallet, receiverWallet, err = s.lockPair(ctx, dbTx, senderWallet.ID, receiverWallet.ID)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	if !senderWallet.CanDebit(req.Amount) {
		failed := &domain.Transaction{
			ID:           uuid.New(),
			WalletID:     senderWallet.ID,
			Amount:       req.Amount,
			Type:         domain.TransactionTypeTransferOut,
			Status:       domain.TransactionStatusFailed,
			Counterparty: &receiver.Email,
			CreatedAt:    now,
		}
		if err := s.txRepo.Create(ctx, dbTx, failed); err != nil {
			return nil, apperror.InternalError(fmt.Errorf("record failed transfer: %w", err))
		}
		if err := dbTx.Commit(ctx); err != nil {
			return nil, apperror.InternalError(fmt.Errorf("commit failed transfer: %w", err))
		}
		s.log.Warn().
			Str("sender_wallet_id", senderWallet.ID.String()).
			Str("amount", money.Format(req.Amount)).
			Msg("transfer rejected: insufficient funds")
		return nil, apperror.ErrInsufficientFunds()
	}

	senderWallet.Balance = senderWallet.Balance.Sub(req.Amount)
	senderWallet.UpdatedAt = now
	receiverWallet.Balance = receiverWallet.Balance.Add(req.Amount)
	receiverWallet.UpdatedAt = now

	if err := s.walletRepo.UpdateBalance(ctx, dbTx, senderWallet.ID, senderWallet.Balance); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("debit sender: %w", err))
	}
	if err := s.walletRepo.UpdateBalance(ctx, dbTx, receiverWallet.ID, receiverWallet.Balance); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("credit receiver: %w", err))
	}

	out := &domain.Transaction{
		ID:           uuid.New(),
		WalletID:     senderWallet.ID,
		Amount:       req.Amount,
		Type:         domain.TransactionTypeTransferOut,
		Status:       domain.TransactionStatusSuccess,
		Counterparty: &receiver.Email,
		CreatedAt:    now,
	}
	in := &domain.Transaction{
		ID:           uuid.New(),
		WalletID:     receiverWallet.ID,
		Amount:       req.Amount,
		Type:         domain.TransactionTypeTransferIn,
		Status:       domain.TransactionStatusSuccess,
		Counterparty: &sender.Email,
		CreatedAt:    now,
	}
	if err := s.txRepo.Create(ctx, dbTx, out); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("record transfer out: %w", err))
	}
	if err := s.txRepo.Create(ctx, dbTx, in); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("record transfer in: %w", err))
	}

	respJSON, err := s.saveIdempotency(ctx, dbTx, idempKey, senderWallet)
	if err != nil {
		return nil, err
	}

	if err := dbTx.Commit(ctx); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}

	s.cacheIdempotency(ctx, idempKey, respJSON)

	s.log.Info().
		Str("sender_wallet_id", senderWallet.ID.String()).
		Str("receiver_wallet_id", receiverWallet.ID.String()).
		Str("amount", money.Format(req.Amount)).
		Msg("transfer completed")

	return senderWallet, nil
}

// GetWallet returns a wallet by ID without taking locks.
func (s *LedgerServiceImpl) GetWallet(ctx context.Context, walletID uuid.UUID) (*domain.Wallet, error) {
	ctx, cancel := context.WithTimeout(ctx, s.opTimeout)
	defer cancel()

	wallet, err := s.walletRepo.GetByID(ctx, walletID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get wallet: %w", err))
	}
	if wallet == nil {
		return nil, apperror.ErrNotFound("wallet")
	}
	return wallet, nil
}

// lockPair acquires FOR UPDATE locks on both wallets in ascending UUID
// order and returns the fresh rows keyed back to sender/receiver.
func (s *LedgerServiceImpl) lockPair(ctx context.Context, dbTx pgx.Tx, senderID, receiverID uuid.UUID) (*domain.Wallet, *domain.Wallet, error) {
	first, second := senderID, receiverID
	if bytes.Compare(receiverID[:], senderID[:]) < 0 {
		first, second = receiverID, senderID
	}

	a, err := s.walletRepo.GetByIDForUpdate(ctx, dbTx, first)
	if err != nil {
		return nil, nil, apperror.InternalError(fmt.Errorf("lock wallet %s: %w", first, err))
	}
	b, err := s.walletRepo.GetByIDForUpdate(ctx, dbTx, second)
	if err != nil {
		return nil, nil, apperror.InternalError(fmt.Errorf("lock wallet %s: %w", second, err))
	}
	if a == nil || b == nil {
		return nil, nil, apperror.ErrNotFound("wallet")
	}

	if a.ID == senderID {
		return a, b, nil
	}
	return b, a, nil
}

// replayIfSeen checks the Redis cache then the durable idempotency log.
// done is true when a previous response was found (or lookup failed hard).
func (s *LedgerServiceImpl) replayIfSeen(ctx context.Context, key string) (*domain.Wallet, bool, error) {
	cached, err := s.idempCache.Get(ctx, key)
	if err != nil {
		s.log.Warn().Err(err).Str("key", key).Msg("idempotency cache check failed, falling through to DB")
	}
	if cached != nil {
		w, err := unmarshalCachedWallet(cached)
		return w, true, err
	}

	record, err := s.idempRepo.Get(ctx, key)
	if err != nil {
		return nil, true, apperror.InternalError(fmt.Errorf("db idempotency check: %w", err))
	}
	if record != nil {
		w, err := unmarshalCachedWallet(record.ResponseJSON)
		return w, true, err
	}
	return nil, false, nil
}

// saveIdempotency persists the replay record inside the open transaction.
// A no-op when key is empty.
func (s *LedgerServiceImpl) saveIdempotency(ctx context.Context, dbTx pgx.Tx, key string, wallet *domain.Wallet) ([]byte, error) {
	if key == "" {
		return nil, nil
	}
	respJSON, err := json.Marshal(wallet)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("marshal response: %w", err))
	}
	record := &domain.IdempotencyRecord{
		Key:          key,
		ResponseJSON: respJSON,
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.idempRepo.Create(ctx, dbTx, record); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("save idempotency record: %w", err))
	}
	return respJSON, nil
}

// cacheIdempotency stores the committed response in Redis, best-effort.
func (s *LedgerServiceImpl) cacheIdempotency(ctx context.Context, key string, respJSON []byte) {
	if key == "" || respJSON == nil {
		return
	}
	if err := s.idempCache.Set(ctx, key, respJSON, s.idempTTL); err != nil {
		s.log.Warn().Err(err).Str("key", key).Msg("failed to cache idempotency record")
	}
}

func unmarshalCachedWallet(data []byte) (*domain.Wallet, error) {
	w := &domain.Wallet{}
	if err := json.Unmarshal(data, w); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("unmarshal cached wallet: %w", err))
	}
	return w, nil
}
