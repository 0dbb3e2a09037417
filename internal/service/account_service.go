package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"wallet-ledger/internal/core/domain"
	"wallet-ledger/internal/core/ports"
	"wallet-ledger/pkg/apperror"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

const pgUniqueViolation = "23505"

// AccountServiceImpl provisions accounts. Every account gets exactly one
// wallet, created in the same database transaction.
type AccountServiceImpl struct {
	accountRepo ports.AccountRepository
	walletRepo  ports.WalletRepository
	pinSvc      ports.PinService
	transactor  ports.DBTransactor
	opTimeout   time.Duration
	log         zerolog.Logger
}

// NewAccountService creates a new AccountServiceImpl.
func NewAccountService(
	accountRepo ports.AccountRepository,
	walletRepo ports.WalletRepository,
	pinSvc ports.PinService,
	transactor ports.DBTransactor,
	opTimeout time.Duration,
	log zerolog.Logger,
) *AccountServiceImpl {
	return &AccountServiceImpl{
		accountRepo: accountRepo,
		walletRepo:  walletRepo,
		pinSvc:      pinSvc,
		transactor:  transactor,
		opTimeout:   opTimeout,
		log:         log,
	}
}

// CreateAccount registers an account and its zero-balance wallet.
func (s *AccountServiceImpl) CreateAccount(ctx context.Context, email, pin string) (*domain.Account, *domain.Wallet, error) {
	ctx, cancel := context.WithTimeout(ctx, s.opTimeout)
	defer cancel()

	email = strings.ToLower(strings.TrimSpace(email))

	pinHash, err := s.pinSvc.Hash(pin)
	if err != nil {
		return nil, nil, err
	}

	existing, err := s.accountRepo.GetByEmail(ctx, email)
	if err != nil {
		return nil, nil, apperror.InternalError(fmt.Errorf("check email: %w", err))
	}
	if existing != nil {
		return nil, nil, apperror.ErrEmailExists()
	}

	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, nil, apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	now := time.Now().UTC()
	account := &domain.Account{
		ID:        uuid.New(),
		Email:     email,
		PinHash:   pinHash,
		CreatedAt: now,
	}
	if err := s.accountRepo.Create(ctx, dbTx, account); err != nil {
		// The pre-check races with concurrent registrations; the unique
		// index is the authority.
		if isUniqueViolation(err) {
			return nil, nil, apperror.ErrEmailExists()
		}
		return nil, nil, apperror.InternalError(fmt.Errorf("create account: %w", err))
	}

	wallet := &domain.Wallet{
		ID:        uuid.New(),
		OwnerID:   account.ID,
		Balance:   decimal.Zero,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.walletRepo.Create(ctx, dbTx, wallet); err != nil {
		return nil, nil, apperror.InternalError(fmt.Errorf("create wallet: %w", err))
	}

	if err := dbTx.Commit(ctx); err != nil {
		return nil, nil, apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}

	s.log.Info().
		Str("account_id", account.ID.String()).
		Str("wallet_id", wallet.ID.String()).
		Msg("account created")

	return account, wallet, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation
}
