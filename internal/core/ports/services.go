package ports

import (
	"context"
	"time"

	"wallet-ledger/internal/core/domain"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

//go:generate mockgen -source=services.go -destination=mocks/services.go -package=mocks

// PinService verifies the 4-digit secret gating mutating ledger operations.
// Verification is pure: no side effects, no attempt counting.
type PinService interface {
	// Hash derives a storable hash from a well-formed PIN; rejects anything
	// that is not exactly 4 ASCII digits.
	Hash(pin string) (string, error)
	// Verify is fail-closed: a malformed pin returns false without
	// consulting the hash.
	Verify(pin string, hash string) bool
}

// IdempotencyCache is the Redis-layer replay check (fast path, best-effort).
type IdempotencyCache interface {
	Get(ctx context.Context, key string) ([]byte, error) // Returns cached response JSON or nil
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// --- Service Ports (Business Logic) ---

// LedgerService is the engine that moves money. All mutations run inside a
// single atomic unit of work against the wallet store.
type LedgerService interface {
	Deposit(ctx context.Context, req DepositRequest) (*domain.Wallet, error)
	Transfer(ctx context.Context, req TransferRequest) (*domain.Wallet, error)
	GetWallet(ctx context.Context, walletID uuid.UUID) (*domain.Wallet, error)
}

// DepositRequest holds validated input for a deposit.
type DepositRequest struct {
	WalletID uuid.UUID
	Amount   decimal.Decimal
	Pin      string
	// IdempotencyKey enables duplicate-submission protection when non-empty.
	IdempotencyKey string
}

// TransferRequest holds validated input for a wallet-to-wallet transfer.
type TransferRequest struct {
	SenderWalletID uuid.UUID
	ReceiverEmail  string
	Amount         decimal.Decimal
	Pin            string
	IdempotencyKey string
}

// HistoryService is the read side over the committed transaction log.
type HistoryService interface {
	ListTransactions(ctx context.Context, params TransactionListParams) (*TransactionPage, error)
}

// TransactionPage is one page of filtered history.
type TransactionPage struct {
	Items      []domain.Transaction
	Total      int64
	Page       int
	PageSize   int
	TotalPages int
	NextPage   *int
	PrevPage   *int
}

// AccountService provisions accounts and their wallets atomically.
type AccountService interface {
	CreateAccount(ctx context.Context, email, pin string) (*domain.Account, *domain.Wallet, error)
}

// HealthChecker reports liveness of an external dependency.
type HealthChecker interface {
	Ping(ctx context.Context) error
	Name() string
}
