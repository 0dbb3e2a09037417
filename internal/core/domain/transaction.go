package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TransactionType identifies the direction of a balance-affecting event.
// Amounts are always positive; the type implies the sign.
type TransactionType string

const (
	TransactionTypeDeposit     TransactionType = "DEPOSIT"
	TransactionTypeTransferOut TransactionType = "TRANSFER_OUT"
	TransactionTypeTransferIn  TransactionType = "TRANSFER_IN"
)

// TransactionStatus is the recorded outcome of the event. PENDING is
// reserved for multi-step flows; deposits and transfers never write it.
type TransactionStatus string

const (
	TransactionStatusPending TransactionStatus = "PENDING"
	TransactionStatusSuccess TransactionStatus = "SUCCESS"
	TransactionStatusFailed  TransactionStatus = "FAILED"
)

// SystemCounterparty marks deposits credited by the platform itself.
const SystemCounterparty = "SYSTEM"

// Transaction is an immutable ledger entry. Records are append-only: once
// written they are never mutated or deleted.
type Transaction struct {
	ID           uuid.UUID         `json:"id"`
	WalletID     uuid.UUID         `json:"wallet_id"`
	Amount       decimal.Decimal   `json:"amount"`
	Type         TransactionType   `json:"type"`
	Status       TransactionStatus `json:"status"`
	Counterparty *string           `json:"counterparty,omitempty"`
	CreatedAt    time.Time         `json:"created_at"`
}

// SignedAmount returns the balance effect of the entry: positive for
// deposits and incoming transfers, negative for outgoing, zero for
// anything that is not a SUCCESS record.
func (t *Transaction) SignedAmount() decimal.Decimal {
	if t.Status != TransactionStatusSuccess {
		return decimal.Zero
	}
	if t.Type == TransactionTypeTransferOut {
		return t.Amount.Neg()
	}
	return t.Amount
}

// ValidType reports whether v is a known transaction type.
func ValidType(v string) bool {
	switch TransactionType(v) {
	case TransactionTypeDeposit, TransactionTypeTransferOut, TransactionTypeTransferIn:
		return true
	}
	return false
}

// ValidStatus reports whether v is a known transaction status.
func ValidStatus(v string) bool {
	switch TransactionStatus(v) {
	case TransactionStatusPending, TransactionStatusSuccess, TransactionStatusFailed:
		return true
	}
	return false
}
