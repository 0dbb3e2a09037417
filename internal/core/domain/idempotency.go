package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// IdempotencyRecord is the durable replay log for client-keyed operations.
// The Redis cache in front of it is best-effort; this row is authoritative.
type IdempotencyRecord struct {
	Key          string    `json:"key"`
	ResponseJSON []byte    `json:"response_json"`
	CreatedAt    time.Time `json:"created_at"`
}

// BuildDepositKey scopes a client idempotency key to one wallet's deposits.
func BuildDepositKey(walletID uuid.UUID, clientKey string) string {
	return fmt.Sprintf("deposit:%s:%s", walletID, clientKey)
}

// BuildTransferKey scopes a client idempotency key to one wallet's transfers.
func BuildTransferKey(senderWalletID uuid.UUID, clientKey string) string {
	return fmt.Sprintf("transfer:%s:%s", senderWalletID, clientKey)
}
