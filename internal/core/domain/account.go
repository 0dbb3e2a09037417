package domain

import (
	"time"

	"github.com/google/uuid"
)

// Account is a wallet owner. The PIN hash gates mutating ledger operations;
// session management happens upstream and is not modeled here.
type Account struct {
	ID        uuid.UUID `json:"id"`
	Email     string    `json:"email"`
	PinHash   string    `json:"-"` // bcrypt, never exposed
	CreatedAt time.Time `json:"created_at"`
}
