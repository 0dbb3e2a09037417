package dto

// CreateAccountRequest is the request body for account registration.
type CreateAccountRequest struct {
	Email string `json:"email" binding:"required,email,max=254"`
	Pin   string `json:"pin" binding:"required,pin4"`
}

// CreateAccountResponse is the response body for successful registration.
type CreateAccountResponse struct {
	AccountID string `json:"account_id"`
	WalletID  string `json:"wallet_id"`
	Email     string `json:"email"`
	Balance   string `json:"balance"`
	CreatedAt string `json:"created_at"`
}

// DepositRequest is the request body for a wallet deposit.
// Amount travels as a decimal string; it is never a binary float.
type DepositRequest struct {
	Amount string `json:"amount" binding:"required"`
	Pin    string `json:"pin" binding:"required,pin4"`
}

// TransferRequest is the request body for a wallet-to-wallet transfer.
type TransferRequest struct {
	ReceiverEmail string `json:"receiver_email" binding:"required,email,max=254"`
	Amount        string `json:"amount" binding:"required"`
	Pin           string `json:"pin" binding:"required,pin4"`
}

// WalletResponse is the response body for balance queries and mutations.
type WalletResponse struct {
	ID        string `json:"id"`
	OwnerID   string `json:"owner_id"`
	Balance   string `json:"balance"`
	UpdatedAt string `json:"updated_at"`
}

// TransactionResponse is one entry of a wallet's history.
type TransactionResponse struct {
	ID           string  `json:"id"`
	WalletID     string  `json:"wallet_id"`
	Amount       string  `json:"amount"`
	Type         string  `json:"type"`
	Status       string  `json:"status"`
	Counterparty *string `json:"counterparty,omitempty"`
	CreatedAt    string  `json:"created_at"`
}

// TransactionListResponse wraps a paginated transaction list.
type TransactionListResponse struct {
	Items      []TransactionResponse `json:"items"`
	Total      int64                 `json:"total"`
	Page       int                   `json:"page"`
	PageSize   int                   `json:"page_size"`
	TotalPages int                   `json:"total_pages"`
	NextPage   *int                  `json:"next_page,omitempty"`
	PrevPage   *int                  `json:"prev_page,omitempty"`
}
