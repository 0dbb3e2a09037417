package service

import (
	"context"
	"fmt"
	"time"

	"wallet-ledger/internal/core/ports"
	"wallet-ledger/pkg/apperror"

	"github.com/rs/zerolog"
)

// HistoryServiceImpl is the read side over the committed transaction log.
type HistoryServiceImpl struct {
	walletRepo      ports.WalletRepository
	txRepo          ports.TransactionRepository
	opTimeout       time.Duration
	defaultPageSize int
	maxPageSize     int
	log             zerolog.Logger
}

// NewHistoryService creates a new HistoryServiceImpl.
func NewHistoryService(
	walletRepo ports.WalletRepository,
	txRepo ports.TransactionRepository,
	opTimeout time.Duration,
	defaultPageSize int,
	maxPageSize int,
	log zerolog.Logger,
) *HistoryServiceImpl {
	return &HistoryServiceImpl{
		walletRepo:      walletRepo,
		txRepo:          txRepo,
		opTimeout:       opTimeout,
		defaultPageSize: defaultPageSize,
		maxPageSize:     maxPageSize,
		log:             log,
	}
}

// ListTransactions returns one page of a wallet's history, newest first.
// Requesting history for an unknown wallet is an error, not an empty page.
func (s *HistoryServiceImpl) ListTransactions(ctx context.Context, params ports.TransactionListParams) (*ports.TransactionPage, error) {
	ctx, cancel := context.WithTimeout(ctx, s.opTimeout)
	defer cancel()

	wallet, err := s.walletRepo.GetByID(ctx, params.WalletID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("check wallet: %w", err))
	}
	if wallet == nil {
		return nil, apperror.ErrNotFound("wallet")
	}

	if params.Page < 1 {
		params.Page = 1
	}
	if params.PageSize < 1 {
		params.PageSize = s.defaultPageSize
	}
	if params.PageSize > s.maxPageSize {
		params.PageSize = s.maxPageSize
	}

	items, total, err := s.txRepo.List(ctx, params)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("list transactions: %w", err))
	}

	page := &ports.TransactionPage{
		Items:    items,
		Total:    total,
		Page:     params.Page,
		PageSize: params.PageSize,
	}
	page.TotalPages = int((total + int64(params.PageSize) - 1) / int64(params.PageSize))
	if params.Page > 1 {
		prev := params.Page - 1
		page.PrevPage = &prev
	}
	if params.Page < page.TotalPages {
		next := params.Page + 1
		page.NextPage = &next
	}
	return page, nil
}
