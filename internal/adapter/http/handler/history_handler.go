package handler

import (
	"strconv"
	"time"

	"wallet-ledger/internal/adapter/http/dto"
	"wallet-ledger/internal/core/domain"
	"wallet-ledger/internal/core/ports"
	"wallet-ledger/pkg/apperror"
	"wallet-ledger/pkg/money"
	"wallet-ledger/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// HistoryHandler serves the transaction history read side.
type HistoryHandler struct {
	historySvc ports.HistoryService
}

// NewHistoryHandler creates a new HistoryHandler.
func NewHistoryHandler(historySvc ports.HistoryService) *HistoryHandler {
	return &HistoryHandler{historySvc: historySvc}
}

// ListTransactions handles GET /api/v1/wallets/:id/transactions.
func (h *HistoryHandler) ListTransactions(c *gin.Context) {
	walletID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Error(c, apperror.Validation("invalid wallet id"))
		return
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "0"))

	params := ports.TransactionListParams{
		WalletID: walletID,
		Page:     page,
		PageSize: pageSize,
	}

	if s := c.Query("status"); s != "" {
		if !domain.ValidStatus(s) {
			response.Error(c, apperror.Validation("invalid status filter"))
			return
		}
		status := domain.TransactionStatus(s)
		params.Status = &status
	}
	if t := c.Query("type"); t != "" {
		if !domain.ValidType(t) {
			response.Error(c, apperror.Validation("invalid type filter"))
			return
		}
		txType := domain.TransactionType(t)
		params.Type = &txType
	}
	if f := c.Query("from"); f != "" {
		v, err := time.Parse(time.RFC3339, f)
		if err != nil {
			response.Error(c, apperror.Validation("invalid from timestamp, want RFC3339"))
			return
		}
		params.From = &v
	}
	if t := c.Query("to"); t != "" {
		v, err := time.Parse(time.RFC3339, t)
		if err != nil {
			response.Error(c, apperror.Validation("invalid to timestamp, want RFC3339"))
			return
		}
		params.To = &v
	}

	result, err := h.historySvc.ListTransactions(c.Request.Context(), params)
	if err != nil {
		response.Error(c, err)
		return
	}

	items := make([]dto.TransactionResponse, 0, len(result.Items))
	for i := range result.Items {
		items = append(items, toTransactionResponse(&result.Items[i]))
	}

	response.OK(c, dto.TransactionListResponse{
		Items:      items,
		Total:      result.Total,
		Page:       result.Page,
		PageSize:   result.PageSize,
		TotalPages: result.TotalPages,
		NextPage:   result.NextPage,
		PrevPage:   result.PrevPage,
	})
}

func toTransactionResponse(t *domain.Transaction) dto.TransactionResponse {
	return dto.TransactionResponse{
		ID:           t.ID.String(),
		WalletID:     t.WalletID.String(),
		Amount:       money.Format(t.Amount),
		Type:         string(t.Type),
		Status:       string(t.Status),
		Counterparty: t.Counterparty,
		CreatedAt:    t.CreatedAt.UTC().Format(timeFormat),
	}
}
