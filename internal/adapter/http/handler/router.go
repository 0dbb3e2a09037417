package handler

import (
	"wallet-ledger/internal/adapter/http/middleware"
	"wallet-ledger/internal/core/ports"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// RouterDeps holds all dependencies needed to set up routes.
type RouterDeps struct {
	AccountSvc     ports.AccountService
	LedgerSvc      ports.LedgerService
	HistorySvc     ports.HistoryService
	HealthCheckers []ports.HealthChecker
	Logger         zerolog.Logger
}

// SetupRouter initialises the Gin engine with all routes and middleware.
func SetupRouter(deps RouterDeps) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()

	// Global middleware
	r.Use(middleware.Recovery(deps.Logger))
	r.Use(middleware.RequestID())
	r.Use(middleware.RequestLogger(deps.Logger))
	r.Use(middleware.MaxBodySize(1 << 20)) // 1 MB request body limit

	// Health check (deep — verifies PostgreSQL + Redis)
	r.GET("/health", HealthCheck(deps.HealthCheckers...))

	// API v1 routes
	v1 := r.Group("/api/v1")

	// --- Public routes ---
	accountHandler := NewAccountHandler(deps.AccountSvc)
	v1.POST("/accounts", accountHandler.Register)

	// --- Principal-scoped routes ---
	principal := middleware.PrincipalAuth(deps.Logger)
	walletHandler := NewWalletHandler(deps.LedgerSvc)
	historyHandler := NewHistoryHandler(deps.HistorySvc)

	wallets := v1.Group("/wallets", principal)
	{
		wallets.GET("/:id", walletHandler.GetWallet)
		wallets.POST("/:id/deposit", walletHandler.Deposit)
		wallets.POST("/:id/transfer", walletHandler.Transfer)
		wallets.GET("/:id/transactions", historyHandler.ListTransactions)
	}

	return r
}
