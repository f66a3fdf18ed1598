package api

import (
	"errors"                      // Error matching
	"fmt"                         // Cache key formatting
	"marketplace/internal/domain" // Importing domain models
	"marketplace/internal/events" // Domain events
	"marketplace/internal/ledger" // Ledger operations
	"marketplace/internal/utils"  // Utility functions
	"net/http"                    // HTTP status codes
	"strings"                     // String manipulation

	"github.com/gin-gonic/gin"      // Gin web framework
	"github.com/shopspring/decimal" // Decimal amounts
	"gorm.io/gorm"                  // GORM ORM library
)

// LedgerRequest represents a balance-affecting operation on the caller's wallet
type LedgerRequest struct {
	Amount      decimal.Decimal `json:"amount"`                        // Absolute amount
	Asset       string          `json:"asset" binding:"required"`      // BRL or COIN
	Operation   string          `json:"operation" binding:"required"`  // DEPOSIT, WITHDRAWAL, ...
	Description string          `json:"description" binding:"max=255"` // Optional note
}

// TransactionPage is the cached shape of a history page
type TransactionPage struct {
	Transactions []domain.Transaction `json:"transactions"` // List of transactions
	Page         int                  `json:"page"`         // Current page
	PageSize     int                  `json:"page_size"`    // Page size
	Total        int64                `json:"total"`        // Total transactions
	TotalPages   int                  `json:"total_pages"`  // Total pages
	Cached       bool                 `json:"cached"`       // Served from cache
}

// walletOf loads the wallet of the caller's company
func walletOf(c *gin.Context, db *gorm.DB) (*domain.Company, *domain.Wallet, bool) {
	userID, ok := currentUserID(c)
	if !ok {
		return nil, nil, false
	}
	company, err := companyOf(c.Request.Context(), db, userID)
	if err != nil {
		respondError(c, err, "Failed to fetch wallet")
		return nil, nil, false
	}
	var wallet domain.Wallet
	err = db.WithContext(c.Request.Context()).Where("company_id = ?", company.ID).First(&wallet).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Wallet not found"})
		return nil, nil, false
	} else if err != nil {
		respondError(c, err, "Failed to fetch wallet")
		return nil, nil, false
	}
	return company, &wallet, true
}

// invalidateWallet drops the cached wallet and every cached history page of a company
func invalidateWallet(c *gin.Context, cache *utils.Cache, companyID uint) {
	ctx := c.Request.Context()
	_ = cache.Delete(ctx, utils.WalletKey(companyID))             // Invalidate wallet cache
	_ = cache.DeletePrefix(ctx, utils.TxHistoryPrefix(companyID)) // Invalidate all history pages
}

// GetWalletHandler returns the wallet of the caller's company
func GetWalletHandler(db *gorm.DB, cache *utils.Cache) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := currentUserID(c)
		if !ok {
			return
		}
		ctx := c.Request.Context()
		company, err := companyOf(ctx, db, userID)
		if err != nil {
			respondError(c, err, "Failed to fetch wallet")
			return
		}
		cacheKey := utils.WalletKey(company.ID) // Cache key for wallet
		var wallet domain.Wallet                // Wallet struct to hold data
		found, err := cache.Get(ctx, cacheKey, &wallet)
		// If found in cache, return it
		if err == nil && found {
			c.JSON(http.StatusOK, gin.H{"wallet": wallet, "cached": true})
			return
		}
		// If not in cache, fetch from DB
		if err := db.WithContext(ctx).Where("company_id = ?", company.ID).First(&wallet).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "Wallet not found"})
				return
			}
			respondError(c, err, "Failed to fetch wallet")
			return
		}
		_ = cache.Set(ctx, cacheKey, wallet)                            // Cache the wallet
		c.JSON(http.StatusOK, gin.H{"wallet": wallet, "cached": false}) // Return wallet info
	}
}

// LedgerOperationHandler applies a ledger operation to the caller's wallet
func LedgerOperationHandler(db *gorm.DB, cache *utils.Cache, pub events.Publisher) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req LedgerRequest // Bind JSON request to struct
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
			return
		}
		company, wallet, ok := walletOf(c, db)
		if !ok {
			return
		}
		userID, _ := currentUserID(c)
		res, err := ledger.Apply(c.Request.Context(), db, wallet.ID, ledger.Operation{
			Amount:      req.Amount,
			Asset:       strings.ToUpper(strings.TrimSpace(req.Asset)),
			Type:        strings.ToUpper(strings.TrimSpace(req.Operation)),
			Description: req.Description,
			ActorID:     &userID,
		})
		if err != nil {
			respondError(c, err, "Ledger operation failed")
			return
		}
		invalidateWallet(c, cache, company.ID)
		events.Emit(pub, events.NewEvent(events.TypeLedgerOperation, company.ID, res))
		c.JSON(http.StatusCreated, res)
	}
}

// GetTransactionHistoryHandler returns the caller's ledger entries, newest first
func GetTransactionHistoryHandler(db *gorm.DB, cache *utils.Cache) gin.HandlerFunc {
	return func(c *gin.Context) {
		filter := ledger.Filter{
			Asset:     strings.ToUpper(c.Query("asset")),     // Filter by asset
			Operation: strings.ToUpper(c.Query("operation")), // Filter by operation type
		}
		if filter.Asset != "" && !domain.ValidAsset(filter.Asset) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Unknown asset " + filter.Asset})
			return
		}
		if _, known := domain.OperationSign(filter.Operation); filter.Operation != "" && !known {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Unknown operation " + filter.Operation})
			return
		}
		company, wallet, ok := walletOf(c, db)
		if !ok {
			return
		}
		page, pageSize := utils.Page(c.Query("page"), c.Query("page_size"))
		ctx := c.Request.Context()
		// Redis cache key
		cacheKey := utils.TxHistoryPrefix(company.ID) +
			fmt.Sprintf("page:%d:size:%d:asset:%s:op:%s", page, pageSize, filter.Asset, filter.Operation)
		var cached TransactionPage
		if found, err := cache.Get(ctx, cacheKey, &cached); err == nil && found {
			cached.Cached = true
			c.JSON(http.StatusOK, cached)
			return
		}
		txs, total, err := ledger.History(ctx, db, wallet.ID, filter, page, pageSize)
		if err != nil {
			respondError(c, err, "Failed to fetch transactions")
			return
		}
		resp := TransactionPage{
			Transactions: txs,
			Page:         page,
			PageSize:     pageSize,
			Total:        total,
			TotalPages:   utils.TotalPages(total, pageSize),
		}
		_ = cache.Set(ctx, cacheKey, resp) // Cache the result
		c.JSON(http.StatusOK, resp)        // Return transaction history
	}
}
