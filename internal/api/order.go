package api

import (
	"errors"                      // Error matching
	"marketplace/internal/domain" // Importing domain models
	"marketplace/internal/events" // Domain events
	"marketplace/internal/orders" // Order service
	"marketplace/internal/utils"  // Utility functions
	"net/http"                    // HTTP status codes
	"strings"                     // String manipulation

	"github.com/gin-gonic/gin" // Gin web framework
	"gorm.io/gorm"             // GORM ORM library
)

// CreateOrderRequest lists the requested products
type CreateOrderRequest struct {
	Items []orders.ItemRequest `json:"items" binding:"required,min=1,dive"` // At least one line
}

// StatusRequest moves an order to a new status
type StatusRequest struct {
	Status string `json:"status" binding:"required"` // Target status
}

// CreateOrderHandler places an order for the authenticated user
func CreateOrderHandler(db *gorm.DB, cache *utils.Cache, pub events.Publisher) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := currentUserID(c)
		if !ok {
			return
		}
		var req CreateOrderRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
			return
		}
		ctx := c.Request.Context()
		order, err := orders.Create(ctx, db, userID, req.Items)
		if err != nil {
			respondError(c, err, "Failed to create order")
			return
		}
		// Stock changed for every ordered product
		keys := []string{utils.StoreCompanyKey(order.CompanyID)}
		for _, item := range order.Items {
			keys = append(keys, utils.StoreProductKey(item.ProductID))
		}
		_ = cache.Delete(ctx, keys...)
		events.Emit(pub, events.NewEvent(events.TypeOrderCreated, order.ID, order))
		c.JSON(http.StatusCreated, gin.H{"order": order})
	}
}

// ListOrdersHandler returns the orders received by the caller's company
func ListOrdersHandler(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := currentUserID(c)
		if !ok {
			return
		}
		ctx := c.Request.Context()
		company, err := companyOf(ctx, db, userID)
		if err != nil {
			respondError(c, err, "Failed to fetch orders")
			return
		}
		page, pageSize := utils.Page(c.Query("page"), c.Query("page_size"))
		status := strings.ToLower(c.Query("status")) // Filter by status
		list, total, err := orders.ListForCompany(ctx, db, company.ID, status, page, pageSize)
		if err != nil {
			respondError(c, err, "Failed to fetch orders")
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"orders":      list,                              // List of orders
			"page":        page,                              // Current page
			"page_size":   pageSize,                          // Page size
			"total":       total,                             // Total number of orders
			"total_pages": utils.TotalPages(total, pageSize), // Total pages
		})
	}
}

// GetOrderHandler returns one order to its buyer or to the selling company
func GetOrderHandler(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := currentUserID(c)
		if !ok {
			return
		}
		id, ok := paramID(c, "id")
		if !ok {
			return
		}
		ctx := c.Request.Context()
		order, err := orders.Get(ctx, db, id)
		if err != nil {
			respondError(c, err, "Failed to fetch order")
			return
		}
		if order.BuyerID != userID {
			company, err := companyOf(ctx, db, userID)
			if err != nil && !errors.Is(err, domain.ErrNotFound) {
				respondError(c, err, "Failed to fetch order")
				return
			}
			// Orders of other parties are indistinguishable from missing ones
			if company == nil || company.ID != order.CompanyID {
				c.JSON(http.StatusNotFound, gin.H{"error": "Order not found"})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"order": order})
	}
}

// UpdateOrderStatusHandler lets the selling company move an order through its lifecycle
func UpdateOrderStatusHandler(db *gorm.DB, cache *utils.Cache, pub events.Publisher) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := currentUserID(c)
		if !ok {
			return
		}
		id, ok := paramID(c, "id")
		if !ok {
			return
		}
		var req StatusRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "status is required"})
			return
		}
		ctx := c.Request.Context()
		company, err := companyOf(ctx, db, userID)
		if err != nil {
			respondError(c, err, "Failed to update order")
			return
		}
		change, err := orders.UpdateStatus(ctx, db, id, company.ID, strings.ToLower(strings.TrimSpace(req.Status)), &userID)
		if err != nil {
			respondError(c, err, "Failed to update order")
			return
		}
		switch {
		case change.Ledger != nil:
			invalidateWallet(c, cache, company.ID)
			events.Emit(pub, events.NewEvent(events.TypeLedgerOperation, company.ID, change.Ledger))
		case change.Order.Status == domain.OrderStatusCancelled:
			keys := []string{utils.StoreCompanyKey(company.ID)}
			for _, item := range change.Order.Items {
				keys = append(keys, utils.StoreProductKey(item.ProductID))
			}
			_ = cache.Delete(ctx, keys...)
		}
		events.Emit(pub, events.NewEvent(events.TypeOrderStatusChanged, change.Order.ID, gin.H{
			"order_id":   change.Order.ID,
			"company_id": change.Order.CompanyID,
			"from":       change.From,
			"to":         change.Order.Status,
		}))
		c.JSON(http.StatusOK, change)
	}
}
