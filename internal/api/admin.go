package api

import (
	"marketplace/internal/domain" // Importing domain models
	"marketplace/internal/ledger" // Ledger reconciliation
	"marketplace/internal/utils"  // Utility functions
	"net/http"                    // HTTP status codes
	"strings"                     // String manipulation

	"github.com/gin-gonic/gin" // Gin web framework
	"gorm.io/gorm"             // GORM ORM library
)

// UserAdminResponse represents the user data returned to admin
type UserAdminResponse struct {
	ID       uint            `json:"id"`                // User ID
	Email    string          `json:"email"`             // Email
	Name     string          `json:"name"`              // Display name
	Role     string          `json:"role"`              // User role
	IsActive bool            `json:"is_active"`         // Active flag
	Company  *domain.Company `json:"company,omitempty"` // Owned company with wallet
}

// AdminPage is the cached shape of an admin listing
type AdminPage[T any] struct {
	Items      []T   `json:"items"`       // Listed rows
	Page       int   `json:"page"`        // Current page
	PageSize   int   `json:"page_size"`   // Page size
	Total      int64 `json:"total"`       // Total number of rows
	TotalPages int   `json:"total_pages"` // Total pages
	Cached     bool  `json:"cached"`      // Served from cache
}

// adminCacheKey builds a cache key from the listing name and all its query params
func adminCacheKey(c *gin.Context, name string, params ...string) string {
	var keyParts []string // Parts of the cache key
	for _, k := range append(params, "page", "page_size") {
		keyParts = append(keyParts, k+"="+c.Query(k)) // Append key-value pair
	}
	return utils.AdminPrefix + name + ":" + strings.Join(keyParts, ":")
}

// listAdmin runs a cached, paginated listing over query and converts the rows with convert
func listAdmin[T, R any](c *gin.Context, cache *utils.Cache, cacheKey string, query *gorm.DB, order string, preloads []string, convert func([]T) []R) {
	ctx := c.Request.Context()
	var cached AdminPage[R]
	// If cached data found, return it
	if found, err := cache.Get(ctx, cacheKey, &cached); err == nil && found {
		cached.Cached = true // Indicate response is from cache
		c.JSON(http.StatusOK, cached)
		return
	}
	page, pageSize := utils.Page(c.Query("page"), c.Query("page_size"))
	var total int64
	if err := query.Count(&total).Error; err != nil {
		respondError(c, err, "Failed to count rows")
		return
	}
	for _, p := range preloads {
		query = query.Preload(p)
	}
	rows := []T{}
	if err := query.Order(order).Offset((page - 1) * pageSize).Limit(pageSize).Find(&rows).Error; err != nil {
		respondError(c, err, "Failed to fetch rows")
		return
	}
	resp := AdminPage[R]{
		Items:      convert(rows),
		Page:       page,
		PageSize:   pageSize,
		Total:      total,
		TotalPages: utils.TotalPages(total, pageSize),
	}
	_ = cache.Set(ctx, cacheKey, resp) // Cache the response for future requests
	c.JSON(http.StatusOK, resp)
}

func same[T any](rows []T) []T { return rows }

// ListUsersHandler returns all users with their company and wallet
func ListUsersHandler(db *gorm.DB, cache *utils.Cache) gin.HandlerFunc {
	return func(c *gin.Context) {
		query := db.WithContext(c.Request.Context()).Model(&domain.User{})
		if role := c.Query("role"); role != "" {
			query = query.Where("role = ?", role) // Filter by role
		}
		if email := strings.TrimSpace(c.Query("email")); email != "" {
			query = query.Where("email LIKE ?", "%"+strings.ToLower(email)+"%") // Filter by email
		}
		if active := c.Query("is_active"); active != "" {
			query = query.Where("is_active = ?", active == "true") // Filter by active flag
		}
		key := adminCacheKey(c, "users", "role", "email", "is_active")
		listAdmin(c, cache, key, query, "id asc", []string{"Company.Wallet"}, AdminUsers)
	}
}

// AdminUsers flattens users for the admin listing
func AdminUsers(users []domain.User) []UserAdminResponse {
	resp := make([]UserAdminResponse, len(users))
	for i, u := range users {
		resp[i] = UserAdminResponse{ID: u.ID, Email: u.Email, Name: u.Name, Role: u.Role, IsActive: u.IsActive, Company: u.Company}
	}
	return resp
}

// ListTransactionsHandler returns all ledger entries, with optional filtering by company,
// asset, operation or date
func ListTransactionsHandler(db *gorm.DB, cache *utils.Cache) gin.HandlerFunc {
	return func(c *gin.Context) {
		query := db.WithContext(c.Request.Context()).Model(&domain.Transaction{}) // Start building the query
		if companyID := c.Query("company_id"); companyID != "" {
			query = query.Where("wallet_id IN (?)", db.Model(&domain.Wallet{}).Select("id").Where("company_id = ?", companyID)) // Filter by company
		}
		if asset := c.Query("asset"); asset != "" {
			query = query.Where("asset = ?", strings.ToUpper(asset)) // Filter by asset
		}
		if op := c.Query("operation"); op != "" {
			query = query.Where("operation = ?", strings.ToUpper(op)) // Filter by operation type
		}
		if from := c.Query("from"); from != "" {
			query = query.Where("created_at >= ?", from) // Filter by start date
		}
		if to := c.Query("to"); to != "" {
			query = query.Where("created_at <= ?", to) // Filter by end date
		}
		key := adminCacheKey(c, "txs", "company_id", "asset", "operation", "from", "to")
		listAdmin(c, cache, key, query, "created_at desc, id desc", nil, same[domain.Transaction])
	}
}

// ListAllOrdersHandler returns all orders, with optional filtering by company or status
func ListAllOrdersHandler(db *gorm.DB, cache *utils.Cache) gin.HandlerFunc {
	return func(c *gin.Context) {
		query := db.WithContext(c.Request.Context()).Model(&domain.Order{})
		if companyID := c.Query("company_id"); companyID != "" {
			query = query.Where("company_id = ?", companyID) // Filter by company
		}
		if status := c.Query("status"); status != "" {
			query = query.Where("status = ?", strings.ToLower(status)) // Filter by status
		}
		key := adminCacheKey(c, "orders", "company_id", "status")
		listAdmin(c, cache, key, query, "created_at desc, id desc", []string{"Items"}, same[domain.Order])
	}
}

// ReconcileWalletHandler recomputes a wallet's balances from its ledger entries
func ReconcileWalletHandler(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := paramID(c, "id")
		if !ok {
			return
		}
		recs, err := ledger.Reconcile(c.Request.Context(), db, id)
		if err != nil {
			respondError(c, err, "Failed to reconcile wallet")
			return
		}
		balanced := true
		for _, r := range recs {
			balanced = balanced && r.Balanced
		}
		c.JSON(http.StatusOK, gin.H{"wallet_id": id, "assets": recs, "balanced": balanced})
	}
}
