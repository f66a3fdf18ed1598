package api

import (
	"marketplace/internal/domain"     // Importing domain models
	"marketplace/internal/events"     // Domain events
	"marketplace/internal/metrics"    // Prometheus registry
	"marketplace/internal/middleware" // Custom package for middleware
	"marketplace/internal/utils"      // Utility functions
	"net/http"                        // HTTP status codes
	"time"                            // Token lifetimes

	"github.com/gin-gonic/gin" // Gin web framework
	"gorm.io/gorm"             // GORM ORM library
)

// Deps are the shared dependencies of every handler
type Deps struct {
	DB         *gorm.DB         // Database handle
	Cache      *utils.Cache     // Read-through cache, may be nil
	Events     events.Publisher // Domain event sink
	JWTSecret  string           // HS256 signing key
	AccessTTL  time.Duration    // Access token lifetime
	RefreshTTL time.Duration    // Refresh token lifetime
}

// RegisterRoutes mounts every endpoint on r
func RegisterRoutes(r *gin.Engine, d Deps) {
	db, cache, pub := d.DB, d.Cache, d.Events
	auth := middleware.JWTAuthMiddleware(d.JWTSecret)
	active := middleware.RequireActive(db)
	companyOnly := middleware.RequireRole(db, domain.RoleCompany)

	r.GET("/healthz", HealthHandler(db))            // Liveness and DB check
	r.GET("/metrics", gin.WrapH(metrics.Handler())) // Prometheus scrape endpoint

	apiGroup := r.Group("/api")

	// Auth routes
	apiGroup.POST("/users", RegisterHandler(db))                                           // Registration endpoint
	apiGroup.POST("/auth/login", LoginHandler(db, d.JWTSecret, d.AccessTTL, d.RefreshTTL)) // Login endpoint
	apiGroup.POST("/auth/refresh", RefreshHandler(db, d.JWTSecret, d.AccessTTL))           // Token refresh endpoint
	apiGroup.GET("/users/me", auth, active, MeHandler(db))                                 // Current user endpoint

	// Company routes (company role)
	companies := apiGroup.Group("/companies", auth, companyOnly)
	companies.POST("", CreateCompanyHandler(db, pub))             // Create company and wallet
	companies.GET("/me", GetMyCompanyHandler(db))                 // Own company
	companies.PATCH("/me", UpdateMyCompanyHandler(db, cache))     // Partial profile update
	companies.PATCH("/me/goal", UpdateGoalHandler(db, cache))     // Sales goal
	companies.PATCH("/me/rating", UpdateRatingHandler(db, cache)) // Rating

	// Product routes (company role, own catalog only)
	products := apiGroup.Group("/products", auth, companyOnly)
	products.GET("", ListProductsHandler(db))                // List catalog
	products.POST("", CreateProductHandler(db, cache))       // Create product
	products.GET("/analytics", ProductAnalyticsHandler(db))  // Catalog analytics
	products.GET("/:id", GetProductHandler(db))              // Get product
	products.PATCH("/:id", UpdateProductHandler(db, cache))  // Update product
	products.DELETE("/:id", DeleteProductHandler(db, cache)) // Delete product

	// Order routes
	orderGroup := apiGroup.Group("/orders", auth)
	orderGroup.POST("", active, CreateOrderHandler(db, cache, pub))                        // Any active user can buy
	orderGroup.GET("", companyOnly, ListOrdersHandler(db))                                 // Orders received
	orderGroup.GET("/:id", active, GetOrderHandler(db))                                    // Buyer or seller
	orderGroup.PATCH("/:id/status", companyOnly, UpdateOrderStatusHandler(db, cache, pub)) // Seller only

	// Wallet routes (company role)
	walletGroup := apiGroup.Group("/wallet", auth, companyOnly)
	walletGroup.GET("", GetWalletHandler(db, cache))                          // Get wallet endpoint
	walletGroup.POST("", LedgerOperationHandler(db, cache, pub))              // Ledger operation endpoint
	walletGroup.GET("/transactions", GetTransactionHistoryHandler(db, cache)) // Transaction history endpoint

	// Storefront routes
	store := apiGroup.Group("/store")
	store.GET("/companies/me", auth, active, MyStoreHandler(db)) // Own storefront
	store.GET("/companies/:id", StoreCompanyHandler(db, cache))  // Public company page
	store.GET("/products/:id", StoreProductHandler(db, cache))   // Public product page

	// Admin routes (protected, admin only)
	adminGroup := r.Group("/admin", auth, middleware.RequireRole(db, domain.RoleAdmin))
	adminGroup.GET("/users", ListUsersHandler(db, cache))                // List users endpoint
	adminGroup.GET("/transactions", ListTransactionsHandler(db, cache))  // List transactions endpoint
	adminGroup.GET("/orders", ListAllOrdersHandler(db, cache))           // List orders endpoint
	adminGroup.GET("/wallets/:id/reconcile", ReconcileWalletHandler(db)) // Ledger reconciliation
}

// HealthHandler reports whether the database answers
func HealthHandler(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		sqlDB, err := db.DB()
		if err == nil {
			err = sqlDB.PingContext(c.Request.Context())
		}
		if err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
}
