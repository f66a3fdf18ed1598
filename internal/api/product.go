package api

import (
	"errors"                      // Error matching
	"fmt"                         // Error wrapping
	"marketplace/internal/domain" // Importing domain models
	"marketplace/internal/utils"  // Utility functions
	"net/http"                    // HTTP status codes
	"strings"                     // String manipulation
	"time"                        // Timestamps

	"github.com/gin-gonic/gin"      // Gin web framework
	"github.com/shopspring/decimal" // Decimal prices
	"github.com/sirupsen/logrus"    // Logging library
	"gorm.io/gorm"                  // GORM ORM library
)

// ProductRequest is used both to create and to partially update a product
type ProductRequest struct {
	Name        *string          `json:"name"`        // Up to 100 characters
	Description *string          `json:"description"` // Catalog description
	Price       *decimal.Decimal `json:"price"`       // >= 0, two decimal places
	Quantity    *int             `json:"quantity"`    // >= 0
	ImageURL    *string          `json:"image_url"`   // Optional image location
}

// ProductEnvelope wraps a product with audit information
type ProductEnvelope struct {
	ID            uint           `json:"id"`              // Product ID
	CreatedAt     time.Time      `json:"created_at"`      // Creation time
	UpdatedAt     time.Time      `json:"updated_at"`      // Last change
	CreatedByName string         `json:"created_by_name"` // Creator display name
	UpdatedByName string         `json:"updated_by_name"` // Last editor display name
	Results       domain.Product `json:"results"`         // Product data
}

func envelope(p domain.Product) ProductEnvelope {
	env := ProductEnvelope{ID: p.ID, CreatedAt: p.CreatedAt, UpdatedAt: p.UpdatedAt, Results: p}
	if p.CreatedBy != nil {
		env.CreatedByName = p.CreatedBy.Name
	}
	if p.UpdatedBy != nil {
		env.UpdatedByName = p.UpdatedBy.Name
	}
	return env
}

// updates validates req and returns the columns it changes
func (req ProductRequest) updates() (map[string]any, error) {
	cols := map[string]any{}
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" || len([]rune(name)) > 100 {
			return nil, fmt.Errorf("%w: name must have 1 to 100 characters", domain.ErrValidation)
		}
		cols["name"] = name
	}
	if req.Description != nil {
		cols["description"] = strings.TrimSpace(*req.Description)
	}
	if req.Price != nil {
		p := *req.Price
		if p.IsNegative() || !p.Equal(p.Round(2)) || p.GreaterThanOrEqual(decimal.New(1, 8)) {
			return nil, fmt.Errorf("%w: price must be >= 0 with at most two decimal places", domain.ErrValidation)
		}
		cols["price"] = p
	}
	if req.Quantity != nil {
		if *req.Quantity < 0 {
			return nil, fmt.Errorf("%w: quantity must be >= 0", domain.ErrValidation)
		}
		cols["quantity"] = *req.Quantity
	}
	if req.ImageURL != nil {
		url := strings.TrimSpace(*req.ImageURL)
		if len(url) > 255 {
			return nil, fmt.Errorf("%w: image_url longer than 255 characters", domain.ErrValidation)
		}
		cols["image_url"] = url
	}
	return cols, nil
}

// ownedProduct loads product :id of the caller's company with its audit users
func ownedProduct(c *gin.Context, db *gorm.DB) (*domain.Company, *domain.Product, bool) {
	userID, ok := currentUserID(c)
	if !ok {
		return nil, nil, false
	}
	id, ok := paramID(c, "id")
	if !ok {
		return nil, nil, false
	}
	company, err := companyOf(c.Request.Context(), db, userID)
	if err != nil {
		respondError(c, err, "Failed to fetch product")
		return nil, nil, false
	}
	var product domain.Product
	err = db.Preload("CreatedBy").Preload("UpdatedBy").
		Where("id = ? AND company_id = ?", id, company.ID).First(&product).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Product not found"})
		return nil, nil, false
	} else if err != nil {
		respondError(c, err, "Failed to fetch product")
		return nil, nil, false
	}
	return company, &product, true
}

// ListProductsHandler returns the caller's catalog, paginated
func ListProductsHandler(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := currentUserID(c)
		if !ok {
			return
		}
		company, err := companyOf(c.Request.Context(), db, userID)
		if err != nil {
			respondError(c, err, "Failed to fetch products")
			return
		}
		page, pageSize := utils.Page(c.Query("page"), c.Query("page_size"))
		query := db.Model(&domain.Product{}).Where("company_id = ?", company.ID)
		if q := strings.TrimSpace(c.Query("q")); q != "" {
			query = query.Where("LOWER(name) LIKE ?", "%"+strings.ToLower(q)+"%") // Filter by name
		}
		var total int64
		if err := query.Count(&total).Error; err != nil {
			respondError(c, err, "Failed to count products")
			return
		}
		var products []domain.Product
		if err := query.Preload("CreatedBy").Preload("UpdatedBy").
			Order("id desc").Offset((page - 1) * pageSize).Limit(pageSize).
			Find(&products).Error; err != nil {
			respondError(c, err, "Failed to fetch products")
			return
		}
		resp := make([]ProductEnvelope, len(products))
		for i, p := range products {
			resp[i] = envelope(p)
		}
		c.JSON(http.StatusOK, gin.H{
			"products":    resp,                              // List of products
			"page":        page,                              // Current page
			"page_size":   pageSize,                          // Page size
			"total":       total,                             // Total number of products
			"total_pages": utils.TotalPages(total, pageSize), // Total pages
		})
	}
}

// CreateProductHandler adds a product to the caller's catalog
func CreateProductHandler(db *gorm.DB, cache *utils.Cache) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := currentUserID(c)
		if !ok {
			return
		}
		var req ProductRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
			return
		}
		if req.Name == nil || req.Price == nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "name and price are required"})
			return
		}
		cols, err := req.updates()
		if err != nil {
			respondError(c, err, "Failed to create product")
			return
		}
		ctx := c.Request.Context()
		company, err := companyOf(ctx, db, userID)
		if err != nil {
			respondError(c, err, "Failed to create product")
			return
		}
		product := domain.Product{
			CompanyID:   company.ID,
			Name:        cols["name"].(string),
			Price:       cols["price"].(decimal.Decimal),
			CreatedByID: &userID,
			UpdatedByID: &userID,
		}
		if v, ok := cols["description"].(string); ok {
			product.Description = v
		}
		if v, ok := cols["quantity"].(int); ok {
			product.Quantity = v
		}
		if v, ok := cols["image_url"].(string); ok {
			product.ImageURL = v
		}
		if err := db.WithContext(ctx).Create(&product).Error; err != nil {
			respondError(c, err, "Failed to create product")
			return
		}
		_ = cache.Delete(ctx, utils.StoreCompanyKey(company.ID)) // Invalidate storefront cache
		logrus.WithFields(logrus.Fields{
			"company_id": company.ID, // Company ID
			"product_id": product.ID, // Product ID
		}).Info("Product created")
		if err := db.Preload("CreatedBy").Preload("UpdatedBy").First(&product, product.ID).Error; err != nil {
			respondError(c, err, "Failed to fetch product")
			return
		}
		c.JSON(http.StatusCreated, envelope(product))
	}
}

// GetProductHandler returns one product of the caller's catalog
func GetProductHandler(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		_, product, ok := ownedProduct(c, db)
		if !ok {
			return
		}
		c.JSON(http.StatusOK, envelope(*product))
	}
}

// UpdateProductHandler partially updates a product of the caller's catalog
func UpdateProductHandler(db *gorm.DB, cache *utils.Cache) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req ProductRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
			return
		}
		cols, err := req.updates()
		if err != nil {
			respondError(c, err, "Failed to update product")
			return
		}
		company, product, ok := ownedProduct(c, db)
		if !ok {
			return
		}
		userID, _ := currentUserID(c)
		ctx := c.Request.Context()
		if len(cols) > 0 {
			cols["updated_by_id"] = userID
			if err := db.WithContext(ctx).Model(&domain.Product{}).Where("id = ?", product.ID).Updates(cols).Error; err != nil {
				respondError(c, err, "Failed to update product")
				return
			}
			_ = cache.Delete(ctx, utils.StoreProductKey(product.ID), utils.StoreCompanyKey(company.ID))
		}
		var stored domain.Product
		if err := db.Preload("CreatedBy").Preload("UpdatedBy").First(&stored, product.ID).Error; err != nil {
			respondError(c, err, "Failed to fetch product")
			return
		}
		c.JSON(http.StatusOK, envelope(stored))
	}
}

// DeleteProductHandler removes a product of the caller's catalog
func DeleteProductHandler(db *gorm.DB, cache *utils.Cache) gin.HandlerFunc {
	return func(c *gin.Context) {
		company, product, ok := ownedProduct(c, db)
		if !ok {
			return
		}
		ctx := c.Request.Context()
		if err := db.WithContext(ctx).Delete(&domain.Product{}, product.ID).Error; err != nil {
			respondError(c, err, "Failed to delete product")
			return
		}
		_ = cache.Delete(ctx, utils.StoreProductKey(product.ID), utils.StoreCompanyKey(company.ID))
		logrus.WithFields(logrus.Fields{
			"company_id": company.ID, // Company ID
			"product_id": product.ID, // Product ID
		}).Info("Product deleted")
		c.Status(http.StatusNoContent)
	}
}

// ProductAnalyticsHandler reports catalog size and low stock items
func ProductAnalyticsHandler(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := currentUserID(c)
		if !ok {
			return
		}
		company, err := companyOf(c.Request.Context(), db, userID)
		if err != nil {
			respondError(c, err, "Failed to compute analytics")
			return
		}
		var total int64
		if err := db.Model(&domain.Product{}).Where("company_id = ?", company.ID).Count(&total).Error; err != nil {
			respondError(c, err, "Failed to compute analytics")
			return
		}
		var lowStock []domain.Product
		if err := db.Where("company_id = ? AND quantity < ?", company.ID, domain.LowStockThreshold).
			Order("quantity asc").Order("id asc").Find(&lowStock).Error; err != nil {
			respondError(c, err, "Failed to compute analytics")
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"total_products":  total,         // Catalog size
			"low_stock_count": len(lowStock), // Products below the threshold
			"low_stock":       lowStock,      // Products below the threshold
		})
	}
}
