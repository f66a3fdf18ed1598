package api

import (
	"context"                     // Context for cache and DB calls
	"errors"                      // Error matching
	"fmt"                         // Error wrapping
	"marketplace/internal/domain" // Importing domain models
	"marketplace/internal/utils"  // Utility functions
	"net/http"                    // HTTP status codes
	"time"                        // Timestamps

	"github.com/gin-gonic/gin"      // Gin web framework
	"github.com/shopspring/decimal" // Decimal ratings
	"gorm.io/gorm"                  // GORM ORM library
)

// UpsellLimit bounds the related products shown next to a product
const UpsellLimit = 5

// StoreOwner is the public contact data of a company owner
type StoreOwner struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone"`
}

// StoreCompany is the public view of a company
type StoreCompany struct {
	ID          uint             `json:"id"`
	Category    string           `json:"category"`
	Description string           `json:"description"`
	LogoURL     string           `json:"logo_url"`
	Rating      decimal.Decimal  `json:"rating"`
	Owner       StoreOwner       `json:"owner"`
	Products    []domain.Product `json:"products"`
	CreatedAt   time.Time        `json:"created_at"`
}

// StoreProduct is the public view of a product with related offers
type StoreProduct struct {
	Product domain.Product   `json:"product"`
	Company StoreOwner       `json:"company_owner"`
	Upsell  []domain.Product `json:"upsell"`
}

// storeProductEntry is the cached shape of a product page. Upsell products are kept by
// id and reloaded on every hit so their stock stays current.
type storeProductEntry struct {
	Product   domain.Product `json:"product"`
	Company   StoreOwner     `json:"company_owner"`
	UpsellIDs []uint         `json:"upsell_ids"`
}

// loadUpsell fetches the products in ids, keeping their order and skipping deleted ones
func loadUpsell(ctx context.Context, db *gorm.DB, ids []uint) ([]domain.Product, error) {
	upsell := []domain.Product{}
	if len(ids) == 0 {
		return upsell, nil
	}
	var rows []domain.Product
	if err := db.WithContext(ctx).Where("id IN ?", ids).Find(&rows).Error; err != nil {
		return nil, err
	}
	byID := make(map[uint]domain.Product, len(rows))
	for _, p := range rows {
		byID[p.ID] = p
	}
	for _, id := range ids {
		if p, ok := byID[id]; ok {
			upsell = append(upsell, p)
		}
	}
	return upsell, nil
}

// loadStoreCompany builds the public view of a company
func loadStoreCompany(ctx context.Context, db *gorm.DB, query string, arg uint) (*StoreCompany, error) {
	var company domain.Company
	err := db.WithContext(ctx).Preload("User").
		Preload("Products", func(tx *gorm.DB) *gorm.DB { return tx.Order("id asc") }).
		Where(query, arg).First(&company).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: company", domain.ErrNotFound)
	} else if err != nil {
		return nil, err
	}
	view := &StoreCompany{
		ID:          company.ID,
		Category:    company.Category,
		Description: company.Description,
		LogoURL:     company.LogoURL,
		Rating:      company.Rating,
		Products:    company.Products,
		CreatedAt:   company.CreatedAt,
	}
	if view.Products == nil {
		view.Products = []domain.Product{}
	}
	if company.User != nil {
		view.Owner = StoreOwner{Name: company.User.Name, Email: company.User.Email, Phone: company.User.Phone}
	}
	return view, nil
}

// randomOrder returns the dialect's random ordering expression
func randomOrder(db *gorm.DB) string {
	if db.Dialector.Name() == "mysql" {
		return "RAND()"
	}
	return "RANDOM()"
}

// MyStoreHandler returns the public view of the caller's own company
func MyStoreHandler(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := currentUserID(c)
		if !ok {
			return
		}
		view, err := loadStoreCompany(c.Request.Context(), db, "user_id = ?", userID)
		if err != nil {
			respondError(c, err, "Failed to fetch store")
			return
		}
		c.JSON(http.StatusOK, gin.H{"company": view})
	}
}

// StoreCompanyHandler returns the public view of a company
func StoreCompanyHandler(db *gorm.DB, cache *utils.Cache) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := paramID(c, "id")
		if !ok {
			return
		}
		ctx := c.Request.Context()
		cacheKey := utils.StoreCompanyKey(id)
		var view StoreCompany
		if found, err := cache.Get(ctx, cacheKey, &view); err == nil && found {
			c.JSON(http.StatusOK, gin.H{"company": view, "cached": true})
			return
		}
		loaded, err := loadStoreCompany(ctx, db, "id = ?", id)
		if err != nil {
			respondError(c, err, "Failed to fetch store")
			return
		}
		_ = cache.Set(ctx, cacheKey, loaded)
		c.JSON(http.StatusOK, gin.H{"company": loaded, "cached": false})
	}
}

// StoreProductHandler returns a public product with up to UpsellLimit other products
// of the same company in random order
func StoreProductHandler(db *gorm.DB, cache *utils.Cache) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := paramID(c, "id")
		if !ok {
			return
		}
		ctx := c.Request.Context()
		cacheKey := utils.StoreProductKey(id)
		var entry storeProductEntry
		if found, err := cache.Get(ctx, cacheKey, &entry); err == nil && found {
			upsell, err := loadUpsell(ctx, db, entry.UpsellIDs)
			if err != nil {
				respondError(c, err, "Failed to fetch product")
				return
			}
			c.JSON(http.StatusOK, gin.H{"product": entry.Product, "company_owner": entry.Company, "upsell": upsell, "cached": true})
			return
		}
		var product domain.Product
		err := db.WithContext(ctx).Preload("Company.User").First(&product, id).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Product not found"})
			return
		} else if err != nil {
			respondError(c, err, "Failed to fetch product")
			return
		}
		view := StoreProduct{Upsell: []domain.Product{}}
		if err := db.WithContext(ctx).
			Where("company_id = ? AND id <> ?", product.CompanyID, product.ID).
			Order(randomOrder(db)).Limit(UpsellLimit).
			Find(&view.Upsell).Error; err != nil {
			respondError(c, err, "Failed to fetch product")
			return
		}
		if product.Company != nil && product.Company.User != nil {
			u := product.Company.User
			view.Company = StoreOwner{Name: u.Name, Email: u.Email, Phone: u.Phone}
			product.Company.User = nil // Owner data is exposed through company_owner only
		}
		view.Product = product
		entry = storeProductEntry{Product: view.Product, Company: view.Company}
		for _, p := range view.Upsell {
			entry.UpsellIDs = append(entry.UpsellIDs, p.ID)
		}
		_ = cache.Set(ctx, cacheKey, entry)
		c.JSON(http.StatusOK, gin.H{"product": view.Product, "company_owner": view.Company, "upsell": view.Upsell, "cached": false})
	}
}
