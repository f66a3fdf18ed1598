package api

import (
	"context"                     // Context for cache and DB calls
	"errors"                      // Error matching
	"fmt"                         // Error wrapping
	"marketplace/internal/domain" // Importing domain models
	"marketplace/internal/events" // Domain events
	"marketplace/internal/utils"  // Utility functions
	"net/http"                    // HTTP status codes
	"strings"                     // String manipulation

	"github.com/gin-gonic/gin"      // Gin web framework
	"github.com/shopspring/decimal" // Decimal ratings
	"github.com/sirupsen/logrus"    // Logging library
	"gorm.io/gorm"                  // GORM ORM library
)

// CompanyRequest is used both to create and to partially update a company
type CompanyRequest struct {
	Category    *string `json:"category"`                             // One of the known categories
	Description *string `json:"description"`                          // Free text profile
	LogoURL     *string `json:"logo_url" binding:"omitempty,max=255"` // Logo location
	Goal        *int    `json:"goal" binding:"omitempty,min=0"`       // Sales goal
}

// GoalRequest sets the sales goal
type GoalRequest struct {
	Goal *int `json:"goal" binding:"required,min=0"` // Sales goal
}

// RatingRequest sets the company rating
type RatingRequest struct {
	Rating *decimal.Decimal `json:"rating"` // 0 to 5
}

// companyOf loads the company owned by userID
func companyOf(ctx context.Context, db *gorm.DB, userID uint) (*domain.Company, error) {
	var company domain.Company
	if err := db.WithContext(ctx).Where("user_id = ?", userID).First(&company).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: no company registered for this user", domain.ErrNotFound)
		}
		return nil, err
	}
	return &company, nil
}

// updates validates req and returns the columns it changes
func (req CompanyRequest) updates() (map[string]any, error) {
	cols := map[string]any{}
	if req.Category != nil {
		category := strings.ToLower(strings.TrimSpace(*req.Category))
		if !domain.ValidCategory(category) {
			return nil, fmt.Errorf("%w: unknown category %q", domain.ErrValidation, *req.Category)
		}
		cols["category"] = category
	}
	if req.Description != nil {
		cols["description"] = strings.TrimSpace(*req.Description)
	}
	if req.LogoURL != nil {
		cols["logo_url"] = strings.TrimSpace(*req.LogoURL)
	}
	if req.Goal != nil {
		cols["goal"] = *req.Goal
	}
	return cols, nil
}

// CreateCompanyHandler creates the caller's company and its empty wallet in one transaction
func CreateCompanyHandler(db *gorm.DB, pub events.Publisher) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := currentUserID(c)
		if !ok {
			return
		}
		var req CompanyRequest // Bind JSON request to struct
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
			return
		}
		if req.Category == nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "category is required"})
			return
		}
		cols, err := req.updates()
		if err != nil {
			respondError(c, err, "Failed to create company")
			return
		}
		company := domain.Company{UserID: userID, Category: cols["category"].(string)}
		if v, ok := cols["description"].(string); ok {
			company.Description = v
		}
		if v, ok := cols["logo_url"].(string); ok {
			company.LogoURL = v
		}
		if v, ok := cols["goal"].(int); ok {
			company.Goal = v
		}
		// Atomic company + wallet creation
		err = db.WithContext(c.Request.Context()).Transaction(func(tx *gorm.DB) error {
			var count int64
			if err := tx.Model(&domain.Company{}).Where("user_id = ?", userID).Count(&count).Error; err != nil {
				return err
			}
			if count > 0 {
				return fmt.Errorf("%w: user already owns a company", domain.ErrConflict)
			}
			if err := tx.Create(&company).Error; err != nil {
				return err // Return error to rollback
			}
			wallet := domain.Wallet{CompanyID: company.ID}
			if err := tx.Create(&wallet).Error; err != nil {
				return err // Return error to rollback
			}
			company.Wallet = &wallet
			return nil // Commit transaction
		})
		if err != nil {
			respondError(c, err, "Failed to create company")
			return
		}
		logrus.WithFields(logrus.Fields{
			"user_id":    userID,            // Owner
			"company_id": company.ID,        // Company ID
			"wallet_id":  company.Wallet.ID, // Wallet ID
			"category":   company.Category,  // Category
		}).Info("Company created")
		events.Emit(pub, events.NewEvent(events.TypeCompanyCreated, company.ID, company))
		c.JSON(http.StatusCreated, gin.H{"company": company})
	}
}

// GetMyCompanyHandler returns the caller's company with its wallet
func GetMyCompanyHandler(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := currentUserID(c)
		if !ok {
			return
		}
		var company domain.Company
		err := db.Preload("Wallet").Where("user_id = ?", userID).First(&company).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Company not found"})
			return
		} else if err != nil {
			respondError(c, err, "Failed to fetch company")
			return
		}
		c.JSON(http.StatusOK, gin.H{"company": company})
	}
}

// UpdateMyCompanyHandler partially updates the caller's company profile
func UpdateMyCompanyHandler(db *gorm.DB, cache *utils.Cache) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req CompanyRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
			return
		}
		cols, err := req.updates()
		if err != nil {
			respondError(c, err, "Failed to update company")
			return
		}
		updateCompany(c, db, cache, cols)
	}
}

// UpdateGoalHandler sets the caller's sales goal
func UpdateGoalHandler(db *gorm.DB, cache *utils.Cache) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req GoalRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "goal must be a non-negative integer"})
			return
		}
		updateCompany(c, db, cache, map[string]any{"goal": *req.Goal})
	}
}

// UpdateRatingHandler sets the caller's rating, between 0 and 5
func UpdateRatingHandler(db *gorm.DB, cache *utils.Cache) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req RatingRequest
		if err := c.ShouldBindJSON(&req); err != nil || req.Rating == nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "rating is required"})
			return
		}
		r := *req.Rating
		if r.IsNegative() || r.GreaterThan(domain.MaxRating) || !r.Equal(r.Round(2)) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "rating must be between 0 and 5 with at most two decimal places"})
			return
		}
		updateCompany(c, db, cache, map[string]any{"rating": r})
	}
}

// updateCompany applies cols to the caller's company and answers with the stored row
func updateCompany(c *gin.Context, db *gorm.DB, cache *utils.Cache, cols map[string]any) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	company, err := companyOf(ctx, db, userID)
	if err != nil {
		respondError(c, err, "Failed to update company")
		return
	}
	if len(cols) > 0 {
		if err := db.WithContext(ctx).Model(company).Updates(cols).Error; err != nil {
			respondError(c, err, "Failed to update company")
			return
		}
		_ = cache.Delete(ctx, utils.StoreCompanyKey(company.ID)) // Invalidate storefront cache
	}
	if err := db.WithContext(ctx).First(company, company.ID).Error; err != nil {
		respondError(c, err, "Failed to fetch company")
		return
	}
	c.JSON(http.StatusOK, gin.H{"company": company})
}
