package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// LowStockThreshold is the quantity below which a product counts as low stock
const LowStockThreshold = 5

// Product Model
type Product struct {
	ID          uint            `gorm:"primaryKey" json:"id"`                     // Primary key
	CompanyID   uint            `gorm:"index;not null" json:"company_id"`         // Owning company
	Company     *Company        `json:"company,omitempty"`                        // Owning company record
	Name        string          `gorm:"size:100;not null" json:"name"`            // Catalog name
	Description string          `gorm:"type:text" json:"description"`             // Catalog description
	Price       decimal.Decimal `gorm:"type:decimal(10,2);not null" json:"price"` // Current catalog price
	Quantity    int             `gorm:"not null;default:0" json:"quantity"`       // Units in stock
	ImageURL    string          `gorm:"size:255" json:"image_url"`                // Image location
	CreatedByID *uint           `json:"created_by_id,omitempty"`                  // Actor that created the row
	CreatedBy   *User           `gorm:"foreignKey:CreatedByID" json:"-"`          // Creator record
	UpdatedByID *uint           `json:"updated_by_id,omitempty"`                  // Last actor that changed the row
	UpdatedBy   *User           `gorm:"foreignKey:UpdatedByID" json:"-"`          // Last editor record
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}
