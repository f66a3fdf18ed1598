package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Company categories
const (
	CategoryFood        = "food"
	CategoryClothing    = "clothing"
	CategoryServices    = "services"
	CategoryElectronics = "electronics"
	CategoryBeauty      = "beauty"
	CategoryOther       = "other"
)

var categories = map[string]bool{
	CategoryFood:        true,
	CategoryClothing:    true,
	CategoryServices:    true,
	CategoryElectronics: true,
	CategoryBeauty:      true,
	CategoryOther:       true,
}

// ValidCategory reports whether c is one of the known company categories
func ValidCategory(c string) bool {
	return categories[c]
}

// MaxRating is the upper bound of a company rating
var MaxRating = decimal.NewFromInt(5)

// Company Model
type Company struct {
	ID          uint            `gorm:"primaryKey" json:"id"`                                   // Primary key
	UserID      uint            `gorm:"uniqueIndex;not null" json:"user_id"`                    // Owner, one company per user
	User        *User           `json:"user,omitempty"`                                         // Owner record
	Category    string          `gorm:"size:30;not null" json:"category"`                       // One of the category constants
	Description string          `gorm:"type:text" json:"description"`                           // Free text profile
	LogoURL     string          `gorm:"size:255" json:"logo_url"`                               // Logo location, uploads are handled elsewhere
	Rating      decimal.Decimal `gorm:"type:decimal(3,2);not null;default:0" json:"rating"`     // 0 to 5
	Goal        int             `gorm:"not null;default:0" json:"goal"`                         // Sales goal
	Products    []Product       `gorm:"constraint:OnDelete:CASCADE;" json:"products,omitempty"` // Catalog
	Wallet      *Wallet         `gorm:"constraint:OnDelete:CASCADE;" json:"wallet,omitempty"`   // One wallet per company
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}
