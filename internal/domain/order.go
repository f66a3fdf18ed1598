package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Order statuses
const (
	OrderStatusPending    = "pending"
	OrderStatusProcessing = "processing"
	OrderStatusPaid       = "paid"
	OrderStatusCancelled  = "cancelled"
	OrderStatusCompleted  = "completed"
)

// orderTransitions lists the statuses reachable from each status
var orderTransitions = map[string][]string{
	OrderStatusPending:    {OrderStatusProcessing, OrderStatusPaid, OrderStatusCancelled},
	OrderStatusProcessing: {OrderStatusPaid, OrderStatusCancelled},
	OrderStatusPaid:       {OrderStatusCompleted},
}

// ValidOrderStatus reports whether s is a known order status
func ValidOrderStatus(s string) bool {
	switch s {
	case OrderStatusPending, OrderStatusProcessing, OrderStatusPaid, OrderStatusCancelled, OrderStatusCompleted:
		return true
	}
	return false
}

// CanTransition reports whether an order may move from one status to another
func CanTransition(from, to string) bool {
	for _, s := range orderTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Order Model
type Order struct {
	ID        uint            `gorm:"primaryKey" json:"id"`                                 // Primary key
	BuyerID   uint            `gorm:"index;not null" json:"buyer_id"`                       // User that placed the order
	Buyer     *User           `json:"buyer,omitempty"`                                      // Buyer record
	CompanyID uint            `gorm:"index;not null" json:"company_id"`                     // Seller, shared by every item
	Status    string          `gorm:"size:20;not null;default:pending;index" json:"status"` // Lifecycle status
	Total     decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0" json:"total"`   // Σ quantity × unit price
	Items     []OrderItem     `gorm:"constraint:OnDelete:CASCADE;" json:"items"`            // Purchased lines
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// OrderItem Model
type OrderItem struct {
	ID        uint            `gorm:"primaryKey" json:"id"`                          // Primary key
	OrderID   uint            `gorm:"index;not null" json:"order_id"`                // Parent order
	ProductID uint            `gorm:"index;not null" json:"product_id"`              // Purchased product
	Quantity  int             `gorm:"not null" json:"quantity"`                      // Units purchased
	UnitPrice decimal.Decimal `gorm:"type:decimal(10,2);not null" json:"unit_price"` // Price captured at purchase time
	CreatedAt time.Time       `json:"created_at"`
}

// Subtotal is quantity × captured unit price
func (i OrderItem) Subtotal() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt(int64(i.Quantity)))
}
