package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Wallet Model
type Wallet struct {
	ID              uint            `gorm:"primaryKey" json:"id"`                                          // Primary key
	CompanyID       uint            `gorm:"uniqueIndex;not null" json:"company_id"`                        // Owning company
	BalanceCurrency decimal.Decimal `gorm:"type:decimal(14,2);not null;default:0" json:"balance_currency"` // BRL balance
	BalanceCoin     decimal.Decimal `gorm:"type:decimal(14,2);not null;default:0" json:"balance_coin"`     // Reward coin balance
	UpdatedAt       time.Time       `json:"updated_at"`
}

// Balance returns the balance held in the given asset
func (w *Wallet) Balance(asset string) decimal.Decimal {
	if asset == AssetCoin {
		return w.BalanceCoin
	}
	return w.BalanceCurrency
}

// BalanceColumn returns the column storing the given asset's balance
func BalanceColumn(asset string) string {
	if asset == AssetCoin {
		return "balance_coin"
	}
	return "balance_currency"
}

// SetBalance replaces the in-memory balance of the given asset
func (w *Wallet) SetBalance(asset string, v decimal.Decimal) {
	if asset == AssetCoin {
		w.BalanceCoin = v
		return
	}
	w.BalanceCurrency = v
}
