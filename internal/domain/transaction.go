package domain

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Assets a wallet can hold
const (
	AssetCurrency = "BRL"  // Real currency
	AssetCoin     = "COIN" // In-app reward coin
)

// Ledger operation types
const (
	OpDeposit      = "DEPOSIT"
	OpCoinPurchase = "COIN_PURCHASE"
	OpCoinSpend    = "COIN_SPEND"
	OpBonus        = "BONUS"
	OpWithdrawal   = "WITHDRAWAL"
	OpRefund       = "REFUND"
)

// operationSigns classifies every operation as credit (+1) or debit (-1)
var operationSigns = map[string]int64{
	OpDeposit:      1,
	OpBonus:        1,
	OpRefund:       1,
	OpWithdrawal:   -1,
	OpCoinSpend:    -1,
	OpCoinPurchase: -1,
}

// OperationSign returns +1 for credits and -1 for debits; ok is false for unknown operations
func OperationSign(op string) (sign int64, ok bool) {
	sign, ok = operationSigns[op]
	return sign, ok
}

// ValidAsset reports whether asset is BRL or COIN
func ValidAsset(asset string) bool {
	return asset == AssetCurrency || asset == AssetCoin
}

// Transaction Model, one immutable ledger entry
type Transaction struct {
	ID           uint            `gorm:"primaryKey" json:"id"`                                                       // Primary key
	WalletID     uint            `gorm:"not null;index:idx_transactions_wallet_created,priority:1" json:"wallet_id"` // Wallet the entry belongs to
	Asset        string          `gorm:"size:4;not null" json:"asset"`                                               // BRL or COIN
	Operation    string          `gorm:"size:20;not null;index" json:"operation"`                                    // Operation type
	Amount       decimal.Decimal `gorm:"type:decimal(14,2);not null" json:"amount"`                                  // Absolute amount
	SignedAmount decimal.Decimal `gorm:"type:decimal(14,2);not null" json:"signed_amount"`                           // Amount with the credit/debit sign
	Description  string          `gorm:"size:255" json:"description"`                                                // Optional free text
	CreatedByID  *uint           `json:"created_by_id,omitempty"`                                                    // Actor, nil for system operations
	CreatedAt    time.Time       `gorm:"index:idx_transactions_wallet_created,priority:2" json:"created_at"`         // Timestamp of creation
}

// BeforeUpdate refuses any change to a stored ledger entry
func (t *Transaction) BeforeUpdate(tx *gorm.DB) error {
	return ErrImmutableTransaction
}

// BeforeDelete refuses removal of a stored ledger entry
func (t *Transaction) BeforeDelete(tx *gorm.DB) error {
	return ErrImmutableTransaction
}
