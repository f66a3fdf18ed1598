// Package ledger applies balance-affecting operations to company wallets.
//
// Every operation appends one immutable domain.Transaction and moves the matching
// wallet balance by the same signed amount inside a single database transaction,
// with the wallet row locked, so a wallet balance is always the sum of its entries.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"marketplace/internal/domain"
	"marketplace/internal/metrics"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// MaxAmount bounds a single operation to what fits a decimal(14,2) column
var MaxAmount = decimal.New(1, 12)

// Operation describes one ledger request
type Operation struct {
	Amount      decimal.Decimal // Absolute amount, > 0 with at most two decimal places
	Asset       string          // domain.AssetCurrency or domain.AssetCoin
	Type        string          // One of the domain.Op* constants
	Description string          // Optional, up to 255 characters
	ActorID     *uint           // User performing the operation, nil for system operations
}

// Validate checks the operation without touching the database
func (op Operation) Validate() error {
	if _, ok := domain.OperationSign(op.Type); !ok {
		return fmt.Errorf("%w: %q", domain.ErrInvalidOperation, op.Type)
	}
	if !domain.ValidAsset(op.Asset) {
		return fmt.Errorf("%w: unknown asset %q", domain.ErrValidation, op.Asset)
	}
	if !op.Amount.IsPositive() {
		return fmt.Errorf("%w: amount must be greater than zero", domain.ErrValidation)
	}
	if !op.Amount.Equal(op.Amount.Round(2)) {
		return fmt.Errorf("%w: amount must have at most two decimal places", domain.ErrValidation)
	}
	if op.Amount.GreaterThanOrEqual(MaxAmount) {
		return fmt.Errorf("%w: amount too large", domain.ErrValidation)
	}
	if len([]rune(op.Description)) > 255 {
		return fmt.Errorf("%w: description longer than 255 characters", domain.ErrValidation)
	}
	return nil
}

// Result carries the stored entry and the wallet state right after it
type Result struct {
	Transaction domain.Transaction `json:"transaction"`
	Wallet      domain.Wallet      `json:"wallet"`
}

// Apply records op against the wallet in its own transaction. Either both the ledger
// entry and the balance change persist or neither does.
func Apply(ctx context.Context, db *gorm.DB, walletID uint, op Operation) (*Result, error) {
	res, err := ApplyInTx(ctx, db, walletID, op)
	if err != nil {
		return nil, err
	}
	Observe(res)
	return res, nil
}

// ApplyInTx does the work of Apply inside tx, which may belong to a caller's wider
// transaction. Success is not logged or counted: the caller calls Observe once its
// transaction has committed.
func ApplyInTx(ctx context.Context, tx *gorm.DB, walletID uint, op Operation) (*Result, error) {
	op.Description = strings.TrimSpace(op.Description)
	if err := op.Validate(); err != nil {
		metrics.RecordLedgerOperation(op.Asset, op.Type, "invalid")
		return nil, err
	}
	sign, _ := domain.OperationSign(op.Type)
	delta := op.Amount.Mul(decimal.NewFromInt(sign))

	var res Result
	err := tx.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var wallet domain.Wallet
		// Lock the wallet row until commit
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&wallet, walletID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: wallet %d", domain.ErrNotFound, walletID)
			}
			return err
		}
		current := wallet.Balance(op.Asset)
		if sign < 0 && current.LessThan(op.Amount) {
			return fmt.Errorf("%w: %s balance is %s, requested %s",
				domain.ErrInsufficientFunds, op.Asset, current.StringFixed(2), op.Amount.StringFixed(2))
		}
		entry := domain.Transaction{
			WalletID:     wallet.ID,
			Asset:        op.Asset,
			Operation:    op.Type,
			Amount:       op.Amount,
			SignedAmount: delta,
			Description:  op.Description,
			CreatedByID:  op.ActorID,
		}
		if err := tx.Create(&entry).Error; err != nil {
			return err // Return error to rollback
		}
		balance := current.Add(delta)
		if err := tx.Model(&wallet).Update(domain.BalanceColumn(op.Asset), balance).Error; err != nil {
			return err // Return error to rollback
		}
		wallet.SetBalance(op.Asset, balance)
		res = Result{Transaction: entry, Wallet: wallet}
		return nil // Commit transaction
	})
	if err != nil {
		metrics.RecordLedgerOperation(op.Asset, op.Type, failureClass(err))
		logrus.WithFields(logrus.Fields{
			"wallet_id": walletID,
			"asset":     op.Asset,
			"operation": op.Type,
			"amount":    op.Amount.String(),
			"error":     err.Error(),
		}).Warn("Ledger operation rejected")
		return nil, err
	}
	return &res, nil
}

// Observe counts and logs a committed ledger operation
func Observe(res *Result) {
	if res == nil {
		return
	}
	t := res.Transaction
	metrics.RecordLedgerOperation(t.Asset, t.Operation, "ok")
	logrus.WithFields(logrus.Fields{
		"wallet_id":      t.WalletID,
		"transaction_id": t.ID,
		"asset":          t.Asset,
		"operation":      t.Operation,
		"signed_amount":  t.SignedAmount.String(),
		"balance":        res.Wallet.Balance(t.Asset).String(),
	}).Info("Ledger operation")
}

func failureClass(err error) string {
	switch {
	case errors.Is(err, domain.ErrInsufficientFunds):
		return "insufficient_funds"
	case errors.Is(err, domain.ErrNotFound):
		return "not_found"
	default:
		return "error"
	}
}

// Filter narrows a history listing
type Filter struct {
	Asset     string // Only entries of this asset when set
	Operation string // Only entries of this operation type when set
}

// History returns one page of the wallet's entries, newest first, and the total count
func History(ctx context.Context, db *gorm.DB, walletID uint, f Filter, page, pageSize int) ([]domain.Transaction, int64, error) {
	query := db.WithContext(ctx).Model(&domain.Transaction{}).Where("wallet_id = ?", walletID)
	if f.Asset != "" {
		query = query.Where("asset = ?", f.Asset)
	}
	if f.Operation != "" {
		query = query.Where("operation = ?", f.Operation)
	}
	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var txs []domain.Transaction
	err := query.Order("created_at desc").Order("id desc").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&txs).Error
	if err != nil {
		return nil, 0, err
	}
	return txs, total, nil
}

// Reconciliation compares a stored balance with the sum of the ledger entries
type Reconciliation struct {
	Asset    string          `json:"asset"`
	Stored   decimal.Decimal `json:"stored"`
	Computed decimal.Decimal `json:"computed"`
	Balanced bool            `json:"balanced"`
}

// Reconcile recomputes both balances of a wallet from its entries
func Reconcile(ctx context.Context, db *gorm.DB, walletID uint) ([]Reconciliation, error) {
	db = db.WithContext(ctx)
	var wallet domain.Wallet
	if err := db.First(&wallet, walletID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: wallet %d", domain.ErrNotFound, walletID)
		}
		return nil, err
	}
	out := make([]Reconciliation, 0, 2)
	for _, asset := range []string{domain.AssetCurrency, domain.AssetCoin} {
		var sum decimal.Decimal
		row := db.Model(&domain.Transaction{}).
			Select("COALESCE(SUM(signed_amount), 0)").
			Where("wallet_id = ? AND asset = ?", walletID, asset).
			Row()
		if err := row.Scan(&sum); err != nil {
			return nil, err
		}
		// Columns hold two decimal places; drivers may sum in floating point
		sum = sum.Round(2)
		stored := wallet.Balance(asset)
		out = append(out, Reconciliation{
			Asset:    asset,
			Stored:   stored,
			Computed: sum,
			Balanced: stored.Equal(sum),
		})
	}
	return out, nil
}
