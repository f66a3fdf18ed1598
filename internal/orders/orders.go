// Package orders turns a buyer's item list into an order and drives its status.
package orders

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"marketplace/internal/domain"
	"marketplace/internal/ledger"
	"marketplace/internal/metrics"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ItemRequest is one requested order line
type ItemRequest struct {
	ProductID uint `json:"product_id" binding:"required"`
	Quantity  int  `json:"quantity" binding:"required"`
}

// Create places an order for buyerID. Each product row is locked, its current price is
// captured as the unit price and its stock is decremented; any failure rolls back the
// whole order.
func Create(ctx context.Context, db *gorm.DB, buyerID uint, items []ItemRequest) (*domain.Order, error) {
	if len(items) == 0 {
		return nil, fmt.Errorf("%w: items required", domain.ErrValidation)
	}
	for _, it := range items {
		if it.ProductID == 0 {
			return nil, fmt.Errorf("%w: product_id required", domain.ErrValidation)
		}
		if it.Quantity <= 0 {
			return nil, fmt.Errorf("%w: quantity must be > 0", domain.ErrValidation)
		}
	}

	// Product rows are locked together in ascending id order
	ids := make([]uint, 0, len(items))
	for _, it := range items {
		ids = append(ids, it.ProductID)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	order := domain.Order{BuyerID: buyerID, Status: domain.OrderStatusPending}
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var rows []domain.Product
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id IN ?", ids).Order("id asc").Find(&rows).Error; err != nil {
			return err
		}
		products := make(map[uint]*domain.Product, len(rows))
		for i := range rows {
			products[rows[i].ID] = &rows[i]
		}
		total := decimal.Zero
		for _, it := range items {
			product, ok := products[it.ProductID]
			if !ok {
				return fmt.Errorf("%w: product %d does not exist", domain.ErrValidation, it.ProductID)
			}
			if order.CompanyID == 0 {
				order.CompanyID = product.CompanyID
			} else if order.CompanyID != product.CompanyID {
				return fmt.Errorf("%w: all products of an order must belong to the same company", domain.ErrValidation)
			}
			if product.Quantity < it.Quantity {
				return fmt.Errorf("%w: insufficient stock for product %q", domain.ErrValidation, product.Name)
			}
			product.Quantity -= it.Quantity // Repeated lines draw from the same stock
			if err := tx.Model(product).Update("quantity", product.Quantity).Error; err != nil {
				return err
			}
			line := domain.OrderItem{ProductID: product.ID, Quantity: it.Quantity, UnitPrice: product.Price}
			total = total.Add(line.Subtotal())
			order.Items = append(order.Items, line)
		}
		order.Total = total
		return tx.Create(&order).Error // Items are created with the order
	})
	if err != nil {
		return nil, err
	}
	metrics.RecordOrderCreated()
	logrus.WithFields(logrus.Fields{
		"order_id":   order.ID,
		"buyer_id":   buyerID,
		"company_id": order.CompanyID,
		"total":      order.Total.String(),
		"items":      len(order.Items),
	}).Info("Order created")
	return &order, nil
}

// Get loads an order with its items
func Get(ctx context.Context, db *gorm.DB, id uint) (*domain.Order, error) {
	var order domain.Order
	if err := db.WithContext(ctx).Preload("Items").First(&order, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: order %d", domain.ErrNotFound, id)
		}
		return nil, err
	}
	return &order, nil
}

// ListForCompany returns one page of a company's orders, newest first
func ListForCompany(ctx context.Context, db *gorm.DB, companyID uint, status string, page, pageSize int) ([]domain.Order, int64, error) {
	query := db.WithContext(ctx).Model(&domain.Order{}).Where("company_id = ?", companyID)
	if status != "" {
		query = query.Where("status = ?", status)
	}
	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var list []domain.Order
	err := query.Preload("Items").
		Order("created_at desc").Order("id desc").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&list).Error
	if err != nil {
		return nil, 0, err
	}
	return list, total, nil
}

// StatusChange is the outcome of UpdateStatus
type StatusChange struct {
	Order  domain.Order   `json:"order"`
	From   string         `json:"from"`
	Ledger *ledger.Result `json:"ledger,omitempty"` // Set when the change credited the wallet
}

// UpdateStatus moves an order of companyID to status. Cancelling returns the items to
// stock; paying credits the order total to the company wallet in the same transaction.
func UpdateStatus(ctx context.Context, db *gorm.DB, orderID, companyID uint, status string, actorID *uint) (*StatusChange, error) {
	if !domain.ValidOrderStatus(status) {
		return nil, fmt.Errorf("%w: unknown order status %q", domain.ErrValidation, status)
	}
	var change StatusChange
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var order domain.Order
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Preload("Items").First(&order, orderID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: order %d", domain.ErrNotFound, orderID)
			}
			return err
		}
		if order.CompanyID != companyID {
			return fmt.Errorf("%w: order %d", domain.ErrNotFound, orderID)
		}
		if !domain.CanTransition(order.Status, status) {
			return fmt.Errorf("%w: cannot move order from %s to %s", domain.ErrConflict, order.Status, status)
		}
		change.From = order.Status

		switch status {
		case domain.OrderStatusCancelled:
			for _, item := range order.Items {
				// Deleted products are simply not restocked
				if err := tx.Model(&domain.Product{}).Where("id = ?", item.ProductID).
					Update("quantity", gorm.Expr("quantity + ?", item.Quantity)).Error; err != nil {
					return err
				}
			}
		case domain.OrderStatusPaid:
			if order.Total.IsPositive() {
				var wallet domain.Wallet
				if err := tx.Where("company_id = ?", companyID).First(&wallet).Error; err != nil {
					return fmt.Errorf("wallet of company %d: %w", companyID, err)
				}
				res, err := ledger.ApplyInTx(ctx, tx, wallet.ID, ledger.Operation{
					Amount:      order.Total,
					Asset:       domain.AssetCurrency,
					Type:        domain.OpDeposit,
					Description: fmt.Sprintf("Order #%d", order.ID),
					ActorID:     actorID,
				})
				if err != nil {
					return err
				}
				change.Ledger = res
			}
		}

		if err := tx.Model(&domain.Order{}).Where("id = ?", order.ID).Update("status", status).Error; err != nil {
			return err
		}
		order.Status = status
		change.Order = order
		return nil
	})
	if err != nil {
		return nil, err
	}
	ledger.Observe(change.Ledger)
	metrics.RecordOrderStatus(status)
	logrus.WithFields(logrus.Fields{
		"order_id":   orderID,
		"company_id": companyID,
		"from":       change.From,
		"to":         status,
	}).Info("Order status changed")
	return &change, nil
}
