// Package testutil holds fixtures shared by the package tests.
package testutil

import (
	"testing"

	"marketplace/internal/db"
	"marketplace/internal/domain"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// Password is the plain text password of every user created by the fixtures
const Password = "password123"

// NewDB opens a migrated in-memory SQLite database that lives for the test
func NewDB(t *testing.T) *gorm.DB {
	t.Helper()
	gdb, err := db.Open("sqlite", ":memory:")
	require.NoError(t, err, "failed to connect to in-memory db")
	require.NoError(t, db.Migrate(gdb), "failed to migrate tables")
	t.Cleanup(func() {
		if sqlDB, err := gdb.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return gdb
}

// CreateUser stores an active user with the given role
func CreateUser(t *testing.T, gdb *gorm.DB, email, role string) *domain.User {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(Password), bcrypt.MinCost)
	require.NoError(t, err)
	user := &domain.User{Email: email, Name: "User " + email, Phone: "5511999999999", Password: string(hash), Role: role, IsActive: true}
	require.NoError(t, gdb.Create(user).Error)
	return user
}

// CreateCompany stores a company user, its company and an empty wallet
func CreateCompany(t *testing.T, gdb *gorm.DB, email string) (*domain.User, *domain.Company) {
	t.Helper()
	user := CreateUser(t, gdb, email, domain.RoleCompany)
	company := &domain.Company{UserID: user.ID, Category: domain.CategoryFood, Description: "Bakery"}
	require.NoError(t, gdb.Create(company).Error)
	require.NoError(t, gdb.Create(&domain.Wallet{CompanyID: company.ID}).Error)
	return user, company
}

// CreateProduct stores a product for company with the given price and stock
func CreateProduct(t *testing.T, gdb *gorm.DB, company *domain.Company, name, price string, quantity int) *domain.Product {
	t.Helper()
	p := &domain.Product{
		CompanyID:   company.ID,
		Name:        name,
		Description: name + " description",
		Price:       decimal.RequireFromString(price),
		Quantity:    quantity,
		CreatedByID: &company.UserID,
		UpdatedByID: &company.UserID,
	}
	require.NoError(t, gdb.Create(p).Error)
	return p
}

// WalletOf loads the wallet of company
func WalletOf(t *testing.T, gdb *gorm.DB, company *domain.Company) *domain.Wallet {
	t.Helper()
	var w domain.Wallet
	require.NoError(t, gdb.Where("company_id = ?", company.ID).First(&w).Error)
	return &w
}
