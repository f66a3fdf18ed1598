package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"marketplace/internal/domain"
	"marketplace/internal/events"
	"marketplace/internal/middleware"
	"marketplace/internal/testutil"
	"marketplace/internal/utils"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

const testSecret = "test-secret-key-for-unit-tests"

type harness struct {
	t      *testing.T
	db     *gorm.DB
	router *gin.Engine
	events *events.MemoryPublisher
	redis  *miniredis.Miniredis
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	gin.SetMode(gin.TestMode)
	db := testutil.NewDB(t)
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	pub := &events.MemoryPublisher{}

	r := gin.New()
	r.Use(middleware.RequestID())
	RegisterRoutes(r, Deps{
		DB:         db,
		Cache:      utils.NewCache(rdb, time.Minute),
		Events:     pub,
		JWTSecret:  testSecret,
		AccessTTL:  time.Minute,
		RefreshTTL: time.Hour,
	})
	return &harness{t: t, db: db, router: r, events: pub, redis: mr}
}

// do sends a JSON request, authenticated when token is set
func (h *harness) do(method, path, token string, body any) *httptest.ResponseRecorder {
	h.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(h.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.router.ServeHTTP(rec, req)
	return rec
}

func (h *harness) token(user *domain.User) string {
	h.t.Helper()
	tok, err := utils.GenerateJWT(user.ID, user.Role, utils.TokenAccess, testSecret, time.Minute)
	require.NoError(h.t, err)
	return tok
}

func (h *harness) eventTypes() []string {
	var types []string
	for _, ev := range h.events.Events() {
		types = append(types, ev.Type)
	}
	return types
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v), rec.Body.String())
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestRegisterLoginRefreshAndMe(t *testing.T) {
	h := newHarness(t)

	register := gin.H{"name": "Ana", "email": "Ana@Example.com", "phone": "11999990000", "usertype": "consumer", "password": "secret123"}
	rec := h.do(http.MethodPost, "/api/users", "", register)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.NotContains(t, rec.Body.String(), "secret123")
	assert.Contains(t, rec.Body.String(), `"email":"ana@example.com"`)

	assert.Equal(t, http.StatusConflict, h.do(http.MethodPost, "/api/users", "", register).Code)

	bad := gin.H{"name": "Bob", "email": "bob@example.com", "usertype": "admin", "password": "secret123"}
	assert.Equal(t, http.StatusBadRequest, h.do(http.MethodPost, "/api/users", "", bad).Code)
	short := gin.H{"name": "Bob", "email": "bob@example.com", "usertype": "consumer", "password": "short"}
	assert.Equal(t, http.StatusBadRequest, h.do(http.MethodPost, "/api/users", "", short).Code)

	rec = h.do(http.MethodPost, "/api/auth/login", "", gin.H{"email": "ana@example.com", "password": "wrong-password"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	rec = h.do(http.MethodPost, "/api/auth/login", "", gin.H{"email": "nobody@example.com", "password": "secret123"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = h.do(http.MethodPost, "/api/auth/login", "", gin.H{"email": "ANA@example.com", "password": "secret123"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var pair utils.TokenPair
	decode(t, rec, &pair)
	require.NotEmpty(t, pair.Access)
	require.NotEmpty(t, pair.Refresh)

	rec = h.do(http.MethodGet, "/api/users/me", pair.Access, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var me struct {
		User domain.User `json:"user"`
	}
	decode(t, rec, &me)
	assert.Equal(t, "Ana", me.User.Name)
	assert.Equal(t, domain.RoleConsumer, me.User.Role)

	// Refresh tokens are not accepted as access tokens and vice versa
	assert.Equal(t, http.StatusUnauthorized, h.do(http.MethodGet, "/api/users/me", pair.Refresh, nil).Code)
	assert.Equal(t, http.StatusUnauthorized, h.do(http.MethodPost, "/api/auth/refresh", "", gin.H{"refresh": pair.Access}).Code)

	rec = h.do(http.MethodPost, "/api/auth/refresh", "", gin.H{"refresh": pair.Refresh})
	require.Equal(t, http.StatusOK, rec.Code)
	var refreshed struct {
		Access string `json:"access"`
	}
	decode(t, rec, &refreshed)
	assert.Equal(t, http.StatusOK, h.do(http.MethodGet, "/api/users/me", refreshed.Access, nil).Code)
}

func TestLoginInactiveUser(t *testing.T) {
	h := newHarness(t)
	user := testutil.CreateUser(t, h.db, "off@example.com", domain.RoleConsumer)
	require.NoError(t, h.db.Model(user).Update("is_active", false).Error)

	rec := h.do(http.MethodPost, "/api/auth/login", "", gin.H{"email": "off@example.com", "password": testutil.Password})
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestDeactivatedUserLosesAccessBeforeTokenExpiry(t *testing.T) {
	h := newHarness(t)
	buyer := testutil.CreateUser(t, h.db, "buyer@example.com", domain.RoleConsumer)
	_, company := testutil.CreateCompany(t, h.db, "owner@example.com")
	product := testutil.CreateProduct(t, h.db, company, "Cake", "3.00", 5)
	token := h.token(buyer)
	require.Equal(t, http.StatusOK, h.do(http.MethodGet, "/api/users/me", token, nil).Code)

	require.NoError(t, h.db.Model(buyer).Update("is_active", false).Error)

	rec := h.do(http.MethodPost, "/api/orders", token, gin.H{"items": []gin.H{{"product_id": product.ID, "quantity": 1}}})
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, http.StatusForbidden, h.do(http.MethodGet, "/api/users/me", token, nil).Code)
	assert.Equal(t, http.StatusForbidden, h.do(http.MethodGet, "/api/orders/1", token, nil).Code)
	assert.Equal(t, http.StatusForbidden, h.do(http.MethodGet, "/api/store/companies/me", token, nil).Code)

	var stored domain.Product
	require.NoError(t, h.db.First(&stored, product.ID).Error)
	assert.Equal(t, 5, stored.Quantity)
}

func TestCreateCompanyWithWallet(t *testing.T) {
	h := newHarness(t)
	owner := testutil.CreateUser(t, h.db, "owner@example.com", domain.RoleCompany)
	consumer := testutil.CreateUser(t, h.db, "buyer@example.com", domain.RoleConsumer)
	token := h.token(owner)

	assert.Equal(t, http.StatusBadRequest, h.do(http.MethodPost, "/api/companies", token, gin.H{"category": "weapons"}).Code)
	assert.Equal(t, http.StatusBadRequest, h.do(http.MethodPost, "/api/companies", token, gin.H{"description": "no category"}).Code)
	assert.Equal(t, http.StatusForbidden, h.do(http.MethodPost, "/api/companies", h.token(consumer), gin.H{"category": "food"}).Code)

	rec := h.do(http.MethodPost, "/api/companies", token, gin.H{"category": "Food", "description": "Bakery", "goal": 100})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var created struct {
		Company domain.Company `json:"company"`
	}
	decode(t, rec, &created)
	assert.Equal(t, domain.CategoryFood, created.Company.Category)
	require.NotNil(t, created.Company.Wallet)
	assert.True(t, created.Company.Wallet.BalanceCurrency.IsZero())
	assert.True(t, created.Company.Wallet.BalanceCoin.IsZero())
	assert.Contains(t, h.eventTypes(), events.TypeCompanyCreated)

	assert.Equal(t, http.StatusConflict, h.do(http.MethodPost, "/api/companies", token, gin.H{"category": "food"}).Code)
	var wallets int64
	require.NoError(t, h.db.Model(&domain.Wallet{}).Count(&wallets).Error)
	assert.Equal(t, int64(1), wallets)
}

func TestUpdateCompanyProfileGoalAndRating(t *testing.T) {
	h := newHarness(t)
	owner, _ := testutil.CreateCompany(t, h.db, "owner@example.com")
	token := h.token(owner)

	rec := h.do(http.MethodPatch, "/api/companies/me", token, gin.H{"description": "New text", "logo_url": "https://cdn.example.com/logo.png"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var body struct {
		Company domain.Company `json:"company"`
	}
	decode(t, rec, &body)
	assert.Equal(t, "New text", body.Company.Description)
	assert.Equal(t, domain.CategoryFood, body.Company.Category)

	assert.Equal(t, http.StatusBadRequest, h.do(http.MethodPatch, "/api/companies/me", token, gin.H{"category": "nope"}).Code)

	assert.Equal(t, http.StatusBadRequest, h.do(http.MethodPatch, "/api/companies/me/goal", token, gin.H{"goal": -1}).Code)
	rec = h.do(http.MethodPatch, "/api/companies/me/goal", token, gin.H{"goal": 0})
	require.Equal(t, http.StatusOK, rec.Code)
	rec = h.do(http.MethodPatch, "/api/companies/me/goal", token, gin.H{"goal": 250})
	require.Equal(t, http.StatusOK, rec.Code)
	decode(t, rec, &body)
	assert.Equal(t, 250, body.Company.Goal)

	assert.Equal(t, http.StatusBadRequest, h.do(http.MethodPatch, "/api/companies/me/rating", token, gin.H{"rating": 5.5}).Code)
	assert.Equal(t, http.StatusBadRequest, h.do(http.MethodPatch, "/api/companies/me/rating", token, gin.H{"rating": -1}).Code)
	rec = h.do(http.MethodPatch, "/api/companies/me/rating", token, gin.H{"rating": 4.5})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	decode(t, rec, &body)
	assert.True(t, dec("4.5").Equal(body.Company.Rating), body.Company.Rating.String())

	rec = h.do(http.MethodGet, "/api/companies/me", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	decode(t, rec, &body)
	require.NotNil(t, body.Company.Wallet)
}

func TestCompanyRoutesWithoutCompany(t *testing.T) {
	h := newHarness(t)
	owner := testutil.CreateUser(t, h.db, "owner@example.com", domain.RoleCompany)
	token := h.token(owner)

	assert.Equal(t, http.StatusNotFound, h.do(http.MethodGet, "/api/companies/me", token, nil).Code)
	assert.Equal(t, http.StatusNotFound, h.do(http.MethodGet, "/api/wallet", token, nil).Code)
	assert.Equal(t, http.StatusNotFound, h.do(http.MethodGet, "/api/products", token, nil).Code)
}

func TestProductCRUD(t *testing.T) {
	h := newHarness(t)
	owner, _ := testutil.CreateCompany(t, h.db, "owner@example.com")
	other, _ := testutil.CreateCompany(t, h.db, "other@example.com")
	token := h.token(owner)

	assert.Equal(t, http.StatusBadRequest, h.do(http.MethodPost, "/api/products", token, gin.H{"name": "Bread"}).Code)
	assert.Equal(t, http.StatusBadRequest, h.do(http.MethodPost, "/api/products", token, gin.H{"name": "Bread", "price": "1.999"}).Code)
	assert.Equal(t, http.StatusBadRequest, h.do(http.MethodPost, "/api/products", token, gin.H{"name": "Bread", "price": "2", "quantity": -1}).Code)

	rec := h.do(http.MethodPost, "/api/products", token, gin.H{"name": "Bread", "price": "8.50", "quantity": 3})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var env ProductEnvelope
	decode(t, rec, &env)
	assert.Equal(t, env.ID, env.Results.ID)
	assert.Equal(t, owner.Name, env.CreatedByName)
	assert.Equal(t, owner.Name, env.UpdatedByName)
	assert.True(t, dec("8.5").Equal(env.Results.Price))

	path := "/api/products/" + itoa(env.ID)
	assert.Equal(t, http.StatusNotFound, h.do(http.MethodGet, path, h.token(other), nil).Code)
	assert.Equal(t, http.StatusNotFound, h.do(http.MethodDelete, path, h.token(other), nil).Code)

	rec = h.do(http.MethodPatch, path, token, gin.H{"price": "9.00", "quantity": 12})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	decode(t, rec, &env)
	assert.True(t, dec("9").Equal(env.Results.Price))
	assert.Equal(t, 12, env.Results.Quantity)
	assert.Equal(t, "Bread", env.Results.Name)

	rec = h.do(http.MethodGet, "/api/products", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var list struct {
		Products []ProductEnvelope `json:"products"`
		Total    int64             `json:"total"`
	}
	decode(t, rec, &list)
	assert.Equal(t, int64(1), list.Total)
	require.Len(t, list.Products, 1)
	assert.Equal(t, owner.Name, list.Products[0].CreatedByName)

	assert.Equal(t, http.StatusNoContent, h.do(http.MethodDelete, path, token, nil).Code)
	assert.Equal(t, http.StatusNotFound, h.do(http.MethodGet, path, token, nil).Code)
	assert.Equal(t, http.StatusBadRequest, h.do(http.MethodGet, "/api/products/abc", token, nil).Code)
}

func TestProductAnalytics(t *testing.T) {
	h := newHarness(t)
	owner, company := testutil.CreateCompany(t, h.db, "owner@example.com")
	testutil.CreateProduct(t, h.db, company, "Plenty", "1.00", 50)
	testutil.CreateProduct(t, h.db, company, "Few", "1.00", 4)
	testutil.CreateProduct(t, h.db, company, "None", "1.00", 0)
	testutil.CreateProduct(t, h.db, company, "Edge", "1.00", domain.LowStockThreshold)

	rec := h.do(http.MethodGet, "/api/products/analytics", h.token(owner), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		TotalProducts int64            `json:"total_products"`
		LowStockCount int              `json:"low_stock_count"`
		LowStock      []domain.Product `json:"low_stock"`
	}
	decode(t, rec, &body)
	assert.Equal(t, int64(4), body.TotalProducts)
	assert.Equal(t, 2, body.LowStockCount)
	require.Len(t, body.LowStock, 2)
	assert.Equal(t, "None", body.LowStock[0].Name)
}

func TestOrderLifecycle(t *testing.T) {
	h := newHarness(t)
	buyer := testutil.CreateUser(t, h.db, "buyer@example.com", domain.RoleConsumer)
	stranger := testutil.CreateUser(t, h.db, "stranger@example.com", domain.RoleConsumer)
	owner, company := testutil.CreateCompany(t, h.db, "owner@example.com")
	product := testutil.CreateProduct(t, h.db, company, "Cake", "12.25", 10)

	rec := h.do(http.MethodPost, "/api/orders", h.token(buyer), gin.H{"items": []gin.H{{"product_id": product.ID, "quantity": 11}}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = h.do(http.MethodPost, "/api/orders", h.token(buyer), gin.H{"items": []gin.H{}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = h.do(http.MethodPost, "/api/orders", h.token(buyer), gin.H{"items": []gin.H{{"product_id": product.ID, "quantity": 2}}})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var created struct {
		Order domain.Order `json:"order"`
	}
	decode(t, rec, &created)
	assert.True(t, dec("24.5").Equal(created.Order.Total), created.Order.Total.String())
	assert.Equal(t, company.ID, created.Order.CompanyID)
	assert.Contains(t, h.eventTypes(), events.TypeOrderCreated)

	path := "/api/orders/" + itoa(created.Order.ID)
	assert.Equal(t, http.StatusOK, h.do(http.MethodGet, path, h.token(buyer), nil).Code)
	assert.Equal(t, http.StatusOK, h.do(http.MethodGet, path, h.token(owner), nil).Code)
	assert.Equal(t, http.StatusNotFound, h.do(http.MethodGet, path, h.token(stranger), nil).Code)

	rec = h.do(http.MethodGet, "/api/orders", h.token(owner), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var list struct {
		Orders []domain.Order `json:"orders"`
		Total  int64          `json:"total"`
	}
	decode(t, rec, &list)
	assert.Equal(t, int64(1), list.Total)

	// Only the selling company moves the order
	assert.Equal(t, http.StatusForbidden, h.do(http.MethodPatch, path+"/status", h.token(buyer), gin.H{"status": "paid"}).Code)

	assert.Equal(t, http.StatusBadRequest, h.do(http.MethodPatch, path+"/status", h.token(owner), gin.H{"status": "shipped"}).Code)

	rec = h.do(http.MethodPatch, path+"/status", h.token(owner), gin.H{"status": "paid"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, h.eventTypes(), events.TypeLedgerOperation)
	assert.Contains(t, h.eventTypes(), events.TypeOrderStatusChanged)

	rec = h.do(http.MethodGet, "/api/wallet", h.token(owner), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var wallet struct {
		Wallet domain.Wallet `json:"wallet"`
	}
	decode(t, rec, &wallet)
	assert.True(t, dec("24.5").Equal(wallet.Wallet.BalanceCurrency), wallet.Wallet.BalanceCurrency.String())

	assert.Equal(t, http.StatusConflict, h.do(http.MethodPatch, path+"/status", h.token(owner), gin.H{"status": "cancelled"}).Code)
	assert.Equal(t, http.StatusOK, h.do(http.MethodPatch, path+"/status", h.token(owner), gin.H{"status": "completed"}).Code)
}

func TestOrderCancelRestoresStock(t *testing.T) {
	h := newHarness(t)
	buyer := testutil.CreateUser(t, h.db, "buyer@example.com", domain.RoleConsumer)
	owner, company := testutil.CreateCompany(t, h.db, "owner@example.com")
	product := testutil.CreateProduct(t, h.db, company, "Cake", "3.00", 5)

	rec := h.do(http.MethodPost, "/api/orders", h.token(buyer), gin.H{"items": []gin.H{{"product_id": product.ID, "quantity": 5}}})
	require.Equal(t, http.StatusCreated, rec.Code)
	var created struct {
		Order domain.Order `json:"order"`
	}
	decode(t, rec, &created)

	rec = h.do(http.MethodPatch, "/api/orders/"+itoa(created.Order.ID)+"/status", h.token(owner), gin.H{"status": "cancelled"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var stored domain.Product
	require.NoError(t, h.db.First(&stored, product.ID).Error)
	assert.Equal(t, 5, stored.Quantity)
	assert.NotContains(t, h.eventTypes(), events.TypeLedgerOperation)
}

func TestWalletOperationsAndCache(t *testing.T) {
	h := newHarness(t)
	owner, company := testutil.CreateCompany(t, h.db, "owner@example.com")
	token := h.token(owner)

	rec := h.do(http.MethodGet, "/api/wallet", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"cached":false`)
	rec = h.do(http.MethodGet, "/api/wallet", token, nil)
	assert.Contains(t, rec.Body.String(), `"cached":true`)

	rec = h.do(http.MethodPost, "/api/wallet", token, gin.H{"amount": "100.00", "asset": "BRL", "operation": "DEPOSIT", "description": "Opening"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var res struct {
		Transaction domain.Transaction `json:"transaction"`
		Wallet      domain.Wallet      `json:"wallet"`
	}
	decode(t, rec, &res)
	assert.True(t, dec("100").Equal(res.Transaction.SignedAmount))
	assert.True(t, dec("100").Equal(res.Wallet.BalanceCurrency))
	require.NotNil(t, res.Transaction.CreatedByID)
	assert.Equal(t, owner.ID, *res.Transaction.CreatedByID)

	// The wallet cache was invalidated by the operation
	rec = h.do(http.MethodGet, "/api/wallet", token, nil)
	assert.Contains(t, rec.Body.String(), `"cached":false`)
	assert.True(t, h.redis.Exists(utils.WalletKey(company.ID)))

	rec = h.do(http.MethodPost, "/api/wallet", token, gin.H{"amount": "150", "asset": "BRL", "operation": "WITHDRAWAL"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "insufficient funds")
	rec = h.do(http.MethodPost, "/api/wallet", token, gin.H{"amount": "1", "asset": "BRL", "operation": "TRANSFER"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = h.do(http.MethodPost, "/api/wallet", token, gin.H{"amount": "0", "asset": "BRL", "operation": "DEPOSIT"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = h.do(http.MethodPost, "/api/wallet", token, gin.H{"amount": "20", "asset": "COIN", "operation": "BONUS"})
	require.Equal(t, http.StatusCreated, rec.Code)
	rec = h.do(http.MethodPost, "/api/wallet", token, gin.H{"amount": "30.25", "asset": "BRL", "operation": "WITHDRAWAL"})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = h.do(http.MethodGet, "/api/wallet/transactions?page_size=2", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var page TransactionPage
	decode(t, rec, &page)
	assert.Equal(t, int64(3), page.Total)
	assert.Equal(t, 2, page.TotalPages)
	require.Len(t, page.Transactions, 2)
	assert.Equal(t, domain.OpWithdrawal, page.Transactions[0].Operation)
	assert.False(t, page.Cached)

	rec = h.do(http.MethodGet, "/api/wallet/transactions?page_size=2", token, nil)
	decode(t, rec, &page)
	assert.True(t, page.Cached)

	rec = h.do(http.MethodGet, "/api/wallet/transactions?asset=coin", token, nil)
	decode(t, rec, &page)
	assert.Equal(t, int64(1), page.Total)

	assert.Equal(t, http.StatusBadRequest, h.do(http.MethodGet, "/api/wallet/transactions?asset=USD", token, nil).Code)
	assert.Equal(t, http.StatusBadRequest, h.do(http.MethodGet, "/api/wallet/transactions?operation=GIFT", token, nil).Code)

	// A new operation drops every cached history page
	rec = h.do(http.MethodPost, "/api/wallet", token, gin.H{"amount": "1", "asset": "COIN", "operation": "COIN_SPEND"})
	require.Equal(t, http.StatusCreated, rec.Code)
	rec = h.do(http.MethodGet, "/api/wallet/transactions?page_size=2", token, nil)
	decode(t, rec, &page)
	assert.False(t, page.Cached)
	assert.Equal(t, int64(4), page.Total)

	wallet := testutil.WalletOf(t, h.db, company)
	assert.True(t, dec("69.75").Equal(wallet.BalanceCurrency), wallet.BalanceCurrency.String())
	assert.True(t, dec("19").Equal(wallet.BalanceCoin), wallet.BalanceCoin.String())
}

func TestWalletRequiresCompanyRole(t *testing.T) {
	h := newHarness(t)
	consumer := testutil.CreateUser(t, h.db, "buyer@example.com", domain.RoleConsumer)

	assert.Equal(t, http.StatusUnauthorized, h.do(http.MethodGet, "/api/wallet", "", nil).Code)
	assert.Equal(t, http.StatusForbidden, h.do(http.MethodGet, "/api/wallet", h.token(consumer), nil).Code)
	rec := h.do(http.MethodPost, "/api/wallet", h.token(consumer), gin.H{"amount": "1", "asset": "BRL", "operation": "DEPOSIT"})
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestStorefront(t *testing.T) {
	h := newHarness(t)
	owner, company := testutil.CreateCompany(t, h.db, "owner@example.com")
	_, other := testutil.CreateCompany(t, h.db, "other@example.com")
	featured := testutil.CreateProduct(t, h.db, company, "Main", "10.00", 3)
	for i := 0; i < 7; i++ {
		testutil.CreateProduct(t, h.db, company, "Extra "+itoa(uint(i)), "1.00", 1)
	}
	testutil.CreateProduct(t, h.db, other, "Foreign", "1.00", 1)

	rec := h.do(http.MethodGet, "/api/store/products/"+itoa(featured.ID), "", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var view struct {
		Product      domain.Product   `json:"product"`
		CompanyOwner StoreOwner       `json:"company_owner"`
		Upsell       []domain.Product `json:"upsell"`
		Cached       bool             `json:"cached"`
	}
	decode(t, rec, &view)
	assert.Equal(t, "Main", view.Product.Name)
	assert.Equal(t, owner.Email, view.CompanyOwner.Email)
	assert.False(t, view.Cached)
	require.Len(t, view.Upsell, UpsellLimit)
	for _, p := range view.Upsell {
		assert.NotEqual(t, featured.ID, p.ID)
		assert.Equal(t, company.ID, p.CompanyID)
	}

	rec = h.do(http.MethodGet, "/api/store/products/"+itoa(featured.ID), "", nil)
	decode(t, rec, &view)
	assert.True(t, view.Cached)
	assert.Equal(t, http.StatusNotFound, h.do(http.MethodGet, "/api/store/products/9999", "", nil).Code)

	rec = h.do(http.MethodGet, "/api/store/companies/"+itoa(company.ID), "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var page struct {
		Company StoreCompany `json:"company"`
	}
	decode(t, rec, &page)
	assert.Equal(t, owner.Name, page.Company.Owner.Name)
	assert.Equal(t, owner.Phone, page.Company.Owner.Phone)
	assert.Len(t, page.Company.Products, 8)
	assert.NotContains(t, rec.Body.String(), "password")

	rec = h.do(http.MethodGet, "/api/store/companies/me", h.token(owner), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	decode(t, rec, &page)
	assert.Equal(t, company.ID, page.Company.ID)
	assert.Equal(t, http.StatusUnauthorized, h.do(http.MethodGet, "/api/store/companies/me", "", nil).Code)
	assert.Equal(t, http.StatusNotFound, h.do(http.MethodGet, "/api/store/companies/9999", "", nil).Code)
}

func TestStorefrontCacheInvalidatedByProductUpdate(t *testing.T) {
	h := newHarness(t)
	owner, company := testutil.CreateCompany(t, h.db, "owner@example.com")
	product := testutil.CreateProduct(t, h.db, company, "Main", "10.00", 3)
	path := "/api/store/products/" + itoa(product.ID)

	require.Equal(t, http.StatusOK, h.do(http.MethodGet, path, "", nil).Code)
	require.True(t, h.redis.Exists(utils.StoreProductKey(product.ID)))

	rec := h.do(http.MethodPatch, "/api/products/"+itoa(product.ID), h.token(owner), gin.H{"name": "Renamed"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, h.redis.Exists(utils.StoreProductKey(product.ID)))

	rec = h.do(http.MethodGet, path, "", nil)
	assert.Contains(t, rec.Body.String(), "Renamed")
}

func TestStorefrontUpsellStaysCurrent(t *testing.T) {
	h := newHarness(t)
	owner, company := testutil.CreateCompany(t, h.db, "owner@example.com")
	buyer := testutil.CreateUser(t, h.db, "buyer@example.com", domain.RoleConsumer)
	featured := testutil.CreateProduct(t, h.db, company, "Main", "10.00", 3)
	side := testutil.CreateProduct(t, h.db, company, "Side", "2.00", 4)
	gone := testutil.CreateProduct(t, h.db, company, "Gone", "2.00", 4)
	path := "/api/store/products/" + itoa(featured.ID)

	type page struct {
		Upsell []domain.Product `json:"upsell"`
		Cached bool             `json:"cached"`
	}
	var first page
	decode(t, h.do(http.MethodGet, path, "", nil), &first)
	require.Len(t, first.Upsell, 2)

	rec := h.do(http.MethodPost, "/api/orders", h.token(buyer), gin.H{"items": []gin.H{{"product_id": side.ID, "quantity": 3}}})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	require.Equal(t, http.StatusNoContent, h.do(http.MethodDelete, "/api/products/"+itoa(gone.ID), h.token(owner), nil).Code)

	var second page
	decode(t, h.do(http.MethodGet, path, "", nil), &second)
	assert.True(t, second.Cached)
	require.Len(t, second.Upsell, 1)
	assert.Equal(t, side.ID, second.Upsell[0].ID)
	assert.Equal(t, 1, second.Upsell[0].Quantity)
}

func TestAdminListings(t *testing.T) {
	h := newHarness(t)
	admin := testutil.CreateUser(t, h.db, "admin@example.com", domain.RoleAdmin)
	buyer := testutil.CreateUser(t, h.db, "buyer@example.com", domain.RoleConsumer)
	owner, company := testutil.CreateCompany(t, h.db, "owner@example.com")
	product := testutil.CreateProduct(t, h.db, company, "Cake", "5.00", 10)

	rec := h.do(http.MethodPost, "/api/orders", h.token(buyer), gin.H{"items": []gin.H{{"product_id": product.ID, "quantity": 2}}})
	require.Equal(t, http.StatusCreated, rec.Code)
	rec = h.do(http.MethodPost, "/api/wallet", h.token(owner), gin.H{"amount": "7", "asset": "COIN", "operation": "BONUS"})
	require.Equal(t, http.StatusCreated, rec.Code)

	assert.Equal(t, http.StatusForbidden, h.do(http.MethodGet, "/admin/users", h.token(buyer), nil).Code)
	assert.Equal(t, http.StatusUnauthorized, h.do(http.MethodGet, "/admin/users", "", nil).Code)

	token := h.token(admin)
	rec = h.do(http.MethodGet, "/admin/users?role=company", token, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var users AdminPage[UserAdminResponse]
	decode(t, rec, &users)
	assert.Equal(t, int64(1), users.Total)
	require.Len(t, users.Items, 1)
	require.NotNil(t, users.Items[0].Company)
	require.NotNil(t, users.Items[0].Company.Wallet)
	assert.True(t, dec("7").Equal(users.Items[0].Company.Wallet.BalanceCoin))
	assert.False(t, users.Cached)

	rec = h.do(http.MethodGet, "/admin/users?role=company", token, nil)
	decode(t, rec, &users)
	assert.True(t, users.Cached)

	rec = h.do(http.MethodGet, "/admin/transactions?company_id="+itoa(company.ID)+"&asset=coin", token, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var txs AdminPage[domain.Transaction]
	decode(t, rec, &txs)
	assert.Equal(t, int64(1), txs.Total)

	rec = h.do(http.MethodGet, "/admin/orders?status=pending", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var orderPage AdminPage[domain.Order]
	decode(t, rec, &orderPage)
	assert.Equal(t, int64(1), orderPage.Total)
	require.Len(t, orderPage.Items, 1)
	assert.Len(t, orderPage.Items[0].Items, 1)

	wallet := testutil.WalletOf(t, h.db, company)
	rec = h.do(http.MethodGet, "/admin/wallets/"+itoa(wallet.ID)+"/reconcile", token, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), `"balanced":true`)
	assert.Equal(t, http.StatusNotFound, h.do(http.MethodGet, "/admin/wallets/9999/reconcile", token, nil).Code)
}

func TestHealthAndMetrics(t *testing.T) {
	h := newHarness(t)
	rec := h.do(http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"ok"`)

	rec = h.do(http.MethodGet, "/metrics", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "marketplace_")
}

func TestStatusFor(t *testing.T) {
	cases := map[error]int{
		domain.ErrValidation:           http.StatusBadRequest,
		domain.ErrInsufficientFunds:    http.StatusBadRequest,
		domain.ErrInvalidOperation:     http.StatusBadRequest,
		domain.ErrNotFound:             http.StatusNotFound,
		domain.ErrForbidden:            http.StatusForbidden,
		domain.ErrConflict:             http.StatusConflict,
		domain.ErrImmutableTransaction: http.StatusInternalServerError,
	}
	for err, want := range cases {
		assert.Equal(t, want, statusFor(err), err.Error())
	}
}

func itoa(v uint) string {
	return strconv.FormatUint(uint64(v), 10)
}
