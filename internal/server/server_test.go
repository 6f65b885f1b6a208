package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/velocex/velocex/internal/bookkeeper"
	"github.com/velocex/velocex/internal/bus"
	"github.com/velocex/velocex/internal/depth"
	"github.com/velocex/velocex/internal/notify"
	"github.com/velocex/velocex/internal/orders"
	"github.com/velocex/velocex/internal/trades"
	"github.com/velocex/velocex/pkg/models"
)

type serverFixture struct {
	router  *gin.Engine
	userID  uuid.UUID
	assetID uuid.UUID
	cache   *depth.Cache
}

func newServerFixture(t *testing.T) *serverFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(
		&models.User{}, &models.Account{}, &models.Holding{},
		&models.Cryptocurrency{}, &models.Order{}, &models.Trade{},
	))

	logger := zap.NewNop()
	bk, err := bookkeeper.NewService(logger, db, "USD")
	require.NoError(t, err)
	memBus := bus.NewMemoryBus(logger, 16)
	t.Cleanup(func() { memBus.Close() })
	ordersSvc, err := orders.NewService(logger, db, bk, memBus)
	require.NoError(t, err)
	ledger := trades.NewLedger(logger, db)
	cache := depth.NewCache(logger)
	hub := notify.NewHub(logger)

	userID := uuid.New()
	require.NoError(t, db.Create(&models.User{ID: userID, Email: "api@example.com"}).Error)
	_, err = bk.CreateAccount(t.Context(), userID)
	require.NoError(t, err)
	_, err = bk.Deposit(t.Context(), userID, decimal.NewFromInt(1000))
	require.NoError(t, err)

	assetID := uuid.New()
	require.NoError(t, db.Create(&models.Cryptocurrency{
		ID: assetID, Symbol: "BTC", Name: "Bitcoin",
	}).Error)

	srv := NewServer(logger, bk, ordersSvc, ledger, cache, hub)
	return &serverFixture{router: srv.Router(), userID: userID, assetID: assetID, cache: cache}
}

func (f *serverFixture) do(t *testing.T, method, path string, body any, asUser bool) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if asUser {
		req.Header.Set("X-User-ID", f.userID.String())
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func TestRequiresUserHeader(t *testing.T) {
	f := newServerFixture(t)

	rec := f.do(t, http.MethodGet, "/api/v1/accounts", nil, false)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestDepositAndAccount(t *testing.T) {
	f := newServerFixture(t)

	rec := f.do(t, http.MethodPost, "/api/v1/deposits", gin.H{"amount": "250.50"}, true)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(t, http.MethodGet, "/api/v1/accounts", nil, true)
	require.Equal(t, http.StatusOK, rec.Code)

	var account models.Account
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &account))
	assert.Equal(t, "1250.5", account.Balance.String())
}

func TestDepositRejectsNonPositiveAmount(t *testing.T) {
	f := newServerFixture(t)

	for _, amount := range []string{"-5", "0", "abc"} {
		rec := f.do(t, http.MethodPost, "/api/v1/deposits", gin.H{"amount": amount}, true)
		assert.Equal(t, http.StatusBadRequest, rec.Code, "amount %q", amount)
	}
}

func TestPlaceAndFetchOrder(t *testing.T) {
	f := newServerFixture(t)

	rec := f.do(t, http.MethodPost, "/api/v1/orders", gin.H{
		"cryptocurrency_id": f.assetID.String(),
		"side":              "buy",
		"type":              "market",
		"notional_value":    "100",
	}, true)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var order models.Order
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &order))
	assert.Equal(t, models.OrderStatusOpen, order.Status)

	rec = f.do(t, http.MethodGet, "/api/v1/orders/"+order.ID.String(), nil, true)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(t, http.MethodGet, "/api/v1/orders", nil, true)
	require.Equal(t, http.StatusOK, rec.Code)
	var listing struct {
		Orders []models.Order `json:"orders"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &listing))
	assert.Len(t, listing.Orders, 1)
}

func TestPlaceOrderRejectsOversizedBuy(t *testing.T) {
	f := newServerFixture(t)

	rec := f.do(t, http.MethodPost, "/api/v1/orders", gin.H{
		"cryptocurrency_id": f.assetID.String(),
		"side":              "buy",
		"type":              "market",
		"notional_value":    "999999",
	}, true)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestPlaceOrderValidatesPayload(t *testing.T) {
	f := newServerFixture(t)

	rec := f.do(t, http.MethodPost, "/api/v1/orders", gin.H{
		"cryptocurrency_id": "not-a-uuid",
		"side":              "buy",
		"type":              "market",
	}, true)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, http.MethodPost, "/api/v1/orders", gin.H{
		"cryptocurrency_id": f.assetID.String(),
		"side":              "hold",
		"type":              "market",
	}, true)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetOrderHidesOtherUsersOrders(t *testing.T) {
	f := newServerFixture(t)

	rec := f.do(t, http.MethodPost, "/api/v1/orders", gin.H{
		"cryptocurrency_id": f.assetID.String(),
		"side":              "buy",
		"type":              "market",
		"notional_value":    "10",
	}, true)
	require.Equal(t, http.StatusCreated, rec.Code)
	var order models.Order
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &order))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/orders/"+order.ID.String(), nil)
	req.Header.Set("X-User-ID", uuid.NewString())
	stranger := httptest.NewRecorder()
	f.router.ServeHTTP(stranger, req)
	assert.Equal(t, http.StatusNotFound, stranger.Code)
}

func TestGetDepth(t *testing.T) {
	f := newServerFixture(t)

	rec := f.do(t, http.MethodGet, "/api/v1/depth/BTCUSDT", nil, true)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	f.cache.Update("BTCUSDT",
		[]models.PriceLevel{{Price: decimal.NewFromInt(100), Quantity: decimal.NewFromInt(1)}},
		[]models.PriceLevel{{Price: decimal.NewFromInt(101), Quantity: decimal.NewFromInt(2)}},
	)

	rec = f.do(t, http.MethodGet, "/api/v1/depth/BTCUSDT", nil, true)
	require.Equal(t, http.StatusOK, rec.Code)
	var snapshot models.DepthSnapshot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snapshot))
	assert.Equal(t, "BTCUSDT", snapshot.Symbol)
	require.Len(t, snapshot.Asks, 1)
}

func TestHealthAndMetrics(t *testing.T) {
	f := newServerFixture(t)

	rec := f.do(t, http.MethodGet, "/health", nil, false)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(t, http.MethodGet, "/metrics", nil, false)
	assert.Equal(t, http.StatusOK, rec.Code)
}
