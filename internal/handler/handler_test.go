package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"boxshop-api/internal/clock"
	"boxshop-api/internal/model"
	"boxshop-api/internal/repository"
	"boxshop-api/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   struct {
		Code              string `json:"code"`
		Message           string `json:"message"`
		Remaining         *int   `json:"remaining"`
		RetryAfterSeconds int    `json:"retry_after_seconds"`
	} `json:"error"`
}

type testEnv struct {
	shop   *service.ShopService
	clock  *clock.Manual
	mux    *chi.Mux
	ledger *repository.SQLiteLedgerRepository
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	repo, err := repository.NewSQLiteLedgerRepository(filepath.Join(t.TempDir(), "stock.db"))
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })

	clk := clock.NewManual(time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC))
	shop := service.NewShopService(repo, clk, service.ShopConfig{
		Categories:    model.NewCategorySet([]string{"1mil", "10mil", "25mil"}),
		Policy:        model.QuotaPolicy{Ceiling: 5, Window: 24 * time.Hour},
		MaxPerRequest: 5,
	})
	t.Cleanup(shop.Close)
	require.NoError(t, shop.Init(context.Background()))

	shopH := NewShopHandler(shop)
	adminH := NewAdminHandler(shop, "sqlite")

	mux := chi.NewRouter()
	mux.Post("/purchases", shopH.Purchase)
	mux.Get("/stock", shopH.GetStock)
	mux.Get("/stock/{category}", shopH.GetCategoryStock)
	mux.Get("/actors/{actor}/quota", shopH.GetQuota)
	mux.Get("/gate", shopH.GetGate)
	mux.Post("/admin/restock", adminH.Restock)
	mux.Put("/admin/gate", adminH.SetGate)
	mux.Post("/admin/cooldowns/reset", adminH.ResetCooldowns)
	mux.Post("/admin/orders/clear", adminH.ClearOrders)
	mux.Post("/admin/display/refresh", adminH.RefreshDisplay)
	mux.Get("/admin/stats", adminH.GetStats)

	return &testEnv{shop: shop, clock: clk, mux: mux, ledger: repo}
}

func (e *testEnv) do(t *testing.T, method, path string, body interface{}) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	e.mux.ServeHTTP(rec, req)

	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	return rec, env
}

func (e *testEnv) openWithStock(t *testing.T, category string, amount int) {
	t.Helper()
	rec, _ := e.do(t, http.MethodPut, "/admin/gate", map[string]bool{"open": true})
	require.Equal(t, http.StatusOK, rec.Code)
	rec, _ = e.do(t, http.MethodPost, "/admin/restock", RestockRequest{Category: category, Amount: amount})
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestPurchaseHandler(t *testing.T) {
	env := newTestEnv(t)
	env.openWithStock(t, "10mil", 4)

	t.Run("accepted", func(t *testing.T) {
		rec, body := env.do(t, http.MethodPost, "/purchases", PurchaseRequest{Actor: "alice", Category: "10MIL", Quantity: 3})
		require.Equal(t, http.StatusCreated, rec.Code)

		var resp PurchaseResponse
		require.NoError(t, json.Unmarshal(body.Data, &resp))
		assert.Equal(t, 2, resp.Remaining)
		assert.Equal(t, model.Category("10mil"), resp.Order.Category)
		assert.Equal(t, "📦 alice bought 3x 10mil box.", resp.Message)
	})

	t.Run("quota exceeded", func(t *testing.T) {
		env.clock.Advance(time.Hour)
		rec, body := env.do(t, http.MethodPost, "/purchases", PurchaseRequest{Actor: "alice", Category: "10mil", Quantity: 3})
		assert.Equal(t, http.StatusTooManyRequests, rec.Code)
		assert.Equal(t, "QUOTA_EXCEEDED", body.Error.Code)
		require.NotNil(t, body.Error.Remaining)
		assert.Equal(t, 2, *body.Error.Remaining)
		assert.Equal(t, "82800", rec.Header().Get("Retry-After"))
	})

	t.Run("out of stock", func(t *testing.T) {
		rec, body := env.do(t, http.MethodPost, "/purchases", PurchaseRequest{Actor: "bob", Category: "10mil", Quantity: 2})
		assert.Equal(t, http.StatusConflict, rec.Code)
		assert.Equal(t, "OUT_OF_STOCK", body.Error.Code)
	})

	t.Run("invalid quantity", func(t *testing.T) {
		rec, body := env.do(t, http.MethodPost, "/purchases", PurchaseRequest{Actor: "bob", Category: "10mil", Quantity: 6})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "BAD_REQUEST", body.Error.Code)
	})

	t.Run("missing fields", func(t *testing.T) {
		rec, body := env.do(t, http.MethodPost, "/purchases", PurchaseRequest{Quantity: 1})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "VALIDATION_ERROR", body.Error.Code)
	})

	t.Run("shop closed", func(t *testing.T) {
		rec, _ := env.do(t, http.MethodPut, "/admin/gate", map[string]bool{"open": false})
		require.Equal(t, http.StatusOK, rec.Code)

		rec, body := env.do(t, http.MethodPost, "/purchases", PurchaseRequest{Actor: "bob", Category: "10mil", Quantity: 1})
		assert.Equal(t, http.StatusForbidden, rec.Code)
		assert.Equal(t, "SHOP_CLOSED", body.Error.Code)
	})
}

func TestStockHandlers(t *testing.T) {
	env := newTestEnv(t)
	env.openWithStock(t, "25mil", 7)

	rec, body := env.do(t, http.MethodGet, "/stock", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var all struct {
		Stock   []model.StockRecord `json:"stock"`
		Summary string              `json:"summary"`
	}
	require.NoError(t, json.Unmarshal(body.Data, &all))
	assert.Len(t, all.Stock, 3)
	assert.Contains(t, all.Summary, "25mil: 7")

	rec, body = env.do(t, http.MethodGet, "/stock/25mil", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var one model.StockRecord
	require.NoError(t, json.Unmarshal(body.Data, &one))
	assert.Equal(t, 7, one.Quantity)

	rec, _ = env.do(t, http.MethodGet, "/stock/2mil", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, body = env.do(t, http.MethodGet, "/gate", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"open":true}`, string(body.Data))
}

func TestQuotaAndResetHandlers(t *testing.T) {
	env := newTestEnv(t)
	env.openWithStock(t, "1mil", 20)

	rec, _ := env.do(t, http.MethodPost, "/purchases", PurchaseRequest{Actor: "alice", Category: "1mil", Quantity: 5})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec, body := env.do(t, http.MethodGet, "/actors/alice/quota", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var snap model.QuotaSnapshot
	require.NoError(t, json.Unmarshal(body.Data, &snap))
	assert.Equal(t, 5, snap.Consumed("1mil"))

	rec, body = env.do(t, http.MethodPost, "/admin/cooldowns/reset", ResetCooldownsRequest{Actor: "alice"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"scope":"alice","events_removed":1}`, string(body.Data))

	rec, _ = env.do(t, http.MethodPost, "/purchases", PurchaseRequest{Actor: "alice", Category: "1mil", Quantity: 5})
	assert.Equal(t, http.StatusCreated, rec.Code)

	// No body resets everyone.
	rec, body = env.do(t, http.MethodPost, "/admin/cooldowns/reset", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"scope":"all","events_removed":1}`, string(body.Data))
}

func TestAdminHandlers(t *testing.T) {
	env := newTestEnv(t)

	rec, body := env.do(t, http.MethodPost, "/admin/restock", RestockRequest{Category: "1mil", Amount: -1})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "BAD_REQUEST", body.Error.Code)

	rec, body = env.do(t, http.MethodPut, "/admin/gate", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "VALIDATION_ERROR", body.Error.Code)

	rec, body = env.do(t, http.MethodPost, "/admin/orders/clear", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"cleared":0}`, string(body.Data))

	rec, _ = env.do(t, http.MethodPost, "/admin/display/refresh", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, body = env.do(t, http.MethodGet, "/admin/stats", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var stats map[string]interface{}
	require.NoError(t, json.Unmarshal(body.Data, &stats))
	assert.Equal(t, "sqlite", stats["db_type"])
	assert.Contains(t, stats, "ledger")
	assert.Equal(t, false, stats["shop_open"])
}

func TestStorageUnavailable(t *testing.T) {
	env := newTestEnv(t)
	require.NoError(t, env.ledger.Close())

	rec, body := env.do(t, http.MethodGet, "/stock", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "SERVICE_UNAVAILABLE", body.Error.Code)
}

func TestHealthHandlers(t *testing.T) {
	failing := ReadinessCheck{Name: "ledger", Check: func(context.Context) error { return assert.AnError }}

	h := New("boxshop-api", "1.2.3")
	rec := httptest.NewRecorder()
	h.Health(rec, httptest.NewRequest(http.MethodGet, "/api/v1/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"version":"1.2.3"`)

	rec = httptest.NewRecorder()
	h.Ready(rec, httptest.NewRequest(http.MethodGet, "/api/v1/ready", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	h = New("boxshop-api", "1.2.3", failing)
	rec = httptest.NewRecorder()
	h.Ready(rec, httptest.NewRequest(http.MethodGet, "/api/v1/ready", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"error"`)

	rec = httptest.NewRecorder()
	h.Status(rec, httptest.NewRequest(http.MethodGet, "/api/status", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"degraded"`)
}
