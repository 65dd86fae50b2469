package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"runtime"
	"time"

	"boxshop-api/internal/model"
	"boxshop-api/internal/service"
	"boxshop-api/pkg/apierror"
	"boxshop-api/pkg/response"
)

// AdminHandler handles admin-related HTTP requests.
type AdminHandler struct {
	shop      *service.ShopService
	dbType    string // Database type: sqlite, postgres, mysql, mongodb
	startTime time.Time
}

// NewAdminHandler creates a new admin handler.
func NewAdminHandler(shop *service.ShopService, dbType string) *AdminHandler {
	return &AdminHandler{
		shop:      shop,
		dbType:    dbType,
		startTime: time.Now(),
	}
}

// RestockRequest is the body of POST /api/v1/admin/restock.
type RestockRequest struct {
	Category string `json:"category"`
	Amount   int    `json:"amount"`
}

// Restock handles POST /api/v1/admin/restock
func (h *AdminHandler) Restock(w http.ResponseWriter, r *http.Request) {
	var req RestockRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, apierror.BadRequest("invalid JSON"))
		return
	}
	defer r.Body.Close()

	category := model.ParseCategory(req.Category)
	qty, err := h.shop.Restock(r.Context(), category, req.Amount)
	if err != nil {
		response.Error(w, err)
		return
	}
	response.OK(w, map[string]interface{}{
		"category": category,
		"added":    req.Amount,
		"quantity": qty,
	})
}

// GateRequest is the body of PUT /api/v1/admin/gate.
type GateRequest struct {
	Open *bool `json:"open"`
}

// SetGate handles PUT /api/v1/admin/gate
func (h *AdminHandler) SetGate(w http.ResponseWriter, r *http.Request) {
	var req GateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, apierror.BadRequest("invalid JSON"))
		return
	}
	defer r.Body.Close()

	if req.Open == nil {
		response.Error(w, apierror.ValidationError("invalid gate request",
			apierror.FieldError{Field: "open", Message: "is required"}))
		return
	}
	if err := h.shop.SetOpen(r.Context(), *req.Open); err != nil {
		response.Error(w, err)
		return
	}
	response.OK(w, map[string]bool{"open": *req.Open})
}

// ResetCooldownsRequest is the optional body of POST /api/v1/admin/cooldowns/reset.
type ResetCooldownsRequest struct {
	Actor string `json:"actor"`
}

// ResetCooldowns handles POST /api/v1/admin/cooldowns/reset
// An empty or missing actor resets everyone.
func (h *AdminHandler) ResetCooldowns(w http.ResponseWriter, r *http.Request) {
	var req ResetCooldownsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		response.Error(w, apierror.BadRequest("invalid JSON"))
		return
	}
	defer r.Body.Close()

	removed, err := h.shop.ResetCooldowns(r.Context(), req.Actor)
	if err != nil {
		response.Error(w, err)
		return
	}

	scope := req.Actor
	if scope == "" {
		scope = "all"
	}
	response.OK(w, map[string]interface{}{
		"scope":          scope,
		"events_removed": removed,
	})
}

// ClearOrders handles POST /api/v1/admin/orders/clear
func (h *AdminHandler) ClearOrders(w http.ResponseWriter, r *http.Request) {
	cleared, err := h.shop.ClearOrders(r.Context())
	if err != nil {
		response.Error(w, apierror.ServiceUnavailable("failed to clear order log: "+err.Error()))
		return
	}
	response.OK(w, map[string]int{"cleared": cleared})
}

// RefreshDisplay handles POST /api/v1/admin/display/refresh
func (h *AdminHandler) RefreshDisplay(w http.ResponseWriter, r *http.Request) {
	if err := h.shop.RefreshDisplay(); err != nil {
		response.Error(w, apierror.ServiceUnavailable(err.Error()))
		return
	}
	response.OK(w, map[string]string{"status": "refreshed"})
}

// GetStats handles GET /api/v1/admin/stats
func (h *AdminHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	stats := make(map[string]interface{})

	// System info
	stats["uptime_seconds"] = int64(time.Since(h.startTime).Seconds())
	stats["uptime_human"] = time.Since(h.startTime).Round(time.Second).String()
	stats["server_time"] = time.Now().Format(time.RFC3339)
	stats["db_type"] = h.dbType

	// Memory stats
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)
	stats["memory"] = map[string]interface{}{
		"alloc_mb":      float64(memStats.Alloc) / 1024 / 1024,
		"sys_mb":        float64(memStats.Sys) / 1024 / 1024,
		"heap_inuse_mb": float64(memStats.HeapInuse) / 1024 / 1024,
		"num_gc":        memStats.NumGC,
		"goroutines":    runtime.NumGoroutine(),
	}

	// Ledger stats
	ledger, err := h.shop.Stats(ctx)
	if err == nil {
		stats["ledger"] = ledger
	} else {
		stats["ledger"] = map[string]interface{}{
			"status": "error",
			"error":  err.Error(),
		}
	}

	open, err := h.shop.IsOpen(ctx)
	if err == nil {
		stats["shop_open"] = open
	}

	policy := h.shop.Limiter().Policy()
	stats["quota"] = map[string]interface{}{
		"ceiling":        policy.Ceiling,
		"window_seconds": int64(policy.Window.Seconds()),
		"categories":     h.shop.Categories().Strings(),
	}

	// Runtime info
	stats["runtime"] = map[string]interface{}{
		"go_version": runtime.Version(),
		"os":         runtime.GOOS,
		"arch":       runtime.GOARCH,
		"cpus":       runtime.NumCPU(),
	}

	response.OK(w, stats)
}
