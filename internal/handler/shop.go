package handler

import (
	"encoding/json"
	"net/http"
	"strings"

	"boxshop-api/internal/display"
	"boxshop-api/internal/model"
	"boxshop-api/internal/notify"
	"boxshop-api/internal/service"
	"boxshop-api/pkg/apierror"
	"boxshop-api/pkg/response"

	"github.com/go-chi/chi/v5"
)

// ShopHandler handles the customer-facing shop commands.
type ShopHandler struct {
	shop *service.ShopService
}

// NewShopHandler creates a new shop handler.
func NewShopHandler(shop *service.ShopService) *ShopHandler {
	return &ShopHandler{shop: shop}
}

// PurchaseRequest is the body of POST /api/v1/purchases.
type PurchaseRequest struct {
	Actor    string `json:"actor"`
	Category string `json:"category"`
	Quantity int    `json:"quantity"`
}

// PurchaseResponse is returned for an accepted purchase.
type PurchaseResponse struct {
	Order     *model.PurchaseEvent `json:"order"`
	Remaining int                  `json:"remaining"`
	Message   string               `json:"message"`
}

// Purchase handles POST /api/v1/purchases
func (h *ShopHandler) Purchase(w http.ResponseWriter, r *http.Request) {
	var req PurchaseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, apierror.BadRequest("invalid JSON"))
		return
	}
	defer r.Body.Close()

	var fields []apierror.FieldError
	if strings.TrimSpace(req.Actor) == "" {
		fields = append(fields, apierror.FieldError{Field: "actor", Message: "is required"})
	}
	if strings.TrimSpace(req.Category) == "" {
		fields = append(fields, apierror.FieldError{Field: "category", Message: "is required"})
	}
	if len(fields) > 0 {
		response.Error(w, apierror.ValidationError("invalid purchase request", fields...))
		return
	}

	outcome, err := h.shop.Purchase(r.Context(), strings.TrimSpace(req.Actor), model.ParseCategory(req.Category), req.Quantity)
	if err != nil {
		response.Error(w, err)
		return
	}
	if !outcome.Accepted {
		response.Error(w, apierror.FromOutcome(outcome))
		return
	}

	response.Created(w, PurchaseResponse{
		Order:     outcome.Event,
		Remaining: outcome.Remaining,
		Message:   notify.FormatOrder(*outcome.Event),
	})
}

// GetStock handles GET /api/v1/stock
func (h *ShopHandler) GetStock(w http.ResponseWriter, r *http.Request) {
	stock, err := h.shop.GetAllStock(r.Context())
	if err != nil {
		response.Error(w, err)
		return
	}
	response.OK(w, map[string]interface{}{
		"stock":   stock,
		"summary": display.RenderStock(stock),
	})
}

// GetCategoryStock handles GET /api/v1/stock/{category}
func (h *ShopHandler) GetCategoryStock(w http.ResponseWriter, r *http.Request) {
	category := model.ParseCategory(chi.URLParam(r, "category"))
	qty, err := h.shop.GetQuantity(r.Context(), category)
	if err != nil {
		response.Error(w, err)
		return
	}
	response.OK(w, model.StockRecord{Category: category, Quantity: qty})
}

// GetQuota handles GET /api/v1/actors/{actor}/quota
func (h *ShopHandler) GetQuota(w http.ResponseWriter, r *http.Request) {
	snap, err := h.shop.GetQuotaSnapshot(r.Context(), chi.URLParam(r, "actor"))
	if err != nil {
		response.Error(w, err)
		return
	}
	response.OK(w, snap)
}

// GetGate handles GET /api/v1/gate
func (h *ShopHandler) GetGate(w http.ResponseWriter, r *http.Request) {
	open, err := h.shop.IsOpen(r.Context())
	if err != nil {
		response.Error(w, err)
		return
	}
	response.OK(w, map[string]bool{"open": open})
}
