package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/atlas-naturals/api/internal/platform/auth"
	"github.com/atlas-naturals/api/internal/platform/httpx"
	"github.com/atlas-naturals/api/internal/services"
)

const maxCartBodySize = 16 * 1024

// CartHandlers exposes the session cart endpoints.
type CartHandlers struct {
	carts services.CartService
}

// NewCartHandlers constructs handlers operating on the X-Cart-Session cart.
func NewCartHandlers(carts services.CartService) *CartHandlers {
	return &CartHandlers{carts: carts}
}

// Routes wires the /cart endpoints onto the provided router.
func (h *CartHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Get("/", h.getCart)
	r.Delete("/", h.clearCart)
	r.Post("/items", h.addItem)
	r.Patch("/items/{lineID}", h.updateItem)
	r.Delete("/items/{lineID}", h.removeItem)
	r.Put("/city", h.selectCity)
}

type cartLinePayload struct {
	ID           string `json:"id"`
	ProductID    string `json:"productId"`
	ProductName  string `json:"productName"`
	CategoryName string `json:"categoryName,omitempty"`
	CategoryKind string `json:"categoryKind,omitempty"`
	SizeCode     string `json:"sizeCode"`
	Quantity     int    `json:"quantity"`
	UnitPrice    int64  `json:"unitPrice"`
	LineTotal    int64  `json:"lineTotal"`
	AddedAt      string `json:"addedAt,omitempty"`
}

type citySelectionPayload struct {
	City       string `json:"city"`
	CustomName string `json:"customName,omitempty"`
}

type shippingQuotePayload struct {
	Cost           int64  `json:"cost"`
	DeliveryWindow string `json:"deliveryWindow"`
	IsFree         bool   `json:"isFree"`
	FreeReason     string `json:"freeReason,omitempty"`
}

type cartSummaryPayload struct {
	SessionID       string                `json:"sessionId"`
	Currency        string                `json:"currency"`
	Lines           []cartLinePayload     `json:"lines"`
	Subtotal        int64                 `json:"subtotal"`
	TotalItems      int                   `json:"totalItems"`
	OilVolumeLiters float64               `json:"oilVolumeLiters"`
	HasOil          bool                  `json:"hasOil"`
	HasHoney        bool                  `json:"hasHoney"`
	AvailableCities []string              `json:"availableCities"`
	City            *citySelectionPayload `json:"city,omitempty"`
	Shipping        *shippingQuotePayload `json:"shipping,omitempty"`
}

type addItemRequest struct {
	ProductID string `json:"productId"`
	SizeCode  string `json:"sizeCode"`
	Quantity  int    `json:"quantity"`
}

type updateItemRequest struct {
	Quantity int `json:"quantity"`
}

type selectCityRequest struct {
	City       string `json:"city"`
	CustomName string `json:"customName"`
}

func (h *CartHandlers) getCart(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sessionID, ok := requireCartSession(ctx, w)
	if !ok {
		return
	}

	summary, err := h.carts.GetCart(ctx, sessionID)
	if err != nil {
		h.writeCartError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, buildCartSummaryPayload(summary))
}

func (h *CartHandlers) addItem(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sessionID, ok := requireCartSession(ctx, w)
	if !ok {
		return
	}

	body, err := readLimitedBody(r, maxCartBodySize)
	if err != nil {
		writeBodyError(w, r, err)
		return
	}
	var req addItemRequest
	if err := json.Unmarshal(body, &req); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "invalid JSON payload", http.StatusBadRequest))
		return
	}

	summary, err := h.carts.AddItem(ctx, services.AddCartItemCommand{
		SessionID: sessionID,
		ProductID: req.ProductID,
		SizeCode:  req.SizeCode,
		Quantity:  req.Quantity,
	})
	if err != nil {
		h.writeCartError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, buildCartSummaryPayload(summary))
}

func (h *CartHandlers) updateItem(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sessionID, ok := requireCartSession(ctx, w)
	if !ok {
		return
	}

	body, err := readLimitedBody(r, maxCartBodySize)
	if err != nil {
		writeBodyError(w, r, err)
		return
	}
	var req updateItemRequest
	if err := json.Unmarshal(body, &req); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "invalid JSON payload", http.StatusBadRequest))
		return
	}

	summary, err := h.carts.UpdateItemQuantity(ctx, services.UpdateCartItemCommand{
		SessionID: sessionID,
		LineID:    chi.URLParam(r, "lineID"),
		Quantity:  req.Quantity,
	})
	if err != nil {
		h.writeCartError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, buildCartSummaryPayload(summary))
}

func (h *CartHandlers) removeItem(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sessionID, ok := requireCartSession(ctx, w)
	if !ok {
		return
	}

	summary, err := h.carts.RemoveItem(ctx, services.RemoveCartItemCommand{
		SessionID: sessionID,
		LineID:    chi.URLParam(r, "lineID"),
	})
	if err != nil {
		h.writeCartError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, buildCartSummaryPayload(summary))
}

func (h *CartHandlers) selectCity(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sessionID, ok := requireCartSession(ctx, w)
	if !ok {
		return
	}

	body, err := readLimitedBody(r, maxCartBodySize)
	if err != nil {
		writeBodyError(w, r, err)
		return
	}
	var req selectCityRequest
	if err := json.Unmarshal(body, &req); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "invalid JSON payload", http.StatusBadRequest))
		return
	}

	summary, err := h.carts.SelectCity(ctx, services.SelectCityCommand{
		SessionID:  sessionID,
		City:       services.DeliveryCity(req.City),
		CustomName: req.CustomName,
	})
	if err != nil {
		h.writeCartError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, buildCartSummaryPayload(summary))
}

func (h *CartHandlers) clearCart(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sessionID, ok := requireCartSession(ctx, w)
	if !ok {
		return
	}

	if err := h.carts.ClearCart(ctx, sessionID); err != nil {
		h.writeCartError(ctx, w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *CartHandlers) writeCartError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, services.ErrCartInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrCartProductUnavailable):
		httpx.WriteError(ctx, w, httpx.NewError("product_unavailable", "product is not available", http.StatusConflict))
	case errors.Is(err, services.ErrCartNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("cart_not_found", "cart entry not found", http.StatusNotFound))
	case errors.Is(err, services.ErrCartUnavailable):
		httpx.WriteError(ctx, w, httpx.NewError("cart_unavailable", "cart service is unavailable", http.StatusServiceUnavailable))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("cart_error", "cart request failed", http.StatusInternalServerError))
	}
}

func requireCartSession(ctx context.Context, w http.ResponseWriter) (string, bool) {
	sessionID, ok := auth.SessionIDFromContext(ctx)
	if !ok || strings.TrimSpace(sessionID) == "" {
		httpx.WriteError(ctx, w, httpx.NewError("session_required", "X-Cart-Session header is required", http.StatusBadRequest))
		return "", false
	}
	return sessionID, true
}

func buildCartSummaryPayload(summary services.CartSummary) cartSummaryPayload {
	payload := cartSummaryPayload{
		SessionID:       summary.Cart.SessionID,
		Currency:        summary.Cart.Currency,
		Lines:           make([]cartLinePayload, 0, len(summary.Cart.Lines)),
		Subtotal:        summary.Subtotal,
		TotalItems:      summary.TotalItems,
		OilVolumeLiters: summary.OilVolumeLiters,
		HasOil:          summary.HasOil,
		HasHoney:        summary.HasHoney,
		AvailableCities: make([]string, 0, len(summary.AvailableCities)),
	}
	for _, line := range summary.Cart.Lines {
		entry := cartLinePayload{
			ID:           line.ID,
			ProductID:    line.ProductID,
			ProductName:  line.ProductName,
			CategoryName: line.CategoryName,
			CategoryKind: string(line.CategoryKind),
			SizeCode:     line.SizeCode,
			Quantity:     line.Quantity,
			UnitPrice:    line.UnitPrice,
			LineTotal:    line.UnitPrice * int64(line.Quantity),
		}
		if !line.AddedAt.IsZero() {
			entry.AddedAt = line.AddedAt.UTC().Format(time.RFC3339)
		}
		payload.Lines = append(payload.Lines, entry)
	}
	for _, city := range summary.AvailableCities {
		payload.AvailableCities = append(payload.AvailableCities, string(city))
	}
	if summary.Cart.City != nil {
		payload.City = &citySelectionPayload{
			City:       string(summary.Cart.City.City),
			CustomName: summary.Cart.City.CustomName,
		}
	}
	if summary.Quote != nil {
		payload.Shipping = &shippingQuotePayload{
			Cost:           summary.Quote.Cost,
			DeliveryWindow: summary.Quote.DeliveryWindow,
			IsFree:         summary.Quote.IsFree,
			FreeReason:     string(summary.Quote.FreeReason),
		}
	}
	return payload
}
