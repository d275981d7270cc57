package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/atlas-naturals/api/internal/platform/httpx"
	"github.com/atlas-naturals/api/internal/services"
)

// OrderHandlers exposes the public order lookup and tracking endpoints.
// Customers look orders up by the human-readable order number issued at
// checkout.
type OrderHandlers struct {
	orders   services.OrderService
	tracking services.TrackingService
}

// NewOrderHandlers constructs the public order handlers.
func NewOrderHandlers(orders services.OrderService, tracking services.TrackingService) *OrderHandlers {
	return &OrderHandlers{orders: orders, tracking: tracking}
}

// Routes wires the /orders endpoints onto the provided router.
func (h *OrderHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Get("/{orderNumber}", h.getOrder)
	r.Post("/{orderNumber}/cancel", h.cancelOrder)
	r.Get("/{orderNumber}/tracking", h.getTracking)
}

const maxOrderCancelBodySize = 8 * 1024

type orderCustomerPayload struct {
	Name  string `json:"name"`
	Email string `json:"email,omitempty"`
	Phone string `json:"phone"`
}

type orderLineItemPayload struct {
	ProductID    string `json:"productId"`
	ProductName  string `json:"productName"`
	CategoryName string `json:"categoryName,omitempty"`
	CategoryKind string `json:"categoryKind,omitempty"`
	SizeCode     string `json:"sizeCode"`
	Quantity     int    `json:"quantity"`
	UnitPrice    int64  `json:"unitPrice"`
	Total        int64  `json:"total"`
}

type orderTotalsPayload struct {
	Subtotal int64 `json:"subtotal"`
	Shipping int64 `json:"shipping"`
	Total    int64 `json:"total"`
}

type orderPayload struct {
	ID                    string                 `json:"id"`
	OrderNumber           string                 `json:"orderNumber"`
	TrackingCode          string                 `json:"trackingCode,omitempty"`
	Status                string                 `json:"status"`
	Customer              orderCustomerPayload   `json:"customer"`
	ShippingAddress       string                 `json:"shippingAddress"`
	City                  string                 `json:"city"`
	CityName              string                 `json:"cityName,omitempty"`
	Notes                 string                 `json:"notes,omitempty"`
	Items                 []orderLineItemPayload `json:"items"`
	Totals                orderTotalsPayload     `json:"totals"`
	Shipping              shippingQuotePayload   `json:"shipping"`
	OrderDate             string                 `json:"orderDate"`
	EstimatedDeliveryDate string                 `json:"estimatedDeliveryDate"`
	CancelReason          string                 `json:"cancelReason,omitempty"`
	CancelledAt           string                 `json:"cancelledAt,omitempty"`
}

type trackingEventPayload struct {
	ID         string `json:"id"`
	Status     string `json:"status"`
	Location   string `json:"location,omitempty"`
	Carrier    string `json:"carrier,omitempty"`
	Notes      string `json:"notes,omitempty"`
	StatusDate string `json:"statusDate"`
}

func (h *OrderHandlers) getOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		httpx.WriteError(ctx, w, httpx.NewError("order_unavailable", "order service is unavailable", http.StatusServiceUnavailable))
		return
	}

	order, err := h.orders.GetOrderByNumber(ctx, chi.URLParam(r, "orderNumber"))
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, buildOrderPayload(order))
}

// cancelOrder lets customers withdraw an order while it has not entered
// fulfillment yet. Orders past processing report invalid_order_state.
func (h *OrderHandlers) cancelOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		httpx.WriteError(ctx, w, httpx.NewError("order_unavailable", "order service is unavailable", http.StatusServiceUnavailable))
		return
	}

	var req cancelOrderRequest
	if r.Body != nil && r.ContentLength != 0 {
		body, err := readLimitedBody(r, maxOrderCancelBodySize)
		if err != nil {
			writeBodyError(w, r, err)
			return
		}
		if err := json.Unmarshal(body, &req); err != nil {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "request body must be valid JSON", http.StatusBadRequest))
			return
		}
	}

	order, err := h.orders.GetOrderByNumber(ctx, chi.URLParam(r, "orderNumber"))
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}

	cancelled, err := h.orders.Cancel(ctx, services.CancelOrderCommand{
		OrderID: order.ID,
		Reason:  req.Reason,
	})
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, buildOrderPayload(cancelled))
}

func (h *OrderHandlers) getTracking(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil || h.tracking == nil {
		httpx.WriteError(ctx, w, httpx.NewError("order_unavailable", "order service is unavailable", http.StatusServiceUnavailable))
		return
	}

	order, err := h.orders.GetOrderByNumber(ctx, chi.URLParam(r, "orderNumber"))
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}

	history, err := h.tracking.ListByOrder(ctx, order.ID)
	if err != nil {
		writeTrackingError(ctx, w, err)
		return
	}

	events := make([]trackingEventPayload, 0, len(history))
	for _, event := range history {
		events = append(events, buildTrackingEventPayload(event))
	}
	writeJSONResponse(w, http.StatusOK, map[string]any{
		"orderNumber":  order.OrderNumber,
		"status":       string(order.Status),
		"trackingCode": order.TrackingCode,
		"events":       events,
	})
}

func writeOrderError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, services.ErrOrderInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrOrderNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("order_not_found", "order not found", http.StatusNotFound))
	case errors.Is(err, services.ErrOrderInvalidState):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_order_state", err.Error(), http.StatusConflict))
	case errors.Is(err, services.ErrOrderUnavailable):
		httpx.WriteError(ctx, w, httpx.NewError("order_unavailable", "order service is unavailable", http.StatusServiceUnavailable))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("order_error", "order request failed", http.StatusInternalServerError))
	}
}

func writeTrackingError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, services.ErrTrackingInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrTrackingOrderNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("order_not_found", "order not found", http.StatusNotFound))
	case errors.Is(err, services.ErrTrackingUnavailable):
		httpx.WriteError(ctx, w, httpx.NewError("tracking_unavailable", "tracking service is unavailable", http.StatusServiceUnavailable))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("tracking_error", "tracking request failed", http.StatusInternalServerError))
	}
}

func buildOrderPayload(order services.Order) orderPayload {
	payload := orderPayload{
		ID:           order.ID,
		OrderNumber:  order.OrderNumber,
		TrackingCode: order.TrackingCode,
		Status:       string(order.Status),
		Customer: orderCustomerPayload{
			Name:  order.Customer.Name,
			Email: order.Customer.Email,
			Phone: order.Customer.Phone,
		},
		ShippingAddress: order.ShippingAddress,
		City:            string(order.City),
		CityName:        order.CityName,
		Notes:           order.Notes,
		Items:           make([]orderLineItemPayload, 0, len(order.Items)),
		Totals: orderTotalsPayload{
			Subtotal: order.Totals.Subtotal,
			Shipping: order.Totals.Shipping,
			Total:    order.Totals.Total,
		},
		Shipping: shippingQuotePayload{
			Cost:           order.Shipping.Cost,
			DeliveryWindow: order.Shipping.DeliveryWindow,
			IsFree:         order.Shipping.IsFree,
			FreeReason:     string(order.Shipping.FreeReason),
		},
		CancelReason: order.CancelReason,
	}
	for _, item := range order.Items {
		payload.Items = append(payload.Items, orderLineItemPayload{
			ProductID:    item.ProductID,
			ProductName:  item.ProductName,
			CategoryName: item.CategoryName,
			CategoryKind: string(item.CategoryKind),
			SizeCode:     item.SizeCode,
			Quantity:     item.Quantity,
			UnitPrice:    item.UnitPrice,
			Total:        item.Total,
		})
	}
	if !order.OrderDate.IsZero() {
		payload.OrderDate = order.OrderDate.UTC().Format(time.RFC3339)
	}
	if !order.EstimatedDeliveryDate.IsZero() {
		payload.EstimatedDeliveryDate = order.EstimatedDeliveryDate.UTC().Format(time.RFC3339)
	}
	if order.CancelledAt != nil {
		payload.CancelledAt = order.CancelledAt.UTC().Format(time.RFC3339)
	}
	return payload
}

func buildTrackingEventPayload(event services.TrackingEvent) trackingEventPayload {
	payload := trackingEventPayload{
		ID:       event.ID,
		Status:   string(event.Status),
		Location: event.Location,
		Carrier:  event.Carrier,
		Notes:    event.Notes,
	}
	if !event.StatusDate.IsZero() {
		payload.StatusDate = event.StatusDate.UTC().Format(time.RFC3339)
	}
	return payload
}
