package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/atlas-naturals/api/internal/platform/httpx"
	"github.com/atlas-naturals/api/internal/services"
)

const maxAdminOrderBodySize = 32 * 1024

// AdminOrderHandlers exposes the back-office order and fulfillment surface.
type AdminOrderHandlers struct {
	orders   services.OrderService
	tracking services.TrackingService
}

// NewAdminOrderHandlers constructs the admin order handlers.
func NewAdminOrderHandlers(orders services.OrderService, tracking services.TrackingService) *AdminOrderHandlers {
	return &AdminOrderHandlers{orders: orders, tracking: tracking}
}

// Routes wires the admin order endpoints onto the provided router.
func (h *AdminOrderHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Get("/orders", h.listOrders)
	r.Get("/orders/{orderID}", h.getOrder)
	r.Patch("/orders/{orderID}", h.updateDetails)
	r.Post("/orders/{orderID}/confirm", h.confirmOrder)
	r.Post("/orders/{orderID}/status", h.transitionStatus)
	r.Post("/orders/{orderID}/cancel", h.cancelOrder)
	r.Get("/orders/{orderID}/tracking", h.listTracking)
	r.Post("/orders/{orderID}/tracking", h.appendTracking)
}

type orderListResponse struct {
	Orders        []orderPayload `json:"orders"`
	NextPageToken string         `json:"nextPageToken,omitempty"`
}

type transitionStatusRequest struct {
	Status string `json:"status"`
}

type cancelOrderRequest struct {
	Reason string `json:"reason"`
}

type updateOrderRequest struct {
	Customer *struct {
		Name  string `json:"name"`
		Email string `json:"email"`
		Phone string `json:"phone"`
	} `json:"customer"`
	Address *string `json:"address"`
	Notes   *string `json:"notes"`
}

type appendTrackingRequest struct {
	Status     string `json:"status"`
	Location   string `json:"location"`
	Carrier    string `json:"carrier"`
	Notes      string `json:"notes"`
	StatusDate string `json:"statusDate"`
}

type appendTrackingResponse struct {
	Event      trackingEventPayload `json:"event"`
	Compatible bool                 `json:"compatible"`
}

func (h *AdminOrderHandlers) listOrders(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		httpx.WriteError(ctx, w, httpx.NewError("order_unavailable", "order service is unavailable", http.StatusServiceUnavailable))
		return
	}

	query := r.URL.Query()
	filter := services.OrderListFilter{
		Status: services.OrderStatus(strings.TrimSpace(query.Get("status"))),
		City:   services.DeliveryCity(strings.TrimSpace(query.Get("city"))),
		Pagination: services.Pagination{
			PageToken: strings.TrimSpace(query.Get("pageToken")),
		},
	}
	if raw := strings.TrimSpace(query.Get("from")); raw != "" {
		from, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "from must be an RFC3339 timestamp", http.StatusBadRequest))
			return
		}
		filter.PlacedFrom = from
	}
	if raw := strings.TrimSpace(query.Get("to")); raw != "" {
		to, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "to must be an RFC3339 timestamp", http.StatusBadRequest))
			return
		}
		filter.PlacedTo = to
	}
	if raw := strings.TrimSpace(query.Get("pageSize")); raw != "" {
		size, err := strconv.Atoi(raw)
		if err != nil || size < 0 {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "pageSize must be a positive integer", http.StatusBadRequest))
			return
		}
		filter.Pagination.PageSize = size
	}

	page, err := h.orders.ListOrders(ctx, filter)
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}

	payload := orderListResponse{
		Orders:        make([]orderPayload, 0, len(page.Items)),
		NextPageToken: page.NextPageToken,
	}
	for _, order := range page.Items {
		payload.Orders = append(payload.Orders, buildOrderPayload(order))
	}
	writeJSONResponse(w, http.StatusOK, payload)
}

func (h *AdminOrderHandlers) getOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		httpx.WriteError(ctx, w, httpx.NewError("order_unavailable", "order service is unavailable", http.StatusServiceUnavailable))
		return
	}

	order, err := h.orders.GetOrder(ctx, chi.URLParam(r, "orderID"))
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, buildOrderPayload(order))
}

func (h *AdminOrderHandlers) confirmOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		httpx.WriteError(ctx, w, httpx.NewError("order_unavailable", "order service is unavailable", http.StatusServiceUnavailable))
		return
	}

	order, err := h.orders.ConfirmOrder(ctx, chi.URLParam(r, "orderID"))
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, buildOrderPayload(order))
}

func (h *AdminOrderHandlers) transitionStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		httpx.WriteError(ctx, w, httpx.NewError("order_unavailable", "order service is unavailable", http.StatusServiceUnavailable))
		return
	}

	body, err := readLimitedBody(r, maxAdminOrderBodySize)
	if err != nil {
		writeBodyError(w, r, err)
		return
	}
	var req transitionStatusRequest
	if err := json.Unmarshal(body, &req); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "invalid JSON payload", http.StatusBadRequest))
		return
	}

	order, err := h.orders.TransitionStatus(ctx, services.OrderStatusTransitionCommand{
		OrderID: chi.URLParam(r, "orderID"),
		Status:  services.OrderStatus(req.Status),
	})
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, buildOrderPayload(order))
}

func (h *AdminOrderHandlers) cancelOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		httpx.WriteError(ctx, w, httpx.NewError("order_unavailable", "order service is unavailable", http.StatusServiceUnavailable))
		return
	}

	body, err := readLimitedBody(r, maxAdminOrderBodySize)
	if err != nil {
		writeBodyError(w, r, err)
		return
	}
	var req cancelOrderRequest
	if err := json.Unmarshal(body, &req); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "invalid JSON payload", http.StatusBadRequest))
		return
	}

	order, err := h.orders.Cancel(ctx, services.CancelOrderCommand{
		OrderID: chi.URLParam(r, "orderID"),
		Reason:  req.Reason,
	})
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, buildOrderPayload(order))
}

func (h *AdminOrderHandlers) updateDetails(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		httpx.WriteError(ctx, w, httpx.NewError("order_unavailable", "order service is unavailable", http.StatusServiceUnavailable))
		return
	}

	body, err := readLimitedBody(r, maxAdminOrderBodySize)
	if err != nil {
		writeBodyError(w, r, err)
		return
	}
	var req updateOrderRequest
	if err := json.Unmarshal(body, &req); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "invalid JSON payload", http.StatusBadRequest))
		return
	}

	cmd := services.UpdateOrderDetailsCommand{
		OrderID: chi.URLParam(r, "orderID"),
		Address: req.Address,
		Notes:   req.Notes,
	}
	if req.Customer != nil {
		cmd.Customer = &services.OrderCustomer{
			Name:  req.Customer.Name,
			Email: req.Customer.Email,
			Phone: req.Customer.Phone,
		}
	}

	order, err := h.orders.UpdateDetails(ctx, cmd)
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, buildOrderPayload(order))
}

func (h *AdminOrderHandlers) listTracking(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.tracking == nil {
		httpx.WriteError(ctx, w, httpx.NewError("tracking_unavailable", "tracking service is unavailable", http.StatusServiceUnavailable))
		return
	}

	history, err := h.tracking.ListByOrder(ctx, chi.URLParam(r, "orderID"))
	if err != nil {
		writeTrackingError(ctx, w, err)
		return
	}

	events := make([]trackingEventPayload, 0, len(history))
	for _, event := range history {
		events = append(events, buildTrackingEventPayload(event))
	}
	writeJSONResponse(w, http.StatusOK, map[string]any{"events": events})
}

func (h *AdminOrderHandlers) appendTracking(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.tracking == nil {
		httpx.WriteError(ctx, w, httpx.NewError("tracking_unavailable", "tracking service is unavailable", http.StatusServiceUnavailable))
		return
	}

	body, err := readLimitedBody(r, maxAdminOrderBodySize)
	if err != nil {
		writeBodyError(w, r, err)
		return
	}
	var req appendTrackingRequest
	if err := json.Unmarshal(body, &req); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "invalid JSON payload", http.StatusBadRequest))
		return
	}

	cmd := services.AppendTrackingEventCommand{
		OrderID:  chi.URLParam(r, "orderID"),
		Status:   services.TrackingStatus(req.Status),
		Location: req.Location,
		Carrier:  req.Carrier,
		Notes:    req.Notes,
	}
	if raw := strings.TrimSpace(req.StatusDate); raw != "" {
		statusDate, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "statusDate must be an RFC3339 timestamp", http.StatusBadRequest))
			return
		}
		cmd.StatusDate = statusDate
	}

	result, err := h.tracking.AppendEvent(ctx, cmd)
	if err != nil {
		writeTrackingError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusCreated, appendTrackingResponse{
		Event:      buildTrackingEventPayload(result.Event),
		Compatible: result.Compatible,
	})
}
