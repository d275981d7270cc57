package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	domain "github.com/atlas-naturals/api/internal/domain"
	"github.com/atlas-naturals/api/internal/services"
)

func newAdminOrderRouter(orders services.OrderService, tracking services.TrackingService) chi.Router {
	router := chi.NewRouter()
	router.Route("/admin", NewAdminOrderHandlers(orders, tracking).Routes)
	return router
}

func TestAdminOrderHandlersListOrders(t *testing.T) {
	var gotFilter services.OrderListFilter
	orders := &stubOrderService{
		listOrdersFunc: func(ctx context.Context, filter services.OrderListFilter) (domain.CursorPage[services.Order], error) {
			gotFilter = filter
			return domain.CursorPage[services.Order]{
				Items: []services.Order{
					{ID: "order-1", OrderNumber: "CMD-2026-000042", Status: domain.OrderStatusPending},
					{ID: "order-2", OrderNumber: "CMD-2026-000043", Status: domain.OrderStatusPending},
				},
				NextPageToken: "cursor-9",
			}, nil
		},
	}

	target := "/admin/orders?status=pending&city=casablanca&from=2026-03-01T00:00:00Z&to=2026-03-31T00:00:00Z&pageSize=50"
	req := httptest.NewRequest(http.MethodGet, target, nil)
	rec := httptest.NewRecorder()
	newAdminOrderRouter(orders, &stubTrackingService{}).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (%s)", rec.Code, rec.Body.String())
	}
	if gotFilter.Status != domain.OrderStatusPending || gotFilter.City != domain.CityCasablanca {
		t.Fatalf("unexpected filter: %+v", gotFilter)
	}
	if gotFilter.PlacedFrom.IsZero() || gotFilter.PlacedTo.IsZero() || gotFilter.Pagination.PageSize != 50 {
		t.Fatalf("unexpected filter window: %+v", gotFilter)
	}

	var payload struct {
		Orders []struct {
			OrderNumber string `json:"orderNumber"`
		} `json:"orders"`
		NextPageToken string `json:"nextPageToken"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(payload.Orders) != 2 || payload.NextPageToken != "cursor-9" {
		t.Fatalf("unexpected page: %+v", payload)
	}
}

func TestAdminOrderHandlersListOrdersBadTimestamp(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/admin/orders?from=yesterday", nil)
	rec := httptest.NewRecorder()
	newAdminOrderRouter(&stubOrderService{}, &stubTrackingService{}).ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestAdminOrderHandlersConfirmOrder(t *testing.T) {
	orders := &stubOrderService{
		confirmOrderFunc: func(ctx context.Context, orderID string) (services.Order, error) {
			if orderID != "order-1" {
				t.Fatalf("unexpected order id %q", orderID)
			}
			return services.Order{ID: orderID, Status: domain.OrderStatusConfirmed}, nil
		},
	}

	req := httptest.NewRequest(http.MethodPost, "/admin/orders/order-1/confirm", nil)
	rec := httptest.NewRecorder()
	newAdminOrderRouter(orders, &stubTrackingService{}).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (%s)", rec.Code, rec.Body.String())
	}

	var payload struct {
		Status string `json:"status"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if payload.Status != "confirmed" {
		t.Fatalf("unexpected status %q", payload.Status)
	}
}

func TestAdminOrderHandlersTransitionStatus(t *testing.T) {
	orders := &stubOrderService{
		transitionFunc: func(ctx context.Context, cmd services.OrderStatusTransitionCommand) (services.Order, error) {
			if cmd.OrderID != "order-1" || cmd.Status != domain.OrderStatusShipped {
				t.Fatalf("unexpected command: %+v", cmd)
			}
			return services.Order{ID: cmd.OrderID, Status: cmd.Status, TrackingCode: "TRK-01HX"}, nil
		},
	}

	req := httptest.NewRequest(http.MethodPost, "/admin/orders/order-1/status", strings.NewReader(`{"status":"shipped"}`))
	rec := httptest.NewRecorder()
	newAdminOrderRouter(orders, &stubTrackingService{}).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (%s)", rec.Code, rec.Body.String())
	}

	var payload struct {
		TrackingCode string `json:"trackingCode"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if payload.TrackingCode != "TRK-01HX" {
		t.Fatalf("expected tracking code in response, got %q", payload.TrackingCode)
	}
}

func TestAdminOrderHandlersTransitionInvalidState(t *testing.T) {
	orders := &stubOrderService{
		transitionFunc: func(ctx context.Context, cmd services.OrderStatusTransitionCommand) (services.Order, error) {
			return services.Order{}, fmt.Errorf("%w: pending -> shipped", services.ErrOrderInvalidState)
		},
	}

	req := httptest.NewRequest(http.MethodPost, "/admin/orders/order-1/status", strings.NewReader(`{"status":"shipped"}`))
	rec := httptest.NewRecorder()
	newAdminOrderRouter(orders, &stubTrackingService{}).ServeHTTP(rec, req)

	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "invalid_order_state") {
		t.Fatalf("expected invalid_order_state code, got %s", rec.Body.String())
	}
}

func TestAdminOrderHandlersCancelOrder(t *testing.T) {
	orders := &stubOrderService{
		cancelFunc: func(ctx context.Context, cmd services.CancelOrderCommand) (services.Order, error) {
			if cmd.Reason != "customer asked to cancel" {
				t.Fatalf("unexpected reason %q", cmd.Reason)
			}
			cancelled := time.Date(2026, 3, 12, 10, 0, 0, 0, time.UTC)
			return services.Order{ID: cmd.OrderID, Status: domain.OrderStatusCancelled, CancelReason: cmd.Reason, CancelledAt: &cancelled}, nil
		},
	}

	req := httptest.NewRequest(http.MethodPost, "/admin/orders/order-1/cancel", strings.NewReader(`{"reason":"customer asked to cancel"}`))
	rec := httptest.NewRecorder()
	newAdminOrderRouter(orders, &stubTrackingService{}).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (%s)", rec.Code, rec.Body.String())
	}

	var payload struct {
		Status       string `json:"status"`
		CancelReason string `json:"cancelReason"`
		CancelledAt  string `json:"cancelledAt"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if payload.Status != "cancelled" || payload.CancelReason == "" || payload.CancelledAt == "" {
		t.Fatalf("unexpected cancel payload: %+v", payload)
	}
}

func TestAdminOrderHandlersUpdateDetails(t *testing.T) {
	orders := &stubOrderService{
		updateDetailsFunc: func(ctx context.Context, cmd services.UpdateOrderDetailsCommand) (services.Order, error) {
			if cmd.Customer == nil || cmd.Customer.Name != "Amina K" {
				t.Fatalf("unexpected customer: %+v", cmd.Customer)
			}
			if cmd.Address == nil || *cmd.Address != "14 Rue des Oliviers" {
				t.Fatalf("unexpected address: %+v", cmd.Address)
			}
			if cmd.Notes != nil {
				t.Fatalf("expected notes untouched, got %q", *cmd.Notes)
			}
			return services.Order{ID: cmd.OrderID, ShippingAddress: *cmd.Address}, nil
		},
	}

	body := `{"customer":{"name":"Amina K","phone":"+212600000000"},"address":"14 Rue des Oliviers"}`
	req := httptest.NewRequest(http.MethodPatch, "/admin/orders/order-1", strings.NewReader(body))
	rec := httptest.NewRecorder()
	newAdminOrderRouter(orders, &stubTrackingService{}).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (%s)", rec.Code, rec.Body.String())
	}
}

func TestAdminOrderHandlersAppendTracking(t *testing.T) {
	statusDate := time.Date(2026, 3, 12, 8, 0, 0, 0, time.UTC)
	tracking := &stubTrackingService{
		appendEventFunc: func(ctx context.Context, cmd services.AppendTrackingEventCommand) (services.TrackingAppendResult, error) {
			if cmd.OrderID != "order-1" || cmd.Status != domain.TrackingInTransit {
				t.Fatalf("unexpected command: %+v", cmd)
			}
			if !cmd.StatusDate.Equal(statusDate) {
				t.Fatalf("unexpected status date %v", cmd.StatusDate)
			}
			return services.TrackingAppendResult{
				Event:      services.TrackingEvent{ID: "evt-1", OrderID: cmd.OrderID, Status: cmd.Status, Carrier: cmd.Carrier, StatusDate: cmd.StatusDate},
				Compatible: true,
			}, nil
		},
	}

	body := `{"status":"in_transit","carrier":"CTM Messagerie","statusDate":"2026-03-12T08:00:00Z"}`
	req := httptest.NewRequest(http.MethodPost, "/admin/orders/order-1/tracking", strings.NewReader(body))
	rec := httptest.NewRecorder()
	newAdminOrderRouter(&stubOrderService{}, tracking).ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d (%s)", rec.Code, rec.Body.String())
	}

	var payload struct {
		Event struct {
			Status string `json:"status"`
		} `json:"event"`
		Compatible bool `json:"compatible"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if payload.Event.Status != "in_transit" || !payload.Compatible {
		t.Fatalf("unexpected append payload: %+v", payload)
	}
}

func TestAdminOrderHandlersAppendTrackingIncompatible(t *testing.T) {
	tracking := &stubTrackingService{
		appendEventFunc: func(ctx context.Context, cmd services.AppendTrackingEventCommand) (services.TrackingAppendResult, error) {
			return services.TrackingAppendResult{
				Event:      services.TrackingEvent{ID: "evt-2", OrderID: cmd.OrderID, Status: cmd.Status},
				Compatible: false,
			}, nil
		},
	}

	body := `{"status":"delivered"}`
	req := httptest.NewRequest(http.MethodPost, "/admin/orders/order-1/tracking", strings.NewReader(body))
	rec := httptest.NewRecorder()
	newAdminOrderRouter(&stubOrderService{}, tracking).ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d (%s)", rec.Code, rec.Body.String())
	}

	var payload struct {
		Compatible bool `json:"compatible"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if payload.Compatible {
		t.Fatalf("expected incompatible append to be flagged")
	}
}

func TestAdminOrderHandlersAppendTrackingBadStatus(t *testing.T) {
	tracking := &stubTrackingService{
		appendEventFunc: func(ctx context.Context, cmd services.AppendTrackingEventCommand) (services.TrackingAppendResult, error) {
			return services.TrackingAppendResult{}, fmt.Errorf("%w: unknown tracking status %q", services.ErrTrackingInvalidInput, cmd.Status)
		},
	}

	req := httptest.NewRequest(http.MethodPost, "/admin/orders/order-1/tracking", strings.NewReader(`{"status":"vaporised"}`))
	rec := httptest.NewRecorder()
	newAdminOrderRouter(&stubOrderService{}, tracking).ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}
