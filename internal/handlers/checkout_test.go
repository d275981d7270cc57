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

type stubCheckoutService struct {
	checkoutFunc func(ctx context.Context, cmd services.CheckoutCommand) (services.Order, error)
}

func (s *stubCheckoutService) Checkout(ctx context.Context, cmd services.CheckoutCommand) (services.Order, error) {
	if s.checkoutFunc == nil {
		return services.Order{}, fmt.Errorf("unexpected Checkout call")
	}
	return s.checkoutFunc(ctx, cmd)
}

func newCheckoutRouter(service services.CheckoutService) chi.Router {
	router := chi.NewRouter()
	router.Route("/checkout", NewCheckoutHandlers(service).Routes)
	return router
}

func TestCheckoutHandlersPlaceOrder(t *testing.T) {
	placed := time.Date(2026, 3, 10, 9, 30, 0, 0, time.UTC)
	service := &stubCheckoutService{
		checkoutFunc: func(ctx context.Context, cmd services.CheckoutCommand) (services.Order, error) {
			if cmd.SessionID != "session-7" {
				t.Fatalf("unexpected session id %q", cmd.SessionID)
			}
			if cmd.Customer.Name != "Amina K" || cmd.Customer.Phone != "+212600000000" {
				t.Fatalf("unexpected customer: %+v", cmd.Customer)
			}
			if cmd.City != domain.CityCasablanca {
				t.Fatalf("unexpected city %q", cmd.City)
			}
			return services.Order{
				ID:          "order-1",
				OrderNumber: "CMD-2026-000042",
				Status:      domain.OrderStatusPending,
				Customer:    cmd.Customer,
				City:        cmd.City,
				Totals:      services.OrderTotals{Subtotal: 40000, Shipping: 2000, Total: 42000},
				Shipping:    services.ShippingQuote{Cost: 2000, DeliveryWindow: "24-72h"},
				OrderDate:   placed,
			}, nil
		},
	}

	body := `{"customer":{"name":"Amina K","phone":"+212600000000"},"address":"12 Rue des Oliviers","city":"casablanca"}`
	req := newSessionRequest(http.MethodPost, "/checkout", body)
	rec := httptest.NewRecorder()
	newCheckoutRouter(service).ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d (%s)", rec.Code, rec.Body.String())
	}

	var payload struct {
		OrderNumber string `json:"orderNumber"`
		Status      string `json:"status"`
		Totals      struct {
			Total int64 `json:"total"`
		} `json:"totals"`
		OrderDate string `json:"orderDate"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if payload.OrderNumber != "CMD-2026-000042" || payload.Status != "pending" {
		t.Fatalf("unexpected order header: %+v", payload)
	}
	if payload.Totals.Total != 42000 {
		t.Fatalf("unexpected total %d", payload.Totals.Total)
	}
	if payload.OrderDate != "2026-03-10T09:30:00Z" {
		t.Fatalf("unexpected order date %q", payload.OrderDate)
	}
}

func TestCheckoutHandlersMissingSession(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/checkout", strings.NewReader(`{}`))
	rec := httptest.NewRecorder()
	newCheckoutRouter(&stubCheckoutService{}).ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestCheckoutHandlersEmptyCart(t *testing.T) {
	service := &stubCheckoutService{
		checkoutFunc: func(ctx context.Context, cmd services.CheckoutCommand) (services.Order, error) {
			return services.Order{}, services.ErrCheckoutEmptyCart
		},
	}

	req := newSessionRequest(http.MethodPost, "/checkout", `{"customer":{"name":"A","phone":"1"},"address":"x","city":"rabat"}`)
	rec := httptest.NewRecorder()
	newCheckoutRouter(service).ServeHTTP(rec, req)

	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "cart_empty") {
		t.Fatalf("expected cart_empty code, got %s", rec.Body.String())
	}
}

func TestCheckoutHandlersInvalidInput(t *testing.T) {
	service := &stubCheckoutService{
		checkoutFunc: func(ctx context.Context, cmd services.CheckoutCommand) (services.Order, error) {
			return services.Order{}, fmt.Errorf("%w: customer phone is required", services.ErrCheckoutInvalidInput)
		},
	}

	req := newSessionRequest(http.MethodPost, "/checkout", `{"customer":{"name":"A"},"address":"x","city":"rabat"}`)
	rec := httptest.NewRecorder()
	newCheckoutRouter(service).ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestCheckoutHandlersRateLimited(t *testing.T) {
	calls := 0
	service := &stubCheckoutService{
		checkoutFunc: func(ctx context.Context, cmd services.CheckoutCommand) (services.Order, error) {
			calls++
			return services.Order{ID: fmt.Sprintf("order-%d", calls), Status: domain.OrderStatusPending}, nil
		},
	}

	router := chi.NewRouter()
	router.Route("/checkout", NewCheckoutHandlers(service, WithCheckoutRateLimit(2, time.Minute)).Routes)

	body := `{"customer":{"name":"A","phone":"1"},"address":"x","city":"rabat"}`
	for i := 0; i < 2; i++ {
		req := newSessionRequest(http.MethodPost, "/checkout", body)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		if rec.Code != http.StatusCreated {
			t.Fatalf("attempt %d: expected 201, got %d", i+1, rec.Code)
		}
	}

	req := newSessionRequest(http.MethodPost, "/checkout", body)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429 after limit, got %d", rec.Code)
	}
	if calls != 2 {
		t.Fatalf("expected service untouched past the limit, got %d calls", calls)
	}
}

func TestCheckoutHandlersUnavailable(t *testing.T) {
	service := &stubCheckoutService{
		checkoutFunc: func(ctx context.Context, cmd services.CheckoutCommand) (services.Order, error) {
			return services.Order{}, services.ErrCheckoutUnavailable
		},
	}

	req := newSessionRequest(http.MethodPost, "/checkout", `{"customer":{"name":"A","phone":"1"},"address":"x","city":"rabat"}`)
	rec := httptest.NewRecorder()
	newCheckoutRouter(service).ServeHTTP(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
}
