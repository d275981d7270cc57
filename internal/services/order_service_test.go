package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	domain "github.com/atlas-naturals/api/internal/domain"
	"github.com/atlas-naturals/api/internal/platform/events"
)

type orderFixture struct {
	svc       OrderService
	orders    *stubOrderRepository
	tracking  *stubTrackingRepository
	publisher *stubPublisher
	now       time.Time
}

func newOrderFixture(t *testing.T) *orderFixture {
	t.Helper()
	now := time.Date(2026, time.March, 12, 14, 0, 0, 0, time.UTC)
	f := &orderFixture{
		orders:    &stubOrderRepository{orders: map[string]domain.Order{}},
		tracking:  &stubTrackingRepository{},
		publisher: &stubPublisher{},
		now:       now,
	}
	svc, err := NewOrderService(OrderServiceDeps{
		Orders:      f.orders,
		Tracking:    f.tracking,
		Publisher:   f.publisher,
		Clock:       func() time.Time { return now },
		IDGenerator: func() string { return "01HXAMPLE0000000000000000" },
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	f.svc = svc
	return f
}

func (f *orderFixture) seedOrder(status domain.OrderStatus) domain.Order {
	order := domain.Order{
		ID:          "order-1",
		OrderNumber: "CMD-2026-000042",
		Status:      status,
		Customer:    domain.OrderCustomer{Name: "Fatima Z.", Phone: "+212600000000"},
		OrderDate:   f.now.Add(-24 * time.Hour),
	}
	f.orders.orders[order.ID] = order
	return order
}

func TestConfirmOrderMirrorsTrackingAndPublishes(t *testing.T) {
	f := newOrderFixture(t)
	f.seedOrder(domain.OrderStatusPending)

	order, err := f.svc.ConfirmOrder(context.Background(), "order-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if order.Status != domain.OrderStatusConfirmed {
		t.Fatalf("expected confirmed, got %q", order.Status)
	}
	if len(f.tracking.appended) != 1 || f.tracking.appended[0].Status != domain.TrackingConfirmed {
		t.Fatalf("expected confirmed tracking mirror, got %+v", f.tracking.appended)
	}
	if len(f.publisher.published) != 1 {
		t.Fatalf("expected one event, got %d", len(f.publisher.published))
	}
	event := f.publisher.published[0]
	if event.Type != events.TypeOrderStatusChanged || event.FromStatus != "pending" || event.Status != "confirmed" {
		t.Fatalf("unexpected event %+v", event)
	}
}

func TestTransitionStatusRejectsSkips(t *testing.T) {
	f := newOrderFixture(t)
	f.seedOrder(domain.OrderStatusPending)

	_, err := f.svc.TransitionStatus(context.Background(), OrderStatusTransitionCommand{
		OrderID: "order-1",
		Status:  domain.OrderStatusShipped,
	})
	if !errors.Is(err, ErrOrderInvalidState) {
		t.Fatalf("expected invalid state, got %v", err)
	}
	if len(f.orders.saved) != 0 {
		t.Fatalf("expected no save on rejected transition")
	}

	if _, err := f.svc.TransitionStatus(context.Background(), OrderStatusTransitionCommand{
		OrderID: "order-1",
		Status:  "teleported",
	}); !errors.Is(err, ErrOrderInvalidInput) {
		t.Fatalf("expected invalid input for unknown status, got %v", err)
	}
}

func TestTransitionToShippedGeneratesTrackingCode(t *testing.T) {
	f := newOrderFixture(t)
	f.seedOrder(domain.OrderStatusProcessing)

	order, err := f.svc.TransitionStatus(context.Background(), OrderStatusTransitionCommand{
		OrderID: "order-1",
		Status:  domain.OrderStatusShipped,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.HasPrefix(order.TrackingCode, "TRK-") {
		t.Fatalf("expected generated tracking code, got %q", order.TrackingCode)
	}

	// A second shipment of an already coded order keeps the original code.
	f.orders.orders["order-1"] = domain.Order{ID: "order-1", Status: domain.OrderStatusProcessing, TrackingCode: "TRK-KEEP"}
	order, err = f.svc.TransitionStatus(context.Background(), OrderStatusTransitionCommand{
		OrderID: "order-1",
		Status:  domain.OrderStatusShipped,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if order.TrackingCode != "TRK-KEEP" {
		t.Fatalf("expected preserved tracking code, got %q", order.TrackingCode)
	}
}

func TestCancelRecordsReasonAndTimestamp(t *testing.T) {
	f := newOrderFixture(t)
	f.seedOrder(domain.OrderStatusProcessing)

	order, err := f.svc.Cancel(context.Background(), CancelOrderCommand{
		OrderID: "order-1",
		Reason:  "customer changed mind",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if order.Status != domain.OrderStatusCancelled {
		t.Fatalf("expected cancelled, got %q", order.Status)
	}
	if order.CancelReason != "customer changed mind" {
		t.Fatalf("unexpected reason %q", order.CancelReason)
	}
	if order.CancelledAt == nil || !order.CancelledAt.Equal(f.now) {
		t.Fatalf("expected cancellation timestamp %v, got %v", f.now, order.CancelledAt)
	}
	if len(f.tracking.appended) != 1 || f.tracking.appended[0].Status != domain.TrackingCancelled {
		t.Fatalf("expected cancelled tracking mirror, got %+v", f.tracking.appended)
	}
	if len(f.publisher.published) != 1 || f.publisher.published[0].Type != events.TypeOrderCanceled {
		t.Fatalf("expected order.canceled event, got %+v", f.publisher.published)
	}
}

func TestCancelRejectedOnceShipped(t *testing.T) {
	f := newOrderFixture(t)
	f.seedOrder(domain.OrderStatusShipped)

	if _, err := f.svc.Cancel(context.Background(), CancelOrderCommand{OrderID: "order-1"}); !errors.Is(err, ErrOrderInvalidState) {
		t.Fatalf("expected invalid state, got %v", err)
	}
}

func TestUpdateDetailsOnlyBeforeFulfillment(t *testing.T) {
	f := newOrderFixture(t)
	f.seedOrder(domain.OrderStatusConfirmed)
	ctx := context.Background()

	notes := "leave at the door"
	order, err := f.svc.UpdateDetails(ctx, UpdateOrderDetailsCommand{OrderID: "order-1", Notes: &notes})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if order.Notes != notes {
		t.Fatalf("expected notes update, got %q", order.Notes)
	}

	empty := " "
	if _, err := f.svc.UpdateDetails(ctx, UpdateOrderDetailsCommand{OrderID: "order-1", Address: &empty}); !errors.Is(err, ErrOrderInvalidInput) {
		t.Fatalf("expected invalid input for blank address, got %v", err)
	}

	f.orders.orders["order-1"] = domain.Order{ID: "order-1", Status: domain.OrderStatusShipped}
	if _, err := f.svc.UpdateDetails(ctx, UpdateOrderDetailsCommand{OrderID: "order-1", Notes: &notes}); !errors.Is(err, ErrOrderInvalidState) {
		t.Fatalf("expected invalid state for shipped order, got %v", err)
	}
}

func TestListOrdersValidatesFilter(t *testing.T) {
	f := newOrderFixture(t)
	ctx := context.Background()

	if _, err := f.svc.ListOrders(ctx, OrderListFilter{Status: "bogus"}); !errors.Is(err, ErrOrderInvalidInput) {
		t.Fatalf("expected invalid input for unknown status, got %v", err)
	}

	from := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	if _, err := f.svc.ListOrders(ctx, OrderListFilter{PlacedFrom: from, PlacedTo: from.Add(-time.Hour)}); !errors.Is(err, ErrOrderInvalidInput) {
		t.Fatalf("expected invalid input for inverted range, got %v", err)
	}

	if _, err := f.svc.ListOrders(ctx, OrderListFilter{Pagination: Pagination{PageSize: 1000}}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if f.orders.listFilter.Pagination.PageSize != maxOrderPageSize {
		t.Fatalf("expected clamped page size, got %d", f.orders.listFilter.Pagination.PageSize)
	}
}

func TestGetOrderByNumberUppercases(t *testing.T) {
	f := newOrderFixture(t)
	f.seedOrder(domain.OrderStatusPending)

	order, err := f.svc.GetOrderByNumber(context.Background(), " cmd-2026-000042 ")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if order.ID != "order-1" {
		t.Fatalf("expected order-1, got %q", order.ID)
	}

	if _, err := f.svc.GetOrderByNumber(context.Background(), "CMD-2026-999999"); !errors.Is(err, ErrOrderNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}
