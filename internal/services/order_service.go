package services

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	domain "github.com/atlas-naturals/api/internal/domain"
	"github.com/atlas-naturals/api/internal/platform/events"
	"github.com/atlas-naturals/api/internal/repositories"
)

const (
	defaultOrderPageSize = 25
	maxOrderPageSize     = 100
	maxCancelReasonLen   = 500
	trackingCodePrefix   = "TRK"
)

var (
	// ErrOrderInvalidInput signals the caller provided invalid data.
	ErrOrderInvalidInput = errors.New("order: invalid input")
	// ErrOrderNotFound indicates the order could not be located.
	ErrOrderNotFound = errors.New("order: not found")
	// ErrOrderInvalidState indicates an invalid status transition was attempted.
	ErrOrderInvalidState = errors.New("order: invalid status transition")
	// ErrOrderUnavailable indicates the order backend cannot fulfil the request.
	ErrOrderUnavailable = errors.New("order: unavailable")
)

// lifecycleTrackingMap mirrors lifecycle transitions into the tracking log so
// the customer-facing history stays in step with operator actions.
var lifecycleTrackingMap = map[domain.OrderStatus]domain.TrackingStatus{
	domain.OrderStatusConfirmed:      domain.TrackingConfirmed,
	domain.OrderStatusProcessing:     domain.TrackingProcessing,
	domain.OrderStatusShipped:        domain.TrackingShipped,
	domain.OrderStatusOutForDelivery: domain.TrackingOutForDelivery,
	domain.OrderStatusDelivered:      domain.TrackingDelivered,
	domain.OrderStatusCancelled:      domain.TrackingCancelled,
	domain.OrderStatusRefunded:       domain.TrackingReturned,
}

// OrderServiceDeps bundles collaborators required to construct the order service.
type OrderServiceDeps struct {
	Orders      repositories.OrderRepository
	Tracking    repositories.TrackingRepository
	Publisher   events.Publisher
	Clock       func() time.Time
	IDGenerator func() string
	Logger      func(ctx context.Context, event string, fields map[string]any)
}

type orderService struct {
	orders    repositories.OrderRepository
	tracking  repositories.TrackingRepository
	publisher events.Publisher
	now       func() time.Time
	newID     func() string
	logger    func(context.Context, string, map[string]any)
}

// NewOrderService wires dependencies into a concrete OrderService implementation.
func NewOrderService(deps OrderServiceDeps) (OrderService, error) {
	if deps.Orders == nil {
		return nil, errors.New("order service: order repository is required")
	}
	if deps.Tracking == nil {
		return nil, errors.New("order service: tracking repository is required")
	}

	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	idGen := deps.IDGenerator
	if idGen == nil {
		idGen = func() string { return ulid.Make().String() }
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	publisher := deps.Publisher
	if publisher == nil {
		publisher = events.NopPublisher{}
	}

	return &orderService{
		orders:    deps.Orders,
		tracking:  deps.Tracking,
		publisher: publisher,
		now:       func() time.Time { return clock().UTC() },
		newID:     idGen,
		logger:    logger,
	}, nil
}

func (s *orderService) ListOrders(ctx context.Context, filter OrderListFilter) (domain.CursorPage[Order], error) {
	if filter.Status != "" && !domain.ValidOrderStatus(filter.Status) {
		return domain.CursorPage[Order]{}, fmt.Errorf("%w: unknown status %q", ErrOrderInvalidInput, filter.Status)
	}
	if !filter.PlacedFrom.IsZero() && !filter.PlacedTo.IsZero() && filter.PlacedTo.Before(filter.PlacedFrom) {
		return domain.CursorPage[Order]{}, fmt.Errorf("%w: inverted date range", ErrOrderInvalidInput)
	}

	pageSize := filter.Pagination.PageSize
	if pageSize <= 0 {
		pageSize = defaultOrderPageSize
	}
	if pageSize > maxOrderPageSize {
		pageSize = maxOrderPageSize
	}

	page, err := s.orders.List(ctx, repositories.OrderListFilter{
		Status:     filter.Status,
		City:       filter.City,
		PlacedFrom: filter.PlacedFrom,
		PlacedTo:   filter.PlacedTo,
		Pagination: domain.Pagination{
			PageSize:  pageSize,
			PageToken: strings.TrimSpace(filter.Pagination.PageToken),
		},
	})
	if err != nil {
		return domain.CursorPage[Order]{}, translateOrderRepoError(err)
	}
	return page, nil
}

func (s *orderService) GetOrder(ctx context.Context, orderID string) (Order, error) {
	id := strings.TrimSpace(orderID)
	if id == "" {
		return Order{}, ErrOrderInvalidInput
	}
	order, err := s.orders.FindByID(ctx, id)
	if err != nil {
		return Order{}, translateOrderRepoError(err)
	}
	return order, nil
}

func (s *orderService) GetOrderByNumber(ctx context.Context, orderNumber string) (Order, error) {
	number := strings.ToUpper(strings.TrimSpace(orderNumber))
	if number == "" {
		return Order{}, ErrOrderInvalidInput
	}
	order, err := s.orders.FindByNumber(ctx, number)
	if err != nil {
		return Order{}, translateOrderRepoError(err)
	}
	return order, nil
}

// ConfirmOrder is the pending-to-confirmed shortcut used by the admin list view.
func (s *orderService) ConfirmOrder(ctx context.Context, orderID string) (Order, error) {
	return s.TransitionStatus(ctx, OrderStatusTransitionCommand{
		OrderID: orderID,
		Status:  domain.OrderStatusConfirmed,
	})
}

// TransitionStatus moves the order to the requested lifecycle state, mirrors
// the change into the tracking log, and publishes a status-changed event.
func (s *orderService) TransitionStatus(ctx context.Context, cmd OrderStatusTransitionCommand) (Order, error) {
	id := strings.TrimSpace(cmd.OrderID)
	if id == "" {
		return Order{}, ErrOrderInvalidInput
	}
	if !domain.ValidOrderStatus(cmd.Status) {
		return Order{}, fmt.Errorf("%w: unknown status %q", ErrOrderInvalidInput, cmd.Status)
	}

	order, err := s.orders.FindByID(ctx, id)
	if err != nil {
		return Order{}, translateOrderRepoError(err)
	}

	from := order.Status
	if !domain.CanTransition(from, cmd.Status) {
		return Order{}, fmt.Errorf("%w: %s -> %s", ErrOrderInvalidState, from, cmd.Status)
	}

	now := s.now()
	order.Status = cmd.Status
	order.UpdatedAt = now
	if cmd.Status == domain.OrderStatusShipped && strings.TrimSpace(order.TrackingCode) == "" {
		order.TrackingCode = s.newTrackingCode()
	}
	if cmd.Status == domain.OrderStatusCancelled && order.CancelledAt == nil {
		cancelledAt := now
		order.CancelledAt = &cancelledAt
	}

	saved, err := s.orders.Save(ctx, order)
	if err != nil {
		return Order{}, translateOrderRepoError(err)
	}

	s.mirrorTracking(ctx, saved, now)
	s.publishStatusChange(ctx, events.TypeOrderStatusChanged, saved, from, now)

	s.logger(ctx, "order.status_changed", map[string]any{
		"orderId": saved.ID,
		"from":    string(from),
		"to":      string(saved.Status),
	})
	return saved, nil
}

// Cancel cancels the order while it is still cancellable, recording the reason.
func (s *orderService) Cancel(ctx context.Context, cmd CancelOrderCommand) (Order, error) {
	id := strings.TrimSpace(cmd.OrderID)
	if id == "" {
		return Order{}, ErrOrderInvalidInput
	}
	reason := strings.TrimSpace(cmd.Reason)
	if len(reason) > maxCancelReasonLen {
		return Order{}, fmt.Errorf("%w: cancel reason too long", ErrOrderInvalidInput)
	}

	order, err := s.orders.FindByID(ctx, id)
	if err != nil {
		return Order{}, translateOrderRepoError(err)
	}

	from := order.Status
	if !domain.IsCancellable(from) {
		return Order{}, fmt.Errorf("%w: %s is not cancellable", ErrOrderInvalidState, from)
	}

	now := s.now()
	cancelledAt := now
	order.Status = domain.OrderStatusCancelled
	order.CancelReason = reason
	order.CancelledAt = &cancelledAt
	order.UpdatedAt = now

	saved, err := s.orders.Save(ctx, order)
	if err != nil {
		return Order{}, translateOrderRepoError(err)
	}

	s.mirrorTracking(ctx, saved, now)
	s.publishStatusChange(ctx, events.TypeOrderCanceled, saved, from, now)

	s.logger(ctx, "order.cancelled", map[string]any{
		"orderId": saved.ID,
		"reason":  reason,
	})
	return saved, nil
}

// UpdateDetails edits contact and address fields while the order has not
// entered fulfillment.
func (s *orderService) UpdateDetails(ctx context.Context, cmd UpdateOrderDetailsCommand) (Order, error) {
	id := strings.TrimSpace(cmd.OrderID)
	if id == "" {
		return Order{}, ErrOrderInvalidInput
	}

	order, err := s.orders.FindByID(ctx, id)
	if err != nil {
		return Order{}, translateOrderRepoError(err)
	}
	if !domain.IsCancellable(order.Status) {
		return Order{}, fmt.Errorf("%w: %s orders are no longer editable", ErrOrderInvalidState, order.Status)
	}

	changed := false
	if cmd.Customer != nil {
		name := strings.TrimSpace(cmd.Customer.Name)
		phone := strings.TrimSpace(cmd.Customer.Phone)
		email := strings.TrimSpace(cmd.Customer.Email)
		if name == "" || phone == "" {
			return Order{}, fmt.Errorf("%w: customer name and phone are required", ErrOrderInvalidInput)
		}
		if email != "" {
			if _, err := mail.ParseAddress(email); err != nil {
				return Order{}, fmt.Errorf("%w: invalid email", ErrOrderInvalidInput)
			}
		}
		order.Customer = domain.OrderCustomer{Name: name, Email: email, Phone: phone}
		changed = true
	}
	if cmd.Address != nil {
		address := strings.TrimSpace(*cmd.Address)
		if address == "" {
			return Order{}, fmt.Errorf("%w: shipping address is required", ErrOrderInvalidInput)
		}
		order.ShippingAddress = address
		changed = true
	}
	if cmd.Notes != nil {
		order.Notes = strings.TrimSpace(*cmd.Notes)
		changed = true
	}
	if !changed {
		return order, nil
	}

	order.UpdatedAt = s.now()
	saved, err := s.orders.Save(ctx, order)
	if err != nil {
		return Order{}, translateOrderRepoError(err)
	}
	return saved, nil
}

func (s *orderService) newTrackingCode() string {
	return fmt.Sprintf("%s-%s", trackingCodePrefix, s.newID())
}

func (s *orderService) mirrorTracking(ctx context.Context, order Order, now time.Time) {
	trackingStatus, ok := lifecycleTrackingMap[order.Status]
	if !ok {
		return
	}
	_, err := s.tracking.Append(ctx, domain.TrackingEvent{
		ID:         s.newID(),
		OrderID:    order.ID,
		Status:     trackingStatus,
		Notes:      order.CancelReason,
		StatusDate: now,
		CreatedAt:  now,
	})
	if err != nil {
		s.logger(ctx, "order.tracking_mirror_failed", map[string]any{
			"orderId": order.ID,
			"status":  string(trackingStatus),
			"error":   err.Error(),
		})
	}
}

func (s *orderService) publishStatusChange(ctx context.Context, eventType string, order Order, from domain.OrderStatus, now time.Time) {
	_, err := s.publisher.PublishOrderEvent(ctx, events.OrderEvent{
		Type:        eventType,
		OrderID:     order.ID,
		OrderNumber: order.OrderNumber,
		Status:      string(order.Status),
		FromStatus:  string(from),
		OccurredAt:  now,
	})
	if err != nil {
		s.logger(ctx, "order.publish_failed", map[string]any{
			"orderId": order.ID,
			"type":    eventType,
			"error":   err.Error(),
		})
	}
}

func translateOrderRepoError(err error) error {
	if err == nil {
		return nil
	}
	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) {
		switch {
		case repoErr.IsNotFound():
			return ErrOrderNotFound
		case repoErr.IsUnavailable():
			return ErrOrderUnavailable
		}
	}
	return ErrOrderUnavailable
}
