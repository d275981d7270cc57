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
	"github.com/atlas-naturals/api/internal/platform/observability"
	"github.com/atlas-naturals/api/internal/repositories"
)

const (
	orderNumberPrefix    = "CMD"
	orderCounterPrefix   = "orders"
	maxCheckoutNotesLen  = 2000
	maxCustomerFieldLen  = 200
	maxShippingAddrLen   = 500
)

var (
	// ErrCheckoutInvalidInput indicates the caller supplied invalid input parameters.
	ErrCheckoutInvalidInput = errors.New("checkout: invalid input")
	// ErrCheckoutUnavailable indicates checkout dependencies are currently unavailable.
	ErrCheckoutUnavailable = errors.New("checkout: unavailable")
	// ErrCheckoutEmptyCart indicates the session has no cart lines to order.
	ErrCheckoutEmptyCart = errors.New("checkout: cart is empty")
	// ErrCheckoutConflict indicates a concurrent checkout produced a colliding order.
	ErrCheckoutConflict = errors.New("checkout: conflict")
)

// CheckoutServiceDeps wires the dependencies required by the checkout service.
type CheckoutServiceDeps struct {
	Carts       repositories.CartRepository
	Orders      repositories.OrderRepository
	Tracking    repositories.TrackingRepository
	Counters    repositories.CounterRepository
	Publisher   events.Publisher
	Clock       func() time.Time
	Logger      func(ctx context.Context, event string, fields map[string]any)
	IDGenerator func() string
}

type checkoutService struct {
	carts     repositories.CartRepository
	orders    repositories.OrderRepository
	tracking  repositories.TrackingRepository
	counters  repositories.CounterRepository
	publisher events.Publisher
	now       func() time.Time
	newID     func() string
	logger    func(ctx context.Context, event string, fields map[string]any)
}

// NewCheckoutService constructs a CheckoutService validating required dependencies.
func NewCheckoutService(deps CheckoutServiceDeps) (CheckoutService, error) {
	if deps.Carts == nil {
		return nil, errors.New("checkout service: cart repository is required")
	}
	if deps.Orders == nil {
		return nil, errors.New("checkout service: order repository is required")
	}
	if deps.Tracking == nil {
		return nil, errors.New("checkout service: tracking repository is required")
	}
	if deps.Counters == nil {
		return nil, errors.New("checkout service: counter repository is required")
	}

	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	idGen := deps.IDGenerator
	if idGen == nil {
		idGen = func() string { return ulid.Make().String() }
	}
	publisher := deps.Publisher
	if publisher == nil {
		publisher = events.NopPublisher{}
	}

	return &checkoutService{
		carts:     deps.Carts,
		orders:    deps.Orders,
		tracking:  deps.Tracking,
		counters:  deps.Counters,
		publisher: publisher,
		now:       func() time.Time { return clock().UTC() },
		newID:     idGen,
		logger:    logger,
	}, nil
}

// Checkout turns the session cart into a pending order. The cart is cleared
// only after the order document is durably inserted; tracking and event
// publication failures are logged but never roll the order back.
func (s *checkoutService) Checkout(ctx context.Context, cmd CheckoutCommand) (Order, error) {
	sid := strings.TrimSpace(cmd.SessionID)
	if sid == "" {
		return Order{}, ErrCheckoutInvalidInput
	}

	customer, err := validateCheckoutCustomer(cmd.Customer)
	if err != nil {
		return Order{}, err
	}
	address := strings.TrimSpace(cmd.Address)
	if address == "" || len(address) > maxShippingAddrLen {
		return Order{}, fmt.Errorf("%w: shipping address is required", ErrCheckoutInvalidInput)
	}
	notes := strings.TrimSpace(cmd.Notes)
	if len(notes) > maxCheckoutNotesLen {
		return Order{}, fmt.Errorf("%w: notes too long", ErrCheckoutInvalidInput)
	}

	cart, err := s.carts.Get(ctx, sid)
	if err != nil {
		if isRepoNotFound(err) {
			return Order{}, ErrCheckoutEmptyCart
		}
		return Order{}, ErrCheckoutUnavailable
	}
	if len(cart.Lines) == 0 {
		return Order{}, ErrCheckoutEmptyCart
	}

	selection := &domain.CitySelection{
		City:       domain.DeliveryCity(strings.ToLower(strings.TrimSpace(string(cmd.City)))),
		CustomName: strings.TrimSpace(cmd.CustomCity),
	}
	if selection.City == "" && cart.City != nil {
		selection = cart.City
	}
	if err := domain.ValidateCitySelection(cart.Lines, selection); err != nil {
		return Order{}, fmt.Errorf("%w: %s", ErrCheckoutInvalidInput, err)
	}

	now := s.now()
	orderNumber, err := s.nextOrderNumber(ctx, now)
	if err != nil {
		return Order{}, err
	}

	quote := domain.QuoteShipping(cart.Lines, selection)
	subtotal := domain.Subtotal(cart.Lines)

	order := domain.Order{
		ID:              s.newID(),
		OrderNumber:     orderNumber,
		Status:          domain.OrderStatusPending,
		Customer:        customer,
		ShippingAddress: address,
		City:            selection.City,
		CityName:        selection.CustomName,
		Notes:           notes,
		Items:           buildOrderLineItems(cart.Lines),
		Totals: domain.OrderTotals{
			Subtotal: subtotal,
			Shipping: quote.Cost,
			Total:    subtotal + quote.Cost,
		},
		Shipping:              quote,
		OrderDate:             now,
		EstimatedDeliveryDate: now.Add(domain.DeliveryWindowMaxHours * time.Hour),
		CreatedAt:             now,
		UpdatedAt:             now,
	}

	saved, err := s.orders.Insert(ctx, order)
	if err != nil {
		var repoErr repositories.RepositoryError
		if errors.As(err, &repoErr) && repoErr.IsConflict() {
			return Order{}, ErrCheckoutConflict
		}
		s.logger(ctx, "checkout.order_insert_failed", map[string]any{
			"sessionId":   observability.SanitizeSessionID(sid),
			"orderNumber": orderNumber,
			"error":       err.Error(),
		})
		return Order{}, ErrCheckoutUnavailable
	}

	s.appendPlacedEvent(ctx, saved, now)

	if _, err := s.publisher.PublishOrderEvent(ctx, events.OrderEvent{
		Type:        events.TypeOrderCreated,
		OrderID:     saved.ID,
		OrderNumber: saved.OrderNumber,
		Status:      string(saved.Status),
		OccurredAt:  now,
	}); err != nil {
		s.logger(ctx, "checkout.publish_failed", map[string]any{
			"orderId": saved.ID,
			"error":   err.Error(),
		})
	}

	if err := s.carts.Delete(ctx, sid); err != nil && !isRepoNotFound(err) {
		s.logger(ctx, "checkout.cart_clear_failed", map[string]any{
			"sessionId": observability.SanitizeSessionID(sid),
			"orderId":   saved.ID,
			"error":     err.Error(),
		})
	}

	s.logger(ctx, "checkout.order_placed", map[string]any{
		"orderId":     saved.ID,
		"orderNumber": saved.OrderNumber,
		"total":       saved.Totals.Total,
	})
	return saved, nil
}

// nextOrderNumber allocates a CMD-YYYY-NNNNNN number from the per-year counter.
func (s *checkoutService) nextOrderNumber(ctx context.Context, now time.Time) (string, error) {
	counterID := fmt.Sprintf("%s-%d", orderCounterPrefix, now.Year())
	sequence, err := s.counters.Next(ctx, counterID, 1)
	if err != nil {
		s.logger(ctx, "checkout.counter_failed", map[string]any{
			"counterId": counterID,
			"error":     err.Error(),
		})
		return "", ErrCheckoutUnavailable
	}
	return fmt.Sprintf("%s-%d-%06d", orderNumberPrefix, now.Year(), sequence), nil
}

func (s *checkoutService) appendPlacedEvent(ctx context.Context, order Order, now time.Time) {
	_, err := s.tracking.Append(ctx, domain.TrackingEvent{
		ID:         s.newID(),
		OrderID:    order.ID,
		Status:     domain.TrackingOrderPlaced,
		StatusDate: now,
		CreatedAt:  now,
	})
	if err != nil {
		s.logger(ctx, "checkout.tracking_append_failed", map[string]any{
			"orderId": order.ID,
			"error":   err.Error(),
		})
	}
}

func validateCheckoutCustomer(customer OrderCustomer) (OrderCustomer, error) {
	name := strings.TrimSpace(customer.Name)
	phone := strings.TrimSpace(customer.Phone)
	email := strings.TrimSpace(customer.Email)

	if name == "" || len(name) > maxCustomerFieldLen {
		return OrderCustomer{}, fmt.Errorf("%w: customer name is required", ErrCheckoutInvalidInput)
	}
	if phone == "" || len(phone) > maxCustomerFieldLen {
		return OrderCustomer{}, fmt.Errorf("%w: customer phone is required", ErrCheckoutInvalidInput)
	}
	if email != "" {
		if _, err := mail.ParseAddress(email); err != nil {
			return OrderCustomer{}, fmt.Errorf("%w: invalid email", ErrCheckoutInvalidInput)
		}
	}
	return OrderCustomer{Name: name, Email: email, Phone: phone}, nil
}

func buildOrderLineItems(lines []CartLine) []OrderLineItem {
	items := make([]OrderLineItem, 0, len(lines))
	for _, line := range lines {
		items = append(items, domain.OrderLineItem{
			ProductID:    line.ProductID,
			ProductName:  line.ProductName,
			CategoryName: line.CategoryName,
			CategoryKind: line.CategoryKind,
			SizeCode:     line.SizeCode,
			Quantity:     line.Quantity,
			UnitPrice:    line.UnitPrice,
			Total:        line.UnitPrice * int64(line.Quantity),
		})
	}
	return items
}
