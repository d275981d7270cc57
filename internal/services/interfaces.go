package services

import (
	"context"
	"time"

	domain "github.com/atlas-naturals/api/internal/domain"
)

// Type aliases expose domain models to the services package without reversing dependency direction.
type (
	Pagination         = domain.Pagination
	Category           = domain.Category
	CategoryKind       = domain.CategoryKind
	Product            = domain.Product
	SizeDefinition     = domain.SizeDefinition
	SizePrice          = domain.SizePrice
	PriceRange         = domain.PriceRange
	Cart               = domain.Cart
	CartLine           = domain.CartLine
	CitySelection      = domain.CitySelection
	DeliveryCity       = domain.DeliveryCity
	ShippingQuote      = domain.ShippingQuote
	Order              = domain.Order
	OrderStatus        = domain.OrderStatus
	OrderTotals        = domain.OrderTotals
	OrderLineItem      = domain.OrderLineItem
	OrderCustomer      = domain.OrderCustomer
	TrackingEvent      = domain.TrackingEvent
	TrackingStatus     = domain.TrackingStatus
	SystemHealthReport = domain.SystemHealthReport
)

// CatalogService exposes category and product reads plus admin catalog writes.
type CatalogService interface {
	ListCategories(ctx context.Context, activeOnly bool) ([]Category, error)
	GetCategory(ctx context.Context, idOrSlug string) (Category, error)
	ListProducts(ctx context.Context, filter ProductListFilter) (domain.CursorPage[Product], error)
	GetProduct(ctx context.Context, idOrSlug string) (Product, error)
	PriceProduct(ctx context.Context, productID string, sizeCode string) (int64, error)
	SaveCategory(ctx context.Context, cmd SaveCategoryCommand) (Category, error)
	SaveProduct(ctx context.Context, cmd SaveProductCommand) (Product, error)
}

// ProductListFilter narrows catalog product listings.
type ProductListFilter struct {
	CategoryID    string
	AvailableOnly bool
	Pagination    Pagination
}

// SaveCategoryCommand creates or updates a category from the admin surface.
type SaveCategoryCommand struct {
	ID       string
	Slug     string
	Name     string
	Names    map[string]string
	Kind     CategoryKind
	IsActive bool
}

// SaveProductCommand creates or updates a product from the admin surface.
type SaveProductCommand struct {
	ID          string
	Slug        string
	Name        string
	Names       map[string]string
	Description string
	CategoryID  string
	BasePrice   int64
	SizePrices  []SizePrice
	ImagePath   string
	IsAvailable bool
}

// CartSummary couples the persisted cart with derived pricing and shipping state.
type CartSummary struct {
	Cart            Cart
	Subtotal        int64
	TotalItems      int
	OilVolumeLiters float64
	HasOil          bool
	HasHoney        bool
	AvailableCities []DeliveryCity
	Quote           *ShippingQuote
}

// CartService manages mutable session cart state, price snapshots, and city selection.
type CartService interface {
	GetCart(ctx context.Context, sessionID string) (CartSummary, error)
	AddItem(ctx context.Context, cmd AddCartItemCommand) (CartSummary, error)
	UpdateItemQuantity(ctx context.Context, cmd UpdateCartItemCommand) (CartSummary, error)
	RemoveItem(ctx context.Context, cmd RemoveCartItemCommand) (CartSummary, error)
	SelectCity(ctx context.Context, cmd SelectCityCommand) (CartSummary, error)
	ClearCart(ctx context.Context, sessionID string) error
}

// AddCartItemCommand adds a (product, size) line to the cart, merging quantities
// when the same pair already exists.
type AddCartItemCommand struct {
	SessionID string
	ProductID string
	SizeCode  string
	Quantity  int
}

// UpdateCartItemCommand sets the quantity of an existing line. A quantity of
// zero or less removes the line.
type UpdateCartItemCommand struct {
	SessionID string
	LineID    string
	Quantity  int
}

// RemoveCartItemCommand removes a line from the cart.
type RemoveCartItemCommand struct {
	SessionID string
	LineID    string
}

// SelectCityCommand records the delivery destination on the cart.
type SelectCityCommand struct {
	SessionID  string
	City       DeliveryCity
	CustomName string
}

// CheckoutService turns a cart into a pending order.
type CheckoutService interface {
	Checkout(ctx context.Context, cmd CheckoutCommand) (Order, error)
}

// CheckoutCommand carries the customer contact and destination captured at checkout.
type CheckoutCommand struct {
	SessionID  string
	Customer   OrderCustomer
	Address    string
	City       DeliveryCity
	CustomCity string
	Notes      string
}

// OrderService encapsulates order reads, lifecycle transitions, and cancellation.
type OrderService interface {
	ListOrders(ctx context.Context, filter OrderListFilter) (domain.CursorPage[Order], error)
	GetOrder(ctx context.Context, orderID string) (Order, error)
	GetOrderByNumber(ctx context.Context, orderNumber string) (Order, error)
	ConfirmOrder(ctx context.Context, orderID string) (Order, error)
	TransitionStatus(ctx context.Context, cmd OrderStatusTransitionCommand) (Order, error)
	Cancel(ctx context.Context, cmd CancelOrderCommand) (Order, error)
	UpdateDetails(ctx context.Context, cmd UpdateOrderDetailsCommand) (Order, error)
}

// OrderListFilter narrows admin order listings.
type OrderListFilter struct {
	Status     OrderStatus
	City       DeliveryCity
	PlacedFrom time.Time
	PlacedTo   time.Time
	Pagination Pagination
}

// OrderStatusTransitionCommand moves an order to the requested lifecycle state.
type OrderStatusTransitionCommand struct {
	OrderID string
	Status  OrderStatus
}

// CancelOrderCommand cancels an order while it is still cancellable.
type CancelOrderCommand struct {
	OrderID string
	Reason  string
}

// UpdateOrderDetailsCommand edits mutable order fields before fulfillment.
type UpdateOrderDetailsCommand struct {
	OrderID  string
	Customer *OrderCustomer
	Address  *string
	Notes    *string
}

// TrackingAppendResult reports the stored event plus whether it was compatible
// with the order's lifecycle status at append time. Incompatible events are
// stored regardless; the flag is advisory.
type TrackingAppendResult struct {
	Event      TrackingEvent
	Compatible bool
}

// TrackingService manages the append-only fulfillment event log.
type TrackingService interface {
	AppendEvent(ctx context.Context, cmd AppendTrackingEventCommand) (TrackingAppendResult, error)
	ListByOrder(ctx context.Context, orderID string) ([]TrackingEvent, error)
}

// AppendTrackingEventCommand records a fulfillment checkpoint for an order.
type AppendTrackingEventCommand struct {
	OrderID    string
	Status     TrackingStatus
	Location   string
	Carrier    string
	Notes      string
	StatusDate time.Time
}

// SystemService surfaces operational health for readiness and liveness endpoints.
type SystemService interface {
	Health(ctx context.Context) (SystemHealthReport, error)
}
