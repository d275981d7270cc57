package domain

import (
	"time"
)

// Pagination defines standard cursor-based paging inputs for list operations.
type Pagination struct {
	PageSize  int
	PageToken string
}

// CursorPage packages list results with an encoded next token.
type CursorPage[T any] struct {
	Items         []T
	NextPageToken string
}

// CategoryKind tags a product category as honey or oil. The tag is stored on
// the category document; the keyword classifier in sizes.go exists only as a
// migration fallback for documents that predate the field.
type CategoryKind string

const (
	// CategoryKindHoney marks honey categories (jars, gram-based sizes).
	CategoryKindHoney CategoryKind = "honey"
	// CategoryKindOil marks oil categories (bottles, liter-based sizes).
	CategoryKindOil CategoryKind = "oil"
)

// Category groups products and determines which size family applies to them.
type Category struct {
	ID        string
	Slug      string
	Name      string
	Names     map[string]string
	Kind      CategoryKind
	IsActive  bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// SizeDefinition describes a selectable pack size within a family.
// The multiplier applies to a product's base price when no explicit
// per-size price record exists; the reference size carries 1.00.
type SizeDefinition struct {
	Code        string
	DisplayName string
	Multiplier  float64
}

// SizePrice is an absolute per-size price override attached to a product.
// When present it is the source of truth for that size.
type SizePrice struct {
	SizeCode string
	Price    int64
}

// Product is a catalog entry. BasePrice is the price of the reference
// (largest) pack size, in centimes.
type Product struct {
	ID          string
	Slug        string
	Name        string
	Names       map[string]string
	Description string
	CategoryID  string
	Category    *Category
	BasePrice   int64
	SizePrices  []SizePrice
	ImagePath   string
	IsAvailable bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// PriceRange summarises the explicit-or-derived price spread of a product.
type PriceRange struct {
	Min int64
	Max int64
}

// CartLine is a single (product, size) entry in a cart. UnitPrice is
// snapshotted when the line is first added and is not recomputed when the
// catalog price changes later.
type CartLine struct {
	ID           string
	ProductID    string
	ProductName  string
	CategoryName string
	CategoryKind CategoryKind
	SizeCode     string
	Quantity     int
	UnitPrice    int64
	AddedAt      time.Time
	UpdatedAt    *time.Time
}

// DeliveryCity identifies the delivery destination options offered at checkout.
type DeliveryCity string

const (
	// CityCasablanca is the primary delivery city.
	CityCasablanca DeliveryCity = "casablanca"
	// CityRabat is a secondary delivery city served for oil-bearing carts.
	CityRabat DeliveryCity = "rabat"
	// CityMarrakech is a secondary delivery city served for oil-bearing carts.
	CityMarrakech DeliveryCity = "marrakech"
	// CityTangier is a secondary delivery city served for oil-bearing carts.
	CityTangier DeliveryCity = "tangier"
	// CityOther is a free-text destination, available to honey-only carts.
	CityOther DeliveryCity = "other"
)

// CitySelection couples the chosen delivery city with the free-text name
// required when CityOther is selected.
type CitySelection struct {
	City       DeliveryCity
	CustomName string
}

// FreeShippingReason explains which independent threshold granted free delivery.
type FreeShippingReason string

const (
	// FreeShippingBySubtotal is granted when the cart subtotal reaches the amount threshold.
	FreeShippingBySubtotal FreeShippingReason = "subtotal_threshold"
	// FreeShippingByOilVolume is granted when the cart's total oil volume reaches the liter threshold.
	FreeShippingByOilVolume FreeShippingReason = "oil_volume"
)

// ShippingQuote is the outcome of running the shipping rules over a cart and
// a city selection.
type ShippingQuote struct {
	Cost           int64
	DeliveryWindow string
	IsFree         bool
	FreeReason     FreeShippingReason
}

// Cart aggregates the mutable shopping state for one client session.
type Cart struct {
	ID        string
	SessionID string
	Currency  string
	Lines     []CartLine
	City      *CitySelection
	CreatedAt time.Time
	UpdatedAt time.Time
}

// OrderStatus enumerates the canonical order lifecycle states.
type OrderStatus string

const (
	// OrderStatusPending is the initial state assigned at order creation.
	OrderStatusPending OrderStatus = "pending"
	// OrderStatusConfirmed indicates an operator accepted the order.
	OrderStatusConfirmed OrderStatus = "confirmed"
	// OrderStatusProcessing indicates the order is being prepared.
	OrderStatusProcessing OrderStatus = "processing"
	// OrderStatusShipped indicates the order was handed to the carrier.
	OrderStatusShipped OrderStatus = "shipped"
	// OrderStatusOutForDelivery indicates the order is on its final leg.
	OrderStatusOutForDelivery OrderStatus = "out_for_delivery"
	// OrderStatusDelivered is a terminal state: the customer received the order.
	OrderStatusDelivered OrderStatus = "delivered"
	// OrderStatusCancelled is a terminal state reachable from any non-terminal state.
	OrderStatusCancelled OrderStatus = "cancelled"
	// OrderStatusRefunded is a terminal state reachable from any non-terminal state.
	OrderStatusRefunded OrderStatus = "refunded"
)

// OrderTotals holds rolled-up monetary fields in centimes.
type OrderTotals struct {
	Subtotal int64
	Shipping int64
	Total    int64
}

// OrderLineItem is an immutable copy of a cart line taken at checkout.
type OrderLineItem struct {
	ProductID    string
	ProductName  string
	CategoryName string
	CategoryKind CategoryKind
	SizeCode     string
	Quantity     int
	UnitPrice    int64
	Total        int64
}

// OrderCustomer stores the contact snapshot captured at checkout.
type OrderCustomer struct {
	Name  string
	Email string
	Phone string
}

// Order is the persisted record of a checkout. It is never deleted; terminal
// outcomes are expressed through Status.
type Order struct {
	ID                    string
	OrderNumber           string
	TrackingCode          string
	Status                OrderStatus
	Customer              OrderCustomer
	ShippingAddress       string
	City                  DeliveryCity
	CityName              string
	Notes                 string
	Items                 []OrderLineItem
	Totals                OrderTotals
	Shipping              ShippingQuote
	OrderDate             time.Time
	EstimatedDeliveryDate time.Time
	CancelReason          string
	CancelledAt           *time.Time
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

// TrackingStatus enumerates fulfillment checkpoints recorded in the tracking
// event log. It refines the order lifecycle with intermediate logistics
// checkpoints (PACKED, IN_TRANSIT, DELIVERY_ATTEMPTED, RETURNED) that have no
// lifecycle counterpart.
type TrackingStatus string

const (
	TrackingOrderPlaced       TrackingStatus = "order_placed"
	TrackingConfirmed         TrackingStatus = "confirmed"
	TrackingProcessing        TrackingStatus = "processing"
	TrackingPacked            TrackingStatus = "packed"
	TrackingShipped           TrackingStatus = "shipped"
	TrackingInTransit         TrackingStatus = "in_transit"
	TrackingOutForDelivery    TrackingStatus = "out_for_delivery"
	TrackingDelivered         TrackingStatus = "delivered"
	TrackingDeliveryAttempted TrackingStatus = "delivery_attempted"
	TrackingCancelled         TrackingStatus = "cancelled"
	TrackingReturned          TrackingStatus = "returned"
)

// TrackingEvent is one append-only checkpoint in an order's fulfillment
// history. Events are never mutated or deduplicated after creation.
type TrackingEvent struct {
	ID         string
	OrderID    string
	Status     TrackingStatus
	Location   string
	Carrier    string
	Notes      string
	StatusDate time.Time
	CreatedAt  time.Time
}

const (
	// HealthStatusOK indicates all dependencies are healthy.
	HealthStatusOK = "ok"
	// HealthStatusDegraded indicates at least one dependency is degraded but service remains running.
	HealthStatusDegraded = "degraded"
	// HealthStatusError indicates the service or a critical dependency is unavailable.
	HealthStatusError = "error"
)

// SystemHealthCheck describes the outcome of an individual dependency probe.
type SystemHealthCheck struct {
	Status    string
	Detail    string
	Error     string
	Latency   time.Duration
	CheckedAt time.Time
}

// SystemHealthReport aggregates dependency status for health endpoints.
type SystemHealthReport struct {
	Status      string
	Checks      map[string]SystemHealthCheck
	Version     string
	Environment string
	Uptime      time.Duration
	GeneratedAt time.Time
}
