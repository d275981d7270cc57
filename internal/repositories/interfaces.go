package repositories

import (
	"context"
	"time"

	domain "github.com/atlas-naturals/api/internal/domain"
)

// Registry exposes typed repository accessors and lifecycle hooks for dependency injection.
type Registry interface {
	Close(ctx context.Context) error

	Categories() CategoryRepository
	Products() ProductRepository
	Carts() CartRepository
	Orders() OrderRepository
	Tracking() TrackingRepository
	Counters() CounterRepository
	Health() HealthRepository
	UnitOfWork
}

// RepositoryError wraps low-level persistence failures with categorisation used by services.
type RepositoryError interface {
	error
	IsNotFound() bool
	IsConflict() bool
	IsUnavailable() bool
}

// UnitOfWork allows grouping repository operations in a transactional boundary when supported.
type UnitOfWork interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// CategoryRepository persists product categories.
type CategoryRepository interface {
	Save(ctx context.Context, category domain.Category) (domain.Category, error)
	FindByID(ctx context.Context, categoryID string) (domain.Category, error)
	FindBySlug(ctx context.Context, slug string) (domain.Category, error)
	List(ctx context.Context, filter CategoryListFilter) ([]domain.Category, error)
}

// CategoryListFilter narrows category listings.
type CategoryListFilter struct {
	ActiveOnly bool
}

// ProductRepository persists catalog products and their per-size price overrides.
type ProductRepository interface {
	Save(ctx context.Context, product domain.Product) (domain.Product, error)
	FindByID(ctx context.Context, productID string) (domain.Product, error)
	FindBySlug(ctx context.Context, slug string) (domain.Product, error)
	List(ctx context.Context, filter ProductListFilter) (domain.CursorPage[domain.Product], error)
}

// ProductListFilter narrows product listings.
type ProductListFilter struct {
	CategoryID    string
	AvailableOnly bool
	Pagination    domain.Pagination
}

// CartRepository owns session cart persistence. One document per storefront session.
type CartRepository interface {
	Get(ctx context.Context, sessionID string) (domain.Cart, error)
	Save(ctx context.Context, cart domain.Cart) (domain.Cart, error)
	Delete(ctx context.Context, sessionID string) error
}

// OrderRepository persists orders. Orders are never deleted; terminal outcomes
// are expressed through status.
type OrderRepository interface {
	Insert(ctx context.Context, order domain.Order) (domain.Order, error)
	FindByID(ctx context.Context, orderID string) (domain.Order, error)
	FindByNumber(ctx context.Context, orderNumber string) (domain.Order, error)
	Save(ctx context.Context, order domain.Order) (domain.Order, error)
	List(ctx context.Context, filter OrderListFilter) (domain.CursorPage[domain.Order], error)
}

// OrderListFilter narrows order listings for the admin surface.
type OrderListFilter struct {
	Status     domain.OrderStatus
	City       domain.DeliveryCity
	PlacedFrom time.Time
	PlacedTo   time.Time
	Pagination domain.Pagination
}

// TrackingRepository stores the append-only tracking event log per order.
type TrackingRepository interface {
	Append(ctx context.Context, event domain.TrackingEvent) (domain.TrackingEvent, error)
	ListByOrder(ctx context.Context, orderID string) ([]domain.TrackingEvent, error)
}

// CounterConfig adjusts counter behaviour such as step size and bounds.
type CounterConfig struct {
	Step         int64
	MaxValue     *int64
	InitialValue *int64
}

// CounterRepository provides atomic monotonically increasing sequences, used
// for human-readable order numbers.
type CounterRepository interface {
	Next(ctx context.Context, counterID string, step int64) (int64, error)
	Configure(ctx context.Context, counterID string, cfg CounterConfig) error
}

// HealthRepository aggregates dependency probes for the health endpoints.
type HealthRepository interface {
	Collect(ctx context.Context) (domain.SystemHealthReport, error)
}
