package firestore

import (
	"context"
	"errors"
	"fmt"
	"time"

	pfirestore "github.com/atlas-naturals/api/internal/platform/firestore"
	"github.com/atlas-naturals/api/internal/repositories"
)

const healthProbeTimeout = 3 * time.Second

// Registry wires the Firestore-backed repositories behind the
// repositories.Registry interface.
type Registry struct {
	provider   *pfirestore.Provider
	categories *CategoryRepository
	products   *ProductRepository
	carts      *CartRepository
	orders     *OrderRepository
	tracking   *TrackingRepository
	counters   *CounterRepository
	health     repositories.HealthRepository
}

// RegistryOption customises registry construction.
type RegistryOption func(*registryOptions)

type registryOptions struct {
	extraChecks []repositories.DependencyCheck
}

// WithHealthCheck registers an additional dependency probe on the health report.
func WithHealthCheck(check repositories.DependencyCheck) RegistryOption {
	return func(o *registryOptions) {
		o.extraChecks = append(o.extraChecks, check)
	}
}

// NewRegistry constructs every Firestore repository from the shared provider.
func NewRegistry(provider *pfirestore.Provider, opts ...RegistryOption) (*Registry, error) {
	if provider == nil {
		return nil, errors.New("firestore registry: provider is required")
	}
	var options registryOptions
	for _, opt := range opts {
		if opt != nil {
			opt(&options)
		}
	}

	categories, err := NewCategoryRepository(provider)
	if err != nil {
		return nil, fmt.Errorf("firestore registry: %w", err)
	}
	products, err := NewProductRepository(provider)
	if err != nil {
		return nil, fmt.Errorf("firestore registry: %w", err)
	}
	carts, err := NewCartRepository(provider)
	if err != nil {
		return nil, fmt.Errorf("firestore registry: %w", err)
	}
	orders, err := NewOrderRepository(provider)
	if err != nil {
		return nil, fmt.Errorf("firestore registry: %w", err)
	}
	tracking, err := NewTrackingRepository(provider)
	if err != nil {
		return nil, fmt.Errorf("firestore registry: %w", err)
	}
	counters, err := NewCounterRepository(provider)
	if err != nil {
		return nil, fmt.Errorf("firestore registry: %w", err)
	}

	checks := append([]repositories.DependencyCheck{
		{
			Name:    "firestore",
			Timeout: healthProbeTimeout,
			Check: func(ctx context.Context) error {
				_, err := provider.Client(ctx)
				return err
			},
		},
	}, options.extraChecks...)

	health, err := repositories.NewDependencyHealthRepository(checks)
	if err != nil {
		return nil, fmt.Errorf("firestore registry: %w", err)
	}

	return &Registry{
		provider:   provider,
		categories: categories,
		products:   products,
		carts:      carts,
		orders:     orders,
		tracking:   tracking,
		counters:   counters,
		health:     health,
	}, nil
}

// Close releases the underlying Firestore client.
func (r *Registry) Close(ctx context.Context) error {
	if r == nil || r.provider == nil {
		return nil
	}
	return r.provider.Close(ctx)
}

// Categories returns the category repository.
func (r *Registry) Categories() repositories.CategoryRepository { return r.categories }

// Products returns the product repository.
func (r *Registry) Products() repositories.ProductRepository { return r.products }

// Carts returns the cart repository.
func (r *Registry) Carts() repositories.CartRepository { return r.carts }

// Orders returns the order repository.
func (r *Registry) Orders() repositories.OrderRepository { return r.orders }

// Tracking returns the tracking event repository.
func (r *Registry) Tracking() repositories.TrackingRepository { return r.tracking }

// Counters returns the counter repository.
func (r *Registry) Counters() repositories.CounterRepository { return r.counters }

// Health returns the dependency health repository.
func (r *Registry) Health() repositories.HealthRepository { return r.health }

// RunInTx executes fn within a plain context boundary. Repositories issue
// their own Firestore transactions where atomicity matters (counters), so the
// unit of work is a passthrough here.
func (r *Registry) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if fn == nil {
		return errors.New("firestore registry: fn is required")
	}
	return fn(ctx)
}

var _ repositories.Registry = (*Registry)(nil)
