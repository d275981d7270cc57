package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	domain "github.com/atlas-naturals/api/internal/domain"
	"github.com/atlas-naturals/api/internal/platform/observability"
	"github.com/atlas-naturals/api/internal/repositories"
)

var (
	errCartRepositoryRequired = errors.New("cart service: repository is required")
	errCartCatalogRequired    = errors.New("cart service: catalog is required")
	errCartClockRequired      = errors.New("cart service: clock is required")
)

const maxCartLineQuantity = 99

// ErrCartInvalidInput indicates the caller supplied invalid input.
var ErrCartInvalidInput = errors.New("cart service: invalid input")

// ErrCartUnavailable indicates the cart service cannot fulfil the request due to backend issues.
var ErrCartUnavailable = errors.New("cart service: unavailable")

// ErrCartNotFound indicates the requested cart line does not exist.
var ErrCartNotFound = errors.New("cart service: not found")

// ErrCartProductUnavailable indicates the product cannot be added to the cart.
var ErrCartProductUnavailable = errors.New("cart service: product unavailable")

type productFinder interface {
	GetProduct(ctx context.Context, idOrSlug string) (Product, error)
}

// CartServiceDeps wires the repository and catalog dependencies for cart operations.
type CartServiceDeps struct {
	Repository      repositories.CartRepository
	Catalog         productFinder
	Clock           func() time.Time
	DefaultCurrency string
	Logger          func(context.Context, string, map[string]any)
	IDGenerator     func() string
}

type cartService struct {
	repo     repositories.CartRepository
	catalog  productFinder
	newID    func() string
	now      func() time.Time
	currency string
	logger   func(context.Context, string, map[string]any)
}

// NewCartService constructs a CartService enforcing dependency validation.
func NewCartService(deps CartServiceDeps) (CartService, error) {
	if deps.Repository == nil {
		return nil, errCartRepositoryRequired
	}
	if deps.Catalog == nil {
		return nil, errCartCatalogRequired
	}
	if deps.Clock == nil {
		return nil, errCartClockRequired
	}

	defaultCurrency := strings.ToUpper(strings.TrimSpace(deps.DefaultCurrency))
	if defaultCurrency == "" {
		defaultCurrency = "MAD"
	}

	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	idGen := deps.IDGenerator
	if idGen == nil {
		idGen = func() string { return ulid.Make().String() }
	}

	return &cartService{
		repo:     deps.Repository,
		catalog:  deps.Catalog,
		newID:    idGen,
		now:      func() time.Time { return deps.Clock().UTC() },
		currency: defaultCurrency,
		logger:   logger,
	}, nil
}

// GetCart loads the cart for the session. A missing cart yields an empty
// summary without persisting anything.
func (s *cartService) GetCart(ctx context.Context, sessionID string) (CartSummary, error) {
	sid := strings.TrimSpace(sessionID)
	if sid == "" {
		return CartSummary{}, ErrCartInvalidInput
	}

	cart, err := s.repo.Get(ctx, sid)
	if err != nil {
		if isRepoNotFound(err) {
			return s.summarise(s.newCart(sid)), nil
		}
		return CartSummary{}, translateCartRepoError(err)
	}
	return s.summarise(cart), nil
}

// AddItem adds a (product, size) line, merging quantities when the same pair
// already exists. The unit price is snapshotted from the catalog at add time.
func (s *cartService) AddItem(ctx context.Context, cmd AddCartItemCommand) (CartSummary, error) {
	sid := strings.TrimSpace(cmd.SessionID)
	productID := strings.TrimSpace(cmd.ProductID)
	if sid == "" || productID == "" || cmd.Quantity <= 0 {
		return CartSummary{}, ErrCartInvalidInput
	}
	if cmd.Quantity > maxCartLineQuantity {
		return CartSummary{}, ErrCartInvalidInput
	}

	product, err := s.catalog.GetProduct(ctx, productID)
	if err != nil {
		if errors.Is(err, ErrCatalogNotFound) {
			return CartSummary{}, fmt.Errorf("%w: product %s", ErrCartInvalidInput, productID)
		}
		return CartSummary{}, ErrCartUnavailable
	}
	if !product.IsAvailable {
		return CartSummary{}, ErrCartProductUnavailable
	}

	kind := domain.CategoryKindHoney
	categoryName := ""
	if product.Category != nil {
		kind = product.Category.KindOf()
		categoryName = product.Category.Name
	}

	sizeCode := domain.CanonicalSizeCode(cmd.SizeCode)
	if sizeCode == "" {
		return CartSummary{}, fmt.Errorf("%w: size code is required", ErrCartInvalidInput)
	}
	if _, ok := domain.FindSize(kind, sizeCode); !ok {
		return CartSummary{}, fmt.Errorf("%w: unknown size %s", ErrCartInvalidInput, sizeCode)
	}

	cart, err := s.loadOrCreate(ctx, sid)
	if err != nil {
		return CartSummary{}, err
	}

	now := s.now()
	merged := false
	for i := range cart.Lines {
		if cart.Lines[i].ProductID == product.ID && domain.SizeCodesEqual(cart.Lines[i].SizeCode, sizeCode) {
			quantity := cart.Lines[i].Quantity + cmd.Quantity
			if quantity > maxCartLineQuantity {
				quantity = maxCartLineQuantity
			}
			cart.Lines[i].Quantity = quantity
			updatedAt := now
			cart.Lines[i].UpdatedAt = &updatedAt
			merged = true
			break
		}
	}
	if !merged {
		cart.Lines = append(cart.Lines, domain.CartLine{
			ID:           s.newID(),
			ProductID:    product.ID,
			ProductName:  product.Name,
			CategoryName: categoryName,
			CategoryKind: kind,
			SizeCode:     sizeCode,
			Quantity:     cmd.Quantity,
			UnitPrice:    domain.PriceFor(product, sizeCode),
			AddedAt:      now,
		})
	}

	return s.persist(ctx, cart)
}

// UpdateItemQuantity sets the quantity of an existing line. A quantity of zero
// or less removes the line.
func (s *cartService) UpdateItemQuantity(ctx context.Context, cmd UpdateCartItemCommand) (CartSummary, error) {
	sid := strings.TrimSpace(cmd.SessionID)
	lineID := strings.TrimSpace(cmd.LineID)
	if sid == "" || lineID == "" {
		return CartSummary{}, ErrCartInvalidInput
	}
	if cmd.Quantity > maxCartLineQuantity {
		return CartSummary{}, ErrCartInvalidInput
	}

	cart, err := s.load(ctx, sid)
	if err != nil {
		return CartSummary{}, err
	}

	idx := lineIndex(cart.Lines, lineID)
	if idx < 0 {
		return CartSummary{}, ErrCartNotFound
	}

	if cmd.Quantity <= 0 {
		cart.Lines = append(cart.Lines[:idx], cart.Lines[idx+1:]...)
	} else {
		cart.Lines[idx].Quantity = cmd.Quantity
		updatedAt := s.now()
		cart.Lines[idx].UpdatedAt = &updatedAt
	}

	return s.persist(ctx, cart)
}

// RemoveItem removes a line from the cart.
func (s *cartService) RemoveItem(ctx context.Context, cmd RemoveCartItemCommand) (CartSummary, error) {
	sid := strings.TrimSpace(cmd.SessionID)
	lineID := strings.TrimSpace(cmd.LineID)
	if sid == "" || lineID == "" {
		return CartSummary{}, ErrCartInvalidInput
	}

	cart, err := s.load(ctx, sid)
	if err != nil {
		return CartSummary{}, err
	}

	idx := lineIndex(cart.Lines, lineID)
	if idx < 0 {
		return CartSummary{}, ErrCartNotFound
	}
	cart.Lines = append(cart.Lines[:idx], cart.Lines[idx+1:]...)

	return s.persist(ctx, cart)
}

// SelectCity records the delivery destination after validating it against the
// cart contents.
func (s *cartService) SelectCity(ctx context.Context, cmd SelectCityCommand) (CartSummary, error) {
	sid := strings.TrimSpace(cmd.SessionID)
	if sid == "" {
		return CartSummary{}, ErrCartInvalidInput
	}

	cart, err := s.load(ctx, sid)
	if err != nil {
		return CartSummary{}, err
	}

	selection := &domain.CitySelection{
		City:       domain.DeliveryCity(strings.ToLower(strings.TrimSpace(string(cmd.City)))),
		CustomName: strings.TrimSpace(cmd.CustomName),
	}
	if err := domain.ValidateCitySelection(cart.Lines, selection); err != nil {
		return CartSummary{}, fmt.Errorf("%w: %s", ErrCartInvalidInput, err)
	}
	cart.City = selection

	return s.persist(ctx, cart)
}

// ClearCart removes the cart document. Clearing a missing cart is a no-op.
func (s *cartService) ClearCart(ctx context.Context, sessionID string) error {
	sid := strings.TrimSpace(sessionID)
	if sid == "" {
		return ErrCartInvalidInput
	}
	if err := s.repo.Delete(ctx, sid); err != nil && !isRepoNotFound(err) {
		return translateCartRepoError(err)
	}
	return nil
}

func (s *cartService) newCart(sessionID string) Cart {
	now := s.now()
	return domain.Cart{
		ID:        sessionID,
		SessionID: sessionID,
		Currency:  s.currency,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func (s *cartService) load(ctx context.Context, sessionID string) (Cart, error) {
	cart, err := s.repo.Get(ctx, sessionID)
	if err != nil {
		if isRepoNotFound(err) {
			return Cart{}, ErrCartNotFound
		}
		return Cart{}, translateCartRepoError(err)
	}
	return cart, nil
}

func (s *cartService) loadOrCreate(ctx context.Context, sessionID string) (Cart, error) {
	cart, err := s.repo.Get(ctx, sessionID)
	if err != nil {
		if isRepoNotFound(err) {
			return s.newCart(sessionID), nil
		}
		return Cart{}, translateCartRepoError(err)
	}
	if strings.TrimSpace(cart.Currency) == "" {
		cart.Currency = s.currency
	}
	return cart, nil
}

// persist saves the cart after dropping a city selection the remaining lines
// no longer allow, then returns the derived summary.
func (s *cartService) persist(ctx context.Context, cart Cart) (CartSummary, error) {
	if cart.City != nil {
		if err := domain.ValidateCitySelection(cart.Lines, cart.City); err != nil {
			s.logger(ctx, "cart.city_selection_reset", map[string]any{
				"sessionId": observability.SanitizeSessionID(cart.SessionID),
				"city":      string(cart.City.City),
				"reason":    err.Error(),
			})
			cart.City = nil
		}
	}

	saved, err := s.repo.Save(ctx, cart)
	if err != nil {
		return CartSummary{}, translateCartRepoError(err)
	}
	return s.summarise(saved), nil
}

func (s *cartService) summarise(cart Cart) CartSummary {
	summary := CartSummary{
		Cart:            cart,
		Subtotal:        domain.Subtotal(cart.Lines),
		TotalItems:      domain.TotalItems(cart.Lines),
		OilVolumeLiters: domain.TotalOilVolumeLiters(cart.Lines),
		HasOil:          domain.HasOil(cart.Lines),
		HasHoney:        domain.HasHoney(cart.Lines),
		AvailableCities: domain.AvailableCities(cart.Lines),
	}
	if cart.City != nil && domain.ValidateCitySelection(cart.Lines, cart.City) == nil {
		quote := domain.QuoteShipping(cart.Lines, cart.City)
		summary.Quote = &quote
	}
	return summary
}

func lineIndex(lines []CartLine, lineID string) int {
	for i := range lines {
		if lines[i].ID == lineID {
			return i
		}
	}
	return -1
}

func translateCartRepoError(err error) error {
	if err == nil {
		return nil
	}
	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) {
		switch {
		case repoErr.IsNotFound():
			return ErrCartNotFound
		case repoErr.IsUnavailable():
			return ErrCartUnavailable
		}
	}
	return ErrCartUnavailable
}
