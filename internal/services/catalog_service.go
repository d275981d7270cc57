package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	domain "github.com/atlas-naturals/api/internal/domain"
	"github.com/atlas-naturals/api/internal/repositories"
)

const (
	defaultProductPageSize = 24
	maxProductPageSize     = 100
)

var (
	// ErrCatalogInvalidInput indicates the caller supplied invalid data to a catalog operation.
	ErrCatalogInvalidInput = errors.New("catalog service: invalid input")
	// ErrCatalogNotFound indicates the requested category or product does not exist.
	ErrCatalogNotFound = errors.New("catalog service: not found")
	// ErrCatalogUnavailable indicates the catalog backend cannot fulfil the request.
	ErrCatalogUnavailable = errors.New("catalog service: unavailable")
)

// CatalogServiceDeps bundles constructor inputs for the catalog service.
type CatalogServiceDeps struct {
	Categories  repositories.CategoryRepository
	Products    repositories.ProductRepository
	Clock       func() time.Time
	IDGenerator func() string
	Logger      func(ctx context.Context, event string, fields map[string]any)
}

type catalogService struct {
	categories repositories.CategoryRepository
	products   repositories.ProductRepository
	now        func() time.Time
	newID      func() string
	logger     func(ctx context.Context, event string, fields map[string]any)
}

// NewCatalogService constructs the catalog service with the supplied dependencies.
func NewCatalogService(deps CatalogServiceDeps) (CatalogService, error) {
	if deps.Categories == nil {
		return nil, fmt.Errorf("catalog service: category repository is required")
	}
	if deps.Products == nil {
		return nil, fmt.Errorf("catalog service: product repository is required")
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
	return &catalogService{
		categories: deps.Categories,
		products:   deps.Products,
		now:        func() time.Time { return clock().UTC() },
		newID:      idGen,
		logger:     logger,
	}, nil
}

func (s *catalogService) ListCategories(ctx context.Context, activeOnly bool) ([]Category, error) {
	categories, err := s.categories.List(ctx, repositories.CategoryListFilter{ActiveOnly: activeOnly})
	if err != nil {
		return nil, translateCatalogRepoError(err)
	}
	return categories, nil
}

func (s *catalogService) GetCategory(ctx context.Context, idOrSlug string) (Category, error) {
	key := strings.TrimSpace(idOrSlug)
	if key == "" {
		return Category{}, ErrCatalogInvalidInput
	}

	category, err := s.categories.FindByID(ctx, key)
	if err == nil {
		return category, nil
	}
	if !isRepoNotFound(err) {
		return Category{}, translateCatalogRepoError(err)
	}

	category, err = s.categories.FindBySlug(ctx, strings.ToLower(key))
	if err != nil {
		return Category{}, translateCatalogRepoError(err)
	}
	return category, nil
}

func (s *catalogService) ListProducts(ctx context.Context, filter ProductListFilter) (domain.CursorPage[Product], error) {
	pageSize := filter.Pagination.PageSize
	if pageSize <= 0 {
		pageSize = defaultProductPageSize
	}
	if pageSize > maxProductPageSize {
		pageSize = maxProductPageSize
	}

	page, err := s.products.List(ctx, repositories.ProductListFilter{
		CategoryID:    strings.TrimSpace(filter.CategoryID),
		AvailableOnly: filter.AvailableOnly,
		Pagination: domain.Pagination{
			PageSize:  pageSize,
			PageToken: strings.TrimSpace(filter.Pagination.PageToken),
		},
	})
	if err != nil {
		return domain.CursorPage[Product]{}, translateCatalogRepoError(err)
	}

	s.attachCategories(ctx, page.Items)
	return page, nil
}

func (s *catalogService) GetProduct(ctx context.Context, idOrSlug string) (Product, error) {
	key := strings.TrimSpace(idOrSlug)
	if key == "" {
		return Product{}, ErrCatalogInvalidInput
	}

	product, err := s.products.FindByID(ctx, key)
	if err != nil {
		if !isRepoNotFound(err) {
			return Product{}, translateCatalogRepoError(err)
		}
		product, err = s.products.FindBySlug(ctx, strings.ToLower(key))
		if err != nil {
			return Product{}, translateCatalogRepoError(err)
		}
	}

	if product.Category == nil && strings.TrimSpace(product.CategoryID) != "" {
		if category, err := s.categories.FindByID(ctx, product.CategoryID); err == nil {
			product.Category = &category
		}
	}
	return product, nil
}

// PriceProduct resolves the unit price for one product size using explicit
// per-size prices first and the size family multipliers as fallback.
func (s *catalogService) PriceProduct(ctx context.Context, productID string, sizeCode string) (int64, error) {
	product, err := s.GetProduct(ctx, productID)
	if err != nil {
		return 0, err
	}
	return domain.PriceFor(product, sizeCode), nil
}

func (s *catalogService) SaveCategory(ctx context.Context, cmd SaveCategoryCommand) (Category, error) {
	name := strings.TrimSpace(cmd.Name)
	if name == "" {
		return Category{}, ErrCatalogInvalidInput
	}

	kind := cmd.Kind
	switch kind {
	case domain.CategoryKindHoney, domain.CategoryKindOil:
	case "":
		kind = domain.ClassifyCategoryName(name)
	default:
		return Category{}, ErrCatalogInvalidInput
	}

	categoryID := strings.TrimSpace(cmd.ID)
	var existing Category
	if categoryID == "" {
		categoryID = s.newID()
	} else {
		found, err := s.categories.FindByID(ctx, categoryID)
		if err != nil && !isRepoNotFound(err) {
			return Category{}, translateCatalogRepoError(err)
		}
		existing = found
	}

	category := domain.Category{
		ID:        categoryID,
		Slug:      strings.ToLower(strings.TrimSpace(cmd.Slug)),
		Name:      name,
		Names:     cmd.Names,
		Kind:      kind,
		IsActive:  cmd.IsActive,
		CreatedAt: existing.CreatedAt,
	}
	if category.Slug == "" {
		category.Slug = slugify(name)
	}

	saved, err := s.categories.Save(ctx, category)
	if err != nil {
		return Category{}, translateCatalogRepoError(err)
	}

	s.logger(ctx, "catalog.category_saved", map[string]any{
		"categoryId": saved.ID,
		"kind":       string(saved.Kind),
	})
	return saved, nil
}

func (s *catalogService) SaveProduct(ctx context.Context, cmd SaveProductCommand) (Product, error) {
	name := strings.TrimSpace(cmd.Name)
	if name == "" || cmd.BasePrice <= 0 {
		return Product{}, ErrCatalogInvalidInput
	}
	categoryID := strings.TrimSpace(cmd.CategoryID)
	if categoryID == "" {
		return Product{}, ErrCatalogInvalidInput
	}

	category, err := s.categories.FindByID(ctx, categoryID)
	if err != nil {
		if isRepoNotFound(err) {
			return Product{}, ErrCatalogInvalidInput
		}
		return Product{}, translateCatalogRepoError(err)
	}

	sizePrices := make([]SizePrice, 0, len(cmd.SizePrices))
	for _, sp := range cmd.SizePrices {
		code := domain.CanonicalSizeCode(sp.SizeCode)
		if code == "" || sp.Price <= 0 {
			return Product{}, ErrCatalogInvalidInput
		}
		if _, ok := domain.FindSize(category.KindOf(), code); !ok {
			return Product{}, ErrCatalogInvalidInput
		}
		sizePrices = append(sizePrices, SizePrice{SizeCode: code, Price: sp.Price})
	}
	if len(sizePrices) == 0 {
		sizePrices = nil
	}

	productID := strings.TrimSpace(cmd.ID)
	var existing Product
	if productID == "" {
		productID = s.newID()
	} else {
		found, err := s.products.FindByID(ctx, productID)
		if err != nil && !isRepoNotFound(err) {
			return Product{}, translateCatalogRepoError(err)
		}
		existing = found
	}

	product := domain.Product{
		ID:          productID,
		Slug:        strings.ToLower(strings.TrimSpace(cmd.Slug)),
		Name:        name,
		Names:       cmd.Names,
		Description: strings.TrimSpace(cmd.Description),
		CategoryID:  categoryID,
		Category:    &category,
		BasePrice:   cmd.BasePrice,
		SizePrices:  sizePrices,
		ImagePath:   strings.TrimSpace(cmd.ImagePath),
		IsAvailable: cmd.IsAvailable,
		CreatedAt:   existing.CreatedAt,
	}
	if product.Slug == "" {
		product.Slug = slugify(name)
	}

	saved, err := s.products.Save(ctx, product)
	if err != nil {
		return Product{}, translateCatalogRepoError(err)
	}
	if saved.Category == nil {
		saved.Category = &category
	}

	s.logger(ctx, "catalog.product_saved", map[string]any{
		"productId":  saved.ID,
		"categoryId": saved.CategoryID,
	})
	return saved, nil
}

// attachCategories hydrates the Category pointer on listing results so price
// resolution downstream does not fall back to the keyword classifier. Lookups
// are memoised per call; a failed lookup leaves the pointer nil.
func (s *catalogService) attachCategories(ctx context.Context, products []Product) {
	cache := make(map[string]*Category)
	for i := range products {
		id := strings.TrimSpace(products[i].CategoryID)
		if products[i].Category != nil || id == "" {
			continue
		}
		if cached, ok := cache[id]; ok {
			products[i].Category = cached
			continue
		}
		category, err := s.categories.FindByID(ctx, id)
		if err != nil {
			s.logger(ctx, "catalog.category_lookup_failed", map[string]any{
				"productId":  products[i].ID,
				"categoryId": id,
				"error":      err.Error(),
			})
			cache[id] = nil
			continue
		}
		cache[id] = &category
		products[i].Category = &category
	}
}

func slugify(name string) string {
	var b strings.Builder
	pendingDash := false
	for _, r := range strings.ToLower(strings.TrimSpace(name)) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			if pendingDash && b.Len() > 0 {
				b.WriteByte('-')
			}
			pendingDash = false
			b.WriteRune(r)
		default:
			pendingDash = true
		}
	}
	return b.String()
}

func isRepoNotFound(err error) bool {
	var repoErr repositories.RepositoryError
	return errors.As(err, &repoErr) && repoErr.IsNotFound()
}

func translateCatalogRepoError(err error) error {
	if err == nil {
		return nil
	}
	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) {
		switch {
		case repoErr.IsNotFound():
			return ErrCatalogNotFound
		case repoErr.IsUnavailable():
			return ErrCatalogUnavailable
		}
	}
	return ErrCatalogUnavailable
}
