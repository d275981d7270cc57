package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	domain "github.com/atlas-naturals/api/internal/domain"
	"github.com/atlas-naturals/api/internal/platform/httpx"
	"github.com/atlas-naturals/api/internal/services"
)

// CatalogHandlers exposes the public category and product endpoints.
type CatalogHandlers struct {
	catalog services.CatalogService
}

// NewCatalogHandlers constructs the public catalog handlers.
func NewCatalogHandlers(catalog services.CatalogService) *CatalogHandlers {
	return &CatalogHandlers{catalog: catalog}
}

// Routes wires the public catalog endpoints onto the provided router.
func (h *CatalogHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Get("/categories", h.listCategories)
	r.Get("/categories/{categoryKey}", h.getCategory)
	r.Get("/products", h.listProducts)
	r.Get("/products/{productKey}", h.getProduct)
}

type categoryPayload struct {
	ID       string            `json:"id"`
	Slug     string            `json:"slug"`
	Name     string            `json:"name"`
	Names    map[string]string `json:"names,omitempty"`
	Kind     string            `json:"kind"`
	IsActive bool              `json:"isActive"`
}

type sizeOptionPayload struct {
	Code  string `json:"code"`
	Label string `json:"label"`
	Price int64  `json:"price"`
}

type productPayload struct {
	ID            string              `json:"id"`
	Slug          string              `json:"slug"`
	Name          string              `json:"name"`
	Names         map[string]string   `json:"names,omitempty"`
	Description   string              `json:"description,omitempty"`
	CategoryID    string              `json:"categoryId"`
	Category      *categoryPayload    `json:"category,omitempty"`
	BasePrice     int64               `json:"basePrice"`
	StartingPrice int64               `json:"startingPrice"`
	PriceMin      int64               `json:"priceMin"`
	PriceMax      int64               `json:"priceMax"`
	Sizes         []sizeOptionPayload `json:"sizes"`
	ImagePath     string              `json:"imagePath,omitempty"`
	IsAvailable   bool                `json:"isAvailable"`
	CreatedAt     string              `json:"createdAt,omitempty"`
	UpdatedAt     string              `json:"updatedAt,omitempty"`
}

type productListPayload struct {
	Products      []productPayload `json:"products"`
	NextPageToken string           `json:"nextPageToken,omitempty"`
}

func (h *CatalogHandlers) listCategories(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.catalog == nil {
		httpx.WriteError(ctx, w, httpx.NewError("catalog_unavailable", "catalog service is unavailable", http.StatusServiceUnavailable))
		return
	}

	activeOnly := true
	if raw := strings.TrimSpace(r.URL.Query().Get("includeInactive")); raw != "" {
		include, err := strconv.ParseBool(raw)
		if err != nil {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "includeInactive must be a boolean", http.StatusBadRequest))
			return
		}
		activeOnly = !include
	}

	categories, err := h.catalog.ListCategories(ctx, activeOnly)
	if err != nil {
		writeCatalogError(ctx, w, err)
		return
	}

	payload := make([]categoryPayload, 0, len(categories))
	for _, category := range categories {
		payload = append(payload, buildCategoryPayload(category))
	}
	writeJSONResponse(w, http.StatusOK, map[string]any{"categories": payload})
}

func (h *CatalogHandlers) getCategory(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.catalog == nil {
		httpx.WriteError(ctx, w, httpx.NewError("catalog_unavailable", "catalog service is unavailable", http.StatusServiceUnavailable))
		return
	}

	category, err := h.catalog.GetCategory(ctx, chi.URLParam(r, "categoryKey"))
	if err != nil {
		writeCatalogError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, buildCategoryPayload(category))
}

func (h *CatalogHandlers) listProducts(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.catalog == nil {
		httpx.WriteError(ctx, w, httpx.NewError("catalog_unavailable", "catalog service is unavailable", http.StatusServiceUnavailable))
		return
	}

	query := r.URL.Query()
	filter := services.ProductListFilter{
		CategoryID:    strings.TrimSpace(query.Get("category")),
		AvailableOnly: true,
		Pagination: services.Pagination{
			PageToken: strings.TrimSpace(query.Get("pageToken")),
		},
	}
	if raw := strings.TrimSpace(query.Get("includeUnavailable")); raw != "" {
		include, err := strconv.ParseBool(raw)
		if err != nil {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "includeUnavailable must be a boolean", http.StatusBadRequest))
			return
		}
		filter.AvailableOnly = !include
	}
	if raw := strings.TrimSpace(query.Get("pageSize")); raw != "" {
		size, err := strconv.Atoi(raw)
		if err != nil || size < 0 {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "pageSize must be a positive integer", http.StatusBadRequest))
			return
		}
		filter.Pagination.PageSize = size
	}

	page, err := h.catalog.ListProducts(ctx, filter)
	if err != nil {
		writeCatalogError(ctx, w, err)
		return
	}

	payload := productListPayload{
		Products:      make([]productPayload, 0, len(page.Items)),
		NextPageToken: page.NextPageToken,
	}
	for _, product := range page.Items {
		payload.Products = append(payload.Products, buildProductPayload(product))
	}
	writeJSONResponse(w, http.StatusOK, payload)
}

func (h *CatalogHandlers) getProduct(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.catalog == nil {
		httpx.WriteError(ctx, w, httpx.NewError("catalog_unavailable", "catalog service is unavailable", http.StatusServiceUnavailable))
		return
	}

	product, err := h.catalog.GetProduct(ctx, chi.URLParam(r, "productKey"))
	if err != nil {
		writeCatalogError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, buildProductPayload(product))
}

func writeCatalogError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, services.ErrCatalogInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrCatalogNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("not_found", "catalog entry not found", http.StatusNotFound))
	case errors.Is(err, services.ErrCatalogUnavailable):
		httpx.WriteError(ctx, w, httpx.NewError("catalog_unavailable", "catalog service is unavailable", http.StatusServiceUnavailable))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("catalog_error", "catalog request failed", http.StatusInternalServerError))
	}
}

func buildCategoryPayload(category services.Category) categoryPayload {
	return categoryPayload{
		ID:       category.ID,
		Slug:     category.Slug,
		Name:     category.Name,
		Names:    category.Names,
		Kind:     string(category.KindOf()),
		IsActive: category.IsActive,
	}
}

func buildProductPayload(product services.Product) productPayload {
	priceRange := domain.PriceRangeOf(product)
	payload := productPayload{
		ID:            product.ID,
		Slug:          product.Slug,
		Name:          product.Name,
		Names:         product.Names,
		Description:   product.Description,
		CategoryID:    product.CategoryID,
		BasePrice:     product.BasePrice,
		StartingPrice: domain.StartingPrice(product),
		PriceMin:      priceRange.Min,
		PriceMax:      priceRange.Max,
		ImagePath:     product.ImagePath,
		IsAvailable:   product.IsAvailable,
	}
	if product.Category != nil {
		category := buildCategoryPayload(*product.Category)
		payload.Category = &category
	}

	kind := domain.CategoryKindHoney
	if product.Category != nil {
		kind = product.Category.KindOf()
	}
	family := domain.SizeFamilyFor(kind)
	payload.Sizes = make([]sizeOptionPayload, 0, len(family))
	for _, size := range family {
		payload.Sizes = append(payload.Sizes, sizeOptionPayload{
			Code:  size.Code,
			Label: size.DisplayName,
			Price: domain.PriceFor(product, size.Code),
		})
	}

	if !product.CreatedAt.IsZero() {
		payload.CreatedAt = product.CreatedAt.UTC().Format(time.RFC3339)
	}
	if !product.UpdatedAt.IsZero() {
		payload.UpdatedAt = product.UpdatedAt.UTC().Format(time.RFC3339)
	}
	return payload
}
