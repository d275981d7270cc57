package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/atlas-naturals/api/internal/platform/httpx"
	"github.com/atlas-naturals/api/internal/services"
)

const maxAdminCatalogBodySize = 64 * 1024

// AdminCatalogHandlers exposes category and product management for staff.
type AdminCatalogHandlers struct {
	catalog services.CatalogService
}

// NewAdminCatalogHandlers constructs the admin catalog handlers.
func NewAdminCatalogHandlers(catalog services.CatalogService) *AdminCatalogHandlers {
	return &AdminCatalogHandlers{catalog: catalog}
}

// Routes wires the admin catalog endpoints onto the provided router.
func (h *AdminCatalogHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Post("/categories", h.saveCategory)
	r.Put("/categories/{categoryID}", h.saveCategory)
	r.Post("/products", h.saveProduct)
	r.Put("/products/{productID}", h.saveProduct)
}

type saveCategoryRequest struct {
	ID       string            `json:"id"`
	Slug     string            `json:"slug"`
	Name     string            `json:"name"`
	Names    map[string]string `json:"names"`
	Kind     string            `json:"kind"`
	IsActive bool              `json:"isActive"`
}

type sizePriceRequest struct {
	SizeCode string `json:"sizeCode"`
	Price    int64  `json:"price"`
}

type saveProductRequest struct {
	ID          string             `json:"id"`
	Slug        string             `json:"slug"`
	Name        string             `json:"name"`
	Names       map[string]string  `json:"names"`
	Description string             `json:"description"`
	CategoryID  string             `json:"categoryId"`
	BasePrice   int64              `json:"basePrice"`
	SizePrices  []sizePriceRequest `json:"sizePrices"`
	ImagePath   string             `json:"imagePath"`
	IsAvailable bool               `json:"isAvailable"`
}

func (h *AdminCatalogHandlers) saveCategory(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.catalog == nil {
		httpx.WriteError(ctx, w, httpx.NewError("catalog_unavailable", "catalog service is unavailable", http.StatusServiceUnavailable))
		return
	}

	body, err := readLimitedBody(r, maxAdminCatalogBodySize)
	if err != nil {
		writeBodyError(w, r, err)
		return
	}
	var req saveCategoryRequest
	if err := json.Unmarshal(body, &req); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "invalid JSON payload", http.StatusBadRequest))
		return
	}
	if pathID := chi.URLParam(r, "categoryID"); pathID != "" {
		req.ID = pathID
	}

	category, err := h.catalog.SaveCategory(ctx, services.SaveCategoryCommand{
		ID:       req.ID,
		Slug:     req.Slug,
		Name:     req.Name,
		Names:    req.Names,
		Kind:     services.CategoryKind(req.Kind),
		IsActive: req.IsActive,
	})
	if err != nil {
		writeCatalogError(ctx, w, err)
		return
	}
	writeJSONResponse(w, saveStatus(req.ID), buildCategoryPayload(category))
}

func (h *AdminCatalogHandlers) saveProduct(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.catalog == nil {
		httpx.WriteError(ctx, w, httpx.NewError("catalog_unavailable", "catalog service is unavailable", http.StatusServiceUnavailable))
		return
	}

	body, err := readLimitedBody(r, maxAdminCatalogBodySize)
	if err != nil {
		writeBodyError(w, r, err)
		return
	}
	var req saveProductRequest
	if err := json.Unmarshal(body, &req); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "invalid JSON payload", http.StatusBadRequest))
		return
	}
	if pathID := chi.URLParam(r, "productID"); pathID != "" {
		req.ID = pathID
	}

	cmd := services.SaveProductCommand{
		ID:          req.ID,
		Slug:        req.Slug,
		Name:        req.Name,
		Names:       req.Names,
		Description: req.Description,
		CategoryID:  req.CategoryID,
		BasePrice:   req.BasePrice,
		ImagePath:   req.ImagePath,
		IsAvailable: req.IsAvailable,
	}
	for _, sp := range req.SizePrices {
		cmd.SizePrices = append(cmd.SizePrices, services.SizePrice{SizeCode: sp.SizeCode, Price: sp.Price})
	}

	product, err := h.catalog.SaveProduct(ctx, cmd)
	if err != nil {
		writeCatalogError(ctx, w, err)
		return
	}
	writeJSONResponse(w, saveStatus(req.ID), buildProductPayload(product))
}

func saveStatus(id string) int {
	if id == "" {
		return http.StatusCreated
	}
	return http.StatusOK
}
