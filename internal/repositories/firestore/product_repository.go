package firestore

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/firestore"

	domain "github.com/atlas-naturals/api/internal/domain"
	pfirestore "github.com/atlas-naturals/api/internal/platform/firestore"
	"github.com/atlas-naturals/api/internal/repositories"
)

const productsCollection = "products"

type productDocument struct {
	Slug        string                 `firestore:"slug"`
	Name        string                 `firestore:"name"`
	Names       map[string]string      `firestore:"names,omitempty"`
	Description string                 `firestore:"description,omitempty"`
	CategoryID  string                 `firestore:"categoryId"`
	BasePrice   int64                  `firestore:"basePrice"`
	SizePrices  []sizePriceDocument    `firestore:"sizePrices,omitempty"`
	ImagePath   string                 `firestore:"imagePath,omitempty"`
	IsAvailable bool                   `firestore:"isAvailable"`
	CreatedAt   time.Time              `firestore:"createdAt"`
	UpdatedAt   time.Time              `firestore:"updatedAt"`
}

type sizePriceDocument struct {
	SizeCode string `firestore:"sizeCode"`
	Price    int64  `firestore:"price"`
}

// ProductRepository persists catalog products within Firestore.
type ProductRepository struct {
	base *pfirestore.BaseRepository[productDocument]
}

// NewProductRepository constructs a Firestore-backed product repository.
func NewProductRepository(provider *pfirestore.Provider) (*ProductRepository, error) {
	if provider == nil {
		return nil, errors.New("product repository requires firestore provider")
	}
	return &ProductRepository{
		base: pfirestore.NewBaseRepository[productDocument](provider, productsCollection, nil),
	}, nil
}

// Save upserts the product document using the product ID as document identifier.
func (r *ProductRepository) Save(ctx context.Context, product domain.Product) (domain.Product, error) {
	if r == nil || r.base == nil {
		return domain.Product{}, errors.New("product repository not initialised")
	}
	productID := strings.TrimSpace(product.ID)
	if productID == "" {
		return domain.Product{}, errors.New("product repository: product id is required")
	}
	if strings.TrimSpace(product.CategoryID) == "" {
		return domain.Product{}, errors.New("product repository: category id is required")
	}

	now := time.Now().UTC()
	createdAt := product.CreatedAt.UTC()
	if createdAt.IsZero() {
		createdAt = now
	}

	doc := productDocument{
		Slug:        strings.ToLower(strings.TrimSpace(product.Slug)),
		Name:        strings.TrimSpace(product.Name),
		Names:       cloneStringMap(product.Names),
		Description: strings.TrimSpace(product.Description),
		CategoryID:  strings.TrimSpace(product.CategoryID),
		BasePrice:   product.BasePrice,
		SizePrices:  encodeSizePrices(product.SizePrices),
		ImagePath:   strings.TrimSpace(product.ImagePath),
		IsAvailable: product.IsAvailable,
		CreatedAt:   createdAt,
		UpdatedAt:   now,
	}

	result, err := r.base.Set(ctx, productID, doc)
	if err != nil {
		return domain.Product{}, err
	}

	saved := decodeProductDocument(productID, doc)
	saved.Category = product.Category
	saved.UpdatedAt = result.UpdateTime
	return saved, nil
}

// FindByID fetches a single product.
func (r *ProductRepository) FindByID(ctx context.Context, productID string) (domain.Product, error) {
	if r == nil || r.base == nil {
		return domain.Product{}, errors.New("product repository not initialised")
	}
	productID = strings.TrimSpace(productID)
	if productID == "" {
		return domain.Product{}, errors.New("product repository: product id is required")
	}
	doc, err := r.base.Get(ctx, productID)
	if err != nil {
		return domain.Product{}, err
	}
	return decodeProductDocument(doc.ID, doc.Data), nil
}

// FindBySlug resolves a product by its URL slug.
func (r *ProductRepository) FindBySlug(ctx context.Context, slug string) (domain.Product, error) {
	if r == nil || r.base == nil {
		return domain.Product{}, errors.New("product repository not initialised")
	}
	slug = strings.ToLower(strings.TrimSpace(slug))
	if slug == "" {
		return domain.Product{}, errors.New("product repository: slug is required")
	}

	docs, err := r.base.Query(ctx, func(q firestore.Query) firestore.Query {
		return q.Where("slug", "==", slug).Limit(1)
	})
	if err != nil {
		return domain.Product{}, err
	}
	if len(docs) == 0 {
		return domain.Product{}, pfirestore.NewNotFoundError("products.findBySlug", fmt.Errorf("product %q not found", slug))
	}
	return decodeProductDocument(docs[0].ID, docs[0].Data), nil
}

// List returns products ordered by most recent update, filtered by category and availability.
func (r *ProductRepository) List(ctx context.Context, filter repositories.ProductListFilter) (domain.CursorPage[domain.Product], error) {
	if r == nil || r.base == nil {
		return domain.CursorPage[domain.Product]{}, errors.New("product repository not initialised")
	}

	limit := filter.Pagination.PageSize
	if limit < 0 {
		limit = 0
	}
	fetchLimit := limit
	if limit > 0 {
		fetchLimit = limit + 1
	}

	var startAfter []any
	if token := strings.TrimSpace(filter.Pagination.PageToken); token != "" {
		tokenTime, tokenID, err := decodeListToken(token)
		if err != nil {
			return domain.CursorPage[domain.Product]{}, fmt.Errorf("product repository: invalid page token: %w", err)
		}
		startAfter = []any{tokenTime, tokenID}
	}

	categoryID := strings.TrimSpace(filter.CategoryID)

	docs, err := r.base.Query(ctx, func(q firestore.Query) firestore.Query {
		if categoryID != "" {
			q = q.Where("categoryId", "==", categoryID)
		}
		if filter.AvailableOnly {
			q = q.Where("isAvailable", "==", true)
		}
		q = q.OrderBy("updatedAt", firestore.Desc).OrderBy(firestore.DocumentID, firestore.Desc)
		if len(startAfter) == 2 {
			q = q.StartAfter(startAfter...)
		}
		if fetchLimit > 0 {
			q = q.Limit(fetchLimit)
		}
		return q
	})
	if err != nil {
		return domain.CursorPage[domain.Product]{}, err
	}

	valueDocs, tokenDoc := pageWindow(docs, limit)
	nextToken := ""
	if tokenDoc != nil {
		tokenTime := tokenDoc.Data.UpdatedAt
		if tokenTime.IsZero() {
			tokenTime = tokenDoc.UpdateTime
		}
		nextToken = encodeListToken(tokenTime, tokenDoc.ID)
	}

	items := make([]domain.Product, 0, len(valueDocs))
	for _, doc := range valueDocs {
		items = append(items, decodeProductDocument(doc.ID, doc.Data))
	}

	return domain.CursorPage[domain.Product]{
		Items:         items,
		NextPageToken: nextToken,
	}, nil
}

func decodeProductDocument(id string, doc productDocument) domain.Product {
	prices := make([]domain.SizePrice, 0, len(doc.SizePrices))
	for _, price := range doc.SizePrices {
		code := strings.TrimSpace(price.SizeCode)
		if code == "" {
			continue
		}
		prices = append(prices, domain.SizePrice{SizeCode: code, Price: price.Price})
	}
	if len(prices) == 0 {
		prices = nil
	}
	return domain.Product{
		ID:          id,
		Slug:        doc.Slug,
		Name:        doc.Name,
		Names:       cloneStringMap(doc.Names),
		Description: doc.Description,
		CategoryID:  doc.CategoryID,
		BasePrice:   doc.BasePrice,
		SizePrices:  prices,
		ImagePath:   doc.ImagePath,
		IsAvailable: doc.IsAvailable,
		CreatedAt:   doc.CreatedAt,
		UpdatedAt:   doc.UpdatedAt,
	}
}

func encodeSizePrices(prices []domain.SizePrice) []sizePriceDocument {
	if len(prices) == 0 {
		return nil
	}
	out := make([]sizePriceDocument, 0, len(prices))
	for _, price := range prices {
		code := strings.TrimSpace(price.SizeCode)
		if code == "" {
			continue
		}
		out = append(out, sizePriceDocument{SizeCode: code, Price: price.Price})
	}
	return out
}

func encodeListToken(updatedAt time.Time, docID string) string {
	payload := fmt.Sprintf("%s|%s", updatedAt.UTC().Format(time.RFC3339Nano), docID)
	return base64.RawURLEncoding.EncodeToString([]byte(payload))
}

func decodeListToken(token string) (time.Time, string, error) {
	data, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return time.Time{}, "", err
	}
	parts := strings.SplitN(string(data), "|", 2)
	if len(parts) != 2 {
		return time.Time{}, "", errors.New("invalid token structure")
	}
	ts, err := time.Parse(time.RFC3339Nano, parts[0])
	if err != nil {
		return time.Time{}, "", err
	}
	return ts, parts[1], nil
}

var _ repositories.ProductRepository = (*ProductRepository)(nil)
