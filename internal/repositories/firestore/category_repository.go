package firestore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/firestore"

	domain "github.com/atlas-naturals/api/internal/domain"
	pfirestore "github.com/atlas-naturals/api/internal/platform/firestore"
	"github.com/atlas-naturals/api/internal/repositories"
)

const categoriesCollection = "categories"

type categoryDocument struct {
	Slug      string            `firestore:"slug"`
	Name      string            `firestore:"name"`
	Names     map[string]string `firestore:"names,omitempty"`
	Kind      string            `firestore:"kind,omitempty"`
	IsActive  bool              `firestore:"isActive"`
	CreatedAt time.Time         `firestore:"createdAt"`
	UpdatedAt time.Time         `firestore:"updatedAt"`
}

// CategoryRepository persists product categories within Firestore.
type CategoryRepository struct {
	base *pfirestore.BaseRepository[categoryDocument]
}

// NewCategoryRepository constructs a Firestore-backed category repository.
func NewCategoryRepository(provider *pfirestore.Provider) (*CategoryRepository, error) {
	if provider == nil {
		return nil, errors.New("category repository requires firestore provider")
	}
	return &CategoryRepository{
		base: pfirestore.NewBaseRepository[categoryDocument](provider, categoriesCollection, nil),
	}, nil
}

// Save upserts the category document using the category ID as document identifier.
func (r *CategoryRepository) Save(ctx context.Context, category domain.Category) (domain.Category, error) {
	if r == nil || r.base == nil {
		return domain.Category{}, errors.New("category repository not initialised")
	}
	categoryID := strings.TrimSpace(category.ID)
	if categoryID == "" {
		return domain.Category{}, errors.New("category repository: category id is required")
	}

	now := time.Now().UTC()
	createdAt := category.CreatedAt.UTC()
	if createdAt.IsZero() {
		createdAt = now
	}

	doc := categoryDocument{
		Slug:      strings.ToLower(strings.TrimSpace(category.Slug)),
		Name:      strings.TrimSpace(category.Name),
		Names:     cloneStringMap(category.Names),
		Kind:      string(category.Kind),
		IsActive:  category.IsActive,
		CreatedAt: createdAt,
		UpdatedAt: now,
	}

	result, err := r.base.Set(ctx, categoryID, doc)
	if err != nil {
		return domain.Category{}, err
	}

	saved := category
	saved.ID = categoryID
	saved.Slug = doc.Slug
	saved.Name = doc.Name
	saved.CreatedAt = createdAt
	saved.UpdatedAt = result.UpdateTime
	return saved, nil
}

// FindByID fetches a single category.
func (r *CategoryRepository) FindByID(ctx context.Context, categoryID string) (domain.Category, error) {
	if r == nil || r.base == nil {
		return domain.Category{}, errors.New("category repository not initialised")
	}
	categoryID = strings.TrimSpace(categoryID)
	if categoryID == "" {
		return domain.Category{}, errors.New("category repository: category id is required")
	}
	doc, err := r.base.Get(ctx, categoryID)
	if err != nil {
		return domain.Category{}, err
	}
	return decodeCategoryDocument(doc.ID, doc.Data), nil
}

// FindBySlug resolves a category by its URL slug.
func (r *CategoryRepository) FindBySlug(ctx context.Context, slug string) (domain.Category, error) {
	if r == nil || r.base == nil {
		return domain.Category{}, errors.New("category repository not initialised")
	}
	slug = strings.ToLower(strings.TrimSpace(slug))
	if slug == "" {
		return domain.Category{}, errors.New("category repository: slug is required")
	}

	docs, err := r.base.Query(ctx, func(q firestore.Query) firestore.Query {
		return q.Where("slug", "==", slug).Limit(1)
	})
	if err != nil {
		return domain.Category{}, err
	}
	if len(docs) == 0 {
		return domain.Category{}, pfirestore.NewNotFoundError("categories.findBySlug", fmt.Errorf("category %q not found", slug))
	}
	return decodeCategoryDocument(docs[0].ID, docs[0].Data), nil
}

// List returns categories ordered by name.
func (r *CategoryRepository) List(ctx context.Context, filter repositories.CategoryListFilter) ([]domain.Category, error) {
	if r == nil || r.base == nil {
		return nil, errors.New("category repository not initialised")
	}

	docs, err := r.base.Query(ctx, func(q firestore.Query) firestore.Query {
		if filter.ActiveOnly {
			q = q.Where("isActive", "==", true)
		}
		return q.OrderBy("name", firestore.Asc)
	})
	if err != nil {
		return nil, err
	}

	categories := make([]domain.Category, 0, len(docs))
	for _, doc := range docs {
		categories = append(categories, decodeCategoryDocument(doc.ID, doc.Data))
	}
	return categories, nil
}

func decodeCategoryDocument(id string, doc categoryDocument) domain.Category {
	return domain.Category{
		ID:        id,
		Slug:      doc.Slug,
		Name:      doc.Name,
		Names:     cloneStringMap(doc.Names),
		Kind:      domain.CategoryKind(strings.ToLower(strings.TrimSpace(doc.Kind))),
		IsActive:  doc.IsActive,
		CreatedAt: doc.CreatedAt,
		UpdatedAt: doc.UpdatedAt,
	}
}

func cloneStringMap(values map[string]string) map[string]string {
	if len(values) == 0 {
		return nil
	}
	out := make(map[string]string, len(values))
	for k, v := range values {
		out[k] = v
	}
	return out
}

var _ repositories.CategoryRepository = (*CategoryRepository)(nil)
