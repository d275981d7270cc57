package firestore

import (
	"context"
	"errors"
	"strings"
	"time"

	"cloud.google.com/go/firestore"

	domain "github.com/atlas-naturals/api/internal/domain"
	pfirestore "github.com/atlas-naturals/api/internal/platform/firestore"
	"github.com/atlas-naturals/api/internal/repositories"
)

const cartsCollection = "carts"

type cartDocument struct {
	Currency  string             `firestore:"currency"`
	Lines     []cartLineDocument `firestore:"lines,omitempty"`
	City      *cityDocument      `firestore:"city,omitempty"`
	CreatedAt time.Time          `firestore:"createdAt"`
	UpdatedAt time.Time          `firestore:"updatedAt"`
}

type cartLineDocument struct {
	ID           string     `firestore:"id"`
	ProductID    string     `firestore:"productId"`
	ProductName  string     `firestore:"productName"`
	CategoryName string     `firestore:"categoryName,omitempty"`
	CategoryKind string     `firestore:"categoryKind,omitempty"`
	SizeCode     string     `firestore:"sizeCode"`
	Quantity     int        `firestore:"quantity"`
	UnitPrice    int64      `firestore:"unitPrice"`
	AddedAt      time.Time  `firestore:"addedAt"`
	UpdatedAt    *time.Time `firestore:"updatedAt,omitempty"`
}

type cityDocument struct {
	City       string `firestore:"city"`
	CustomName string `firestore:"customName,omitempty"`
}

// CartRepository persists session carts within Firestore, one document per
// storefront session.
type CartRepository struct {
	base *pfirestore.BaseRepository[cartDocument]
}

// NewCartRepository constructs a Firestore-backed cart repository.
func NewCartRepository(provider *pfirestore.Provider) (*CartRepository, error) {
	if provider == nil {
		return nil, errors.New("cart repository requires firestore provider")
	}
	// A cart document that fails decoding is treated as an empty cart rather
	// than an error; abandoned or corrupted carts must never block a shopper.
	decoder := func(snap *firestore.DocumentSnapshot) (cartDocument, error) {
		var doc cartDocument
		if err := snap.DataTo(&doc); err != nil {
			return cartDocument{}, nil
		}
		return doc, nil
	}
	return &CartRepository{
		base: pfirestore.NewBaseRepository[cartDocument](provider, cartsCollection, decoder),
	}, nil
}

// Get loads the cart for the given session ID.
func (r *CartRepository) Get(ctx context.Context, sessionID string) (domain.Cart, error) {
	if r == nil || r.base == nil {
		return domain.Cart{}, errors.New("cart repository not initialised")
	}
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return domain.Cart{}, errors.New("cart repository: session id is required")
	}

	doc, err := r.base.Get(ctx, sessionID)
	if err != nil {
		return domain.Cart{}, err
	}
	return decodeCartDocument(doc.ID, doc.Data, doc.CreateTime, doc.UpdateTime), nil
}

// Save upserts the cart document using the session ID as document identifier.
func (r *CartRepository) Save(ctx context.Context, cart domain.Cart) (domain.Cart, error) {
	if r == nil || r.base == nil {
		return domain.Cart{}, errors.New("cart repository not initialised")
	}
	sessionID := strings.TrimSpace(cart.SessionID)
	if sessionID == "" {
		sessionID = strings.TrimSpace(cart.ID)
	}
	if sessionID == "" {
		return domain.Cart{}, errors.New("cart repository: session id is required")
	}

	now := time.Now().UTC()
	createdAt := cart.CreatedAt.UTC()
	if createdAt.IsZero() {
		createdAt = now
	}

	doc := cartDocument{
		Currency:  strings.ToUpper(strings.TrimSpace(cart.Currency)),
		Lines:     encodeCartLines(cart.Lines),
		CreatedAt: createdAt,
		UpdatedAt: now,
	}
	if cart.City != nil {
		doc.City = &cityDocument{
			City:       string(cart.City.City),
			CustomName: strings.TrimSpace(cart.City.CustomName),
		}
	}

	result, err := r.base.Set(ctx, sessionID, doc)
	if err != nil {
		return domain.Cart{}, err
	}

	saved := decodeCartDocument(sessionID, doc, createdAt, result.UpdateTime)
	return saved, nil
}

// Delete removes the cart document after a successful checkout.
func (r *CartRepository) Delete(ctx context.Context, sessionID string) error {
	if r == nil || r.base == nil {
		return errors.New("cart repository not initialised")
	}
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return errors.New("cart repository: session id is required")
	}
	return r.base.Delete(ctx, sessionID)
}

func decodeCartDocument(id string, doc cartDocument, createTime, updateTime time.Time) domain.Cart {
	cart := domain.Cart{
		ID:        id,
		SessionID: id,
		Currency:  strings.ToUpper(strings.TrimSpace(doc.Currency)),
		Lines:     decodeCartLines(doc.Lines),
		CreatedAt: doc.CreatedAt,
		UpdatedAt: doc.UpdatedAt,
	}
	if cart.CreatedAt.IsZero() {
		cart.CreatedAt = createTime
	}
	if !updateTime.IsZero() {
		cart.UpdatedAt = updateTime
	}
	if doc.City != nil {
		cart.City = &domain.CitySelection{
			City:       domain.DeliveryCity(strings.ToLower(strings.TrimSpace(doc.City.City))),
			CustomName: doc.City.CustomName,
		}
	}
	return cart
}

func encodeCartLines(lines []domain.CartLine) []cartLineDocument {
	if len(lines) == 0 {
		return nil
	}
	out := make([]cartLineDocument, 0, len(lines))
	for _, line := range lines {
		out = append(out, cartLineDocument{
			ID:           strings.TrimSpace(line.ID),
			ProductID:    strings.TrimSpace(line.ProductID),
			ProductName:  strings.TrimSpace(line.ProductName),
			CategoryName: strings.TrimSpace(line.CategoryName),
			CategoryKind: string(line.CategoryKind),
			SizeCode:     strings.TrimSpace(line.SizeCode),
			Quantity:     line.Quantity,
			UnitPrice:    line.UnitPrice,
			AddedAt:      line.AddedAt,
			UpdatedAt:    line.UpdatedAt,
		})
	}
	return out
}

func decodeCartLines(docs []cartLineDocument) []domain.CartLine {
	lines := make([]domain.CartLine, 0, len(docs))
	for _, doc := range docs {
		lines = append(lines, domain.CartLine{
			ID:           doc.ID,
			ProductID:    doc.ProductID,
			ProductName:  doc.ProductName,
			CategoryName: doc.CategoryName,
			CategoryKind: domain.CategoryKind(doc.CategoryKind),
			SizeCode:     doc.SizeCode,
			Quantity:     doc.Quantity,
			UnitPrice:    doc.UnitPrice,
			AddedAt:      doc.AddedAt,
			UpdatedAt:    doc.UpdatedAt,
		})
	}
	return lines
}

var _ repositories.CartRepository = (*CartRepository)(nil)
