package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	domain "github.com/atlas-naturals/api/internal/domain"
)

type stubCartRepository struct {
	carts   map[string]domain.Cart
	saved   []domain.Cart
	deleted []string
	getErr  error
	saveErr error
}

func (s *stubCartRepository) Get(_ context.Context, sessionID string) (domain.Cart, error) {
	if s.getErr != nil {
		return domain.Cart{}, s.getErr
	}
	if cart, ok := s.carts[sessionID]; ok {
		return cart, nil
	}
	return domain.Cart{}, errRepoNotFound
}

func (s *stubCartRepository) Save(_ context.Context, cart domain.Cart) (domain.Cart, error) {
	if s.saveErr != nil {
		return domain.Cart{}, s.saveErr
	}
	if s.carts == nil {
		s.carts = make(map[string]domain.Cart)
	}
	s.saved = append(s.saved, cart)
	s.carts[cart.SessionID] = cart
	return cart, nil
}

func (s *stubCartRepository) Delete(_ context.Context, sessionID string) error {
	if _, ok := s.carts[sessionID]; !ok {
		return errRepoNotFound
	}
	s.deleted = append(s.deleted, sessionID)
	delete(s.carts, sessionID)
	return nil
}

type stubProductFinder struct {
	products map[string]domain.Product
}

func (s *stubProductFinder) GetProduct(_ context.Context, idOrSlug string) (domain.Product, error) {
	if product, ok := s.products[idOrSlug]; ok {
		return product, nil
	}
	return domain.Product{}, ErrCatalogNotFound
}

func cartFixture(t *testing.T) (CartService, *stubCartRepository, *stubProductFinder) {
	t.Helper()
	oilCategory := domain.Category{ID: "cat_oil", Name: "Huiles", Kind: domain.CategoryKindOil}
	honeyCategory := domain.Category{ID: "cat_honey", Name: "Miels", Kind: domain.CategoryKindHoney}
	catalog := &stubProductFinder{products: map[string]domain.Product{
		"prod_oil": {
			ID:          "prod_oil",
			Name:        "Huile extra vierge",
			CategoryID:  "cat_oil",
			Category:    &oilCategory,
			BasePrice:   30000,
			IsAvailable: true,
		},
		"prod_honey": {
			ID:          "prod_honey",
			Name:        "Miel de thym",
			CategoryID:  "cat_honey",
			Category:    &honeyCategory,
			BasePrice:   20000,
			IsAvailable: true,
		},
		"prod_hidden": {
			ID:          "prod_hidden",
			Name:        "Retired",
			Category:    &oilCategory,
			BasePrice:   10000,
			IsAvailable: false,
		},
	}}
	repo := &stubCartRepository{carts: map[string]domain.Cart{}}
	seq := 0
	svc, err := NewCartService(CartServiceDeps{
		Repository:      repo,
		Catalog:         catalog,
		Clock:           func() time.Time { return time.Date(2026, time.March, 10, 9, 0, 0, 0, time.UTC) },
		DefaultCurrency: "mad",
		IDGenerator: func() string {
			seq++
			return "line-" + string(rune('0'+seq))
		},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return svc, repo, catalog
}

func TestGetCartMissingReturnsEmptySummaryWithoutPersisting(t *testing.T) {
	svc, repo, _ := cartFixture(t)

	summary, err := svc.GetCart(context.Background(), "sess-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if summary.TotalItems != 0 || summary.Subtotal != 0 {
		t.Fatalf("expected empty summary, got %+v", summary)
	}
	if summary.Cart.Currency != "MAD" {
		t.Fatalf("expected default currency MAD, got %q", summary.Cart.Currency)
	}
	if len(repo.saved) != 0 {
		t.Fatalf("expected no save for a read, got %d", len(repo.saved))
	}
}

func TestAddItemSnapshotsPriceAndMergesDuplicates(t *testing.T) {
	svc, repo, _ := cartFixture(t)

	first, err := svc.AddItem(context.Background(), AddCartItemCommand{
		SessionID: "sess-1",
		ProductID: "prod_oil",
		SizeCode:  "2L",
		Quantity:  1,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(first.Cart.Lines) != 1 {
		t.Fatalf("expected one line, got %d", len(first.Cart.Lines))
	}
	if first.Cart.Lines[0].UnitPrice != 13500 {
		t.Fatalf("expected snapshotted 2L price 13500, got %d", first.Cart.Lines[0].UnitPrice)
	}

	// Legacy size spelling merges into the same line.
	second, err := svc.AddItem(context.Background(), AddCartItemCommand{
		SessionID: "sess-1",
		ProductID: "prod_oil",
		SizeCode:  "2_LITERS",
		Quantity:  2,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(second.Cart.Lines) != 1 {
		t.Fatalf("expected merged line, got %d lines", len(second.Cart.Lines))
	}
	if second.Cart.Lines[0].Quantity != 3 {
		t.Fatalf("expected merged quantity 3, got %d", second.Cart.Lines[0].Quantity)
	}
	if second.OilVolumeLiters != 6 {
		t.Fatalf("expected 6 liters of oil, got %v", second.OilVolumeLiters)
	}
	if len(repo.saved) != 2 {
		t.Fatalf("expected two saves, got %d", len(repo.saved))
	}
}

func TestAddItemRejectsBadInput(t *testing.T) {
	svc, _, _ := cartFixture(t)
	ctx := context.Background()

	if _, err := svc.AddItem(ctx, AddCartItemCommand{SessionID: "s", ProductID: "prod_oil", SizeCode: "2L"}); !errors.Is(err, ErrCartInvalidInput) {
		t.Fatalf("expected invalid input for zero quantity, got %v", err)
	}
	if _, err := svc.AddItem(ctx, AddCartItemCommand{SessionID: "s", ProductID: "missing", SizeCode: "2L", Quantity: 1}); !errors.Is(err, ErrCartInvalidInput) {
		t.Fatalf("expected invalid input for unknown product, got %v", err)
	}
	if _, err := svc.AddItem(ctx, AddCartItemCommand{SessionID: "s", ProductID: "prod_hidden", SizeCode: "2L", Quantity: 1}); !errors.Is(err, ErrCartProductUnavailable) {
		t.Fatalf("expected product unavailable, got %v", err)
	}
	if _, err := svc.AddItem(ctx, AddCartItemCommand{SessionID: "s", ProductID: "prod_oil", SizeCode: "500G", Quantity: 1}); !errors.Is(err, ErrCartInvalidInput) {
		t.Fatalf("expected invalid size for oil product, got %v", err)
	}
}

func TestUpdateItemQuantityZeroRemovesLine(t *testing.T) {
	svc, _, _ := cartFixture(t)
	ctx := context.Background()

	summary, err := svc.AddItem(ctx, AddCartItemCommand{SessionID: "sess-1", ProductID: "prod_honey", SizeCode: "500G", Quantity: 2})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	lineID := summary.Cart.Lines[0].ID

	updated, err := svc.UpdateItemQuantity(ctx, UpdateCartItemCommand{SessionID: "sess-1", LineID: lineID, Quantity: 5})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if updated.Cart.Lines[0].Quantity != 5 {
		t.Fatalf("expected quantity 5, got %d", updated.Cart.Lines[0].Quantity)
	}

	removed, err := svc.UpdateItemQuantity(ctx, UpdateCartItemCommand{SessionID: "sess-1", LineID: lineID, Quantity: 0})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(removed.Cart.Lines) != 0 {
		t.Fatalf("expected empty cart, got %d lines", len(removed.Cart.Lines))
	}

	if _, err := svc.UpdateItemQuantity(ctx, UpdateCartItemCommand{SessionID: "sess-1", LineID: "nope", Quantity: 1}); !errors.Is(err, ErrCartNotFound) {
		t.Fatalf("expected not found for unknown line, got %v", err)
	}
}

func TestSelectCityValidatesAgainstCartContents(t *testing.T) {
	svc, _, _ := cartFixture(t)
	ctx := context.Background()

	if _, err := svc.AddItem(ctx, AddCartItemCommand{SessionID: "sess-1", ProductID: "prod_oil", SizeCode: "1L", Quantity: 1}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Free-text destinations only serve honey-only carts.
	if _, err := svc.SelectCity(ctx, SelectCityCommand{SessionID: "sess-1", City: domain.CityOther, CustomName: "Agadir"}); !errors.Is(err, ErrCartInvalidInput) {
		t.Fatalf("expected city rejection for oil cart, got %v", err)
	}

	summary, err := svc.SelectCity(ctx, SelectCityCommand{SessionID: "sess-1", City: "  Rabat "})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if summary.Cart.City == nil || summary.Cart.City.City != domain.CityRabat {
		t.Fatalf("expected rabat selection, got %+v", summary.Cart.City)
	}
	if summary.Quote == nil || summary.Quote.Cost != 3000 {
		t.Fatalf("expected 3000 centime quote, got %+v", summary.Quote)
	}
}

func TestMutationResetsCitySelectionWhenNoLongerAvailable(t *testing.T) {
	svc, _, _ := cartFixture(t)
	ctx := context.Background()

	oil, err := svc.AddItem(ctx, AddCartItemCommand{SessionID: "sess-1", ProductID: "prod_oil", SizeCode: "1L", Quantity: 1})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := svc.AddItem(ctx, AddCartItemCommand{SessionID: "sess-1", ProductID: "prod_honey", SizeCode: "250G", Quantity: 1}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := svc.SelectCity(ctx, SelectCityCommand{SessionID: "sess-1", City: domain.CityRabat}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Removing the oil line leaves a honey-only cart, which rabat does not serve.
	summary, err := svc.RemoveItem(ctx, RemoveCartItemCommand{SessionID: "sess-1", LineID: oil.Cart.Lines[0].ID})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if summary.Cart.City != nil {
		t.Fatalf("expected city selection reset, got %+v", summary.Cart.City)
	}
	if summary.Quote != nil {
		t.Fatalf("expected no quote without a city, got %+v", summary.Quote)
	}
}

func TestFreeShippingQuoteByOilVolume(t *testing.T) {
	svc, _, _ := cartFixture(t)
	ctx := context.Background()

	if _, err := svc.AddItem(ctx, AddCartItemCommand{SessionID: "sess-1", ProductID: "prod_oil", SizeCode: "5L", Quantity: 2}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	summary, err := svc.SelectCity(ctx, SelectCityCommand{SessionID: "sess-1", City: domain.CityCasablanca})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if summary.Quote == nil || !summary.Quote.IsFree {
		t.Fatalf("expected free shipping, got %+v", summary.Quote)
	}
}

func TestClearCartToleratesMissingCart(t *testing.T) {
	svc, repo, _ := cartFixture(t)
	ctx := context.Background()

	if err := svc.ClearCart(ctx, "sess-unknown"); err != nil {
		t.Fatalf("expected clearing a missing cart to succeed, got %v", err)
	}

	if _, err := svc.AddItem(ctx, AddCartItemCommand{SessionID: "sess-1", ProductID: "prod_honey", SizeCode: "1KG", Quantity: 1}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := svc.ClearCart(ctx, "sess-1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(repo.deleted) != 1 || repo.deleted[0] != "sess-1" {
		t.Fatalf("expected sess-1 deletion, got %v", repo.deleted)
	}
}

func TestCityResetLogsSanitizedSessionID(t *testing.T) {
	oilCategory := domain.Category{ID: "cat_oil", Name: "Huiles", Kind: domain.CategoryKindOil}
	honeyCategory := domain.Category{ID: "cat_honey", Name: "Miels", Kind: domain.CategoryKindHoney}
	catalog := &stubProductFinder{products: map[string]domain.Product{
		"prod_oil":   {ID: "prod_oil", Name: "Huile extra vierge", CategoryID: "cat_oil", Category: &oilCategory, BasePrice: 30000, IsAvailable: true},
		"prod_honey": {ID: "prod_honey", Name: "Miel de thym", CategoryID: "cat_honey", Category: &honeyCategory, BasePrice: 20000, IsAvailable: true},
	}}
	repo := &stubCartRepository{carts: map[string]domain.Cart{}}

	var resets []map[string]any
	seq := 0
	svc, err := NewCartService(CartServiceDeps{
		Repository:      repo,
		Catalog:         catalog,
		Clock:           func() time.Time { return time.Date(2026, time.March, 10, 9, 0, 0, 0, time.UTC) },
		DefaultCurrency: "MAD",
		IDGenerator: func() string {
			seq++
			return "line-" + string(rune('0'+seq))
		},
		Logger: func(_ context.Context, event string, fields map[string]any) {
			if event == "cart.city_selection_reset" {
				resets = append(resets, fields)
			}
		},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	sessionID := "sess-" + strings.Repeat("a", 80) + "\x07"
	ctx := context.Background()
	oil, err := svc.AddItem(ctx, AddCartItemCommand{SessionID: sessionID, ProductID: "prod_oil", SizeCode: "1L", Quantity: 1})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := svc.AddItem(ctx, AddCartItemCommand{SessionID: sessionID, ProductID: "prod_honey", SizeCode: "250G", Quantity: 1}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := svc.SelectCity(ctx, SelectCityCommand{SessionID: sessionID, City: domain.CityRabat}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := svc.RemoveItem(ctx, RemoveCartItemCommand{SessionID: sessionID, LineID: oil.Cart.Lines[0].ID}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(resets) != 1 {
		t.Fatalf("expected one reset event, got %d", len(resets))
	}
	logged, _ := resets[0]["sessionId"].(string)
	if strings.ContainsRune(logged, '\x07') {
		t.Fatalf("expected control characters stripped from logged session id, got %q", logged)
	}
	if len(logged) != 64 {
		t.Fatalf("expected logged session id truncated to 64 characters, got %d", len(logged))
	}
}
