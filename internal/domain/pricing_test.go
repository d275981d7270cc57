package domain

import "testing"

func oilProduct(basePrice int64, sizePrices ...SizePrice) Product {
	return Product{
		ID:         "prd_olive",
		Name:       "Huile d'olive extra vierge",
		BasePrice:  basePrice,
		SizePrices: sizePrices,
		Category:   &Category{Name: "Huiles", Kind: CategoryKindOil},
	}
}

func honeyProduct(basePrice int64, sizePrices ...SizePrice) Product {
	return Product{
		ID:         "prd_thym",
		Name:       "Miel de thym",
		BasePrice:  basePrice,
		SizePrices: sizePrices,
		Category:   &Category{Name: "Miels", Kind: CategoryKindHoney},
	}
}

func TestPriceForExplicitSizePriceWinsVerbatim(t *testing.T) {
	product := oilProduct(30000, SizePrice{SizeCode: "2L", Price: 14500})

	if got := PriceFor(product, "2L"); got != 14500 {
		t.Fatalf("PriceFor explicit = %d, want stored value 14500", got)
	}
	// Legacy code resolves to the same record.
	if got := PriceFor(product, "2_liters"); got != 14500 {
		t.Fatalf("PriceFor legacy code = %d, want 14500", got)
	}
}

func TestPriceForMultiplierFallback(t *testing.T) {
	cases := []struct {
		name    string
		product Product
		size    string
		want    int64
	}{
		{name: "oil reference", product: oilProduct(30000), size: "5L", want: 30000},
		{name: "oil medium", product: oilProduct(30000), size: "2L", want: 13500},
		{name: "oil small", product: oilProduct(30000), size: "1L", want: 7500},
		{name: "honey reference", product: honeyProduct(25000), size: "1KG", want: 25000},
		{name: "honey medium", product: honeyProduct(25000), size: "500G", want: 13750},
		{name: "honey small", product: honeyProduct(25000), size: "250G", want: 7500},
		{name: "rounding to centime", product: honeyProduct(8333), size: "500G", want: 4583},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := PriceFor(tc.product, tc.size); got != tc.want {
				t.Fatalf("PriceFor(%s) = %d, want %d", tc.size, got, tc.want)
			}
		})
	}
}

func TestPriceForUnknownSizeFailsOpen(t *testing.T) {
	product := oilProduct(30000, SizePrice{SizeCode: "2L", Price: 14500})

	if got := PriceFor(product, "750ML"); got != 30000 {
		t.Fatalf("PriceFor unknown size = %d, want base price 30000", got)
	}
}

func TestPriceForUncategorisedProductUsesHoneyFamily(t *testing.T) {
	product := Product{BasePrice: 20000}

	if got := PriceFor(product, "500G"); got != 11000 {
		t.Fatalf("PriceFor = %d, want honey-family fallback 11000", got)
	}
}

func TestStartingPrice(t *testing.T) {
	withExplicit := honeyProduct(25000,
		SizePrice{SizeCode: "1KG", Price: 26000},
		SizePrice{SizeCode: "500G", Price: 14000},
		SizePrice{SizeCode: "250G", Price: 8000},
	)
	if got := StartingPrice(withExplicit); got != 8000 {
		t.Fatalf("StartingPrice explicit = %d, want 8000", got)
	}

	derived := oilProduct(30000)
	if got := StartingPrice(derived); got != 7500 {
		t.Fatalf("StartingPrice derived = %d, want smallest multiplier price 7500", got)
	}
}

func TestPriceRangeOf(t *testing.T) {
	derived := honeyProduct(25000)
	r := PriceRangeOf(derived)
	if r.Min != 7500 || r.Max != 25000 {
		t.Fatalf("PriceRangeOf derived = %+v, want 7500..25000", r)
	}

	explicit := honeyProduct(25000,
		SizePrice{SizeCode: "500G", Price: 14000},
		SizePrice{SizeCode: "250G", Price: 9000},
	)
	r = PriceRangeOf(explicit)
	if r.Min != 9000 || r.Max != 14000 {
		t.Fatalf("PriceRangeOf explicit = %+v, want 9000..14000", r)
	}
}
