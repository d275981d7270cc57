package domain

import (
	"math"
)

// PriceFor resolves the unit price of a product for a requested size, in
// centimes.
//
// Explicit SizePrice records win: when the product carries a record matching
// the requested size (legacy and display codes are treated as aliases), that
// absolute price is returned verbatim. Otherwise the price is derived from
// the product's base price and the multiplier of the matching size in the
// category's family, rounded to the centime. A size that matches neither
// path yields the base price unchanged; the resolver never fails.
func PriceFor(product Product, sizeCode string) int64 {
	if price, ok := explicitPrice(product, sizeCode); ok {
		return price
	}
	if def, ok := FindSize(productKind(product), sizeCode); ok {
		return roundCentimes(float64(product.BasePrice) * def.Multiplier)
	}
	return product.BasePrice
}

// StartingPrice returns the lowest price across a product's sizes, used for
// "starting from" display. Explicit per-size prices are preferred; without
// them the smallest multiplier in the family decides.
func StartingPrice(product Product) int64 {
	if len(product.SizePrices) > 0 {
		min := product.SizePrices[0].Price
		for _, sp := range product.SizePrices[1:] {
			if sp.Price < min {
				min = sp.Price
			}
		}
		return min
	}
	min := product.BasePrice
	for _, def := range SizeFamilyFor(productKind(product)) {
		if price := roundCentimes(float64(product.BasePrice) * def.Multiplier); price < min {
			min = price
		}
	}
	return min
}

// PriceRangeOf returns the min/max price spread across a product's sizes,
// with the same preference order as StartingPrice.
func PriceRangeOf(product Product) PriceRange {
	if len(product.SizePrices) > 0 {
		r := PriceRange{Min: product.SizePrices[0].Price, Max: product.SizePrices[0].Price}
		for _, sp := range product.SizePrices[1:] {
			if sp.Price < r.Min {
				r.Min = sp.Price
			}
			if sp.Price > r.Max {
				r.Max = sp.Price
			}
		}
		return r
	}
	r := PriceRange{Min: product.BasePrice, Max: product.BasePrice}
	for _, def := range SizeFamilyFor(productKind(product)) {
		price := roundCentimes(float64(product.BasePrice) * def.Multiplier)
		if price < r.Min {
			r.Min = price
		}
		if price > r.Max {
			r.Max = price
		}
	}
	return r
}

func explicitPrice(product Product, sizeCode string) (int64, bool) {
	for _, sp := range product.SizePrices {
		if SizeCodesEqual(sp.SizeCode, sizeCode) {
			return sp.Price, true
		}
	}
	return 0, false
}

func productKind(product Product) CategoryKind {
	if product.Category != nil {
		return product.Category.KindOf()
	}
	return CategoryKindHoney
}

func roundCentimes(value float64) int64 {
	return int64(math.Round(value))
}
