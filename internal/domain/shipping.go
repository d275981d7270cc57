package domain

import (
	"errors"
)

const (
	// FreeShippingSubtotal is the amount threshold (in centimes) granting free delivery.
	FreeShippingSubtotal int64 = 70000
	// FreeShippingOilLiters is the oil-volume threshold (in liters) granting free delivery.
	FreeShippingOilLiters = 10.0
	// DeliveryWindow is the delivery estimate for every served city under the current rule set.
	DeliveryWindow = "24-72h"
	// DeliveryWindowMaxHours bounds the delivery window for estimated-date computation.
	DeliveryWindowMaxHours = 72
)

var (
	// ErrCityRequired indicates checkout was attempted without a delivery city.
	ErrCityRequired = errors.New("shipping: delivery city is required")
	// ErrCityUnavailable indicates the selected city is not served for the cart's product mix.
	ErrCityUnavailable = errors.New("shipping: city not available for cart contents")
	// ErrCustomCityRequired indicates the free-text city name is missing for the "other" option.
	ErrCustomCityRequired = errors.New("shipping: custom city name is required")
)

// cityRule declares per-city base rates and availability. Oil-bearing carts
// may only ship to oil-eligible cities; carts without oil only to
// honey-eligible ones.
type cityRule struct {
	rateWithOil    int64
	rateWithoutOil int64
	oilEligible    bool
	honeyEligible  bool
}

var cityRules = map[DeliveryCity]cityRule{
	CityCasablanca: {rateWithOil: 3000, rateWithoutOil: 2000, oilEligible: true, honeyEligible: true},
	CityRabat:      {rateWithOil: 3000, oilEligible: true},
	CityMarrakech:  {rateWithOil: 3000, oilEligible: true},
	CityTangier:    {rateWithOil: 3000, oilEligible: true},
	CityOther:      {rateWithoutOil: 3500, honeyEligible: true},
}

// cityOrder fixes the presentation order of delivery options.
var cityOrder = []DeliveryCity{CityCasablanca, CityRabat, CityMarrakech, CityTangier, CityOther}

// HasOil reports whether any cart line belongs to an oil category.
func HasOil(lines []CartLine) bool {
	for _, line := range lines {
		if lineKind(line) == CategoryKindOil {
			return true
		}
	}
	return false
}

// HasHoney reports whether any cart line belongs to a honey category.
func HasHoney(lines []CartLine) bool {
	for _, line := range lines {
		if lineKind(line) == CategoryKindHoney {
			return true
		}
	}
	return false
}

// TotalOilVolumeLiters sums quantity x bottle volume over the oil lines.
// Lines with unrecognised size codes contribute 0.
func TotalOilVolumeLiters(lines []CartLine) float64 {
	var total float64
	for _, line := range lines {
		if lineKind(line) != CategoryKindOil {
			continue
		}
		total += float64(line.Quantity) * LitersForSize(line.SizeCode)
	}
	return total
}

// Subtotal sums unit price x quantity over all lines, in centimes.
func Subtotal(lines []CartLine) int64 {
	var total int64
	for _, line := range lines {
		total += line.UnitPrice * int64(line.Quantity)
	}
	return total
}

// TotalItems sums line quantities.
func TotalItems(lines []CartLine) int {
	var total int
	for _, line := range lines {
		total += line.Quantity
	}
	return total
}

// FreeShippingFor evaluates the two independent free-delivery thresholds.
// Either grants free shipping on its own; the amount threshold wins the
// reason when both hold.
func FreeShippingFor(lines []CartLine) (bool, FreeShippingReason) {
	if Subtotal(lines) >= FreeShippingSubtotal {
		return true, FreeShippingBySubtotal
	}
	if HasOil(lines) && TotalOilVolumeLiters(lines) >= FreeShippingOilLiters {
		return true, FreeShippingByOilVolume
	}
	return false, ""
}

// AvailableCities lists the delivery options selectable for the cart's
// product mix, in presentation order.
func AvailableCities(lines []CartLine) []DeliveryCity {
	hasOil := HasOil(lines)
	cities := make([]DeliveryCity, 0, len(cityOrder))
	for _, city := range cityOrder {
		if CityAvailable(city, hasOil) {
			cities = append(cities, city)
		}
	}
	return cities
}

// CityAvailable reports whether a city is selectable given the cart's oil mix.
func CityAvailable(city DeliveryCity, hasOil bool) bool {
	rule, ok := cityRules[city]
	if !ok {
		return false
	}
	if hasOil {
		return rule.oilEligible
	}
	return rule.honeyEligible
}

// ValidateCitySelection checks a selection against the cart's product mix.
// It is invoked both when the selection is made and again on every cart
// mutation, so a selection invalidated by a later product-mix change is
// caught before checkout.
func ValidateCitySelection(lines []CartLine, selection *CitySelection) error {
	if selection == nil || selection.City == "" {
		return ErrCityRequired
	}
	if !CityAvailable(selection.City, HasOil(lines)) {
		return ErrCityUnavailable
	}
	if selection.City == CityOther && selection.CustomName == "" {
		return ErrCustomCityRequired
	}
	return nil
}

// QuoteShipping derives the shipping cost and free-delivery flags for a cart
// and city selection. A missing or unserved city yields a zero-cost quote:
// the quote itself is a display concern and fails open, while checkout
// progression is blocked separately through ValidateCitySelection.
func QuoteShipping(lines []CartLine, selection *CitySelection) ShippingQuote {
	quote := ShippingQuote{DeliveryWindow: DeliveryWindow}

	if free, reason := FreeShippingFor(lines); free {
		quote.IsFree = true
		quote.FreeReason = reason
		return quote
	}

	if selection == nil {
		return quote
	}
	rule, ok := cityRules[selection.City]
	if !ok {
		return quote
	}
	if HasOil(lines) {
		quote.Cost = rule.rateWithOil
	} else {
		quote.Cost = rule.rateWithoutOil
	}
	return quote
}

func lineKind(line CartLine) CategoryKind {
	switch line.CategoryKind {
	case CategoryKindOil, CategoryKindHoney:
		return line.CategoryKind
	}
	if IsOilCategoryName(line.CategoryName) {
		return CategoryKindOil
	}
	return CategoryKindHoney
}
