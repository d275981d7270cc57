package domain

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Size families. The reference (largest) size always carries multiplier 1.00;
// the remaining multipliers are strictly below 1.00.
var (
	oilSizes = []SizeDefinition{
		{Code: "5L", DisplayName: "5 Litres", Multiplier: 1.00},
		{Code: "2L", DisplayName: "2 Litres", Multiplier: 0.45},
		{Code: "1L", DisplayName: "1 Litre", Multiplier: 0.25},
	}
	honeySizes = []SizeDefinition{
		{Code: "1KG", DisplayName: "1 Kg", Multiplier: 1.00},
		{Code: "500G", DisplayName: "500 g", Multiplier: 0.55},
		{Code: "250G", DisplayName: "250 g", Multiplier: 0.30},
	}
)

// legacySizeCodes maps the retired backend vocabulary onto the canonical
// display codes. The mapping lives here, at the data boundary, so that the
// rest of the codebase only ever sees canonical codes.
var legacySizeCodes = map[string]string{
	"5_LITERS": "5L",
	"2_LITERS": "2L",
	"1_LITER":  "1L",
	"1_KG":     "1KG",
	"500_G":    "500G",
	"250_G":    "250G",
}

// literTable maps size-code fragments to bottle volume in liters. Matching is
// by substring so that composed codes such as "OLIVE-5L" still resolve.
// Milliliter fragments are listed first; they would otherwise be shadowed by
// the liter fragments they contain.
var literTable = []struct {
	fragment string
	liters   float64
}{
	{"750ML", 0.75},
	{"500ML", 0.5},
	{"250ML", 0.25},
	{"5L", 5},
	{"3L", 3},
	{"2L", 2},
	{"1L", 1},
}

// SizeFamilyFor returns the selectable sizes for a category kind. Unknown
// kinds fall back to the honey family.
func SizeFamilyFor(kind CategoryKind) []SizeDefinition {
	if kind == CategoryKindOil {
		return oilSizes
	}
	return honeySizes
}

// FindSize locates the size definition with the given canonical code within
// the family for kind.
func FindSize(kind CategoryKind, sizeCode string) (SizeDefinition, bool) {
	code := CanonicalSizeCode(sizeCode)
	for _, def := range SizeFamilyFor(kind) {
		if def.Code == code {
			return def, true
		}
	}
	return SizeDefinition{}, false
}

// CanonicalSizeCode normalises a size code to the canonical display
// vocabulary, translating legacy backend codes. Unknown codes are returned
// upper-cased and trimmed so that downstream lookups stay case-insensitive.
func CanonicalSizeCode(code string) string {
	normalised := strings.ToUpper(strings.TrimSpace(code))
	if canonical, ok := legacySizeCodes[normalised]; ok {
		return canonical
	}
	return normalised
}

// SizeCodesEqual reports whether two codes refer to the same size once both
// are reduced to the canonical vocabulary.
func SizeCodesEqual(a, b string) bool {
	return CanonicalSizeCode(a) == CanonicalSizeCode(b)
}

// LitersForSize returns the bottle volume for a size code, 0 when the code
// carries no recognised volume fragment.
func LitersForSize(sizeCode string) float64 {
	code := CanonicalSizeCode(sizeCode)
	for _, entry := range literTable {
		if strings.Contains(code, entry.fragment) {
			return entry.liters
		}
	}
	return 0
}

// Keyword sets for the migration classifier, covering the three storefront
// locales (Arabic, French, English).
var (
	oilKeywords   = []string{"oil", "huile", "زيت"}
	honeyKeywords = []string{"honey", "miel", "عسل"}
)

var foldTransformer = transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// ClassifyCategoryName derives a category kind from its display name.
// It is the fallback classifier for category documents created before the
// explicit Kind field existed; runtime dispatch uses Category.Kind.
// Matching is case-insensitive and diacritic-insensitive, and defaults to
// honey when no keyword matches.
func ClassifyCategoryName(name string) CategoryKind {
	folded := foldCategoryName(name)
	for _, keyword := range oilKeywords {
		if strings.Contains(folded, foldCategoryName(keyword)) {
			return CategoryKindOil
		}
	}
	return CategoryKindHoney
}

// KindOf resolves the effective kind of a category, preferring the stored tag
// and falling back to the name classifier.
func (c Category) KindOf() CategoryKind {
	switch c.Kind {
	case CategoryKindOil, CategoryKindHoney:
		return c.Kind
	}
	return ClassifyCategoryName(c.Name)
}

// IsOilCategoryName reports whether the name matches the oil keyword set.
func IsOilCategoryName(name string) bool {
	return ClassifyCategoryName(name) == CategoryKindOil
}

// IsHoneyCategoryName reports whether the name matches the honey keyword set.
// Unlike ClassifyCategoryName this does not treat honey as the default: a
// name matching neither set returns false.
func IsHoneyCategoryName(name string) bool {
	folded := foldCategoryName(name)
	for _, keyword := range honeyKeywords {
		if strings.Contains(folded, foldCategoryName(keyword)) {
			return true
		}
	}
	return false
}

func foldCategoryName(name string) string {
	folded, _, err := transform.String(foldTransformer, name)
	if err != nil {
		folded = name
	}
	return strings.ToLower(strings.TrimSpace(folded))
}
