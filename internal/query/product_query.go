// Package query turns catalog listing requests into store predicates.
package query

import (
	"math"
	"net/url"
	"strconv"
	"strings"

	"github.com/aryan0dhankhar/productcatalog/internal/domain"
)

// Sort keys understood by the server. Any other value leaves the store order.
const (
	SortDefault   = "DEFAULT"
	SortPriceAsc  = "PRICE_ASC"
	SortPriceDesc = "PRICE_DESC"
	// SortTitle is applied by clients after fetching.
	SortTitle = "TITLE"
)

// ProductQuery is a listing request as received from a caller. Bounds stay
// strings so that malformed values can be told apart from missing ones.
type ProductQuery struct {
	Search   string
	Category string
	MinPrice string
	MaxPrice string
	Sort     string
}

// FromValues reads a ProductQuery from URL query parameters
func FromValues(v url.Values) ProductQuery {
	return ProductQuery{
		Search:   v.Get("search"),
		Category: v.Get("category"),
		MinPrice: v.Get("minPrice"),
		MaxPrice: v.Get("maxPrice"),
		Sort:     v.Get("sort"),
	}
}

// Values encodes q back into URL query parameters, omitting empty fields
func (q ProductQuery) Values() url.Values {
	v := url.Values{}
	set := func(k, s string) {
		if s != "" {
			v.Set(k, s)
		}
	}
	set("search", q.Search)
	set("category", q.Category)
	set("minPrice", q.MinPrice)
	set("maxPrice", q.MaxPrice)
	set("sort", q.Sort)
	return v
}

// BuildProductQuery translates q into a predicate and an optional sort
// directive. It has no side effects.
func BuildProductQuery(q ProductQuery) (domain.ProductFilter, *domain.SortDirective) {
	var filter domain.ProductFilter

	if q.Search != "" {
		filter.TitleContains = q.Search
	}
	if q.Category != "" {
		filter.Category = domain.Category(q.Category)
	}
	if q.MinPrice != "" {
		v := toNumber(q.MinPrice)
		filter.MinPrice = &v
	}
	if q.MaxPrice != "" {
		v := toNumber(q.MaxPrice)
		filter.MaxPrice = &v
	}

	var sort *domain.SortDirective
	switch q.Sort {
	case SortPriceAsc:
		sort = &domain.SortDirective{Field: domain.SortByPrice}
	case SortPriceDesc:
		sort = &domain.SortDirective{Field: domain.SortByPrice, Descending: true}
	}

	return filter, sort
}

// toNumber coerces a price bound the way loosely typed clients do: surrounding
// whitespace is ignored, a blank string is zero, 0x/0o/0b prefixes are
// integers and anything unparsable is NaN.
func toNumber(s string) float64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}

	lower := strings.ToLower(s)
	if len(lower) > 2 && lower[0] == '0' && (lower[1] == 'x' || lower[1] == 'o' || lower[1] == 'b') {
		n, err := strconv.ParseUint(lower[2:], prefixBase(lower[1]), 64)
		if err != nil {
			return math.NaN()
		}
		return float64(n)
	}

	switch s {
	case "Infinity", "+Infinity":
		return math.Inf(1)
	case "-Infinity":
		return math.Inf(-1)
	}
	// ParseFloat accepts spellings such as "inf", "nan" and "1_000" that are
	// not numbers here.
	if strings.ContainsAny(lower, "_in") {
		return math.NaN()
	}

	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return math.NaN()
	}
	return f
}

func prefixBase(c byte) int {
	switch c {
	case 'x':
		return 16
	case 'o':
		return 8
	default:
		return 2
	}
}
