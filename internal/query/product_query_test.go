package query

import (
	"math"
	"net/url"
	"testing"

	"github.com/aryan0dhankhar/productcatalog/internal/domain"
)

func TestBuildProductQueryEmpty(t *testing.T) {
	filter, sort := BuildProductQuery(ProductQuery{})
	if sort != nil {
		t.Fatalf("expected no sort directive, got %+v", sort)
	}
	if filter != (domain.ProductFilter{}) {
		t.Fatalf("expected empty filter, got %+v", filter)
	}

	p := &domain.Product{Title: "Anything", Price: 12}
	if !filter.Match(p) {
		t.Fatal("empty filter must match every product")
	}
}

func TestBuildProductQuerySearchIsCaseInsensitiveSubstring(t *testing.T) {
	p := &domain.Product{Title: "Wireless Earbuds"}
	for _, term := range []string{"wireless", "EARBUDS", "less ear"} {
		filter, _ := BuildProductQuery(ProductQuery{Search: term})
		if !filter.Match(p) {
			t.Errorf("search %q should match %q", term, p.Title)
		}
	}

	filter, _ := BuildProductQuery(ProductQuery{Search: "earbuds wireless"})
	if filter.Match(p) {
		t.Error("search is not tokenized")
	}
}

func TestBuildProductQueryCategoryAndBounds(t *testing.T) {
	filter, _ := BuildProductQuery(ProductQuery{Category: "Shoes", MinPrice: "10", MaxPrice: "20"})

	cases := []struct {
		p    domain.Product
		want bool
	}{
		{domain.Product{Category: domain.CategoryShoes, Price: 10}, true},
		{domain.Product{Category: domain.CategoryShoes, Price: 20}, true},
		{domain.Product{Category: domain.CategoryShoes, Price: 20.01}, false},
		{domain.Product{Category: domain.CategoryShoes, Price: 9.99}, false},
		{domain.Product{Category: domain.CategoryClothing, Price: 15}, false},
	}
	for _, tc := range cases {
		if got := filter.Match(&tc.p); got != tc.want {
			t.Errorf("Match(%+v) = %v, want %v", tc.p, got, tc.want)
		}
	}
}

func TestBuildProductQueryNonNumericBoundMatchesNothing(t *testing.T) {
	filter, _ := BuildProductQuery(ProductQuery{MinPrice: "cheap"})
	if !filter.MatchesNothing() {
		t.Fatal("non-numeric bound must match nothing")
	}
	if filter.Match(&domain.Product{Price: 5}) {
		t.Fatal("NaN bound matched a product")
	}
}

func TestBuildProductQuerySort(t *testing.T) {
	_, asc := BuildProductQuery(ProductQuery{Sort: SortPriceAsc})
	if asc == nil || asc.Field != domain.SortByPrice || asc.Descending {
		t.Fatalf("unexpected asc directive: %+v", asc)
	}

	_, desc := BuildProductQuery(ProductQuery{Sort: SortPriceDesc})
	if desc == nil || !desc.Descending {
		t.Fatalf("unexpected desc directive: %+v", desc)
	}

	for _, s := range []string{"", SortDefault, SortTitle, "price_asc", "bogus"} {
		if _, d := BuildProductQuery(ProductQuery{Sort: s}); d != nil {
			t.Errorf("sort %q should yield no directive", s)
		}
	}
}

func TestToNumber(t *testing.T) {
	cases := map[string]float64{
		"42":        42,
		" 7.5 ":     7.5,
		"1e2":       100,
		"0x10":      16,
		"0b101":     5,
		"   ":       0,
		"-3":        -3,
		"Infinity":  math.Inf(1),
		"-Infinity": math.Inf(-1),
	}
	for in, want := range cases {
		if got := toNumber(in); got != want {
			t.Errorf("toNumber(%q) = %v, want %v", in, got, want)
		}
	}

	for _, in := range []string{"abc", "12abc", "inf", "NaN", "1_000", "0xZZ", "-0x10"} {
		if got := toNumber(in); !math.IsNaN(got) {
			t.Errorf("toNumber(%q) = %v, want NaN", in, got)
		}
	}
}

func TestFromValuesRoundTrip(t *testing.T) {
	v := url.Values{}
	v.Set("search", "shoe")
	v.Set("maxPrice", "99")
	v.Set("sort", SortPriceDesc)

	q := FromValues(v)
	if q.Search != "shoe" || q.MaxPrice != "99" || q.Sort != SortPriceDesc || q.Category != "" {
		t.Fatalf("unexpected query: %+v", q)
	}
	if got := q.Values().Encode(); got != v.Encode() {
		t.Fatalf("Values() = %q, want %q", got, v.Encode())
	}
}
