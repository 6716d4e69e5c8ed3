package domain

import (
	"context"
	"math"
	"strings"
	"time"
)

// Category is one of the fixed product categories
type Category string

const (
	CategoryClothing    Category = "Clothing"
	CategoryShoes       Category = "Shoes"
	CategoryAccessories Category = "Accessories"
	CategoryElectronics Category = "Electronics"
)

// Categories lists every valid category in display order
var Categories = []Category{
	CategoryClothing,
	CategoryShoes,
	CategoryAccessories,
	CategoryElectronics,
}

// Valid reports whether c is a known category
func (c Category) Valid() bool {
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}

// Product represents a catalog entry
type Product struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	Description  string    `json:"description"`
	Image        string    `json:"image"`
	Category     Category  `json:"category"`
	Price        float64   `json:"price"`
	Availability bool      `json:"availability"`
	Slug         string    `json:"slug"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// ProductInput is the payload of a product creation. Price and Availability
// are pointers so that a missing value can be told apart from a zero value.
type ProductInput struct {
	Title        string   `json:"title"`
	Description  string   `json:"description"`
	Image        string   `json:"image"`
	Category     Category `json:"category"`
	Price        *float64 `json:"price"`
	Availability *bool    `json:"availability"`
	Slug         string   `json:"slug,omitempty"`
}

// ProductPatch is a partial update: nil fields are left unchanged
type ProductPatch struct {
	Title        *string   `json:"title,omitempty"`
	Description  *string   `json:"description,omitempty"`
	Image        *string   `json:"image,omitempty"`
	Category     *Category `json:"category,omitempty"`
	Price        *float64  `json:"price,omitempty"`
	Availability *bool     `json:"availability,omitempty"`
	Slug         *string   `json:"slug,omitempty"`
}

// Empty reports whether the patch changes nothing
func (p ProductPatch) Empty() bool {
	return p.Title == nil && p.Description == nil && p.Image == nil &&
		p.Category == nil && p.Price == nil && p.Availability == nil && p.Slug == nil
}

// Apply merges the supplied fields onto dst
func (p ProductPatch) Apply(dst *Product) {
	if p.Title != nil {
		dst.Title = *p.Title
	}
	if p.Description != nil {
		dst.Description = *p.Description
	}
	if p.Image != nil {
		dst.Image = *p.Image
	}
	if p.Category != nil {
		dst.Category = *p.Category
	}
	if p.Price != nil {
		dst.Price = *p.Price
	}
	if p.Availability != nil {
		dst.Availability = *p.Availability
	}
	if p.Slug != nil {
		dst.Slug = *p.Slug
	}
}

// ProductFilter is the predicate produced by the query builder. Zero-valued
// fields place no constraint.
type ProductFilter struct {
	TitleContains string
	Category      Category
	MinPrice      *float64
	MaxPrice      *float64
}

// MatchesNothing reports whether a bound is NaN. Every comparison against
// NaN is false, so such a filter selects no product.
func (f ProductFilter) MatchesNothing() bool {
	return (f.MinPrice != nil && math.IsNaN(*f.MinPrice)) ||
		(f.MaxPrice != nil && math.IsNaN(*f.MaxPrice))
}

// Match evaluates the predicate against a single product
func (f ProductFilter) Match(p *Product) bool {
	if f.TitleContains != "" &&
		!strings.Contains(strings.ToLower(p.Title), strings.ToLower(f.TitleContains)) {
		return false
	}
	if f.Category != "" && p.Category != f.Category {
		return false
	}
	if f.MinPrice != nil && !(p.Price >= *f.MinPrice) {
		return false
	}
	if f.MaxPrice != nil && !(p.Price <= *f.MaxPrice) {
		return false
	}
	return true
}

// SortField names a sortable product column
type SortField string

const SortByPrice SortField = "price"

// SortDirective orders a product listing. A nil directive keeps store order.
type SortDirective struct {
	Field      SortField
	Descending bool
}

// ProductRepository defines data access for products
type ProductRepository interface {
	Find(ctx context.Context, filter ProductFilter, sort *SortDirective) ([]*Product, error)
	FindByID(ctx context.Context, id string) (*Product, error)
	FindBySlug(ctx context.Context, slug string) (*Product, error)
	Insert(ctx context.Context, product *Product) error
	UpdateByID(ctx context.Context, id string, patch ProductPatch) (*Product, error)
	DeleteByID(ctx context.Context, id string) (*Product, error)
	Categories(ctx context.Context) ([]Category, error)
	Count(ctx context.Context) (total int, available int, err error)
}
