package catalogclient

import (
	"context"
	"net/http"
	"net/url"
	"slices"
	"strings"

	"github.com/aryan0dhankhar/productcatalog/internal/domain"
	"github.com/aryan0dhankhar/productcatalog/internal/query"
	"github.com/aryan0dhankhar/productcatalog/pkg/cache"
)

// Query keys under which product reads are cached
const (
	KeyCategories = "products/categories"
	keyListPrefix = "products?"
	keySlugPrefix = "products/"
)

// ProductListKey is the cache key of a listing for q
func ProductListKey(q query.ProductQuery) string {
	return keyListPrefix + q.Values().Encode()
}

// ListProducts fetches a listing. A TITLE sort is applied locally to the
// cached server order, which the server does not know about.
func (c *Client) ListProducts(ctx context.Context, q query.ProductQuery) ([]domain.Product, error) {
	byTitle := q.Sort == query.SortTitle
	if byTitle {
		q.Sort = ""
	}

	products, err := cache.QueryTagged(ctx, c.cache, ProductListKey(q), []cache.Tag{cache.ProductListTag(), cache.CategoriesTag()}, func(ctx context.Context) ([]domain.Product, []cache.Tag, error) {
		var out []domain.Product
		path := "/api/products"
		if enc := q.Values().Encode(); enc != "" {
			path += "?" + enc
		}
		if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
			return nil, nil, err
		}
		ids := make([]string, len(out))
		for i := range out {
			ids[i] = out[i].ID
			c.rememberSlug(&out[i])
		}
		return out, cache.ProductListTags(ids), nil
	})
	if err != nil {
		return nil, err
	}

	if byTitle {
		products = slices.Clone(products)
		slices.SortStableFunc(products, func(a, b domain.Product) int {
			return strings.Compare(strings.ToLower(a.Title), strings.ToLower(b.Title))
		})
	}
	return products, nil
}

// Categories lists the categories present in the catalog
func (c *Client) Categories(ctx context.Context) ([]domain.Category, error) {
	return cache.QueryTagged(ctx, c.cache, KeyCategories, []cache.Tag{cache.CategoriesTag(), cache.ProductListTag()}, func(ctx context.Context) ([]domain.Category, []cache.Tag, error) {
		var out []domain.Category
		if err := c.do(ctx, http.MethodGet, "/api/products/categories", nil, &out); err != nil {
			return nil, nil, err
		}
		return out, []cache.Tag{cache.CategoriesTag(), cache.ProductListTag()}, nil
	})
}

// ProductBySlug looks a product up by its slug
func (c *Client) ProductBySlug(ctx context.Context, slug string) (*domain.Product, error) {
	return cache.QueryTagged(ctx, c.cache, keySlugPrefix+slug, []cache.Tag{cache.ProductSlugTag(slug)}, func(ctx context.Context) (*domain.Product, []cache.Tag, error) {
		var p domain.Product
		if err := c.do(ctx, http.MethodGet, "/api/products/"+url.PathEscape(slug), nil, &p); err != nil {
			return nil, nil, err
		}
		c.rememberSlug(&p)
		return &p, cache.ProductTags(p.ID, p.Slug), nil
	})
}

// CreateProduct creates a product; the server derives its slug
func (c *Client) CreateProduct(ctx context.Context, in domain.ProductInput) (*domain.Product, error) {
	return cache.Mutate(ctx, c.cache, func(ctx context.Context) (*domain.Product, []cache.Tag, error) {
		var p domain.Product
		if err := c.do(ctx, http.MethodPost, "/api/products", in, &p); err != nil {
			return nil, nil, err
		}
		c.rememberSlug(&p)
		return &p, cache.ProductCreated(p.ID, p.Slug), nil
	})
}

// UpdateProduct applies a partial update. When the slug changes, lookups
// under the previously seen slug are invalidated too.
func (c *Client) UpdateProduct(ctx context.Context, id string, patch domain.ProductPatch) (*domain.Product, error) {
	oldSlug := c.slugOf(id)
	return cache.Mutate(ctx, c.cache, func(ctx context.Context) (*domain.Product, []cache.Tag, error) {
		var p domain.Product
		if err := c.do(ctx, http.MethodPut, "/api/products/"+url.PathEscape(id), patch, &p); err != nil {
			return nil, nil, err
		}
		c.rememberSlug(&p)
		return &p, cache.ProductUpdated(p.ID, oldSlug, p.Slug), nil
	})
}

// DeleteProduct removes a product
func (c *Client) DeleteProduct(ctx context.Context, id string) error {
	slug := c.slugOf(id)
	_, err := cache.Mutate(ctx, c.cache, func(ctx context.Context) (struct{}, []cache.Tag, error) {
		if err := c.do(ctx, http.MethodDelete, "/api/products/"+url.PathEscape(id), nil, nil); err != nil {
			return struct{}{}, nil, err
		}
		tags := []cache.Tag{cache.ProductTag(id), cache.ProductListTag(), cache.CategoriesTag()}
		if slug != "" {
			tags = cache.ProductDeleted(id, slug)
		}
		return struct{}{}, tags, nil
	})
	if err == nil {
		c.forgetSlug(id)
	}
	return err
}
