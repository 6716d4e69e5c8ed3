package service

import (
	"context"
	"errors"
	"log/slog"

	"github.com/aryan0dhankhar/productcatalog/internal/domain"
	"github.com/aryan0dhankhar/productcatalog/internal/featureflags"
	"github.com/aryan0dhankhar/productcatalog/internal/observability/metrics"
	"github.com/aryan0dhankhar/productcatalog/internal/observability/tracing"
	"github.com/aryan0dhankhar/productcatalog/internal/query"
	"github.com/aryan0dhankhar/productcatalog/internal/slug"
	"github.com/aryan0dhankhar/productcatalog/internal/validator"
	"github.com/aryan0dhankhar/productcatalog/pkg/cache"
)

// listTags are known before a listing or category read is fetched
var listTags = []cache.Tag{cache.ProductListTag(), cache.CategoriesTag()}

const (
	keyCategories = "products:categories"
	keySlugPrefix = "products:slug:"
	keyListPrefix = "products:list?"
)

// ProductService owns the product lifecycle. Reads go through the tag cache;
// every successful mutation invalidates the tags it affects.
type ProductService struct {
	repo      domain.ProductRepository
	validator *validator.Validator
	cache     *cache.Cache
	logger    *slog.Logger
}

func NewProductService(
	repo domain.ProductRepository,
	v *validator.Validator,
	c *cache.Cache,
	logger *slog.Logger,
) *ProductService {
	if logger == nil {
		logger = slog.Default()
	}
	if v == nil {
		v = validator.NewValidator()
	}
	if c == nil {
		c = cache.New(nil, 0)
	}
	return &ProductService{repo: repo, validator: v, cache: c, logger: logger}
}

// Create validates in, derives the slug from the title and stores the product
func (s *ProductService) Create(ctx context.Context, in *domain.ProductInput) (_ *domain.Product, err error) {
	ctx, span := tracing.Start(ctx, "ProductService.Create")
	defer func() { tracing.End(span, err); observe("product", "create", err) }()

	if err := s.validator.ValidateProductInput(in); err != nil {
		return nil, err
	}
	sl := slug.Make(in.Title)
	if err := checkSlug("title", sl); err != nil {
		return nil, err
	}

	return cache.Mutate(ctx, s.cache, func(ctx context.Context) (*domain.Product, []cache.Tag, error) {
		p := &domain.Product{
			Title:        in.Title,
			Description:  in.Description,
			Image:        in.Image,
			Category:     in.Category,
			Price:        *in.Price,
			Availability: *in.Availability,
			Slug:         sl,
		}
		if err := s.repo.Insert(ctx, p); err != nil {
			return nil, nil, err
		}
		s.logger.Info("product created",
			slog.String("product_id", p.ID),
			slog.String("slug", p.Slug),
		)
		return p, cache.ProductCreated(p.ID, p.Slug), nil
	})
}

// List returns the products matching q in the order it asks for. An empty
// result is not an error.
func (s *ProductService) List(ctx context.Context, q query.ProductQuery) (_ []*domain.Product, err error) {
	ctx, span := tracing.Start(ctx, "ProductService.List")
	defer func() { tracing.End(span, err) }()

	return cache.QueryTagged(ctx, s.cache, keyListPrefix+q.Values().Encode(), listTags, func(ctx context.Context) ([]*domain.Product, []cache.Tag, error) {
		filter, sort := query.BuildProductQuery(q)
		products, err := s.repo.Find(ctx, filter, sort)
		if err != nil {
			return nil, nil, err
		}
		ids := make([]string, len(products))
		for i, p := range products {
			ids[i] = p.ID
		}
		return products, cache.ProductListTags(ids), nil
	})
}

// GetBySlug looks a product up by exact slug
func (s *ProductService) GetBySlug(ctx context.Context, sl string) (_ *domain.Product, err error) {
	ctx, span := tracing.Start(ctx, "ProductService.GetBySlug")
	defer func() { tracing.End(span, err) }()

	return cache.QueryTagged(ctx, s.cache, keySlugPrefix+sl, []cache.Tag{cache.ProductSlugTag(sl)}, func(ctx context.Context) (*domain.Product, []cache.Tag, error) {
		p, err := s.repo.FindBySlug(ctx, sl)
		if err != nil {
			return nil, nil, err
		}
		return p, cache.ProductTags(p.ID, p.Slug), nil
	})
}

// Categories lists the distinct categories of stored products
func (s *ProductService) Categories(ctx context.Context) ([]domain.Category, error) {
	return cache.QueryTagged(ctx, s.cache, keyCategories, listTags, func(ctx context.Context) ([]domain.Category, []cache.Tag, error) {
		cats, err := s.repo.Categories(ctx)
		if err != nil {
			return nil, nil, err
		}
		return cats, []cache.Tag{cache.CategoriesTag(), cache.ProductListTag()}, nil
	})
}

// Update merges patch onto the product with id. A title change re-derives the
// slug; a caller-supplied slug is only honored with the trust_client_slug flag.
func (s *ProductService) Update(ctx context.Context, id string, patch domain.ProductPatch) (_ *domain.Product, err error) {
	ctx, span := tracing.Start(ctx, "ProductService.Update")
	defer func() { tracing.End(span, err); observe("product", "update", err) }()

	if err := s.validator.ValidateProductPatch(&patch); err != nil {
		return nil, err
	}

	existing, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if !featureflags.Enabled(featureflags.TrustClientSlug) {
		patch.Slug = nil
		if patch.Title != nil {
			sl := slug.Make(*patch.Title)
			if err := checkSlug("title", sl); err != nil {
				return nil, err
			}
			patch.Slug = &sl
		}
	} else if patch.Slug != nil {
		if err := checkSlug("slug", *patch.Slug); err != nil {
			return nil, err
		}
	}
	if patch.Empty() {
		return existing, nil
	}

	return cache.Mutate(ctx, s.cache, func(ctx context.Context) (*domain.Product, []cache.Tag, error) {
		updated, err := s.repo.UpdateByID(ctx, id, patch)
		if err != nil {
			return nil, nil, err
		}
		s.logger.Info("product updated",
			slog.String("product_id", id),
			slog.String("slug", updated.Slug),
		)
		return updated, cache.ProductUpdated(id, existing.Slug, updated.Slug), nil
	})
}

// Delete removes the product with id
func (s *ProductService) Delete(ctx context.Context, id string) (err error) {
	ctx, span := tracing.Start(ctx, "ProductService.Delete")
	defer func() { tracing.End(span, err); observe("product", "delete", err) }()

	_, err = cache.Mutate(ctx, s.cache, func(ctx context.Context) (*domain.Product, []cache.Tag, error) {
		deleted, err := s.repo.DeleteByID(ctx, id)
		if err != nil {
			return nil, nil, err
		}
		s.logger.Info("product deleted", slog.String("product_id", id))
		return deleted, cache.ProductDeleted(deleted.ID, deleted.Slug), nil
	})
	return err
}

// checkSlug rejects slugs that are empty or would be shadowed by a fixed
// route, reporting the problem against field.
func checkSlug(field, sl string) error {
	switch {
	case sl == "":
		return domain.Validation("validation failed", map[string]string{field: "must contain letters or digits"})
	case slug.Reserved(sl):
		return domain.Validation("validation failed", map[string]string{field: "is reserved"})
	}
	return nil
}

// observe counts an operation under its error kind
func observe(entity, operation string, err error) {
	metrics.ObserveOperation(entity, operation, resultOf(err))
}

func resultOf(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, domain.ErrValidation):
		return "validation"
	case errors.Is(err, domain.ErrConflict):
		return "conflict"
	case errors.Is(err, domain.ErrNotFound):
		return "not_found"
	case errors.Is(err, domain.ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, domain.ErrForbidden):
		return "forbidden"
	default:
		return "error"
	}
}
