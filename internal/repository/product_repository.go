package repository

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/aryan0dhankhar/productcatalog/internal/domain"
)

const productColumns = `id, title, description, image, category, price, availability, slug, created_at, updated_at`

// SQLProductRepository implements domain.ProductRepository on PostgreSQL or SQLite
type SQLProductRepository struct {
	db      *sql.DB
	dialect Dialect
	logger  *slog.Logger
}

// NewSQLProductRepository creates a new product repository
func NewSQLProductRepository(db *sql.DB, dialect Dialect, logger *slog.Logger) *SQLProductRepository {
	if logger == nil {
		logger = slog.Default()
	}

	return &SQLProductRepository{
		db:      db,
		dialect: dialect,
		logger:  logger,
	}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProduct(row rowScanner) (*domain.Product, error) {
	p := &domain.Product{}
	var category string
	var createdAt, updatedAt int64
	err := row.Scan(
		&p.ID,
		&p.Title,
		&p.Description,
		&p.Image,
		&category,
		&p.Price,
		&p.Availability,
		&p.Slug,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}
	p.Category = domain.Category(category)
	p.CreatedAt = fromMillis(createdAt)
	p.UpdatedAt = fromMillis(updatedAt)
	return p, nil
}

// Find returns the products matching filter in the requested order
func (r *SQLProductRepository) Find(ctx context.Context, filter domain.ProductFilter, sort *domain.SortDirective) ([]*domain.Product, error) {
	products := []*domain.Product{}
	if filter.MatchesNothing() {
		return products, nil
	}

	var where []string
	var args []any
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if filter.TitleContains != "" {
		where = append(where, r.dialect.Lower("title")+` LIKE `+arg("%"+escapeLike(strings.ToLower(filter.TitleContains))+"%")+` ESCAPE '\'`)
	}
	if filter.Category != "" {
		where = append(where, "category = "+arg(string(filter.Category)))
	}
	if filter.MinPrice != nil {
		where = append(where, "price >= "+arg(*filter.MinPrice))
	}
	if filter.MaxPrice != nil {
		where = append(where, "price <= "+arg(*filter.MaxPrice))
	}

	query := "SELECT " + productColumns + " FROM products"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY " + orderBy(sort)

	rows, err := r.db.QueryContext(ctx, r.dialect.Rebind(query), args...)
	if err != nil {
		r.logger.Error("failed to query products", slog.String("error", err.Error()))
		return nil, fmt.Errorf("failed to query products: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan product: %w", err)
		}
		products = append(products, p)
	}

	return products, rows.Err()
}

// orderBy renders a sort directive. Ids are time ordered, so ordering by id
// keeps insertion order among equal prices.
func orderBy(sort *domain.SortDirective) string {
	if sort == nil || sort.Field != domain.SortByPrice {
		return "id"
	}
	if sort.Descending {
		return "price DESC, id"
	}
	return "price ASC, id"
}

// FindByID retrieves a product by ID
func (r *SQLProductRepository) FindByID(ctx context.Context, id string) (*domain.Product, error) {
	query := r.dialect.Rebind(`SELECT ` + productColumns + ` FROM products WHERE id = $1`)

	p, err := scanProduct(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if isNoRows(err) {
			return nil, domain.NotFound("Product with id %q not found", id)
		}
		return nil, fmt.Errorf("failed to get product: %w", err)
	}
	return p, nil
}

// FindBySlug retrieves a product by its exact slug
func (r *SQLProductRepository) FindBySlug(ctx context.Context, slug string) (*domain.Product, error) {
	query := r.dialect.Rebind(`SELECT ` + productColumns + ` FROM products WHERE slug = $1`)

	p, err := scanProduct(r.db.QueryRowContext(ctx, query, slug))
	if err != nil {
		if isNoRows(err) {
			return nil, domain.NotFound("Product with slug %q not found", slug)
		}
		return nil, fmt.Errorf("failed to get product by slug: %w", err)
	}
	return p, nil
}

// Insert stores a new product, assigning its id and timestamps
func (r *SQLProductRepository) Insert(ctx context.Context, p *domain.Product) error {
	id, err := uuid.NewV7()
	if err != nil {
		return fmt.Errorf("failed to generate id: %w", err)
	}
	ts := now()

	query := r.dialect.Rebind(`
		INSERT INTO products (` + productColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`)

	_, err = r.db.ExecContext(ctx, query,
		id.String(),
		p.Title,
		p.Description,
		p.Image,
		string(p.Category),
		p.Price,
		p.Availability,
		p.Slug,
		toMillis(ts),
		toMillis(ts),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.Conflict("Product with slug %q already exists", p.Slug)
		}
		r.logger.Error("failed to create product",
			slog.String("slug", p.Slug),
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("failed to create product: %w", err)
	}

	p.ID = id.String()
	p.CreatedAt = ts
	p.UpdatedAt = ts
	return nil
}

// UpdateByID applies the supplied fields and returns the updated record
func (r *SQLProductRepository) UpdateByID(ctx context.Context, id string, patch domain.ProductPatch) (*domain.Product, error) {
	var sets []string
	var args []any
	set := func(column string, v any) {
		args = append(args, v)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	if patch.Title != nil {
		set("title", *patch.Title)
	}
	if patch.Description != nil {
		set("description", *patch.Description)
	}
	if patch.Image != nil {
		set("image", *patch.Image)
	}
	if patch.Category != nil {
		set("category", string(*patch.Category))
	}
	if patch.Price != nil {
		set("price", *patch.Price)
	}
	if patch.Availability != nil {
		set("availability", *patch.Availability)
	}
	if patch.Slug != nil {
		set("slug", *patch.Slug)
	}
	set("updated_at", toMillis(now()))
	args = append(args, id)

	query := fmt.Sprintf(`UPDATE products SET %s WHERE id = $%d RETURNING %s`,
		strings.Join(sets, ", "), len(args), productColumns)

	p, err := scanProduct(r.db.QueryRowContext(ctx, r.dialect.Rebind(query), args...))
	if err != nil {
		switch {
		case isNoRows(err):
			return nil, domain.NotFound("Product with id %q not found", id)
		case isUniqueViolation(err):
			return nil, domain.Conflict("Product with slug %q already exists", deref(patch.Slug))
		}
		r.logger.Error("failed to update product",
			slog.String("id", id),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("failed to update product: %w", err)
	}
	return p, nil
}

// DeleteByID removes a product and returns the deleted record
func (r *SQLProductRepository) DeleteByID(ctx context.Context, id string) (*domain.Product, error) {
	query := r.dialect.Rebind(`DELETE FROM products WHERE id = $1 RETURNING ` + productColumns)

	p, err := scanProduct(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if isNoRows(err) {
			return nil, domain.NotFound("Product with id %q not found", id)
		}
		return nil, fmt.Errorf("failed to delete product: %w", err)
	}
	return p, nil
}

// Categories lists the distinct categories in use, in display order
func (r *SQLProductRepository) Categories(ctx context.Context) ([]domain.Category, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT DISTINCT category FROM products`)
	if err != nil {
		return nil, fmt.Errorf("failed to list categories: %w", err)
	}
	defer rows.Close()

	present := map[domain.Category]bool{}
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return nil, fmt.Errorf("failed to scan category: %w", err)
		}
		present[domain.Category(c)] = true
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return orderCategories(present), nil
}

// Count returns the number of products and how many are available
func (r *SQLProductRepository) Count(ctx context.Context) (int, int, error) {
	var total, available int
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*), COALESCE(SUM(CASE WHEN availability THEN 1 ELSE 0 END), 0)
		FROM products
	`).Scan(&total, &available)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to count products: %w", err)
	}
	return total, available, nil
}

func orderCategories(present map[domain.Category]bool) []domain.Category {
	out := []domain.Category{}
	for _, c := range domain.Categories {
		if present[c] {
			out = append(out, c)
		}
	}
	return out
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

var _ domain.ProductRepository = (*SQLProductRepository)(nil)
