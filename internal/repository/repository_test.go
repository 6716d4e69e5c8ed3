package repository

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/aryan0dhankhar/productcatalog/internal/domain"
	"github.com/aryan0dhankhar/productcatalog/internal/query"
	"github.com/aryan0dhankhar/productcatalog/pkg/database"
)

type stores struct {
	products domain.ProductRepository
	users    domain.UserRepository
}

// backends runs each test against the SQL repositories on in-memory SQLite
// and against the memory repositories.
func backends(t *testing.T) map[string]stores {
	t.Helper()

	cp, err := database.NewConnectionPool(context.Background(), database.DefaultConfig(), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = cp.Close() })

	return map[string]stores{
		"sqlite": {
			products: NewSQLProductRepository(cp.GetDB(), DialectSQLite, nil),
			users:    NewSQLUserRepository(cp.GetDB(), DialectSQLite, nil),
		},
		"memory": {
			products: NewMemoryProductRepository(),
			users:    NewMemoryUserRepository(),
		},
	}
}

func seed(t *testing.T, repo domain.ProductRepository) []*domain.Product {
	t.Helper()
	items := []domain.Product{
		{Title: "Wireless Earbuds", Category: domain.CategoryElectronics, Price: 79.99, Availability: true, Slug: "wireless-earbuds"},
		{Title: "Running Shoes", Category: domain.CategoryShoes, Price: 120, Availability: true, Slug: "running-shoes"},
		{Title: "Linen Shirt", Category: domain.CategoryClothing, Price: 45.5, Availability: false, Slug: "linen-shirt"},
		{Title: "Leather Belt", Category: domain.CategoryAccessories, Price: 30, Availability: true, Slug: "leather-belt"},
		{Title: "100%_Wool Scarf", Category: domain.CategoryAccessories, Price: 25, Availability: true, Slug: "100percentwool-scarf"},
	}
	out := make([]*domain.Product, 0, len(items))
	for i := range items {
		p := items[i]
		p.Description = "A fine catalog product"
		p.Image = "https://cdn.example.com/p.jpg"
		require.NoError(t, repo.Insert(context.Background(), &p))
		out = append(out, &p)
	}
	return out
}

func titles(ps []*domain.Product) []string {
	out := make([]string, len(ps))
	for i, p := range ps {
		out[i] = p.Title
	}
	return out
}

func find(t *testing.T, repo domain.ProductRepository, q query.ProductQuery) []*domain.Product {
	t.Helper()
	filter, sort := query.BuildProductQuery(q)
	ps, err := repo.Find(context.Background(), filter, sort)
	require.NoError(t, err)
	return ps
}

func TestProductFind(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			seed(t, s.products)

			all := find(t, s.products, query.ProductQuery{})
			require.Equal(t, []string{"Wireless Earbuds", "Running Shoes", "Linen Shirt", "Leather Belt", "100%_Wool Scarf"}, titles(all))

			require.Equal(t, []string{"Wireless Earbuds"}, titles(find(t, s.products, query.ProductQuery{Search: "LESS EAR"})))
			require.Equal(t, []string{"100%_Wool Scarf"}, titles(find(t, s.products, query.ProductQuery{Search: "%_"})))
			require.Empty(t, find(t, s.products, query.ProductQuery{Search: "_x"}))

			require.Equal(t, []string{"Leather Belt", "100%_Wool Scarf"},
				titles(find(t, s.products, query.ProductQuery{Category: "Accessories"})))

			ranged := find(t, s.products, query.ProductQuery{MinPrice: "30", MaxPrice: "80"})
			require.Equal(t, []string{"Wireless Earbuds", "Linen Shirt", "Leather Belt"}, titles(ranged))
			for _, p := range ranged {
				require.True(t, p.Price >= 30 && p.Price <= 80)
			}

			require.Empty(t, find(t, s.products, query.ProductQuery{MaxPrice: "cheap"}))

			screen := &domain.Product{Title: "ÉCRAN Tactile", Category: domain.CategoryElectronics, Price: 199, Slug: "ecran-tactile"}
			require.NoError(t, s.products.Insert(context.Background(), screen))
			require.Equal(t, []string{"ÉCRAN Tactile"}, titles(find(t, s.products, query.ProductQuery{Search: "écran"})))
			require.Equal(t, []string{"ÉCRAN Tactile"}, titles(find(t, s.products, query.ProductQuery{Search: "Écran TACTILE"})))
		})
	}
}

func TestProductSortReverses(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			seed(t, s.products)

			asc := titles(find(t, s.products, query.ProductQuery{Sort: query.SortPriceAsc}))
			desc := titles(find(t, s.products, query.ProductQuery{Sort: query.SortPriceDesc}))
			require.Equal(t, []string{"100%_Wool Scarf", "Leather Belt", "Linen Shirt", "Wireless Earbuds", "Running Shoes"}, asc)

			for i := range asc {
				require.Equal(t, asc[i], desc[len(desc)-1-i])
			}
		})
	}
}

func TestProductSortTieBreakKeepsInsertionOrder(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			for i := 0; i < 5; i++ {
				p := &domain.Product{Title: fmt.Sprintf("Item %d", i), Category: domain.CategoryShoes, Price: 10, Slug: fmt.Sprintf("item-%d", i)}
				require.NoError(t, s.products.Insert(context.Background(), p))
			}
			got := titles(find(t, s.products, query.ProductQuery{Sort: query.SortPriceDesc}))
			require.Equal(t, []string{"Item 0", "Item 1", "Item 2", "Item 3", "Item 4"}, got)
		})
	}
}

func TestProductLifecycle(t *testing.T) {
	ctx := context.Background()
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			seeded := seed(t, s.products)
			earbuds := seeded[0]
			require.NotEmpty(t, earbuds.ID)
			require.False(t, earbuds.CreatedAt.IsZero())

			dup := &domain.Product{Title: "Wireless Earbuds", Slug: "wireless-earbuds", Category: domain.CategoryElectronics}
			require.ErrorIs(t, s.products.Insert(ctx, dup), domain.ErrConflict)

			got, err := s.products.FindBySlug(ctx, "wireless-earbuds")
			require.NoError(t, err)
			require.Equal(t, earbuds.ID, got.ID)
			require.Equal(t, earbuds.CreatedAt, got.CreatedAt)

			_, err = s.products.FindBySlug(ctx, "nope")
			require.ErrorIs(t, err, domain.ErrNotFound)
			require.EqualError(t, err, `Product with slug "nope" not found`)

			price := 59.0
			newSlug := "earbuds-pro"
			updated, err := s.products.UpdateByID(ctx, earbuds.ID, domain.ProductPatch{Price: &price, Slug: &newSlug})
			require.NoError(t, err)
			require.Equal(t, 59.0, updated.Price)
			require.Equal(t, "Wireless Earbuds", updated.Title)
			require.Equal(t, "earbuds-pro", updated.Slug)

			_, err = s.products.FindBySlug(ctx, "wireless-earbuds")
			require.ErrorIs(t, err, domain.ErrNotFound)

			taken := "running-shoes"
			_, err = s.products.UpdateByID(ctx, earbuds.ID, domain.ProductPatch{Slug: &taken})
			require.ErrorIs(t, err, domain.ErrConflict)

			_, err = s.products.UpdateByID(ctx, "missing", domain.ProductPatch{Price: &price})
			require.ErrorIs(t, err, domain.ErrNotFound)

			deleted, err := s.products.DeleteByID(ctx, earbuds.ID)
			require.NoError(t, err)
			require.Equal(t, "earbuds-pro", deleted.Slug)

			_, err = s.products.DeleteByID(ctx, earbuds.ID)
			require.ErrorIs(t, err, domain.ErrNotFound)

			total, available, err := s.products.Count(ctx)
			require.NoError(t, err)
			require.Equal(t, 4, total)
			require.Equal(t, 3, available)

			cats, err := s.products.Categories(ctx)
			require.NoError(t, err)
			require.Equal(t, []domain.Category{domain.CategoryClothing, domain.CategoryShoes, domain.CategoryAccessories}, cats)
		})
	}
}

func TestUserLifecycle(t *testing.T) {
	ctx := context.Background()
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			alice := &domain.User{Email: "alice@example.com", Name: "Alice", PasswordHash: "h1", Role: domain.RoleAdmin, IsActive: true}
			require.NoError(t, s.users.Insert(ctx, alice))
			bob := &domain.User{Email: "bob@example.com", Name: "Bob", PasswordHash: "h2", Role: domain.RoleUser, IsActive: true}
			require.NoError(t, s.users.Insert(ctx, bob))

			err := s.users.Insert(ctx, &domain.User{Email: "alice@example.com", Name: "Other", Role: domain.RoleUser})
			require.ErrorIs(t, err, domain.ErrConflict)

			got, err := s.users.FindByEmail(ctx, "bob@example.com")
			require.NoError(t, err)
			require.Equal(t, bob.ID, got.ID)
			require.Equal(t, "h2", got.PasswordHash)

			list, err := s.users.List(ctx)
			require.NoError(t, err)
			require.Len(t, list, 2)
			require.Equal(t, alice.ID, list[0].ID)

			inactive := false
			updated, err := s.users.UpdateByID(ctx, bob.ID, domain.UserPatch{IsActive: &inactive})
			require.NoError(t, err)
			require.False(t, updated.IsActive)
			require.Equal(t, "Bob", updated.Name)

			active, err := s.users.CountActive(ctx)
			require.NoError(t, err)
			require.Equal(t, 1, active)

			taken := "alice@example.com"
			_, err = s.users.UpdateByID(ctx, bob.ID, domain.UserPatch{Email: &taken})
			require.ErrorIs(t, err, domain.ErrConflict)

			_, err = s.users.DeleteByID(ctx, bob.ID)
			require.NoError(t, err)
			_, err = s.users.FindByID(ctx, bob.ID)
			require.True(t, errors.Is(err, domain.ErrNotFound))
		})
	}
}

func TestRebind(t *testing.T) {
	require.Equal(t, "a = ?1 AND b = ?12", DialectSQLite.Rebind("a = $1 AND b = $12"))
	require.Equal(t, "a = $1", DialectPostgres.Rebind("a = $1"))
}

func TestEscapeLike(t *testing.T) {
	require.Equal(t, `50\%\_off\\`, escapeLike(`50%_off\`))
}
