package catalogclient

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/aryan0dhankhar/productcatalog/internal/domain"
	"github.com/aryan0dhankhar/productcatalog/internal/handler"
	"github.com/aryan0dhankhar/productcatalog/internal/query"
	"github.com/aryan0dhankhar/productcatalog/internal/realtime"
	"github.com/aryan0dhankhar/productcatalog/internal/repository"
	"github.com/aryan0dhankhar/productcatalog/internal/security/auth"
	"github.com/aryan0dhankhar/productcatalog/internal/service"
	"github.com/aryan0dhankhar/productcatalog/pkg/cache"
)

type server struct {
	*httptest.Server
	gets atomic.Int64
}

type blobs struct{}

func (blobs) Put(_ context.Context, key, _ string, _ []byte) (string, error) {
	return "https://catalog.s3.eu-north-1.amazonaws.com/" + key, nil
}

func newServer(t *testing.T) *server {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	serverCache := cache.New(nil, 0)
	hub := realtime.NewHub(nil, log)
	serverCache.OnInvalidate(hub.Publish)

	products := service.NewProductService(repository.NewMemoryProductRepository(), nil, serverCache, log)
	users := service.NewUserService(repository.NewMemoryUserRepository(), auth.NewPasswordHasher(bcrypt.MinCost), nil, serverCache, log)
	authSvc := service.NewAuthService(users, auth.NewTokenManager("client-test", "catalog-test", time.Hour), nil, log)

	_, err := users.Create(context.Background(), &domain.UserInput{
		Email: "admin@example.com", Name: "Admin", Password: "admin-pass", Role: domain.RoleAdmin,
	})
	require.NoError(t, err)

	router := handler.NewRouter(handler.Routes{
		Products:       handler.NewProductHandler(products, log),
		Users:          handler.NewUserHandler(users, log),
		Auth:           handler.NewAuthHandler(authSvc, log),
		Upload:         handler.NewUploadHandler(service.NewUploadService(blobs{}, service.DefaultMaxUploadBytes, log), log),
		Health:         handler.NewHealthHandler(nil, log),
		Invalidations:  handler.NewInvalidationsHandler(hub, log, []string{"*"}),
		Verifier:       authSvc,
		AllowedOrigins: []string{"*"},
		Logger:         log,
	})

	s := &server{}
	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet && r.URL.Path != "/ws/invalidations" {
			s.gets.Add(1)
		}
		router.ServeHTTP(w, r)
	}))
	t.Cleanup(s.Close)
	return s
}

func adminClient(t *testing.T, s *server) *Client {
	t.Helper()
	c := New(s.URL, WithHTTPClient(s.Client()))
	res, err := c.Login(context.Background(), "admin@example.com", "admin-pass")
	require.NoError(t, err)
	require.Equal(t, "Bearer", res.TokenType)
	require.NotEmpty(t, c.Token())
	return c
}

func input(title, category string, price float64) domain.ProductInput {
	available := true
	return domain.ProductInput{
		Title:        title,
		Description:  "A product worth having in the catalog",
		Image:        "https://images.example.com/item.jpg",
		Category:     domain.Category(category),
		Price:        &price,
		Availability: &available,
	}
}

func TestListIsCachedUntilMutation(t *testing.T) {
	ctx := context.Background()
	s := newServer(t)
	c := adminClient(t, s)

	_, err := c.CreateProduct(ctx, input("Leather Belt", "Accessories", 35))
	require.NoError(t, err)

	list, err := c.ListProducts(ctx, query.ProductQuery{})
	require.NoError(t, err)
	require.Len(t, list, 1)
	before := s.gets.Load()

	_, err = c.ListProducts(ctx, query.ProductQuery{})
	require.NoError(t, err)
	require.Equal(t, before, s.gets.Load(), "second read should be served from cache")

	_, err = c.CreateProduct(ctx, input("Cotton Shirt", "Clothing", 25.5))
	require.NoError(t, err)

	list, err = c.ListProducts(ctx, query.ProductQuery{})
	require.NoError(t, err)
	require.Len(t, list, 2)
	require.Equal(t, before+1, s.gets.Load())
}

func TestFailedMutationKeepsCache(t *testing.T) {
	ctx := context.Background()
	s := newServer(t)
	c := adminClient(t, s)

	_, err := c.CreateProduct(ctx, input("Leather Belt", "Accessories", 35))
	require.NoError(t, err)
	_, err = c.ListProducts(ctx, query.ProductQuery{})
	require.NoError(t, err)
	before := s.gets.Load()

	_, err = c.CreateProduct(ctx, input("Leather Belt", "Accessories", 10))
	require.ErrorIs(t, err, domain.ErrConflict)

	err = c.DeleteProduct(ctx, "missing-id")
	require.ErrorIs(t, err, domain.ErrNotFound)

	_, err = c.ListProducts(ctx, query.ProductQuery{})
	require.NoError(t, err)
	require.Equal(t, before, s.gets.Load())
}

func TestRenameInvalidatesOldSlug(t *testing.T) {
	ctx := context.Background()
	s := newServer(t)
	c := adminClient(t, s)

	p, err := c.CreateProduct(ctx, input("Running Shoes", "Shoes", 120))
	require.NoError(t, err)
	require.Equal(t, "running-shoes", p.Slug)

	_, err = c.ProductBySlug(ctx, "running-shoes")
	require.NoError(t, err)

	title := "Trail Shoes"
	updated, err := c.UpdateProduct(ctx, p.ID, domain.ProductPatch{Title: &title})
	require.NoError(t, err)
	require.Equal(t, "trail-shoes", updated.Slug)

	stale, err := c.Cache().Stale(ctx, keySlugPrefix+"running-shoes")
	require.NoError(t, err)
	require.True(t, stale)

	_, err = c.ProductBySlug(ctx, "running-shoes")
	require.ErrorIs(t, err, domain.ErrNotFound)

	got, err := c.ProductBySlug(ctx, "trail-shoes")
	require.NoError(t, err)
	require.Equal(t, p.ID, got.ID)
}

func TestTitleSortIsLocal(t *testing.T) {
	ctx := context.Background()
	s := newServer(t)
	c := adminClient(t, s)

	for _, in := range []domain.ProductInput{
		input("Wireless Earbuds", "Electronics", 79.99),
		input("cotton Shirt", "Clothing", 25.5),
		input("Leather Belt", "Accessories", 35),
	} {
		_, err := c.CreateProduct(ctx, in)
		require.NoError(t, err)
	}

	list, err := c.ListProducts(ctx, query.ProductQuery{Sort: query.SortTitle})
	require.NoError(t, err)
	require.Equal(t, []string{"cotton Shirt", "Leather Belt", "Wireless Earbuds"}, titles(list))

	// The unsorted listing shares the cache entry and keeps store order.
	before := s.gets.Load()
	list, err = c.ListProducts(ctx, query.ProductQuery{})
	require.NoError(t, err)
	require.Equal(t, before, s.gets.Load())
	require.Equal(t, []string{"Wireless Earbuds", "cotton Shirt", "Leather Belt"}, titles(list))

	cats, err := c.Categories(ctx)
	require.NoError(t, err)
	require.Equal(t, []domain.Category{"Clothing", "Accessories", "Electronics"}, cats)
}

func TestWatchAppliesRemoteInvalidations(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s := newServer(t)
	reader := adminClient(t, s)
	writer := adminClient(t, s)

	p, err := writer.CreateProduct(ctx, input("Wireless Earbuds", "Electronics", 79.99))
	require.NoError(t, err)

	list, err := reader.ListProducts(ctx, query.ProductQuery{})
	require.NoError(t, err)
	require.Len(t, list, 1)

	// Without the feed, another session's delete leaves the reader stale.
	require.NoError(t, writer.DeleteProduct(ctx, p.ID))
	list, err = reader.ListProducts(ctx, query.ProductQuery{})
	require.NoError(t, err)
	require.Len(t, list, 1)

	done := make(chan error, 1)
	go func() { done <- reader.Watch(ctx) }()
	time.Sleep(50 * time.Millisecond)

	_, err = writer.CreateProduct(ctx, input("Running Shoes", "Shoes", 120))
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		stale, err := reader.Cache().Stale(ctx, ProductListKey(query.ProductQuery{}))
		return err == nil && stale
	}, 2*time.Second, 10*time.Millisecond)

	list, err = reader.ListProducts(ctx, query.ProductQuery{})
	require.NoError(t, err)
	require.Equal(t, []string{"Running Shoes"}, titles(list))

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("watch did not stop")
	}
}

func TestUsersAndErrors(t *testing.T) {
	ctx := context.Background()
	s := newServer(t)
	admin := adminClient(t, s)

	anon := New(s.URL, WithHTTPClient(s.Client()))
	u, err := anon.Register(ctx, domain.UserInput{Email: "jane@example.com", Name: "Jane", Password: "secret123"})
	require.NoError(t, err)
	require.Equal(t, domain.RoleUser, u.Role)

	_, err = anon.Login(ctx, "jane@example.com", "wrong")
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, http.StatusUnauthorized, apiErr.Status)
	require.Equal(t, "invalid credentials", apiErr.Message)
	require.ErrorIs(t, err, domain.ErrUnauthorized)

	_, err = anon.CreateProduct(ctx, domain.ProductInput{Title: "x"})
	require.ErrorIs(t, err, domain.ErrUnauthorized)

	users, err := admin.ListUsers(ctx)
	require.NoError(t, err)
	require.Len(t, users, 2)

	_, err = admin.DeactivateUser(ctx, u.ID)
	require.NoError(t, err)
	users, err = admin.ListUsers(ctx)
	require.NoError(t, err)
	for _, got := range users {
		if got.ID == u.ID {
			require.False(t, got.IsActive)
		}
	}

	_, err = anon.Login(ctx, "jane@example.com", "secret123")
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, "account deactivated", apiErr.Message)

	url, err := admin.UploadImage(ctx, "belt.webp", "image/webp", []byte("webp"))
	require.NoError(t, err)
	require.Contains(t, url, "/products/")

	_, err = admin.CreateProduct(ctx, domain.ProductInput{Title: "x"})
	require.ErrorAs(t, err, &apiErr)
	require.True(t, errors.Is(err, domain.ErrValidation))
	require.NotEmpty(t, apiErr.Fields)
}

func titles(ps []domain.Product) []string {
	out := make([]string, len(ps))
	for i, p := range ps {
		out[i] = p.Title
	}
	return out
}
