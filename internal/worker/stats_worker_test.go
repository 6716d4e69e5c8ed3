package worker

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/aryan0dhankhar/productcatalog/internal/domain"
	"github.com/aryan0dhankhar/productcatalog/internal/repository"
)

type failingCounter struct{}

func (failingCounter) Count(context.Context) (int, int, error) {
	return 0, 0, errors.New("store unavailable")
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestCollect(t *testing.T) {
	ctx := context.Background()
	products := repository.NewMemoryProductRepository()
	users := repository.NewMemoryUserRepository()

	require.NoError(t, products.Insert(ctx, &domain.Product{Title: "Belt", Slug: "belt", Availability: true}))
	require.NoError(t, products.Insert(ctx, &domain.Product{Title: "Hat", Slug: "hat"}))
	require.NoError(t, users.Insert(ctx, &domain.User{Email: "a@example.com", IsActive: true}))
	require.NoError(t, users.Insert(ctx, &domain.User{Email: "b@example.com"}))

	w := NewStatsWorker(products, users, testLogger(), time.Minute)
	s, err := w.Collect(ctx)
	require.NoError(t, err)
	require.Equal(t, Stats{Products: 2, Available: 1, ActiveUsers: 1}, s)
}

func TestCollectWithoutUsers(t *testing.T) {
	w := NewStatsWorker(repository.NewMemoryProductRepository(), nil, testLogger(), 0)
	s, err := w.Collect(context.Background())
	require.NoError(t, err)
	require.Zero(t, s.ActiveUsers)
	require.Equal(t, time.Minute, w.interval)
}

func TestCollectError(t *testing.T) {
	w := NewStatsWorker(failingCounter{}, nil, testLogger(), time.Minute)
	_, err := w.Collect(context.Background())
	require.Error(t, err)
}

func TestStartStopsOnCancel(t *testing.T) {
	w := NewStatsWorker(failingCounter{}, nil, testLogger(), 5*time.Millisecond)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Start(ctx)
		close(done)
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("worker did not stop after cancel")
	}
}
