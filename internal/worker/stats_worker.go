package worker

import (
	"context"
	"log/slog"
	"time"

	"github.com/aryan0dhankhar/productcatalog/internal/observability/metrics"
)

// ProductCounter reports catalog totals
type ProductCounter interface {
	Count(ctx context.Context) (total int, available int, err error)
}

// UserCounter reports the number of active accounts
type UserCounter interface {
	CountActive(ctx context.Context) (int, error)
}

// Stats is one sample of the catalog gauges
type Stats struct {
	Products    int
	Available   int
	ActiveUsers int
}

// StatsWorker periodically samples catalog sizes into Prometheus gauges
type StatsWorker struct {
	products ProductCounter
	users    UserCounter
	logger   *slog.Logger
	interval time.Duration
	timeout  time.Duration
}

// NewStatsWorker creates a new stats worker
func NewStatsWorker(products ProductCounter, users UserCounter, logger *slog.Logger, interval time.Duration) *StatsWorker {
	if logger == nil {
		logger = slog.Default()
	}
	if interval <= 0 {
		interval = time.Minute
	}
	return &StatsWorker{
		products: products,
		users:    users,
		logger:   logger,
		interval: interval,
		timeout:  10 * time.Second,
	}
}

// Start samples once immediately, then on every tick until ctx is done
func (w *StatsWorker) Start(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.logger.Info("stats worker started", slog.Duration("interval", w.interval))
	w.sample(ctx)

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("stats worker stopped")
			return
		case <-ticker.C:
			w.sample(ctx)
		}
	}
}

func (w *StatsWorker) sample(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, w.timeout)
	defer cancel()

	s, err := w.Collect(ctx)
	if err != nil {
		w.logger.Error("failed to collect catalog stats", slog.String("error", err.Error()))
		return
	}
	metrics.SetCatalogStats(s.Products, s.Available, s.ActiveUsers)
	w.logger.Debug("catalog stats updated",
		slog.Int("products", s.Products),
		slog.Int("available", s.Available),
		slog.Int("active_users", s.ActiveUsers),
	)
}

// Collect reads the current counts. A missing user counter reports zero users.
func (w *StatsWorker) Collect(ctx context.Context) (Stats, error) {
	var s Stats
	total, available, err := w.products.Count(ctx)
	if err != nil {
		return s, err
	}
	s.Products, s.Available = total, available

	if w.users != nil {
		active, err := w.users.CountActive(ctx)
		if err != nil {
			return s, err
		}
		s.ActiveUsers = active
	}
	return s, nil
}
