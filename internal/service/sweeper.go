package service

import (
	"context"
	"log/slog"
	"time"
)

const DefaultSweepInterval = time.Minute

type staleOrderCanceller interface {
	AutoCancelStalePending(ctx context.Context) (SweepResult, error)
}

// Sweeper runs the stale order sweep on a fixed interval.
type Sweeper struct {
	orders   staleOrderCanceller
	interval time.Duration
	logger   *slog.Logger
}

func NewSweeper(orders *OrderService, interval time.Duration, logger *slog.Logger) *Sweeper {
	return newSweeper(orders, interval, logger)
}

func newSweeper(orders staleOrderCanceller, interval time.Duration, logger *slog.Logger) *Sweeper {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Sweeper{
		orders:   orders,
		interval: interval,
		logger:   logger.With("component", "sweeper"),
	}
}

// Run sweeps once immediately and then every interval until ctx is done.
// It always returns nil so it can sit in an errgroup next to the server.
func (s *Sweeper) Run(ctx context.Context) error {
	s.logger.Info("stale order sweeper started", "interval", s.interval)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		s.sweep(ctx)

		select {
		case <-ctx.Done():
			s.logger.Info("stale order sweeper stopped")
			return nil
		case <-ticker.C:
		}
	}
}

func (s *Sweeper) sweep(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	if _, err := s.orders.AutoCancelStalePending(ctx); err != nil {
		s.logger.Error("stale order sweep failed", "error", err)
	}
}
