package services

import (
	"context"
	"time"

	aws_pkg "github.com/yashrajoria/checkout-service/pkg/aws"
	"github.com/yashrajoria/checkout-service/providers"
	"github.com/yashrajoria/checkout-service/repository"
	"go.uber.org/zap"
)

// RateRefresher keeps the cached conversion tables fresh.
type RateRefresher interface {
	// RefreshStale refetches every table whose NextUpdate has passed, one at
	// a time. A failing currency is logged and skipped.
	RefreshStale(ctx context.Context) (refreshed, failed int, err error)
	// Start runs RefreshStale every interval until ctx is done.
	Start(ctx context.Context)
}

type rateRefresherImpl struct {
	rates    repository.ConversionRateRepository
	provider providers.ExchangeRateProvider
	metrics  *aws_pkg.MetricsClient
	interval time.Duration
	logger   *zap.Logger
	now      func() time.Time
}

func NewRateRefresher(
	rates repository.ConversionRateRepository,
	provider providers.ExchangeRateProvider,
	metrics *aws_pkg.MetricsClient,
	interval time.Duration,
	logger *zap.Logger,
) RateRefresher {
	return &rateRefresherImpl{
		rates:    rates,
		provider: provider,
		metrics:  metrics,
		interval: interval,
		logger:   logger,
		now:      time.Now,
	}
}

func (r *rateRefresherImpl) RefreshStale(ctx context.Context) (int, int, error) {
	stale, err := r.rates.FindStale(ctx, r.now().UTC())
	if err != nil {
		return 0, 0, err
	}

	refreshed, failed := 0, 0
	for _, rate := range stale {
		if ctx.Err() != nil {
			return refreshed, failed, ctx.Err()
		}

		set, err := r.provider.Latest(ctx, rate.BaseCurrency)
		if err != nil {
			failed++
			r.logger.Warn("Failed to refresh conversion rates", zap.String("base_currency", rate.BaseCurrency), zap.Error(err))
			continue
		}

		now := r.now().UTC()
		rate.Rates = set.Rates
		rate.LastUpdate = now
		rate.NextUpdate = now.Add(r.interval)
		if err := r.rates.Upsert(ctx, rate); err != nil {
			failed++
			r.logger.Error("Failed to store refreshed conversion rates", zap.String("base_currency", rate.BaseCurrency), zap.Error(err))
			continue
		}
		refreshed++
	}

	if refreshed > 0 {
		_ = r.metrics.RecordValue(ctx, aws_pkg.MetricRatesRefreshed, float64(refreshed), nil)
	}
	return refreshed, failed, nil
}

func (r *rateRefresherImpl) Start(ctx context.Context) {
	r.logger.Info("Starting conversion rate refresher", zap.Duration("interval", r.interval))

	run := func() {
		refreshed, failed, err := r.RefreshStale(ctx)
		if err != nil {
			r.logger.Error("Conversion rate refresh failed", zap.Error(err))
			return
		}
		r.logger.Info("Conversion rates refreshed", zap.Int("refreshed", refreshed), zap.Int("failed", failed))
	}

	run()
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			r.logger.Info("Conversion rate refresher stopped")
			return
		case <-ticker.C:
			run()
		}
	}
}
