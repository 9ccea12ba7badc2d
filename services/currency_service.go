package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/yashrajoria/checkout-service/models"
	aws_pkg "github.com/yashrajoria/checkout-service/pkg/aws"
	"github.com/yashrajoria/checkout-service/providers"
	"github.com/yashrajoria/checkout-service/repository"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// CurrencyService converts minor-unit amounts between currencies.
type CurrencyService interface {
	// Convert never fails: when no rate is available the amount is returned
	// unchanged.
	Convert(ctx context.Context, base, target string, amount int64) int64
}

type currencyServiceImpl struct {
	rates           repository.ConversionRateRepository
	provider        providers.ExchangeRateProvider
	metrics         *aws_pkg.MetricsClient
	refreshInterval time.Duration
	logger          *zap.Logger
	now             func() time.Time
	group           singleflight.Group
}

func NewCurrencyService(
	rates repository.ConversionRateRepository,
	provider providers.ExchangeRateProvider,
	metrics *aws_pkg.MetricsClient,
	refreshInterval time.Duration,
	logger *zap.Logger,
) CurrencyService {
	return &currencyServiceImpl{
		rates:           rates,
		provider:        provider,
		metrics:         metrics,
		refreshInterval: refreshInterval,
		logger:          logger,
		now:             time.Now,
	}
}

func (s *currencyServiceImpl) Convert(ctx context.Context, base, target string, amount int64) int64 {
	base, target = strings.ToUpper(base), strings.ToUpper(target)
	if base == target {
		return amount
	}

	rate, err := s.rateFor(ctx, base)
	if err != nil {
		s.fallback(ctx, base, target, err)
		return amount
	}
	multiplier, ok := rate.Rates[target]
	if !ok {
		s.fallback(ctx, base, target, fmt.Errorf("no %s rate in %s table", target, base))
		return amount
	}
	return ApplyRate(amount, multiplier)
}

// ApplyRate multiplies amount by rate and rounds half to even.
func ApplyRate(amount int64, rate float64) int64 {
	return decimal.NewFromInt(amount).Mul(decimal.NewFromFloat(rate)).RoundBank(0).IntPart()
}

// rateFor reads the cached table for base, filling it from the provider on
// a miss. Concurrent misses share one provider call.
func (s *currencyServiceImpl) rateFor(ctx context.Context, base string) (*models.ConversionRate, error) {
	cached, err := s.rates.FindByBase(ctx, base)
	if err == nil {
		return cached, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("read cached rates: %w", err)
	}

	v, err, _ := s.group.Do(base, func() (interface{}, error) {
		return s.fetchAndStore(ctx, base)
	})
	if err != nil {
		return nil, err
	}
	return v.(*models.ConversionRate), nil
}

func (s *currencyServiceImpl) fetchAndStore(ctx context.Context, base string) (*models.ConversionRate, error) {
	set, err := s.provider.Latest(ctx, base)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	rate := &models.ConversionRate{
		BaseCurrency: base,
		LastUpdate:   now,
		NextUpdate:   now.Add(s.refreshInterval),
		Rates:        set.Rates,
	}
	if err := s.rates.Upsert(ctx, rate); err != nil {
		// The fetched table is still good for this request.
		s.logger.Error("Failed to cache conversion rates", zap.String("base_currency", base), zap.Error(err))
	}
	return rate, nil
}

func (s *currencyServiceImpl) fallback(ctx context.Context, base, target string, err error) {
	s.logger.Warn("Currency conversion unavailable, using unconverted amount",
		zap.String("base_currency", base),
		zap.String("target_currency", target),
		zap.Error(err),
	)
	_ = s.metrics.RecordCount(ctx, aws_pkg.MetricCurrencyConversionMiss, map[string]string{"BaseCurrency": base})
}
