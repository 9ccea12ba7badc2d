package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"
)

// ExchangeRateAPI implements ExchangeRateProvider against an
// exchangerate-api.com compatible endpoint.
type ExchangeRateAPI struct {
	baseURL    string
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker[*RateSet]
	logger     *zap.Logger
}

// NewExchangeRateAPI creates a client for baseURL (which already carries the
// API key path segment, e.g. https://v6.exchangerate-api.com/v6/<key>).
func NewExchangeRateAPI(baseURL string, logger *zap.Logger) *ExchangeRateAPI {
	p := &ExchangeRateAPI{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		logger: logger,
	}
	p.breaker = gobreaker.NewCircuitBreaker[*RateSet](gobreaker.Settings{
		Name:        "exchange-rate-api",
		MaxRequests: 1,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	})
	return p
}

// ---- exchangerate-api response ----

type latestRatesResponse struct {
	Result             string             `json:"result"`
	ErrorType          string             `json:"error-type"`
	BaseCode           string             `json:"base_code"`
	TimeLastUpdateUnix int64              `json:"time_last_update_unix"`
	TimeNextUpdateUnix int64              `json:"time_next_update_unix"`
	ConversionRates    map[string]float64 `json:"conversion_rates"`
}

// Latest fetches GET {baseURL}/latest/{base}.
func (p *ExchangeRateAPI) Latest(ctx context.Context, base string) (*RateSet, error) {
	base = strings.ToUpper(base)
	set, err := p.breaker.Execute(func() (*RateSet, error) {
		var resp latestRatesResponse
		if err := p.doRequest(ctx, "/latest/"+base, &resp); err != nil {
			return nil, err
		}
		if resp.Result != "" && resp.Result != "success" {
			return nil, fmt.Errorf("rate provider error: %s", resp.ErrorType)
		}
		if len(resp.ConversionRates) == 0 {
			return nil, fmt.Errorf("rate provider returned no rates for %s", base)
		}

		rates := make(map[string]float64, len(resp.ConversionRates))
		for code, rate := range resp.ConversionRates {
			rates[strings.ToUpper(code)] = rate
		}
		return &RateSet{
			Base:       base,
			LastUpdate: time.Unix(resp.TimeLastUpdateUnix, 0).UTC(),
			NextUpdate: time.Unix(resp.TimeNextUpdateUnix, 0).UTC(),
			Rates:      rates,
		}, nil
	})
	if err != nil {
		return nil, fmt.Errorf("exchange rates for %s: %w", base, err)
	}
	return set, nil
}

// ---- HTTP helper ----

func (p *ExchangeRateAPI) doRequest(ctx context.Context, path string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("http do: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("rate provider returned %d: %s", resp.StatusCode, string(body))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
