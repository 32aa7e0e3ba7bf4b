package cache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/kjstillabower/weather-map-service/internal/models"
	"github.com/kjstillabower/weather-map-service/internal/observability"
)

// WeatherFetcher is implemented by the service layer to fetch (and cache)
// point data. Used by CacheWarmer to avoid a circular dependency on the service package.
type WeatherFetcher interface {
	Weather(ctx context.Context, lat, lon float64) (models.WeatherSnapshot, error)
	Forecast(ctx context.Context, lat, lon float64) (models.ForecastSeries, error)
}

// CacheWarmer warms the cache by prefetching weather and forecast for a list of places.
type CacheWarmer struct {
	fetcher WeatherFetcher
	logger  *zap.Logger
}

// NewCacheWarmer creates a CacheWarmer that uses the given fetcher and logger.
func NewCacheWarmer(fetcher WeatherFetcher, logger *zap.Logger) *CacheWarmer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CacheWarmer{fetcher: fetcher, logger: logger}
}

// Warm fetches weather and forecast for each place concurrently; the fetcher
// populates the cache. Returns the joined error of every failed fetch.
func (w *CacheWarmer) Warm(ctx context.Context, places []models.Place) error {
	start := time.Now()
	observability.CacheWarmingTotal.Inc()
	w.logger.Info("warming cache", zap.Int("locations", len(places)))

	var wg sync.WaitGroup
	errCh := make(chan error, 2*len(places))
	for _, p := range places {
		p := p
		wg.Add(2)
		go func() {
			defer wg.Done()
			if _, err := w.fetcher.Weather(ctx, p.Lat, p.Lon); err != nil {
				errCh <- fmt.Errorf("warm weather %s: %w", p.Name, err)
			}
		}()
		go func() {
			defer wg.Done()
			if _, err := w.fetcher.Forecast(ctx, p.Lat, p.Lon); err != nil {
				errCh <- fmt.Errorf("warm forecast %s: %w", p.Name, err)
			}
		}()
	}
	wg.Wait()
	close(errCh)

	var errs []error
	for err := range errCh {
		errs = append(errs, err)
	}
	duration := time.Since(start).Seconds()
	observability.CacheWarmingDurationSeconds.Observe(duration)
	w.logger.Info("cache warming complete",
		zap.Int("locations", len(places)),
		zap.Int("errors", len(errs)),
		zap.Float64("duration_seconds", duration))
	if len(errs) > 0 {
		observability.CacheWarmingErrorsTotal.Inc()
		return fmt.Errorf("cache warming: %w", errors.Join(errs...))
	}
	return nil
}
