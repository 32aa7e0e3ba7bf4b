package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/kjstillabower/weather-map-service/internal/ai"
	"github.com/kjstillabower/weather-map-service/internal/cache"
	"github.com/kjstillabower/weather-map-service/internal/client"
	"github.com/kjstillabower/weather-map-service/internal/geocode"
	"github.com/kjstillabower/weather-map-service/internal/heatmap"
	"github.com/kjstillabower/weather-map-service/internal/models"
	"github.com/kjstillabower/weather-map-service/internal/observability"
)

// ErrGeocoderUnavailable is returned by Geocode when no geocoder is configured.
var ErrGeocoderUnavailable = errors.New("geocoder unavailable")

// TTLs sets how long each kind of result stays cached. Zero uses the store default.
type TTLs struct {
	Weather     time.Duration
	Forecast    time.Duration
	Description time.Duration
	Heatmap     time.Duration
	Geocode     time.Duration
}

// DefaultTTLs returns the standard lifetimes. AI text is slower and costlier
// to produce, so it lives longer than point data.
func DefaultTTLs() TTLs {
	return TTLs{
		Weather:     cache.DefaultTTL,
		Forecast:    cache.DefaultTTL,
		Description: 600 * time.Second,
		Heatmap:     cache.DefaultTTL,
		Geocode:     24 * time.Hour,
	}
}

// Options configures a WeatherService.
type Options struct {
	TTLs TTLs
	// Coalesce shares one upstream fetch among concurrent misses on the same
	// key. When false, each miss fetches independently.
	Coalesce bool
	Logger   *zap.Logger
}

// WeatherService orchestrates the cache-aside flow for every route: derive a
// key, look it up, and on a miss fetch or generate, store, and return.
type WeatherService struct {
	client    client.WeatherClient
	describer *ai.Describer
	generator *heatmap.Generator
	geocoder  geocode.Geocoder
	store     cache.Store
	ttls      TTLs
	stampede  *stampedeTracker
	group     *singleflight.Group
	logger    *zap.Logger
}

// NewWeatherService wires the service. store is owned by the caller and
// shared for the process lifetime. geocoder may be nil.
func NewWeatherService(c client.WeatherClient, describer *ai.Describer, generator *heatmap.Generator, geocoder geocode.Geocoder, store cache.Store, opts Options) *WeatherService {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if describer == nil {
		describer = ai.NewDescriber(nil, opts.Logger)
	}
	if generator == nil {
		generator = heatmap.NewGenerator(nil)
	}
	s := &WeatherService{
		client:    c,
		describer: describer,
		generator: generator,
		geocoder:  geocoder,
		store:     store,
		ttls:      opts.TTLs,
		stampede:  newStampedeTracker(),
		logger:    opts.Logger,
	}
	if opts.Coalesce {
		s.group = &singleflight.Group{}
	}
	return s
}

// loggerFromContext returns the request-scoped logger if present.
func (s *WeatherService) loggerFromContext(ctx context.Context) *zap.Logger {
	if v := ctx.Value("logger"); v != nil {
		if l, ok := v.(*zap.Logger); ok && l != nil {
			return l
		}
	}
	return s.logger
}

// Weather returns current conditions at lat/lon.
func (s *WeatherService) Weather(ctx context.Context, lat, lon float64) (models.WeatherSnapshot, error) {
	return cacheAside(ctx, s, "weather", cache.WeatherKey(lat, lon), s.ttls.Weather,
		func(ctx context.Context) (models.WeatherSnapshot, error) {
			snap, err := s.client.GetCurrentWeather(ctx, lat, lon)
			if err != nil {
				return models.WeatherSnapshot{}, fmt.Errorf("fetch weather: %w", err)
			}
			return snap, nil
		})
}

// Forecast returns the forecast series at lat/lon.
func (s *WeatherService) Forecast(ctx context.Context, lat, lon float64) (models.ForecastSeries, error) {
	return cacheAside(ctx, s, "forecast", cache.ForecastKey(lat, lon), s.ttls.Forecast,
		func(ctx context.Context) (models.ForecastSeries, error) {
			series, err := s.client.GetForecast(ctx, lat, lon)
			if err != nil {
				return models.ForecastSeries{}, fmt.Errorf("fetch forecast: %w", err)
			}
			return series, nil
		})
}

// Description returns a natural-language summary of current conditions at
// lat/lon. Only a weather fetch failure is returned; language model failures
// fall back to the rule-based text, which is cached like AI text.
func (s *WeatherService) Description(ctx context.Context, lat, lon float64) (string, error) {
	return cacheAside(ctx, s, "description", cache.DescriptionKey(lat, lon), s.ttls.Description,
		func(ctx context.Context) (string, error) {
			snap, err := s.Weather(ctx, lat, lon)
			if err != nil {
				return "", err
			}
			desc := s.describer.Describe(ctx, snap)
			s.loggerFromContext(ctx).Debug("description generated",
				zap.String("source", string(desc.Source)),
				zap.String("location", snap.Location.Name))
			return desc.Text, nil
		})
}

// Heatmap returns synthetic samples for the raw layer type over box.
func (s *WeatherService) Heatmap(ctx context.Context, typ string, box heatmap.BoundingBox) ([]heatmap.Sample, error) {
	return cacheAside(ctx, s, "heatmap", cache.HeatmapKey(typ, box.North, box.South, box.East, box.West), s.ttls.Heatmap,
		func(context.Context) ([]heatmap.Sample, error) {
			return s.generator.Generate(typ, box), nil
		})
}

// Geocode resolves a place search.
func (s *WeatherService) Geocode(ctx context.Context, query string) ([]models.Place, error) {
	if s.geocoder == nil {
		return nil, ErrGeocoderUnavailable
	}
	return cacheAside(ctx, s, "geocode", cache.GeocodeKey(query), s.ttls.Geocode,
		func(ctx context.Context) ([]models.Place, error) {
			places, err := s.geocoder.Search(ctx, query)
			if err != nil {
				return nil, fmt.Errorf("geocode %q: %w", query, err)
			}
			return places, nil
		})
}

// cacheAside serves key from the cache or runs fetch and stores its result.
// Cache backend errors are logged and handled as misses. Failed fetches are
// never cached.
func cacheAside[T any](ctx context.Context, s *WeatherService, kind, key string, ttl time.Duration, fetch func(context.Context) (T, error)) (T, error) {
	logger := s.loggerFromContext(ctx)
	typed := cache.NewTyped[T](s.store)

	v, ok, err := typed.Get(ctx, key)
	if err != nil {
		observability.CacheErrorsTotal.WithLabelValues("get").Inc()
		logger.Warn("cache get failed", zap.String("key", key), zap.Error(err))
	} else if ok {
		observability.CacheHitsTotal.WithLabelValues(kind).Inc()
		logger.Debug("cache hit", zap.String("key", key))
		return v, nil
	}
	observability.CacheMissesTotal.WithLabelValues(kind).Inc()

	concurrent, done := s.stampede.begin(kind, key)
	defer done()
	logger.Debug("cache miss", zap.String("key", key), zap.Int("concurrentMisses", concurrent))

	load := func(ctx context.Context) (T, error) {
		v, err := fetch(ctx)
		if err != nil {
			return v, err
		}
		if setErr := typed.Set(ctx, key, v, ttl); setErr != nil {
			observability.CacheErrorsTotal.WithLabelValues("set").Inc()
			logger.Warn("cache set failed", zap.String("key", key), zap.Error(setErr))
		}
		return v, nil
	}

	if s.group == nil {
		return load(ctx)
	}
	// The shared fetch outlives any single caller; upstream clients apply
	// their own timeouts.
	ch := s.group.DoChan(key, func() (interface{}, error) {
		return load(context.WithoutCancel(ctx))
	})
	select {
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	case res := <-ch:
		if res.Shared {
			observability.RequestCoalescingHitsTotal.WithLabelValues(kind).Inc()
		}
		if res.Err != nil {
			var zero T
			return zero, res.Err
		}
		return res.Val.(T), nil
	}
}
