package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/kjstillabower/weather-map-service/internal/ai"
	"github.com/kjstillabower/weather-map-service/internal/cache"
	"github.com/kjstillabower/weather-map-service/internal/client"
	"github.com/kjstillabower/weather-map-service/internal/config"
	"github.com/kjstillabower/weather-map-service/internal/geocode"
	"github.com/kjstillabower/weather-map-service/internal/heatmap"
	httphandler "github.com/kjstillabower/weather-map-service/internal/http"
	"github.com/kjstillabower/weather-map-service/internal/lifecycle"
	"github.com/kjstillabower/weather-map-service/internal/observability"
	"github.com/kjstillabower/weather-map-service/internal/scheduler"
	"github.com/kjstillabower/weather-map-service/internal/service"
)

func main() {
	logger, err := observability.NewLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("config", zap.Error(err))
	}
	if missing := cfg.MissingKeys(); len(missing) > 0 {
		logger.Warn("provider keys missing; affected routes will fail or fall back", zap.Strings("keys", missing))
	}

	var clientOpts []client.Option
	if cfg.CircuitBreakerMaxFailures > 0 {
		clientOpts = append(clientOpts, client.WithCircuitBreaker(cfg.CircuitBreakerMaxFailures, cfg.CircuitBreakerOpenTimeout))
		logger.Info("circuit breaker enabled",
			zap.Uint32("max_failures", cfg.CircuitBreakerMaxFailures),
			zap.Duration("open_timeout", cfg.CircuitBreakerOpenTimeout))
	}
	weatherClient, err := client.NewOpenWeatherClient(cfg.OpenWeatherAPIKey, cfg.OpenWeatherAPIURL, cfg.OpenWeatherTimeout, clientOpts...)
	if err != nil {
		logger.Fatal("weather client", zap.Error(err))
	}

	var narrator ai.Narrator
	if cfg.OpenAIAPIKey != "" {
		narrator = ai.NewOpenAINarrator(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, cfg.OpenAIModel, cfg.OpenAITimeout)
	}
	describer := ai.NewDescriber(narrator, logger)

	var geocoder geocode.Geocoder
	if cfg.GoogleGeocodingAPIKey != "" {
		geocoder = geocode.NewGoogleGeocoder(cfg.GoogleGeocodingAPIKey)
		logger.Info("geocoder: google")
	} else {
		geocoder = geocode.NewNominatimGeocoder(cfg.GeocoderURL, cfg.GeocoderUserAgent, cfg.GeocoderTimeout, cfg.GeocoderInterval)
		logger.Info("geocoder: nominatim", zap.String("url", cfg.GeocoderURL))
	}

	var store cache.Store
	var memStore *cache.InMemoryStore
	var memcached *cache.MemcachedStore
	switch cfg.CacheBackend {
	case "memcached":
		mc, err := cache.NewMemcachedStore(cfg.MemcachedAddrs, cfg.MemcachedTimeout, cfg.MemcachedMaxIdleConns, cfg.CacheTTL)
		if err != nil {
			logger.Fatal("memcached cache", zap.Error(err))
		}
		memcached = mc
		store = mc
		logger.Info("cache backend: memcached", zap.String("addrs", cfg.MemcachedAddrs))
	default:
		memStore = cache.NewInMemoryStore(cfg.CacheTTL)
		store = memStore
		observability.RegisterCacheEntriesGauge(memStore.Len)
		logger.Info("cache backend: in_memory")
	}

	ttls := service.DefaultTTLs()
	ttls.Weather = cfg.CacheTTL
	ttls.Forecast = cfg.CacheTTL
	ttls.Heatmap = cfg.CacheTTL
	ttls.Description = cfg.DescriptionTTL
	ttls.Geocode = cfg.GeocodeTTL
	weatherService := service.NewWeatherService(weatherClient, describer, heatmap.NewGenerator(nil), geocoder, store, service.Options{
		TTLs:     ttls,
		Coalesce: cfg.CoalesceEnabled,
		Logger:   logger,
	})

	observability.SetTrackedHeatmapTypes([]string{
		string(heatmap.Temperature), string(heatmap.Precipitation),
		string(heatmap.Humidity), string(heatmap.Pressure),
	})

	var purger scheduler.Purger
	if memStore != nil {
		purger = memStore
	}
	jobs, err := scheduler.New(purger, cache.NewCacheWarmer(weatherService, logger), scheduler.Config{
		PurgeInterval: cfg.PurgeInterval,
		WarmInterval:  cfg.WarmInterval,
		WarmLocations: cfg.WarmLocations,
	}, logger)
	if err != nil {
		logger.Fatal("scheduler", zap.Error(err))
	}
	jobs.Start()

	healthConfig := &httphandler.HealthConfig{
		OpenWeatherKeySet: cfg.OpenWeatherAPIKey != "",
		OpenAIKeySet:      cfg.OpenAIAPIKey != "",
	}
	if memcached != nil {
		healthConfig.CachePing = memcached.Ping
	}
	handler := httphandler.NewHandler(weatherService, healthConfig, logger)
	router := httphandler.NewRouter(handler, logger, httphandler.RouterOptions{
		RequestTimeout: cfg.RequestTimeout,
		AllowedOrigins: cfg.CORSAllowedOrigins,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      cfg.RequestTimeout + 5*time.Second,
	}

	go func() {
		logger.Info("server starting", zap.String("addr", srv.Addr), zap.String("env", cfg.Environment))
		lifecycle.MarkStarted(time.Now())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	<-ctx.Done()
	stop()

	logger.Info("graceful shutdown triggered")
	lifecycle.SetShuttingDown(true)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}

	logger.Info("waiting for in-flight requests",
		zap.Int64("count", httphandler.InFlightCount()),
		zap.Any("routes", httphandler.InFlightByRoute()))
	if err := httphandler.WaitForInFlight(shutdownCtx); err != nil {
		logger.Warn("in-flight requests not completed", zap.Error(err),
			zap.Int64("remaining", httphandler.InFlightCount()),
			zap.Any("routes", httphandler.InFlightByRoute()))
	}

	jobs.Stop()

	if memcached != nil {
		if err := memcached.Close(); err != nil {
			logger.Error("memcached close", zap.Error(err))
		}
	}
	logger.Info("shutdown complete")
	if err := observability.FlushTelemetry(context.Background(), logger); err != nil {
		fmt.Fprintf(os.Stderr, "telemetry flush: %v\n", err)
	}
}
