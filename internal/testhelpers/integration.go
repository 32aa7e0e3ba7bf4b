//go:build integration
// +build integration

package testhelpers

import (
	"os"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/kjstillabower/weather-map-service/internal/ai"
	"github.com/kjstillabower/weather-map-service/internal/cache"
	"github.com/kjstillabower/weather-map-service/internal/client"
	"github.com/kjstillabower/weather-map-service/internal/geocode"
	"github.com/kjstillabower/weather-map-service/internal/heatmap"
	"github.com/kjstillabower/weather-map-service/internal/service"
)

// IntegrationTestConfig holds configuration for integration tests.
type IntegrationTestConfig struct {
	OpenWeatherAPIKey string
	OpenWeatherAPIURL string
	OpenAIAPIKey      string // optional; descriptions fall back to rules when empty
	CacheBackend      string // "in_memory" or "memcached"
	MemcachedAddr     string
}

// GetIntegrationConfig loads integration test configuration from environment.
// Skips test if OPENWEATHER_API_KEY is not set.
func GetIntegrationConfig(t *testing.T) IntegrationTestConfig {
	t.Helper()
	apiKey := os.Getenv("OPENWEATHER_API_KEY")
	if apiKey == "" {
		t.Skip("OPENWEATHER_API_KEY not set, skipping integration test")
	}

	apiURL := os.Getenv("OPENWEATHER_API_URL")
	if apiURL == "" {
		apiURL = client.DefaultBaseURL
	}

	memcachedAddr := os.Getenv("MEMCACHED_ADDRS")
	if memcachedAddr == "" {
		memcachedAddr = "localhost:11211"
	}

	return IntegrationTestConfig{
		OpenWeatherAPIKey: apiKey,
		OpenWeatherAPIURL: apiURL,
		OpenAIAPIKey:      os.Getenv("OPENAI_API_KEY"),
		CacheBackend:      os.Getenv("INTEGRATION_CACHE_BACKEND"),
		MemcachedAddr:     memcachedAddr,
	}
}

// SetupIntegrationService creates a service against the live providers.
// Falls back to the in-memory store when memcached is requested but unreachable.
func SetupIntegrationService(t *testing.T, cfg IntegrationTestConfig) (*service.WeatherService, cache.Store) {
	t.Helper()
	logger := zap.NewNop()

	var narrator ai.Narrator
	if cfg.OpenAIAPIKey != "" {
		narrator = ai.NewOpenAINarrator(cfg.OpenAIAPIKey, "", "", 15*time.Second)
	}

	var store cache.Store = cache.NewInMemoryStore(cache.DefaultTTL)
	if cfg.CacheBackend == "memcached" {
		mc, err := cache.NewMemcachedStore(cfg.MemcachedAddr, 500*time.Millisecond, 2, cache.DefaultTTL)
		if err == nil && mc.Ping() == nil {
			store = mc
			t.Cleanup(func() { _ = mc.Close() })
			t.Logf("Using Memcached cache at %s", cfg.MemcachedAddr)
		} else {
			t.Logf("Memcached not available, using in-memory cache")
		}
	}

	svc := service.NewWeatherService(
		SetupIntegrationClient(t, cfg),
		ai.NewDescriber(narrator, logger),
		heatmap.NewGenerator(nil),
		geocode.NewNominatimGeocoder("", "weather-map-service/integration-test", 5*time.Second, time.Second),
		store,
		service.Options{TTLs: service.DefaultTTLs(), Logger: logger},
	)
	return svc, store
}

// SetupIntegrationClient creates a weather client for integration tests.
func SetupIntegrationClient(t *testing.T, cfg IntegrationTestConfig) client.WeatherClient {
	t.Helper()
	c, err := client.NewOpenWeatherClient(cfg.OpenWeatherAPIKey, cfg.OpenWeatherAPIURL, 5*time.Second)
	if err != nil {
		t.Fatalf("NewOpenWeatherClient() error = %v", err)
	}
	return c
}
