package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/kjstillabower/weather-map-service/internal/models"
)

// Config holds service configuration loaded from .env, YAML and env.
type Config struct {
	Environment string
	ServerPort  string

	OpenWeatherAPIKey  string
	OpenWeatherAPIURL  string
	OpenWeatherTimeout time.Duration

	OpenAIAPIKey  string
	OpenAIBaseURL string
	OpenAIModel   string
	OpenAITimeout time.Duration

	GoogleGeocodingAPIKey string
	GeocoderURL           string
	GeocoderUserAgent     string
	GeocoderTimeout       time.Duration
	GeocoderInterval      time.Duration

	RequestTimeout time.Duration

	CacheBackend    string // "in_memory" or "memcached"
	CacheTTL        time.Duration
	DescriptionTTL  time.Duration
	GeocodeTTL      time.Duration
	CoalesceEnabled bool
	PurgeInterval   time.Duration
	WarmInterval    time.Duration
	WarmLocations   []models.Place

	MemcachedAddrs        string
	MemcachedTimeout      time.Duration
	MemcachedMaxIdleConns int

	CircuitBreakerMaxFailures uint32
	CircuitBreakerOpenTimeout time.Duration

	CORSAllowedOrigins []string

	ShutdownTimeout time.Duration
}

type fileConfig struct {
	Server struct {
		Port string `yaml:"port"`
	} `yaml:"server"`

	OpenWeather struct {
		URL     string `yaml:"url"`
		Timeout string `yaml:"timeout"`
	} `yaml:"openweather"`

	OpenAI struct {
		BaseURL string `yaml:"base_url"`
		Model   string `yaml:"model"`
		Timeout string `yaml:"timeout"`
	} `yaml:"openai"`

	Geocoder struct {
		URL       string `yaml:"url"`
		UserAgent string `yaml:"user_agent"`
		Timeout   string `yaml:"timeout"`
		Interval  string `yaml:"interval"`
	} `yaml:"geocoder"`

	Request struct {
		Timeout string `yaml:"timeout"`
	} `yaml:"request"`

	Cache struct {
		Backend         string         `yaml:"backend"`
		TTL             string         `yaml:"ttl"`
		DescriptionTTL  string         `yaml:"description_ttl"`
		GeocodeTTL      string         `yaml:"geocode_ttl"`
		CoalesceEnabled bool           `yaml:"coalesce_enabled"`
		PurgeInterval   string         `yaml:"purge_interval"`
		WarmInterval    string         `yaml:"warm_interval"`
		WarmLocations   []models.Place `yaml:"warm_locations"`
		Memcached       struct {
			Addrs        string `yaml:"addrs"`
			Timeout      string `yaml:"timeout"`
			MaxIdleConns int    `yaml:"max_idle_conns"`
		} `yaml:"memcached"`
	} `yaml:"cache"`

	Reliability struct {
		CircuitBreakerMaxFailures uint32 `yaml:"circuit_breaker_max_failures"`
		CircuitBreakerOpenTimeout string `yaml:"circuit_breaker_open_timeout"`
	} `yaml:"reliability"`

	CORS struct {
		AllowedOrigins []string `yaml:"allowed_origins"`
	} `yaml:"cors"`

	Shutdown struct {
		Timeout string `yaml:"timeout"`
	} `yaml:"shutdown"`
}

type secretsFile struct {
	OpenWeatherAPIKey     string `yaml:"openweather_api_key"`
	OpenAIAPIKey          string `yaml:"openai_api_key"`
	GoogleGeocodingAPIKey string `yaml:"google_geocoding_api_key"`
}

// Load reads .env (if present), then config/{ENV_NAME}.yaml (default dev) and
// config/secrets.yaml. Provider keys come from OPENWEATHER_API_KEY,
// OPENAI_API_KEY and GOOGLE_GEOCODING_API_KEY or the secrets file; missing keys
// are reported by MissingKeys, not treated as errors. Call from project root.
func Load() (*Config, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("config: get working directory: %w", err)
	}

	// Existing environment wins over .env.
	if err := godotenv.Load(filepath.Join(cwd, ".env")); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	env := os.Getenv("ENV_NAME")
	if env == "" {
		env = "dev"
	}

	configPath := filepath.Join(cwd, "config", env+".yaml")
	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config file not found: %s", configPath)
		}
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}

	sec, err := loadSecrets(filepath.Join(cwd, "config", "secrets.yaml"))
	if err != nil {
		return nil, err
	}

	cfg := &Config{Environment: env}

	cfg.ServerPort = fc.Server.Port
	if cfg.ServerPort == "" {
		cfg.ServerPort = "8080"
	}

	cfg.OpenWeatherAPIKey = envOr("OPENWEATHER_API_KEY", sec.OpenWeatherAPIKey)
	cfg.OpenAIAPIKey = envOr("OPENAI_API_KEY", sec.OpenAIAPIKey)
	cfg.GoogleGeocodingAPIKey = envOr("GOOGLE_GEOCODING_API_KEY", sec.GoogleGeocodingAPIKey)

	cfg.OpenWeatherAPIURL = fc.OpenWeather.URL
	if cfg.OpenWeatherAPIURL == "" {
		cfg.OpenWeatherAPIURL = "https://api.openweathermap.org/data/2.5"
	}
	cfg.OpenWeatherTimeout = parseDurationOrZero(fc.OpenWeather.Timeout, 5*time.Second)

	cfg.OpenAIBaseURL = strings.TrimSpace(fc.OpenAI.BaseURL)
	cfg.OpenAIModel = strings.TrimSpace(fc.OpenAI.Model)
	if cfg.OpenAIModel == "" {
		cfg.OpenAIModel = "gpt-4o"
	}
	cfg.OpenAITimeout = parseDuration(fc.OpenAI.Timeout, 15*time.Second)

	cfg.GeocoderURL = fc.Geocoder.URL
	if cfg.GeocoderURL == "" {
		cfg.GeocoderURL = "https://nominatim.openstreetmap.org/search"
	}
	cfg.GeocoderUserAgent = fc.Geocoder.UserAgent
	if cfg.GeocoderUserAgent == "" {
		cfg.GeocoderUserAgent = "weather-map-service/1.0"
	}
	cfg.GeocoderTimeout = parseDuration(fc.Geocoder.Timeout, 5*time.Second)
	cfg.GeocoderInterval = parseDurationOrZero(fc.Geocoder.Interval, time.Second)

	cfg.RequestTimeout = parseDuration(fc.Request.Timeout, 25*time.Second)

	cfg.CacheBackend = strings.TrimSpace(strings.ToLower(os.Getenv("CACHE_BACKEND")))
	if cfg.CacheBackend == "" {
		cfg.CacheBackend = strings.TrimSpace(strings.ToLower(fc.Cache.Backend))
	}
	if cfg.CacheBackend == "" {
		cfg.CacheBackend = "in_memory"
	}
	cfg.CacheTTL = parseDuration(fc.Cache.TTL, 300*time.Second)
	cfg.DescriptionTTL = parseDuration(fc.Cache.DescriptionTTL, 600*time.Second)
	cfg.GeocodeTTL = parseDuration(fc.Cache.GeocodeTTL, 24*time.Hour)
	cfg.CoalesceEnabled = fc.Cache.CoalesceEnabled
	cfg.PurgeInterval = parseDuration(fc.Cache.PurgeInterval, time.Minute)
	cfg.WarmInterval = parseDurationOrZero(fc.Cache.WarmInterval, 0)
	cfg.WarmLocations = fc.Cache.WarmLocations

	cfg.MemcachedAddrs = strings.TrimSpace(os.Getenv("MEMCACHED_ADDRS"))
	if cfg.MemcachedAddrs == "" {
		cfg.MemcachedAddrs = strings.TrimSpace(fc.Cache.Memcached.Addrs)
	}
	if cfg.MemcachedAddrs == "" {
		cfg.MemcachedAddrs = "localhost:11211"
	}
	cfg.MemcachedTimeout = parseDuration(fc.Cache.Memcached.Timeout, 500*time.Millisecond)
	cfg.MemcachedMaxIdleConns = fc.Cache.Memcached.MaxIdleConns
	if cfg.MemcachedMaxIdleConns <= 0 {
		cfg.MemcachedMaxIdleConns = 2
	}

	cfg.CircuitBreakerMaxFailures = fc.Reliability.CircuitBreakerMaxFailures
	cfg.CircuitBreakerOpenTimeout = parseDuration(fc.Reliability.CircuitBreakerOpenTimeout, 30*time.Second)

	cfg.CORSAllowedOrigins = fc.CORS.AllowedOrigins
	if len(cfg.CORSAllowedOrigins) == 0 {
		cfg.CORSAllowedOrigins = []string{"*"}
	}

	cfg.ShutdownTimeout = parseDuration(fc.Shutdown.Timeout, 30*time.Second)

	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// MissingKeys lists the required provider keys that are not set.
func (c *Config) MissingKeys() []string {
	var missing []string
	if c.OpenWeatherAPIKey == "" {
		missing = append(missing, "OPENWEATHER_API_KEY")
	}
	if c.OpenAIAPIKey == "" {
		missing = append(missing, "OPENAI_API_KEY")
	}
	return missing
}

func loadSecrets(path string) (secretsFile, error) {
	var sec secretsFile
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return sec, nil
		}
		return sec, fmt.Errorf("read secrets file: %w", err)
	}
	if err := yaml.Unmarshal(data, &sec); err != nil {
		return sec, fmt.Errorf("parse secrets file: %w", err)
	}
	return sec, nil
}

func envOr(name, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(name)); v != "" {
		return v
	}
	return fallback
}

// parseDuration parses a duration string and returns defaultVal if parsing fails or result is <= 0.
func parseDuration(s string, defaultVal time.Duration) time.Duration {
	d := parseDurationOrZero(s, defaultVal)
	if d <= 0 {
		return defaultVal
	}
	return d
}

// parseDurationOrZero parses a duration string, returning defaultVal on empty string or parse error.
// Returns zero or negative durations as-is (caller should handle fallback).
func parseDurationOrZero(s string, defaultVal time.Duration) time.Duration {
	s = strings.TrimSpace(s)
	if s == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return defaultVal
	}
	return d
}

// validate performs post-load validation. The description route makes a
// weather call and then a model call, so RequestTimeout is raised to cover both.
func validate(cfg *Config) error {
	if cfg.OpenWeatherTimeout <= 0 {
		return fmt.Errorf("openweather.timeout must be positive")
	}
	if floor := cfg.OpenWeatherTimeout + cfg.OpenAITimeout; cfg.RequestTimeout <= floor {
		cfg.RequestTimeout = floor + time.Second
	}
	switch cfg.CacheBackend {
	case "in_memory", "memcached":
	default:
		return fmt.Errorf("cache.backend must be in_memory or memcached, got %q", cfg.CacheBackend)
	}
	for i, p := range cfg.WarmLocations {
		if p.Lat < -90 || p.Lat > 90 || p.Lon < -180 || p.Lon > 180 {
			return fmt.Errorf("cache.warm_locations[%d] %q: coordinates out of range", i, p.Name)
		}
	}
	if cfg.WarmInterval < 0 {
		cfg.WarmInterval = 0
	}
	return nil
}
