package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sony/gobreaker"

	"github.com/kjstillabower/weather-map-service/internal/models"
	"github.com/kjstillabower/weather-map-service/internal/observability"
)

// DefaultBaseURL is the OpenWeatherMap 2.5 API root.
const DefaultBaseURL = "https://api.openweathermap.org/data/2.5"

const provider = "openweather"

// WeatherClient fetches point data from the weather provider.
type WeatherClient interface {
	GetCurrentWeather(ctx context.Context, lat, lon float64) (models.WeatherSnapshot, error)
	GetForecast(ctx context.Context, lat, lon float64) (models.ForecastSeries, error)
}

var (
	ErrInvalidAPIKey    = errors.New("invalid API key")
	ErrLocationNotFound = errors.New("location not found")
	ErrUpstreamFailure  = errors.New("upstream failure")
	ErrRateLimited      = errors.New("rate limited")
)

// OpenWeatherClient calls the OpenWeatherMap REST API. Calls are never retried.
type OpenWeatherClient struct {
	apiKey  string
	baseURL *url.URL
	timeout time.Duration
	client  *http.Client
	breaker *gobreaker.CircuitBreaker
}

// Option configures an OpenWeatherClient.
type Option func(*OpenWeatherClient)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *OpenWeatherClient) { c.client = hc }
}

// WithCircuitBreaker trips after maxFailures consecutive upstream failures and
// rejects calls for openTimeout before probing again.
func WithCircuitBreaker(maxFailures uint32, openTimeout time.Duration) Option {
	return func(c *OpenWeatherClient) {
		if maxFailures == 0 {
			return
		}
		c.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:    provider,
			Timeout: openTimeout,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= maxFailures
			},
			OnStateChange: func(name string, _, to gobreaker.State) {
				observability.CircuitBreakerState.WithLabelValues(name).Set(float64(to))
			},
			// Caller-side errors say nothing about upstream health.
			IsSuccessful: func(err error) bool {
				return err == nil || errors.Is(err, ErrLocationNotFound) || errors.Is(err, ErrInvalidAPIKey)
			},
		})
		observability.CircuitBreakerState.WithLabelValues(provider).Set(float64(gobreaker.StateClosed))
	}
}

// NewOpenWeatherClient builds a client for apiURL (DefaultBaseURL when empty).
// An empty apiKey is accepted; the provider rejects such calls with 401.
func NewOpenWeatherClient(apiKey, apiURL string, timeout time.Duration, opts ...Option) (*OpenWeatherClient, error) {
	if apiURL == "" {
		apiURL = DefaultBaseURL
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	base, err := url.Parse(strings.TrimRight(apiURL, "/"))
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("invalid API URL %q", apiURL)
	}
	c := &OpenWeatherClient{
		apiKey:  apiKey,
		baseURL: base,
		timeout: timeout,
		client:  &http.Client{Timeout: timeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

type owmCondition struct {
	ID          int    `json:"id"`
	Main        string `json:"main"`
	Description string `json:"description"`
	Icon        string `json:"icon"`
}

type owmMain struct {
	Temp      float64 `json:"temp"`
	FeelsLike float64 `json:"feels_like"`
	TempMin   float64 `json:"temp_min"`
	TempMax   float64 `json:"temp_max"`
	Humidity  int     `json:"humidity"`
	Pressure  int     `json:"pressure"`
}

type owmWind struct {
	Speed float64 `json:"speed"`
	Deg   int     `json:"deg"`
}

type owmClouds struct {
	All int `json:"all"`
}

type owmCoord struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

type currentResponse struct {
	Coord      owmCoord       `json:"coord"`
	Weather    []owmCondition `json:"weather"`
	Main       owmMain        `json:"main"`
	Visibility int            `json:"visibility"`
	Wind       owmWind        `json:"wind"`
	Clouds     owmClouds      `json:"clouds"`
	Dt         int64          `json:"dt"`
	Sys        struct {
		Country string `json:"country"`
	} `json:"sys"`
	Name string `json:"name"`
}

type forecastResponse struct {
	List []struct {
		Dt      int64          `json:"dt"`
		Main    owmMain        `json:"main"`
		Weather []owmCondition `json:"weather"`
		Clouds  owmClouds      `json:"clouds"`
		Wind    owmWind        `json:"wind"`
		Pop     float64        `json:"pop"`
		DtTxt   string         `json:"dt_txt"`
	} `json:"list"`
	City struct {
		Name    string   `json:"name"`
		Country string   `json:"country"`
		Coord   owmCoord `json:"coord"`
	} `json:"city"`
}

// GetCurrentWeather fetches current conditions at lat/lon.
func (c *OpenWeatherClient) GetCurrentWeather(ctx context.Context, lat, lon float64) (models.WeatherSnapshot, error) {
	var resp currentResponse
	if err := c.fetch(ctx, "/weather", lat, lon, &resp); err != nil {
		return models.WeatherSnapshot{}, err
	}
	return mapCurrent(resp), nil
}

// GetForecast fetches the 5 day / 3 hour forecast at lat/lon.
func (c *OpenWeatherClient) GetForecast(ctx context.Context, lat, lon float64) (models.ForecastSeries, error) {
	var resp forecastResponse
	if err := c.fetch(ctx, "/forecast", lat, lon, &resp); err != nil {
		return models.ForecastSeries{}, err
	}
	return mapForecast(resp), nil
}

func (c *OpenWeatherClient) fetch(ctx context.Context, endpoint string, lat, lon float64, out any) error {
	if c.breaker == nil {
		return c.callAPI(ctx, endpoint, lat, lon, out)
	}
	_, err := c.breaker.Execute(func() (interface{}, error) {
		return nil, c.callAPI(ctx, endpoint, lat, lon, out)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		observability.UpstreamCallsTotal.WithLabelValues(provider, "circuit_open").Inc()
		return fmt.Errorf("%w: %w", ErrUpstreamFailure, err)
	}
	return err
}

func (c *OpenWeatherClient) callAPI(ctx context.Context, endpoint string, lat, lon float64, out any) error {
	start := time.Now()

	reqCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := c.buildRequest(reqCtx, endpoint, lat, lon)
	if err != nil {
		observability.UpstreamCallsTotal.WithLabelValues(provider, "error").Inc()
		return fmt.Errorf("build request: %w", err)
	}

	if corrID := extractCorrelationID(ctx); corrID != "" {
		req.Header.Set("X-Correlation-ID", corrID)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		observability.UpstreamCallsTotal.WithLabelValues(provider, "error").Inc()
		observability.UpstreamDuration.WithLabelValues(provider, "error").Observe(time.Since(start).Seconds())
		var netErr net.Error
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) ||
			(errors.As(err, &netErr) && netErr.Timeout()) {
			err = fmt.Errorf("request timeout: %w", err)
		} else {
			err = fmt.Errorf("http request failed: %w", err)
		}
		observability.UpstreamErrorsTotal.WithLabelValues(provider, string(CategorizeError(err))).Inc()
		return err
	}
	defer resp.Body.Close()

	status := StatusLabel(resp.StatusCode)
	observability.UpstreamCallsTotal.WithLabelValues(provider, status).Inc()
	observability.UpstreamDuration.WithLabelValues(provider, status).Observe(time.Since(start).Seconds())

	if err := handleErrorResponse(resp); err != nil {
		observability.UpstreamErrorsTotal.WithLabelValues(provider, string(CategorizeError(err))).Inc()
		return err
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response body: %w", err)
	}
	if err := json.Unmarshal(body, out); err != nil {
		observability.UpstreamErrorsTotal.WithLabelValues(provider, string(ErrorCategoryParsing)).Inc()
		return fmt.Errorf("parse response: %w", err)
	}
	return nil
}

func (c *OpenWeatherClient) buildRequest(ctx context.Context, endpoint string, lat, lon float64) (*http.Request, error) {
	u := *c.baseURL
	u.Path = u.Path + endpoint

	params := url.Values{}
	params.Set("lat", strconv.FormatFloat(lat, 'f', -1, 64))
	params.Set("lon", strconv.FormatFloat(lon, 'f', -1, 64))
	params.Set("appid", c.apiKey)
	params.Set("units", "metric")
	u.RawQuery = params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	return req, nil
}

func handleErrorResponse(resp *http.Response) error {
	switch resp.StatusCode {
	case http.StatusUnauthorized:
		return fmt.Errorf("%w: HTTP 401", ErrInvalidAPIKey)
	case http.StatusNotFound:
		return fmt.Errorf("%w", ErrLocationNotFound)
	case http.StatusTooManyRequests:
		return fmt.Errorf("%w", ErrRateLimited)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%w: HTTP %d", ErrUpstreamFailure, resp.StatusCode)
	}
	return nil
}

func firstCondition(ws []owmCondition) models.Condition {
	if len(ws) == 0 {
		return models.Condition{}
	}
	w := ws[0]
	return models.Condition{ID: w.ID, Main: w.Main, Description: w.Description, Icon: w.Icon}
}

func locationName(name string) string {
	if name == "" {
		return "Unknown"
	}
	return name
}

func mapCurrent(r currentResponse) models.WeatherSnapshot {
	return models.WeatherSnapshot{
		Location: models.Location{
			Name:    locationName(r.Name),
			Country: r.Sys.Country,
			Lat:     r.Coord.Lat,
			Lon:     r.Coord.Lon,
		},
		Current: models.Conditions{
			Temp:       r.Main.Temp,
			FeelsLike:  r.Main.FeelsLike,
			TempMin:    r.Main.TempMin,
			TempMax:    r.Main.TempMax,
			Humidity:   r.Main.Humidity,
			Pressure:   r.Main.Pressure,
			WindSpeed:  r.Wind.Speed,
			WindDeg:    r.Wind.Deg,
			Clouds:     r.Clouds.All,
			Visibility: r.Visibility,
			Weather:    firstCondition(r.Weather),
			Dt:         r.Dt * 1000,
		},
	}
}

func mapForecast(r forecastResponse) models.ForecastSeries {
	entries := make([]models.ForecastEntry, 0, len(r.List))
	for _, item := range r.List {
		entries = append(entries, models.ForecastEntry{
			Dt:                item.Dt * 1000,
			Temp:              item.Main.Temp,
			FeelsLike:         item.Main.FeelsLike,
			TempMin:           item.Main.TempMin,
			TempMax:           item.Main.TempMax,
			Humidity:          item.Main.Humidity,
			Pressure:          item.Main.Pressure,
			WindSpeed:         item.Wind.Speed,
			WindDeg:           item.Wind.Deg,
			Clouds:            item.Clouds.All,
			Weather:           firstCondition(item.Weather),
			PrecipProbability: item.Pop,
			DtTxt:             item.DtTxt,
		})
	}
	return models.ForecastSeries{
		Location: models.Location{
			Name:    locationName(r.City.Name),
			Country: r.City.Country,
			Lat:     r.City.Coord.Lat,
			Lon:     r.City.Coord.Lon,
		},
		Forecast: entries,
	}
}

func extractCorrelationID(ctx context.Context) string {
	if corrIDVal := ctx.Value("correlation_id"); corrIDVal != nil {
		if corrID, ok := corrIDVal.(string); ok {
			return corrID
		}
	}
	return ""
}

// StatusLabel maps an upstream HTTP status to a metric label. Shared by every
// provider client so dashboards use one vocabulary.
func StatusLabel(statusCode int) string {
	if statusCode >= 200 && statusCode < 300 {
		return "success"
	}
	if statusCode == 429 {
		return "rate_limited"
	}
	if statusCode >= 400 && statusCode < 500 {
		return "client_error"
	}
	if statusCode >= 500 {
		return "server_error"
	}
	return "error"
}
