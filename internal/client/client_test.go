package client

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/kjstillabower/weather-map-service/internal/models"
)

const currentFixture = `{
	"coord": {"lon": -74.006, "lat": 40.7128},
	"weather": [{"id": 500, "main": "Rain", "description": "light rain", "icon": "10d"}],
	"main": {"temp": 12.3, "feels_like": 11.1, "temp_min": 10.5, "temp_max": 14.2, "pressure": 1012, "humidity": 81},
	"visibility": 10000,
	"wind": {"speed": 4.6, "deg": 230},
	"clouds": {"all": 75},
	"dt": 1700000000,
	"sys": {"country": "US"},
	"name": "New York"
}`

const forecastFixture = `{
	"list": [
		{
			"dt": 1700010800,
			"main": {"temp": 11, "feels_like": 10, "temp_min": 9, "temp_max": 12, "pressure": 1010, "humidity": 70},
			"weather": [{"id": 803, "main": "Clouds", "description": "broken clouds", "icon": "04d"}],
			"clouds": {"all": 60},
			"wind": {"speed": 3.1, "deg": 200},
			"pop": 0.35,
			"dt_txt": "2023-11-15 03:00:00"
		},
		{
			"dt": 1700021600,
			"main": {"temp": 9.5},
			"weather": [],
			"dt_txt": "2023-11-15 06:00:00"
		}
	],
	"city": {"name": "", "country": "US", "coord": {"lat": 40.7128, "lon": -74.006}}
}`

func newTestServer(t *testing.T, status int, body string) (*httptest.Server, *http.Request) {
	t.Helper()
	var captured http.Request
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured = *r.Clone(context.Background())
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(server.Close)
	return server, &captured
}

func TestNewOpenWeatherClient(t *testing.T) {
	tests := []struct {
		name    string
		apiKey  string
		apiURL  string
		wantErr bool
	}{
		{"default URL", "key", "", false},
		{"empty key accepted", "", "https://api.test.com", false},
		{"custom URL", "key", "https://api.test.com/data/2.5/", false},
		{"relative URL", "key", "not-a-url", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := NewOpenWeatherClient(tt.apiKey, tt.apiURL, 2*time.Second)
			if tt.wantErr {
				if err == nil {
					t.Fatal("NewOpenWeatherClient() expected error, got nil")
				}
				return
			}
			if err != nil || c == nil {
				t.Fatalf("NewOpenWeatherClient() = %v, %v", c, err)
			}
		})
	}
}

// TestOpenWeatherClient_GetCurrentWeather_Success verifies the provider record
// is reshaped into the internal schema and the request carries metric units.
func TestOpenWeatherClient_GetCurrentWeather_Success(t *testing.T) {
	server, req := newTestServer(t, http.StatusOK, currentFixture)

	c, err := NewOpenWeatherClient("test-api-key", server.URL, 2*time.Second)
	if err != nil {
		t.Fatalf("NewOpenWeatherClient() error = %v", err)
	}

	got, err := c.GetCurrentWeather(context.Background(), 40.7128, -74.006)
	if err != nil {
		t.Fatalf("GetCurrentWeather() error = %v", err)
	}

	want := models.WeatherSnapshot{
		Location: models.Location{Name: "New York", Country: "US", Lat: 40.7128, Lon: -74.006},
		Current: models.Conditions{
			Temp: 12.3, FeelsLike: 11.1, TempMin: 10.5, TempMax: 14.2,
			Humidity: 81, Pressure: 1012, WindSpeed: 4.6, WindDeg: 230,
			Clouds: 75, Visibility: 10000,
			Weather: models.Condition{ID: 500, Main: "Rain", Description: "light rain", Icon: "10d"},
			Dt:      1700000000000,
		},
	}
	if got != want {
		t.Errorf("GetCurrentWeather() = %+v, want %+v", got, want)
	}

	if req.URL.Path != "/weather" {
		t.Errorf("path = %q, want /weather", req.URL.Path)
	}
	q := req.URL.Query()
	if q.Get("lat") != "40.7128" || q.Get("lon") != "-74.006" {
		t.Errorf("lat/lon = %q/%q", q.Get("lat"), q.Get("lon"))
	}
	if q.Get("units") != "metric" || q.Get("appid") != "test-api-key" {
		t.Errorf("units/appid = %q/%q", q.Get("units"), q.Get("appid"))
	}
}

func TestOpenWeatherClient_GetCurrentWeather_UnknownName(t *testing.T) {
	server, _ := newTestServer(t, http.StatusOK, `{"coord":{"lat":0,"lon":0},"main":{"temp":25},"dt":1}`)
	c, _ := NewOpenWeatherClient("k", server.URL, 2*time.Second)

	got, err := c.GetCurrentWeather(context.Background(), 0, 0)
	if err != nil {
		t.Fatalf("GetCurrentWeather() error = %v", err)
	}
	if got.Location.Name != "Unknown" || got.Location.Country != "" {
		t.Errorf("location = %+v, want Unknown with empty country", got.Location)
	}
	if got.Current.Weather != (models.Condition{}) {
		t.Errorf("weather = %+v, want zero condition", got.Current.Weather)
	}
	if got.Current.Dt != 1000 {
		t.Errorf("dt = %d, want 1000", got.Current.Dt)
	}
}

func TestOpenWeatherClient_GetForecast_Success(t *testing.T) {
	server, req := newTestServer(t, http.StatusOK, forecastFixture)
	c, _ := NewOpenWeatherClient("k", server.URL+"/data/2.5", 2*time.Second)

	got, err := c.GetForecast(context.Background(), 40.7128, -74.006)
	if err != nil {
		t.Fatalf("GetForecast() error = %v", err)
	}
	if req.URL.Path != "/data/2.5/forecast" {
		t.Errorf("path = %q, want /data/2.5/forecast", req.URL.Path)
	}
	if got.Location != (models.Location{Name: "Unknown", Country: "US", Lat: 40.7128, Lon: -74.006}) {
		t.Errorf("location = %+v", got.Location)
	}
	if len(got.Forecast) != 2 {
		t.Fatalf("len(forecast) = %d, want 2", len(got.Forecast))
	}
	first := got.Forecast[0]
	if first.Dt != 1700010800000 || first.Temp != 11 || first.PrecipProbability != 0.35 || first.DtTxt != "2023-11-15 03:00:00" {
		t.Errorf("first entry = %+v", first)
	}
	if first.Weather.Main != "Clouds" || first.WindDeg != 200 || first.Clouds != 60 {
		t.Errorf("first entry weather/wind/clouds = %+v", first)
	}
	if got.Forecast[1].Weather != (models.Condition{}) || got.Forecast[1].Temp != 9.5 {
		t.Errorf("second entry = %+v", got.Forecast[1])
	}
}

func TestOpenWeatherClient_GetForecast_EmptyList(t *testing.T) {
	server, _ := newTestServer(t, http.StatusOK, `{"city":{"name":"Nowhere"}}`)
	c, _ := NewOpenWeatherClient("k", server.URL, 2*time.Second)

	got, err := c.GetForecast(context.Background(), 1, 2)
	if err != nil {
		t.Fatalf("GetForecast() error = %v", err)
	}
	if got.Forecast == nil || len(got.Forecast) != 0 {
		t.Errorf("forecast = %#v, want empty non-nil slice", got.Forecast)
	}
}

func TestOpenWeatherClient_ErrorHandling(t *testing.T) {
	tests := []struct {
		name       string
		statusCode int
		wantErr    error
	}{
		{"401 unauthorized", http.StatusUnauthorized, ErrInvalidAPIKey},
		{"404 not found", http.StatusNotFound, ErrLocationNotFound},
		{"429 rate limited", http.StatusTooManyRequests, ErrRateLimited},
		{"500 server error", http.StatusInternalServerError, ErrUpstreamFailure},
		{"502 bad gateway", http.StatusBadGateway, ErrUpstreamFailure},
		{"400 bad request", http.StatusBadRequest, ErrUpstreamFailure},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server, _ := newTestServer(t, tt.statusCode, `{"cod":"error"}`)
			c, _ := NewOpenWeatherClient("k", server.URL, 2*time.Second)

			_, err := c.GetCurrentWeather(context.Background(), 1, 2)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("GetCurrentWeather() error = %v, want %v", err, tt.wantErr)
			}
			_, err = c.GetForecast(context.Background(), 1, 2)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("GetForecast() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

// TestOpenWeatherClient_NoRetry verifies that a failing upstream is called once.
func TestOpenWeatherClient_NoRetry(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	c, _ := NewOpenWeatherClient("k", server.URL, 2*time.Second)
	if _, err := c.GetCurrentWeather(context.Background(), 1, 2); !errors.Is(err, ErrUpstreamFailure) {
		t.Fatalf("GetCurrentWeather() error = %v, want ErrUpstreamFailure", err)
	}
	if n := calls.Load(); n != 1 {
		t.Errorf("upstream calls = %d, want 1", n)
	}
}

func TestOpenWeatherClient_CorrelationID(t *testing.T) {
	server, req := newTestServer(t, http.StatusOK, currentFixture)
	c, _ := NewOpenWeatherClient("k", server.URL, 2*time.Second)

	ctx := context.WithValue(context.Background(), "correlation_id", "test-correlation-id-123")
	if _, err := c.GetCurrentWeather(ctx, 1, 2); err != nil {
		t.Fatalf("GetCurrentWeather() error = %v", err)
	}
	if got := req.Header.Get("X-Correlation-ID"); got != "test-correlation-id-123" {
		t.Errorf("X-Correlation-ID header = %q, want %q", got, "test-correlation-id-123")
	}
}

func TestOpenWeatherClient_InvalidJSON(t *testing.T) {
	server, _ := newTestServer(t, http.StatusOK, `{not json`)
	c, _ := NewOpenWeatherClient("k", server.URL, 2*time.Second)

	_, err := c.GetCurrentWeather(context.Background(), 1, 2)
	if err == nil || !strings.Contains(err.Error(), "parse response") {
		t.Errorf("GetCurrentWeather() error = %v, want 'parse response'", err)
	}
}

func TestOpenWeatherClient_Timeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(3 * time.Second):
		}
	}))
	defer server.Close()

	c, _ := NewOpenWeatherClient("k", server.URL, 100*time.Millisecond)
	_, err := c.GetCurrentWeather(context.Background(), 1, 2)
	if err == nil {
		t.Fatal("GetCurrentWeather() expected error, got nil")
	}
	if CategorizeError(err) != ErrorCategoryTimeout {
		t.Errorf("CategorizeError(%v) = %v, want timeout", err, CategorizeError(err))
	}
}

func TestOpenWeatherClient_ContextCancellation(t *testing.T) {
	server, _ := newTestServer(t, http.StatusOK, currentFixture)
	c, _ := NewOpenWeatherClient("k", server.URL, 2*time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := c.GetCurrentWeather(ctx, 1, 2); !errors.Is(err, context.Canceled) {
		t.Errorf("GetCurrentWeather() error = %v, want context.Canceled", err)
	}
}

// TestOpenWeatherClient_CircuitBreaker verifies that consecutive upstream
// failures open the breaker and later calls fail fast without reaching the server.
func TestOpenWeatherClient_CircuitBreaker(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	c, _ := NewOpenWeatherClient("k", server.URL, 2*time.Second, WithCircuitBreaker(2, time.Minute))
	ctx := context.Background()
	for i := 0; i < 2; i++ {
		if _, err := c.GetCurrentWeather(ctx, 1, 2); !errors.Is(err, ErrUpstreamFailure) {
			t.Fatalf("call %d error = %v, want ErrUpstreamFailure", i, err)
		}
	}

	_, err := c.GetForecast(ctx, 1, 2)
	if !errors.Is(err, ErrUpstreamFailure) {
		t.Fatalf("open breaker error = %v, want ErrUpstreamFailure", err)
	}
	if CategorizeError(err) != ErrorCategoryCircuitOpen {
		t.Errorf("CategorizeError() = %v, want circuit_open", CategorizeError(err))
	}
	if n := calls.Load(); n != 2 {
		t.Errorf("upstream calls = %d, want 2", n)
	}
}

// TestOpenWeatherClient_CircuitBreaker_IgnoresNotFound verifies that caller-side
// errors do not trip the breaker.
func TestOpenWeatherClient_CircuitBreaker_IgnoresNotFound(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	c, _ := NewOpenWeatherClient("k", server.URL, 2*time.Second, WithCircuitBreaker(1, time.Minute))
	for i := 0; i < 3; i++ {
		if _, err := c.GetCurrentWeather(context.Background(), 1, 2); !errors.Is(err, ErrLocationNotFound) {
			t.Fatalf("call %d error = %v, want ErrLocationNotFound", i, err)
		}
	}
	if n := calls.Load(); n != 3 {
		t.Errorf("upstream calls = %d, want 3", n)
	}
}

func TestStatusLabel(t *testing.T) {
	tests := map[int]string{200: "success", 204: "success", 429: "rate_limited", 404: "client_error", 503: "server_error", 302: "error"}
	for code, want := range tests {
		if got := StatusLabel(code); got != want {
			t.Errorf("StatusLabel(%d) = %q, want %q", code, got, want)
		}
	}
}
