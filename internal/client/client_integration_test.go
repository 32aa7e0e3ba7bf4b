//go:build integration
// +build integration

package client

import (
	"context"
	"os"
	"testing"
	"time"
)

// TestOpenWeatherClient_Live_Integration calls the real provider. Requires
// OPENWEATHER_API_KEY.
func TestOpenWeatherClient_Live_Integration(t *testing.T) {
	apiKey := os.Getenv("OPENWEATHER_API_KEY")
	if apiKey == "" {
		t.Skip("OPENWEATHER_API_KEY not set, skipping integration test")
	}

	c, err := NewOpenWeatherClient(apiKey, DefaultBaseURL, 5*time.Second)
	if err != nil {
		t.Fatalf("NewOpenWeatherClient() error = %v", err)
	}

	ctx := context.Background()
	snap, err := c.GetCurrentWeather(ctx, 47.6062, -122.3321)
	if err != nil {
		t.Fatalf("GetCurrentWeather() error = %v", err)
	}
	if snap.Location.Name == "" || snap.Current.Dt == 0 {
		t.Errorf("GetCurrentWeather() = %+v, want populated snapshot", snap)
	}

	series, err := c.GetForecast(ctx, 47.6062, -122.3321)
	if err != nil {
		t.Fatalf("GetForecast() error = %v", err)
	}
	if len(series.Forecast) == 0 {
		t.Error("GetForecast() returned no entries")
	}
}
