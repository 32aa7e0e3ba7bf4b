package cache

import (
	"fmt"
	"strings"
)

// Cache keys round coordinates so that nearby requests share an entry.
// Point lookups keep 4 decimals (~11 m); heatmap boxes keep 1 decimal.

func WeatherKey(lat, lon float64) string {
	return fmt.Sprintf("weather_%.4f_%.4f", lat, lon)
}

func ForecastKey(lat, lon float64) string {
	return fmt.Sprintf("forecast_%.4f_%.4f", lat, lon)
}

func DescriptionKey(lat, lon float64) string {
	return fmt.Sprintf("weather_description_%.4f_%.4f", lat, lon)
}

// HeatmapKey uses the requested type verbatim, so unrecognised types get their own entry.
func HeatmapKey(typ string, north, south, east, west float64) string {
	return fmt.Sprintf("heatmap_%s_%.1f_%.1f_%.1f_%.1f", typ, north, south, east, west)
}

func GeocodeKey(query string) string {
	q := strings.Join(strings.Fields(strings.ToLower(query)), "_")
	return "geocode_" + q
}
