package geocode

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/kelvins/geocoder"

	"github.com/kjstillabower/weather-map-service/internal/models"
	"github.com/kjstillabower/weather-map-service/internal/observability"
)

const googleProvider = "google"

// geocoder keeps its key in a package variable and reads it while the
// request is in flight, so the key must not change during a lookup. Lookups
// with the key already installed share the read lock.
var googleMu sync.RWMutex

// GoogleGeocoder resolves queries with the Google Geocoding API. It returns at
// most one place, named after the query.
type GoogleGeocoder struct {
	apiKey string
	lookup func(geocoder.Address) (geocoder.Location, error)
}

// NewGoogleGeocoder returns a geocoder using apiKey.
func NewGoogleGeocoder(apiKey string) *GoogleGeocoder {
	return &GoogleGeocoder{apiKey: apiKey, lookup: geocoder.Geocoding}
}

// Search implements Geocoder. The underlying library is not context-aware,
// so cancellation is only checked before the call.
func (g *GoogleGeocoder) Search(ctx context.Context, query string) ([]models.Place, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	start := time.Now()
	loc, err := g.geocode(geocoder.Address{City: query})

	if err != nil {
		observability.UpstreamCallsTotal.WithLabelValues(googleProvider, "error").Inc()
		observability.UpstreamDuration.WithLabelValues(googleProvider, "error").Observe(time.Since(start).Seconds())
		return nil, fmt.Errorf("google geocoding: %w", err)
	}
	observability.UpstreamCallsTotal.WithLabelValues(googleProvider, "success").Inc()
	observability.UpstreamDuration.WithLabelValues(googleProvider, "success").Observe(time.Since(start).Seconds())

	if loc.Latitude == 0 && loc.Longitude == 0 {
		return []models.Place{}, nil
	}
	return []models.Place{{Name: query, Lat: loc.Latitude, Lon: loc.Longitude}}, nil
}

func (g *GoogleGeocoder) geocode(addr geocoder.Address) (geocoder.Location, error) {
	googleMu.RLock()
	if geocoder.ApiKey == g.apiKey {
		defer googleMu.RUnlock()
		return g.lookup(addr)
	}
	googleMu.RUnlock()

	googleMu.Lock()
	defer googleMu.Unlock()
	geocoder.ApiKey = g.apiKey
	return g.lookup(addr)
}
