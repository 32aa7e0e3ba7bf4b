package geocode

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/kjstillabower/weather-map-service/internal/client"
	"github.com/kjstillabower/weather-map-service/internal/models"
	"github.com/kjstillabower/weather-map-service/internal/observability"
)

// DefaultNominatimURL is the public OpenStreetMap search endpoint.
const DefaultNominatimURL = "https://nominatim.openstreetmap.org/search"

const nominatimProvider = "nominatim"

// NominatimGeocoder queries an OpenStreetMap Nominatim server. The public
// server allows one request per second, so calls are paced client-side.
type NominatimGeocoder struct {
	endpoint  string
	userAgent string
	client    *http.Client
	limiter   *rate.Limiter
}

// NewNominatimGeocoder returns a geocoder for endpoint (DefaultNominatimURL
// when empty). interval is the minimum gap between calls; zero disables pacing.
func NewNominatimGeocoder(endpoint, userAgent string, timeout, interval time.Duration) *NominatimGeocoder {
	if endpoint == "" {
		endpoint = DefaultNominatimURL
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	limit := rate.Inf
	if interval > 0 {
		limit = rate.Every(interval)
	}
	return &NominatimGeocoder{
		endpoint:  endpoint,
		userAgent: userAgent,
		client:    &http.Client{Timeout: timeout},
		limiter:   rate.NewLimiter(limit, 1),
	}
}

type nominatimResult struct {
	Lat         string `json:"lat"`
	Lon         string `json:"lon"`
	DisplayName string `json:"display_name"`
}

// Search returns up to MaxResults places for query.
func (g *NominatimGeocoder) Search(ctx context.Context, query string) ([]models.Place, error) {
	if err := g.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("wait for rate limiter: %w", err)
	}

	params := url.Values{}
	params.Set("format", "json")
	params.Set("q", query)
	params.Set("limit", strconv.Itoa(MaxResults))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if g.userAgent != "" {
		req.Header.Set("User-Agent", g.userAgent)
	}

	start := time.Now()
	resp, err := g.client.Do(req)
	if err != nil {
		observability.UpstreamCallsTotal.WithLabelValues(nominatimProvider, "error").Inc()
		observability.UpstreamDuration.WithLabelValues(nominatimProvider, "error").Observe(time.Since(start).Seconds())
		return nil, fmt.Errorf("http request failed: %w", err)
	}
	defer resp.Body.Close()

	status := client.StatusLabel(resp.StatusCode)
	observability.UpstreamCallsTotal.WithLabelValues(nominatimProvider, status).Inc()
	observability.UpstreamDuration.WithLabelValues(nominatimProvider, status).Observe(time.Since(start).Seconds())

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, fmt.Errorf("%w", client.ErrRateLimited)
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return nil, fmt.Errorf("%w: HTTP %d", client.ErrUpstreamFailure, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}
	var results []nominatimResult
	if err := json.Unmarshal(body, &results); err != nil {
		return nil, fmt.Errorf("parse response: %w", err)
	}

	places := make([]models.Place, 0, len(results))
	for _, r := range results {
		lat, latErr := strconv.ParseFloat(strings.TrimSpace(r.Lat), 64)
		lon, lonErr := strconv.ParseFloat(strings.TrimSpace(r.Lon), 64)
		if latErr != nil || lonErr != nil {
			continue
		}
		places = append(places, models.Place{Name: r.DisplayName, Lat: lat, Lon: lon})
		if len(places) == MaxResults {
			break
		}
	}
	return places, nil
}
