package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/kjstillabower/weather-map-service/internal/client"
	"github.com/kjstillabower/weather-map-service/internal/heatmap"
	"github.com/kjstillabower/weather-map-service/internal/lifecycle"
	"github.com/kjstillabower/weather-map-service/internal/models"
	"github.com/kjstillabower/weather-map-service/internal/observability"
	"github.com/kjstillabower/weather-map-service/internal/service"
	"github.com/kjstillabower/weather-map-service/internal/validation"
)

const (
	geocodeQueryMinLength = 2
	geocodeQueryMaxLength = 100
)

// HealthConfig describes what the health handler reports. Key presence is
// reported as a flag; key values never leave the process.
type HealthConfig struct {
	OpenWeatherKeySet bool
	OpenAIKeySet      bool
	// CachePing, when set, is called to check cache reachability. Used when backend is memcached.
	CachePing func() error
}

// Handler holds dependencies for HTTP handlers.
type Handler struct {
	weatherService   *service.WeatherService
	healthConfig     *HealthConfig
	logger           *zap.Logger
	now              func() time.Time
	healthStatusMu   sync.Mutex
	healthStatusPrev string
}

// NewHandler returns a new Handler.
func NewHandler(weatherService *service.WeatherService, healthConfig *HealthConfig, logger *zap.Logger) *Handler {
	if healthConfig == nil {
		healthConfig = &HealthConfig{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		weatherService: weatherService,
		healthConfig:   healthConfig,
		logger:         logger,
		now:            time.Now,
	}
}

// GetWeather handles GET /api/weather?lat=&lon=.
func (h *Handler) GetWeather(w http.ResponseWriter, r *http.Request) {
	lat, lon, ok := parsePoint(w, r)
	if !ok {
		return
	}
	snap, err := h.weatherService.Weather(r.Context(), lat, lon)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// GetForecast handles GET /api/forecast?lat=&lon=.
func (h *Handler) GetForecast(w http.ResponseWriter, r *http.Request) {
	lat, lon, ok := parsePoint(w, r)
	if !ok {
		return
	}
	series, err := h.weatherService.Forecast(r.Context(), lat, lon)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, series)
}

// GetDescription handles GET /api/weather_description?lat=&lon=.
// Language model failures are absorbed by the service; only a failed
// weather fetch reaches the client.
func (h *Handler) GetDescription(w http.ResponseWriter, r *http.Request) {
	lat, lon, ok := parsePoint(w, r)
	if !ok {
		return
	}
	text, err := h.weatherService.Description(r.Context(), lat, lon)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"description": text})
}

// GetHeatmap handles GET /api/heatmap. Missing bounds fall back to the
// default box. With normalize=true intensities are rescaled to [0,1];
// the X-Heatmap-* headers always describe the raw values.
func (h *Handler) GetHeatmap(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	typ := q.Get("type")
	if typ == "" {
		typ = string(heatmap.Temperature)
	}
	box, err := validation.ParseBounds(q.Get("north"), q.Get("south"), q.Get("east"), q.Get("west"), heatmap.DefaultBox)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "INVALID_BOUNDS", err.Error())
		return
	}
	normalize := false
	if v := q.Get("normalize"); v != "" {
		normalize, err = strconv.ParseBool(v)
		if err != nil {
			writeError(w, r, http.StatusBadRequest, "INVALID_QUERY", "normalize must be true or false")
			return
		}
	}

	observability.RecordHeatmapRequest(typ)
	samples, err := h.weatherService.Heatmap(r.Context(), typ, box)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	sum := heatmap.Summarize(samples)
	w.Header().Set("X-Heatmap-Min", formatFloat(sum.Min))
	w.Header().Set("X-Heatmap-Max", formatFloat(sum.Max))
	w.Header().Set("X-Heatmap-Mean", formatFloat(sum.Mean))
	if normalize {
		samples = heatmap.Normalize(samples)
	}
	writeJSON(w, http.StatusOK, samples)
}

// GetGradient handles GET /api/heatmap/gradient?type=. Unknown types get
// the temperature gradient.
func (h *Handler) GetGradient(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, heatmap.GradientMap(heatmap.Gradient(r.URL.Query().Get("type"))))
}

// GetGeocode handles GET /api/geocode?q=.
func (h *Handler) GetGeocode(w http.ResponseWriter, r *http.Request) {
	query, err := validation.ValidatePlaceQuery(r.URL.Query().Get("q"), geocodeQueryMinLength, geocodeQueryMaxLength)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "INVALID_QUERY", err.Error())
		return
	}
	places, err := h.weatherService.Geocode(r.Context(), query)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	if places == nil {
		places = []models.Place{}
	}
	writeJSON(w, http.StatusOK, places)
}

// NotFound handles unmatched routes.
func (h *Handler) NotFound(w http.ResponseWriter, r *http.Request) {
	writeError(w, r, http.StatusNotFound, "NOT_FOUND", "no route for "+r.URL.Path)
}

// healthResult holds the computed health status and metadata for logging.
type healthResult struct {
	status     string
	statusCode int
	reason     string
}

// GetHealth handles GET /health and /api/health.
func (h *Handler) GetHealth(w http.ResponseWriter, r *http.Request) {
	checks := map[string]string{
		"openWeatherApiKey": presence(h.healthConfig.OpenWeatherKeySet),
		"openAiApiKey":      presence(h.healthConfig.OpenAIKeySet),
	}
	cacheHealthy := true
	if h.healthConfig.CachePing != nil {
		if err := h.healthConfig.CachePing(); err != nil {
			cacheHealthy = false
			checks["cache"] = "unhealthy"
		} else {
			checks["cache"] = "healthy"
		}
	}

	result := computeHealthStatus(cacheHealthy)
	h.healthStatusMu.Lock()
	prev := h.healthStatusPrev
	if prev != "" && prev != result.status {
		h.logger.Info("health status transition",
			zap.String("previous_status", prev),
			zap.String("current_status", result.status),
			zap.String("reason", result.reason))
	}
	h.healthStatusPrev = result.status
	h.healthStatusMu.Unlock()

	now := h.now()
	writeJSON(w, result.statusCode, map[string]interface{}{
		"status":    result.status,
		"service":   "weather-map-service",
		"version":   "dev",
		"checks":    checks,
		"envValid":  h.healthConfig.OpenWeatherKeySet && h.healthConfig.OpenAIKeySet,
		"timestamp": now.UTC().Format(time.RFC3339),
		"uptime":    lifecycle.Uptime(now).Round(time.Second).String(),
	})
}

// computeHealthStatus evaluates conditions in priority order:
// shutting-down > cache unreachable > healthy. Missing provider keys are
// reported through envValid and do not change the status.
func computeHealthStatus(cacheHealthy bool) healthResult {
	if lifecycle.IsShuttingDown() {
		return healthResult{"shutting-down", http.StatusServiceUnavailable, "signal"}
	}
	if !cacheHealthy {
		return healthResult{"degraded", http.StatusServiceUnavailable, "cache_unreachable"}
	}
	return healthResult{"healthy", http.StatusOK, ""}
}

func presence(set bool) string {
	if set {
		return "present"
	}
	return "missing"
}

// parsePoint reads lat/lon from the query string, writing a 400 on failure.
func parsePoint(w http.ResponseWriter, r *http.Request) (float64, float64, bool) {
	q := r.URL.Query()
	lat, lon, err := validation.ParsePoint(q.Get("lat"), q.Get("lon"))
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "INVALID_COORDINATES", err.Error())
		return 0, 0, false
	}
	return lat, lon, true
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// writeJSON writes a JSON response with the specified HTTP status code.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError writes an error response in the standard error format with code, message,
// and requestId (correlation ID) if available in request context.
func writeError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	category := client.ErrorCategoryValidation
	if status == http.StatusNotFound {
		category = client.ErrorCategoryNotFound
	}
	writeCategorizedError(w, r, status, code, message, category)
}

func writeCategorizedError(w http.ResponseWriter, r *http.Request, status int, code, message string, category client.ErrorCategory) {
	corrID := ""
	if v, ok := r.Context().Value("correlation_id").(string); ok {
		corrID = v
	}
	observability.HTTPErrorsTotal.WithLabelValues(code, string(category)).Inc()
	writeJSON(w, status, map[string]interface{}{
		"error": map[string]string{
			"code":      code,
			"message":   message,
			"requestId": corrID,
		},
	})
}

// writeServiceError maps a service error to a response. Every upstream
// outcome, including an upstream 404, is a 500 UPSTREAM_FAILURE; detail is
// logged, never returned to the client.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	logger, _ := r.Context().Value("logger").(*zap.Logger)
	if logger == nil {
		logger = zap.NewNop()
	}
	category := errorCategory(err)

	switch {
	case errors.Is(err, client.ErrLocationNotFound), errors.Is(err, context.Canceled):
		logger.Debug("upstream request failed", zap.Error(err), zap.String("category", string(category)))
	default:
		logger.Error("upstream failure", zap.Error(err), zap.String("category", string(category)))
	}
	writeCategorizedError(w, r, http.StatusInternalServerError, "UPSTREAM_FAILURE", upstreamMessage(err), category)
}

// errorCategory classifies service-level sentinels before falling back to
// the transport categories.
func errorCategory(err error) client.ErrorCategory {
	switch {
	case errors.Is(err, validation.ErrInvalidInput):
		return client.ErrorCategoryValidation
	case errors.Is(err, service.ErrGeocoderUnavailable):
		return client.ErrorCategoryNotConfigured
	default:
		return client.CategorizeError(err)
	}
}

func upstreamMessage(err error) string {
	switch {
	case errors.Is(err, service.ErrGeocoderUnavailable):
		return "Place search is not configured"
	case errors.Is(err, context.Canceled):
		return "Request cancelled"
	default:
		return "Unable to fetch weather data"
	}
}
