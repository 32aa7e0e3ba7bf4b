package http

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/klauspost/compress/gzhttp"
	"go.uber.org/zap"

	"github.com/kjstillabower/weather-map-service/internal/observability"
)

// RouterOptions configures NewRouter.
type RouterOptions struct {
	RequestTimeout time.Duration
	AllowedOrigins []string
}

// NewRouter builds the full route surface. The mux router carries
// correlation IDs and metrics; compression, CORS and panic recovery wrap it
// from the outside.
func NewRouter(h *Handler, logger *zap.Logger, opts RouterOptions) http.Handler {
	router := mux.NewRouter()
	router.Use(CorrelationIDMiddleware(logger))
	router.Use(MetricsMiddleware)
	router.NotFoundHandler = CorrelationIDMiddleware(logger)(http.HandlerFunc(h.NotFound))

	router.HandleFunc("/health", h.GetHealth).Methods(http.MethodGet)
	router.Handle("/metrics", observability.MetricsHandler()).Methods(http.MethodGet)

	api := router.PathPrefix("/api").Subrouter()
	api.Use(TimeoutMiddleware(opts.RequestTimeout))
	api.HandleFunc("/health", h.GetHealth).Methods(http.MethodGet)
	api.HandleFunc("/weather", h.GetWeather).Methods(http.MethodGet)
	api.HandleFunc("/forecast", h.GetForecast).Methods(http.MethodGet)
	api.HandleFunc("/weather_description", h.GetDescription).Methods(http.MethodGet)
	api.HandleFunc("/heatmap", h.GetHeatmap).Methods(http.MethodGet)
	api.HandleFunc("/heatmap/gradient", h.GetGradient).Methods(http.MethodGet)
	api.HandleFunc("/geocode", h.GetGeocode).Methods(http.MethodGet)

	origins := opts.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	cors := handlers.CORS(
		handlers.AllowedOrigins(origins),
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodOptions}),
		handlers.AllowedHeaders([]string{"Content-Type", "X-Correlation-ID"}),
		handlers.ExposedHeaders([]string{"X-Correlation-ID", "X-Heatmap-Min", "X-Heatmap-Max", "X-Heatmap-Mean"}),
	)
	recovery := handlers.RecoveryHandler(
		handlers.RecoveryLogger(recoveryLogger{logger}),
		handlers.PrintRecoveryStack(false),
	)
	return recovery(cors(gzhttp.GzipHandler(router)))
}

// recoveryLogger adapts zap to handlers.RecoveryHandlerLogger.
type recoveryLogger struct {
	logger *zap.Logger
}

func (l recoveryLogger) Println(v ...interface{}) {
	l.logger.Error("panic recovered", zap.String("panic", fmt.Sprint(v...)))
}
