package ai

import (
	"errors"
	"net/http"

	openai "github.com/sashabaranov/go-openai"

	"github.com/kjstillabower/weather-map-service/internal/client"
)

// categorize labels narrator failures for metrics and fallback logs.
func categorize(err error) client.ErrorCategory {
	var apiErr *openai.APIError
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrNotConfigured):
		return client.ErrorCategoryNotConfigured
	case errors.Is(err, ErrEmptyCompletion):
		return client.ErrorCategoryEmptyResponse
	case errors.As(err, &apiErr):
		switch code := apiErr.HTTPStatusCode; {
		case code == http.StatusUnauthorized || code == http.StatusForbidden:
			return client.ErrorCategoryInvalidAPIKey
		case code == http.StatusTooManyRequests:
			return client.ErrorCategoryRateLimited
		case code >= 500:
			return client.ErrorCategoryUpstream5xx
		}
	}
	return client.CategorizeError(err)
}
