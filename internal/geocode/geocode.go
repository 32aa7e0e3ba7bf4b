// Package geocode resolves free-text place searches to coordinates.
package geocode

import (
	"context"

	"github.com/kjstillabower/weather-map-service/internal/models"
)

// MaxResults caps the number of places returned for a query.
const MaxResults = 5

// Geocoder searches for places by name.
type Geocoder interface {
	Search(ctx context.Context, query string) ([]models.Place, error)
}
