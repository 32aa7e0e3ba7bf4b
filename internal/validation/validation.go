// Package validation parses and checks query input before it reaches the
// service layer. Every error it returns wraps ErrInvalidInput.
package validation

import (
	"errors"
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"
	"sync"
	"unicode"

	"github.com/go-playground/validator/v10"

	"github.com/kjstillabower/weather-map-service/internal/heatmap"
)

// ErrInvalidInput is wrapped by every error returned from this package.
var ErrInvalidInput = errors.New("invalid input")

// ErrQueryEmpty is returned when a search query is empty or whitespace-only after trim.
var ErrQueryEmpty = fmt.Errorf("%w: query is required", ErrInvalidInput)

// ErrQueryTooShort is returned when a search query is below the minimum length.
var ErrQueryTooShort = fmt.Errorf("%w: query too short", ErrInvalidInput)

// ErrQueryTooLong is returned when a search query exceeds the maximum length.
var ErrQueryTooLong = fmt.Errorf("%w: query too long", ErrInvalidInput)

// ErrQueryInvalidChars is returned when a search query contains disallowed characters.
var ErrQueryInvalidChars = fmt.Errorf("%w: query contains invalid characters", ErrInvalidInput)

// FieldError reports a single invalid query parameter.
type FieldError struct {
	Field   string
	Message string
}

func (e *FieldError) Error() string { return e.Field + " " + e.Message }

func (e *FieldError) Unwrap() error { return ErrInvalidInput }

type pointQuery struct {
	Lat string `query:"lat" validate:"required,latitude"`
	Lon string `query:"lon" validate:"required,longitude"`
}

type boundsQuery struct {
	North string `query:"north" validate:"omitempty,finite"`
	South string `query:"south" validate:"omitempty,finite"`
	East  string `query:"east" validate:"omitempty,finite"`
	West  string `query:"west" validate:"omitempty,finite"`
}

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func getValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New()
		validate.RegisterTagNameFunc(func(f reflect.StructField) string {
			return f.Tag.Get("query")
		})
		if err := validate.RegisterValidation("finite", isFinite); err != nil {
			panic(err)
		}
	})
	return validate
}

// isFinite accepts anything strconv.ParseFloat reads (exponents included)
// except NaN and the infinities.
func isFinite(fl validator.FieldLevel) bool {
	v, err := strconv.ParseFloat(fl.Field().String(), 64)
	return err == nil && !math.IsNaN(v) && !math.IsInf(v, 0)
}

// ParsePoint validates lat/lon query values and returns them as floats.
// Both are required; lat must lie in [-90, 90] and lon in [-180, 180].
func ParsePoint(lat, lon string) (float64, float64, error) {
	q := pointQuery{Lat: strings.TrimSpace(lat), Lon: strings.TrimSpace(lon)}
	if err := check(q); err != nil {
		return 0, 0, err
	}
	la, _ := strconv.ParseFloat(q.Lat, 64)
	lo, _ := strconv.ParseFloat(q.Lon, 64)
	return la, lo, nil
}

// ParseBounds validates heatmap bounds. Missing values take the matching
// field of def; present values must be finite numbers. Inverted boxes are accepted.
func ParseBounds(north, south, east, west string, def heatmap.BoundingBox) (heatmap.BoundingBox, error) {
	q := boundsQuery{
		North: strings.TrimSpace(north),
		South: strings.TrimSpace(south),
		East:  strings.TrimSpace(east),
		West:  strings.TrimSpace(west),
	}
	if err := check(q); err != nil {
		return heatmap.BoundingBox{}, err
	}
	return heatmap.BoundingBox{
		North: floatOr(q.North, def.North),
		South: floatOr(q.South, def.South),
		East:  floatOr(q.East, def.East),
		West:  floatOr(q.West, def.West),
	}, nil
}

func floatOr(s string, def float64) float64 {
	if s == "" {
		return def
	}
	v, _ := strconv.ParseFloat(s, 64)
	return v
}

// check runs struct validation and converts the first failure to a FieldError.
func check(v any) error {
	err := getValidator().Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	fe := verrs[0]
	return &FieldError{Field: fe.Field(), Message: message(fe)}
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "latitude":
		return "must be a number between -90 and 90"
	case "longitude":
		return "must be a number between -180 and 180"
	case "finite":
		return "must be a finite number"
	default:
		return "is invalid"
	}
}

// ValidatePlaceQuery trims the input, enforces length bounds (minLen, maxLen in runes),
// and restricts to characters that appear in place names: letters (Unicode),
// digits, space, comma, hyphen, period, apostrophe.
func ValidatePlaceQuery(input string, minLen, maxLen int) (string, error) {
	s := strings.TrimSpace(input)
	r := []rune(s)
	n := len(r)
	if n == 0 {
		return "", ErrQueryEmpty
	}
	if minLen > 0 && n < minLen {
		return "", ErrQueryTooShort
	}
	if maxLen > 0 && n > maxLen {
		return "", ErrQueryTooLong
	}
	for _, c := range r {
		if !isAllowedPlaceRune(c) {
			return "", ErrQueryInvalidChars
		}
	}
	return s, nil
}

func isAllowedPlaceRune(r rune) bool {
	if unicode.IsLetter(r) || unicode.IsNumber(r) || unicode.IsMark(r) {
		return true
	}
	switch r {
	case ' ', ',', '-', '.', '\'':
		return true
	}
	return false
}
