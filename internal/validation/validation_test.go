package validation

import (
	"errors"
	"testing"

	"github.com/kjstillabower/weather-map-service/internal/heatmap"
)

func TestParsePoint_Valid(t *testing.T) {
	tests := []struct {
		lat, lon         string
		wantLat, wantLon float64
	}{
		{"40.7128", "-74.006", 40.7128, -74.006},
		{"0", "0", 0, 0},
		{" -90 ", "180", -90, 180},
		{"90", "-180", 90, -180},
	}
	for _, tc := range tests {
		lat, lon, err := ParsePoint(tc.lat, tc.lon)
		if err != nil {
			t.Errorf("ParsePoint(%q, %q) error = %v", tc.lat, tc.lon, err)
			continue
		}
		if lat != tc.wantLat || lon != tc.wantLon {
			t.Errorf("ParsePoint(%q, %q) = %v, %v", tc.lat, tc.lon, lat, lon)
		}
	}
}

func TestParsePoint_Invalid(t *testing.T) {
	tests := []struct {
		name      string
		lat, lon  string
		wantField string
		wantMsg   string
	}{
		{"missing lat", "", "-74", "lat", "is required"},
		{"missing lon", "40", "  ", "lon", "is required"},
		{"non-numeric lat", "north", "-74", "lat", "must be a number between -90 and 90"},
		{"lat out of range", "91", "0", "lat", "must be a number between -90 and 90"},
		{"lon out of range", "0", "-180.5", "lon", "must be a number between -180 and 180"},
		{"NaN", "NaN", "0", "lat", "must be a number between -90 and 90"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, _, err := ParsePoint(tc.lat, tc.lon)
			if !errors.Is(err, ErrInvalidInput) {
				t.Fatalf("error = %v, want ErrInvalidInput", err)
			}
			var fe *FieldError
			if !errors.As(err, &fe) {
				t.Fatalf("error = %T, want *FieldError", err)
			}
			if fe.Field != tc.wantField || fe.Message != tc.wantMsg {
				t.Errorf("FieldError = %q %q, want %q %q", fe.Field, fe.Message, tc.wantField, tc.wantMsg)
			}
		})
	}
}

func TestParseBounds(t *testing.T) {
	got, err := ParseBounds("49.5", "", "-66.9", "", heatmap.DefaultBox)
	if err != nil {
		t.Fatalf("ParseBounds() error = %v", err)
	}
	want := heatmap.BoundingBox{North: 49.5, South: 20, East: -66.9, West: -130}
	if got != want {
		t.Errorf("ParseBounds() = %+v, want %+v", got, want)
	}

	all, err := ParseBounds("", "", "", "", heatmap.DefaultBox)
	if err != nil || all != heatmap.DefaultBox {
		t.Errorf("ParseBounds(all missing) = %+v, %v; want defaults", all, err)
	}

	inverted, err := ParseBounds("10", "20", "-10", "10", heatmap.DefaultBox)
	if err != nil {
		t.Errorf("inverted box should be accepted, got %v", err)
	}
	if inverted.North != 10 || inverted.South != 20 {
		t.Errorf("inverted = %+v", inverted)
	}
}

func TestParseBounds_NonNumeric(t *testing.T) {
	_, err := ParseBounds("60", "abc", "-60", "-130", heatmap.DefaultBox)
	var fe *FieldError
	if !errors.As(err, &fe) {
		t.Fatalf("error = %v, want *FieldError", err)
	}
	if fe.Field != "south" || fe.Message != "must be a finite number" {
		t.Errorf("FieldError = %q %q", fe.Field, fe.Message)
	}
	if !errors.Is(err, ErrInvalidInput) {
		t.Error("error should wrap ErrInvalidInput")
	}
}

func TestParseBounds_NumberForms(t *testing.T) {
	tests := []struct {
		in      string
		want    float64
		wantErr bool
	}{
		{"1e-7", 1e-7, false},
		{"4.5E1", 45, false},
		{"+12", 12, false},
		{"-0.25", -0.25, false},
		{"NaN", 0, true},
		{"nan", 0, true},
		{"Inf", 0, true},
		{"-Infinity", 0, true},
		{"1e400", 0, true},
		{"12abc", 0, true},
	}
	for _, tc := range tests {
		t.Run(tc.in, func(t *testing.T) {
			got, err := ParseBounds(tc.in, "", "", "", heatmap.DefaultBox)
			if tc.wantErr {
				var fe *FieldError
				if !errors.As(err, &fe) || fe.Field != "north" {
					t.Errorf("ParseBounds(%q) error = %v, want north FieldError", tc.in, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseBounds(%q) error = %v", tc.in, err)
			}
			if got.North != tc.want {
				t.Errorf("North = %v, want %v", got.North, tc.want)
			}
		})
	}
}

func TestValidatePlaceQuery(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr error
	}{
		{"empty", "", "", ErrQueryEmpty},
		{"spaces", "   ", "", ErrQueryEmpty},
		{"too short", "x", "", ErrQueryTooShort},
		{"too long", "abcdefghijk", "", ErrQueryTooLong},
		{"invalid chars", "paris<script>", "", ErrQueryInvalidChars},
		{"trimmed", "  New York ", "New York", nil},
		{"punctuation", "St. John's", "St. John's", nil},
		{"unicode", "São Paulo", "São Paulo", nil},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			max := 10
			if tc.wantErr == nil {
				max = 100
			}
			got, err := ValidatePlaceQuery(tc.input, 2, max)
			if tc.wantErr != nil {
				if !errors.Is(err, tc.wantErr) {
					t.Errorf("error = %v, want %v", err, tc.wantErr)
				}
				if !errors.Is(err, ErrInvalidInput) {
					t.Error("error should wrap ErrInvalidInput")
				}
				return
			}
			if err != nil || got != tc.want {
				t.Errorf("ValidatePlaceQuery(%q) = %q, %v; want %q", tc.input, got, err, tc.want)
			}
		})
	}
}
