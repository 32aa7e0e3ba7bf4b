// Package heatmap synthesizes the geographic intensity grid drawn by the map
// layer and resolves the colour gradient used to paint it.
package heatmap

import (
	"encoding/json"
	"math"
	"math/rand"
)

// Type is a heatmap layer kind.
type Type string

const (
	Temperature   Type = "temperature"
	Precipitation Type = "precipitation"
	Humidity      Type = "humidity"
	Pressure      Type = "pressure"
)

// GridSize is the number of steps per axis. The grid includes both edges, so
// it holds (GridSize+1)^2 samples.
const GridSize = 20

// SampleCount is the number of samples Generate returns for any box.
const SampleCount = (GridSize + 1) * (GridSize + 1)

// ParseType returns the known Type for s and whether s was recognised.
// Names match exactly. Unrecognised input maps to Temperature; it is never
// rejected.
func ParseType(s string) (Type, bool) {
	switch t := Type(s); t {
	case Temperature, Precipitation, Humidity, Pressure:
		return t, true
	default:
		return Temperature, false
	}
}

// BoundingBox is a lat/lon rectangle. Inverted boxes are not rejected.
type BoundingBox struct {
	North float64 `json:"north"`
	South float64 `json:"south"`
	East  float64 `json:"east"`
	West  float64 `json:"west"`
}

// DefaultBox covers the continental United States.
var DefaultBox = BoundingBox{North: 60, South: 20, East: -60, West: -130}

// Sample is one grid point. It marshals as [lat, lon, intensity].
type Sample struct {
	Lat       float64
	Lon       float64
	Intensity float64
}

func (s Sample) MarshalJSON() ([]byte, error) {
	return json.Marshal([3]float64{s.Lat, s.Lon, s.Intensity})
}

func (s *Sample) UnmarshalJSON(b []byte) error {
	var v [3]float64
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	s.Lat, s.Lon, s.Intensity = v[0], v[1], v[2]
	return nil
}

// RandSource yields uniform values in [0, 1).
type RandSource interface {
	Float64() float64
}

type globalRand struct{}

func (globalRand) Float64() float64 { return rand.Float64() }

// Generator produces heatmap samples. The zero value is not usable; call NewGenerator.
type Generator struct {
	rnd RandSource
}

// NewGenerator returns a Generator drawing from rnd. A nil rnd uses the
// goroutine-safe math/rand/v2 top-level source.
func NewGenerator(rnd RandSource) *Generator {
	if rnd == nil {
		rnd = globalRand{}
	}
	return &Generator{rnd: rnd}
}

// Generate returns SampleCount samples covering box, i-major (latitude outer).
// typ is the raw requested layer name; unknown names use a flat random formula.
func (g *Generator) Generate(typ string, box BoundingBox) []Sample {
	latStep := (box.North - box.South) / GridSize
	lonStep := (box.East - box.West) / GridSize
	intensity := g.formula(typ)

	out := make([]Sample, 0, SampleCount)
	for i := 0; i <= GridSize; i++ {
		lat := box.South + float64(i)*latStep
		for j := 0; j <= GridSize; j++ {
			lon := box.West + float64(j)*lonStep
			out = append(out, Sample{Lat: lat, Lon: lon, Intensity: intensity(lat, lon)})
		}
	}
	return out
}

func (g *Generator) formula(typ string) func(lat, lon float64) float64 {
	switch Type(typ) {
	case Temperature:
		return func(lat, _ float64) float64 {
			return TemperatureBase(lat) + (g.rnd.Float64()*10 - 5)
		}
	case Precipitation:
		return func(lat, lon float64) float64 {
			return g.rnd.Float64() * 30 * (math.Sin(lat/10) + math.Cos(lon/10) + 2) / 4
		}
	case Humidity:
		return func(lat, lon float64) float64 {
			return 40 + g.rnd.Float64()*40*(math.Sin(lat/15)+math.Cos(lon/15)+2)/4
		}
	case Pressure:
		return func(lat, _ float64) float64 {
			return 1000 + 20*math.Sin(lat/10) + g.rnd.Float64()*10
		}
	default:
		return func(_, _ float64) float64 {
			return g.rnd.Float64() * 30
		}
	}
}

// TemperatureBase is the non-random part of the temperature formula: warmest
// at the equator and clamped to zero from |lat| >= 20.
func TemperatureBase(lat float64) float64 {
	return math.Max(0, 30-math.Abs(lat)*1.5)
}
