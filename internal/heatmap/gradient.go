package heatmap

import (
	"encoding/json"
	"strconv"
)

// Stop is one colour stop of a gradient, offset in [0, 1].
type Stop struct {
	Offset float64 `json:"offset"`
	Color  string  `json:"color"`
}

var gradients = map[Type][]Stop{
	Temperature: {
		{0.0, "blue"},
		{0.3, "cyan"},
		{0.5, "lime"},
		{0.7, "yellow"},
		{1.0, "red"},
	},
	Precipitation: {
		{0.0, "rgba(0, 0, 255, 0)"},
		{0.2, "rgba(0, 0, 255, 0.7)"},
		{0.4, "rgba(0, 255, 255, 0.8)"},
		{0.6, "rgba(0, 255, 0, 0.8)"},
		{0.8, "rgba(255, 255, 0, 0.8)"},
		{1.0, "rgba(255, 0, 0, 0.8)"},
	},
	Humidity: {
		{0.0, "rgba(255, 255, 0, 0.7)"},
		{0.5, "rgba(0, 255, 0, 0.8)"},
		{0.8, "rgba(0, 0, 255, 0.9)"},
		{1.0, "rgba(128, 0, 128, 1)"},
	},
	Pressure: {
		{0.0, "purple"},
		{0.3, "blue"},
		{0.5, "green"},
		{0.7, "yellow"},
		{1.0, "red"},
	},
}

// Gradient returns the stops for the named layer ordered by offset.
// Unrecognised names get the temperature table. The result is a copy.
func Gradient(typ string) []Stop {
	t, _ := ParseType(typ)
	src := gradients[t]
	out := make([]Stop, len(src))
	copy(out, src)
	return out
}

// GradientMap is the object form the map layer consumes: {"0.0": "blue", ...}.
type GradientMap []Stop

func (g GradientMap) MarshalJSON() ([]byte, error) {
	// Encode by hand to keep the stops in offset order.
	buf := []byte{'{'}
	for i, s := range g {
		if i > 0 {
			buf = append(buf, ',')
		}
		key, err := json.Marshal(strconv.FormatFloat(s.Offset, 'f', 1, 64))
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(s.Color)
		if err != nil {
			return nil, err
		}
		buf = append(buf, key...)
		buf = append(buf, ':')
		buf = append(buf, val...)
	}
	return append(buf, '}'), nil
}
