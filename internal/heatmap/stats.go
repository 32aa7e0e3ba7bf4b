package heatmap

import (
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Summary describes the intensity distribution of a sample set.
type Summary struct {
	Min  float64
	Max  float64
	Mean float64
}

func intensities(samples []Sample) []float64 {
	v := make([]float64, len(samples))
	for i, s := range samples {
		v[i] = s.Intensity
	}
	return v
}

// Summarize returns min, max and mean intensity. Empty input yields a zero Summary.
func Summarize(samples []Sample) Summary {
	if len(samples) == 0 {
		return Summary{}
	}
	v := intensities(samples)
	return Summary{
		Min:  floats.Min(v),
		Max:  floats.Max(v),
		Mean: stat.Mean(v, nil),
	}
}

// Normalize returns a copy of samples with intensities rescaled into [0, 1]
// by the observed range. A flat input maps every intensity to 0.
func Normalize(samples []Sample) []Sample {
	out := make([]Sample, len(samples))
	copy(out, samples)
	if len(out) == 0 {
		return out
	}
	v := intensities(out)
	lo, hi := floats.Min(v), floats.Max(v)
	span := hi - lo
	if span == 0 {
		for i := range out {
			out[i].Intensity = 0
		}
		return out
	}
	floats.AddConst(-lo, v)
	floats.Scale(1/span, v)
	for i := range out {
		out[i].Intensity = v[i]
	}
	return out
}
