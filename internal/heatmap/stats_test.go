package heatmap

import (
	"math"
	"testing"
)

func TestSummarize(t *testing.T) {
	s := Summarize([]Sample{{Intensity: 2}, {Intensity: 4}, {Intensity: 9}})
	if s.Min != 2 || s.Max != 9 || math.Abs(s.Mean-5) > eps {
		t.Errorf("Summarize() = %+v, want min 2 max 9 mean 5", s)
	}
	if (Summarize(nil) != Summary{}) {
		t.Error("Summarize(nil) should be zero")
	}
}

func TestNormalize(t *testing.T) {
	in := []Sample{{Lat: 1, Intensity: 1000}, {Lat: 2, Intensity: 1010}, {Lat: 3, Intensity: 1020}}
	out := Normalize(in)

	want := []float64{0, 0.5, 1}
	for i, w := range want {
		if math.Abs(out[i].Intensity-w) > eps {
			t.Errorf("out[%d].Intensity = %v, want %v", i, out[i].Intensity, w)
		}
		if out[i].Lat != in[i].Lat {
			t.Errorf("out[%d].Lat = %v, want %v", i, out[i].Lat, in[i].Lat)
		}
	}
	if in[0].Intensity != 1000 {
		t.Error("Normalize mutated its input")
	}
}

func TestNormalize_Flat(t *testing.T) {
	out := Normalize([]Sample{{Intensity: 7}, {Intensity: 7}})
	for _, s := range out {
		if s.Intensity != 0 {
			t.Errorf("flat input intensity = %v, want 0", s.Intensity)
		}
	}
}

func TestNormalize_GeneratedWithinUnitInterval(t *testing.T) {
	out := Normalize(NewGenerator(nil).Generate("humidity", DefaultBox))
	for _, s := range out {
		if s.Intensity < 0 || s.Intensity > 1+eps {
			t.Fatalf("normalized intensity %v outside [0, 1]", s.Intensity)
		}
	}
}
