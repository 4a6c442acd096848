package quant

import (
	"math"
	"math/rand"
	"testing"
)

// TestQuantizeRoundTrip covers invariant 4: dequantize(quantize(v)) stays
// within scale/2 (plus a small epsilon) of the original coefficient, for
// every sample observed by the planner.
func TestQuantizeRoundTrip(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	const nplanes = 4
	planner := NewPlanner(nplanes)

	samples := make([][]float64, 200)
	for i := range samples {
		s := make([]float64, nplanes)
		for p := range s {
			s[p] = rng.Float64()*400 - 100
		}
		samples[i] = s
		planner.Observe(s)
	}

	planes := planner.Finalize(0)
	for _, s := range samples {
		for p, v := range s {
			q := Quantize(v, planes[p])
			dq := Dequantize(q, planes[p])
			if diff := math.Abs(dq - v); diff > planes[p].Scale/2+1e-6 {
				t.Fatalf("plane %d: |dequantize(quantize(%v)) - %v| = %v > scale/2 (%v)",
					p, v, v, diff, planes[p].Scale/2)
			}
		}
	}
	for p, pl := range planes {
		if pl.Scale <= 0 {
			t.Errorf("plane %d scale = %v, want > 0", p, pl.Scale)
		}
	}
}

func TestFinalizeConstantSamples(t *testing.T) {
	planner := NewPlanner(2)
	planner.Observe([]float64{5, 5})
	planner.Observe([]float64{5, 5})
	planes := planner.Finalize(0)
	for _, pl := range planes {
		if pl.Scale <= 0 {
			t.Errorf("scale = %v, want > 0", pl.Scale)
		}
	}
}
