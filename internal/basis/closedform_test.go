package basis

import (
	"math"
	"testing"

	"github.com/relightgo/rtienc/internal/color"
)

func sixLights() []color.Vector3 {
	return []color.Vector3{
		{X: 0, Y: 0, Z: 1},
		{X: 0.6, Y: 0, Z: 0.8},
		{X: -0.6, Y: 0, Z: 0.8},
		{X: 0, Y: 0.6, Z: 0.8},
		{X: 0, Y: -0.6, Z: 0.8},
		{X: 0.4, Y: 0.4, Z: 0.825},
	}
}

// TestPTMFitExactness covers invariant 6: on a synthetic dataset whose
// pixel values are exactly a second-order polynomial in light direction,
// the fitted PTM/RGB basis must reproduce the generating coefficients.
func TestPTMFitExactness(t *testing.T) {
	lights := sixLights()
	coeffs := [3][6]float64{
		{120, 30, -10, 5, 2, -3},
		{80, -20, 15, -4, 1, 6},
		{40, 10, 10, 2, -2, 1},
	}

	acquired := color.NewPixel(len(lights))
	for i, l := range lights {
		w := lightWeightsPTM(l)
		var c color.Color
		for t := 0; t < 6; t++ {
			c.R += w[t] * coeffs[0][t]
			c.G += w[t] * coeffs[1][t]
			c.B += w[t] * coeffs[2][t]
		}
		acquired.Slots[i] = c
	}

	mb, err := BuildPTM(lights, false)
	if err != nil {
		t.Fatalf("BuildPTM: %v", err)
	}
	if mb.NPlanes != 18 {
		t.Fatalf("NPlanes = %d, want 18", mb.NPlanes)
	}

	got := mb.Project(Flatten(acquired))
	for t := 0; t < 6; t++ {
		for c := 0; c < 3; c++ {
			want := coeffs[c][t]
			plane := 3*t + c
			if math.Abs(got[plane]-want) > 1e-6 {
				t.Errorf("plane %d = %v, want %v", plane, got[plane], want)
			}
		}
	}
}

func TestBuildPTMLRGBPlaneCount(t *testing.T) {
	mb, err := BuildPTM(sixLights(), true)
	if err != nil {
		t.Fatalf("BuildPTM lrgb: %v", err)
	}
	if mb.NPlanes != 9 {
		t.Fatalf("NPlanes = %d, want 9", mb.NPlanes)
	}
}

// thirteenLights spreads enough distinct directions to keep A^T A full
// rank for the 9-term HSH/SH bases.
func thirteenLights() []color.Vector3 {
	return []color.Vector3{
		{X: 0, Y: 0, Z: 1},
		{X: 0.6, Y: 0, Z: 0.8},
		{X: -0.6, Y: 0, Z: 0.8},
		{X: 0, Y: 0.6, Z: 0.8},
		{X: 0, Y: -0.6, Z: 0.8},
		{X: 0.4, Y: 0.4, Z: 0.825},
		{X: 0.4, Y: -0.4, Z: 0.825},
		{X: -0.4, Y: 0.4, Z: 0.825},
		{X: -0.4, Y: -0.4, Z: 0.825},
		{X: 0.8, Y: 0, Z: 0.6},
		{X: -0.8, Y: 0, Z: 0.6},
		{X: 0, Y: 0.8, Z: 0.6},
		{X: 0, Y: -0.8, Z: 0.6},
	}
}

func TestBuildHarmonicPlaneCounts(t *testing.T) {
	cases := []struct {
		name    string
		weights func(color.Vector3) []float64
		terms   int
		lights  []color.Vector3
		want    int
	}{
		{"hsh", LightWeightsHSH, 9, thirteenLights(), 27},
		{"sh", LightWeightsSH, 9, thirteenLights(), 27},
		{"h", LightWeightsH, 4, sixLights(), 12},
	}
	for _, tc := range cases {
		mb, err := BuildHarmonic(tc.lights, tc.weights, tc.terms)
		if err != nil {
			t.Fatalf("%s: %v", tc.name, err)
		}
		if mb.NPlanes != tc.want {
			t.Errorf("%s: NPlanes = %d, want %d", tc.name, mb.NPlanes, tc.want)
		}
	}
}
