package basis

import (
	"math"
	"math/rand"
	"testing"

	"github.com/relightgo/rtienc/internal/color"
)

func randomSamples(n, ndim int, seed int64) []color.Pixel {
	rng := rand.New(rand.NewSource(seed))
	samples := make([]color.Pixel, n)
	for i := range samples {
		p := color.NewPixel(ndim)
		for k := range p.Slots {
			p.Slots[k] = color.Color{
				R: rng.Float64() * 255,
				G: rng.Float64() * 255,
				B: rng.Float64() * 255,
			}
		}
		samples[i] = p
	}
	return samples
}

// TestBuildMRGBRowNorms covers invariant 3: every PCA projection row has
// unit L2 norm.
func TestBuildMRGBRowNorms(t *testing.T) {
	samples := randomSamples(80, 6, 1)
	mb, err := BuildMRGB(samples, 9)
	if err != nil {
		t.Fatalf("BuildMRGB: %v", err)
	}
	if mb.NPlanes != 9 {
		t.Fatalf("NPlanes = %d, want 9", mb.NPlanes)
	}
	for p := 0; p < mb.NPlanes; p++ {
		row := mb.row(p)
		var sum float64
		for _, v := range row {
			sum += v * v
		}
		norm := math.Sqrt(sum)
		if math.Abs(norm-1) > 1e-4 {
			t.Errorf("row %d norm = %v, want 1", p, norm)
		}
	}
	for _, v := range mb.Mean {
		if v < 0 || v > 255 {
			t.Errorf("mean value %v out of [0,255]", v)
		}
	}
}

func TestBuildMYCCRowNorms(t *testing.T) {
	samples := randomSamples(80, 6, 2)
	mb, err := BuildMYCC(samples, [3]int{4, 2, 2}, false)
	if err != nil {
		t.Fatalf("BuildMYCC: %v", err)
	}
	if mb.NPlanes != 8 {
		t.Fatalf("NPlanes = %d, want 8", mb.NPlanes)
	}
	for p := 0; p < mb.NPlanes; p++ {
		row := mb.row(p)
		var sum float64
		for _, v := range row {
			sum += v * v
		}
		norm := math.Sqrt(sum)
		if math.Abs(norm-1) > 1e-4 {
			t.Errorf("row %d norm = %v, want 1", p, norm)
		}
	}
}
