package rti

import (
	"image"
	stdcolor "image/color"
	"math"
	"testing"
)

// unitNormalImage builds a synthetic normal map encoding the constant unit
// vector (x, y, z) everywhere, as c -> (c+1)/2*255 truncated to a byte
// (internal/project.writeUnitVector rounds instead of truncating).
func unitNormalImage(width, height int, x, y, z float64) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	enc := func(v float64) uint8 {
		b := (v + 1) / 2 * 255
		if b < 0 {
			b = 0
		}
		if b > 255 {
			b = 255
		}
		return uint8(b)
	}
	r, g, b := enc(x), enc(y), enc(z)
	for py := 0; py < height; py++ {
		for px := 0; px < width; px++ {
			img.SetRGBA(px, py, stdcolor.RGBA{R: r, G: g, B: b, A: 255})
		}
	}
	return img
}

func TestIntegrateNormalsFlat(t *testing.T) {
	normalmap := unitNormalImage(40, 40, 0, 0, 1)
	cfg := NormalIntegration{MaxIterations: 3, MaxSolverIterations: 20}

	hf, err := IntegrateNormals(cfg, normalmap, nil)
	if err != nil {
		t.Fatalf("IntegrateNormals: %v", err)
	}
	if hf.Width != 40 || hf.Height != 40 {
		t.Fatalf("dims = %dx%d, want 40x40", hf.Width, hf.Height)
	}
	if len(hf.Values) != 40*40 {
		t.Fatalf("len(Values) = %d, want %d", len(hf.Values), 40*40)
	}
	// The byte 127 that encodes component 0 decodes to -1/255, so the
	// "flat" map carries a tilt of 1/255 per pixel and integrates to the
	// zero-mean plane (y-x)/255.
	for i, v := range hf.Values {
		x, y := i%hf.Width, i/hf.Width
		want := float64(y-x) / 255
		if math.Abs(v-want) > 1e-3 {
			t.Fatalf("Values[%d] = %v, want ~%v for the 8-bit flat normal map", i, v, want)
			break
		}
	}
}

func TestIntegrateNormalsScale(t *testing.T) {
	normalmap := unitNormalImage(40, 40, 0, 0, 1)
	cfg := NormalIntegration{MaxIterations: 3, MaxSolverIterations: 20, Scale: 1}

	hf, err := IntegrateNormals(cfg, normalmap, nil)
	if err != nil {
		t.Fatalf("IntegrateNormals: %v", err)
	}
	if hf.Width >= 40 || hf.Height >= 40 {
		t.Fatalf("dims = %dx%d, want a coarser-than-source level", hf.Width, hf.Height)
	}
}

func TestIntegrateNormalsCancellation(t *testing.T) {
	normalmap := unitNormalImage(40, 40, 0.3, 0.2, 0.9327)
	cfg := NormalIntegration{MaxIterations: 10, MaxSolverIterations: 50}

	calls := 0
	progress := func(frac float64) bool {
		calls++
		return false
	}
	_, err := IntegrateNormals(cfg, normalmap, progress)
	if !IsCancelled(err) {
		t.Fatalf("err = %v, want Cancelled", err)
	}
	if calls == 0 {
		t.Fatal("progress was never called")
	}
}

func TestHeightFieldToImage(t *testing.T) {
	hf := HeightField{Width: 2, Height: 2, Values: []float64{0, 1, 2, 3}}
	img := hf.ToImage()
	b := img.Bounds()
	if b.Dx() != 2 || b.Dy() != 2 {
		t.Fatalf("image bounds = %v, want 2x2", b)
	}
	min, _, _, _ := img.At(0, 0).RGBA()
	max, _, _, _ := img.At(1, 1).RGBA()
	if min>>8 != 0 {
		t.Errorf("min pixel = %d, want 0", min>>8)
	}
	if max>>8 != 255 {
		t.Errorf("max pixel = %d, want 255", max>>8)
	}
}

func TestHeightFieldToImageEmpty(t *testing.T) {
	hf := HeightField{Width: 3, Height: 3}
	img := hf.ToImage()
	if b := img.Bounds(); b.Dx() != 3 || b.Dy() != 3 {
		t.Fatalf("image bounds = %v, want 3x3", b)
	}
}
