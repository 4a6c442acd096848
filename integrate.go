package rti

import (
	"image"
	stdcolor "image/color"

	"github.com/relightgo/rtienc/internal/bni"
)

// HeightField is the output of IntegrateNormals: a single-channel height
// value per pixel, at whatever pyramid level NormalIntegration.Scale
// stopped at (Width/Height may be smaller than the source normal map's).
type HeightField struct {
	Width, Height int
	Values        []float64
}

// ToImage renders h as a grayscale image.Image, min-max normalized into
// [0, 255] so it can be handed to Outputs.WriteImage. This is purely a
// visualization convenience; a caller wanting the raw floats should read
// h.Values directly.
func (h HeightField) ToImage() image.Image {
	img := image.NewGray(image.Rect(0, 0, h.Width, h.Height))
	if len(h.Values) == 0 {
		return img
	}
	min, max := h.Values[0], h.Values[0]
	for _, v := range h.Values {
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
	}
	span := max - min
	if span == 0 {
		span = 1
	}
	for y := 0; y < h.Height; y++ {
		for x := 0; x < h.Width; x++ {
			v := h.Values[y*h.Width+x]
			g := uint8(255 * (v - min) / span)
			img.SetGray(x, y, stdcolor.Gray{Y: g})
		}
	}
	return img
}

// NormalIntegration tunes IntegrateNormals, mirroring internal/bni.Config's
// tunables one-for-one.
type NormalIntegration struct {
	// K is the sigmoid steepness of the bilateral reweighting; 0 selects
	// the default steepness 2. Reweighting is always applied: there is no
	// setting that turns it off.
	K float64
	// Tolerance is the relative-energy stop threshold for the IRLS outer
	// loop.
	Tolerance float64
	// SolverTolerance is the conjugate-gradient residual stop threshold
	// for the inner solve.
	SolverTolerance float64
	// MaxIterations bounds the IRLS outer loop.
	MaxIterations int
	// MaxSolverIterations bounds the conjugate-gradient inner loop, per
	// IRLS iteration.
	MaxSolverIterations int
	// Scale is the pyramid level to stop refining at; 0 reaches the
	// source normal map's full resolution.
	Scale int
}

// IntegrateNormals reconstructs a height field from a normal map (as
// produced by Config.SaveNormals / the "normals.png" output of Build), via
// §4.H's bilateral, coarse-to-fine height-from-normals solve. It is a
// standalone auxiliary post-process: Build never calls this itself, and
// IntegrateNormals never touches an ImageSet or Outputs -- a caller that
// wants a height map runs Build first, decodes the normals.png it wrote,
// and feeds it here.
//
// normalmap's pixels are expected to encode a unit vector the same way
// Build's own normals.png does: channel value c represents component
// c/255*2-1 of (X, Y, Z).
func IntegrateNormals(cfg NormalIntegration, normalmap image.Image, progress ProgressFunc) (HeightField, error) {
	b := normalmap.Bounds()
	w, h := b.Dx(), b.Dy()
	flat := make([]float64, w*h*3)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			r, g, bl, _ := normalmap.At(b.Min.X+x, b.Min.Y+y).RGBA()
			pos := (y*w + x) * 3
			flat[pos] = float64(r>>8)/255*2 - 1
			flat[pos+1] = float64(g>>8)/255*2 - 1
			flat[pos+2] = float64(bl>>8)/255*2 - 1
		}
	}

	bcfg := bni.Config{
		K:                   cfg.K,
		Tolerance:           cfg.Tolerance,
		SolverTolerance:     cfg.SolverTolerance,
		MaxIterations:       cfg.MaxIterations,
		MaxSolverIterations: cfg.MaxSolverIterations,
		Scale:               cfg.Scale,
	}
	var bniProgress bni.ProgressFunc
	if progress != nil {
		bniProgress = func(frac float64) bool { return progress(frac) }
	}

	outW, outH, heights, err := bni.Pyramid(bcfg, w, h, flat, bniProgress)
	if err != nil {
		if err.Error() == "bni: cancelled" {
			return HeightField{}, newError(Cancelled, "normal integration cancelled")
		}
		return HeightField{}, wrapError(SolverFailure, err, "integrate normals")
	}
	return HeightField{Width: outW, Height: outH, Values: heights}, nil
}
