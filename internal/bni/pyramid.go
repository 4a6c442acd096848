// Package bni implements bilateral normal integration: recovering a height
// field from a per-pixel normal map via iteratively-reweighted least
// squares over four one-sided finite-difference operators, solved with a
// coarse-to-fine image pyramid for a fast, stable initial guess.
package bni

import "math"

// ProgressFunc mirrors the root package's callback shape (fraction in
// [0,1], false cancels) without importing it, since internal packages
// never import the root package.
type ProgressFunc func(fraction float64) bool

// Config tunes the integrator. Zero-valued fields are replaced by
// withDefaults with the values the original implementation shipped with.
type Config struct {
	K                   float64 // sigmoid steepness; 0 selects the default 2, so reweighting cannot be switched off here
	Tolerance           float64 // relative-energy stop threshold
	SolverTolerance     float64 // CG residual stop threshold
	MaxIterations       int     // IRLS outer-loop cap
	MaxSolverIterations int     // CG inner-loop cap per IRLS iteration
	Scale               int     // pyramid level to stop at; 0 reaches full resolution
}

func (c Config) withDefaults() Config {
	if c.K == 0 {
		c.K = 2
	}
	if c.Tolerance == 0 {
		c.Tolerance = 1e-4
	}
	if c.SolverTolerance == 0 {
		c.SolverTolerance = 1e-6
	}
	if c.MaxIterations == 0 {
		c.MaxIterations = 50
	}
	if c.MaxSolverIterations == 0 {
		c.MaxSolverIterations = 500
	}
	return c
}

// minPyramidSize bounds halving: a level is halved only while both of its
// sides exceed it, so the coarsest level can end up smaller (40 -> 20).
const minPyramidSize = 32

// level is one pyramid entry: a normal map at some resolution, and the
// height field solved (or pulled up as a warm start) at that resolution.
type level struct {
	w, h    int
	normals []float64 // w*h*3, channel order matches the input normal map
	heights []float64 // w*h
}

// halve returns a half-resolution level: each output normal is the
// (renormalized) average of its four finer-level source normals.
func (l *level) halve() *level {
	out := &level{w: l.w / 2, h: l.h / 2}
	out.normals = make([]float64, out.w*out.h*3)
	for y := 0; y < out.h; y++ {
		for x := 0; x < out.w; x++ {
			p := 3 * (x + y*out.w)
			for k := 0; k < 3; k++ {
				a := l.normals[k+3*((2*x)+(2*y)*l.w)]
				b := l.normals[k+3*((2*x+1)+(2*y)*l.w)]
				c := l.normals[k+3*((2*x)+(2*y+1)*l.w)]
				d := l.normals[k+3*((2*x+1)+(2*y+1)*l.w)]
				out.normals[p+k] = (a + b + c + d) / 4
			}
			nx, ny, nz := out.normals[p], out.normals[p+1], out.normals[p+2]
			length := math.Sqrt(nx*nx + ny*ny + nz*nz)
			if length > 0 {
				out.normals[p] /= length
				out.normals[p+1] /= length
				out.normals[p+2] /= length
			}
		}
	}
	return out
}

// pull upsamples small's solved heights into l's resolution via bilinear
// interpolation, seeding l's heights as the next IRLS solve's warm start.
func (l *level) pull(small *level) {
	l.heights = make([]float64, l.w*l.h)
	bilinearResize(small.heights, small.w, small.h, l.w, l.h, l.heights)
}

// bilinearResize resamples src (inW x inH) into dst (outW x outH),
// matching bilinear_interpolation's edge handling (ratio 0 when the output
// axis is a single sample).
func bilinearResize(src []float64, inW, inH, outW, outH int, dst []float64) {
	var xRatio, yRatio float64
	if outW > 1 {
		xRatio = float64(inW-1) / float64(outW-1)
	}
	if outH > 1 {
		yRatio = float64(inH-1) / float64(outH-1)
	}
	for i := 0; i < outH; i++ {
		for j := 0; j < outW; j++ {
			xl := math.Floor(xRatio * float64(j))
			yl := math.Floor(yRatio * float64(i))
			xh := math.Ceil(xRatio * float64(j))
			yh := math.Ceil(yRatio * float64(i))
			xw := xRatio*float64(j) - xl
			yw := yRatio*float64(i) - yl

			a := src[int(yl)*inW+int(xl)]
			b := src[int(yl)*inW+int(xh)]
			c := src[int(yh)*inW+int(xl)]
			d := src[int(yh)*inW+int(xh)]

			dst[i*outW+j] = a*(1-xw)*(1-yw) + b*xw*(1-yw) + c*yw*(1-xw) + d*xw*yw
		}
	}
}

// Pyramid runs the full coarse-to-fine integration: halve normals while
// both axes exceed minPyramidSize, solve the coarsest level from a
// flat z=0 guess, then refine each finer level in turn using the coarser
// level's solution, bilinearly upsampled, as its warm start. It returns
// the height field (and resolution) at cfg.Scale, where 0 is the original
// resolution.
func Pyramid(cfg Config, w, h int, normals []float64, progress ProgressFunc) (outW, outH int, heights []float64, err error) {
	cfg = cfg.withDefaults()

	var levels []*level
	top := &level{w: w, h: h, normals: normals}
	levels = append(levels, top)
	for levels[len(levels)-1].w > minPyramidSize && levels[len(levels)-1].h > minPyramidSize {
		levels = append(levels, levels[len(levels)-1].halve())
	}
	coarsest := levels[len(levels)-1]
	coarsest.heights = make([]float64, coarsest.w*coarsest.h)

	nlevels := len(levels)
	for i := nlevels - 1; i >= cfg.Scale; i-- {
		lv := levels[i]
		if i+1 < nlevels {
			lv.pull(levels[i+1])
		}
		lvProgress := levelProgress(progress, i, cfg.Scale, nlevels)
		heights, err := integrate(cfg, lv.w, lv.h, lv.normals, lv.heights, lvProgress)
		if err != nil {
			return 0, 0, nil, err
		}
		lv.heights = heights
	}

	result := levels[cfg.Scale]
	return result.w, result.h, result.heights, nil
}

// levelProgress scales a per-iteration progress callback into the overall
// [0,1] pyramid fraction, so the caller sees monotonic progress across
// every level rather than it resetting to 0 each time.
func levelProgress(progress ProgressFunc, level, scale, nlevels int) ProgressFunc {
	if progress == nil {
		return nil
	}
	total := nlevels - scale
	done := (nlevels - 1) - level
	return func(frac float64) bool {
		overall := (float64(done) + frac) / float64(total)
		return progress(overall)
	}
}
