// Package quant derives a per-plane quantization plan from the projected
// coefficients of a fitted basis, and applies it during the streaming
// encode pass (§4.E).
package quant

import (
	"math"

	"github.com/relightgo/rtienc/internal/basis"
)

// Plane holds one plane's quantization parameters. Range is only
// meaningful for PCA (data-driven) bases.
type Plane struct {
	Min, Max, Range, Scale, Bias float64
}

// Planner tracks the running min/max of each plane's projected
// coefficients across the fit sample set.
type Planner struct {
	min, max []float64
}

// NewPlanner allocates a planner for nplanes coefficients.
func NewPlanner(nplanes int) *Planner {
	p := &Planner{
		min: make([]float64, nplanes),
		max: make([]float64, nplanes),
	}
	for i := range p.min {
		p.min[i] = math.Inf(1)
		p.max[i] = math.Inf(-1)
	}
	return p
}

// Observe folds one sample's projected coefficients into the running
// min/max.
func (p *Planner) Observe(coeffs []float64) {
	for i, v := range coeffs {
		if v < p.min[i] {
			p.min[i] = v
		}
		if v > p.max[i] {
			p.max[i] = v
		}
	}
}

// Finalize derives scale/bias for every plane per §4.E / §3's invariant:
//
//	maxspan = max_p(max_p - min_p)
//	scale   = rangecompress*(max-min) + (1-rangecompress)*maxspan
//	bias    = -min/scale
//	scale  /= 255
//
// rangecompress in [0,1] trades a shared dynamic range (0) for per-plane
// packing (1).
func (p *Planner) Finalize(rangecompress float64) []Plane {
	maxspan := 0.0
	for i := range p.min {
		span := p.max[i] - p.min[i]
		if span > maxspan {
			maxspan = span
		}
	}

	planes := make([]Plane, len(p.min))
	for i := range planes {
		span := p.max[i] - p.min[i]
		scale := rangecompress*span + (1-rangecompress)*maxspan
		if scale <= 0 {
			scale = 1e-6
		}
		bias := -p.min[i] / scale
		scale /= 255
		planes[i] = Plane{Min: p.min[i], Max: p.max[i], Scale: scale, Bias: bias}
	}
	return planes
}

// SetRanges fills in Range for every plane of a PCA-fitted basis: 127
// divided by the largest-magnitude entry of that plane's projection row,
// used by the viewer to dequantize the basis image itself.
func SetRanges(planes []Plane, mb *basis.MaterialBuilder) {
	for p := range planes {
		row := mb.Row(p)
		maxAbs := 0.0
		for _, v := range row {
			if a := math.Abs(v); a > maxAbs {
				maxAbs = a
			}
		}
		if maxAbs == 0 {
			maxAbs = 1e-9
		}
		planes[p].Range = 127 / maxAbs
	}
}

// Quantize encodes coefficient v under plane pl's scale/bias:
// clamp(round(v/scale + bias), 0, 255).
func Quantize(v float64, pl Plane) uint8 {
	q := math.Round(v/pl.Scale + pl.Bias)
	if q < 0 {
		q = 0
	} else if q > 255 {
		q = 255
	}
	return uint8(q)
}

// Dequantize inverts Quantize: (q - bias) * scale.
func Dequantize(q uint8, pl Plane) float64 {
	return (float64(q) - pl.Bias) * pl.Scale
}
