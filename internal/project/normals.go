package project

import (
	"math"

	"github.com/relightgo/rtienc/internal/basis"
	"github.com/relightgo/rtienc/internal/color"
)

// virtualLights returns the three fixed light directions normal extraction
// reconstructs brightness under: elevation pi/4, azimuths pi/6*{1,5,9}.
func virtualLights() [3]color.Vector3 {
	const elevation = math.Pi / 4
	azimuths := [3]float64{math.Pi / 6 * 1, math.Pi / 6 * 5, math.Pi / 6 * 9}
	ce := math.Cos(elevation)
	se := math.Sin(elevation)
	var out [3]color.Vector3
	for i, az := range azimuths {
		out[i] = color.Vector3{X: ce * math.Cos(az), Y: ce * math.Sin(az), Z: se}
	}
	return out
}

// extractorKind selects how Compute derives a scalar brightness per virtual
// light from a pixel's projected coefficients.
type extractorKind int

const (
	kindClosedFormRGB extractorKind = iota
	kindClosedFormLRGB
	kindDataDriven
)

// NormalExtractor reconstructs an approximate surface normal per pixel by
// evaluating three virtual-light brightnesses and solving the fixed 3x3
// system T*n = bright, where T's rows are the three virtual light
// directions themselves (so T, and its inverse, never depend on the
// fitted basis and are built once, up front, and shared read-only across
// the worker pool).
type NormalExtractor struct {
	lights [3]color.Vector3
	tinv   [3][3]float64
	kind   extractorKind

	weightFn func(color.Vector3) []float64 // closed-form only

	mb             *basis.MaterialBuilder // data-driven only
	acquiredLights []color.Vector3        // data-driven only
}

func newExtractor(kind extractorKind) *NormalExtractor {
	lights := virtualLights()
	tinv := invert3x3([3][3]float64{
		{lights[0].X, lights[0].Y, lights[0].Z},
		{lights[1].X, lights[1].Y, lights[1].Z},
		{lights[2].X, lights[2].Y, lights[2].Z},
	})
	return &NormalExtractor{lights: lights, tinv: tinv, kind: kind}
}

// NewRGBNormalExtractor builds an extractor for a closed-form RGB basis
// (PTM/HSH/SH/H with colorspace rgb). weightFn is the same per-type light
// weight function (LightWeightsPTM etc.) the basis was fit with.
func NewRGBNormalExtractor(weightFn func(color.Vector3) []float64) *NormalExtractor {
	ne := newExtractor(kindClosedFormRGB)
	ne.weightFn = weightFn
	return ne
}

// NewLRGBNormalExtractor builds an extractor for PTM's LRGB colorspace.
// The original's getNormalThreeLights has no LRGB branch in the retrieved
// source; this approximates it as the albedo sum (pri[0..2], already
// luminance-separated by ApplyLRGBTrick) modulating the same per-type
// weighted sum of the luminance-regression planes (pri[3:]) used by the
// RGB branch — a documented simplification, not a verbatim port.
func NewLRGBNormalExtractor(weightFn func(color.Vector3) []float64) *NormalExtractor {
	ne := newExtractor(kindClosedFormLRGB)
	ne.weightFn = weightFn
	return ne
}

// NewDataDrivenNormalExtractor builds an extractor for MRGB/MYCC. Since a
// PCA basis has no per-light closed-form weight function, this
// approximates brightness at a virtual light by reconstructing the full
// sample (mean + proj^T . pri) and reading off the luma of the nearest
// direction in acquiredLights, which holds the directions the basis
// columns are indexed by (acquired lights for RBF, octahedral cell
// directions for BILINEAR) — a documented simplification of the
// original's MRGB branch, which the retrieved source shows indexing a
// differently-shaped per-light weight vector this port does not carry.
func NewDataDrivenNormalExtractor(mb *basis.MaterialBuilder, acquiredLights []color.Vector3) *NormalExtractor {
	ne := newExtractor(kindDataDriven)
	ne.mb = mb
	ne.acquiredLights = acquiredLights
	return ne
}

// Compute returns a normal map encoded color.Vector3 ([0,1]^3, as written
// to normals.png) for one pixel's projected coefficients pri.
func (ne *NormalExtractor) Compute(pri []float64) color.Vector3 {
	var bright [3]float64
	switch ne.kind {
	case kindClosedFormRGB:
		for k := 0; k < 3; k++ {
			bright[k] = weightedTripletSum(ne.weightFn(ne.lights[k]), pri, 0)
		}
	case kindClosedFormLRGB:
		albedo := 0.0
		if len(pri) >= 3 {
			albedo = pri[0] + pri[1] + pri[2]
		}
		for k := 0; k < 3; k++ {
			bright[k] = albedo * weightedTripletSum(ne.weightFn(ne.lights[k]), pri, 1)
		}
	case kindDataDriven:
		full := ne.reconstruct(pri)
		for k := 0; k < 3; k++ {
			idx := nearestLight(ne.acquiredLights, ne.lights[k])
			if idx < 0 {
				continue
			}
			c := color.Color{R: full[3*idx], G: full[3*idx+1], B: full[3*idx+2]}
			bright[k] = c.Luma()
		}
	}

	n := color.Vector3{
		X: ne.tinv[0][0]*bright[0] + ne.tinv[0][1]*bright[1] + ne.tinv[0][2]*bright[2],
		Y: ne.tinv[1][0]*bright[0] + ne.tinv[1][1]*bright[1] + ne.tinv[1][2]*bright[2],
		Z: ne.tinv[2][0]*bright[0] + ne.tinv[2][1]*bright[1] + ne.tinv[2][2]*bright[2],
	}
	n = n.Normalize()
	return color.Vector3{X: (n.X + 1) / 2, Y: (n.Y + 1) / 2, Z: (n.Z + 1) / 2}
}

// weightedTripletSum sums w[j]*(pri[3j]+pri[3j+1]+pri[3j+2]) for plane
// triplets j >= fromTriplet, per rtibuilder.cpp's RGB brightness formula.
func weightedTripletSum(w, pri []float64, fromTriplet int) float64 {
	var sum float64
	for j := fromTriplet; 3*j+2 < len(pri) && j < len(w); j++ {
		sum += w[j] * (pri[3*j] + pri[3*j+1] + pri[3*j+2])
	}
	return sum
}

// reconstruct approximately inverts MaterialBuilder.Project: mean plus the
// coefficient-weighted sum of projection rows.
func (ne *NormalExtractor) reconstruct(pri []float64) []float64 {
	mb := ne.mb
	out := make([]float64, mb.D)
	copy(out, mb.Mean)
	for p := 0; p < mb.NPlanes && p < len(pri); p++ {
		row := mb.Row(p)
		coeff := pri[p]
		for d := 0; d < mb.D; d++ {
			out[d] += row[d] * coeff
		}
	}
	return out
}

func nearestLight(lights []color.Vector3, v color.Vector3) int {
	best, bestDot := -1, math.Inf(-1)
	for i, l := range lights {
		d := l.Dot(v)
		if d > bestDot {
			bestDot, best = d, i
		}
	}
	return best
}

// invert3x3 returns the inverse of m via the adjugate/determinant formula,
// or the zero matrix if m is singular (degenerate virtual lights never
// occur in practice since they're a fixed, well-spread set).
func invert3x3(m [3][3]float64) [3][3]float64 {
	det := m[0][0]*(m[1][1]*m[2][2]-m[1][2]*m[2][1]) -
		m[0][1]*(m[1][0]*m[2][2]-m[1][2]*m[2][0]) +
		m[0][2]*(m[1][0]*m[2][1]-m[1][1]*m[2][0])
	if det == 0 {
		return [3][3]float64{}
	}
	invDet := 1 / det
	var inv [3][3]float64
	inv[0][0] = (m[1][1]*m[2][2] - m[1][2]*m[2][1]) * invDet
	inv[0][1] = (m[0][2]*m[2][1] - m[0][1]*m[2][2]) * invDet
	inv[0][2] = (m[0][1]*m[1][2] - m[0][2]*m[1][1]) * invDet
	inv[1][0] = (m[1][2]*m[2][0] - m[1][0]*m[2][2]) * invDet
	inv[1][1] = (m[0][0]*m[2][2] - m[0][2]*m[2][0]) * invDet
	inv[1][2] = (m[0][2]*m[1][0] - m[0][0]*m[1][2]) * invDet
	inv[2][0] = (m[1][0]*m[2][1] - m[1][1]*m[2][0]) * invDet
	inv[2][1] = (m[0][1]*m[2][0] - m[0][0]*m[2][1]) * invDet
	inv[2][2] = (m[0][0]*m[1][1] - m[0][1]*m[1][0]) * invDet
	return inv
}
