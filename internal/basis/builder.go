// Package basis fits the per-pixel reflectance model: the closed-form
// polynomial/harmonic bases (PTM, HSH, SH, H) and the data-driven PCA bases
// (MRGB, MYCC), plus the near-field grid wrapper shared by both families.
package basis

import (
	"fmt"
	"math"

	"github.com/relightgo/rtienc/internal/color"
)

// MaterialBuilder is a fitted basis: a mean vector and a row-major
// projection matrix, both of width D = ndimensions*3. Project subtracts
// Mean before applying Proj, so closed-form bases (which have no centering
// step) simply carry a zero Mean.
type MaterialBuilder struct {
	NPlanes int
	D       int
	Mean    []float64
	Proj    []float64 // NPlanes*D, row-major
}

// newMaterialBuilder allocates a zeroed builder of the given shape.
func newMaterialBuilder(nplanes, d int) *MaterialBuilder {
	return &MaterialBuilder{
		NPlanes: nplanes,
		D:       d,
		Mean:    make([]float64, d),
		Proj:    make([]float64, nplanes*d),
	}
}

// row returns the nplanes-index p's projection row as a slice view.
func (m *MaterialBuilder) row(p int) []float64 {
	return m.Proj[p*m.D : (p+1)*m.D]
}

// Row returns plane p's projection row, used by the quantization planner
// to derive each PCA plane's eigenvector range.
func (m *MaterialBuilder) Row(p int) []float64 {
	return m.row(p)
}

// Flatten packs a resampled Pixel's slots into the D-length vector Project
// expects: slot k's channel c lands at index 3k+c.
func Flatten(p color.Pixel) []float64 {
	out := make([]float64, len(p.Slots)*3)
	for k, c := range p.Slots {
		out[3*k] = c.R
		out[3*k+1] = c.G
		out[3*k+2] = c.B
	}
	return out
}

// Project computes the nplanes principal coefficients of sample (a
// flattened D-length vector, see Flatten).
func (m *MaterialBuilder) Project(sample []float64) []float64 {
	out := make([]float64, m.NPlanes)
	for p := 0; p < m.NPlanes; p++ {
		row := m.row(p)
		var sum float64
		for d := 0; d < m.D; d++ {
			sum += row[d] * (sample[d] - m.Mean[d])
		}
		out[p] = sum
	}
	return out
}

// l2NormalizeRows normalizes every row of m.Proj to unit L2 norm in place,
// as required of the PCA bases (§3: "for data-driven bases the rows of
// proj are L2-normalized").
func (m *MaterialBuilder) l2NormalizeRows() {
	for p := 0; p < m.NPlanes; p++ {
		row := m.row(p)
		var sum float64
		for _, v := range row {
			sum += v * v
		}
		norm := math.Sqrt(sum)
		if norm == 0 {
			continue
		}
		for i := range row {
			row[i] /= norm
		}
	}
}

// clampMean clamps m.Mean to [0, 255] in place, as required of the PCA
// bases' mean color.
func (m *MaterialBuilder) clampMean() {
	for i, v := range m.Mean {
		if v < 0 {
			m.Mean[i] = 0
		} else if v > 255 {
			m.Mean[i] = 255
		}
	}
}

// errBuild wraps any internal linear-algebra failure with the single
// user-visible message the format specifies: "could not create a base".
func errBuild(cause error) error {
	return fmt.Errorf("basis: could not create a base: %w", cause)
}
