package basis

import (
	"fmt"

	"github.com/relightgo/rtienc/internal/color"
	"gonum.org/v1/gonum/mat"
)

// lumaWeights are the BT.709-ish channel weights used by the LRGB
// luminance-coefficient planes, matching color.Color.Luma.
var lumaWeights = [3]float64{0.2125, 0.7154, 0.0721}

// pseudoInverse solves A+ = (A^T A)^-1 A^T for the K x terms sampling
// matrix built from weightsFn evaluated at each light direction, returning
// the terms x K result.
func pseudoInverse(lights []color.Vector3, weightsFn func(color.Vector3) []float64, terms int) (*mat.Dense, error) {
	k := len(lights)
	a := mat.NewDense(k, terms, nil)
	for i, l := range lights {
		row := weightsFn(l)
		a.SetRow(i, row)
	}

	var at mat.Dense
	at.CloneFrom(a.T())

	var ata mat.Dense
	ata.Mul(&at, a)

	var ataInv mat.Dense
	if err := ataInv.Inverse(&ata); err != nil {
		return nil, err
	}

	var aplus mat.Dense
	aplus.Mul(&ataInv, &at)
	return &aplus, nil
}

// BuildPTM fits the polynomial texture map basis, §4.D. lrgb selects the
// 9-plane luminance-separated layout over the 18-plane per-channel one.
func BuildPTM(lights []color.Vector3, lrgb bool) (*MaterialBuilder, error) {
	if lrgb {
		return buildLRGB(lights, lightWeightsPTM, 6)
	}
	return buildRGB(lights, lightWeightsPTM, 6)
}

// BuildHarmonic fits one of the RGB-only harmonic bases (HSH, SH, H),
// which all share PTM's placement rule with a different light-weight
// function and term count.
func BuildHarmonic(lights []color.Vector3, weightsFn func(color.Vector3) []float64, terms int) (*MaterialBuilder, error) {
	return buildRGB(lights, weightsFn, terms)
}

// buildRGB lays out a per-channel closed-form basis: nplanes = terms*3,
// plane p+c (p the term's base index, c the channel) is A+[p/3, k] placed
// at column 3k+c.
func buildRGB(lights []color.Vector3, weightsFn func(color.Vector3) []float64, terms int) (*MaterialBuilder, error) {
	k := len(lights)
	aplus, err := pseudoInverse(lights, weightsFn, terms)
	if err != nil {
		return nil, errBuild(fmt.Errorf("closed-form pseudo-inverse: %w", err))
	}

	d := 3 * k
	nplanes := terms * 3
	m := newMaterialBuilder(nplanes, d)
	for t := 0; t < terms; t++ {
		for c := 0; c < 3; c++ {
			row := m.row(3*t + c)
			for li := 0; li < k; li++ {
				row[3*li+c] = aplus.At(t, li)
			}
		}
	}
	return m, nil
}

// buildLRGB lays out PTM's luminance-separated basis: the first 3 planes
// are the unweighted per-channel average across lights, planes 3..3+terms-1
// carry luminance-weighted polynomial coefficients.
func buildLRGB(lights []color.Vector3, weightsFn func(color.Vector3) []float64, terms int) (*MaterialBuilder, error) {
	k := len(lights)
	aplus, err := pseudoInverse(lights, weightsFn, terms)
	if err != nil {
		return nil, errBuild(fmt.Errorf("closed-form pseudo-inverse: %w", err))
	}

	d := 3 * k
	nplanes := 3 + terms
	m := newMaterialBuilder(nplanes, d)

	invK := 1.0 / float64(k)
	for c := 0; c < 3; c++ {
		row := m.row(c)
		for li := 0; li < k; li++ {
			row[3*li+c] = invK
		}
	}

	for t := 0; t < terms; t++ {
		row := m.row(3 + t)
		for li := 0; li < k; li++ {
			for c := 0; c < 3; c++ {
				row[3*li+c] = lumaWeights[c] * aplus.At(t, li)
			}
		}
	}
	return m, nil
}
