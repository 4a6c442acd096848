package resample

import (
	"math"

	"github.com/relightgo/rtienc/internal/color"
)

// rbfPruneFraction is the fraction-of-total-weight pruning threshold
// applied to the raw RBF weights before the least-squares refinement (not
// to be confused with the final pruneThreshold applied to the finished map).
const rbfPruneFraction = 0.005

// buildRBF computes, for every cell of an R x R octahedral map, Gaussian
// RBF weights over the K acquired lights: w_i = exp(-||n_c - l_i||^2 / sigma^2).
// Weights are normalized, pruned to those > rbfPruneFraction of the total,
// and renormalized -- see §4.C.
func buildRBF(lights []color.Vector3, r int, sigma float64) *Map {
	if sigma == 0 {
		sigma = 0.5
	}
	sigma2 := sigma * sigma
	dirs := cellDirections(r)
	rows := make([]Row, len(dirs))
	for ci, n := range dirs {
		raw := make([]Entry, len(lights))
		for i, l := range lights {
			d := n.Sub(l)
			dist2 := d.Dot(d)
			raw[i] = Entry{Index: i, Weight: math.Exp(-dist2 / sigma2)}
		}
		rows[ci] = normalizeRow(raw, rbfPruneFraction)
	}
	return &Map{Rows: rows}
}
