package resample

import (
	"fmt"
	"math"

	"github.com/relightgo/rtienc/internal/color"
	"github.com/relightgo/rtienc/internal/octahedral"
	"gonum.org/v1/gonum/mat"
)

// BuildBilinear constructs the refined octahedral resampling map for the
// bilinear basis, per §4.C:
//
//	B = Gaussian RBF prior (dense, R^2 x K)
//	A = bilinear sampling matrix mapping grid values to acquired lights (K x R^2)
//	M = B + (A^T A + lambda I)^-1 A^T (I - A B)
//
// M minimizes ||Ax - b||^2 + lambda||x - Bb||^2: it reproduces the
// acquired samples where the sampling matrix is well conditioned, and
// falls back to the RBF prior where lights are sparse. The result is
// sparsified to |w| > 0.05 per row before being returned.
func BuildBilinear(lights []color.Vector3, r int, sigma, lambda float64) (*Map, error) {
	k := len(lights)
	n := r * r
	if k == 0 {
		return nil, fmt.Errorf("resample: no acquired lights")
	}

	b := buildRBF(lights, r, sigma)
	bDense := rowsToDense(b.Rows, n, k)

	a := bilinearSamplingMatrix(lights, r)

	var at mat.Dense
	at.CloneFrom(a.T())

	var ata mat.Dense
	ata.Mul(&at, a)

	var ataReg mat.Dense
	ataReg.CloneFrom(&ata)
	for i := 0; i < n; i++ {
		ataReg.Set(i, i, ataReg.At(i, i)+lambda)
	}

	var atInv mat.Dense
	if err := atInv.Inverse(&ataReg); err != nil {
		return nil, fmt.Errorf("resample: refining bilinear map: %w", err)
	}

	// rhs = A^T (I - A B) = A^T - (A^T A) B.
	var atAB mat.Dense
	atAB.Mul(&ata, &bDense)

	var rhs mat.Dense
	rhs.Sub(&at, &atAB)

	var correction mat.Dense
	correction.Mul(&atInv, &rhs)

	var m mat.Dense
	m.Add(&bDense, &correction)

	result := &Map{Rows: make([]Row, n)}
	for i := 0; i < n; i++ {
		raw := make([]Entry, k)
		for j := 0; j < k; j++ {
			raw[j] = Entry{Index: j, Weight: m.At(i, j)}
		}
		result.Rows[i] = normalizeRow(raw, pruneThreshold)
	}
	return result, nil
}

// rowsToDense expands a Map's sparse rows into an n x k dense matrix.
func rowsToDense(rows []Row, n, k int) mat.Dense {
	d := mat.NewDense(n, k, nil)
	for i, row := range rows {
		for _, e := range row {
			d.Set(i, e.Index, e.Weight)
		}
	}
	return *d
}

// bilinearSamplingMatrix builds A in R^{K x R^2}: row i holds the (up to
// four) bilinear weights that reconstruct acquired light i's position on
// the octahedral map from its surrounding grid cells.
func bilinearSamplingMatrix(lights []color.Vector3, r int) *mat.Dense {
	k := len(lights)
	n := r * r
	a := mat.NewDense(k, n, nil)
	for i, l := range lights {
		fx, fy := octahedral.ToOctaF(l, r)
		x0 := int(math.Floor(fx))
		y0 := int(math.Floor(fy))
		x1, y1 := x0+1, y0+1
		if x1 > r-1 {
			x1 = r - 1
		}
		if y1 > r-1 {
			y1 = r - 1
		}
		tx := fx - float64(x0)
		ty := fy - float64(y0)

		set := func(x, y int, w float64) {
			if w == 0 {
				return
			}
			idx := y*r + x
			a.Set(i, idx, a.At(i, idx)+w)
		}
		set(x0, y0, (1-tx)*(1-ty))
		set(x1, y0, tx*(1-ty))
		set(x0, y1, (1-tx)*ty)
		set(x1, y1, tx*ty)
	}
	return a
}
