package bni

import "math"

// integrate solves one pyramid level's height field from its normal map,
// warm-started from initialHeights (which may be nil for a flat z=0
// start), via iteratively-reweighted least squares: an outer loop that
// re-derives per-derivative confidence weights from the current solution
// (bilateral reweighting, sigmoid-sharpened by cfg.K), and an inner
// conjugate-gradient solve of the weighted normal equations at each step.
//
// The four one-sided derivative operators (backward-y, forward-y,
// forward-x, backward-x) are never materialized as a matrix: each row has
// exactly two nonzero entries by construction, so they're applied as
// closures over the pixel grid instead (see operator/applyA/applyAT).
func integrate(cfg Config, w, h int, normalmap, initialHeights []float64, progress ProgressFunc) ([]float64, error) {
	n := w * h
	nx := make([]float64, n)
	ny := make([]float64, n)
	nz := make([]float64, n)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			pos := x + y*w
			nx[pos] = normalmap[pos*3+1]
			ny[pos] = normalmap[pos*3+0]
			nz[pos] = -normalmap[pos*3+2]
		}
	}

	b := make([]float64, 4*n)
	copy(b[0:n], negate(nx))
	copy(b[n:2*n], negate(nx))
	copy(b[2*n:3*n], negate(ny))
	copy(b[3*n:4*n], negate(ny))

	ops := buildOperators(w, h, nz)

	z := make([]float64, n)
	if initialHeights != nil {
		copy(z, initialHeights)
	}

	weights := make([]float64, 4*n)
	for i := range weights {
		weights[i] = 0.5
	}

	energy := weightedResidualEnergy(ops, z, b, weights)
	startEnergy := energy
	if math.IsNaN(energy) {
		return nil, errIntegrate("initial residual energy is NaN")
	}

	for iter := 0; iter < cfg.MaxIterations; iter++ {
		z = conjugateGradient(ops, weights, b, z, cfg.SolverTolerance, cfg.MaxSolverIterations)

		if cfg.K == 0 {
			break
		}

		a1z := ops.apply(1, z)
		a0z := ops.apply(0, z)
		a3z := ops.apply(3, z)
		a2z := ops.apply(2, z)
		for i := 0; i < n; i++ {
			wu := sigmoid(a1z[i]*a1z[i]-a0z[i]*a0z[i], cfg.K)
			wv := sigmoid(a3z[i]*a3z[i]-a2z[i]*a2z[i], cfg.K)
			weights[i] = wu
			weights[n+i] = 1 - wu
			weights[2*n+i] = wv
			weights[3*n+i] = 1 - wv
		}

		energyOld := energy
		energy = weightedResidualEnergy(ops, z, b, weights)

		relativeEnergy := math.Abs(energy-energyOld) / energyOld
		totalProgress := math.Abs(energy-startEnergy) / startEnergy
		if progress != nil {
			denom := math.Log(totalProgress) - math.Log(cfg.Tolerance)
			frac := 0.0
			if denom != 0 {
				frac = (math.Log(relativeEnergy) - math.Log(cfg.Tolerance)) / denom
			}
			if !progress(clamp01(frac)) {
				return nil, errCancelled()
			}
		}
		if relativeEnergy < cfg.Tolerance {
			break
		}
	}

	return z, nil
}

func negate(v []float64) []float64 {
	out := make([]float64, len(v))
	for i, x := range v {
		out[i] = -x
	}
	return out
}

func sigmoid(x, k float64) float64 {
	return 1 / (1 + math.Exp(-x*k))
}

func clamp01(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// operators holds the four sparse one-sided-difference operators, each
// represented only by its (valid, self-coefficient, neighbor-offset)
// rule: applying or transpose-applying one touches only the rows/columns
// that rule produces, never an explicit matrix.
type operators struct {
	w, h int
	nz   []float64
}

func buildOperators(w, h int, nz []float64) *operators {
	return &operators{w: w, h: h, nz: nz}
}

// apply returns block k's n-length result A_k * z, per the stencils below:
//
//	0 (backward-y, valid y in [1,h)):  nz(y,x) * (z[pos-w] - z[pos])
//	1 (forward-y,  valid y in [0,h-1)): nz(y,x) * (z[pos]   - z[pos+w])
//	2 (forward-x,  valid x in [0,w-1)): nz(y,x) * (z[pos+1] - z[pos])
//	3 (backward-x, valid x in [1,w)):   nz(y,x) * (z[pos]   - z[pos-1])
//
// Rows outside a block's valid range are zero, matching the original's
// triples only being pushed for in-range positions.
func (o *operators) apply(k int, z []float64) []float64 {
	w, h := o.w, o.h
	out := make([]float64, w*h)
	switch k {
	case 0:
		for y := 1; y < h; y++ {
			for x := 0; x < w; x++ {
				pos := x + y*w
				out[pos] = o.nz[pos] * (z[pos-w] - z[pos])
			}
		}
	case 1:
		for y := 0; y < h-1; y++ {
			for x := 0; x < w; x++ {
				pos := x + y*w
				out[pos] = o.nz[pos] * (z[pos] - z[pos+w])
			}
		}
	case 2:
		for y := 0; y < h; y++ {
			for x := 0; x < w-1; x++ {
				pos := x + y*w
				out[pos] = o.nz[pos] * (z[pos+1] - z[pos])
			}
		}
	case 3:
		for y := 0; y < h; y++ {
			for x := 1; x < w; x++ {
				pos := x + y*w
				out[pos] = o.nz[pos] * (z[pos] - z[pos-1])
			}
		}
	}
	return out
}

// applyAT computes A^T * r for an arbitrary 4n-length r, by running each
// block's two-nonzero stencil in transpose: row pos's (self, neighbor)
// coefficients scatter-add into out[self]/out[neighbor].
func (o *operators) applyAT(r []float64) []float64 {
	w, h := o.w, o.h
	n := w * h
	out := make([]float64, n)

	for y := 1; y < h; y++ {
		for x := 0; x < w; x++ {
			pos := x + y*w
			v := r[pos]
			out[pos] += -o.nz[pos] * v
			out[pos-w] += o.nz[pos] * v
		}
	}
	for y := 0; y < h-1; y++ {
		for x := 0; x < w; x++ {
			pos := x + y*w
			v := r[n+pos]
			out[pos] += o.nz[pos] * v
			out[pos+w] += -o.nz[pos] * v
		}
	}
	for y := 0; y < h; y++ {
		for x := 0; x < w-1; x++ {
			pos := x + y*w
			v := r[2*n+pos]
			out[pos] += -o.nz[pos] * v
			out[pos+1] += o.nz[pos] * v
		}
	}
	for y := 0; y < h; y++ {
		for x := 1; x < w; x++ {
			pos := x + y*w
			v := r[3*n+pos]
			out[pos] += o.nz[pos] * v
			out[pos-1] += -o.nz[pos] * v
		}
	}
	return out
}

// applyWA computes A^T * (weights .* (A * z)) without materializing A.
func (o *operators) applyWA(z, weights []float64) []float64 {
	n := o.w * o.h
	stacked := make([]float64, 4*n)
	for k := 0; k < 4; k++ {
		ak := o.apply(k, z)
		for i := 0; i < n; i++ {
			stacked[k*n+i] = weights[k*n+i] * ak[i]
		}
	}
	return o.applyAT(stacked)
}

// applyATWeighted computes A^T * (weights .* r) for an arbitrary 4n-length
// r (not necessarily A*z), used to build the right-hand side A^T W b.
func (o *operators) applyATWeighted(r, weights []float64) []float64 {
	n := o.w * o.h
	weighted := make([]float64, 4*n)
	for i := range weighted {
		weighted[i] = weights[i] * r[i]
	}
	return o.applyAT(weighted)
}

// weightedResidualEnergy computes (A*z - b)^T * W * (A*z - b).
func weightedResidualEnergy(o *operators, z, b, weights []float64) float64 {
	n := o.w * o.h
	var energy float64
	for k := 0; k < 4; k++ {
		ak := o.apply(k, z)
		for i := 0; i < n; i++ {
			r := ak[i] - b[k*n+i]
			energy += weights[k*n+i] * r * r
		}
	}
	return energy
}

// conjugateGradient solves (A^T W A) z = A^T W b, warm-started from guess,
// via plain CG against the matvec mz(z) = A^T W A z (never materializing A
// or the normal-equations matrix).
func conjugateGradient(o *operators, weights, b, guess []float64, tolerance float64, maxIterations int) []float64 {
	n := o.w * o.h
	rhs := o.applyATWeighted(b, weights)

	z := make([]float64, n)
	copy(z, guess)

	mz := o.applyWA(z, weights)
	r := make([]float64, n)
	for i := range r {
		r[i] = rhs[i] - mz[i]
	}
	p := make([]float64, n)
	copy(p, r)

	rsOld := dot(r, r)
	if rsOld == 0 {
		return z
	}
	bNorm := math.Sqrt(dot(rhs, rhs))
	if bNorm == 0 {
		bNorm = 1
	}

	for iter := 0; iter < maxIterations; iter++ {
		ap := o.applyWA(p, weights)
		denom := dot(p, ap)
		if denom == 0 {
			break
		}
		alpha := rsOld / denom
		for i := range z {
			z[i] += alpha * p[i]
			r[i] -= alpha * ap[i]
		}
		rsNew := dot(r, r)
		if math.Sqrt(rsNew)/bNorm < tolerance {
			break
		}
		beta := rsNew / rsOld
		for i := range p {
			p[i] = r[i] + beta*p[i]
		}
		rsOld = rsNew
	}
	return z
}

func dot(a, b []float64) float64 {
	var s float64
	for i := range a {
		s += a[i] * b[i]
	}
	return s
}

type integrateError string

func (e integrateError) Error() string { return string(e) }

func errIntegrate(msg string) error { return integrateError("bni: " + msg) }

type cancelledError struct{}

func (cancelledError) Error() string { return "bni: cancelled" }

func errCancelled() error { return cancelledError{} }
