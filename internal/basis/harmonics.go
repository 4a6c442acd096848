package basis

import "github.com/relightgo/rtienc/internal/color"

// LightWeightsPTM returns the 6 biquadratic terms (1, x, y, x^2, xy, y^2)
// of a unit light direction, the closed-form basis PTM regresses against.
// It is also used outside this package to reconstruct a PTM/LRGB pixel's
// brightness under an arbitrary (non-acquired) light direction, e.g. for
// normal extraction.
func LightWeightsPTM(l color.Vector3) []float64 {
	return []float64{1, l.X, l.Y, l.X * l.X, l.X * l.Y, l.Y * l.Y}
}

// LightWeightsSH returns the 9 real spherical-harmonic basis functions up
// to degree 2, in the usual l,m ordering, evaluated at unit direction l.
func LightWeightsSH(l color.Vector3) []float64 {
	x, y, z := l.X, l.Y, l.Z
	return []float64{
		0.282095,
		0.488603 * y,
		0.488603 * z,
		0.488603 * x,
		1.092548 * x * y,
		1.092548 * y * z,
		0.315392 * (3*z*z - 1),
		1.092548 * x * z,
		0.546274 * (x*x - y*y),
	}
}

// LightWeightsHSH returns 9 hemispherical-harmonic-style basis functions.
// Following Gautron et al.'s construction, the elevation term is remapped
// to z' = 2z-1 so it spans [-1,1] over the hemisphere the same way the SH
// polar term spans the full sphere; the remaining terms mirror PTM's
// disk-coordinate cross terms.
func LightWeightsHSH(l color.Vector3) []float64 {
	x, y := l.X, l.Y
	zp := 2*l.Z - 1
	return []float64{
		1,
		x,
		y,
		zp,
		x * y,
		x * zp,
		y * zp,
		x*x - y*y,
		zp * zp,
	}
}

// LightWeightsH returns a 4-term directional basis (bias plus the three
// direction components), the coarsest of the harmonic families.
func LightWeightsH(l color.Vector3) []float64 {
	return []float64{1, l.X, l.Y, l.Z}
}

func lightWeightsPTM(l color.Vector3) []float64 { return LightWeightsPTM(l) }
