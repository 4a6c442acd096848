// Package octahedral implements the bijective, area-preserving unfolding of
// the unit sphere onto an R x R square grid used to parameterize light and
// normal directions for the bilinear and RBF bases.
package octahedral

import (
	"math"

	"github.com/relightgo/rtienc/internal/color"
)

// ToOcta maps a unit direction d to integer grid coordinates on an R x R
// octahedral map, clamped to [0, R-1].
func ToOcta(d color.Vector3, r int) (x, y int) {
	s := math.Abs(d.X) + math.Abs(d.Y) + math.Abs(d.Z)
	if s == 0 {
		s = 1
	}
	u := (d.X + d.Y) / s
	v := (d.Y - d.X) / s
	fx := (u + 1) / 2 * float64(r-1)
	fy := (v + 1) / 2 * float64(r-1)
	return clampInt(round(fx), 0, r-1), clampInt(round(fy), 0, r-1)
}

// ToOctaF is ToOcta without rounding to grid cells, returning the continuous
// [0, R-1] coordinates. Used when a sub-cell position is needed (e.g. the
// bilinear sampling matrix of the resampling-map refinement).
func ToOctaF(d color.Vector3, r int) (x, y float64) {
	s := math.Abs(d.X) + math.Abs(d.Y) + math.Abs(d.Z)
	if s == 0 {
		s = 1
	}
	u := (d.X + d.Y) / s
	v := (d.Y - d.X) / s
	fx := (u + 1) / 2 * float64(r-1)
	fy := (v + 1) / 2 * float64(r-1)
	return clampF(fx, 0, float64(r-1)), clampF(fy, 0, float64(r-1))
}

// FromOcta inverts ToOcta: given integer grid coordinates on an R x R
// octahedral map, returns the corresponding unit direction.
func FromOcta(x, y, r int) color.Vector3 {
	return FromOctaF(float64(x), float64(y), r)
}

// FromOctaF is FromOcta taking continuous grid coordinates, used when
// bilinearly blending between grid cells.
func FromOctaF(x, y float64, r int) color.Vector3 {
	oX := 2*x/float64(r-1) - 1
	oY := 2*y/float64(r-1) - 1
	xx := (oX - oY) / 2
	yy := (oX + oY) / 2
	zz := 1 - math.Abs(xx) - math.Abs(yy)
	if zz < 0 {
		zz = 0
	}
	return color.Vector3{X: xx, Y: yy, Z: zz}.Normalize()
}

func round(f float64) int {
	return int(math.Floor(f + 0.5))
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clampF(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
