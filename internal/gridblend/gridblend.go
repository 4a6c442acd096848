// Package gridblend computes the bilinear blend weights shared by every
// near-field (light3d) component: an 8x8 grid of per-cell models (resample
// maps in §4.C, material builders in §4.D) is relocalized to an arbitrary
// image-plane pixel by blending its four surrounding grid cells.
package gridblend

import "math"

// Cell is the four grid cells surrounding an image position, plus their
// bilinear blend weights (summing to 1, as required of every near-field
// blend in this package).
type Cell struct {
	X0, Y0, X1, Y1     int
	W00, W10, W01, W11 float64
}

// Locate maps pixel position (px, py) within an imgW x imgH image onto an
// size x size grid, returning the four surrounding cell indices and their
// bilinear weights. Per §4.C, cell (gx, gy) of the grid is fit at image
// position (imgW*gx/(size-1), imgH*gy/(size-1)); Locate maps pixel 0 to
// cell 0 and pixel imgW-1 (imgH-1) to cell size-1, scaling by
// (size-1)/(dim-1), so it is close to but not exactly the inverse of that
// mapping.
func Locate(px, py, imgW, imgH, size int) Cell {
	gxf := gridCoord(px, imgW, size)
	gyf := gridCoord(py, imgH, size)

	x0 := int(math.Floor(gxf))
	y0 := int(math.Floor(gyf))
	x1, y1 := x0+1, y0+1
	if x1 > size-1 {
		x1 = size - 1
	}
	if y1 > size-1 {
		y1 = size - 1
	}
	if x0 > size-1 {
		x0 = size - 1
	}
	if y0 > size-1 {
		y0 = size - 1
	}
	tx := gxf - float64(x0)
	ty := gyf - float64(y0)
	if tx < 0 {
		tx = 0
	}
	if ty < 0 {
		ty = 0
	}

	return Cell{
		X0: x0, Y0: y0, X1: x1, Y1: y1,
		W00: (1 - tx) * (1 - ty),
		W10: tx * (1 - ty),
		W01: (1 - tx) * ty,
		W11: tx * ty,
	}
}

func gridCoord(p, dim, size int) float64 {
	if dim <= 1 {
		return 0
	}
	return float64(p) / float64(dim-1) * float64(size-1)
}

// BlendFloat64 linearly combines four equal-length vectors (e.g. a
// MaterialBuilder's mean or projection row) using c's weights.
func (c Cell) BlendFloat64(v00, v10, v01, v11 []float64) []float64 {
	out := make([]float64, len(v00))
	for i := range out {
		out[i] = c.W00*v00[i] + c.W10*v10[i] + c.W01*v01[i] + c.W11*v11[i]
	}
	return out
}
