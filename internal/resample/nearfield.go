package resample

import (
	"fmt"

	"github.com/relightgo/rtienc/internal/color"
	"github.com/relightgo/rtienc/internal/gridblend"
)

// GridSize is the fixed 8x8 resolution of the near-field grid of
// ResampleMaps / MaterialBuilders, per §3 ("near-field datasets own a
// small 2-D grid (default 8x8)").
const GridSize = 8

// LightAtFunc recovers the acquired light directions as seen from an
// arbitrary image-plane position; satisfied by rti.NearFieldImageSet.
type LightAtFunc func(x, y int) []color.Vector3

// Grid is an 8x8 array of ResampleMaps, one per near-field grid cell, used
// when Config.Type is BILINEAR and the acquisition is light3d.
type Grid struct {
	Maps []*Map // len == GridSize*GridSize, row-major (y*GridSize+x)
	K    int    // number of acquired lights each map's rows index into
}

// BuildGrid fits one ResampleMap per cell of an 8x8 grid, each using light
// directions relocalized to that cell's image position (§4.C).
func BuildGrid(lightAt LightAtFunc, imgW, imgH, r int, sigma, lambda float64) (*Grid, error) {
	g := &Grid{Maps: make([]*Map, GridSize*GridSize)}
	for gy := 0; gy < GridSize; gy++ {
		for gx := 0; gx < GridSize; gx++ {
			px := imgW * gx / (GridSize - 1)
			py := imgH * gy / (GridSize - 1)
			lights := lightAt(px, py)
			if g.K == 0 {
				g.K = len(lights)
			}
			m, err := BuildBilinear(lights, r, sigma, lambda)
			if err != nil {
				return nil, fmt.Errorf("resample: near-field cell (%d,%d): %w", gx, gy, err)
			}
			g.Maps[gy*GridSize+gx] = m
		}
	}
	return g, nil
}

// BlendAt returns the effective ResampleMap for a pixel at (px, py) within
// an imgW x imgH image: the bilinear blend of the four surrounding grid
// cells' maps. Each grid map shares the same K acquired lights (only their
// weights differ by position), so blending is a dense, index-aligned
// linear combination followed by the usual sparsify/renormalize.
func (g *Grid) BlendAt(px, py, imgW, imgH int) *Map {
	cell := gridblend.Locate(px, py, imgW, imgH, GridSize)
	m00 := g.Maps[cell.Y0*GridSize+cell.X0]
	m10 := g.Maps[cell.Y0*GridSize+cell.X1]
	m01 := g.Maps[cell.Y1*GridSize+cell.X0]
	m11 := g.Maps[cell.Y1*GridSize+cell.X1]

	n := len(m00.Rows)
	out := &Map{Rows: make([]Row, n)}
	dense := make([]float64, g.K)
	for i := 0; i < n; i++ {
		for j := range dense {
			dense[j] = 0
		}
		accumulate(dense, m00.Rows[i], cell.W00)
		accumulate(dense, m10.Rows[i], cell.W10)
		accumulate(dense, m01.Rows[i], cell.W01)
		accumulate(dense, m11.Rows[i], cell.W11)

		raw := make([]Entry, g.K)
		for j, w := range dense {
			raw[j] = Entry{Index: j, Weight: w}
		}
		out.Rows[i] = normalizeRow(raw, pruneThreshold)
	}
	return out
}

func accumulate(dense []float64, row Row, weight float64) {
	if weight == 0 {
		return
	}
	for _, e := range row {
		dense[e.Index] += e.Weight * weight
	}
}
