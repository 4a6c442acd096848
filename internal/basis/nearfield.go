package basis

import (
	"fmt"

	"github.com/relightgo/rtienc/internal/color"
	"github.com/relightgo/rtienc/internal/gridblend"
)

// GridSize is the near-field grid resolution shared with internal/resample.
const GridSize = 8

// LightAtFunc recovers the acquired light directions as seen from an
// arbitrary image-plane position.
type LightAtFunc func(x, y int) []color.Vector3

// FitFunc fits one closed-form MaterialBuilder from a set of relocalized
// light directions (a BuildPTM/BuildHarmonic closure).
type FitFunc func(lights []color.Vector3) (*MaterialBuilder, error)

// Grid is an 8x8 array of closed-form MaterialBuilders, one per near-field
// grid cell (§4.D: "near-field for non-PCA bases").
type Grid struct {
	Builders []*MaterialBuilder // len == GridSize*GridSize, row-major
}

// BuildGrid fits one closed-form builder per cell of an 8x8 grid, each
// using light directions relocalized to that cell's image position.
func BuildGrid(lightAt LightAtFunc, imgW, imgH int, fit FitFunc) (*Grid, error) {
	g := &Grid{Builders: make([]*MaterialBuilder, GridSize*GridSize)}
	for gy := 0; gy < GridSize; gy++ {
		for gx := 0; gx < GridSize; gx++ {
			px := imgW * gx / (GridSize - 1)
			py := imgH * gy / (GridSize - 1)
			mb, err := fit(lightAt(px, py))
			if err != nil {
				return nil, fmt.Errorf("basis: near-field cell (%d,%d): %w", gx, gy, err)
			}
			g.Builders[gy*GridSize+gx] = mb
		}
	}
	return g, nil
}

// BlendAt returns the effective MaterialBuilder for a pixel at (px, py)
// within an imgW x imgH image: the bilinear blend of the four surrounding
// grid cells' mean and projection matrices. Every cell shares the same
// (NPlanes, D) shape, since they differ only in relocalized light
// direction, not in light count.
func (g *Grid) BlendAt(px, py, imgW, imgH int) *MaterialBuilder {
	cell := gridblend.Locate(px, py, imgW, imgH, GridSize)
	b00 := g.Builders[cell.Y0*GridSize+cell.X0]
	b10 := g.Builders[cell.Y0*GridSize+cell.X1]
	b01 := g.Builders[cell.Y1*GridSize+cell.X0]
	b11 := g.Builders[cell.Y1*GridSize+cell.X1]

	out := newMaterialBuilder(b00.NPlanes, b00.D)
	out.Mean = cell.BlendFloat64(b00.Mean, b10.Mean, b01.Mean, b11.Mean)
	out.Proj = cell.BlendFloat64(b00.Proj, b10.Proj, b01.Proj, b11.Proj)
	return out
}
