// Package materials renders the materials.png basis-image strip: a visual
// dump of a fitted MaterialBuilder's mean and eigenvector planes, one tile
// per plane plus the mean, laid out left to right.
package materials

import (
	"image"
	stdcolor "image/color"

	"github.com/relightgo/rtienc/internal/basis"
	"github.com/relightgo/rtienc/internal/color"
	"github.com/relightgo/rtienc/internal/octahedral"
	"github.com/relightgo/rtienc/internal/quant"
)

// RBFTileSize is the fixed tile resolution used for the RBF basis's
// sparse, per-acquired-light rendering (independent of Config.Resolution,
// which only governs the dense bilinear grid).
const RBFTileSize = 32

// BuildBilinear renders the dense materials.png strip for a bilinear-basis
// MaterialBuilder, whose Mean/Proj are indexed by octahedral grid cell (one
// value per resampled dimension, resolution*resolution of them): tile 0 is
// the mean, reshaped directly into an RxR image; tile p+1 is eigenvector p,
// remapped through its plane's quantization range into [0,255].
func BuildBilinear(mb *basis.MaterialBuilder, planes []quant.Plane, resolution int) image.Image {
	tiles := mb.NPlanes + 1
	img := image.NewRGBA(image.Rect(0, 0, tiles*resolution, resolution))
	drawDenseTile(img, 0, mb.Mean, nil, resolution)
	for p := 0; p < mb.NPlanes; p++ {
		drawDenseTile(img, (p+1)*resolution, mb.Row(p), &planes[p], resolution)
	}
	return img
}

// BuildRBF renders the sparse materials.png strip for an RBF-basis
// MaterialBuilder, whose Mean/Proj are indexed by acquired light (one value
// per light, not per grid cell): each light's value is scattered onto a
// fixed RBFTileSize x RBFTileSize canvas at its own octahedral position,
// leaving the rest of the tile at the zero value (transparent black).
func BuildRBF(mb *basis.MaterialBuilder, planes []quant.Plane, lights []color.Vector3) image.Image {
	tiles := mb.NPlanes + 1
	img := image.NewRGBA(image.Rect(0, 0, tiles*RBFTileSize, RBFTileSize))
	drawSparseTile(img, 0, mb.Mean, lights, nil)
	for p := 0; p < mb.NPlanes; p++ {
		drawSparseTile(img, (p+1)*RBFTileSize, mb.Row(p), lights, &planes[p])
	}
	return img
}

// drawDenseTile fills an r x r tile at xOffset, one pixel per octahedral
// cell of values (a mean vector when plane is nil, an eigenvector row
// remapped via plane's range otherwise).
func drawDenseTile(img *image.RGBA, xOffset int, values []float64, plane *quant.Plane, r int) {
	for y := 0; y < r; y++ {
		for x := 0; x < r; x++ {
			cell := y*r + x
			img.Set(xOffset+x, y, toRGBA(tileColor(values, cell, plane)))
		}
	}
}

// drawSparseTile scatters one pixel per acquired light onto an
// RBFTileSize x RBFTileSize tile at xOffset, positioned via toOcta.
func drawSparseTile(img *image.RGBA, xOffset int, values []float64, lights []color.Vector3, plane *quant.Plane) {
	for k, l := range lights {
		x, y := octahedral.ToOcta(l, RBFTileSize)
		img.Set(xOffset+x, y, toRGBA(tileColor(values, k, plane)))
	}
}

// tileColor reads triplet index i out of values, remapping through plane's
// quantization range (127 + range*v) when plane is non-nil (eigenvector
// tiles) or using the raw RGB value directly (mean tiles, plane == nil).
func tileColor(values []float64, i int, plane *quant.Plane) color.Color {
	r, g, b := values[3*i], values[3*i+1], values[3*i+2]
	if plane != nil {
		r = 127 + plane.Range*r
		g = 127 + plane.Range*g
		b = 127 + plane.Range*b
	}
	return color.Color{R: r, G: g, B: b}.Clamp255()
}

func toRGBA(c color.Color) stdcolor.RGBA {
	return stdcolor.RGBA{R: uint8(c.R), G: uint8(c.G), B: uint8(c.B), A: 255}
}
