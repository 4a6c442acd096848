// Package project implements the per-pixel projection engine (§4.F): for
// each pixel it resamples the acquired light domain (when required),
// applies the configured colorspace transform, projects onto the fitted
// basis, quantizes the result, and packs it into per-plane-triplet row
// buffers ready for a JPEG sink. It also implements the two optional
// auxiliary extractions (three-light normals, mean/median reduction).
package project

import (
	"math"

	"github.com/relightgo/rtienc/internal/basis"
	"github.com/relightgo/rtienc/internal/color"
	"github.com/relightgo/rtienc/internal/pool"
	"github.com/relightgo/rtienc/internal/quant"
	"github.com/relightgo/rtienc/internal/resample"
)

// Resampler maps an acquired pixel to a resampled one. imgX/imgY are the
// pre-crop image-plane position, consulted only by the near-field variant.
type Resampler interface {
	Apply(acquired color.Pixel, imgX, imgY int) color.Pixel
}

type identityResampler struct{}

func (identityResampler) Apply(p color.Pixel, _, _ int) color.Pixel { return p }

// IdentityResampler is used by PTM/HSH/SH/H/RBF, which never reproject the
// light domain onto a different dimensionality (only BILINEAR does).
func IdentityResampler() Resampler { return identityResampler{} }

type globalResampler struct{ m *resample.Map }

func (g globalResampler) Apply(p color.Pixel, _, _ int) color.Pixel { return g.m.Apply(p) }

// GlobalResampler wraps a single, position-independent ResampleMap.
func GlobalResampler(m *resample.Map) Resampler { return globalResampler{m} }

type nearFieldResampler struct {
	grid       *resample.Grid
	imgW, imgH int
}

func (n nearFieldResampler) Apply(p color.Pixel, x, y int) color.Pixel {
	return n.grid.BlendAt(x, y, n.imgW, n.imgH).Apply(p)
}

// NearFieldResampler wraps an 8x8 grid of ResampleMaps, blended bilinearly
// per-pixel by image position (§4.C's near-field case).
func NearFieldResampler(grid *resample.Grid, imgW, imgH int) Resampler {
	return nearFieldResampler{grid: grid, imgW: imgW, imgH: imgH}
}

// Model maps a flattened sample to projected coefficients. imgX/imgY are
// consulted only by the near-field closed-form variant.
type Model interface {
	Project(sample []float64, imgX, imgY int) []float64
}

type globalModel struct{ mb *basis.MaterialBuilder }

func (g globalModel) Project(s []float64, _, _ int) []float64 { return g.mb.Project(s) }

// GlobalModel wraps a single, position-independent MaterialBuilder.
func GlobalModel(mb *basis.MaterialBuilder) Model { return globalModel{mb: mb} }

type nearFieldModel struct {
	grid       *basis.Grid
	imgW, imgH int
}

func (n nearFieldModel) Project(s []float64, x, y int) []float64 {
	return n.grid.BlendAt(x, y, n.imgW, n.imgH).Project(s)
}

// NearFieldModel wraps an 8x8 grid of closed-form MaterialBuilders,
// blended bilinearly per-pixel (§4.D's "near-field for non-PCA bases").
func NearFieldModel(grid *basis.Grid, imgW, imgH int) Model {
	return nearFieldModel{grid: grid, imgW: imgW, imgH: imgH}
}

// Projector holds everything a row of pixels needs projected, quantized
// and packed: the fitted model (§4.D), its quantization plan (§4.E), and
// the handful of colorspace/layout flags that change how §4.F's five steps
// apply. All fields are read-only once built and safe to share across the
// worker pool pass 2 spawns.
type Projector struct {
	Resampler Resampler
	Model     Model
	Planes    []quant.Plane

	MYCC     bool // color-convert each resampled slot to YCbCr
	GammaFix bool // apply the sqrt gamma-fix curve after color conversion
	LRGB     bool // use the luminance-separated quantization/packing rule

	Normals *NormalExtractor // nil unless SaveNormals
}

// RowBuffers holds one row's packed output: one byte slice per coefficient
// triplet (plane_0.jpg, plane_1.jpg, ...), plus the optional auxiliary rows.
type RowBuffers struct {
	Planes  [][]byte
	Normals []byte
	Means   []byte
	Medians []byte
}

// NewRowBuffers allocates a RowBuffers for a row of width pixels and
// nplanes coefficients (ceil(nplanes/3) plane-triplet buffers).
func NewRowBuffers(width, nplanes int, wantNormals, wantMeans, wantMedians bool) *RowBuffers {
	ntriplets := (nplanes + 2) / 3
	planes := make([][]byte, ntriplets)
	for i := range planes {
		planes[i] = make([]byte, width*3)
	}
	rb := &RowBuffers{Planes: planes}
	if wantNormals {
		rb.Normals = make([]byte, width*3)
	}
	if wantMeans {
		rb.Means = make([]byte, width*3)
	}
	if wantMedians {
		rb.Medians = make([]byte, width*3)
	}
	return rb
}

// ProcessRow runs the §4.F pipeline over one row of acquired pixels.
// cropX/imgY are the pre-crop image-plane coordinates of the row's first
// pixel / the row itself, used only by the near-field resampler/model.
func (pr *Projector) ProcessRow(acquired color.PixelArray, cropX, imgY int, out *RowBuffers) {
	pri := pool.GetFloat64(len(pr.Planes))
	defer pool.PutFloat64(pri)
	for i, px := range acquired.Pixels {
		imgX := cropX + i

		resampled := pr.Resampler.Apply(px, imgX, imgY)
		transformed := pr.colorTransform(resampled)
		sample := basis.Flatten(transformed)

		projected := pr.Model.Project(sample, imgX, imgY)
		copy(pri, projected)

		if pr.LRGB {
			ApplyLRGBTrick(transformed, pri)
		}

		pr.pack(pri, i, out)

		if out.Normals != nil {
			n := pr.Normals.Compute(pri)
			writeUnitVector(out.Normals, i, n)
		}
		if out.Means != nil {
			writeColor(out.Means, i, MeanColor(px))
		}
		if out.Medians != nil {
			writeColor(out.Medians, i, MedianColor(px))
		}
	}
}

// colorTransform applies the MYCC conversion and/or gamma fix to every
// slot of a resampled pixel, per §4.F step 2. Both are no-ops (identity)
// when disabled, so this never allocates more than the one pass needs.
func (pr *Projector) colorTransform(p color.Pixel) color.Pixel {
	if !pr.MYCC && !pr.GammaFix {
		return p
	}
	out := p.Clone()
	for i, c := range out.Slots {
		if pr.MYCC {
			c = color.RGBToYCbCr(c)
		}
		if pr.GammaFix {
			c = color.GammaFix(c)
		}
		out.Slots[i] = c
	}
	return out
}

// pack quantizes pri and writes it into column x of out's plane-triplet
// buffers, per §4.F step 5: triplet j = p/3, channel c = p%3. LRGB's first
// three planes are stored directly (already an RGB albedo in [0,255]); all
// others are quantized per their plane's scale/bias.
func (pr *Projector) pack(pri []float64, x int, out *RowBuffers) {
	for p, v := range pri {
		j, c := p/3, p%3
		var b byte
		if pr.LRGB && p < 3 {
			b = clampByte(v)
		} else {
			b = quant.Quantize(v, pr.Planes[p])
		}
		out.Planes[j][3*x+c] = b
	}
}

func clampByte(v float64) byte {
	r := math.Round(v)
	if r < 0 {
		return 0
	}
	if r > 255 {
		return 255
	}
	return byte(r)
}

// ApplyLRGBTrick implements §4.F's "LRGB luminance trick": an
// albedo-like RGB is recomputed directly from the resampled/transformed
// slots (replacing pri[0..2], which the linear projection already set to
// the unweighted per-channel average), and planes 3..n are rescaled by
// the resulting total luma so they carry pure direction modulation.
// Exported so the fit-time quantization pass (which samples the same
// model outside of a full per-row ProcessRow call) can apply the
// identical rescale before observing plane min/max.
func ApplyLRGBTrick(transformed color.Pixel, pri []float64) {
	n := len(transformed.Slots)
	if n == 0 {
		return
	}
	luma := make([]float64, n)
	maxLuma := 0.0
	for i, s := range transformed.Slots {
		l := s.Luma() / 255
		luma[i] = l
		if l > maxLuma {
			maxLuma = l
		}
	}
	if maxLuma > 0 {
		for i := range luma {
			luma[i] /= maxLuma
		}
	}

	var r, g, b, y float64
	for i, s := range transformed.Slots {
		l := luma[i]
		r += (s.R / 255) * l
		g += (s.G / 255) * l
		b += (s.B / 255) * l
		y += l * l
	}
	if y == 0 {
		y = 1e-9
	}
	res := [3]float64{
		clamp01(255 * r / y),
		clamp01(255 * g / y),
		clamp01(255 * b / y),
	}
	pri[0], pri[1], pri[2] = res[0], res[1], res[2]

	totalLuma := (0.2125*res[0] + 0.7154*res[1] + 0.0721*res[2]) / 255
	if totalLuma == 0 {
		totalLuma = 1e-9
	}
	for p := 3; p < len(pri); p++ {
		pri[p] /= totalLuma
	}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return v
}

func writeColor(buf []byte, x int, c color.Color) {
	buf[3*x] = clampByte(c.R)
	buf[3*x+1] = clampByte(c.G)
	buf[3*x+2] = clampByte(c.B)
}

func writeUnitVector(buf []byte, x int, v color.Vector3) {
	buf[3*x] = clampByte(255 * v.X)
	buf[3*x+1] = clampByte(255 * v.Y)
	buf[3*x+2] = clampByte(255 * v.Z)
}
