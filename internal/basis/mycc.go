package basis

import (
	"fmt"

	"github.com/relightgo/rtienc/internal/color"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// BuildMYCC fits the data-driven, per-channel PCA basis (§4.D): samples are
// color-converted to YCbCr (gamma-fixed afterwards, if requested, per
// §4.F step 2's YCbCr-then-gamma order), each channel gets an independent
// PCA of yccplanes[c] components, and the three resulting projections are
// interleaved Y,Cb,Cr,Y,Cb,Cr,... for the first min(yccplanes) planes, with
// any channel's remaining planes trailing at the end.
func BuildMYCC(samples []color.Pixel, yccplanes [3]int, gammaFix bool) (*MaterialBuilder, error) {
	n := len(samples)
	if n == 0 {
		return nil, errBuild(fmt.Errorf("pca: no samples"))
	}
	ndim := samples[0].NDimensions()
	d := ndim * 3

	ycc := make([]color.Pixel, n)
	for i, s := range samples {
		p := color.NewPixel(ndim)
		for k, c := range s.Slots {
			c = color.RGBToYCbCr(c)
			if gammaFix {
				c = color.GammaFix(c)
			}
			p.Slots[k] = c
		}
		ycc[i] = p
	}

	var channelMean [3][]float64
	var channelProj [3][][]float64
	for c := 0; c < 3; c++ {
		mean, rows, err := fitChannelPCA(ycc, c, ndim, yccplanes[c])
		if err != nil {
			return nil, err
		}
		channelMean[c] = mean
		channelProj[c] = rows
	}

	order := interleavePlanes(yccplanes)
	m := newMaterialBuilder(len(order), d)
	for c := 0; c < 3; c++ {
		for k := 0; k < ndim; k++ {
			m.Mean[3*k+c] = channelMean[c][k]
		}
	}
	for p, src := range order {
		row := m.row(p)
		channelRow := channelProj[src.channel][src.idx]
		for k := 0; k < ndim; k++ {
			row[3*k+src.channel] = channelRow[k]
		}
	}
	m.clampMean()
	m.l2NormalizeRows()
	return m, nil
}

// planeSource names which channel/component index a final interleaved
// plane is sourced from.
type planeSource struct {
	channel, idx int
}

// interleavePlanes builds the Y,Cb,Cr,... ordering described in BuildMYCC's
// doc comment.
func interleavePlanes(yccplanes [3]int) []planeSource {
	minN := yccplanes[0]
	for _, n := range yccplanes[1:] {
		if n < minN {
			minN = n
		}
	}
	if minN < 0 {
		minN = 0
	}
	var order []planeSource
	for i := 0; i < minN; i++ {
		order = append(order, planeSource{0, i}, planeSource{1, i}, planeSource{2, i})
	}
	for c := 0; c < 3; c++ {
		for i := minN; i < yccplanes[c]; i++ {
			order = append(order, planeSource{c, i})
		}
	}
	return order
}

// fitChannelPCA centers channel c (0=Y, 1=Cb, 2=Cr) across samples and, if
// nplanes > 0, fits its top nplanes principal components. The mean is
// always returned so MaterialBuilder.Mean stays complete even for a
// zero-plane channel.
func fitChannelPCA(samples []color.Pixel, channel, ndim, nplanes int) ([]float64, [][]float64, error) {
	n := len(samples)
	mean := make([]float64, ndim)
	data := mat.NewDense(n, ndim, nil)
	for i, s := range samples {
		for k := 0; k < ndim; k++ {
			v := channelValue(s.Slots[k], channel)
			data.Set(i, k, v)
			mean[k] += v
		}
	}
	for k := range mean {
		mean[k] /= float64(n)
	}
	if nplanes <= 0 {
		return mean, nil, nil
	}
	for i := 0; i < n; i++ {
		for k := 0; k < ndim; k++ {
			data.Set(i, k, data.At(i, k)-mean[k])
		}
	}

	var pc stat.PC
	if !pc.PrincipalComponents(data, nil) {
		return nil, nil, errBuild(fmt.Errorf("pca: channel %d principal component solve failed", channel))
	}
	var vecs mat.Dense
	pc.VectorsTo(&vecs)

	if nplanes > ndim {
		nplanes = ndim
	}
	rows := make([][]float64, nplanes)
	for p := 0; p < nplanes; p++ {
		row := make([]float64, ndim)
		for k := 0; k < ndim; k++ {
			row[k] = vecs.At(k, p)
		}
		rows[p] = row
	}
	return mean, rows, nil
}

func channelValue(c color.Color, channel int) float64 {
	switch channel {
	case 0:
		return c.R
	case 1:
		return c.G
	default:
		return c.B
	}
}
