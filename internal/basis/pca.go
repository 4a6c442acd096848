package basis

import (
	"fmt"

	"github.com/relightgo/rtienc/internal/color"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// BuildMRGB fits the data-driven, jointly-RGB PCA basis (§4.D): mean of
// length D, top nplanes principal components as L2-normalized rows.
func BuildMRGB(samples []color.Pixel, nplanes int) (*MaterialBuilder, error) {
	n := len(samples)
	if n == 0 {
		return nil, errBuild(fmt.Errorf("pca: no samples"))
	}
	d := samples[0].NDimensions() * 3

	data := mat.NewDense(n, d, nil)
	mean := make([]float64, d)
	for i, s := range samples {
		v := Flatten(s)
		data.SetRow(i, v)
		for j, x := range v {
			mean[j] += x
		}
	}
	for j := range mean {
		mean[j] /= float64(n)
	}
	for i := 0; i < n; i++ {
		for j := 0; j < d; j++ {
			data.Set(i, j, data.At(i, j)-mean[j])
		}
	}

	var pc stat.PC
	if !pc.PrincipalComponents(data, nil) {
		return nil, errBuild(fmt.Errorf("pca: principal component solve failed"))
	}
	var vecs mat.Dense
	pc.VectorsTo(&vecs)

	if nplanes > d {
		nplanes = d
	}
	m := newMaterialBuilder(nplanes, d)
	copy(m.Mean, mean)
	for p := 0; p < nplanes; p++ {
		row := m.row(p)
		for j := 0; j < d; j++ {
			row[j] = vecs.At(j, p)
		}
	}
	m.clampMean()
	m.l2NormalizeRows()
	return m, nil
}
