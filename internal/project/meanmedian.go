package project

import (
	"sort"

	"github.com/relightgo/rtienc/internal/color"
)

// MeanColor returns the per-channel average over p's acquired light slots,
// per rtibuilder.cpp's extractMean.
func MeanColor(p color.Pixel) color.Color {
	n := len(p.Slots)
	if n == 0 {
		return color.Color{}
	}
	var sum color.Color
	for _, s := range p.Slots {
		sum = sum.Add(s)
	}
	return sum.Scale(1 / float64(n))
}

// MedianColor returns the per-channel 7/8-quantile over p's acquired light
// slots. The original selects this rank with a single nth_element pass per
// channel; a full sort is used here since per-row pixel counts are small
// enough that the asymptotic difference never matters in practice.
func MedianColor(p color.Pixel) color.Color {
	n := len(p.Slots)
	if n == 0 {
		return color.Color{}
	}
	r := make([]float64, n)
	g := make([]float64, n)
	b := make([]float64, n)
	for i, s := range p.Slots {
		r[i], g[i], b[i] = s.R, s.G, s.B
	}
	sort.Float64s(r)
	sort.Float64s(g)
	sort.Float64s(b)
	idx := 7 * n / 8
	if idx >= n {
		idx = n - 1
	}
	return color.Color{R: r[idx], G: g[idx], B: b[idx]}
}
