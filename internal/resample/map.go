// Package resample builds the sparse weight maps ("ResampleMap") that
// project an acquired set of light directions onto a regular R x R
// octahedral grid, for the bilinear basis (RBF keeps the acquired light
// domain and builds no map). It also handles the
// near-field (light3d) case, where light direction depends on image
// position, via a coarse 8x8 grid of per-cell maps blended bilinearly.
package resample

import (
	"math"
	"sort"

	"github.com/relightgo/rtienc/internal/color"
	"github.com/relightgo/rtienc/internal/octahedral"
)

// pruneThreshold is the final sparsification threshold applied to every
// row of a finished Map: |weight| <= pruneThreshold is dropped.
const pruneThreshold = 0.05

// Entry is one (source light index, weight) pair in a sparse row.
type Entry struct {
	Index  int
	Weight float64
}

// Row is one sparse row of a Map: a small list of acquired-light weights
// that sum to 1 after pruning and renormalization.
type Row []Entry

// Map is an ordered sequence of ndimensions sparse rows, each describing
// how to blend the K acquired light samples into one octahedral cell.
type Map struct {
	Rows []Row
}

// Apply resamples an acquired pixel (one slot per light) into a resampled
// pixel with len(m.Rows) slots, via m's sparse weights.
func (m *Map) Apply(acquired color.Pixel) color.Pixel {
	out := color.NewPixel(len(m.Rows))
	for i, row := range m.Rows {
		var c color.Color
		for _, e := range row {
			c = c.Add(acquired.Slots[e.Index].Scale(e.Weight))
		}
		out.Slots[i] = c
	}
	return out
}

// normalizeRow renormalizes raw weights to sum to 1, prunes entries below
// threshold (relative to the post-normalization sum), and renormalizes
// once more so the row invariant (sum == 1 +/- eps) holds after pruning.
func normalizeRow(raw []Entry, threshold float64) Row {
	sum := 0.0
	for _, e := range raw {
		sum += e.Weight
	}
	if sum == 0 {
		return nil
	}
	normalized := make([]Entry, 0, len(raw))
	for _, e := range raw {
		w := e.Weight / sum
		if math.Abs(w) > threshold {
			normalized = append(normalized, Entry{Index: e.Index, Weight: w})
		}
	}
	sum2 := 0.0
	for _, e := range normalized {
		sum2 += e.Weight
	}
	if sum2 == 0 {
		return nil
	}
	out := make(Row, len(normalized))
	for i, e := range normalized {
		out[i] = Entry{Index: e.Index, Weight: e.Weight / sum2}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Index < out[j].Index })
	return out
}

// sparsify applies the final pruneThreshold to every row of m, in place.
func (m *Map) sparsify() {
	for i, row := range m.Rows {
		raw := make([]Entry, len(row))
		copy(raw, row)
		m.Rows[i] = normalizeRow(raw, pruneThreshold)
	}
}

// cellDirections returns the unit light direction for every cell of an
// R x R octahedral map, in row-major (y-major) order matching Map.Rows.
func cellDirections(r int) []color.Vector3 {
	dirs := make([]color.Vector3, r*r)
	for y := 0; y < r; y++ {
		for x := 0; x < r; x++ {
			dirs[y*r+x] = octahedral.FromOcta(x, y, r)
		}
	}
	return dirs
}
