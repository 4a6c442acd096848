package rti

import (
	"errors"
	"image"
	"math"
	"testing"
)

// fakeImageSet is a small, deterministic ImageSet used across Build's
// tests, standing in for a real decoder the way the teacher's own tests
// stand in webp.Encode's input with an in-memory image.Image.
type fakeImageSet struct {
	width, height int
	lights        []Vector3
	light3d       bool
	rows          [][]Pixel
	pos           int
	lightAt       func(x, y int) []Vector3
}

func newFakeImageSet(width, height, nlights int, light3d bool) *fakeImageSet {
	lights := make([]Vector3, nlights)
	for i := range lights {
		theta := float64(i) * 2.3
		phi := 0.3 + 0.5*float64(i%3)
		lights[i] = Vector3{
			X: math.Sin(phi) * math.Cos(theta),
			Y: math.Sin(phi) * math.Sin(theta),
			Z: math.Cos(phi),
		}.Normalize()
	}

	f := &fakeImageSet{width: width, height: height, lights: lights, light3d: light3d}
	f.rows = make([][]Pixel, height)
	for y := range f.rows {
		row := make([]Pixel, width)
		for x := range row {
			row[x] = f.acquiredPixel(x, y)
		}
		f.rows[y] = row
	}
	if light3d {
		f.lightAt = func(x, y int) []Vector3 {
			out := make([]Vector3, len(lights))
			jitter := 0.05 * float64((x+y)%5) / 5
			for i, l := range lights {
				out[i] = Vector3{X: l.X + jitter, Y: l.Y, Z: l.Z}.Normalize()
			}
			return out
		}
	}
	return f
}

// acquiredPixel synthesizes a deterministic, position- and light-varying
// sample so the basis fit and quantization planner see real spread rather
// than a degenerate constant image.
func (f *fakeImageSet) acquiredPixel(x, y int) Pixel {
	p := NewPixel(len(f.lights))
	for i := range p.Slots {
		v := float64((x*7 + y*13 + i*31) % 256)
		p.Slots[i] = Color{R: v, G: math.Mod(v*1.3, 255), B: math.Mod(v*0.7, 255)}
	}
	return p
}

func (f *fakeImageSet) Width() int         { return f.width }
func (f *fakeImageSet) Height() int        { return f.height }
func (f *fakeImageSet) ImageWidth() int    { return f.width }
func (f *fakeImageSet) ImageHeight() int   { return f.height }
func (f *fakeImageSet) Lights() []Vector3  { return f.lights }
func (f *fakeImageSet) Light3D() bool      { return f.light3d }

func (f *fakeImageSet) Sample(out *PixelArray, ndimensions int, resample ResampleFunc, ramBudgetMB int) error {
	n := out.Width()
	for i := 0; i < n; i++ {
		x := i % f.width
		y := (i / f.width) % f.height
		out.Pixels[i] = resample(f.rows[y][x])
	}
	return nil
}

func (f *fakeImageSet) ReadLine(out *PixelArray) error {
	if f.pos >= f.height {
		return errors.New("fakeImageSet: read past end")
	}
	copy(out.Pixels, f.rows[f.pos])
	f.pos++
	return nil
}

func (f *fakeImageSet) Restart() error {
	f.pos = 0
	return nil
}

func (f *fakeImageSet) LightAt(x, y int) []Vector3 {
	return f.lightAt(x, y)
}

// fakeSink is an in-memory JPEGSink recording every row it's handed.
type fakeSink struct {
	rows   [][]byte
	closed bool
}

func (s *fakeSink) WriteRow(rgb []byte) error {
	row := make([]byte, len(rgb))
	copy(row, rgb)
	s.rows = append(s.rows, row)
	return nil
}

func (s *fakeSink) Close() error {
	s.closed = true
	return nil
}

// fakeOutputs is an in-memory Outputs, standing in for a caller's
// directory/file writer.
type fakeOutputs struct {
	sinks    []*fakeSink
	manifest *Manifest
	images   map[string]image.Image
}

func newFakeOutputs() *fakeOutputs {
	return &fakeOutputs{images: map[string]image.Image{}}
}

func (o *fakeOutputs) NewPlaneSink(index, width, height, quality int, chromaSubsampling bool) (JPEGSink, error) {
	s := &fakeSink{}
	o.sinks = append(o.sinks, s)
	return s, nil
}

func (o *fakeOutputs) WriteManifest(m *Manifest) error {
	o.manifest = m
	return nil
}

func (o *fakeOutputs) WriteImage(name string, img image.Image) error {
	o.images[name] = img
	return nil
}

func TestBuildPTMLRGBGlobal(t *testing.T) {
	imgset := newFakeImageSet(6, 6, 8, false)
	outputs := newFakeOutputs()
	cfg := Config{Type: TypePTM, ColorSpace: ColorLRGB, Workers: 2}

	if err := Build(cfg, imgset, outputs, nil); err != nil {
		t.Fatalf("Build: %v", err)
	}
	if outputs.manifest == nil {
		t.Fatal("manifest not written")
	}
	if outputs.manifest.NPlanes != 9 {
		t.Errorf("NPlanes = %d, want 9", outputs.manifest.NPlanes)
	}
	if outputs.manifest.Basis != nil {
		t.Error("PTM manifest should not carry a basis image")
	}
	if len(outputs.manifest.Lights) != 8 {
		t.Errorf("len(Lights) = %d, want 8", len(outputs.manifest.Lights))
	}
	if len(outputs.manifest.Materials) != 1 {
		t.Fatalf("len(Materials) = %d, want 1", len(outputs.manifest.Materials))
	}
	if n := len(outputs.manifest.Materials[0].Scale); n != 9 {
		t.Errorf("len(Materials[0].Scale) = %d, want 9", n)
	}

	wantSinks := 3 // ceil(9/3)
	if len(outputs.sinks) != wantSinks {
		t.Fatalf("sinks = %d, want %d", len(outputs.sinks), wantSinks)
	}
	for i, s := range outputs.sinks {
		if !s.closed {
			t.Errorf("sink %d not closed", i)
		}
		if len(s.rows) != imgset.height {
			t.Errorf("sink %d rows = %d, want %d", i, len(s.rows), imgset.height)
		}
		for _, row := range s.rows {
			if len(row) != imgset.width*3 {
				t.Errorf("sink %d row length = %d, want %d", i, len(row), imgset.width*3)
			}
		}
	}
}

func TestBuildInvalidConfig(t *testing.T) {
	imgset := newFakeImageSet(4, 4, 6, false)
	outputs := newFakeOutputs()
	cfg := Config{Type: TypePTM, ColorSpace: ColorMRGB}

	err := Build(cfg, imgset, outputs, nil)
	var e *Error
	if !asError(err, &e) || e.Kind != InvalidConfig {
		t.Fatalf("err = %v, want InvalidConfig", err)
	}
}

func TestBuildCancellation(t *testing.T) {
	imgset := newFakeImageSet(6, 6, 6, false)
	outputs := newFakeOutputs()
	cfg := Config{Type: TypeH, ColorSpace: ColorRGB, Workers: 2}

	calls := 0
	progress := func(frac float64) bool {
		calls++
		return calls < 2
	}
	err := Build(cfg, imgset, outputs, progress)
	if !IsCancelled(err) {
		t.Fatalf("err = %v, want Cancelled", err)
	}
}

func TestBuildRBFMRGB(t *testing.T) {
	imgset := newFakeImageSet(6, 6, 10, false)
	outputs := newFakeOutputs()
	cfg := Config{Type: TypeRBF, ColorSpace: ColorMRGB, NPlanes: 6, Sigma: 0.6, Workers: 3}

	if err := Build(cfg, imgset, outputs, nil); err != nil {
		t.Fatalf("Build: %v", err)
	}
	if outputs.manifest.Basis == nil {
		t.Fatal("RBF manifest should carry a basis image")
	}
	if outputs.manifest.Sigma != 0.6 {
		t.Errorf("Sigma = %v, want 0.6", outputs.manifest.Sigma)
	}
	if outputs.manifest.Resolution != 0 {
		t.Errorf("Resolution = %d, want 0 for RBF", outputs.manifest.Resolution)
	}
	if _, ok := outputs.images["materials.png"]; !ok {
		t.Error("materials.png not written")
	}
	if n := len(outputs.manifest.Materials[0].Range); n != 6 {
		t.Errorf("len(Materials[0].Range) = %d, want 6", n)
	}
}

func TestBuildBilinearMYCCNearField(t *testing.T) {
	imgset := newFakeImageSet(6, 6, 8, true)
	outputs := newFakeOutputs()
	cfg := Config{
		Type:       TypeBilinear,
		ColorSpace: ColorMYCC,
		YCCPlanes:  [3]int{3, 2, 2},
		Resolution: 4,
		Workers:    2,
	}

	if err := Build(cfg, imgset, outputs, nil); err != nil {
		t.Fatalf("Build: %v", err)
	}
	if outputs.manifest.Resolution != 4 {
		t.Errorf("Resolution = %d, want 4", outputs.manifest.Resolution)
	}
	if outputs.manifest.NPlanes != 0 {
		t.Errorf("NPlanes should be omitted for mycc, got %d", outputs.manifest.NPlanes)
	}
	if outputs.manifest.YCCPlanes == nil || *outputs.manifest.YCCPlanes != cfg.YCCPlanes {
		t.Errorf("YCCPlanes = %v, want %v", outputs.manifest.YCCPlanes, cfg.YCCPlanes)
	}
	wantSinks := (3 + 2 + 2 + 2) / 3 // ceil(7/3)
	if len(outputs.sinks) != wantSinks {
		t.Fatalf("sinks = %d, want %d", len(outputs.sinks), wantSinks)
	}
}

func TestBuildClosedFormNearFieldNormals(t *testing.T) {
	imgset := newFakeImageSet(6, 6, 8, true)
	outputs := newFakeOutputs()
	cfg := Config{Type: TypeH, ColorSpace: ColorRGB, Workers: 2, SaveNormals: true}

	if err := Build(cfg, imgset, outputs, nil); err != nil {
		t.Fatalf("Build: %v", err)
	}
	if _, ok := outputs.images["normals.png"]; !ok {
		t.Error("normals.png not written")
	}
}

func TestBuildAuxiliaryImages(t *testing.T) {
	imgset := newFakeImageSet(6, 6, 6, false)
	outputs := newFakeOutputs()
	cfg := Config{
		Type: TypeH, ColorSpace: ColorRGB, Workers: 2,
		SaveNormals: true, SaveMeans: true, SaveMedians: true,
	}

	if err := Build(cfg, imgset, outputs, nil); err != nil {
		t.Fatalf("Build: %v", err)
	}
	for _, name := range []string{"normals.png", "means.png", "medians.png"} {
		if _, ok := outputs.images[name]; !ok {
			t.Errorf("%s not written", name)
		}
	}
}

func TestBuildZeroLights(t *testing.T) {
	imgset := newFakeImageSet(4, 4, 0, false)
	outputs := newFakeOutputs()
	cfg := Config{Type: TypeH, ColorSpace: ColorRGB}

	err := Build(cfg, imgset, outputs, nil)
	var e *Error
	if !asError(err, &e) || e.Kind != ImageSetFailure {
		t.Fatalf("err = %v, want ImageSetFailure", err)
	}
}
