package rti

import (
	"image"

	"github.com/relightgo/rtienc/internal/basis"
	"github.com/relightgo/rtienc/internal/color"
	"github.com/relightgo/rtienc/internal/encode"
	"github.com/relightgo/rtienc/internal/materials"
	"github.com/relightgo/rtienc/internal/octahedral"
	"github.com/relightgo/rtienc/internal/project"
	"github.com/relightgo/rtienc/internal/quant"
	"github.com/relightgo/rtienc/internal/resample"
)

// Build drives the whole §4 pipeline end to end: it fits the light
// resampling maps and the chosen reflectance basis from a random sample of
// the acquisition (pass 1), derives the quantization plan, then streams
// every row through the projection engine and the caller's JPEG sinks
// (pass 2), finally persisting the manifest and any optional auxiliary
// images through outputs.
//
// Build is a thin dispatcher in the same spirit as the teacher's
// webp.Encode/webp.Decode: the real work lives in internal/basis,
// internal/resample, internal/quant, internal/project and
// internal/encode. It never imports a third-party package directly.
func Build(cfg Config, imageset ImageSet, outputs Outputs, progress ProgressFunc) error {
	cfg = cfg.withDefaults()
	if err := cfg.validate(); err != nil {
		return err
	}
	nplanes, err := cfg.resolvedPlaneCount()
	if err != nil {
		return err
	}
	if err := checkProgress(progress, 0); err != nil {
		return err
	}

	lights := imageset.Lights()
	k := len(lights)
	if k == 0 {
		return newError(ImageSetFailure, "image set reports zero lights")
	}
	width, height := imageset.Width(), imageset.Height()
	imgW, imgH := imageset.ImageWidth(), imageset.ImageHeight()
	light3d := imageset.Light3D()

	var nf NearFieldImageSet
	if light3d {
		var ok bool
		nf, ok = imageset.(NearFieldImageSet)
		if !ok {
			return newError(ImageSetFailure, "light3d image set does not implement NearFieldImageSet")
		}
	}

	lrgb := cfg.Type == TypePTM && cfg.ColorSpace == ColorLRGB
	mycc := cfg.ColorSpace == ColorMYCC

	// --- resampling: only BILINEAR reprojects the light domain onto the
	// R x R octahedral grid; RBF and the closed-form bases keep
	// ndimensions == nlights and resample nothing (§3: "ndimensions ...
	// nlights for PTM/HSH/RBF, which do not reproject the light domain").
	var (
		ndim          int
		baseResample  func(color.Pixel) color.Pixel
		bilinearMap   *resample.Map
		bilinearGrid  *resample.Grid
	)
	switch cfg.Type {
	case TypeBilinear:
		ndim = cfg.Resolution * cfg.Resolution
		if light3d {
			bilinearGrid, err = resample.BuildGrid(nf.LightAt, imgW, imgH, cfg.Resolution, cfg.Sigma, cfg.Regularization)
			if err != nil {
				return wrapError(SolverFailure, err, "build near-field resample grid")
			}
			cx, cy := imgW/2, imgH/2
			baseResample = func(p color.Pixel) color.Pixel {
				return bilinearGrid.BlendAt(cx, cy, imgW, imgH).Apply(p)
			}
		} else {
			bilinearMap, err = resample.BuildBilinear(lights, cfg.Resolution, cfg.Sigma, cfg.Regularization)
			if err != nil {
				return wrapError(SolverFailure, err, "build resample map")
			}
			baseResample = bilinearMap.Apply
		}
	default:
		ndim = k
		baseResample = func(p color.Pixel) color.Pixel { return p }
	}
	if err := checkProgress(progress, 0.05); err != nil {
		return err
	}

	// --- pass 1: sample a RAM-budgeted, representative set of resampled
	// (and, if enabled, gamma-fixed) pixels. MYCC's YCbCr conversion happens
	// downstream (BuildMYCC / the quantization loop below), and §4.F step 2
	// orders YCbCr before gamma, so gamma is applied here only for the
	// colorspaces that never convert to YCbCr at all; MYCC gamma-fixes after
	// its own YCbCr conversion instead of before it.
	sampleResample := func(p color.Pixel) color.Pixel {
		out := baseResample(p)
		if cfg.GammaFix && !mycc {
			out = out.Clone()
			for i, c := range out.Slots {
				out.Slots[i] = color.GammaFix(c)
			}
		}
		return out
	}
	nsamples := sampleCount(cfg.SamplingRAM, ndim, width*height)
	samples := color.NewPixelArray(nsamples, ndim)
	if err := imageset.Sample(&samples, ndim, sampleResample, cfg.SamplingRAM); err != nil {
		return wrapError(ImageSetFailure, err, "sample image set")
	}
	if err := checkProgress(progress, 0.10); err != nil {
		return err
	}

	// --- fit the chosen reflectance basis.
	var mb *basis.MaterialBuilder
	var grid *basis.Grid
	switch cfg.Type {
	case TypePTM, TypeHSH, TypeSH, TypeH:
		wf := weightFuncFor(cfg.Type)
		terms := termsFor(cfg.Type)
		fit := func(ls []color.Vector3) (*basis.MaterialBuilder, error) {
			if cfg.Type == TypePTM {
				return basis.BuildPTM(ls, lrgb)
			}
			return basis.BuildHarmonic(ls, wf, terms)
		}
		if light3d {
			grid, err = basis.BuildGrid(nf.LightAt, imgW, imgH, fit)
		} else {
			mb, err = fit(lights)
		}
	case TypeRBF, TypeBilinear:
		if cfg.ColorSpace == ColorMRGB {
			mb, err = basis.BuildMRGB(samples.Pixels, nplanes)
		} else {
			mb, err = basis.BuildMYCC(samples.Pixels, cfg.YCCPlanes, cfg.GammaFix)
		}
	}
	if err != nil {
		return wrapError(SolverFailure, err, "fit basis")
	}
	if err := checkProgress(progress, 0.33); err != nil {
		return err
	}

	// --- quantization plan: project every fit sample through the same
	// model pass 2 will use and track per-plane min/max. Near-field
	// closed-form bases have no single canonical cell, so the image
	// center's blended builder stands in as the representative model for
	// fitting the shared dynamic range (§4.D's near-field grid only
	// varies smoothly across cells, so any one cell is a fair sample).
	var modelForFit project.Model
	if grid != nil {
		modelForFit = project.NearFieldModel(grid, imgW, imgH)
	} else {
		modelForFit = project.GlobalModel(mb)
	}
	cx, cy := imgW/2, imgH/2
	planner := quant.NewPlanner(nplanes)
	for i, px := range samples.Pixels {
		transformed := px
		if mycc {
			transformed = px.Clone()
			for j, c := range transformed.Slots {
				c = color.RGBToYCbCr(c)
				if cfg.GammaFix {
					c = color.GammaFix(c)
				}
				transformed.Slots[j] = c
			}
		}
		sample := basis.Flatten(transformed)
		coeffs := modelForFit.Project(sample, cx, cy)
		if lrgb {
			project.ApplyLRGBTrick(transformed, coeffs)
		}
		planner.Observe(coeffs)
		if i%8000 == 0 {
			frac := 0.33 + 0.33*float64(i)/float64(len(samples.Pixels))
			if err := checkProgress(progress, frac); err != nil {
				return err
			}
		}
	}
	planes := planner.Finalize(cfg.RangeCompress)
	if cfg.ColorSpace.dataDriven() {
		quant.SetRanges(planes, mb)
	}
	if err := checkProgress(progress, 0.66); err != nil {
		return err
	}

	// --- assemble the read-only projector pass 2's workers will share.
	var resampler project.Resampler
	switch {
	case cfg.Type == TypeBilinear && light3d:
		resampler = project.NearFieldResampler(bilinearGrid, imgW, imgH)
	case cfg.Type == TypeBilinear:
		resampler = project.GlobalResampler(bilinearMap)
	default:
		resampler = project.IdentityResampler()
	}
	var model project.Model
	if grid != nil {
		model = project.NearFieldModel(grid, imgW, imgH)
	} else {
		model = project.GlobalModel(mb)
	}
	var normals *project.NormalExtractor
	if cfg.SaveNormals {
		switch {
		case cfg.ColorSpace.dataDriven():
			normals = project.NewDataDrivenNormalExtractor(mb, domainDirections(cfg, lights))
		case lrgb:
			normals = project.NewLRGBNormalExtractor(weightFuncFor(cfg.Type))
		default:
			normals = project.NewRGBNormalExtractor(weightFuncFor(cfg.Type))
		}
	}
	projector := &project.Projector{
		Resampler: resampler,
		Model:     model,
		Planes:    planes,
		MYCC:      mycc,
		GammaFix:  cfg.GammaFix,
		LRGB:      lrgb,
		Normals:   normals,
	}

	// --- pass 2: open sinks, stream rows, commit in order.
	ntriplets := (nplanes + 2) / 3
	sinks := make([]JPEGSink, ntriplets)
	for i := 0; i < ntriplets; i++ {
		sink, err := outputs.NewPlaneSink(i, width, height, cfg.Quality, chromaForTriplet(cfg, i))
		if err != nil {
			closeSinks(sinks[:i])
			return wrapError(OutputFailure, err, "open plane sink %d", i)
		}
		sinks[i] = sink
	}
	if err := imageset.Restart(); err != nil {
		closeSinks(sinks)
		return wrapError(ImageSetFailure, err, "restart image set")
	}

	rowsAcquired := make([]color.PixelArray, cfg.Workers)
	for i := range rowsAcquired {
		rowsAcquired[i] = color.NewPixelArray(width, k)
	}
	rowBufs := make([]*project.RowBuffers, cfg.Workers)
	for i := range rowBufs {
		rowBufs[i] = project.NewRowBuffers(width, nplanes, cfg.SaveNormals, cfg.SaveMeans, cfg.SaveMedians)
	}

	var fullNormals, fullMeans, fullMedians []byte
	if cfg.SaveNormals {
		fullNormals = make([]byte, width*height*3)
	}
	if cfg.SaveMeans {
		fullMeans = make([]byte, width*height*3)
	}
	if cfg.SaveMedians {
		fullMedians = make([]byte, width*height*3)
	}

	cropX, cropY := cfg.Crop.X, cfg.Crop.Y
	readRow := func(y int) error {
		if err := imageset.ReadLine(&rowsAcquired[y%cfg.Workers]); err != nil {
			return wrapError(ImageSetFailure, err, "read row %d", y)
		}
		return nil
	}
	processRow := func(y int) error {
		projector.ProcessRow(rowsAcquired[y%cfg.Workers], cropX, cropY+y, rowBufs[y%cfg.Workers])
		return nil
	}
	commitRow := func(y int) error {
		rb := rowBufs[y%cfg.Workers]
		for t, sink := range sinks {
			if err := sink.WriteRow(rb.Planes[t]); err != nil {
				return wrapError(OutputFailure, err, "write plane %d row %d", t, y)
			}
		}
		if fullNormals != nil {
			copy(fullNormals[y*width*3:(y+1)*width*3], rb.Normals)
		}
		if fullMeans != nil {
			copy(fullMeans[y*width*3:(y+1)*width*3], rb.Means)
		}
		if fullMedians != nil {
			copy(fullMedians[y*width*3:(y+1)*width*3], rb.Medians)
		}
		return nil
	}

	runErr := encode.RunBatches(height, cfg.Workers, readRow, processRow, commitRow, func(y int) bool {
		if progress == nil {
			return true
		}
		return progress(0.66 + 0.34*float64(y+1)/float64(height))
	})
	closeErr := closeSinks(sinks)

	switch {
	case runErr == encode.ErrCancelled:
		return newError(Cancelled, "build cancelled during encode")
	case runErr != nil:
		var e *Error
		if asError(runErr, &e) {
			return e
		}
		return wrapError(ImageSetFailure, runErr, "pass 2 encode")
	case closeErr != nil:
		return wrapError(OutputFailure, closeErr, "close plane sinks")
	}

	// --- manifest and optional auxiliary images.
	manifest := &Manifest{
		Width:      width,
		Height:     height,
		Format:     "jpg",
		Type:       cfg.Type,
		ColorSpace: cfg.ColorSpace,
		Quality:    cfg.Quality,
	}
	if mycc {
		yp := cfg.YCCPlanes
		manifest.YCCPlanes = &yp
	} else {
		manifest.NPlanes = nplanes
	}
	manifest.Lights = make([][3]float64, k)
	for i, l := range lights {
		manifest.Lights[i] = [3]float64{round3(l.X), round3(l.Y), round3(l.Z)}
	}
	mm := MaterialManifest{Scale: make([]float64, nplanes), Bias: make([]float64, nplanes)}
	if cfg.ColorSpace.dataDriven() {
		mm.Range = make([]float64, nplanes)
	}
	for p, pl := range planes {
		mm.Scale[p] = pl.Scale
		mm.Bias[p] = pl.Bias
		if cfg.ColorSpace.dataDriven() {
			mm.Range[p] = pl.Range
		}
	}
	manifest.Materials = []MaterialManifest{mm}

	if cfg.Type == TypeBilinear || cfg.Type == TypeRBF {
		var basisImg image.Image
		if cfg.Type == TypeBilinear {
			basisImg = materials.BuildBilinear(mb, planes, cfg.Resolution)
			manifest.Resolution = cfg.Resolution
		} else {
			basisImg = materials.BuildRBF(mb, planes, lights)
			manifest.Sigma = cfg.Sigma
		}
		manifest.Basis = flattenImageRGB(basisImg)
		if err := outputs.WriteImage("materials.png", basisImg); err != nil {
			return wrapError(OutputFailure, err, "write materials.png")
		}
	}

	if fullNormals != nil {
		if err := outputs.WriteImage("normals.png", bytesToRGBA(fullNormals, width, height)); err != nil {
			return wrapError(OutputFailure, err, "write normals.png")
		}
	}
	if fullMeans != nil {
		if err := outputs.WriteImage("means.png", bytesToRGBA(fullMeans, width, height)); err != nil {
			return wrapError(OutputFailure, err, "write means.png")
		}
	}
	if fullMedians != nil {
		if err := outputs.WriteImage("medians.png", bytesToRGBA(fullMedians, width, height)); err != nil {
			return wrapError(OutputFailure, err, "write medians.png")
		}
	}

	if err := outputs.WriteManifest(manifest); err != nil {
		return wrapError(OutputFailure, err, "write manifest")
	}
	return nil
}

// checkProgress polls progress at one of §4.D/§5's well-defined
// checkpoints, raising Cancelled if the caller returns false.
func checkProgress(progress ProgressFunc, frac float64) error {
	if progress != nil && !progress(frac) {
		return newError(Cancelled, "build cancelled")
	}
	return nil
}

// sampleCount derives a representative sample count from the RAM budget
// (megabytes) and per-sample footprint (ndim float64 RGB triplets),
// falling back to a fixed default when no budget is given and never
// exceeding the image's total pixel count.
func sampleCount(ramBudgetMB, ndim, maxSamples int) int {
	const defaultSamples = 4096
	n := defaultSamples
	if ramBudgetMB > 0 {
		bytesPerSample := ndim * 3 * 8
		if bytesPerSample > 0 {
			if v := ramBudgetMB * 1_000_000 / bytesPerSample; v > 0 {
				n = v
			}
		}
	}
	if maxSamples > 0 && n > maxSamples {
		n = maxSamples
	}
	if n < 1 {
		n = 1
	}
	return n
}

// weightFuncFor returns the closed-form basis's per-light weight
// function, shared between the fit itself and normal extraction.
func weightFuncFor(t Type) func(color.Vector3) []float64 {
	switch t {
	case TypePTM:
		return basis.LightWeightsPTM
	case TypeHSH:
		return basis.LightWeightsHSH
	case TypeSH:
		return basis.LightWeightsSH
	case TypeH:
		return basis.LightWeightsH
	default:
		return nil
	}
}

// termsFor returns the closed-form basis's term count (the width of its
// per-light weight vector).
func termsFor(t Type) int {
	switch t {
	case TypePTM:
		return 6
	case TypeHSH, TypeSH:
		return 9
	case TypeH:
		return 4
	default:
		return 0
	}
}

// domainDirections returns the direction set a data-driven MaterialBuilder's
// columns are indexed by: the raw acquired lights for RBF (which never
// reprojects), or the octahedral grid's cell directions for BILINEAR (whose
// samples are resampled onto an R x R grid before the PCA fit). Normal
// extraction needs this to find the nearest basis column to a virtual light.
func domainDirections(cfg Config, lights []color.Vector3) []color.Vector3 {
	if cfg.Type != TypeBilinear {
		return lights
	}
	r := cfg.Resolution
	dirs := make([]color.Vector3, r*r)
	for y := 0; y < r; y++ {
		for x := 0; x < r; x++ {
			dirs[y*r+x] = octahedral.FromOcta(x, y, r)
		}
	}
	return dirs
}

// chromaForTriplet decides whether plane-triplet index i's JPEG should use
// chroma subsampling, per §6: off for MRGB, on for the closed-form bases,
// and for MYCC on only for the triplets whose first plane falls within the
// leading yccplanes[0] Y-sourced planes. Config.ChromaSubsampling is the
// caller's master switch; when false, no triplet subsamples regardless of
// colorspace.
func chromaForTriplet(cfg Config, triplet int) bool {
	if !cfg.ChromaSubsampling {
		return false
	}
	switch cfg.ColorSpace {
	case ColorMRGB:
		return false
	case ColorMYCC:
		return 3*triplet < cfg.YCCPlanes[0]
	default:
		return true
	}
}

// closeSinks closes every non-nil sink, returning the first error (if
// any) so callers can report it while still closing the rest.
func closeSinks(sinks []JPEGSink) error {
	var first error
	for _, s := range sinks {
		if s == nil {
			continue
		}
		if err := s.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// flattenImageRGB packs img's pixels row-major as (r,g,b) integer
// triples, the format info.json's "basis" field uses (§6).
func flattenImageRGB(img image.Image) []int {
	b := img.Bounds()
	out := make([]int, 0, b.Dx()*b.Dy()*3)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			r, g, bl, _ := img.At(x, y).RGBA()
			out = append(out, int(r>>8), int(g>>8), int(bl>>8))
		}
	}
	return out
}

// bytesToRGBA wraps a packed RGB byte row buffer (width*height*3 bytes,
// row-major) as an image.Image for Outputs.WriteImage, for the optional
// normals/means/medians auxiliary maps.
func bytesToRGBA(rgb []byte, width, height int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			i := (y*width + x) * 3
			o := img.PixOffset(x, y)
			img.Pix[o] = rgb[i]
			img.Pix[o+1] = rgb[i+1]
			img.Pix[o+2] = rgb[i+2]
			img.Pix[o+3] = 255
		}
	}
	return img
}
