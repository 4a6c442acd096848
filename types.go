// Package rti compresses a reflectance transformation imaging (RTI)
// acquisition -- a stack of registered photographs lit from many known
// directions -- into a relightable representation: a small set of JPEG
// "coefficient planes" plus a JSON manifest describing how to recombine
// them under an arbitrary light direction.
//
// The package does not discover image sets, parse EXIF/.lp sidecars,
// calibrate light directions from a probe sphere, decode or encode JPEG
// bitstreams, or relight on the viewer side: callers supply an ImageSet
// and a JPEGSink factory, and Build drives the model-fitting pipeline
// (light resampling, basis fitting, quantization, projection) in between.
package rti

import "github.com/relightgo/rtienc/internal/color"

// Vector3, Color, Pixel and PixelArray are the numeric primitives shared
// by every component of the pipeline; they live in internal/color and are
// re-exported here so that callers implementing ImageSet never need to
// import an internal package.
type (
	Vector3    = color.Vector3
	Color      = color.Color
	Pixel      = color.Pixel
	PixelArray = color.PixelArray
)

// ResampleFunc maps an acquired pixel (one slot per source image) to a
// resampled pixel (one slot per octahedral cell, for BILINEAR; unchanged
// dimensionality for PTM/HSH/SH/H/RBF, which project the acquired light
// domain directly). ImageSet.Sample applies it to each sampled pixel
// before returning.
type ResampleFunc func(acquired Pixel) Pixel

// ImageSet is the external collaborator that streams one row at a time
// across all acquired light images. Implementations are responsible for
// image-set discovery, file decoding, geometry validation and EXIF/.lp
// light-vector recovery; Build only ever calls the methods below.
//
// ReadLine/Sample/Restart are not expected to be safe for concurrent use:
// the driver keeps all calls to a single ImageSet on one goroutine, since
// it typically wraps shared, stateful file decoders.
type ImageSet interface {
	// Width and Height are the (possibly cropped) pixel dimensions the
	// pipeline operates over.
	Width() int
	Height() int
	// ImageWidth and ImageHeight are the pre-crop source dimensions, used
	// to relocalize near-field light directions at arbitrary image
	// positions (see Light3D).
	ImageWidth() int
	ImageHeight() int
	// Lights returns the acquired light direction for each source image.
	Lights() []Vector3
	// Light3D reports whether light direction varies across the image
	// plane (near-field acquisition). When true, the resampling and basis
	// builders fit a grid of local models instead of one global model.
	Light3D() bool
	// Sample fills out with a representative, randomly positioned set of
	// pixels fitting within ramBudgetMB megabytes, each passed through
	// resample. len(out.Pixels) is the caller-chosen sample count; each
	// resulting Pixel has ndimensions slots.
	Sample(out *PixelArray, ndimensions int, resample ResampleFunc, ramBudgetMB int) error
	// ReadLine advances one row, filling out with Width() acquired pixels
	// (one slot per source image).
	ReadLine(out *PixelArray) error
	// Restart rewinds to row 0.
	Restart() error
}

// JPEGSink is the external collaborator that receives the encoded rows of
// one coefficient-plane triplet. Build creates one sink per
// ceil(nplanes/3) triplet via Outputs.NewPlaneSink.
type JPEGSink interface {
	// WriteRow encodes one row of RGB pixels, len(rgb) == 3*width.
	WriteRow(rgb []byte) error
	// Close flushes and finalizes the JPEG stream. Build calls Close
	// exactly once per sink it successfully opened, even on cancellation.
	Close() error
}

// NearFieldImageSet is implemented by an ImageSet whose Light3D() is true.
// It recovers the acquired light direction for every source image as seen
// from an arbitrary image-plane position, used to relocalize the 8x8 grid
// of near-field resample maps and material builders described in §4.C/§4.D.
// It is deliberately a separate, optional interface (checked with a type
// assertion) rather than part of ImageSet itself, since only near-field
// acquisitions need it.
type NearFieldImageSet interface {
	ImageSet
	// LightAt returns the acquired light direction for every source image
	// as observed from image-plane position (x, y) (pre-crop coordinates,
	// 0 <= x < ImageWidth(), 0 <= y < ImageHeight()).
	LightAt(x, y int) []Vector3
}

// ProgressFunc is polled at well-defined points (every row in pass 2,
// every 8000 samples during quantization, once per pyramid level and CG
// iteration in the normal integrator). Returning false raises Cancelled,
// which unwinds all workers and closes encoder outputs; partial files are
// left on disk for the caller to clean up.
type ProgressFunc func(fraction float64) bool
