package rti

import "image"

// Outputs is the disk-I/O-framing external collaborator: Build never
// creates a file or directory itself, the same way it never encodes a
// JPEG bitstream itself (JPEGSink). Outputs owns naming plane_N.jpg,
// creating whatever output directory the caller wants, and encoding the
// image.Image values Build hands it (materials.png, normals.png,
// means.png, medians.png) in whatever format the caller chooses -- PNG
// encoding is disk-I/O framing exactly like JPEG encoding, so the core
// never imports an image codec package.
type Outputs interface {
	// NewPlaneSink opens the JPEGSink for coefficient-plane triplet index
	// (0-based), sized width x height, at the given quality and chroma
	// subsampling setting. Build calls this once per ceil(nplanes/3)
	// triplet before pass 2 begins streaming rows.
	NewPlaneSink(index, width, height, quality int, chromaSubsampling bool) (JPEGSink, error)
	// WriteManifest persists the finished Manifest (typically as JSON).
	WriteManifest(m *Manifest) error
	// WriteImage persists one auxiliary image by name ("materials.png",
	// "normals.png", "means.png", "medians.png").
	WriteImage(name string, img image.Image) error
}
