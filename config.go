package rti

// Type selects the per-pixel reflectance model.
type Type string

const (
	TypePTM      Type = "ptm"
	TypeHSH      Type = "hsh"
	TypeSH       Type = "sh"
	TypeH        Type = "h"
	TypeRBF      Type = "rbf"
	TypeBilinear Type = "bilinear"
)

// ColorSpace selects how color channels are modeled.
type ColorSpace string

const (
	ColorRGB  ColorSpace = "rgb"
	ColorLRGB ColorSpace = "lrgb"
	ColorYCC  ColorSpace = "ycc"
	ColorMRGB ColorSpace = "mrgb"
	ColorMYCC ColorSpace = "mycc"
)

// dataDriven reports whether cs is fit by PCA rather than a closed-form
// regression.
func (cs ColorSpace) dataDriven() bool {
	return cs == ColorMRGB || cs == ColorMYCC
}

// Crop describes a rectangular region of the source images to process.
type Crop struct {
	X, Y, Width, Height int
}

// Config holds the tunables for Build, mirroring the external-interfaces
// section of the format specification.
type Config struct {
	Type       Type
	ColorSpace ColorSpace

	// NPlanes is the plane count for the MRGB PCA basis. Closed-form bases
	// ignore it: their count always comes from PlaneCount.
	NPlanes int
	// YCCPlanes holds the per-channel (Y, Cb, Cr) plane counts for MYCC.
	YCCPlanes [3]int

	// Resolution is the octahedral grid resolution R for BILINEAR (default 8).
	Resolution int
	// Sigma is the RBF radius parameter. For BILINEAR it sets the Gaussian
	// prior of the resampling map (0 selects 0.5); for RBF it is only
	// recorded in the manifest.
	Sigma float64
	// Regularization is lambda in the bilinear resampling-map refinement
	// (default 0.1).
	Regularization float64
	// RangeCompress trades shared dynamic range (0) for per-plane packing
	// (1); default 0.
	RangeCompress float64

	// SamplingRAM bounds pass 1's resampled-pixel sample set, in megabytes.
	SamplingRAM int
	// Workers bounds the pass-2 worker pool size (default 8).
	Workers int
	// Quality is the JPEG quality passed through to the caller's sink
	// factory; Build does not interpret it beyond recording it in the
	// manifest.
	Quality int

	ChromaSubsampling bool
	GammaFix          bool

	SaveNormals bool
	SaveMeans   bool
	SaveMedians bool

	// SkipImage, if set, is consulted by the caller's ImageSet (Build
	// never calls it directly; it is part of Config purely so a single
	// struct can be threaded from CLI flags through to ImageSet
	// construction).
	SkipImage func(index int) bool
	Crop      Crop
}

// withDefaults returns a copy of cfg with zero-valued tunables replaced by
// their documented defaults.
func (cfg Config) withDefaults() Config {
	if cfg.Resolution == 0 {
		cfg.Resolution = 8
	}
	if cfg.Regularization == 0 {
		cfg.Regularization = 0.1
	}
	if cfg.Workers == 0 {
		cfg.Workers = 8
	}
	if cfg.Quality == 0 {
		cfg.Quality = 90
	}
	return cfg
}

// PlaneCount returns nplanes for the given (type, colorspace) pair, per
// the §4.D table. It returns 0, false for combinations validate rejects.
func PlaneCount(t Type, cs ColorSpace) (int, bool) {
	switch {
	case t == TypePTM && cs == ColorLRGB:
		return 9, true
	case t == TypePTM && cs == ColorRGB:
		return 18, true
	case t == TypeHSH && cs == ColorRGB:
		return 27, true
	case t == TypeSH && cs == ColorRGB:
		return 27, true
	case t == TypeH && cs == ColorRGB:
		return 12, true
	default:
		return 0, false
	}
}

// resolvedPlaneCount returns the effective nplanes for cfg, consulting
// PlaneCount for closed-form bases and cfg.NPlanes/YCCPlanes for the
// data-driven ones.
func (cfg Config) resolvedPlaneCount() (nplanes int, err error) {
	if cfg.ColorSpace.dataDriven() {
		if cfg.ColorSpace == ColorMYCC {
			n := cfg.YCCPlanes[0] + cfg.YCCPlanes[1] + cfg.YCCPlanes[2]
			if n <= 0 {
				return 0, newError(InvalidConfig, "mycc requires positive yccplanes")
			}
			return n, nil
		}
		if cfg.NPlanes <= 0 {
			return 0, newError(InvalidConfig, "mrgb requires a positive nplanes")
		}
		return cfg.NPlanes, nil
	}
	n, ok := PlaneCount(cfg.Type, cfg.ColorSpace)
	if !ok {
		return 0, newError(InvalidConfig, "no closed-form plane count for (%s, %s)", cfg.Type, cfg.ColorSpace)
	}
	return n, nil
}

// validate rejects the ill-defined (type, colorspace) combinations named
// in §4.D: closed-form bases (PTM/HSH/SH/H) only support MRGB's closed-form
// siblings (LRGB/RGB), never the data-driven colorspaces; RBF/BILINEAR are
// only defined for the data-driven colorspaces.
func (cfg Config) validate() error {
	closedForm := cfg.Type == TypePTM || cfg.Type == TypeHSH || cfg.Type == TypeSH || cfg.Type == TypeH
	dataDriven := cfg.Type == TypeRBF || cfg.Type == TypeBilinear

	if closedForm && cfg.ColorSpace.dataDriven() {
		return newError(InvalidConfig, "%s does not support colorspace %s", cfg.Type, cfg.ColorSpace)
	}
	if dataDriven && !cfg.ColorSpace.dataDriven() {
		return newError(InvalidConfig, "%s requires an mrgb/mycc colorspace, got %s", cfg.Type, cfg.ColorSpace)
	}
	if !closedForm && !dataDriven {
		return newError(InvalidConfig, "unknown type %q", cfg.Type)
	}
	if _, err := cfg.resolvedPlaneCount(); err != nil {
		return err
	}
	return nil
}
