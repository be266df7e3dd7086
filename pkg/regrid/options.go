// Package regrid implements the conversion of storage-bin meshes between
// modular grid pitches. The stages (floor detection, body cut, slab
// tiling, footprint crop, union, verification) are pure Mesh to Mesh
// transformations over a kernel.Kernel, composed by Converter.
package regrid

import (
	"fmt"
)

// Default pitches of the reference deployment.
const (
	DefaultPitchSrc = 42.0
	DefaultPitchDst = 21.0
)

// CropMode selects the prism the slab is cropped to.
type CropMode string

const (
	// CropBBox crops to the body's XY bounding rectangle.
	CropBBox CropMode = "bbox"
	// CropOutline crops to the extruded outline of the body's lowest layer.
	CropOutline CropMode = "outline"
)

// FloorConfig holds the floor detection thresholds. They are empirical and
// exposed so unusual geometries can be tuned.
type FloorConfig struct {
	SearchCeiling float64 // scan at most this far above z_min (mm)
	StartOffset   float64 // first sample above z_min (mm)
	Step          float64 // sample spacing (mm)
	AreaRatio     float64 // fraction of the max area a floor sample must reach
	StableSteps   int     // consecutive samples forming the stability window
	StabilityTol  float64 // allowed window spread relative to the max area
}

// DefaultFloorConfig returns the default detection thresholds.
func DefaultFloorConfig() FloorConfig {
	return FloorConfig{
		SearchCeiling: 15,
		StartOffset:   0.5,
		Step:          0.2,
		AreaRatio:     0.9,
		StableSteps:   3,
		StabilityTol:  0.02,
	}
}

// Validate checks the thresholds for usable values.
func (c FloorConfig) Validate() error {
	switch {
	case c.SearchCeiling <= 0:
		return fmt.Errorf("floor search ceiling must be positive, got %g", c.SearchCeiling)
	case c.StartOffset < 0:
		return fmt.Errorf("floor start offset must not be negative, got %g", c.StartOffset)
	case c.Step <= 0:
		return fmt.Errorf("floor step must be positive, got %g", c.Step)
	case c.AreaRatio <= 0 || c.AreaRatio > 1:
		return fmt.Errorf("floor area ratio must be in (0, 1], got %g", c.AreaRatio)
	case c.StableSteps < 1:
		return fmt.Errorf("floor stability window must be at least 1 step, got %d", c.StableSteps)
	case c.StabilityTol < 0:
		return fmt.Errorf("floor stability tolerance must not be negative, got %g", c.StabilityTol)
	}
	return nil
}

// VerifyConfig controls the surface comparison above the join plane.
type VerifyConfig struct {
	Tolerance float64 // max allowed distance in either direction (mm)
	Samples   int     // surface points sampled per mesh
	Seed      uint64  // sampling seed; runs are reproducible
	Workers   int     // parallel query workers, 0 means GOMAXPROCS
}

// DefaultVerifyConfig returns the default verification settings.
func DefaultVerifyConfig() VerifyConfig {
	return VerifyConfig{
		Tolerance: 0.05,
		Samples:   10000,
		Seed:      1,
	}
}

// Validate checks the settings for usable values.
func (c VerifyConfig) Validate() error {
	if c.Tolerance < 0 {
		return fmt.Errorf("verify tolerance must not be negative, got %g", c.Tolerance)
	}
	if c.Samples < 1 {
		return fmt.Errorf("verify samples must be positive, got %d", c.Samples)
	}
	if c.Workers < 0 {
		return fmt.Errorf("verify workers must not be negative, got %d", c.Workers)
	}
	return nil
}

// Options configures a conversion run.
type Options struct {
	PreserveFloor   bool     // detect the floor; otherwise cut at ReplaceHeight
	ReplaceHeight   float64  // fixed-height mode cut above z_min (mm)
	FloorEpsilon    float64  // body cut bias below z_join (mm)
	Overlap         float64  // slab top sits this far below z_join (mm)
	RefHeight       float64  // reference tile slice height, 0 means ReplaceHeight
	FloorCap        float64  // flat cap thickness in fixed-height mode (mm)
	BottomExtension float64  // extra slab depth below the original bottom (mm)
	Crop            CropMode // footprint prism shape
	Modules         Modules  // source module override, zero means infer
	Rotate          int      // input rotation about z in degrees
	TileRotate      int      // reference tile rotation about its center
	PitchSrc        float64
	PitchDst        float64
	ModuleTolerance float64 // inferred footprint mismatch allowed (mm)
	TileTolerance   float64 // reference tile footprint mismatch allowed (mm)
	DryRun          bool    // stop before the union
	Floor           FloorConfig
}

// DefaultOptions returns the defaults of the reference deployment.
func DefaultOptions() Options {
	return Options{
		PreserveFloor:   true,
		ReplaceHeight:   7,
		FloorEpsilon:    0.1,
		Overlap:         0.05,
		FloorCap:        1.6,
		Crop:            CropBBox,
		PitchSrc:        DefaultPitchSrc,
		PitchDst:        DefaultPitchDst,
		ModuleTolerance: 2.0,
		TileTolerance:   1.5,
		Floor:           DefaultFloorConfig(),
	}
}

// Validate checks option ranges and cross-field constraints.
func (o Options) Validate() error {
	switch {
	case o.PitchSrc <= 0 || o.PitchDst <= 0:
		return fmt.Errorf("pitches must be positive, got src=%g dst=%g", o.PitchSrc, o.PitchDst)
	case o.ReplaceHeight <= 0:
		return fmt.Errorf("replace height must be positive, got %g", o.ReplaceHeight)
	case o.FloorEpsilon <= 0:
		return fmt.Errorf("floor epsilon must be positive, got %g", o.FloorEpsilon)
	case o.Overlap <= 0 || o.Overlap >= o.FloorEpsilon:
		return fmt.Errorf("overlap must be in (0, floor epsilon=%g), got %g", o.FloorEpsilon, o.Overlap)
	case o.RefHeight < 0:
		return fmt.Errorf("reference height must not be negative, got %g", o.RefHeight)
	case o.FloorCap < 0:
		return fmt.Errorf("floor cap must not be negative, got %g", o.FloorCap)
	case o.BottomExtension < 0:
		return fmt.Errorf("bottom extension must not be negative, got %g", o.BottomExtension)
	case o.Crop != CropBBox && o.Crop != CropOutline:
		return fmt.Errorf("unknown crop mode %q (want %s or %s)", o.Crop, CropBBox, CropOutline)
	case o.Rotate%90 != 0 || o.TileRotate%90 != 0:
		return fmt.Errorf("rotations must be multiples of 90 degrees, got %d and %d", o.Rotate, o.TileRotate)
	case o.ModuleTolerance < 0 || o.TileTolerance < 0:
		return fmt.Errorf("tolerances must not be negative, got module=%g tile=%g", o.ModuleTolerance, o.TileTolerance)
	}
	if !o.Modules.Auto() {
		if err := o.Modules.Validate(); err != nil {
			return err
		}
	}
	if o.PreserveFloor {
		if err := o.Floor.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// refHeight returns the requested reference slice height.
func (o Options) refHeight() float64 {
	if o.RefHeight > 0 {
		return o.RefHeight
	}
	return o.ReplaceHeight
}
