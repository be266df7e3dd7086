package pipeline

import (
	"io"

	"github.com/sirupsen/logrus"

	"github.com/chazu/regrid/pkg/kernel"
	"github.com/chazu/regrid/pkg/kernel/bsp"
	"github.com/chazu/regrid/pkg/meshio"
	"github.com/chazu/regrid/pkg/regrid"
)

// FloorConfig describes a floor-only run.
type FloorConfig struct {
	Input  string
	Output string // floor plate path, empty means debug/floor_plane.stl; "-" skips it
	Format meshio.Format
	Rotate int
	Floor  regrid.FloorConfig

	Kernel kernel.Kernel
	Log    logrus.FieldLogger
}

// Floor runs floor detection on cfg.Input and writes a thin plate at the
// detected height. A failed detection still returns the partial result
// with its area trace.
func Floor(cfg FloorConfig) (*regrid.FloorResult, error) {
	if cfg.Output == "" {
		cfg.Output = DefaultDebugDir + "/floor_plane.stl"
	}
	if cfg.Kernel == nil {
		cfg.Kernel = bsp.New()
	}
	if cfg.Log == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		cfg.Log = l
	}
	log := cfg.Log.WithField("input", cfg.Input)

	in, err := meshio.Load(cfg.Input)
	if err != nil {
		return nil, err
	}
	in = in.RotateZ(cfg.Rotate)
	checkInput(log, in)

	fr, err := regrid.DetectFloor(cfg.Kernel, in, cfg.Floor)
	if err != nil {
		return fr, err
	}
	log.WithFields(logrus.Fields{
		"zmin":      fr.ZMin,
		"z_floor":   fr.ZFloor,
		"max_area":  fr.MaxArea,
		"stability": fr.Stability,
	}).Info("detected floor")

	if cfg.Output == "-" {
		return fr, nil
	}
	if err := meshio.Save(cfg.Output, FloorPlate(in, fr.ZFloor), cfg.Format); err != nil {
		return fr, err
	}
	log.WithField("path", cfg.Output).Info("wrote floor plate")
	return fr, nil
}
