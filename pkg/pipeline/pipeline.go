// Package pipeline runs regrid conversions against files: it loads the
// reference tile and input mesh, runs the converter, writes debug
// artifacts and the output, and verifies the written result.
package pipeline

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/chazu/regrid/pkg/kernel"
	"github.com/chazu/regrid/pkg/kernel/bsp"
	"github.com/chazu/regrid/pkg/mesh"
	"github.com/chazu/regrid/pkg/meshio"
	"github.com/chazu/regrid/pkg/regrid"
)

// Default locations, relative to the working directory.
const (
	DefaultRefTile  = "refs/tile_21_1x1.stl"
	DefaultDebugDir = "debug"
	DefaultOutDir   = "out"
)

// floorPlateThickness is the thickness of the exported floor plane marker.
const floorPlateThickness = 0.2

// Config describes one conversion run.
type Config struct {
	Input   string
	Output  string // empty means DefaultOutput(Input, PitchDst)
	RefTile string // empty means DefaultRefTile
	Format  meshio.Format

	Options regrid.Options
	Verify  bool
	Checks  regrid.VerifyConfig

	ExportDebug    bool
	DebugDir       string // empty means DefaultDebugDir
	DebugNamespace bool   // write debug files under a per-run subdirectory

	Kernel kernel.Kernel      // nil means the BSP kernel
	Log    logrus.FieldLogger // nil discards
}

// Summary reports what a run did. It is returned alongside errors with
// whatever was completed.
type Summary struct {
	RunID      uuid.UUID
	Input      string
	Output     string // empty unless the output was written
	Result     *regrid.Result
	Report     *regrid.VerificationReport
	DebugFiles []string
}

// DefaultOutput returns out/<stem>_<pitch>mm.stl for input.
func DefaultOutput(input string, pitchDst float64) string {
	return filepath.Join(DefaultOutDir, fmt.Sprintf("%s_%gmm.stl", meshio.Stem(input), pitchDst))
}

// ResolveRefTile returns path if it exists, otherwise the same relative path
// next to the running executable, otherwise path unchanged.
func ResolveRefTile(path string) string {
	if path == "" {
		path = DefaultRefTile
	}
	if _, err := os.Stat(path); err == nil || filepath.IsAbs(path) {
		return path
	}
	exe, err := os.Executable()
	if err != nil {
		return path
	}
	alt := filepath.Join(filepath.Dir(exe), path)
	if _, err := os.Stat(alt); err == nil {
		return alt
	}
	return path
}

// LoadRefTile loads the reference tile. Any failure, including an empty
// file, is a *regrid.MissingReferenceTileError.
func LoadRefTile(path string) (*mesh.Mesh, error) {
	tile, err := meshio.Load(path)
	if err == nil && tile.IsEmpty() {
		err = errors.New("tile has no triangles")
	}
	if err != nil {
		return nil, &regrid.MissingReferenceTileError{Path: path, Err: err}
	}
	return tile, nil
}

func (c *Config) defaults() {
	if c.Output == "" {
		c.Output = DefaultOutput(c.Input, c.Options.PitchDst)
	}
	if c.RefTile == "" {
		c.RefTile = DefaultRefTile
	}
	if c.DebugDir == "" {
		c.DebugDir = DefaultDebugDir
	}
	if c.Kernel == nil {
		c.Kernel = bsp.New()
	}
	if c.Log == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		c.Log = l
	}
}

// Run converts cfg.Input. The reference tile is loaded before any geometry
// work. A *regrid.VerificationError means the output was written but
// drifted; every other error means no output was written.
func Run(cfg Config) (*Summary, error) {
	cfg.defaults()
	sum := &Summary{RunID: uuid.New(), Input: cfg.Input}
	log := cfg.Log.WithFields(logrus.Fields{"run": sum.RunID.String(), "input": cfg.Input})

	tile, err := LoadRefTile(cfg.RefTile)
	if err != nil {
		return sum, err
	}
	log.WithFields(logrus.Fields{"path": cfg.RefTile, "triangles": tile.TriangleCount()}).Debug("loaded reference tile")

	in, err := meshio.Load(cfg.Input)
	if err != nil {
		return sum, err
	}
	checkInput(log, in)

	conv := &regrid.Converter{Kernel: cfg.Kernel, Options: cfg.Options, Log: log}
	res, err := conv.Convert(in, tile)
	sum.Result = res

	debugDir := cfg.DebugDir
	if cfg.DebugNamespace {
		debugDir = filepath.Join(debugDir, sum.RunID.String())
	}
	dbg := &debugWriter{dir: debugDir, format: cfg.Format, log: log}
	if err != nil {
		var be *regrid.BooleanOperationError
		if cfg.ExportDebug && errors.As(err, &be) {
			dbg.operands(be)
		}
		sum.DebugFiles = dbg.files
		return sum, err
	}

	if cfg.ExportDebug || cfg.Options.DryRun {
		dbg.intermediates(res)
		log.WithField("dir", debugDir).Warn("debug artifacts are intermediates, not final output")
	}
	sum.DebugFiles = dbg.files
	if cfg.Options.DryRun {
		log.Info("dry run: no output written")
		logSummary(log, res)
		return sum, nil
	}

	if err := meshio.Save(cfg.Output, res.Output, cfg.Format); err != nil {
		return sum, err
	}
	sum.Output = cfg.Output
	log.WithFields(logrus.Fields{
		"path":      cfg.Output,
		"triangles": res.Output.TriangleCount(),
	}).Info("wrote output")

	if cfg.Verify {
		sum.Report, err = verifyWritten(cfg, in, res.ZJoin, log)
		if err != nil {
			logSummary(log, res)
			return sum, err
		}
	}
	logSummary(log, res)
	return sum, nil
}

// verifyWritten reloads the written output so the check covers what is on
// disk, not the in-memory mesh.
func verifyWritten(cfg Config, in *mesh.Mesh, zJoin float64, log logrus.FieldLogger) (*regrid.VerificationReport, error) {
	out, err := meshio.Load(cfg.Output)
	if err != nil {
		return nil, fmt.Errorf("reload output for verification: %w", err)
	}
	r, err := regrid.Verify(cfg.Kernel, in, out, zJoin, cfg.Checks)
	if r != nil {
		entry := log.WithFields(logrus.Fields{
			"max_orig_to_out": r.MaxOrigToOut,
			"max_out_to_orig": r.MaxOutToOrig,
			"p95_orig_to_out": r.P95OrigToOut,
			"p95_out_to_orig": r.P95OutToOrig,
			"tolerance":       r.Tolerance,
		})
		if r.Passed {
			entry.Info("verification passed")
		} else {
			entry.Error("verification failed; output left in place for review")
		}
	}
	return r, err
}

func checkInput(log logrus.FieldLogger, in *mesh.Mesh) {
	e := in.Edges()
	log.WithFields(logrus.Fields{
		"vertices":     in.VertexCount(),
		"triangles":    in.TriangleCount(),
		"boundary":     e.Boundary,
		"non_manifold": e.NonManifold,
	}).Debug("loaded input")
	if err := mesh.CheckSolid(in); err != nil {
		log.WithError(err).Warn("input is not a closed solid; boolean stages may fail")
	}
}

func logSummary(log logrus.FieldLogger, res *regrid.Result) {
	log.WithFields(logrus.Fields{
		"zmin":                     res.ZMin,
		"z_join":                   res.ZJoin,
		"z_cut_body":               res.ZCutBody,
		"effective_replace_height": res.EffectiveReplaceHeight,
		"grid":                     res.Grid.String(),
		"footprint_preserved":      res.FootprintPreserved,
	}).Info("run summary")
}

// FloorPlate returns a thin plate over m's XY bounds with its bottom at z,
// for inspecting a detected floor next to the mesh.
func FloorPlate(m *mesh.Mesh, z float64) *mesh.Mesh {
	b := m.Bounds()
	return mesh.Box("floor_plane", r3.Box{
		Min: r3.Vec{X: b.Min.X, Y: b.Min.Y, Z: z},
		Max: r3.Vec{X: b.Max.X, Y: b.Max.Y, Z: z + floorPlateThickness},
	})
}
