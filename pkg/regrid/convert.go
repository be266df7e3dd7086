package regrid

import (
	"io"
	"math"

	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/spatial/r2"

	"github.com/chazu/regrid/pkg/kernel"
	"github.com/chazu/regrid/pkg/mesh"
)

// footprintTol is the XY drift allowed between body and output footprints.
const footprintTol = 1e-4

// Result holds the heights, grid, and intermediate meshes of a conversion.
type Result struct {
	ZMin                   float64
	ZFloor                 float64 // detected floor, 0 in fixed-height mode
	ZJoin                  float64
	ZCutBody               float64
	EffectiveReplaceHeight float64
	RefHeight              float64 // reference slice height after clamping
	Floor                  *FloorResult
	Grid                   PitchGrid
	Footprint              Footprint

	Input  *mesh.Mesh // input after rotation
	Body   *mesh.Mesh
	Slab   *mesh.Mesh // cropped
	Output *mesh.Mesh // nil on dry runs

	FootprintPreserved bool
	DryRun             bool
}

// Converter runs the conversion stages in order. It performs no file I/O.
type Converter struct {
	Kernel  kernel.Kernel
	Options Options
	Log     logrus.FieldLogger
}

// NewConverter returns a Converter with a discarding logger.
func NewConverter(k kernel.Kernel, o Options) *Converter {
	return &Converter{Kernel: k, Options: o, Log: discardLogger()}
}

func discardLogger() logrus.FieldLogger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func (c *Converter) log() logrus.FieldLogger {
	if c.Log == nil {
		return discardLogger()
	}
	return c.Log
}

// Convert converts input using tile as the destination reference tile.
// On failure the partially filled Result is returned with the error so
// callers can report the floor trace or export intermediates.
func (c *Converter) Convert(input, tile *mesh.Mesh) (*Result, error) {
	o := c.Options
	k := c.Kernel
	log := c.log()
	if err := o.Validate(); err != nil {
		return nil, err
	}
	if err := ValidateTilePitch(tile, o.PitchDst, o.TileTolerance); err != nil {
		return nil, err
	}

	res := &Result{DryRun: o.DryRun}
	m := input.RotateZ(o.Rotate)
	res.Input = m
	res.ZMin = m.MinZ()

	if o.PreserveFloor {
		fr, err := DetectFloor(k, m, o.Floor)
		res.Floor = fr
		if err != nil {
			return res, err
		}
		res.ZFloor = fr.ZFloor
		res.ZJoin = fr.ZFloor
		log.WithFields(logrus.Fields{
			"z_floor":   fr.ZFloor,
			"stability": fr.Stability,
		}).Info("detected interior floor")
	} else {
		res.ZJoin = res.ZMin + o.ReplaceHeight
		log.WithField("z_join", res.ZJoin).Info("using fixed replace height")
	}
	plane := Plane{Z: res.ZJoin, Epsilon: o.FloorEpsilon}
	res.ZCutBody = plane.CutZ()

	body, err := KeepAbove(k, m, res.ZCutBody)
	if err == nil && body.IsEmpty() {
		err = booleanError("cut", kernel.OpIntersection, errEmptyResult, operandOf("input", m))
	}
	if err != nil {
		return res, err
	}
	res.Body = body.Renamed("body")
	log.WithFields(logrus.Fields{
		"z_cut_body": res.ZCutBody,
		"triangles":  body.TriangleCount(),
	}).Debug("cut body")

	fp, err := NewFootprint(k, res.Body, o.Crop)
	if err != nil {
		return res, err
	}
	res.Footprint = fp

	res.Grid, err = NewPitchGrid(fp.Rect, o)
	if err != nil {
		return res, err
	}
	log.WithField("grid", res.Grid.String()).Info("resolved module grid")

	res.EffectiveReplaceHeight = res.ZJoin - res.ZMin
	res.RefHeight = o.refHeight()
	if res.RefHeight > res.EffectiveReplaceHeight {
		res.RefHeight = res.EffectiveReplaceHeight
		log.WithField("ref_height", res.RefHeight).Warn("reference height clamped to effective replace height")
	}

	spec := SlabSpec{
		ZJoin:           res.ZJoin,
		Overlap:         o.Overlap,
		RefHeight:       res.RefHeight,
		BottomExtension: o.BottomExtension,
		TileRotate:      o.TileRotate,
	}
	if !o.PreserveFloor {
		spec.FloorCap = o.FloorCap
	}
	slab, err := BuildSlab(k, tile, res.Grid, fp, spec)
	if err != nil {
		return res, err
	}
	if res.Slab, err = CropToFootprint(k, slab, fp, res.ZJoin); err != nil {
		return res, err
	}
	res.FootprintPreserved = within(footprintOf(res.Slab), fp)
	log.WithFields(logrus.Fields{
		"slab_top":  spec.Top(),
		"triangles": res.Slab.TriangleCount(),
	}).Debug("built slab")

	if o.DryRun {
		log.Info("dry run: union skipped, intermediates are not final output")
		return res, nil
	}

	if res.Output, err = Union(k, res.Body, res.Slab); err != nil {
		return res, err
	}
	res.FootprintPreserved = res.FootprintPreserved && sameRect(footprintOf(res.Output), fp)
	log.WithField("triangles", res.Output.TriangleCount()).Info("merged body and slab")
	return res, nil
}

// within reports whether r lies inside the footprint rectangle.
func within(r r2.Box, fp Footprint) bool {
	return r.Min.X >= fp.Rect.Min.X-footprintTol && r.Min.Y >= fp.Rect.Min.Y-footprintTol &&
		r.Max.X <= fp.Rect.Max.X+footprintTol && r.Max.Y <= fp.Rect.Max.Y+footprintTol
}

// sameRect reports whether r matches the footprint rectangle.
func sameRect(r r2.Box, fp Footprint) bool {
	return math.Abs(r.Min.X-fp.Rect.Min.X) <= footprintTol &&
		math.Abs(r.Min.Y-fp.Rect.Min.Y) <= footprintTol &&
		math.Abs(r.Max.X-fp.Rect.Max.X) <= footprintTol &&
		math.Abs(r.Max.Y-fp.Rect.Max.Y) <= footprintTol
}
