package regrid

import (
	"fmt"

	"gonum.org/v1/gonum/spatial/r2"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/chazu/regrid/pkg/kernel"
	"github.com/chazu/regrid/pkg/mesh"
)

// outlineLayer is the thickness of the body layer whose outline is
// extruded in CropOutline mode.
const outlineLayer = 0.2

// cropMargin extends the crop prism below the slab.
const cropMargin = 2.5

// Footprint is the body's XY extent. It is computed once from the body and
// reused for alignment and cropping.
type Footprint struct {
	Rect r2.Box

	// outline is the body's lowest layer spanning [outlineZ0, outlineZ1],
	// set only in CropOutline mode.
	outline              *mesh.Mesh
	outlineZ0, outlineZ1 float64
}

// NewFootprint measures body. In CropOutline mode the lowest layer of the
// body is cut out with the kernel so the crop follows its exact outline.
func NewFootprint(k kernel.Kernel, body *mesh.Mesh, mode CropMode) (Footprint, error) {
	fp := Footprint{Rect: footprintOf(body)}
	if mode != CropOutline {
		return fp, nil
	}
	z0 := body.MinZ()
	layer, err := cut(k, body, z0+outlineLayer, false, "crop")
	if err != nil {
		return Footprint{}, err
	}
	if layer.IsEmpty() {
		return Footprint{}, booleanError("crop", kernel.OpIntersection, fmt.Errorf("outline layer: %w", errEmptyResult), operandOf("body", body))
	}
	fp.outline = layer.Renamed("outline")
	fp.outlineZ0, fp.outlineZ1 = z0, z0+outlineLayer
	return fp, nil
}

// Center returns the footprint center, the origin the slab grid is aligned
// to.
func (f Footprint) Center() r2.Vec {
	return r2.Scale(0.5, r2.Add(f.Rect.Min, f.Rect.Max))
}

// Size returns the footprint width and depth.
func (f Footprint) Size() r2.Vec {
	return f.Rect.Size()
}

// Prism returns the footprint extruded over [z0, z1].
func (f Footprint) Prism(z0, z1 float64) *mesh.Mesh {
	if f.outline != nil {
		return f.outline.RemapZ(f.outlineZ0, f.outlineZ1, z0, z1).Renamed("footprint")
	}
	return mesh.Box("footprint", r3.Box{
		Min: r3.Vec{X: f.Rect.Min.X, Y: f.Rect.Min.Y, Z: z0},
		Max: r3.Vec{X: f.Rect.Max.X, Y: f.Rect.Max.Y, Z: z1},
	})
}

// CropToFootprint intersects slab with the footprint prism spanning from
// below the slab up to zJoin, so the slab neither overhangs nor falls
// short of the body outline.
func CropToFootprint(k kernel.Kernel, slab *mesh.Mesh, fp Footprint, zJoin float64) (*mesh.Mesh, error) {
	prism := fp.Prism(slab.MinZ()-cropMargin, zJoin)
	out, err := k.Intersection(slab, prism)
	if err == nil && out.IsEmpty() {
		err = errEmptyResult
	}
	if err == nil {
		err = mesh.CheckSolid(out)
	}
	if err == nil {
		err = mesh.CheckManifold(out)
	}
	if err != nil {
		return nil, booleanError("crop", kernel.OpIntersection, err, operandOf("slab", slab), operandOf("footprint", prism))
	}
	return out.Renamed("slab"), nil
}
