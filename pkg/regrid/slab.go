package regrid

import (
	"fmt"

	"gonum.org/v1/gonum/spatial/r2"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/chazu/regrid/pkg/kernel"
	"github.com/chazu/regrid/pkg/mesh"
)

// capOverhang is how far the floor cap extends past the footprint.
const capOverhang = 1.0

// SlabSpec places the tiled slab under the body.
type SlabSpec struct {
	ZJoin           float64
	Overlap         float64 // slab top = ZJoin - Overlap
	RefHeight       float64 // height of the reference tile slice
	BottomExtension float64 // extra tile height taken below RefHeight
	TileRotate      int     // degrees about the tile's own center
	FloorCap        float64 // flat cap thickness, 0 for none
}

// Top returns the height of the slab top.
func (s SlabSpec) Top() float64 {
	return s.ZJoin - s.Overlap
}

// SliceTile keeps the lowest height millimetres of the reference tile. A
// height at or above the tile's own height returns the tile unchanged.
func SliceTile(k kernel.Kernel, tile *mesh.Mesh, height float64) (*mesh.Mesh, error) {
	b := tile.Bounds()
	if height >= b.Size().Z {
		return tile, nil
	}
	if height <= 0 {
		return nil, fmt.Errorf("reference slice height must be positive, got %g", height)
	}
	out, err := cut(k, tile, b.Min.Z+height, false, "slab")
	if err != nil {
		return nil, err
	}
	if out.IsEmpty() {
		return nil, booleanError("slab", kernel.OpIntersection, errEmptyResult, operandOf("tile", tile))
	}
	return out.Renamed("tile"), nil
}

// BuildSlab instantiates the reference tile once per destination cell,
// centers the grid on the footprint, and lowers it so its top sits at
// spec.Top(). With a floor cap the cells are joined by a flat plate
// reaching down from the top.
func BuildSlab(k kernel.Kernel, tile *mesh.Mesh, g PitchGrid, fp Footprint, spec SlabSpec) (*mesh.Mesh, error) {
	ref, err := SliceTile(k, tile, spec.RefHeight+spec.BottomExtension)
	if err != nil {
		return nil, err
	}
	tb := ref.Bounds()
	ref = ref.RotateZAbout(spec.TileRotate, tb.Center())
	tb = ref.Bounds()
	tc := r2.Vec{X: (tb.Min.X + tb.Max.X) / 2, Y: (tb.Min.Y + tb.Max.Y) / 2}
	dz := spec.Top() - tb.Max.Z

	var cells []*mesh.Mesh
	for _, c := range g.CellCenters(fp.Center()) {
		cells = append(cells, ref.Translate(r3.Vec{X: c.X - tc.X, Y: c.Y - tc.Y, Z: dz}))
	}
	slab := mesh.Concat("slab", cells...)

	if spec.FloorCap <= 0 {
		return slab, nil
	}
	// The cap overhangs the footprint and is trimmed by the crop. Its top
	// sits halfway between the slab top and z_join, clear of the tile tops.
	capTop := spec.Top() + spec.Overlap/2
	capH := max(spec.FloorCap, spec.BottomExtension)
	plate := mesh.Box("floor-cap", r3.Box{
		Min: r3.Vec{X: fp.Rect.Min.X - capOverhang, Y: fp.Rect.Min.Y - capOverhang, Z: spec.Top() - capH},
		Max: r3.Vec{X: fp.Rect.Max.X + capOverhang, Y: fp.Rect.Max.Y + capOverhang, Z: capTop},
	})
	out, err := k.Union(slab, plate)
	if err != nil {
		return nil, booleanError("slab", kernel.OpUnion, err, operandOf("slab", slab), operandOf("floor-cap", plate))
	}
	return out.Renamed("slab"), nil
}
