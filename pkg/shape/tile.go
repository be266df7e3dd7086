// Package shape generates reference tiles and sample bins. Tiles and
// polyhedral bins are exact (built from lofts and kernel booleans); smooth
// bins are tessellated from signed distance fields.
package shape

import (
	"fmt"

	"gonum.org/v1/gonum/spatial/r2"

	"github.com/chazu/regrid/pkg/mesh"
)

// Interface foot profile, bottom to top. The foot narrows by Clearance on
// each side of the pitch and steps in through two 45 degree chamfers.
const (
	Clearance    = 0.25
	lowerChamfer = 0.8
	straightRise = 1.8
	upperChamfer = 2.15
)

// FootHeight is the height of the chamfered part of the foot.
const FootHeight = lowerChamfer + straightRise + upperChamfer

// DefaultTileHeight is the height of a generated reference tile.
const DefaultTileHeight = 10.0

// ReferenceTile returns a 1x1 interface tile for the given pitch: the
// chamfered foot topped by a straight block up to height. The tile stands
// on z=0 and is centered on (pitch/2, pitch/2).
func ReferenceTile(pitch, height float64) (*mesh.Mesh, error) {
	if height <= FootHeight {
		return nil, fmt.Errorf("tile height %.2f mm must exceed the foot height %.2f mm", height, FootHeight)
	}
	top := pitch - 2*Clearance
	bottom := top - 2*(lowerChamfer+upperChamfer)
	if bottom <= 0 {
		return nil, fmt.Errorf("pitch %.2f mm is too small for the interface profile", pitch)
	}
	mid := bottom + 2*lowerChamfer
	return mesh.Loft(fmt.Sprintf("tile_%g_1x1", pitch), r2.Vec{X: pitch / 2, Y: pitch / 2}, []mesh.Level{
		{Z: 0, Width: bottom, Depth: bottom},
		{Z: lowerChamfer, Width: mid, Depth: mid},
		{Z: lowerChamfer + straightRise, Width: mid, Depth: mid},
		{Z: FootHeight, Width: top, Depth: top},
		{Z: height, Width: top, Depth: top},
	})
}
