package regrid

import (
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/chazu/regrid/pkg/kernel"
	"github.com/chazu/regrid/pkg/mesh"
)

// Half-space boxes overhang the mesh by these margins.
const (
	halfSpacePadXY = 50.0
	halfSpacePadZ  = 200.0
)

// Plane is a horizontal join plane. Cuts are biased Epsilon below Z so
// faces lying in the plane stay on the kept side.
type Plane struct {
	Z       float64
	Epsilon float64
}

// CutZ returns the biased cut height.
func (p Plane) CutZ() float64 {
	return p.Z - p.Epsilon
}

// halfSpace returns a box covering m's footprint from z upward (above) or
// downward.
func halfSpace(m *mesh.Mesh, z float64, above bool) *mesh.Mesh {
	b := m.Bounds()
	lo := r3.Vec{X: b.Min.X - halfSpacePadXY/2, Y: b.Min.Y - halfSpacePadXY/2}
	hi := r3.Vec{X: b.Max.X + halfSpacePadXY/2, Y: b.Max.Y + halfSpacePadXY/2}
	if above {
		lo.Z, hi.Z = z, max(b.Max.Z, z)+halfSpacePadZ
	} else {
		lo.Z, hi.Z = min(b.Min.Z, z)-halfSpacePadZ, z
	}
	return mesh.Box("half-space", r3.Box{Min: lo, Max: hi})
}

// KeepAbove returns the part of m with z >= zCut. Straddling triangles are
// re-triangulated at the cut by the kernel.
func KeepAbove(k kernel.Kernel, m *mesh.Mesh, zCut float64) (*mesh.Mesh, error) {
	return cut(k, m, zCut, true, "cut")
}

// KeepBelow returns the part of m with z < zCut.
func KeepBelow(k kernel.Kernel, m *mesh.Mesh, zCut float64) (*mesh.Mesh, error) {
	return cut(k, m, zCut, false, "cut")
}

func cut(k kernel.Kernel, m *mesh.Mesh, zCut float64, above bool, stage string) (*mesh.Mesh, error) {
	hs := halfSpace(m, zCut, above)
	out, err := k.Intersection(m, hs)
	if err != nil {
		return nil, booleanError(stage, kernel.OpIntersection, err, operandOf("input", m), operandOf("half-space", hs))
	}
	return out, nil
}
