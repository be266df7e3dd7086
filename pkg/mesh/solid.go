package mesh

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// closureTolerance bounds |vector area| / surface area for a surface to
// count as closed.
const closureTolerance = 1e-6

// SolidError reports why a mesh cannot be used as a boolean operand.
type SolidError struct {
	Name   string
	Reason string
}

func (e *SolidError) Error() string {
	if e.Name != "" {
		return fmt.Sprintf("mesh %q is not a valid solid: %s", e.Name, e.Reason)
	}
	return "mesh is not a valid solid: " + e.Reason
}

// CheckSolid verifies that m looks like a closed, outward-oriented solid.
// Closure is tested geometrically (the vector area of a closed surface is
// zero) so that T-junctions left by earlier boolean operations pass.
func CheckSolid(m *Mesh) error {
	if m.IsEmpty() {
		return &SolidError{Name: meshName(m), Reason: "no triangles"}
	}
	for i, v := range m.Vertices {
		if math.IsNaN(v.X+v.Y+v.Z) || math.IsInf(v.X+v.Y+v.Z, 0) {
			return &SolidError{Name: m.Name, Reason: fmt.Sprintf("vertex %d is not finite", i)}
		}
	}
	for i, f := range m.Faces {
		for _, idx := range f {
			if idx < 0 || idx >= len(m.Vertices) {
				return &SolidError{Name: m.Name, Reason: fmt.Sprintf("face %d references vertex %d of %d", i, idx, len(m.Vertices))}
			}
		}
	}
	area := m.SurfaceArea()
	if area <= 0 {
		return &SolidError{Name: m.Name, Reason: "zero surface area"}
	}
	if open := r3.Norm(m.VectorArea()) / area; open > closureTolerance {
		return &SolidError{Name: m.Name, Reason: fmt.Sprintf("surface is open (vector area ratio %.3g)", open)}
	}
	if vol := m.Volume(); vol <= 0 {
		return &SolidError{Name: m.Name, Reason: fmt.Sprintf("non-positive volume %.6g (inverted or flat)", vol)}
	}
	return nil
}

// CheckManifold verifies that every edge of m is shared by exactly two
// consistently oriented faces. Boolean results must pass it before they
// are used or written.
func CheckManifold(m *Mesh) error {
	s := m.Edges()
	if s.Manifold() {
		return nil
	}
	return &SolidError{
		Name: meshName(m),
		Reason: fmt.Sprintf("not a closed manifold: %d boundary, %d non-manifold, %d misoriented edges",
			s.Boundary, s.NonManifold, s.Misoriented),
	}
}

func meshName(m *Mesh) string {
	if m == nil {
		return ""
	}
	return m.Name
}

// EdgeStats summarizes the index topology of a mesh.
type EdgeStats struct {
	Edges       int // distinct undirected edges
	Boundary    int // edges used by exactly one face
	NonManifold int // edges used by more than two faces
	Misoriented int // edges traversed twice in the same direction
}

// Manifold reports whether every edge is shared by exactly two
// consistently oriented faces.
func (s EdgeStats) Manifold() bool {
	return s.Boundary == 0 && s.NonManifold == 0 && s.Misoriented == 0
}

// Edges computes edge statistics over the face indices. Meshes should be
// welded first; unwelded soups report every edge as boundary.
func (m *Mesh) Edges() EdgeStats {
	type edge struct{ a, b int }
	directed := make(map[edge]int)
	for _, f := range m.Faces {
		for j := 0; j < 3; j++ {
			directed[edge{f[j], f[(j+1)%3]}]++
		}
	}
	var s EdgeStats
	seen := make(map[edge]bool)
	for e, n := range directed {
		key := e
		if key.a > key.b {
			key = edge{e.b, e.a}
		}
		if seen[key] {
			continue
		}
		seen[key] = true
		s.Edges++
		rev := directed[edge{e.b, e.a}]
		switch total := n + rev; {
		case total == 1:
			s.Boundary++
		case total > 2:
			s.NonManifold++
		case n == 2 || rev == 2:
			s.Misoriented++
		}
	}
	return s
}
