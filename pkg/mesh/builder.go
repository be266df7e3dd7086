package mesh

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// DefaultWeldTolerance is the grid size used to merge coincident vertices
// when triangle soups are indexed.
const DefaultWeldTolerance = 1e-6

type weldKey struct {
	x, y, z int64
}

// Builder accumulates triangles and welds vertices closer than its
// tolerance.
type Builder struct {
	name  string
	tol   float64
	index map[weldKey][]int
	verts []r3.Vec
	faces [][3]int
}

// NewBuilder returns a Builder welding at tol. A non-positive tol selects
// DefaultWeldTolerance.
func NewBuilder(name string, tol float64) *Builder {
	if tol <= 0 {
		tol = DefaultWeldTolerance
	}
	return &Builder{name: name, tol: tol, index: make(map[weldKey][]int)}
}

// Vertex returns the index of v, adding it when no vertex lies within the
// weld tolerance. Neighbouring cells are searched too, so nearby points on
// either side of a cell boundary still merge.
func (b *Builder) Vertex(v r3.Vec) int {
	k := weldKey{
		x: int64(math.Floor(v.X / b.tol)),
		y: int64(math.Floor(v.Y / b.tol)),
		z: int64(math.Floor(v.Z / b.tol)),
	}
	for dx := int64(-1); dx <= 1; dx++ {
		for dy := int64(-1); dy <= 1; dy++ {
			for dz := int64(-1); dz <= 1; dz++ {
				for _, i := range b.index[weldKey{k.x + dx, k.y + dy, k.z + dz}] {
					if r3.Norm(r3.Sub(b.verts[i], v)) <= b.tol {
						return i
					}
				}
			}
		}
	}
	i := len(b.verts)
	b.verts = append(b.verts, v)
	b.index[k] = append(b.index[k], i)
	return i
}

// Vertices returns the vertices added so far. The slice is shared with the
// builder.
func (b *Builder) Vertices() []r3.Vec {
	return b.verts
}

// Face adds a triangle by vertex indices. Collapsed triangles are dropped.
func (b *Builder) Face(i0, i1, i2 int) {
	if i0 == i1 || i1 == i2 || i0 == i2 {
		return
	}
	b.faces = append(b.faces, [3]int{i0, i1, i2})
}

// Triangle adds a triangle. Triangles that collapse after welding are
// dropped.
func (b *Builder) Triangle(p0, p1, p2 r3.Vec) {
	b.Face(b.Vertex(p0), b.Vertex(p1), b.Vertex(p2))
}

// Polygon adds a convex planar polygon as a triangle fan.
func (b *Builder) Polygon(pts []r3.Vec) {
	for i := 2; i < len(pts); i++ {
		b.Triangle(pts[0], pts[i-1], pts[i])
	}
}

// Mesh returns the accumulated mesh.
func (b *Builder) Mesh() *Mesh {
	return &Mesh{Vertices: b.verts, Faces: b.faces, Name: b.name}
}

// FromTriangles indexes a triangle soup.
func FromTriangles(name string, tris []r3.Triangle) *Mesh {
	b := NewBuilder(name, 0)
	for _, t := range tris {
		b.Triangle(t[0], t[1], t[2])
	}
	return b.Mesh()
}

// Weld returns the mesh re-indexed with coincident vertices merged and
// unreferenced vertices dropped.
func (m *Mesh) Weld(tol float64) *Mesh {
	b := NewBuilder(m.Name, tol)
	for i := range m.Faces {
		t := m.Triangle(i)
		b.Triangle(t[0], t[1], t[2])
	}
	return b.Mesh()
}
