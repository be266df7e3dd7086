// Package mesh defines the triangle mesh shared by every regrid stage,
// together with the primitives, transforms, measures, and slicing the
// conversion pipeline is built from. Meshes are treated as values: each
// operation returns a new Mesh and never mutates its receiver.
package mesh

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// Mesh is an indexed triangle mesh. Faces index into Vertices and are wound
// counter-clockwise when seen from outside the solid.
type Mesh struct {
	Vertices []r3.Vec
	Faces    [][3]int
	Name     string // diagnostic label, e.g. "body" or "slab"
}

// New returns a mesh over the given buffers. The buffers are not copied.
func New(name string, vertices []r3.Vec, faces [][3]int) *Mesh {
	return &Mesh{Vertices: vertices, Faces: faces, Name: name}
}

// VertexCount returns the number of vertices.
func (m *Mesh) VertexCount() int {
	return len(m.Vertices)
}

// TriangleCount returns the number of triangles.
func (m *Mesh) TriangleCount() int {
	return len(m.Faces)
}

// IsEmpty returns true if the mesh has no triangles.
func (m *Mesh) IsEmpty() bool {
	return m == nil || len(m.Faces) == 0
}

// Triangle returns the i-th face as a triangle.
func (m *Mesh) Triangle(i int) r3.Triangle {
	f := m.Faces[i]
	return r3.Triangle{m.Vertices[f[0]], m.Vertices[f[1]], m.Vertices[f[2]]}
}

// Clone returns a deep copy of the mesh under a new name.
func (m *Mesh) Clone(name string) *Mesh {
	vs := make([]r3.Vec, len(m.Vertices))
	copy(vs, m.Vertices)
	fs := make([][3]int, len(m.Faces))
	copy(fs, m.Faces)
	return &Mesh{Vertices: vs, Faces: fs, Name: name}
}

// Renamed returns a shallow copy carrying a different name.
func (m *Mesh) Renamed(name string) *Mesh {
	return &Mesh{Vertices: m.Vertices, Faces: m.Faces, Name: name}
}

// Bounds returns the axis-aligned bounding box of the referenced vertices.
// An empty mesh yields the zero box.
func (m *Mesh) Bounds() r3.Box {
	if m.IsEmpty() {
		return r3.Box{}
	}
	inf := math.Inf(1)
	b := r3.Box{
		Min: r3.Vec{X: inf, Y: inf, Z: inf},
		Max: r3.Vec{X: -inf, Y: -inf, Z: -inf},
	}
	for _, f := range m.Faces {
		for _, idx := range f {
			v := m.Vertices[idx]
			b.Min = r3.Vec{X: math.Min(b.Min.X, v.X), Y: math.Min(b.Min.Y, v.Y), Z: math.Min(b.Min.Z, v.Z)}
			b.Max = r3.Vec{X: math.Max(b.Max.X, v.X), Y: math.Max(b.Max.Y, v.Y), Z: math.Max(b.Max.Z, v.Z)}
		}
	}
	return b
}

// MinZ returns the lowest referenced z coordinate.
func (m *Mesh) MinZ() float64 {
	return m.Bounds().Min.Z
}

// Map returns a copy of the mesh with fn applied to every vertex. Faces are
// shared with the receiver since they are never mutated.
func (m *Mesh) Map(fn func(r3.Vec) r3.Vec) *Mesh {
	vs := make([]r3.Vec, len(m.Vertices))
	for i, v := range m.Vertices {
		vs[i] = fn(v)
	}
	return &Mesh{Vertices: vs, Faces: m.Faces, Name: m.Name}
}

// Translate returns the mesh moved by d.
func (m *Mesh) Translate(d r3.Vec) *Mesh {
	return m.Map(func(v r3.Vec) r3.Vec { return r3.Add(v, d) })
}

// RotateZ returns the mesh rotated about the z axis through the origin by
// a multiple of 90 degrees. Quarter turns are applied exactly so that
// axis-aligned faces stay axis-aligned. Other angles fall back to a
// general rotation.
func (m *Mesh) RotateZ(deg int) *Mesh {
	switch ((deg % 360) + 360) % 360 {
	case 0:
		return m
	case 90:
		return m.Map(func(v r3.Vec) r3.Vec { return r3.Vec{X: -v.Y, Y: v.X, Z: v.Z} })
	case 180:
		return m.Map(func(v r3.Vec) r3.Vec { return r3.Vec{X: -v.X, Y: -v.Y, Z: v.Z} })
	case 270:
		return m.Map(func(v r3.Vec) r3.Vec { return r3.Vec{X: v.Y, Y: -v.X, Z: v.Z} })
	}
	rot := r3.NewRotation(float64(deg)*math.Pi/180, r3.Vec{Z: 1})
	return m.Map(rot.Rotate)
}

// RotateZAbout rotates the mesh about the vertical axis through center.
func (m *Mesh) RotateZAbout(deg int, center r3.Vec) *Mesh {
	c := r3.Vec{X: center.X, Y: center.Y}
	return m.Translate(r3.Scale(-1, c)).RotateZ(deg).Translate(c)
}

// RemapZ linearly maps the z range [from0, from1] onto [to0, to1]. Vertices
// outside the source range are extrapolated.
func (m *Mesh) RemapZ(from0, from1, to0, to1 float64) *Mesh {
	scale := (to1 - to0) / (from1 - from0)
	return m.Map(func(v r3.Vec) r3.Vec {
		return r3.Vec{X: v.X, Y: v.Y, Z: to0 + (v.Z-from0)*scale}
	})
}

// Concat merges meshes into one without welding. The result is a valid
// solid only when the inputs are disjoint.
func Concat(name string, meshes ...*Mesh) *Mesh {
	out := &Mesh{Name: name}
	for _, m := range meshes {
		if m == nil {
			continue
		}
		base := len(out.Vertices)
		out.Vertices = append(out.Vertices, m.Vertices...)
		for _, f := range m.Faces {
			out.Faces = append(out.Faces, [3]int{f[0] + base, f[1] + base, f[2] + base})
		}
	}
	return out
}

// Volume returns the signed enclosed volume. It is positive for a closed,
// outward-oriented surface.
func (m *Mesh) Volume() float64 {
	var v float64
	for i := range m.Faces {
		t := m.Triangle(i)
		v += r3.Dot(t[0], r3.Cross(t[1], t[2]))
	}
	return v / 6
}

// SurfaceArea returns the total triangle area.
func (m *Mesh) SurfaceArea() float64 {
	var a float64
	for i := range m.Faces {
		a += m.Triangle(i).Area()
	}
	return a
}

// VectorArea returns the sum of area-weighted face normals. It vanishes for
// any closed surface, including ones with T-junctions.
func (m *Mesh) VectorArea() r3.Vec {
	var s r3.Vec
	for i := range m.Faces {
		s = r3.Add(s, m.Triangle(i).Normal())
	}
	return r3.Scale(0.5, s)
}
