// Package bsp provides a pure-Go geometry kernel that evaluates boolean
// operations on closed triangle meshes with binary space partitioning
// trees. Results are exact up to Epsilon. Before triangulation every vertex
// lying on a polygon edge is inserted into that edge, so results come back
// as welded, closed manifolds without T-junctions.
package bsp

import (
	"github.com/chazu/regrid/pkg/kernel"
	"github.com/chazu/regrid/pkg/mesh"
)

// Compile-time interface check.
var _ kernel.Kernel = (*Kernel)(nil)

// Kernel implements kernel.Kernel with BSP-tree CSG.
type Kernel struct{}

// New creates a BSP kernel.
func New() *Kernel {
	return &Kernel{}
}

// Union returns the region inside a or b.
func (k *Kernel) Union(a, b *mesh.Mesh) (*mesh.Mesh, error) {
	if err := kernel.CheckOperands(a, b); err != nil {
		return nil, err
	}
	if disjoint(a, b) {
		return mesh.Concat(a.Name+"+"+b.Name, a, b), nil
	}
	na, nb := newNode(toPolygons(a)), newNode(toPolygons(b))
	na.clipTo(nb)
	nb.clipTo(na)
	nb.invert()
	nb.clipTo(na)
	nb.invert()
	na.build(nb.allPolygons())
	return fromPolygons(a.Name+"+"+b.Name, na.allPolygons()), nil
}

// Difference returns the region inside a and outside b.
func (k *Kernel) Difference(a, b *mesh.Mesh) (*mesh.Mesh, error) {
	if err := kernel.CheckOperands(a, b); err != nil {
		return nil, err
	}
	if disjoint(a, b) {
		return a.Clone(a.Name + "-" + b.Name), nil
	}
	na, nb := newNode(toPolygons(a)), newNode(toPolygons(b))
	na.invert()
	na.clipTo(nb)
	nb.clipTo(na)
	nb.invert()
	nb.clipTo(na)
	nb.invert()
	na.build(nb.allPolygons())
	na.invert()
	return fromPolygons(a.Name+"-"+b.Name, na.allPolygons()), nil
}

// Intersection returns the region inside both a and b. Disjoint operands
// yield an empty mesh.
func (k *Kernel) Intersection(a, b *mesh.Mesh) (*mesh.Mesh, error) {
	if err := kernel.CheckOperands(a, b); err != nil {
		return nil, err
	}
	name := a.Name + "&" + b.Name
	if disjoint(a, b) {
		return &mesh.Mesh{Name: name}, nil
	}
	na, nb := newNode(toPolygons(a)), newNode(toPolygons(b))
	na.invert()
	nb.clipTo(na)
	nb.invert()
	na.clipTo(nb)
	nb.clipTo(na)
	na.build(nb.allPolygons())
	na.invert()
	return fromPolygons(name, na.allPolygons()), nil
}

// CrossSection slices m at height z.
func (k *Kernel) CrossSection(m *mesh.Mesh, z float64) *mesh.Section {
	return mesh.Slice(m, z)
}

// disjoint reports whether the bounding boxes of a and b are separated by
// more than Epsilon on some axis.
func disjoint(a, b *mesh.Mesh) bool {
	ba, bb := a.Bounds(), b.Bounds()
	return ba.Max.X < bb.Min.X-Epsilon || bb.Max.X < ba.Min.X-Epsilon ||
		ba.Max.Y < bb.Min.Y-Epsilon || bb.Max.Y < ba.Min.Y-Epsilon ||
		ba.Max.Z < bb.Min.Z-Epsilon || bb.Max.Z < ba.Min.Z-Epsilon
}
