//go:build manifold

// Package manifold provides a CGo-based geometry kernel binding to the
// Manifold library (https://github.com/elalish/manifold). Manifold provides
// guaranteed-manifold mesh boolean operations.
//
// This package requires the Manifold C library (manifoldc) to be installed.
// Build with: go build -tags=manifold
package manifold

/*
#cgo CFLAGS: -I/usr/local/include
#cgo LDFLAGS: -L/usr/local/lib -lmanifoldc

#include <stdlib.h>
#include <manifold/manifoldc.h>
*/
import "C"

import (
	"fmt"
	"runtime"
	"unsafe"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/chazu/regrid/pkg/kernel"
	"github.com/chazu/regrid/pkg/mesh"
)

// Compile-time interface check.
var _ kernel.Kernel = (*ManifoldKernel)(nil)

// solid wraps a C ManifoldManifold pointer.
type solid struct {
	ptr *C.ManifoldManifold
}

// newSolid wraps a C ManifoldManifold pointer with Go-side finalizer
// for automatic memory management.
func newSolid(ptr *C.ManifoldManifold) *solid {
	s := &solid{ptr: ptr}
	runtime.SetFinalizer(s, func(s *solid) {
		if s.ptr != nil {
			C.manifold_delete_manifold(s.ptr)
			s.ptr = nil
		}
	})
	return s
}

// ManifoldKernel implements kernel.Kernel using the Manifold C library.
type ManifoldKernel struct{}

// New creates a new ManifoldKernel.
func New() (kernel.Kernel, error) {
	return &ManifoldKernel{}, nil
}

// fromMesh uploads m as MeshGL and converts it to a manifold. Manifold
// rejects inputs that are not closed 2-manifolds, which is reported as an
// OperandError by the caller.
func fromMesh(m *mesh.Mesh) (*solid, error) {
	w := m.Weld(0)
	if w.IsEmpty() {
		return nil, &mesh.SolidError{Name: m.Name, Reason: "no triangles"}
	}
	props := make([]float32, 0, 3*len(w.Vertices))
	for _, v := range w.Vertices {
		props = append(props, float32(v.X), float32(v.Y), float32(v.Z))
	}
	tris := make([]uint32, 0, 3*len(w.Faces))
	for _, f := range w.Faces {
		tris = append(tris, uint32(f[0]), uint32(f[1]), uint32(f[2]))
	}

	gl := C.manifold_meshgl(unsafe.Pointer(C.manifold_alloc_meshgl()),
		(*C.float)(unsafe.Pointer(&props[0])), C.size_t(len(w.Vertices)), 3,
		(*C.uint32_t)(unsafe.Pointer(&tris[0])), C.size_t(len(w.Faces)),
	)
	defer C.manifold_delete_meshgl(gl)

	s := newSolid(C.manifold_of_meshgl(unsafe.Pointer(C.manifold_alloc_manifold()), gl))
	if status := C.manifold_status(s.ptr); status != C.MANIFOLD_NO_ERROR {
		return nil, &mesh.SolidError{Name: m.Name, Reason: fmt.Sprintf("manifold status %d", int(status))}
	}
	return s, nil
}

// toMesh extracts a triangle mesh using Manifold's MeshGL format. The
// first three vertex properties are always position.
func toMesh(name string, s *solid) (*mesh.Mesh, error) {
	gl := C.manifold_get_meshgl(unsafe.Pointer(C.manifold_alloc_meshgl()), s.ptr)
	defer C.manifold_delete_meshgl(gl)

	numVert := int(C.manifold_meshgl_num_vert(gl))
	numTri := int(C.manifold_meshgl_num_tri(gl))
	if numVert == 0 || numTri == 0 {
		return &mesh.Mesh{Name: name}, nil
	}
	numProp := int(C.manifold_meshgl_num_prop(gl))
	if numProp < 3 {
		return nil, fmt.Errorf("manifold: %d vertex properties, want at least 3", numProp)
	}

	propData := make([]float32, numVert*numProp)
	C.manifold_meshgl_vert_properties((*C.float)(unsafe.Pointer(&propData[0])), gl)
	indices := make([]uint32, numTri*3)
	C.manifold_meshgl_tri_verts((*C.uint32_t)(unsafe.Pointer(&indices[0])), gl)

	out := &mesh.Mesh{Name: name, Vertices: make([]r3.Vec, numVert), Faces: make([][3]int, numTri)}
	for i := range out.Vertices {
		base := i * numProp
		out.Vertices[i] = r3.Vec{X: float64(propData[base]), Y: float64(propData[base+1]), Z: float64(propData[base+2])}
	}
	for i := range out.Faces {
		out.Faces[i] = [3]int{int(indices[3*i]), int(indices[3*i+1]), int(indices[3*i+2])}
	}
	return out, nil
}

type binaryOp func(mem unsafe.Pointer, a, b *C.ManifoldManifold) *C.ManifoldManifold

func (k *ManifoldKernel) apply(name string, a, b *mesh.Mesh, op binaryOp) (*mesh.Mesh, error) {
	if err := kernel.CheckOperands(a, b); err != nil {
		return nil, err
	}
	sa, err := fromMesh(a)
	if err != nil {
		return nil, &kernel.OperandError{Index: 0, Err: err}
	}
	sb, err := fromMesh(b)
	if err != nil {
		return nil, &kernel.OperandError{Index: 1, Err: err}
	}
	r := newSolid(op(unsafe.Pointer(C.manifold_alloc_manifold()), sa.ptr, sb.ptr))
	if status := C.manifold_status(r.ptr); status != C.MANIFOLD_NO_ERROR {
		return nil, fmt.Errorf("manifold: %s failed with status %d", name, int(status))
	}
	return toMesh(name, r)
}

// Union returns the boolean union of two meshes.
func (k *ManifoldKernel) Union(a, b *mesh.Mesh) (*mesh.Mesh, error) {
	return k.apply(a.Name+"+"+b.Name, a, b, func(mem unsafe.Pointer, x, y *C.ManifoldManifold) *C.ManifoldManifold {
		return C.manifold_union(mem, x, y)
	})
}

// Difference returns the boolean difference (a minus b).
func (k *ManifoldKernel) Difference(a, b *mesh.Mesh) (*mesh.Mesh, error) {
	return k.apply(a.Name+"-"+b.Name, a, b, func(mem unsafe.Pointer, x, y *C.ManifoldManifold) *C.ManifoldManifold {
		return C.manifold_difference(mem, x, y)
	})
}

// Intersection returns the boolean intersection of two meshes.
func (k *ManifoldKernel) Intersection(a, b *mesh.Mesh) (*mesh.Mesh, error) {
	return k.apply(a.Name+"&"+b.Name, a, b, func(mem unsafe.Pointer, x, y *C.ManifoldManifold) *C.ManifoldManifold {
		return C.manifold_intersection(mem, x, y)
	})
}

// CrossSection slices m at height z.
func (k *ManifoldKernel) CrossSection(m *mesh.Mesh, z float64) *mesh.Section {
	return mesh.Slice(m, z)
}
