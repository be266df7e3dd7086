//go:build manifold

package manifold

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/chazu/regrid/pkg/kernel"
	"github.com/chazu/regrid/pkg/mesh"
)

func mustNew(t *testing.T) kernel.Kernel {
	t.Helper()
	k, err := New()
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return k
}

func box(x0, y0, z0, x1, y1, z1 float64) *mesh.Mesh {
	return mesh.Box("box", r3.Box{Min: r3.Vec{X: x0, Y: y0, Z: z0}, Max: r3.Vec{X: x1, Y: y1, Z: z1}})
}

func TestBooleans(t *testing.T) {
	k := mustNew(t)
	a := box(0, 0, 0, 2, 2, 2)
	b := box(1, 1, 1, 3, 3, 3)

	tests := []struct {
		op   kernel.Op
		want float64
	}{
		{kernel.OpUnion, 15},
		{kernel.OpDifference, 7},
		{kernel.OpIntersection, 1},
	}
	for _, tt := range tests {
		t.Run(string(tt.op), func(t *testing.T) {
			got, err := kernel.Apply(k, tt.op, a, b)
			if err != nil {
				t.Fatalf("%s error = %v", tt.op, err)
			}
			// MeshGL carries float32 positions.
			if v := got.Volume(); math.Abs(v-tt.want) > 1e-4 {
				t.Errorf("%s volume = %f, want %f", tt.op, v, tt.want)
			}
			if s := got.Edges(); !s.Manifold() {
				t.Errorf("%s result edges = %+v, want manifold", tt.op, s)
			}
		})
	}
}

func TestDisjointIntersectionIsEmpty(t *testing.T) {
	k := mustNew(t)
	got, err := k.Intersection(box(0, 0, 0, 1, 1, 1), box(5, 5, 5, 6, 6, 6))
	if err != nil {
		t.Fatalf("Intersection() error = %v", err)
	}
	if !got.IsEmpty() {
		t.Errorf("Intersection() has %d triangles, want 0", got.TriangleCount())
	}
}

func TestCrossSection(t *testing.T) {
	k := mustNew(t)
	if a := k.CrossSection(box(0, 0, 0, 4, 5, 1), 0.5).Area(); math.Abs(a-20) > 1e-9 {
		t.Errorf("CrossSection area = %f, want 20", a)
	}
}
