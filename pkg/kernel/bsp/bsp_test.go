package bsp

import (
	"errors"
	"math"
	"testing"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/chazu/regrid/pkg/kernel"
	"github.com/chazu/regrid/pkg/mesh"
)

const volTol = 1e-6

func box(name string, x0, y0, z0, x1, y1, z1 float64) *mesh.Mesh {
	return mesh.Box(name, r3.Box{Min: r3.Vec{X: x0, Y: y0, Z: z0}, Max: r3.Vec{X: x1, Y: y1, Z: z1}})
}

func TestBooleanVolumes(t *testing.T) {
	k := New()
	a := box("a", 0, 0, 0, 2, 2, 2)
	b := box("b", 1, 1, 1, 3, 3, 3)

	tests := []struct {
		name string
		op   kernel.Op
		want float64
	}{
		{"union", kernel.OpUnion, 15},
		{"difference", kernel.OpDifference, 7},
		{"intersection", kernel.OpIntersection, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := kernel.Apply(k, tt.op, a, b)
			if err != nil {
				t.Fatalf("%s error = %v", tt.op, err)
			}
			if v := got.Volume(); math.Abs(v-tt.want) > volTol {
				t.Errorf("%s volume = %v, want %v", tt.op, v, tt.want)
			}
			if err := mesh.CheckSolid(got); err != nil {
				t.Errorf("%s result is not a solid: %v", tt.op, err)
			}
			if err := mesh.CheckManifold(got); err != nil {
				t.Errorf("%s result: %v", tt.op, err)
			}
		})
	}
}

func TestChainedResultsStayManifold(t *testing.T) {
	k := New()
	// A wide plate sunk onto a narrow post meets the post's sides inside the
	// plate's bottom face, which leaves T-junctions unless edges are split.
	steps := []struct {
		name string
		op   kernel.Op
		b    *mesh.Mesh
	}{
		{"plate", kernel.OpUnion, box("plate", -2, -2, 0.8, 3, 3, 1.5)},
		{"notch", kernel.OpDifference, box("notch", 0.25, -3, 1.2, 0.75, 4, 2)},
		{"foot", kernel.OpUnion, box("foot", 0.2, 0.2, -1, 0.8, 0.8, 0.5)},
		{"trim", kernel.OpIntersection, box("trim", -1, -1, -2, 2.5, 2.5, 3)},
	}
	m := box("post", 0, 0, 0, 1, 1, 1)
	for _, st := range steps {
		var err error
		m, err = kernel.Apply(k, st.op, m, st.b)
		if err != nil {
			t.Fatalf("%s: %v", st.name, err)
		}
		if s := m.Edges(); !s.Manifold() {
			t.Fatalf("after %s: edges %+v, want a closed manifold", st.name, s)
		}
		if err := mesh.CheckSolid(m); err != nil {
			t.Fatalf("after %s: %v", st.name, err)
		}
	}
}

func TestSplitEdges(t *testing.T) {
	verts := []r3.Vec{
		{X: 0}, {X: 4}, {X: 4, Y: 4}, // triangle corners
		{X: 3}, {X: 1}, // on the first edge, out of order
		{X: 2, Y: 1e-3}, // near the edge but beyond Epsilon
		{X: 5},          // on the line, past the end
	}
	got := splitEdges([]int{0, 1, 2}, verts, newVertexIndex(verts))
	want := []int{0, 4, 3, 1, 2}
	if len(got) != len(want) {
		t.Fatalf("splitEdges() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("splitEdges() = %v, want %v", got, want)
		}
	}
}

func TestIntersectionBounds(t *testing.T) {
	k := New()
	a := box("a", 0, 0, 0, 2, 2, 2)
	b := box("b", 1, 1, 1, 3, 3, 3)
	got, err := k.Intersection(a, b)
	if err != nil {
		t.Fatal(err)
	}
	bb := got.Bounds()
	for _, c := range []struct {
		name      string
		got, want float64
	}{
		{"min x", bb.Min.X, 1}, {"min y", bb.Min.Y, 1}, {"min z", bb.Min.Z, 1},
		{"max x", bb.Max.X, 2}, {"max y", bb.Max.Y, 2}, {"max z", bb.Max.Z, 2},
	} {
		if math.Abs(c.got-c.want) > volTol {
			t.Errorf("%s = %v, want %v", c.name, c.got, c.want)
		}
	}
}

func TestDisjointOperands(t *testing.T) {
	k := New()
	a := box("a", 0, 0, 0, 1, 1, 1)
	b := box("b", 5, 0, 0, 6, 1, 1)

	u, err := k.Union(a, b)
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(u.Volume()-2) > volTol {
		t.Errorf("union volume = %v, want 2", u.Volume())
	}

	d, err := k.Difference(a, b)
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(d.Volume()-1) > volTol {
		t.Errorf("difference volume = %v, want 1", d.Volume())
	}

	i, err := k.Intersection(a, b)
	if err != nil {
		t.Fatal(err)
	}
	if !i.IsEmpty() {
		t.Errorf("intersection of disjoint boxes has %d triangles, want 0", i.TriangleCount())
	}
}

func TestTouchingBoxesUnion(t *testing.T) {
	k := New()
	a := box("a", 0, 0, 0, 1, 1, 1)
	b := box("b", 1, 0, 0, 2, 1, 1)
	u, err := k.Union(a, b)
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(u.Volume()-2) > volTol {
		t.Errorf("union volume = %v, want 2", u.Volume())
	}
	if err := mesh.CheckSolid(u); err != nil {
		t.Errorf("union is not a solid: %v", err)
	}
}

func TestHollowBinFixture(t *testing.T) {
	k := New()
	ped := box("pedestal", 2, 2, 0, 40, 40, 7)
	plate := box("plate", 0, 0, 7, 42, 42, 10)
	cavity := box("cavity", 2, 2, 8, 40, 40, 11)

	shell, err := k.Difference(plate, cavity)
	if err != nil {
		t.Fatalf("Difference() error = %v", err)
	}
	bin, err := k.Union(shell, ped)
	if err != nil {
		t.Fatalf("Union() error = %v", err)
	}
	if got := bin.Volume(); math.Abs(got-12512) > 1e-4 {
		t.Errorf("bin volume = %v, want 12512", got)
	}

	tests := []struct {
		z    float64
		want float64
	}{
		{3, 38 * 38},
		{7.5, 42 * 42},
		{9, 42*42 - 38*38},
	}
	for _, tt := range tests {
		if got := k.CrossSection(bin, tt.z).Area(); math.Abs(got-tt.want) > 1e-6 {
			t.Errorf("CrossSection(%v).Area() = %v, want %v", tt.z, got, tt.want)
		}
	}

	// Chained operations accept earlier results as operands.
	cut, err := k.Intersection(bin, box("upper", -10, -10, 7.9, 52, 52, 20))
	if err != nil {
		t.Fatalf("Intersection() error = %v", err)
	}
	want := 42*42*0.1 + (42*42-38*38)*2.0
	if got := cut.Volume(); math.Abs(got-want) > 1e-4 {
		t.Errorf("upper cut volume = %v, want %v", got, want)
	}
}

func TestRotatedOperand(t *testing.T) {
	k := New()
	a := box("a", -1, -1, 0, 1, 1, 1).RotateZ(45)
	big := box("big", -5, -5, -1, 5, 5, 0.5)
	got, err := k.Intersection(a, big)
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(got.Volume()-2) > volTol {
		t.Errorf("volume = %v, want 2", got.Volume())
	}
}

func TestInvalidOperands(t *testing.T) {
	k := New()
	good := box("good", 0, 0, 0, 1, 1, 1)
	open := box("open", 0, 0, 0, 1, 1, 1)
	open.Faces = open.Faces[:10]

	tests := []struct {
		name      string
		a, b      *mesh.Mesh
		wantIndex int
	}{
		{"left open", open, good, 0},
		{"right open", good, open, 1},
		{"right empty", good, &mesh.Mesh{Name: "empty"}, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := k.Union(tt.a, tt.b)
			var oe *kernel.OperandError
			if !errors.As(err, &oe) {
				t.Fatalf("Union() error = %v, want *kernel.OperandError", err)
			}
			if oe.Index != tt.wantIndex {
				t.Errorf("Index = %d, want %d", oe.Index, tt.wantIndex)
			}
			var se *mesh.SolidError
			if !errors.As(err, &se) {
				t.Errorf("error does not wrap *mesh.SolidError: %v", err)
			}
		})
	}
}
