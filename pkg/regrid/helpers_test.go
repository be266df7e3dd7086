package regrid

import (
	"testing"

	"gonum.org/v1/gonum/spatial/r2"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/chazu/regrid/pkg/kernel"
	"github.com/chazu/regrid/pkg/kernel/bsp"
	"github.com/chazu/regrid/pkg/mesh"
	"github.com/chazu/regrid/pkg/shape"
)

// fixtureFloorZ puts the floor plate of the test bin between two floor
// detection samples, so the body cut lands inside the plate.
const fixtureFloorZ = 6.95

// testBin returns a 42x42x10 bin with a 1 mm floor plate at fixtureFloorZ.
func testBin(t testing.TB, n, m int) *mesh.Mesh {
	t.Helper()
	p := shape.DefaultBinParams()
	p.N, p.M = n, m
	p.FloorZ = fixtureFloorZ
	bin, err := shape.SampleBin(bsp.New(), p)
	if err != nil {
		t.Fatalf("SampleBin() error = %v", err)
	}
	return bin
}

// testTile returns the 21 mm reference tile.
func testTile(t testing.TB) *mesh.Mesh {
	t.Helper()
	tile, err := shape.ReferenceTile(DefaultPitchDst, shape.DefaultTileHeight)
	if err != nil {
		t.Fatalf("ReferenceTile() error = %v", err)
	}
	return tile
}

// testFrustum returns a solid whose cross-section grows all the way up, so
// it has no stable floor.
func testFrustum(t testing.TB) *mesh.Mesh {
	t.Helper()
	f, err := mesh.Loft("frustum", r2.Vec{X: 21.5, Y: 21.5}, []mesh.Level{
		{Z: 0, Width: 20, Depth: 20},
		{Z: 16, Width: 43, Depth: 43},
	})
	if err != nil {
		t.Fatal(err)
	}
	return f
}

func box(name string, x0, y0, z0, x1, y1, z1 float64) *mesh.Mesh {
	return mesh.Box(name, r3.Box{Min: r3.Vec{X: x0, Y: y0, Z: z0}, Max: r3.Vec{X: x1, Y: y1, Z: z1}})
}

// faultyKernel delegates to an exact kernel but fails the selected
// operation after skip successful calls.
type faultyKernel struct {
	kernel.Kernel
	op   kernel.Op
	skip int
	err  error
}

func newFaultyKernel(op kernel.Op, skip int, err error) *faultyKernel {
	return &faultyKernel{Kernel: bsp.New(), op: op, skip: skip, err: err}
}

func (f *faultyKernel) trip(op kernel.Op) error {
	if op != f.op {
		return nil
	}
	if f.skip > 0 {
		f.skip--
		return nil
	}
	return f.err
}

func (f *faultyKernel) Union(a, b *mesh.Mesh) (*mesh.Mesh, error) {
	if err := f.trip(kernel.OpUnion); err != nil {
		return nil, err
	}
	return f.Kernel.Union(a, b)
}

func (f *faultyKernel) Difference(a, b *mesh.Mesh) (*mesh.Mesh, error) {
	if err := f.trip(kernel.OpDifference); err != nil {
		return nil, err
	}
	return f.Kernel.Difference(a, b)
}

func (f *faultyKernel) Intersection(a, b *mesh.Mesh) (*mesh.Mesh, error) {
	if err := f.trip(kernel.OpIntersection); err != nil {
		return nil, err
	}
	return f.Kernel.Intersection(a, b)
}

var _ kernel.Kernel = (*faultyKernel)(nil)

func r3Dist(a, b r3.Vec) float64 {
	return r3.Norm(r3.Sub(a, b))
}

// touchingKernel returns two welded boxes sharing a face for every union
// and intersection. The result encloses positive volume with zero vector
// area, so only the edge topology shows it is not a manifold.
type touchingKernel struct {
	kernel.Kernel
}

func (touchingKernel) touching() *mesh.Mesh {
	return mesh.Concat("touching", box("l", 0, 0, 0, 1, 1, 1), box("r", 1, 0, 0, 2, 1, 1)).Weld(0)
}

func (k touchingKernel) Union(a, b *mesh.Mesh) (*mesh.Mesh, error) {
	return k.touching(), nil
}

func (k touchingKernel) Intersection(a, b *mesh.Mesh) (*mesh.Mesh, error) {
	return k.touching(), nil
}
