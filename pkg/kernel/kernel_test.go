package kernel

import (
	"errors"
	"strings"
	"testing"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/chazu/regrid/pkg/mesh"
)

// stubKernel is a minimal Kernel implementation that records which
// operation ran and returns its left operand.
type stubKernel struct {
	last Op
}

func (k *stubKernel) Union(a, _ *mesh.Mesh) (*mesh.Mesh, error) {
	k.last = OpUnion
	return a, nil
}

func (k *stubKernel) Difference(a, _ *mesh.Mesh) (*mesh.Mesh, error) {
	k.last = OpDifference
	return a, nil
}

func (k *stubKernel) Intersection(a, _ *mesh.Mesh) (*mesh.Mesh, error) {
	k.last = OpIntersection
	return a, nil
}

func (k *stubKernel) CrossSection(m *mesh.Mesh, z float64) *mesh.Section {
	return mesh.Slice(m, z)
}

// Compile-time check that the stub implements the interface.
var _ Kernel = (*stubKernel)(nil)

func TestApplyDispatch(t *testing.T) {
	a := mesh.Box("a", r3.Box{Max: r3.Vec{X: 1, Y: 1, Z: 1}})
	for _, op := range []Op{OpUnion, OpDifference, OpIntersection} {
		t.Run(string(op), func(t *testing.T) {
			k := &stubKernel{}
			got, err := Apply(k, op, a, a)
			if err != nil {
				t.Fatalf("Apply() error = %v", err)
			}
			if got != a {
				t.Error("Apply() did not return the stub result")
			}
			if k.last != op {
				t.Errorf("ran %q, want %q", k.last, op)
			}
		})
	}

	t.Run("unknown", func(t *testing.T) {
		if _, err := Apply(&stubKernel{}, Op("xor"), a, a); err == nil {
			t.Error("Apply(xor) error = nil, want error")
		}
	})
}

func TestCheckOperands(t *testing.T) {
	good := mesh.Box("good", r3.Box{Max: r3.Vec{X: 1, Y: 1, Z: 1}})
	if err := CheckOperands(good, good); err != nil {
		t.Fatalf("CheckOperands(good, good) = %v", err)
	}

	err := CheckOperands(good, &mesh.Mesh{Name: "hollow"})
	var oe *OperandError
	if !errors.As(err, &oe) {
		t.Fatalf("CheckOperands() = %v, want *OperandError", err)
	}
	if oe.Index != 1 {
		t.Errorf("Index = %d, want 1", oe.Index)
	}
	if !strings.Contains(err.Error(), "operand 1") || !strings.Contains(err.Error(), "hollow") {
		t.Errorf("Error() = %q, want operand index and mesh name", err.Error())
	}
}
