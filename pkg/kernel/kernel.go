// Package kernel defines the boolean geometry capability the regrid
// pipeline depends on. Implementations (bsp, manifold) operate on closed
// triangle meshes behind this interface, so backends can be swapped
// without changing the pipeline stages.
package kernel

import (
	"fmt"

	"github.com/chazu/regrid/pkg/mesh"
)

// Kernel is the narrow boolean interface consumed by the pipeline. Every
// operation returns a new mesh and leaves its operands untouched.
type Kernel interface {
	// Boolean operations
	Union(a, b *mesh.Mesh) (*mesh.Mesh, error)
	Difference(a, b *mesh.Mesh) (*mesh.Mesh, error)
	Intersection(a, b *mesh.Mesh) (*mesh.Mesh, error)

	// CrossSection returns the horizontal section of m at height z.
	CrossSection(m *mesh.Mesh, z float64) *mesh.Section
}

// OperandError reports that a boolean operand was rejected before or during
// an operation. Index is 0 for the left operand and 1 for the right.
type OperandError struct {
	Index int
	Err   error
}

func (e *OperandError) Error() string {
	return fmt.Sprintf("operand %d: %v", e.Index, e.Err)
}

func (e *OperandError) Unwrap() error {
	return e.Err
}

// CheckOperands validates both operands of a boolean operation.
func CheckOperands(a, b *mesh.Mesh) error {
	for i, m := range []*mesh.Mesh{a, b} {
		if err := mesh.CheckSolid(m); err != nil {
			return &OperandError{Index: i, Err: err}
		}
	}
	return nil
}

// Op names a boolean operation for diagnostics.
type Op string

const (
	OpUnion        Op = "union"
	OpDifference   Op = "difference"
	OpIntersection Op = "intersection"
)

// Apply dispatches op to k.
func Apply(k Kernel, op Op, a, b *mesh.Mesh) (*mesh.Mesh, error) {
	switch op {
	case OpUnion:
		return k.Union(a, b)
	case OpDifference:
		return k.Difference(a, b)
	case OpIntersection:
		return k.Intersection(a, b)
	}
	return nil, fmt.Errorf("unknown boolean operation %q", op)
}
