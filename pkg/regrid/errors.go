package regrid

import (
	"errors"
	"fmt"
	"strings"

	"github.com/chazu/regrid/pkg/kernel"
	"github.com/chazu/regrid/pkg/mesh"
)

// FloorDetectionError reports that no stable floor plane was found within
// the search ceiling.
type FloorDetectionError struct {
	ZStart  float64
	ZEnd    float64
	Samples int
	MaxArea float64
	Reason  string
}

func (e *FloorDetectionError) Error() string {
	return fmt.Sprintf("floor detection failed: %s (scanned z=%.3f..%.3f mm, %d samples, max area %.2f mm²); use fixed-height mode to convert anyway",
		e.Reason, e.ZStart, e.ZEnd, e.Samples, e.MaxArea)
}

// ModuleDetectionError reports a footprint that does not match a whole
// number of source modules.
type ModuleDetectionError struct {
	Width, Depth float64
	Pitch        float64
	N, M         int
	ErrX, ErrY   float64
	Tolerance    float64
}

func (e *ModuleDetectionError) Error() string {
	if e.N < 1 || e.M < 1 {
		return fmt.Sprintf("module detection failed: footprint %.2fx%.2f mm infers %dx%d at %.1f mm pitch; specify modules explicitly (NxM)",
			e.Width, e.Depth, e.N, e.M, e.Pitch)
	}
	return fmt.Sprintf("module detection failed: footprint %.2fx%.2f mm is not close to %dx%d at %.1f mm pitch (off by X=%.2f mm, Y=%.2f mm, tolerance %.2f mm); specify modules explicitly (NxM)",
		e.Width, e.Depth, e.N, e.M, e.Pitch, e.ErrX, e.ErrY, e.Tolerance)
}

// TilePitchError reports a reference tile whose footprint does not match
// the destination pitch.
type TilePitchError struct {
	Width, Depth float64
	Pitch        float64
	Tolerance    float64
}

func (e *TilePitchError) Error() string {
	return fmt.Sprintf("reference tile pitch mismatch: tile is %.2fx%.2f mm, destination pitch is %.1f mm (tolerance %.2f mm)",
		e.Width, e.Depth, e.Pitch, e.Tolerance)
}

// Operand describes one mesh taking part in a failed boolean operation.
type Operand struct {
	Name      string
	Vertices  int
	Triangles int
	Mesh      *mesh.Mesh
}

func operandOf(name string, m *mesh.Mesh) Operand {
	op := Operand{Name: name, Mesh: m}
	if m != nil {
		op.Vertices = m.VertexCount()
		op.Triangles = m.TriangleCount()
	}
	return op
}

// BooleanOperationError reports a failed or degenerate boolean stage. The
// operand meshes are attached so callers can export them for inspection.
type BooleanOperationError struct {
	Stage    string // cut, slab, crop, union
	Op       kernel.Op
	Operands []Operand
	Suspect  string // operand name blamed by the kernel, if any
	Err      error
}

func (e *BooleanOperationError) Error() string {
	var parts []string
	for _, o := range e.Operands {
		parts = append(parts, fmt.Sprintf("%s: %d vertices, %d triangles", o.Name, o.Vertices, o.Triangles))
	}
	msg := fmt.Sprintf("boolean %s failed during %s [%s]", e.Op, e.Stage, strings.Join(parts, "; "))
	if e.Suspect != "" {
		msg += fmt.Sprintf(" suspect operand %q", e.Suspect)
	}
	return msg + ": " + e.Err.Error()
}

func (e *BooleanOperationError) Unwrap() error {
	return e.Err
}

// errEmptyResult marks a boolean that produced no geometry where a solid
// was required.
var errEmptyResult = errors.New("result is empty")

// booleanError wraps err for a failed operation on the named operands and
// resolves the suspect operand from a kernel.OperandError.
func booleanError(stage string, op kernel.Op, err error, operands ...Operand) *BooleanOperationError {
	be := &BooleanOperationError{Stage: stage, Op: op, Operands: operands, Err: err}
	var oe *kernel.OperandError
	if errors.As(err, &oe) && oe.Index >= 0 && oe.Index < len(operands) {
		be.Suspect = operands[oe.Index].Name
	}
	return be
}

// MissingReferenceTileError reports an absent or unreadable reference tile.
type MissingReferenceTileError struct {
	Path string
	Err  error
}

func (e *MissingReferenceTileError) Error() string {
	return fmt.Sprintf("missing reference tile %s: %v", e.Path, e.Err)
}

func (e *MissingReferenceTileError) Unwrap() error {
	return e.Err
}

// VerificationError reports that the written output drifted from the input
// above the join plane. The output file is left in place.
type VerificationError struct {
	Report *VerificationReport
}

func (e *VerificationError) Error() string {
	r := e.Report
	return fmt.Sprintf("verification failed above z_join=%.3f mm: orig→out max %.4f mm, out→orig max %.4f mm, tolerance %.4f mm",
		r.ZJoin, r.MaxOrigToOut, r.MaxOutToOrig, r.Tolerance)
}
