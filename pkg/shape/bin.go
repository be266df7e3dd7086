package shape

import (
	"fmt"

	"gonum.org/v1/gonum/spatial/r2"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/chazu/regrid/pkg/kernel"
	"github.com/chazu/regrid/pkg/mesh"
)

// footChamfer is the 45 degree chamfer at the bottom of each sample foot.
const footChamfer = 1.0

// footOverlap is how far sample feet reach into the floor plate, so the
// union never has to merge coplanar faces.
const footOverlap = 0.5

// BinParams describes a sample bin: one inset foot per module under a solid
// floor plate, with walls around an open cavity.
type BinParams struct {
	N, M      int     // modules along x and y
	Pitch     float64 // module pitch (mm)
	Height    float64 // overall height (mm)
	FloorZ    float64 // bottom of the floor plate (mm)
	FloorT    float64 // floor plate thickness (mm)
	Wall      float64 // wall thickness (mm)
	FootInset float64 // foot inset from the module edge per side (mm)
}

// DefaultBinParams returns a 1x1 bin at 42 mm pitch, 10 mm tall, with a
// 1 mm floor plate starting at 7 mm.
func DefaultBinParams() BinParams {
	return BinParams{
		N:         1,
		M:         1,
		Pitch:     42,
		Height:    10,
		FloorZ:    7,
		FloorT:    1,
		Wall:      2,
		FootInset: 2,
	}
}

// Validate checks that the parts of the bin do not degenerate.
func (p BinParams) Validate() error {
	switch {
	case p.N < 1 || p.M < 1:
		return fmt.Errorf("bin modules must be >= 1, got %dx%d", p.N, p.M)
	case p.Pitch <= 2*(p.FootInset+footChamfer):
		return fmt.Errorf("pitch %.2f mm too small for foot inset %.2f mm", p.Pitch, p.FootInset)
	case p.FootInset <= 0:
		return fmt.Errorf("foot inset must be positive, got %g", p.FootInset)
	case p.FloorZ <= footChamfer:
		return fmt.Errorf("floor z %.2f mm must exceed the foot chamfer %.2f mm", p.FloorZ, footChamfer)
	case p.FloorT <= footOverlap:
		return fmt.Errorf("floor thickness %.2f mm must exceed %.2f mm", p.FloorT, footOverlap)
	case p.FloorZ+p.FloorT >= p.Height:
		return fmt.Errorf("floor top %.2f mm must be below the bin height %.2f mm", p.FloorZ+p.FloorT, p.Height)
	case p.Wall <= 0 || 2*p.Wall >= min(float64(p.N), float64(p.M))*p.Pitch:
		return fmt.Errorf("wall thickness %.2f mm does not fit the bin", p.Wall)
	}
	return nil
}

// Size returns the bin's outer XY size.
func (p BinParams) Size() r2.Vec {
	return r2.Vec{X: float64(p.N) * p.Pitch, Y: float64(p.M) * p.Pitch}
}

// SampleBin builds the bin with the kernel. The bin's footprint spans
// [0, N*pitch] x [0, M*pitch] and it stands on z=0.
func SampleBin(k kernel.Kernel, p BinParams) (*mesh.Mesh, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	size := p.Size()
	w := p.Pitch - 2*p.FootInset

	var feet []*mesh.Mesh
	for i := 0; i < p.N; i++ {
		for j := 0; j < p.M; j++ {
			c := r2.Vec{X: (float64(i) + 0.5) * p.Pitch, Y: (float64(j) + 0.5) * p.Pitch}
			foot, err := mesh.Loft("foot", c, []mesh.Level{
				{Z: 0, Width: w - 2*footChamfer, Depth: w - 2*footChamfer},
				{Z: footChamfer, Width: w, Depth: w},
				{Z: p.FloorZ + footOverlap, Width: w, Depth: w},
			})
			if err != nil {
				return nil, err
			}
			feet = append(feet, foot)
		}
	}

	shell := mesh.Box("shell", r3.Box{
		Min: r3.Vec{Z: p.FloorZ},
		Max: r3.Vec{X: size.X, Y: size.Y, Z: p.Height},
	})
	cavity := mesh.Box("cavity", r3.Box{
		Min: r3.Vec{X: p.Wall, Y: p.Wall, Z: p.FloorZ + p.FloorT},
		Max: r3.Vec{X: size.X - p.Wall, Y: size.Y - p.Wall, Z: p.Height + 1},
	})
	shell, err := k.Difference(shell, cavity)
	if err != nil {
		return nil, fmt.Errorf("sample bin cavity: %w", err)
	}
	bin, err := k.Union(shell, mesh.Concat("feet", feet...))
	if err != nil {
		return nil, fmt.Errorf("sample bin feet: %w", err)
	}
	return bin.Renamed(fmt.Sprintf("bin_%dx%d", p.N, p.M)), nil
}
