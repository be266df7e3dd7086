package shape

import (
	"fmt"

	"github.com/deadsy/sdfx/render"
	"github.com/deadsy/sdfx/sdf"
	v3 "github.com/deadsy/sdfx/vec/v3"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/chazu/regrid/pkg/mesh"
)

// DefaultMeshCells controls marching cubes resolution along the longest
// bin axis.
const DefaultMeshCells = 200

// SmoothParams adds rounding to a sample bin.
type SmoothParams struct {
	BinParams
	Round float64 // outer corner radius (mm)
	Cells int     // marching cubes cells, 0 means DefaultMeshCells
}

// DefaultSmoothParams returns the default bin with 1 mm rounding.
func DefaultSmoothParams() SmoothParams {
	return SmoothParams{BinParams: DefaultBinParams(), Round: 1}
}

// SmoothBin models the sample bin as signed distance fields with rounded
// edges and tessellates it with marching cubes. The result is welded but
// only approximates the exact polyhedral bin.
func SmoothBin(p SmoothParams) (*mesh.Mesh, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if p.Round < 0 || 2*p.Round >= p.Wall+p.FootInset {
		return nil, fmt.Errorf("rounding %.2f mm does not fit wall %.2f mm", p.Round, p.Wall)
	}
	cells := p.Cells
	if cells == 0 {
		cells = DefaultMeshCells
	}
	size := p.Size()

	shell, err := box(v3.Vec{Z: p.FloorZ}, v3.Vec{X: size.X, Y: size.Y, Z: p.Height}, p.Round)
	if err != nil {
		return nil, err
	}
	cavity, err := box(
		v3.Vec{X: p.Wall, Y: p.Wall, Z: p.FloorZ + p.FloorT},
		v3.Vec{X: size.X - p.Wall, Y: size.Y - p.Wall, Z: p.Height + p.Round + 1},
		p.Round,
	)
	if err != nil {
		return nil, err
	}
	parts := []sdf.SDF3{sdf.Difference3D(shell, cavity)}

	w := p.Pitch - 2*p.FootInset
	for i := 0; i < p.N; i++ {
		for j := 0; j < p.M; j++ {
			x0 := float64(i)*p.Pitch + p.FootInset
			y0 := float64(j)*p.Pitch + p.FootInset
			foot, err := box(v3.Vec{X: x0, Y: y0}, v3.Vec{X: x0 + w, Y: y0 + w, Z: p.FloorZ + footOverlap}, p.Round)
			if err != nil {
				return nil, err
			}
			parts = append(parts, foot)
		}
	}
	bin := sdf.Union3D(parts...)

	tris := render.ToTriangles(bin, render.NewMarchingCubesUniform(cells))
	out := make([]r3.Triangle, 0, len(tris))
	for _, tri := range tris {
		var t r3.Triangle
		for j := 0; j < 3; j++ {
			t[j] = r3.Vec{X: tri[j].X, Y: tri[j].Y, Z: tri[j].Z}
		}
		out = append(out, t)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("smooth bin tessellated to no triangles")
	}
	return mesh.FromTriangles(fmt.Sprintf("smooth_bin_%dx%d", p.N, p.M), out), nil
}

// box returns a rounded box spanning [lo, hi]. sdf.Box3D is centered on the
// origin, so it is moved into place.
func box(lo, hi v3.Vec, round float64) (sdf.SDF3, error) {
	size := hi.Sub(lo)
	s, err := sdf.Box3D(size, round)
	if err != nil {
		return nil, fmt.Errorf("sdf box %v: %w", size, err)
	}
	return sdf.Transform3D(s, sdf.Translate3d(lo.Add(size.MulScalar(0.5)))), nil
}
