package regrid

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/spatial/r2"

	"github.com/chazu/regrid/pkg/mesh"
)

// Modules is a module count along X (N) and Y (M). The zero value means
// the count is inferred from the footprint.
type Modules struct {
	N, M int
}

// Auto reports whether the count should be inferred.
func (m Modules) Auto() bool {
	return m == Modules{}
}

// Validate checks that both counts are positive.
func (m Modules) Validate() error {
	if m.N < 1 || m.M < 1 {
		return fmt.Errorf("invalid modules %dx%d: both dimensions must be >= 1", m.N, m.M)
	}
	return nil
}

func (m Modules) String() string {
	if m.Auto() {
		return "auto"
	}
	return fmt.Sprintf("%dx%d", m.N, m.M)
}

// ParseModules parses "NxM" (case-insensitive) or "auto".
func ParseModules(s string) (Modules, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" || s == "auto" {
		return Modules{}, nil
	}
	a, b, ok := strings.Cut(s, "x")
	if !ok {
		return Modules{}, fmt.Errorf("invalid modules %q: expected NxM (e.g. 5x5) or auto", s)
	}
	n, err := strconv.Atoi(strings.TrimSpace(a))
	if err != nil {
		return Modules{}, fmt.Errorf("invalid modules %q: %w", s, err)
	}
	m, err := strconv.Atoi(strings.TrimSpace(b))
	if err != nil {
		return Modules{}, fmt.Errorf("invalid modules %q: %w", s, err)
	}
	mod := Modules{N: n, M: m}
	if err := mod.Validate(); err != nil {
		return Modules{}, err
	}
	return mod, nil
}

// InferModules derives the source module count from a footprint.
func InferModules(fp r2.Box, pitch, tol float64) (Modules, error) {
	s := fp.Size()
	n := int(math.Round(s.X / pitch))
	m := int(math.Round(s.Y / pitch))
	e := &ModuleDetectionError{Width: s.X, Depth: s.Y, Pitch: pitch, N: n, M: m, Tolerance: tol}
	if s.X <= 0 || s.Y <= 0 || n < 1 || m < 1 {
		return Modules{}, e
	}
	e.ErrX = math.Abs(s.X - float64(n)*pitch)
	e.ErrY = math.Abs(s.Y - float64(m)*pitch)
	if e.ErrX > tol || e.ErrY > tol {
		return Modules{}, e
	}
	return Modules{N: n, M: m}, nil
}

// PitchGrid maps a source module grid onto the destination pitch.
type PitchGrid struct {
	PitchSrc float64
	PitchDst float64
	Src      Modules
	Dst      Modules
}

// NewPitchGrid resolves the source count (override or inferred) and
// derives a destination count that covers the footprint.
func NewPitchGrid(fp r2.Box, o Options) (PitchGrid, error) {
	g := PitchGrid{PitchSrc: o.PitchSrc, PitchDst: o.PitchDst, Src: o.Modules}
	if g.Src.Auto() {
		var err error
		if g.Src, err = InferModules(fp, o.PitchSrc, o.ModuleTolerance); err != nil {
			return PitchGrid{}, err
		}
	} else if err := g.Src.Validate(); err != nil {
		return PitchGrid{}, err
	}
	s := fp.Size()
	g.Dst = Modules{
		N: destCount(g.Src.N, o.PitchSrc, o.PitchDst, s.X),
		M: destCount(g.Src.M, o.PitchSrc, o.PitchDst, s.Y),
	}
	return g, nil
}

// gridSlack absorbs rounding when a grid exactly spans the footprint.
const gridSlack = 1e-6

func destCount(n int, src, dst, extent float64) int {
	c := max(int(math.Round(float64(n)*src/dst)), 1)
	for float64(c)*dst < extent-gridSlack {
		c++
	}
	return c
}

// Extent returns the XY size covered by the destination grid.
func (g PitchGrid) Extent() r2.Vec {
	return r2.Vec{X: float64(g.Dst.N) * g.PitchDst, Y: float64(g.Dst.M) * g.PitchDst}
}

// CellCenters returns the destination cell centers with the grid centered
// on center. Cells are ordered by X index, then Y.
func (g PitchGrid) CellCenters(center r2.Vec) []r2.Vec {
	out := make([]r2.Vec, 0, g.Dst.N*g.Dst.M)
	for i := 0; i < g.Dst.N; i++ {
		for j := 0; j < g.Dst.M; j++ {
			out = append(out, r2.Vec{
				X: center.X + (float64(i)-float64(g.Dst.N-1)/2)*g.PitchDst,
				Y: center.Y + (float64(j)-float64(g.Dst.M-1)/2)*g.PitchDst,
			})
		}
	}
	return out
}

func (g PitchGrid) String() string {
	return fmt.Sprintf("%s @ %.1f mm => %s @ %.1f mm", g.Src, g.PitchSrc, g.Dst, g.PitchDst)
}

// ValidateTilePitch checks that the reference tile's footprint matches the
// destination pitch.
func ValidateTilePitch(tile *mesh.Mesh, pitch, tol float64) error {
	s := footprintOf(tile).Size()
	if math.Abs(s.X-pitch) > tol || math.Abs(s.Y-pitch) > tol {
		return &TilePitchError{Width: s.X, Depth: s.Y, Pitch: pitch, Tolerance: tol}
	}
	return nil
}

// footprintOf returns the XY bounding rectangle of m.
func footprintOf(m *mesh.Mesh) r2.Box {
	b := m.Bounds()
	return r2.Box{Min: r2.Vec{X: b.Min.X, Y: b.Min.Y}, Max: r2.Vec{X: b.Max.X, Y: b.Max.Y}}
}
