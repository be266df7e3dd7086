package mesh

import (
	"fmt"

	"gonum.org/v1/gonum/spatial/r2"
	"gonum.org/v1/gonum/spatial/r3"
)

// Box returns an axis-aligned box spanning b. The box must have a positive
// extent on every axis; Box panics otherwise.
func Box(name string, b r3.Box) *Mesh {
	b = b.Canon()
	c := b.Center()
	s := b.Size()
	m, err := Loft(name, r2.Vec{X: c.X, Y: c.Y}, []Level{
		{Z: b.Min.Z, Width: s.X, Depth: s.Y},
		{Z: b.Max.Z, Width: s.X, Depth: s.Y},
	})
	if err != nil {
		panic(fmt.Sprintf("mesh.Box: %v", err))
	}
	return m
}

// Level is one rectangular cross-section of a loft, centered on the loft
// axis.
type Level struct {
	Z     float64
	Width float64 // extent along x
	Depth float64 // extent along y
}

// Loft builds a closed solid through a stack of axis-aligned rectangles
// centered at center. Levels must be ordered by non-decreasing Z. Two
// consecutive levels may share a Z, which yields a horizontal step ring.
func Loft(name string, center r2.Vec, levels []Level) (*Mesh, error) {
	if len(levels) < 2 {
		return nil, fmt.Errorf("loft %q: need at least 2 levels, got %d", name, len(levels))
	}
	for i, l := range levels {
		if l.Width <= 0 || l.Depth <= 0 {
			return nil, fmt.Errorf("loft %q: level %d has non-positive size %.4fx%.4f", name, i, l.Width, l.Depth)
		}
		if i > 0 && l.Z < levels[i-1].Z {
			return nil, fmt.Errorf("loft %q: level %d z=%.4f below previous z=%.4f", name, i, l.Z, levels[i-1].Z)
		}
	}

	m := &Mesh{Name: name}
	for _, l := range levels {
		hx, hy := l.Width/2, l.Depth/2
		m.Vertices = append(m.Vertices,
			r3.Vec{X: center.X - hx, Y: center.Y - hy, Z: l.Z},
			r3.Vec{X: center.X + hx, Y: center.Y - hy, Z: l.Z},
			r3.Vec{X: center.X + hx, Y: center.Y + hy, Z: l.Z},
			r3.Vec{X: center.X - hx, Y: center.Y + hy, Z: l.Z},
		)
	}

	// Bottom cap faces down, top cap faces up.
	m.Faces = append(m.Faces, [3]int{0, 2, 1}, [3]int{0, 3, 2})
	top := 4 * (len(levels) - 1)
	m.Faces = append(m.Faces, [3]int{top, top + 1, top + 2}, [3]int{top, top + 2, top + 3})

	for k := 0; k+1 < len(levels); k++ {
		lo, hi := 4*k, 4*(k+1)
		if levels[k] == levels[k+1] {
			return nil, fmt.Errorf("loft %q: levels %d and %d coincide", name, k, k+1)
		}
		for j := 0; j < 4; j++ {
			a, b := lo+j, lo+(j+1)%4
			c, d := hi+(j+1)%4, hi+j
			m.Faces = append(m.Faces, [3]int{a, b, c}, [3]int{a, c, d})
		}
	}
	return m, nil
}
