package mesh

import (
	"math"

	"gonum.org/v1/gonum/spatial/r2"
	"gonum.org/v1/gonum/spatial/r3"
)

// ChainTolerance is the endpoint distance under which slice segments are
// joined into loops.
const ChainTolerance = 1e-4

// Segment is a directed piece of a horizontal cross-section. Segments are
// oriented so the solid lies to their left; outer loops run
// counter-clockwise and holes clockwise.
type Segment struct {
	A, B r2.Vec
}

// Section is the horizontal cross-section of a mesh at height Z.
type Section struct {
	Z        float64
	Segments []Segment
}

// Slice intersects m with the plane z = h. Vertices lying exactly on the
// plane are treated as above it so shared edges are never counted twice.
func Slice(m *Mesh, h float64) *Section {
	s := &Section{Z: h}
	for i := range m.Faces {
		t := m.Triangle(i)
		var pts [2]r3.Vec
		n := 0
		for j := 0; j < 3 && n < 2; j++ {
			p, q := t[j], t[(j+1)%3]
			pa, qa := p.Z >= h, q.Z >= h
			if pa == qa {
				continue
			}
			u := (h - p.Z) / (q.Z - p.Z)
			pts[n] = r3.Add(p, r3.Scale(u, r3.Sub(q, p)))
			n++
		}
		if n != 2 {
			continue
		}
		nrm := t.Normal()
		a := r2.Vec{X: pts[0].X, Y: pts[0].Y}
		b := r2.Vec{X: pts[1].X, Y: pts[1].Y}
		// Direction (-ny, nx) keeps the outward normal on the right.
		if r2.Dot(r2.Sub(b, a), r2.Vec{X: -nrm.Y, Y: nrm.X}) < 0 {
			a, b = b, a
		}
		if a == b {
			continue
		}
		s.Segments = append(s.Segments, Segment{A: a, B: b})
	}
	return s
}

// Area returns the net enclosed area (outer loops minus holes) using
// Green's theorem over the oriented segments. Loops need not be chained.
func (s *Section) Area() float64 {
	var a float64
	for _, seg := range s.Segments {
		a += r2.Cross(seg.A, seg.B)
	}
	return a / 2
}

// Empty reports whether the plane missed the mesh.
func (s *Section) Empty() bool {
	return len(s.Segments) == 0
}

// Bounds returns the XY bounding box of the section.
func (s *Section) Bounds() r2.Box {
	if s.Empty() {
		return r2.Box{}
	}
	inf := math.Inf(1)
	b := r2.Box{Min: r2.Vec{X: inf, Y: inf}, Max: r2.Vec{X: -inf, Y: -inf}}
	for _, seg := range s.Segments {
		for _, p := range [2]r2.Vec{seg.A, seg.B} {
			b.Min = r2.Vec{X: math.Min(b.Min.X, p.X), Y: math.Min(b.Min.Y, p.Y)}
			b.Max = r2.Vec{X: math.Max(b.Max.X, p.X), Y: math.Max(b.Max.Y, p.Y)}
		}
	}
	return b
}

// Loops chains segments head to tail. Only closed loops are returned;
// segments that cannot be closed within ChainTolerance are dropped.
func (s *Section) Loops() [][]r2.Vec {
	type cell struct{ x, y int64 }
	key := func(p r2.Vec) cell {
		return cell{int64(math.Floor(p.X / ChainTolerance)), int64(math.Floor(p.Y / ChainTolerance))}
	}
	starts := make(map[cell][]int)
	for i, seg := range s.Segments {
		k := key(seg.A)
		starts[k] = append(starts[k], i)
	}
	next := func(p r2.Vec, used []bool) int {
		k := key(p)
		for dx := int64(-1); dx <= 1; dx++ {
			for dy := int64(-1); dy <= 1; dy++ {
				for _, i := range starts[cell{k.x + dx, k.y + dy}] {
					if !used[i] && r2.Norm(r2.Sub(s.Segments[i].A, p)) <= ChainTolerance {
						return i
					}
				}
			}
		}
		return -1
	}

	used := make([]bool, len(s.Segments))
	var loops [][]r2.Vec
	for start := range s.Segments {
		if used[start] {
			continue
		}
		used[start] = true
		head := s.Segments[start].A
		loop := []r2.Vec{head}
		tail := s.Segments[start].B
		closed := false
		for {
			if len(loop) >= 2 && r2.Norm(r2.Sub(tail, head)) <= ChainTolerance {
				closed = true
				break
			}
			i := next(tail, used)
			if i < 0 {
				break
			}
			used[i] = true
			loop = append(loop, tail)
			tail = s.Segments[i].B
		}
		if closed && len(loop) >= 3 {
			loops = append(loops, loop)
		}
	}
	return loops
}

// PolygonArea returns the signed shoelace area of a closed polygon.
func PolygonArea(pts []r2.Vec) float64 {
	var a float64
	for i := range pts {
		a += r2.Cross(pts[i], pts[(i+1)%len(pts)])
	}
	return a / 2
}
