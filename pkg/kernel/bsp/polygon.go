package bsp

import (
	"cmp"
	"slices"

	"github.com/dhconnelly/rtreego"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/chazu/regrid/pkg/mesh"
)

// Epsilon is the distance within which a point is considered to lie on a
// splitting plane.
const Epsilon = 1e-5

type plane struct {
	normal r3.Vec
	w      float64
}

func planeFrom(a, b, c r3.Vec) (plane, bool) {
	n := r3.Cross(r3.Sub(b, a), r3.Sub(c, a))
	l := r3.Norm(n)
	if l == 0 {
		return plane{}, false
	}
	n = r3.Scale(1/l, n)
	return plane{normal: n, w: r3.Dot(n, a)}, true
}

func (p plane) flipped() plane {
	return plane{normal: r3.Scale(-1, p.normal), w: -p.w}
}

// polygon is a convex planar polygon carrying its supporting plane.
type polygon struct {
	verts []r3.Vec
	plane plane
}

func (p polygon) flipped() polygon {
	vs := make([]r3.Vec, len(p.verts))
	for i, v := range p.verts {
		vs[len(vs)-1-i] = v
	}
	return polygon{verts: vs, plane: p.plane.flipped()}
}

const (
	onPlane  = 0
	inFront  = 1
	behind   = 2
	spanning = 3
)

// split classifies p against the plane and appends it, or its pieces, to
// the matching output lists.
func (pl plane) split(p polygon, coFront, coBack, fr, bk *[]polygon) {
	types := make([]int, len(p.verts))
	kind := 0
	for i, v := range p.verts {
		t := r3.Dot(pl.normal, v) - pl.w
		c := onPlane
		switch {
		case t < -Epsilon:
			c = behind
		case t > Epsilon:
			c = inFront
		}
		kind |= c
		types[i] = c
	}

	switch kind {
	case onPlane:
		if r3.Dot(pl.normal, p.plane.normal) > 0 {
			*coFront = append(*coFront, p)
		} else {
			*coBack = append(*coBack, p)
		}
	case inFront:
		*fr = append(*fr, p)
	case behind:
		*bk = append(*bk, p)
	case spanning:
		var f, b []r3.Vec
		n := len(p.verts)
		for i := 0; i < n; i++ {
			j := (i + 1) % n
			ti, tj := types[i], types[j]
			vi, vj := p.verts[i], p.verts[j]
			if ti != behind {
				f = append(f, vi)
			}
			if ti != inFront {
				b = append(b, vi)
			}
			if ti|tj == spanning {
				d := r3.Sub(vj, vi)
				t := (pl.w - r3.Dot(pl.normal, vi)) / r3.Dot(pl.normal, d)
				v := r3.Add(vi, r3.Scale(t, d))
				f = append(f, v)
				b = append(b, v)
			}
		}
		if len(f) >= 3 {
			*fr = append(*fr, polygon{verts: f, plane: p.plane})
		}
		if len(b) >= 3 {
			*bk = append(*bk, polygon{verts: b, plane: p.plane})
		}
	}
}

func toPolygons(m *mesh.Mesh) []polygon {
	out := make([]polygon, 0, len(m.Faces))
	for i := range m.Faces {
		t := m.Triangle(i)
		pl, ok := planeFrom(t[0], t[1], t[2])
		if !ok {
			continue
		}
		out = append(out, polygon{verts: []r3.Vec{t[0], t[1], t[2]}, plane: pl})
	}
	return out
}

// fromPolygons welds the polygon corners at Epsilon, inserts every vertex
// lying on a polygon edge into that edge so adjacent faces share edges
// exactly, and triangulates the result.
func fromPolygons(name string, polys []polygon) *mesh.Mesh {
	b := mesh.NewBuilder(name, Epsilon)
	loops := make([][]int, 0, len(polys))
	for _, p := range polys {
		if loop := weldLoop(b, p.verts); len(loop) >= 3 {
			loops = append(loops, loop)
		}
	}
	verts := b.Vertices()
	idx := newVertexIndex(verts)
	for _, loop := range loops {
		triangulate(b, splitEdges(loop, verts, idx), verts)
	}
	return b.Mesh()
}

// weldLoop maps a polygon to welded vertex indices, dropping edges that
// collapse.
func weldLoop(b *mesh.Builder, pts []r3.Vec) []int {
	loop := make([]int, 0, len(pts))
	for _, v := range pts {
		i := b.Vertex(v)
		if len(loop) > 0 && loop[len(loop)-1] == i {
			continue
		}
		loop = append(loop, i)
	}
	for len(loop) > 1 && loop[0] == loop[len(loop)-1] {
		loop = loop[:len(loop)-1]
	}
	return loop
}

// splitEdges returns loop with the vertices lying on each edge inserted in
// order along the edge.
func splitEdges(loop []int, verts []r3.Vec, idx *vertexIndex) []int {
	out := make([]int, 0, len(loop))
	for k, a := range loop {
		out = append(out, a)
		out = append(out, idx.onSegment(verts, a, loop[(k+1)%len(loop)])...)
	}
	return out
}

// triangulate fans a convex loop from its first corner. Loops with
// collinear runs, which a corner fan would cover with zero-area triangles,
// are fanned from their centroid instead.
func triangulate(b *mesh.Builder, loop []int, verts []r3.Vec) {
	if !hasCollinear(loop, verts) {
		for i := 2; i < len(loop); i++ {
			b.Face(loop[0], loop[i-1], loop[i])
		}
		return
	}
	var c r3.Vec
	for _, i := range loop {
		c = r3.Add(c, verts[i])
	}
	ci := b.Vertex(r3.Scale(1/float64(len(loop)), c))
	for k, i := range loop {
		b.Face(ci, i, loop[(k+1)%len(loop)])
	}
}

// hasCollinear reports whether some loop vertex lies within Epsilon of the
// line through its neighbours.
func hasCollinear(loop []int, verts []r3.Vec) bool {
	n := len(loop)
	for k := range loop {
		p, q, r := verts[loop[(k+n-1)%n]], verts[loop[k]], verts[loop[(k+1)%n]]
		if r3.Norm(r3.Cross(r3.Sub(q, p), r3.Sub(r, q))) <= Epsilon*r3.Norm(r3.Sub(r, p)) {
			return true
		}
	}
	return false
}

type vertexEntry struct {
	i    int
	rect rtreego.Rect
}

func (v *vertexEntry) Bounds() rtreego.Rect {
	return v.rect
}

// vertexIndex finds welded vertices near polygon edges.
type vertexIndex struct {
	tree *rtreego.Rtree
}

func newVertexIndex(verts []r3.Vec) *vertexIndex {
	objs := make([]rtreego.Spatial, 0, len(verts))
	for i, v := range verts {
		r, err := padRect(v, v)
		if err != nil {
			continue
		}
		objs = append(objs, &vertexEntry{i: i, rect: r})
	}
	return &vertexIndex{tree: rtreego.NewTree(3, 25, 50, objs...)}
}

// onSegment returns the vertices strictly between a and b and within
// Epsilon of the segment, ordered from a to b.
func (x *vertexIndex) onSegment(verts []r3.Vec, a, b int) []int {
	pa, pb := verts[a], verts[b]
	d := r3.Sub(pb, pa)
	l2 := r3.Dot(d, d)
	if l2 == 0 {
		return nil
	}
	bb, err := padRect(pa, pb)
	if err != nil {
		return nil
	}
	type hit struct {
		i int
		t float64
	}
	var hits []hit
	for _, s := range x.tree.SearchIntersect(bb) {
		i := s.(*vertexEntry).i
		if i == a || i == b {
			continue
		}
		p := verts[i]
		t := r3.Dot(r3.Sub(p, pa), d) / l2
		if t <= 0 || t >= 1 {
			continue
		}
		if r3.Norm(r3.Sub(p, r3.Add(pa, r3.Scale(t, d)))) > Epsilon {
			continue
		}
		hits = append(hits, hit{i: i, t: t})
	}
	if len(hits) == 0 {
		return nil
	}
	slices.SortFunc(hits, func(h, k hit) int { return cmp.Compare(h.t, k.t) })
	out := make([]int, len(hits))
	for j, h := range hits {
		out[j] = h.i
	}
	return out
}

// padRect returns the box spanning a and b grown by Epsilon on every side.
func padRect(a, b r3.Vec) (rtreego.Rect, error) {
	return rtreego.NewRectFromPoints(
		rtreego.Point{min(a.X, b.X) - Epsilon, min(a.Y, b.Y) - Epsilon, min(a.Z, b.Z) - Epsilon},
		rtreego.Point{max(a.X, b.X) + Epsilon, max(a.Y, b.Y) + Epsilon, max(a.Z, b.Z) + Epsilon},
	)
}
