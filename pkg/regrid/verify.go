package regrid

import (
	"math"
	"math/rand/v2"
	"runtime"
	"slices"
	"sort"

	"github.com/dhconnelly/rtreego"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/spatial/r3"
	"gonum.org/v1/gonum/stat"

	"github.com/chazu/regrid/pkg/kernel"
	"github.com/chazu/regrid/pkg/mesh"
)

// R-tree node fan-out for the triangle index.
const (
	rtreeMinChildren = 25
	rtreeMaxChildren = 50
)

// rectPad keeps index rectangles of axis-aligned triangles non-degenerate.
const rectPad = 1e-9

// VerificationReport compares input and output surfaces above z_join.
type VerificationReport struct {
	ZJoin        float64
	MaxOrigToOut float64 // missing detail: input points far from the output
	MaxOutToOrig float64 // added artifacts: output points far from the input
	P95OrigToOut float64
	P95OutToOrig float64
	SamplesOrig  int
	SamplesOut   int
	Tolerance    float64
	Passed       bool
}

// Max returns the larger of the two directional maxima.
func (r *VerificationReport) Max() float64 {
	return math.Max(r.MaxOrigToOut, r.MaxOutToOrig)
}

// Verify restricts both meshes to z >= zJoin and measures how far sampled
// surface points of each lie from the other surface. The report passes
// only if both directions stay within cfg.Tolerance; otherwise the report
// is returned together with a VerificationError.
func Verify(k kernel.Kernel, original, output *mesh.Mesh, zJoin float64, cfg VerifyConfig) (*VerificationReport, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	origAbove, err := cut(k, original, zJoin, true, "verify")
	if err != nil {
		return nil, err
	}
	outAbove, err := cut(k, output, zJoin, true, "verify")
	if err != nil {
		return nil, err
	}

	workers := cfg.Workers
	if workers == 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	r := &VerificationReport{ZJoin: zJoin, Tolerance: cfg.Tolerance}
	origPts := SampleSurface(origAbove, cfg.Samples, cfg.Seed)
	outPts := SampleSurface(outAbove, cfg.Samples, cfg.Seed+1)
	r.SamplesOrig, r.SamplesOut = len(origPts), len(outPts)

	dOrig, err := distances(origPts, newSurfaceIndex(outAbove), workers)
	if err != nil {
		return nil, err
	}
	dOut, err := distances(outPts, newSurfaceIndex(origAbove), workers)
	if err != nil {
		return nil, err
	}
	r.MaxOrigToOut, r.P95OrigToOut = summarize(dOrig)
	r.MaxOutToOrig, r.P95OutToOrig = summarize(dOut)

	r.Passed = r.MaxOrigToOut <= cfg.Tolerance && r.MaxOutToOrig <= cfg.Tolerance
	if !r.Passed {
		return r, &VerificationError{Report: r}
	}
	return r, nil
}

// summarize returns the maximum and the 95th percentile of d.
func summarize(d []float64) (maxD, p95 float64) {
	if len(d) == 0 {
		return 0, 0
	}
	sorted := slices.Clone(d)
	slices.Sort(sorted)
	return floats.Max(d), stat.Quantile(0.95, stat.Empirical, sorted, nil)
}

// SampleSurface draws n points uniformly by area from the surface of m.
// The same seed yields the same points.
func SampleSurface(m *mesh.Mesh, n int, seed uint64) []r3.Vec {
	if m.IsEmpty() || n <= 0 {
		return nil
	}
	cum := make([]float64, m.TriangleCount())
	for i := range m.Faces {
		cum[i] = m.Triangle(i).Area()
	}
	floats.CumSum(cum, cum)
	total := cum[len(cum)-1]
	if total <= 0 {
		return nil
	}

	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	pts := make([]r3.Vec, n)
	for i := range pts {
		f := sort.SearchFloat64s(cum, rng.Float64()*total)
		if f >= len(cum) {
			f = len(cum) - 1
		}
		t := m.Triangle(f)
		u, v := rng.Float64(), rng.Float64()
		if u+v > 1 {
			u, v = 1-u, 1-v
		}
		e1, e2 := r3.Sub(t[1], t[0]), r3.Sub(t[2], t[0])
		pts[i] = r3.Add(t[0], r3.Add(r3.Scale(u, e1), r3.Scale(v, e2)))
	}
	return pts
}

// distances computes, in parallel chunks, the distance from every point
// to the indexed surface.
func distances(pts []r3.Vec, idx *surfaceIndex, workers int) ([]float64, error) {
	out := make([]float64, len(pts))
	if len(pts) == 0 {
		return out, nil
	}
	chunk := (len(pts) + workers - 1) / workers
	var g errgroup.Group
	g.SetLimit(workers)
	for lo := 0; lo < len(pts); lo += chunk {
		hi := min(lo+chunk, len(pts))
		g.Go(func() error {
			for i := lo; i < hi; i++ {
				out[i] = idx.distance(pts[i])
			}
			return nil
		})
	}
	return out, g.Wait()
}

// triEntry is a triangle stored in the R-tree.
type triEntry struct {
	tri  r3.Triangle
	rect rtreego.Rect
}

func (t *triEntry) Bounds() rtreego.Rect {
	return t.rect
}

// surfaceIndex answers exact point-to-surface distance queries.
type surfaceIndex struct {
	tree    *rtreego.Rtree
	entries []rtreego.Spatial
}

func newSurfaceIndex(m *mesh.Mesh) *surfaceIndex {
	var objs []rtreego.Spatial
	for i := range m.Faces {
		t := m.Triangle(i)
		if t.Area() == 0 {
			continue
		}
		lo := rtreego.Point{
			min(t[0].X, t[1].X, t[2].X) - rectPad,
			min(t[0].Y, t[1].Y, t[2].Y) - rectPad,
			min(t[0].Z, t[1].Z, t[2].Z) - rectPad,
		}
		hi := rtreego.Point{
			max(t[0].X, t[1].X, t[2].X) + rectPad,
			max(t[0].Y, t[1].Y, t[2].Y) + rectPad,
			max(t[0].Z, t[1].Z, t[2].Z) + rectPad,
		}
		rect, err := rtreego.NewRectFromPoints(lo, hi)
		if err != nil {
			continue
		}
		objs = append(objs, &triEntry{tri: t, rect: rect})
	}
	return &surfaceIndex{
		tree:    rtreego.NewTree(3, rtreeMinChildren, rtreeMaxChildren, objs...),
		entries: objs,
	}
}

// distance returns the exact distance from p to the nearest triangle. The
// nearest bounding box gives an upper bound; every triangle whose box
// intersects the ball of that radius is then measured exactly.
func (s *surfaceIndex) distance(p r3.Vec) float64 {
	if len(s.entries) == 0 {
		return math.Inf(1)
	}
	pt := rtreego.Point{p.X, p.Y, p.Z}
	candidates := s.entries
	if nn, ok := s.tree.NearestNeighbor(pt).(*triEntry); ok {
		best := pointTriangleDistance(p, nn.tri)
		if best == 0 {
			return 0
		}
		candidates = s.tree.SearchIntersect(pt.ToRect(best + rectPad))
	}
	best := math.Inf(1)
	for _, c := range candidates {
		if d := pointTriangleDistance(p, c.(*triEntry).tri); d < best {
			best = d
		}
	}
	return best
}

func pointTriangleDistance(p r3.Vec, t r3.Triangle) float64 {
	return r3.Norm(r3.Sub(p, closestOnTriangle(p, t)))
}

// closestOnTriangle returns the point of t nearest to p by Voronoi region
// classification.
func closestOnTriangle(p r3.Vec, t r3.Triangle) r3.Vec {
	a, b, c := t[0], t[1], t[2]
	ab, ac, ap := r3.Sub(b, a), r3.Sub(c, a), r3.Sub(p, a)
	d1, d2 := r3.Dot(ab, ap), r3.Dot(ac, ap)
	if d1 <= 0 && d2 <= 0 {
		return a
	}
	bp := r3.Sub(p, b)
	d3, d4 := r3.Dot(ab, bp), r3.Dot(ac, bp)
	if d3 >= 0 && d4 <= d3 {
		return b
	}
	vc := d1*d4 - d3*d2
	if vc <= 0 && d1 >= 0 && d3 <= 0 {
		return r3.Add(a, r3.Scale(d1/(d1-d3), ab))
	}
	cp := r3.Sub(p, c)
	d5, d6 := r3.Dot(ab, cp), r3.Dot(ac, cp)
	if d6 >= 0 && d5 <= d6 {
		return c
	}
	vb := d5*d2 - d1*d6
	if vb <= 0 && d2 >= 0 && d6 <= 0 {
		return r3.Add(a, r3.Scale(d2/(d2-d6), ac))
	}
	va := d3*d6 - d5*d4
	if va <= 0 && d4-d3 >= 0 && d5-d6 >= 0 {
		w := (d4 - d3) / ((d4 - d3) + (d5 - d6))
		return r3.Add(b, r3.Scale(w, r3.Sub(c, b)))
	}
	denom := 1 / (va + vb + vc)
	return r3.Add(a, r3.Add(r3.Scale(vb*denom, ab), r3.Scale(vc*denom, ac)))
}
