package bsp

// node is a solid BSP tree. Polygons stored at a node lie in its plane;
// the front subtree holds space on the normal side.
type node struct {
	plane    *plane
	front    *node
	back     *node
	polygons []polygon
}

func newNode(polys []polygon) *node {
	n := &node{}
	n.build(polys)
	return n
}

// invert turns solid space into empty space and vice versa.
func (n *node) invert() {
	for i, p := range n.polygons {
		n.polygons[i] = p.flipped()
	}
	if n.plane != nil {
		f := n.plane.flipped()
		n.plane = &f
	}
	if n.front != nil {
		n.front.invert()
	}
	if n.back != nil {
		n.back.invert()
	}
	n.front, n.back = n.back, n.front
}

// clipPolygons removes the parts of polys that are inside this tree.
func (n *node) clipPolygons(polys []polygon) []polygon {
	if n.plane == nil {
		out := make([]polygon, len(polys))
		copy(out, polys)
		return out
	}
	var fr, bk []polygon
	for _, p := range polys {
		n.plane.split(p, &fr, &bk, &fr, &bk)
	}
	if n.front != nil {
		fr = n.front.clipPolygons(fr)
	}
	if n.back != nil {
		bk = n.back.clipPolygons(bk)
	} else {
		bk = nil
	}
	return append(fr, bk...)
}

// clipTo removes every polygon in this tree that is inside other.
func (n *node) clipTo(other *node) {
	n.polygons = other.clipPolygons(n.polygons)
	if n.front != nil {
		n.front.clipTo(other)
	}
	if n.back != nil {
		n.back.clipTo(other)
	}
}

func (n *node) allPolygons() []polygon {
	var out []polygon
	n.collect(&out)
	return out
}

func (n *node) collect(out *[]polygon) {
	*out = append(*out, n.polygons...)
	if n.front != nil {
		n.front.collect(out)
	}
	if n.back != nil {
		n.back.collect(out)
	}
}

// build inserts polys into the tree. The first polygon's plane becomes the
// splitting plane of a fresh node.
func (n *node) build(polys []polygon) {
	if len(polys) == 0 {
		return
	}
	if n.plane == nil {
		p := polys[0].plane
		n.plane = &p
	}
	var fr, bk []polygon
	for _, p := range polys {
		n.plane.split(p, &n.polygons, &n.polygons, &fr, &bk)
	}
	if len(fr) > 0 {
		if n.front == nil {
			n.front = &node{}
		}
		n.front.build(fr)
	}
	if len(bk) > 0 {
		if n.back == nil {
			n.back = &node{}
		}
		n.back.build(bk)
	}
}
