// Package meshio reads and writes meshes as STL files, binary or ASCII.
// Loaded triangle soups are welded into indexed meshes.
package meshio

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/hschendel/stl"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/chazu/regrid/pkg/mesh"
)

// Format selects the STL encoding used when saving.
type Format int

const (
	Binary Format = iota
	ASCII
)

// ParseFormat parses "binary" or "ascii".
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(s) {
	case "", "binary":
		return Binary, nil
	case "ascii":
		return ASCII, nil
	}
	return Binary, fmt.Errorf("unknown STL format %q (want binary or ascii)", s)
}

func (f Format) String() string {
	if f == ASCII {
		return "ascii"
	}
	return "binary"
}

// Load reads an STL file. The mesh is named after the file stem.
func Load(path string) (*mesh.Mesh, error) {
	solid, err := stl.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}
	return fromSolid(Stem(path), solid), nil
}

// Read reads an STL stream. The reader must seek because the encoding is
// detected before decoding.
func Read(r io.ReadSeeker, name string) (*mesh.Mesh, error) {
	solid, err := stl.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", name, err)
	}
	return fromSolid(name, solid), nil
}

func fromSolid(name string, s *stl.Solid) *mesh.Mesh {
	tris := make([]r3.Triangle, len(s.Triangles))
	for i, t := range s.Triangles {
		for j, v := range t.Vertices {
			tris[i][j] = r3.Vec{X: float64(v[0]), Y: float64(v[1]), Z: float64(v[2])}
		}
	}
	return mesh.FromTriangles(name, tris)
}

// Save writes m to path, creating parent directories as needed.
func Save(path string, m *mesh.Mesh, f Format) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("save %s: %w", path, err)
		}
	}
	if err := toSolid(m, f).WriteFile(path); err != nil {
		return fmt.Errorf("save %s: %w", path, err)
	}
	return nil
}

// Write encodes m to w.
func Write(w io.Writer, m *mesh.Mesh, f Format) error {
	return toSolid(m, f).WriteAll(w)
}

func toSolid(m *mesh.Mesh, f Format) *stl.Solid {
	s := &stl.Solid{Name: m.Name, IsAscii: f == ASCII}
	s.Triangles = make([]stl.Triangle, m.TriangleCount())
	for i := range m.Faces {
		t := m.Triangle(i)
		s.Triangles[i].Normal = vec3(unitNormal(t))
		for j, v := range t {
			s.Triangles[i].Vertices[j] = vec3(v)
		}
	}
	return s
}

func unitNormal(t r3.Triangle) r3.Vec {
	n := t.Normal()
	if l := r3.Norm(n); l > 0 {
		return r3.Scale(1/l, n)
	}
	return r3.Vec{}
}

func vec3(v r3.Vec) stl.Vec3 {
	return stl.Vec3{float32(v.X), float32(v.Y), float32(v.Z)}
}

// Stem returns the file name without directory and extension.
func Stem(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
