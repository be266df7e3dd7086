package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"gonum.org/v1/gonum/spatial/r2"

	"github.com/chazu/regrid/pkg/mesh"
	"github.com/chazu/regrid/pkg/meshio"
	"github.com/chazu/regrid/pkg/regrid"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect <mesh.stl>",
	Short: "Print mesh statistics",
	Args:  cobra.ExactArgs(1),
	RunE:  runInspect,
}

func init() {
	f := inspectCmd.Flags()
	f.Float64("pitch", regrid.DefaultPitchSrc, "Grid pitch used to infer the module count (mm)")
	f.Float64("module-tol-mm", regrid.DefaultOptions().ModuleTolerance, "Footprint mismatch allowed when inferring modules (mm)")
}

func runInspect(cmd *cobra.Command, args []string) error {
	m, err := meshio.Load(args[0])
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	b := m.Bounds()
	e := m.Edges()

	fmt.Fprintf(out, "name:        %s\n", m.Name)
	fmt.Fprintf(out, "vertices:    %d\n", m.VertexCount())
	fmt.Fprintf(out, "triangles:   %d\n", m.TriangleCount())
	fmt.Fprintf(out, "bounds:      (%.3f, %.3f, %.3f) .. (%.3f, %.3f, %.3f)\n",
		b.Min.X, b.Min.Y, b.Min.Z, b.Max.X, b.Max.Y, b.Max.Z)
	fmt.Fprintf(out, "size:        %.3f x %.3f x %.3f mm\n", b.Max.X-b.Min.X, b.Max.Y-b.Min.Y, b.Max.Z-b.Min.Z)
	fmt.Fprintf(out, "volume:      %.3f mm³\n", m.Volume())
	fmt.Fprintf(out, "area:        %.3f mm²\n", m.SurfaceArea())
	fmt.Fprintf(out, "edges:       %d (boundary %d, non-manifold %d, misoriented %d)\n",
		e.Edges, e.Boundary, e.NonManifold, e.Misoriented)

	if err := mesh.CheckSolid(m); err != nil {
		fmt.Fprintf(out, "solid:       no (%v)\n", err)
	} else {
		fmt.Fprintln(out, "solid:       yes")
	}

	pitch := cfg.GetFloat64("pitch")
	footprint := r2.Box{Min: r2.Vec{X: b.Min.X, Y: b.Min.Y}, Max: r2.Vec{X: b.Max.X, Y: b.Max.Y}}
	if mods, err := regrid.InferModules(footprint, pitch, cfg.GetFloat64("module-tol-mm")); err == nil {
		fmt.Fprintf(out, "modules:     %s at %g mm\n", mods, pitch)
	} else {
		fmt.Fprintf(out, "modules:     unknown at %g mm (%v)\n", pitch, err)
	}
	if sec := mesh.Slice(m, (b.Min.Z+b.Max.Z)/2); !sec.Empty() {
		fmt.Fprintf(out, "mid section: %.3f mm² in %d loops\n", sec.Area(), len(sec.Loops()))
	}
	return nil
}
