package main

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/chazu/regrid/pkg/mesh"
	"github.com/chazu/regrid/pkg/meshio"
	"github.com/chazu/regrid/pkg/regrid"
	"github.com/chazu/regrid/pkg/shape"
)

var tileCmd = &cobra.Command{
	Use:   "tile",
	Short: "Write a 1x1 reference tile for a grid pitch",
	Args:  cobra.NoArgs,
	RunE:  runTile,
}

var sampleCmd = &cobra.Command{
	Use:   "sample",
	Short: "Write a sample bin for trying conversions",
	Long: `Sample writes an exact polyhedral bin (one stepped foot per module, a solid
floor plate and a walled cavity). With --smooth the bin is modelled with
rounded signed distance fields and tessellated with marching cubes instead.`,
	Args: cobra.NoArgs,
	RunE: runSample,
}

func init() {
	f := tileCmd.Flags()
	f.Float64("pitch", regrid.DefaultPitchDst, "Grid pitch (mm)")
	f.Float64("height", shape.DefaultTileHeight, "Tile height (mm)")
	f.StringP("output", "o", "", "Output path (default: refs/tile_<pitch>_1x1.stl)")
	f.String("format", meshio.ASCII.String(), "STL encoding: binary or ascii")

	d := shape.DefaultSmoothParams()
	f = sampleCmd.Flags()
	f.String("modules", "1x1", "Module count NxM")
	f.Float64("pitch", d.Pitch, "Module pitch (mm)")
	f.Float64("height", d.Height, "Bin height (mm)")
	f.Float64("floor-z", d.FloorZ, "Bottom of the floor plate (mm)")
	f.Float64("floor-t", d.FloorT, "Floor plate thickness (mm)")
	f.Float64("wall", d.Wall, "Wall thickness (mm)")
	f.Float64("foot-inset", d.FootInset, "Foot inset from each module edge (mm)")
	f.Bool("smooth", false, "Rounded SDF bin tessellated with marching cubes")
	f.Float64("round", d.Round, "Smooth bin corner radius (mm)")
	f.Int("cells", shape.DefaultMeshCells, "Smooth bin marching cubes resolution")
	f.StringP("output", "o", "", "Output path (default: bins/bin_<NxM>.stl)")
	f.String("format", meshio.Binary.String(), "STL encoding: binary or ascii")
}

func runTile(cmd *cobra.Command, args []string) error {
	pitch := cfg.GetFloat64("pitch")
	tile, err := shape.ReferenceTile(pitch, cfg.GetFloat64("height"))
	if err != nil {
		return err
	}
	out := cfg.GetString("output")
	if out == "" {
		out = fmt.Sprintf("refs/tile_%g_1x1.stl", pitch)
	}
	return save(cmd, out, tile)
}

func runSample(cmd *cobra.Command, args []string) error {
	mods, err := regrid.ParseModules(cfg.GetString("modules"))
	if err != nil {
		return err
	}
	if mods.Auto() {
		return fmt.Errorf("sample needs an explicit module count")
	}
	p := shape.SmoothParams{
		BinParams: shape.BinParams{
			N:         mods.N,
			M:         mods.M,
			Pitch:     cfg.GetFloat64("pitch"),
			Height:    cfg.GetFloat64("height"),
			FloorZ:    cfg.GetFloat64("floor-z"),
			FloorT:    cfg.GetFloat64("floor-t"),
			Wall:      cfg.GetFloat64("wall"),
			FootInset: cfg.GetFloat64("foot-inset"),
		},
		Round: cfg.GetFloat64("round"),
		Cells: cfg.GetInt("cells"),
	}

	var bin *mesh.Mesh
	if cfg.GetBool("smooth") {
		bin, err = shape.SmoothBin(p)
	} else {
		k, kerr := newKernel()
		if kerr != nil {
			return kerr
		}
		bin, err = shape.SampleBin(k, p.BinParams)
	}
	if err != nil {
		return err
	}
	out := cfg.GetString("output")
	if out == "" {
		out = fmt.Sprintf("bins/%s.stl", bin.Name)
	}
	return save(cmd, out, bin)
}

func save(cmd *cobra.Command, path string, m *mesh.Mesh) error {
	format, err := meshio.ParseFormat(cfg.GetString("format"))
	if err != nil {
		return err
	}
	if err := meshio.Save(path, m, format); err != nil {
		return err
	}
	log.WithFields(logrus.Fields{
		"path":      path,
		"triangles": m.TriangleCount(),
		"format":    format,
	}).Info("wrote mesh")
	fmt.Fprintln(cmd.OutOrStdout(), path)
	return nil
}
