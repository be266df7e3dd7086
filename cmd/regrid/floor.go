package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/chazu/regrid/pkg/meshio"
	"github.com/chazu/regrid/pkg/pipeline"
	"github.com/chazu/regrid/pkg/regrid"
)

var floorCmd = &cobra.Command{
	Use:   "floor <input.stl>",
	Short: "Detect the floor plane of a bin",
	Long: `Floor scans horizontal cross-sections of the bin bottom-up, prints the
detected floor height and writes a thin plate mesh at that height for
inspection alongside the bin.`,
	Args: cobra.ExactArgs(1),
	RunE: runFloor,
}

func init() {
	f := floorCmd.Flags()
	f.StringP("output", "o", pipeline.DefaultDebugDir+"/floor_plane.stl", `Floor plate path ("-" to skip)`)
	f.Int("rotate", 0, "Rotate the input about z: 0, 90, 180 or 270")
	addFloorFlags(f)
}

// addFloorFlags registers the floor detection thresholds.
func addFloorFlags(f *pflag.FlagSet) {
	d := regrid.DefaultFloorConfig()
	f.Float64("floor-start-mm", d.StartOffset, "First scan height above the bottom (mm)")
	f.Float64("floor-step-mm", d.Step, "Scan step (mm)")
	f.Float64("floor-ceiling-mm", d.SearchCeiling, "Scan ceiling above the bottom (mm)")
	f.Float64("floor-area-ratio", d.AreaRatio, "Fraction of the largest section that counts as floor")
	f.Int("floor-stable-steps", d.StableSteps, "Consecutive samples the floor area must hold")
	f.Float64("floor-stability-tol", d.StabilityTol, "Relative area spread allowed within the stable window")
}

func floorConfigFromConfig() regrid.FloorConfig {
	return regrid.FloorConfig{
		StartOffset:   cfg.GetFloat64("floor-start-mm"),
		Step:          cfg.GetFloat64("floor-step-mm"),
		SearchCeiling: cfg.GetFloat64("floor-ceiling-mm"),
		AreaRatio:     cfg.GetFloat64("floor-area-ratio"),
		StableSteps:   cfg.GetInt("floor-stable-steps"),
		StabilityTol:  cfg.GetFloat64("floor-stability-tol"),
	}
}

func runFloor(cmd *cobra.Command, args []string) error {
	k, err := newKernel()
	if err != nil {
		return err
	}
	fr, err := pipeline.Floor(pipeline.FloorConfig{
		Input:  args[0],
		Output: cfg.GetString("output"),
		Format: meshio.Binary,
		Rotate: cfg.GetInt("rotate"),
		Floor:  floorConfigFromConfig(),
		Kernel: k,
		Log:    log,
	})
	if err != nil {
		if fr != nil {
			logFloorTrace(log, fr)
		}
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "z_floor: %.3f mm\n", fr.ZFloor)
	if cfg.GetBool("verbose") {
		fmt.Fprintf(out, "zmin: %.3f mm\n", fr.ZMin)
		fmt.Fprintf(out, "max_area: %.2f mm²\n", fr.MaxArea)
		fmt.Fprintf(out, "stability: %.4f\n", fr.Stability)
		for _, s := range fr.Trace {
			fmt.Fprintf(out, "  z=%7.3f  area=%10.2f\n", s.Z, s.Area)
		}
	}
	return nil
}
