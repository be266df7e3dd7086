package main

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/chazu/regrid/pkg/meshio"
	"github.com/chazu/regrid/pkg/pipeline"
	"github.com/chazu/regrid/pkg/regrid"
)

var convertCmd = &cobra.Command{
	Use:   "convert <input.stl>",
	Short: "Convert a bin to the destination grid pitch",
	Long: `Convert keeps the bin above its floor (or above a fixed height), tiles the
reference tile over the footprint at the destination pitch, crops the slab to
the footprint and unions it back onto the body.`,
	Args: cobra.ExactArgs(1),
	RunE: runConvert,
}

func init() {
	d := regrid.DefaultOptions()
	vc := regrid.DefaultVerifyConfig()
	f := convertCmd.Flags()
	f.Bool("no-preserve-floor", false, "Cut at a fixed height above the bottom instead of detecting the floor")
	f.Float64("replace-height-mm", d.ReplaceHeight, "Fixed-height mode: cut height above the bottom (mm)")
	f.Float64("floor-epsilon-mm", d.FloorEpsilon, "Body cut distance below the join plane (mm)")
	f.Float64("overlap-mm", d.Overlap, "Slab top distance below the join plane (mm)")
	f.Float64("ref-height-mm", 0, "Reference tile slice height (mm, default: replace height)")
	f.Float64("floor-cap-mm", d.FloorCap, "Fixed-height mode: flat cap thickness (mm)")
	f.Float64("bottom-extension-mm", 0, "Extra slab depth below the original bottom (mm)")
	f.String("crop", string(d.Crop), "Footprint crop: bbox or outline")
	f.Bool("verify", false, "Verify the written output against the input above the join plane")
	f.Float64("verify-tol-mm", vc.Tolerance, "Verification tolerance (mm)")
	f.Int("verify-samples", vc.Samples, "Verification surface samples per mesh")
	f.Bool("export-debug", false, "Export intermediate meshes")
	f.String("debug-dir", pipeline.DefaultDebugDir, "Directory for debug meshes")
	f.Bool("debug-namespace", false, "Write debug meshes under a per-run subdirectory")
	f.Bool("dry-run", false, "Stop before the union and export intermediates")
	f.StringP("out", "o", "", "Output path (default: out/<stem>_<pitch>mm.stl)")
	f.String("modules", "auto", "Source module count: auto or NxM")
	f.Int("rotate", 0, "Rotate the input about z: 0, 90, 180 or 270")
	f.Int("tile-rotate", 0, "Rotate the reference tile about its center: 0, 90, 180 or 270")
	f.Float64("pitch-src", d.PitchSrc, "Source grid pitch (mm)")
	f.Float64("pitch-dst", d.PitchDst, "Destination grid pitch (mm)")
	f.String("ref", pipeline.DefaultRefTile, "Reference tile STL")
	f.String("format", meshio.Binary.String(), "Output STL encoding: binary or ascii")
	addFloorFlags(f)
}

// optionsFromConfig builds conversion options from flags, config file and
// environment.
func optionsFromConfig() (regrid.Options, error) {
	o := regrid.DefaultOptions()
	o.PreserveFloor = !cfg.GetBool("no-preserve-floor")
	o.ReplaceHeight = cfg.GetFloat64("replace-height-mm")
	o.FloorEpsilon = cfg.GetFloat64("floor-epsilon-mm")
	o.Overlap = cfg.GetFloat64("overlap-mm")
	o.RefHeight = cfg.GetFloat64("ref-height-mm")
	o.FloorCap = cfg.GetFloat64("floor-cap-mm")
	o.BottomExtension = cfg.GetFloat64("bottom-extension-mm")
	o.Crop = regrid.CropMode(cfg.GetString("crop"))
	o.Rotate = cfg.GetInt("rotate")
	o.TileRotate = cfg.GetInt("tile-rotate")
	o.PitchSrc = cfg.GetFloat64("pitch-src")
	o.PitchDst = cfg.GetFloat64("pitch-dst")
	o.DryRun = cfg.GetBool("dry-run")
	o.Floor = floorConfigFromConfig()

	m, err := regrid.ParseModules(cfg.GetString("modules"))
	if err != nil {
		return o, err
	}
	o.Modules = m
	return o, o.Validate()
}

func runConvert(cmd *cobra.Command, args []string) error {
	opts, err := optionsFromConfig()
	if err != nil {
		return err
	}
	format, err := meshio.ParseFormat(cfg.GetString("format"))
	if err != nil {
		return err
	}
	k, err := newKernel()
	if err != nil {
		return err
	}
	checks := regrid.DefaultVerifyConfig()
	checks.Tolerance = cfg.GetFloat64("verify-tol-mm")
	checks.Samples = cfg.GetInt("verify-samples")

	log.WithFields(setFlags(cmd.Flags())).Debug("convert flags")
	sum, err := pipeline.Run(pipeline.Config{
		Input:          args[0],
		Output:         cfg.GetString("out"),
		RefTile:        pipeline.ResolveRefTile(cfg.GetString("ref")),
		Format:         format,
		Options:        opts,
		Verify:         cfg.GetBool("verify"),
		Checks:         checks,
		ExportDebug:    cfg.GetBool("export-debug"),
		DebugDir:       cfg.GetString("debug-dir"),
		DebugNamespace: cfg.GetBool("debug-namespace"),
		Kernel:         k,
		Log:            log,
	})
	if sum != nil && sum.Result != nil && sum.Result.Floor != nil && err != nil {
		logFloorTrace(log, sum.Result.Floor)
	}
	if err != nil {
		return err
	}
	if sum.Output != "" {
		fmt.Fprintln(cmd.OutOrStdout(), sum.Output)
	}
	return nil
}

// logFloorTrace writes the floor scan at debug level.
func logFloorTrace(l logrus.FieldLogger, fr *regrid.FloorResult) {
	for _, s := range fr.Trace {
		l.WithFields(logrus.Fields{"z": s.Z, "area": s.Area}).Debug("floor scan")
	}
}
