// Command regrid converts storage bin meshes from one base-grid pitch to
// another by replacing their underside with a re-gridded slab of
// reference tiles.
package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/chazu/regrid/pkg/kernel"
	"github.com/chazu/regrid/pkg/kernel/bsp"
	"github.com/chazu/regrid/pkg/kernel/manifold"
	"github.com/chazu/regrid/pkg/regrid"
)

// Version is the current regrid CLI version
var Version = "0.1.0"

// Exit codes.
const (
	exitOK = iota
	exitGeneric
	exitFloor
	exitModule
	exitBoolean
	exitMissingTile
	exitVerification
	exitTilePitch
)

var (
	cfg = viper.New()
	log = logrus.New()
)

var rootCmd = &cobra.Command{
	Use:     "regrid",
	Short:   "regrid - convert storage bin meshes between base-grid pitches",
	Long:    `regrid keeps everything above a bin's floor and rebuilds the mounting interface underneath on a new grid pitch, using a reference tile mesh.`,
	Version: Version,

	SilenceUsage:  true,
	SilenceErrors: true,

	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.BindPFlags(cmd.Flags()); err != nil {
			return err
		}
		if path := cfg.GetString("config"); path != "" {
			cfg.SetConfigFile(path)
			if err := cfg.ReadInConfig(); err != nil {
				return fmt.Errorf("read config: %w", err)
			}
		}
		log.SetLevel(logrus.InfoLevel)
		if cfg.GetBool("verbose") {
			log.SetLevel(logrus.DebugLevel)
		}
		return nil
	},
}

func init() {
	cfg.SetEnvPrefix("REGRID")
	cfg.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	cfg.AutomaticEnv()

	log.SetOutput(os.Stderr)
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	pf := rootCmd.PersistentFlags()
	pf.String("config", "", "Config file (YAML, TOML or JSON) supplying flag values")
	pf.BoolP("verbose", "v", false, "Debug logging")
	pf.String("kernel", "bsp", "Boolean kernel: bsp or manifold")

	rootCmd.AddCommand(convertCmd, floorCmd, batchCmd, tileCmd, sampleCmd, inspectCmd)
}

func main() {
	err := rootCmd.Execute()
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
	}
	os.Exit(exitCode(err))
}

// exitCode maps pipeline errors to process exit codes.
func exitCode(err error) int {
	var (
		floorErr  *regrid.FloorDetectionError
		moduleErr *regrid.ModuleDetectionError
		boolErr   *regrid.BooleanOperationError
		tileErr   *regrid.MissingReferenceTileError
		verifyErr *regrid.VerificationError
		pitchErr  *regrid.TilePitchError
	)
	switch {
	case err == nil:
		return exitOK
	case errors.As(err, &floorErr):
		return exitFloor
	case errors.As(err, &moduleErr):
		return exitModule
	case errors.As(err, &boolErr):
		return exitBoolean
	case errors.As(err, &tileErr):
		return exitMissingTile
	case errors.As(err, &verifyErr):
		return exitVerification
	case errors.As(err, &pitchErr):
		return exitTilePitch
	}
	return exitGeneric
}

// newKernel returns the boolean kernel selected by --kernel.
func newKernel() (kernel.Kernel, error) {
	switch name := cfg.GetString("kernel"); name {
	case "", "bsp":
		return bsp.New(), nil
	case "manifold":
		return manifold.New()
	default:
		return nil, fmt.Errorf("unknown kernel %q (want bsp or manifold)", name)
	}
}

// setFlags lists the flags given explicitly on the command line, for the
// run log.
func setFlags(fs *pflag.FlagSet) logrus.Fields {
	f := logrus.Fields{}
	fs.Visit(func(fl *pflag.Flag) {
		f[fl.Name] = fl.Value.String()
	})
	return f
}
