package main

import (
	"errors"
	"fmt"
	"text/tabwriter"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/chazu/regrid/pkg/kernel"
	"github.com/chazu/regrid/pkg/meshio"
	"github.com/chazu/regrid/pkg/pipeline"
	"github.com/chazu/regrid/pkg/recipe"
	"github.com/chazu/regrid/pkg/regrid"
)

var batchCmd = &cobra.Command{
	Use:   "batch <recipe.lisp>",
	Short: "Run the conversions listed in a recipe",
	Long: `Batch evaluates a Lisp recipe and runs each collected conversion in order:

  (ref-tile "refs/tile_21_1x1.stl")
  (defaults :pitch-src 42 :pitch-dst 21 :verify true)
  (convert "bins/a.stl" :out "out/a_21mm.stl" :modules "2x1")

Failed jobs are reported and the remaining jobs still run.`,
	Args: cobra.ExactArgs(1),
	RunE: runBatch,
}

func init() {
	f := batchCmd.Flags()
	f.Bool("fail-fast", false, "Stop at the first failed job")
	f.String("format", meshio.Binary.String(), "Output STL encoding: binary or ascii")
}

// jobOutcome is the result of one recipe job.
type jobOutcome struct {
	job    recipe.Job
	output string
	err    error
}

func runBatch(cmd *cobra.Command, args []string) error {
	rec, err := recipe.LoadFile(args[0])
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

	outcomes := runJobs(rec.Jobs, k, format, log, cfg.GetBool("fail-fast"))
	writeOutcomes(cmd, outcomes)

	// the exit code follows the first failure
	for _, o := range outcomes {
		if o.err != nil {
			return fmt.Errorf("batch: %d of %d jobs failed: %w", failures(outcomes), len(rec.Jobs), o.err)
		}
	}
	return nil
}

func runJobs(jobs []recipe.Job, k kernel.Kernel, format meshio.Format, l logrus.FieldLogger, failFast bool) []jobOutcome {
	var outcomes []jobOutcome
	for i, j := range jobs {
		jl := l.WithFields(logrus.Fields{"job": i + 1, "line": j.Line})
		sum, err := pipeline.Run(pipeline.Config{
			Input:       j.Input,
			Output:      j.Output,
			RefTile:     pipeline.ResolveRefTile(j.RefTile),
			Format:      format,
			Options:     j.Options,
			Verify:      j.Verify,
			Checks:      j.Checks,
			ExportDebug: j.ExportDebug,
			DebugDir:    j.DebugDir,
			Kernel:      k,
			Log:         jl,
		})
		o := jobOutcome{job: j, err: err}
		if sum != nil {
			o.output = sum.Output
		}
		if err != nil {
			jl.WithError(err).Error("job failed")
		}
		outcomes = append(outcomes, o)
		if err != nil && failFast {
			break
		}
	}
	return outcomes
}

func writeOutcomes(cmd *cobra.Command, outcomes []jobOutcome) {
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "LINE\tINPUT\tSTATUS\tOUTPUT")
	for _, o := range outcomes {
		status := "ok"
		var ve *regrid.VerificationError
		switch {
		case errors.As(o.err, &ve):
			status = "drift"
		case o.err != nil:
			status = fmt.Sprintf("failed (exit %d)", exitCode(o.err))
		case o.job.Options.DryRun:
			status = "dry-run"
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", o.job.Line, o.job.Input, status, o.output)
	}
	w.Flush()
}

func failures(outcomes []jobOutcome) int {
	n := 0
	for _, o := range outcomes {
		if o.err != nil {
			n++
		}
	}
	return n
}
