package main

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/chazu/regrid/pkg/kernel"
	"github.com/chazu/regrid/pkg/kernel/bsp"
	"github.com/chazu/regrid/pkg/mesh"
	"github.com/chazu/regrid/pkg/meshio"
	"github.com/chazu/regrid/pkg/recipe"
	"github.com/chazu/regrid/pkg/regrid"
)

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, exitOK},
		{"generic", errors.New("boom"), exitGeneric},
		{"floor", &regrid.FloorDetectionError{Reason: "never stabilized"}, exitFloor},
		{"module", &regrid.ModuleDetectionError{}, exitModule},
		{"boolean", &regrid.BooleanOperationError{Stage: "union", Err: errors.New("x")}, exitBoolean},
		{"missing tile", &regrid.MissingReferenceTileError{Path: "t.stl", Err: os.ErrNotExist}, exitMissingTile},
		{"verification", &regrid.VerificationError{Report: &regrid.VerificationReport{}}, exitVerification},
		{"tile pitch", &regrid.TilePitchError{}, exitTilePitch},
		{"wrapped", fmt.Errorf("batch: %w", &regrid.TilePitchError{}), exitTilePitch},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, exitCode(tt.err))
		})
	}
}

// execute runs the root command with args and returns its stdout.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	log.SetOutput(io.Discard)
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func TestCommands(t *testing.T) {
	dir := t.TempDir()
	tile := filepath.Join(dir, "refs", "tile.stl")
	bin := filepath.Join(dir, "bins", "bin.stl")
	out := filepath.Join(dir, "out", "bin_21mm.stl")

	stdout, err := execute(t, "tile", "--pitch", "21", "-o", tile)
	require.NoError(t, err)
	assert.Equal(t, tile, strings.TrimSpace(stdout))

	_, err = execute(t, "sample", "--modules", "1x1", "--floor-z", "6.95", "-o", bin)
	require.NoError(t, err)

	stdout, err = execute(t, "floor", bin, "-o", "-")
	require.NoError(t, err)
	assert.Contains(t, stdout, "z_floor: 7.100 mm")

	stdout, err = execute(t, "convert", bin, "--ref", tile, "--out", out, "--verify", "--verify-samples", "2000")
	require.NoError(t, err)
	assert.Equal(t, out, strings.TrimSpace(stdout))

	m, err := meshio.Load(out)
	require.NoError(t, err)
	assert.NotZero(t, m.TriangleCount())

	stdout, err = execute(t, "inspect", out, "--pitch", "42")
	require.NoError(t, err)
	assert.Contains(t, stdout, "solid:       yes")
	assert.Contains(t, stdout, "modules:     1x1 at 42 mm")
}

func TestFloorDefaultSample(t *testing.T) {
	// the default sample is a 42x42x10 bin with its floor at 7 mm
	bin := filepath.Join(t.TempDir(), "bin.stl")
	_, err := execute(t, "sample", "--floor-z", "7", "-o", bin)
	require.NoError(t, err)

	stdout, err := execute(t, "floor", bin, "-o", "-")
	require.NoError(t, err)
	var z float64
	_, err = fmt.Sscanf(strings.TrimSpace(stdout), "z_floor: %f mm", &z)
	require.NoError(t, err)
	assert.InDelta(t, 7.0, z, 0.5)
}

func TestConvertMissingTile(t *testing.T) {
	dir := t.TempDir()
	_, err := execute(t, "convert", filepath.Join(dir, "bin.stl"), "--ref", filepath.Join(dir, "none.stl"))
	assert.Equal(t, exitMissingTile, exitCode(err))
}

func TestBatch(t *testing.T) {
	dir := t.TempDir()
	tile := filepath.Join(dir, "tile.stl")
	bin := filepath.Join(dir, "bin.stl")
	_, err := execute(t, "tile", "-o", tile)
	require.NoError(t, err)
	_, err = execute(t, "sample", "--floor-z", "6.95", "-o", bin)
	require.NoError(t, err)

	src := fmt.Sprintf(`; two jobs, the second fails
(ref-tile %q)
(convert %q :out %q)
(convert %q :out %q :pitch-src 30)
`, tile, bin, filepath.Join(dir, "a.stl"), bin, filepath.Join(dir, "b.stl"))
	rec := filepath.Join(dir, "drawer.lisp")
	require.NoError(t, os.WriteFile(rec, []byte(src), 0o644))

	stdout, err := execute(t, "batch", rec)
	assert.Equal(t, exitModule, exitCode(err))
	assert.FileExists(t, filepath.Join(dir, "a.stl"))
	assert.NoFileExists(t, filepath.Join(dir, "b.stl"))
	assert.Contains(t, stdout, "ok")
	assert.Contains(t, stdout, fmt.Sprintf("failed (exit %d)", exitModule))
}

// driftingUnion lifts every union result by dz.
type driftingUnion struct {
	kernel.Kernel
	dz float64
}

func (d driftingUnion) Union(a, b *mesh.Mesh) (*mesh.Mesh, error) {
	out, err := d.Kernel.Union(a, b)
	if err != nil {
		return nil, err
	}
	return out.Translate(r3.Vec{Z: d.dz}), nil
}

func TestBatchVerificationDrift(t *testing.T) {
	dir := t.TempDir()
	tile := filepath.Join(dir, "tile.stl")
	bin := filepath.Join(dir, "bin.stl")
	out := filepath.Join(dir, "out.stl")
	_, err := execute(t, "tile", "-o", tile)
	require.NoError(t, err)
	_, err = execute(t, "sample", "--floor-z", "6.95", "-o", bin)
	require.NoError(t, err)

	checks := regrid.DefaultVerifyConfig()
	checks.Tolerance = 0.001
	checks.Samples = 2000
	job := recipe.Job{
		Line:    1,
		Input:   bin,
		Output:  out,
		RefTile: tile,
		Options: regrid.DefaultOptions(),
		Verify:  true,
		Checks:  checks,
	}
	outcomes := runJobs([]recipe.Job{job}, driftingUnion{Kernel: bsp.New(), dz: 0.01}, meshio.Binary, log, false)
	require.Len(t, outcomes, 1)
	assert.Equal(t, exitVerification, exitCode(outcomes[0].err))
	assert.Equal(t, out, outcomes[0].output)
	assert.FileExists(t, out)

	var buf bytes.Buffer
	rootCmd.SetOut(&buf)
	writeOutcomes(rootCmd, outcomes)
	assert.Contains(t, buf.String(), "drift")
}

func TestNewKernel(t *testing.T) {
	cfg.Set("kernel", "bsp")
	defer cfg.Set("kernel", nil)
	k, err := newKernel()
	require.NoError(t, err)
	assert.NotNil(t, k)

	cfg.Set("kernel", "cork")
	_, err = newKernel()
	assert.Error(t, err)
}
