package regrid

import (
	"errors"
	"math"
	"testing"

	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"

	"github.com/chazu/regrid/pkg/kernel"
	"github.com/chazu/regrid/pkg/kernel/bsp"
	"github.com/chazu/regrid/pkg/mesh"
	"github.com/chazu/regrid/pkg/shape"
)

func TestConvertPreserveFloor(t *testing.T) {
	k := bsp.New()
	bin := testBin(t, 1, 1)
	tile := testTile(t)

	res, err := NewConverter(k, DefaultOptions()).Convert(bin, tile)
	if err != nil {
		t.Fatalf("Convert() error = %v", err)
	}
	if math.Abs(res.ZFloor-7.1) > 1e-9 || res.ZJoin != res.ZFloor {
		t.Errorf("ZFloor = %v ZJoin = %v, want 7.1", res.ZFloor, res.ZJoin)
	}
	if res.ZCutBody >= res.ZJoin || math.Abs(res.ZCutBody-7.0) > 1e-9 {
		t.Errorf("ZCutBody = %v, want 7.0 below z_join", res.ZCutBody)
	}
	if res.Floor == nil || len(res.Floor.Trace) == 0 {
		t.Error("Result carries no floor trace")
	}
	if res.Grid.Src != (Modules{1, 1}) || res.Grid.Dst != (Modules{2, 2}) {
		t.Errorf("Grid = %v, want 1x1 => 2x2", res.Grid)
	}
	if math.Abs(res.EffectiveReplaceHeight-7.1) > 1e-9 || res.RefHeight != 7 {
		t.Errorf("heights = %v / %v, want 7.1 / 7", res.EffectiveReplaceHeight, res.RefHeight)
	}
	if !res.FootprintPreserved {
		t.Error("FootprintPreserved = false")
	}
	if res.Output == nil {
		t.Fatal("Output = nil")
	}
	if err := mesh.CheckSolid(res.Output); err != nil {
		t.Fatalf("output is not a solid: %v", err)
	}
	if s := res.Output.Edges(); !s.Manifold() {
		t.Errorf("output edges = %+v, want a closed manifold", s)
	}
	if !sameRect(footprintOf(res.Output), Footprint{Rect: rect(42, 42)}) {
		t.Errorf("output footprint = %v, want 42x42", footprintOf(res.Output))
	}

	ref, err := SliceTile(k, tile, res.RefHeight)
	if err != nil {
		t.Fatal(err)
	}
	body := 42*42*3.0 - 38*38*2.05
	overlap := 4 * 20.5 * 20.5 * 0.05
	if want := body + 4*ref.Volume() - overlap; math.Abs(res.Output.Volume()-want) > 1e-3 {
		t.Errorf("output volume = %v, want %v", res.Output.Volume(), want)
	}

	// above the join plane nothing changed
	r, err := Verify(k, bin, res.Output, res.ZJoin, testVerifyConfig())
	if err != nil {
		t.Fatalf("Verify() error = %v", err)
	}
	if r.Max() > 1e-9 {
		t.Errorf("surface drift above z_join = %v, want 0", r.Max())
	}
}

func TestConvertDefaultBin(t *testing.T) {
	// A 42 mm 1x1 bin with its floor at 7 mm converts to 21 mm and keeps
	// everything above the floor.
	k := bsp.New()
	bin, err := shape.SampleBin(k, shape.DefaultBinParams())
	if err != nil {
		t.Fatal(err)
	}
	res, err := NewConverter(k, DefaultOptions()).Convert(bin, testTile(t))
	if err != nil {
		t.Fatalf("Convert() error = %v", err)
	}
	if math.Abs(res.ZFloor-7.1) > 1e-6 {
		t.Errorf("ZFloor = %v, want 7.1", res.ZFloor)
	}
	if res.Grid.Dst != (Modules{2, 2}) {
		t.Errorf("Dst = %v, want 2x2", res.Grid.Dst)
	}
	if s := res.Output.Edges(); !s.Manifold() {
		t.Errorf("output edges = %+v, want a closed manifold", s)
	}
	if !sameRect(footprintOf(res.Output), Footprint{Rect: rect(42, 42)}) {
		t.Errorf("output footprint = %v, want 42x42", footprintOf(res.Output))
	}
	r, err := Verify(k, bin, res.Output, res.ZJoin, testVerifyConfig())
	if err != nil {
		t.Fatalf("Verify() error = %v", err)
	}
	if !r.Passed {
		t.Errorf("verification failed: %+v", r)
	}
}

func TestConvertSmoothBin(t *testing.T) {
	if testing.Short() {
		t.Skip("marching cubes bin is slow")
	}
	bin, err := shape.SmoothBin(shape.DefaultSmoothParams())
	if err != nil {
		t.Fatal(err)
	}
	if s := bin.Edges(); !s.Manifold() {
		t.Fatalf("input edges = %+v, want a closed manifold", s)
	}
	res, err := NewConverter(bsp.New(), DefaultOptions()).Convert(bin, testTile(t))
	if err != nil {
		t.Fatalf("Convert() error = %v", err)
	}
	if s := res.Output.Edges(); !s.Manifold() {
		t.Errorf("output edges = %+v, want a closed manifold", s)
	}
}

func TestConvertFootprintInvariance(t *testing.T) {
	for _, mod := range []Modules{{1, 1}, {2, 1}} {
		t.Run(mod.String(), func(t *testing.T) {
			bin := testBin(t, mod.N, mod.M)
			res, err := NewConverter(bsp.New(), DefaultOptions()).Convert(bin, testTile(t))
			if err != nil {
				t.Fatalf("Convert() error = %v", err)
			}
			want := Footprint{Rect: footprintOf(res.Body)}
			if !sameRect(footprintOf(res.Output), want) || !sameRect(footprintOf(bin), want) {
				t.Errorf("output footprint %v differs from body footprint %v", footprintOf(res.Output), want.Rect)
			}
			if !within(footprintOf(res.Slab), want) {
				t.Errorf("slab %v overhangs the footprint", footprintOf(res.Slab))
			}
			if res.Grid.Dst != (Modules{2 * mod.N, 2 * mod.M}) {
				t.Errorf("Dst = %v", res.Grid.Dst)
			}
		})
	}
}

func TestConvertDryRun(t *testing.T) {
	o := DefaultOptions()
	o.DryRun = true
	res, err := NewConverter(bsp.New(), o).Convert(testBin(t, 1, 1), testTile(t))
	if err != nil {
		t.Fatalf("Convert() error = %v", err)
	}
	if !res.DryRun || res.Output != nil {
		t.Errorf("dry run produced output %v", res.Output)
	}
	if res.Body.IsEmpty() || res.Slab.IsEmpty() {
		t.Error("dry run should still build body and slab")
	}
	if pre := PreUnion(res.Body, res.Slab); pre.TriangleCount() != res.Body.TriangleCount()+res.Slab.TriangleCount() {
		t.Errorf("pre-union has %d triangles", pre.TriangleCount())
	}
}

func TestConvertFixedHeight(t *testing.T) {
	frustum := testFrustum(t)

	_, err := NewConverter(bsp.New(), DefaultOptions()).Convert(frustum, testTile(t))
	var fe *FloorDetectionError
	if !errors.As(err, &fe) {
		t.Fatalf("preserve-floor error = %v, want *FloorDetectionError", err)
	}

	o := DefaultOptions()
	o.PreserveFloor = false
	res, err := NewConverter(bsp.New(), o).Convert(frustum, testTile(t))
	if err != nil {
		t.Fatalf("fixed-height Convert() error = %v", err)
	}
	if res.ZJoin != 7 || math.Abs(res.ZCutBody-6.9) > 1e-9 {
		t.Errorf("ZJoin = %v ZCutBody = %v, want 7 / 6.9", res.ZJoin, res.ZCutBody)
	}
	if res.Floor != nil {
		t.Error("fixed-height run carries a floor result")
	}
	// 43 mm does not fit two 21 mm cells
	if res.Grid.Dst != (Modules{3, 3}) {
		t.Errorf("Dst = %v, want 3x3", res.Grid.Dst)
	}
	if !res.FootprintPreserved {
		t.Errorf("output footprint %v, want 0..43", footprintOf(res.Output))
	}
	sb := res.Slab.Bounds()
	if sb.Max.Z >= res.ZJoin {
		t.Errorf("capped slab top %v reaches z_join", sb.Max.Z)
	}
	if err := mesh.CheckSolid(res.Output); err != nil {
		t.Errorf("output is not a solid: %v", err)
	}
}

func TestConvertModulesOverride(t *testing.T) {
	o := DefaultOptions()
	o.Modules = Modules{2, 2}
	o.DryRun = true
	res, err := NewConverter(bsp.New(), o).Convert(testBin(t, 1, 1), testTile(t))
	if err != nil {
		t.Fatalf("Convert() error = %v", err)
	}
	if res.Grid.Src != (Modules{2, 2}) || res.Grid.Dst != (Modules{4, 4}) {
		t.Errorf("Grid = %v, want 2x2 => 4x4", res.Grid)
	}
	if !within(footprintOf(res.Slab), res.Footprint) {
		t.Errorf("slab %v overhangs the footprint", footprintOf(res.Slab))
	}
}

func TestConvertRotate(t *testing.T) {
	o := DefaultOptions()
	o.Rotate = 90
	o.DryRun = true
	res, err := NewConverter(bsp.New(), o).Convert(testBin(t, 1, 1), testTile(t))
	if err != nil {
		t.Fatalf("Convert() error = %v", err)
	}
	want := Footprint{Rect: rect(42, 42)}
	want.Rect.Min.X, want.Rect.Max.X = -42, 0
	if !sameRect(res.Footprint.Rect, want) {
		t.Errorf("rotated footprint = %v, want %v", res.Footprint.Rect, want.Rect)
	}
}

func TestConvertClampsRefHeight(t *testing.T) {
	log, hook := logtest.NewNullLogger()
	o := DefaultOptions()
	o.RefHeight = 9
	o.DryRun = true
	c := &Converter{Kernel: bsp.New(), Options: o, Log: log}
	res, err := c.Convert(testBin(t, 1, 1), testTile(t))
	if err != nil {
		t.Fatal(err)
	}
	if res.RefHeight != res.EffectiveReplaceHeight {
		t.Errorf("RefHeight = %v, want clamped to %v", res.RefHeight, res.EffectiveReplaceHeight)
	}
	warned := false
	for _, e := range hook.AllEntries() {
		if e.Level == logrus.WarnLevel && e.Data["ref_height"] == res.RefHeight {
			warned = true
		}
	}
	if !warned {
		t.Error("clamping was not logged as a warning")
	}
}

func TestConvertErrors(t *testing.T) {
	bin := testBin(t, 1, 1)
	tile := testTile(t)

	t.Run("tile pitch", func(t *testing.T) {
		o := DefaultOptions()
		o.PitchDst = 42
		_, err := NewConverter(bsp.New(), o).Convert(bin, tile)
		var te *TilePitchError
		if !errors.As(err, &te) {
			t.Errorf("error = %v, want *TilePitchError", err)
		}
	})

	t.Run("overlap exceeds epsilon", func(t *testing.T) {
		o := DefaultOptions()
		o.Overlap = 0.2
		if _, err := NewConverter(bsp.New(), o).Convert(bin, tile); err == nil {
			t.Error("error = nil")
		}
	})

	t.Run("off-grid footprint", func(t *testing.T) {
		o := DefaultOptions()
		o.PitchSrc = 30
		_, err := NewConverter(bsp.New(), o).Convert(bin, tile)
		var me *ModuleDetectionError
		if !errors.As(err, &me) {
			t.Errorf("error = %v, want *ModuleDetectionError", err)
		}
	})

	t.Run("union failure", func(t *testing.T) {
		k := newFaultyKernel(kernel.OpUnion, 0, errors.New("degenerate seam"))
		res, err := NewConverter(k, DefaultOptions()).Convert(bin, tile)
		var be *BooleanOperationError
		if !errors.As(err, &be) {
			t.Fatalf("error = %v, want *BooleanOperationError", err)
		}
		if be.Stage != "union" {
			t.Errorf("Stage = %q, want union", be.Stage)
		}
		if res == nil || res.Body == nil || res.Slab == nil || res.Output != nil {
			t.Error("partial result should carry body and slab only")
		}
	})

	t.Run("body cut failure", func(t *testing.T) {
		k := newFaultyKernel(kernel.OpIntersection, 0, &kernel.OperandError{Index: 0, Err: errors.New("open")})
		_, err := NewConverter(k, DefaultOptions()).Convert(bin, tile)
		var be *BooleanOperationError
		if !errors.As(err, &be) || be.Stage != "cut" || be.Suspect != "input" {
			t.Errorf("error = %v, want cut failure blaming the input", err)
		}
	})
}
