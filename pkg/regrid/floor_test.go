package regrid

import (
	"errors"
	"math"
	"strings"
	"testing"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/chazu/regrid/pkg/kernel/bsp"
)

func TestDetectFloor(t *testing.T) {
	bin := testBin(t, 1, 1)
	res, err := DetectFloor(bsp.New(), bin, DefaultFloorConfig())
	if err != nil {
		t.Fatalf("DetectFloor() error = %v", err)
	}
	if math.Abs(res.ZFloor-7.0) > 0.5 {
		t.Errorf("ZFloor = %.3f, want 7.0 +/- 0.5", res.ZFloor)
	}
	// first sample above the plate bottom
	if math.Abs(res.ZFloor-7.1) > 1e-9 {
		t.Errorf("ZFloor = %.6f, want 7.1", res.ZFloor)
	}
	if res.ZMin != 0 {
		t.Errorf("ZMin = %v, want 0", res.ZMin)
	}
	if math.Abs(res.MaxArea-42*42) > 1e-6 {
		t.Errorf("MaxArea = %v, want %v", res.MaxArea, 42*42)
	}
	if math.Abs(res.Stability-1) > 1e-9 {
		t.Errorf("Stability = %v, want 1", res.Stability)
	}
	if len(res.Trace) == 0 || res.Trace[0].Z != 0.5 {
		t.Fatalf("trace does not start at z_min + 0.5: %v", res.Trace)
	}
	for i := 1; i < len(res.Trace); i++ {
		if res.Trace[i].Z <= res.Trace[i-1].Z {
			t.Fatalf("trace not increasing at %d", i)
		}
	}
}

func TestDetectFloorOffsetMesh(t *testing.T) {
	bin := testBin(t, 1, 1).Translate(r3.Vec{Z: -20})
	res, err := DetectFloor(bsp.New(), bin, DefaultFloorConfig())
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(res.ZFloor-(-12.9)) > 1e-9 {
		t.Errorf("ZFloor = %v, want -12.9", res.ZFloor)
	}
}

func TestDetectFloorNoPlateau(t *testing.T) {
	res, err := DetectFloor(bsp.New(), testFrustum(t), DefaultFloorConfig())
	var fe *FloorDetectionError
	if !errors.As(err, &fe) {
		t.Fatalf("DetectFloor() error = %v, want *FloorDetectionError", err)
	}
	if fe.ZStart != 0.5 || fe.ZEnd != 15 {
		t.Errorf("scan range = %v..%v, want 0.5..15", fe.ZStart, fe.ZEnd)
	}
	if fe.Samples != 73 {
		t.Errorf("Samples = %d, want 73", fe.Samples)
	}
	if !strings.Contains(err.Error(), "never stabilized") {
		t.Errorf("error %q does not name the cause", err)
	}
	// the partial result keeps the trace for verbose output
	if res == nil || len(res.Trace) != fe.Samples {
		t.Errorf("partial result missing trace")
	}
}

func TestDetectFloorLooseTolerance(t *testing.T) {
	// with a loose spread limit the growing frustum qualifies
	cfg := DefaultFloorConfig()
	cfg.StabilityTol = 0.05
	res, err := DetectFloor(bsp.New(), testFrustum(t), cfg)
	if err != nil {
		t.Fatalf("DetectFloor() error = %v", err)
	}
	if res.ZFloor < 10 || res.ZFloor >= 15 {
		t.Errorf("ZFloor = %v, want near the ceiling", res.ZFloor)
	}
}

func TestDetectFloorErrors(t *testing.T) {
	tests := []struct {
		name string
		cfg  func(*FloorConfig)
	}{
		{"zero step", func(c *FloorConfig) { c.Step = 0 }},
		{"ratio above one", func(c *FloorConfig) { c.AreaRatio = 1.5 }},
		{"empty window", func(c *FloorConfig) { c.StableSteps = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultFloorConfig()
			tt.cfg(&cfg)
			if _, err := DetectFloor(bsp.New(), testBin(t, 1, 1), cfg); err == nil {
				t.Error("DetectFloor() error = nil")
			}
		})
	}

	t.Run("too short", func(t *testing.T) {
		_, err := DetectFloor(bsp.New(), box("flat", 0, 0, 0, 10, 10, 0.4), DefaultFloorConfig())
		var fe *FloorDetectionError
		if !errors.As(err, &fe) {
			t.Fatalf("error = %v, want *FloorDetectionError", err)
		}
	})
}
