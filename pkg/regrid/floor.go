package regrid

import (
	"gonum.org/v1/gonum/floats"

	"github.com/chazu/regrid/pkg/kernel"
	"github.com/chazu/regrid/pkg/mesh"
)

// topClearance keeps the scan below the mesh's top face.
const topClearance = 0.01

// FloorSample is one point of the area trace.
type FloorSample struct {
	Z    float64
	Area float64
}

// FloorResult is the outcome of floor detection.
type FloorResult struct {
	ZMin      float64
	ZFloor    float64
	MaxArea   float64
	Stability float64 // min window area / max area, 1 is fully stable
	Trace     []FloorSample
}

// DetectFloor scans horizontal cross-sections of m bottom-up and returns
// the first height where the section area reaches cfg.AreaRatio of the
// largest section below the ceiling and holds there for cfg.StableSteps
// samples. Meshes without such a plateau fail with FloorDetectionError;
// once scanning has started the partial result still carries the trace.
func DetectFloor(k kernel.Kernel, m *mesh.Mesh, cfg FloorConfig) (*FloorResult, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if m.IsEmpty() {
		return nil, &FloorDetectionError{Reason: "mesh is empty"}
	}
	b := m.Bounds()
	zStart := b.Min.Z + cfg.StartOffset
	zEnd := min(b.Min.Z+cfg.SearchCeiling, b.Max.Z-topClearance)
	if zEnd <= zStart {
		return nil, &FloorDetectionError{ZStart: zStart, ZEnd: zEnd, Reason: "mesh is too short to scan"}
	}

	res := &FloorResult{ZMin: b.Min.Z}
	var areas []float64
	for i := 0; ; i++ {
		z := zStart + float64(i)*cfg.Step
		if z >= zEnd {
			break
		}
		a := k.CrossSection(m, z).Area()
		res.Trace = append(res.Trace, FloorSample{Z: z, Area: a})
		areas = append(areas, a)
	}
	if len(areas) > 0 {
		res.MaxArea = floats.Max(areas)
	}
	fail := func(reason string) (*FloorResult, error) {
		return res, &FloorDetectionError{
			ZStart:  zStart,
			ZEnd:    zEnd,
			Samples: len(areas),
			MaxArea: res.MaxArea,
			Reason:  reason,
		}
	}
	if res.MaxArea <= 0 {
		return fail("no cross-section inside the search range")
	}

	threshold := cfg.AreaRatio * res.MaxArea
	for i := 0; i+cfg.StableSteps <= len(areas); i++ {
		window := areas[i : i+cfg.StableSteps]
		lo, hi := floats.Min(window), floats.Max(window)
		if lo < threshold {
			continue
		}
		if (hi-lo)/res.MaxArea > cfg.StabilityTol {
			continue
		}
		res.ZFloor = res.Trace[i].Z
		res.Stability = lo / res.MaxArea
		return res, nil
	}
	return fail("cross-section area never stabilized")
}
