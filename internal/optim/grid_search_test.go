package optim

import (
	"context"
	"math"
	"testing"

	"github.com/san-kum/quakesim/internal/experiment"
	"github.com/san-kum/quakesim/internal/physics"
	"github.com/san-kum/quakesim/internal/seismic"
)

func TestPoints(t *testing.T) {
	g := NewGridSearch([]string{"a", "b"}, [][]float64{{1, 2}, {10, 20, 30}})
	pts := g.Points()
	if len(pts) != 6 {
		t.Fatalf("expected 6 points, got %d", len(pts))
	}
	if pts[0]["a"] != 1 || pts[0]["b"] != 10 || pts[5]["a"] != 2 || pts[5]["b"] != 30 {
		t.Errorf("unexpected order %v", pts)
	}
}

func TestApply(t *testing.T) {
	cfg := experiment.Config{Physics: physics.DefaultConfig(), Seismic: seismic.DefaultModel()}
	err := Apply(&cfg, map[string]float64{
		ParamMagnitude:     6,
		ParamFloorFriction: 1,
		ParamBodyFriction:  0.2,
		ParamCalibration:   0.3,
	})
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if cfg.Magnitude != 6 || cfg.Physics.FloorFriction != 1 || cfg.Physics.BodyFriction != 0.2 || cfg.Seismic.Calibration != 0.3 {
		t.Errorf("unexpected config %+v", cfg)
	}

	if err := Apply(&cfg, map[string]float64{"gravity": 1}); err == nil {
		t.Error("expected error for unknown parameter")
	}
}

func TestRunMagnitudeGrid(t *testing.T) {
	reg := experiment.NewRegistry()
	ds, _ := reg.GetScene("kitchen")
	base := experiment.Config{
		Scene:      "kitchen",
		Detections: ds,
		Dt:         1.0 / 60,
		Duration:   0.5,
		Physics:    physics.DefaultConfig(),
		Seismic:    seismic.DefaultModel(),
	}

	g := NewGridSearch([]string{ParamMagnitude}, [][]float64{{0, 4, 8}}).WithWorkers(2)
	points, err := g.Run(context.Background(), base)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(points) != 3 {
		t.Fatalf("expected 3 points, got %d", len(points))
	}

	best, ok := Best(points, "peak_floor_displacement", true)
	if !ok || best.Params[ParamMagnitude] != 8 {
		t.Errorf("expected magnitude 8 to shake the floor most, got %v", best.Params)
	}
	calm, ok := Best(points, "peak_floor_displacement", false)
	if !ok || calm.Params[ParamMagnitude] != 0 {
		t.Errorf("expected magnitude 0 calmest, got %v", calm.Params)
	}
}

func TestRunRejectsMismatchedRanges(t *testing.T) {
	g := NewGridSearch([]string{"magnitude", "floor_friction"}, [][]float64{{1}})
	if _, err := g.Run(context.Background(), experiment.Config{}); err == nil {
		t.Error("expected error")
	}
}

func TestThreshold(t *testing.T) {
	points := []Point{
		{Params: map[string]float64{"magnitude": 9}, Metrics: map[string]float64{"toppled": 3}},
		{Params: map[string]float64{"magnitude": 5}, Metrics: map[string]float64{"toppled": 0}},
		{Params: map[string]float64{"magnitude": 7}, Metrics: map[string]float64{"toppled": 1}},
	}
	m, ok := Threshold(points, "magnitude", "toppled", 1)
	if !ok || m != 7 {
		t.Errorf("expected 7, got %v %v", m, ok)
	}
	if _, ok := Threshold(points, "magnitude", "toppled", 10); ok {
		t.Error("expected no threshold")
	}
}

func TestBestMissingMetric(t *testing.T) {
	if _, ok := Best([]Point{{Metrics: map[string]float64{}}}, "toppled", false); ok {
		t.Error("expected not found")
	}
}

func TestLinspace(t *testing.T) {
	v := Linspace(4, 9, 6)
	if len(v) != 6 || v[0] != 4 || math.Abs(v[5]-9) > 1e-12 || v[1] != 5 {
		t.Errorf("unexpected %v", v)
	}
	if got := Linspace(3, 9, 1); len(got) != 1 || got[0] != 3 {
		t.Errorf("unexpected %v", got)
	}
}
