package storage

import (
	"encoding/json"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/san-kum/quakesim/internal/dynamo"
	"github.com/san-kum/quakesim/internal/experiment"
	"github.com/san-kum/quakesim/internal/physics"
	"github.com/san-kum/quakesim/internal/scene"
)

func sampleRun() (experiment.Config, *experiment.Result) {
	cfg := experiment.Config{
		Scene:      "kitchen",
		Detections: []scene.Detection{{ID: "c1", Category: "chair", X: 1, Z: -2}},
		Magnitude:  6.5,
		Dt:         0.1,
		Duration:   0.2,
	}
	body := physics.BodyState{
		ObjectID:    "c1",
		Position:    dynamo.V(1, 0.5, -2),
		Orientation: dynamo.IdentityQuat,
	}
	moved := body
	moved.Position = dynamo.V(1.25, 0.5, -2)

	res := &experiment.Result{
		Frames: []experiment.Frame{
			{T: 0, Floor: dynamo.V(0, 0, 0), Bodies: []physics.BodyState{body}},
			{T: 0.1, Floor: dynamo.V(0.02, 0, -0.01), Bodies: []physics.BodyState{moved}},
		},
		Times:   []float64{0, 0.1},
		Metrics: map[string]float64{"max_displacement": 0.25},
	}
	return cfg, res
}

func TestSaveAndLoad(t *testing.T) {
	s := New(t.TempDir())
	if err := s.Init(); err != nil {
		t.Fatalf("init: %v", err)
	}

	cfg, res := sampleRun()
	id, err := s.Save(cfg, res)
	if err != nil {
		t.Fatalf("save: %v", err)
	}

	meta, err := s.Load(id)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if meta.Scene != "kitchen" || meta.Magnitude != 6.5 {
		t.Errorf("unexpected metadata %+v", meta)
	}
	if meta.Metrics["max_displacement"] != 0.25 {
		t.Errorf("expected metric 0.25, got %v", meta.Metrics["max_displacement"])
	}
	if len(meta.Detections) != 1 || meta.Detections[0].ID != "c1" {
		t.Errorf("expected detections preserved, got %+v", meta.Detections)
	}

	trace, err := s.LoadStates(id)
	if err != nil {
		t.Fatalf("load states: %v", err)
	}
	if len(trace.Times) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(trace.Times))
	}

	want := []string{"floor_x", "floor_z", "c1_x", "c1_y", "c1_z", "c1_tilt"}
	if len(trace.Columns) != len(want) {
		t.Fatalf("expected columns %v, got %v", want, trace.Columns)
	}
	for i := range want {
		if trace.Columns[i] != want[i] {
			t.Errorf("column %d: expected %s, got %s", i, want[i], trace.Columns[i])
		}
	}

	x := trace.Column("c1_x")
	if math.Abs(x[1]-1.25) > 1e-6 {
		t.Errorf("expected c1_x 1.25, got %f", x[1])
	}
	if fx := trace.Column("floor_x"); math.Abs(fx[1]-0.02) > 1e-6 {
		t.Errorf("expected floor_x 0.02, got %f", fx[1])
	}
	if trace.Column("missing") != nil {
		t.Error("expected nil for missing column")
	}
}

func TestList(t *testing.T) {
	s := New(t.TempDir())
	runs, err := s.List()
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(runs) != 0 {
		t.Errorf("expected no runs, got %d", len(runs))
	}

	cfg, res := sampleRun()
	for i := 0; i < 2; i++ {
		if _, err := s.Save(cfg, res); err != nil {
			t.Fatalf("save: %v", err)
		}
	}
	runs, err = s.List()
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(runs) != 2 {
		t.Errorf("expected 2 runs, got %d", len(runs))
	}
}

func TestListMissingDir(t *testing.T) {
	s := New(t.TempDir() + "/nope")
	runs, err := s.List()
	if err != nil || len(runs) != 0 {
		t.Errorf("expected empty list, got %v, %v", runs, err)
	}
}

func TestLoadMissing(t *testing.T) {
	s := New(t.TempDir())
	if _, err := s.Load("ghost"); !errors.Is(err, ErrRunNotFound) {
		t.Errorf("expected ErrRunNotFound, got %v", err)
	}
	if _, err := s.LoadStates("ghost"); !errors.Is(err, ErrRunNotFound) {
		t.Errorf("expected ErrRunNotFound, got %v", err)
	}
}

func TestSaveEmptyResult(t *testing.T) {
	s := New(t.TempDir())
	cfg, _ := sampleRun()
	id, err := s.Save(cfg, &experiment.Result{})
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	trace, err := s.LoadStates(id)
	if err != nil {
		t.Fatalf("load states: %v", err)
	}
	if len(trace.Rows) != 0 {
		t.Errorf("expected no rows, got %d", len(trace.Rows))
	}
}

func TestExport(t *testing.T) {
	dir := t.TempDir()
	s := New(dir)
	cfg, res := sampleRun()
	id, err := s.Save(cfg, res)
	if err != nil {
		t.Fatalf("save: %v", err)
	}

	data, err := s.Export(id)
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if data.ID != id || len(data.Rows) != 2 || len(data.Columns) != 6 {
		t.Errorf("unexpected export %+v", data)
	}

	path := filepath.Join(dir, "out.json")
	if err := ExportJSON(path, data); err != nil {
		t.Fatalf("write: %v", err)
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	var back ExportData
	if err := json.Unmarshal(raw, &back); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if back.Scene != "kitchen" || back.Times[1] != 0.1 {
		t.Errorf("unexpected decoded export %+v", back.RunMetadata)
	}
}
