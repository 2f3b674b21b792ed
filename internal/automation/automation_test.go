package automation

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/san-kum/quakesim/internal/experiment"
	"github.com/san-kum/quakesim/internal/physics"
	"github.com/san-kum/quakesim/internal/seismic"
)

func baseConfig() experiment.Config {
	return experiment.Config{
		Dt:       1.0 / 60,
		Duration: 0.5,
		Physics:  physics.DefaultConfig(),
		Seismic:  seismic.DefaultModel(),
	}
}

const drill = `
name: morning drill
description: small then large shake
steps:
  - scene: kitchen
    magnitude: 3
  - scene: bedroom
    magnitude: 8
    duration: 0.25
    save: true
`

func TestLoadScenario(t *testing.T) {
	path := filepath.Join(t.TempDir(), "drill.yaml")
	if err := os.WriteFile(path, []byte(drill), 0644); err != nil {
		t.Fatal(err)
	}

	sc, err := LoadScenario(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if sc.Name != "morning drill" || len(sc.Steps) != 2 {
		t.Fatalf("unexpected scenario %+v", sc)
	}
	if !sc.Steps[1].Save || sc.Steps[1].Duration != 0.25 {
		t.Errorf("unexpected step %+v", sc.Steps[1])
	}
}

func TestLoadScenarioEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.yaml")
	if err := os.WriteFile(path, []byte("name: nothing\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadScenario(path); err == nil {
		t.Error("expected error for scenario without steps")
	}
}

func TestRunScenario(t *testing.T) {
	sc := &Scenario{Name: "drill", Steps: []ScenarioStep{
		{Scene: "kitchen", Magnitude: 3},
		{Scene: "bedroom", Magnitude: 8, Duration: 0.25, Save: true},
	}}

	var saved []experiment.Config
	save := func(cfg experiment.Config, res *experiment.Result) (string, error) {
		saved = append(saved, cfg)
		if len(res.Frames) != 15 {
			t.Errorf("expected 15 frames for 0.25s, got %d", len(res.Frames))
		}
		return "run-1", nil
	}

	results, err := RunScenario(context.Background(), sc, experiment.NewRegistry(), baseConfig(), save)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if results[0].RunID != "" || results[1].RunID != "run-1" {
		t.Errorf("unexpected run ids %q %q", results[0].RunID, results[1].RunID)
	}
	if len(saved) != 1 || saved[0].Magnitude != 8 {
		t.Errorf("expected the bedroom step saved, got %+v", saved)
	}
}

func TestRunScenarioUnknownScene(t *testing.T) {
	sc := &Scenario{Steps: []ScenarioStep{{Scene: "kitchen"}, {Scene: "attic"}}}
	results, err := RunScenario(context.Background(), sc, experiment.NewRegistry(), baseConfig(), nil)
	if err == nil {
		t.Fatal("expected error for unknown scene")
	}
	if len(results) != 1 {
		t.Errorf("expected the first step kept, got %d", len(results))
	}
}

func TestRunMonteCarloDeterministic(t *testing.T) {
	mc := MonteCarloConfig{Scene: "bedroom", Magnitude: 9, Jitter: 0.5, Trials: 4, Workers: 2, Seed: 7}
	reg := experiment.NewRegistry()

	a, err := RunMonteCarlo(context.Background(), mc, reg, baseConfig())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	b, err := RunMonteCarlo(context.Background(), mc, reg, baseConfig())
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	if len(a) != 4 {
		t.Fatalf("expected 4 trials, got %d", len(a))
	}
	for i := range a {
		if a[i].Trial != i {
			t.Errorf("trial %d out of place", i)
		}
		if a[i].Metrics["max_displacement"] != b[i].Metrics["max_displacement"] {
			t.Errorf("trial %d differs between runs with the same seed", i)
		}
	}
}

func TestRunMonteCarloBadTrials(t *testing.T) {
	_, err := RunMonteCarlo(context.Background(), MonteCarloConfig{Scene: "kitchen"}, experiment.NewRegistry(), baseConfig())
	if err == nil {
		t.Error("expected error for zero trials")
	}
}

func TestToppleRates(t *testing.T) {
	rates := ToppleRates([]MonteCarloResult{
		{Toppled: []string{"lamp", "shelf"}},
		{Toppled: []string{"shelf"}},
		{},
		{Toppled: []string{"shelf"}},
	})
	if rates["shelf"] != 0.75 || rates["lamp"] != 0.25 {
		t.Errorf("unexpected rates %v", rates)
	}
	if _, ok := rates["chair"]; ok {
		t.Error("objects that never toppled should be absent")
	}
	if len(ToppleRates(nil)) != 0 {
		t.Error("expected empty rates for no trials")
	}
}
