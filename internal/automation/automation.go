// Package automation runs scripted drills and Monte Carlo placement studies
// on top of the offline experiment runner.
package automation

import (
	"context"
	"fmt"
	"math/rand"
	"os"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"

	"github.com/san-kum/quakesim/internal/experiment"
	"github.com/san-kum/quakesim/internal/log"
	"github.com/san-kum/quakesim/internal/metrics"
	"github.com/san-kum/quakesim/internal/scene"
)

// Scenario is a scripted drill: a sequence of shakes, possibly over
// different rooms.
type Scenario struct {
	Name        string         `yaml:"name"`
	Description string         `yaml:"description"`
	Steps       []ScenarioStep `yaml:"steps"`
}

type ScenarioStep struct {
	Scene     string  `yaml:"scene"`
	Magnitude float64 `yaml:"magnitude"`
	Duration  float64 `yaml:"duration"`
	Dt        float64 `yaml:"dt"`
	Save      bool    `yaml:"save"`
}

// StepResult is the outcome of one scenario step. RunID is empty unless the
// step was saved.
type StepResult struct {
	Step    int
	Scene   string
	RunID   string
	Metrics map[string]float64
}

// SaveFunc persists a finished run and returns its id.
type SaveFunc func(cfg experiment.Config, res *experiment.Result) (string, error)

func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var scenario Scenario
	if err := yaml.Unmarshal(data, &scenario); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if len(scenario.Steps) == 0 {
		return nil, fmt.Errorf("%s: scenario has no steps", path)
	}
	return &scenario, nil
}

// RunScenario executes the steps in order. Steps without dt or duration
// take them from base. Results gathered before a failing step are returned
// with the error.
func RunScenario(ctx context.Context, sc *Scenario, registry *experiment.Registry, base experiment.Config, save SaveFunc) ([]StepResult, error) {
	results := make([]StepResult, 0, len(sc.Steps))

	for i, step := range sc.Steps {
		log.Info("scenario step", "scenario", sc.Name, "step", i+1, "of", len(sc.Steps), "scene", step.Scene, "magnitude", step.Magnitude)

		ds, err := registry.GetScene(step.Scene)
		if err != nil {
			return results, fmt.Errorf("step %d: %w", i+1, err)
		}

		cfg := base
		cfg.Scene = step.Scene
		cfg.Detections = ds
		cfg.Magnitude = step.Magnitude
		if step.Dt > 0 {
			cfg.Dt = step.Dt
		}
		if step.Duration > 0 {
			cfg.Duration = step.Duration
		}

		exp := experiment.New(cfg)
		if err := exp.Setup(metrics.Defaults()); err != nil {
			return results, fmt.Errorf("step %d setup: %w", i+1, err)
		}

		res, err := exp.Run(ctx)
		if err != nil {
			return results, fmt.Errorf("step %d run: %w", i+1, err)
		}

		sr := StepResult{Step: i + 1, Scene: step.Scene, Metrics: res.Metrics}
		if step.Save && save != nil {
			if sr.RunID, err = save(cfg, res); err != nil {
				return results, fmt.Errorf("step %d save: %w", i+1, err)
			}
		}
		results = append(results, sr)
	}

	return results, nil
}

// MonteCarloConfig jitters every object's floor position by up to Jitter
// metres per axis and reruns the shake Trials times.
type MonteCarloConfig struct {
	Scene     string
	Magnitude float64
	Jitter    float64
	Trials    int
	Workers   int
	Seed      int64
}

type MonteCarloResult struct {
	Trial   int
	Toppled []string
	Metrics map[string]float64
}

// RunMonteCarlo runs the trials in parallel. Trial placements are drawn up
// front from Seed so results do not depend on scheduling.
func RunMonteCarlo(ctx context.Context, mc MonteCarloConfig, registry *experiment.Registry, base experiment.Config) ([]MonteCarloResult, error) {
	ds, err := registry.GetScene(mc.Scene)
	if err != nil {
		return nil, err
	}
	if mc.Trials < 1 {
		return nil, fmt.Errorf("trials must be positive, got %d", mc.Trials)
	}

	seed := mc.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	rng := rand.New(rand.NewSource(seed))

	placements := make([][]scene.Detection, mc.Trials)
	for t := range placements {
		p := scene.Clone(ds)
		for i := range p {
			p[i].X += (rng.Float64()*2 - 1) * mc.Jitter
			p[i].Z += (rng.Float64()*2 - 1) * mc.Jitter
		}
		placements[t] = p
	}

	results := make([]MonteCarloResult, mc.Trials)
	var done int
	var mu sync.Mutex

	g, ctx := errgroup.WithContext(ctx)
	if mc.Workers > 0 {
		g.SetLimit(mc.Workers)
	}
	for t := range placements {
		g.Go(func() error {
			cfg := base
			cfg.Scene = mc.Scene
			cfg.Detections = placements[t]
			cfg.Magnitude = mc.Magnitude

			exp := experiment.New(cfg)
			if err := exp.Setup(metrics.Defaults()); err != nil {
				return err
			}
			res, err := exp.Run(ctx)
			if err != nil {
				return fmt.Errorf("trial %d: %w", t, err)
			}

			results[t] = MonteCarloResult{Trial: t, Toppled: toppled(res), Metrics: res.Metrics}

			mu.Lock()
			done++
			if done%10 == 0 {
				log.Debug("monte carlo progress", "done", done, "trials", mc.Trials)
			}
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// toppled lists the objects that went over at any frame.
func toppled(res *experiment.Result) []string {
	seen := make(map[string]bool)
	for _, f := range res.Frames {
		for _, b := range f.Bodies {
			if b.Toppled() {
				seen[b.ObjectID] = true
			}
		}
	}
	out := make([]string, 0, len(seen))
	for id := range seen {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// ToppleRates returns, per object id, the fraction of trials in which it
// toppled. Objects that never toppled are absent.
func ToppleRates(results []MonteCarloResult) map[string]float64 {
	rates := make(map[string]float64)
	if len(results) == 0 {
		return rates
	}
	for _, r := range results {
		for _, id := range r.Toppled {
			rates[id]++
		}
	}
	for id := range rates {
		rates[id] /= float64(len(results))
	}
	return rates
}
