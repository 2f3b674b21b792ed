// Package optim searches a grid of run parameters, such as magnitude or
// floor friction, for the combination that best satisfies a metric.
package optim

import (
	"context"
	"fmt"
	"math"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/san-kum/quakesim/internal/experiment"
	"github.com/san-kum/quakesim/internal/metrics"
)

// Tunable parameter names understood by Apply.
const (
	ParamMagnitude     = "magnitude"
	ParamFloorFriction = "floor_friction"
	ParamBodyFriction  = "body_friction"
	ParamCalibration   = "calibration"
)

// Apply writes params into cfg.
func Apply(cfg *experiment.Config, params map[string]float64) error {
	for name, v := range params {
		switch name {
		case ParamMagnitude:
			cfg.Magnitude = v
		case ParamFloorFriction:
			cfg.Physics.FloorFriction = v
		case ParamBodyFriction:
			cfg.Physics.BodyFriction = v
		case ParamCalibration:
			cfg.Seismic.Calibration = v
		default:
			return fmt.Errorf("unknown parameter: %s", name)
		}
	}
	return nil
}

// Point is one evaluated grid cell.
type Point struct {
	Params  map[string]float64
	Metrics map[string]float64
}

type GridSearch struct {
	paramNames []string
	ranges     [][]float64
	workers    int
}

func NewGridSearch(params []string, ranges [][]float64) *GridSearch {
	return &GridSearch{paramNames: params, ranges: ranges}
}

// WithWorkers bounds how many runs execute at once. Zero means unbounded.
func (g *GridSearch) WithWorkers(n int) *GridSearch {
	g.workers = n
	return g
}

// Points enumerates the cartesian product of the ranges.
func (g *GridSearch) Points() []map[string]float64 {
	out := []map[string]float64{{}}
	for depth, name := range g.paramNames {
		next := make([]map[string]float64, 0, len(out)*len(g.ranges[depth]))
		for _, partial := range out {
			for _, v := range g.ranges[depth] {
				p := make(map[string]float64, len(partial)+1)
				for k, pv := range partial {
					p[k] = pv
				}
				p[name] = v
				next = append(next, p)
			}
		}
		out = next
	}
	return out
}

// Run evaluates every grid point starting from base. The result order
// matches Points.
func (g *GridSearch) Run(ctx context.Context, base experiment.Config) ([]Point, error) {
	if len(g.paramNames) != len(g.ranges) {
		return nil, fmt.Errorf("got %d parameters and %d ranges", len(g.paramNames), len(g.ranges))
	}

	grid := g.Points()
	points := make([]Point, len(grid))

	eg, ctx := errgroup.WithContext(ctx)
	if g.workers > 0 {
		eg.SetLimit(g.workers)
	}
	for i, params := range grid {
		eg.Go(func() error {
			cfg := base
			if err := Apply(&cfg, params); err != nil {
				return err
			}
			exp := experiment.New(cfg)
			if err := exp.Setup(metrics.Defaults()); err != nil {
				return err
			}
			res, err := exp.Run(ctx)
			if err != nil {
				return fmt.Errorf("point %v: %w", params, err)
			}
			points[i] = Point{Params: params, Metrics: res.Metrics}
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return points, nil
}

// Best returns the point with the lowest metric, or the highest when
// maximize is set.
func Best(points []Point, metric string, maximize bool) (Point, bool) {
	best := math.Inf(1)
	if maximize {
		best = math.Inf(-1)
	}
	var out Point
	found := false
	for _, p := range points {
		v, ok := p.Metrics[metric]
		if !ok {
			continue
		}
		if (maximize && v > best) || (!maximize && v < best) {
			best, out, found = v, p, true
		}
	}
	return out, found
}

// Threshold returns the smallest value of param at which metric reaches
// limit, e.g. the weakest magnitude that topples anything.
func Threshold(points []Point, param, metric string, limit float64) (float64, bool) {
	sorted := make([]Point, len(points))
	copy(sorted, points)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Params[param] < sorted[j].Params[param]
	})
	for _, p := range sorted {
		if p.Metrics[metric] >= limit {
			return p.Params[param], true
		}
	}
	return 0, false
}

// Linspace returns n evenly spaced values from lo to hi inclusive.
func Linspace(lo, hi float64, n int) []float64 {
	if n <= 1 {
		return []float64{lo}
	}
	out := make([]float64, n)
	step := (hi - lo) / float64(n-1)
	for i := range out {
		out[i] = lo + float64(i)*step
	}
	return out
}
