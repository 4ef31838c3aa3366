package optim

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"slices"

	"github.com/san-kum/demonsim/internal/config"
	"github.com/san-kum/demonsim/internal/demon"
	"github.com/san-kum/demonsim/internal/experiment"
)

// setters maps searchable parameter names onto config fields.
var setters = map[string]func(*config.Config, float64){
	"demon": func(c *config.Config, v float64) { c.InitialDemon = v },
	"field": func(c *config.Config, v float64) { c.Field = v },
	"clamp": func(c *config.Config, v float64) { c.Clamp = v },
	"size":  func(c *config.Config, v float64) { c.Size = int(v) },
}

// Parameters lists the names a grid search accepts.
func Parameters() []string {
	names := make([]string, 0, len(setters))
	for name := range setters {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Objective scores a finished run; lower is better.
type Objective func(experiment.Summary) float64

// TargetTemperature scores a run by its distance from temperature t. Runs
// without a temperature estimate score +Inf.
func TargetTemperature(t float64) Objective {
	return func(s experiment.Summary) float64 {
		if s.Temperature == 0 {
			return math.Inf(1)
		}
		return math.Abs(s.Temperature - t)
	}
}

type GridSearch struct {
	paramNames []string
	ranges     [][]float64
}

func NewGridSearch(params []string, ranges [][]float64) (*GridSearch, error) {
	if len(params) != len(ranges) {
		return nil, fmt.Errorf("%w: %d parameters but %d ranges", demon.ErrConfiguration, len(params), len(ranges))
	}
	for i, name := range params {
		if _, ok := setters[name]; !ok {
			return nil, fmt.Errorf("%w: unknown parameter %q (available: %v)", demon.ErrConfiguration, name, Parameters())
		}
		if len(ranges[i]) == 0 {
			return nil, fmt.Errorf("%w: no values for %q", demon.ErrConfiguration, name)
		}
	}
	return &GridSearch{paramNames: params, ranges: ranges}, nil
}

// Point is one evaluated grid cell.
type Point struct {
	Params  map[string]float64
	Score   float64
	Summary experiment.Summary
}

// Search runs one experiment per grid cell on a copy of base and returns the
// best point. The first failing run aborts the search.
func (g *GridSearch) Search(ctx context.Context, base *config.Config, objective Objective, logger *slog.Logger) (Point, error) {
	if logger == nil {
		logger = slog.Default()
	}
	best := Point{Score: math.Inf(1)}
	err := g.searchRecursive(ctx, 0, map[string]float64{}, base, objective, logger, &best)
	return best, err
}

func (g *GridSearch) searchRecursive(
	ctx context.Context,
	depth int,
	current map[string]float64,
	base *config.Config,
	objective Objective,
	logger *slog.Logger,
	best *Point,
) error {
	if depth == len(g.paramNames) {
		cfg := *base
		cfg.LogEvery = 0
		cfg.Unbounded = false
		for name, v := range current {
			setters[name](&cfg, v)
		}

		exp, err := experiment.New(&cfg, logger)
		if err != nil {
			return err
		}
		res, err := exp.Run(ctx, nil)
		if err != nil {
			return err
		}

		sum := exp.Summary(res)
		score := objective(sum)
		logger.Debug("grid point", "params", current, "score", score)
		if score < best.Score || best.Params == nil {
			*best = Point{Params: current, Score: score, Summary: sum}
		}
		return nil
	}

	paramName := g.paramNames[depth]
	for _, val := range g.ranges[depth] {
		newParams := make(map[string]float64, len(current)+1)
		for k, v := range current {
			newParams[k] = v
		}
		newParams[paramName] = val

		if err := g.searchRecursive(ctx, depth+1, newParams, base, objective, logger, best); err != nil {
			return err
		}
	}
	return nil
}
