package automation

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/san-kum/demonsim/internal/config"
	"github.com/san-kum/demonsim/internal/demon"
	"github.com/san-kum/demonsim/internal/experiment"
	"github.com/san-kum/demonsim/internal/sim"
)

// Scenario defines a scripted sequence of runs
type Scenario struct {
	Name        string         `yaml:"name"`
	Description string         `yaml:"description"`
	Preset      string         `yaml:"preset"`
	Steps       []ScenarioStep `yaml:"steps"`
}

// ScenarioStep overrides the base configuration for one run. Unset fields
// keep the base value.
type ScenarioStep struct {
	Name         string   `yaml:"name"`
	Lattice      string   `yaml:"lattice"`
	Size         int      `yaml:"size"`
	Dim          int      `yaml:"dim"`
	Field        *float64 `yaml:"field"`
	Coupling     string   `yaml:"coupling"`
	Acceptance   string   `yaml:"acceptance"`
	Seed         *uint64  `yaml:"seed"`
	Iterations   int      `yaml:"iterations"`
	Clamp        *float64 `yaml:"clamp"`
	InitialDemon *float64 `yaml:"initial_demon"`
	// Continue resumes from the previous step's final state instead of a
	// fresh lattice. Lattice shape and rules are then inherited.
	Continue bool `yaml:"continue"`
}

type StepResult struct {
	Name    string             `json:"name" yaml:"name"`
	Summary experiment.Summary `json:"summary" yaml:"summary"`
}

// LoadScenario loads a scenario from a YAML file
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseScenario(data)
}

func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	if err := yaml.Unmarshal(data, &scenario); err != nil {
		return nil, fmt.Errorf("parse scenario: %w", err)
	}
	if len(scenario.Steps) == 0 {
		return nil, fmt.Errorf("%w: scenario %q has no steps", demon.ErrConfiguration, scenario.Name)
	}
	if scenario.Steps[0].Continue {
		return nil, fmt.Errorf("%w: first step cannot continue", demon.ErrConfiguration)
	}
	return &scenario, nil
}

// Base returns the configuration every step starts from.
func (s *Scenario) Base() (*config.Config, error) {
	if s.Preset == "" {
		return config.DefaultConfig(), nil
	}
	cfg := config.GetPreset(s.Preset)
	if cfg == nil {
		return nil, fmt.Errorf("%w: unknown preset %q", demon.ErrConfiguration, s.Preset)
	}
	return cfg, nil
}

func (st ScenarioStep) apply(cfg *config.Config) {
	if st.Lattice != "" {
		cfg.Lattice = st.Lattice
	}
	if st.Size != 0 {
		cfg.Size = st.Size
	}
	if st.Dim != 0 {
		cfg.Dim = st.Dim
	}
	if st.Field != nil {
		cfg.Field = *st.Field
	}
	if st.Coupling != "" {
		cfg.Coupling = st.Coupling
	}
	if st.Acceptance != "" {
		cfg.Acceptance = st.Acceptance
	}
	if st.Seed != nil {
		cfg.Seed = *st.Seed
	}
	if st.Iterations != 0 {
		cfg.Iterations = st.Iterations
	}
	if st.Clamp != nil {
		cfg.Clamp = *st.Clamp
	}
	if st.InitialDemon != nil {
		cfg.InitialDemon = *st.InitialDemon
	}
}

// RunScenario executes all steps in order and stops at the first failure,
// returning the summaries completed so far.
func RunScenario(ctx context.Context, scenario *Scenario, logger *slog.Logger) ([]StepResult, error) {
	if logger == nil {
		logger = slog.Default()
	}
	base, err := scenario.Base()
	if err != nil {
		return nil, err
	}

	results := make([]StepResult, 0, len(scenario.Steps))
	var prev *experiment.Experiment

	for i, step := range scenario.Steps {
		name := step.Name
		if name == "" {
			name = fmt.Sprintf("step-%d", i+1)
		}
		logger.Info("scenario step", "scenario", scenario.Name, "step", i+1, "of", len(scenario.Steps), "name", name)

		cfg := *base
		cfg.Unbounded = false
		step.apply(&cfg)

		var exp *experiment.Experiment
		if step.Continue {
			var cp sim.Checkpoint
			cp, err = prev.Checkpoint()
			if err == nil {
				exp, err = experiment.Resume(&cfg, cp, logger)
			}
		} else {
			exp, err = experiment.New(&cfg, logger)
		}
		if err != nil {
			return results, fmt.Errorf("step %d (%s): %w", i+1, name, err)
		}

		res, err := exp.Run(ctx, nil)
		if err != nil {
			return results, fmt.Errorf("step %d (%s) run: %w", i+1, name, err)
		}

		results = append(results, StepResult{Name: name, Summary: exp.Summary(res)})
		prev = exp
	}

	return results, nil
}

// Sweep runs one fresh simulation per initial demon energy, the way a
// temperature scan is done in the microcanonical ensemble.
type Sweep struct {
	Base   *config.Config
	Demons []float64
}

type SweepResult struct {
	InitialDemon float64
	Summary      experiment.Summary
}

func RunSweep(ctx context.Context, sweep *Sweep, logger *slog.Logger) ([]SweepResult, error) {
	if logger == nil {
		logger = slog.Default()
	}
	results := make([]SweepResult, 0, len(sweep.Demons))

	for i, e := range sweep.Demons {
		cfg := *sweep.Base
		cfg.Unbounded = false
		cfg.InitialDemon = e

		exp, err := experiment.New(&cfg, logger)
		if err != nil {
			return results, err
		}
		res, err := exp.Run(ctx, nil)
		if err != nil {
			return results, err
		}

		sum := exp.Summary(res)
		results = append(results, SweepResult{InitialDemon: e, Summary: sum})
		logger.Info("sweep point", "index", i+1, "of", len(sweep.Demons), "initial_demon", e, "temperature", sum.Temperature)
	}

	return results, nil
}
