package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/san-kum/demonsim/internal/demon"
	"github.com/san-kum/demonsim/internal/metrics"
	"github.com/san-kum/demonsim/internal/sim"
)

const (
	DefaultLattice    = "array"
	DefaultSize       = 32
	DefaultDim        = 2
	DefaultIterations = 100000
	DefaultCoupling   = "per-bond"
	DefaultAcceptance = "inclusive"
)

type Config struct {
	Lattice         string  `yaml:"lattice"`
	Size            int     `yaml:"size"`
	Dim             int     `yaml:"dim"`
	Field           float64 `yaml:"field"`
	Coupling        string  `yaml:"coupling"`
	Acceptance      string  `yaml:"acceptance"`
	Seed            uint64  `yaml:"seed"`
	Iterations      int     `yaml:"iterations"`
	Clamp           float64 `yaml:"clamp"`
	InitialDemon    float64 `yaml:"initial_demon"`
	CheckInvariants bool    `yaml:"check_invariants"`
	Quantum         float64 `yaml:"quantum"`
	// LogEvery logs progress every n steps; 0 disables it.
	LogEvery int `yaml:"log_every"`
	// Unbounded ignores Iterations; the run ends when its context does.
	Unbounded bool `yaml:"unbounded"`
}

func DefaultConfig() *Config {
	return &Config{
		Lattice:         DefaultLattice,
		Size:            DefaultSize,
		Dim:             DefaultDim,
		Coupling:        DefaultCoupling,
		Acceptance:      DefaultAcceptance,
		Iterations:      DefaultIterations,
		CheckInvariants: true,
		Quantum:         metrics.DefaultQuantum,
	}
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return cfg, nil
}

func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// Validate fails fast on anything the lattice, engine or driver would reject.
func (c *Config) Validate() error {
	if c.Lattice != "array" && c.Lattice != "graph" {
		return fmt.Errorf("%w: unknown lattice %q", demon.ErrConfiguration, c.Lattice)
	}
	if c.Size <= 0 {
		return fmt.Errorf("%w: size must be positive, got %d", demon.ErrConfiguration, c.Size)
	}
	if c.Dim <= 0 {
		return fmt.Errorf("%w: dim must be positive, got %d", demon.ErrConfiguration, c.Dim)
	}
	if c.InitialDemon < 0 {
		return fmt.Errorf("%w: initial demon energy must be non-negative, got %v", demon.ErrConfiguration, c.InitialDemon)
	}
	if c.Quantum < 0 {
		return fmt.Errorf("%w: quantum must be positive, got %v", demon.ErrConfiguration, c.Quantum)
	}
	if c.LogEvery < 0 {
		return fmt.Errorf("%w: log_every must be non-negative, got %d", demon.ErrConfiguration, c.LogEvery)
	}
	if _, err := c.EngineOptions(); err != nil {
		return err
	}
	return c.SimConfig().Validate()
}

func (c *Config) EngineOptions() (demon.Options, error) {
	coupling, err := demon.ParseCoupling(c.Coupling)
	if err != nil {
		return demon.Options{}, err
	}
	acceptance, err := demon.ParseAcceptance(c.Acceptance)
	if err != nil {
		return demon.Options{}, err
	}
	return demon.Options{Field: c.Field, Coupling: coupling, Acceptance: acceptance}, nil
}

func (c *Config) SimConfig() sim.Config {
	return sim.Config{
		Iterations:      c.Iterations,
		ClampCeiling:    c.Clamp,
		CheckInvariants: c.CheckInvariants,
		Unbounded:       c.Unbounded,
	}
}

// Sites is N^dim.
func (c *Config) Sites() int {
	total := 1
	for i := 0; i < c.Dim; i++ {
		total *= c.Size
	}
	return total
}
