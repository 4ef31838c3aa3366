package config

import "sort"

var Presets = map[string]*Config{
	"small": {
		Lattice: "array", Size: 6, Dim: 2, Iterations: 100,
		Coupling: "per-bond", Acceptance: "strict", CheckInvariants: true, Quantum: 4,
	},
	"square": {
		Lattice: "array", Size: 64, Dim: 2, Iterations: 500000, InitialDemon: 800,
		Coupling: "per-bond", Acceptance: "inclusive", CheckInvariants: true, Quantum: 4,
	},
	"cubic": {
		Lattice: "array", Size: 12, Dim: 3, Iterations: 400000, InitialDemon: 1200,
		Coupling: "per-bond", Acceptance: "inclusive", CheckInvariants: true, Quantum: 4,
	},
	"graph": {
		Lattice: "graph", Size: 16, Dim: 2, Iterations: 100000,
		Coupling: "per-bond", Acceptance: "inclusive", CheckInvariants: true, Quantum: 4,
	},
	"graph4d": {
		Lattice: "graph", Size: 5, Dim: 4, Iterations: 100000, InitialDemon: 400,
		Coupling: "per-bond", Acceptance: "inclusive", CheckInvariants: true, Quantum: 4,
	},
	"annealed": {
		Lattice: "array", Size: 32, Dim: 2, Iterations: 200000, Clamp: 100,
		Coupling: "per-bond", Acceptance: "strict", CheckInvariants: true, Quantum: 4,
	},
	"field": {
		Lattice: "graph", Size: 16, Dim: 2, Field: 0.1, Iterations: 200000,
		Coupling: "per-bond", Acceptance: "inclusive", CheckInvariants: true, Quantum: 4,
	},
}

// GetPreset returns a copy of the named preset, or nil.
func GetPreset(name string) *Config {
	cfg, ok := Presets[name]
	if !ok {
		return nil
	}
	c := *cfg
	return &c
}

func ListPresets() []string {
	names := make([]string, 0, len(Presets))
	for name := range Presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
