package storage

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/san-kum/demonsim/internal/config"
	"github.com/san-kum/demonsim/internal/sim"
)

var ErrNotFound = errors.New("storage: run not found")

type Store struct {
	baseDir string
}

func New(baseDir string) *Store {
	return &Store{baseDir: baseDir}
}

func (s *Store) Init() error {
	return os.MkdirAll(s.baseDir, 0755)
}

type RunMetadata struct {
	ID         string             `json:"id"`
	Lattice    string             `json:"lattice"`
	Timestamp  time.Time          `json:"timestamp"`
	Seed       uint64             `json:"seed"`
	Size       int                `json:"size"`
	Dim        int                `json:"dim"`
	Field      float64            `json:"field"`
	Coupling   string             `json:"coupling"`
	Acceptance string             `json:"acceptance"`
	Clamp      float64            `json:"clamp"`
	Steps      int                `json:"steps"`
	Accepted   int                `json:"accepted"`
	FinalDemon float64            `json:"final_demon"`
	Energy     float64            `json:"energy"`
	Released   float64            `json:"released"`
	Metrics    map[string]float64 `json:"metrics"`
}

// History is the per-step record of a run as stored in history.csv.
type History struct {
	Steps         []int
	DemonEnergy   []float64
	Magnetization []float64
}

func (h History) Len() int { return len(h.Steps) }

func NewRunID(lattice string) string {
	return fmt.Sprintf("%s_%s", lattice, uuid.NewString()[:8])
}

func (s *Store) Save(cfg *config.Config, result *sim.Result) (string, error) {
	runID := NewRunID(cfg.Lattice)
	runDir := filepath.Join(s.baseDir, runID)

	if err := os.MkdirAll(runDir, 0755); err != nil {
		return "", err
	}

	meta := RunMetadata{
		ID:         runID,
		Lattice:    cfg.Lattice,
		Timestamp:  time.Now(),
		Seed:       cfg.Seed,
		Size:       cfg.Size,
		Dim:        cfg.Dim,
		Field:      cfg.Field,
		Coupling:   cfg.Coupling,
		Acceptance: cfg.Acceptance,
		Clamp:      cfg.Clamp,
		Steps:      result.Steps,
		Accepted:   result.Accepted,
		FinalDemon: result.FinalDemon,
		Energy:     result.FinalLattice,
		Released:   result.Released,
		Metrics:    result.Metrics,
	}

	if err := writeJSON(filepath.Join(runDir, "metadata.json"), meta); err != nil {
		return "", err
	}
	if err := writeHistory(filepath.Join(runDir, "history.csv"), result); err != nil {
		return "", err
	}
	return runID, nil
}

func writeJSON(path string, v any) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func writeHistory(path string, result *sim.Result) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := WriteCSV(f, result); err != nil {
		return err
	}
	return f.Close()
}

// List returns every readable run, oldest first.
func (s *Store) List() ([]RunMetadata, error) {
	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []RunMetadata{}, nil
		}
		return nil, err
	}

	runs := make([]RunMetadata, 0)
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}

		meta, err := s.Load(entry.Name())
		if err != nil {
			continue
		}
		runs = append(runs, *meta)
	}

	sort.Slice(runs, func(i, j int) bool { return runs[i].Timestamp.Before(runs[j].Timestamp) })
	return runs, nil
}

func (s *Store) Load(runID string) (*RunMetadata, error) {
	metaPath := filepath.Join(s.baseDir, runID, "metadata.json")
	data, err := os.ReadFile(metaPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, runID)
		}
		return nil, err
	}

	var meta RunMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("run %s: %w", runID, err)
	}

	return &meta, nil
}

func (s *Store) LoadHistory(runID string) (History, error) {
	csvPath := filepath.Join(s.baseDir, runID, "history.csv")
	file, err := os.Open(csvPath)
	if err != nil {
		if os.IsNotExist(err) {
			return History{}, fmt.Errorf("%w: %s", ErrNotFound, runID)
		}
		return History{}, err
	}
	defer file.Close()

	r := csv.NewReader(file)
	records, err := r.ReadAll()
	if err != nil {
		return History{}, err
	}

	var h History
	if len(records) < 2 {
		return h, nil
	}

	for i, record := range records[1:] {
		step, err := strconv.Atoi(record[0])
		if err != nil {
			return History{}, fmt.Errorf("history.csv line %d: %w", i+2, err)
		}
		demonEnergy, err := strconv.ParseFloat(record[1], 64)
		if err != nil {
			return History{}, fmt.Errorf("history.csv line %d: %w", i+2, err)
		}
		mag, err := strconv.ParseFloat(record[2], 64)
		if err != nil {
			return History{}, fmt.Errorf("history.csv line %d: %w", i+2, err)
		}
		h.Steps = append(h.Steps, step)
		h.DemonEnergy = append(h.DemonEnergy, demonEnergy)
		h.Magnetization = append(h.Magnetization, mag)
	}

	return h, nil
}

func (s *Store) Delete(runID string) error {
	runDir := filepath.Join(s.baseDir, runID)
	if _, err := os.Stat(runDir); os.IsNotExist(err) {
		return fmt.Errorf("%w: %s", ErrNotFound, runID)
	}
	return os.RemoveAll(runDir)
}
