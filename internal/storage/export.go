package storage

import (
	"encoding/csv"
	"encoding/json"
	"io"
	"os"
	"strconv"

	"github.com/san-kum/demonsim/internal/config"
	"github.com/san-kum/demonsim/internal/sim"
)

type ExportData struct {
	Lattice       string             `json:"lattice"`
	Size          int                `json:"size"`
	Dim           int                `json:"dim"`
	Field         float64            `json:"field"`
	Seed          uint64             `json:"seed"`
	Steps         int                `json:"steps"`
	Accepted      int                `json:"accepted"`
	FinalDemon    float64            `json:"final_demon"`
	Energy        float64            `json:"energy"`
	Released      float64            `json:"released"`
	DemonHistory  []float64          `json:"demon_history"`
	Magnetization []float64          `json:"magnetization"`
	Metrics       map[string]float64 `json:"metrics"`
}

func newExportData(cfg *config.Config, result *sim.Result) ExportData {
	return ExportData{
		Lattice:       cfg.Lattice,
		Size:          cfg.Size,
		Dim:           cfg.Dim,
		Field:         cfg.Field,
		Seed:          cfg.Seed,
		Steps:         result.Steps,
		Accepted:      result.Accepted,
		FinalDemon:    result.FinalDemon,
		Energy:        result.FinalLattice,
		Released:      result.Released,
		DemonHistory:  result.DemonHistory,
		Magnetization: result.Magnetization,
		Metrics:       result.Metrics,
	}
}

func ExportJSON(w io.Writer, cfg *config.Config, result *sim.Result) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(newExportData(cfg, result))
}

func ExportJSONFile(path string, cfg *config.Config, result *sim.Result) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	if err := ExportJSON(file, cfg, result); err != nil {
		return err
	}
	return file.Close()
}

// WriteCSV writes one row per sampled step: step, demon_energy, magnetization.
func WriteCSV(w io.Writer, result *sim.Result) error {
	cw := csv.NewWriter(w)

	if err := cw.Write([]string{"step", "demon_energy", "magnetization"}); err != nil {
		return err
	}
	for i, e := range result.DemonHistory {
		row := []string{
			strconv.Itoa(i),
			strconv.FormatFloat(e, 'g', -1, 64),
			strconv.FormatFloat(result.Magnetization[i], 'g', -1, 64),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}

// Export writes a stored run as JSON.
func (s *Store) Export(w io.Writer, runID string) error {
	meta, err := s.Load(runID)
	if err != nil {
		return err
	}
	h, err := s.LoadHistory(runID)
	if err != nil {
		return err
	}

	data := ExportData{
		Lattice:       meta.Lattice,
		Size:          meta.Size,
		Dim:           meta.Dim,
		Field:         meta.Field,
		Seed:          meta.Seed,
		Steps:         meta.Steps,
		Accepted:      meta.Accepted,
		FinalDemon:    meta.FinalDemon,
		Energy:        meta.Energy,
		Released:      meta.Released,
		DemonHistory:  h.DemonEnergy,
		Magnetization: h.Magnetization,
		Metrics:       meta.Metrics,
	}
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(data)
}

// ExportCSV copies a stored run's history to w.
func (s *Store) ExportCSV(w io.Writer, runID string) error {
	h, err := s.LoadHistory(runID)
	if err != nil {
		return err
	}
	return WriteCSV(w, &sim.Result{DemonHistory: h.DemonEnergy, Magnetization: h.Magnetization})
}
