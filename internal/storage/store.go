// Package storage persists rollouts and parameter checkpoints.
package storage

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/san-kum/rensim/internal/ren"
	"github.com/san-kum/rensim/internal/sim"
)

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
	ID        string             `json:"id"`
	Name      string             `json:"name"`
	Timestamp time.Time          `json:"timestamp"`
	Seed      int64              `json:"seed"`
	Dims      ren.Dims           `json:"dims"`
	Variant   string             `json:"variant"`
	Horizon   int                `json:"horizon"`
	Metrics   map[string]float64 `json:"metrics"`
}

// Save writes one run directory: metadata, the output and state
// trajectories as CSV, and the parameter checkpoint that produced them.
func (s *Store) Save(name string, seed int64, model *ren.Model, result *sim.Result) (string, error) {
	runID := fmt.Sprintf("%s_%d", name, time.Now().Unix())
	runDir := filepath.Join(s.baseDir, runID)

	if err := os.MkdirAll(runDir, 0755); err != nil {
		return "", err
	}

	meta := RunMetadata{
		ID:        runID,
		Name:      name,
		Timestamp: time.Now(),
		Seed:      seed,
		Dims:      model.Dynamics().Dims(),
		Variant:   model.Variant().String(),
		Horizon:   len(result.Times),
		Metrics:   result.Metrics,
	}
	if err := writeJSON(filepath.Join(runDir, "metadata.json"), meta); err != nil {
		return "", err
	}

	if err := writeSeries(filepath.Join(runDir, "outputs.csv"), result.Times, result.Outputs); err != nil {
		return "", err
	}
	states := make([][]float64, len(result.States))
	for i, st := range result.States {
		states[i] = st
	}
	if err := writeSeries(filepath.Join(runDir, "states.csv"), result.Times, states); err != nil {
		return "", err
	}

	if err := model.Params().Checkpoint().WriteFile(filepath.Join(runDir, "checkpoint.json")); err != nil {
		return "", err
	}
	return runID, nil
}

func (s *Store) List() ([]RunMetadata, error) {
	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var runs []RunMetadata
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		meta, err := s.LoadMetadata(e.Name())
		if err != nil {
			continue
		}
		runs = append(runs, *meta)
	}
	sort.Slice(runs, func(i, j int) bool {
		return runs[i].Timestamp.After(runs[j].Timestamp)
	})
	return runs, nil
}

func (s *Store) LoadMetadata(runID string) (*RunMetadata, error) {
	data, err := os.ReadFile(filepath.Join(s.baseDir, runID, "metadata.json"))
	if err != nil {
		return nil, err
	}
	var meta RunMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, err
	}
	return &meta, nil
}

// LoadOutputs reads back the output trajectory of a stored run.
func (s *Store) LoadOutputs(runID string) (times []float64, outputs [][]float64, err error) {
	return readSeries(filepath.Join(s.baseDir, runID, "outputs.csv"))
}

// LoadModel rebuilds the model from a run's checkpoint. The load path
// recompiles the dynamics before handing the model back.
func (s *Store) LoadModel(runID string) (*ren.Model, error) {
	return ren.LoadFile(filepath.Join(s.baseDir, runID, "checkpoint.json"))
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

func writeSeries(path string, times []float64, rows [][]float64) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	defer w.Flush()

	for i, t := range times {
		if i >= len(rows) {
			break
		}
		record := make([]string, 0, len(rows[i])+1)
		record = append(record, strconv.FormatFloat(t, 'g', -1, 64))
		for _, v := range rows[i] {
			record = append(record, strconv.FormatFloat(v, 'g', -1, 64))
		}
		if err := w.Write(record); err != nil {
			return err
		}
	}
	return w.Error()
}

func readSeries(path string) ([]float64, [][]float64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return nil, nil, err
	}

	times := make([]float64, 0, len(records))
	rows := make([][]float64, 0, len(records))
	for _, rec := range records {
		if len(rec) < 1 {
			continue
		}
		t, err := strconv.ParseFloat(rec[0], 64)
		if err != nil {
			return nil, nil, err
		}
		row := make([]float64, 0, len(rec)-1)
		for _, field := range rec[1:] {
			v, err := strconv.ParseFloat(field, 64)
			if err != nil {
				return nil, nil, err
			}
			row = append(row, v)
		}
		times = append(times, t)
		rows = append(rows, row)
	}
	return times, rows, nil
}
