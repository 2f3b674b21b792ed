// Package storage persists offline runs as a directory per run holding
// metadata.json and a states.csv trace.
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

	"github.com/san-kum/quakesim/internal/experiment"
	"github.com/san-kum/quakesim/internal/scene"
)

var ErrRunNotFound = errors.New("storage: run not found")

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
	Scene      string             `json:"scene"`
	Timestamp  time.Time          `json:"timestamp"`
	Magnitude  float64            `json:"magnitude"`
	Dt         float64            `json:"dt"`
	Duration   float64            `json:"duration"`
	Detections []scene.Detection  `json:"detections"`
	Metrics    map[string]float64 `json:"metrics"`
}

// Save writes a run and returns its id. Bodies are flattened into
// <id>_x, <id>_y, <id>_z and <id>_tilt columns after the floor columns.
func (s *Store) Save(cfg experiment.Config, result *experiment.Result) (string, error) {
	name := cfg.Scene
	if name == "" {
		name = "run"
	}
	runID := fmt.Sprintf("%s_%s", name, uuid.NewString()[:8])
	runDir := filepath.Join(s.baseDir, runID)

	if err := os.MkdirAll(runDir, 0755); err != nil {
		return "", err
	}

	meta := RunMetadata{
		ID:         runID,
		Scene:      cfg.Scene,
		Timestamp:  time.Now(),
		Magnitude:  cfg.Magnitude,
		Dt:         cfg.Dt,
		Duration:   cfg.Duration,
		Detections: scene.Clone(cfg.Detections),
		Metrics:    result.Metrics,
	}

	metaFile, err := os.Create(filepath.Join(runDir, "metadata.json"))
	if err != nil {
		return "", err
	}
	defer metaFile.Close()

	enc := json.NewEncoder(metaFile)
	enc.SetIndent("", "  ")
	if err := enc.Encode(meta); err != nil {
		return "", err
	}

	csvFile, err := os.Create(filepath.Join(runDir, "states.csv"))
	if err != nil {
		return "", err
	}
	defer csvFile.Close()

	w := csv.NewWriter(csvFile)
	if err := writeFrames(w, result.Frames); err != nil {
		return "", err
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return "", err
	}

	return runID, nil
}

func writeFrames(w *csv.Writer, frames []experiment.Frame) error {
	if len(frames) == 0 {
		return nil
	}

	header := []string{"time", "floor_x", "floor_z"}
	for _, b := range frames[0].Bodies {
		header = append(header, b.ObjectID+"_x", b.ObjectID+"_y", b.ObjectID+"_z", b.ObjectID+"_tilt")
	}
	if err := w.Write(header); err != nil {
		return err
	}

	row := make([]string, 0, len(header))
	for _, f := range frames {
		row = append(row[:0], format(f.T), format(f.Floor.X), format(f.Floor.Z))
		for _, b := range f.Bodies {
			row = append(row, format(b.Position.X), format(b.Position.Y), format(b.Position.Z), format(b.Tilt()))
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	return nil
}

func format(v float64) string {
	return strconv.FormatFloat(v, 'f', 6, 64)
}

// List returns every readable run, newest first.
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

	sort.Slice(runs, func(i, j int) bool {
		return runs[i].Timestamp.After(runs[j].Timestamp)
	})
	return runs, nil
}

func (s *Store) Load(runID string) (*RunMetadata, error) {
	data, err := os.ReadFile(filepath.Join(s.baseDir, runID, "metadata.json"))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
		}
		return nil, err
	}

	var meta RunMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, err
	}
	return &meta, nil
}

// Trace is a loaded states.csv.
type Trace struct {
	Columns []string
	Times   []float64
	Rows    [][]float64
}

// Column returns the named series, or nil if the trace has no such column.
func (t *Trace) Column(name string) []float64 {
	idx := -1
	for i, c := range t.Columns {
		if c == name {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil
	}
	out := make([]float64, len(t.Rows))
	for i, row := range t.Rows {
		if idx < len(row) {
			out[i] = row[idx]
		}
	}
	return out
}

// LoadStates reads states.csv. The time column is split into Times and
// left out of Columns and Rows.
func (s *Store) LoadStates(runID string) (*Trace, error) {
	file, err := os.Open(filepath.Join(s.baseDir, runID, "states.csv"))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
		}
		return nil, err
	}
	defer file.Close()

	r := csv.NewReader(file)
	r.FieldsPerRecord = -1

	records, err := r.ReadAll()
	if err != nil {
		return nil, err
	}

	trace := &Trace{Columns: []string{}, Times: []float64{}, Rows: [][]float64{}}
	if len(records) == 0 {
		return trace, nil
	}
	if len(records[0]) > 1 {
		trace.Columns = append(trace.Columns, records[0][1:]...)
	}

	for i := 1; i < len(records); i++ {
		record := records[i]
		if len(record) == 0 {
			continue
		}

		t, err := strconv.ParseFloat(record[0], 64)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}

		row := make([]float64, len(record)-1)
		for j := 1; j < len(record); j++ {
			row[j-1], err = strconv.ParseFloat(record[j], 64)
			if err != nil {
				return nil, fmt.Errorf("row %d col %d: %w", i, j, err)
			}
		}

		trace.Times = append(trace.Times, t)
		trace.Rows = append(trace.Rows, row)
	}
	return trace, nil
}
