package storage

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/san-kum/spherelax/internal/config"
	"github.com/san-kum/spherelax/internal/dynamo"
	"github.com/san-kum/spherelax/internal/sim"
)

const (
	metadataFile  = "metadata.json"
	particlesFile = "particles.csv"
	historyFile   = "history.csv"
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

// Dir returns the directory holding a stored run.
func (s *Store) Dir(runID string) string {
	return filepath.Join(s.baseDir, runID)
}

type RunMetadata struct {
	ID          string             `json:"id"`
	Name        string             `json:"name"`
	Timestamp   time.Time          `json:"timestamp"`
	Seed        int64              `json:"seed"`
	Particles   int                `json:"particles"`
	Steps       int                `json:"steps"`
	Temperature float64            `json:"temperature"`
	Canceled    bool               `json:"canceled"`
	Metrics     map[string]float64 `json:"metrics"`
	Config      *config.Config     `json:"config"`
}

// Save writes the final particle set, the convergence history and the
// metadata of one run into a fresh directory and returns its id.
func (s *Store) Save(cfg *config.Config, result *sim.Result) (string, error) {
	now := time.Now()
	runID := fmt.Sprintf("%s_%d", cfg.Name, now.UnixNano())
	runDir := s.Dir(runID)

	if err := os.MkdirAll(runDir, 0755); err != nil {
		return "", err
	}

	meta := RunMetadata{
		ID:          runID,
		Name:        cfg.Name,
		Timestamp:   now,
		Seed:        cfg.Seed,
		Particles:   result.Final.Len(),
		Steps:       result.Steps,
		Temperature: result.Temperature,
		Canceled:    result.Canceled,
		Metrics:     result.Metrics,
		Config:      cfg,
	}

	if err := writeFile(filepath.Join(runDir, metadataFile), func(w io.Writer) error {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(meta)
	}); err != nil {
		return "", err
	}

	if err := writeFile(filepath.Join(runDir, particlesFile), func(w io.Writer) error {
		return WriteParticles(w, result.Final)
	}); err != nil {
		return "", err
	}

	if err := writeFile(filepath.Join(runDir, historyFile), func(w io.Writer) error {
		return WriteHistory(w, result.History)
	}); err != nil {
		return "", err
	}

	return runID, nil
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
	data, err := os.ReadFile(filepath.Join(s.Dir(runID), metadataFile))
	if err != nil {
		return nil, err
	}

	var meta RunMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("run %s: %w", runID, err)
	}

	return &meta, nil
}

// LoadParticles rebuilds the final particle set of a stored run.
func (s *Store) LoadParticles(runID string) (*dynamo.Set, error) {
	records, err := readCSV(filepath.Join(s.Dir(runID), particlesFile))
	if err != nil {
		return nil, err
	}

	ps := make([]dynamo.Particle, 0, len(records))
	for i, record := range records {
		vals, err := parseRow(record, 4)
		if err != nil {
			return nil, fmt.Errorf("%s line %d: %w", particlesFile, i+2, err)
		}
		ps = append(ps, dynamo.Particle{
			Pos:    r3.Vec{X: vals[0], Y: vals[1], Z: vals[2]},
			Weight: vals[3],
		})
	}

	return dynamo.FromParticles(ps)
}

func (s *Store) LoadHistory(runID string) ([]sim.Sample, error) {
	records, err := readCSV(filepath.Join(s.Dir(runID), historyFile))
	if err != nil {
		return nil, err
	}

	history := make([]sim.Sample, 0, len(records))
	for i, record := range records {
		vals, err := parseRow(record, 4)
		if err != nil {
			return nil, fmt.Errorf("%s line %d: %w", historyFile, i+2, err)
		}
		history = append(history, sim.Sample{
			Step:        int(vals[0]),
			Temperature: vals[1],
			MinDistance: vals[2],
			Energy:      vals[3],
		})
	}

	return history, nil
}

func WriteParticles(out io.Writer, snap dynamo.Snapshot) error {
	w := csv.NewWriter(out)
	if err := w.Write([]string{"x", "y", "z", "weight"}); err != nil {
		return err
	}
	for i := 0; i < snap.Len(); i++ {
		p := snap.Particle(i)
		if err := w.Write([]string{
			formatFloat(p.Pos.X),
			formatFloat(p.Pos.Y),
			formatFloat(p.Pos.Z),
			formatFloat(p.Weight),
		}); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

func WriteHistory(out io.Writer, history []sim.Sample) error {
	w := csv.NewWriter(out)
	if err := w.Write([]string{"step", "temperature", "min_distance", "energy"}); err != nil {
		return err
	}
	for _, h := range history {
		if err := w.Write([]string{
			strconv.Itoa(h.Step),
			formatFloat(h.Temperature),
			formatFloat(h.MinDistance),
			formatFloat(h.Energy),
		}); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

// formatFloat keeps full precision so a reloaded set matches the saved one.
func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

func writeFile(path string, fn func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := fn(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// readCSV returns the data rows of a CSV file with its header removed.
func readCSV(path string) ([][]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	records, err := csv.NewReader(file).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	if len(records) < 2 {
		return [][]string{}, nil
	}
	return records[1:], nil
}

func parseRow(record []string, want int) ([]float64, error) {
	if len(record) != want {
		return nil, fmt.Errorf("want %d fields, got %d", want, len(record))
	}
	vals := make([]float64, want)
	for j, field := range record {
		v, err := strconv.ParseFloat(field, 64)
		if err != nil {
			return nil, err
		}
		vals[j] = v
	}
	return vals, nil
}
