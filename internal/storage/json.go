package storage

import (
	"encoding/json"
	"io"
	"os"

	"github.com/san-kum/spherelax/internal/config"
	"github.com/san-kum/spherelax/internal/sim"
)

type ParticleData struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Z      float64 `json:"z"`
	Weight float64 `json:"weight"`
}

type ExportData struct {
	Name        string             `json:"name"`
	Seed        int64              `json:"seed"`
	Steps       int                `json:"steps"`
	Temperature float64            `json:"temperature"`
	Canceled    bool               `json:"canceled"`
	Metrics     map[string]float64 `json:"metrics"`
	History     []sim.Sample       `json:"history"`
	Particles   []ParticleData     `json:"particles"`
}

func NewExportData(cfg *config.Config, result *sim.Result) ExportData {
	data := ExportData{
		Name:        cfg.Name,
		Seed:        cfg.Seed,
		Steps:       result.Steps,
		Temperature: result.Temperature,
		Canceled:    result.Canceled,
		Metrics:     result.Metrics,
		History:     result.History,
		Particles:   make([]ParticleData, result.Final.Len()),
	}

	for i := range data.Particles {
		p := result.Final.Particle(i)
		data.Particles[i] = ParticleData{X: p.Pos.X, Y: p.Pos.Y, Z: p.Pos.Z, Weight: p.Weight}
	}

	return data
}

func WriteJSON(w io.Writer, cfg *config.Config, result *sim.Result) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(NewExportData(cfg, result))
}

func ExportJSON(path string, cfg *config.Config, result *sim.Result) error {
	return writeFile(path, func(w io.Writer) error {
		return WriteJSON(w, cfg, result)
	})
}

func ExportJSONStdout(cfg *config.Config, result *sim.Result) error {
	return WriteJSON(os.Stdout, cfg, result)
}
