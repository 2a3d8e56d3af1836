package export

import (
	"fmt"
	"io"
	"math"
	"sort"
	"strings"

	"github.com/san-kum/spherelax/internal/dynamo"
)

// Preview renders an orthographic XY projection of a snapshot as SVG.
type Preview struct {
	Size       int
	BaseRadius float64
	UseWeights bool
	Fill       string
	Background string
}

func NewPreview(size int, baseRadius float64) *Preview {
	return &Preview{
		Size:       size,
		BaseRadius: baseRadius,
		Fill:       "#00ccff",
		Background: "#0a0a0a",
	}
}

// Write draws particles back to front by Z, so nearer spheres overlap
// farther ones. Brightness falls off with depth.
func (p *Preview) Write(w io.Writer, snap dynamo.Snapshot) error {
	if p.Size <= 0 {
		return &dynamo.ConfigError{Field: "preview.size", Value: p.Size, Reason: "must be positive"}
	}

	extent := 0.0
	for i := 0; i < snap.Len(); i++ {
		pt := snap.Particle(i)
		r := p.radius(pt)
		extent = math.Max(extent, math.Max(math.Abs(pt.Pos.X), math.Abs(pt.Pos.Y))+r)
		extent = math.Max(extent, math.Abs(pt.Pos.Z)+r)
	}
	if extent == 0 {
		extent = 1
	}
	extent *= 1.1
	scale := float64(p.Size) / (2 * extent)

	order := make([]int, snap.Len())
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return snap.Positions[order[a]].Z < snap.Positions[order[b]].Z
	})

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8"?>
<svg xmlns="http://www.w3.org/2000/svg" width="%d" height="%d" viewBox="0 0 %d %d">
<rect width="100%%" height="100%%" fill="%s"/>
<g fill="%s" stroke="#000000" stroke-width="0.5">
`, p.Size, p.Size, p.Size, p.Size, p.Background, p.Fill))

	for _, i := range order {
		pt := snap.Particle(i)
		cx := (pt.Pos.X + extent) * scale
		cy := (extent - pt.Pos.Y) * scale
		depth := 0.35 + 0.65*(pt.Pos.Z+extent)/(2*extent)
		sb.WriteString(fmt.Sprintf(`<circle cx="%.2f" cy="%.2f" r="%.2f" fill-opacity="%.2f"/>
`, cx, cy, p.radius(pt)*scale, depth))
	}

	sb.WriteString("</g>\n</svg>\n")
	_, err := io.WriteString(w, sb.String())
	return err
}

// WriteFile writes the preview to path, replacing any existing file.
func (p *Preview) WriteFile(path string, snap dynamo.Snapshot) error {
	return writeAtomic(path, func(w io.Writer) error { return p.Write(w, snap) })
}

func (p *Preview) radius(pt dynamo.Particle) float64 {
	if p.UseWeights {
		return pt.Radius(p.BaseRadius)
	}
	return p.BaseRadius
}
