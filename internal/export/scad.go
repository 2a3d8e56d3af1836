package export

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/san-kum/spherelax/internal/dynamo"
)

// SceneMode selects the CSG structure written for a particle set.
type SceneMode int

const (
	// Solid writes one union of all spheres.
	Solid SceneMode = iota
	// Shell writes the difference of an outer and a shrunken inner union.
	Shell
)

func (m SceneMode) String() string {
	switch m {
	case Solid:
		return "solid"
	case Shell:
		return "shell"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

func ParseSceneMode(s string) (SceneMode, error) {
	switch s {
	case "solid", "union":
		return Solid, nil
	case "shell", "difference":
		return Shell, nil
	default:
		return 0, &dynamo.ConfigError{Field: "export.mode", Value: s, Reason: "want solid or shell"}
	}
}

const (
	DefaultResolution = 30
	DefaultPrecision  = 6
)

// Scene writes particle sets as OpenSCAD source.
type Scene struct {
	Mode        SceneMode
	BaseRadius  float64
	ShellOffset float64
	UseWeights  bool
	Resolution  int
	Precision   int
}

func NewScene(mode SceneMode, baseRadius float64) *Scene {
	return &Scene{
		Mode:        mode,
		BaseRadius:  baseRadius,
		ShellOffset: baseRadius / 5,
		Resolution:  DefaultResolution,
		Precision:   DefaultPrecision,
	}
}

func (sc *Scene) Validate() error {
	if !(sc.BaseRadius > 0) {
		return &dynamo.ConfigError{Field: "export.base_radius", Value: sc.BaseRadius, Reason: "must be positive"}
	}
	if sc.Resolution < 3 {
		return &dynamo.ConfigError{Field: "export.resolution", Value: sc.Resolution, Reason: "must be at least 3"}
	}
	if sc.Precision < 0 || sc.Precision > 17 {
		return &dynamo.ConfigError{Field: "export.precision", Value: sc.Precision, Reason: "must be in [0,17]"}
	}
	if sc.Mode == Shell && !(sc.ShellOffset > 0) {
		return &dynamo.ConfigError{Field: "export.shell_offset", Value: sc.ShellOffset, Reason: "must be positive in shell mode"}
	}
	return nil
}

// Radius returns the sphere radius written for p.
func (sc *Scene) Radius(p dynamo.Particle) float64 {
	if sc.UseWeights {
		return p.Radius(sc.BaseRadius)
	}
	return sc.BaseRadius
}

// Write emits the scene for snap. The output depends only on the snapshot
// and the scene settings.
func (sc *Scene) Write(w io.Writer, snap dynamo.Snapshot) error {
	if err := sc.Validate(); err != nil {
		return err
	}

	bw := bufio.NewWriter(w)
	switch sc.Mode {
	case Shell:
		for i := 0; i < snap.Len(); i++ {
			if r := sc.Radius(snap.Particle(i)) - sc.ShellOffset; !(r > 0) {
				return &dynamo.ConfigError{
					Field:  "export.shell_offset",
					Value:  sc.ShellOffset,
					Reason: fmt.Sprintf("inner radius of particle %d is %s", i, sc.num(r)),
				}
			}
		}
		bw.WriteString("difference(){\n")
		sc.writeUnion(bw, snap, 0)
		sc.writeUnion(bw, snap, sc.ShellOffset)
		bw.WriteString("}\n")
	default:
		sc.writeUnion(bw, snap, 0)
	}
	return bw.Flush()
}

func (sc *Scene) writeUnion(w *bufio.Writer, snap dynamo.Snapshot, shrink float64) {
	w.WriteString("union(){\n")
	for i := 0; i < snap.Len(); i++ {
		p := snap.Particle(i)
		fmt.Fprintf(w, "translate([%s,%s,%s]) { sphere(%s, $fn=%d); };\n",
			sc.num(p.Pos.X), sc.num(p.Pos.Y), sc.num(p.Pos.Z),
			sc.num(sc.Radius(p)-shrink), sc.Resolution)
	}
	w.WriteString("};\n")
}

// num formats v without locale and with negative zero folded to zero.
func (sc *Scene) num(v float64) string {
	s := strconv.FormatFloat(v, 'f', sc.Precision, 64)
	if strings.HasPrefix(s, "-") && strings.Trim(s, "-0.") == "" {
		return s[1:]
	}
	return s
}

// Render returns the scene source for snap.
func (sc *Scene) Render(snap dynamo.Snapshot) (string, error) {
	var b strings.Builder
	if err := sc.Write(&b, snap); err != nil {
		return "", err
	}
	return b.String(), nil
}

// WriteFile writes the scene to path. The file is written to a temporary
// sibling first and renamed, so a failed export never leaves a truncated
// scene behind.
func (sc *Scene) WriteFile(path string, snap dynamo.Snapshot) error {
	if err := sc.Validate(); err != nil {
		return err
	}
	return writeAtomic(path, func(w io.Writer) error { return sc.Write(w, snap) })
}

func writeAtomic(path string, fn func(io.Writer) error) error {
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return &dynamo.ExportError{Op: "create", Path: path, Err: err}
	}

	if err := fn(f); err != nil {
		f.Close()
		os.Remove(tmp)
		return wrapWrite(path, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return &dynamo.ExportError{Op: "close", Path: path, Err: err}
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return &dynamo.ExportError{Op: "rename", Path: path, Err: err}
	}
	return nil
}

func wrapWrite(path string, err error) error {
	if _, isCfg := err.(*dynamo.ConfigError); isCfg {
		return err
	}
	return &dynamo.ExportError{Op: "write", Path: path, Err: err}
}
