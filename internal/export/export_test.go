package export

import (
	"errors"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/san-kum/spherelax/internal/dynamo"
)

var spherePattern = regexp.MustCompile(`translate\(\[([^,\]]+),([^,\]]+),([^,\]]+)\]\) \{ sphere\(([^,]+), \$fn=(\d+)\); \};`)

func threeParticles() dynamo.Snapshot {
	return dynamo.Snapshot{
		Step: 7,
		Positions: []r3.Vec{
			{X: 1.5, Y: -0.25, Z: 2},
			{X: -1, Y: 0, Z: 0.125},
			{X: 0.333333, Y: 1e-9, Z: -2},
		},
		Weights: []float64{1, 8, 0.125},
	}
}

func parseSpheres(t *testing.T, src string) [][4]float64 {
	t.Helper()
	var out [][4]float64
	for _, m := range spherePattern.FindAllStringSubmatch(src, -1) {
		var v [4]float64
		for k := 0; k < 4; k++ {
			f, err := strconv.ParseFloat(m[k+1], 64)
			require.NoError(t, err)
			v[k] = f
		}
		out = append(out, v)
	}
	return out
}

func TestSolidScene(t *testing.T) {
	snap := threeParticles()
	sc := NewScene(Solid, 0.5)

	src, err := sc.Render(snap)
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(src, "union(){\n"))
	assert.True(t, strings.HasSuffix(src, "};\n"))
	assert.Equal(t, 3, strings.Count(src, "sphere("))

	spheres := parseSpheres(t, src)
	require.Len(t, spheres, 3)
	for i, s := range spheres {
		p := snap.Positions[i]
		assert.InDelta(t, p.X, s[0], 1e-6)
		assert.InDelta(t, p.Y, s[1], 1e-6)
		assert.InDelta(t, p.Z, s[2], 1e-6)
		assert.InDelta(t, 0.5, s[3], 1e-12, "fixed radius when weights are unused")
	}
}

func TestWeightedRadii(t *testing.T) {
	sc := NewScene(Solid, 0.5)
	sc.UseWeights = true

	spheres := parseSpheres(t, mustRender(t, sc, threeParticles()))
	require.Len(t, spheres, 3)
	assert.InDelta(t, 0.5, spheres[0][3], 1e-9)
	assert.InDelta(t, 1.0, spheres[1][3], 1e-9)
	assert.InDelta(t, 0.25, spheres[2][3], 1e-9)
}

func TestShellScene(t *testing.T) {
	snap := threeParticles()
	sc := NewScene(Shell, 0.5)
	sc.ShellOffset = 0.1
	sc.Resolution = 100

	src := mustRender(t, sc, snap)
	assert.True(t, strings.HasPrefix(src, "difference(){\nunion(){\n"))
	assert.True(t, strings.HasSuffix(src, "};\n}\n"), "difference closes without a semicolon")
	assert.Equal(t, 6, strings.Count(src, "sphere("))
	assert.Equal(t, 2, strings.Count(src, "union(){"))
	assert.Contains(t, src, "$fn=100")

	spheres := parseSpheres(t, src)
	require.Len(t, spheres, 6)
	for i := 0; i < 3; i++ {
		outer, inner := spheres[i], spheres[i+3]
		assert.InDelta(t, outer[0], inner[0], 1e-12)
		assert.InDelta(t, 0.5, outer[3], 1e-9)
		assert.InDelta(t, 0.4, inner[3], 1e-9)
	}
}

func TestShellRejectsNonPositiveInnerRadius(t *testing.T) {
	sc := NewScene(Shell, 0.5)
	sc.UseWeights = true
	sc.ShellOffset = 0.3 // smallest sphere is 0.25

	_, err := sc.Render(threeParticles())
	assert.True(t, errors.Is(err, dynamo.ErrInvalidConfig))
}

func TestSceneIsReproducible(t *testing.T) {
	sc := NewScene(Shell, 0.5)
	a := mustRender(t, sc, threeParticles())
	b := mustRender(t, sc, threeParticles())
	assert.Equal(t, a, b)

	assert.Contains(t, a, "translate([1.500000,-0.250000,2.000000]) { sphere(0.500000, $fn=30); };")
}

func TestNegativeZeroIsFolded(t *testing.T) {
	sc := NewScene(Solid, 1)
	snap := dynamo.Snapshot{Positions: []r3.Vec{{X: -1e-12, Y: -0.0, Z: 1}}}

	src := mustRender(t, sc, snap)
	assert.Contains(t, src, "translate([0.000000,0.000000,1.000000])")
}

func TestSceneValidate(t *testing.T) {
	tests := []struct {
		name string
		edit func(*Scene)
	}{
		{"zero radius", func(s *Scene) { s.BaseRadius = 0 }},
		{"low resolution", func(s *Scene) { s.Resolution = 2 }},
		{"bad precision", func(s *Scene) { s.Precision = 20 }},
		{"shell without offset", func(s *Scene) { s.Mode = Shell; s.ShellOffset = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sc := NewScene(Solid, 0.5)
			tt.edit(sc)
			assert.ErrorIs(t, sc.Validate(), dynamo.ErrInvalidConfig)
		})
	}
}

func TestWriteFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "scene.scad")
	sc := NewScene(Solid, 0.5)

	require.NoError(t, sc.WriteFile(path, threeParticles()))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, mustRender(t, sc, threeParticles()), string(data))

	_, err = os.Stat(path + ".tmp")
	assert.True(t, os.IsNotExist(err), "temporary file left behind")
}

func TestWriteFileUnwritable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing", "scene.scad")
	err := NewScene(Solid, 0.5).WriteFile(path, threeParticles())

	require.Error(t, err)
	assert.ErrorIs(t, err, dynamo.ErrIO)
	var exportErr *dynamo.ExportError
	require.ErrorAs(t, err, &exportErr)
	assert.Equal(t, path, exportErr.Path)
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestFileSink(t *testing.T) {
	dir := t.TempDir()
	sink := NewFileSink(filepath.Join(dir, "scene_%04d.scad"), NewScene(Solid, 0.5))
	sink.Preview = NewPreview(200, 0.5)

	snap := threeParticles()
	require.NoError(t, sink.Export(snap))

	assert.FileExists(t, filepath.Join(dir, "scene_0007.scad"))
	assert.FileExists(t, filepath.Join(dir, "scene_0007.svg"))

	fixed := NewFileSink(filepath.Join(dir, "final.scad"), NewScene(Solid, 0.5))
	assert.Equal(t, filepath.Join(dir, "final.scad"), fixed.PathFor(99))
}

func TestPathFor(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"scene.scad", "scene.scad"},
		{"scene_%d.scad", "scene_12.scad"},
		{"frames/scene_%06d.scad", "frames/scene_000012.scad"},
		{"100%_run.scad", "100%_run.scad"},
		{"50%/final.scad", "50%/final.scad"},
		{"100%%_run_%d.scad", "100%_run_12.scad"},
		{"100%%done.scad", "100%%done.scad"},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.want, NewFileSink(tt.path, nil).PathFor(12))
		})
	}
}

func TestPreview(t *testing.T) {
	var b strings.Builder
	require.NoError(t, NewPreview(300, 0.5).Write(&b, threeParticles()))

	svg := b.String()
	assert.True(t, strings.HasPrefix(svg, `<?xml version="1.0"`))
	assert.Equal(t, 3, strings.Count(svg, "<circle"))
	assert.Contains(t, svg, `width="300"`)
}

func TestParseSceneMode(t *testing.T) {
	m, err := ParseSceneMode("shell")
	require.NoError(t, err)
	assert.Equal(t, Shell, m)

	_, err = ParseSceneMode("hollow")
	assert.ErrorIs(t, err, dynamo.ErrInvalidConfig)
}

func mustRender(t *testing.T, sc *Scene, snap dynamo.Snapshot) string {
	t.Helper()
	src, err := sc.Render(snap)
	require.NoError(t, err)
	return src
}
