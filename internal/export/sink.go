package export

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/san-kum/spherelax/internal/dynamo"
)

// stepVerb matches a %d verb with optional flags and width, such as %06d.
var stepVerb = regexp.MustCompile(`%[-+ 0]*[0-9]*d`)

// FileSink writes every exported snapshot as a scene file. When Path holds
// a %d verb (for example "frames/scene_%06d.scad") each step gets its
// own file, and a literal percent sign must then be written as %%. Without a
// verb the path is used as is and the same file is replaced on every export.
type FileSink struct {
	Path  string
	Scene *Scene
	// Preview, when set, also writes an SVG next to each scene.
	Preview *Preview
}

func NewFileSink(path string, scene *Scene) *FileSink {
	return &FileSink{Path: path, Scene: scene}
}

func (s *FileSink) PathFor(step int) string {
	if stepVerb.MatchString(strings.ReplaceAll(s.Path, "%%", "")) {
		return fmt.Sprintf(s.Path, step)
	}
	return s.Path
}

func (s *FileSink) Export(snap dynamo.Snapshot) error {
	path := s.PathFor(snap.Step)
	if err := s.Scene.WriteFile(path, snap); err != nil {
		return err
	}
	if s.Preview != nil {
		return s.Preview.WriteFile(svgPath(path), snap)
	}
	return nil
}

func svgPath(path string) string {
	if strings.HasSuffix(path, ".scad") {
		return strings.TrimSuffix(path, ".scad") + ".svg"
	}
	return path + ".svg"
}
