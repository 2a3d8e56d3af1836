package viz

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/spatial/r3"
)

// Camera orbits the origin and projects world points onto the canvas with a
// mild perspective. Extent is the world radius that fills the view at zoom 1.
type Camera struct {
	RotX, RotY float64
	Zoom       float64
	Distance   float64
	Extent     float64
}

func NewCamera(extent float64) *Camera {
	if !(extent > 0) {
		extent = 1
	}
	return &Camera{RotX: 0.35, Zoom: 1, Distance: 4, Extent: extent}
}

func (c *Camera) RotateX(a float64) { c.RotX += a }
func (c *Camera) RotateY(a float64) { c.RotY += a }

func zoomIn(z float64) float64  { return math.Min(10, z*1.2) }
func zoomOut(z float64) float64 { return math.Max(0.1, z/1.2) }

// View returns p in camera space: rotated about Y, then about X.
func (c *Camera) View(p r3.Vec) r3.Vec {
	p = r3.NewRotation(c.RotY, r3.Vec{Y: 1}).Rotate(p)
	return r3.NewRotation(c.RotX, r3.Vec{X: 1}).Rotate(p)
}

// Project maps p to dot coordinates on an sw x sh canvas. It returns the
// screen position, the perspective scale at that depth (dots per world
// unit), the camera-space depth (larger is nearer) and whether the point is
// in front of the camera.
func (c *Camera) Project(p r3.Vec, sw, sh int) (x, y int, scale, depth float64, ok bool) {
	v := c.View(p)
	eye := c.Distance * c.Extent
	if v.Z >= eye {
		return 0, 0, 0, v.Z, false
	}

	minDim := math.Min(float64(sw), float64(sh))
	base := c.Zoom * minDim / (2.2 * c.Extent)
	scale = base * (eye - c.Extent) / (eye - v.Z)

	x = int(math.Round(v.X*scale)) + sw/2
	y = int(math.Round(-v.Y*scale)) + sh/2
	return x, y, scale, v.Z, true
}

type Edge struct {
	Start, End r3.Vec
}

type Wireframe struct{ Edges []Edge }

func NewWireframe() *Wireframe           { return &Wireframe{Edges: make([]Edge, 0)} }
func (w *Wireframe) AddEdge(s, e r3.Vec) { w.Edges = append(w.Edges, Edge{s, e}) }
func (w *Wireframe) Clear()              { w.Edges = w.Edges[:0] }

// Render3D draws the wireframe's visible edges onto the canvas.
func Render3D(c *Canvas, w *Wireframe, cam *Camera) {
	if c == nil || w == nil || cam == nil {
		return
	}
	cw, ch := c.PixelSize()
	for _, e := range w.Edges {
		x1, y1, _, _, v1 := cam.Project(e.Start, cw, ch)
		x2, y2, _, _, v2 := cam.Project(e.End, cw, ch)
		if v1 && v2 {
			c.DrawLine(x1, y1, x2, y2)
		}
	}
}

// CreateGuideWireframe returns the equator and the prime meridian of a
// sphere of radius r, each as a closed polyline of n segments.
func CreateGuideWireframe(r float64, n int) *Wireframe {
	w := NewWireframe()
	if n < 3 {
		n = 3
	}
	point := func(k int, meridian bool) r3.Vec {
		a := 2 * math.Pi * float64(k) / float64(n)
		if meridian {
			return r3.Vec{X: r * math.Cos(a), Y: r * math.Sin(a)}
		}
		return r3.Vec{X: r * math.Cos(a), Z: r * math.Sin(a)}
	}
	for k := 0; k < n; k++ {
		w.AddEdge(point(k, false), point(k+1, false))
		w.AddEdge(point(k, true), point(k+1, true))
	}
	return w
}

// Sphere is one particle prepared for drawing.
type Sphere struct {
	Center r3.Vec
	Radius float64
}

// RenderSpheres draws spheres back to front. Spheres in the far half are
// outlined, the near half filled, so the front hemisphere reads as solid.
func RenderSpheres(c *Canvas, spheres []Sphere, cam *Camera) {
	if c == nil || cam == nil {
		return
	}
	cw, ch := c.PixelSize()

	type projected struct {
		x, y, r int
		depth   float64
	}
	proj := make([]projected, 0, len(spheres))
	for _, s := range spheres {
		x, y, scale, depth, ok := cam.Project(s.Center, cw, ch)
		if !ok {
			continue
		}
		proj = append(proj, projected{x, y, int(s.Radius * scale), depth})
	}
	sort.Slice(proj, func(i, j int) bool { return proj[i].depth < proj[j].depth })

	for _, p := range proj {
		if p.depth >= 0 {
			c.FillCircle(p.x, p.y, p.r)
		} else {
			c.DrawCircle(p.x, p.y, p.r)
		}
	}
}
