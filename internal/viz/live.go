package viz

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/harmonica"
	"github.com/charmbracelet/lipgloss"
	"github.com/guptarohit/asciigraph"

	"github.com/san-kum/spherelax/internal/dynamo"
	"github.com/san-kum/spherelax/internal/physics"
	"github.com/san-kum/spherelax/internal/sim"
)

const (
	width           = 60
	height          = 24
	historyCapacity = 600
	frameRate       = 30
	spinPerFrame    = 0.02
)

type TickMsg time.Time

func tick() tea.Cmd {
	return tea.Tick(time.Second/frameRate, func(t time.Time) tea.Msg { return TickMsg(t) })
}

// Options tune the live view. Zero values pick defaults.
type Options struct {
	// StepsPerFrame relaxation steps run per rendered frame.
	StepsPerFrame int
	// MaxSteps pauses the view once reached; 0 runs forever.
	MaxSteps int
	// BaseRadius and UseWeights size drawn spheres like the exporter does.
	BaseRadius float64
	UseWeights bool
	Theme      string
	Title      string
}

// Model steps a relaxer on every tick and draws the particle set.
type Model struct {
	relaxer  *sim.Relaxer
	exporter sim.Exporter
	opts     Options

	canvas *Canvas
	camera *Camera
	guide  *Wireframe
	theme  Theme

	// zoom eases camera.Zoom toward zoomTarget.
	zoom       harmonica.Spring
	zoomVel    float64
	zoomTarget float64

	running  bool
	spin     bool
	err      error
	status   string
	snap     dynamo.Snapshot
	energy   []float64
	distance []float64
	cutoff   int
}

// NewModel prepares a live view. exporter may be nil, in which case the
// export key only reports that nothing is configured.
func NewModel(r *sim.Relaxer, exporter sim.Exporter, opts Options) Model {
	if opts.StepsPerFrame < 1 {
		opts.StepsPerFrame = 1
	}
	if !(opts.BaseRadius > 0) {
		opts.BaseRadius = 0.1 * r.Force().Radius
	}
	if opts.Title == "" {
		opts.Title = "spherelax"
	}

	extent := r.Force().Radius + opts.BaseRadius
	m := Model{
		relaxer:  r,
		exporter: exporter,
		opts:     opts,
		canvas:   NewCanvas(width, height),
		camera:   NewCamera(extent),
		guide:    CreateGuideWireframe(r.Force().Radius, 64),
		theme:    GetTheme(opts.Theme),
		zoom:     harmonica.NewSpring(harmonica.FPS(frameRate), 6.0, 1.0),
		running:  true,
		spin:     true,
		snap:     r.Snapshot(),
		energy:   make([]float64, 0, historyCapacity),
		distance: make([]float64, 0, historyCapacity),
		cutoff:   r.Schedule().Cutoff(),
	}
	m.zoomTarget = m.camera.Zoom
	return m
}

func (m Model) Init() tea.Cmd {
	return tick()
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case " ":
			m.running = !m.running
		case "+", "=":
			m.zoomTarget = zoomIn(m.zoomTarget)
		case "-", "_":
			m.zoomTarget = zoomOut(m.zoomTarget)
		case "e":
			m.export()
		case "t":
			m.theme = NextTheme(m.theme)
		case "r":
			m.resetView()
		case "s":
			m.spin = !m.spin
		case "left", "h":
			m.camera.RotateY(-0.1)
		case "right", "l":
			m.camera.RotateY(0.1)
		case "up", "k":
			m.camera.RotateX(-0.1)
		case "down", "j":
			m.camera.RotateX(0.1)
		case "]":
			m.opts.StepsPerFrame *= 2
		case "[":
			m.opts.StepsPerFrame = max(1, m.opts.StepsPerFrame/2)
		}
	case TickMsg:
		if m.running && m.err == nil {
			m.step()
		}
		if m.spin {
			m.camera.RotateY(spinPerFrame)
		}
		m.camera.Zoom, m.zoomVel = m.zoom.Update(m.camera.Zoom, m.zoomVel, m.zoomTarget)
		return m, tick()
	}
	return m, nil
}

// resetView restores the initial orientation and eases back to unit zoom.
func (m *Model) resetView() {
	fresh := NewCamera(m.camera.Extent)
	m.camera.RotX, m.camera.RotY = fresh.RotX, fresh.RotY
	m.zoomTarget = fresh.Zoom
}

func (m *Model) step() {
	for k := 0; k < m.opts.StepsPerFrame; k++ {
		if m.opts.MaxSteps > 0 && m.relaxer.Iteration() >= m.opts.MaxSteps {
			m.running = false
			m.status = fmt.Sprintf("reached %d steps", m.opts.MaxSteps)
			break
		}
		m.relaxer.Step()
		if !m.relaxer.Set().IsValid() {
			m.err = &sim.StepError{Step: m.relaxer.Iteration(), Wrapped: dynamo.ErrUnstable}
			break
		}
	}

	m.snap = m.relaxer.Snapshot()
	m.energy = appendBounded(m.energy, physics.LogEnergy(m.snap.Positions, m.snap.Weights))
	m.distance = appendBounded(m.distance, dynamo.MinDistance(m.snap.Positions))
}

func (m *Model) export() {
	if m.exporter == nil {
		m.status = "no export path configured"
		return
	}
	if err := m.exporter.Export(m.relaxer.Snapshot()); err != nil {
		m.status = "export failed: " + err.Error()
		return
	}
	m.status = fmt.Sprintf("exported step %d", m.relaxer.Iteration())
}

func appendBounded(xs []float64, v float64) []float64 {
	xs = append(xs, v)
	if len(xs) > historyCapacity {
		xs = xs[1:]
	}
	return xs
}

// Running reports whether the relaxation advances on ticks.
func (m Model) Running() bool { return m.running }

// Err is the error that stopped the relaxation, if any.
func (m Model) Err() error { return m.err }

// Status is the last export or limit message shown in the panel.
func (m Model) Status() string { return m.status }

func (m *Model) draw() {
	m.canvas.Clear()
	Render3D(m.canvas, m.guide, m.camera)

	spheres := make([]Sphere, m.snap.Len())
	for i := range spheres {
		p := m.snap.Particle(i)
		r := m.opts.BaseRadius
		if m.opts.UseWeights {
			r = p.Radius(m.opts.BaseRadius)
		}
		spheres[i] = Sphere{Center: p.Pos, Radius: r}
	}
	RenderSpheres(m.canvas, spheres, m.camera)
}

func (m Model) View() string {
	st := newStyles(m.theme)
	m.draw()
	canvasView := st.canvas.Render(m.canvas.String())

	var s strings.Builder
	s.WriteString(st.title.Render(strings.ToUpper(m.opts.Title)) + "\n")

	switch {
	case m.err != nil:
		s.WriteString(st.failed.Render("UNSTABLE") + "\n")
	case m.running:
		s.WriteString(st.running.Render("RUNNING") + "\n")
	default:
		s.WriteString(st.paused.Render("PAUSED") + "\n")
	}

	row := func(label, value string) {
		s.WriteString(st.label.Render(label) + st.value.Render(value) + "\n")
	}
	s.WriteString("\n")
	row("Step", fmt.Sprintf("%d", m.snap.Step))
	row("Particles", fmt.Sprintf("%d", m.snap.Len()))
	row("Temperature", fmt.Sprintf("%.5f", m.snap.Temperature))
	if m.cutoff > 0 {
		frac := float64(m.snap.Step) / float64(m.cutoff)
		row("Anneal", st.progressBar(frac, 20))
	}
	if n := len(m.distance); n > 0 {
		row("Min dist", fmt.Sprintf("%.5f", m.distance[n-1]))
	}
	if n := len(m.energy); n > 0 {
		row("Log energy", fmt.Sprintf("%.4f", m.energy[n-1]))
		row("", sparkline(m.energy, 24))
	}
	row("Steps/frame", fmt.Sprintf("%d", m.opts.StepsPerFrame))
	row("Theme", m.theme.Name)

	if len(m.distance) > 1 {
		chart := asciigraph.Plot(m.distance, asciigraph.Height(4), asciigraph.Width(30), asciigraph.Caption("min distance"))
		s.WriteString("\n" + chart + "\n")
	}

	if m.err != nil {
		s.WriteString("\n" + st.failed.Render(m.err.Error()) + "\n")
	} else if m.status != "" {
		s.WriteString("\n" + st.value.Render(m.status) + "\n")
	}

	s.WriteString(st.help.Render("SP:pause E:export Q:quit\n+/-:zoom arrows:orbit R:reset S:spin\n[ ]:speed T:theme"))

	return lipgloss.JoinHorizontal(lipgloss.Top, canvasView, st.panel.Render(s.String()))
}
