package scope

import (
	"image/color"
	"sync"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/widget"
	"github.com/itohio/psemu/pkg/config"
	"github.com/itohio/psemu/pkg/telemetry"
)

// ScopeWidget is a custom Fyne widget that plots output voltage and current
// over a sliding time window.
type ScopeWidget struct {
	widget.BaseWidget

	window time.Duration

	// Data (protected by mu)
	mu             sync.RWMutex
	displaySamples []telemetry.Sample

	// Auto-scaling
	voltAxis, currAxis axis
	xMin, xMax         float64 // elapsed seconds

	// Display settings
	maxDisplayPoints int
}

// New creates a new ScopeWidget instance.
func New(cfg config.PlotConfig) *ScopeWidget {
	window := time.Duration(cfg.WindowSeconds * float64(time.Second))
	if window <= 0 {
		window = telemetry.DefaultWindow
	}
	maxPoints := cfg.MaxPoints
	if maxPoints <= 0 {
		maxPoints = 1000
	}

	s := &ScopeWidget{
		window:           window,
		displaySamples:   make([]telemetry.Sample, 0, maxPoints),
		maxDisplayPoints: maxPoints,
	}
	s.updateAutoScale()
	s.ExtendBaseWidget(s)
	// Trigger initial refresh to display empty scope
	s.Refresh()
	return s
}

// UpdateData replaces the plotted samples.
// This should be called from the history callback using fyne.Do().
func (s *ScopeWidget) UpdateData(samples []telemetry.Sample) {
	s.mu.Lock()

	// Downsample for display (reuse buffer)
	s.displaySamples = telemetry.Downsample(s.displaySamples, samples, s.maxDisplayPoints)
	s.updateAutoScale()

	s.mu.Unlock()

	// Refresh the widget (must be outside lock to avoid potential deadlock)
	s.Refresh()
}

// updateAutoScale calculates both Y ranges and the time range from the
// displayed samples.
func (s *ScopeWidget) updateAutoScale() {
	s.voltAxis = fitAxis(s.displaySamples, voltage)
	s.currAxis = fitAxis(s.displaySamples, current)

	if len(s.displaySamples) == 0 {
		s.xMin = 0
		s.xMax = s.window.Seconds()
		return
	}

	s.xMin = s.displaySamples[0].Elapsed
	s.xMax = s.displaySamples[len(s.displaySamples)-1].Elapsed
	// Ensure minimum window
	if s.xMax-s.xMin < s.window.Seconds() {
		s.xMax = s.xMin + s.window.Seconds()
	}
}

// CreateRenderer creates the widget renderer.
func (s *ScopeWidget) CreateRenderer() fyne.WidgetRenderer {
	grid := canvas.NewRectangle(color.RGBA{R: 20, G: 20, B: 20, A: 255}) // Dark background
	return &scopeRenderer{
		scope:   s,
		grid:    grid,
		objects: []fyne.CanvasObject{grid},
	}
}

func voltage(s telemetry.Sample) float64 { return s.Voltage }

func current(s telemetry.Sample) float64 { return s.Current }
