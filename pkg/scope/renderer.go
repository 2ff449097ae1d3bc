package scope

import (
	"image/color"
	"strconv"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/canvas"
	"github.com/itohio/psemu/pkg/telemetry"
)

var (
	backgroundGrid = color.RGBA{R: 40, G: 40, B: 40, A: 255}
	labelGray      = color.RGBA{R: 150, G: 150, B: 150, A: 255}
	voltageBlue    = color.RGBA{R: 80, G: 160, B: 255, A: 255}
	currentRed     = color.RGBA{R: 255, G: 80, B: 80, A: 255}
)

const (
	numHLines = 8
	numVLines = 10
)

// scopeRenderer renders the scope widget.
type scopeRenderer struct {
	scope *ScopeWidget

	// Background
	grid *canvas.Rectangle

	// Objects list for Fyne
	objects []fyne.CanvasObject

	// Track last size to detect changes
	lastSize fyne.Size
}

// MinSize returns the minimum size of the widget.
func (r *scopeRenderer) MinSize() fyne.Size {
	return fyne.NewSize(400, 300)
}

// Layout arranges the widget components.
func (r *scopeRenderer) Layout(size fyne.Size) {
	r.grid.Resize(size)

	if r.lastSize != size {
		r.lastSize = size
		r.scope.BaseWidget.Refresh()
	}
}

// Refresh rebuilds the plot from the widget data.
func (r *scopeRenderer) Refresh() {
	r.scope.mu.RLock()
	samples := r.scope.displaySamples
	voltAxis := r.scope.voltAxis
	currAxis := r.scope.currAxis
	xMin := r.scope.xMin
	xMax := r.scope.xMax
	r.scope.mu.RUnlock()

	size := r.scope.Size()
	if size.Width == 0 || size.Height == 0 {
		return
	}

	// Clear old objects (but keep grid)
	r.objects = []fyne.CanvasObject{r.grid}

	marginLeft := float32(60.0)
	marginRight := float32(60.0)
	marginTop := float32(20.0)
	marginBottom := float32(40.0)

	plotWidth := size.Width - marginLeft - marginRight
	plotHeight := size.Height - marginTop - marginBottom
	plotX := marginLeft
	plotY := marginTop

	r.drawGrid(plotX, plotY, plotWidth, plotHeight, voltAxis, currAxis, xMin, xMax)
	r.drawTrace(plotX, plotY, plotWidth, plotHeight, samples, voltage, voltAxis, xMin, xMax, voltageBlue)
	r.drawTrace(plotX, plotY, plotWidth, plotHeight, samples, current, currAxis, xMin, xMax, currentRed)
	r.drawLegend(plotX, plotY, samples)
}

// drawGrid draws the grid with voltage labels on the left and current labels
// on the right.
func (r *scopeRenderer) drawGrid(plotX, plotY, plotWidth, plotHeight float32, voltAxis, currAxis axis, xMin, xMax float64) {
	for i := 0; i < numHLines+1; i++ {
		y := plotY + float32(i)*plotHeight/float32(numHLines)
		r.addLine(fyne.NewPos(plotX, y), fyne.NewPos(plotX+plotWidth, y), backgroundGrid, 1)

		left := canvas.NewText(formatValue(voltAxis.tick(i, numHLines), "V"), voltageBlue)
		left.TextSize = 10
		left.Alignment = fyne.TextAlignTrailing
		left.Move(fyne.NewPos(plotX-5, y-6))
		r.objects = append(r.objects, left)

		right := canvas.NewText(formatValue(currAxis.tick(i, numHLines), "A"), currentRed)
		right.TextSize = 10
		right.Alignment = fyne.TextAlignLeading
		right.Move(fyne.NewPos(plotX+plotWidth+5, y-6))
		r.objects = append(r.objects, right)
	}

	for i := 0; i < numVLines+1; i++ {
		x := plotX + float32(i)*plotWidth/float32(numVLines)
		r.addLine(fyne.NewPos(x, plotY), fyne.NewPos(x, plotY+plotHeight), backgroundGrid, 1)

		offset := float64(i) * (xMax - xMin) / float64(numVLines)
		text := canvas.NewText(formatSeconds(xMin+offset), labelGray)
		text.TextSize = 10
		text.Alignment = fyne.TextAlignCenter
		text.Move(fyne.NewPos(x-20, plotY+plotHeight+5))
		r.objects = append(r.objects, text)
	}
}

// drawTrace draws one quantity as connected line segments.
func (r *scopeRenderer) drawTrace(plotX, plotY, plotWidth, plotHeight float32, samples []telemetry.Sample, value func(telemetry.Sample) float64, a axis, xMin, xMax float64, c color.Color) {
	if len(samples) < 2 {
		return
	}

	prev := fyne.NewPos(projectX(samples[0].Elapsed, xMin, xMax, plotX, plotWidth), a.y(value(samples[0]), plotY, plotHeight))
	for _, s := range samples[1:] {
		next := fyne.NewPos(projectX(s.Elapsed, xMin, xMax, plotX, plotWidth), a.y(value(s), plotY, plotHeight))
		r.addLine(prev, next, c, 1.5)
		prev = next
	}
}

// drawLegend shows the latest readings in the top left corner.
func (r *scopeRenderer) drawLegend(plotX, plotY float32, samples []telemetry.Sample) {
	if len(samples) == 0 {
		return
	}
	last := samples[len(samples)-1]

	v := canvas.NewText(formatValue(float32(last.Voltage), "V"), voltageBlue)
	v.TextSize = 12
	v.Move(fyne.NewPos(plotX+10, plotY+5))

	a := canvas.NewText(formatValue(float32(last.Current), "A"), currentRed)
	a.TextSize = 12
	a.Move(fyne.NewPos(plotX+10, plotY+22))

	r.objects = append(r.objects, v, a)
}

func (r *scopeRenderer) addLine(from, to fyne.Position, c color.Color, width float32) {
	line := canvas.NewLine(c)
	line.Position1 = from
	line.Position2 = to
	line.StrokeWidth = width
	r.objects = append(r.objects, line)
}

// Objects returns all canvas objects for rendering.
func (r *scopeRenderer) Objects() []fyne.CanvasObject {
	return r.objects
}

// Destroy cleans up resources.
func (r *scopeRenderer) Destroy() {
	// Cleanup handled by Fyne
}

func formatValue(v float32, unit string) string {
	return strconv.FormatFloat(float64(v), 'f', 3, 32) + unit
}

func formatSeconds(s float64) string {
	if s < 1 {
		return strconv.FormatFloat(s, 'f', 2, 64) + "s"
	}
	return strconv.FormatFloat(s, 'f', 1, 64) + "s"
}
