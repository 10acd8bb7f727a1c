package visualizer

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"math"

	"github.com/fogleman/gg"

	"github.com/born-ml/weightfusion/internal/network"
)

// ErrRenderFault wraps any failure while reading parameters or drawing.
// It is reported on the Frame and never returned.
var ErrRenderFault = errors.New("render fault")

// Colours.
var (
	DefaultColor    color.Color = color.NRGBA{R: 0x3b, G: 0x82, B: 0xf6, A: 0xff}
	WarningColor    color.Color = color.NRGBA{R: 0xef, G: 0x44, B: 0x44, A: 0xff}
	BackgroundColor color.Color = color.NRGBA{R: 0x0f, G: 0x17, B: 0x2a, A: 0xff}
)

// Source returns the parameters to draw, or nil when there are none yet.
type Source func() *network.Snapshot

// Props describe one panel.
type Props struct {
	Source Source      // nil draws the placeholder
	Color  color.Color // theme colour for nodes and positive edges
	Width  int
	Height int
	Active bool // training is running; nodes follow the activation frame
}

// Frame is the result of one draw.
type Frame struct {
	Image       *image.RGBA
	Nodes       int
	Connections int
	Placeholder bool
	Fault       error // wraps ErrRenderFault
}

// Renderer draws frames. The zero value is ready to use.
type Renderer struct {
	// Background fills the canvas before anything else; nil means
	// BackgroundColor.
	Background color.Color
}

// NewRenderer returns a Renderer with the default background.
func NewRenderer() *Renderer {
	return &Renderer{Background: BackgroundColor}
}

// Render draws props' current snapshot. activations is the simulated frame
// indexed [column][node]; it is used only when props.Active is set, and a
// missing entry falls back to IdleActivation.
//
// With no source or no snapshot the frame is a placeholder with zero nodes
// and connections. A panic or invalid snapshot yields an error glyph and a
// Fault; the next call starts from scratch.
func (r *Renderer) Render(props Props, activations [][]float64) (frame Frame) {
	w, h := max(props.Width, 1), max(props.Height, 1)
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	dc := gg.NewContextForRGBA(img)
	frame.Image = img

	defer func() {
		if rec := recover(); rec != nil {
			frame = r.fault(img, fmt.Errorf("%w: %v", ErrRenderFault, rec))
		}
	}()

	r.clear(dc)
	if props.Width <= 0 || props.Height <= 0 {
		return r.fault(img, fmt.Errorf("%w: invalid canvas %dx%d", ErrRenderFault, props.Width, props.Height))
	}

	var snap *network.Snapshot
	if props.Source != nil {
		snap = props.Source()
	}
	if snap == nil {
		drawPlaceholder(dc)
		frame.Placeholder = true
		return frame
	}
	if err := snap.Validate(); err != nil {
		return r.fault(img, fmt.Errorf("%w: %w", ErrRenderFault, err))
	}

	theme := props.Color
	if theme == nil {
		theme = DefaultColor
	}
	counts := snap.NodeCounts()
	points := Layout(counts, float64(w), float64(h))

	for k, layer := range snap.Layers {
		for _, e := range SelectEdges(layer) {
			c := theme
			if e.Negative() {
				c = WarningColor
			}
			from, to := points[k][e.From], points[k+1][e.To]
			setColor(dc, c, 0.15+0.75*e.Visual)
			dc.SetLineWidth(0.5 + 2.5*e.Visual)
			dc.DrawLine(from.X, from.Y, to.X, to.Y)
			dc.Stroke()
			frame.Connections++
		}
	}

	for l, column := range points {
		for n, p := range column {
			a := IdleActivation
			if props.Active {
				a = lookup(activations, l, n)
			}
			drawNode(dc, p, theme, a)
			frame.Nodes++
		}
	}
	return frame
}

func (r *Renderer) clear(dc *gg.Context) {
	bg := r.Background
	if bg == nil {
		bg = BackgroundColor
	}
	dc.SetColor(bg)
	dc.Clear()
}

// fault repaints img with the error glyph.
func (r *Renderer) fault(img *image.RGBA, err error) Frame {
	dc := gg.NewContextForRGBA(img)
	r.clear(dc)
	drawErrorGlyph(dc)
	return Frame{Image: img, Placeholder: true, Fault: err}
}

func lookup(activations [][]float64, l, n int) float64 {
	if l < len(activations) && n < len(activations[l]) {
		return clamp01(activations[l][n])
	}
	return IdleActivation
}

// drawNode paints a radial glow and an inner dot. Glow radius, glow opacity
// and dot brightness all grow with activation a.
func drawNode(dc *gg.Context, p Point, theme color.Color, a float64) {
	glow := 6 + 12*a
	base := toNRGBA(theme)

	grad := gg.NewRadialGradient(p.X, p.Y, 0, p.X, p.Y, glow)
	grad.AddColorStop(0, withAlpha(base, a))
	grad.AddColorStop(1, withAlpha(base, 0))
	dc.SetFillStyle(grad)
	dc.DrawCircle(p.X, p.Y, glow)
	dc.Fill()

	dc.SetColor(mix(base, color.NRGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff}, a))
	dc.DrawCircle(p.X, p.Y, 3+2*a)
	dc.Fill()
}

func drawPlaceholder(dc *gg.Context) {
	w, h := float64(dc.Width()), float64(dc.Height())
	r := math.Min(w, h) / 6
	dc.SetRGBA(1, 1, 1, 0.25)
	dc.SetLineWidth(2)
	dc.SetDash(6, 4)
	dc.DrawCircle(w/2, h/2, r)
	dc.Stroke()
	dc.SetDash()
}

func drawErrorGlyph(dc *gg.Context) {
	w, h := float64(dc.Width()), float64(dc.Height())
	cx, cy := w/2, h/2
	r := math.Min(w, h) / 6
	setColor(dc, WarningColor, 0.9)
	dc.SetLineWidth(3)
	dc.DrawCircle(cx, cy, r)
	dc.Stroke()
	d := r * 0.5
	dc.DrawLine(cx-d, cy-d, cx+d, cy+d)
	dc.DrawLine(cx-d, cy+d, cx+d, cy-d)
	dc.Stroke()
}

func setColor(dc *gg.Context, c color.Color, alpha float64) {
	n := toNRGBA(c)
	dc.SetRGBA(float64(n.R)/255, float64(n.G)/255, float64(n.B)/255, clamp01(alpha))
}

func toNRGBA(c color.Color) color.NRGBA {
	n, _ := color.NRGBAModel.Convert(c).(color.NRGBA)
	return n
}

func withAlpha(c color.NRGBA, alpha float64) color.NRGBA {
	c.A = uint8(math.Round(255 * clamp01(alpha)))
	return c
}

// mix moves c toward target by t in [0,1].
func mix(c, target color.NRGBA, t float64) color.NRGBA {
	t = clamp01(t)
	lerp := func(a, b uint8) uint8 {
		return uint8(math.Round(float64(a) + (float64(b)-float64(a))*t))
	}
	return color.NRGBA{R: lerp(c.R, target.R), G: lerp(c.G, target.G), B: lerp(c.B, target.B), A: 0xff}
}
