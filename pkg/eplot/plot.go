package eplot

// Quick diagnostic plots; not pretty, but enough to see whether a fit
// went where it should.

import(
	"fmt"
	"image"
	"image/color"
	"math"

	"github.com/fogleman/gg"
)

var(
	Red   = color.RGBA{0xd0, 0x20, 0x20, 0xff}
	Green = color.RGBA{0x20, 0xa0, 0x20, 0xff}
	Blue  = color.RGBA{0x20, 0x40, 0xd0, 0xff}
	Black = color.RGBA{0x00, 0x00, 0x00, 0xff}
	Grey  = color.RGBA{0xb0, 0xb0, 0xb0, 0xff}

	ChannelColors = [3]color.Color{Red, Green, Blue}
)

const margin = 60

// A Series is drawn as a line, or as unconnected points.
type Series struct {
	Name   string
	X, Y   []float64
	Color  color.Color
	Points bool
}

type Plot struct {
	Title  string
	XLabel string
	YLabel string
	LogX   bool
	W, H   int

	Series []Series
}

func New(title, xlabel, ylabel string) *Plot {
	return &Plot{Title: title, XLabel: xlabel, YLabel: ylabel, W: 800, H: 600}
}

func (p *Plot)Line(name string, x, y []float64, col color.Color) {
	p.Series = append(p.Series, Series{Name: name, X: x, Y: y, Color: col})
}

func (p *Plot)Scatter(name string, x, y []float64, col color.Color) {
	p.Series = append(p.Series, Series{Name: name, X: x, Y: y, Color: col, Points: true})
}

func (p *Plot)xform(x float64) (float64, bool) {
	if !p.LogX {
		return x, true
	}
	if x <= 0 {
		return 0, false
	}
	return math.Log10(x), true
}

// Bounds of the data, in plot space (i.e. after any log transform).
func (p *Plot)Bounds() (xmin, xmax, ymin, ymax float64) {
	xmin, ymin = math.Inf(1), math.Inf(1)
	xmax, ymax = math.Inf(-1), math.Inf(-1)
	for _, s := range p.Series {
		for i := range s.X {
			x, ok := p.xform(s.X[i])
			if !ok || math.IsNaN(s.Y[i]) || math.IsInf(s.Y[i], 0) {
				continue
			}
			xmin, xmax = math.Min(xmin, x), math.Max(xmax, x)
			ymin, ymax = math.Min(ymin, s.Y[i]), math.Max(ymax, s.Y[i])
		}
	}
	if xmin > xmax { xmin, xmax = 0, 1 }
	if ymin > ymax { ymin, ymax = 0, 1 }
	if xmax == xmin { xmax = xmin + 1 }
	if ymax == ymin { ymax = ymin + 1 }
	return
}

func (p *Plot)Render() image.Image {
	dc := gg.NewContext(p.W, p.H)
	dc.SetRGB(1, 1, 1)
	dc.Clear()

	xmin, xmax, ymin, ymax := p.Bounds()
	pw, ph := float64(p.W - 2*margin), float64(p.H - 2*margin)
	toPx := func(x, y float64) (float64, float64) {
		return margin + (x-xmin)/(xmax-xmin)*pw, float64(p.H) - margin - (y-ymin)/(ymax-ymin)*ph
	}

	// Axes, and the range labels
	dc.SetColor(Black)
	dc.SetLineWidth(1)
	dc.DrawRectangle(margin, margin, pw, ph)
	dc.Stroke()

	xfmt := func(x float64) string {
		if p.LogX { return fmt.Sprintf("%.3g", math.Pow(10, x)) }
		return fmt.Sprintf("%.3g", x)
	}
	dc.DrawStringAnchored(xfmt(xmin), margin, float64(p.H-margin)+12, 0.5, 0.5)
	dc.DrawStringAnchored(xfmt(xmax), float64(p.W-margin), float64(p.H-margin)+12, 0.5, 0.5)
	dc.DrawStringAnchored(fmt.Sprintf("%.3g", ymin), margin-6, float64(p.H-margin), 1, 0.5)
	dc.DrawStringAnchored(fmt.Sprintf("%.3g", ymax), margin-6, margin, 1, 0.5)
	dc.DrawStringAnchored(p.Title, float64(p.W)/2, margin/2, 0.5, 0.5)
	dc.DrawStringAnchored(p.XLabel, float64(p.W)/2, float64(p.H)-margin/2, 0.5, 0.5)
	dc.DrawStringAnchored(p.YLabel, 6, float64(p.H)/2, 0, 0.5)

	for n, s := range p.Series {
		dc.SetColor(s.Color)
		dc.SetLineWidth(2)

		started := false
		for i := range s.X {
			x, ok := p.xform(s.X[i])
			if !ok || math.IsNaN(s.Y[i]) || math.IsInf(s.Y[i], 0) {
				continue
			}
			px, py := toPx(x, s.Y[i])
			if s.Points {
				dc.DrawCircle(px, py, 3)
				dc.Fill()
			} else if !started {
				dc.MoveTo(px, py)
				started = true
			} else {
				dc.LineTo(px, py)
			}
		}
		if started {
			dc.Stroke()
		}

		// Legend
		if s.Name != "" {
			ly := float64(margin + 16 + 16*n)
			dc.DrawRectangle(margin+10, ly-4, 8, 8)
			dc.Fill()
			dc.SetColor(Black)
			dc.DrawStringAnchored(s.Name, margin+24, ly, 0, 0.5)
		}
	}

	return dc.Image()
}

func (p *Plot)SavePNG(filename string) error {
	dc := gg.NewContextForImage(p.Render())
	if err := dc.SavePNG(filename); err != nil {
		return fmt.Errorf("plot '%s': %v", filename, err)
	}
	return nil
}
