package plot

import (
	"fmt"
	"html"
	"strconv"
	"strings"
)

// Style is the subset of SVG presentation attributes the renderers use.
// Zero values are omitted from the output.
type Style struct {
	Fill        string
	Stroke      string
	StrokeWidth float64
	Opacity     float64
	Dash        string
	FontSize    float64
	Anchor      string // text-anchor
	Class       string
}

func (s Style) attrs() string {
	var b strings.Builder
	if s.Class != "" {
		fmt.Fprintf(&b, ` class="%s"`, html.EscapeString(s.Class))
	}
	fill := s.Fill
	if fill == "" {
		fill = "none"
	}
	fmt.Fprintf(&b, ` fill="%s"`, fill)
	if s.Stroke != "" {
		fmt.Fprintf(&b, ` stroke="%s"`, s.Stroke)
	}
	if s.StrokeWidth > 0 {
		fmt.Fprintf(&b, ` stroke-width="%s"`, num(s.StrokeWidth))
	}
	if s.Opacity > 0 && s.Opacity < 1 {
		fmt.Fprintf(&b, ` opacity="%s"`, num(s.Opacity))
	}
	if s.Dash != "" {
		fmt.Fprintf(&b, ` stroke-dasharray="%s"`, s.Dash)
	}
	if s.FontSize > 0 {
		fmt.Fprintf(&b, ` font-size="%s" font-family="Arial, sans-serif"`, num(s.FontSize))
	}
	if s.Anchor != "" {
		fmt.Fprintf(&b, ` text-anchor="%s"`, s.Anchor)
	}
	return b.String()
}

// Canvas accumulates SVG elements on a fixed-size surface.
type Canvas struct {
	width  float64
	height float64
	b      strings.Builder
}

// NewCanvas starts a canvas with a dark background, matching the page theme.
func NewCanvas(width, height float64) *Canvas {
	c := &Canvas{width: width, height: height}
	c.Rect(0, 0, width, height, Style{Fill: "#1e1e1e"})
	return c
}

func (c *Canvas) Width() float64  { return c.width }
func (c *Canvas) Height() float64 { return c.height }

func (c *Canvas) Rect(x, y, w, h float64, s Style) {
	fmt.Fprintf(&c.b, `<rect x="%s" y="%s" width="%s" height="%s"%s/>`,
		num(x), num(y), num(w), num(h), s.attrs())
}

// RoundRect is Rect with corner radius r.
func (c *Canvas) RoundRect(x, y, w, h, r float64, s Style) {
	fmt.Fprintf(&c.b, `<rect x="%s" y="%s" width="%s" height="%s" rx="%s"%s/>`,
		num(x), num(y), num(w), num(h), num(r), s.attrs())
}

func (c *Canvas) Line(x1, y1, x2, y2 float64, s Style) {
	fmt.Fprintf(&c.b, `<line x1="%s" y1="%s" x2="%s" y2="%s"%s/>`,
		num(x1), num(y1), num(x2), num(y2), s.attrs())
}

func (c *Canvas) Circle(cx, cy, r float64, s Style) {
	fmt.Fprintf(&c.b, `<circle cx="%s" cy="%s" r="%s"%s/>`, num(cx), num(cy), num(r), s.attrs())
}

// Cross draws an X marker of half-size r.
func (c *Canvas) Cross(cx, cy, r float64, s Style) {
	c.Line(cx-r, cy-r, cx+r, cy+r, s)
	c.Line(cx+r, cy-r, cx-r, cy+r, s)
}

// Polyline draws connected segments; fewer than two points draws nothing.
func (c *Canvas) Polyline(pts []Point, s Style) {
	if len(pts) < 2 {
		return
	}
	var b strings.Builder
	for i, p := range pts {
		if i > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(num(p.X))
		b.WriteByte(',')
		b.WriteString(num(p.Y))
	}
	fmt.Fprintf(&c.b, `<polyline points="%s"%s/>`, b.String(), s.attrs())
}

// Text draws an escaped label.
func (c *Canvas) Text(x, y float64, text string, s Style) {
	if s.Fill == "" {
		s.Fill = "#aaa"
	}
	fmt.Fprintf(&c.b, `<text x="%s" y="%s"%s>%s</text>`, num(x), num(y), s.attrs(), html.EscapeString(text))
}

// Axes draws the x and y axes through the viewport origin with labels, in the
// grey used by every plot.
func (c *Canvas) Axes(v Viewport, xLabel, yLabel string) {
	axis := Style{Stroke: "#555", StrokeWidth: 1}
	c.Line(0, v.OriginY, v.Width, v.OriginY, axis)
	c.Line(v.OriginX, 0, v.OriginX, v.Height, axis)

	label := Style{Fill: "#aaa", FontSize: 10}
	c.Text(v.Width-10-float64(6*(len(xLabel)-1)), v.OriginY-5, xLabel, label)
	c.Text(v.OriginX+5, 12, yLabel, label)
}

// String closes the document and returns the SVG markup.
func (c *Canvas) String() string {
	return fmt.Sprintf(`<svg xmlns="http://www.w3.org/2000/svg" width="%s" height="%s" viewBox="0 0 %s %s">%s</svg>`,
		num(c.width), num(c.height), num(c.width), num(c.height), c.b.String())
}

func num(v float64) string {
	s := strconv.FormatFloat(v, 'f', 2, 64)
	s = strings.TrimRight(s, "0")
	s = strings.TrimSuffix(s, ".")
	if s == "-0" {
		return "0"
	}
	return s
}
