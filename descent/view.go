package descent

import (
	"fmt"
	"math"

	"github.com/openfluke/mlviz/plot"
)

const (
	Width  = 600.0
	Height = 400.0

	TangentLength = 30.0 // pixels
	TangentDx     = 0.5  // math units
)

// Viewport is the fixed plot range x in [-10, 10], y in [-2, 15].
func Viewport() plot.Viewport {
	return plot.NewViewport(-10, 10, -2, 15, Width, Height)
}

// Tangent returns the pixel endpoints of a TangentLength segment centred on
// (x, F(x)) along the slope. A vanishing slope vector gives a zero-length
// segment.
func Tangent(v plot.Viewport, x float64) (plot.Point, plot.Point) {
	c := v.ToPixel(x, F(x))
	dx := TangentDx * v.ScaleX
	dy := -Grad(x) * TangentDx * v.ScaleY
	mag := math.Hypot(dx, dy)
	var ux, uy float64
	if mag > 1e-6 {
		ux = dx / mag * TangentLength
		uy = dy / mag * TangentLength
	}
	return plot.Point{X: c.X - ux/2, Y: c.Y - uy/2}, plot.Point{X: c.X + ux/2, Y: c.Y + uy/2}
}

// Snapshot is the JSON view of the descent.
type Snapshot struct {
	X            float64 `json:"x"`
	FX           float64 `json:"fx"`
	Gradient     float64 `json:"gradient"`
	StartX       float64 `json:"start_x"`
	Iteration    int     `json:"iteration"`
	LearningRate float64 `json:"learning_rate"`
	CurrentLR    float64 `json:"current_lr"`
	Schedule     string  `json:"schedule"`
	HistoryLen   int     `json:"history_len"`
	Converged    bool    `json:"converged"`
	Running      bool    `json:"running"`
}

func (a *Animation) Snapshot() Snapshot {
	s := a.State()
	base, cur := a.LearningRate()
	return Snapshot{
		X:            s.X,
		FX:           F(s.X),
		Gradient:     Grad(s.X),
		StartX:       s.StartX,
		Iteration:    s.Iteration,
		LearningRate: base,
		CurrentLR:    cur,
		Schedule:     a.Schedule(),
		HistoryLen:   len(s.History),
		Converged:    s.Converged,
		Running:      a.Running(),
	}
}

// SVG draws the curve, the descent trail, the current point and its tangent.
func (a *Animation) SVG() string {
	s := a.State()
	v := Viewport()
	c := plot.NewCanvas(Width, Height)
	c.Axes(v, "x", "f(x)")

	curve := make([]plot.Point, int(Width))
	for px := range curve {
		x := v.ToMathX(float64(px))
		curve[px] = v.ToPixel(x, F(x))
	}
	c.Polyline(curve, plot.Style{Stroke: "#00ffff", StrokeWidth: 2})

	if len(s.History) > 1 {
		trail := make([]plot.Point, len(s.History))
		for i, p := range s.History {
			trail[i] = v.ToPixel(p.X, p.Y)
		}
		c.Polyline(trail, plot.Style{Stroke: "rgba(255, 100, 0, 0.5)", StrokeWidth: 1})
	}

	cur := v.ToPixel(s.X, F(s.X))
	c.Circle(cur.X, cur.Y, 5, plot.Style{Fill: "#ff5500"})
	p1, p2 := Tangent(v, s.X)
	c.Line(p1.X, p1.Y, p2.X, p2.Y, plot.Style{Stroke: "#ff00ff", StrokeWidth: 1})

	c.Text(10, Height-10, fmt.Sprintf("Iteration: %d   x: %.4f   f(x): %.4f   f'(x): %.4f",
		s.Iteration, s.X, F(s.X), Grad(s.X)), plot.Style{Fill: "#ddd", FontSize: 12})
	return c.String()
}
