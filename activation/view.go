package activation

import (
	"fmt"

	"github.com/openfluke/mlviz/plot"
)

// Snapshot is the JSON view of the animation.
type Snapshot struct {
	Function    string  `json:"function"`
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Z           float64 `json:"z"`
	A           float64 `json:"a"`
	Direction   int     `json:"direction"`
	Speed       float64 `json:"speed"`
	Running     bool    `json:"running"`
	Sampler     string  `json:"sampler"`
}

func (a *Animation) Snapshot() Snapshot {
	s := a.State()
	info := s.Function.Info()
	return Snapshot{
		Function:    info.ID,
		Name:        info.Name,
		Description: info.Description,
		Z:           s.Z,
		A:           s.Output(),
		Direction:   s.Direction,
		Speed:       s.Speed,
		Running:     a.Running(),
		Sampler:     a.sampler.Name(),
	}
}

// SVG draws the axes, the curve and the current z with its guide lines.
func (a *Animation) SVG() string {
	s := a.State()
	v := Viewport(s.Function)
	c := plot.NewCanvas(Width, Height)
	c.Axes(v, "z (Input)", "a=f(z) (Output)")

	segments, err := a.curve(s.Function)
	if err != nil {
		c.Text(10, 20, fmt.Sprintf("curve unavailable: %v", err), plot.Style{Fill: "#e06c75", FontSize: 12})
	}
	for _, seg := range segments {
		c.Polyline(seg, plot.Style{Stroke: "#00ffff", StrokeWidth: 2})
	}

	out := s.Output()
	onAxis := v.ToPixel(s.Z, 0)
	onCurve := v.ToPixel(s.Z, out)
	onA := v.ToPixel(0, out)
	guide := plot.Style{Stroke: "rgba(255, 255, 255, 0.4)", StrokeWidth: 1, Dash: "3 3"}
	c.Line(onAxis.X, v.OriginY, onCurve.X, onCurve.Y, guide)
	c.Line(onCurve.X, onCurve.Y, v.OriginX, onA.Y, guide)
	c.Circle(onAxis.X, v.OriginY, 5, plot.Style{Fill: "#ffaa00"})
	c.Circle(onCurve.X, onCurve.Y, 5, plot.Style{Fill: "#ff5500"})

	c.Text(10, Height-10, fmt.Sprintf("z = %.2f   f(z) = %.4f", s.Z, out), plot.Style{Fill: "#ddd", FontSize: 12})
	return c.String()
}
