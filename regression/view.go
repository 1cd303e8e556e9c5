package regression

import (
	"fmt"

	"github.com/openfluke/mlviz/plot"
)

const (
	LinearWidth  = 600.0
	LinearHeight = 400.0

	LogisticSize    = 500.0
	LogisticPadding = 1.5
)

// LinearViewport fits the data with 1 unit of x and 2 units of y padding.
func LinearViewport(data []plot.Point) plot.Viewport {
	return plot.Fit(data, 1, 2, LinearWidth, LinearHeight,
		plot.NewViewport(0, 10, 0, 15, LinearWidth, LinearHeight))
}

// LinearSnapshot is the JSON view of the linear fit.
type LinearSnapshot struct {
	M            float64      `json:"m"`
	B            float64      `json:"b"`
	Iteration    int          `json:"iteration"`
	Loss         float64      `json:"loss"`
	LearningRate float64      `json:"learning_rate"`
	Converged    bool         `json:"converged"`
	Running      bool         `json:"running"`
	Points       []plot.Point `json:"points"`
}

func (l *Linear) Snapshot() LinearSnapshot {
	s, lr := l.State()
	return LinearSnapshot{
		M:            s.M,
		B:            s.B,
		Iteration:    s.Iteration,
		Loss:         s.MSE(LinearData),
		LearningRate: lr,
		Converged:    s.Converged,
		Running:      l.Running(),
		Points:       LinearData,
	}
}

// SVG draws the data points and the current fitted line across the plot.
func (l *Linear) SVG() string {
	s, _ := l.State()
	v := LinearViewport(LinearData)
	c := plot.NewCanvas(LinearWidth, LinearHeight)
	c.Axes(v, "x", "y")
	for _, p := range LinearData {
		px := v.ToPixel(p.X, p.Y)
		c.Circle(px.X, px.Y, 4, plot.Style{Fill: "#00aaff"})
	}
	a := v.ToPixel(v.XMin, s.Predict(v.XMin))
	b := v.ToPixel(v.XMax, s.Predict(v.XMax))
	c.Line(a.X, a.Y, b.X, b.Y, plot.Style{Stroke: "#ff5500", StrokeWidth: 2})
	c.Text(10, LinearHeight-10, fmt.Sprintf("Iteration: %d   m: %.4f   b: %.4f   MSE: %.4f",
		s.Iteration, s.M, s.B, s.MSE(LinearData)), plot.Style{Fill: "#ddd", FontSize: 12})
	return c.String()
}

// LogisticViewport fits the features with LogisticPadding on every side.
func LogisticViewport(data []Sample) plot.Viewport {
	pts := make([]plot.Point, len(data))
	for i, d := range data {
		pts[i] = plot.Point{X: d.X1, Y: d.X2}
	}
	return plot.Fit(pts, LogisticPadding, LogisticPadding, LogisticSize, LogisticSize,
		plot.NewViewport(0, 10, 0, 10, LogisticSize, LogisticSize))
}

// LogisticSnapshot is the JSON view of the logistic fit.
type LogisticSnapshot struct {
	W1           float64  `json:"w1"`
	W2           float64  `json:"w2"`
	B            float64  `json:"b"`
	Iteration    int      `json:"iteration"`
	Loss         float64  `json:"loss"`
	Accuracy     float64  `json:"accuracy"`
	LearningRate float64  `json:"learning_rate"`
	Converged    bool     `json:"converged"`
	Running      bool     `json:"running"`
	Samples      []Sample `json:"samples"`
}

func (l *Logistic) Snapshot() LogisticSnapshot {
	s, data, lr := l.State()
	return LogisticSnapshot{
		W1:           s.W1,
		W2:           s.W2,
		B:            s.B,
		Iteration:    s.Iteration,
		Loss:         s.LogLoss(data),
		Accuracy:     s.Accuracy(data),
		LearningRate: lr,
		Converged:    s.Converged,
		Running:      l.Running(),
		Samples:      data,
	}
}

// SVG draws class 0 as blue dots, class 1 as red crosses and the decision
// boundary when there is one.
func (l *Logistic) SVG() string {
	s, data, _ := l.State()
	v := LogisticViewport(data)
	c := plot.NewCanvas(LogisticSize, LogisticSize)
	c.Axes(v, "x1", "x2")
	for _, d := range data {
		p := v.ToPixel(d.X1, d.X2)
		if d.Y == 0 {
			c.Circle(p.X, p.Y, 4, plot.Style{Fill: "#3399ff"})
		} else {
			c.Cross(p.X, p.Y, 3, plot.Style{Stroke: "#ff5555", StrokeWidth: 1.5})
		}
	}
	if a, b, ok := s.Boundary(v); ok {
		c.Line(a.X, a.Y, b.X, b.Y, plot.Style{Stroke: "#00ffaa", StrokeWidth: 2, Class: "decision-boundary"})
	}
	c.Text(10, LogisticSize-10, fmt.Sprintf("Iteration: %d   Log Loss: %.4f   Accuracy: %.2f%%",
		s.Iteration, s.LogLoss(data), s.Accuracy(data)), plot.Style{Fill: "#ddd", FontSize: 12})
	return c.String()
}
