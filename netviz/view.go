package netviz

import (
	"fmt"
	"math"
	"strconv"

	"github.com/openfluke/mlviz/nn"
	"github.com/openfluke/mlviz/plot"
)

const (
	Width  = 800.0
	Height = 480.0

	marginX      = 90.0
	netTop       = 90.0
	netBottom    = 390.0
	neuronRadius = 14.0
	glyphSize    = 40.0
)

// SignalPosition is how far, in percent of the network width, the forward
// signal has travelled after step steps.
func SignalPosition(step int) float64 {
	return math.Min(100, float64(step)*1.5)
}

// BackwardSignalPosition is the backward signal, travelling right to left.
func BackwardSignalPosition(step int) float64 {
	return math.Max(0, 100-float64(step)*1.5)
}

// SegmentWidth is the share of the width between two adjacent layers.
func SegmentWidth(numLayers int) float64 {
	return 100 / float64(numLayers-1)
}

func (s State) signal() float64 {
	if s.Mode == Backward {
		return BackwardSignalPosition(s.Step)
	}
	return SignalPosition(s.Step)
}

// Highlighted reports whether the connection from neuron from of layer l to
// neuron to of layer l+1 lies under the moving signal. Only a pseudo-random
// subset of the connections in the current segment lights up.
func (s State) Highlighted(l, from, to int) bool {
	seg := int(math.Floor(s.signal() / SegmentWidth(len(s.Layers))))
	if seg != l {
		return false
	}
	if s.Mode == Backward {
		from, to = to, from
	}
	return s.Step%7 == from%3 || s.Step%5 == to%3
}

// NeuronActivation is the brightness in [0, 1] of neuron n in layer l.
// Neurons the signal is crossing pulse fast, ones it has passed glow, and
// ones it has not reached stay at 0.2.
func (s State) NeuronActivation(l, n int) float64 {
	w := SegmentWidth(len(s.Layers))
	start, end := float64(l)*w, float64(l+1)*w
	pos := s.signal()
	step := float64(s.Step)
	pulse := math.Sin(step*0.2+float64(n)*0.7)*0.5 + 0.5
	glow := math.Sin(step*0.1+float64(n)*0.5)*0.3 + 0.7

	if s.Mode == Backward {
		if pos > end {
			return 0.2
		}
		if pos > start {
			return pulse
		}
		return glow
	}
	if pos < start {
		return 0.2
	}
	if pos < end {
		return pulse
	}
	return glow
}

func ftoa(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) }

// WeightColor is cyan for positive weights and magenta otherwise, brighter
// with magnitude.
func WeightColor(w float64) string {
	i := math.Min(255, math.Round(math.Abs(w)*200)+55)
	if w > 0 {
		return fmt.Sprintf("rgb(0, %s, %s)", ftoa(i), ftoa(i))
	}
	return fmt.Sprintf("rgb(%s, 0, %s)", ftoa(i), ftoa(i))
}

// GradientColor is orange for positive gradients and violet otherwise.
func GradientColor(g float64) string {
	i := math.Min(255, math.Round(math.Abs(g)*1000)+100)
	if g > 0 {
		return fmt.Sprintf("rgb(%s, %s, 0)", ftoa(i), ftoa(i/2))
	}
	return fmt.Sprintf("rgb(%s, 0, %s)", ftoa(i/2), ftoa(i))
}

// StrokeWidth scales with the weight when weights are shown, and otherwise
// only marks highlighted connections.
func StrokeWidth(showWeights, highlighted bool, w float64) float64 {
	if showWeights {
		return math.Max(0.5, math.Min(3, math.Abs(w)*3))
	}
	if highlighted {
		return 2
	}
	return 1
}

// NeuronPos is the centre of neuron n in layer l on the SVG canvas.
func NeuronPos(layers []Layer, l, n int) plot.Point {
	x := marginX + float64(l)*(Width-2*marginX)/float64(len(layers)-1)
	h := (netBottom - netTop) / float64(layers[l].Neurons)
	return plot.Point{X: x, Y: netTop + (float64(n)+0.5)*h}
}

func modeLabel(m Mode) string {
	if m == Backward {
		return "Backpropagation"
	}
	return "Forward Propagation"
}

// Snapshot is the JSON view of the network.
type Snapshot struct {
	Mode       Mode              `json:"mode"`
	ModeLabel  string            `json:"mode_label"`
	Step       int               `json:"step"`
	Epoch      int               `json:"epoch"`
	Error      float64           `json:"error"`
	Signal     float64           `json:"signal"`
	Speed      int               `json:"speed"`
	Activation nn.ActivationInfo `json:"activation"`
	Display    Display           `json:"display"`
	Layers     []Layer           `json:"layers"`
	Neurons    [][]float64       `json:"neurons"` // activation levels per layer
	Params     Params            `json:"params"`
	Gradients  *Params           `json:"gradients,omitempty"` // backward pass only
	Running    bool              `json:"running"`
}

func (a *Animation) Snapshot() Snapshot {
	s := a.State()
	d := a.Display()
	snap := Snapshot{
		Mode:       s.Mode,
		ModeLabel:  modeLabel(s.Mode),
		Step:       s.Step,
		Epoch:      s.Epoch,
		Error:      s.Error,
		Signal:     s.signal(),
		Speed:      a.Speed(),
		Activation: d.Activation.Info(),
		Display:    d,
		Layers:     s.Layers,
		Neurons:    make([][]float64, len(s.Layers)),
		Params:     s.Params,
		Running:    a.Running(),
	}
	for l, layer := range s.Layers {
		snap.Neurons[l] = make([]float64, layer.Neurons)
		for n := range snap.Neurons[l] {
			snap.Neurons[l][n] = s.NeuronActivation(l, n)
		}
	}
	if s.Mode == Backward {
		snap.Gradients = &s.Gradients
	}
	return snap
}

// SVG draws the header, connections, neurons, activation glyphs and the
// signal overlay.
func (a *Animation) SVG() string {
	s := a.State()
	d := a.Display()
	c := plot.NewCanvas(Width, Height)
	backward := s.Mode == Backward

	c.Text(20, 28, fmt.Sprintf("Mode: %s", modeLabel(s.Mode)), plot.Style{Fill: "#ddd", FontSize: 14})
	c.Text(320, 28, fmt.Sprintf("Epoch: %d", s.Epoch), plot.Style{Fill: "#ddd", FontSize: 14})
	c.Text(460, 28, fmt.Sprintf("Error: %.1f%%", s.Error*100), plot.Style{Fill: "#ddd", FontSize: 14})
	c.Rect(580, 18, 180, 10, plot.Style{Fill: "#333"})
	c.Rect(580, 18, 180*s.Error, 10, plot.Style{Fill: "#ff5500", Class: "error-fill"})

	// signal overlay
	if backward {
		c.Rect(0, netTop-30, Width, netBottom-netTop+60, plot.Style{Fill: "rgba(255,165,0,0.1)", Class: "signal-overlay"})
	} else {
		c.Rect(0, netTop-30, Width*s.signal()/100, netBottom-netTop+60, plot.Style{Fill: "rgba(0,255,255,0.1)", Class: "signal-overlay"})
	}

	type label struct {
		at   plot.Point
		w, g float64
		hasG bool
	}
	var labels []label
	for l := 0; l < len(s.Layers)-1; l++ {
		for i := 0; i < s.Layers[l].Neurons; i++ {
			p1 := NeuronPos(s.Layers, l, i)
			for j := 0; j < s.Layers[l+1].Neurons; j++ {
				p2 := NeuronPos(s.Layers, l+1, j)
				hl := s.Highlighted(l, i, j)
				w := s.Params.Weights[l][i][j]
				g := s.Gradients.Weights[l][i][j]
				hasG := backward && g != 0

				st := plot.Style{StrokeWidth: StrokeWidth(d.ShowWeights, hl, w), Opacity: 0.5}
				switch {
				case backward && hl && hasG:
					st.Stroke = GradientColor(g)
				case d.ShowWeights:
					st.Stroke = WeightColor(w)
				case hl:
					st.Stroke = "#00ffff"
				default:
					st.Stroke = "#444444"
				}
				if hl || d.ShowWeights {
					st.Opacity = 1
				}
				if backward && hl {
					st.Dash = "4 2"
				}
				c.Line(p1.X, p1.Y, p2.X, p2.Y, st)

				if (d.ShowWeights && hl) || (backward && hl && hasG) {
					labels = append(labels, label{
						at:   plot.Point{X: (p1.X + p2.X) / 2, Y: (p1.Y + p2.Y) / 2},
						w:    w,
						g:    g,
						hasG: backward && hasG,
					})
				}
			}
		}
	}
	for _, lb := range labels {
		h, off, textOff := 16.0, -8.0, 0.0
		if lb.hasG {
			h, off, textOff = 28, -14, -6
		}
		c.RoundRect(lb.at.X-15, lb.at.Y+off, 30, h, 2, plot.Style{Fill: "#222222", Stroke: "#444444", StrokeWidth: 1})
		fill := "#00ffff"
		if lb.w < 0 {
			fill = "#ff00ff"
		}
		c.Text(lb.at.X, lb.at.Y+textOff+3, fmt.Sprintf("%.2f", lb.w), plot.Style{Fill: fill, FontSize: 10, Anchor: "middle"})
		if lb.hasG {
			c.Text(lb.at.X, lb.at.Y+9, fmt.Sprintf("%+.3f", lb.g), plot.Style{Fill: GradientColor(lb.g), FontSize: 10, Anchor: "middle"})
		}
	}

	for l, layer := range s.Layers {
		top := NeuronPos(s.Layers, l, 0)
		c.Text(top.X, netTop-40, layer.Name, plot.Style{Fill: "#aaa", FontSize: 12, Anchor: "middle"})
		for n := 0; n < layer.Neurons; n++ {
			p := NeuronPos(s.Layers, l, n)
			act := s.NeuronActivation(l, n)
			c.Circle(p.X, p.Y, neuronRadius, plot.Style{
				Fill:   fmt.Sprintf("rgba(0, 255, 255, %s)", ftoa(round(act, 3))),
				Stroke: "#00ffff", StrokeWidth: 1, Class: "neuron",
			})
			switch layer.ID {
			case "input":
				c.Text(p.X-neuronRadius-6, p.Y+4, fmt.Sprintf("x%d", n+1), plot.Style{Fill: "#aaa", FontSize: 10, Anchor: "end"})
			case "output":
				c.Text(p.X+neuronRadius+6, p.Y+4, fmt.Sprintf("y%d", n+1), plot.Style{Fill: "#aaa", FontSize: 10})
			}
			if d.HighlightBias && layer.HasBias {
				c.Text(p.X, p.Y+4, "b", plot.Style{Fill: "#ffcc00", FontSize: 10, Anchor: "middle", Class: "bias-indicator"})
				txt := fmt.Sprintf("%.2f", s.Params.Biases[l][n])
				if backward {
					txt += fmt.Sprintf(" %+.3f", s.Gradients.Biases[l][n])
				}
				c.Text(p.X+neuronRadius+4, p.Y-neuronRadius+2, txt, plot.Style{Fill: "#ffcc00", FontSize: 9, Class: "bias-value"})
			}
		}
		if d.ShowActivationLayer && layer.HasActivation {
			a.glyph(c, d.Activation, top.X-glyphSize/2, netBottom+20)
		}
	}
	return c.String()
}

// glyph draws a small normalised plot of fn over [-5, 5].
func (a *Animation) glyph(c *plot.Canvas, fn nn.Activation, x, y float64) {
	c.Rect(x, y, glyphSize, glyphSize, plot.Style{Stroke: "#444", StrokeWidth: 1, Dash: "2 2", Class: "activation-function"})
	c.Line(x, y+glyphSize/2, x+glyphSize, y+glyphSize/2, plot.Style{Stroke: "#555555", StrokeWidth: 1})
	c.Line(x+glyphSize/2, y, x+glyphSize/2, y+glyphSize, plot.Style{Stroke: "#555555", StrokeWidth: 1})

	zs := make([]float64, int(glyphSize))
	for i := range zs {
		zs[i] = float64(i)/glyphSize*10 - 5
	}
	out, err := a.sampler.Sample(fn, zs)
	if err != nil {
		return
	}
	lo, hi := out[0], out[0]
	for _, v := range out {
		lo, hi = math.Min(lo, v), math.Max(hi, v)
	}
	if hi-lo < 1e-12 {
		hi = lo + 1
	}
	pts := make([]plot.Point, len(out))
	for i, v := range out {
		pts[i] = plot.Point{X: x + float64(i), Y: y + glyphSize - (v-lo)/(hi-lo)*glyphSize}
	}
	c.Polyline(pts, plot.Style{Stroke: "#00ffff", StrokeWidth: 2})
}
