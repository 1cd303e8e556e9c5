package transformer

import (
	"fmt"
	"strings"

	"github.com/openfluke/mlviz/plot"
)

// SVG layout, in pixels.
const (
	svgWidth    = 720.0
	svgMargin   = 20.0
	chipWidth   = 62.0
	chipHeight  = 28.0
	chipGap     = 6.0
	blockHeight = 30.0
	layerHeight = 72.0
)

var chipFill = map[string]string{
	"token-processing":       "#2a4d69",
	"token-embedding":        "#4b8bbe",
	"token-attention-source": "#e06c75",
	"token-attention-target": "#98c379",
}

func activeFill(active bool) string {
	if active {
		return "#3a6ea5"
	}
	return "#2b2b2b"
}

// RenderSVG draws the view: the token row, the embedding block, one box per
// layer with its attention and feed-forward blocks, the output head and an
// info line.
func RenderSVG(v View) string {
	height := 200 + float64(len(v.Layers))*(layerHeight+10)
	c := plot.NewCanvas(svgWidth, height)
	inner := svgWidth - 2*svgMargin
	label := plot.Style{Fill: "#ddd", FontSize: 12}
	small := plot.Style{Fill: "#ddd", FontSize: 11, Anchor: "middle"}

	y := 20.0
	c.Text(svgMargin, y, "Input Sequence:", label)
	y += 8
	x := svgMargin
	for _, chip := range v.Chips {
		fill := "#333"
		for _, cl := range chip.Classes {
			if f, ok := chipFill[cl]; ok {
				fill = f
			}
		}
		c.RoundRect(x, y, chipWidth, chipHeight, 4, plot.Style{Fill: fill, Stroke: "#666", Class: strings.Join(chip.Classes, " ")})
		c.Text(x+chipWidth/2, y+18, chip.Text, small)
		x += chipWidth + chipGap
	}
	if v.Predicting {
		c.RoundRect(x, y, chipWidth, chipHeight, 4, plot.Style{Stroke: "#888", Dash: "4 3", Class: "token token-predicting"})
		c.Text(x+chipWidth/2, y+18, "?", small)
	}
	y += chipHeight + 14

	c.RoundRect(svgMargin, y, inner, blockHeight, 4, plot.Style{Fill: activeFill(v.EmbeddingActive), Stroke: "#555"})
	c.Text(svgWidth/2, y+19, "Input + Positional Embeddings", small)
	y += blockHeight + 10

	for _, box := range v.Layers {
		stroke := "#555"
		if box.Active {
			stroke = "#8ab4f8"
		}
		c.RoundRect(svgMargin, y, inner, layerHeight, 6, plot.Style{Stroke: stroke, StrokeWidth: 1.5})
		c.Text(svgMargin+8, y+14, fmt.Sprintf("Layer %d", box.Index+1), plot.Style{Fill: "#999", FontSize: 10})

		bx, bw := svgMargin+70, inner-80
		c.RoundRect(bx, y+6, bw, 26, 4, plot.Style{Fill: activeFill(box.AttentionActive), Stroke: "#555"})
		c.Text(bx+bw/2, y+23, "Masked Self-Attention", small)
		if box.Arrow != nil {
			ax := bx + bw*box.Arrow.LeftPct/100
			aw := bw * box.Arrow.WidthPct / 100
			c.Line(ax, y+29, ax+aw, y+29, plot.Style{Stroke: "#e5c07b", StrokeWidth: 2, Class: "attention-arrow"})
			c.Circle(ax+aw, y+29, 3, plot.Style{Fill: "#e5c07b"})
		}

		c.RoundRect(bx, y+38, bw, 26, 4, plot.Style{Fill: activeFill(box.FFNActive), Stroke: "#555"})
		c.Text(bx+bw/2, y+55, "Feed Forward", small)
		y += layerHeight + 10
	}

	c.RoundRect(svgMargin, y, inner, blockHeight, 4, plot.Style{Fill: activeFill(v.OutputActive), Stroke: "#555"})
	out := "Linear + Softmax (Prediction)"
	if v.Predicted != "" {
		out += "  Predicted: " + v.Predicted
	}
	c.Text(svgWidth/2, y+19, out, small)
	y += blockHeight + 24

	c.Text(svgMargin, y, fmt.Sprintf("Status: %s   Len: %d   Layer: %s", v.Status, v.Len, v.LayerLabel), label)
	return c.String()
}
