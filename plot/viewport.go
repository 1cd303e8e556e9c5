// Package plot maps math coordinates onto a pixel canvas and draws SVG.
//
// Every animation in this module plots into a fixed-size canvas whose y axis
// points down. A Viewport captures the linear map between the two spaces:
//
//	px = OriginX + x*ScaleX
//	py = OriginY - y*ScaleY
package plot

import "math"

// Point is a 2-D coordinate, in math or pixel space depending on context.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Viewport is the math range shown on a Width x Height pixel canvas.
type Viewport struct {
	XMin, XMax float64
	YMin, YMax float64
	Width      float64
	Height     float64
	ScaleX     float64
	ScaleY     float64
	OriginX    float64 // pixel x of math x = 0
	OriginY    float64 // pixel y of math y = 0
}

// NewViewport builds the map for the given ranges. An empty range is
// widened to 1 so the scale stays finite.
func NewViewport(xMin, xMax, yMin, yMax, width, height float64) Viewport {
	xRange := xMax - xMin
	if xRange == 0 {
		xRange = 1
	}
	yRange := yMax - yMin
	if yRange == 0 {
		yRange = 1
	}
	scaleX := width / xRange
	scaleY := height / yRange
	return Viewport{
		XMin: xMin, XMax: xMax,
		YMin: yMin, YMax: yMax,
		Width: width, Height: height,
		ScaleX:  scaleX,
		ScaleY:  scaleY,
		OriginX: -xMin * scaleX,
		OriginY: yMax * scaleY,
	}
}

// Fit returns a viewport covering all points plus padding on each side.
// With no points it falls back to fallback.
func Fit(points []Point, padX, padY, width, height float64, fallback Viewport) Viewport {
	if len(points) == 0 {
		return fallback
	}
	xMin, xMax := math.Inf(1), math.Inf(-1)
	yMin, yMax := math.Inf(1), math.Inf(-1)
	for _, p := range points {
		xMin = math.Min(xMin, p.X)
		xMax = math.Max(xMax, p.X)
		yMin = math.Min(yMin, p.Y)
		yMax = math.Max(yMax, p.Y)
	}
	return NewViewport(xMin-padX, xMax+padX, yMin-padY, yMax+padY, width, height)
}

// ToPixel maps a math point to canvas pixels.
func (v Viewport) ToPixel(x, y float64) Point {
	return Point{X: v.OriginX + x*v.ScaleX, Y: v.OriginY - y*v.ScaleY}
}

// ToMathX maps a pixel column back to math x.
func (v Viewport) ToMathX(px float64) float64 {
	return (px - v.OriginX) / v.ScaleX
}
