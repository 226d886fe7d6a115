// Package geometry converts heterogeneous annotation shapes into
// canonical ordered polygons and axis-aligned bounding boxes.
package geometry

import "math"

const circleSegments = 16

// Point is a 2D point in absolute image pixel coordinates.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Rect is an axis-aligned box (x, y, width, height) in pixel coordinates.
type Rect struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Shape is one raw annotation shape as drawn or detected. Fields beyond
// Type/Label are populated depending on the shape kind.
type Shape struct {
	Type   string  `json:"type"`
	Label  string  `json:"label"`
	Points []Point `json:"points,omitempty"`
	Left   float64 `json:"left"`
	Top    float64 `json:"top"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
	Radius float64 `json:"radius,omitempty"`

	// MaskedImageURL references an optional per-shape binary mask file.
	MaskedImageURL string `json:"masked_image_url,omitempty"`

	// Confidence is set on detector-produced shapes, zero otherwise.
	Confidence float64 `json:"confidence,omitempty"`
}

// Normalize resolves a shape into its canonical polygon.
//
// Polygons keep their points verbatim in drawing order. Rectangles emit
// the four corners clockwise from top-left. Circles emit 16 points on
// the circumference; the radius falls back to width/2 when unset.
// Unknown shape types yield an empty slice, which callers must treat as
// "no geometry" rather than an error.
func Normalize(s Shape) []Point {
	switch s.Type {
	case "polygon":
		pts := make([]Point, len(s.Points))
		copy(pts, s.Points)
		return pts

	case "rect", "rectangle":
		return []Point{
			{X: s.Left, Y: s.Top},
			{X: s.Left + s.Width, Y: s.Top},
			{X: s.Left + s.Width, Y: s.Top + s.Height},
			{X: s.Left, Y: s.Top + s.Height},
		}

	case "circle":
		r := s.Radius
		if r == 0 {
			r = s.Width / 2
		}
		cx := s.Left + r
		cy := s.Top + r

		pts := make([]Point, 0, circleSegments)
		for i := 0; i < circleSegments; i++ {
			theta := 2 * math.Pi * float64(i) / circleSegments
			pts = append(pts, Point{
				X: cx + r*math.Cos(theta),
				Y: cy + r*math.Sin(theta),
			})
		}
		return pts
	}

	return nil
}

// BBox returns the tight axis-aligned extent of a polygon, or the zero
// Rect for an empty point list.
func BBox(points []Point) Rect {
	if len(points) == 0 {
		return Rect{}
	}

	minX, minY := points[0].X, points[0].Y
	maxX, maxY := minX, minY
	for _, p := range points[1:] {
		minX = math.Min(minX, p.X)
		minY = math.Min(minY, p.Y)
		maxX = math.Max(maxX, p.X)
		maxY = math.Max(maxY, p.Y)
	}

	return Rect{X: minX, Y: minY, Width: maxX - minX, Height: maxY - minY}
}

// Flatten returns the polygon as [x1, y1, x2, y2, ...].
func Flatten(points []Point) []float64 {
	flat := make([]float64, 0, 2*len(points))
	for _, p := range points {
		flat = append(flat, p.X, p.Y)
	}
	return flat
}
