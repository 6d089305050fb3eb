package browser

import "math"

// Rect is an axis-aligned rectangle.
type Rect struct {
	X      float64
	Y      float64
	Width  float64
	Height float64
}

// Intersection returns the overlap of r and o, or a zero-size rect when they do not overlap.
func (r Rect) Intersection(o Rect) Rect {
	x0 := math.Max(r.X, o.X)
	y0 := math.Max(r.Y, o.Y)
	x1 := math.Min(r.X+r.Width, o.X+o.Width)
	y1 := math.Min(r.Y+r.Height, o.Y+o.Height)
	if x1 <= x0 || y1 <= y0 {
		return Rect{X: x0, Y: y0}
	}
	return Rect{X: x0, Y: y0, Width: x1 - x0, Height: y1 - y0}
}

// Area is width times height; degenerate rects have zero area.
func (r Rect) Area() float64 {
	if r.Width <= 0 || r.Height <= 0 {
		return 0
	}
	return r.Width * r.Height
}

// IntersectionRatio is the fraction of r's area that lies inside viewport.
// Edge-touching rects do not intersect.
func IntersectionRatio(r, viewport Rect) float64 {
	area := r.Area()
	if area == 0 {
		return 0
	}
	return math.Min(1, r.Intersection(viewport).Area()/area)
}

// InViewport reports whether any part of r is visible inside viewport.
func InViewport(r *Rect, viewport Rect) bool {
	if r == nil {
		return false
	}
	return IntersectionRatio(*r, viewport) > 0
}
