package geometry

import "math"

// Point is a position on the simulation canvas. Canvas coordinates follow
// screen convention: y grows downward.
type Point struct {
	X, Y float64
}

// Sub returns p - other.
func (p Point) Sub(other Point) Point {
	return Point{X: p.X - other.X, Y: p.Y - other.Y}
}

// Dot returns the dot product of two points treated as vectors.
func (p Point) Dot(other Point) float64 {
	return p.X*other.X + p.Y*other.Y
}

// Norm returns the Euclidean length of the point treated as a vector.
func (p Point) Norm() float64 {
	return math.Hypot(p.X, p.Y)
}

// Distance returns the straight-line distance between two points.
func Distance(p1, p2 Point) float64 {
	return math.Hypot(p2.X-p1.X, p2.Y-p1.Y)
}

// Bounds is the visible canvas, spanning [0, Width] x [0, Height].
type Bounds struct {
	Width, Height float64
}

// IsOut reports whether p lies outside the canvas on either axis.
// Points on the edge are inside.
func (b Bounds) IsOut(p Point) bool {
	return p.X < 0 || p.X > b.Width || p.Y < 0 || p.Y > b.Height
}

// Sensor holds the detection radius R. The inner ring is R and the outer
// ring is 2R.
type Sensor struct {
	Radius float64
}

// InInnerRadius reports whether p2 is within R of p1.
func (s Sensor) InInnerRadius(p1, p2 Point) bool {
	return Distance(p1, p2) <= s.Radius
}

// InOuterRadius reports whether p2 is within 2R of p1.
func (s Sensor) InOuterRadius(p1, p2 Point) bool {
	return Distance(p1, p2) <= 2*s.Radius
}
