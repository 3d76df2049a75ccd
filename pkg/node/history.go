package node

import "github.com/picogrid/v2v-simulations/pkg/geometry"

// History is a bounded FIFO of points, oldest first. Pushing onto a full
// history evicts the oldest entry.
type History struct {
	points   []geometry.Point
	capacity int
}

// NewHistory returns an empty history holding at most capacity points.
// Capacities below one are raised to one.
func NewHistory(capacity int) *History {
	if capacity < 1 {
		capacity = 1
	}
	return &History{
		points:   make([]geometry.Point, 0, capacity),
		capacity: capacity,
	}
}

// Push appends p, evicting the oldest point when full.
func (h *History) Push(p geometry.Point) {
	if len(h.points) == h.capacity {
		copy(h.points, h.points[1:])
		h.points = h.points[:len(h.points)-1]
	}
	h.points = append(h.points, p)
}

// Len returns the number of stored points.
func (h *History) Len() int { return len(h.points) }

// Cap returns the configured capacity.
func (h *History) Cap() int { return h.capacity }

// Points returns a copy of the stored points, oldest first.
func (h *History) Points() []geometry.Point {
	out := make([]geometry.Point, len(h.points))
	copy(out, h.points)
	return out
}

// Last returns the newest point.
func (h *History) Last() (geometry.Point, bool) {
	if len(h.points) == 0 {
		return geometry.Point{}, false
	}
	return h.points[len(h.points)-1], true
}

// All reports whether every stored point satisfies fn. An empty history
// satisfies any predicate.
func (h *History) All(fn func(geometry.Point) bool) bool {
	for _, p := range h.points {
		if !fn(p) {
			return false
		}
	}
	return true
}
