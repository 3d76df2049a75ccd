package node

import (
	"fmt"
	"math"
	"math/rand/v2"
	"strings"
	"sync/atomic"

	"github.com/picogrid/v2v-simulations/pkg/config"
	"github.com/picogrid/v2v-simulations/pkg/geometry"
)

// ID identifies a node for the lifetime of the process. IDs are handed out
// in increasing order and never reused.
type ID uint64

var lastID atomic.Uint64

func nextID() ID {
	return ID(lastID.Add(1) - 1)
}

// Direction is the fixed heading of a node.
type Direction int

const (
	North Direction = iota
	South
	East
	West
)

func (d Direction) String() string {
	switch d {
	case North:
		return "north"
	case South:
		return "south"
	case East:
		return "east"
	case West:
		return "west"
	default:
		return fmt.Sprintf("direction(%d)", int(d))
	}
}

// step returns the displacement for one epoch. North moves toward y = 0.
func (d Direction) step(speed float64) geometry.Point {
	switch d {
	case North:
		return geometry.Point{Y: -speed}
	case South:
		return geometry.Point{Y: speed}
	case East:
		return geometry.Point{X: speed}
	default:
		return geometry.Point{X: -speed}
	}
}

// Appearance tracks whether a node has been inside the canvas yet.
type Appearance int

const (
	// Pending nodes were spawned off canvas and have not entered it.
	Pending Appearance = iota
	// Visible nodes have been inside the canvas at least once.
	Visible
)

func (a Appearance) String() string {
	if a == Visible {
		return "visible"
	}
	return "pending"
}

// Params is the immutable per-run configuration a node is built from.
type Params struct {
	Bounds        geometry.Bounds
	Sensor        geometry.Sensor
	Speed         config.SpeedRange
	CoordHistory  int
	BeaconHistory int
	Distribution  config.DistributionConfig
	ErrorRanges   [NumCategories]config.ErrorRange
}

// NewParams extracts node parameters from a validated configuration.
func NewParams(cfg *config.Config) Params {
	return Params{
		Bounds:        geometry.Bounds{Width: cfg.Canvas.Width, Height: cfg.Canvas.Height},
		Sensor:        geometry.Sensor{Radius: cfg.Sensor.Radius},
		Speed:         cfg.Nodes.Speed,
		CoordHistory:  cfg.Nodes.CoordHistory,
		BeaconHistory: cfg.Nodes.BeaconHistory,
		Distribution:  cfg.Distribution,
		ErrorRanges: [NumCategories]config.ErrorRange{
			Good:      cfg.BeaconError.Good,
			Faulty:    cfg.BeaconError.Faulty,
			Malicious: cfg.BeaconError.Malicious,
		},
	}
}

// Row is one recorded epoch: the true position and the broadcast beacon.
type Row struct {
	Position geometry.Point
	Beacon   geometry.Point
}

// Stream receives one Row per epoch for a single node.
type Stream interface {
	Write(Row) error
	Close() error
}

// StreamOpener creates the recording stream for a new node.
type StreamOpener interface {
	Open(id ID, category Category) (Stream, error)
}

// Node is a single vehicle. Identity, category, direction and speed are
// fixed at construction.
type Node struct {
	id        ID
	category  Category
	direction Direction
	speed     float64

	params Params
	rng    *rand.Rand

	position   geometry.Point
	beacon     geometry.Point
	hasBeacon  bool
	coords     *History
	beacons    *History
	appearance Appearance

	inner []ID
	outer []ID

	stream Stream
}

// New creates a node. On-canvas nodes start at a uniform position inside
// the bounds. Off-canvas nodes start one sensor radius beyond the edge
// opposite their heading so they drive onto the canvas.
func New(p Params, rng *rand.Rand, onCanvas bool) *Node {
	n := &Node{
		id:        nextID(),
		direction: Direction(rng.IntN(4)),
		params:    p,
		rng:       rng,
		coords:    NewHistory(p.CoordHistory),
		beacons:   NewHistory(p.BeaconHistory),
	}
	n.category = DrawCategory(rng, p.Distribution)

	w, h, r := p.Bounds.Width, p.Bounds.Height, p.Sensor.Radius
	if onCanvas {
		n.appearance = Visible
		n.position = geometry.Point{X: rng.Float64() * w, Y: rng.Float64() * h}
	} else {
		n.appearance = Pending
		switch n.direction {
		case North:
			n.position = geometry.Point{X: rng.Float64() * w, Y: h + r}
		case South:
			n.position = geometry.Point{X: rng.Float64() * w, Y: -r}
		case East:
			n.position = geometry.Point{X: -r, Y: rng.Float64() * h}
		default:
			n.position = geometry.Point{X: w + r, Y: rng.Float64() * h}
		}
	}

	n.speed = float64(p.Speed.Min + rng.IntN(p.Speed.Max-p.Speed.Min+1))
	return n
}

func (n *Node) ID() ID                   { return n.id }
func (n *Node) Category() Category       { return n.category }
func (n *Node) Direction() Direction     { return n.direction }
func (n *Node) Speed() float64           { return n.speed }
func (n *Node) Position() geometry.Point { return n.position }
func (n *Node) Appearance() Appearance   { return n.appearance }

// Beacon returns the most recent broadcast position. ok is false before the
// first Update.
func (n *Node) Beacon() (geometry.Point, bool) {
	return n.beacon, n.hasBeacon
}

// CoordHistory returns past true positions, oldest first.
func (n *Node) CoordHistory() []geometry.Point { return n.coords.Points() }

// BeaconHistory returns past beacons, oldest first.
func (n *Node) BeaconHistory() []geometry.Point { return n.beacons.Points() }

// AttachStream hands ownership of a recording stream to the node.
func (n *Node) AttachStream(s Stream) {
	n.stream = s
}

// Recording reports whether the node still owns an open stream.
func (n *Node) Recording() bool {
	return n.stream != nil
}

// Close releases the recording stream. The stream is closed at most once;
// later calls do nothing.
func (n *Node) Close() error {
	if n.stream == nil {
		return nil
	}
	s := n.stream
	n.stream = nil
	if err := s.Close(); err != nil {
		return fmt.Errorf("close stream for node %d: %w", n.id, err)
	}
	return nil
}

// Update advances the node by one epoch: record the current position in the
// coordinate history, move, then broadcast a new beacon. When a stream is
// attached the epoch is written to it.
func (n *Node) Update() error {
	n.coords.Push(n.position)

	d := n.direction.step(n.speed)
	n.position = geometry.Point{X: n.position.X + d.X, Y: n.position.Y + d.Y}

	n.beacon = n.drawBeacon()
	n.hasBeacon = true
	n.beacons.Push(n.beacon)

	if n.stream != nil {
		if err := n.stream.Write(Row{Position: n.position, Beacon: n.beacon}); err != nil {
			return fmt.Errorf("record node %d: %w", n.id, err)
		}
	}
	return nil
}

// drawBeacon offsets the true position by a uniformly random angle and a
// magnitude drawn from the category's error range.
func (n *Node) drawBeacon() geometry.Point {
	er := n.params.ErrorRanges[n.category]
	magnitude := er.Min + n.rng.Float64()*(er.Max-er.Min)
	angle := n.rng.Float64() * 2 * math.Pi
	return geometry.Point{
		X: n.position.X + magnitude*math.Cos(angle),
		Y: n.position.Y + magnitude*math.Sin(angle),
	}
}

// TrackAppearance moves a pending node to visible once its position is
// inside the canvas. It reports whether the transition happened.
func (n *Node) TrackAppearance() bool {
	if n.appearance == Pending && !n.params.Bounds.IsOut(n.position) {
		n.appearance = Visible
		return true
	}
	return false
}

// Exited reports whether the node has left the canvas for good: it has
// been visible, and neither its position nor any remembered position is
// inside the canvas.
func (n *Node) Exited() bool {
	if n.appearance != Visible {
		return false
	}
	if !n.params.Bounds.IsOut(n.position) {
		return false
	}
	return n.coords.All(n.params.Bounds.IsOut)
}

// SetNeighbors replaces the node's neighbor lists for the current epoch.
func (n *Node) SetNeighbors(inner, outer []ID) {
	n.inner = inner
	n.outer = outer
}

// InnerNeighbors returns the ids within the inner radius.
func (n *Node) InnerNeighbors() []ID { return append([]ID(nil), n.inner...) }

// OuterNeighbors returns the ids within the outer radius.
func (n *Node) OuterNeighbors() []ID { return append([]ID(nil), n.outer...) }

// InnerNeighborPairs returns the inner neighbors as normalized pairs.
func (n *Node) InnerNeighborPairs() []Pair { return n.pairs(n.inner) }

// OuterNeighborPairs returns the outer neighbors as normalized pairs.
func (n *Node) OuterNeighborPairs() []Pair { return n.pairs(n.outer) }

func (n *Node) pairs(ids []ID) []Pair {
	out := make([]Pair, 0, len(ids))
	for _, id := range ids {
		out = append(out, NewPair(n.id, id))
	}
	return out
}

func (n *Node) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "id: %d\n", n.id)
	fmt.Fprintf(&b, "type: %s\n", n.category)
	fmt.Fprintf(&b, "dir: %s\n", n.direction)
	fmt.Fprintf(&b, "speed: %g\n", n.speed)
	fmt.Fprintf(&b, "appearance: %s\n", n.appearance)
	fmt.Fprintf(&b, "num_inner_neighbors: %d\n", len(n.inner))
	fmt.Fprintf(&b, "inner_neighbors: %v\n", n.inner)
	fmt.Fprintf(&b, "num_outer_neighbors: %d\n", len(n.outer))
	fmt.Fprintf(&b, "outer_neighbors: %v\n", n.outer)
	fmt.Fprintf(&b, "cur_coord: (%g, %g)\n", n.position.X, n.position.Y)
	fmt.Fprintf(&b, "past_coord: %v\n", n.coords.Points())
	fmt.Fprintf(&b, "past_bsm_coord: %v\n", n.beacons.Points())
	return b.String()
}
