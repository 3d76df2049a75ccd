package simulation

import (
	"errors"
	"fmt"
	"maps"
	"math/rand/v2"
	"slices"
	"time"

	"github.com/picogrid/v2v-simulations/pkg/config"
	"github.com/picogrid/v2v-simulations/pkg/node"
)

// ErrClosed is returned by operations on a simulation after Close.
var ErrClosed = errors.New("simulation closed")

// Observer is notified of population changes and completed epochs. All
// callbacks run on the goroutine driving the simulation.
type Observer interface {
	NodeCreated(n *node.Node)
	NodeRemoved(n *node.Node)
	EpochAdvanced(s *Simulation)
}

// Option configures a Simulation.
type Option func(*Simulation)

// WithStreams records every node created from now on through opener.
func WithStreams(opener node.StreamOpener) Option {
	return func(s *Simulation) { s.streams = opener }
}

// WithObserver registers o for lifecycle callbacks.
func WithObserver(o Observer) Option {
	return func(s *Simulation) { s.observers = append(s.observers, o) }
}

// WithRand replaces the seeded random source.
func WithRand(rng *rand.Rand) Option {
	return func(s *Simulation) { s.rng = rng }
}

// Simulation owns the node population of one run and advances it epoch by
// epoch. It is not safe for concurrent use.
type Simulation struct {
	params node.Params
	rng    *rand.Rand
	seed   int64

	streams   node.StreamOpener
	observers []Observer

	nodes    map[node.ID]*node.Node
	epoch    uint64
	lifetime [node.NumCategories]int
	removed  int

	inner node.PairSet
	outer node.PairSet

	closed bool
}

// New validates cfg and populates the canvas with the configured number of
// on-canvas nodes.
func New(cfg *config.Config, opts ...Option) (*Simulation, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	seed := cfg.Simulation.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	s := &Simulation{
		params: node.NewParams(cfg),
		rng:    rand.New(rand.NewPCG(uint64(seed), uint64(seed)>>1^0x5851f42d4c957f2d)),
		seed:   seed,
		nodes:  make(map[node.ID]*node.Node, cfg.Nodes.InitialCount),
		inner:  node.PairSet{},
		outer:  node.PairSet{},
	}
	for _, opt := range opts {
		opt(s)
	}

	for i := 0; i < cfg.Nodes.InitialCount; i++ {
		if _, err := s.CreateNode(true); err != nil {
			_ = s.Close()
			return nil, err
		}
	}
	s.computeNeighbors()

	return s, nil
}

// Seed returns the seed the random source was built from.
func (s *Simulation) Seed() int64 { return s.seed }

// Params returns the node parameters in effect.
func (s *Simulation) Params() node.Params { return s.params }

// CreateNode adds a node. When recording is enabled the node's stream is
// opened first and a failure leaves the population unchanged.
func (s *Simulation) CreateNode(onCanvas bool) (*node.Node, error) {
	if s.closed {
		return nil, ErrClosed
	}

	n := node.New(s.params, s.rng, onCanvas)
	if s.streams != nil {
		stream, err := s.streams.Open(n.ID(), n.Category())
		if err != nil {
			return nil, fmt.Errorf("open stream for node %d: %w", n.ID(), err)
		}
		n.AttachStream(stream)
	}

	s.nodes[n.ID()] = n
	s.lifetime[n.Category()]++

	for _, o := range s.observers {
		o.NodeCreated(n)
	}
	return n, nil
}

// RemoveNode closes the node's stream and drops it from the population.
// Callers keep the population constant by creating a replacement.
func (s *Simulation) RemoveNode(id node.ID) error {
	n, ok := s.nodes[id]
	if !ok {
		return fmt.Errorf("node %d not found", id)
	}
	delete(s.nodes, id)
	s.removed++

	for _, o := range s.observers {
		o.NodeRemoved(n)
	}
	return n.Close()
}

// NextEpoch advances every live node by one step, replaces nodes that have
// left the canvas, then rebuilds the neighbor relations from the final
// positions.
func (s *Simulation) NextEpoch() error {
	if s.closed {
		return ErrClosed
	}
	s.epoch++

	for _, n := range s.Nodes() {
		if err := n.Update(); err != nil {
			return fmt.Errorf("epoch %d: %w", s.epoch, err)
		}
		n.TrackAppearance()
		if !n.Exited() {
			continue
		}
		// The replacement is created even when closing the old stream
		// fails, so the population stays constant on the error path.
		removeErr := s.RemoveNode(n.ID())
		if _, err := s.CreateNode(false); err != nil {
			return fmt.Errorf("epoch %d: %w", s.epoch, errors.Join(removeErr, err))
		}
		if removeErr != nil {
			return fmt.Errorf("epoch %d: %w", s.epoch, removeErr)
		}
	}

	s.computeNeighbors()

	for _, o := range s.observers {
		o.EpochAdvanced(s)
	}
	return nil
}

// computeNeighbors runs the pairwise radius tests over every ordered pair
// of live nodes and collects the normalized pairs.
func (s *Simulation) computeNeighbors() {
	nodes := s.Nodes()
	inner, outer := node.PairSet{}, node.PairSet{}

	for _, a := range nodes {
		var in, out []node.ID
		for _, b := range nodes {
			if a.ID() == b.ID() {
				continue
			}
			if s.params.Sensor.InInnerRadius(a.Position(), b.Position()) {
				in = append(in, b.ID())
			}
			if s.params.Sensor.InOuterRadius(a.Position(), b.Position()) {
				out = append(out, b.ID())
			}
		}
		a.SetNeighbors(in, out)
		inner.Add(a.InnerNeighborPairs()...)
		outer.Add(a.OuterNeighborPairs()...)
	}

	s.inner, s.outer = inner, outer
}

// Close releases every live node's stream. It is safe to call more than
// once; the first error encountered is returned.
func (s *Simulation) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true

	var errs []error
	for _, n := range s.Nodes() {
		if err := n.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Closed reports whether Close has been called.
func (s *Simulation) Closed() bool { return s.closed }

// Epoch returns the number of completed epochs.
func (s *Simulation) Epoch() uint64 { return s.epoch }

// Len returns the number of live nodes.
func (s *Simulation) Len() int { return len(s.nodes) }

// Nodes returns the live nodes ordered by ascending id.
func (s *Simulation) Nodes() []*node.Node {
	ids := slices.Sorted(maps.Keys(s.nodes))
	out := make([]*node.Node, 0, len(ids))
	for _, id := range ids {
		out = append(out, s.nodes[id])
	}
	return out
}

// Node looks up a live node by id.
func (s *Simulation) Node(id node.ID) (*node.Node, bool) {
	n, ok := s.nodes[id]
	return n, ok
}

// InnerPairs returns the unique pairs of nodes within R of each other.
func (s *Simulation) InnerPairs() []node.Pair { return s.inner.Sorted() }

// OuterPairs returns the unique pairs of nodes within 2R of each other.
func (s *Simulation) OuterPairs() []node.Pair { return s.outer.Sorted() }

// Lifetime returns how many nodes of category c were ever created.
func (s *Simulation) Lifetime(c node.Category) int {
	if !c.Valid() {
		return 0
	}
	return s.lifetime[c]
}

// LifetimeTotal returns how many nodes were ever created.
func (s *Simulation) LifetimeTotal() int {
	total := 0
	for _, n := range s.lifetime {
		total += n
	}
	return total
}

// Removed returns how many nodes have been removed.
func (s *Simulation) Removed() int { return s.removed }
