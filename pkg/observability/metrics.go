// Package observability exposes simulation state as Prometheus metrics.
package observability

import (
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/picogrid/v2v-simulations/pkg/node"
	"github.com/picogrid/v2v-simulations/pkg/simulation"
)

// SimulationCollector bundles the simulation metrics. It implements
// simulation.Observer so it can be attached with simulation.WithObserver.
type SimulationCollector struct {
	gatherer prometheus.Gatherer

	Epochs       prometheus.Counter
	LiveNodes    prometheus.Gauge
	NodesCreated *prometheus.CounterVec
	NodesRemoved *prometheus.CounterVec
	Pairs        *prometheus.GaugeVec
}

var _ simulation.Observer = (*SimulationCollector)(nil)

// NewSimulationCollector registers the simulation metrics against reg,
// defaulting to the global Prometheus registry when nil.
func NewSimulationCollector(reg prometheus.Registerer) (*SimulationCollector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	epochs, err := register(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "v2v_epochs_total",
		Help: "Number of completed simulation epochs.",
	}), "v2v_epochs_total")
	if err != nil {
		return nil, err
	}

	live, err := register(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "v2v_live_nodes",
		Help: "Current number of live nodes.",
	}), "v2v_live_nodes")
	if err != nil {
		return nil, err
	}

	created, err := register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "v2v_nodes_created_total",
		Help: "Nodes created, labeled by category.",
	}, []string{"category"}), "v2v_nodes_created_total")
	if err != nil {
		return nil, err
	}

	removed, err := register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "v2v_nodes_removed_total",
		Help: "Nodes removed after leaving the canvas, labeled by category.",
	}, []string{"category"}), "v2v_nodes_removed_total")
	if err != nil {
		return nil, err
	}

	pairs, err := register(reg, prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "v2v_neighbor_pairs",
		Help: "Unique neighbor pairs in the last epoch, labeled by ring (inner or outer).",
	}, []string{"ring"}), "v2v_neighbor_pairs")
	if err != nil {
		return nil, err
	}

	return &SimulationCollector{
		gatherer:     gatherer,
		Epochs:       epochs,
		LiveNodes:    live,
		NodesCreated: created,
		NodesRemoved: removed,
		Pairs:        pairs,
	}, nil
}

// NodeCreated counts a new node.
func (c *SimulationCollector) NodeCreated(n *node.Node) {
	if c == nil {
		return
	}
	c.NodesCreated.WithLabelValues(n.Category().String()).Inc()
	c.LiveNodes.Inc()
}

// NodeRemoved counts a removed node.
func (c *SimulationCollector) NodeRemoved(n *node.Node) {
	if c == nil {
		return
	}
	c.NodesRemoved.WithLabelValues(n.Category().String()).Inc()
	c.LiveNodes.Dec()
}

// EpochAdvanced refreshes the per-epoch gauges.
func (c *SimulationCollector) EpochAdvanced(s *simulation.Simulation) {
	if c == nil {
		return
	}
	c.Epochs.Inc()
	c.LiveNodes.Set(float64(s.Len()))
	c.Pairs.WithLabelValues("inner").Set(float64(len(s.InnerPairs())))
	c.Pairs.WithLabelValues("outer").Set(float64(len(s.OuterPairs())))
}

// Handler exposes a ready-to-use /metrics handler.
func (c *SimulationCollector) Handler() http.Handler {
	gatherer := c.gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

func register[T prometheus.Collector](reg prometheus.Registerer, c T, name string) (T, error) {
	if err := reg.Register(c); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(T); ok {
				return existing, nil
			}
			var zero T
			return zero, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		var zero T
		return zero, err
	}
	return c, nil
}
