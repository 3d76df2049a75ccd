package observability

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/picogrid/v2v-simulations/pkg/config"
	"github.com/picogrid/v2v-simulations/pkg/node"
	"github.com/picogrid/v2v-simulations/pkg/simulation"
)

func newTestSimulation(t *testing.T, collector *SimulationCollector) *simulation.Simulation {
	t.Helper()
	cfg := config.GetDefaultConfig()
	cfg.Simulation.Seed = 5
	sim, err := simulation.New(cfg, simulation.WithObserver(collector))
	if err != nil {
		t.Fatalf("simulation.New: %v", err)
	}
	return sim
}

func TestCollectorTracksSimulation(t *testing.T) {
	reg := prometheus.NewRegistry()
	collector, err := NewSimulationCollector(reg)
	if err != nil {
		t.Fatalf("NewSimulationCollector: %v", err)
	}

	sim := newTestSimulation(t, collector)
	if got := testutil.ToFloat64(collector.LiveNodes); got != 20 {
		t.Fatalf("v2v_live_nodes after start = %v, want 20", got)
	}

	for i := 0; i < 80; i++ {
		if err := sim.NextEpoch(); err != nil {
			t.Fatalf("NextEpoch: %v", err)
		}
	}

	if got := testutil.ToFloat64(collector.Epochs); got != 80 {
		t.Fatalf("v2v_epochs_total = %v, want 80", got)
	}
	if got := testutil.ToFloat64(collector.LiveNodes); got != float64(sim.Len()) {
		t.Fatalf("v2v_live_nodes = %v, want %d", got, sim.Len())
	}

	var created, removed float64
	for _, c := range node.Categories() {
		got := testutil.ToFloat64(collector.NodesCreated.WithLabelValues(c.String()))
		if got != float64(sim.Lifetime(c)) {
			t.Fatalf("v2v_nodes_created_total{category=%q} = %v, want %d", c, got, sim.Lifetime(c))
		}
		created += got
		removed += testutil.ToFloat64(collector.NodesRemoved.WithLabelValues(c.String()))
	}
	if created != float64(sim.LifetimeTotal()) {
		t.Fatalf("created total = %v, want %d", created, sim.LifetimeTotal())
	}
	if removed != float64(sim.Removed()) {
		t.Fatalf("removed total = %v, want %d", removed, sim.Removed())
	}

	if got := testutil.ToFloat64(collector.Pairs.WithLabelValues("outer")); got != float64(len(sim.OuterPairs())) {
		t.Fatalf("v2v_neighbor_pairs{ring=outer} = %v, want %d", got, len(sim.OuterPairs()))
	}
}

func TestCollectorReusesRegisteredMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	first, err := NewSimulationCollector(reg)
	if err != nil {
		t.Fatalf("NewSimulationCollector: %v", err)
	}
	second, err := NewSimulationCollector(reg)
	if err != nil {
		t.Fatalf("second NewSimulationCollector: %v", err)
	}

	first.Epochs.Inc()
	if got := testutil.ToFloat64(second.Epochs); got != 1 {
		t.Fatalf("second collector should share v2v_epochs_total, got %v", got)
	}
}

func TestNilCollectorIsSafe(t *testing.T) {
	var c *SimulationCollector
	c.NodeCreated(nil)
	c.NodeRemoved(nil)
	c.EpochAdvanced(nil)
}

func TestMetricsHandler(t *testing.T) {
	reg := prometheus.NewRegistry()
	collector, err := NewSimulationCollector(reg)
	if err != nil {
		t.Fatalf("NewSimulationCollector: %v", err)
	}
	sim := newTestSimulation(t, collector)
	if err := sim.NextEpoch(); err != nil {
		t.Fatalf("NextEpoch: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rr := httptest.NewRecorder()
	collector.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("/metrics status = %d, want 200", rr.Code)
	}
	body := rr.Body.String()
	for _, metric := range []string{
		"v2v_epochs_total",
		"v2v_live_nodes",
		"v2v_nodes_created_total",
		"v2v_neighbor_pairs",
	} {
		if !strings.Contains(body, metric) {
			t.Fatalf("expected %q in /metrics output", metric)
		}
	}
}
