package modes

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/picogrid/v2v-simulations/pkg/config"
	"github.com/picogrid/v2v-simulations/pkg/logger"
	"github.com/picogrid/v2v-simulations/pkg/observability"
	"github.com/picogrid/v2v-simulations/pkg/simulation"
	"github.com/picogrid/v2v-simulations/pkg/utils"
)

// WatchName is the registry name of the live console mode.
const WatchName = "watch"

// Watch runs the simulation at a fixed pace and prints every node each
// epoch, coloured by category. Nothing is recorded to disk. When a metrics
// address is configured the simulation is also exported to Prometheus.
type Watch struct {
	cfg     *config.Config
	stopped atomic.Bool
	epochs  atomic.Uint64
}

// NewWatch creates the watch mode
func NewWatch() Mode {
	return &Watch{}
}

func init() {
	registerDefault(WatchName, NewWatch)
}

func (w *Watch) Name() string { return WatchName }

func (w *Watch) Description() string {
	return "Watch the simulation live in the console"
}

func (w *Watch) Parameters(cfg *config.Config) []utils.Parameter {
	return []utils.Parameter{
		{Name: "num_nodes", Type: "integer", Description: "Number of nodes on the canvas", Default: cfg.Nodes.InitialCount, Min: 1},
		{Name: "epochs", Type: "integer", Description: "Epochs to run (0 runs until interrupted)", Default: cfg.Watch.Epochs, Min: 0},
		{Name: "epoch_delay", Type: "duration", Description: "Pause between epochs", Default: cfg.Watch.EpochDelay},
		{Name: "metrics_addr", Type: "string", Description: "Prometheus listen address (empty disables)", Default: cfg.Watch.MetricsAddr},
	}
}

func (w *Watch) Configure(cfg *config.Config, params map[string]interface{}) error {
	c, err := configure(cfg, params)
	if err != nil {
		return err
	}
	w.cfg = c
	return nil
}

// Epochs returns the number of epochs completed by the current run.
func (w *Watch) Epochs() uint64 { return w.epochs.Load() }

func (w *Watch) Stop() error {
	w.stopped.Store(true)
	return nil
}

func (w *Watch) Run(ctx context.Context) error {
	if w.cfg == nil {
		return fmt.Errorf("watch mode is not configured")
	}
	cfg := w.cfg
	log := logger.WithPrefix(WatchName)

	var opts []simulation.Option
	if cfg.Watch.MetricsAddr != "" {
		collector, err := observability.NewSimulationCollector(prometheus.NewRegistry())
		if err != nil {
			return err
		}
		stop, err := serveMetrics(cfg.Watch.MetricsAddr, collector.Handler(), log)
		if err != nil {
			return err
		}
		defer stop()
		opts = append(opts, simulation.WithObserver(collector))
	}

	sim, err := simulation.New(cfg, opts...)
	if err != nil {
		return err
	}
	defer sim.Close()

	log.Infof("Watching %d nodes (seed %d)", cfg.Nodes.InitialCount, sim.Seed())
	printEpoch(sim)

	for cfg.Watch.Epochs == 0 || int(sim.Epoch()) < cfg.Watch.Epochs {
		if w.stopped.Load() {
			break
		}
		if cfg.Watch.EpochDelay > 0 {
			select {
			case <-ctx.Done():
				return sim.Close()
			case <-time.After(cfg.Watch.EpochDelay):
			}
		} else if ctx.Err() != nil {
			break
		}

		if err := sim.NextEpoch(); err != nil {
			return err
		}
		w.epochs.Store(sim.Epoch())
		printEpoch(sim)
	}

	log.Infof("Stopped at epoch %d", sim.Epoch())
	return sim.Close()
}

// printEpoch writes one line per live node.
func printEpoch(sim *simulation.Simulation) {
	logger.LogSubSection(fmt.Sprintf("Epoch %d: %d nodes, %d inner pairs, %d outer pairs",
		sim.Epoch(), sim.Len(), len(sim.InnerPairs()), len(sim.OuterPairs())))

	for _, n := range sim.Nodes() {
		pos := n.Position()
		beacon := "-"
		if b, ok := n.Beacon(); ok {
			beacon = fmt.Sprintf("(%.1f, %.1f)", b.X, b.Y)
		}
		logger.LogColored(n.Category().Color(), "  #%-5d %-9s %-5s (%.1f, %.1f) bsm=%s inner=%d outer=%d",
			n.ID(), n.Category(), n.Direction(), pos.X, pos.Y, beacon,
			len(n.InnerNeighbors()), len(n.OuterNeighbors()))
	}
}

// serveMetrics starts an HTTP server exposing h at /metrics and returns a
// function that shuts it down.
func serveMetrics(addr string, h http.Handler, log logger.Logger) (func(), error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", h)
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Errorf("Metrics server failed: %v", err)
		}
	}()
	log.Infof("Serving metrics on http://%s/metrics", ln.Addr())

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			log.Warnf("Failed to stop metrics server: %v", err)
		}
	}, nil
}
