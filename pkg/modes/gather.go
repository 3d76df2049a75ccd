package modes

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"sync/atomic"

	"github.com/google/uuid"
	"golang.org/x/term"

	"github.com/picogrid/v2v-simulations/pkg/config"
	"github.com/picogrid/v2v-simulations/pkg/logger"
	"github.com/picogrid/v2v-simulations/pkg/node"
	"github.com/picogrid/v2v-simulations/pkg/recorder"
	"github.com/picogrid/v2v-simulations/pkg/simulation"
	"github.com/picogrid/v2v-simulations/pkg/utils"
)

// GatherName is the registry name of the data gathering mode.
const GatherName = "gather"

// progressEvery is how often plain-text progress is logged.
const progressEvery = 100

// Gather runs the simulation for a fixed number of epochs while recording
// every node's true and broadcast positions, then writes a run summary.
type Gather struct {
	cfg *config.Config

	// Confirm is asked before old raw data is deleted. Nil means yes.
	Confirm func(message string) (bool, error)

	// Observers are attached to the simulation.
	Observers []simulation.Observer

	stopped atomic.Bool
	summary *recorder.Summary
}

// NewGather creates the gather mode
func NewGather() Mode {
	return &Gather{}
}

func init() {
	registerDefault(GatherName, NewGather)
}

func (g *Gather) Name() string { return GatherName }

func (g *Gather) Description() string {
	return "Run the simulation and record per-node raw data for training"
}

func (g *Gather) Parameters(cfg *config.Config) []utils.Parameter {
	return []utils.Parameter{
		{Name: "epochs", Type: "integer", Description: "Number of epochs to simulate", Default: cfg.Gather.Epochs, Min: 1},
		{Name: "num_nodes", Type: "integer", Description: "Number of nodes on the canvas", Default: cfg.Nodes.InitialCount, Min: 1},
		{Name: "seed", Type: "integer", Description: "Random seed (0 picks one from the clock)", Default: int(cfg.Simulation.Seed)},
		{Name: "raw_dir", Type: "string", Description: "Directory for raw node data", Default: cfg.Gather.RawDir, Required: true},
	}
}

func (g *Gather) Configure(cfg *config.Config, params map[string]interface{}) error {
	c, err := configure(cfg, params)
	if err != nil {
		return err
	}
	g.cfg = c
	return nil
}

// Summary returns the summary of the last completed run.
func (g *Gather) Summary() *recorder.Summary { return g.summary }

func (g *Gather) Stop() error {
	g.stopped.Store(true)
	return nil
}

func (g *Gather) Run(ctx context.Context) error {
	if g.cfg == nil {
		return fmt.Errorf("gather mode is not configured")
	}
	cfg := g.cfg
	runID := uuid.New()
	log := logger.WithPrefix(GatherName).WithField("run", runID.String()[:8])

	if g.Confirm != nil {
		ok, err := g.Confirm(fmt.Sprintf("Delete existing raw data in %s?", cfg.Gather.RawDir))
		if err != nil {
			return err
		}
		if !ok {
			return ErrAborted
		}
	}

	sink, err := recorder.NewSink(cfg.Gather.RawDir)
	if err != nil {
		return err
	}
	removed, err := recorder.ClearRaw(cfg.Gather.RawDir)
	if err != nil {
		return fmt.Errorf("failed to clear old data: %w", err)
	}
	log.Infof("Cleared %d old raw files", removed)

	opts := []simulation.Option{simulation.WithStreams(sink)}
	for _, o := range g.Observers {
		opts = append(opts, simulation.WithObserver(o))
	}
	sim, err := simulation.New(cfg, opts...)
	if err != nil {
		return err
	}
	defer sim.Close()

	log.Infof("Simulating %d nodes for %d epochs (seed %d)", cfg.Nodes.InitialCount, cfg.Gather.Epochs, sim.Seed())

	var bar *logger.ProgressBar
	if term.IsTerminal(int(os.Stdout.Fd())) {
		bar = logger.NewProgressBar(cfg.Gather.Epochs, "Gathering")
	}

	for i := 0; i < cfg.Gather.Epochs; i++ {
		if ctx.Err() != nil || g.stopped.Load() {
			log.Warnf("Stopped after %d of %d epochs", sim.Epoch(), cfg.Gather.Epochs)
			break
		}

		if bar == nil && sim.Epoch()%progressEvery == 0 {
			log.Infof("epoch %d...", sim.Epoch())
		}

		if err := sim.NextEpoch(); err != nil {
			return err
		}

		if bar != nil {
			bar.Update(int(sim.Epoch()))
		}
	}
	if bar != nil {
		bar.Finish()
	}

	if err := sim.Close(); err != nil {
		return fmt.Errorf("failed to close node files: %w", err)
	}

	summary := recorder.Summary{
		RunID:  runID,
		Seed:   sim.Seed(),
		Epochs: sim.Epoch(),
	}
	for _, c := range node.Categories() {
		summary.Lifetime[c] = sim.Lifetime(c)
	}
	if err := recorder.WriteSummary(cfg.Gather.RawDir, summary); err != nil {
		return err
	}
	g.summary = &summary

	table := logger.NewTable("CATEGORY", "NODES", "SHARE")
	total := sim.LifetimeTotal()
	for _, c := range node.Categories() {
		share := 0.0
		if total > 0 {
			share = 100 * float64(summary.Lifetime[c]) / float64(total)
		}
		table.AddRow(c.Title(), strconv.Itoa(summary.Lifetime[c]), fmt.Sprintf("%.1f%%", share))
	}
	table.AddRow("Total", strconv.Itoa(total), "")
	table.Print()

	log.Infof("Epoch %d, %d nodes created, %d files written to %s", sim.Epoch(), total, sink.Opened(), cfg.Gather.RawDir)
	return nil
}
