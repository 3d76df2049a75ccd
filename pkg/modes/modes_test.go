package modes

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/picogrid/v2v-simulations/pkg/config"
	"github.com/picogrid/v2v-simulations/pkg/logger"
	"github.com/picogrid/v2v-simulations/pkg/node"
	"github.com/picogrid/v2v-simulations/pkg/recorder"
)

// quiet captures console output for the duration of the test.
func quiet(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	logger.SetOutput(&buf)
	logger.SetNoColor(true)
	t.Cleanup(func() { logger.SetOutput(os.Stdout) })
	return &buf
}

// parkedConfig returns a config whose nodes never move, so every node
// records one row per epoch.
func parkedConfig(t *testing.T, nodes, epochs int) *config.Config {
	t.Helper()
	cfg := config.GetDefaultConfig()
	dir := t.TempDir()
	cfg.Simulation.Seed = 7
	cfg.Nodes.InitialCount = nodes
	cfg.Nodes.Speed = config.SpeedRange{Min: 0, Max: 0}
	cfg.Gather.Epochs = epochs
	cfg.Gather.RawDir = filepath.Join(dir, "raw")
	cfg.Extract.ProcessedDir = filepath.Join(dir, "processed")
	cfg.Watch.Epochs = epochs
	cfg.Watch.EpochDelay = 0
	return cfg
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register("b", NewWatch))
	require.NoError(t, r.Register("a", NewGather))
	assert.Error(t, r.Register("a", NewExtract))

	assert.Equal(t, []string{"a", "b"}, r.List())

	m, err := r.Get("a")
	require.NoError(t, err)
	assert.Equal(t, GatherName, m.Name())

	_, err = r.Get("missing")
	assert.Error(t, err)
}

func TestDefaultRegistry(t *testing.T) {
	assert.Equal(t, []string{ExtractName, GatherName, WatchName}, DefaultRegistry.List())

	for _, name := range DefaultRegistry.List() {
		m, err := DefaultRegistry.Get(name)
		require.NoError(t, err)
		assert.Equal(t, name, m.Name())
		assert.NotEmpty(t, m.Description())
		assert.NotEmpty(t, m.Parameters(config.GetDefaultConfig()))
	}
}

func TestConfigureRejectsInvalidOverride(t *testing.T) {
	g := NewGather()
	err := g.Configure(config.GetDefaultConfig(), map[string]interface{}{"sample_size": 2})
	assert.ErrorIs(t, err, config.ErrInvalid)
}

func TestConfigureDoesNotModifyInput(t *testing.T) {
	cfg := config.GetDefaultConfig()
	g := NewGather()
	require.NoError(t, g.Configure(cfg, map[string]interface{}{"num_nodes": 3, "epochs": 5}))
	assert.Equal(t, 20, cfg.Nodes.InitialCount)
	assert.Equal(t, 1000, cfg.Gather.Epochs)
}

func TestRunWithoutConfigure(t *testing.T) {
	for _, m := range []Mode{NewGather(), NewExtract(), NewWatch()} {
		assert.Error(t, m.Run(context.Background()), m.Name())
	}
}

func TestGather(t *testing.T) {
	quiet(t)
	cfg := parkedConfig(t, 5, 12)

	g := NewGather().(*Gather)
	require.NoError(t, g.Configure(cfg, nil))
	require.NoError(t, g.Run(context.Background()))

	s, err := recorder.ReadSummary(cfg.Gather.RawDir)
	require.NoError(t, err)
	assert.Equal(t, uint64(12), s.Epochs)
	assert.Equal(t, int64(7), s.Seed)
	assert.Equal(t, g.Summary().RunID, s.RunID)

	total := 0
	for _, c := range node.Categories() {
		matches, err := filepath.Glob(filepath.Join(recorder.CategoryDir(cfg.Gather.RawDir, c), "*.csv"))
		require.NoError(t, err)
		assert.Len(t, matches, s.Lifetime[c], c.String())
		total += s.Lifetime[c]
	}
	assert.Equal(t, 5, total)
}

func TestGatherClearsPreviousRun(t *testing.T) {
	quiet(t)
	cfg := parkedConfig(t, 3, 2)
	stale := filepath.Join(recorder.CategoryDir(cfg.Gather.RawDir, node.Faulty), "Node_999999.csv")
	require.NoError(t, os.MkdirAll(filepath.Dir(stale), 0755))
	require.NoError(t, os.WriteFile(stale, []byte("x,y,bsm_x,bsm_y\n"), 0644))

	g := NewGather()
	require.NoError(t, g.Configure(cfg, nil))
	require.NoError(t, g.Run(context.Background()))

	assert.NoFileExists(t, stale)
}

func TestGatherDeclined(t *testing.T) {
	quiet(t)
	cfg := parkedConfig(t, 3, 2)

	g := NewGather().(*Gather)
	g.Confirm = func(string) (bool, error) { return false, nil }
	require.NoError(t, g.Configure(cfg, nil))

	assert.ErrorIs(t, g.Run(context.Background()), ErrAborted)
	assert.NoDirExists(t, cfg.Gather.RawDir)
	assert.Nil(t, g.Summary())
}

func TestGatherConfirmError(t *testing.T) {
	quiet(t)
	boom := errors.New("no tty")

	g := NewGather().(*Gather)
	g.Confirm = func(string) (bool, error) { return false, boom }
	require.NoError(t, g.Configure(parkedConfig(t, 1, 1), nil))

	assert.ErrorIs(t, g.Run(context.Background()), boom)
}

func TestGatherStoppedEarly(t *testing.T) {
	quiet(t)
	cfg := parkedConfig(t, 3, 50)

	g := NewGather().(*Gather)
	require.NoError(t, g.Configure(cfg, nil))
	require.NoError(t, g.Stop())
	require.NoError(t, g.Run(context.Background()))

	assert.Equal(t, uint64(0), g.Summary().Epochs)
}

func TestExtractAfterGather(t *testing.T) {
	quiet(t)
	cfg := parkedConfig(t, 4, 12)
	cfg.Features.SampleSize = 5
	cfg.Extract.Workers = 2

	g := NewGather()
	require.NoError(t, g.Configure(cfg, nil))
	require.NoError(t, g.Run(context.Background()))

	e := NewExtract().(*Extract)
	require.NoError(t, e.Configure(cfg, nil))
	require.NoError(t, e.Run(context.Background()))

	// 12 rows per node give two windows of five
	assert.Equal(t, ExtractStats{Files: 4, Written: 4, Vectors: 8}, e.Stats())

	matches, err := filepath.Glob(filepath.Join(cfg.Extract.ProcessedDir, "Node_*.csv"))
	require.NoError(t, err)
	assert.Len(t, matches, 4)
}

func TestExtractStoppedEarly(t *testing.T) {
	out := quiet(t)
	cfg := parkedConfig(t, 4, 6)

	g := NewGather()
	require.NoError(t, g.Configure(cfg, nil))
	require.NoError(t, g.Run(context.Background()))
	out.Reset()

	e := NewExtract().(*Extract)
	require.NoError(t, e.Configure(cfg, nil))
	require.NoError(t, e.Stop())
	require.NoError(t, e.Run(context.Background()))

	assert.Contains(t, out.String(), "Stopped after 0 of 4 files")
	assert.NotContains(t, out.String(), "Wrote")
	assert.Equal(t, 0, e.Stats().Written)
}

func TestExtractListsRawFilesAtDebug(t *testing.T) {
	out := quiet(t)
	logger.SetLevel(logger.DebugLevel)
	t.Cleanup(func() { logger.SetLevel(logger.InfoLevel) })

	cfg := parkedConfig(t, 2, 3)
	g := NewGather()
	require.NoError(t, g.Configure(cfg, nil))
	require.NoError(t, g.Run(context.Background()))
	out.Reset()

	e := NewExtract()
	require.NoError(t, e.Configure(cfg, nil))
	require.NoError(t, e.Run(context.Background()))

	assert.Contains(t, out.String(), "Raw files in "+cfg.Gather.RawDir)
	assert.Contains(t, out.String(), logger.IconDot)
}

func TestExtractWithoutRawData(t *testing.T) {
	quiet(t)
	cfg := parkedConfig(t, 1, 1)

	e := NewExtract().(*Extract)
	require.NoError(t, e.Configure(cfg, nil))
	require.NoError(t, e.Run(context.Background()))

	assert.Equal(t, ExtractStats{}, e.Stats())
	assert.DirExists(t, cfg.Extract.ProcessedDir)
}

func TestExtractReportsBadFile(t *testing.T) {
	quiet(t)
	cfg := parkedConfig(t, 1, 1)
	bad := filepath.Join(recorder.CategoryDir(cfg.Gather.RawDir, node.Good), "Node_1.csv")
	require.NoError(t, os.MkdirAll(filepath.Dir(bad), 0755))
	require.NoError(t, os.WriteFile(bad, []byte("x,y,bsm_x,bsm_y\n1,2,three,4\n"), 0644))

	e := NewExtract()
	require.NoError(t, e.Configure(cfg, nil))
	assert.ErrorContains(t, e.Run(context.Background()), "Node_1.csv")
}

func TestWatchRunsConfiguredEpochs(t *testing.T) {
	out := quiet(t)

	w := NewWatch().(*Watch)
	require.NoError(t, w.Configure(parkedConfig(t, 3, 3), nil))
	require.NoError(t, w.Run(context.Background()))

	assert.Equal(t, uint64(3), w.Epochs())
	assert.Contains(t, out.String(), "Epoch 3: 3 nodes")
}

func TestWatchStopsOnCancel(t *testing.T) {
	quiet(t)
	cfg := parkedConfig(t, 2, 0)
	cfg.Watch.EpochDelay = time.Hour

	w := NewWatch().(*Watch)
	require.NoError(t, w.Configure(cfg, nil))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("watch did not stop after cancel")
	}
	assert.Equal(t, uint64(0), w.Epochs())
}

func TestWatchWithMetrics(t *testing.T) {
	out := quiet(t)
	cfg := parkedConfig(t, 2, 2)
	cfg.Watch.MetricsAddr = "127.0.0.1:0"

	w := NewWatch().(*Watch)
	require.NoError(t, w.Configure(cfg, nil))
	require.NoError(t, w.Run(context.Background()))

	assert.Contains(t, out.String(), "/metrics")
	assert.Equal(t, uint64(2), w.Epochs())
}
