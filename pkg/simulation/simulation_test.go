package simulation

import (
	"errors"
	"math/rand/v2"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/picogrid/v2v-simulations/pkg/config"
	"github.com/picogrid/v2v-simulations/pkg/geometry"
	"github.com/picogrid/v2v-simulations/pkg/node"
	"github.com/picogrid/v2v-simulations/pkg/recorder"
)

func seededConfig(seed int64) *config.Config {
	cfg := config.GetDefaultConfig()
	cfg.Simulation.Seed = seed
	return cfg
}

type countingObserver struct {
	created, removed, epochs int
}

func (o *countingObserver) NodeCreated(*node.Node)     { o.created++ }
func (o *countingObserver) NodeRemoved(*node.Node)     { o.removed++ }
func (o *countingObserver) EpochAdvanced(*Simulation) { o.epochs++ }

type failingOpener struct {
	after int
	calls int
}

func (f *failingOpener) Open(node.ID, node.Category) (node.Stream, error) {
	f.calls++
	if f.calls > f.after {
		return nil, errors.New("too many open files")
	}
	return nopStream{}, nil
}

type nopStream struct{}

// brokenCloseOpener hands out streams whose Close always fails.
type brokenCloseOpener struct{}

func (brokenCloseOpener) Open(node.ID, node.Category) (node.Stream, error) {
	return brokenCloseStream{}, nil
}

type brokenCloseStream struct{ nopStream }

func (brokenCloseStream) Close() error { return errors.New("disk full") }

func (nopStream) Write(node.Row) error { return nil }
func (nopStream) Close() error         { return nil }

func TestNewRejectsInvalidConfig(t *testing.T) {
	cfg := config.GetDefaultConfig()
	cfg.Distribution.Good = 10

	_, err := New(cfg)
	assert.ErrorIs(t, err, config.ErrInvalid)
}

func TestPopulationInvariant(t *testing.T) {
	for _, count := range []int{0, 1, 5, 20, 40} {
		cfg := seededConfig(7)
		cfg.Nodes.InitialCount = count

		sim, err := New(cfg)
		require.NoError(t, err)
		require.Equal(t, count, sim.Len())

		for i := 0; i < 150; i++ {
			require.NoError(t, sim.NextEpoch())
			require.Equal(t, count, sim.Len(), "population drifted at epoch %d", sim.Epoch())
		}
		assert.Equal(t, uint64(150), sim.Epoch())
		assert.Equal(t, count+sim.Removed(), sim.LifetimeTotal())
	}
}

func TestHistoriesBounded(t *testing.T) {
	sim, err := New(seededConfig(11))
	require.NoError(t, err)
	p := sim.Params()

	for i := 0; i < 100; i++ {
		require.NoError(t, sim.NextEpoch())
		for _, n := range sim.Nodes() {
			require.LessOrEqual(t, len(n.CoordHistory()), p.CoordHistory)
			require.LessOrEqual(t, len(n.BeaconHistory()), p.BeaconHistory)
		}
	}
}

func TestInnerPairsAreOuterPairs(t *testing.T) {
	cfg := seededConfig(13)
	cfg.Nodes.InitialCount = 40
	sim, err := New(cfg)
	require.NoError(t, err)

	for i := 0; i < 100; i++ {
		require.NoError(t, sim.NextEpoch())

		outer := node.PairSet{}
		outer.Add(sim.OuterPairs()...)
		for _, pair := range sim.InnerPairs() {
			require.True(t, outer.Contains(pair), "inner pair %s missing from outer set at epoch %d", pair, sim.Epoch())
		}
	}
}

func TestNeighborsMatchDistances(t *testing.T) {
	sim, err := New(seededConfig(17))
	require.NoError(t, err)
	require.NoError(t, sim.NextEpoch())

	sensor := sim.Params().Sensor
	for _, n := range sim.Nodes() {
		assert.NotContains(t, n.InnerNeighbors(), n.ID(), "node is its own neighbor")
		assert.NotContains(t, n.OuterNeighbors(), n.ID(), "node is its own neighbor")

		for _, id := range n.OuterNeighbors() {
			other, ok := sim.Node(id)
			require.True(t, ok)
			assert.LessOrEqual(t, geometry.Distance(n.Position(), other.Position()), 2*sensor.Radius)
		}
	}
}

func TestNoDuplicatePairsForMutuallyAdjacentNodes(t *testing.T) {
	cfg := seededConfig(19)
	cfg.Nodes.InitialCount = 0
	cfg.Nodes.Speed = config.SpeedRange{Min: 0, Max: 0}
	// Every point of a 50x50 canvas is within R of every other
	cfg.Canvas = config.CanvasConfig{Width: 50, Height: 50}
	clustered, err := New(cfg)
	require.NoError(t, err)

	var ids []node.ID
	for i := 0; i < 3; i++ {
		n, err := clustered.CreateNode(true)
		require.NoError(t, err)
		ids = append(ids, n.ID())
	}
	require.NoError(t, clustered.NextEpoch())

	want := []node.Pair{
		node.NewPair(ids[0], ids[1]),
		node.NewPair(ids[0], ids[2]),
		node.NewPair(ids[1], ids[2]),
	}
	if diff := cmp.Diff(want, clustered.InnerPairs()); diff != "" {
		t.Errorf("inner pairs mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(want, clustered.OuterPairs()); diff != "" {
		t.Errorf("outer pairs mismatch (-want +got):\n%s", diff)
	}
	for _, n := range clustered.Nodes() {
		assert.Len(t, n.InnerNeighbors(), 2)
	}
}

func TestOffCanvasNodeNotRemovedBeforeAppearing(t *testing.T) {
	cfg := seededConfig(23)
	cfg.Nodes.InitialCount = 0
	sim, err := New(cfg)
	require.NoError(t, err)

	n, err := sim.CreateNode(false)
	require.NoError(t, err)
	require.Equal(t, node.Pending, n.Appearance())

	for n.Appearance() == node.Pending {
		require.NoError(t, sim.NextEpoch())
		_, alive := sim.Node(n.ID())
		require.True(t, alive, "node %d removed before it appeared", n.ID())
	}
	assert.Zero(t, sim.Removed())
}

func TestReplacementSpawnsOffCanvas(t *testing.T) {
	cfg := seededConfig(29)
	cfg.Nodes.InitialCount = 1
	sim, err := New(cfg)
	require.NoError(t, err)

	first := sim.Nodes()[0]
	for {
		require.NoError(t, sim.NextEpoch())
		if _, alive := sim.Node(first.ID()); !alive {
			break
		}
	}

	require.Equal(t, 1, sim.Len())
	replacement := sim.Nodes()[0]
	assert.Greater(t, replacement.ID(), first.ID())
	assert.Equal(t, node.Pending, replacement.Appearance())
	assert.True(t, sim.Params().Bounds.IsOut(replacement.Position()))
	assert.Equal(t, 1, sim.Removed())
}

func TestCategoryProportions(t *testing.T) {
	cfg := seededConfig(31)
	cfg.Nodes.InitialCount = 0
	sim, err := New(cfg)
	require.NoError(t, err)

	for i := 0; i < 20000; i++ {
		_, err := sim.CreateNode(true)
		require.NoError(t, err)
	}

	total := float64(sim.LifetimeTotal())
	assert.InDelta(t, 0.60, float64(sim.Lifetime(node.Good))/total, 0.02)
	assert.InDelta(t, 0.20, float64(sim.Lifetime(node.Faulty))/total, 0.02)
	assert.InDelta(t, 0.20, float64(sim.Lifetime(node.Malicious))/total, 0.02)
	assert.Zero(t, sim.Lifetime(node.Category(9)))
}

func TestSameSeedSameRun(t *testing.T) {
	run := func() []geometry.Point {
		sim, err := New(seededConfig(37))
		require.NoError(t, err)
		for i := 0; i < 25; i++ {
			require.NoError(t, sim.NextEpoch())
		}
		var out []geometry.Point
		for _, n := range sim.Nodes() {
			out = append(out, n.Position())
		}
		return out
	}

	// IDs differ between runs but positions are driven by the seed only
	assert.Equal(t, run(), run())
}

func TestWithRand(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))
	sim, err := New(seededConfig(41), WithRand(rng))
	require.NoError(t, err)
	assert.Equal(t, 20, sim.Len())
}

func TestCloseIsIdempotent(t *testing.T) {
	sim, err := New(seededConfig(43))
	require.NoError(t, err)

	require.NoError(t, sim.Close())
	require.NoError(t, sim.Close())
	assert.True(t, sim.Closed())

	assert.ErrorIs(t, sim.NextEpoch(), ErrClosed)
	_, err = sim.CreateNode(true)
	assert.ErrorIs(t, err, ErrClosed)
}

func TestStreamOpenErrorPropagates(t *testing.T) {
	_, err := New(seededConfig(47), WithStreams(&failingOpener{after: 5}))
	assert.ErrorContains(t, err, "too many open files")

	cfg := seededConfig(47)
	cfg.Nodes.InitialCount = 2
	opener := &failingOpener{after: 2}
	sim, err := New(cfg, WithStreams(opener))
	require.NoError(t, err)

	// The first replacement needs a third stream
	for err == nil {
		err = sim.NextEpoch()
	}
	assert.ErrorContains(t, err, "too many open files")
}

func TestCloseErrorKeepsPopulation(t *testing.T) {
	cfg := seededConfig(53)
	cfg.Nodes.InitialCount = 3
	sim, err := New(cfg, WithStreams(brokenCloseOpener{}))
	require.NoError(t, err)

	for i := 0; i < 5000 && err == nil; i++ {
		err = sim.NextEpoch()
	}
	require.ErrorContains(t, err, "disk full")

	assert.Equal(t, 3, sim.Len())
	assert.Equal(t, 1, sim.Removed())
	assert.Equal(t, 4, sim.LifetimeTotal())
}

func TestObserverCallbacks(t *testing.T) {
	obs := &countingObserver{}
	sim, err := New(seededConfig(53), WithObserver(obs))
	require.NoError(t, err)
	assert.Equal(t, 20, obs.created)

	for i := 0; i < 60; i++ {
		require.NoError(t, sim.NextEpoch())
	}
	assert.Equal(t, 60, obs.epochs)
	assert.Equal(t, sim.Removed(), obs.removed)
	assert.Equal(t, sim.LifetimeTotal(), obs.created)
}

func TestGatherEndToEnd(t *testing.T) {
	dir := t.TempDir()
	sink, err := recorder.NewSink(dir)
	require.NoError(t, err)

	cfg := seededConfig(2024)
	cfg.Nodes.InitialCount = 20
	sim, err := New(cfg, WithStreams(sink))
	require.NoError(t, err)

	for i := 0; i < 100; i++ {
		require.NoError(t, sim.NextEpoch())
	}
	require.NoError(t, sim.Close())

	created := sim.LifetimeTotal()
	assert.GreaterOrEqual(t, created, 20)
	assert.Equal(t, 20+sim.Removed(), created)
	assert.Equal(t, created, sink.Opened())
	assert.Zero(t, sink.OpenStreams(), "every stream must be closed")

	files := 0
	for _, c := range node.Categories() {
		entries, err := filepath.Glob(filepath.Join(recorder.CategoryDir(dir, c), "*.csv"))
		require.NoError(t, err)
		assert.Len(t, entries, sim.Lifetime(c))
		files += len(entries)
	}
	assert.Equal(t, created, files)
}
