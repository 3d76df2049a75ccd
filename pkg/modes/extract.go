package modes

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"

	"golang.org/x/sync/errgroup"
	"golang.org/x/term"

	"github.com/picogrid/v2v-simulations/pkg/config"
	"github.com/picogrid/v2v-simulations/pkg/features"
	"github.com/picogrid/v2v-simulations/pkg/logger"
	"github.com/picogrid/v2v-simulations/pkg/recorder"
	"github.com/picogrid/v2v-simulations/pkg/utils"
)

// ExtractName is the registry name of the feature extraction mode.
const ExtractName = "extract"

// ExtractStats describes a finished extraction.
type ExtractStats struct {
	Files   int // raw files found
	Written int // processed files written
	Vectors int // feature rows written
}

// Extract turns every raw node file into a processed feature file.
// Files are independent, so they are processed by a bounded worker pool.
type Extract struct {
	cfg     *config.Config
	stopped atomic.Bool
	stats   ExtractStats
}

// NewExtract creates the extract mode
func NewExtract() Mode {
	return &Extract{}
}

func init() {
	registerDefault(ExtractName, NewExtract)
}

func (e *Extract) Name() string { return ExtractName }

func (e *Extract) Description() string {
	return "Extract windowed feature vectors from recorded raw data"
}

func (e *Extract) Parameters(cfg *config.Config) []utils.Parameter {
	return []utils.Parameter{
		{Name: "sample_size", Type: "integer", Description: "Rows per feature window", Default: cfg.Features.SampleSize, Min: config.MinSampleSize},
		{Name: "workers", Type: "integer", Description: "Files processed in parallel", Default: cfg.Extract.Workers, Min: 1},
		{Name: "raw_dir", Type: "string", Description: "Directory with raw node data", Default: cfg.Gather.RawDir, Required: true},
		{Name: "processed_dir", Type: "string", Description: "Directory for feature files", Default: cfg.Extract.ProcessedDir, Required: true},
	}
}

func (e *Extract) Configure(cfg *config.Config, params map[string]interface{}) error {
	c, err := configure(cfg, params)
	if err != nil {
		return err
	}
	e.cfg = c
	return nil
}

// Stats returns the counts of the last run.
func (e *Extract) Stats() ExtractStats { return e.stats }

func (e *Extract) Stop() error {
	e.stopped.Store(true)
	return nil
}

func (e *Extract) Run(ctx context.Context) error {
	if e.cfg == nil {
		return fmt.Errorf("extract mode is not configured")
	}
	cfg := e.cfg
	log := logger.WithPrefix(ExtractName)

	if err := os.MkdirAll(cfg.Extract.ProcessedDir, 0755); err != nil {
		return fmt.Errorf("failed to create processed directory: %w", err)
	}
	logger.Progressf("Clearing old features in %s", cfg.Extract.ProcessedDir)
	cleared, err := recorder.ClearProcessed(cfg.Extract.ProcessedDir)
	if err != nil {
		return fmt.Errorf("failed to clear old features: %w", err)
	}
	log.Debugf("Cleared %d old feature files", cleared)

	files, err := utils.DiscoverRawFiles(cfg.Gather.RawDir)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		log.Warnf("No raw data found in %s", cfg.Gather.RawDir)
		e.stats = ExtractStats{}
		return nil
	}
	if logger.DebugEnabled() {
		names := make([]string, len(files))
		for i, f := range files {
			names[i] = f.Category.String() + "/" + f.Name
		}
		logger.LogList(fmt.Sprintf("%s Raw files in %s:", logger.IconFolder, cfg.Gather.RawDir), names)
	}
	log.Infof("Extracting features from %d files with %d workers", len(files), cfg.Extract.Workers)

	var done, written, vectors atomic.Int64
	process := func(spin *logger.Spinner) error {
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(cfg.Extract.Workers)

		for _, f := range files {
			if gctx.Err() != nil || e.stopped.Load() {
				break
			}
			g.Go(func() error {
				dst := filepath.Join(cfg.Extract.ProcessedDir, f.Name)
				n, err := features.ExtractFile(f.Path, dst, cfg.Features.SampleSize, f.Category)
				if err != nil {
					return err
				}
				log.Debugf("%s %s %s %s: %d windows", logger.IconFile, f.Path, logger.IconArrow, dst, n)
				if n > 0 {
					written.Add(1)
					vectors.Add(int64(n))
				}
				spin.UpdateMessage(fmt.Sprintf("Extracting features %d/%d", done.Add(1), len(files)))
				return nil
			})
		}
		return g.Wait()
	}

	if term.IsTerminal(int(os.Stdout.Fd())) {
		err = logger.WithSpinner("Extracting features", process)
	} else {
		err = process(nil)
	}
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	e.stats = ExtractStats{
		Files:   len(files),
		Written: int(written.Load()),
		Vectors: int(vectors.Load()),
	}
	if e.stopped.Load() && int(done.Load()) < len(files) {
		log.Warnf("Stopped after %d of %d files", done.Load(), len(files))
		return nil
	}
	logger.Successf("Wrote %d feature rows to %d files in %s", e.stats.Vectors, e.stats.Written, cfg.Extract.ProcessedDir)
	return nil
}
