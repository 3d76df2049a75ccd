package config

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// ErrInvalid is wrapped by every validation failure so callers can tell a
// bad configuration apart from an I/O error.
var ErrInvalid = errors.New("invalid configuration")

// percentTolerance absorbs float noise when checking that the category
// distribution adds up to 100.
const percentTolerance = 1e-9

// MinSampleSize is the smallest window the angle and slope features can be
// computed over.
const MinSampleSize = 3

// Config holds the complete simulation configuration
type Config struct {
	// Basic simulation settings
	Simulation SimulationSettings `yaml:"simulation"`

	// Visible area nodes drive across
	Canvas CanvasConfig `yaml:"canvas"`

	// Neighbor detection
	Sensor SensorConfig `yaml:"sensor"`

	// Node population and kinematics
	Nodes NodesConfig `yaml:"nodes"`

	// Category mix, in percent
	Distribution DistributionConfig `yaml:"distribution"`

	// Beacon error magnitude per category
	BeaconError BeaconErrorConfig `yaml:"beacon_error"`

	// Feature extraction
	Features FeaturesConfig `yaml:"features"`

	// Data gathering mode
	Gather GatherConfig `yaml:"gather"`

	// Feature extraction mode
	Extract ExtractConfig `yaml:"extract"`

	// Interactive watch mode
	Watch WatchConfig `yaml:"watch"`

	// Logging configuration
	Logging LoggingConfig `yaml:"logging"`
}

// SimulationSettings holds basic simulation settings
type SimulationSettings struct {
	Name string `yaml:"name"`
	// Seed drives every random draw. Zero picks a time-based seed.
	Seed int64 `yaml:"seed"`
}

// CanvasConfig is the visible area, in canvas units
type CanvasConfig struct {
	Width  float64 `yaml:"width"`
	Height float64 `yaml:"height"`
}

// SensorConfig defines the inner detection radius R. The outer radius is 2R.
type SensorConfig struct {
	Radius float64 `yaml:"radius"`
}

// SpeedRange defines an inclusive range of per-epoch speeds
type SpeedRange struct {
	Min int `yaml:"min"`
	Max int `yaml:"max"`
}

// NodesConfig defines the node population
type NodesConfig struct {
	InitialCount  int        `yaml:"initial_count"`
	Speed         SpeedRange `yaml:"speed"`
	CoordHistory  int        `yaml:"coord_history"`
	BeaconHistory int        `yaml:"beacon_history"`
}

// DistributionConfig is the category mix. The three values must add up to 100.
type DistributionConfig struct {
	Good      float64 `yaml:"good"`
	Faulty    float64 `yaml:"faulty"`
	Malicious float64 `yaml:"malicious"`
}

// ErrorRange is a half-open [Min, Max) range of beacon offset magnitudes
type ErrorRange struct {
	Min float64 `yaml:"min"`
	Max float64 `yaml:"max"`
}

// BeaconErrorConfig holds the beacon error range of each category
type BeaconErrorConfig struct {
	Good      ErrorRange `yaml:"good"`
	Faulty    ErrorRange `yaml:"faulty"`
	Malicious ErrorRange `yaml:"malicious"`
}

// FeaturesConfig defines feature extraction settings
type FeaturesConfig struct {
	SampleSize int `yaml:"sample_size"`
}

// GatherConfig defines data gathering settings
type GatherConfig struct {
	Epochs int    `yaml:"epochs"`
	RawDir string `yaml:"raw_dir"`
}

// ExtractConfig defines feature extraction mode settings
type ExtractConfig struct {
	ProcessedDir string `yaml:"processed_dir"`
	Workers      int    `yaml:"workers"`
}

// WatchConfig defines the paced interactive mode
type WatchConfig struct {
	EpochDelay  time.Duration `yaml:"epoch_delay"`
	Epochs      int           `yaml:"epochs"` // 0 runs until interrupted
	MetricsAddr string        `yaml:"metrics_addr,omitempty"`
}

// LoggingConfig defines logging settings
type LoggingConfig struct {
	Level   string `yaml:"level"` // "debug", "info", "warn", "error"
	NoColor bool   `yaml:"no_color"`
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if err := c.checkFinite(); err != nil {
		return err
	}

	if c.Canvas.Width <= 0 || c.Canvas.Height <= 0 {
		return fmt.Errorf("%w: canvas width and height must be positive", ErrInvalid)
	}

	if c.Sensor.Radius <= 0 {
		return fmt.Errorf("%w: sensor radius must be positive", ErrInvalid)
	}

	if c.Nodes.InitialCount < 0 {
		return fmt.Errorf("%w: initial node count must not be negative", ErrInvalid)
	}

	if c.Nodes.Speed.Min < 0 || c.Nodes.Speed.Min > c.Nodes.Speed.Max {
		return fmt.Errorf("%w: speed range must satisfy 0 <= min <= max", ErrInvalid)
	}

	if c.Nodes.CoordHistory < 1 || c.Nodes.BeaconHistory < 1 {
		return fmt.Errorf("%w: history capacities must be at least 1", ErrInvalid)
	}

	d := c.Distribution
	if d.Good < 0 || d.Faulty < 0 || d.Malicious < 0 {
		return fmt.Errorf("%w: category percentages must not be negative", ErrInvalid)
	}
	if sum := d.Good + d.Faulty + d.Malicious; math.Abs(sum-100) > percentTolerance {
		return fmt.Errorf("%w: category percentages must sum to 100, got %g", ErrInvalid, sum)
	}

	for name, r := range map[string]ErrorRange{
		"good":      c.BeaconError.Good,
		"faulty":    c.BeaconError.Faulty,
		"malicious": c.BeaconError.Malicious,
	} {
		if r.Min < 0 || r.Min > r.Max {
			return fmt.Errorf("%w: %s beacon error range must satisfy 0 <= min <= max", ErrInvalid, name)
		}
	}

	if c.Features.SampleSize < MinSampleSize {
		return fmt.Errorf("%w: sample size must be at least %d", ErrInvalid, MinSampleSize)
	}

	if c.Gather.Epochs < 0 || c.Watch.Epochs < 0 {
		return fmt.Errorf("%w: epoch counts must not be negative", ErrInvalid)
	}

	if c.Extract.Workers < 1 {
		return fmt.Errorf("%w: extract workers must be at least 1", ErrInvalid)
	}

	if c.Watch.EpochDelay < 0 {
		return fmt.Errorf("%w: epoch delay must not be negative", ErrInvalid)
	}

	return nil
}

// checkFinite rejects NaN and infinite floats, which slip through every
// ordered comparison in Validate.
func (c *Config) checkFinite() error {
	fields := []struct {
		name string
		v    float64
	}{
		{"canvas width", c.Canvas.Width},
		{"canvas height", c.Canvas.Height},
		{"sensor radius", c.Sensor.Radius},
		{"good percentage", c.Distribution.Good},
		{"faulty percentage", c.Distribution.Faulty},
		{"malicious percentage", c.Distribution.Malicious},
		{"good beacon error min", c.BeaconError.Good.Min},
		{"good beacon error max", c.BeaconError.Good.Max},
		{"faulty beacon error min", c.BeaconError.Faulty.Min},
		{"faulty beacon error max", c.BeaconError.Faulty.Max},
		{"malicious beacon error min", c.BeaconError.Malicious.Min},
		{"malicious beacon error max", c.BeaconError.Malicious.Max},
	}
	for _, f := range fields {
		if math.IsNaN(f.v) || math.IsInf(f.v, 0) {
			return fmt.Errorf("%w: %s must be a finite number, got %g", ErrInvalid, f.name, f.v)
		}
	}
	return nil
}

// String returns a human-readable representation of the configuration
func (c *Config) String() string {
	return fmt.Sprintf(`Simulation Configuration:
  Name: %s
  Seed: %d

Canvas:
  Size: %.0f x %.0f
  Sensor Radius: %.1f (outer %.1f)

Nodes:
  Initial Count: %d
  Speed Range: %d-%d per epoch
  Coordinate History: %d
  Beacon History: %d

Distribution:
  Good: %.1f%%
  Faulty: %.1f%%
  Malicious: %.1f%%

Beacon Error:
  Good: %.1f-%.1f
  Faulty: %.1f-%.1f
  Malicious: %.1f-%.1f

Data:
  Gather Epochs: %d
  Raw Dir: %s
  Processed Dir: %s
  Sample Size: %d
  Extract Workers: %d

Watch:
  Epoch Delay: %v
  Epochs: %d

Logging:
  Level: %s`,
		c.Simulation.Name,
		c.Simulation.Seed,
		c.Canvas.Width, c.Canvas.Height,
		c.Sensor.Radius, 2*c.Sensor.Radius,
		c.Nodes.InitialCount,
		c.Nodes.Speed.Min, c.Nodes.Speed.Max,
		c.Nodes.CoordHistory,
		c.Nodes.BeaconHistory,
		c.Distribution.Good,
		c.Distribution.Faulty,
		c.Distribution.Malicious,
		c.BeaconError.Good.Min, c.BeaconError.Good.Max,
		c.BeaconError.Faulty.Min, c.BeaconError.Faulty.Max,
		c.BeaconError.Malicious.Min, c.BeaconError.Malicious.Max,
		c.Gather.Epochs,
		c.Gather.RawDir,
		c.Extract.ProcessedDir,
		c.Features.SampleSize,
		c.Extract.Workers,
		c.Watch.EpochDelay,
		c.Watch.Epochs,
		c.Logging.Level,
	)
}

// GetDefaultConfig returns the configuration the data sets were gathered with
func GetDefaultConfig() *Config {
	return &Config{
		Simulation: SimulationSettings{
			Name: "v2v-beacons",
		},

		// 1200x800 screen minus two 35px toolbar rows
		Canvas: CanvasConfig{
			Width:  1200,
			Height: 730,
		},

		Sensor: SensorConfig{
			Radius: 210,
		},

		Nodes: NodesConfig{
			InitialCount: 20,
			Speed: SpeedRange{
				Min: 20,
				Max: 70,
			},
			CoordHistory:  5,
			BeaconHistory: 6,
		},

		Distribution: DistributionConfig{
			Good:      60,
			Faulty:    20,
			Malicious: 20,
		},

		BeaconError: BeaconErrorConfig{
			Good:      ErrorRange{Min: 0, Max: 15},
			Faulty:    ErrorRange{Min: 0, Max: 40},
			Malicious: ErrorRange{Min: 0, Max: 100},
		},

		Features: FeaturesConfig{
			SampleSize: 3,
		},

		Gather: GatherConfig{
			Epochs: 1000,
			RawDir: "./data/raw_data",
		},

		Extract: ExtractConfig{
			ProcessedDir: "./data/processed_data",
			Workers:      4,
		},

		Watch: WatchConfig{
			EpochDelay: 250 * time.Millisecond,
		},

		Logging: LoggingConfig{
			Level: "info",
		},
	}
}
