package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultFileName is the config file looked up in the working directory and
// in $HOME/.v2vsim.
const DefaultFileName = "v2vsim.yaml"

// LoadConfig loads configuration from a YAML file. Fields missing from the
// file keep their default values.
func LoadConfig(path string) (*Config, error) {
	// Check if file exists
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("config file not found: %s", path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	config := GetDefaultConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// LoadConfigOrDefault loads config from path, or from the first default
// location that exists, falling back to the built-in defaults. Environment
// overrides are always applied. A file that exists but fails to parse or
// validate is an error: a bad distribution must never be silently replaced.
func LoadConfigOrDefault(path string) (*Config, error) {
	var config *Config
	var err error

	if path != "" {
		config, err = LoadConfig(path)
		if err != nil {
			return nil, err
		}
	}

	if config == nil {
		defaultPaths := []string{
			DefaultFileName,
			filepath.Join("configs", DefaultFileName),
		}

		for _, p := range defaultPaths {
			if _, statErr := os.Stat(p); statErr == nil {
				config, err = LoadConfig(p)
				if err != nil {
					return nil, err
				}
				break
			}
		}
	}

	if config == nil {
		config = GetDefaultConfig()
	}

	if err := MergeWithEnvironment(config); err != nil {
		return nil, err
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// SaveConfig saves configuration to a YAML file
func SaveConfig(config *Config, path string) error {
	if err := config.Validate(); err != nil {
		return err
	}

	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("error marshaling config: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("error creating directory: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("error writing config file: %w", err)
	}

	return nil
}

// MergeWithOverrides applies CLI flag or prompt parameters to the
// configuration. Unknown keys and values of the wrong type are ignored;
// range checks are left to Validate.
func MergeWithOverrides(config *Config, overrides map[string]interface{}) {
	for key, value := range overrides {
		switch key {
		case "num_nodes":
			if count, ok := toInt(value); ok {
				config.Nodes.InitialCount = count
			}
		case "epochs":
			if count, ok := toInt(value); ok {
				config.Gather.Epochs = count
				config.Watch.Epochs = count
			}
		case "seed":
			if seed, ok := toInt(value); ok {
				config.Simulation.Seed = int64(seed)
			}
		case "sample_size":
			if size, ok := toInt(value); ok {
				config.Features.SampleSize = size
			}
		case "workers":
			if workers, ok := toInt(value); ok {
				config.Extract.Workers = workers
			}
		case "raw_dir":
			if dir, ok := value.(string); ok && dir != "" {
				config.Gather.RawDir = dir
			}
		case "processed_dir":
			if dir, ok := value.(string); ok && dir != "" {
				config.Extract.ProcessedDir = dir
			}
		case "epoch_delay":
			switch v := value.(type) {
			case time.Duration:
				config.Watch.EpochDelay = v
			case string:
				if d, err := time.ParseDuration(v); err == nil {
					config.Watch.EpochDelay = d
				}
			}
		case "metrics_addr":
			if addr, ok := value.(string); ok {
				config.Watch.MetricsAddr = addr
			}
		case "log_level":
			if level, ok := value.(string); ok {
				validLevels := []string{"debug", "info", "warn", "error"}
				for _, valid := range validLevels {
					if strings.ToLower(level) == valid {
						config.Logging.Level = valid
						break
					}
				}
			}
		}
	}
}

// MergeWithEnvironment merges config with V2V_* environment variables.
// Unparseable numeric values are reported rather than skipped.
func MergeWithEnvironment(config *Config) error {
	ints := []struct {
		env string
		dst *int
	}{
		{"V2V_NUM_NODES", &config.Nodes.InitialCount},
		{"V2V_GATHER_EPOCHS", &config.Gather.Epochs},
		{"V2V_WATCH_EPOCHS", &config.Watch.Epochs},
		{"V2V_SAMPLE_SIZE", &config.Features.SampleSize},
		{"V2V_EXTRACT_WORKERS", &config.Extract.Workers},
	}
	for _, e := range ints {
		if raw := os.Getenv(e.env); raw != "" {
			v, err := strconv.Atoi(raw)
			if err != nil {
				return fmt.Errorf("%w: %s: %v", ErrInvalid, e.env, err)
			}
			*e.dst = v
		}
	}

	floats := []struct {
		env string
		dst *float64
	}{
		{"V2V_PERCENT_GOOD", &config.Distribution.Good},
		{"V2V_PERCENT_FAULTY", &config.Distribution.Faulty},
		{"V2V_PERCENT_MALICIOUS", &config.Distribution.Malicious},
		{"V2V_SENSOR_RADIUS", &config.Sensor.Radius},
	}
	for _, e := range floats {
		if raw := os.Getenv(e.env); raw != "" {
			v, err := strconv.ParseFloat(raw, 64)
			if err != nil {
				return fmt.Errorf("%w: %s: %v", ErrInvalid, e.env, err)
			}
			*e.dst = v
		}
	}

	if seed := os.Getenv("V2V_SEED"); seed != "" {
		v, err := strconv.ParseInt(seed, 10, 64)
		if err != nil {
			return fmt.Errorf("%w: V2V_SEED: %v", ErrInvalid, err)
		}
		config.Simulation.Seed = v
	}

	if delay := os.Getenv("V2V_EPOCH_DELAY"); delay != "" {
		d, err := time.ParseDuration(delay)
		if err != nil {
			return fmt.Errorf("%w: V2V_EPOCH_DELAY: %v", ErrInvalid, err)
		}
		config.Watch.EpochDelay = d
	}

	if dir := os.Getenv("V2V_RAW_DIR"); dir != "" {
		config.Gather.RawDir = dir
	}

	if dir := os.Getenv("V2V_PROCESSED_DIR"); dir != "" {
		config.Extract.ProcessedDir = dir
	}

	if addr := os.Getenv("V2V_METRICS_ADDR"); addr != "" {
		config.Watch.MetricsAddr = addr
	}

	if logLevel := os.Getenv("V2V_LOG_LEVEL"); logLevel != "" {
		MergeWithOverrides(config, map[string]interface{}{"log_level": logLevel})
	}

	return nil
}

func toInt(v interface{}) (int, bool) {
	switch val := v.(type) {
	case int:
		return val, true
	case int64:
		return int(val), true
	case float64:
		return int(val), true
	default:
		return 0, false
	}
}
