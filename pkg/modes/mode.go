package modes

import (
	"context"
	"errors"

	"github.com/picogrid/v2v-simulations/pkg/config"
	"github.com/picogrid/v2v-simulations/pkg/utils"
)

// ErrAborted is returned when the user declines to continue.
var ErrAborted = errors.New("aborted by user")

// Mode defines the interface every run mode implements
type Mode interface {
	// Name returns the registry name of the mode
	Name() string

	// Description returns a brief description of what the mode does
	Description() string

	// Parameters lists the values the mode prompts for, with defaults
	// taken from cfg
	Parameters(cfg *config.Config) []utils.Parameter

	// Configure applies parameter overrides on top of cfg and validates
	// the result
	Configure(cfg *config.Config, params map[string]interface{}) error

	// Run executes the mode until it finishes or ctx is cancelled
	Run(ctx context.Context) error

	// Stop asks a running mode to finish at the next epoch boundary
	Stop() error
}

// configure copies cfg, applies overrides and validates.
func configure(cfg *config.Config, params map[string]interface{}) (*config.Config, error) {
	c := *cfg
	config.MergeWithOverrides(&c, params)
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}
