package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/picogrid/v2v-simulations/pkg/config"
	"github.com/picogrid/v2v-simulations/pkg/logger"
	"github.com/picogrid/v2v-simulations/pkg/modes"
	"github.com/picogrid/v2v-simulations/pkg/utils"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a mode interactively",
	Long: `Pick a mode and answer its parameter prompts. Set V2V_SKIP_PROMPTS=true
or run without a terminal to take the defaults and V2V_* overrides instead.`,
	RunE: runInteractive,
}

func init() {
	runCmd.Flags().StringP("mode", "m", "", "mode to run (gather, extract, watch)")
	runCmd.Flags().BoolP("yes", "y", false, "do not ask before deleting old data")
}

func runInteractive(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	name, err := selectMode(cmd)
	if err != nil {
		return fmt.Errorf("failed to select mode: %w", err)
	}

	mode, err := modes.DefaultRegistry.Get(name)
	if err != nil {
		return err
	}

	params, err := utils.PromptForParameters(mode.Parameters(cfg))
	if err != nil {
		return fmt.Errorf("failed to get parameters: %w", err)
	}

	yes, _ := cmd.Flags().GetBool("yes")
	return runMode(mode, cfg, params, yes)
}

// selectMode returns the --mode flag or asks for one.
func selectMode(cmd *cobra.Command) (string, error) {
	name, _ := cmd.Flags().GetString("mode")
	if name != "" {
		return name, nil
	}

	names := modes.DefaultRegistry.List()
	if utils.SkipPrompts() {
		return "", fmt.Errorf("no mode given; use --mode with one of %v", names)
	}

	return utils.Select("Select mode:", names, func(value string) string {
		m, err := modes.DefaultRegistry.Get(value)
		if err != nil {
			return ""
		}
		return m.Description()
	})
}

// runMode configures mode and runs it until it finishes or the process is
// interrupted.
func runMode(mode modes.Mode, cfg *config.Config, params map[string]interface{}, yes bool) error {
	if g, ok := mode.(*modes.Gather); ok && !yes {
		g.Confirm = func(message string) (bool, error) {
			return utils.Confirm(message, true)
		}
	}

	if err := mode.Configure(cfg, params); err != nil {
		return fmt.Errorf("failed to configure %s: %w", mode.Name(), err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	go func() {
		select {
		case <-sigChan:
		case <-ctx.Done():
			return
		}
		logger.Warn("Received interrupt signal, stopping...")
		if err := mode.Stop(); err != nil {
			logger.Errorf("Failed to stop %s: %v", mode.Name(), err)
		}
		cancel()
	}()

	logger.LogSection(fmt.Sprintf("Starting %s", mode.Name()))
	if err := mode.Run(ctx); err != nil {
		if ctx.Err() != nil {
			logger.Warnf("%s interrupted: %v", mode.Name(), err)
			return nil
		}
		return fmt.Errorf("%s failed: %w", mode.Name(), err)
	}

	logger.Successf("%s completed successfully", mode.Name())
	return nil
}
