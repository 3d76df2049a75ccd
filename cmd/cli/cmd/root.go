package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/picogrid/v2v-simulations/pkg/config"
	"github.com/picogrid/v2v-simulations/pkg/logger"
)

var (
	cfgFile  string
	logLevel string
	noColor  bool
	seed     int64
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "v2vsim",
	Short: "V2V beacon misbehavior simulation CLI",
	Long: `v2vsim simulates vehicles crossing a 2D canvas while broadcasting
their position in periodic beacons. Good, faulty and malicious nodes add
increasing error to what they broadcast.

Use "gather" to record raw training data, "extract" to turn it into
windowed feature vectors, and "watch" to follow the simulation live.`,
	SilenceUsage: true,
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./v2vsim.yaml or $HOME/.v2vsim/v2vsim.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")
	rootCmd.PersistentFlags().Int64Var(&seed, "seed", 0, "random seed (0 picks one from the clock)")

	_ = viper.BindPFlag("seed", rootCmd.PersistentFlags().Lookup("seed"))
	_ = viper.BindPFlag("log_level", rootCmd.PersistentFlags().Lookup("log-level"))

	// Add commands
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(gatherCmd)
	rootCmd.AddCommand(extractCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(configCmd)
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

// initConfig locates the config file and reads in ENV variables if set
func initConfig() {
	// Configure logger based on flags
	logger.SetLevel(logger.ParseLevel(logLevel))
	logger.SetNoColor(noColor)

	if cfgFile != "" {
		// Use config file from the flag
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.AddConfigPath("$HOME/.v2vsim")
		viper.SetConfigType("yaml")
		viper.SetConfigName("v2vsim")
	}

	viper.SetEnvPrefix("V2V")
	viper.AutomaticEnv() // read in environment variables that match

	// A missing file is fine; a broken one is reported by loadConfig
	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			logger.Debugf("Config file not read: %v", err)
		}
	}
}

// loadConfig builds the run configuration from the config file, the V2V_*
// environment and the global flags, in increasing order of precedence.
func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadConfigOrDefault(viper.ConfigFileUsed())
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	overrides := map[string]interface{}{}
	if viper.IsSet("seed") {
		overrides["seed"] = viper.GetInt("seed")
	}
	if viper.IsSet("log_level") {
		overrides["log_level"] = viper.GetString("log_level")
	}
	config.MergeWithOverrides(cfg, overrides)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if !rootCmd.PersistentFlags().Changed("log-level") {
		logger.SetLevel(logger.ParseLevel(cfg.Logging.Level))
	}
	if cfg.Logging.NoColor {
		logger.SetNoColor(true)
	}

	logger.Debugf("Using config %q", viper.ConfigFileUsed())
	return cfg, nil
}
