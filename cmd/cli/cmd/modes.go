package cmd

import (
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/picogrid/v2v-simulations/pkg/modes"
)

var gatherCmd = &cobra.Command{
	Use:   "gather",
	Short: "Record raw training data",
	Long: `Run the simulation for a fixed number of epochs and write one CSV per node
under <raw_dir>/<category>/, plus a summary.txt with the run totals.
Existing raw data is deleted first.`,
	RunE: modeCommand(modes.GatherName),
}

var extractCmd = &cobra.Command{
	Use:   "extract",
	Short: "Extract feature vectors from raw data",
	Long: `Split every raw node file into windows of sample_size rows and write one
feature vector per window to <processed_dir>/Node_<id>.csv.`,
	RunE: modeCommand(modes.ExtractName),
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Watch the simulation live",
	Long: `Run the simulation at a fixed pace and print every node each epoch.
With --metrics-addr the simulation is also exported to Prometheus.`,
	RunE: modeCommand(modes.WatchName),
}

func init() {
	gatherCmd.Flags().Int("epochs", 0, "number of epochs to simulate")
	gatherCmd.Flags().Int("num-nodes", 0, "number of nodes on the canvas")
	gatherCmd.Flags().String("raw-dir", "", "directory for raw node data")
	gatherCmd.Flags().BoolP("yes", "y", false, "do not ask before deleting old data")

	extractCmd.Flags().Int("sample-size", 0, "rows per feature window")
	extractCmd.Flags().Int("workers", 0, "files processed in parallel")
	extractCmd.Flags().String("raw-dir", "", "directory with raw node data")
	extractCmd.Flags().String("processed-dir", "", "directory for feature files")

	watchCmd.Flags().Int("epochs", 0, "epochs to run (0 runs until interrupted)")
	watchCmd.Flags().Int("num-nodes", 0, "number of nodes on the canvas")
	watchCmd.Flags().Duration("delay", 0, "pause between epochs")
	watchCmd.Flags().String("metrics-addr", "", "serve Prometheus metrics on this address")
}

// flagParams maps changed flags to mode parameter names.
var flagParams = map[string]string{
	"epochs":        "epochs",
	"num-nodes":     "num_nodes",
	"raw-dir":       "raw_dir",
	"sample-size":   "sample_size",
	"workers":       "workers",
	"processed-dir": "processed_dir",
	"delay":         "epoch_delay",
	"metrics-addr":  "metrics_addr",
}

// modeCommand runs the named mode with the config file values, overridden
// by any flag given on the command line. It never prompts for parameters.
func modeCommand(name string) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		mode, err := modes.DefaultRegistry.Get(name)
		if err != nil {
			return err
		}

		yes, _ := cmd.Flags().GetBool("yes")
		return runMode(mode, cfg, changedFlags(cmd.Flags()), yes)
	}
}

func changedFlags(flags *pflag.FlagSet) map[string]interface{} {
	params := make(map[string]interface{})
	flags.Visit(func(f *pflag.Flag) {
		key, ok := flagParams[f.Name]
		if !ok {
			return
		}
		switch f.Value.Type() {
		case "int":
			v, _ := flags.GetInt(f.Name)
			params[key] = v
		case "duration":
			v, _ := flags.GetDuration(f.Name)
			params[key] = v
		default:
			params[key] = f.Value.String()
		}
	})
	return params
}
