package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/picogrid/v2v-simulations/pkg/config"
	"github.com/picogrid/v2v-simulations/pkg/logger"
	"github.com/picogrid/v2v-simulations/pkg/utils"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect and create configuration files",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		fmt.Println(cfg.String())
		return nil
	},
}

var configInitCmd = &cobra.Command{
	Use:   "init [path]",
	Short: "Write a config file with the default values",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := config.DefaultFileName
		if len(args) == 1 {
			path = args[0]
		}

		if _, err := os.Stat(path); err == nil {
			force, _ := cmd.Flags().GetBool("force")
			if !force {
				ok, err := utils.Confirm(fmt.Sprintf("%s exists. Overwrite?", path), false)
				if err != nil {
					return err
				}
				if !ok {
					return fmt.Errorf("%s exists; use --force to overwrite", path)
				}
			}
		}

		if err := config.SaveConfig(config.GetDefaultConfig(), path); err != nil {
			return err
		}
		logger.Successf("Wrote %s", path)
		return nil
	},
}

func init() {
	configInitCmd.Flags().BoolP("force", "f", false, "overwrite an existing file")

	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configInitCmd)
}
