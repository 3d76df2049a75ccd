package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/picogrid/v2v-simulations/pkg/modes"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List available modes",
	Long:  `List all available modes with their descriptions`,
	RunE:  listModes,
}

func listModes(cmd *cobra.Command, args []string) error {
	names := modes.DefaultRegistry.List()
	if len(names) == 0 {
		fmt.Println("No modes found")
		return nil
	}

	// Create tabwriter for formatted output
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "NAME\tDESCRIPTION")
	_, _ = fmt.Fprintln(w, "----\t-----------")

	for _, name := range names {
		m, err := modes.DefaultRegistry.Get(name)
		if err != nil {
			return err
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\n", m.Name(), m.Description())
	}

	return w.Flush()
}
