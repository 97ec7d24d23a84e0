package cmd

import (
	"fmt"
	"os"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"jobledger/cli/style"
)

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check server and dependency health",
	RunE: func(cmd *cobra.Command, args []string) error {
		h, err := client.Health()
		if err != nil {
			return err
		}

		status := style.Healthy.Render(h.Status)
		if h.Status != "ok" {
			status = style.Unhealthy.Render(h.Status)
		}
		fmt.Printf("%s %s\n\n", style.Title.Render("jobledger"), status)

		names := make([]string, 0, len(h.Services))
		for name := range h.Services {
			names = append(names, name)
		}
		sort.Strings(names)

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		for _, name := range names {
			state := h.Services[name]
			fmt.Fprintf(w, "  %s %s\t%s\n", style.ServiceDot(state), name, state)
		}
		return w.Flush()
	},
}

func init() {
	rootCmd.AddCommand(healthCmd)
}
