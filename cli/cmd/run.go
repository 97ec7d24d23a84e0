package cmd

import (
	"fmt"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"

	"jobledger/cli/api"
	"jobledger/cli/style"
)

var runCmd = &cobra.Command{
	Use:   "run <job>",
	Short: "Run a job and print its output",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		out, err := client.Run(args[0])
		if err != nil {
			var runErr *api.RunError
			if errors.As(err, &runErr) {
				fmt.Println(style.ErrorBox.Render(runErr.Error()))
				// Detail comes from the history store, when the server has one.
				if runErr.ExecutionID != "" {
					if e, lerr := client.Execution(runErr.ExecutionID); lerr == nil && e.Message != "" {
						fmt.Printf("  %s\n", style.DimText.Render(e.Message))
					}
				}
			}
			return err
		}
		fmt.Print(out)
		if !strings.HasSuffix(out, "\n") {
			fmt.Println()
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
}
