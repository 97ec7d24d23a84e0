package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"jobledger/cli/style"
)

var errorsCount int

var errorsCmd = &cobra.Command{
	Use:   "errors",
	Short: "List the most recent failure messages",
	RunE: func(cmd *cobra.Command, args []string) error {
		msgs, err := client.Errors(errorsCount)
		if err != nil {
			return err
		}
		if len(msgs) == 0 {
			fmt.Println(style.DimText.Render("no failures recorded"))
			return nil
		}
		for _, m := range msgs {
			fmt.Printf("  %s %s\n", style.DotUnhealthy, m)
		}
		return nil
	},
}

func init() {
	errorsCmd.Flags().IntVarP(&errorsCount, "n", "n", 0, "number of messages (server default when 0)")
	rootCmd.AddCommand(errorsCmd)
}
