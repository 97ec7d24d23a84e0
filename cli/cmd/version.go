package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"jobledger/cli/style"
)

// Version is set at build time.
var Version = "dev"

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print client and server versions",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("%s %s\n", style.Key.Render("jobctl"), Version)
		info, err := client.Info()
		if err != nil {
			fmt.Printf("%s %s\n", style.Key.Render("server"), style.Unhealthy.Render("unreachable"))
			return
		}
		fmt.Printf("%s %s\n", style.Key.Render("server"), info.Version)
		fmt.Printf("%s %s\n", style.Key.Render("runtime"), info.Runtime)
		fmt.Printf("%s %s\n", style.Key.Render("jobs"), strings.Join(info.Jobs, ", "))
		if info.Listeners != nil {
			fmt.Printf("%s %d\n", style.Key.Render("listeners"), *info.Listeners)
		}
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
