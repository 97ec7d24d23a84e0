package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"jobledger/cli/api"
)

var (
	apiURL string
	client *api.Client
)

var rootCmd = &cobra.Command{
	Use:   "jobctl",
	Short: "Run jobs and read the execution ledger",
	Long: `jobctl talks to a jobledger server: trigger fixed container jobs,
read run statistics and follow runs as they happen.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		client = api.New(apiURL)
	},
	SilenceUsage: true,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	defaultURL := os.Getenv("JOBLEDGER_URL")
	if defaultURL == "" {
		defaultURL = "http://localhost:8800"
	}
	rootCmd.PersistentFlags().StringVar(&apiURL, "api", defaultURL, "jobledger API URL")
}
