package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"jobledger/cli/style"
)

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history [job]",
	Short: "Show recorded executions, newest first",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var job string
		if len(args) == 1 {
			job = args[0]
		}
		execs, err := client.Executions(job, historyLimit)
		if err != nil {
			return err
		}
		if len(execs) == 0 {
			fmt.Println(style.DimText.Render("no executions recorded"))
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			style.TableHeader.Render("ID"),
			style.TableHeader.Render("JOB"),
			style.TableHeader.Render("STATUS"),
			style.TableHeader.Render("DURATION"),
			style.TableHeader.Render("STARTED"),
			style.TableHeader.Render("MESSAGE"),
		)
		for _, e := range execs {
			id := e.ID
			if len(id) > 8 {
				id = id[:8]
			}
			dur := (time.Duration(e.DurationMs) * time.Millisecond).String()
			fmt.Fprintf(w, "%s\t%s\t%s %s\t%s\t%s\t%s\n",
				style.DimText.Render(id), e.Job, style.ExecutionDot(e.Status), e.Status,
				dur, e.StartedAt.Local().Format(time.DateTime), style.DimText.Render(e.Message))
		}
		return w.Flush()
	},
}

func init() {
	historyCmd.Flags().IntVar(&historyLimit, "limit", 20, "maximum executions to show")
	rootCmd.AddCommand(historyCmd)
}
