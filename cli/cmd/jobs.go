package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"jobledger/cli/style"
)

var jobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: "List the configured jobs",
	RunE: func(cmd *cobra.Command, args []string) error {
		jobs, err := client.Jobs()
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
			style.TableHeader.Render("NAME"),
			style.TableHeader.Render("IMAGE"),
			style.TableHeader.Render("SCHEDULE"),
			style.TableHeader.Render("NEXT RUN"),
		)
		for _, j := range jobs {
			schedule, next := "-", "-"
			if j.Schedule != "" {
				schedule = j.Schedule
			}
			if j.NextRun != nil {
				next = j.NextRun.Local().Format(time.DateTime)
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", style.Bold.Render(j.Name), j.Image, schedule, style.DimText.Render(next))
		}
		return w.Flush()
	},
}

func init() {
	rootCmd.AddCommand(jobsCmd)
}
