package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"jobledger/cli/style"
)

var statCmd = &cobra.Command{
	Use:   "stat",
	Short: "Show run totals and every recorded outcome",
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := client.Stat()
		if err != nil {
			return err
		}

		fmt.Println(style.Title.Render("Runs"))
		fmt.Printf("  %s %s\n", style.Key.Render("total"), style.Bold.Render(fmt.Sprint(s.Summary.Total)))
		fmt.Printf("  %s %s\n", style.Key.Render("successful"), style.Healthy.Render(fmt.Sprint(s.Summary.Successful)))
		fmt.Printf("  %s %s\n", style.Key.Render("failed"), style.Unhealthy.Render(fmt.Sprint(s.Summary.Failed)))

		if len(s.Outcomes) == 0 {
			return nil
		}
		fmt.Println()

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintf(w, "  %s\t%s\t%s\t%s\n",
			style.TableHeader.Render("SEQ"),
			style.TableHeader.Render("CONTAINER"),
			style.TableHeader.Render("RESULT"),
			style.TableHeader.Render("MESSAGE"),
		)
		for _, o := range s.Outcomes {
			fmt.Fprintf(w, "  %d\t%s\t%s %s\t%s\n",
				o.Sequence, o.Container, style.ExecutionDot(o.Result), o.Result, style.DimText.Render(o.Msg))
		}
		return w.Flush()
	},
}

func init() {
	rootCmd.AddCommand(statCmd)
}
