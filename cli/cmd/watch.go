package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/cockroachdb/errors"
	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"

	"jobledger/cli/style"
)

type wsEvent struct {
	Type    string         `json:"type"`
	Job     string         `json:"job"`
	Payload map[string]any `json:"payload"`
}

var watchCmd = &cobra.Command{
	Use:   "watch [job]",
	Short: "Stream run events as they happen",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var job string
		if len(args) == 1 {
			job = args[0]
		}

		conn, _, err := websocket.DefaultDialer.Dial(client.WebSocketURL(), nil)
		if err != nil {
			return errors.Wrap(err, "connect")
		}
		defer conn.Close()

		interrupt := make(chan os.Signal, 1)
		signal.Notify(interrupt, os.Interrupt)
		go func() {
			<-interrupt
			conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
			conn.Close()
		}()

		fmt.Println(style.DimText.Render("watching for runs, ctrl-c to stop"))
		for {
			_, msg, err := conn.ReadMessage()
			if err != nil {
				if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					return nil
				}
				return errors.Wrap(err, "ws read")
			}

			var evt wsEvent
			if err := json.Unmarshal(msg, &evt); err != nil {
				continue
			}
			if job != "" && evt.Job != job {
				continue
			}

			icon, s := eventStyle(evt)
			fmt.Printf("  %s %s %s\n",
				style.DimText.Render(time.Now().Format(time.TimeOnly)), s.Render(icon), eventMessage(evt))
		}
	},
}

func eventStyle(evt wsEvent) (string, lipgloss.Style) {
	switch evt.Type {
	case "job.started":
		return "▶", style.Warning
	case "job.completed":
		return "✓", style.Healthy
	case "job.failed":
		return "✗", style.Unhealthy
	}
	return "·", style.DimText
}

func eventMessage(evt wsEvent) string {
	switch evt.Type {
	case "job.started":
		return fmt.Sprintf("%s started (%v)", evt.Job, evt.Payload["image"])
	case "job.completed":
		return fmt.Sprintf("%s completed in %vms", evt.Job, evt.Payload["durationMs"])
	case "job.failed":
		if msg, ok := evt.Payload["message"]; ok {
			return fmt.Sprintf("%s failed: %v", evt.Job, msg)
		}
		return fmt.Sprintf("%s failed", evt.Job)
	}
	return evt.Type
}

func init() {
	rootCmd.AddCommand(watchCmd)
}
