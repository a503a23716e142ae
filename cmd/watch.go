package cmd

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/BHPAV/dev-container-launcher/internal/engine"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Print dev container state changes as they happen",
	Args:  cobra.NoArgs,
	RunE:  runWatch,
}

var watchFormat string

func init() {
	watchCmd.Flags().StringVarP(&watchFormat, "format", "o", "text", "Output format: text or json (one object per line)")
	rootCmd.AddCommand(watchCmd)
}

type watchLine struct {
	ID        string           `json:"id"`
	Time      string           `json:"time"`
	Initial   bool             `json:"initial,omitempty"`
	Sandboxes []engine.Sandbox `json:"sandboxes"`
}

func runWatch(cmd *cobra.Command, args []string) error {
	if err := checkFormat(watchFormat, "text", formatJSON); err != nil {
		return err
	}

	a, err := getApp(cmd)
	if err != nil {
		return err
	}

	w := a.Watcher()
	events, unsubscribe := w.Subscribe(8)
	defer unsubscribe()

	ctx := cmd.Context()
	errc := make(chan error, 1)
	go func() { errc <- w.Run(ctx) }()

	out := cmd.OutOrStdout()
	enc := json.NewEncoder(out)
	for ev := range events {
		if watchFormat == formatJSON {
			sbs := ev.Sandboxes
			if sbs == nil {
				sbs = []engine.Sandbox{}
			}
			if err := enc.Encode(watchLine{
				ID:        ev.ID,
				Time:      ev.Time.UTC().Format(time.RFC3339),
				Initial:   ev.Initial,
				Sandboxes: sbs,
			}); err != nil {
				return err
			}
			continue
		}
		parts := make([]string, 0, len(ev.Sandboxes))
		for _, sb := range ev.Sandboxes {
			parts = append(parts, fmt.Sprintf("%s=%s", sb.Alias, sb.Status))
		}
		summary := strings.Join(parts, " ")
		if summary == "" {
			summary = "(none)"
		}
		fmt.Fprintf(out, "[%s] %s\n", ev.Time.Local().Format("15:04:05"), summary)
	}

	// Run returns ctx.Err() on interrupt, which is a normal exit.
	if err := <-errc; err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}
