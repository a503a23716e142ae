package cmd

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/BHPAV/dev-container-launcher/internal/audit"
)

var eventsCmd = &cobra.Command{
	Use:   "events [name]",
	Short: "Show the audit trail of a dev container",
	Long: `Show recorded lifecycle events for a dev container. Without a name,
image build events are shown.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runEvents,
}

var eventsFormat string

func init() {
	eventsCmd.Flags().StringVarP(&eventsFormat, "format", "o", "text", "Output format: text or json (one object per line)")
	rootCmd.AddCommand(eventsCmd)
}

func runEvents(cmd *cobra.Command, args []string) error {
	if err := checkFormat(eventsFormat, "text", formatJSON); err != nil {
		return err
	}

	name := ""
	if len(args) == 1 {
		name = args[0]
	}

	events, err := audit.NewLogger(cfg.StateDir).Events(name)
	if err != nil {
		return fmt.Errorf("failed to read audit log: %w", err)
	}

	if len(events) == 0 {
		if name == "" {
			logInfo("No build events recorded")
		} else {
			logInfo("No events found for %s", name)
		}
		return nil
	}

	out := cmd.OutOrStdout()
	enc := json.NewEncoder(out)
	for _, e := range events {
		if eventsFormat == formatJSON {
			if err := enc.Encode(e); err != nil {
				return fmt.Errorf("failed to marshal event: %w", err)
			}
			continue
		}

		ts := e.Timestamp.Local().Format("2006-01-02 15:04:05")
		line := fmt.Sprintf("[%s] %-8s %s", ts, e.Type, e.Sandbox)
		if e.Details != "" {
			line += " (" + e.Details + ")"
		}
		if fields := formatFields(e.Fields); fields != "" {
			line += " " + fields
		}
		fmt.Fprintln(out, strings.TrimRight(line, " "))
	}
	return nil
}

func formatFields(fields map[string]string) string {
	if len(fields) == 0 {
		return ""
	}
	parts := make([]string, 0, len(fields))
	for k, v := range fields {
		parts = append(parts, k+"="+v)
	}
	sort.Strings(parts)
	return strings.Join(parts, " ")
}
