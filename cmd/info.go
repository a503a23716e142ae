package cmd

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/BHPAV/dev-container-launcher/internal/health"
)

var infoCmd = &cobra.Command{
	Use:   "info <name>",
	Short: "Show details of a dev container",
	Args:  cobra.ExactArgs(1),
	RunE:  runInfo,
}

var infoFormat string

func init() {
	infoCmd.Flags().StringVarP(&infoFormat, "format", "o", "text", "Output format: text, json or yaml")
	rootCmd.AddCommand(infoCmd)
}

func runInfo(cmd *cobra.Command, args []string) error {
	if err := checkFormat(infoFormat, "text", formatJSON, formatYAML); err != nil {
		return err
	}

	a, err := getApp(cmd)
	if err != nil {
		return err
	}

	sb, err := a.Manager.GetSandboxInfo(cmd.Context(), args[0])
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if infoFormat != "text" {
		return writeStructured(out, infoFormat, sb)
	}

	fmt.Fprintf(out, "Name:      %s\n", sb.Alias)
	fmt.Fprintf(out, "Container: %s\n", sb.EngineName)
	fmt.Fprintf(out, "ID:        %s\n", sb.ShortID())
	fmt.Fprintf(out, "Status:    %s (%s)\n", sb.Status, sb.EngineState)
	fmt.Fprintf(out, "Image:     %s\n", sb.Image)
	fmt.Fprintf(out, "Port:      %s\n", formatPort(sb.HostPort))
	if sb.WorkspacePath != "" {
		fmt.Fprintf(out, "Workspace: %s\n", sb.WorkspacePath)
	}
	if !sb.CreatedAt.IsZero() {
		fmt.Fprintf(out, "Created:   %s\n", sb.CreatedAt.Local().Format("2006-01-02 15:04:05"))
	}
	if len(sb.Labels) > 0 {
		keys := make([]string, 0, len(sb.Labels))
		for k, v := range sb.Labels {
			keys = append(keys, k+"="+v)
		}
		sort.Strings(keys)
		fmt.Fprintf(out, "Labels:    %s\n", strings.Join(keys, ", "))
	}

	result := health.NewChecker(a.Config.SSHHost, a.SSH).Check(cmd.Context(), sb)
	fmt.Fprintf(out, "\nHealth:    %s\n", result.Summary())
	fmt.Fprintf(out, "  Container running: %s\n", boolStatus(result.ContainerRunning))
	fmt.Fprintf(out, "  SSH reachable:     %s\n", boolStatus(result.SSHReachable))
	fmt.Fprintf(out, "  SSH entry:         %s\n", boolStatus(result.SSHEntry))
	if result.Age != "" {
		fmt.Fprintf(out, "  Age:               %s\n", result.Age)
	}

	if sb.HostPort != 0 {
		fmt.Fprintf(out, "\nssh %s\n", sb.Alias)
	}
	return nil
}

func boolStatus(b bool) string {
	if b {
		return "✓"
	}
	return "✗"
}
