package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/BHPAV/dev-container-launcher/internal/runtime"
	"github.com/BHPAV/dev-container-launcher/internal/system"
)

var runtimeCmd = &cobra.Command{
	Use:   "runtime",
	Short: "Show container engine information",
	Long: `Display the configured and available container engine backends.

devctl supports:
  - api:     Docker Engine API over DOCKER_HOST or the default socket
  - docker:  the docker CLI
  - podman:  the podman CLI (Docker-compatible)

With runtime = "auto" the API is used when the daemon answers, otherwise
the first CLI found in PATH.`,
	Args: cobra.NoArgs,
	RunE: runRuntime,
}

func init() {
	rootCmd.AddCommand(runtimeCmd)
}

func runRuntime(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Configured runtime: %s\n", cfg.Runtime)

	active := ""
	if a, err := getApp(cmd); err != nil {
		fmt.Fprintf(out, "Active runtime: unavailable (%s)\n", err)
	} else {
		active = a.Runtime.Name()
		fmt.Fprintf(out, "Active runtime: %s\n", active)
	}
	fmt.Fprintln(out)

	var executor system.CommandExecutor
	if currentApp != nil {
		executor = currentApp.Exec
	}
	available := runtime.Available(cmd.Context(), executor)
	fmt.Fprintln(out, "Available runtimes:")
	if len(available) == 0 {
		fmt.Fprintln(out, "  (none)")
		return nil
	}
	for _, rt := range available {
		marker := "  "
		if string(rt) == active || (rt == runtime.RuntimeAPI && active == "docker-api") {
			marker = "* "
		}
		fmt.Fprintf(out, "%s%s\n", marker, rt)
	}
	return nil
}
