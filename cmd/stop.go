package cmd

import (
	"github.com/spf13/cobra"
)

var stopCmd = &cobra.Command{
	Use:   "stop <name>",
	Short: "Stop a running dev container",
	Args:  cobra.ExactArgs(1),
	RunE:  runStop,
}

func init() {
	rootCmd.AddCommand(stopCmd)
}

func runStop(cmd *cobra.Command, args []string) error {
	alias := args[0]

	a, err := getApp(cmd)
	if err != nil {
		return err
	}

	changed, err := a.Manager.StopSandbox(cmd.Context(), alias)
	if err != nil {
		return err
	}
	if !changed {
		logInfo("%s is not running", alias)
		return nil
	}
	logSuccess("Stopped %s", alias)
	return nil
}
