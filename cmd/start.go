package cmd

import (
	"github.com/spf13/cobra"
)

var startCmd = &cobra.Command{
	Use:   "start <name>",
	Short: "Start a stopped dev container",
	Args:  cobra.ExactArgs(1),
	RunE:  runStart,
}

func init() {
	rootCmd.AddCommand(startCmd)
}

func runStart(cmd *cobra.Command, args []string) error {
	alias := args[0]

	a, err := getApp(cmd)
	if err != nil {
		return err
	}

	changed, err := a.Manager.StartSandbox(cmd.Context(), alias)
	if err != nil {
		return err
	}
	if !changed {
		logInfo("%s is already running", alias)
		return nil
	}
	logSuccess("Started %s", alias)
	return nil
}
