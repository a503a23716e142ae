package cmd

import (
	"github.com/spf13/cobra"
)

var codeCmd = &cobra.Command{
	Use:   "code <name>",
	Short: "Open a dev container in the editor over SSH",
	Args:  cobra.ExactArgs(1),
	RunE:  runCode,
}

func init() {
	rootCmd.AddCommand(codeCmd)
}

func runCode(cmd *cobra.Command, args []string) error {
	alias := args[0]

	a, err := getApp(cmd)
	if err != nil {
		return err
	}

	if err := a.Manager.OpenEditor(cmd.Context(), alias); err != nil {
		return err
	}
	logSuccess("Opened %s in %s", a.Manager.EditorURI(alias), a.Config.Editor)
	return nil
}
