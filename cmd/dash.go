package cmd

import (
	"github.com/spf13/cobra"

	"github.com/BHPAV/dev-container-launcher/internal/tui"
)

var dashCmd = &cobra.Command{
	Use:     "dash",
	Aliases: []string{"ui"},
	Short:   "Open the interactive dashboard",
	Args:    cobra.NoArgs,
	RunE:    runDash,
}

func init() {
	rootCmd.AddCommand(dashCmd)
}

func runDash(cmd *cobra.Command, args []string) error {
	a, err := getApp(cmd)
	if err != nil {
		return err
	}

	wd, err := currentDir()
	if err != nil {
		return err
	}
	return tui.RunDashboard(cmd.Context(), a.Manager, a.Watcher(), tui.DashboardOptions{
		DefaultImage:     a.Config.Image,
		DefaultWorkspace: wd,
	})
}
