package cmd

import (
	"github.com/spf13/cobra"

	"github.com/BHPAV/dev-container-launcher/internal/logging"
)

var rmCmd = &cobra.Command{
	Use:     "rm <name>",
	Aliases: []string{"remove", "delete"},
	Short:   "Remove a dev container and its SSH entry",
	Long: `Remove the container for <name>, then its "Host <name>" block from the
SSH config. The SSH entry is kept if the engine refuses the removal.`,
	Args: cobra.ExactArgs(1),
	RunE: runRm,
}

var rmForce bool

func init() {
	rmCmd.Flags().BoolVarP(&rmForce, "force", "f", false, "Remove even if running")
	rootCmd.AddCommand(rmCmd)
}

func runRm(cmd *cobra.Command, args []string) error {
	alias := args[0]

	a, err := getApp(cmd)
	if err != nil {
		return err
	}

	res, err := a.Manager.RemoveSandbox(cmd.Context(), alias, rmForce)
	if err != nil {
		return err
	}
	if !res.SSHEntryRemoved {
		logging.Debug("no ssh config entry removed", "alias", alias)
	}
	logSuccess("Removed %s", alias)
	return nil
}
