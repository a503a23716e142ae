package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/BHPAV/dev-container-launcher/internal/lifecycle"
)

var newCmd = &cobra.Command{
	Use:   "new <name>",
	Short: "Create and start a dev container",
	Long: `Create a dev container named <name>, start it and add "Host <name>" to
the SSH config.

The workspace defaults to the current directory and must sit under one of
the configured allowed paths.`,
	Args: cobra.ExactArgs(1),
	RunE: runNew,
}

var (
	newImage  string
	newLang   string
	newVolume string
)

func init() {
	newCmd.Flags().StringVarP(&newImage, "image", "i", "", "Image to run (default from config)")
	newCmd.Flags().StringVarP(&newLang, "lang", "l", "", "Pick the image configured for a language")
	newCmd.Flags().StringVar(&newVolume, "volume", "", "Host workspace to mount (default: current directory)")
	newCmd.MarkFlagsMutuallyExclusive("image", "lang")
	rootCmd.AddCommand(newCmd)
}

func runNew(cmd *cobra.Command, args []string) error {
	alias := args[0]

	a, err := getApp(cmd)
	if err != nil {
		return err
	}

	image := newImage
	switch {
	case newLang != "":
		if image, err = a.Config.ImageFor(newLang); err != nil {
			return err
		}
	case image == "":
		image = a.Config.Image
	}

	workspace := newVolume
	if workspace == "" {
		if workspace, err = currentDir(); err != nil {
			return err
		}
	}

	logInfo("Creating %s from %s...", alias, image)
	res, err := a.Manager.CreateSandbox(cmd.Context(), lifecycle.CreateRequest{
		Alias:     alias,
		Image:     image,
		Workspace: workspace,
	})
	if err != nil {
		return err
	}

	logSuccess("Created %s (%s) on port %d", alias, res.Sandbox.ShortID(), res.Port)
	switch {
	case res.SSHError != nil:
		logWarning("SSH config was not updated: %v", res.SSHError)
		logWarning("Connect directly with: ssh -p %d %s@%s", res.Port, a.Config.SSHUser, a.Config.SSHHost)
		return nil
	case res.SSHEntryExisted:
		logWarning("An SSH entry for %s already exists and was left unchanged; check that its Port is %d", alias, res.Port)
	}
	if res.Fingerprint != "" {
		logInfo("Host key %s", res.Fingerprint)
	}
	if a.Config.SSHReadyWait.Duration > 0 && !res.Ready {
		logWarning("SSH is not accepting connections yet; it may need a few more seconds")
	}

	fmt.Fprintf(cmd.OutOrStdout(), "\nConnect with:\n  ssh %s\n  devctl code %s\n", alias, alias)
	return nil
}
