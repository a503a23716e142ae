package cmd

import (
	"github.com/spf13/cobra"

	"github.com/BHPAV/dev-container-launcher/internal/lifecycle"
)

var buildCmd = &cobra.Command{
	Use:   "build [context]",
	Short: "Build a dev container image",
	Long: `Build an image from a local context directory (default: current
directory). The Dockerfile path is relative to the context.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runBuild,
}

var (
	buildTag   string
	buildFile  string
	buildQuiet bool
)

func init() {
	buildCmd.Flags().StringVarP(&buildTag, "tag", "t", "", "Image tag (default from config)")
	buildCmd.Flags().StringVarP(&buildFile, "file", "f", "Dockerfile", "Dockerfile inside the context")
	buildCmd.Flags().BoolVarP(&buildQuiet, "quiet", "q", false, "Send build output to the log instead of stdout")
	rootCmd.AddCommand(buildCmd)
}

func runBuild(cmd *cobra.Command, args []string) error {
	a, err := getApp(cmd)
	if err != nil {
		return err
	}

	contextDir := "."
	if len(args) == 1 {
		contextDir = args[0]
	}
	tag := buildTag
	if tag == "" {
		tag = a.Config.Image
	}

	req := lifecycle.BuildRequest{
		Tag:        tag,
		Dockerfile: buildFile,
		ContextDir: contextDir,
	}
	if !buildQuiet {
		req.Output = cmd.OutOrStdout()
	}

	logInfo("Building %s from %s...", tag, contextDir)
	if err := a.Manager.BuildImage(cmd.Context(), req); err != nil {
		return err
	}
	logSuccess("Built %s", tag)
	return nil
}
