package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/BHPAV/dev-container-launcher/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Print the effective configuration as TOML",
	Long: `Print the configuration after defaults, the config file and DEVCONTAINER_*
environment variables are applied. The output is a valid config file.`,
	Args: cobra.NoArgs,
	RunE: runConfig,
}

var configPath bool

func init() {
	configCmd.Flags().BoolVar(&configPath, "path", false, "Print the config file location instead")
	rootCmd.AddCommand(configCmd)
}

func runConfig(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	if configPath {
		path, err := config.FilePath()
		if err != nil {
			return err
		}
		fmt.Fprintln(out, path)
		if _, err := os.Stat(path); os.IsNotExist(err) {
			logInfo("%s does not exist; defaults are in use", path)
		}
		return nil
	}
	return cfg.Encode(out)
}
