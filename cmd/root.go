package cmd

import (
	"context"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/BHPAV/dev-container-launcher/internal/config"
	"github.com/BHPAV/dev-container-launcher/internal/errors"
	"github.com/BHPAV/dev-container-launcher/internal/logging"
)

var (
	verbose    bool
	jsonOutput bool

	// cfg is loaded once per invocation before any command runs.
	cfg     *config.Config
	logFile *os.File
)

var rootCmd = &cobra.Command{
	Use:   "devctl",
	Short: "Launch and manage SSH-reachable dev containers",
	Long: `devctl runs development containers on the local engine and keeps
~/.ssh/config in step with them.

Each container:
  - is labeled devcontainer=true and named dev_<name>
  - bind-mounts a host workspace at /workspace
  - publishes its SSH port on 127.0.0.1 at a free host port
  - gets a "Host <name>" entry so "ssh <name>" and remote editors work`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: setupCommand,
}

// Execute runs the root command with a context cancelled on SIGINT/SIGTERM.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := rootCmd.ExecuteContext(ctx)
	cleanup()
	if err != nil {
		logError("%v", err)
	}
	return err
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output logs in JSON format")
	rootCmd.CompletionOptions.DisableDefaultCmd = true
}

// setupCommand loads configuration and configures logging to stderr and,
// when it can be opened, the log file.
func setupCommand(cmd *cobra.Command, args []string) error {
	c, err := loadConfig()
	if err != nil {
		logging.Setup(verbose, jsonOutput, cmd.ErrOrStderr())
		return err
	}

	level, err := logging.ParseLevel(c.LogLevel)
	if err != nil {
		return errors.Wrap(errors.KindValidation, "invalid log level", err)
	}
	if verbose {
		level = slog.LevelDebug
	}

	var w io.Writer = cmd.ErrOrStderr()
	if c.LogFile != "" {
		f, err := logging.OpenLogFile(c.LogFile)
		if err != nil {
			logWarning("Cannot open log file %s: %v", c.LogFile, err)
		} else {
			logFile = f
			w = io.MultiWriter(w, f)
		}
	}
	logging.SetupLevel(level, jsonOutput, w)
	logging.Debug("configuration loaded", "runtime", c.Runtime, "ssh_config", c.SSHConfigPath, "state_dir", c.StateDir)

	cfg = c
	return nil
}

func cleanup() {
	if currentApp != nil {
		if err := currentApp.Close(); err != nil {
			logging.Debug("failed to close runtime", "error", err)
		}
		currentApp = nil
	}
	if logFile != nil {
		logFile.Close()
		logFile = nil
	}
}

// Helper aliases for user-facing output (delegates to logging package)
var (
	logInfo    = logging.UserInfo
	logSuccess = logging.UserSuccess
	logWarning = logging.UserWarning
	logError   = logging.UserError
)
