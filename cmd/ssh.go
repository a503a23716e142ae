package cmd

import (
	"fmt"

	shellquote "github.com/kballard/go-shellquote"
	"github.com/spf13/cobra"

	"github.com/BHPAV/dev-container-launcher/internal/config"
	"github.com/BHPAV/dev-container-launcher/internal/errors"
	"github.com/BHPAV/dev-container-launcher/internal/logging"
	"github.com/BHPAV/dev-container-launcher/internal/ssh"
)

var sshCmd = &cobra.Command{
	Use:   "ssh <name> [-- command...]",
	Short: "Open an SSH session to a dev container",
	Long: `Replace devctl with ssh connected to the container. The SSH config alias
is used when present; otherwise devctl connects to the published port
directly.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runSSH,
}

var sshPrint bool

func init() {
	sshCmd.Flags().BoolVar(&sshPrint, "print", false, "Print the ssh command instead of running it")
	rootCmd.AddCommand(sshCmd)
}

func runSSH(cmd *cobra.Command, args []string) error {
	alias := args[0]
	command := args[1:]

	a, err := getApp(cmd)
	if err != nil {
		return err
	}

	sb, err := a.Manager.GetSandboxInfo(cmd.Context(), alias)
	if err != nil {
		return err
	}
	if !sb.IsRunning() {
		return errors.Conflict(fmt.Sprintf("%s is not running; start it with 'devctl start %s'", alias, alias))
	}

	opts := ssh.AliasOptions(alias)
	if ok, err := a.SSH.Has(alias); err != nil || !ok {
		if sb.HostPort == 0 {
			return errors.NotFound(fmt.Sprintf("%s has no published SSH port", alias))
		}
		logging.Debug("no ssh config entry, connecting directly", "alias", alias, "port", sb.HostPort)
		opts = ssh.DirectOptions(a.Config.SSHHost, sb.HostPort, a.Config.SSHUser, a.Config.HostKeyPolicy)
		if a.Config.HostKeyPolicy == config.PolicyStrict {
			opts.KnownHostsFile = a.Config.KnownHostsPath
		}
	}
	if len(command) == 0 {
		opts = opts.WithTTY()
	}

	argv := opts.BuildArgsWithArgv(command...)
	if sshPrint {
		fmt.Fprintln(cmd.OutOrStdout(), shellquote.Join(argv...))
		return nil
	}
	return a.Exec.ReplaceProcess(argv[0], argv[1:]...)
}
