package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/BHPAV/dev-container-launcher/internal/engine"
)

var lsCmd = &cobra.Command{
	Use:     "ls",
	Aliases: []string{"list", "ps"},
	Short:   "List dev containers",
	Args:    cobra.NoArgs,
	RunE:    runLs,
}

var lsFormat string

func init() {
	lsCmd.Flags().StringVarP(&lsFormat, "format", "o", formatTable, "Output format: table, json or yaml")
	rootCmd.AddCommand(lsCmd)
}

func runLs(cmd *cobra.Command, args []string) error {
	if err := checkFormat(lsFormat, formatTable, formatJSON, formatYAML); err != nil {
		return err
	}

	a, err := getApp(cmd)
	if err != nil {
		return err
	}

	sandboxes, err := a.Manager.ListSandboxes(cmd.Context())
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if lsFormat != formatTable {
		if sandboxes == nil {
			sandboxes = []engine.Sandbox{}
		}
		return writeStructured(out, lsFormat, sandboxes)
	}

	if len(sandboxes) == 0 {
		logInfo("No dev containers found. Create one with: devctl new <name>")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tSTATUS\tPORT\tIMAGE\tID")
	for _, sb := range sandboxes {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			sb.Alias, sb.Status, formatPort(sb.HostPort), sb.Image, sb.ShortID())
	}
	return w.Flush()
}
