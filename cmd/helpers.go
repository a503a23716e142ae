package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/BHPAV/dev-container-launcher/internal/app"
	"github.com/BHPAV/dev-container-launcher/internal/config"
	"github.com/BHPAV/dev-container-launcher/internal/errors"
)

// loadConfig and appFactory are replaced in tests.
var (
	loadConfig = config.Load

	appFactory = func(ctx context.Context, c *config.Config) (*app.App, error) {
		return app.New(ctx, c)
	}
)

var currentApp *app.App

// getApp returns the App for this invocation, creating it on first use.
func getApp(cmd *cobra.Command) (*app.App, error) {
	if currentApp != nil {
		return currentApp, nil
	}
	if cfg == nil {
		return nil, errors.New(errors.KindInternal, "configuration not loaded")
	}
	a, err := appFactory(cmd.Context(), cfg)
	if err != nil {
		return nil, err
	}
	currentApp = a
	return a, nil
}

// Output formats for list and info commands.
const (
	formatTable = "table"
	formatJSON  = "json"
	formatYAML  = "yaml"
)

func checkFormat(format string, allowed ...string) error {
	for _, f := range allowed {
		if format == f {
			return nil
		}
	}
	return errors.Validationf("unknown format %q", format)
}

// writeStructured renders v as JSON or YAML.
func writeStructured(w io.Writer, format string, v any) error {
	switch format {
	case formatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case formatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	}
	return errors.Validationf("unknown format %q", format)
}

// formatPort renders a host port, or N/A when none is published.
func formatPort(port int) string {
	if port == 0 {
		return "N/A"
	}
	return strconv.Itoa(port)
}

// currentDir is the default workspace for new sandboxes.
func currentDir() (string, error) {
	wd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("failed to determine working directory: %w", err)
	}
	return wd, nil
}
