package main

import (
	"os"

	"github.com/BHPAV/dev-container-launcher/cmd"
	"github.com/BHPAV/dev-container-launcher/internal/errors"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(errors.GetExitCode(err))
	}
}
