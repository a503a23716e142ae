package system

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"os/exec"
	"syscall"
)

// osExecutor implements CommandExecutor using real OS operations.
type osExecutor struct{}

func (e *osExecutor) Execute(ctx context.Context, name string, args ...string) ([]byte, error) {
	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return stdout.Bytes(), &ExitError{
			Name:     name,
			Args:     args,
			ExitCode: exitErr.ExitCode(),
			Stderr:   stderr.String(),
		}
	}
	return stdout.Bytes(), err
}

func (e *osExecutor) ExecuteStreaming(ctx context.Context, w io.Writer, name string, args ...string) error {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = w
	cmd.Stderr = w
	return cmd.Run()
}

func (e *osExecutor) Start(name string, args ...string) error {
	cmd := exec.Command(name, args...)
	if err := cmd.Start(); err != nil {
		return err
	}
	return cmd.Process.Release()
}

func (e *osExecutor) ReplaceProcess(name string, args ...string) error {
	binary, err := exec.LookPath(name)
	if err != nil {
		return err
	}

	argv := append([]string{name}, args...)
	return syscall.Exec(binary, argv, os.Environ())
}

func (e *osExecutor) LookPath(name string) (string, error) {
	return exec.LookPath(name)
}
