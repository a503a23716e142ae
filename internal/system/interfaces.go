// Package system abstracts process execution so the CLI engine backend,
// editor launch and ssh handoff can be tested without running binaries.
package system

import (
	"context"
	"fmt"
	"io"
	"strings"
)

// CommandExecutor abstracts command execution for testability.
type CommandExecutor interface {
	// Execute runs a command and returns its stdout. A non-zero exit is
	// reported as *ExitError carrying stderr.
	Execute(ctx context.Context, name string, args ...string) ([]byte, error)

	// ExecuteStreaming runs a command with stdout and stderr copied to w.
	ExecuteStreaming(ctx context.Context, w io.Writer, name string, args ...string) error

	// Start launches a command without waiting for it to finish.
	Start(name string, args ...string) error

	// ReplaceProcess replaces the current process with the given command (exec syscall).
	ReplaceProcess(name string, args ...string) error

	// LookPath reports where name is found in PATH.
	LookPath(name string) (string, error)
}

// ExitError is returned by Execute when a command exits non-zero.
type ExitError struct {
	Name     string
	Args     []string
	ExitCode int
	Stderr   string
}

func (e *ExitError) Error() string {
	msg := strings.TrimSpace(e.Stderr)
	if msg == "" {
		return fmt.Sprintf("%s %s: exit status %d", e.Name, strings.Join(e.Args, " "), e.ExitCode)
	}
	return fmt.Sprintf("%s: exit status %d: %s", e.Name, e.ExitCode, msg)
}

var defaultExecutor CommandExecutor = &osExecutor{}

// DefaultExecutor returns the default CommandExecutor implementation.
func DefaultExecutor() CommandExecutor {
	return defaultExecutor
}
