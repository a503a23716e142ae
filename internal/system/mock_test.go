package system

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
	"strings"
	"testing"
)

func TestMockExecutor_Execute(t *testing.T) {
	mock := NewMockExecutor()
	mock.AddResponse("echo", []byte("hello\n"), nil)

	output, err := mock.Execute(context.Background(), "echo", "hello")
	if err != nil {
		t.Fatalf("Execute error: %v", err)
	}

	if string(output) != "hello\n" {
		t.Errorf("Output = %q, want %q", string(output), "hello\n")
	}

	cmd, ok := mock.LastCommand()
	if !ok {
		t.Fatal("No command recorded")
	}
	if cmd.String() != "echo hello" {
		t.Errorf("Command = %q, want %q", cmd.String(), "echo hello")
	}
}

func TestMockExecutor_LongestPrefix(t *testing.T) {
	mock := NewMockExecutor()
	mock.AddResponse("docker", []byte("generic"), nil)
	mock.AddResponse("docker image inspect", nil, errors.New("no such image"))

	out, err := mock.Execute(context.Background(), "docker", "ps", "-a")
	if err != nil || string(out) != "generic" {
		t.Errorf("docker ps = %q, %v; want generic", out, err)
	}

	if _, err := mock.Execute(context.Background(), "docker", "image", "inspect", "base:latest"); err == nil {
		t.Error("docker image inspect should use the more specific response")
	}
}

func TestMockExecutor_DefaultResponse(t *testing.T) {
	mock := NewMockExecutor()
	mock.DefaultResponse = MockResponse{Output: []byte("default"), Err: nil}

	output, err := mock.Execute(context.Background(), "unknown", "command")
	if err != nil {
		t.Fatalf("Execute error: %v", err)
	}

	if string(output) != "default" {
		t.Errorf("Output = %q, want %q", string(output), "default")
	}
}

func TestMockExecutor_StreamingAndStart(t *testing.T) {
	mock := NewMockExecutor()
	mock.AddResponse("docker build", []byte("Step 1/2\n"), nil)

	var buf bytes.Buffer
	if err := mock.ExecuteStreaming(context.Background(), &buf, "docker", "build", "."); err != nil {
		t.Fatal(err)
	}
	if buf.String() != "Step 1/2\n" {
		t.Errorf("streamed = %q", buf.String())
	}

	if err := mock.Start("cursor", "--folder-uri", "x"); err != nil {
		t.Fatal(err)
	}
	last, _ := mock.LastCommand()
	if !last.Detached {
		t.Error("Start should record a detached command")
	}
}

func TestMockExecutor_LookPath(t *testing.T) {
	mock := NewMockExecutor()
	mock.Paths["ssh"] = "/usr/bin/ssh"

	if p, err := mock.LookPath("ssh"); err != nil || p != "/usr/bin/ssh" {
		t.Errorf("LookPath(ssh) = %q, %v", p, err)
	}
	_, err := mock.LookPath("cursor")
	if !errors.Is(err, exec.ErrNotFound) {
		t.Errorf("LookPath(cursor) error = %v, want exec.ErrNotFound", err)
	}
}

func TestMockExecutor_Reset(t *testing.T) {
	mock := NewMockExecutor()
	mock.Execute(context.Background(), "cmd1")
	mock.Execute(context.Background(), "cmd2")

	if len(mock.Commands) != 2 {
		t.Errorf("Commands length = %d, want 2", len(mock.Commands))
	}

	mock.Reset()

	if len(mock.Commands) != 0 {
		t.Errorf("Commands length after reset = %d, want 0", len(mock.Commands))
	}
}

func TestExitError(t *testing.T) {
	err := &ExitError{Name: "docker", Args: []string{"start", "x"}, ExitCode: 1, Stderr: "port is already allocated\n"}
	if !strings.Contains(err.Error(), "port is already allocated") {
		t.Errorf("Error() = %q", err.Error())
	}

	bare := &ExitError{Name: "docker", Args: []string{"stop"}, ExitCode: 2}
	if bare.Error() != "docker stop: exit status 2" {
		t.Errorf("Error() = %q", bare.Error())
	}
}

func TestOSExecutor_Execute(t *testing.T) {
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
	e := DefaultExecutor()

	out, err := e.Execute(context.Background(), "sh", "-c", "echo out; echo err >&2")
	if err != nil {
		t.Fatalf("Execute error: %v", err)
	}
	if string(out) != "out\n" {
		t.Errorf("stdout = %q, want %q", out, "out\n")
	}

	_, err = e.Execute(context.Background(), "sh", "-c", "echo boom >&2; exit 3")
	var exitErr *ExitError
	if !errors.As(err, &exitErr) {
		t.Fatalf("error = %v, want *ExitError", err)
	}
	if exitErr.ExitCode != 3 || strings.TrimSpace(exitErr.Stderr) != "boom" {
		t.Errorf("ExitError = %+v", exitErr)
	}
}
