// Package testutil provides a wired devctl environment over an in-memory
// engine for command and integration tests.
package testutil

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/BHPAV/dev-container-launcher/internal/app"
	"github.com/BHPAV/dev-container-launcher/internal/config"
	"github.com/BHPAV/dev-container-launcher/internal/runtime"
	"github.com/BHPAV/dev-container-launcher/internal/system"
)

// TestImage is present in every TestEnv's mock engine.
const TestImage = "base:latest"

// SeqPorts hands out increasing ports, skipping excluded ones.
type SeqPorts struct {
	mu   sync.Mutex
	Next int
}

// Allocate implements engine.PortAllocator.
func (s *SeqPorts) Allocate(exclude map[int]bool) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for ; s.Next <= 65535; s.Next++ {
		if !exclude[s.Next] {
			p := s.Next
			s.Next++
			return p, nil
		}
	}
	return 0, fmt.Errorf("port range exhausted")
}

// TestEnv holds the test environment
type TestEnv struct {
	T       *testing.T
	Home    string
	Root    string
	Config  *config.Config
	Runtime *runtime.MockRuntime
	Exec    *system.MockExecutor
	Ports   *SeqPorts
	App     *app.App
}

// NewTestEnv creates a test environment with a temp HOME, one allowed
// workspace root and a mock engine that has TestImage and the default
// image.
func NewTestEnv(t *testing.T) *TestEnv {
	t.Helper()

	home, err := filepath.EvalSymlinks(t.TempDir())
	if err != nil {
		t.Fatalf("Failed to resolve temp dir: %v", err)
	}
	t.Setenv("HOME", home)

	root := filepath.Join(home, "Dev")
	if err := os.MkdirAll(root, 0o755); err != nil {
		t.Fatalf("Failed to create workspace root: %v", err)
	}

	cfg := config.Default(home)
	cfg.AllowedPaths = []string{root}
	cfg.SSHReadyWait = config.Duration{}
	cfg.PollInterval = config.Duration{Duration: 20 * time.Millisecond}
	cfg.LogFile = ""

	rt := runtime.NewMockRuntime()
	rt.AddImage(TestImage)
	rt.AddImage(cfg.Image)

	exec := system.NewMockExecutor()
	ports := &SeqPorts{Next: 40001}

	env := &TestEnv{
		T:       t,
		Home:    home,
		Root:    root,
		Config:  cfg,
		Runtime: rt,
		Exec:    exec,
		Ports:   ports,
	}
	env.App = env.NewApp()
	return env
}

// NewApp wires a fresh App over the environment's config and mocks.
func (e *TestEnv) NewApp() *app.App {
	e.T.Helper()
	a, err := app.New(context.Background(), e.Config,
		app.WithRuntime(e.Runtime),
		app.WithExecutor(e.Exec),
		app.WithPortAllocator(e.Ports),
	)
	if err != nil {
		e.T.Fatalf("Failed to create app: %v", err)
	}
	return a
}

// CreateWorkspace creates a directory under the allowed root.
func (e *TestEnv) CreateWorkspace(name string) string {
	e.T.Helper()

	path := filepath.Join(e.Root, name)
	if err := os.MkdirAll(path, 0o755); err != nil {
		e.T.Fatalf("Failed to create workspace: %v", err)
	}
	return path
}

// AddSandbox puts a labeled container for alias straight into the engine.
func (e *TestEnv) AddSandbox(alias, state string, hostPort int) {
	e.T.Helper()
	e.Runtime.AddContainer(&runtime.Container{
		Name:   config.ContainerPrefix + alias,
		Image:  TestImage,
		State:  state,
		Labels: e.Config.Labels(),
		Ports: []runtime.PortBinding{{
			ContainerPort: config.ContainerSSHPort,
			Protocol:      "tcp",
			HostIP:        config.DefaultSSHHost,
			HostPort:      hostPort,
		}},
		Mounts: []runtime.Mount{{
			Type:        "bind",
			Source:      e.CreateWorkspace(alias),
			Destination: config.DefaultWorkspaceDir,
			ReadWrite:   true,
		}},
		Created: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	})
}

// SSHConfig returns the current ssh config contents, or "" if missing.
func (e *TestEnv) SSHConfig() string {
	e.T.Helper()
	data, err := os.ReadFile(e.Config.SSHConfigPath)
	if err != nil && !os.IsNotExist(err) {
		e.T.Fatalf("Failed to read ssh config: %v", err)
	}
	return string(data)
}

// WriteSSHConfig replaces the ssh config file.
func (e *TestEnv) WriteSSHConfig(content string) {
	e.T.Helper()
	if err := os.MkdirAll(filepath.Dir(e.Config.SSHConfigPath), 0o700); err != nil {
		e.T.Fatal(err)
	}
	if err := os.WriteFile(e.Config.SSHConfigPath, []byte(content), 0o600); err != nil {
		e.T.Fatal(err)
	}
}
