package integration

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/BHPAV/dev-container-launcher/internal/app"
	"github.com/BHPAV/dev-container-launcher/internal/config"
	"github.com/BHPAV/dev-container-launcher/internal/engine"
	"github.com/BHPAV/dev-container-launcher/internal/errors"
	"github.com/BHPAV/dev-container-launcher/internal/lifecycle"
	"github.com/BHPAV/dev-container-launcher/internal/ssh"
)

// Environment switches for the integration suite.
const (
	EnvEnabled   = "DEVCONTAINER_INTEGRATION_TESTS"
	EnvTestImage = "DEVCONTAINER_TEST_IMAGE"
)

// Enabled reports whether integration tests were requested.
func Enabled() bool {
	return os.Getenv(EnvEnabled) == "1"
}

// TestImage returns the image sandboxes are created from.
func TestImage() string {
	if img := os.Getenv(EnvTestImage); img != "" {
		return img
	}
	return config.DefaultImage
}

// Harness wires an App to the real engine inside a temporary HOME.
type Harness struct {
	t       *testing.T
	home    string
	root    string
	cfg     *config.Config
	app     *app.App
	aliases []string
}

// NewHarness creates a harness, skipping the test when integration tests
// are disabled or no usable engine or image is present.
func NewHarness(t *testing.T) *Harness {
	t.Helper()

	if !Enabled() {
		t.Skipf("integration tests disabled (set %s=1 to enable)", EnvEnabled)
	}

	home, err := filepath.EvalSymlinks(t.TempDir())
	if err != nil {
		t.Fatalf("Failed to resolve temp dir: %v", err)
	}
	root := filepath.Join(home, "workspaces")
	if err := os.MkdirAll(root, 0o755); err != nil {
		t.Fatalf("Failed to create workspace root: %v", err)
	}

	cfg := config.Default(home)
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		t.Fatalf("Invalid environment: %v", err)
	}
	cfg.Image = TestImage()
	cfg.AllowedPaths = []string{root}
	cfg.LogFile = ""
	cfg.PollInterval = config.Duration{Duration: 200 * time.Millisecond}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	a, err := app.New(ctx, cfg)
	if err != nil {
		t.Skipf("no container engine available: %v", err)
	}
	if ok, err := a.Runtime.ImageExists(ctx, cfg.Image); err != nil || !ok {
		a.Close()
		t.Skipf("test image %s not available (err=%v)", cfg.Image, err)
	}

	h := &Harness{t: t, home: home, root: root, cfg: cfg, app: a}
	t.Cleanup(h.Cleanup)
	return h
}

// App returns the wired application.
func (h *Harness) App() *app.App {
	return h.app
}

// Manager returns the lifecycle manager.
func (h *Harness) Manager() *lifecycle.Manager {
	return h.app.Manager
}

// Config returns the harness configuration.
func (h *Harness) Config() *config.Config {
	return h.cfg
}

// Alias returns a fresh alias that cannot collide with the user's
// sandboxes or other test runs.
func (h *Harness) Alias() string {
	return "itest-" + uuid.NewString()[:8]
}

// CreateWorkspace creates a workspace directory with a marker file.
func (h *Harness) CreateWorkspace(name string) string {
	h.t.Helper()

	path := filepath.Join(h.root, name)
	if err := os.MkdirAll(path, 0o755); err != nil {
		h.t.Fatalf("Failed to create workspace: %v", err)
	}
	if err := os.WriteFile(filepath.Join(path, "README.md"), []byte("# Test Workspace\n"), 0o644); err != nil {
		h.t.Fatalf("Failed to create test file: %v", err)
	}
	return path
}

// Create creates a sandbox over a fresh workspace and tracks it for
// cleanup.
func (h *Harness) Create(ctx context.Context, alias string) *lifecycle.CreateResult {
	h.t.Helper()

	h.aliases = append(h.aliases, alias)
	res, err := h.Manager().CreateSandbox(ctx, lifecycle.CreateRequest{
		Alias:     alias,
		Workspace: h.CreateWorkspace(alias),
	})
	if err != nil {
		h.t.Fatalf("CreateSandbox(%s): %v", alias, err)
	}
	return res
}

// WaitForSSH waits until the sandbox's published port accepts connections.
func (h *Harness) WaitForSSH(port int, timeout time.Duration) error {
	return ssh.WaitForPort(context.Background(), h.cfg.SSHHost, port, timeout)
}

// SSHConfig returns the harness's ssh config contents.
func (h *Harness) SSHConfig() string {
	data, err := os.ReadFile(h.cfg.SSHConfigPath)
	if err != nil {
		return ""
	}
	return string(data)
}

// Status returns the engine status for alias, or StatusAbsent.
func (h *Harness) Status(ctx context.Context, alias string) engine.Status {
	sb, err := h.Manager().GetSandboxInfo(ctx, alias)
	if err != nil {
		return engine.StatusAbsent
	}
	return sb.Status
}

// Cleanup force-removes every tracked sandbox and closes the engine.
func (h *Harness) Cleanup() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	for _, alias := range h.aliases {
		if _, err := h.Manager().RemoveSandbox(ctx, alias, true); err != nil && !errors.IsKind(err, errors.KindNotFound) {
			h.t.Logf("Warning: failed to remove sandbox %s: %v", alias, err)
		}
	}
	h.aliases = nil
	if err := h.app.Close(); err != nil {
		h.t.Logf("Warning: failed to close runtime: %v", err)
	}
}
