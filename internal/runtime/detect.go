package runtime

import (
	"context"
	"fmt"

	"github.com/BHPAV/dev-container-launcher/internal/logging"
	"github.com/BHPAV/dev-container-launcher/internal/system"
)

// RuntimeType identifies which container runtime to use
type RuntimeType string

const (
	RuntimeAPI    RuntimeType = "api"
	RuntimeDocker RuntimeType = "docker"
	RuntimePodman RuntimeType = "podman"
	RuntimeAuto   RuntimeType = "auto"
)

// Config holds runtime configuration
type Config struct {
	// Type specifies which runtime to use (or "auto" for auto-detection)
	Type RuntimeType

	// DockerHost overrides DOCKER_HOST for the API backend
	DockerHost string

	// Executor runs CLI commands; nil uses the real OS
	Executor system.CommandExecutor
}

// DefaultConfig returns the default runtime configuration
func DefaultConfig() *Config {
	return &Config{Type: RuntimeAuto}
}

// connectAPI is swapped in tests to avoid dialing a daemon.
var connectAPI = func(ctx context.Context, host string) (Runtime, error) {
	return NewDockerAPI(ctx, host)
}

// DetectCLI returns the first engine CLI found in PATH.
func DetectCLI(executor system.CommandExecutor) (RuntimeType, error) {
	if executor == nil {
		executor = system.DefaultExecutor()
	}

	// Try podman first (preferred for rootless)
	if _, err := executor.LookPath("podman"); err == nil {
		logging.Debug("detected podman")
		return RuntimePodman, nil
	}

	if _, err := executor.LookPath("docker"); err == nil {
		logging.Debug("detected docker")
		return RuntimeDocker, nil
	}

	return "", fmt.Errorf("no supported container runtime found (tried: docker API, podman, docker)")
}

// New creates a new Runtime based on the configuration.
// With RuntimeAuto the Engine API is used when the daemon answers a ping,
// otherwise the podman or docker CLI.
func New(ctx context.Context, cfg *Config) (Runtime, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	switch cfg.Type {
	case RuntimeAPI:
		return connectAPI(ctx, cfg.DockerHost)

	case RuntimeDocker, RuntimePodman:
		logging.Debug("creating runtime", "type", cfg.Type)
		return NewDockerRuntime(string(cfg.Type), cfg.Executor), nil

	case RuntimeAuto, "":
		rt, err := connectAPI(ctx, cfg.DockerHost)
		if err == nil {
			return rt, nil
		}
		logging.Debug("engine API unavailable, falling back to CLI", "error", err)

		detected, derr := DetectCLI(cfg.Executor)
		if derr != nil {
			return nil, fmt.Errorf("%w (API: %v)", derr, err)
		}
		return NewDockerRuntime(string(detected), cfg.Executor), nil

	default:
		return nil, fmt.Errorf("unknown runtime type: %s", cfg.Type)
	}
}

// Available returns the runtimes usable on this system.
func Available(ctx context.Context, executor system.CommandExecutor) []RuntimeType {
	if executor == nil {
		executor = system.DefaultExecutor()
	}

	var available []RuntimeType
	if rt, err := connectAPI(ctx, ""); err == nil {
		rt.Close()
		available = append(available, RuntimeAPI)
	}
	if _, err := executor.LookPath("podman"); err == nil {
		available = append(available, RuntimePodman)
	}
	if _, err := executor.LookPath("docker"); err == nil {
		available = append(available, RuntimeDocker)
	}
	return available
}
