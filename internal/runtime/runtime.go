package runtime

import (
	"context"
	"errors"
	"io"
	"strings"
	"time"
)

// Engine-reported container states.
const (
	StateCreated    = "created"
	StateRunning    = "running"
	StatePaused     = "paused"
	StateRestarting = "restarting"
	StateRemoving   = "removing"
	StateExited     = "exited"
	StateDead       = "dead"
)

// Sentinel errors every backend maps its native failures onto.
var (
	ErrContainerNotFound = errors.New("no such container")
	ErrNameConflict      = errors.New("container name already in use")
	ErrPortInUse         = errors.New("host port already in use")
)

// PortBinding publishes a container port on the host.
type PortBinding struct {
	ContainerPort int
	Protocol      string
	HostIP        string
	HostPort      int
}

// Mount is a volume or bind mount attached to a container.
type Mount struct {
	Type        string `json:"type" yaml:"type"`
	Source      string `json:"source" yaml:"source"`
	Destination string `json:"destination" yaml:"destination"`
	ReadWrite   bool   `json:"rw" yaml:"rw"`
}

// Container is the engine's view of one container.
type Container struct {
	ID      string
	Name    string
	Image   string
	State   string
	Labels  map[string]string
	Ports   []PortBinding
	Mounts  []Mount
	Created time.Time
}

// HostPort returns the host port published for containerPort/tcp, or 0.
func (c *Container) HostPort(containerPort int) int {
	for _, p := range c.Ports {
		if p.ContainerPort == containerPort && (p.Protocol == "" || p.Protocol == "tcp") && p.HostPort != 0 {
			return p.HostPort
		}
	}
	return 0
}

// ExecResult holds the result of executing a command in a container
type ExecResult struct {
	ExitCode int
	Stdout   string
	Stderr   string
}

// CreateOptions holds options for creating a container
type CreateOptions struct {
	Name       string
	Image      string
	Labels     map[string]string
	Ports      []PortBinding
	Mounts     []Mount
	WorkingDir string
	TTY        bool
}

// BuildOptions holds options for building an image
type BuildOptions struct {
	ContextDir string
	Dockerfile string
	Tag        string
	Output     io.Writer
}

// Runtime is the interface that container engine backends must implement.
// All methods should be safe for concurrent use. Names are full engine
// names; backends never add prefixes.
type Runtime interface {
	// Name returns the runtime identifier (e.g., "docker-api", "podman")
	Name() string

	// List returns every container, in any state, carrying all of labels
	List(ctx context.Context, labels map[string]string) ([]*Container, error)

	// Inspect returns one container or ErrContainerNotFound
	Inspect(ctx context.Context, name string) (*Container, error)

	// ImageExists reports whether the image is present locally
	ImageExists(ctx context.Context, image string) (bool, error)

	// Create creates a container without starting it and returns its ID
	Create(ctx context.Context, opts CreateOptions) (string, error)

	// Start starts an existing container. A host port clash is ErrPortInUse.
	Start(ctx context.Context, name string) error

	// Stop stops a running container
	Stop(ctx context.Context, name string, timeout time.Duration) error

	// Remove deletes a container; force also kills a running one
	Remove(ctx context.Context, name string, force bool) error

	// Exec runs a command inside a running container without a shell
	Exec(ctx context.Context, name string, command []string) (*ExecResult, error)

	// Build builds an image from a local context directory
	Build(ctx context.Context, opts BuildOptions) error

	// Close releases backend resources
	Close() error
}

// isPortInUseMessage matches the engine messages for a host port clash.
func isPortInUseMessage(msg string) bool {
	msg = strings.ToLower(msg)
	return strings.Contains(msg, "port is already allocated") ||
		strings.Contains(msg, "address already in use") ||
		strings.Contains(msg, "bind: address in use")
}

// labelsMatch reports whether have carries every key/value in want.
func labelsMatch(have, want map[string]string) bool {
	for k, v := range want {
		if have[k] != v {
			return false
		}
	}
	return true
}
