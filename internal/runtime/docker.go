package runtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/kballard/go-shellquote"

	"github.com/BHPAV/dev-container-launcher/internal/logging"
	"github.com/BHPAV/dev-container-launcher/internal/system"
)

// DockerRuntime implements the Runtime interface by driving the docker or
// podman CLI.
type DockerRuntime struct {
	// Command is the container command to use (docker or podman)
	Command string

	exec system.CommandExecutor
}

// NewDockerRuntime creates a CLI runtime for command ("docker" or "podman").
// A nil executor uses the real OS.
func NewDockerRuntime(command string, executor system.CommandExecutor) *DockerRuntime {
	if executor == nil {
		executor = system.DefaultExecutor()
	}
	return &DockerRuntime{Command: command, exec: executor}
}

// Name returns the runtime identifier
func (r *DockerRuntime) Name() string {
	return r.Command
}

// runCmd executes a docker/podman command and returns stdout
func (r *DockerRuntime) runCmd(ctx context.Context, args ...string) (string, error) {
	logging.Debug("engine command", "cmd", shellquote.Join(append([]string{r.Command}, args...)...))

	out, err := r.exec.Execute(ctx, r.Command, args...)
	if err != nil {
		return string(out), fmt.Errorf("%s %s failed: %w", r.Command, args[0], err)
	}
	return string(out), nil
}

// stderrOf extracts engine stderr from a runCmd error.
func stderrOf(err error) string {
	var exitErr *system.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Stderr
	}
	return err.Error()
}

func isNotFoundMessage(msg string) bool {
	msg = strings.ToLower(msg)
	return strings.Contains(msg, "no such") ||
		strings.Contains(msg, "not known") ||
		strings.Contains(msg, "not found")
}

// dockerInspect holds the relevant fields from docker inspect
type dockerInspect struct {
	ID      string `json:"Id"`
	Name    string `json:"Name"`
	Created string `json:"Created"`
	State   struct {
		Status string `json:"Status"`
	} `json:"State"`
	Config struct {
		Image  string            `json:"Image"`
		Labels map[string]string `json:"Labels"`
	} `json:"Config"`
	HostConfig struct {
		PortBindings inspectPorts `json:"PortBindings"`
	} `json:"HostConfig"`
	NetworkSettings struct {
		Ports inspectPorts `json:"Ports"`
	} `json:"NetworkSettings"`
	Mounts []struct {
		Type        string `json:"Type"`
		Source      string `json:"Source"`
		Destination string `json:"Destination"`
		RW          bool   `json:"RW"`
	} `json:"Mounts"`
}

// inspectPorts maps "22/tcp" to its host bindings.
type inspectPorts map[string][]struct {
	HostIP   string `json:"HostIp"`
	HostPort string `json:"HostPort"`
}

// bindings returns the published ports, skipping unpublished ones.
func (p inspectPorts) bindings() []PortBinding {
	var out []PortBinding
	for spec, bindings := range p {
		portStr, proto, _ := strings.Cut(spec, "/")
		containerPort, err := strconv.Atoi(portStr)
		if err != nil {
			continue
		}
		for _, b := range bindings {
			hostPort, _ := strconv.Atoi(b.HostPort)
			if hostPort == 0 {
				continue
			}
			out = append(out, PortBinding{
				ContainerPort: containerPort,
				Protocol:      proto,
				HostIP:        b.HostIP,
				HostPort:      hostPort,
			})
		}
	}
	return out
}

func (d *dockerInspect) container() *Container {
	c := &Container{
		ID:     d.ID,
		Name:   strings.TrimPrefix(d.Name, "/"),
		Image:  d.Config.Image,
		State:  d.State.Status,
		Labels: d.Config.Labels,
	}
	if t, err := time.Parse(time.RFC3339Nano, d.Created); err == nil {
		c.Created = t
	}
	// NetworkSettings only lists ports while the container runs; the
	// configured bindings hold them for its whole lifetime.
	c.Ports = d.NetworkSettings.Ports.bindings()
	if len(c.Ports) == 0 {
		c.Ports = d.HostConfig.PortBindings.bindings()
	}
	for _, m := range d.Mounts {
		c.Mounts = append(c.Mounts, Mount{
			Type:        m.Type,
			Source:      m.Source,
			Destination: m.Destination,
			ReadWrite:   m.RW,
		})
	}
	return c
}

func parseInspect(output string) ([]*Container, error) {
	var inspects []dockerInspect
	if err := json.Unmarshal([]byte(output), &inspects); err != nil {
		return nil, fmt.Errorf("failed to parse inspect output: %w", err)
	}
	containers := make([]*Container, 0, len(inspects))
	for i := range inspects {
		containers = append(containers, inspects[i].container())
	}
	return containers, nil
}

// List returns all containers carrying labels
func (r *DockerRuntime) List(ctx context.Context, labels map[string]string) ([]*Container, error) {
	args := []string{"ps", "-a", "-q", "--no-trunc"}
	for k, v := range labels {
		args = append(args, "--filter", fmt.Sprintf("label=%s=%s", k, v))
	}

	output, err := r.runCmd(ctx, args...)
	if err != nil {
		return nil, err
	}

	ids := strings.Fields(output)
	if len(ids) == 0 {
		return []*Container{}, nil
	}

	output, err = r.runCmd(ctx, append([]string{"inspect"}, ids...)...)
	if err != nil && strings.TrimSpace(output) == "" {
		// A container removed between ps and inspect fails the whole call
		// only when nothing else was printed.
		return nil, err
	}

	containers, err := parseInspect(output)
	if err != nil {
		return nil, err
	}

	// podman ignores some filter combinations; re-check.
	filtered := containers[:0]
	for _, c := range containers {
		if labelsMatch(c.Labels, labels) {
			filtered = append(filtered, c)
		}
	}
	return filtered, nil
}

// Inspect returns one container
func (r *DockerRuntime) Inspect(ctx context.Context, name string) (*Container, error) {
	output, err := r.runCmd(ctx, "container", "inspect", name)
	if err != nil {
		if isNotFoundMessage(stderrOf(err)) {
			return nil, ErrContainerNotFound
		}
		return nil, err
	}

	containers, err := parseInspect(output)
	if err != nil {
		return nil, err
	}
	if len(containers) == 0 {
		return nil, ErrContainerNotFound
	}
	return containers[0], nil
}

// ImageExists reports whether the image is present locally
func (r *DockerRuntime) ImageExists(ctx context.Context, image string) (bool, error) {
	_, err := r.runCmd(ctx, "image", "inspect", "--format", "{{.Id}}", image)
	if err == nil {
		return true, nil
	}
	if isNotFoundMessage(stderrOf(err)) {
		return false, nil
	}
	return false, err
}

// Create creates a new container
func (r *DockerRuntime) Create(ctx context.Context, opts CreateOptions) (string, error) {
	logging.Debug("creating container", "name", opts.Name, "runtime", r.Command)

	args := []string{"create", "--name", opts.Name}

	for k, v := range opts.Labels {
		args = append(args, "--label", fmt.Sprintf("%s=%s", k, v))
	}

	for _, p := range opts.Ports {
		proto := p.Protocol
		if proto == "" {
			proto = "tcp"
		}
		spec := fmt.Sprintf("%d:%d/%s", p.HostPort, p.ContainerPort, proto)
		if p.HostIP != "" {
			spec = p.HostIP + ":" + spec
		}
		args = append(args, "-p", spec)
	}

	for _, m := range opts.Mounts {
		mode := "rw"
		if !m.ReadWrite {
			mode = "ro"
		}
		args = append(args, "-v", fmt.Sprintf("%s:%s:%s", m.Source, m.Destination, mode))
	}

	if opts.WorkingDir != "" {
		args = append(args, "-w", opts.WorkingDir)
	}
	if opts.TTY {
		args = append(args, "-t")
	}

	args = append(args, opts.Image)

	output, err := r.runCmd(ctx, args...)
	if err != nil {
		if strings.Contains(strings.ToLower(stderrOf(err)), "already in use") {
			return "", fmt.Errorf("%w: %v", ErrNameConflict, err)
		}
		return "", err
	}
	return strings.TrimSpace(output), nil
}

// Start starts an existing container
func (r *DockerRuntime) Start(ctx context.Context, name string) error {
	logging.Debug("starting container", "container", name)

	_, err := r.runCmd(ctx, "start", name)
	if err != nil {
		msg := stderrOf(err)
		switch {
		case isPortInUseMessage(msg):
			return fmt.Errorf("%w: %v", ErrPortInUse, err)
		case isNotFoundMessage(msg):
			return fmt.Errorf("%w: %v", ErrContainerNotFound, err)
		}
	}
	return err
}

// Stop stops a running container
func (r *DockerRuntime) Stop(ctx context.Context, name string, timeout time.Duration) error {
	logging.Debug("stopping container", "container", name)

	_, err := r.runCmd(ctx, "stop", "-t", strconv.Itoa(int(timeout.Seconds())), name)
	if err != nil && isNotFoundMessage(stderrOf(err)) {
		return fmt.Errorf("%w: %v", ErrContainerNotFound, err)
	}
	return err
}

// Remove removes a container
func (r *DockerRuntime) Remove(ctx context.Context, name string, force bool) error {
	logging.Debug("removing container", "container", name, "force", force)

	args := []string{"rm"}
	if force {
		args = append(args, "-f")
	}
	args = append(args, name)

	_, err := r.runCmd(ctx, args...)
	if err != nil && isNotFoundMessage(stderrOf(err)) {
		return fmt.Errorf("%w: %v", ErrContainerNotFound, err)
	}
	return err
}

// Exec executes a command inside a container
func (r *DockerRuntime) Exec(ctx context.Context, name string, command []string) (*ExecResult, error) {
	args := append([]string{"exec", name}, command...)
	logging.Debug("engine command", "cmd", shellquote.Join(append([]string{r.Command}, args...)...))

	out, err := r.exec.Execute(ctx, r.Command, args...)
	result := &ExecResult{Stdout: string(out)}
	if err != nil {
		var exitErr *system.ExitError
		if !errors.As(err, &exitErr) {
			return result, fmt.Errorf("exec failed: %w", err)
		}
		result.ExitCode = exitErr.ExitCode
		result.Stderr = exitErr.Stderr
	}
	return result, nil
}

// Build builds an image, streaming engine output to opts.Output
func (r *DockerRuntime) Build(ctx context.Context, opts BuildOptions) error {
	args := []string{"build", "-t", opts.Tag}
	if opts.Dockerfile != "" {
		// The engine resolves -f against its working directory, not the
		// build context.
		dockerfile := opts.Dockerfile
		if !filepath.IsAbs(dockerfile) {
			dockerfile = filepath.Join(opts.ContextDir, dockerfile)
		}
		args = append(args, "-f", dockerfile)
	}
	args = append(args, opts.ContextDir)

	out := opts.Output
	if out == nil {
		out = io.Discard
	}

	logging.Debug("engine command", "cmd", shellquote.Join(append([]string{r.Command}, args...)...))
	if err := r.exec.ExecuteStreaming(ctx, out, r.Command, args...); err != nil {
		return fmt.Errorf("%s build failed: %w", r.Command, err)
	}
	return nil
}

// Close is a no-op for the CLI backend
func (r *DockerRuntime) Close() error {
	return nil
}

var _ Runtime = (*DockerRuntime)(nil)
