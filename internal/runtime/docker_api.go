package runtime

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/filters"
	"github.com/docker/docker/client"
	"github.com/docker/docker/errdefs"
	"github.com/docker/docker/pkg/archive"
	"github.com/docker/docker/pkg/jsonmessage"
	"github.com/docker/docker/pkg/stdcopy"
	"github.com/docker/go-connections/nat"

	"github.com/BHPAV/dev-container-launcher/internal/logging"
)

// pingTimeout bounds the daemon probe in NewDockerAPI.
const pingTimeout = 3 * time.Second

// DockerAPI implements Runtime against the Docker Engine API.
type DockerAPI struct {
	cli *client.Client
}

// NewDockerAPI connects to the daemon (DOCKER_HOST or host) and pings it.
func NewDockerAPI(ctx context.Context, host string) (*DockerAPI, error) {
	opts := []client.Opt{client.FromEnv, client.WithAPIVersionNegotiation()}
	if host != "" {
		opts = append(opts, client.WithHost(host))
	}

	cli, err := client.NewClientWithOpts(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create docker client: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if _, err := cli.Ping(pingCtx); err != nil {
		cli.Close()
		return nil, fmt.Errorf("docker daemon not reachable: %w", err)
	}

	logging.Debug("connected to docker engine API", "host", cli.DaemonHost(), "version", cli.ClientVersion())
	return &DockerAPI{cli: cli}, nil
}

// Name returns the runtime identifier
func (r *DockerAPI) Name() string {
	return "docker-api"
}

// List returns all containers carrying labels
func (r *DockerAPI) List(ctx context.Context, labels map[string]string) ([]*Container, error) {
	args := filters.NewArgs()
	for k, v := range labels {
		args.Add("label", k+"="+v)
	}

	summaries, err := r.cli.ContainerList(ctx, container.ListOptions{All: true, Filters: args})
	if err != nil {
		return nil, err
	}

	// Summaries omit the ports of stopped containers, so each one is
	// inspected.
	containers := make([]*Container, 0, len(summaries))
	for _, s := range summaries {
		info, err := r.cli.ContainerInspect(ctx, s.ID)
		if err != nil {
			if client.IsErrNotFound(err) {
				continue
			}
			return nil, err
		}
		containers = append(containers, fromInspect(info))
	}
	return containers, nil
}

// Inspect returns one container
func (r *DockerAPI) Inspect(ctx context.Context, name string) (*Container, error) {
	info, err := r.cli.ContainerInspect(ctx, name)
	if err != nil {
		if client.IsErrNotFound(err) {
			return nil, ErrContainerNotFound
		}
		return nil, err
	}
	return fromInspect(info), nil
}

// ImageExists reports whether the image is present locally
func (r *DockerAPI) ImageExists(ctx context.Context, image string) (bool, error) {
	_, _, err := r.cli.ImageInspectWithRaw(ctx, image)
	if err == nil {
		return true, nil
	}
	if client.IsErrNotFound(err) {
		return false, nil
	}
	return false, err
}

// Create creates a new container
func (r *DockerAPI) Create(ctx context.Context, opts CreateOptions) (string, error) {
	exposed, bindings, err := portSpecs(opts.Ports)
	if err != nil {
		return "", err
	}

	binds := make([]string, 0, len(opts.Mounts))
	for _, m := range opts.Mounts {
		mode := "rw"
		if !m.ReadWrite {
			mode = "ro"
		}
		binds = append(binds, fmt.Sprintf("%s:%s:%s", m.Source, m.Destination, mode))
	}

	cfg := &container.Config{
		Image:        opts.Image,
		Labels:       opts.Labels,
		ExposedPorts: exposed,
		WorkingDir:   opts.WorkingDir,
		Tty:          opts.TTY,
	}
	hostCfg := &container.HostConfig{
		PortBindings: bindings,
		Binds:        binds,
	}

	logging.Debug("creating container", "name", opts.Name, "image", opts.Image, "runtime", r.Name())
	resp, err := r.cli.ContainerCreate(ctx, cfg, hostCfg, nil, nil, opts.Name)
	if err != nil {
		if errdefs.IsConflict(err) {
			return "", fmt.Errorf("%w: %v", ErrNameConflict, err)
		}
		return "", err
	}
	for _, w := range resp.Warnings {
		logging.Warn("engine warning", "container", opts.Name, "warning", w)
	}
	return resp.ID, nil
}

// Start starts an existing container
func (r *DockerAPI) Start(ctx context.Context, name string) error {
	logging.Debug("starting container", "container", name)

	err := r.cli.ContainerStart(ctx, name, container.StartOptions{})
	switch {
	case err == nil:
		return nil
	case client.IsErrNotFound(err):
		return fmt.Errorf("%w: %v", ErrContainerNotFound, err)
	case isPortInUseMessage(err.Error()):
		return fmt.Errorf("%w: %v", ErrPortInUse, err)
	}
	return err
}

// Stop stops a running container
func (r *DockerAPI) Stop(ctx context.Context, name string, timeout time.Duration) error {
	logging.Debug("stopping container", "container", name)

	secs := int(timeout.Seconds())
	err := r.cli.ContainerStop(ctx, name, container.StopOptions{Timeout: &secs})
	if err != nil && client.IsErrNotFound(err) {
		return fmt.Errorf("%w: %v", ErrContainerNotFound, err)
	}
	return err
}

// Remove removes a container
func (r *DockerAPI) Remove(ctx context.Context, name string, force bool) error {
	logging.Debug("removing container", "container", name, "force", force)

	err := r.cli.ContainerRemove(ctx, name, container.RemoveOptions{Force: force})
	if err != nil && client.IsErrNotFound(err) {
		return fmt.Errorf("%w: %v", ErrContainerNotFound, err)
	}
	return err
}

// Exec runs command in the container and collects its output
func (r *DockerAPI) Exec(ctx context.Context, name string, command []string) (*ExecResult, error) {
	execResp, err := r.cli.ContainerExecCreate(ctx, name, container.ExecOptions{
		Cmd:          command,
		AttachStdout: true,
		AttachStderr: true,
	})
	if err != nil {
		if client.IsErrNotFound(err) {
			return nil, fmt.Errorf("%w: %v", ErrContainerNotFound, err)
		}
		return nil, fmt.Errorf("exec create failed: %w", err)
	}

	attach, err := r.cli.ContainerExecAttach(ctx, execResp.ID, container.ExecAttachOptions{})
	if err != nil {
		return nil, fmt.Errorf("exec attach failed: %w", err)
	}
	defer attach.Close()

	var stdout, stderr bytes.Buffer
	if _, err := stdcopy.StdCopy(&stdout, &stderr, attach.Reader); err != nil {
		return nil, fmt.Errorf("exec read failed: %w", err)
	}

	inspect, err := r.cli.ContainerExecInspect(ctx, execResp.ID)
	if err != nil {
		return nil, fmt.Errorf("exec inspect failed: %w", err)
	}

	return &ExecResult{
		ExitCode: inspect.ExitCode,
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
	}, nil
}

// Build tars opts.ContextDir and builds it, streaming progress to opts.Output
func (r *DockerAPI) Build(ctx context.Context, opts BuildOptions) error {
	buildCtx, err := archive.TarWithOptions(opts.ContextDir, &archive.TarOptions{})
	if err != nil {
		return fmt.Errorf("failed to archive build context: %w", err)
	}
	defer buildCtx.Close()

	resp, err := r.cli.ImageBuild(ctx, buildCtx, types.ImageBuildOptions{
		Tags:       []string{opts.Tag},
		Dockerfile: opts.Dockerfile,
		Remove:     true,
	})
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	out := opts.Output
	if out == nil {
		out = io.Discard
	}
	return jsonmessage.DisplayJSONMessagesStream(resp.Body, out, 0, false, nil)
}

// Close releases the API client
func (r *DockerAPI) Close() error {
	return r.cli.Close()
}

func portSpecs(ports []PortBinding) (nat.PortSet, nat.PortMap, error) {
	exposed := nat.PortSet{}
	bindings := nat.PortMap{}
	for _, p := range ports {
		proto := p.Protocol
		if proto == "" {
			proto = "tcp"
		}
		port, err := nat.NewPort(proto, strconv.Itoa(p.ContainerPort))
		if err != nil {
			return nil, nil, fmt.Errorf("invalid container port %d: %w", p.ContainerPort, err)
		}
		exposed[port] = struct{}{}
		bindings[port] = append(bindings[port], nat.PortBinding{
			HostIP:   p.HostIP,
			HostPort: strconv.Itoa(p.HostPort),
		})
	}
	return exposed, bindings, nil
}

func fromInspect(info types.ContainerJSON) *Container {
	c := &Container{}
	if base := info.ContainerJSONBase; base != nil {
		c.ID = base.ID
		c.Name = strings.TrimPrefix(base.Name, "/")
		if t, err := time.Parse(time.RFC3339Nano, base.Created); err == nil {
			c.Created = t
		}
		if base.State != nil {
			c.State = base.State.Status
		}
	}
	if info.Config != nil {
		c.Image = info.Config.Image
		c.Labels = info.Config.Labels
	}
	if info.NetworkSettings != nil {
		c.Ports = portBindings(info.NetworkSettings.Ports)
	}
	// Stopped containers publish nothing; the configured bindings still
	// hold their host port.
	if len(c.Ports) == 0 && info.ContainerJSONBase != nil && info.HostConfig != nil {
		c.Ports = portBindings(info.HostConfig.PortBindings)
	}
	for _, m := range info.Mounts {
		c.Mounts = append(c.Mounts, Mount{
			Type:        string(m.Type),
			Source:      m.Source,
			Destination: m.Destination,
			ReadWrite:   m.RW,
		})
	}
	return c
}

var _ Runtime = (*DockerAPI)(nil)

func portBindings(pm nat.PortMap) []PortBinding {
	var out []PortBinding
	for port, bindings := range pm {
		for _, b := range bindings {
			hostPort, _ := strconv.Atoi(b.HostPort)
			if hostPort == 0 {
				continue
			}
			out = append(out, PortBinding{
				ContainerPort: port.Int(),
				Protocol:      port.Proto(),
				HostIP:        b.HostIP,
				HostPort:      hostPort,
			})
		}
	}
	return out
}
