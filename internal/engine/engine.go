// Package engine is the sandbox-level client over a container runtime.
//
// It owns the mapping between user aliases and engine objects: the fixed
// name prefix, the ownership label, the published SSH port and the
// workspace bind mount. Every operation keys the engine by prefix+alias.
package engine

import (
	"context"
	stderrors "errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"golang.org/x/crypto/ssh"

	"github.com/BHPAV/dev-container-launcher/internal/config"
	"github.com/BHPAV/dev-container-launcher/internal/errors"
	"github.com/BHPAV/dev-container-launcher/internal/logging"
	"github.com/BHPAV/dev-container-launcher/internal/port"
	"github.com/BHPAV/dev-container-launcher/internal/runtime"
	"github.com/BHPAV/dev-container-launcher/internal/validate"
)

// hostKeyPath is the sandbox's ed25519 SSH host public key.
const hostKeyPath = "/etc/ssh/ssh_host_ed25519_key.pub"

// PortAllocator returns a free host port not in exclude.
type PortAllocator interface {
	Allocate(exclude map[int]bool) (int, error)
}

// Options configures a Client.
type Options struct {
	Prefix        string
	Labels        map[string]string
	ContainerPort int
	PublishHost   string
	WorkspaceDir  string
	WorkingDir    string
	StopTimeout   time.Duration
}

// OptionsFromConfig derives client options from the loaded configuration.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		Prefix:        config.ContainerPrefix,
		Labels:        cfg.Labels(),
		ContainerPort: config.ContainerSSHPort,
		PublishHost:   cfg.SSHHost,
		WorkspaceDir:  cfg.WorkspaceDir,
		WorkingDir:    cfg.WorkingDir,
		StopTimeout:   cfg.StopTimeout.Duration,
	}
}

// Client implements sandbox operations on top of a runtime.Runtime.
type Client struct {
	rt    runtime.Runtime
	v     *validate.Validator
	ports PortAllocator
	opts  Options
}

// New creates a Client. A nil allocator binds on opts.PublishHost.
func New(rt runtime.Runtime, v *validate.Validator, ports PortAllocator, opts Options) *Client {
	if opts.Prefix == "" {
		opts.Prefix = config.ContainerPrefix
	}
	if opts.Labels == nil {
		opts.Labels = map[string]string{config.LabelKey: config.LabelValue}
	}
	if opts.ContainerPort == 0 {
		opts.ContainerPort = config.ContainerSSHPort
	}
	if opts.PublishHost == "" {
		opts.PublishHost = config.DefaultSSHHost
	}
	if opts.WorkspaceDir == "" {
		opts.WorkspaceDir = config.DefaultWorkspaceDir
	}
	if opts.StopTimeout == 0 {
		opts.StopTimeout = config.DefaultStopTimeout
	}
	if ports == nil {
		ports = port.NewAllocator(opts.PublishHost)
	}
	return &Client{rt: rt, v: v, ports: ports, opts: opts}
}

// Runtime returns the underlying runtime.
func (c *Client) Runtime() runtime.Runtime {
	return c.rt
}

// EngineName returns the engine container name for alias.
func (c *Client) EngineName(alias string) string {
	return c.opts.Prefix + alias
}

func (c *Client) toSandbox(ctr *runtime.Container) Sandbox {
	sb := Sandbox{
		Alias:       strings.TrimPrefix(ctr.Name, c.opts.Prefix),
		EngineName:  ctr.Name,
		ID:          ctr.ID,
		Image:       ctr.Image,
		HostPort:    ctr.HostPort(c.opts.ContainerPort),
		Status:      StatusFromState(ctr.State),
		EngineState: ctr.State,
		Labels:      ctr.Labels,
		Mounts:      ctr.Mounts,
		CreatedAt:   ctr.Created,
	}
	for _, m := range ctr.Mounts {
		if m.Destination == c.opts.WorkspaceDir {
			sb.WorkspacePath = m.Source
			break
		}
	}
	return sb
}

// List returns every sandbox carrying the ownership label, in any state,
// sorted by alias. Zero sandboxes is an empty slice, not an error.
func (c *Client) List(ctx context.Context) ([]Sandbox, error) {
	containers, err := c.rt.List(ctx, c.opts.Labels)
	if err != nil {
		return nil, errors.Engine("list", err)
	}

	sandboxes := make([]Sandbox, 0, len(containers))
	for _, ctr := range containers {
		sandboxes = append(sandboxes, c.toSandbox(ctr))
	}
	sort.Slice(sandboxes, func(i, j int) bool { return sandboxes[i].Alias < sandboxes[j].Alias })
	return sandboxes, nil
}

// Inspect returns the sandbox for alias, or a NotFound error.
func (c *Client) Inspect(ctx context.Context, alias string) (*Sandbox, error) {
	if err := c.v.ValidateAlias(alias); err != nil {
		return nil, err
	}

	ctr, err := c.rt.Inspect(ctx, c.EngineName(alias))
	if err != nil {
		if stderrors.Is(err, runtime.ErrContainerNotFound) {
			return nil, errors.SandboxNotFound(alias)
		}
		return nil, errors.Engine("inspect", err)
	}
	if !c.owned(ctr) {
		return nil, errors.SandboxNotFound(alias)
	}

	sb := c.toSandbox(ctr)
	return &sb, nil
}

// owned reports whether ctr carries the ownership label.
func (c *Client) owned(ctr *runtime.Container) bool {
	for k, v := range c.opts.Labels {
		if ctr.Labels[k] != v {
			return false
		}
	}
	return true
}

// CreateRequest describes a new sandbox.
type CreateRequest struct {
	Alias     string
	Image     string
	Workspace string
}

// Create validates the request, checks for a name conflict and the image,
// allocates a host port, then creates and starts the container. The
// workspace path is sanitized before use. A port claimed by someone else
// before start removes the new container and returns a retryable error.
func (c *Client) Create(ctx context.Context, req CreateRequest) (*Sandbox, int, error) {
	if err := c.v.ValidateAlias(req.Alias); err != nil {
		return nil, 0, err
	}
	workspace := validate.SanitizePath(req.Workspace)
	if err := c.v.ValidateVolumePath(workspace); err != nil {
		return nil, 0, err
	}
	if req.Image == "" {
		return nil, 0, errors.Validation("image cannot be empty")
	}

	name := c.EngineName(req.Alias)
	log := logging.With("alias", req.Alias, "container", name)

	switch _, err := c.rt.Inspect(ctx, name); {
	case err == nil:
		return nil, 0, errors.Conflict(fmt.Sprintf("sandbox %s already exists", req.Alias))
	case !stderrors.Is(err, runtime.ErrContainerNotFound):
		return nil, 0, errors.Engine("inspect", err)
	}

	exists, err := c.rt.ImageExists(ctx, req.Image)
	if err != nil {
		return nil, 0, errors.Engine("image inspect", err)
	}
	if !exists {
		return nil, 0, errors.ImageNotFound(req.Image)
	}

	hostPort, err := c.ports.Allocate(c.publishedPorts(ctx))
	if err != nil {
		return nil, 0, errors.PortAllocationFailed(err)
	}

	log.Debug("creating sandbox", "image", req.Image, "port", hostPort, "workspace", workspace)
	_, err = c.rt.Create(ctx, runtime.CreateOptions{
		Name:   name,
		Image:  req.Image,
		Labels: c.opts.Labels,
		Ports: []runtime.PortBinding{{
			ContainerPort: c.opts.ContainerPort,
			Protocol:      "tcp",
			HostIP:        c.opts.PublishHost,
			HostPort:      hostPort,
		}},
		Mounts: []runtime.Mount{{
			Type:        "bind",
			Source:      workspace,
			Destination: c.opts.WorkspaceDir,
			ReadWrite:   true,
		}},
		WorkingDir: c.opts.WorkingDir,
		TTY:        true,
	})
	if err != nil {
		if stderrors.Is(err, runtime.ErrNameConflict) {
			return nil, 0, errors.Conflict(fmt.Sprintf("sandbox %s already exists", req.Alias))
		}
		return nil, 0, errors.Engine("create", err)
	}

	if err := c.rt.Start(ctx, name); err != nil {
		// A container that never started is not a sandbox yet.
		if rmErr := c.rt.Remove(ctx, name, true); rmErr != nil {
			log.Warn("failed to remove unstarted container", "error", rmErr)
		}
		if stderrors.Is(err, runtime.ErrPortInUse) {
			return nil, 0, errors.PortConflict(hostPort, err)
		}
		return nil, 0, errors.Engine("start", err)
	}

	sb, err := c.Inspect(ctx, req.Alias)
	if err != nil {
		return nil, 0, err
	}
	log.Info("sandbox created", "port", hostPort, "image", req.Image)
	return sb, hostPort, nil
}

// publishedPorts returns host ports held by existing sandboxes, including
// stopped ones whose sockets are not bound.
func (c *Client) publishedPorts(ctx context.Context) map[int]bool {
	used := make(map[int]bool)
	sandboxes, err := c.List(ctx)
	if err != nil {
		logging.Debug("could not list sandboxes for port exclusion", "error", err)
		return used
	}
	for _, sb := range sandboxes {
		if sb.HostPort != 0 {
			used[sb.HostPort] = true
		}
	}
	return used
}

// Start starts a sandbox. Starting a running sandbox is a no-op and
// returns false.
func (c *Client) Start(ctx context.Context, alias string) (bool, error) {
	sb, err := c.Inspect(ctx, alias)
	if err != nil {
		return false, err
	}
	if sb.IsRunning() {
		logging.Debug("sandbox already running", "alias", alias)
		return false, nil
	}

	if err := c.rt.Start(ctx, sb.EngineName); err != nil {
		if stderrors.Is(err, runtime.ErrPortInUse) {
			return false, errors.PortConflict(sb.HostPort, err)
		}
		return false, errors.Engine("start", err)
	}
	return true, nil
}

// Stop stops a sandbox. Stopping a sandbox that is not running is a no-op
// and returns false.
func (c *Client) Stop(ctx context.Context, alias string) (bool, error) {
	sb, err := c.Inspect(ctx, alias)
	if err != nil {
		return false, err
	}
	if !sb.IsRunning() {
		logging.Debug("sandbox not running", "alias", alias, "status", sb.Status)
		return false, nil
	}

	if err := c.rt.Stop(ctx, sb.EngineName, c.opts.StopTimeout); err != nil {
		return false, errors.Engine("stop", err)
	}
	return true, nil
}

// Remove deletes the sandbox container. With force a running sandbox is
// killed first.
func (c *Client) Remove(ctx context.Context, alias string, force bool) error {
	sb, err := c.Inspect(ctx, alias)
	if err != nil {
		return err
	}

	if err := c.rt.Remove(ctx, sb.EngineName, force); err != nil {
		if stderrors.Is(err, runtime.ErrContainerNotFound) {
			return errors.SandboxNotFound(alias)
		}
		return errors.Engine("remove", err)
	}
	return nil
}

// HostKey reads the sandbox's SSH host public key with an engine exec.
// The alias is only used to form the container name, never a shell.
func (c *Client) HostKey(ctx context.Context, alias string) (ssh.PublicKey, error) {
	if err := c.v.ValidateAlias(alias); err != nil {
		return nil, err
	}

	res, err := c.rt.Exec(ctx, c.EngineName(alias), []string{"cat", hostKeyPath})
	if err != nil {
		return nil, errors.Engine("exec", err)
	}
	if res.ExitCode != 0 {
		return nil, errors.Engine("exec", fmt.Errorf("cat %s exited %d: %s", hostKeyPath, res.ExitCode, strings.TrimSpace(res.Stderr)))
	}

	key, _, _, _, err := ssh.ParseAuthorizedKey([]byte(res.Stdout))
	if err != nil {
		return nil, errors.Engine("parse host key", err)
	}
	return key, nil
}

// Build builds an image through the engine.
func (c *Client) Build(ctx context.Context, opts runtime.BuildOptions) error {
	if opts.Tag == "" {
		return errors.Validation("image tag cannot be empty")
	}
	if opts.ContextDir == "" {
		opts.ContextDir = "."
	}
	if err := c.rt.Build(ctx, opts); err != nil {
		return errors.Engine("build", err)
	}
	return nil
}
