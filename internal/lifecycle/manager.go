// Package lifecycle composes the engine client and the SSH config
// synchronizer into the public sandbox verbs and owns their ordering.
//
// Create writes the SSH entry only after the engine has created and
// started the container; a failed entry write is a warning, never a
// rollback. Remove touches the SSH config only after the engine removal
// succeeded. Start, stop, list and info never touch the SSH config.
package lifecycle

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"time"

	"github.com/BHPAV/dev-container-launcher/internal/audit"
	"github.com/BHPAV/dev-container-launcher/internal/config"
	"github.com/BHPAV/dev-container-launcher/internal/engine"
	"github.com/BHPAV/dev-container-launcher/internal/errors"
	"github.com/BHPAV/dev-container-launcher/internal/logging"
	"github.com/BHPAV/dev-container-launcher/internal/runtime"
	"github.com/BHPAV/dev-container-launcher/internal/ssh"
	"github.com/BHPAV/dev-container-launcher/internal/sshconfig"
	"github.com/BHPAV/dev-container-launcher/internal/system"
	"github.com/BHPAV/dev-container-launcher/internal/validate"
)

// Engine is the sandbox-level engine contract the Manager drives.
type Engine interface {
	List(ctx context.Context) ([]engine.Sandbox, error)
	Inspect(ctx context.Context, alias string) (*engine.Sandbox, error)
	Create(ctx context.Context, req engine.CreateRequest) (*engine.Sandbox, int, error)
	Start(ctx context.Context, alias string) (bool, error)
	Stop(ctx context.Context, alias string) (bool, error)
	Remove(ctx context.Context, alias string, force bool) error
	Build(ctx context.Context, opts runtime.BuildOptions) error
}

// SSHSync maintains the SSH client config entries.
type SSHSync interface {
	UpsertEntry(ctx context.Context, e sshconfig.Entry) (sshconfig.UpsertResult, error)
	RemoveEntry(alias string) bool
}

var (
	_ Engine  = (*engine.Client)(nil)
	_ SSHSync = (*sshconfig.Synchronizer)(nil)
)

// Options configures a Manager.
type Options struct {
	// DefaultImage is used when a CreateRequest names no image.
	DefaultImage string

	SSHUser        string
	SSHHost        string
	HostKeyPolicy  config.HostKeyPolicy
	KnownHostsFile string

	// PortRetries is how many times a create is retried after the
	// allocated host port was claimed by someone else.
	PortRetries int

	// ReadyWait bounds the post-create wait for the SSH port. Zero skips it.
	ReadyWait time.Duration

	Editor   string
	Audit    *audit.Logger
	Executor system.CommandExecutor

	// WaitForPort probes the published port; tests replace it.
	WaitForPort func(ctx context.Context, host string, port int, timeout time.Duration) error
}

// OptionsFromConfig derives Manager options from the loaded configuration.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		DefaultImage:   cfg.Image,
		SSHUser:        cfg.SSHUser,
		SSHHost:        cfg.SSHHost,
		HostKeyPolicy:  cfg.HostKeyPolicy,
		KnownHostsFile: cfg.KnownHostsPath,
		PortRetries:    cfg.PortRetries,
		ReadyWait:      cfg.SSHReadyWait.Duration,
		Editor:         cfg.Editor,
		Audit:          audit.NewLogger(cfg.StateDir),
	}
}

// Manager implements the lifecycle verbs.
type Manager struct {
	engine Engine
	sync   SSHSync
	opts   Options
}

// New creates a Manager.
func New(eng Engine, sync SSHSync, opts Options) *Manager {
	if opts.DefaultImage == "" {
		opts.DefaultImage = config.DefaultImage
	}
	if opts.SSHUser == "" {
		opts.SSHUser = config.DefaultSSHUser
	}
	if opts.SSHHost == "" {
		opts.SSHHost = config.DefaultSSHHost
	}
	if opts.HostKeyPolicy == "" {
		opts.HostKeyPolicy = config.PolicyAcceptNew
	}
	if opts.PortRetries < 0 {
		opts.PortRetries = 0
	}
	if opts.Editor == "" {
		opts.Editor = config.DefaultEditor
	}
	if opts.Executor == nil {
		opts.Executor = system.DefaultExecutor()
	}
	if opts.WaitForPort == nil {
		opts.WaitForPort = ssh.WaitForPort
	}
	return &Manager{engine: eng, sync: sync, opts: opts}
}

// CreateRequest describes a sandbox to create.
type CreateRequest struct {
	Alias     string
	Image     string
	Workspace string
}

// CreateResult reports a successful create.
type CreateResult struct {
	Sandbox *engine.Sandbox
	Port    int

	// Attempts counts engine creates, more than one after port conflicts.
	Attempts int

	// SSHEntryExisted is true when an older Host block for the alias was
	// left in place.
	SSHEntryExisted bool

	// SSHError is set when the SSH config could not be updated. The
	// sandbox exists regardless.
	SSHError error

	Fingerprint string

	// Ready reports that the SSH port accepted a connection.
	Ready bool
}

// CreateSandbox creates and starts a sandbox, then adds its SSH entry.
func (m *Manager) CreateSandbox(ctx context.Context, req CreateRequest) (*CreateResult, error) {
	log := logging.With("alias", req.Alias)
	res := &CreateResult{}
	if req.Image == "" {
		req.Image = m.opts.DefaultImage
	}

	ereq := engine.CreateRequest(req)
	for {
		res.Attempts++
		sb, port, err := m.engine.Create(ctx, ereq)
		if err == nil {
			res.Sandbox, res.Port = sb, port
			break
		}
		if !errors.IsRetryable(err) || res.Attempts > m.opts.PortRetries {
			m.record(audit.EventError, req.Alias, "create failed", map[string]string{"error": err.Error()})
			return nil, err
		}
		log.Warn("host port was taken before the sandbox started, retrying", "attempt", res.Attempts, "error", err)
	}

	entry := sshconfig.Entry{
		Alias:          req.Alias,
		HostName:       m.opts.SSHHost,
		Port:           res.Port,
		User:           m.opts.SSHUser,
		Policy:         m.opts.HostKeyPolicy,
		KnownHostsFile: m.opts.KnownHostsFile,
	}
	up, err := m.sync.UpsertEntry(ctx, entry)
	switch {
	case err != nil:
		log.Warn("sandbox created but the ssh config entry could not be written", "error", err)
		res.SSHError = err
	case up.Existed:
		log.Warn("an ssh config entry for this alias already exists and was not updated", "port", res.Port)
		res.SSHEntryExisted = true
	default:
		res.Fingerprint = up.Fingerprint
	}

	m.record(audit.EventCreate, req.Alias, "", map[string]string{
		"image":     res.Sandbox.Image,
		"port":      strconv.Itoa(res.Port),
		"workspace": res.Sandbox.WorkspacePath,
		"id":        res.Sandbox.ID,
	})

	if m.opts.ReadyWait > 0 {
		if err := m.opts.WaitForPort(ctx, m.opts.SSHHost, res.Port, m.opts.ReadyWait); err != nil {
			log.Warn("ssh port not reachable yet", "port", res.Port, "error", err)
		} else {
			res.Ready = true
		}
	}
	return res, nil
}

// ListSandboxes returns every sandbox in any state.
func (m *Manager) ListSandboxes(ctx context.Context) ([]engine.Sandbox, error) {
	return m.engine.List(ctx)
}

// GetSandboxInfo returns one sandbox.
func (m *Manager) GetSandboxInfo(ctx context.Context, alias string) (*engine.Sandbox, error) {
	return m.engine.Inspect(ctx, alias)
}

// StartSandbox starts a stopped sandbox and reports whether it changed.
func (m *Manager) StartSandbox(ctx context.Context, alias string) (bool, error) {
	changed, err := m.engine.Start(ctx, alias)
	if err != nil {
		m.record(audit.EventError, alias, "start failed", map[string]string{"error": err.Error()})
		return false, err
	}
	if changed {
		m.record(audit.EventStart, alias, "", nil)
	}
	return changed, nil
}

// StopSandbox stops a running sandbox and reports whether it changed.
func (m *Manager) StopSandbox(ctx context.Context, alias string) (bool, error) {
	changed, err := m.engine.Stop(ctx, alias)
	if err != nil {
		m.record(audit.EventError, alias, "stop failed", map[string]string{"error": err.Error()})
		return false, err
	}
	if changed {
		m.record(audit.EventStop, alias, "", nil)
	}
	return changed, nil
}

// RemoveResult reports a successful remove.
type RemoveResult struct {
	// SSHEntryRemoved is false when there was no entry or it could not be
	// removed; the latter is only logged.
	SSHEntryRemoved bool
}

// RemoveSandbox removes the container and then its SSH entry. If the
// engine removal fails the SSH entry is kept.
func (m *Manager) RemoveSandbox(ctx context.Context, alias string, force bool) (*RemoveResult, error) {
	if err := m.engine.Remove(ctx, alias, force); err != nil {
		m.record(audit.EventError, alias, "remove failed", map[string]string{"error": err.Error()})
		return nil, err
	}

	res := &RemoveResult{SSHEntryRemoved: m.sync.RemoveEntry(alias)}
	m.record(audit.EventRemove, alias, "", map[string]string{
		"force":     strconv.FormatBool(force),
		"ssh_entry": strconv.FormatBool(res.SSHEntryRemoved),
	})
	return res, nil
}

// BuildRequest describes an image build.
type BuildRequest struct {
	Tag        string
	Dockerfile string
	ContextDir string

	// Output receives the build log. Nil sends it to debug logs.
	Output io.Writer
}

// BuildImage builds an image from a local context directory.
func (m *Manager) BuildImage(ctx context.Context, req BuildRequest) error {
	if req.Dockerfile == "" {
		req.Dockerfile = "Dockerfile"
	}
	if !filepath.IsLocal(req.Dockerfile) {
		return errors.Validationf("dockerfile %q must be a path inside the build context", req.Dockerfile)
	}

	out := req.Output
	if out == nil {
		lw := newLogWriter("build output", "tag", req.Tag)
		defer lw.Flush()
		out = lw
	}

	opts := runtime.BuildOptions{
		ContextDir: validate.SanitizePath(req.ContextDir),
		Dockerfile: req.Dockerfile,
		Tag:        req.Tag,
		Output:     out,
	}
	if err := m.engine.Build(ctx, opts); err != nil {
		m.record(audit.EventError, "", "build failed", map[string]string{"tag": req.Tag, "error": err.Error()})
		return err
	}
	m.record(audit.EventBuild, "", "", map[string]string{"tag": req.Tag, "context": opts.ContextDir})
	return nil
}

// EditorURI returns the remote folder URI the editor opens for alias.
func (m *Manager) EditorURI(alias string) string {
	return fmt.Sprintf("vscode-remote://ssh-remote+%s/home/%s", alias, m.opts.SSHUser)
}

// OpenEditor launches the editor attached to the sandbox over SSH.
func (m *Manager) OpenEditor(ctx context.Context, alias string) error {
	if _, err := m.engine.Inspect(ctx, alias); err != nil {
		return err
	}

	if _, err := m.opts.Executor.LookPath(m.opts.Editor); err != nil {
		if m.opts.Editor == config.DefaultEditor {
			return errors.NotFound("Cursor CLI not installed")
		}
		return errors.NotFound(fmt.Sprintf("editor %s not installed", m.opts.Editor))
	}

	uri := m.EditorURI(alias)
	logging.Info("opening editor", "alias", alias, "editor", m.opts.Editor, "uri", uri)
	if err := m.opts.Executor.Start(m.opts.Editor, "--folder-uri", uri); err != nil {
		return errors.Wrap(errors.KindEngine, fmt.Sprintf("failed to launch %s", m.opts.Editor), err)
	}
	return nil
}

// record writes an audit event. Audit failures are logged only.
func (m *Manager) record(t audit.EventType, alias, details string, fields map[string]string) {
	if m.opts.Audit == nil {
		return
	}
	err := m.opts.Audit.Log(audit.Event{Type: t, Sandbox: alias, Details: details, Fields: fields})
	if err != nil {
		logging.Warn("failed to write audit event", "type", t, "alias", alias, "error", err)
	}
}
