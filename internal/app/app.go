package app

import (
	"context"
	"fmt"
	"time"

	"github.com/BHPAV/dev-container-launcher/internal/audit"
	"github.com/BHPAV/dev-container-launcher/internal/config"
	"github.com/BHPAV/dev-container-launcher/internal/engine"
	"github.com/BHPAV/dev-container-launcher/internal/lifecycle"
	"github.com/BHPAV/dev-container-launcher/internal/logging"
	"github.com/BHPAV/dev-container-launcher/internal/runtime"
	"github.com/BHPAV/dev-container-launcher/internal/sshconfig"
	"github.com/BHPAV/dev-container-launcher/internal/system"
	"github.com/BHPAV/dev-container-launcher/internal/validate"
	"github.com/BHPAV/dev-container-launcher/internal/watcher"
)

// App holds the application dependencies
type App struct {
	Config    *config.Config
	Runtime   runtime.Runtime
	Validator *validate.Validator
	Engine    *engine.Client
	SSH       *sshconfig.Synchronizer
	Audit     *audit.Logger
	Manager   *lifecycle.Manager
	Exec      system.CommandExecutor

	ports    engine.PortAllocator
	waitPort func(ctx context.Context, host string, port int, timeout time.Duration) error
}

// Option is a function that configures the App
type Option func(*App)

// WithRuntime sets a custom runtime instead of detecting one
func WithRuntime(r runtime.Runtime) Option {
	return func(a *App) {
		a.Runtime = r
	}
}

// WithExecutor sets the command executor
func WithExecutor(e system.CommandExecutor) Option {
	return func(a *App) {
		a.Exec = e
	}
}

// WithPortAllocator sets the host port allocator
func WithPortAllocator(p engine.PortAllocator) Option {
	return func(a *App) {
		a.ports = p
	}
}

// WithPortProbe replaces the post-create SSH readiness probe
func WithPortProbe(f func(ctx context.Context, host string, port int, timeout time.Duration) error) Option {
	return func(a *App) {
		a.waitPort = f
	}
}

// New creates an App from cfg. Without WithRuntime the runtime is chosen
// by cfg.Runtime.
func New(ctx context.Context, cfg *config.Config, opts ...Option) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("app: nil config")
	}
	a := &App{Config: cfg}
	for _, opt := range opts {
		opt(a)
	}
	if a.Exec == nil {
		a.Exec = system.DefaultExecutor()
	}

	if a.Runtime == nil {
		rt, err := runtime.New(ctx, &runtime.Config{
			Type:       runtime.RuntimeType(cfg.Runtime),
			DockerHost: cfg.DockerHost,
			Executor:   a.Exec,
		})
		if err != nil {
			return nil, err
		}
		a.Runtime = rt
	}
	logging.Debug("using runtime", "runtime", a.Runtime.Name())

	a.Validator = validate.New(cfg.MaxAliasLength, cfg.AllowedPaths)
	a.Engine = engine.New(a.Runtime, a.Validator, a.ports, engine.OptionsFromConfig(cfg))
	a.SSH = sshconfig.New(cfg.SSHConfigPath,
		sshconfig.WithKnownHosts(cfg.KnownHostsPath),
		sshconfig.WithHostKeyFetcher(a.Engine),
		sshconfig.WithValidator(a.Validator),
	)

	mopts := lifecycle.OptionsFromConfig(cfg)
	mopts.Executor = a.Exec
	mopts.WaitForPort = a.waitPort
	a.Audit = mopts.Audit
	a.Manager = lifecycle.New(a.Engine, a.SSH, mopts)
	return a, nil
}

// Watcher returns a state watcher over the Manager using the configured
// poll interval.
func (a *App) Watcher() *watcher.Watcher {
	return watcher.New(a.Manager, watcher.WithInterval(a.Config.PollInterval.Duration))
}

// Close releases the runtime connection
func (a *App) Close() error {
	if a.Runtime == nil {
		return nil
	}
	return a.Runtime.Close()
}
