package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/BHPAV/dev-container-launcher/internal/errors"
	"github.com/BHPAV/dev-container-launcher/internal/logging"
)

const (
	DefaultImage          = "devbox:latest"
	ContainerPrefix       = "dev_"
	LabelKey              = "devcontainer"
	LabelValue            = "true"
	DefaultSSHUser        = "dev"
	DefaultSSHHost        = "127.0.0.1"
	ContainerSSHPort      = 22
	DefaultWorkspaceDir   = "/workspace"
	DefaultMaxAliasLength = 63
	DefaultPortRetries    = 3
	DefaultPollInterval   = 2 * time.Second
	DefaultStopTimeout    = 10 * time.Second
	DefaultSSHReadyWait   = 10 * time.Second
	DefaultEditor         = "cursor"
)

// Environment variables read once at startup.
const (
	EnvConfig       = "DEVCONTAINER_CONFIG"
	EnvImage        = "DEVCONTAINER_IMAGE"
	EnvLogLevel     = "DEVCONTAINER_LOG_LEVEL"
	EnvLogFile      = "DEVCONTAINER_LOG_FILE"
	EnvStrictSSH    = "DEVCONTAINER_STRICT_SSH"
	EnvAllowedPaths = "DEVCONTAINER_ALLOWED_PATHS"
	EnvRuntime      = "DEVCONTAINER_RUNTIME"
)

// HostKeyPolicy is the StrictHostKeyChecking value written for each sandbox.
type HostKeyPolicy string

const (
	PolicyStrict    HostKeyPolicy = "yes"
	PolicyAcceptNew HostKeyPolicy = "accept-new"
	PolicyInsecure  HostKeyPolicy = "no"
)

// ParseHostKeyPolicy accepts yes, accept-new or no. The boolean-ish
// spellings true/false are accepted for DEVCONTAINER_STRICT_SSH.
func ParseHostKeyPolicy(s string) (HostKeyPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "yes", "true", "strict":
		return PolicyStrict, nil
	case "accept-new", "":
		return PolicyAcceptNew, nil
	case "no", "false", "off":
		return PolicyInsecure, nil
	}
	return "", fmt.Errorf("invalid host key policy %q: must be yes, accept-new or no", s)
}

// Duration is a time.Duration that reads and writes as "2s" in TOML.
type Duration struct {
	time.Duration
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

// Config holds the effective devctl configuration.
type Config struct {
	Image          string            `toml:"image"`
	Images         map[string]string `toml:"images"`
	SSHUser        string            `toml:"ssh_user"`
	SSHHost        string            `toml:"ssh_host"`
	SSHConfigPath  string            `toml:"ssh_config"`
	KnownHostsPath string            `toml:"known_hosts"`
	HostKeyPolicy  HostKeyPolicy     `toml:"strict_host_key_checking"`
	SSHReadyWait   Duration          `toml:"ssh_ready_wait"`
	AllowedPaths   []string          `toml:"allowed_paths"`
	WorkspaceDir   string            `toml:"workspace_dir"`
	WorkingDir     string            `toml:"working_dir"`
	MaxAliasLength int               `toml:"max_alias_length"`
	Runtime        string            `toml:"runtime"`
	DockerHost     string            `toml:"docker_host"`
	PortRetries    int               `toml:"port_retries"`
	StopTimeout    Duration          `toml:"stop_timeout"`
	PollInterval   Duration          `toml:"poll_interval"`
	LogLevel       string            `toml:"log_level"`
	LogFile        string            `toml:"log_file"`
	StateDir       string            `toml:"state_dir"`
	Editor         string            `toml:"editor"`
}

// Default returns the built-in configuration for the given home directory.
func Default(home string) *Config {
	return &Config{
		Image: DefaultImage,
		Images: map[string]string{
			"python": "python-3.12:latest",
			"node":   "node-20:latest",
			"go":     "go-1.22:latest",
		},
		SSHUser:        DefaultSSHUser,
		SSHHost:        DefaultSSHHost,
		SSHConfigPath:  filepath.Join(home, ".ssh", "config"),
		KnownHostsPath: filepath.Join(home, ".ssh", "known_hosts"),
		HostKeyPolicy:  PolicyAcceptNew,
		SSHReadyWait:   Duration{DefaultSSHReadyWait},
		AllowedPaths: []string{
			filepath.Join(home, "Dev"),
			filepath.Join(home, "Projects"),
			filepath.Join(home, "workspace"),
			"/tmp",
		},
		WorkspaceDir:   DefaultWorkspaceDir,
		WorkingDir:     DefaultWorkspaceDir,
		MaxAliasLength: DefaultMaxAliasLength,
		Runtime:        "auto",
		PortRetries:    DefaultPortRetries,
		StopTimeout:    Duration{DefaultStopTimeout},
		PollInterval:   Duration{DefaultPollInterval},
		LogLevel:       "INFO",
		LogFile:        filepath.Join(home, ".devcontainer", "devcontainer.log"),
		StateDir:       filepath.Join(home, ".devcontainer"),
		Editor:         DefaultEditor,
	}
}

// Load builds the configuration from defaults, the optional TOML file
// and the environment, in that order.
func Load() (*Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("failed to determine home directory: %w", err)
	}

	cfg := Default(home)

	path, err := FilePath()
	if err != nil {
		return nil, err
	}
	if err := cfg.LoadFile(path); err != nil {
		return nil, err
	}

	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, errors.Wrap(errors.KindValidation, "invalid environment", err)
	}

	cfg.expandHome(home)

	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(errors.KindValidation, "invalid configuration", err)
	}
	return cfg, nil
}

// FilePath returns the config file location: $DEVCONTAINER_CONFIG, or
// ~/.devcontainer/config.toml.
func FilePath() (string, error) {
	if path := os.Getenv(EnvConfig); path != "" {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to determine home directory: %w", err)
	}
	return filepath.Join(home, ".devcontainer", "config.toml"), nil
}

// LoadFile merges a TOML file over c. A missing file is not an error.
func (c *Config) LoadFile(path string) error {
	md, err := toml.DecodeFile(path, c)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return errors.ConfigIO(fmt.Sprintf("failed to parse config %s", path), err)
	}
	for _, key := range md.Undecoded() {
		logging.Warn("unknown config key", "file", path, "key", key.String())
	}
	logging.Debug("loaded config file", "path", path)
	return nil
}

// ApplyEnv overrides fields from DEVCONTAINER_* variables using lookup.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	if v, ok := lookup(EnvImage); ok && v != "" {
		c.Image = v
	}
	if v, ok := lookup(EnvLogLevel); ok && v != "" {
		c.LogLevel = v
	}
	if v, ok := lookup(EnvLogFile); ok {
		c.LogFile = v
	}
	if v, ok := lookup(EnvRuntime); ok && v != "" {
		c.Runtime = v
	}
	if v, ok := lookup(EnvStrictSSH); ok {
		policy, err := ParseHostKeyPolicy(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvStrictSSH, err)
		}
		c.HostKeyPolicy = policy
	}
	if v, ok := lookup(EnvAllowedPaths); ok && v != "" {
		var paths []string
		for _, p := range filepath.SplitList(v) {
			if p = strings.TrimSpace(p); p != "" {
				paths = append(paths, p)
			}
		}
		c.AllowedPaths = paths
	}
	return nil
}

// expandHome replaces a leading ~ in path-valued fields. Allowed paths
// are otherwise kept as written; they are resolved when checked.
func (c *Config) expandHome(home string) {
	c.SSHConfigPath = expandPath(c.SSHConfigPath, home)
	c.KnownHostsPath = expandPath(c.KnownHostsPath, home)
	c.LogFile = expandPath(c.LogFile, home)
	c.StateDir = expandPath(c.StateDir, home)
	for i, p := range c.AllowedPaths {
		c.AllowedPaths[i] = expandPath(p, home)
	}
}

func expandPath(path, home string) string {
	if path == "~" {
		return home
	}
	if strings.HasPrefix(path, "~/") {
		return filepath.Join(home, path[2:])
	}
	return path
}

// Validate checks the configuration for invalid values.
func (c *Config) Validate() error {
	if c.Image == "" {
		return fmt.Errorf("image cannot be empty")
	}
	if _, err := ParseHostKeyPolicy(string(c.HostKeyPolicy)); err != nil {
		return err
	}
	switch c.Runtime {
	case "auto", "api", "docker", "podman":
	default:
		return fmt.Errorf("invalid runtime %q: must be auto, api, docker or podman", c.Runtime)
	}
	if len(c.AllowedPaths) == 0 {
		return fmt.Errorf("allowed_paths cannot be empty")
	}
	if c.MaxAliasLength <= 0 {
		return fmt.Errorf("max_alias_length must be positive")
	}
	if c.PollInterval.Duration <= 0 {
		return fmt.Errorf("poll_interval must be positive")
	}
	if c.PortRetries < 0 {
		return fmt.Errorf("port_retries cannot be negative")
	}
	if !filepath.IsAbs(c.WorkspaceDir) {
		return fmt.Errorf("workspace_dir must be absolute: %s", c.WorkspaceDir)
	}
	if c.SSHConfigPath == "" {
		return fmt.Errorf("ssh_config cannot be empty")
	}
	return nil
}

// Labels returns the ownership label set on every managed container.
func (c *Config) Labels() map[string]string {
	return map[string]string{LabelKey: LabelValue}
}

// ImageFor resolves a language shortcut to its configured image.
func (c *Config) ImageFor(lang string) (string, error) {
	img, ok := c.Images[lang]
	if !ok {
		langs := make([]string, 0, len(c.Images))
		for k := range c.Images {
			langs = append(langs, k)
		}
		sort.Strings(langs)
		return "", errors.Validationf("unknown language %q: available: %s", lang, strings.Join(langs, ", "))
	}
	return img, nil
}

// Encode writes the configuration as TOML.
func (c *Config) Encode(w io.Writer) error {
	return toml.NewEncoder(w).Encode(c)
}
