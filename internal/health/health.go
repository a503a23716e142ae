package health

import (
	"context"
	"fmt"
	"time"

	"github.com/BHPAV/dev-container-launcher/internal/engine"
	"github.com/BHPAV/dev-container-launcher/internal/logging"
	"github.com/BHPAV/dev-container-launcher/internal/ssh"
)

// Status represents the health status of a sandbox
type Status string

const (
	StatusHealthy     Status = "healthy"
	StatusUnreachable Status = "unreachable"
	StatusNoEntry     Status = "no-ssh-entry"
	StatusStopped     Status = "stopped"

	// DefaultProbeTimeout bounds the SSH port check.
	DefaultProbeTimeout = 500 * time.Millisecond
)

// EntryLookup reports whether the SSH config has a block for an alias.
type EntryLookup interface {
	Has(alias string) (bool, error)
}

// ProbeFunc checks that host:port accepts connections within timeout.
type ProbeFunc func(ctx context.Context, host string, port int, timeout time.Duration) error

// CheckResult contains the results of health checks
type CheckResult struct {
	ContainerRunning bool
	SSHReachable     bool
	SSHEntry         bool
	Age              string
}

// Summary collapses the result into a single status.
func (r *CheckResult) Summary() Status {
	switch {
	case !r.ContainerRunning:
		return StatusStopped
	case !r.SSHReachable:
		return StatusUnreachable
	case !r.SSHEntry:
		return StatusNoEntry
	}
	return StatusHealthy
}

// Checker runs health checks against sandboxes.
type Checker struct {
	host    string
	entries EntryLookup
	probe   ProbeFunc
	timeout time.Duration
	now     func() time.Time
}

// Option configures a Checker.
type Option func(*Checker)

// WithProbe replaces the TCP port probe.
func WithProbe(p ProbeFunc) Option {
	return func(c *Checker) {
		c.probe = p
	}
}

// WithTimeout sets the port probe timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Checker) {
		c.timeout = d
	}
}

// NewChecker creates a Checker probing ports on host. entries may be nil,
// in which case SSHEntry is always false.
func NewChecker(host string, entries EntryLookup, opts ...Option) *Checker {
	c := &Checker{
		host:    host,
		entries: entries,
		probe:   ssh.WaitForPort,
		timeout: DefaultProbeTimeout,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Check performs all health checks for a sandbox.
func (c *Checker) Check(ctx context.Context, sb *engine.Sandbox) *CheckResult {
	result := &CheckResult{}
	if !sb.CreatedAt.IsZero() {
		result.Age = formatDuration(c.now().Sub(sb.CreatedAt))
	}

	if c.entries != nil {
		ok, err := c.entries.Has(sb.Alias)
		if err != nil {
			logging.Debug("failed to read ssh config", "alias", sb.Alias, "error", err)
		}
		result.SSHEntry = ok
	}

	result.ContainerRunning = sb.IsRunning()
	if !result.ContainerRunning || sb.HostPort == 0 {
		return result
	}

	if err := c.probe(ctx, c.host, sb.HostPort, c.timeout); err != nil {
		logging.Debug("ssh port not reachable", "alias", sb.Alias, "port", sb.HostPort, "error", err)
	} else {
		result.SSHReachable = true
	}
	return result
}

func formatDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	} else if d < time.Hour {
		return fmt.Sprintf("%dm", int(d.Minutes()))
	} else if d < 24*time.Hour {
		hours := int(d.Hours())
		mins := int(d.Minutes()) % 60
		return fmt.Sprintf("%dh %dm", hours, mins)
	}
	days := int(d.Hours()) / 24
	hours := int(d.Hours()) % 24
	return fmt.Sprintf("%dd %dh", days, hours)
}
