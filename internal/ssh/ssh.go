// Package ssh builds ssh command lines for sandbox access and probes
// whether a sandbox's published SSH port accepts connections.
package ssh

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/BHPAV/dev-container-launcher/internal/config"
)

// DefaultConnectTimeout is the ssh ConnectTimeout in seconds.
const DefaultConnectTimeout = 5

// probeInterval is the delay between WaitForPort dial attempts.
const probeInterval = 200 * time.Millisecond

// Options configures SSH connection parameters.
//
// With Alias set the command relies on the Host block devctl maintains in
// the user's ssh config. Otherwise Host, Port and User are passed directly.
type Options struct {
	Alias          string
	Host           string
	Port           int
	User           string
	HostKeyPolicy  config.HostKeyPolicy
	KnownHostsFile string
	ConnectTimeout int
	BatchMode      bool
	RequestTTY     bool
}

// AliasOptions returns Options that connect through the ssh config alias.
func AliasOptions(alias string) Options {
	return Options{Alias: alias}
}

// DirectOptions returns Options that connect to host:port without relying
// on the ssh config file.
func DirectOptions(host string, port int, user string, policy config.HostKeyPolicy) Options {
	return Options{
		Host:           host,
		Port:           port,
		User:           user,
		HostKeyPolicy:  policy,
		ConnectTimeout: DefaultConnectTimeout,
	}
}

// WithBatchMode returns a copy with batch mode enabled.
func (o Options) WithBatchMode() Options {
	o.BatchMode = true
	return o
}

// WithTTY returns a copy with TTY requested.
func (o Options) WithTTY() Options {
	o.RequestTTY = true
	return o
}

// WithTimeout returns a copy with the specified connect timeout.
func (o Options) WithTimeout(seconds int) Options {
	o.ConnectTimeout = seconds
	return o
}

// BaseArgs returns the option arguments, without the destination.
func (o Options) BaseArgs() []string {
	var args []string

	if o.Alias == "" {
		args = append(args, "-p", strconv.Itoa(o.Port))
		if o.HostKeyPolicy != "" {
			args = append(args, "-o", "StrictHostKeyChecking="+string(o.HostKeyPolicy))
		}
		if o.KnownHostsFile != "" {
			args = append(args, "-o", "UserKnownHostsFile="+o.KnownHostsFile)
		}
	}

	if o.BatchMode {
		args = append(args, "-o", "BatchMode=yes")
	}
	if o.ConnectTimeout > 0 {
		args = append(args, "-o", fmt.Sprintf("ConnectTimeout=%d", o.ConnectTimeout))
	}
	if o.RequestTTY {
		args = append(args, "-t")
	}
	return args
}

// Destination returns the alias, or user@host for direct connections.
func (o Options) Destination() string {
	if o.Alias != "" {
		return o.Alias
	}
	if o.User == "" {
		return o.Host
	}
	return o.User + "@" + o.Host
}

// BuildArgs returns complete SSH arguments for executing a command.
func (o Options) BuildArgs(command ...string) []string {
	args := o.BaseArgs()
	args = append(args, o.Destination())
	args = append(args, command...)
	return args
}

// BuildArgsWithArgv returns complete SSH arguments including "ssh" as argv[0].
func (o Options) BuildArgsWithArgv(command ...string) []string {
	return append([]string{"ssh"}, o.BuildArgs(command...)...)
}

// WaitForPort dials host:port until a TCP connection succeeds, timeout
// elapses or ctx is done.
func WaitForPort(ctx context.Context, host string, port int, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	addr := net.JoinHostPort(host, strconv.Itoa(port))
	var d net.Dialer
	for {
		conn, err := d.DialContext(ctx, "tcp", addr)
		if err == nil {
			conn.Close()
			return nil
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("%s not reachable after %s: %w", addr, timeout, err)
		case <-time.After(probeInterval):
		}
	}
}
