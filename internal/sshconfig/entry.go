package sshconfig

import (
	"fmt"

	"github.com/BHPAV/dev-container-launcher/internal/config"
)

// Entry holds the connection parameters written for one sandbox.
type Entry struct {
	Alias    string
	HostName string
	Port     int
	User     string
	Policy   config.HostKeyPolicy

	// KnownHostsFile is referenced from the block under the strict policy.
	KnownHostsFile string
}

// Block renders e as a Host block.
func (e Entry) Block() Block {
	lines := []string{
		"Host " + e.Alias,
		"  HostName " + e.HostName,
		fmt.Sprintf("  Port %d", e.Port),
		"  User " + e.User,
		"  StrictHostKeyChecking " + string(e.Policy),
	}
	if e.Policy == config.PolicyStrict && e.KnownHostsFile != "" {
		lines = append(lines, "  UserKnownHostsFile "+e.KnownHostsFile)
	}
	return Block{Kind: BlockHost, Lines: lines}
}
