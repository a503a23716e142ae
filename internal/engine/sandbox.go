package engine

import (
	"strings"
	"time"

	"github.com/BHPAV/dev-container-launcher/internal/runtime"
)

// Status is the lifecycle state of a sandbox as reported by the engine.
type Status string

const (
	StatusAbsent  Status = "absent"
	StatusCreated Status = "created"
	StatusRunning Status = "running"
	StatusExited  Status = "exited"
	StatusRemoved Status = "removed"
)

// StatusFromState maps a raw engine state onto a sandbox status.
func StatusFromState(state string) Status {
	switch strings.ToLower(state) {
	case runtime.StateCreated:
		return StatusCreated
	case runtime.StateRunning, runtime.StatePaused, runtime.StateRestarting:
		return StatusRunning
	case runtime.StateExited, runtime.StateRemoving, runtime.StateDead, "stopped":
		return StatusExited
	case "":
		return StatusAbsent
	}
	return StatusExited
}

// Sandbox is a value rebuilt from the engine on every query; nothing
// about it is cached in-process.
type Sandbox struct {
	Alias         string            `json:"name" yaml:"name"`
	EngineName    string            `json:"engine_name" yaml:"engine_name"`
	ID            string            `json:"id" yaml:"id"`
	Image         string            `json:"image" yaml:"image"`
	HostPort      int               `json:"port,omitempty" yaml:"port,omitempty"`
	WorkspacePath string            `json:"workspace,omitempty" yaml:"workspace,omitempty"`
	Status        Status            `json:"status" yaml:"status"`
	EngineState   string            `json:"engine_state" yaml:"engine_state"`
	Labels        map[string]string `json:"labels,omitempty" yaml:"labels,omitempty"`
	Mounts        []runtime.Mount   `json:"mounts,omitempty" yaml:"mounts,omitempty"`
	CreatedAt     time.Time         `json:"created" yaml:"created"`
}

// ShortID returns the first 12 characters of the container ID.
func (s *Sandbox) ShortID() string {
	if len(s.ID) > 12 {
		return s.ID[:12]
	}
	return s.ID
}

// IsRunning reports whether the sandbox is running.
func (s *Sandbox) IsRunning() bool {
	return s.Status == StatusRunning
}
