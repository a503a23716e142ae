package system

import (
	"context"
	"errors"
	"io"
	"os/exec"
	"strings"
	"sync"
)

// MockExecutor implements CommandExecutor for testing.
type MockExecutor struct {
	mu sync.Mutex

	// Commands records all executed commands for verification.
	Commands []MockCommand

	// Responses maps command prefixes to responses. The longest prefix of
	// "name arg1 arg2..." that has an entry wins.
	Responses map[string]MockResponse

	// DefaultResponse is used when no matching response is found.
	DefaultResponse MockResponse

	// Paths lists binaries LookPath reports as installed.
	Paths map[string]string

	// ReplaceProcessErr is returned by ReplaceProcess if set.
	ReplaceProcessErr error
}

// MockCommand records an executed command.
type MockCommand struct {
	Name     string
	Args     []string
	Detached bool
}

// String returns the command line joined with spaces.
func (c MockCommand) String() string {
	return strings.TrimSpace(c.Name + " " + strings.Join(c.Args, " "))
}

// MockResponse defines the response for a command.
type MockResponse struct {
	Output []byte
	Err    error
}

// NewMockExecutor creates a new MockExecutor.
func NewMockExecutor() *MockExecutor {
	return &MockExecutor{
		Commands:  make([]MockCommand, 0),
		Responses: make(map[string]MockResponse),
		Paths:     make(map[string]string),
	}
}

// AddResponse adds a response for a command prefix such as "docker inspect".
func (m *MockExecutor) AddResponse(pattern string, output []byte, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Responses[pattern] = MockResponse{Output: output, Err: err}
}

func (m *MockExecutor) record(cmd MockCommand) MockResponse {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Commands = append(m.Commands, cmd)

	parts := append([]string{cmd.Name}, cmd.Args...)
	for n := len(parts); n > 0; n-- {
		if resp, ok := m.Responses[strings.Join(parts[:n], " ")]; ok {
			return resp
		}
	}
	return m.DefaultResponse
}

func (m *MockExecutor) Execute(ctx context.Context, name string, args ...string) ([]byte, error) {
	resp := m.record(MockCommand{Name: name, Args: args})
	return resp.Output, resp.Err
}

func (m *MockExecutor) ExecuteStreaming(ctx context.Context, w io.Writer, name string, args ...string) error {
	resp := m.record(MockCommand{Name: name, Args: args})
	if len(resp.Output) > 0 {
		_, _ = w.Write(resp.Output)
	}
	return resp.Err
}

func (m *MockExecutor) Start(name string, args ...string) error {
	return m.record(MockCommand{Name: name, Args: args, Detached: true}).Err
}

func (m *MockExecutor) ReplaceProcess(name string, args ...string) error {
	m.record(MockCommand{Name: name, Args: args})

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ReplaceProcessErr != nil {
		return m.ReplaceProcessErr
	}
	// In tests, we can't actually replace the process
	return errors.New("mock: ReplaceProcess called (would exec in real implementation)")
}

func (m *MockExecutor) LookPath(name string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p, ok := m.Paths[name]; ok {
		return p, nil
	}
	return "", &exec.Error{Name: name, Err: exec.ErrNotFound}
}

// LastCommand returns the most recently executed command.
func (m *MockExecutor) LastCommand() (MockCommand, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.Commands) == 0 {
		return MockCommand{}, false
	}
	return m.Commands[len(m.Commands)-1], true
}

// Reset clears all recorded commands.
func (m *MockExecutor) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Commands = make([]MockCommand, 0)
}
