package runtime

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// MockRuntime is an in-memory engine for testing
type MockRuntime struct {
	mu sync.RWMutex

	// Containers tracks mock containers by engine name
	Containers map[string]*Container

	// Images lists image references that exist locally
	Images map[string]bool

	// BusyPorts are host ports Start refuses to publish, as if another
	// process had bound them
	BusyPorts map[int]bool

	// ExecResults maps container names to predefined exec results
	ExecResults map[string]*ExecResult

	// Errors allows injecting errors for specific operations
	Errors map[string]error

	// CallLog records all method calls for verification
	CallLog []MockCall

	nextID int
}

// MockCall represents a recorded method call
type MockCall struct {
	Method string
	Args   []any
}

// NewMockRuntime creates a new mock runtime
func NewMockRuntime() *MockRuntime {
	return &MockRuntime{
		Containers:  make(map[string]*Container),
		Images:      make(map[string]bool),
		BusyPorts:   make(map[int]bool),
		ExecResults: make(map[string]*ExecResult),
		Errors:      make(map[string]error),
		CallLog:     make([]MockCall, 0),
	}
}

func (m *MockRuntime) record(method string, args ...any) {
	m.CallLog = append(m.CallLog, MockCall{Method: method, Args: args})
}

// SetError sets an error to be returned for a specific operation
func (m *MockRuntime) SetError(operation string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Errors[operation] = err
}

// SetExecResult sets the result for exec operations on a container
func (m *MockRuntime) SetExecResult(name string, result *ExecResult) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ExecResults[name] = result
}

// AddImage marks an image as present locally
func (m *MockRuntime) AddImage(image string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Images[image] = true
}

// SetBusyPort marks a host port as taken by another process
func (m *MockRuntime) SetBusyPort(port int, busy bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if busy {
		m.BusyPorts[port] = true
	} else {
		delete(m.BusyPorts, port)
	}
}

// AddContainer adds a container to the mock
func (m *MockRuntime) AddContainer(c *Container) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c.ID == "" {
		m.nextID++
		c.ID = fmt.Sprintf("%064x", m.nextID)
	}
	m.Containers[c.Name] = c
}

// GetCalls returns all recorded calls
func (m *MockRuntime) GetCalls() []MockCall {
	m.mu.RLock()
	defer m.mu.RUnlock()
	result := make([]MockCall, len(m.CallLog))
	copy(result, m.CallLog)
	return result
}

// GetCallsFor returns recorded calls for a specific method
func (m *MockRuntime) GetCallsFor(method string) []MockCall {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []MockCall
	for _, call := range m.CallLog {
		if call.Method == method {
			result = append(result, call)
		}
	}
	return result
}

// Reset clears all state
func (m *MockRuntime) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Containers = make(map[string]*Container)
	m.Images = make(map[string]bool)
	m.BusyPorts = make(map[int]bool)
	m.ExecResults = make(map[string]*ExecResult)
	m.Errors = make(map[string]error)
	m.CallLog = make([]MockCall, 0)
}

// Name returns the runtime identifier
func (m *MockRuntime) Name() string {
	return "mock"
}

// List returns containers carrying labels, sorted by name
func (m *MockRuntime) List(ctx context.Context, labels map[string]string) ([]*Container, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("List", labels)

	if err := m.Errors["List"]; err != nil {
		return nil, err
	}

	result := make([]*Container, 0, len(m.Containers))
	for _, c := range m.Containers {
		if labelsMatch(c.Labels, labels) {
			result = append(result, cloneContainer(c))
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result, nil
}

// Inspect returns a copy of one container
func (m *MockRuntime) Inspect(ctx context.Context, name string) (*Container, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("Inspect", name)

	if err := m.Errors["Inspect"]; err != nil {
		return nil, err
	}

	c, ok := m.Containers[name]
	if !ok {
		return nil, ErrContainerNotFound
	}
	return cloneContainer(c), nil
}

// ImageExists reports whether AddImage was called for image
func (m *MockRuntime) ImageExists(ctx context.Context, image string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("ImageExists", image)

	if err := m.Errors["ImageExists"]; err != nil {
		return false, err
	}
	return m.Images[image], nil
}

// Create creates a container in the created state
func (m *MockRuntime) Create(ctx context.Context, opts CreateOptions) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("Create", opts)

	if err := m.Errors["Create"]; err != nil {
		return "", err
	}
	if _, exists := m.Containers[opts.Name]; exists {
		return "", fmt.Errorf("%w: %s", ErrNameConflict, opts.Name)
	}
	if !m.Images[opts.Image] {
		return "", fmt.Errorf("no such image: %s", opts.Image)
	}

	m.nextID++
	c := &Container{
		ID:      fmt.Sprintf("%064x", m.nextID),
		Name:    opts.Name,
		Image:   opts.Image,
		State:   StateCreated,
		Labels:  copyLabels(opts.Labels),
		Ports:   append([]PortBinding(nil), opts.Ports...),
		Mounts:  append([]Mount(nil), opts.Mounts...),
		Created: time.Now(),
	}
	m.Containers[opts.Name] = c
	return c.ID, nil
}

// Start starts an existing container
func (m *MockRuntime) Start(ctx context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("Start", name)

	if err := m.Errors["Start"]; err != nil {
		return err
	}

	c, ok := m.Containers[name]
	if !ok {
		return ErrContainerNotFound
	}
	for _, p := range c.Ports {
		if m.BusyPorts[p.HostPort] {
			return fmt.Errorf("%w: Bind for %s:%d failed: port is already allocated", ErrPortInUse, p.HostIP, p.HostPort)
		}
	}
	c.State = StateRunning
	return nil
}

// Stop stops a running container
func (m *MockRuntime) Stop(ctx context.Context, name string, timeout time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("Stop", name, timeout)

	if err := m.Errors["Stop"]; err != nil {
		return err
	}

	c, ok := m.Containers[name]
	if !ok {
		return ErrContainerNotFound
	}
	c.State = StateExited
	return nil
}

// Remove removes a container; without force a running one is refused
func (m *MockRuntime) Remove(ctx context.Context, name string, force bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("Remove", name, force)

	if err := m.Errors["Remove"]; err != nil {
		return err
	}

	c, ok := m.Containers[name]
	if !ok {
		return ErrContainerNotFound
	}
	if c.State == StateRunning && !force {
		return fmt.Errorf("cannot remove running container %s: stop it first or use force", name)
	}
	delete(m.Containers, name)
	return nil
}

// Exec returns the configured result for the container
func (m *MockRuntime) Exec(ctx context.Context, name string, command []string) (*ExecResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("Exec", name, command)

	if err := m.Errors["Exec"]; err != nil {
		return nil, err
	}

	c, ok := m.Containers[name]
	if !ok {
		return nil, ErrContainerNotFound
	}
	if c.State != StateRunning {
		return nil, fmt.Errorf("container %s is not running", name)
	}
	if result, ok := m.ExecResults[name]; ok {
		return result, nil
	}
	return &ExecResult{ExitCode: 0}, nil
}

// Build marks the tag as an existing image
func (m *MockRuntime) Build(ctx context.Context, opts BuildOptions) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("Build", opts.Tag, opts.Dockerfile, opts.ContextDir)

	if err := m.Errors["Build"]; err != nil {
		return err
	}
	if opts.Output != nil {
		fmt.Fprintf(opts.Output, "Successfully tagged %s\n", opts.Tag)
	}
	m.Images[opts.Tag] = true
	return nil
}

// Close is a no-op
func (m *MockRuntime) Close() error {
	return nil
}

func cloneContainer(c *Container) *Container {
	out := *c
	out.Labels = copyLabels(c.Labels)
	out.Ports = append([]PortBinding(nil), c.Ports...)
	out.Mounts = append([]Mount(nil), c.Mounts...)
	return &out
}

func copyLabels(in map[string]string) map[string]string {
	if in == nil {
		return nil
	}
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

var _ Runtime = (*MockRuntime)(nil)
