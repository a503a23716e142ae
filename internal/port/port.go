package port

import (
	"fmt"
	"net"
	"sync"
	"time"
)

// Port bounds for a usable sandbox port.
const (
	MinPort = 1024
	MaxPort = 65535
)

// DefaultHold is how long a returned port is withheld from later calls.
const DefaultHold = 30 * time.Second

const maxAttempts = 64

// Allocator hands out OS-assigned ports on a single host address.
type Allocator struct {
	host string
	hold time.Duration
	now  func() time.Time

	mu     sync.Mutex
	recent map[int]time.Time
}

// NewAllocator creates an Allocator binding on host (e.g. "127.0.0.1").
func NewAllocator(host string) *Allocator {
	return &Allocator{
		host:   host,
		hold:   DefaultHold,
		now:    time.Now,
		recent: make(map[int]time.Time),
	}
}

var defaultAllocator = NewAllocator("127.0.0.1")

// AllocateEphemeralPort returns a free loopback port.
func AllocateEphemeralPort() (int, error) {
	return defaultAllocator.Allocate(nil)
}

// Allocate returns a port that is free now, was not returned by this
// Allocator within the hold window, and is not in exclude.
func (a *Allocator) Allocate(exclude map[int]bool) (int, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.expire()

	for attempt := 0; attempt < maxAttempts; attempt++ {
		p, err := a.probe()
		if err != nil {
			return 0, err
		}
		if p < MinPort || p > MaxPort || exclude[p] {
			continue
		}
		if _, taken := a.recent[p]; taken {
			continue
		}
		a.recent[p] = a.now()
		return p, nil
	}
	return 0, fmt.Errorf("no usable port after %d attempts", maxAttempts)
}

// Release makes p available to later calls before its hold expires.
func (a *Allocator) Release(p int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.recent, p)
}

func (a *Allocator) probe() (int, error) {
	l, err := net.Listen("tcp", net.JoinHostPort(a.host, "0"))
	if err != nil {
		return 0, fmt.Errorf("failed to bind ephemeral port: %w", err)
	}
	defer l.Close()

	addr, ok := l.Addr().(*net.TCPAddr)
	if !ok {
		return 0, fmt.Errorf("unexpected listener address %v", l.Addr())
	}
	return addr.Port, nil
}

func (a *Allocator) expire() {
	cutoff := a.now().Add(-a.hold)
	for p, at := range a.recent {
		if at.Before(cutoff) {
			delete(a.recent, p)
		}
	}
}
