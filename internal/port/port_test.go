package port

import (
	"net"
	"strconv"
	"sync"
	"testing"
	"time"
)

func TestAllocateEphemeralPort(t *testing.T) {
	p, err := AllocateEphemeralPort()
	if err != nil {
		t.Fatalf("AllocateEphemeralPort() error = %v", err)
	}
	if p < MinPort || p > MaxPort {
		t.Errorf("port %d outside %d-%d", p, MinPort, MaxPort)
	}

	// The listener must have been released.
	l, err := net.Listen("tcp", net.JoinHostPort("127.0.0.1", strconv.Itoa(p)))
	if err != nil {
		t.Fatalf("port %d not released: %v", p, err)
	}
	l.Close()
}

func TestAllocateEphemeralPort_ConcurrentDistinct(t *testing.T) {
	const n = 50
	a := NewAllocator("127.0.0.1")

	var wg sync.WaitGroup
	ports := make([]int, n)
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ports[i], errs[i] = a.Allocate(nil)
		}(i)
	}
	wg.Wait()

	seen := make(map[int]bool)
	for i, p := range ports {
		if errs[i] != nil {
			t.Fatalf("Allocate() error = %v", errs[i])
		}
		if seen[p] {
			t.Errorf("port %d returned twice", p)
		}
		seen[p] = true
	}
}

func TestAllocate_Exclude(t *testing.T) {
	a := NewAllocator("127.0.0.1")
	first, err := a.Allocate(nil)
	if err != nil {
		t.Fatal(err)
	}
	a.Release(first)

	exclude := map[int]bool{first: true}
	for i := 0; i < 10; i++ {
		p, err := a.Allocate(exclude)
		if err != nil {
			t.Fatal(err)
		}
		if p == first {
			t.Fatalf("Allocate() returned excluded port %d", p)
		}
	}
}

func TestAllocate_HoldExpires(t *testing.T) {
	a := NewAllocator("127.0.0.1")
	now := time.Unix(1000, 0)
	a.now = func() time.Time { return now }

	p, err := a.Allocate(nil)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := a.recent[p]; !ok {
		t.Fatalf("port %d not recorded", p)
	}

	now = now.Add(DefaultHold + time.Second)
	a.mu.Lock()
	a.expire()
	a.mu.Unlock()

	if _, ok := a.recent[p]; ok {
		t.Errorf("port %d still held after expiry", p)
	}
}

func TestAllocate_BindFailure(t *testing.T) {
	a := NewAllocator("256.0.0.1")
	if _, err := a.Allocate(nil); err == nil {
		t.Error("Allocate() on an invalid host should fail")
	}
}
