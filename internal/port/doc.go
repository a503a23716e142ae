// Package port finds free local TCP ports for sandbox SSH publishing.
//
// A port is chosen by binding a listener on port 0 and reading back the
// number the OS assigned:
//
//	p, err := port.AllocateEphemeralPort()
//
// The listener is closed before returning, so nothing holds the port until
// the container engine publishes it. Another process can claim it in that
// window; callers must treat a bind failure at container start as retryable.
//
// Within one process the Allocator refuses to hand out a port it returned
// recently, and callers can exclude ports already published by existing
// sandboxes (stopped sandboxes keep their mapping but do not hold the socket).
package port
