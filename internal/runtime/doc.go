// Package runtime talks to the container engine.
//
// Supported backends:
//   - docker-api: the Docker Engine API via github.com/docker/docker/client
//     (also works against podman's Docker-compatible socket)
//   - docker, podman: the engine CLI driven through system.CommandExecutor
//
// New selects a backend from Config; with RuntimeAuto it prefers the API
// when the daemon answers a ping and otherwise falls back to whichever CLI
// is installed.
//
// # Runtime Interface
//
// Runtime is deliberately thin: it deals in full engine names and raw
// engine states. Prefixing, ownership labels, status mapping and the
// create/start ordering live in the engine package.
//
// Backends map native failures onto ErrContainerNotFound, ErrNameConflict
// and ErrPortInUse so callers can branch with errors.Is.
//
// # Mock Runtime
//
// For testing, use NewMockRuntime() for an in-memory engine with error
// injection and a call log.
package runtime
