// Package integration runs devctl against a real container engine.
//
// The tests are skipped unless DEVCONTAINER_INTEGRATION_TESTS=1. They need
// a reachable Docker daemon (or the podman/docker CLI) and an image with an
// SSH server listening on port 22, by default devbox:latest:
//
//	DEVCONTAINER_INTEGRATION_TESTS=1 \
//	DEVCONTAINER_TEST_IMAGE=devbox:latest \
//	go test -v ./internal/integration/...
//
// Each Harness works in its own temporary HOME, so the user's SSH config
// and known_hosts are never touched. Sandboxes created through the harness
// are force-removed when the test ends.
package integration
