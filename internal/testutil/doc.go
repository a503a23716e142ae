// Package testutil provides test environments and fixtures.
//
// NewTestEnv builds a complete App over an in-memory engine, a recording
// command executor and a deterministic port allocator, with HOME pointed
// at a temp directory so the ssh config, known_hosts and audit log all
// live inside the test:
//
//	env := testutil.NewTestEnv(t)
//	ws := env.CreateWorkspace("demo")
//	res, err := env.App.Manager.CreateSandbox(ctx, lifecycle.CreateRequest{
//	    Alias: "demo", Image: testutil.TestImage, Workspace: ws,
//	})
//	if !strings.Contains(env.SSHConfig(), "Host demo") { ... }
//
// Fixtures are embedded from fixtures/: an ssh config mixing user blocks
// with a devctl entry, and full and invalid TOML configuration files.
package testutil
