// Package app builds the object graph for one devctl invocation.
//
// There is no package-level default instance. Commands call New with the
// loaded configuration and receive an App holding every component:
//
//	a, err := app.New(ctx, cfg)
//	defer a.Close()
//	res, err := a.Manager.CreateSandbox(ctx, req)
//
// Tests substitute collaborators with options:
//
//	a, err := app.New(ctx, cfg,
//	    app.WithRuntime(runtime.NewMockRuntime()),
//	    app.WithExecutor(system.NewMockExecutor()),
//	)
//
// The engine client doubles as the SSH synchronizer's host key source, so
// strict host key checking reads keys through the same runtime.
package app
