// Package config loads devctl configuration.
//
// Values are layered in this order, later layers winning:
//
//  1. Built-in defaults (Default)
//  2. An optional TOML file, ~/.devcontainer/config.toml or the path in
//     DEVCONTAINER_CONFIG
//  3. DEVCONTAINER_* environment variables
//
// Example file:
//
//	image = "devbox:latest"
//	strict_host_key_checking = "accept-new"
//	allowed_paths = ["~/Dev", "~/Projects", "/tmp"]
//	poll_interval = "2s"
//
//	[images]
//	python = "python-3.12:latest"
//
// The container name prefix and ownership label are constants and cannot be
// configured.
package config
