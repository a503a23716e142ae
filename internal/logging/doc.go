// Package logging provides logging utilities for devctl.
//
// This package provides two categories of output:
//   - Debug logging: Structured logs for debugging (via slog)
//   - User output: Formatted messages for end users
//
// # Debug Logging
//
// Debug logs are written using slog. The level comes from
// DEVCONTAINER_LOG_LEVEL unless --verbose forces DEBUG:
//
//	logging.Debug("creating sandbox", "alias", alias, "image", image)
//	logging.Warn("ssh config not updated", "alias", alias, "error", err)
//
// # User Output
//
// User-facing messages are formatted with status indicators:
//
//	logging.UserInfo("Waiting for SSH on port %d...", port)
//	logging.UserSuccess("Sandbox %s created", alias)
//	logging.UserWarning("SSH entry for %s already exists", alias)
//	logging.UserError("Failed to create sandbox: %v", err)
//
// Output destinations:
//   - UserInfo, UserSuccess: stdout
//   - UserWarning, UserError: stderr
//
// # Status Indicators
//
// User functions prepend status indicators:
//   - ℹ (info)
//   - ✓ (success)
//   - ⚠ (warning)
//   - ✗ (error)
package logging
