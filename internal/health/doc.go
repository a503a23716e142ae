// Package health reports whether a sandbox is usable over SSH.
//
// A sandbox is healthy when its container is running, its published SSH
// port accepts TCP connections and the SSH config holds a Host entry for
// its alias:
//
//	checker := health.NewChecker(cfg.SSHHost, app.SSH)
//	result := checker.Check(ctx, sandbox)
//	switch result.Summary() {
//	case health.StatusHealthy:
//	case health.StatusUnreachable: // container up, sshd not answering
//	case health.StatusNoEntry:     // "ssh <alias>" will not resolve
//	case health.StatusStopped:
//	}
package health
