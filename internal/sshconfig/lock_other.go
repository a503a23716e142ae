//go:build !unix

package sshconfig

// fileLock is a no-op where flock is unavailable; the in-process mutex
// still serializes writers within one devctl.
func fileLock(path string) (release func(), err error) {
	return func() {}, nil
}
