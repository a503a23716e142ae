// Package sshconfig keeps the user's SSH client configuration in step with
// sandbox lifecycle events.
//
// The file is parsed into an ordered list of blocks. A block starts at a
// top-level line (non-empty, not indented) and owns every following line
// that is empty or indented with a space or tab. Host blocks are the ones
// whose header is "Host <patterns>". Serializing an unmodified Document
// reproduces the input byte for byte.
//
// Writers hold an exclusive lock on a sibling "<config>.lock" file so
// concurrent devctl processes cannot lose each other's updates.
package sshconfig
