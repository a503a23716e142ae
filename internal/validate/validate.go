// Package validate checks and normalizes every externally supplied alias
// and filesystem path before it reaches the container engine or the ssh
// config file.
package validate

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	securejoin "github.com/cyphar/filepath-securejoin"

	"github.com/BHPAV/dev-container-launcher/internal/errors"
)

// DefaultMaxAliasLength matches the common container name limit.
const DefaultMaxAliasLength = 63

// aliasRegex: alphanumeric first character, then alphanumerics, '_', '.', '-'.
var aliasRegex = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9_.-]*$`)

// Validator holds the alias length limit and the allowed workspace roots.
type Validator struct {
	maxAliasLength int
	allowedPaths   []string
}

// New creates a Validator. A non-positive maxAliasLength selects the default.
func New(maxAliasLength int, allowedPaths []string) *Validator {
	if maxAliasLength <= 0 {
		maxAliasLength = DefaultMaxAliasLength
	}
	return &Validator{
		maxAliasLength: maxAliasLength,
		allowedPaths:   append([]string(nil), allowedPaths...),
	}
}

// AllowedPaths returns the configured roots as written.
func (v *Validator) AllowedPaths() []string {
	return append([]string(nil), v.allowedPaths...)
}

// ValidateAlias checks s against the alias rules and v's length limit.
func (v *Validator) ValidateAlias(s string) error {
	return ValidateAlias(s, v.maxAliasLength)
}

// ValidateAlias fails if s is empty, longer than maxLen, or contains anything
// other than alphanumerics, '_', '.' and '-' after an alphanumeric first
// character.
func ValidateAlias(s string, maxLen int) error {
	if s == "" {
		return errors.Validation("name cannot be empty")
	}
	if len(s) > maxLen {
		return errors.Validationf("name %q is too long: %d characters, maximum is %d", s, len(s), maxLen)
	}
	if !aliasRegex.MatchString(s) {
		return errors.Validationf("invalid name %q: must start with a letter or digit and contain only letters, digits, '_', '.' or '-'", s)
	}
	return nil
}

// SanitizePath returns an absolute, cleaned path with NUL bytes removed and
// symlinks resolved for every existing prefix. It never fails: an empty
// input resolves to the current directory.
func SanitizePath(raw string) string {
	p := strings.ReplaceAll(raw, "\x00", "")
	if p == "" {
		p = "."
	}

	abs, err := filepath.Abs(p)
	if err != nil {
		// Only possible when the working directory is gone.
		abs = filepath.Join(string(filepath.Separator), p)
	}
	return resolveExisting(abs)
}

// resolveExisting follows symlinks on the longest existing prefix of an
// absolute clean path and appends the remaining components unchanged.
func resolveExisting(p string) string {
	if resolved, err := filepath.EvalSymlinks(p); err == nil {
		return resolved
	}
	parent := filepath.Dir(p)
	if parent == p {
		return p
	}
	return filepath.Join(resolveExisting(parent), filepath.Base(p))
}

// ValidateVolumePath requires path to exist and to lie inside one of the
// allowed roots. Roots are resolved on every call.
func (v *Validator) ValidateVolumePath(path string) error {
	resolved := SanitizePath(path)

	if _, err := os.Stat(resolved); err != nil {
		return errors.Validationf("path does not exist: %s", resolved)
	}

	for _, root := range v.allowedPaths {
		if withinRoot(root, resolved) {
			return nil
		}
	}

	return errors.Validationf("path %s is not in allowed locations; allowed paths: %s",
		resolved, strings.Join(v.allowedPaths, ", "))
}

// withinRoot reports whether resolved is root itself or a descendant of it.
// The relative remainder is re-resolved with securejoin inside the root and
// must land on the same path.
func withinRoot(root, resolved string) bool {
	if root == "" {
		return false
	}
	resolvedRoot, err := filepath.EvalSymlinks(filepath.Clean(root))
	if err != nil {
		return false
	}

	rel, err := filepath.Rel(resolvedRoot, resolved)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return false
	}

	scoped, err := securejoin.SecureJoin(resolvedRoot, rel)
	if err != nil {
		return false
	}
	return scoped == resolved
}

// String implements fmt.Stringer for debug logs.
func (v *Validator) String() string {
	return fmt.Sprintf("validator(max=%d, allowed=%v)", v.maxAliasLength, v.allowedPaths)
}
