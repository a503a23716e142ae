package sshconfig

import (
	"bufio"
	"bytes"
	"context"
	stderrors "errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"

	"github.com/BHPAV/dev-container-launcher/internal/config"
	"github.com/BHPAV/dev-container-launcher/internal/errors"
	"github.com/BHPAV/dev-container-launcher/internal/logging"
	"github.com/BHPAV/dev-container-launcher/internal/validate"
)

const (
	dirMode  fs.FileMode = 0o700
	fileMode fs.FileMode = 0o600
)

// HostKeyFetcher reads a sandbox's SSH host key.
type HostKeyFetcher interface {
	HostKey(ctx context.Context, alias string) (ssh.PublicKey, error)
}

// Synchronizer maintains Host blocks in one SSH client config file.
type Synchronizer struct {
	path       string
	knownHosts string
	keys       HostKeyFetcher
	v          *validate.Validator

	mu sync.Mutex
}

// Option configures a Synchronizer.
type Option func(*Synchronizer)

// WithKnownHosts sets the known_hosts file written under the strict policy.
func WithKnownHosts(path string) Option {
	return func(s *Synchronizer) {
		s.knownHosts = path
	}
}

// WithHostKeyFetcher sets where host keys come from under the strict policy.
func WithHostKeyFetcher(f HostKeyFetcher) Option {
	return func(s *Synchronizer) {
		s.keys = f
	}
}

// WithValidator sets the alias validator.
func WithValidator(v *validate.Validator) Option {
	return func(s *Synchronizer) {
		s.v = v
	}
}

// New creates a Synchronizer for the config file at path.
func New(path string, opts ...Option) *Synchronizer {
	s := &Synchronizer{path: path}
	for _, opt := range opts {
		opt(s)
	}
	if s.v == nil {
		s.v = validate.New(validate.DefaultMaxAliasLength, nil)
	}
	return s
}

// Path returns the config file path.
func (s *Synchronizer) Path() string {
	return s.path
}

// UpsertResult describes what UpsertEntry did.
type UpsertResult struct {
	// Existed is true when a block for the alias was already present and
	// left untouched.
	Existed bool

	// Fingerprint is the SHA256 fingerprint recorded in known_hosts, if any.
	Fingerprint string
}

// UpsertEntry appends a Host block for e.Alias unless one already exists.
// Existing blocks are never rewritten.
func (s *Synchronizer) UpsertEntry(ctx context.Context, e Entry) (UpsertResult, error) {
	var res UpsertResult
	if err := s.v.ValidateAlias(e.Alias); err != nil {
		return res, err
	}
	if e.Policy == "" {
		e.Policy = config.PolicyAcceptNew
	}

	unlock, err := s.lock()
	if err != nil {
		return res, err
	}
	defer unlock()

	data, mode, err := s.read()
	if err != nil {
		return res, err
	}
	doc := Parse(data)
	if doc.Has(e.Alias) {
		logging.Info("ssh config entry already exists, leaving it unchanged", "alias", e.Alias, "path", s.path)
		res.Existed = true
		return res, nil
	}

	switch e.Policy {
	case config.PolicyStrict:
		res.Fingerprint = s.trustHostKey(ctx, e)
		if e.KnownHostsFile == "" {
			e.KnownHostsFile = s.knownHosts
		}
	case config.PolicyInsecure:
		logging.Warn("StrictHostKeyChecking is disabled for this sandbox, host keys are not verified", "alias", e.Alias)
	}

	doc.Append(e.Block())
	if err := s.write(doc.Bytes(), mode); err != nil {
		return res, err
	}
	logging.Info("added ssh config entry", "alias", e.Alias, "port", e.Port, "policy", e.Policy)
	return res, nil
}

// trustHostKey fetches the sandbox's host key and records it. Failures are
// logged: the block still says "yes", so ssh refuses the host until the key
// is known rather than trusting blindly.
func (s *Synchronizer) trustHostKey(ctx context.Context, e Entry) string {
	log := logging.With("alias", e.Alias)
	if s.keys == nil || s.knownHosts == "" {
		log.Warn("strict host key checking requested but no host key source is configured")
		return ""
	}

	key, err := s.keys.HostKey(ctx, e.Alias)
	if err != nil {
		log.Error("failed to read sandbox host key", "error", err)
		return ""
	}
	if _, err := s.addKnownHost(e.HostName, e.Port, key); err != nil {
		log.Error("failed to update known_hosts", "path", s.knownHosts, "error", err)
		return ""
	}
	return ssh.FingerprintSHA256(key)
}

// AddKnownHost records key for host:port in the known_hosts file. It
// returns false if the exact line was already present.
func (s *Synchronizer) AddKnownHost(host string, port int, key ssh.PublicKey) (bool, error) {
	if s.knownHosts == "" {
		return false, errors.ConfigIO("no known_hosts file configured", nil)
	}
	unlock, err := s.lock()
	if err != nil {
		return false, err
	}
	defer unlock()
	return s.addKnownHost(host, port, key)
}

// addKnownHost appends the line. A different key already recorded for the
// same address is kept: ports are reused across sandboxes and the file is
// a log of trusted keys, not a cache.
func (s *Synchronizer) addKnownHost(host string, port int, key ssh.PublicKey) (bool, error) {
	address := knownhosts.Normalize(fmt.Sprintf("%s:%d", host, port))
	line := knownhosts.Line([]string{address}, key)

	existing, err := os.ReadFile(s.knownHosts)
	if err != nil && !stderrors.Is(err, fs.ErrNotExist) {
		return false, errors.ConfigIO("failed to read known_hosts", err)
	}
	sc := bufio.NewScanner(bytes.NewReader(existing))
	for sc.Scan() {
		if strings.TrimSpace(sc.Text()) == line {
			logging.Debug("host key already in known_hosts", "address", address)
			return false, nil
		}
	}

	if err := os.MkdirAll(filepath.Dir(s.knownHosts), dirMode); err != nil {
		return false, errors.ConfigIO("failed to create known_hosts directory", err)
	}
	f, err := os.OpenFile(s.knownHosts, os.O_APPEND|os.O_CREATE|os.O_WRONLY, fileMode)
	if err != nil {
		return false, errors.ConfigIO("failed to open known_hosts", err)
	}
	defer f.Close()

	prefix := ""
	if len(existing) > 0 && !bytes.HasSuffix(existing, []byte("\n")) {
		prefix = "\n"
	}
	if _, err := f.WriteString(prefix + line + "\n"); err != nil {
		return false, errors.ConfigIO("failed to write known_hosts", err)
	}
	logging.Info("added host key to known_hosts", "address", address, "fingerprint", ssh.FingerprintSHA256(key))
	return true, nil
}

// RemoveEntry drops the Host block for alias and reports whether one was
// removed. It never fails: by the time it runs the sandbox is gone, so a
// missing file is silent and other problems are only logged.
func (s *Synchronizer) RemoveEntry(alias string) bool {
	log := logging.With("alias", alias, "path", s.path)
	if err := s.v.ValidateAlias(alias); err != nil {
		log.Warn("refusing to edit ssh config for invalid alias", "error", err)
		return false
	}
	if _, err := os.Stat(s.path); stderrors.Is(err, fs.ErrNotExist) {
		return false
	}

	unlock, err := s.lock()
	if err != nil {
		log.Error("failed to lock ssh config", "error", err)
		return false
	}
	defer unlock()

	data, mode, err := s.read()
	if err != nil {
		log.Error("failed to read ssh config", "error", err)
		return false
	}
	if data == nil {
		return false
	}

	doc := Parse(data)
	if doc.Remove(alias) == 0 {
		log.Debug("no ssh config entry to remove")
		return false
	}
	if err := s.write(doc.Bytes(), mode); err != nil {
		log.Error("failed to write ssh config", "error", err)
		return false
	}
	log.Info("removed ssh config entry")
	return true
}

// Has reports whether the config file holds a block for alias.
func (s *Synchronizer) Has(alias string) (bool, error) {
	data, _, err := s.read()
	if err != nil {
		return false, err
	}
	return Parse(data).Has(alias), nil
}

// lock serializes writers in this process and across processes.
func (s *Synchronizer) lock() (func(), error) {
	if err := os.MkdirAll(filepath.Dir(s.path), dirMode); err != nil {
		return nil, errors.ConfigIO("failed to create ssh config directory", err)
	}
	s.mu.Lock()
	release, err := fileLock(s.path + ".lock")
	if err != nil {
		s.mu.Unlock()
		return nil, errors.ConfigIO("failed to lock ssh config", err)
	}
	return func() {
		release()
		s.mu.Unlock()
	}, nil
}

// read returns the file contents and mode. A missing file is nil data.
func (s *Synchronizer) read() ([]byte, fs.FileMode, error) {
	data, err := os.ReadFile(s.path)
	if stderrors.Is(err, fs.ErrNotExist) {
		return nil, fileMode, nil
	}
	if err != nil {
		return nil, 0, errors.ConfigIO("failed to read ssh config", err)
	}
	mode := fileMode
	if info, err := os.Stat(s.path); err == nil {
		mode = info.Mode().Perm()
	}
	return data, mode, nil
}

// maxLinkHops bounds symlink chains followed by target.
const maxLinkHops = 40

// target returns the file that s.path refers to, following symlinks even
// when the final target does not exist yet.
func (s *Synchronizer) target() (string, error) {
	p := s.path
	for range maxLinkHops {
		info, err := os.Lstat(p)
		if stderrors.Is(err, fs.ErrNotExist) || (err == nil && info.Mode()&fs.ModeSymlink == 0) {
			return p, nil
		}
		if err != nil {
			return "", err
		}
		link, err := os.Readlink(p)
		if err != nil {
			return "", err
		}
		if !filepath.IsAbs(link) {
			link = filepath.Join(filepath.Dir(p), link)
		}
		p = link
	}
	return "", fmt.Errorf("too many levels of symbolic links: %s", s.path)
}

// write replaces the file through a temp file and rename next to the
// symlink-resolved target, so a linked config stays a link.
func (s *Synchronizer) write(data []byte, mode fs.FileMode) error {
	path, err := s.target()
	if err != nil {
		return errors.ConfigIO("failed to resolve ssh config path", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return errors.ConfigIO("failed to create temp file", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return errors.ConfigIO("failed to write ssh config", err)
	}
	if err := tmp.Chmod(mode); err != nil {
		tmp.Close()
		return errors.ConfigIO("failed to set ssh config mode", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return errors.ConfigIO("failed to sync ssh config", err)
	}
	if err := tmp.Close(); err != nil {
		return errors.ConfigIO("failed to close ssh config", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return errors.ConfigIO("failed to replace ssh config", err)
	}
	return nil
}
